package driven

// ConfigStore persists flat, dot-separated configuration keys such as
// "retry.max_backoff". Values are returned as stored; interpreting them is
// the settings service's job.
type ConfigStore interface {
	// Get returns the raw value for key and whether it is set.
	Get(key string) (any, bool)

	// Keys returns every set key, sorted.
	Keys() []string

	// Set stores a value and persists it immediately.
	Set(key string, value any) error

	// Unset removes a key. Removing a missing key is not an error.
	Unset(key string) error

	// Save persists the current configuration.
	Save() error

	// Load replaces the in-memory configuration with the persisted one.
	Load() error

	// Path returns where the configuration is persisted.
	Path() string
}
