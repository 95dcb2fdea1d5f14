package driving

import "github.com/custodia-labs/sercha-sync/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get returns the effective settings: defaults, overlaid by the config
	// file, overlaid by SERCHA_SYNC_* environment variables.
	Get() (*domain.AppSettings, error)

	// Save persists application settings to the config file.
	Save(settings *domain.AppSettings) error

	// Set parses value for a single key and persists it.
	// Unknown keys and unparseable values fail with domain.ErrInvalidInput.
	Set(key, value string) error

	// Unset removes a key from the config file, restoring its default.
	Unset(key string) error

	// Value returns the effective value of a single key as text.
	Value(key string) (string, error)

	// Keys returns every recognised setting key.
	Keys() []string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
