package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvPrefix prefixes environment overrides, e.g. SERCHA_SYNC_STORE_DRIVER.
const EnvPrefix = "SERCHA_SYNC_"

// settingField binds a config key to the settings field it fills.
// target is a pointer to one of string, int, int64, bool, float64,
// time.Duration or []string.
type settingField struct {
	key    string
	target any
}

// settingFields lists every recognised key in config file order.
func settingFields(s *domain.AppSettings) []settingField {
	return []settingField{
		{"store.driver", (*string)(&s.Store.Driver)},
		{"store.data_dir", &s.Store.DataDir},
		{"store.url", &s.Store.URL},
		{"store.max_open_conns", &s.Store.MaxOpenConns},

		{"embedding.provider", (*string)(&s.Embedding.Provider)},
		{"embedding.model", &s.Embedding.Model},
		{"embedding.base_url", &s.Embedding.BaseURL},
		{"embedding.dimensions", &s.Embedding.Dimensions},
		{"embedding.timeout", &s.Embedding.Timeout},
		{"embedding.batch_size", &s.Embedding.BatchSize},
		{"embedding.requests_per_second", &s.Embedding.RequestsPerSecond},

		{"chunker.size", &s.Chunker.Size},
		{"chunker.overlap", &s.Chunker.Overlap},

		{"scheduler.queue_capacity", &s.Scheduler.QueueCapacity},
		{"scheduler.concurrency", &s.Scheduler.Concurrency},
		{"scheduler.history_size", &s.Scheduler.HistorySize},
		{"scheduler.interval", &s.Scheduler.Interval},
		{"scheduler.job_timeout", &s.Scheduler.JobTimeout},

		{"retry.max_retries", &s.Retry.MaxRetries},
		{"retry.initial_backoff", &s.Retry.InitialBackoff},
		{"retry.max_backoff", &s.Retry.MaxBackoff},
		{"retry.multiplier", &s.Retry.Multiplier},
		{"retry.jitter", &s.Retry.JitterFraction},

		{"sync.exclude", &s.Sync.Exclude},
		{"sync.max_file_size", &s.Sync.MaxFileSize},
		{"sync.hash_workers", &s.Sync.HashWorkers},
		{"sync.include_hidden", &s.Sync.IncludeHidden},
		{"sync.watch_debounce", &s.Sync.WatchDebounce},

		{"log.verbose", &s.Log.Verbose},
		{"log.file", &s.Log.File},
		{"log.max_size_mb", &s.Log.MaxSizeMB},
		{"log.max_backups", &s.Log.MaxBackups},
	}
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// Get retrieves the effective application settings.
// Values that do not parse keep their default and are logged.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()
	for _, f := range settingFields(&settings) {
		if val, ok := s.configStore.Get(f.key); ok {
			if err := decodeField(f.target, val); err != nil {
				logger.Warn("ignoring config %s: %v", f.key, err)
			}
		}
		if raw, ok := s.lookupEnv(EnvName(f.key)); ok {
			if err := assignField(f.target, raw); err != nil {
				logger.Warn("ignoring %s: %v", EnvName(f.key), err)
			}
		}
	}

	defaults := domain.DefaultAppSettings()
	if !settings.Store.Driver.IsValid() {
		logger.Warn("unknown store driver %q, using %s", settings.Store.Driver, defaults.Store.Driver)
		settings.Store.Driver = defaults.Store.Driver
	}
	if !settings.Embedding.Provider.IsValid() {
		logger.Warn("unknown embedding provider %q, using %s", settings.Embedding.Provider, defaults.Embedding.Provider)
		settings.Embedding.Provider = defaults.Embedding.Provider
	}

	if err := settings.Validate(); err != nil {
		return &settings, err
	}
	return &settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	for _, f := range settingFields(settings) {
		if err := s.configStore.Set(f.key, storeValue(f.target)); err != nil {
			return fmt.Errorf("save %s: %w", f.key, err)
		}
	}
	return nil
}

// Set parses and persists a single key.
func (s *SettingsService) Set(key, value string) error {
	settings := domain.DefaultAppSettings()
	for _, f := range settingFields(&settings) {
		if f.key != key {
			continue
		}
		if err := assignField(f.target, value); err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
		if err := s.configStore.Set(key, storeValue(f.target)); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

// Unset removes key from the config file so its default applies again.
// Environment overrides are unaffected.
func (s *SettingsService) Unset(key string) error {
	if !s.known(key) {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if err := s.configStore.Unset(key); err != nil {
		return fmt.Errorf("unset %s: %w", key, err)
	}
	return nil
}

// Value returns the effective value of key as text.
// Settings that fail validation are still reported.
func (s *SettingsService) Value(key string) (string, error) {
	settings, err := s.Get()
	if settings == nil {
		return "", err
	}
	for _, f := range settingFields(settings) {
		if f.key == key {
			return formatValue(f.target), nil
		}
	}
	return "", fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
}

// Keys returns every recognised setting key.
func (s *SettingsService) Keys() []string {
	var settings domain.AppSettings
	fields := settingFields(&settings)
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

func (s *SettingsService) known(key string) bool {
	for _, k := range s.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// assignField parses raw into the field.
func assignField(target any, raw string) error {
	raw = strings.TrimSpace(raw)
	switch t := target.(type) {
	case *string:
		*t = raw
	case *int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*t = v
	case *int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*t = v
	case *bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*t = v
	case *float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*t = v
	case *time.Duration:
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*t = v
	case *[]string:
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*t = out
	default:
		return fmt.Errorf("unsupported setting type %T", target)
	}
	return nil
}

// decodeField copies a stored config value into the field. Stored values
// carry TOML types: integers arrive as int64 and arrays as []any. Strings
// are parsed the way environment overrides are, and bare integers are
// accepted as seconds for durations. On error the field is left unchanged.
func decodeField(target any, val any) error {
	if raw, ok := val.(string); ok {
		if _, isString := target.(*string); !isString {
			return assignField(target, raw)
		}
	}
	switch t := target.(type) {
	case *string:
		v, ok := val.(string)
		if !ok {
			return typeError(val, "a string")
		}
		*t = v
	case *int:
		v, ok := integer(val)
		if !ok {
			return typeError(val, "an integer")
		}
		*t = int(v)
	case *int64:
		v, ok := integer(val)
		if !ok {
			return typeError(val, "an integer")
		}
		*t = v
	case *bool:
		v, ok := val.(bool)
		if !ok {
			return typeError(val, "a boolean")
		}
		*t = v
	case *float64:
		if v, ok := val.(float64); ok {
			*t = v
			return nil
		}
		v, ok := integer(val)
		if !ok {
			return typeError(val, "a number")
		}
		*t = float64(v)
	case *time.Duration:
		if v, ok := val.(time.Duration); ok {
			*t = v
			return nil
		}
		v, ok := integer(val)
		if !ok {
			return typeError(val, "a duration")
		}
		*t = time.Duration(v) * time.Second
	case *[]string:
		switch v := val.(type) {
		case []string:
			*t = v
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				str, ok := item.(string)
				if !ok {
					return typeError(item, "a list of strings")
				}
				out = append(out, str)
			}
			*t = out
		default:
			return typeError(val, "a list of strings")
		}
	default:
		return fmt.Errorf("unsupported setting type %T", target)
	}
	return nil
}

// integer accepts the integer forms a config store can hand back.
// Floats must be whole.
func integer(val any) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

func typeError(val any, want string) error {
	return fmt.Errorf("%w: %v (%T) is not %s", domain.ErrInvalidInput, val, val, want)
}

// storeValue converts a field to the value written to the config file.
// Durations are written as strings so the file stays readable.
func storeValue(target any) any {
	switch t := target.(type) {
	case *string:
		return *t
	case *int:
		return *t
	case *int64:
		return *t
	case *bool:
		return *t
	case *float64:
		return *t
	case *time.Duration:
		return t.String()
	case *[]string:
		if *t == nil {
			return []string{}
		}
		return *t
	default:
		return nil
	}
}

// formatValue renders a field in the form assignField parses.
func formatValue(target any) string {
	switch t := target.(type) {
	case *string:
		return *t
	case *int:
		return strconv.Itoa(*t)
	case *int64:
		return strconv.FormatInt(*t, 10)
	case *bool:
		return strconv.FormatBool(*t)
	case *float64:
		return strconv.FormatFloat(*t, 'g', -1, 64)
	case *time.Duration:
		return t.String()
	case *[]string:
		return strings.Join(*t, ",")
	default:
		return ""
	}
}
