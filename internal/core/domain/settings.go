package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// StoreDriver selects the document store backend.
type StoreDriver string

// Available store drivers.
const (
	// StoreDriverSQLite is the embedded SQLite store.
	StoreDriverSQLite StoreDriver = "sqlite"

	// StoreDriverPostgres is a PostgreSQL store with the pgvector extension.
	StoreDriverPostgres StoreDriver = "postgres"

	// StoreDriverMemory keeps documents in process memory for previews.
	StoreDriverMemory StoreDriver = "memory"
)

// IsValid returns true if the driver is recognised.
func (d StoreDriver) IsValid() bool {
	switch d {
	case StoreDriverSQLite, StoreDriverPostgres, StoreDriverMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d StoreDriver) String() string {
	return string(d)
}

// Description returns a human-readable description of the driver.
func (d StoreDriver) Description() string {
	switch d {
	case StoreDriverSQLite:
		return "SQLite (embedded, local file)"
	case StoreDriverPostgres:
		return "PostgreSQL (pgvector)"
	case StoreDriverMemory:
		return "In-memory (discarded on exit)"
	default:
		return unknownDescription
	}
}

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderNone disables embeddings; chunks are stored without vectors.
	AIProviderNone AIProvider = "none"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderNone, AIProviderOllama:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderNone:
		return "None (no embeddings)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// StoreSettings holds document store configuration.
type StoreSettings struct {
	// Driver selects the backend.
	Driver StoreDriver

	// DataDir is the SQLite data directory. Empty means ~/.sercha-sync/data.
	DataDir string

	// URL is the PostgreSQL connection string.
	URL string

	// MaxOpenConns bounds the shared connection pool.
	MaxOpenConns int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// Dimensions is the fixed embedding vector size.
	Dimensions int

	// Timeout bounds a single embedding request.
	Timeout time.Duration

	// BatchSize caps the chunks sent in one embedding request.
	BatchSize int

	// RequestsPerSecond throttles embedding requests. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if an embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.IsValid() && e.Provider != AIProviderNone
}

// ChunkerSettings holds the default splitter configuration.
type ChunkerSettings struct {
	// Size is the number of characters per chunk.
	Size int

	// Overlap is the number of overlapping characters between chunks.
	Overlap int
}

// SchedulerSettings holds job orchestration configuration.
type SchedulerSettings struct {
	// QueueCapacity bounds pending jobs.
	QueueCapacity int

	// Concurrency bounds jobs running at once.
	Concurrency int

	// HistorySize bounds retained finished jobs.
	HistorySize int

	// Interval triggers a periodic sync when positive.
	Interval time.Duration

	// JobTimeout bounds a single attempt when positive.
	JobTimeout time.Duration
}

// RetrySettings holds the retry policy configuration.
type RetrySettings struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64
}

// SyncSettings holds discovery configuration.
type SyncSettings struct {
	// Exclude lists glob patterns matched against base names and relative paths.
	Exclude []string

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64

	// HashWorkers bounds parallel hashing. Zero means one per CPU.
	HashWorkers int

	// IncludeHidden includes dot-files and dot-directories.
	IncludeHidden bool

	// WatchDebounce is the quiet period before a watch-triggered sync.
	WatchDebounce time.Duration
}

// LogSettings holds logging configuration.
type LogSettings struct {
	// Verbose enables debug and info output.
	Verbose bool

	// File routes log output to a rotating file when set.
	File string

	// MaxSizeMB is the size at which the log file rotates.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int
}

// AppSettings holds all application settings.
type AppSettings struct {
	Store     StoreSettings
	Embedding EmbeddingSettings
	Chunker   ChunkerSettings
	Scheduler SchedulerSettings
	Retry     RetrySettings
	Sync      SyncSettings
	Log       LogSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Embeddings are left unconfigured by default.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Store: StoreSettings{
			Driver:       StoreDriverSQLite,
			MaxOpenConns: 8,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderNone,
			Model:      "nomic-embed-text",
			BaseURL:    "http://localhost:11434",
			Dimensions: 768, // nomic-embed-text default
			Timeout:    30 * time.Second,
			BatchSize:  32,
		},
		Chunker: ChunkerSettings{
			Size:    1000,
			Overlap: 200,
		},
		Scheduler: SchedulerSettings{
			QueueCapacity: 1000,
			Concurrency:   4,
			HistorySize:   100,
		},
		Retry: RetrySettings{
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     60 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.2,
		},
		Sync: SyncSettings{
			WatchDebounce: 2 * time.Second,
		},
		Log: LogSettings{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Validate checks settings for values the services cannot work with.
func (s AppSettings) Validate() error {
	if !s.Store.Driver.IsValid() {
		return fmt.Errorf("%w: unknown store driver %q", ErrConfig, s.Store.Driver)
	}
	if s.Store.Driver == StoreDriverPostgres && s.Store.URL == "" {
		return fmt.Errorf("%w: postgres store requires a connection url", ErrConfig)
	}
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfig, s.Embedding.Provider)
	}
	if s.Embedding.Dimensions <= 0 || s.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding dimensions and batch size must be positive", ErrConfig)
	}
	if s.Chunker.Size <= 0 || s.Chunker.Overlap < 0 || s.Chunker.Overlap >= s.Chunker.Size {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrConfig)
	}
	if s.Scheduler.QueueCapacity <= 0 || s.Scheduler.Concurrency <= 0 || s.Scheduler.HistorySize <= 0 {
		return fmt.Errorf("%w: scheduler bounds must be positive", ErrConfig)
	}
	if s.Retry.MaxRetries < 0 || s.Retry.Multiplier < 1 || s.Retry.JitterFraction < 0 {
		return fmt.Errorf("%w: invalid retry policy", ErrConfig)
	}
	return nil
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
	}
}
