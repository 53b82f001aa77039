package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"  validate:"required"`
	Task    TaskConfig    `mapstructure:"task"    validate:"required"`
	Dataset DatasetConfig `mapstructure:"dataset" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// MaxBodyBytes bounds the size of a submitted feature collection
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"gt=0"`

	// ShutdownTimeoutSeconds is how long in-flight requests get on shutdown
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`

	// RetryAfterSeconds is advertised to callers rejected as overloaded
	RetryAfterSeconds int `mapstructure:"retry_after_seconds" validate:"gte=0"`
}

// TaskConfig contains the settings of the asynchronous task engine.
type TaskConfig struct {
	// MaxConcurrent is the admission capacity: the maximum number of
	// pipeline executions in flight at once
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"gt=0"`

	// WorkDir is the root under which every task gets its own scratch directory
	WorkDir string `mapstructure:"work_dir" validate:"required"`
}

// DatasetConfig describes where the raster comes from and where it is kept.
type DatasetConfig struct {
	URL           string `mapstructure:"url"             validate:"omitempty,url"`
	Path          string `mapstructure:"path"            validate:"required"`
	ChunkSize     int    `mapstructure:"chunk_size"      validate:"gt=0"`
	SkipIfPresent bool   `mapstructure:"skip_if_present"`

	// DownloadTimeoutMinutes bounds the startup download; zero means no limit
	DownloadTimeoutMinutes int `mapstructure:"download_timeout_minutes" validate:"gte=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
