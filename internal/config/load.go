package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. CARBON_TASK_MAX_CONCURRENT.
const EnvPrefix = "CARBON"

// DefaultDatasetURL is the predicted carbon sequestration rate map.
const DefaultDatasetURL = "https://gfw-files.s3.amazonaws.com/ai4e/Predicted_Sequestration_Rate_Map.tif"

// New returns a viper instance with defaults and environment bindings
// installed. Callers may bind command-line flags to it before LoadFrom.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.max_body_bytes", 100_000_000)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.retry_after_seconds", 30)

	v.SetDefault("task.max_concurrent", 5)
	v.SetDefault("task.work_dir", filepath.Join(os.TempDir(), "carbonstats"))

	v.SetDefault("dataset.url", DefaultDatasetURL)
	v.SetDefault("dataset.path", "Predicted_Sequestration_Rate_Map.tif")
	v.SetDefault("dataset.chunk_size", 20_000_000)
	v.SetDefault("dataset.skip_if_present", true)
	v.SetDefault("dataset.download_timeout_minutes", 60)

	v.SetDefault("metrics.enabled", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load configuration from defaults, the optional config file, and
// environment variables. Environment variables take precedence over values
// from config files. Returns a populated Config struct or an error if
// loading/validation fails.
func Load(configFile string) (*Config, error) {
	return LoadFrom(New(), configFile)
}

// LoadFrom reads configFile (when non-empty) into v, unmarshals and validates.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("config validation failed: %w", verrs)
		}
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
