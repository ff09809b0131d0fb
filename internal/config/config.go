package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load reads configuration from the given file, the default search paths,
// and LEXREDACT_* environment variables, layered over the defaults.
// A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/lexredact/")
	viper.AddConfigPath("$HOME/.lexredact/")

	viper.SetEnvPrefix("LEXREDACT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Engine.Mode {
	case "pattern", "recognizer", "hybrid":
	default:
		return fmt.Errorf("invalid engine mode: %s (must be pattern, recognizer, or hybrid)", config.Engine.Mode)
	}

	if t := config.Engine.Defaults.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("invalid confidence threshold: %f (must be in [0, 1])", t)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid rate limit: %f requests/second", config.RateLimit.RequestsPerSecond)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch invokes callback with a freshly validated Config whenever the
// config file changes on disk. Unparseable or invalid edits are ignored.
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(fsnotify.Event) {
		updated := &Config{}
		if err := viper.Unmarshal(updated); err != nil {
			return
		}
		if err := validateConfig(updated); err != nil {
			return
		}
		callback(updated)
	})
	return nil
}
