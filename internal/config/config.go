// Package config loads engine configuration from file, environment, and
// defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the engine configuration.
type Config struct {
	Store struct {
		URL    string `mapstructure:"url"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"store"`

	Sync struct {
		BatchSize    int           `mapstructure:"batch_size"`
		MaxRetries   uint64        `mapstructure:"max_retries"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
		Lookback     time.Duration `mapstructure:"lookback"`
	} `mapstructure:"sync"`

	Dedup struct {
		ResolutionSeconds int `mapstructure:"resolution_seconds"`
		Precision         int `mapstructure:"precision"`
	} `mapstructure:"dedup"`

	DBPath string `mapstructure:"db_path"`
	Source string `mapstructure:"source"` // provenance source ID

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		File   string `mapstructure:"file"`
	} `mapstructure:"log"`
}

// Load reads configuration from the given file path (optional), the
// GLUCOSYNC_* environment, and built-in defaults, in that precedence order
// from highest to lowest: env, file, defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.poll_interval", "5m")
	v.SetDefault("sync.lookback", "720h")
	v.SetDefault("dedup.resolution_seconds", 1)
	v.SetDefault("dedup.precision", 1)
	v.SetDefault("db_path", "glucosync.db")
	v.SetDefault("source", "glucosync-cli")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetEnvPrefix("GLUCOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("glucosync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/glucosync")
		if err := v.ReadInConfig(); err != nil {
			// a missing default config file is fine; everything has defaults
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
