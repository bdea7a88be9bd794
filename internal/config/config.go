package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Port             int    `mapstructure:"port"`
	DBPath           string `mapstructure:"db_path"`
	Workers          int    `mapstructure:"workers"`
	RetryAttempts    int    `mapstructure:"retry_attempts"`
	RetentionDays    int    `mapstructure:"retention_days"`
	PollIntervalSecs int    `mapstructure:"poll_interval_secs"`
}

var Default = Config{
	Port:             8090,
	DBPath:           "drivemigrate.db",
	Workers:          2,
	RetryAttempts:    3,
	RetentionDays:    14,
	PollIntervalSecs: 2,
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".drivemigrate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("port", Default.Port)
	viper.SetDefault("db_path", Default.DBPath)
	viper.SetDefault("workers", Default.Workers)
	viper.SetDefault("retry_attempts", Default.RetryAttempts)
	viper.SetDefault("retention_days", Default.RetentionDays)
	viper.SetDefault("poll_interval_secs", Default.PollIntervalSecs)

	viper.SetEnvPrefix("DRIVEMIGRATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if ok := errors.As(err, &notFoundErr); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
