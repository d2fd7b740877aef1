package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration. Values come from an optional YAML
// file, overridden by environment variables.
type Config struct {
	Port        string
	LogLevel    string
	GracePeriod time.Duration
}

// fileConfig is the YAML shape; durations are strings like "10s".
type fileConfig struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	GracePeriod string `yaml:"grace_period"`
}

func defaultConfig() Config {
	return Config{
		Port:        "3001",
		LogLevel:    "info",
		GracePeriod: 10 * time.Second,
	}
}

func loadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
		if fc.Port != "" {
			cfg.Port = fc.Port
		}
		if fc.LogLevel != "" {
			cfg.LogLevel = fc.LogLevel
		}
		if fc.GracePeriod != "" {
			d, err := time.ParseDuration(fc.GracePeriod)
			if err != nil {
				return cfg, fmt.Errorf("invalid grace_period in config: %w", err)
			}
			cfg.GracePeriod = d
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.GracePeriod = getEnvAsDuration("GRACE_PERIOD", cfg.GracePeriod)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
