package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the worker's file configuration. Connection settings may be
// overridden by environment variables so deployments keep secrets out of
// the file: REDIS_URL, DATABASE_URL, MONGO_URL, and the provider API keys.
type Config struct {
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`

	Mongo struct {
		URL      string `yaml:"url"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Limits struct {
		TokensPerMinute    float64 `yaml:"tokensPerMinute"`
		MaxTokensPerMinute float64 `yaml:"maxTokensPerMinute"`
	} `yaml:"limits"`
}

// loadConfig reads the YAML file when present, applies defaults, and lets
// environment variables override the connection settings.
func loadConfig(path string) (Config, error) {
	var cfg Config
	cfg.Mongo.Database = "loom"
	cfg.Limits.TokensPerMinute = 60000
	cfg.Limits.MaxTokensPerMinute = 240000

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("MONGO_URL"); v != "" {
		cfg.Mongo.URL = v
	}
	return cfg, nil
}
