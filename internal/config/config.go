package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// Grace is added to a quiz duration when locking an active attempt.
		Grace string `yaml:"grace"`
	} `yaml:"redis"`
	Postgres struct {
		URL     string `yaml:"url"`
		Migrate bool   `yaml:"migrate"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Attempt struct {
		SubmitTimeout string `yaml:"submit_timeout"`
	} `yaml:"attempt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path. A missing file yields the zero config so the
// service can run from flags and environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
