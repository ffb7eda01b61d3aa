// Package config loads server configuration from an optional TOML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment override names.
const (
	envListenAddr = "CHESSDUEL_LISTEN_ADDR"
	envAppURL     = "CHESSDUEL_APP_URL"
	envCacheDir   = "CHESSDUEL_CACHE_DIR"
	envLogLevel   = "CHESSDUEL_LOG_LEVEL"
)

// Config holds everything the server needs to start.
type Config struct {
	// ListenAddr is the host:port the websocket server binds to.
	ListenAddr string `toml:"listen_addr"`
	// AppServiceURL is the GraphQL endpoint of the application server.
	AppServiceURL string `toml:"app_service_url"`
	// CacheDir is the BadgerDB directory for the challenge cache.
	// Empty means in-memory.
	CacheDir string `toml:"cache_dir"`
	// ChallengeTTL bounds how long a cached challenge stays valid.
	ChallengeTTL duration `toml:"challenge_ttl"`
	// LogLevel is a logrus level name.
	LogLevel string `toml:"log_level"`
}

// duration lets TOML carry values like "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:    ":5050",
		AppServiceURL: "http://app:8000/graphql",
		ChallengeTTL:  duration{5 * time.Minute},
		LogLevel:      "info",
	}
}

// Load builds the configuration: defaults, then the TOML file at path
// (if path is non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envAppURL); v != "" {
		cfg.AppServiceURL = v
	}
	if v := os.Getenv(envCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}
