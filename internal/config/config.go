// Package config provides configuration types and defaults for grove.
package config

import (
	"fmt"
	"time"

	"github.com/grove-sh/grove/internal/tracing"
)

// Config holds all configuration options for grove.
type Config struct {
	// DataDir is the root of the data layout: the metadata database, the
	// project repositories, and the artifact store all live under it.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`

	// Addr is the address the HTTP server listens on.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// UpstreamIndex is the package index unknown projects redirect to.
	UpstreamIndex string `mapstructure:"upstream_index" yaml:"upstream_index"`

	// CacheTTL bounds how stale the index listings may be.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	Watcher WatcherConfig  `mapstructure:"watcher" yaml:"watcher"`
	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing"`
}

// WatcherConfig holds artifact directory watcher options.
type WatcherConfig struct {
	// Enabled controls whether the artifact directory is watched for
	// out-of-band changes.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Debounce coalesces bursts of filesystem events.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DataDir:       "",
		Addr:          "localhost:8500",
		UpstreamIndex: "https://pypi.org/simple",
		CacheTTL:      30 * time.Second,
		Debug:         false,
		Watcher: WatcherConfig{
			Enabled:  true,
			Debounce: time.Second,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks the configuration for values the server cannot start with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	if c.Watcher.Debounce < 0 {
		return fmt.Errorf("watcher.debounce must not be negative")
	}
	return nil
}
