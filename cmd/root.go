// Package cmd wires the CLI: flags, config resolution, and the serve command.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/grove-sh/grove/internal/config"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "grove",
	Short:   "A self-hosted project registry with git repositories",
	Long: `Grove is a small self-hosted code host: every project pairs a git
repository with a Python package index, so the same server that holds
the source also serves pip-installable releases.`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .grove/config.yaml or ~/.config/grove/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "",
		"data directory holding the database, repositories, and packages")
	rootCmd.PersistentFlags().Bool("debug", false,
		"enable debug logging")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Default()
	viper.SetDefault("data_dir", defaults.DataDir)
	viper.SetDefault("addr", defaults.Addr)
	viper.SetDefault("upstream_index", defaults.UpstreamIndex)
	viper.SetDefault("cache_ttl", defaults.CacheTTL)
	viper.SetDefault("debug", defaults.Debug)
	viper.SetDefault("watcher.enabled", defaults.Watcher.Enabled)
	viper.SetDefault("watcher.debounce", defaults.Watcher.Debounce)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	viper.SetEnvPrefix("GROVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .grove/config.yaml (current directory)
		// 2. ~/.config/grove/config.yaml (user config)
		if _, err := os.Stat(".grove/config.yaml"); err == nil {
			viper.SetConfigFile(".grove/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "grove"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .grove/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := filepath.Join(".grove", "config.yaml")
			if writeErr := config.WriteDefault(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
