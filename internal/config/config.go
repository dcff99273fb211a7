// Package config loads the gateway process's configuration: which symbols
// to run, the per-symbol dispatcher queue depth, the default snapshot
// depth, and the TCP listen address. It follows
// 0xtitan6-polymarket-mm/internal/config/config.go's pattern of a
// mapstructure-tagged struct loaded by viper with environment overrides,
// adapted from that bot's YAML+wallet-secrets shape to this process's much
// smaller surface.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level gateway configuration.
type Config struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ListenConfig controls the TCP gateway's bind address.
type ListenConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// EngineConfig controls the matching engine's symbol set and dispatcher
// sizing.
type EngineConfig struct {
	Symbols            []string `mapstructure:"symbols"`
	CommandQueueDepth  int      `mapstructure:"command_queue_depth"`
	DefaultSnapshotLen int      `mapstructure:"default_snapshot_depth"`
}

// LoggingConfig controls zerolog's global level and format.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func defaults() Config {
	return Config{
		Listen: ListenConfig{Address: "0.0.0.0", Port: 9001},
		Engine: EngineConfig{
			Symbols:            []string{"BTC-USD"},
			CommandQueueDepth:  256,
			DefaultSnapshotLen: 10,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from path if it exists, falling back to
// built-in defaults for anything unset, with EMBER_* environment variables
// overriding either. A missing config file is not an error: the process is
// expected to run with defaults plus env vars in most deployments.
func Load(path string) (Config, error) {
	v := viper.New()
	cfg := defaults()
	v.SetDefault("listen.address", cfg.Listen.Address)
	v.SetDefault("listen.port", cfg.Listen.Port)
	v.SetDefault("engine.symbols", cfg.Engine.Symbols)
	v.SetDefault("engine.command_queue_depth", cfg.Engine.CommandQueueDepth)
	v.SetDefault("engine.default_snapshot_depth", cfg.Engine.DefaultSnapshotLen)
	v.SetDefault("logging.level", cfg.Logging.Level)

	v.SetEnvPrefix("EMBER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
