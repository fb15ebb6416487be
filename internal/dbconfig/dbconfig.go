// Package dbconfig loads the engine's on-disk configuration
// (config/db_config.json, config/logging_config.json — spec §6's
// on-disk layout) the way the teacher's internal/config package wraps
// viper: defaults set first, then overlaid by whatever file exists.
package dbconfig

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// StorageConfig controls the physical layout of a database (read once
// at Open; changing it requires reopening the database).
type StorageConfig struct {
	PageSize               int `mapstructure:"page_size"`
	PoolSize               int `mapstructure:"pool_size"`
	MaxTables              int `mapstructure:"max_tables"`
	MaxKeysPerNode         int `mapstructure:"max_keys_per_node"`
	BTreeLifetimeThreshold int `mapstructure:"btree_lifetime_threshold"`
	CascadeDepthLimit      int `mapstructure:"cascade_depth_limit"`
	ToastThreshold         int `mapstructure:"toast_threshold"`
	ToastChunkSize         int `mapstructure:"toast_chunk_size"`
}

// LoggingConfig controls the default Sink's verbosity; it may be
// reloaded live via fsnotify without reopening the database.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultStorageConfig mirrors the constants named throughout spec.md
// (§3 POOL_SIZE=32, §3 MAX_TABLES=256, §4.4 MAX_KEYS_PER_NODE=1000 /
// BTREE_LIFETIME_THRESHOLD=10, §5 CascadeCycle depth suggestion of 32).
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		PageSize:               8192,
		PoolSize:               32,
		MaxTables:              256,
		MaxKeysPerNode:         1000,
		BTreeLifetimeThreshold: 10,
		CascadeDepthLimit:      32,
		ToastThreshold:         2048,
		ToastChunkSize:         2000,
	}
}

// DefaultLoggingConfig is used when logging_config.json is absent.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info"}
}

// LoadStorageConfig reads config/db_config.json under root, overlaying
// DefaultStorageConfig with whatever keys the file sets.
func LoadStorageConfig(root string) (StorageConfig, error) {
	cfg := DefaultStorageConfig()
	v := viper.New()
	v.SetConfigName("db_config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, "config"))
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("pool_size", cfg.PoolSize)
	v.SetDefault("max_tables", cfg.MaxTables)
	v.SetDefault("max_keys_per_node", cfg.MaxKeysPerNode)
	v.SetDefault("btree_lifetime_threshold", cfg.BTreeLifetimeThreshold)
	v.SetDefault("cascade_depth_limit", cfg.CascadeDepthLimit)
	v.SetDefault("toast_threshold", cfg.ToastThreshold)
	v.SetDefault("toast_chunk_size", cfg.ToastChunkSize)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("dbconfig: read db_config.json: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("dbconfig: unmarshal db_config.json: %w", err)
	}
	return cfg, nil
}

// LoggingWatcher wraps a viper instance that live-reloads
// config/logging_config.json and invokes onChange with the newly
// parsed LoggingConfig whenever the file is written.
type LoggingWatcher struct {
	v *viper.Viper
}

// WatchLoggingConfig starts watching config/logging_config.json under
// root. onChange is also called once synchronously with the initial
// value. Safe to call with onChange == nil to just validate the file.
func WatchLoggingConfig(root string, onChange func(LoggingConfig)) (*LoggingWatcher, error) {
	v := viper.New()
	v.SetConfigName("logging_config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, "config"))
	def := DefaultLoggingConfig()
	v.SetDefault("level", def.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("dbconfig: read logging_config.json: %w", err)
		}
	}

	w := &LoggingWatcher{v: v}
	emit := func() {
		if onChange == nil {
			return
		}
		var cfg LoggingConfig
		if err := v.Unmarshal(&cfg); err != nil {
			cfg = def
		}
		onChange(cfg)
	}
	emit()

	v.OnConfigChange(func(fsnotify.Event) { emit() })
	v.WatchConfig()
	return w, nil
}

// ParseLevel maps a LoggingConfig.Level string to a slog.Level,
// defaulting to Info for unrecognised values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
