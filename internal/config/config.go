// Package config loads server configuration by layering a YAML file,
// DISTKV_-prefixed environment variables, and command-line flags, using
// viper for the layering and pflag for the flag surface.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	GC          GCConfig          `mapstructure:"gc"`
	Log         LogConfig         `mapstructure:"log"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// GCConfig defines the parameters for the background active-expiration
// sweep that supplements lazy expiration.
type GCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`          // how often to run the background check
	SamplesPerCheck int           `mapstructure:"samples_per_check"` // how many keys to check per loop
	MatchThreshold  float64       `mapstructure:"match_threshold"`   // 0.0-1.0. if expired/scanned >= threshold, repeat immediately
}

// ServerConfig holds the network listen settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// StorageConfig configures the keyspace's internal sharding.
type StorageConfig struct {
	Shards uint `mapstructure:"shards"`
}

// LogConfig defines logging verbosity and output style.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// PersistenceConfig configures snapshot save/load.
type PersistenceConfig struct {
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

// SnapshotConfig configures the snapshot file collaborator: whether it's
// loaded/saved at all, where it lives, and an optional periodic
// auto-save cadence alongside the mandatory save-on-shutdown.
type SnapshotConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Filename       string `mapstructure:"filename"`
	SaveOnInterval string `mapstructure:"save_on_interval"`
}

// Load reads configuration from a YAML file under path (if present),
// then DISTKV_-prefixed environment variables, layered over defaults.
// Flags bound with BindFlags win over all of the above; call BindFlags
// before Load.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("DISTKV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// BindFlags registers the CLI flag surface on fs and binds each flag
// into viper so an explicitly-set flag overrides file and env values.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "listen host (overrides config/env)")
	fs.String("port", "", "listen port (overrides config/env)")
	fs.String("snapshot", "", "snapshot file path (overrides config/env)")

	viper.BindPFlag("server.host", fs.Lookup("host"))                       //nolint:errcheck
	viper.BindPFlag("server.port", fs.Lookup("port"))                       //nolint:errcheck
	viper.BindPFlag("persistence.snapshot.filename", fs.Lookup("snapshot")) //nolint:errcheck
}

// setDefaults populates viper with fallback values if they are not
// provided via file, env, or flag.
func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "6379")

	// Storage
	viper.SetDefault("storage.shards", 32)

	// GC
	viper.SetDefault("gc.enabled", true)
	viper.SetDefault("gc.interval", "100ms")
	viper.SetDefault("gc.samples_per_check", 20)
	viper.SetDefault("gc.match_threshold", 0.25)

	// Logger
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	// Persistence
	viper.SetDefault("persistence.snapshot.enabled", true)
	viper.SetDefault("persistence.snapshot.filename", "dump.dkv")
	viper.SetDefault("persistence.snapshot.save_on_interval", "")
}
