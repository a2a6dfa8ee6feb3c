// Package config loads the haystack command configuration.
//
// Values are layered, later layers overriding earlier ones: built-in
// defaults, the haystack.yaml file, HAYSTACK_* environment variables and
// finally the command line flags that were explicitly set.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/pprados/haystackapi/internal/codec"
	"github.com/pprados/haystackapi/internal/filter"
	"github.com/pprados/haystackapi/internal/grid"
)

// Defaults.
const (
	DefaultFile       = "haystack.yaml"
	DefaultDB         = "haystack.db"
	DefaultMode       = "text"
	DefaultGridFormat = "zinc"
	DefaultTimezone   = "UTC"
	DefaultLogLevel   = "info"
	EnvPrefix         = "HAYSTACK_"
)

// Config holds the command configuration.
type Config struct {
	// DB is the SQLite database path of the versioned store.
	DB string `koanf:"db"`
	// Mode is the response envelope: "text" or "json".
	Mode string `koanf:"mode"`
	// GridFormat is the encoding of grids written to stdout.
	GridFormat      string `koanf:"grid_format"`
	FilterCacheSize int    `koanf:"filter_cache_size"`
	// Timezone is the Haystack zone used for date ranges and "today".
	Timezone string `koanf:"timezone"`
	LogLevel string `koanf:"log_level"`

	// File is the configuration file that was read, empty when none.
	File string `koanf:"-"`
}

// Load reads the configuration. cfgFile names the file explicitly; when
// empty, haystack.yaml is used if it exists in the working directory.
// flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"db":                DefaultDB,
		"mode":              DefaultMode,
		"grid_format":       DefaultGridFormat,
		"filter_cache_size": filter.DefaultCacheSize,
		"timezone":          DefaultTimezone,
		"log_level":         DefaultLogLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			used = DefaultFile
		}
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment: HAYSTACK_FILTER_CACHE_SIZE -> filter_cache_size
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			switch key {
			case "format":
				// --format picks the response envelope.
				return "mode", posflag.FlagVal(flags, f)
			case "verbose":
				if v, _ := flags.GetBool("verbose"); v {
					return "log_level", "debug"
				}
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every value that has a fixed domain.
func (c *Config) Validate() error {
	switch c.Mode {
	case "text", "json":
	default:
		return fmt.Errorf("invalid mode %q: must be text or json", c.Mode)
	}
	if _, err := codec.ParseFormat(c.GridFormat); err != nil {
		return fmt.Errorf("invalid grid_format: %w", err)
	}
	if c.FilterCacheSize <= 0 {
		return fmt.Errorf("invalid filter_cache_size %d: must be positive", c.FilterCacheSize)
	}
	if _, err := grid.LoadZone(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Location returns the configured zone.
func (c *Config) Location() *time.Location {
	loc, err := grid.LoadZone(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Format returns the configured grid encoding.
func (c *Config) Format() codec.Format {
	f, err := codec.ParseFormat(c.GridFormat)
	if err != nil {
		return codec.Zinc
	}
	return f
}

// Level returns the configured log level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
