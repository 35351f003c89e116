package hxpage

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Missing slot policies.
const (
	MissingSlotEmpty = "empty"
	MissingSlotFail  = "fail"
)

// Config is the engine configuration. It is built once at startup, handed to
// NewPipeline and never modified afterwards.
type Config struct {
	DefaultLayout  string        `mapstructure:"default_layout"`
	MaxDepth       int           `mapstructure:"max_depth"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MissingSlot    string        `mapstructure:"missing_slot"`
	ShowErrors     bool          `mapstructure:"show_errors"`
	PartialRender  bool          `mapstructure:"partial_render"`
	Serializer     string        `mapstructure:"serializer"`
	Cache          CacheConfig   `mapstructure:"cache"`
	Log            LogConfig     `mapstructure:"log"`
}

// CacheConfig switches the widget cache globally or per widget.
type CacheConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Disabled []string `mapstructure:"disabled"`
}

// LogConfig configures the zap logger built by NewLogger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		MaxDepth:      16,
		MissingSlot:   MissingSlotEmpty,
		PartialRender: true,
		Serializer:    "json",
		Cache:         CacheConfig{Enabled: true},
		Log:           LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig reads configuration from path (yaml, json or toml by
// extension) layered over DefaultConfig. Environment variables prefixed with
// HXPAGE_ override file values, e.g. HXPAGE_CACHE_ENABLED=false.
// An empty path reads defaults and environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("default_layout", def.DefaultLayout)
	v.SetDefault("max_depth", def.MaxDepth)
	v.SetDefault("max_concurrency", def.MaxConcurrency)
	v.SetDefault("fetch_timeout", def.FetchTimeout)
	v.SetDefault("missing_slot", def.MissingSlot)
	v.SetDefault("show_errors", def.ShowErrors)
	v.SetDefault("partial_render", def.PartialRender)
	v.SetDefault("serializer", def.Serializer)
	v.SetDefault("cache.enabled", def.Cache.Enabled)
	v.SetDefault("cache.disabled", def.Cache.Disabled)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix("HXPAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("hxpage: read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("hxpage: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks option values.
func (c Config) Validate() error {
	switch c.MissingSlot {
	case "", MissingSlotEmpty, MissingSlotFail:
	default:
		return &ConfigurationError{Reason: "missing_slot", Err: fmt.Errorf("unknown policy %q", c.MissingSlot)}
	}
	if c.MaxDepth < 0 {
		return &ConfigurationError{Reason: "max_depth", Err: fmt.Errorf("must not be negative, got %d", c.MaxDepth)}
	}
	if c.MaxConcurrency < 0 {
		return &ConfigurationError{Reason: "max_concurrency", Err: fmt.Errorf("must not be negative, got %d", c.MaxConcurrency)}
	}
	switch c.Serializer {
	case "", "json", "msgpack":
	default:
		return &ConfigurationError{Reason: "serializer", Err: fmt.Errorf("unknown serializer %q", c.Serializer)}
	}
	return nil
}

// CacheEnabled reports whether the named widget may use the cache. The
// widget's own policy must also allow it.
func (c Config) CacheEnabled(widget string) bool {
	return c.Cache.Enabled && !slices.Contains(c.Cache.Disabled, widget)
}
