// Package config loads the deciduous configuration file.
//
// The file is TOML, read from $XDG_CONFIG_HOME/deciduous/config.toml
// (~/.config/deciduous/config.toml when XDG_CONFIG_HOME is unset) or from
// an explicit path. A missing file is not an error: [Default] applies.
//
//	[cache]
//	backend = "redis"          # file | redis | none
//	redis_addr = "localhost:6379"
//	ttl = "72h"
//
//	[render]
//	formats = ["svg", "png"]
//	embed = true
//
//	[server]
//	addr = ":8080"
//
//	[watch]
//	interval = "500ms"
//
// Command-line flags override values from the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the complete configuration.
type Config struct {
	Cache  CacheConfig  `toml:"cache"`
	Render RenderConfig `toml:"render"`
	Server ServerConfig `toml:"server"`
	Watch  WatchConfig  `toml:"watch"`
}

// CacheConfig selects and configures the layout cache.
type CacheConfig struct {
	Backend   string        `toml:"backend" validate:"oneof=file redis none"`
	Dir       string        `toml:"dir"`
	TTL       time.Duration `toml:"ttl" validate:"gte=0s"`
	RedisAddr string        `toml:"redis_addr" validate:"required_if=Backend redis"`
	// Namespace prefixes every cache key, for sharing one Redis instance.
	Namespace string `toml:"namespace" validate:"max=64"`
}

// RenderConfig sets the defaults of the render and watch commands.
type RenderConfig struct {
	Formats []string `toml:"formats" validate:"min=1,dive,oneof=dot svg png"`
	Embed   bool     `toml:"embed"`
}

// ServerConfig configures the HTTP preview host.
type ServerConfig struct {
	Addr string `toml:"addr" validate:"required,hostname_port"`
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64 `toml:"max_body_bytes" validate:"gt=0"`
}

// WatchConfig configures file polling.
type WatchConfig struct {
	Interval time.Duration `toml:"interval" validate:"gte=50ms"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Backend: BackendFile,
			TTL:     7 * 24 * time.Hour,
		},
		Render: RenderConfig{
			Formats: []string{"svg"},
			Embed:   true,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 1 << 20,
		},
		Watch: WatchConfig{
			Interval: 500 * time.Millisecond,
		},
	}
}

// DefaultPath returns the configuration file location using the XDG
// standard (~/.config/deciduous/config.toml).
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "deciduous", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "deciduous", "config.toml"), nil
}

// Load reads the file at path over [Default] and validates the result.
// When path is empty the [DefaultPath] is used, and a missing default file
// yields the defaults. An explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err) && !explicit:
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field constraint.
func (c Config) Validate() error {
	return formatValidationError(validate.Struct(c))
}

// formatValidationError reports the first failed constraint with its
// TOML-facing field path.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required", "required_if":
			return fmt.Errorf("%s: field is required", field)
		case "oneof":
			return fmt.Errorf("%s: %q is not one of [%s]", field, e.Value(), e.Param())
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return nil
}
