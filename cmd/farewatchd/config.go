package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment. A .env file in the working directory
// is loaded first when present.
type Config struct {
	HTTPAddr    string `env:"FAREWATCH_HTTP_ADDR" envDefault:":8080"`
	Secret      string `env:"FAREWATCH_SECRET,required"`
	DatabaseURL string `env:"FAREWATCH_DATABASE_URL"`
	RedisURL    string `env:"FAREWATCH_REDIS_URL"`

	SessionMaxAge time.Duration `env:"FAREWATCH_SESSION_MAX_AGE" envDefault:"24h"`
	CacheTTL      time.Duration `env:"FAREWATCH_CACHE_TTL" envDefault:"5m"`
	CacheSize     int           `env:"FAREWATCH_CACHE_SIZE" envDefault:"10000"`

	AdminEmail    string `env:"FAREWATCH_ADMIN_EMAIL"`
	AdminPassword string `env:"FAREWATCH_ADMIN_PASSWORD"`

	// LoginRate is login attempts per minute per client IP. Zero disables throttling.
	LoginRate  float64 `env:"FAREWATCH_LOGIN_RATE" envDefault:"10"`
	LoginBurst int     `env:"FAREWATCH_LOGIN_BURST" envDefault:"10"`

	SweepInterval time.Duration `env:"FAREWATCH_SWEEP_INTERVAL" envDefault:"15m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// ParseConfig reads the configuration from environ. A nil map reads the
// process environment.
func ParseConfig(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("FAREWATCH_ADMIN_EMAIL and FAREWATCH_ADMIN_PASSWORD must be set together")
	}
	if c.LoginRate < 0 || c.LoginBurst < 0 {
		return errors.New("login rate and burst must not be negative")
	}
	if c.SweepInterval < 0 {
		return errors.New("FAREWATCH_SWEEP_INTERVAL must not be negative")
	}
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: must be json or text", format)
	}
}
