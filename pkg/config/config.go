// Package config loads client settings from a YAML or TOML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/WhileEndless/go-sahttp/pkg/client"
	"github.com/WhileEndless/go-sahttp/pkg/constants"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/log"
)

// Duration is a time.Duration written as a string such as "3s" or "200ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty" toml:"level,omitempty"`
	// JSON switches to JSON log records.
	JSON bool `yaml:"json,omitempty" toml:"json,omitempty"`
}

type Config struct {
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty" toml:"connect_timeout,omitempty"`
	SendTimeout    Duration `yaml:"send_timeout,omitempty" toml:"send_timeout,omitempty"`
	ReceiveTimeout Duration `yaml:"receive_timeout,omitempty" toml:"receive_timeout,omitempty"`
	// ReadSize is the per-read cap in bytes.
	ReadSize     int    `yaml:"read_size,omitempty" toml:"read_size,omitempty"`
	MaxRedirects *int   `yaml:"max_redirects,omitempty" toml:"max_redirects,omitempty"`
	UserAgent    string `yaml:"user_agent,omitempty" toml:"user_agent,omitempty"`
	Log          Log    `yaml:"log,omitempty" toml:"log,omitempty"`
}

// Default returns the built-in settings.
func Default() *Config {
	redirects := constants.DefaultMaxRedirects
	return &Config{
		ConnectTimeout: Duration{constants.DefaultConnTimeout},
		SendTimeout:    Duration{constants.DefaultSendTimeout},
		ReceiveTimeout: Duration{constants.DefaultReceiveTimeout},
		ReadSize:       constants.DefaultReadSize,
		MaxRedirects:   &redirects,
		UserAgent:      constants.DefaultUserAgent,
		Log:            Log{Level: "warn"},
	}
}

// Load reads path over the defaults. The format follows the extension
// (.yaml, .yml or .toml). An empty path yields the defaults; a path that
// cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, errors.NewValidationError("unsupported config format " + ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ConnectTimeout.Duration < 0, c.SendTimeout.Duration < 0, c.ReceiveTimeout.Duration < 0:
		return errors.NewValidationError("timeouts must not be negative")
	case c.ReadSize < 0:
		return errors.NewValidationError("read_size must not be negative")
	case c.MaxRedirects != nil && *c.MaxRedirects < 0:
		return errors.NewValidationError("max_redirects must not be negative")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("unknown log level " + c.Log.Level)
	}
	return nil
}

// Logger builds the logger described by the log section.
func (c *Config) Logger(opts ...log.Option) *slog.Logger {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		level = log.WarnLevel
	}
	o := []log.Option{log.WithLevel(level)}
	if c.Log.JSON {
		o = append(o, log.WithJSON())
	}
	return log.New(append(o, opts...)...)
}

// Options converts the settings into client options.
func (c *Config) Options() []client.Option {
	opts := []client.Option{
		client.WithConnectTimeout(c.ConnectTimeout.Duration),
		client.WithSendTimeout(c.SendTimeout.Duration),
		client.WithReceiveTimeout(c.ReceiveTimeout.Duration),
		client.WithReadSize(c.ReadSize),
		client.WithUserAgent(c.UserAgent),
	}
	if c.MaxRedirects != nil {
		opts = append(opts, client.WithMaxRedirects(*c.MaxRedirects))
	}
	return opts
}
