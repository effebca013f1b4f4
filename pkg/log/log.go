// Package log provides the leveled diagnostic logger used by every sahttp
// component. Components take a *slog.Logger; Debug, Warn and Error are the only
// levels they emit, and the source location of the call is attached to each record.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
)

type LogLevel = slog.Level

const (
	DebugLevel = slog.LevelDebug
	InfoLevel  = slog.LevelInfo
	WarnLevel  = slog.LevelWarn
	ErrorLevel = slog.LevelError
)

// Option is a logger option.
type Option func(*options)

type options struct {
	level LogLevel
	json  bool
	w     io.Writer
}

func defaultOptions() *options {
	return &options{
		level: WarnLevel,
		w:     os.Stderr,
	}
}

// WithLevel sets the minimum level. The default is WarnLevel.
func WithLevel(level LogLevel) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithJSON switches the handler to JSON output.
func WithJSON() Option {
	return func(o *options) {
		o.json = true
	}
}

// WithWriter sets the destination. The default is stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.w = w
	}
}

// New builds a logger without touching the process default.
func New(opts ...Option) *slog.Logger {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	replace := func(groups []string, a slog.Attr) slog.Attr {
		// Remove the directory from the source's filename.
		if a.Key == slog.SourceKey {
			if s, ok := a.Value.Any().(*slog.Source); ok {
				s.File = filepath.Base(s.File)
			}
		}
		return a
	}
	hopts := &slog.HandlerOptions{
		AddSource:   true,
		Level:       o.level,
		ReplaceAttr: replace,
	}
	if o.json {
		return slog.New(slog.NewJSONHandler(o.w, hopts))
	}
	return slog.New(slog.NewTextHandler(o.w, hopts))
}

// Init installs a logger built from opts as the slog default.
func Init(opts ...Option) *slog.Logger {
	l := New(opts...)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps "debug", "info", "warn" and "error" to a level.
func ParseLevel(s string) (LogLevel, error) {
	var l slog.Level
	if s == "" {
		return WarnLevel, nil
	}
	err := l.UnmarshalText([]byte(s))
	return l, err
}

// FromLogr routes diagnostics into a logr sink.
func FromLogr(l logr.Logger) *slog.Logger {
	return slog.New(logr.ToSlogHandler(l))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// OrDefault returns l, or the process default when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
