// Package log wraps log/slog with component tagging and request-scoped loggers.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a slog.Logger whose records always carry a component attribute.
// The embedded logger is already tagged; base is kept untagged so the
// component can be swapped without stacking attributes.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	// JSON switches the default text handler to JSON output.
	JSON   bool
	Output io.Writer
	// Handler overrides Level, JSON and Output when set.
	Handler slog.Handler
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Output:    os.Stdout,
	}
}

func New(cfg Config) *Logger {
	h := cfg.Handler
	if h == nil {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: cfg.Level}
		if cfg.JSON {
			h = slog.NewJSONHandler(out, opts)
		} else {
			h = slog.NewTextHandler(out, opts)
		}
	}
	component := cfg.Component
	if component == "" {
		component = ComponentApp
	}
	return wrap(slog.New(h), component)
}

func wrap(base *slog.Logger, component string) *Logger {
	return &Logger{
		Logger:    base.With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// With adds attributes that survive a later WithComponent.
func (l *Logger) With(args ...any) *Logger {
	return wrap(l.base.With(args...), l.component)
}

func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.base, component)
}

// Slog returns the tagged logger for packages that take a plain *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault installs the untagged logger as the slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.base)
}
