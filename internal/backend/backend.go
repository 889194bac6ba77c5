// Package backend opens the persistence selected by USER_BACKEND and hands
// its ports to the auth and export services.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"retailcast/internal/auth"
	"retailcast/internal/config"
	"retailcast/internal/export"
	"retailcast/internal/storage"
)

// Kind names a storage backend.
type Kind string

const (
	Memory Kind = "memory"
	SQLite Kind = "sqlite"
)

var ErrUnknownKind = errors.New("unknown backend")

// ParseKind maps a USER_BACKEND value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Memory, SQLite:
		return k, nil
	}
	return "", fmt.Errorf("%w %q: must be memory or sqlite", ErrUnknownKind, s)
}

// Stores are the ports a process needs from its backend.
type Stores struct {
	Kind  Kind
	Users auth.UserStore
	// Exports is nil when the backend keeps no export log.
	Exports export.Recorder
	Ready   func(ctx context.Context) error
	// Close releases the backend; it is never nil.
	Close func() error
}

// Options selects and locates a backend.
type Options struct {
	Kind       Kind
	SQLitePath string
}

// OptionsFrom reads the backend settings of the application config.
func OptionsFrom(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, errors.New("backend: nil config")
	}
	kind, err := ParseKind(cfg.UserBackend)
	if err != nil {
		return Options{}, err
	}
	return Options{Kind: kind, SQLitePath: cfg.SQLiteDBPath}, nil
}

func (o Options) validate() error {
	if _, err := ParseKind(string(o.Kind)); err != nil {
		return err
	}
	if o.Kind == SQLite && o.SQLitePath == "" {
		return errors.New("backend: sqlite needs a database path")
	}
	return nil
}

// Open builds the stores for opts. The sqlite backend runs migrations and
// logs the resulting schema version.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if opts.Kind == Memory {
		logger.InfoContext(ctx, "Using in-memory user store; accounts are lost on restart")
		return &Stores{
			Kind:  Memory,
			Users: auth.NewMemoryStore(),
			Ready: func(context.Context) error { return nil },
			Close: func() error { return nil },
		}, nil
	}

	store, err := storage.NewSQLiteStore(opts.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	version, dirty, err := storage.SchemaVersion(opts.SQLitePath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	logger.InfoContext(ctx, "Opened SQLite store",
		"db_path", opts.SQLitePath,
		"schema_version", version,
		"dirty", dirty)

	return &Stores{
		Kind:    SQLite,
		Users:   store,
		Exports: store,
		Ready:   store.Ping,
		Close:   store.Close,
	}, nil
}
