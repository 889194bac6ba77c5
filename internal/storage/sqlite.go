// Package storage is the SQLite persistence layer: users and the export log.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"retailcast/internal/auth"
)

type SQLiteStore struct {
	db *sql.DB
}

// ExportEntry is one file written by the exporter.
type ExportEntry struct {
	ID        int64
	Username  string
	Format    string
	Path      string
	CreatedAt time.Time
}

// NewSQLiteStore opens dbPath, creating its directory, and applies migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping is used by the readiness check.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u auth.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		u.Username, u.PasswordHash, created)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (auth.User, error) {
	var u auth.User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, created_at FROM users WHERE username = ?`, username).
		Scan(&u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// RecordExport appends a row to the export log.
func (s *SQLiteStore) RecordExport(ctx context.Context, username, format, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_log (username, format, path, created_at) VALUES (?, ?, ?, ?)`,
		username, format, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert export log: %w", err)
	}
	return nil
}

// ListExports returns a user's exports, newest first.
func (s *SQLiteStore) ListExports(ctx context.Context, username string, limit int) ([]ExportEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, format, path, created_at FROM export_log
		 WHERE username = ? ORDER BY id DESC LIMIT ?`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query export log: %w", err)
	}
	defer rows.Close()

	var out []ExportEntry
	for rows.Next() {
		var e ExportEntry
		if err := rows.Scan(&e.ID, &e.Username, &e.Format, &e.Path, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
