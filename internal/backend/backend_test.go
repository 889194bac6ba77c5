package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"retailcast/internal/auth"
	"retailcast/internal/config"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpenMemory(t *testing.T) {
	stores, err := Open(context.Background(), Options{Kind: Memory}, quiet)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stores.Close()

	if stores.Exports != nil {
		t.Error("memory backend should keep no export log")
	}
	if err := stores.Ready(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := stores.Users.CreateUser(context.Background(), auth.User{Username: "a", PasswordHash: []byte("h")}); err != nil {
		t.Fatal(err)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	stores, err := Open(context.Background(), Options{Kind: SQLite, SQLitePath: path}, quiet)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer stores.Close()

	if stores.Kind != SQLite || stores.Exports == nil {
		t.Fatalf("sqlite stores = %+v", stores)
	}
	if err := stores.Ready(context.Background()); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	svc := auth.NewService(stores.Users, auth.WithBcryptCost(4))
	if _, err := svc.Signup(context.Background(), "alice", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Signup(context.Background(), "alice", "pw"); !errors.Is(err, auth.ErrUserExists) {
		t.Fatalf("duplicate signup = %v", err)
	}
	if err := stores.Exports.RecordExport(context.Background(), "alice", "pdf", "/tmp/x.pdf"); err != nil {
		t.Fatalf("RecordExport() error = %v", err)
	}
}

func TestOpenRejectsInvalid(t *testing.T) {
	for _, opts := range []Options{{Kind: "sheets"}, {Kind: SQLite}} {
		if _, err := Open(context.Background(), opts, quiet); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestOptionsFrom(t *testing.T) {
	got, err := OptionsFrom(&config.Config{UserBackend: "sqlite", SQLiteDBPath: "x.db"})
	if err != nil || got.Kind != SQLite || got.SQLitePath != "x.db" {
		t.Fatalf("OptionsFrom() = %+v, %v", got, err)
	}
	if _, err := OptionsFrom(&config.Config{UserBackend: "sheets"}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown backend error = %v", err)
	}
	if _, err := OptionsFrom(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
