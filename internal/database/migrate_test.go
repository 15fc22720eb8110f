package database

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrationRunner struct {
	upErr      error
	version    uint
	dirty      bool
	versionErr error
	closed     bool
}

func (f *fakeMigrationRunner) Up() error { return f.upErr }

func (f *fakeMigrationRunner) Version() (uint, bool, error) {
	return f.version, f.dirty, f.versionErr
}

func (f *fakeMigrationRunner) Close() (error, error) {
	f.closed = true
	return nil, nil
}

func stubMigrate(t *testing.T, runner *fakeMigrationRunner, gotSource *string) {
	t.Helper()
	orig := newMigrate
	t.Cleanup(func() { newMigrate = orig })
	newMigrate = func(sourceURL, databaseURL string) (migrationRunner, error) {
		if gotSource != nil {
			*gotSource = sourceURL
		}
		return runner, nil
	}
}

func TestNewMigrator_UsesFileSource(t *testing.T) {
	var source string
	stubMigrate(t, &fakeMigrationRunner{}, &source)

	m, err := NewMigrator("postgres://u:p@localhost:5432/db", "migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(source, "file://") || !strings.HasSuffix(source, "/migrations") {
		t.Fatalf("expected file source url, got %q", source)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestNewMigrator_OpenError(t *testing.T) {
	orig := newMigrate
	t.Cleanup(func() { newMigrate = orig })
	openErr := errors.New("no such dir")
	newMigrate = func(sourceURL, databaseURL string) (migrationRunner, error) {
		return nil, openErr
	}

	_, err := NewMigrator("dsn", "missing")
	if !errors.Is(err, openErr) {
		t.Fatalf("expected wrapped open error, got %v", err)
	}
}

func TestMigrator_UpIgnoresNoChange(t *testing.T) {
	stubMigrate(t, &fakeMigrationRunner{upErr: migrate.ErrNoChange}, nil)

	m, err := NewMigrator("dsn", "migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("expected ErrNoChange to be ignored, got %v", err)
	}
}

func TestMigrator_UpPropagatesErrors(t *testing.T) {
	upErr := errors.New("syntax error")
	stubMigrate(t, &fakeMigrationRunner{upErr: upErr}, nil)

	m, err := NewMigrator("dsn", "migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Up(); !errors.Is(err, upErr) {
		t.Fatalf("expected wrapped up error, got %v", err)
	}
}

func TestMigrator_VersionNilIsZero(t *testing.T) {
	stubMigrate(t, &fakeMigrationRunner{versionErr: migrate.ErrNilVersion}, nil)

	m, err := NewMigrator("dsn", "migrations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	version, dirty, err := m.Version()
	if err != nil || version != 0 || dirty {
		t.Fatalf("expected clean zero version, got %d %v %v", version, dirty, err)
	}
}
