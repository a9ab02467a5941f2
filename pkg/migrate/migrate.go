// Package migrate applies the goose SQL migrations. The migrations ship
// embedded in every binary; a directory on disk is only needed to author new
// ones.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

// Dialects accepted by NewMigrator.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source returns the embedded migrations when dir is empty, otherwise the
// directory on disk.
func Source(dir string) fs.FS {
	if dir == "" {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Migrator runs goose commands against one database.
type Migrator struct {
	provider *goose.Provider
}

func NewMigrator(db *sql.DB, dialect string, migrations fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	var d goose.Dialect
	switch dialect {
	case "", DialectPostgres:
		d = goose.DialectPostgres
	case DialectSQLite:
		d = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unsupported goose dialect %q", dialect)
	}
	provider, err := goose.NewProvider(d, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending embedded migration.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	m, err := NewMigrator(db, dialect, Embedded())
	if err != nil {
		return err
	}
	_, err = m.Run(ctx, "up", "")
	return err
}

// Run executes command and returns the versions it touched. up-to, down-to
// and version take a target; version migrates up or down to reach it.
func (m *Migrator) Run(ctx context.Context, command, target string) ([]int64, error) {
	var results []*goose.MigrationResult
	var err error
	switch command {
	case "up":
		results, err = m.provider.Up(ctx)
	case "up-by-one":
		results, err = one(m.provider.UpByOne(ctx))
	case "down":
		results, err = one(m.provider.Down(ctx))
	case "redo":
		if results, err = one(m.provider.Down(ctx)); err == nil {
			results, err = one(m.provider.UpByOne(ctx))
		}
	case "up-to", "down-to", "version":
		results, err = m.toVersion(ctx, command, target)
	default:
		return nil, fmt.Errorf("unknown migrate command %q", command)
	}
	if err != nil {
		return nil, fmt.Errorf("goose %s: %w", command, err)
	}
	versions := make([]int64, 0, len(results))
	for _, r := range results {
		if r != nil && r.Source != nil {
			versions = append(versions, r.Source.Version)
		}
	}
	return versions, nil
}

func (m *Migrator) toVersion(ctx context.Context, command, target string) ([]*goose.MigrationResult, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS or 0): %w", target, err)
	}
	if command == "version" {
		current, err := m.appliedVersion(ctx)
		if err != nil {
			return nil, err
		}
		switch {
		case current == version:
			return nil, nil
		case current < version:
			command = "up-to"
		default:
			command = "down-to"
		}
	}
	if command == "up-to" {
		return m.provider.UpTo(ctx, version)
	}
	return m.provider.DownTo(ctx, version)
}

func (m *Migrator) appliedVersion(ctx context.Context) (int64, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return 0, err
	}
	var current int64
	for _, st := range statuses {
		if st.State == goose.StateApplied && st.Source.Version > current {
			current = st.Source.Version
		}
	}
	return current, nil
}

// Status lists every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return m.provider.Status(ctx)
}

func one(result *goose.MigrationResult, err error) ([]*goose.MigrationResult, error) {
	if result == nil {
		return nil, err
	}
	return []*goose.MigrationResult{result}, err
}
