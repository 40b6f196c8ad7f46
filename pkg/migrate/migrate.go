package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where `migrate -cmd=create` writes new files, relative to
// the repository root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps its dialect and base filesystem in package globals.
var gooseMu sync.Mutex

// Migrator applies the agreement and signing schema with goose. Binaries
// use the embedded copy; the CLI can point at a checkout instead.
type Migrator struct {
	db   *sql.DB
	fsys fs.FS
}

// New builds a Migrator. An empty dir selects the migrations compiled into
// the binary.
func New(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		sub, err := fs.Sub(embedded, "migrations")
		if err != nil {
			return nil, fmt.Errorf("embedded migrations: %w", err)
		}
		return &Migrator{db: db, fsys: sub}, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations dir %q: %w", dir, err)
	}
	return &Migrator{db: db, fsys: os.DirFS(dir)}, nil
}

func (m *Migrator) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(m.fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return fn()
}

// Run executes a goose command (up, down, status, redo, ...).
func (m *Migrator) Run(ctx context.Context, command string, args ...string) error {
	return m.with(func() error {
		if err := goose.RunContext(ctx, command, m.db, ".", args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// ToVersion moves the schema up or down to target (YYYYMMDDHHMMSS).
func (m *Migrator) ToVersion(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}

	return m.with(func() error {
		current, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == version:
			return nil
		case current < version:
			if err := goose.UpToContext(ctx, m.db, ".", version); err != nil {
				return fmt.Errorf("goose up-to %d: %w", version, err)
			}
		default:
			if err := goose.DownToContext(ctx, m.db, ".", version); err != nil {
				return fmt.Errorf("goose down-to %d: %w", version, err)
			}
		}
		return nil
	})
}

// SchemaState compares the applied version with the newest known migration.
type SchemaState struct {
	Current int64
	Latest  int64
}

func (s SchemaState) Behind() bool { return s.Current < s.Latest }
func (s SchemaState) Ahead() bool  { return s.Current > s.Latest }

// State reports how far the database is from the bundled migrations.
func (m *Migrator) State(ctx context.Context) (SchemaState, error) {
	var state SchemaState
	err := m.with(func() error {
		current, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		migrations, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
		if err != nil {
			return fmt.Errorf("collect migrations: %w", err)
		}
		last, err := migrations.Last()
		if err != nil {
			return fmt.Errorf("latest migration: %w", err)
		}
		state = SchemaState{Current: current, Latest: last.Version}
		return nil
	})
	return state, err
}
