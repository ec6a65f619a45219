package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the schema migrations shipped with kwai.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
)`

// Migration is a single SQL file. Version is the file name without the .sql
// extension; files are applied in lexical order.
type Migration struct {
	Version   string
	AppliedAt *time.Time
}

// Applied reports whether the migration is recorded in schema_migrations.
func (m Migration) Applied() bool {
	return m.AppliedAt != nil
}

// Migrator applies migrations from a filesystem and records them in the
// schema_migrations table.
type Migrator struct {
	db    *sql.DB
	files fs.FS
}

// NewMigrator creates a migrator for the given migrations. A nil files uses
// the embedded migrations.
func NewMigrator(db *sql.DB, files fs.FS) *Migrator {
	if files == nil {
		files = Migrations()
	}
	return &Migrator{db: db, files: files}
}

// Status lists every migration file with the time it was applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	versions, err := m.versions()
	if err != nil {
		return nil, err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(versions))
	for _, version := range versions {
		migration := Migration{Version: version}
		if at, ok := applied[version]; ok {
			migration.AppliedAt = &at
		}
		migrations = append(migrations, migration)
	}
	return migrations, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns the versions it applied. It stops at the first failing migration.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	migrations, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, migration := range migrations {
		if migration.Applied() {
			continue
		}
		if err := m.apply(ctx, migration.Version); err != nil {
			return done, err
		}
		done = append(done, migration.Version)
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, version string) error {
	content, err := fs.ReadFile(m.files, version+".sql")
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", version, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", version, err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]time.Time, error) {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version string
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = at
	}
	return applied, rows.Err()
}

func (m *Migrator) versions() ([]string, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		versions = append(versions, strings.TrimSuffix(entry.Name(), ".sql"))
	}
	sort.Strings(versions)
	return versions, nil
}
