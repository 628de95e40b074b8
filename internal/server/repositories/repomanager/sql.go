// Package repomanager provides concrete RepositoryManager implementations
// for PostgreSQL and SQLite, wiring repository constructors to database
// migrations (via goose). The repository SQL itself is driver-agnostic; only
// driver registration and the migration dialect differ.
package repomanager

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/avelats/polycat/internal/dbx"
	"github.com/avelats/polycat/internal/server/migrations"
	"github.com/avelats/polycat/internal/server/repositories/drafts"
	"github.com/avelats/polycat/internal/server/repositories/history"
	"github.com/avelats/polycat/internal/server/repositories/snapshots"
	"github.com/avelats/polycat/internal/server/repositories/variants"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager vends SQL-backed repositories and runs the embedded
// migrations for its dialect.
type SQLRepositoryManager struct {
	dialect      string
	migrationsFS fs.FS
	migrationDir string
}

// NewPostgresRepositoryManager constructs a manager for a pgx-driven
// PostgreSQL database.
func NewPostgresRepositoryManager() *SQLRepositoryManager {
	return &SQLRepositoryManager{
		dialect:      "pgx",
		migrationsFS: migrations.Postgres,
		migrationDir: "postgres",
	}
}

// NewSQLiteRepositoryManager constructs a manager for a modernc/sqlite
// database (local runs and tests).
func NewSQLiteRepositoryManager() *SQLRepositoryManager {
	return &SQLRepositoryManager{
		dialect:      "sqlite3",
		migrationsFS: migrations.SQLite,
		migrationDir: "sqlite",
	}
}

// Variants returns a variants.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Variants(db dbx.DBTX) variants.Repository {
	return variants.NewSQLRepository(db)
}

// Drafts returns a drafts.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Drafts(db dbx.DBTX) drafts.Repository {
	return drafts.NewSQLRepository(db)
}

// Snapshots returns a snapshots.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Snapshots(db dbx.DBTX) snapshots.Repository {
	return snapshots.NewSQLRepository(db)
}

// History returns a history.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) History(db dbx.DBTX) history.Repository {
	return history.NewSQLRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations points goose at the embedded migrations for this dialect and
// applies them against the provided database connection.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(m.migrationsFS)
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, m.migrationDir); err != nil {
		return err
	}
	return nil
}
