// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ekoaw/phraseaudio/internal/dbx"
	"github.com/ekoaw/phraseaudio/internal/server/migrations"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/audiofiles"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/phrases"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Phrases returns a phrases.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Phrases(db dbx.DBTX) phrases.Repository {
	return phrases.NewPostgresRepository(db)
}

// AudioFiles returns the ledger repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) AudioFiles(db dbx.DBTX) audiofiles.Repository {
	return audiofiles.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
