// Package repomanager provides a concrete RepositoryManager for PostgreSQL
// and SQLite, wiring together repository constructors, connection opening
// and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/failseed/internal/dbx"
	"github.com/dmitrijs2005/failseed/internal/server/migrations"
	"github.com/dmitrijs2005/failseed/internal/server/repositories/entries"
	"github.com/dmitrijs2005/failseed/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/failseed/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager vends SQL repository implementations for one dialect
// and exposes a schema migration hook.
type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db, m.dialect)
}

// RefreshTokens returns a refreshtokens.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewSQLRepository(db, m.dialect)
}

// Entries returns an entries.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Entries(db dbx.DBTX) entries.Repository {
	return entries.NewSQLRepository(db, m.dialect)
}

// Dialect reports the SQL dialect the manager was built for.
func (m *SQLRepositoryManager) Dialect() dbx.Dialect {
	return m.dialect
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// RunMigrations sets up goose with the embedded migrations for the
// manager's dialect and runs them against the provided connection.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, migrationsDir(m.dialect)); err != nil {
		return err
	}
	return nil
}

func migrationsDir(d dbx.Dialect) string {
	if d == dbx.SQLite {
		return "sqlite"
	}
	return "postgres"
}

// NewSQLRepositoryManager constructs a RepositoryManager for the dialect.
func NewSQLRepositoryManager(dialect dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}

// Open connects to the database behind dsn and pings it. SQLite connections
// are limited to one so in-memory databases stay shared and writes serialize.
func Open(ctx context.Context, dialect dbx.Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == dbx.SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}
