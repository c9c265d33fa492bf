package db

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/livinlefevreloca/questwatch/tools/migrator"
)

// Migrations holds the versioned schema applied by tools/migrator.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsRoot is the directory inside Migrations holding the .sql files.
const MigrationsRoot = "migrations"

// DB wraps sql.DB with additional context
type DB struct {
	*sql.DB
}

// Tx wraps sql.Tx with additional context
type Tx struct {
	*sql.Tx
	db *DB
}

// Config holds database connection configuration
type Config struct {
	Driver          string        `toml:"driver"`
	DSN             string        `toml:"dsn"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `toml:"conn_max_idle_time"`

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir  string `toml:"migrations_dir"`
	SkipMigrations bool   `toml:"skip_migrations"`
}

// Open creates a new database connection
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer. One connection also keeps an in-memory
	// database alive for the lifetime of the handle.
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Every commit reaches stable storage before returning
	if driver == "sqlite3" {
		if _, err := db.Exec("PRAGMA synchronous = FULL"); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &DB{DB: db}, nil
}

// OpenWithConfig creates a connection with custom configuration
func OpenWithConfig(config Config) (*DB, error) {
	db, err := Open(config.Driver, config.DSN)
	if err != nil {
		return nil, err
	}

	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	return db, nil
}

// Migrate brings the schema up to date. The embedded migrations are used
// unless config.MigrationsDir points elsewhere.
func (db *DB) Migrate(config Config) error {
	if config.SkipMigrations {
		return nil
	}

	var fsys fs.FS = Migrations
	dir := MigrationsRoot
	if config.MigrationsDir != "" {
		fsys = os.DirFS(config.MigrationsDir)
		dir = "."
	}

	return migrator.RunMigrations(db.DB, fsys, dir)
}

// Begin starts a new transaction
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &Tx{
		Tx: tx,
		db: db,
	}, nil
}

// WithTransaction executes a function within a transaction
// Automatically commits on success, rolls back on error
func (db *DB) WithTransaction(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	// Make sure we make a best effort to rollback on panic
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Error classification functions

// IsDuplicate checks if error is a duplicate key error
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "UNIQUE constraint failed") ||
		strings.Contains(errMsg, "PRIMARY KEY constraint failed")
}
