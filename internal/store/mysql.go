package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	errDuplicateEntry = 1062
	errDeadlock       = 1213
	errLockWait       = 1205

	maxTxAttempts = 3
)

type Config struct {
	DSN                string
	Automigrate        bool
	MaxOpenConnections int
	MaxIdleConnections int
}

// MySQLStore owns the connection pool. Repositories for each table group are
// handed out by the accessor methods.
type MySQLStore struct {
	db *sqlx.DB
}

// New connects, pings and optionally applies the embedded migrations.
func New(ctx context.Context, cfg Config) (*MySQLStore, error) {
	d, err := sqlx.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("couldn't open database: %w", err)
	}
	if cfg.MaxOpenConnections > 0 {
		d.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		d.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	d.SetConnMaxLifetime(5 * time.Minute)
	d.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.PingContext(pingCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Automigrate {
		slog.Default().InfoContext(ctx, "applying migrations")
		if err := Migrate(d.DB); err != nil {
			d.Close()
			return nil, err
		}
	}

	return &MySQLStore{db: d}, nil
}

// NewWithDB wraps an existing pool, e.g. one opened by a CLI command.
func NewWithDB(db *sqlx.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (ms *MySQLStore) Close() error {
	return ms.db.Close()
}

func (ms *MySQLStore) DB() DB {
	return ms.db
}

// SQL exposes the raw pool for the migration runner.
func (ms *MySQLStore) SQL() *sql.DB {
	return ms.db.DB
}

//go:embed sql
var fs embed.FS

func migrationSource() *migrate.EmbedFileSystemMigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: fs,
		Root:       "sql",
	}
}

func Migrate(db *sql.DB) error {
	n, err := migrate.Exec(db, "mysql", migrationSource(), migrate.Up)
	if err != nil {
		return fmt.Errorf("db migrations have failed: %w", err)
	}
	slog.Default().Info("applied migrations", slog.Int("count", n))
	return nil
}

// Rollback reverts the last steps migrations and reports how many ran.
func Rollback(db *sql.DB, steps int) (int, error) {
	n, err := migrate.ExecMax(db, "mysql", migrationSource(), migrate.Down, steps)
	if err != nil {
		return n, fmt.Errorf("db rollback has failed: %w", err)
	}
	return n, nil
}

func isDuplicate(err error) bool {
	var e *mysql.MySQLError
	return errors.As(err, &e) && e.Number == errDuplicateEntry
}

func isRepeatable(err error) bool {
	var e *mysql.MySQLError
	return errors.As(err, &e) && (e.Number == errDeadlock || e.Number == errLockWait)
}

// tx runs f in a transaction, rolling back on error. Deadlocks are retried.
// f must return store errors unchanged or wrapped with %w.
func (ms *MySQLStore) tx(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		var t *sqlx.Tx
		t, err = ms.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		err = f(t)
		if err == nil {
			if err = t.Commit(); err == nil {
				return nil
			}
		}
		_ = t.Rollback()
		if !isRepeatable(err) {
			return err
		}
		slog.Default().WarnContext(ctx, "retrying transaction", slog.Int("attempt", attempt+1), slog.String("err", err.Error()))
	}
	return err
}
