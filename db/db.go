package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned by the Get* methods when no row matches.
var ErrNotFound = fmt.Errorf("record not found: %w", sql.ErrNoRows)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Storage struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Open connects to the store. SQLite runs with a single connection since the
// file is locked per writer anyway.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	conn, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(20)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(30 * time.Minute)
	}
	return conn, nil
}

// DB exposes the underlying handle for migrations.
func (s *Storage) DB() *sqlx.DB {
	return s.db
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// insert runs an INSERT ... RETURNING id and returns the new id.
func (s *Storage) insert(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (int, error) {
	var id int
	if err := sqlx.GetContext(ctx, q, &id, s.db.Rebind(query+" RETURNING id"), args...); err != nil {
		return 0, err
	}
	return id, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
