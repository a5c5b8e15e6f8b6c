// Package db owns the relational backend handle.
//
// The hub runs against either an embedded sqlite file (development, small
// single-box deployments) or a client-server postgres instance. Both sit
// behind database/sql; stores write their queries once with `?` placeholders
// and the handle rebinds them for the active dialect. The handle is
// constructed at process start and closed by main — there is no lazily
// initialized global.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// TimeFormat is RFC3339 with fixed nanosecond width. Timestamps are stored as
// TEXT on both backends; the fixed width keeps lexicographic order equal to
// chronological order, which ORDER BY relies on. Read back with
// time.RFC3339Nano.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect identifies the active backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Handle wraps the sql.DB with the dialect knowledge stores need.
type Handle struct {
	DB      *sql.DB
	dialect Dialect
}

// Config selects and parameterizes the backend.
type Config struct {
	// DatabaseURL is a postgres DSN. When set, postgres is used.
	DatabaseURL string
	// SQLitePath is the embedded database file, used when DatabaseURL is
	// empty.
	SQLitePath string
}

// Open connects to the configured backend and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Handle, error) {
	var (
		handle *Handle
		err    error
	)
	if cfg.DatabaseURL != "" {
		handle, err = openPostgres(cfg.DatabaseURL)
	} else {
		handle, err = openSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := handle.DB.PingContext(ctx); err != nil {
		_ = handle.DB.Close()
		return nil, fmt.Errorf("ping %s backend: %w", handle.dialect, err)
	}
	return handle, nil
}

func openPostgres(dsn string) (*Handle, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Handle{DB: sqlDB, dialect: DialectPostgres}, nil
}

func openSQLite(path string) (*Handle, error) {
	if path == "" {
		path = "hub.db"
	}
	dsn := path + "?_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The embedded backend serializes writers; a single connection avoids
	// SQLITE_BUSY churn under concurrent transactions.
	sqlDB.SetMaxOpenConns(1)
	return &Handle{DB: sqlDB, dialect: DialectSQLite}, nil
}

// NewHandle wraps an existing sql.DB (integration tests supply their own).
func NewHandle(sqlDB *sql.DB, dialect Dialect) *Handle {
	return &Handle{DB: sqlDB, dialect: dialect}
}

func (h *Handle) Dialect() Dialect { return h.dialect }

// Close releases the underlying pool.
func (h *Handle) Close() error { return h.DB.Close() }

// Rebind converts `?` placeholders to the dialect's positional form.
// sqlite consumes `?` natively; postgres needs $1..$n.
func (h *Handle) Rebind(query string) string {
	if h.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// IsUniqueViolation reports whether err is a uniqueness constraint failure on
// either backend.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
