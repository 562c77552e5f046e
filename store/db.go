package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	DefaultRetryBudget    = 10
	DefaultConnectTimeout = 5 * time.Second
	DefaultMaxOpenConns   = 4
)

// Config describes how to reach the backing store.
type Config struct {
	Driver         string
	DSN            string
	MaxOpenConns   int
	ConnectTimeout time.Duration
	RetryBudget    int
}

// DefaultConfig points at an embedded sqlite file in the working directory.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverSQLite,
		DSN:            "file:painpoint.db?_busy_timeout=5000",
		MaxOpenConns:   DefaultMaxOpenConns,
		ConnectTimeout: DefaultConnectTimeout,
		RetryBudget:    DefaultRetryBudget,
	}
}

// Open builds the connection pool for cfg. It does not connect: reachability
// is decided per call by the Provider, so a store that is down at startup
// does not prevent the service from starting.
func Open(cfg Config) (*bun.DB, error) {
	var dialect schema.Dialect
	switch cfg.Driver {
	case DriverSQLite:
		dialect = sqlitedialect.New()
	case DriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	return bun.NewDB(sqldb, dialect), nil
}
