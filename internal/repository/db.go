package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and column types.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// DB is the ledger database handle.
type DB struct {
	*sql.DB
	Dialect Dialect

	pool *pgxpool.Pool
}

// NewDB wraps an existing handle, e.g. one from sqlmock.
func NewDB(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, Dialect: dialect}
}

// IsPostgresDSN reports whether dsn should be opened with pgx.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to Postgres (postgres:// DSNs, through a pgx pool) or opens a
// SQLite file, then applies migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	var db *DB
	if IsPostgresDSN(cfg.DSN) {
		logger.Info("connecting to ledger database", "dialect", "postgres")
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("failed to parse ledger dsn", "error", err)
			return nil, err
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		if cfg.MaxConnLifetime > 0 {
			pc.MaxConnLifetime = cfg.MaxConnLifetime
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "consultation-extract"

		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dctx, pc)
		if err != nil {
			logger.Error("failed to connect to ledger database", "error", err)
			return nil, err
		}
		db = &DB{DB: stdlib.OpenDBFromPool(pool), Dialect: DialectPostgres, pool: pool}
	} else {
		logger.Info("opening ledger database", "dialect", "sqlite", "path", cfg.DSN)
		sqldb, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one writer; also keeps ":memory:" databases on a single connection
		sqldb.SetMaxOpenConns(1)
		db = &DB{DB: sqldb, Dialect: DialectSQLite}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := HealthCheck(ctx, db, cfg.DialTimeout, logger); err != nil {
		db.Close(logger)
		return nil, err
	}
	if err := Migrate(ctx, db, logger); err != nil {
		db.Close(logger)
		return nil, err
	}
	logger.Info("ledger database ready", "dialect", db.Dialect.String())
	return db, nil
}

// OpenInMemory opens a throwaway SQLite ledger.
func OpenInMemory(ctx context.Context, logger *slog.Logger) (*DB, error) {
	return Open(ctx, Config{DSN: ":memory:"}, logger)
}

// Close closes the database connections gracefully
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := d.DB.Close(); err != nil {
		logger.Error("failed to close ledger database", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	logger.Debug("ledger database closed")
}

// HealthCheck pings to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("ledger database ping failed", "error", err)
		return fmt.Errorf("ping ledger: %w", err)
	}
	return nil
}

// rebind turns ? placeholders into $n for Postgres.
func (d *DB) rebind(q string) string {
	if d.Dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
