package bucket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// Schema version tracking:
// 1 - orbit_bucket table
const currentSchemaVersion = 1

// SQL is a bucket stored in one table of a SQLite or Postgres database.
type SQL struct {
	db     *sql.DB
	driver Driver

	getQuery    string
	setQuery    string
	removeQuery string
}

// SQLiteOption configures OpenSQLite.
type SQLiteOption func(*sqliteConfig)

type sqliteConfig struct {
	driverName string
}

// WithPureGo selects the cgo-free modernc.org/sqlite driver instead of
// mattn/go-sqlite3.
func WithPureGo() SQLiteOption {
	return func(c *sqliteConfig) { c.driverName = "sqlite" }
}

// OpenSQLite creates or opens a SQLite bucket at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// Safe to call repeatedly on the same file.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQL, error) {
	cfg := sqliteConfig{driverName: "sqlite3"}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open(cfg.driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQL{
		db:          db,
		driver:      DriverSQLite,
		getQuery:    `SELECT payload FROM orbit_bucket WHERE key = ?`,
		setQuery:    `INSERT INTO orbit_bucket (key, payload) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`,
		removeQuery: `DELETE FROM orbit_bucket WHERE key = ?`,
	}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

// migrateSQLite applies incremental schema migrations based on user_version.
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS orbit_bucket (
			key     TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`)
		if err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// OpenPostgres connects to Postgres through the pgx database/sql driver and
// ensures the bucket table exists.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS orbit_bucket (
		key     TEXT PRIMARY KEY,
		payload BYTEA NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure bucket table: %w", err)
	}
	return &SQL{
		db:          db,
		driver:      DriverPostgres,
		getQuery:    `SELECT payload FROM orbit_bucket WHERE key = $1`,
		setQuery:    `INSERT INTO orbit_bucket (key, payload) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload`,
		removeQuery: `DELETE FROM orbit_bucket WHERE key = $1`,
	}, nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return payload, true, nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.setQuery, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.removeQuery, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Driver() Driver { return s.driver }

// DB exposes the underlying sql.DB for tests and diagnostics.
func (s *SQL) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
