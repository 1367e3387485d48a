package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"leaderbot/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver(string(DriverSQLite), sqlx.QUESTION)
}

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver        `json:"driver" yaml:"driver" env:"LEADERBOT_SQL_DRIVER"`
	DSN             string        `json:"dsn" yaml:"dsn" env:"LEADERBOT_SQL_DSN"`
	Table           string        `json:"table" yaml:"table" env:"LEADERBOT_SQL_TABLE"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" env:"LEADERBOT_SQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" env:"LEADERBOT_SQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" env:"LEADERBOT_SQL_CONN_MAX_LIFETIME"`
}

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "leaderboards"

// DefaultConfig returns defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		Table:           DefaultTable,
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the driver and table name.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Table != "" && !tableName.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	return nil
}

// Store keeps one row per leaderboard and year:
//
//	leaderboards(leaderboard_id, year, data, last_error, updated_at)
//
// data holds the JSON snapshot and is NULL until the first save.
type Store struct {
	db     *sqlx.DB
	driver Driver
	table  string
}

// New opens a connection pool and checks it.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("sql dsn is required")
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	s := NewWithDB(db, cfg.Driver)
	if cfg.Table != "" {
		s.table = cfg.Table
	}
	return s, nil
}

// NewWithDB wraps an existing pool (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver, table: DefaultTable}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return core.Unavailable("ping", "", err)
	}
	return nil
}

func rowKey(id core.LeaderboardID, year int) string {
	return fmt.Sprintf("%d/%d", id, year)
}

// Migrate creates the table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case DriverPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
	leaderboard_id BIGINT NOT NULL,
	year INTEGER NOT NULL,
	data TEXT,
	last_error TEXT,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (leaderboard_id, year)
)`
	case DriverMySQL:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
	leaderboard_id BIGINT NOT NULL,
	year INT NOT NULL,
	data LONGTEXT,
	last_error VARCHAR(128),
	updated_at DATETIME(6) NOT NULL,
	PRIMARY KEY (leaderboard_id, year)
)`
	case DriverSQLite:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
	leaderboard_id INTEGER NOT NULL,
	year INTEGER NOT NULL,
	data TEXT,
	last_error TEXT,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (leaderboard_id, year)
)`
	default:
		return fmt.Errorf("unsupported driver %q", s.driver)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(ddl, s.table)); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when none was saved yet.
func (s *Store) Load(ctx context.Context, id core.LeaderboardID, year int) (*core.Leaderboard, error) {
	key := rowKey(id, year)
	query := s.db.Rebind(fmt.Sprintf("SELECT data FROM %s WHERE leaderboard_id = ? AND year = ?", s.table))

	var data sql.NullString
	if err := s.db.GetContext(ctx, &data, query, int64(id), year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, core.Unavailable("load", key, err)
	}
	if !data.Valid {
		return nil, nil
	}

	return core.DecodeSnapshot("load", key, []byte(data.String), year)
}

func (s *Store) upsertSnapshot() string {
	if s.driver == DriverMySQL {
		return fmt.Sprintf("INSERT INTO %s (leaderboard_id, year, data, last_error, updated_at) VALUES (?, ?, ?, NULL, ?) "+
			"ON DUPLICATE KEY UPDATE data = VALUES(data), last_error = NULL, updated_at = VALUES(updated_at)", s.table)
	}
	return s.db.Rebind(fmt.Sprintf("INSERT INTO %s (leaderboard_id, year, data, last_error, updated_at) VALUES (?, ?, ?, NULL, ?) "+
		"ON CONFLICT (leaderboard_id, year) DO UPDATE SET data = excluded.data, last_error = NULL, updated_at = excluded.updated_at", s.table))
}

func (s *Store) upsertLastError() string {
	if s.driver == DriverMySQL {
		return fmt.Sprintf("INSERT INTO %s (leaderboard_id, year, data, last_error, updated_at) VALUES (?, ?, NULL, ?, ?) "+
			"ON DUPLICATE KEY UPDATE last_error = VALUES(last_error)", s.table)
	}
	return s.db.Rebind(fmt.Sprintf("INSERT INTO %s (leaderboard_id, year, data, last_error, updated_at) VALUES (?, ?, NULL, ?, ?) "+
		"ON CONFLICT (leaderboard_id, year) DO UPDATE SET last_error = excluded.last_error", s.table))
}

// Save upserts the snapshot and clears the last error.
func (s *Store) Save(ctx context.Context, id core.LeaderboardID, year int, lb *core.Leaderboard) error {
	key := rowKey(id, year)
	if lb == nil {
		return &core.StorageError{Op: "save", Key: key, Err: errors.New("nil leaderboard")}
	}
	data, err := json.Marshal(lb)
	if err != nil {
		return &core.StorageError{Op: "save", Key: key, Err: err}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.Unavailable("save", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.upsertSnapshot(), int64(id), year, string(data), time.Now().UTC()); err != nil {
		return core.Unavailable("save", key, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Unavailable("save", key, err)
	}
	return nil
}

// RecordError stores the kind of the last failed cycle without touching the snapshot.
func (s *Store) RecordError(ctx context.Context, id core.LeaderboardID, year int, kind string) error {
	key := rowKey(id, year)
	var value sql.NullString
	if kind != "" {
		value = sql.NullString{String: kind, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, s.upsertLastError(), int64(id), year, value, time.Now().UTC()); err != nil {
		return core.Unavailable("record_error", key, err)
	}
	return nil
}

func (s *Store) LastError(ctx context.Context, id core.LeaderboardID, year int) (string, error) {
	key := rowKey(id, year)
	query := s.db.Rebind(fmt.Sprintf("SELECT last_error FROM %s WHERE leaderboard_id = ? AND year = ?", s.table))
	var kind sql.NullString
	if err := s.db.GetContext(ctx, &kind, query, int64(id), year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", core.Unavailable("last_error", key, err)
	}
	return kind.String, nil
}
