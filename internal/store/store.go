package store

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xabbuh/studip-experience-api-plugin/internal/idgen"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Schema version tracking:
// 1 - Initial schema
// 2 - Added index on xapi_actors(account_name, account_home_page)
const currentSchemaVersion = 2

// Clock supplies the stored timestamp of saved statements.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Options configures Open. Only DSN is required.
type Options struct {
	// Driver is DriverSQLite (default) or DriverPostgres.
	Driver string

	// DSN is a SQLite path (or ":memory:") or a PostgreSQL connection string.
	DSN string

	// Logger receives operational and data-integrity logs.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records per-operation counters and latencies. Nil disables metrics.
	Metrics *Metrics

	// Clock assigns stored timestamps. Defaults to wall-clock time.
	Clock Clock

	// IDGenerator assigns ids to statements saved without one.
	// Defaults to idgen.UUIDGenerator.
	IDGenerator idgen.Generator
}

// Store provides durable storage for xAPI statements.
//
// A Store holds no per-statement state and is safe for concurrent use.
// Statements are read and written through a Repository bound to one LRS.
type Store struct {
	db      *sqlx.DB
	driver  string
	logger  *slog.Logger
	metrics *Metrics
	clock   Clock
	ids     idgen.Generator
}

// Open connects to the database and applies the schema and migrations.
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times on the same database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	const op = "open store"

	if opts.Driver == "" {
		opts.Driver = DriverSQLite
	}
	var schema string
	switch opts.Driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return nil, errInvalid(op, "unsupported driver %q", opts.Driver)
	}
	if opts.DSN == "" {
		return nil, errInvalid(op, "empty DSN")
	}

	db, err := sqlx.ConnectContext(ctx, opts.Driver, opts.DSN)
	if err != nil {
		return nil, errUnavailable(op, err)
	}

	if opts.Driver == DriverSQLite {
		// SQLite only supports one writer at a time, so limit connections.
		// This also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, errUnavailable(op, err)
		}
	}

	if err := applySchema(ctx, db, schema); err != nil {
		db.Close()
		return nil, errUnavailable(op, err)
	}

	s := &Store{
		db:      db,
		driver:  opts.Driver,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		ids:     opts.IDGenerator,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.ids == nil {
		s.ids = idgen.UUIDGenerator{}
	}

	s.logger.Debug("store opened", "driver", opts.Driver, "schema_version", currentSchemaVersion)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database handle.
// Use with caution - prefer Repository methods.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	version, err := readSchemaVersion(ctx, s.db)
	if err != nil {
		return 0, errUnavailable("schema version", err)
	}
	return version, nil
}

// Repository returns the statement repository of one LRS.
func (s *Store) Repository(lrsID int64) *Repository {
	return &Repository{store: s, lrsID: lrsID}
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sqlx.DB, schema string) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// readSchemaVersion returns 0 for a database that has no version row yet.
func readSchemaVersion(ctx context.Context, db sqlx.QueryerContext) (int, error) {
	var version int
	err := sqlx.GetContext(ctx, db, &version, "SELECT COALESCE(MAX(version), 0) FROM xapi_schema_version")
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}

// runMigrations applies incremental schema migrations based on the
// recorded schema version, in one transaction.
func runMigrations(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	version, err := readSchemaVersion(ctx, tx)
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}

	// Version 0 is a fresh database: the schema file is already current.
	if version == 1 {
		if err := migrateToV2(ctx, tx); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM xapi_schema_version"); err != nil {
		return fmt.Errorf("clear schema version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO xapi_schema_version (version) VALUES (?)"), currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return tx.Commit()
}

// migrateToV2 adds the account lookup index used by the agent filter.
// New databases get it from the schema file, but databases created at
// version 1 need it added explicitly.
func migrateToV2(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_actors_account
		ON xapi_actors(account_name, account_home_page)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}
