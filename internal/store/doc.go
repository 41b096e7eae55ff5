// Package store persists xAPI statements in a relational database.
//
// A Store owns the connection and schema. A Repository binds the store to
// one LRS and implements the statement operations:
//   - Save: writes a statement with its actor, object, result and
//     attachments in one transaction
//   - FindByID / FindVoidedByID: load one top-level statement
//   - FindBy / FindByParams: load the top-level statements matching a filter
//
// # Layout
//
// Statements, actors and attachments live in separate tables:
//   - xapi_actors: agents and groups; group members point at their group
//     and keep their position
//   - xapi_statements: one row per statement, sub-statements included
//     (is_sub_statement = 1); sub-statement rows are reachable only through
//     their parent
//   - xapi_attachments / xapi_statement_attachments: attachment metadata
//     and optional content, ordered per statement
//
// Language maps and extensions are stored as versioned canonical JSON
// (see package codec). Timestamps are stored as Unix microseconds, UTC.
//
// # Errors
//
// Every failure is an *Error carrying an ErrorKind. Callers branch with
// errors.Is against the Err* sentinels or the Is* helpers. DataIntegrity
// errors are logged at error level before they propagate.
//
// # Database Configuration
//
// SQLite (driver "sqlite3"):
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// PostgreSQL (driver "postgres") uses the same logical schema; queries are
// written with ? placeholders and rebound per driver.
package store
