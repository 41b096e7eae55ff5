package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), Options{DSN: path})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q, want %q", s.Driver(), DriverSQLite)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := Open(ctx, Options{DSN: path})
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(ctx, Options{DSN: path})
	require.NoError(t, err)
	defer s.Close()

	tables := []string{"xapi_schema_version", "xapi_actors", "xapi_statements", "xapi_attachments", "xapi_statement_attachments"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}

	var versions int
	require.NoError(t, s.db.Get(&versions, "SELECT COUNT(*) FROM xapi_schema_version"))
	assert.Equal(t, 1, versions, "exactly one version row")
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	var journal string
	require.NoError(t, s.db.Get(&journal, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", journal)

	var foreignKeys int
	require.NoError(t, s.db.Get(&foreignKeys, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, foreignKeys)
}

func TestOpen_MigratesVersion1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := Open(ctx, Options{DSN: path})
	require.NoError(t, err)
	// Simulate a database created before the account index existed.
	_, err = s.db.Exec("DROP INDEX idx_actors_account")
	require.NoError(t, err)
	_, err = s.db.Exec("UPDATE xapi_schema_version SET version = 1")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening runs the schema file and the v2 migration; both are
	// idempotent and the recorded version must move to 2.
	s, err = Open(ctx, Options{DSN: path})
	require.NoError(t, err)
	defer s.Close()

	version, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	var name string
	err = s.db.Get(&name, "SELECT name FROM sqlite_master WHERE type='index' AND name='idx_actors_account'")
	assert.NoError(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(context.Background(), Options{DSN: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	id := mustSave(t, s, simpleStatement())
	_, err = s.Repository(1).FindByID(context.Background(), id)
	assert.NoError(t, err)
}

func TestOpen_RejectsBadOptions(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, Options{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
	assert.Contains(t, err.Error(), `unsupported driver "mysql"`)

	_, err = Open(ctx, Options{})
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestOpen_UnreachableDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "test.db")

	_, err := Open(context.Background(), Options{DSN: path})
	require.Error(t, err)
	assert.True(t, IsStoreUnavailable(err))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestClose_Twice(t *testing.T) {
	s, err := Open(context.Background(), Options{DSN: ":memory:"})
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close(), "closing twice is harmless")
}
