package store

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xabbuh/studip-experience-api-plugin/internal/testutil"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// createTestStore opens a fresh SQLite store with a deterministic clock
// and id generator.
func createTestStore(t *testing.T, opts ...func(*Options)) *Store {
	t.Helper()
	o := Options{
		DSN:         filepath.Join(t.TempDir(), "test.db"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:       testutil.NewDeterministicClock(),
		IDGenerator: testutil.NewSequentialIDGenerator(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	s, err := Open(context.Background(), o)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// withLogBuffer routes store logs into the returned buffer.
func withLogBuffer(buf *bytes.Buffer) func(*Options) {
	return func(o *Options) {
		o.Logger = slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func agent(mbox, name string) xapi.Agent {
	return xapi.Agent{IFI: xapi.WithMbox(xapi.IRI(mbox)), Name: name}
}

func activity(id string) xapi.Activity {
	return xapi.Activity{ID: xapi.IRI(id)}
}

// simpleStatement is the canonical agent/verb/activity statement.
func simpleStatement() xapi.Statement {
	return xapi.Statement{
		Actor:  agent("mailto:a@example.com", "A"),
		Verb:   xapi.Verb{ID: "http://example.com/verb/did"},
		Object: activity("http://example.com/activity/1"),
	}
}

func voidingStatement(target xapi.StatementID) xapi.Statement {
	return xapi.Statement{
		Actor:  agent("mailto:admin@example.com", "Admin"),
		Verb:   xapi.Verb{ID: xapi.VerbVoided, Display: xapi.LanguageMap{"en-US": "voided"}},
		Object: xapi.StatementReference{StatementID: target},
	}
}

// withoutStored clears the store-assigned timestamp for round-trip comparison.
func withoutStored(s xapi.Statement) xapi.Statement {
	s.Stored = nil
	return s
}

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }
func strp(v string) *string  { return &v }

func timep(t time.Time) *time.Time { return &t }

// mustSave saves stmt under LRS 1 and returns its id.
func mustSave(t *testing.T, s *Store, stmt xapi.Statement) xapi.StatementID {
	t.Helper()
	id, err := s.Repository(1).Save(context.Background(), stmt)
	require.NoError(t, err)
	return id
}

// countRows returns the number of rows in table.
func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}
