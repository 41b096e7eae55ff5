package harness

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xabbuh/studip-experience-api-plugin/internal/store"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: EventInvocation, ActionURI: ActionSave, Args: map[string]any{"verb": "http://example.com/verb/did"}, Seq: 1},
		{Type: EventCompletion, OutputCase: CaseOK, Seq: 2},
		{Type: EventInvocation, ActionURI: ActionFindByID, Args: map[string]any{"id": "a"}, Seq: 3},
		{Type: EventCompletion, OutputCase: "not_found", Seq: 4},
		{Type: EventInvocation, ActionURI: ActionFindByID, Args: map[string]any{"id": "b"}, Seq: 5},
		{Type: EventCompletion, OutputCase: CaseOK, Seq: 6},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Action: ActionFindByID, Args: map[string]any{"id": "b"}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: ActionSave}))

	err := assertTraceContains(trace, Assertion{Action: ActionFindByID, Args: map[string]any{"id": "c"}})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Equal(t, "not found in trace", aerr.Actual)
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{ActionSave, ActionFindByID}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{ActionFindByID, ActionSave}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertTraceOrder(trace, Assertion{Actions: []string{ActionSave, ActionFindBy}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: find_by")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionFindByID, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: ActionFindBy, Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: ActionSave, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences")
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{
		DSN:    ":memory:",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.Repository(1).Save(context.Background(), xapi.Statement{
		ID:     "6690e6c9-3ef0-4ed3-8b37-7f3964730bee",
		Actor:  xapi.Agent{IFI: xapi.WithMbox("mailto:a@example.com"), Name: "A"},
		Verb:   xapi.Verb{ID: "http://example.com/verb/did"},
		Object: xapi.Activity{ID: "http://example.com/activity/1"},
	})
	require.NoError(t, err)
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		assertion Assertion
		errMsg    string
	}{
		{
			name: "matching row",
			assertion: Assertion{
				Table:  "xapi_statements",
				Where:  map[string]any{"uuid": "6690e6c9-3ef0-4ed3-8b37-7f3964730bee"},
				Expect: map[string]any{"verb_iri": "http://example.com/verb/did", "lrs_id": 1, "is_sub_statement": false},
			},
		},
		{
			name:      "row count",
			assertion: Assertion{Table: "xapi_actors", Where: map[string]any{"type": "agent"}, Count: 1},
		},
		{
			name:      "zero rows",
			assertion: Assertion{Table: "xapi_attachments", Count: 0},
		},
		{
			name:      "wrong count",
			assertion: Assertion{Table: "xapi_statements", Count: 2},
			errMsg:    "1 rows",
		},
		{
			name: "wrong value",
			assertion: Assertion{
				Table:  "xapi_actors",
				Where:  map[string]any{"mbox": "mailto:a@example.com"},
				Expect: map[string]any{"name": "B"},
			},
			errMsg: `field "name"`,
		},
		{
			name: "row not found",
			assertion: Assertion{
				Table:  "xapi_actors",
				Where:  map[string]any{"mbox": "mailto:z@example.com"},
				Expect: map[string]any{"name": "Z"},
			},
			errMsg: "row not found",
		},
		{
			name: "missing column",
			assertion: Assertion{
				Table:  "xapi_actors",
				Expect: map[string]any{"nickname": "A"},
			},
			errMsg: "not present",
		},
		{
			name:      "invalid table",
			assertion: Assertion{Table: "xapi_actors; DROP TABLE x", Count: 0},
			errMsg:    "invalid table name",
		},
		{
			name:      "invalid column",
			assertion: Assertion{Table: "xapi_actors", Where: map[string]any{"1=1 OR mbox": "x"}},
			errMsg:    "invalid column name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.assertion)
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"string", "a", "a", true},
		{"bytes as string", "a", []byte("a"), true},
		{"int vs int64", 1, int64(1), true},
		{"int mismatch", 1, int64(2), false},
		{"bool vs integer", true, int64(1), true},
		{"false vs zero", false, int64(0), true},
		{"float", 0.5, 0.5, true},
		{"float vs integer", 3.0, int64(3), true},
		{"nil", nil, nil, true},
		{"nil vs value", nil, "a", false},
		{"type mismatch", "1", int64(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stateValuesEqual(tt.expected, tt.actual))
		})
	}
}

func TestBuildWhereClause_SortsKeys(t *testing.T) {
	sql, args, err := buildWhereClause(map[string]any{"b": 2, "a": "x"})
	require.NoError(t, err)
	assert.Equal(t, "a = ? AND b = ?", sql)
	assert.Equal(t, []any{"x", 2}, args)
}

func TestEvaluateAssertions_RequiresContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, Table: "xapi_actors"},
		{Type: AssertRoundTrip},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "requires database context")
	assert.Contains(t, errs[1], "requires a scenario run")
}
