package querysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xabbuh/studip-experience-api-plugin/internal/query"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

func TestCompile_SimpleSelect(t *testing.T) {
	sql, params, err := Compile(query.Select{
		From:    "xapi_statements",
		Columns: []string{"id", "uuid"},
		Filter:  query.Equals{Field: "verb_iri", Value: "http://example.com/verb"},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, uuid FROM xapi_statements WHERE verb_iri = ? ORDER BY id ASC", sql)
	assert.Equal(t, []any{"http://example.com/verb"}, params)
	assert.NotContains(t, sql, "example.com", "values must never be interpolated")
}

func TestCompile_OrderByMandatory(t *testing.T) {
	sql, params, err := Compile(query.Select{From: "xapi_actors", Columns: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM xapi_actors ORDER BY id ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_OrderAndLimit(t *testing.T) {
	sql, _, err := Compile(query.Select{
		From:    "xapi_statements",
		Columns: []string{"id"},
		OrderBy: []query.Order{{Column: "stored", Descending: true}, {Column: "id", Descending: true}},
		Limit:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM xapi_statements ORDER BY stored DESC, id DESC LIMIT 3", sql)
}

func TestCompile_CompareAndIn(t *testing.T) {
	sql, params, err := Compile(query.Select{
		From:    "xapi_statements",
		Columns: []string{"id"},
		Filter: query.And{Predicates: []query.Predicate{
			query.Compare{Field: "stored", Op: query.OpGreater, Value: int64(100)},
			query.In{Field: "actor_id", Sub: query.Select{
				From:    "xapi_actors",
				Columns: []string{"id"},
				Filter:  query.Equals{Field: "mbox", Value: "mailto:a@example.com"},
			}},
			query.Compare{Field: "stored", Op: query.OpLessOrEqual, Value: int64(200)},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id FROM xapi_statements WHERE stored > ? AND actor_id IN (SELECT id FROM xapi_actors WHERE mbox = ?) AND stored <= ? ORDER BY id ASC",
		sql)
	assert.Equal(t, []any{int64(100), "mailto:a@example.com", int64(200)}, params, "params follow placeholder order")
}

func TestCompile_NestedAndParenthesized(t *testing.T) {
	sql, params, err := Compile(query.Select{
		From:    "xapi_actors",
		Columns: []string{"id"},
		Filter: query.And{Predicates: []query.Predicate{
			query.Equals{Field: "type", Value: "agent"},
			query.And{Predicates: []query.Predicate{
				query.Equals{Field: "has_account", Value: true},
				query.Equals{Field: "account_name", Value: "alice"},
			}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM xapi_actors WHERE type = ? AND (has_account = ? AND account_name = ?) ORDER BY id ASC", sql)
	assert.Equal(t, []any{"agent", true, "alice"}, params)
}

func TestCompile_EmptyAndIsTrue(t *testing.T) {
	sql, _, err := Compile(query.Select{From: "xapi_actors", Columns: []string{"id"}, Filter: query.And{}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM xapi_actors WHERE 1 = 1 ORDER BY id ASC", sql)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		q    query.Select
		want string
	}{
		{
			name: "no columns",
			q:    query.Select{From: "xapi_actors"},
			want: "explicit columns required",
		},
		{
			name: "injected table",
			q:    query.Select{From: "xapi_actors; DROP TABLE x", Columns: []string{"id"}},
			want: "invalid identifier",
		},
		{
			name: "injected field",
			q: query.Select{From: "xapi_actors", Columns: []string{"id"},
				Filter: query.Equals{Field: "name = name OR 1", Value: "x"}},
			want: "invalid identifier",
		},
		{
			name: "float literal",
			q: query.Select{From: "xapi_statements", Columns: []string{"id"},
				Filter: query.Equals{Field: "raw", Value: 1.5}},
			want: "unsupported literal type float64",
		},
		{
			name: "bad operator",
			q: query.Select{From: "xapi_statements", Columns: []string{"id"},
				Filter: query.Compare{Field: "stored", Op: "<>", Value: int64(1)}},
			want: "unsupported operator",
		},
		{
			name: "sub-select with two columns",
			q: query.Select{From: "xapi_statements", Columns: []string{"id"},
				Filter: query.In{Field: "actor_id", Sub: query.Select{From: "xapi_actors", Columns: []string{"id", "name"}}}},
			want: "exactly one column",
		},
		{
			name: "sub-select with limit",
			q: query.Select{From: "xapi_statements", Columns: []string{"id"},
				Filter: query.In{Field: "actor_id", Sub: query.Select{From: "xapi_actors", Columns: []string{"id"}, Limit: 1}}},
			want: "not allowed",
		},
		{
			name: "negative limit",
			q:    query.Select{From: "xapi_statements", Columns: []string{"id"}, Limit: -1},
			want: "negative limit",
		},
		{
			name: "bad order column",
			q:    query.Select{From: "xapi_statements", Columns: []string{"id"}, OrderBy: []query.Order{{Column: "id; --"}}},
			want: "invalid identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compile(tt.q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompile_StatementsFilter(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ifi := xapi.WithMbox("mailto:a@example.com")
	f := query.StatementsFilter{
		Verb:  "http://example.com/verb",
		Agent: &ifi,
		Since: &since,
		Limit: 2,
	}

	sql, params, err := Compile(f.Query(1))
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id FROM xapi_statements WHERE lrs_id = ? AND is_sub_statement = ? AND verb_iri = ? "+
			"AND actor_id IN (SELECT id FROM xapi_actors WHERE mbox = ?) AND stored > ? "+
			"ORDER BY stored DESC, id DESC LIMIT 2",
		sql)
	assert.Equal(t, []any{int64(1), false, "http://example.com/verb", "mailto:a@example.com", since.UnixMicro()}, params)
}
