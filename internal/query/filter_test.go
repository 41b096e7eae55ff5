package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

func TestParseFilter_Empty(t *testing.T) {
	f, err := ParseFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, StatementsFilter{}, f)
}

func TestParseFilter_AllSupportedKeys(t *testing.T) {
	f, err := ParseFilter(map[string]string{
		"statementId": "F47AC10B-58CC-4372-A567-0E02B2C3D479",
		"verb":        "http://adlnet.gov/expapi/verbs/attempted",
		"activity":    "http://example.com/activity/1",
		"agent":       `{"objectType":"Agent","mbox":"mailto:a@example.com"}`,
		"since":       "2024-01-01T00:00:00Z",
		"until":       "2024-01-02T01:00:00+01:00",
		"limit":       "10",
		"ascending":   "true",
	})
	require.NoError(t, err)

	assert.Equal(t, xapi.StatementID("f47ac10b-58cc-4372-a567-0e02b2c3d479"), f.StatementID)
	assert.Equal(t, xapi.IRI("http://adlnet.gov/expapi/verbs/attempted"), f.Verb)
	assert.Equal(t, xapi.IRI("http://example.com/activity/1"), f.Activity)
	require.NotNil(t, f.Agent)
	assert.Equal(t, xapi.WithMbox("mailto:a@example.com"), *f.Agent)
	require.NotNil(t, f.Since)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *f.Since)
	require.NotNil(t, f.Until)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *f.Until)
	assert.Equal(t, 10, f.Limit)
	assert.True(t, f.Ascending)
}

func TestParseFilter_AgentAccount(t *testing.T) {
	f, err := ParseFilter(map[string]string{
		"agent": `{"account":{"name":"alice","homePage":"https://lms.example.com"}}`,
	})
	require.NoError(t, err)
	require.NotNil(t, f.Agent)
	assert.Equal(t, xapi.WithAccount("alice", "https://lms.example.com"), *f.Agent)
}

func TestParseFilter_RejectsUnsupportedKeys(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{"known but unsupported", map[string]string{"registration": "x"}, "registration (statement context is not stored)"},
		{"unknown key", map[string]string{"colour": "blue"}, "colour"},
		{"voided id", map[string]string{"voidedStatementId": "x"}, "voidedStatementId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedFilter)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseFilter_ReportsAllUnsupportedKeysSorted(t *testing.T) {
	_, err := ParseFilter(map[string]string{"zeta": "1", "alpha": "2", "verb": "http://x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFilter)
	assert.Contains(t, err.Error(), "alpha, zeta")
}

func TestParseFilter_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
	}{
		{"bad statement id", map[string]string{"statementId": "nope"}},
		{"empty verb", map[string]string{"verb": "  "}},
		{"agent not json", map[string]string{"agent": "mailto:a@example.com"}},
		{"agent without identifier", map[string]string{"agent": `{"name":"A"}`}},
		{"agent with two identifiers", map[string]string{"agent": `{"mbox":"mailto:a@example.com","openid":"http://id"}`}},
		{"agent unknown field", map[string]string{"agent": `{"mbox":"mailto:a@example.com","email":"x"}`}},
		{"bad since", map[string]string{"since": "yesterday"}},
		{"negative limit", map[string]string{"limit": "-1"}},
		{"bad limit", map[string]string{"limit": "ten"}},
		{"bad ascending", map[string]string{"ascending": "maybe"}},
		{"until before since", map[string]string{"since": "2024-01-02T00:00:00Z", "until": "2024-01-01T00:00:00Z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter(tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestStatementsFilter_QueryDefaults(t *testing.T) {
	q := StatementsFilter{}.Query(7)

	assert.Equal(t, StatementsTable, q.From)
	assert.Equal(t, []string{"id"}, q.Columns)
	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "lrs_id", Value: int64(7)},
		Equals{Field: "is_sub_statement", Value: false},
	}}, q.Filter)
	assert.Equal(t, []Order{{Column: "stored", Descending: true}, {Column: "id", Descending: true}}, q.OrderBy)
	assert.Zero(t, q.Limit)
}

func TestStatementsFilter_QueryAllFilters(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(time.Hour)
	ifi := xapi.WithOpenID("http://openid.example.com/alice")

	q := StatementsFilter{
		StatementID: "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Verb:        "http://example.com/verb",
		Activity:    "http://example.com/activity",
		Agent:       &ifi,
		Since:       &since,
		Until:       &until,
		Limit:       5,
		Ascending:   true,
	}.Query(1)

	and, ok := q.Filter.(And)
	require.True(t, ok)
	assert.Equal(t, []Predicate{
		Equals{Field: "lrs_id", Value: int64(1)},
		Equals{Field: "is_sub_statement", Value: false},
		Equals{Field: "uuid", Value: "f47ac10b-58cc-4372-a567-0e02b2c3d479"},
		Equals{Field: "verb_iri", Value: "http://example.com/verb"},
		Equals{Field: "object_type", Value: "activity"},
		Equals{Field: "activity_id", Value: "http://example.com/activity"},
		In{Field: "actor_id", Sub: Select{
			From:    ActorsTable,
			Columns: []string{"id"},
			Filter:  Equals{Field: "open_id", Value: "http://openid.example.com/alice"},
		}},
		Compare{Field: "stored", Op: OpGreater, Value: since.UnixMicro()},
		Compare{Field: "stored", Op: OpLessOrEqual, Value: until.UnixMicro()},
	}, and.Predicates)
	assert.Equal(t, []Order{{Column: "stored"}, {Column: "id"}}, q.OrderBy)
	assert.Equal(t, 5, q.Limit)
}

func TestIdentifierPredicate(t *testing.T) {
	tests := []struct {
		name string
		ifi  xapi.InverseFunctionalIdentifier
		want Predicate
	}{
		{"mbox", xapi.WithMbox("mailto:a@example.com"), Equals{Field: "mbox", Value: "mailto:a@example.com"}},
		{"sha1", xapi.WithMboxSHA1Sum("abc"), Equals{Field: "mbox_sha1_sum", Value: "abc"}},
		{"account", xapi.WithAccount("alice", "https://lms"), And{Predicates: []Predicate{
			Equals{Field: "has_account", Value: true},
			Equals{Field: "account_name", Value: "alice"},
			Equals{Field: "account_home_page", Value: "https://lms"},
		}}},
		{"none", xapi.InverseFunctionalIdentifier{}, Equals{Field: "id", Value: int64(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identifierPredicate(tt.ifi))
		})
	}
}

func TestOperatorValid(t *testing.T) {
	for _, op := range []Operator{OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual} {
		assert.True(t, op.Valid(), op)
	}
	assert.False(t, Operator("!=").Valid())
}

func TestCheckValue(t *testing.T) {
	assert.NoError(t, CheckValue("x"))
	assert.NoError(t, CheckValue(int64(1)))
	assert.NoError(t, CheckValue(true))
	assert.Error(t, CheckValue(1))
	assert.Error(t, CheckValue(1.5))
	assert.Error(t, CheckValue(nil))
}
