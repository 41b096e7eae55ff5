package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
flow:
  - invoke: save
    statement:
      actor: { mbox: "mailto:a@example.com" }
      verb: { id: "http://example.com/verb/did" }
      object: { id: "http://example.com/activity/1" }
  - invoke: find_by
    filter: { verb: "http://example.com/verb/did" }
    expect: { count: 1 }
assertions:
  - type: round_trip
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, int64(1), scenario.LRSID, "lrs_id defaults to 1")
	require.Len(t, scenario.Flow, 2)
	assert.Equal(t, ActionSave, scenario.Flow[0].Invoke)
	assert.Equal(t, "mailto:a@example.com", scenario.Flow[0].Statement.Actor.Mbox)
	assert.Equal(t, "http://example.com/verb/did", scenario.Flow[1].Filter["verb"])
	require.NotNil(t, scenario.Flow[1].Expect.Count)
	assert.Equal(t, 1, *scenario.Flow[1].Expect.Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	const save = `
  - invoke: save
    statement: { actor: { mbox: m }, verb: { id: v }, object: { id: o } }
`
	tests := []struct {
		name    string
		content string
		msg     string
	}{
		{"missing name", "description: d\nflow:" + save + "assertions: [{type: round_trip}]\n", "name is required"},
		{"missing description", "name: n\nflow:" + save + "assertions: [{type: round_trip}]\n", "description is required"},
		{"empty flow", "name: n\ndescription: d\nflow: []\nassertions: [{type: round_trip}]\n", "flow list is required"},
		{"no assertions", "name: n\ndescription: d\nflow:" + save, "assertions list is required"},
		{"unknown field", "name: n\ndescription: d\nflows: []\n", "field flows not found"},
		{"unknown action", "name: n\ndescription: d\nflow: [{invoke: delete}]\nassertions: [{type: round_trip}]\n", `unknown action "delete"`},
		{"save without statement", "name: n\ndescription: d\nflow: [{invoke: save}]\nassertions: [{type: round_trip}]\n", "statement is required"},
		{"find without id", "name: n\ndescription: d\nflow: [{invoke: find_by_id}]\nassertions: [{type: round_trip}]\n", "id is required"},
		{"count on save", "name: n\ndescription: d\nflow:" + save + "    expect: { count: 1 }\nassertions: [{type: round_trip}]\n", "count is only valid for find_by"},
		{"unknown assertion", "name: n\ndescription: d\nflow:" + save + "assertions: [{type: sorcery}]\n", `unknown assertion type "sorcery"`},
		{"trace_count without action", "name: n\ndescription: d\nflow:" + save + "assertions: [{type: trace_count}]\n", "action is required for trace_count"},
		{"final_state without table", "name: n\ndescription: d\nflow:" + save + "assertions: [{type: final_state}]\n", "table is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
