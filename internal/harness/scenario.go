package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xabbuh/studip-experience-api-plugin/internal/document"
)

// Scenario defines a conformance test scenario: statements saved and
// looked up in order, then assertions over the trace and the store.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// LRSID is the LRS the scenario runs against. Defaults to 1.
	LRSID int64 `yaml:"lrs_id,omitempty"`

	// Setup statements are saved before the flow and must succeed.
	Setup []document.Statement `yaml:"setup,omitempty"`

	// Flow contains the store calls, each with an optional expectation.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and store contents.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, round_trip
	Assertions []Assertion `yaml:"assertions"`
}

// Flow actions.
const (
	ActionSave           = "save"
	ActionFindByID       = "find_by_id"
	ActionFindVoidedByID = "find_voided_by_id"
	ActionFindBy         = "find_by"
)

// FlowStep is one store call.
type FlowStep struct {
	// Invoke is one of save, find_by_id, find_voided_by_id, find_by.
	Invoke string `yaml:"invoke"`

	// Statement is the statement to save (save only).
	Statement *document.Statement `yaml:"statement,omitempty"`

	// ID is the statement id to look up (find_by_id, find_voided_by_id).
	ID string `yaml:"id,omitempty"`

	// Filter holds raw filter parameters (find_by only).
	Filter map[string]string `yaml:"filter,omitempty"`

	// Expect specifies the expected outcome. If nil, the call must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Case is "ok" or a lower-case store error kind such as "not_found",
	// "conflict" or "unsupported". Defaults to "ok".
	Case string `yaml:"case,omitempty"`

	// ID is the expected statement id returned by save or loaded by a
	// lookup.
	ID string `yaml:"id,omitempty"`

	// Count is the expected number of statements returned by find_by.
	Count *int `yaml:"count,omitempty"`

	// IDs is the expected id order returned by find_by.
	IDs []string `yaml:"ids,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check action appears in trace with args
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check action appears exactly N times
	// - "final_state": Query a table and verify expected values
	// - "round_trip": Reload every saved statement and compare
	Type string `yaml:"type"`

	// Action is the action name (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values of the single matching row
	// (used by final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count) or of
	// matching rows (final_state, when Expect is empty).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRoundTrip     = "round_trip"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.LRSID == 0 {
		scenario.LRSID = 1
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.LRSID < 0 {
		return fmt.Errorf("lrs_id must be positive")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *FlowStep) error {
	switch step.Invoke {
	case "":
		return fmt.Errorf("flow[%d]: invoke is required", index)
	case ActionSave:
		if step.Statement == nil {
			return fmt.Errorf("flow[%d]: statement is required for save", index)
		}
	case ActionFindByID, ActionFindVoidedByID:
		if step.ID == "" {
			return fmt.Errorf("flow[%d]: id is required for %s", index, step.Invoke)
		}
	case ActionFindBy:
		// An empty filter matches every statement.
	default:
		return fmt.Errorf("flow[%d]: unknown action %q", index, step.Invoke)
	}

	if step.Expect != nil && step.Expect.Count != nil && step.Invoke != ActionFindBy {
		return fmt.Errorf("flow[%d].expect: count is only valid for find_by", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for final_state", index)
		}
	case AssertRoundTrip:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
