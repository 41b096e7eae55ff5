// Package harness runs conformance scenarios against the statement store.
//
// A scenario saves statements and looks them up again, recording every
// call and its outcome in a trace. Assertions then check the trace, the
// stored rows, and that every saved statement loads back unchanged.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	lrs_id: 1
//	setup:
//	  - actor: { mbox: "mailto:a@example.com" }
//	    verb: { id: "http://example.com/verb/did" }
//	    object: { id: "http://example.com/activity/1" }
//	flow:
//	  - invoke: save
//	    statement: { ... }
//	    expect: { case: ok }
//	  - invoke: find_by_id
//	    id: 00000000-0000-4000-8000-000000000001
//	    expect: { case: not_found }
//	  - invoke: find_by
//	    filter: { verb: "http://example.com/verb/did" }
//	    expect: { count: 2 }
//	assertions:
//	  - type: round_trip
//	  - type: trace_count
//	    action: save
//	    count: 1
//	  - type: final_state
//	    table: xapi_statements
//	    where: { is_sub_statement: 1 }
//	    count: 1
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: rows of a store table match expected values
//   - round_trip: every statement saved by the scenario loads back equal
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory SQLite database, a deterministic clock
// (testutil.DeterministicClock) and sequential statement ids
// (testutil.SequentialIDGenerator), so generated ids can be written into
// scenarios and traces can be compared against golden files.
package harness
