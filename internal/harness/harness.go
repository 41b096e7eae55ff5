package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/xabbuh/studip-experience-api-plugin/internal/store"
	"github.com/xabbuh/studip-experience-api-plugin/internal/testutil"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// CaseOK is the output case of a successful call.
const CaseOK = "ok"

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and id generator.
type Harness struct {
	store  *store.Store
	repo   *store.Repository
	seq    int64
	saved  []savedStatement
	logger *slog.Logger
}

// savedStatement is a statement the scenario saved, as it was submitted.
type savedStatement struct {
	id        xapi.StatementID
	statement xapi.Statement
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Save setup statements
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions
// 5. Return result with pass/fail, trace, and errors
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	st, err := store.Open(ctx, store.Options{
		DSN:         ":memory:",
		Logger:      logger,
		Clock:       testutil.NewDeterministicClock(),
		IDGenerator: testutil.NewSequentialIDGenerator(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	lrsID := scenario.LRSID
	if lrsID == 0 {
		lrsID = 1
	}
	h := &Harness{
		store:  st,
		repo:   st.Repository(lrsID),
		logger: logger,
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
		check: h.checkRoundTrip,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

// executeSetup saves the setup statements. Each must save successfully.
func (h *Harness) executeSetup(ctx context.Context, scenario *Scenario, result *Result) error {
	for i, doc := range scenario.Setup {
		stmt, err := doc.ToModel()
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}

		result.AddInvocationTrace(ActionSave, saveArgs(stmt), h.next())
		id, err := h.repo.Save(ctx, stmt)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		h.saved = append(h.saved, savedStatement{id: id, statement: stmt})
		result.AddCompletionTrace(CaseOK, map[string]any{"id": string(id)}, h.next())

		h.logger.Info("setup step completed", "step", i, "statement", id)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
//
// Each step:
// 1. Records the invocation
// 2. Calls the repository
// 3. Records the completion (ok or the lower-case error kind)
// 4. Compares the outcome with the expect clause
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		var (
			args    map[string]any
			outcome stepOutcome
		)

		switch step.Invoke {
		case ActionSave:
			if step.Statement == nil {
				return fmt.Errorf("flow step %d: save without statement", i)
			}
			stmt, err := step.Statement.ToModel()
			if err != nil {
				return fmt.Errorf("flow step %d: %w", i, err)
			}
			args = saveArgs(stmt)
			result.AddInvocationTrace(step.Invoke, args, h.next())

			id, err := h.repo.Save(ctx, stmt)
			outcome = stepOutcome{err: err, id: id}
			if err == nil {
				h.saved = append(h.saved, savedStatement{id: id, statement: stmt})
			}

		case ActionFindByID, ActionFindVoidedByID:
			args = map[string]any{"id": step.ID}
			result.AddInvocationTrace(step.Invoke, args, h.next())

			find := h.repo.FindByID
			if step.Invoke == ActionFindVoidedByID {
				find = h.repo.FindVoidedByID
			}
			stmt, err := find(ctx, xapi.StatementID(step.ID))
			outcome = stepOutcome{err: err, id: stmt.ID, verb: stmt.Verb.ID}

		case ActionFindBy:
			args = filterArgs(step.Filter)
			result.AddInvocationTrace(step.Invoke, args, h.next())

			statements, err := h.repo.FindByParams(ctx, step.Filter)
			outcome = stepOutcome{err: err, found: statements, isFindBy: true}

		default:
			return fmt.Errorf("flow step %d: unknown action %q", i, step.Invoke)
		}

		outputCase := outcome.outputCase()
		result.AddCompletionTrace(outputCase, outcome.traceResult(), h.next())

		for _, msg := range outcome.check(step.Expect) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}

		h.logger.Info("flow step completed", "step", i, "action", step.Invoke, "case", outputCase)
	}
	return nil
}

// stepOutcome is what one repository call returned.
type stepOutcome struct {
	err      error
	id       xapi.StatementID
	verb     xapi.IRI
	found    []xapi.Statement
	isFindBy bool
}

func (o stepOutcome) outputCase() string {
	if o.err == nil {
		return CaseOK
	}
	kind := store.KindOf(o.err)
	if kind == "" {
		return "error"
	}
	return strings.ToLower(string(kind))
}

func (o stepOutcome) ids() []string {
	ids := make([]string, len(o.found))
	for i, s := range o.found {
		ids[i] = string(s.ID)
	}
	return ids
}

// traceResult is the completion payload recorded in the trace. Failed
// calls record no payload.
func (o stepOutcome) traceResult() any {
	switch {
	case o.err != nil:
		return nil
	case o.isFindBy:
		ids := make([]any, len(o.found))
		for i, id := range o.ids() {
			ids[i] = id
		}
		return map[string]any{"count": int64(len(o.found)), "ids": ids}
	case o.verb != "":
		return map[string]any{"id": string(o.id), "verb": string(o.verb)}
	default:
		return map[string]any{"id": string(o.id)}
	}
}

// check compares the outcome with an expect clause. A nil clause expects
// success.
func (o stepOutcome) check(expect *ExpectClause) []string {
	want := CaseOK
	if expect != nil && expect.Case != "" {
		want = expect.Case
	}

	got := o.outputCase()
	if got != want {
		msg := fmt.Sprintf("expected case %q, got %q", want, got)
		if o.err != nil {
			msg += fmt.Sprintf(" (%v)", o.err)
		}
		return []string{msg}
	}
	if expect == nil {
		return nil
	}

	var errs []string
	if expect.ID != "" && string(o.id) != expect.ID {
		errs = append(errs, fmt.Sprintf("expected id %s, got %s", expect.ID, o.id))
	}
	if expect.Count != nil && len(o.found) != *expect.Count {
		errs = append(errs, fmt.Sprintf("expected %d statements, got %d", *expect.Count, len(o.found)))
	}
	if expect.IDs != nil && !slices.Equal(o.ids(), expect.IDs) {
		errs = append(errs, fmt.Sprintf("expected ids %v, got %v", expect.IDs, o.ids()))
	}
	return errs
}

// saveArgs summarizes a statement for the trace.
func saveArgs(stmt xapi.Statement) map[string]any {
	args := map[string]any{"verb": string(stmt.Verb.ID)}
	if stmt.ID != "" {
		args["id"] = string(stmt.ID)
	}
	if stmt.Object != nil {
		args["object_type"] = string(stmt.Object.ObjectType())
	}
	return args
}

func filterArgs(filter map[string]string) map[string]any {
	args := make(map[string]any, len(filter))
	for k, v := range filter {
		args[k] = v
	}
	return args
}

// checkRoundTrip reloads every saved statement and compares it with what
// was submitted. Voiding statements are reloaded with FindVoidedByID.
func (h *Harness) checkRoundTrip(ctx context.Context) []string {
	var errs []string
	for _, saved := range h.saved {
		find := h.repo.FindByID
		if saved.statement.IsVoiding() {
			find = h.repo.FindVoidedByID
		}
		loaded, err := find(ctx, saved.id)
		if err != nil {
			errs = append(errs, fmt.Sprintf("statement %s: reload failed: %v", saved.id, err))
			continue
		}

		want := saved.statement.WithID(saved.id)
		want.Stored = nil
		loaded.Stored = nil
		if !statementsEqual(want, loaded) {
			errs = append(errs, (&AssertionError{
				Type:     AssertRoundTrip,
				Expected: describe(want),
				Actual:   describe(loaded),
			}).Error())
		}
	}
	return errs
}
