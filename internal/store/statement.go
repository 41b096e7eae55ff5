package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xabbuh/studip-experience-api-plugin/internal/query"
	"github.com/xabbuh/studip-experience-api-plugin/internal/querysql"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// maxSubStatementDepth is the deepest sub-statement nesting saved or
// loaded. xAPI forbids sub-statements inside sub-statements.
const maxSubStatementDepth = 1

// Repository reads and writes the statements of one LRS.
//
// Thread-safety: Repository holds no mutable state and is safe for
// concurrent use. Every Save runs in its own transaction.
type Repository struct {
	store *Store
	lrsID int64
}

// LRSID returns the LRS the repository is bound to.
func (r *Repository) LRSID() int64 {
	return r.lrsID
}

// writer carries the state of one Save transaction.
type writer struct {
	repo   *Repository
	q      sqlx.ExtContext
	stored time.Time
	rows   int
}

// Save persists stmt and returns its id, generating one when stmt has none.
//
// Steps, all inside one transaction:
//  1. assign the id
//  2. persist the actor
//  3. encode the verb
//  4. persist the object (recursing for a sub-statement)
//  5. persist the authority
//  6. insert the statement row with result columns and timestamps
//  7. persist the attachments
//
// The stored timestamp comes from the store clock; stmt.Stored is ignored.
// A failure at any step rolls back every row written so far.
func (r *Repository) Save(ctx context.Context, stmt xapi.Statement) (xapi.StatementID, error) {
	start := time.Now()

	id, rows, err := r.save(ctx, stmt)
	if err != nil {
		err = r.fail("save statement", stmt.ID, err)
		id = ""
	}
	r.store.metrics.observe(opSave, err, time.Since(start))
	if err != nil {
		return "", err
	}

	r.store.metrics.rowsWritten(rows)
	r.store.logger.Debug("statement saved", "lrs", r.lrsID, "statement", id, "rows", rows)
	return id, nil
}

func (r *Repository) save(ctx context.Context, stmt xapi.Statement) (xapi.StatementID, int, error) {
	tx, err := r.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", 0, errUnavailable("begin save", err)
	}
	defer tx.Rollback() // No-op if committed

	w := &writer{repo: r, q: tx, stored: r.store.clock.Now().UTC()}
	id, err := w.saveStatement(ctx, stmt, 0)
	if err != nil {
		return "", 0, err
	}

	if err := tx.Commit(); err != nil {
		return "", 0, classify("commit save", id, err)
	}
	return id, w.rows, nil
}

// saveStatement writes one statement row. depth is 0 for the top-level
// statement and 1 for its sub-statement.
func (w *writer) saveStatement(ctx context.Context, stmt xapi.Statement, depth int) (xapi.StatementID, error) {
	const op = "save statement"

	if depth > maxSubStatementDepth {
		return "", errIntegrity(op, "sub-statement nesting exceeds depth %d", maxSubStatementDepth)
	}
	isSub := depth > 0

	// 1. id
	var id xapi.StatementID
	if stmt.ID == "" {
		id = xapi.StatementID(w.repo.store.ids.Generate())
	} else {
		parsed, err := xapi.ParseStatementID(string(stmt.ID))
		if err != nil {
			return "", newError(KindInvalid, op, err, "malformed statement id %q", stmt.ID)
		}
		id = parsed
	}

	var existing int
	err := sqlx.GetContext(ctx, w.q, &existing, w.q.Rebind(
		"SELECT COUNT(*) FROM xapi_statements WHERE lrs_id = ? AND uuid = ?"), w.repo.lrsID, id.String())
	if err != nil {
		return "", errUnavailable(op, err)
	}
	if existing > 0 {
		return "", &Error{Kind: KindConflict, Op: op, StatementID: id, Message: "statement already exists"}
	}

	// 2. actor
	actorID, err := persistActor(ctx, w.q, stmt.Actor, nil)
	if err != nil {
		return "", withStatement(err, id)
	}

	// 3. verb
	verb, err := verbColumns(stmt.Verb)
	if err != nil {
		return "", withStatement(err, id)
	}

	// 4. object
	object, err := w.objectColumns(ctx, stmt.Object, depth)
	if err != nil {
		return "", withStatement(err, id)
	}

	// 5. authority; sub-statements never carry one
	var authorityID sql.NullInt64
	if stmt.Authority != nil && !isSub {
		aid, err := persistActor(ctx, w.q, stmt.Authority, nil)
		if err != nil {
			return "", withStatement(err, id)
		}
		authorityID = sql.NullInt64{Int64: aid, Valid: true}
	}

	result, err := resultColumns(stmt.Result)
	if err != nil {
		return "", withStatement(err, id)
	}

	// 6. statement row
	row := statementRow{
		UUID:           id.String(),
		LRSID:          w.repo.lrsID,
		IsSubStatement: isSub,
		ActorID:        actorID,
		verbCols:       verb,
		objectCols:     object,
		resultCols:     result,
		AuthorityID:    authorityID,
		Created:        nullMicros(stmt.Timestamp),
		Stored:         w.stored.UnixMicro(),
	}
	rowID, err := insertNamed(ctx, w.q, op, insertStatementSQL, row)
	if isUniqueViolation(err) {
		// a concurrent save committed the same id after the check above
		return "", &Error{Kind: KindConflict, Op: op, StatementID: id, Message: "statement already exists", Err: err}
	}
	if err != nil {
		return "", withStatement(err, id)
	}
	w.rows++

	// 7. attachments
	for i, att := range stmt.Attachments {
		if err := persistAttachment(ctx, w.q, att, rowID, i); err != nil {
			return "", withStatement(err, id)
		}
	}

	return id, nil
}

// withStatement records id on a store error that does not name a
// statement yet.
func withStatement(err error, id xapi.StatementID) error {
	var se *Error
	if errors.As(err, &se) && se.StatementID == "" {
		se.StatementID = id
	}
	return err
}

// FindByID returns the non-voiding top-level statement with the given id.
//
// Fails with NotFound when no statement matches or when the statement is a
// voiding statement, and with DataIntegrity when more than one row shares
// the id.
func (r *Repository) FindByID(ctx context.Context, id xapi.StatementID) (xapi.Statement, error) {
	return r.find(ctx, opFindByID, id, false)
}

// FindVoidedByID returns the voiding top-level statement with the given id.
// Fails with NotFound when the statement is not a voiding statement.
func (r *Repository) FindVoidedByID(ctx context.Context, id xapi.StatementID) (xapi.Statement, error) {
	return r.find(ctx, opFindVoidedByID, id, true)
}

func (r *Repository) find(ctx context.Context, metric string, id xapi.StatementID, voiding bool) (xapi.Statement, error) {
	start := time.Now()

	stmt, err := r.findOne(ctx, id, voiding)
	if err != nil {
		err = r.fail("find statement", id, err)
	}
	r.store.metrics.observe(metric, err, time.Since(start))
	if err != nil {
		return xapi.Statement{}, err
	}
	return stmt, nil
}

func (r *Repository) findOne(ctx context.Context, id xapi.StatementID, voiding bool) (xapi.Statement, error) {
	const op = "find statement"

	canonical, err := xapi.ParseStatementID(string(id))
	if err != nil {
		return xapi.Statement{}, newError(KindInvalid, op, err, "malformed statement id %q", id)
	}

	tx, err := r.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return xapi.Statement{}, errUnavailable(op, err)
	}
	defer tx.Rollback() // Read-only; nothing to commit

	var rows []statementRow
	err = sqlx.SelectContext(ctx, tx, &rows, tx.Rebind(
		"SELECT "+statementColumns+" FROM xapi_statements WHERE lrs_id = ? AND uuid = ? AND is_sub_statement = ?"),
		r.lrsID, canonical.String(), false)
	if err != nil {
		return xapi.Statement{}, errUnavailable(op, err)
	}
	switch len(rows) {
	case 0:
		return xapi.Statement{}, errNotFound(op, "no statement with this id")
	case 1:
	default:
		return xapi.Statement{}, errIntegrity(op, "%d statement rows share one id", len(rows))
	}

	stmt, err := r.loadStatement(ctx, tx, rows[0], 0)
	if err != nil {
		return xapi.Statement{}, err
	}

	switch {
	case voiding && !stmt.IsVoiding():
		return xapi.Statement{}, errNotFound(op, "statement is not a voiding statement")
	case !voiding && stmt.IsVoiding():
		return xapi.Statement{}, errNotFound(op, "statement is a voiding statement")
	}
	return stmt, nil
}

// FindBy returns the top-level statements matching filter, newest stored
// first unless filter.Ascending is set. Returns an empty slice (not nil)
// when nothing matches.
func (r *Repository) FindBy(ctx context.Context, filter query.StatementsFilter) ([]xapi.Statement, error) {
	start := time.Now()

	statements, err := r.findBy(ctx, filter)
	if err != nil {
		err = r.fail("find statements", filter.StatementID, err)
	}
	r.store.metrics.observe(opFindBy, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return statements, nil
}

// FindByParams parses raw filter parameters and runs FindBy. Unknown and
// unimplemented keys fail with Unsupported, malformed values with Invalid.
func (r *Repository) FindByParams(ctx context.Context, params map[string]string) ([]xapi.Statement, error) {
	const op = "find statements"

	filter, err := query.ParseFilter(params)
	switch {
	case errors.Is(err, query.ErrUnsupportedFilter):
		err = newError(KindUnsupported, op, err, "")
	case err != nil:
		err = newError(KindInvalid, op, err, "")
	}
	if err != nil {
		err = r.fail(op, "", err)
		r.store.metrics.observe(opFindBy, err, 0)
		return nil, err
	}
	return r.FindBy(ctx, filter)
}

func (r *Repository) findBy(ctx context.Context, filter query.StatementsFilter) ([]xapi.Statement, error) {
	const op = "find statements"

	sqlText, params, err := querysql.Compile(filter.Query(r.lrsID))
	if err != nil {
		return nil, newError(KindInvalid, op, err, "compile filter")
	}

	tx, err := r.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errUnavailable(op, err)
	}
	defer tx.Rollback() // Read-only; nothing to commit

	var rowIDs []int64
	if err := sqlx.SelectContext(ctx, tx, &rowIDs, tx.Rebind(sqlText), params...); err != nil {
		return nil, errUnavailable(op, err)
	}

	statements := make([]xapi.Statement, 0, len(rowIDs))
	for _, rowID := range rowIDs {
		var row statementRow
		err := sqlx.GetContext(ctx, tx, &row, tx.Rebind("SELECT "+statementColumns+" FROM xapi_statements WHERE id = ?"), rowID)
		if err != nil {
			return nil, errUnavailable(op, err)
		}
		stmt, err := r.loadStatement(ctx, tx, row, 0)
		if err != nil {
			return nil, withStatement(err, xapi.StatementID(row.UUID))
		}
		statements = append(statements, stmt)
	}
	return statements, nil
}

// loadStatement rebuilds a statement from its row: actor, verb, object
// (recursing for a sub-statement), result, authority, timestamps and
// attachments, in that order.
func (r *Repository) loadStatement(ctx context.Context, q sqlx.ExtContext, row statementRow, depth int) (xapi.Statement, error) {
	const op = "load statement"

	if depth > maxSubStatementDepth {
		return xapi.Statement{}, errIntegrity(op, "sub-statement nesting exceeds depth %d", maxSubStatementDepth)
	}
	id := xapi.StatementID(row.UUID)

	actor, err := loadActor(ctx, q, row.ActorID)
	if err != nil {
		return xapi.Statement{}, withStatement(err, id)
	}
	verb, err := verbFromRow(row.verbCols)
	if err != nil {
		return xapi.Statement{}, withStatement(err, id)
	}
	object, err := r.objectFromRow(ctx, q, row.objectCols, depth)
	if err != nil {
		return xapi.Statement{}, withStatement(err, id)
	}
	result, err := resultFromRow(row.resultCols)
	if err != nil {
		return xapi.Statement{}, withStatement(err, id)
	}

	var authority xapi.Actor
	if row.AuthorityID.Valid {
		authority, err = loadActor(ctx, q, row.AuthorityID.Int64)
		if err != nil {
			return xapi.Statement{}, withStatement(err, id)
		}
	}

	attachments, err := loadAttachments(ctx, q, row.ID)
	if err != nil {
		return xapi.Statement{}, withStatement(err, id)
	}

	stored := time.UnixMicro(row.Stored).UTC()
	return xapi.Statement{
		ID:          id,
		Actor:       actor,
		Verb:        verb,
		Object:      object,
		Result:      result,
		Authority:   authority,
		Timestamp:   timePtr(row.Created),
		Stored:      &stored,
		Attachments: attachments,
	}, nil
}

// fail classifies err and logs it. DataIntegrity errors are logged at
// error level with full context before they propagate.
func (r *Repository) fail(op string, id xapi.StatementID, err error) error {
	se := classify(op, id, err)
	switch se.Kind {
	case KindDataIntegrity:
		r.store.logger.Error("data integrity violation",
			"lrs", r.lrsID,
			"op", se.Op,
			"statement", se.StatementID,
			"error", se.Error(),
		)
	case KindStoreUnavailable:
		r.store.logger.Warn("store unavailable",
			"lrs", r.lrsID,
			"op", se.Op,
			"statement", se.StatementID,
			"error", se.Error(),
		)
	default:
		r.store.logger.Debug("statement operation failed",
			"lrs", r.lrsID,
			"op", se.Op,
			"kind", string(se.Kind),
			"statement", se.StatementID,
		)
	}
	return se
}
