package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xabbuh/studip-experience-api-plugin/internal/codec"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// objectColumns maps a statement object to its columns. A sub-statement is
// saved first as a statement row of its own, one level deeper, and linked
// through referenced_statement_id.
func (w *writer) objectColumns(ctx context.Context, obj xapi.Object, depth int) (objectCols, error) {
	const op = "persist object"

	switch o := obj.(type) {
	case xapi.Activity:
		if o.ID == "" {
			return objectCols{}, errInvalid(op, "activity has no id")
		}
		cols := objectCols{
			ObjectType: string(xapi.ObjectActivity),
			ActivityID: sql.NullString{String: string(o.ID), Valid: true},
		}
		if o.Definition != nil {
			// Name and description are written together so a stored
			// definition never has only one of them.
			name, err := codec.EncodeLanguageMap(o.Definition.Name)
			if err != nil {
				return objectCols{}, newError(KindInvalid, op, err, "activity name")
			}
			description, err := codec.EncodeLanguageMap(o.Definition.Description)
			if err != nil {
				return objectCols{}, newError(KindInvalid, op, err, "activity description")
			}
			cols.ActivityName = sql.NullString{String: name, Valid: true}
			cols.ActivityDescription = sql.NullString{String: description, Valid: true}
			cols.ActivityType = nullString(string(o.Definition.Type))
		}
		return cols, nil

	case xapi.StatementReference:
		ref, err := xapi.ParseStatementID(string(o.StatementID))
		if err != nil {
			return objectCols{}, newError(KindInvalid, op, err, "statement reference %q", o.StatementID)
		}
		return objectCols{
			ObjectType:            string(xapi.ObjectStatementReference),
			ReferencedStatementID: sql.NullString{String: ref.String(), Valid: true},
		}, nil

	case xapi.SubStatement:
		subID, err := w.saveStatement(ctx, o.Statement(), depth+1)
		if err != nil {
			return objectCols{}, err
		}
		return objectCols{
			ObjectType:            string(xapi.ObjectSubStatement),
			ReferencedStatementID: sql.NullString{String: subID.String(), Valid: true},
		}, nil

	case nil:
		return objectCols{}, errInvalid(op, "missing object")

	default:
		return objectCols{}, errInvalid(op, "unknown object type %T", obj)
	}
}

// objectFromRow rebuilds the statement object. Sub-statements are loaded
// recursively and re-wrapped, never returned as bare references.
func (r *Repository) objectFromRow(ctx context.Context, q sqlx.ExtContext, cols objectCols, depth int) (xapi.Object, error) {
	const op = "load object"

	switch xapi.ObjectType(cols.ObjectType) {
	case xapi.ObjectActivity:
		if !cols.ActivityID.Valid {
			return nil, errIntegrity(op, "activity object without activity id")
		}
		activity := xapi.Activity{ID: xapi.IRI(cols.ActivityID.String)}
		switch {
		case cols.ActivityName.Valid != cols.ActivityDescription.Valid:
			return nil, errIntegrity(op, "activity %s has only one of name and description", activity.ID)
		case cols.ActivityName.Valid:
			name, err := codec.DecodeLanguageMap(cols.ActivityName.String)
			if err != nil {
				return nil, newError(KindDataIntegrity, op, err, "activity name")
			}
			description, err := codec.DecodeLanguageMap(cols.ActivityDescription.String)
			if err != nil {
				return nil, newError(KindDataIntegrity, op, err, "activity description")
			}
			activity.Definition = &xapi.Definition{
				Name:        name,
				Description: description,
				Type:        xapi.IRI(cols.ActivityType.String),
			}
		case cols.ActivityType.Valid:
			activity.Definition = &xapi.Definition{Type: xapi.IRI(cols.ActivityType.String)}
		}
		return activity, nil

	case xapi.ObjectStatementReference:
		if !cols.ReferencedStatementID.Valid {
			return nil, errIntegrity(op, "statement reference without referenced id")
		}
		return xapi.StatementReference{StatementID: xapi.StatementID(cols.ReferencedStatementID.String)}, nil

	case xapi.ObjectSubStatement:
		if !cols.ReferencedStatementID.Valid {
			return nil, errIntegrity(op, "sub-statement without referenced id")
		}
		if depth+1 > maxSubStatementDepth {
			return nil, errIntegrity(op, "sub-statement nesting exceeds depth %d", maxSubStatementDepth)
		}
		var rows []statementRow
		err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(
			"SELECT "+statementColumns+" FROM xapi_statements WHERE lrs_id = ? AND uuid = ? AND is_sub_statement = ?"),
			r.lrsID, cols.ReferencedStatementID.String, true)
		if err != nil {
			return nil, errUnavailable(op, err)
		}
		if len(rows) != 1 {
			return nil, errIntegrity(op, "sub-statement %s matches %d rows, want 1", cols.ReferencedStatementID.String, len(rows))
		}
		sub, err := r.loadStatement(ctx, q, rows[0], depth+1)
		if err != nil {
			return nil, err
		}
		return sub.AsSubStatement(), nil

	default:
		return nil, errIntegrity(op, "unknown object type %q", cols.ObjectType)
	}
}
