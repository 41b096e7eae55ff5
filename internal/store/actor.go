package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

const (
	actorTypeAgent = "agent"
	actorTypeGroup = "group"
)

// memberOf places an agent row inside a group.
type memberOf struct {
	GroupID  int64
	Position int
}

// persistActor writes actor and returns its row id. A group writes its own
// row first, then one row per member pointing back at it with an explicit
// position. When several identifier slots are set only the first in
// resolution order is stored.
func persistActor(ctx context.Context, q sqlx.ExtContext, actor xapi.Actor, parent *memberOf) (int64, error) {
	const op = "persist actor"

	switch a := actor.(type) {
	case xapi.Agent:
		if a.IFI.Count() == 0 {
			return 0, errInvalid(op, "agent %q has no identifier", a.Name)
		}
		row := actorRow{Type: actorTypeAgent, Name: nullString(a.Name)}
		setIdentifier(&row, a.IFI.Resolve())
		if parent != nil {
			row.GroupID = sql.NullInt64{Int64: parent.GroupID, Valid: true}
			row.MemberPosition = sql.NullInt64{Int64: int64(parent.Position), Valid: true}
		}
		return insertNamed(ctx, q, op, insertActorSQL, row)

	case xapi.Group:
		if parent != nil {
			return 0, errInvalid(op, "group %q cannot be a group member", a.Name)
		}
		if a.IFI != nil && a.IFI.Count() == 0 {
			return 0, errInvalid(op, "group %q has an empty identifier; use a nil IFI for an anonymous group", a.Name)
		}
		row := actorRow{Type: actorTypeGroup, Name: nullString(a.Name)}
		if a.IFI != nil {
			setIdentifier(&row, a.IFI.Resolve())
		}
		groupID, err := insertNamed(ctx, q, op, insertActorSQL, row)
		if err != nil {
			return 0, err
		}
		for i, member := range a.Members {
			if member.IFI.Count() == 0 {
				return 0, errInvalid(op, "member %d of group %q has no identifier", i, a.Name)
			}
			if _, err := persistActor(ctx, q, member, &memberOf{GroupID: groupID, Position: i}); err != nil {
				return 0, err
			}
		}
		return groupID, nil

	case nil:
		return 0, errInvalid(op, "missing actor")

	default:
		return 0, errInvalid(op, "unknown actor type %T", actor)
	}
}

func setIdentifier(row *actorRow, ifi xapi.InverseFunctionalIdentifier) {
	row.Mbox = nullString(string(ifi.Mbox))
	row.MboxSHA1Sum = nullString(ifi.MboxSHA1Sum)
	row.OpenID = nullString(ifi.OpenID)
	if ifi.Account != nil {
		row.HasAccount = true
		row.AccountName = sql.NullString{String: ifi.Account.Name, Valid: true}
		row.AccountHomePage = sql.NullString{String: string(ifi.Account.HomePage), Valid: true}
	}
}

// loadActor rebuilds the actor stored at rowID. Members are returned in
// member_position order.
func loadActor(ctx context.Context, q sqlx.ExtContext, rowID int64) (xapi.Actor, error) {
	const op = "load actor"

	var row actorRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind("SELECT "+actorColumns+" FROM xapi_actors WHERE id = ?"), rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errIntegrity(op, "actor row %d does not exist", rowID)
	}
	if err != nil {
		return nil, errUnavailable(op, err)
	}

	switch row.Type {
	case actorTypeAgent:
		agent, err := agentFromRow(op, row)
		if err != nil {
			return nil, err
		}
		return agent, nil

	case actorTypeGroup:
		group := xapi.Group{Name: row.Name.String}
		ifi := identifierFromRow(row)
		switch ifi.Count() {
		case 0:
			// anonymous
		case 1:
			group.IFI = &ifi
		default:
			return nil, errIntegrity(op, "group row %d has %d identifiers", row.ID, ifi.Count())
		}

		var members []actorRow
		err := sqlx.SelectContext(ctx, q, &members, q.Rebind(
			"SELECT "+actorColumns+" FROM xapi_actors WHERE group_id = ? ORDER BY member_position ASC, id ASC"), row.ID)
		if err != nil {
			return nil, errUnavailable(op, err)
		}
		for _, m := range members {
			if m.Type != actorTypeAgent {
				return nil, errIntegrity(op, "member row %d of group row %d is a %s", m.ID, row.ID, m.Type)
			}
			agent, err := agentFromRow(op, m)
			if err != nil {
				return nil, err
			}
			group.Members = append(group.Members, agent)
		}
		return group, nil

	default:
		return nil, errIntegrity(op, "actor row %d has unknown type %q", row.ID, row.Type)
	}
}

func agentFromRow(op string, row actorRow) (xapi.Agent, error) {
	ifi := identifierFromRow(row)
	if n := ifi.Count(); n != 1 {
		return xapi.Agent{}, errIntegrity(op, "agent row %d has %d identifiers, want exactly 1", row.ID, n)
	}
	return xapi.Agent{IFI: ifi, Name: row.Name.String}, nil
}

func identifierFromRow(row actorRow) xapi.InverseFunctionalIdentifier {
	ifi := xapi.InverseFunctionalIdentifier{
		Mbox:        xapi.IRI(row.Mbox.String),
		MboxSHA1Sum: row.MboxSHA1Sum.String,
		OpenID:      row.OpenID.String,
	}
	if row.HasAccount {
		ifi.Account = &xapi.Account{Name: row.AccountName.String, HomePage: xapi.IRI(row.AccountHomePage.String)}
	}
	return ifi
}

// insertNamed runs an INSERT ... RETURNING id with named parameters bound
// in the connection's placeholder style.
func insertNamed(ctx context.Context, q sqlx.ExtContext, op, query string, arg any) (int64, error) {
	bound, args, err := q.BindNamed(query, arg)
	if err != nil {
		return 0, errUnavailable(op, err)
	}
	var id int64
	if err := q.QueryRowxContext(ctx, bound, args...).Scan(&id); err != nil {
		return 0, errUnavailable(op, err)
	}
	return id, nil
}
