// Package querysql compiles query IR to parameterized SQL.
//
// Output uses "?" placeholders; callers running against PostgreSQL rebind
// them (sqlx.Rebind) before execution.
package querysql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xabbuh/studip-experience-api-plugin/internal/query"
)

// identifierPattern restricts table and column names. Identifiers are the
// only part of the SQL that is not parameterized.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Compile converts a Select to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// MANDATORY: Every top-level query includes ORDER BY with "id" as the default key.
// MANDATORY: All values are parameterized (never interpolated).
func Compile(q query.Select) (string, []any, error) {
	c := &compiler{}
	sql, err := c.compileSelect(q, true)
	if err != nil {
		return "", nil, err
	}
	return sql, c.params, nil
}

// compiler accumulates parameters in placeholder order.
type compiler struct {
	params []any
}

func (c *compiler) compileSelect(q query.Select, topLevel bool) (string, error) {
	if err := checkIdentifier(q.From); err != nil {
		return "", fmt.Errorf("from: %w", err)
	}
	if len(q.Columns) == 0 {
		return "", fmt.Errorf("select from %s: explicit columns required", q.From)
	}
	for _, col := range q.Columns {
		if err := checkIdentifier(col); err != nil {
			return "", fmt.Errorf("column: %w", err)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.From)

	if q.Filter != nil {
		where, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if !topLevel {
		if len(q.OrderBy) > 0 || q.Limit != 0 {
			return "", fmt.Errorf("sub-select from %s: ORDER BY and LIMIT are not allowed", q.From)
		}
		return b.String(), nil
	}

	orderBy, err := orderClause(q.OrderBy)
	if err != nil {
		return "", err
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy)

	if q.Limit < 0 {
		return "", fmt.Errorf("negative limit %d", q.Limit)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	return b.String(), nil
}

// orderClause returns the ORDER BY terms. An empty order falls back to the
// primary key so results are always deterministic.
func orderClause(order []query.Order) (string, error) {
	if len(order) == 0 {
		return "id ASC", nil
	}
	parts := make([]string, 0, len(order))
	for _, o := range order {
		if err := checkIdentifier(o.Column); err != nil {
			return "", fmt.Errorf("order by: %w", err)
		}
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		parts = append(parts, o.Column+" "+dir)
	}
	return strings.Join(parts, ", "), nil
}

// compilePredicate compiles a predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *compiler) compilePredicate(p query.Predicate) (string, error) {
	switch pred := p.(type) {
	case query.Equals:
		return c.compileComparison(pred.Field, "=", pred.Value)
	case query.Compare:
		if !pred.Op.Valid() {
			return "", fmt.Errorf("unsupported operator %q", pred.Op)
		}
		return c.compileComparison(pred.Field, string(pred.Op), pred.Value)
	case query.In:
		return c.compileIn(pred)
	case query.And:
		return c.compileAnd(pred)
	case nil:
		return "1 = 1", nil
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *compiler) compileComparison(field, op string, value any) (string, error) {
	if err := checkIdentifier(field); err != nil {
		return "", err
	}
	if err := query.CheckValue(value); err != nil {
		return "", fmt.Errorf("field %s: %w", field, err)
	}
	c.params = append(c.params, value)
	return fmt.Sprintf("%s %s ?", field, op), nil
}

func (c *compiler) compileIn(in query.In) (string, error) {
	if err := checkIdentifier(in.Field); err != nil {
		return "", err
	}
	if len(in.Sub.Columns) != 1 {
		return "", fmt.Errorf("field %s: sub-select must have exactly one column, got %d", in.Field, len(in.Sub.Columns))
	}
	sub, err := c.compileSelect(in.Sub, false)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", in.Field, err)
	}
	return fmt.Sprintf("%s IN (%s)", in.Field, sub), nil
}

// compileAnd compiles an And predicate. Nested conjunctions are
// parenthesized; an empty And is always true.
func (c *compiler) compileAnd(and query.And) (string, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil
	}

	parts := make([]string, 0, len(and.Predicates))
	for _, pred := range and.Predicates {
		sql, err := c.compilePredicate(pred)
		if err != nil {
			return "", err
		}
		if _, nested := pred.(query.And); nested && len(pred.(query.And).Predicates) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
