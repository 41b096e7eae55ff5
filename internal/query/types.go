package query

import "fmt"

// Query represents an abstract query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Select represents table access with filtering, ordering and a limit.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit>
//
// Columns must be explicit. An empty OrderBy means ordering by "id"; the
// compiler always emits an ORDER BY clause. Limit 0 means no limit.
type Select struct {
	From    string
	Columns []string
	Filter  Predicate
	OrderBy []Order
	Limit   int
}

func (Select) queryNode() {}

// Order is one ORDER BY term.
type Order struct {
	Column     string
	Descending bool
}

// Equals represents a field-equals-literal predicate.
//
//	<field> = <value>
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// Operator is a comparison operator for Compare.
type Operator string

const (
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
)

// Valid reports whether op is one of the known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return true
	}
	return false
}

// Compare represents an ordering comparison against a literal.
//
//	<field> <op> <value>
type Compare struct {
	Field string
	Op    Operator
	Value any
}

func (Compare) predicateNode() {}

// In represents membership in the result of a sub-select.
//
//	<field> IN (SELECT <column> FROM ... WHERE ...)
//
// The sub-select must have exactly one column. Its OrderBy and Limit are
// not allowed.
type In struct {
	Field string
	Sub   Select
}

func (In) predicateNode() {}

// And represents a conjunction of predicates. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// CheckValue reports whether v is an allowed literal type.
func CheckValue(v any) error {
	switch v.(type) {
	case string, int64, bool:
		return nil
	default:
		return fmt.Errorf("unsupported literal type %T (want string, int64 or bool)", v)
	}
}
