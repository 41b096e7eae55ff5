package xapi

import "time"

// ObjectType discriminates the Object variants.
type ObjectType string

const (
	ObjectActivity           ObjectType = "activity"
	ObjectStatementReference ObjectType = "statement_reference"
	ObjectSubStatement       ObjectType = "sub_statement"
)

// Object is the target of a statement: an Activity, a StatementReference
// or a SubStatement.
//
// This is a sealed interface - only types in this package implement it.
type Object interface {
	objectNode()
	ObjectType() ObjectType
}

// Definition describes an activity.
// Name and Description are either both present or both absent once stored.
type Definition struct {
	Name        LanguageMap
	Description LanguageMap
	Type        IRI
}

// Activity is a thing an actor interacted with.
type Activity struct {
	ID         IRI
	Definition *Definition
}

func (Activity) objectNode() {}

// ObjectType returns ObjectActivity.
func (Activity) ObjectType() ObjectType { return ObjectActivity }

// StatementReference points at another statement by id. It is never expanded.
type StatementReference struct {
	StatementID StatementID
}

func (StatementReference) objectNode() {}

// ObjectType returns ObjectStatementReference.
func (StatementReference) ObjectType() ObjectType { return ObjectStatementReference }

// SubStatement is a complete statement embedded as another statement's
// object. It has no id, authority or stored timestamp of its own.
type SubStatement struct {
	Actor       Actor
	Verb        Verb
	Object      Object
	Result      *Result
	Timestamp   *time.Time
	Attachments []Attachment
}

func (SubStatement) objectNode() {}

// ObjectType returns ObjectSubStatement.
func (SubStatement) ObjectType() ObjectType { return ObjectSubStatement }

// Statement returns the top-level statement equivalent of the sub-statement,
// without id and authority.
func (s SubStatement) Statement() Statement {
	return Statement{
		Actor:       s.Actor,
		Verb:        s.Verb,
		Object:      s.Object,
		Result:      s.Result,
		Timestamp:   s.Timestamp,
		Attachments: s.Attachments,
	}
}
