package xapi

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// VerbVoided is the verb IRI that marks a statement as voiding another one.
const VerbVoided IRI = "http://adlnet.gov/expapi/verbs/voided"

// IRI is an internationalized resource identifier.
type IRI string

// StatementID is the canonical string form of a statement UUID.
type StatementID string

// ParseStatementID validates s as a UUID and returns its canonical lower-case form.
func ParseStatementID(s string) (StatementID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return StatementID(u.String()), nil
}

// String returns the id as a plain string.
func (id StatementID) String() string {
	return string(id)
}

// Statement records an actor performing a verb against an object.
type Statement struct {
	ID          StatementID
	Actor       Actor
	Verb        Verb
	Object      Object
	Result      *Result
	Authority   Actor
	Timestamp   *time.Time
	Stored      *time.Time
	Attachments []Attachment
}

// IsVoiding reports whether the statement voids another statement.
func (s Statement) IsVoiding() bool {
	return s.Verb.IsVoiding()
}

// WithID returns a copy of s with the given id.
func (s Statement) WithID(id StatementID) Statement {
	s.ID = id
	return s
}

// WithStored returns a copy of s with the given stored timestamp.
func (s Statement) WithStored(t time.Time) Statement {
	s.Stored = &t
	return s
}

// AsSubStatement re-wraps s as an embedded sub-statement.
// Id, authority and stored timestamp are dropped.
func (s Statement) AsSubStatement() SubStatement {
	return SubStatement{
		Actor:       s.Actor,
		Verb:        s.Verb,
		Object:      s.Object,
		Result:      s.Result,
		Timestamp:   s.Timestamp,
		Attachments: s.Attachments,
	}
}
