package xapi

// LanguageMap maps RFC 5646 language tags to localized strings.
// A nil map means "absent".
type LanguageMap map[string]string

// Verb is the action part of a statement.
type Verb struct {
	ID      IRI
	Display LanguageMap
}

// IsVoiding reports whether the verb retracts another statement.
func (v Verb) IsVoiding() bool {
	return v.ID == VerbVoided
}

// Score is the numeric outcome of a statement. Every part is optional.
type Score struct {
	Scaled *float64
	Raw    *float64
	Min    *float64
	Max    *float64
}

// Extensions holds opaque extension data keyed by IRI. Loaded numbers are
// json.Number values.
type Extensions map[string]any

// Result is the optional outcome attached to a statement.
type Result struct {
	Score      *Score
	Success    *bool
	Completion *bool
	Response   *string
	Duration   *string
	Extensions Extensions
}
