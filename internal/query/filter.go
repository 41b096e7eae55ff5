package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

var (
	// ErrUnsupportedFilter is returned for filter keys the store does not
	// implement.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	// ErrInvalidFilter is returned for supported keys with malformed values.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Filter keys understood by ParseFilter.
const (
	KeyStatementID = "statementId"
	KeyVerb        = "verb"
	KeyActivity    = "activity"
	KeyAgent       = "agent"
	KeySince       = "since"
	KeyUntil       = "until"
	KeyLimit       = "limit"
	KeyAscending   = "ascending"
)

// unsupportedKeys are xAPI filter parameters this store knows about but
// does not implement.
var unsupportedKeys = map[string]string{
	"voidedStatementId":  "use the voided statement lookup instead",
	"registration":       "statement context is not stored",
	"related_activities": "statement context is not stored",
	"related_agents":     "statement context is not stored",
	"format":             "response formatting is not a storage concern",
	"attachments":        "attachments are always loaded",
}

// Tables and columns referenced by StatementsFilter.Query.
const (
	StatementsTable = "xapi_statements"
	ActorsTable     = "xapi_actors"
)

// StatementsFilter is the typed form of a FindBy filter. Zero values mean
// "not filtered".
type StatementsFilter struct {
	StatementID xapi.StatementID
	Verb        xapi.IRI
	Activity    xapi.IRI
	Agent       *xapi.InverseFunctionalIdentifier
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Ascending   bool
}

// ParseFilter converts raw filter parameters into a StatementsFilter.
//
// Unknown keys and keys listed as unsupported fail with
// ErrUnsupportedFilter. All offending keys are reported, sorted.
func ParseFilter(params map[string]string) (StatementsFilter, error) {
	var f StatementsFilter

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var unsupported []string
	for _, k := range keys {
		v := params[k]
		var err error
		switch k {
		case KeyStatementID:
			f.StatementID, err = xapi.ParseStatementID(v)
		case KeyVerb:
			f.Verb, err = parseIRI(v)
		case KeyActivity:
			f.Activity, err = parseIRI(v)
		case KeyAgent:
			f.Agent, err = parseAgent(v)
		case KeySince:
			f.Since, err = parseTime(v)
		case KeyUntil:
			f.Until, err = parseTime(v)
		case KeyLimit:
			f.Limit, err = parseLimit(v)
		case KeyAscending:
			f.Ascending, err = strconv.ParseBool(v)
		default:
			if reason, ok := unsupportedKeys[k]; ok {
				unsupported = append(unsupported, fmt.Sprintf("%s (%s)", k, reason))
			} else {
				unsupported = append(unsupported, k)
			}
			continue
		}
		if err != nil {
			return StatementsFilter{}, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, k, err)
		}
	}

	if len(unsupported) > 0 {
		return StatementsFilter{}, fmt.Errorf("%w: %s", ErrUnsupportedFilter, strings.Join(unsupported, ", "))
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		return StatementsFilter{}, fmt.Errorf("%w: until is before since", ErrInvalidFilter)
	}
	return f, nil
}

func parseIRI(v string) (xapi.IRI, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errors.New("empty IRI")
	}
	return xapi.IRI(v), nil
}

func parseTime(v string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func parseLimit(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative limit %d", n)
	}
	return n, nil
}

// agentParam is the JSON shape of the xAPI "agent" filter parameter.
type agentParam struct {
	ObjectType  string `json:"objectType"`
	Name        string `json:"name"`
	Mbox        string `json:"mbox"`
	MboxSHA1Sum string `json:"mbox_sha1sum"`
	OpenID      string `json:"openid"`
	Account     *struct {
		Name     string `json:"name"`
		HomePage string `json:"homePage"`
	} `json:"account"`
}

func parseAgent(v string) (*xapi.InverseFunctionalIdentifier, error) {
	var p agentParam
	dec := json.NewDecoder(strings.NewReader(v))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("agent must be a JSON object: %w", err)
	}

	ifi := xapi.InverseFunctionalIdentifier{
		Mbox:        xapi.IRI(p.Mbox),
		MboxSHA1Sum: p.MboxSHA1Sum,
		OpenID:      p.OpenID,
	}
	if p.Account != nil {
		ifi.Account = &xapi.Account{Name: p.Account.Name, HomePage: xapi.IRI(p.Account.HomePage)}
	}
	if ifi.Count() != 1 {
		return nil, fmt.Errorf("agent must have exactly one identifier, got %d", ifi.Count())
	}
	return &ifi, nil
}

// Query builds the Select that finds the row ids of matching top-level
// statements of one LRS. Sub-statement rows never match.
//
// Results are ordered by stored time, newest first unless Ascending is set,
// with the row id as tiebreaker.
func (f StatementsFilter) Query(lrsID int64) Select {
	preds := []Predicate{
		Equals{Field: "lrs_id", Value: lrsID},
		Equals{Field: "is_sub_statement", Value: false},
	}
	if f.StatementID != "" {
		preds = append(preds, Equals{Field: "uuid", Value: f.StatementID.String()})
	}
	if f.Verb != "" {
		preds = append(preds, Equals{Field: "verb_iri", Value: string(f.Verb)})
	}
	if f.Activity != "" {
		preds = append(preds,
			Equals{Field: "object_type", Value: string(xapi.ObjectActivity)},
			Equals{Field: "activity_id", Value: string(f.Activity)},
		)
	}
	if f.Agent != nil {
		preds = append(preds, In{Field: "actor_id", Sub: Select{
			From:    ActorsTable,
			Columns: []string{"id"},
			Filter:  identifierPredicate(*f.Agent),
		}})
	}
	if f.Since != nil {
		preds = append(preds, Compare{Field: "stored", Op: OpGreater, Value: f.Since.UnixMicro()})
	}
	if f.Until != nil {
		preds = append(preds, Compare{Field: "stored", Op: OpLessOrEqual, Value: f.Until.UnixMicro()})
	}

	desc := !f.Ascending
	return Select{
		From:    StatementsTable,
		Columns: []string{"id"},
		Filter:  And{Predicates: preds},
		OrderBy: []Order{
			{Column: "stored", Descending: desc},
			{Column: "id", Descending: desc},
		},
		Limit: f.Limit,
	}
}

// identifierPredicate matches actor rows carrying the winning identifier
// of ifi.
func identifierPredicate(ifi xapi.InverseFunctionalIdentifier) Predicate {
	switch ifi.Kind() {
	case xapi.IdentifierMbox:
		return Equals{Field: "mbox", Value: string(ifi.Mbox)}
	case xapi.IdentifierMboxSHA1Sum:
		return Equals{Field: "mbox_sha1_sum", Value: ifi.MboxSHA1Sum}
	case xapi.IdentifierOpenID:
		return Equals{Field: "open_id", Value: ifi.OpenID}
	case xapi.IdentifierAccount:
		return And{Predicates: []Predicate{
			Equals{Field: "has_account", Value: true},
			Equals{Field: "account_name", Value: ifi.Account.Name},
			Equals{Field: "account_home_page", Value: string(ifi.Account.HomePage)},
		}}
	default:
		// ParseFilter never produces an identifier-less agent; match nothing.
		return Equals{Field: "id", Value: int64(-1)}
	}
}
