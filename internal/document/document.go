// Package document reads and writes xAPI statements as YAML or JSON
// documents for the CLI and the conformance harness.
//
// Field names follow the xAPI JSON vocabulary (objectType, mbox_sha1sum,
// homePage, ...). JSON input is accepted wherever YAML is, since every
// JSON document is a YAML document.
package document

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// Object types accepted in documents.
const (
	TypeAgent        = "Agent"
	TypeGroup        = "Group"
	TypeActivity     = "Activity"
	TypeStatementRef = "StatementRef"
	TypeSubStatement = "SubStatement"
)

// Statement is the document form of an xAPI statement.
type Statement struct {
	ID          string       `yaml:"id,omitempty" json:"id,omitempty"`
	Actor       *Actor       `yaml:"actor" json:"actor"`
	Verb        *Verb        `yaml:"verb" json:"verb"`
	Object      *Object      `yaml:"object" json:"object"`
	Result      *Result      `yaml:"result,omitempty" json:"result,omitempty"`
	Authority   *Actor       `yaml:"authority,omitempty" json:"authority,omitempty"`
	Timestamp   string       `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	Stored      string       `yaml:"stored,omitempty" json:"stored,omitempty"`
	Attachments []Attachment `yaml:"attachments,omitempty" json:"attachments,omitempty"`
}

// Actor is an Agent or a Group.
type Actor struct {
	ObjectType  string   `yaml:"objectType,omitempty" json:"objectType,omitempty"`
	Name        string   `yaml:"name,omitempty" json:"name,omitempty"`
	Mbox        string   `yaml:"mbox,omitempty" json:"mbox,omitempty"`
	MboxSHA1Sum string   `yaml:"mbox_sha1sum,omitempty" json:"mbox_sha1sum,omitempty"`
	OpenID      string   `yaml:"openid,omitempty" json:"openid,omitempty"`
	Account     *Account `yaml:"account,omitempty" json:"account,omitempty"`
	Members     []Actor  `yaml:"member,omitempty" json:"member,omitempty"`
}

type Account struct {
	Name     string `yaml:"name" json:"name"`
	HomePage string `yaml:"homePage" json:"homePage"`
}

type Verb struct {
	ID      string            `yaml:"id" json:"id"`
	Display map[string]string `yaml:"display,omitempty" json:"display,omitempty"`
}

// Object is an Activity, a StatementRef or a SubStatement. ObjectType
// defaults to Activity. ID is the activity IRI or the referenced
// statement id; the sub-statement fields are used only by SubStatement.
type Object struct {
	ObjectType string      `yaml:"objectType,omitempty" json:"objectType,omitempty"`
	ID         string      `yaml:"id,omitempty" json:"id,omitempty"`
	Definition *Definition `yaml:"definition,omitempty" json:"definition,omitempty"`

	Actor       *Actor       `yaml:"actor,omitempty" json:"actor,omitempty"`
	Verb        *Verb        `yaml:"verb,omitempty" json:"verb,omitempty"`
	Object      *Object      `yaml:"object,omitempty" json:"object,omitempty"`
	Result      *Result      `yaml:"result,omitempty" json:"result,omitempty"`
	Timestamp   string       `yaml:"timestamp,omitempty" json:"timestamp,omitempty"`
	Attachments []Attachment `yaml:"attachments,omitempty" json:"attachments,omitempty"`
}

type Definition struct {
	Name        map[string]string `yaml:"name,omitempty" json:"name,omitempty"`
	Description map[string]string `yaml:"description,omitempty" json:"description,omitempty"`
	Type        string            `yaml:"type,omitempty" json:"type,omitempty"`
}

type Result struct {
	Score      *Score         `yaml:"score,omitempty" json:"score,omitempty"`
	Success    *bool          `yaml:"success,omitempty" json:"success,omitempty"`
	Completion *bool          `yaml:"completion,omitempty" json:"completion,omitempty"`
	Response   *string        `yaml:"response,omitempty" json:"response,omitempty"`
	Duration   *string        `yaml:"duration,omitempty" json:"duration,omitempty"`
	Extensions map[string]any `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

type Score struct {
	Scaled *float64 `yaml:"scaled,omitempty" json:"scaled,omitempty"`
	Raw    *float64 `yaml:"raw,omitempty" json:"raw,omitempty"`
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Attachment carries optional inline content, base64-encoded.
type Attachment struct {
	UsageType   string            `yaml:"usageType" json:"usageType"`
	ContentType string            `yaml:"contentType" json:"contentType"`
	Length      int64             `yaml:"length" json:"length"`
	SHA2        string            `yaml:"sha2" json:"sha2"`
	Display     map[string]string `yaml:"display,omitempty" json:"display,omitempty"`
	Description map[string]string `yaml:"description,omitempty" json:"description,omitempty"`
	FileURL     string            `yaml:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	Content     string            `yaml:"content,omitempty" json:"content,omitempty"`
}

// Decode reads every statement document from r. Multiple YAML documents
// separated by "---" yield multiple statements. Unknown fields are
// rejected.
func Decode(r io.Reader) ([]Statement, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // Reject unknown fields

	var out []Statement
	for i := 0; ; i++ {
		var s Statement
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("no statement documents")
	}
	return out, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) ([]Statement, error) {
	return Decode(bytes.NewReader(data))
}

// ToModel converts the document into the statement model.
func (s Statement) ToModel() (xapi.Statement, error) {
	var out xapi.Statement
	var err error

	out.ID = xapi.StatementID(s.ID)
	if out.Actor, err = actorToModel(s.Actor); err != nil {
		return xapi.Statement{}, fmt.Errorf("actor: %w", err)
	}
	if out.Verb, err = verbToModel(s.Verb); err != nil {
		return xapi.Statement{}, err
	}
	if out.Object, err = objectToModel(s.Object, 0); err != nil {
		return xapi.Statement{}, fmt.Errorf("object: %w", err)
	}
	if out.Result, err = resultToModel(s.Result); err != nil {
		return xapi.Statement{}, err
	}
	if s.Authority != nil {
		if out.Authority, err = actorToModel(s.Authority); err != nil {
			return xapi.Statement{}, fmt.Errorf("authority: %w", err)
		}
	}
	if out.Timestamp, err = parseTime("timestamp", s.Timestamp); err != nil {
		return xapi.Statement{}, err
	}
	if out.Stored, err = parseTime("stored", s.Stored); err != nil {
		return xapi.Statement{}, err
	}
	if out.Attachments, err = attachmentsToModel(s.Attachments); err != nil {
		return xapi.Statement{}, err
	}
	return out, nil
}

func actorToModel(a *Actor) (xapi.Actor, error) {
	if a == nil {
		return nil, errors.New("missing actor")
	}
	ifi := xapi.InverseFunctionalIdentifier{
		Mbox:        xapi.IRI(a.Mbox),
		MboxSHA1Sum: a.MboxSHA1Sum,
		OpenID:      a.OpenID,
	}
	if a.Account != nil {
		ifi.Account = &xapi.Account{Name: a.Account.Name, HomePage: xapi.IRI(a.Account.HomePage)}
	}

	switch a.ObjectType {
	case "", TypeAgent:
		if len(a.Members) > 0 {
			return nil, errors.New("agent cannot have members")
		}
		return xapi.Agent{IFI: ifi, Name: a.Name}, nil
	case TypeGroup:
		g := xapi.Group{Name: a.Name}
		if ifi.Count() > 0 {
			g.IFI = &ifi
		}
		for i := range a.Members {
			m, err := actorToModel(&a.Members[i])
			if err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
			agent, ok := m.(xapi.Agent)
			if !ok {
				return nil, fmt.Errorf("member %d: groups cannot be members", i)
			}
			g.Members = append(g.Members, agent)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown actor type %q", a.ObjectType)
	}
}

func verbToModel(v *Verb) (xapi.Verb, error) {
	if v == nil {
		return xapi.Verb{}, errors.New("verb: missing verb")
	}
	return xapi.Verb{ID: xapi.IRI(v.ID), Display: languageMap(v.Display)}, nil
}

func objectToModel(o *Object, depth int) (xapi.Object, error) {
	if o == nil {
		return nil, errors.New("missing object")
	}
	switch o.ObjectType {
	case "", TypeActivity:
		a := xapi.Activity{ID: xapi.IRI(o.ID)}
		if d := o.Definition; d != nil {
			a.Definition = &xapi.Definition{
				Name:        languageMap(d.Name),
				Description: languageMap(d.Description),
				Type:        xapi.IRI(d.Type),
			}
		}
		return a, nil

	case TypeStatementRef:
		return xapi.StatementReference{StatementID: xapi.StatementID(o.ID)}, nil

	case TypeSubStatement:
		if depth > 0 {
			return nil, errors.New("sub-statements cannot be nested")
		}
		var sub xapi.SubStatement
		var err error
		if sub.Actor, err = actorToModel(o.Actor); err != nil {
			return nil, fmt.Errorf("actor: %w", err)
		}
		if sub.Verb, err = verbToModel(o.Verb); err != nil {
			return nil, err
		}
		if sub.Object, err = objectToModel(o.Object, depth+1); err != nil {
			return nil, fmt.Errorf("object: %w", err)
		}
		if sub.Result, err = resultToModel(o.Result); err != nil {
			return nil, err
		}
		if sub.Timestamp, err = parseTime("timestamp", o.Timestamp); err != nil {
			return nil, err
		}
		if sub.Attachments, err = attachmentsToModel(o.Attachments); err != nil {
			return nil, err
		}
		return sub, nil

	default:
		return nil, fmt.Errorf("unknown object type %q", o.ObjectType)
	}
}

func resultToModel(r *Result) (*xapi.Result, error) {
	if r == nil {
		return nil, nil
	}
	out := &xapi.Result{
		Success:    r.Success,
		Completion: r.Completion,
		Response:   r.Response,
		Duration:   r.Duration,
	}
	if r.Score != nil {
		out.Score = &xapi.Score{Scaled: r.Score.Scaled, Raw: r.Score.Raw, Min: r.Score.Min, Max: r.Score.Max}
	}
	if len(r.Extensions) > 0 {
		ext := make(xapi.Extensions, len(r.Extensions))
		for k, v := range r.Extensions {
			nv, err := normalize(v)
			if err != nil {
				return nil, fmt.Errorf("result: extension %s: %w", k, err)
			}
			ext[k] = nv
		}
		out.Extensions = ext
	}
	return out, nil
}

// normalize converts decoded YAML values into the shapes the store loads
// back: numbers become json.Number and nested maps map[string]any.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, json.Number:
		return t, nil
	case int:
		return json.Number(strconv.Itoa(t)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(t, 10)), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("non-finite number %v", t)
		}
		return json.Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ne, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			ne, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[k] = ne
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

func attachmentsToModel(in []Attachment) ([]xapi.Attachment, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]xapi.Attachment, len(in))
	for i, a := range in {
		out[i] = xapi.Attachment{
			UsageType:   xapi.IRI(a.UsageType),
			ContentType: a.ContentType,
			Length:      a.Length,
			SHA2:        a.SHA2,
			Display:     languageMap(a.Display),
			Description: languageMap(a.Description),
			FileURL:     xapi.IRI(a.FileURL),
		}
		if a.Content != "" {
			content, err := base64.StdEncoding.DecodeString(a.Content)
			if err != nil {
				return nil, fmt.Errorf("attachment %d: content: %w", i, err)
			}
			out[i].Content = content
		}
	}
	return out, nil
}

func parseTime(field, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	t = t.UTC()
	return &t, nil
}

// languageMap returns nil for an empty map so documents and loaded
// statements compare equal.
func languageMap(m map[string]string) xapi.LanguageMap {
	if len(m) == 0 {
		return nil
	}
	return xapi.LanguageMap(m)
}
