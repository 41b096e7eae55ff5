package document

import (
	"encoding/base64"
	"time"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// FromModel converts a statement into its document form.
func FromModel(s xapi.Statement) Statement {
	out := Statement{
		ID:          string(s.ID),
		Actor:       actorFromModel(s.Actor),
		Verb:        verbFromModel(s.Verb),
		Object:      objectFromModel(s.Object),
		Result:      resultFromModel(s.Result),
		Timestamp:   formatTime(s.Timestamp),
		Stored:      formatTime(s.Stored),
		Attachments: attachmentsFromModel(s.Attachments),
	}
	if s.Authority != nil {
		out.Authority = actorFromModel(s.Authority)
	}
	return out
}

func actorFromModel(a xapi.Actor) *Actor {
	switch a := a.(type) {
	case xapi.Agent:
		out := &Actor{Name: a.Name}
		setIdentifier(out, a.IFI)
		return out
	case xapi.Group:
		out := &Actor{ObjectType: TypeGroup, Name: a.Name}
		if a.IFI != nil {
			setIdentifier(out, *a.IFI)
		}
		for _, m := range a.Members {
			out.Members = append(out.Members, *actorFromModel(m))
		}
		return out
	default:
		return nil
	}
}

func setIdentifier(out *Actor, ifi xapi.InverseFunctionalIdentifier) {
	out.Mbox = string(ifi.Mbox)
	out.MboxSHA1Sum = ifi.MboxSHA1Sum
	out.OpenID = ifi.OpenID
	if ifi.Account != nil {
		out.Account = &Account{Name: ifi.Account.Name, HomePage: string(ifi.Account.HomePage)}
	}
}

func verbFromModel(v xapi.Verb) *Verb {
	return &Verb{ID: string(v.ID), Display: v.Display}
}

func objectFromModel(o xapi.Object) *Object {
	switch o := o.(type) {
	case xapi.Activity:
		out := &Object{ObjectType: TypeActivity, ID: string(o.ID)}
		if d := o.Definition; d != nil {
			out.Definition = &Definition{Name: d.Name, Description: d.Description, Type: string(d.Type)}
		}
		return out
	case xapi.StatementReference:
		return &Object{ObjectType: TypeStatementRef, ID: string(o.StatementID)}
	case xapi.SubStatement:
		return &Object{
			ObjectType:  TypeSubStatement,
			Actor:       actorFromModel(o.Actor),
			Verb:        verbFromModel(o.Verb),
			Object:      objectFromModel(o.Object),
			Result:      resultFromModel(o.Result),
			Timestamp:   formatTime(o.Timestamp),
			Attachments: attachmentsFromModel(o.Attachments),
		}
	default:
		return nil
	}
}

func resultFromModel(r *xapi.Result) *Result {
	if r == nil {
		return nil
	}
	out := &Result{
		Success:    r.Success,
		Completion: r.Completion,
		Response:   r.Response,
		Duration:   r.Duration,
		Extensions: r.Extensions,
	}
	if s := r.Score; s != nil {
		out.Score = &Score{Scaled: s.Scaled, Raw: s.Raw, Min: s.Min, Max: s.Max}
	}
	return out
}

func attachmentsFromModel(in []xapi.Attachment) []Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attachment, len(in))
	for i, a := range in {
		out[i] = Attachment{
			UsageType:   string(a.UsageType),
			ContentType: a.ContentType,
			Length:      a.Length,
			SHA2:        a.SHA2,
			Display:     a.Display,
			Description: a.Description,
			FileURL:     string(a.FileURL),
		}
		if len(a.Content) > 0 {
			out[i].Content = base64.StdEncoding.EncodeToString(a.Content)
		}
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
