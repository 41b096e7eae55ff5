package store

import (
	"database/sql"

	"github.com/xabbuh/studip-experience-api-plugin/internal/codec"
	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// verbColumns maps a verb to its columns. An empty display map is stored
// as NULL.
func verbColumns(v xapi.Verb) (verbCols, error) {
	const op = "persist verb"

	if v.ID == "" {
		return verbCols{}, errInvalid(op, "verb has no id")
	}
	cols := verbCols{VerbIRI: string(v.ID)}
	if len(v.Display) > 0 {
		display, err := codec.EncodeLanguageMap(v.Display)
		if err != nil {
			return verbCols{}, newError(KindInvalid, op, err, "verb display")
		}
		cols.VerbDisplay = sql.NullString{String: display, Valid: true}
	}
	return cols, nil
}

func verbFromRow(cols verbCols) (xapi.Verb, error) {
	const op = "load verb"

	display, err := codec.DecodeLanguageMap(cols.VerbDisplay.String)
	if err != nil {
		return xapi.Verb{}, newError(KindDataIntegrity, op, err, "verb display")
	}
	return xapi.Verb{ID: xapi.IRI(cols.VerbIRI), Display: display}, nil
}

// resultColumns maps an optional result to its columns.
func resultColumns(r *xapi.Result) (resultCols, error) {
	if r == nil {
		return resultCols{}, nil
	}

	cols := resultCols{
		HasResult:  true,
		Success:    nullBool(r.Success),
		Completion: nullBool(r.Completion),
		Response:   nullStringPtr(r.Response),
		Duration:   nullStringPtr(r.Duration),
	}
	if r.Score != nil {
		cols.HasScore = true
		cols.ScoreScaled = nullFloat(r.Score.Scaled)
		cols.ScoreRaw = nullFloat(r.Score.Raw)
		cols.ScoreMin = nullFloat(r.Score.Min)
		cols.ScoreMax = nullFloat(r.Score.Max)
	}
	if len(r.Extensions) > 0 {
		ext, err := codec.EncodeExtensions(r.Extensions)
		if err != nil {
			return resultCols{}, newError(KindInvalid, "persist result", err, "result extensions")
		}
		cols.Extensions = sql.NullString{String: ext, Valid: true}
	}
	return cols, nil
}

// resultFromRow rebuilds the result. When HasResult is false every result
// column is ignored, whatever it holds.
func resultFromRow(cols resultCols) (*xapi.Result, error) {
	if !cols.HasResult {
		return nil, nil
	}

	r := &xapi.Result{
		Success:    boolPtr(cols.Success),
		Completion: boolPtr(cols.Completion),
		Response:   stringPtr(cols.Response),
		Duration:   stringPtr(cols.Duration),
	}
	if cols.HasScore {
		r.Score = &xapi.Score{
			Scaled: floatPtr(cols.ScoreScaled),
			Raw:    floatPtr(cols.ScoreRaw),
			Min:    floatPtr(cols.ScoreMin),
			Max:    floatPtr(cols.ScoreMax),
		}
	}
	ext, err := codec.DecodeExtensions(cols.Extensions.String)
	if err != nil {
		return nil, newError(KindDataIntegrity, "load result", err, "result extensions")
	}
	r.Extensions = ext
	return r, nil
}
