package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// Version is the envelope version written by this package.
const Version = 1

// ErrUnsupportedVersion is returned when a stored envelope has a version this
// package cannot read.
var ErrUnsupportedVersion = errors.New("unsupported codec version")

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Version int             `json:"v"`
}

func encode(data any) (string, error) {
	out, err := MarshalCanonical(map[string]any{
		"data": data,
		"v":    Version,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decode(text string) (json.RawMessage, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	return env.Data, nil
}

// EncodeLanguageMap encodes a language map. A nil map is encoded as an
// empty map; callers that need a NULL column check for nil themselves.
//
// Keys must be well-formed BCP 47 language tags. They are stored as given,
// not canonicalized.
func EncodeLanguageMap(m xapi.LanguageMap) (string, error) {
	for tag := range m {
		if _, err := language.Parse(tag); err != nil {
			return "", fmt.Errorf("encode language map: invalid language tag %q: %w", tag, err)
		}
	}
	if m == nil {
		m = xapi.LanguageMap{}
	}
	out, err := encode(map[string]string(m))
	if err != nil {
		return "", fmt.Errorf("encode language map: %w", err)
	}
	return out, nil
}

// DecodeLanguageMap decodes a language map written by EncodeLanguageMap.
// An empty string or an empty map decode to nil.
func DecodeLanguageMap(text string) (xapi.LanguageMap, error) {
	if text == "" {
		return nil, nil
	}
	raw, err := decode(text)
	if err != nil {
		return nil, fmt.Errorf("decode language map: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode language map: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return xapi.LanguageMap(m), nil
}

// EncodeExtensions encodes result extensions. Values must be JSON values:
// nil, bool, string, numbers (json.Number included), []any or
// map[string]any. Keys and strings are stored exactly as given.
func EncodeExtensions(ext xapi.Extensions) (string, error) {
	if ext == nil {
		ext = xapi.Extensions{}
	}
	out, err := encode(map[string]any(ext))
	if err != nil {
		return "", fmt.Errorf("encode extensions: %w", err)
	}
	return out, nil
}

// DecodeExtensions decodes extensions written by EncodeExtensions.
// Numbers come back as json.Number holding the stored literal, so integers
// beyond 2^53 keep every digit.
func DecodeExtensions(text string) (xapi.Extensions, error) {
	if text == "" {
		return nil, nil
	}
	raw, err := decode(text)
	if err != nil {
		return nil, fmt.Errorf("decode extensions: %w", err)
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode extensions: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return xapi.Extensions(m), nil
}
