package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

func TestLanguageMapRoundTrip(t *testing.T) {
	m := xapi.LanguageMap{"en-US": "attempted", "de-DE": "versucht"}

	text, err := EncodeLanguageMap(m)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"de-DE":"versucht","en-US":"attempted"},"v":1}`, text)

	decoded, err := DecodeLanguageMap(text)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestLanguageMapNilEncodesEmpty(t *testing.T) {
	text, err := EncodeLanguageMap(nil)
	require.NoError(t, err)
	assert.Equal(t, `{"data":{},"v":1}`, text)

	decoded, err := DecodeLanguageMap(text)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecodeLanguageMapEmptyText(t *testing.T) {
	decoded, err := DecodeLanguageMap("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestEncodeLanguageMapRejectsInvalidTag(t *testing.T) {
	_, err := EncodeLanguageMap(xapi.LanguageMap{"not a tag!": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid language tag")
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := DecodeLanguageMap(`{"data":{"en":"x"},"v":2}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = DecodeExtensions(`{"data":{}}`)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestDecodeRejectsMalformedEnvelope(t *testing.T) {
	for _, text := range []string{
		`not json`,
		`{"data":{"en":"x"},"v":1,"extra":true}`,
		`{"data":["en"],"v":1}`,
	} {
		_, err := DecodeLanguageMap(text)
		assert.Error(t, err, text)
	}
}

func TestExtensionsRoundTrip(t *testing.T) {
	ext := xapi.Extensions{
		"http://example.com/ext/score": json.Number("0.5"),
		"http://example.com/ext/tags":  []any{"a", "b"},
		"http://example.com/ext/meta":  map[string]any{"ok": true, "note": nil},
	}

	text, err := EncodeExtensions(ext)
	require.NoError(t, err)

	decoded, err := DecodeExtensions(text)
	require.NoError(t, err)
	assert.Equal(t, ext, decoded)
}

func TestExtensionsNumbersDecodeAsJSONNumber(t *testing.T) {
	text, err := EncodeExtensions(xapi.Extensions{
		"http://example.com/count": 3,
		"http://example.com/big":   json.Number("9007199254740993"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"http://example.com/big":9007199254740993,"http://example.com/count":3},"v":1}`, text)

	decoded, err := DecodeExtensions(text)
	require.NoError(t, err)
	assert.Equal(t, json.Number("3"), decoded["http://example.com/count"])
	assert.Equal(t, json.Number("9007199254740993"), decoded["http://example.com/big"])
}

func TestCodecKeepsUnicodeForm(t *testing.T) {
	decomposed := "Cafe\u0301"

	text, err := EncodeLanguageMap(xapi.LanguageMap{"en": decomposed})
	require.NoError(t, err)
	m, err := DecodeLanguageMap(text)
	require.NoError(t, err)
	assert.Equal(t, decomposed, m["en"])

	ext := xapi.Extensions{
		"http://x/\u00e9":  json.Number("1"),
		"http://x/e\u0301": json.Number("2"),
		"http://x/note":    decomposed,
	}
	text, err = EncodeExtensions(ext)
	require.NoError(t, err)
	decoded, err := DecodeExtensions(text)
	require.NoError(t, err)
	assert.Equal(t, ext, decoded)
}

func TestEncodeExtensionsRejectsUnsupportedValue(t *testing.T) {
	_, err := EncodeExtensions(xapi.Extensions{"x": make(chan int)})
	assert.Error(t, err)
}
