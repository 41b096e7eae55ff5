package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, `null`},
		{"true", true, `true`},
		{"false", false, `false`},
		{"int", 42, `42`},
		{"negative int64", int64(-7), `-7`},
		{"integral float", 3.0, `3`},
		{"zero float", 0.0, `0`},
		{"fraction", 0.75, `0.75`},
		{"negative fraction", -1.5, `-1.5`},
		{"large float", 1e21, `1e+21`},
		{"string", "hello", `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{"z": 1, "a": 2, "m": map[string]any{"y": true, "b": false}}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":{"b":false,"y":true},"z":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes to a surrogate pair starting at 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<b>a & b</b>")
	require.NoError(t, err)
	assert.Equal(t, `"<b>a & b</b>"`, string(result))
}

func TestMarshalCanonicalKeepsUnicodeForm(t *testing.T) {
	decomposed := "Cafe\u0301"

	result, err := MarshalCanonical(map[string]any{decomposed: decomposed})
	require.NoError(t, err)
	assert.Equal(t, "{\"Cafe\u0301\":\"Cafe\u0301\"}", string(result))
}

func TestMarshalNFCNormalization(t *testing.T) {
	// e + combining acute accent becomes the precomposed form.
	decomposed := "e\u0301"

	result, err := MarshalNFC(map[string]any{decomposed: decomposed})
	require.NoError(t, err)
	assert.Equal(t, "{\"\u00e9\":\"\u00e9\"}", string(result))
}

func TestMarshalNFCRejectsCollidingKeys(t *testing.T) {
	_, err := MarshalNFC(map[string]any{"http://x/\u00e9": 1, "http://x/e\u0301": 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equal after NFC normalization")

	result, err := MarshalCanonical(map[string]any{"http://x/\u00e9": 1, "http://x/e\u0301": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"http://x/e\u0301\":2,\"http://x/\u00e9\":1}", string(result))
}

func TestMarshalCanonicalNumberLiterals(t *testing.T) {
	tests := []struct {
		input    json.Number
		expected string
		wantErr  bool
	}{
		{"9007199254740993", "9007199254740993", false},
		{"-0.5", "-0.5", false},
		{"1e+21", "1e+21", false},
		{"", "", true},
		{" 1", "", true},
		{"1 2", "", true},
		{"0x10", "", true},
		{"\"1\"", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	zero := 0.0
	for _, v := range []float64{zero / zero, 1 / zero, -1 / zero} {
		_, err := MarshalCanonical(v)
		assert.Error(t, err)
	}
}

func TestMarshalCanonicalRejectsUnsupportedTypes(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	_, err = MarshalCanonical(map[string]any{"nested": []any{1, struct{}{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `value for key "nested": array[1]`)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"line separator", "a\u2028b", "\"a\u2028b\""},
		{"paragraph separator", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `is \u2028`, `"is \\u2028"`},
		{"literal and actual", "lit \\u2029 act \u2029", "\"lit \\\\u2029 act \u2029\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalControlCharactersEscaped(t *testing.T) {
	result, err := MarshalCanonical("tab\there\nquote\"")
	require.NoError(t, err)
	assert.Equal(t, `"tab\there\nquote\""`, string(result))
}

func TestMarshalCanonicalIdempotent(t *testing.T) {
	obj := map[string]any{"b": []any{1.5, "x", nil}, "a": map[string]string{"en": "hi"}}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for range 5 {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
