package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"no fence", "  <p>x</p>\n", "<p>x</p>"},
		{"html fence", "Here you go:\n```html\n<!DOCTYPE html>\n<p>x</p>\n```\nEnjoy", "<!DOCTYPE html>\n<p>x</p>"},
		{"bare fence", "```\nconst a = 1\n```", "const a = 1"},
		{"unterminated", "```html\n<div>partial", "<div>partial"},
		{"inline content after fence", "```<p>x</p>```", "<p>x</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSONObject("Sure! ```json\n{\"a\":1}\n``` done"))
	assert.Equal(t, `[1,2]`, ExtractJSONObject("list: [1,2] ok"))
	assert.Equal(t, "", ExtractJSONObject("   "))
}

func TestDecodeLenient(t *testing.T) {
	var out struct {
		A int      `json:"a"`
		B []string `json:"b"`
	}

	require.NoError(t, DecodeLenient(`{"a": 1, "b": ["x",],}`, &out))
	assert.Equal(t, 1, out.A)
	assert.Equal(t, []string{"x"}, out.B)

	require.Error(t, DecodeLenient("no json here", &out))
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "ação", TruncateByRunes("ação rápida", 4))
	assert.Equal(t, "", TruncateByRunes("x", 0))
}
