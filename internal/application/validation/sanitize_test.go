package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims", "  hi  ", "hi"},
		{"keeps common whitespace", "a\tb\nc\r\nd", "a\tb\nc\r\nd"},
		{"strips control chars", "a\x00b\x1bc\x7fd", "abcd"},
		{"short run untouched", "a" + strings.Repeat(" ", 9) + "b", "a" + strings.Repeat(" ", 9) + "b"},
		{"long run collapses to ten", "a" + strings.Repeat(" ", 25) + "b", "a" + strings.Repeat(" ", 10) + "b"},
		{"mixed whitespace run keeps first ten", "a" + strings.Repeat("\n ", 8) + "b", "a" + strings.Repeat("\n ", 5) + "b"},
		{"control chars do not break a run", "a" + strings.Repeat(" \x01", 12) + "b", "a" + strings.Repeat(" ", 10) + "b"},
		{"only whitespace", " \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	in := "x" + strings.Repeat(" ", 40) + "\x02y  "
	once := Sanitize(in)
	assert.Equal(t, once, Sanitize(once))
}
