package masterdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixPatternEscapesWildcards(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "%"},
		{"   ", "%"},
		{"abc", "abc%"},
		{"10%", `10\%%`},
		{"a_b", `a\_b%`},
		{`a\b`, `a\\b%`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, prefixPattern(tc.in), "input %q", tc.in)
	}
}
