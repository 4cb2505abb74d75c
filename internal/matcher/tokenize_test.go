package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: []string{}},
		{name: "whitespace only", in: " \t\n ", want: []string{}},
		{name: "punctuation only", in: "?!.,;:'\"()", want: []string{}},
		{name: "lowercases", in: "How DO I", want: []string{"do", "how", "i"}},
		{name: "strips trailing punctuation", in: "report?", want: []string{"report"}},
		{name: "apostrophe is removed not split", in: "company's", want: []string{"companys"}},
		{name: "hyphen joins words", in: "full-time", want: []string{"fulltime"}},
		{name: "underscore kept", in: "snake_case word", want: []string{"snake_case", "word"}},
		{name: "digits kept", in: "Q4 2024 $100", want: []string{"100", "2024", "q4"}},
		{name: "duplicates collapse", in: "a A a!", want: []string{"a"}},
		{name: "mixed whitespace separators", in: "one\ttwo\nthree  four", want: []string{"four", "one", "three", "two"}},
		{name: "email collapses", in: "security@company.com", want: []string{"securitycompanycom"}},
		{name: "non-ascii letters kept", in: "Café Über", want: []string{"café", "über"}},
		{name: "decomposed accents compose", in: "Cafe\u0301", want: []string{"café"}},
		{name: "symbols dropped", in: "50% off → now", want: []string{"50", "now", "off"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in).Sorted())
		})
	}
}

func TestTokenSet_Intersect(t *testing.T) {
	a := Tokenize("how do i submit a report")
	b := Tokenize("submit an expense report")

	assert.Equal(t, []string{"report", "submit"}, a.Intersect(b).Sorted())
	assert.Equal(t, a.Intersect(b), b.Intersect(a))
	assert.Empty(t, a.Intersect(TokenSet{}))
}

func TestTokenSet_Contains(t *testing.T) {
	s := Tokenize("Vacation policy")

	assert.True(t, s.Contains("vacation"))
	assert.False(t, s.Contains("Vacation"))
}

func TestMatch_DecomposedAccentsMatchPrecomposed(t *testing.T) {
	kb := KnowledgeBase{
		{Question: "Where is the cafe?", Answer: "Ground floor."},
		{Question: "Is the café open on Sundays?", Answer: "No."},
	}

	result := Match(kb, "Cafe\u0301 hours")

	require.True(t, result.Found())
	assert.Equal(t, 2, result.Ordinal)
	assert.Equal(t, []string{"café"}, result.MatchingTokens)
}
