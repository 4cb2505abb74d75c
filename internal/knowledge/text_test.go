package knowledge

import (
	"testing"

	"kbmcp/internal/matcher"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	kb := matcher.KnowledgeBase{
		{Question: "What is our remote work policy?", Answer: "Hybrid, three days in office."},
		{Question: "How do I submit an expense report?", Answer: "Use the expense system."},
	}

	want := "Here is the retrieved knowledge base:\n\n" +
		"Q1: What is our remote work policy?\nA1: Hybrid, three days in office.\n\n" +
		"Q2: How do I submit an expense report?\nA2: Use the expense system.\n\n"
	assert.Equal(t, want, Format(kb))
}

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, Header, Format(nil))
}

func TestParseText_RoundTrip(t *testing.T) {
	kb := matcher.KnowledgeBase{
		{Question: "What is our vacation policy?", Answer: "20 days of paid time off per year."},
		{Question: "Can I work remotely?", Answer: "Yes.\nUp to three days a week."},
		{Question: "Who handles IT issues?", Answer: "Email it@company.com."},
	}

	assert.Equal(t, kb, ParseText(Format(kb)))
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want matcher.KnowledgeBase
	}{
		{
			name: "empty",
			in:   "",
			want: matcher.KnowledgeBase{},
		},
		{
			name: "header only",
			in:   Header,
			want: matcher.KnowledgeBase{},
		},
		{
			name: "whitespace after markers is trimmed",
			in:   "Q1:    Spaced question?  \nA1:\tTabbed answer\n",
			want: matcher.KnowledgeBase{{Question: "Spaced question?", Answer: "Tabbed answer"}},
		},
		{
			name: "multi line answer stops at next block",
			in:   "Q1: First?\nA1: line one\nline two\n\nQ2: Second?\nA2: two",
			want: matcher.KnowledgeBase{
				{Question: "First?", Answer: "line one\nline two"},
				{Question: "Second?", Answer: "two"},
			},
		},
		{
			name: "gap stops parsing",
			in:   "Q1: One?\nA1: 1\nQ3: Three?\nA3: 3",
			want: matcher.KnowledgeBase{{Question: "One?", Answer: "1"}},
		},
		{
			name: "missing answer is empty",
			in:   "Q1: Lonely question?",
			want: matcher.KnowledgeBase{{Question: "Lonely question?", Answer: ""}},
		},
		{
			name: "double digit ordinals",
			in: "Q1: a\nA1: 1\nQ2: b\nA2: 2\nQ3: c\nA3: 3\nQ4: d\nA4: 4\nQ5: e\nA5: 5\n" +
				"Q6: f\nA6: 6\nQ7: g\nA7: 7\nQ8: h\nA8: 8\nQ9: i\nA9: 9\nQ10: j\nA10: 10\n",
			want: matcher.KnowledgeBase{
				{Question: "a", Answer: "1"}, {Question: "b", Answer: "2"}, {Question: "c", Answer: "3"},
				{Question: "d", Answer: "4"}, {Question: "e", Answer: "5"}, {Question: "f", Answer: "6"},
				{Question: "g", Answer: "7"}, {Question: "h", Answer: "8"}, {Question: "i", Answer: "9"},
				{Question: "j", Answer: "10"},
			},
		},
		{
			name: "lowercase markers do not split",
			in:   "Q1: What about q2: inline?\nA1: fine",
			want: matcher.KnowledgeBase{{Question: "What about q2: inline?", Answer: "fine"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseText(tt.in))
		})
	}
}
