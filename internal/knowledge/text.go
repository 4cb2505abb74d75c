package knowledge

import (
	"fmt"
	"regexp"
	"strings"

	"kbmcp/internal/matcher"
)

// Header opens every formatted knowledge base.
const Header = "Here is the retrieved knowledge base:\n\n"

// nextMarker finds the start of the following "X<n>:" block.
var nextMarker = regexp.MustCompile(`\n[A-Z]\d+:`)

// Format renders kb as the text payload of the get_knowledge_base tool:
//
//	Here is the retrieved knowledge base:
//
//	Q1: <question>
//	A1: <answer>
//
//	Q2: ...
func Format(kb matcher.KnowledgeBase) string {
	var b strings.Builder
	b.WriteString(Header)
	for i, rec := range kb {
		n := i + 1
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", n, rec.Question, n, rec.Answer)
	}
	return b.String()
}

// ParseText extracts records from a formatted blob. Question n is the text
// after the first "Qn:" up to the next line that starts a "X<m>:" block; the
// answer is read from "An:" the same way. Parsing stops at the first ordinal
// without a non-empty question, so a gap hides every later record.
func ParseText(text string) matcher.KnowledgeBase {
	kb := matcher.KnowledgeBase{}
	for n := 1; ; n++ {
		question, ok := block(text, fmt.Sprintf("Q%d:", n))
		if !ok || question == "" {
			return kb
		}
		answer, _ := block(text, fmt.Sprintf("A%d:", n))
		kb = append(kb, matcher.Record{Question: question, Answer: answer})
	}
}

func block(text, marker string) (string, bool) {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(marker):]
	if loc := nextMarker.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return strings.TrimSpace(rest), true
}
