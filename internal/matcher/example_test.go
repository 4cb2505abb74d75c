package matcher_test

import (
	"fmt"

	"kbmcp/internal/matcher"
)

func ExampleMatch() {
	kb := matcher.KnowledgeBase{
		{Question: "What is our remote work policy?", Answer: "Hybrid."},
		{Question: "How do I submit an expense report?", Answer: "Use the expense system."},
	}

	result := matcher.Match(kb, "How can I submit a report on expenses?")
	if !result.Found() {
		fmt.Println("no match")
		return
	}
	fmt.Printf("Q%d (score %d): %s\n", result.Ordinal, result.Score, result.Record.Answer)
	for _, d := range result.Diagnostics {
		fmt.Printf("Q%d %d %v\n", d.Ordinal, d.Score, d.MatchingTokens)
	}
	// Output:
	// Q2 (score 4): Use the expense system.
	// Q1 0 []
	// Q2 4 [how i report submit]
}

func ExampleMatch_noMatch() {
	kb := matcher.KnowledgeBase{{Question: "What is our vacation policy?"}}

	result := matcher.Match(kb, "")
	fmt.Println(result.Found(), len(result.Diagnostics))
	// Output: false 1
}
