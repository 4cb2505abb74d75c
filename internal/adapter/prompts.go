package adapter

import (
	"fmt"
	"strings"

	"kbmcp/internal/config"
	"kbmcp/internal/matcher"
)

// GeminiSystemInstruction makes Gemini reach for the knowledge tool instead
// of answering from its own knowledge.
const GeminiSystemInstruction = `You are a helpful assistant with access to company knowledge base tools.
When asked about company policies, procedures, or information, you MUST use the available tools to retrieve the most current information.
Always use the get_knowledge_base tool when answering questions about company policies.`

// GeminiToolSuffix is appended to every tool description sent to Gemini.
const GeminiToolSuffix = ". Use this tool to retrieve company information and policies."

// Prompts holds the per-vendor prompt tweaks.
type Prompts struct {
	System     string
	ToolSuffix string
}

// PromptsFor returns the prompts used with a provider.
func PromptsFor(provider string) Prompts {
	if provider == config.ProviderGemini {
		return Prompts{System: GeminiSystemInstruction, ToolSuffix: GeminiToolSuffix}
	}
	return Prompts{}
}

// FinalPrompt builds the augmented question sent after the tool ran. With a
// match, the matched entry leads so the model does not have to find it.
func FinalPrompt(query, retrieved string, match matcher.MatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n\n", query)

	if match.Found() {
		fmt.Fprintf(&b, "Most relevant entry (Q%d):\nQ: %s\nA: %s\n\n",
			match.Ordinal, match.Record.Question, match.Record.Answer)
	}

	fmt.Fprintf(&b, "Knowledge base information retrieved:\n%s\n\n", retrieved)
	b.WriteString("Based on this information from our company knowledge base, " +
		"please provide a comprehensive answer to the original question.\n\n")
	b.WriteString("FORMAT YOUR RESPONSE WITH EACH STATEMENT ON A NEW LINE AND USE CLEAR LANGUAGE.")
	return b.String()
}
