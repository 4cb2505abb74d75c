package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kbmcp/internal/config"
	"kbmcp/internal/knowledge"
	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"
	"kbmcp/internal/toolhost"
	"kbmcp/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKB = matcher.KnowledgeBase{
	{Question: "What is our company's vacation policy?", Answer: "20 days of paid time off."},
	{Question: "How do I request a new software license?", Answer: "Open an IT ticket."},
	{Question: "What is our remote work policy?", Answer: "Hybrid, three days in office."},
	{Question: "How do I submit an expense report?", Answer: "Use the expense system within 30 days."},
	{Question: "How do I report a security issue?", Answer: "Email security@company.com."},
}

// fakeModel replays canned responses and records requests.
type fakeModel struct {
	mu        sync.Mutex
	responses []Response
	errs      []error
	requests  []Request
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Complete(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return Response{}, m.errs[i]
	}
	if i >= len(m.responses) {
		return Response{}, errors.New("unexpected call")
	}
	return m.responses[i], nil
}

type fakeHost struct {
	tools   []toolhost.Tool
	parts   []string
	callErr error
	calls   []string
	args    []map[string]any
}

func (h *fakeHost) ListTools(ctx context.Context) ([]toolhost.Tool, error) {
	return h.tools, nil
}

func (h *fakeHost) CallToolParts(ctx context.Context, name string, args map[string]any) ([]string, error) {
	h.calls = append(h.calls, name)
	h.args = append(h.args, args)
	if h.callErr != nil {
		return nil, h.callErr
	}
	return h.parts, nil
}

func newKBHost() *fakeHost {
	return &fakeHost{
		tools: []toolhost.Tool{{
			Name:        "get_knowledge_base",
			Description: "Retrieve the entire knowledge base as a formatted string",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		}},
		parts: []string{knowledge.Format(testKB), `{"query":"ignored"}`},
	}
}

func newTestAssistant(model Model, host ToolHost, opts ...Option) *Assistant {
	logger, _ := logging.NewTestLogger()
	return NewAssistant(model, host, append([]Option{WithLogger(logger)}, opts...)...)
}

func TestAssistant_AskWithTool(t *testing.T) {
	model := &fakeModel{responses: []Response{
		{ToolCalls: []ToolCall{{ID: "call_1", Name: "get_knowledge_base", Args: map[string]any{}}},
			Usage: usage.Usage{PromptTokens: 50, CompletionTokens: 10, TotalTokens: 60}},
		{Text: "Use the expense system.\nSubmit within 30 days.",
			Usage: usage.Usage{PromptTokens: 200, CompletionTokens: 20, TotalTokens: 220}},
	}}
	host := newKBHost()
	tracker := usage.NewTracker()
	a := newTestAssistant(model, host, WithTracker(tracker), WithTemperature(0.1))

	answer, err := a.Ask(context.Background(), "How can I submit a report on expenses?")
	require.NoError(t, err)

	assert.True(t, answer.UsedTool)
	assert.NotEmpty(t, answer.RequestID)
	assert.Equal(t, "Use the expense system.\nSubmit within 30 days.", answer.Text)
	assert.Equal(t, 4, answer.Match.Ordinal)
	assert.Equal(t, 4, answer.Match.Score)
	assert.Equal(t, 280, answer.Usage.TotalTokens)
	assert.Equal(t, 2, answer.Usage.Calls)
	assert.Equal(t, answer.Usage, tracker.Total())

	assert.Equal(t, []string{"get_knowledge_base"}, host.calls)

	require.Len(t, model.requests, 2)
	first, final := model.requests[0], model.requests[1]
	assert.True(t, first.AllowTools)
	require.Len(t, first.Tools, 1)
	assert.Equal(t, "Retrieve the entire knowledge base as a formatted string", first.Tools[0].Description)
	require.NotNil(t, first.Temperature)
	assert.Equal(t, 0.1, *first.Temperature)

	assert.False(t, final.AllowTools)
	assert.Empty(t, final.Tools)
	require.Len(t, final.Messages, 1)
	prompt := final.Messages[0].Text
	assert.Contains(t, prompt, "Original question: How can I submit a report on expenses?")
	assert.Contains(t, prompt, "Most relevant entry (Q4):\nQ: How do I submit an expense report?\nA: Use the expense system within 30 days.")
	assert.Contains(t, prompt, knowledge.Format(testKB))
	assert.NotContains(t, prompt, `{"query"`)
	assert.Equal(t, "fake", a.ModelName())
}

func TestAssistant_AskWithoutToolCall(t *testing.T) {
	model := &fakeModel{responses: []Response{{Text: "Hello there."}}}
	host := newKBHost()
	a := newTestAssistant(model, host)

	answer, err := a.Ask(context.Background(), "hi")
	require.NoError(t, err)

	assert.False(t, answer.UsedTool)
	assert.Equal(t, "Hello there.", answer.Text)
	assert.False(t, answer.Match.Found())
	assert.Empty(t, host.calls)
	assert.Len(t, model.requests, 1)

	// no usage reported, so it is estimated
	assert.True(t, answer.Usage.Estimated)
	assert.Positive(t, answer.Usage.TotalTokens)
}

func TestAssistant_AskNoMatch(t *testing.T) {
	model := &fakeModel{responses: []Response{
		{ToolCalls: []ToolCall{{ID: "c", Name: "get_knowledge_base"}}},
		{Text: "I could not find that."},
	}}
	a := newTestAssistant(model, newKBHost())

	answer, err := a.Ask(context.Background(), "zebra crossing")
	require.NoError(t, err)

	assert.True(t, answer.UsedTool)
	assert.False(t, answer.Match.Found())
	assert.Equal(t, 0, answer.Match.Ordinal)

	prompt := model.requests[1].Messages[0].Text
	assert.NotContains(t, prompt, "Most relevant entry")
	assert.Contains(t, prompt, "Knowledge base information retrieved:")
}

func TestAssistant_GeminiPrompts(t *testing.T) {
	model := &fakeModel{responses: []Response{{Text: "direct"}}}
	a := newTestAssistant(model, newKBHost(), WithPrompts(PromptsFor(config.ProviderGemini)))

	_, err := a.Ask(context.Background(), "vacation policy")
	require.NoError(t, err)

	req := model.requests[0]
	assert.Equal(t, GeminiSystemInstruction, req.System)
	assert.Equal(t,
		"Retrieve the entire knowledge base as a formatted string. Use this tool to retrieve company information and policies.",
		req.Tools[0].Description)
}

func TestAssistant_Errors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		a := newTestAssistant(&fakeModel{}, newKBHost())
		_, err := a.Ask(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("no tools", func(t *testing.T) {
		a := newTestAssistant(&fakeModel{}, &fakeHost{})
		_, err := a.Ask(context.Background(), "question")
		assert.ErrorIs(t, err, ErrNoTools)
	})

	t.Run("model error", func(t *testing.T) {
		model := &fakeModel{errs: []error{ErrRateLimited}}
		a := newTestAssistant(model, newKBHost())
		_, err := a.Ask(context.Background(), "question")
		assert.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("tool error", func(t *testing.T) {
		model := &fakeModel{responses: []Response{
			{ToolCalls: []ToolCall{{ID: "c", Name: "get_knowledge_base"}}},
		}}
		host := newKBHost()
		host.callErr = toolhost.ErrToolFailed
		a := newTestAssistant(model, host)

		_, err := a.Ask(context.Background(), "question")
		assert.ErrorIs(t, err, toolhost.ErrToolFailed)
		assert.Len(t, model.requests, 1)
	})
}

func TestFinalPrompt(t *testing.T) {
	match := matcher.Match(testKB, "remote work")
	got := FinalPrompt("remote work?", "KB TEXT", match)

	want := "Original question: remote work?\n\n" +
		"Most relevant entry (Q3):\nQ: What is our remote work policy?\nA: Hybrid, three days in office.\n\n" +
		"Knowledge base information retrieved:\nKB TEXT\n\n" +
		"Based on this information from our company knowledge base, please provide a comprehensive answer to the original question.\n\n" +
		"FORMAT YOUR RESPONSE WITH EACH STATEMENT ON A NEW LINE AND USE CLEAR LANGUAGE."
	assert.Equal(t, want, got)
}

func TestPromptsFor(t *testing.T) {
	assert.Equal(t, Prompts{}, PromptsFor(config.ProviderOpenAI))
	assert.Equal(t, GeminiToolSuffix, PromptsFor(config.ProviderGemini).ToolSuffix)
}
