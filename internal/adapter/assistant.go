package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kbmcp/internal/knowledge"
	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"
	"kbmcp/internal/toolhost"
	"kbmcp/internal/usage"

	"github.com/google/uuid"
)

// ToolHost is the part of a toolhost.Session the assistant needs.
type ToolHost interface {
	ListTools(ctx context.Context) ([]toolhost.Tool, error)
	CallToolParts(ctx context.Context, name string, args map[string]any) ([]string, error)
}

// Answer is the result of one Ask.
type Answer struct {
	RequestID string
	Text      string
	// UsedTool is false when the model answered without calling a tool.
	UsedTool bool
	// Match is the matcher outcome over the retrieved records. It is the
	// zero value when no tool ran.
	Match matcher.MatchResult
	// Usage sums the model calls made for this answer.
	Usage usage.Usage
}

// Assistant answers questions with a Model and the tools of a ToolHost.
type Assistant struct {
	model       Model
	host        ToolHost
	tracker     *usage.Tracker
	prompts     Prompts
	temperature *float64
	logger      *logging.AppLogger
}

// Option configures an Assistant.
type Option func(*Assistant)

func WithPrompts(p Prompts) Option {
	return func(a *Assistant) { a.prompts = p }
}

func WithTemperature(t float64) Option {
	return func(a *Assistant) { a.temperature = &t }
}

// WithTracker records usage of every model call into t.
func WithTracker(t *usage.Tracker) Option {
	return func(a *Assistant) { a.tracker = t }
}

func WithLogger(l *logging.AppLogger) Option {
	return func(a *Assistant) { a.logger = l }
}

func NewAssistant(model Model, host ToolHost, opts ...Option) *Assistant {
	a := &Assistant{
		model:  model,
		host:   host,
		logger: logging.GetDefault(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tracker == nil {
		a.tracker = usage.NewTracker()
	}
	return a
}

// Tracker returns the usage tracker the assistant records into.
func (a *Assistant) Tracker() *usage.Tracker {
	return a.tracker
}

// ModelName is the name of the model behind the assistant, e.g. "openai/gpt-4o".
func (a *Assistant) ModelName() string {
	return a.model.Name()
}

// Ask answers query. The model first sees the query with the tools offered.
// If it calls a tool, the retrieved knowledge base is matched against the
// query and the model answers an augmented prompt with tools disabled.
func (a *Assistant) Ask(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}

	answer := Answer{RequestID: uuid.NewString()}
	logger := a.logger.With("request_id", answer.RequestID, "model", a.model.Name())
	defer logger.LogPerformance("ask", time.Now())

	tools, err := a.host.ListTools(ctx)
	if err != nil {
		return answer, fmt.Errorf("list tools: %w", err)
	}
	if len(tools) == 0 {
		return answer, ErrNoTools
	}
	decls := a.declarations(tools)

	first, err := a.complete(ctx, logger, &answer, Request{
		System:      a.prompts.System,
		Messages:    []Message{{Role: RoleUser, Text: query}},
		Tools:       decls,
		AllowTools:  true,
		Temperature: a.temperature,
	})
	if err != nil {
		return answer, err
	}

	if len(first.ToolCalls) == 0 {
		logger.Warn("No tool calls detected, returning direct response")
		answer.Text = first.Text
		return answer, nil
	}

	retrieved, err := a.runTools(ctx, logger, first.ToolCalls)
	if err != nil {
		return answer, err
	}
	answer.UsedTool = true

	answer.Match = matcher.Match(knowledge.ParseText(retrieved), query)
	if answer.Match.Found() {
		logger.Info("Most relevant question",
			"ordinal", answer.Match.Ordinal,
			"question", answer.Match.Record.Question,
			"score", answer.Match.Score,
		)
	} else {
		logger.Info("No question shares a word with the query")
	}
	if logger.IsDebug() {
		logger.DebugObject("match diagnostics", answer.Match.Ranked())
	}

	final, err := a.complete(ctx, logger, &answer, Request{
		Messages:    []Message{{Role: RoleUser, Text: FinalPrompt(query, retrieved, answer.Match)}},
		AllowTools:  false,
		Temperature: a.temperature,
	})
	if err != nil {
		return answer, err
	}

	answer.Text = final.Text
	return answer, nil
}

func (a *Assistant) declarations(tools []toolhost.Tool) []ToolDecl {
	decls := make([]ToolDecl, 0, len(tools))
	for _, t := range tools {
		desc := t.Description
		if a.prompts.ToolSuffix != "" {
			desc = strings.TrimSuffix(desc, ".") + a.prompts.ToolSuffix
		}
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		decls = append(decls, ToolDecl{Name: t.Name, Description: desc, Parameters: params})
	}
	return decls
}

// runTools executes every call and returns the first text part of each
// result, joined. Later parts carry diagnostics, not records.
func (a *Assistant) runTools(ctx context.Context, logger *logging.AppLogger, calls []ToolCall) (string, error) {
	texts := make([]string, 0, len(calls))
	for _, call := range calls {
		logger.Info("Executing tool", "tool", call.Name, "args", call.Args)

		parts, err := a.host.CallToolParts(ctx, call.Name, call.Args)
		if err != nil {
			return "", fmt.Errorf("tool %s: %w", call.Name, err)
		}
		if len(parts) > 0 {
			texts = append(texts, parts[0])
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

func (a *Assistant) complete(ctx context.Context, logger *logging.AppLogger, answer *Answer, req Request) (Response, error) {
	resp, err := a.model.Complete(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", a.model.Name(), err)
	}

	u := resp.Usage
	if u.TotalTokens == 0 && u.PromptTokens == 0 && u.CompletionTokens == 0 {
		u = usage.Estimated(requestText(req), responseText(resp))
	}
	if u.Calls == 0 {
		u.Calls = 1
	}
	a.tracker.Add(u)
	answer.Usage = answer.Usage.Plus(u)

	total := a.tracker.Total()
	logger.Info("Model call finished",
		"tokens", u.TotalTokens,
		"estimated", u.Estimated,
		"total_tokens", total.TotalTokens,
		"tool_calls", len(resp.ToolCalls),
	)
	return resp, nil
}

func requestText(req Request) string {
	var b strings.Builder
	b.WriteString(req.System)
	for _, m := range req.Messages {
		b.WriteString(m.Text)
	}
	return b.String()
}

func responseText(resp Response) string {
	var b strings.Builder
	b.WriteString(resp.Text)
	for _, c := range resp.ToolCalls {
		b.WriteString(c.Name)
	}
	return b.String()
}
