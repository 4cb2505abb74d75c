// Package adapter turns a user question into an answer using a language
// model and the knowledge tool.
//
// Vendors plug in through Model. The Assistant owns the vendor-neutral flow:
// offer the server's tools, run whatever the model calls, match the query
// against the retrieved records and ask the model once more with the
// augmented prompt.
package adapter

import (
	"context"
	"errors"

	"kbmcp/internal/usage"
)

var (
	// ErrMissingAPIKey is returned before any network call when the vendor
	// key is absent.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrRateLimited wraps vendor rate-limit and quota errors.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("empty query")
	// ErrNoTools is returned when the server advertises no tools.
	ErrNoTools = errors.New("server advertises no tools")
)

// BillingHint is printed alongside ErrRateLimited for OpenAI.
const BillingHint = "This usually means your API key has insufficient quota or billing issues. " +
	"Visit https://platform.openai.com/account/billing to check your billing status."

// Role of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role Role
	Text string
}

// ToolDecl is a function the model may call.
type ToolDecl struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Request is one model call.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDecl
	// AllowTools offers Tools to the model. When false the model must answer
	// in text.
	AllowTools  bool
	Temperature *float64
}

// Response is the model output for one call.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     usage.Usage
}

// Model is a vendor chat model.
type Model interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
