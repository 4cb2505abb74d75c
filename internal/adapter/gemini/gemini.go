// Package gemini implements adapter.Model on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kbmcp/internal/adapter"
	"kbmcp/internal/usage"

	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// Models is the subset of *genai.Models the adapter calls.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type options struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	models     Models
}

// Option configures a Model.
type Option func(*options)

func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = strings.TrimSpace(key) }
}

func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithModels replaces the genai client, mostly for tests.
func WithModels(m Models) Option {
	return func(o *options) { o.models = m }
}

// Model talks to one Gemini model.
type Model struct {
	models Models
	name   string
}

var _ adapter.Model = (*Model)(nil)

// New builds a Model. Without an API key no client is created and every
// Complete call fails with adapter.ErrMissingAPIKey.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		name = DefaultModel
	}

	m := &Model{name: name, models: o.models}
	if m.models != nil || o.apiKey == "" {
		return m, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     o.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	m.models = client.Models
	return m, nil
}

func (m *Model) Name() string {
	return "gemini/" + m.name
}

func (m *Model) Complete(ctx context.Context, req adapter.Request) (adapter.Response, error) {
	if m.models == nil {
		return adapter.Response{}, fmt.Errorf("%w: set GOOGLE_API_KEY or run `kbmcp auth set gemini`", adapter.ErrMissingAPIKey)
	}

	rsp, err := m.models.GenerateContent(ctx, m.name, convertMessages(req.Messages), buildConfig(req))
	if err != nil {
		return adapter.Response{}, mapError(err)
	}
	if rsp == nil {
		return adapter.Response{}, errors.New("gemini returned an empty response")
	}
	return convertResponse(rsp), nil
}

func buildConfig(req adapter.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.AllowTools && len(req.Tools) > 0 {
		cfg.Tools = convertTools(req.Tools)
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	return cfg
}

func convertMessages(messages []adapter.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == adapter.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(msg.Text, genai.Role(role)))
	}
	return out
}

func convertTools(decls []adapter.ToolDecl) []*genai.Tool {
	fns := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, decl := range decls {
		fns = append(fns, &genai.FunctionDeclaration{
			Name:                 decl.Name,
			Description:          decl.Description,
			ParametersJsonSchema: decl.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fns}}
}

func convertResponse(rsp *genai.GenerateContentResponse) adapter.Response {
	var (
		text  strings.Builder
		calls []adapter.ToolCall
	)
	for _, candidate := range rsp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				args := part.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				calls = append(calls, adapter.ToolCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				})
			}
		}
		// the first candidate is the answer
		break
	}

	resp := adapter.Response{Text: text.String(), ToolCalls: calls}
	if md := rsp.UsageMetadata; md != nil && md.TotalTokenCount > 0 {
		resp.Usage = usage.Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
			Calls:            1,
		}
	}
	return resp
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", adapter.ErrRateLimited, err)
	}
	return fmt.Errorf("gemini generate content: %w", err)
}
