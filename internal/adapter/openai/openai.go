// Package openai implements adapter.Model on the OpenAI chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kbmcp/internal/adapter"
	"kbmcp/internal/usage"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-4o"

type options struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	reqOpts    []openaiopt.RequestOption
}

// Option configures a Model.
type Option func(*options)

func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = strings.TrimSpace(key) }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRequestOptions passes extra options to the openai-go client.
func WithRequestOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) { o.reqOpts = append(o.reqOpts, opts...) }
}

// Model talks to one OpenAI chat model.
type Model struct {
	client openai.Client
	name   string
	apiKey string
}

var _ adapter.Model = (*Model)(nil)

func New(name string, opts ...Option) *Model {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		name = DefaultModel
	}

	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(o.httpClient))
	}
	clientOpts = append(clientOpts, o.reqOpts...)

	return &Model{
		client: openai.NewClient(clientOpts...),
		name:   name,
		apiKey: o.apiKey,
	}
}

func (m *Model) Name() string {
	return "openai/" + m.name
}

// Complete sends one chat completion request. Tools are only attached when
// req.AllowTools is set, which leaves tool choice to the model.
func (m *Model) Complete(ctx context.Context, req adapter.Request) (adapter.Response, error) {
	if m.apiKey == "" {
		return adapter.Response{}, fmt.Errorf("%w: set OPENAI_API_KEY or run `kbmcp auth set openai`", adapter.ErrMissingAPIKey)
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.name),
		Messages: convertMessages(req),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.AllowTools && len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return adapter.Response{}, err
		}
		params.Tools = tools
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return adapter.Response{}, mapError(err)
	}
	return convertCompletion(completion)
}

func convertMessages(req adapter.Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case adapter.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text))
		default:
			out = append(out, openai.UserMessage(msg.Text))
		}
	}
	return out
}

func convertTools(decls []adapter.ToolDecl) ([]openai.ChatCompletionToolParam, error) {
	tools := make([]openai.ChatCompletionToolParam, 0, len(decls))
	for _, decl := range decls {
		// round-trip through JSON so nested schema types match what the SDK expects
		raw, err := json.Marshal(decl.Parameters)
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", decl.Name, err)
		}
		var params shared.FunctionParameters
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("decode schema for %s: %w", decl.Name, err)
		}

		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        decl.Name,
				Description: openai.String(decl.Description),
				Parameters:  params,
			},
		})
	}
	return tools, nil
}

func convertCompletion(c *openai.ChatCompletion) (adapter.Response, error) {
	resp := adapter.Response{
		Usage: usage.Usage{
			PromptTokens:     int(c.Usage.PromptTokens),
			CompletionTokens: int(c.Usage.CompletionTokens),
			TotalTokens:      int(c.Usage.TotalTokens),
			Calls:            1,
		},
	}
	if len(c.Choices) == 0 {
		return resp, errors.New("openai returned no choices")
	}

	msg := c.Choices[0].Message
	resp.Text = msg.Content
	for _, call := range msg.ToolCalls {
		args := map[string]any{}
		if s := strings.TrimSpace(call.Function.Arguments); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				return resp, fmt.Errorf("decode arguments of %s: %w", call.Function.Name, err)
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, adapter.ToolCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		})
	}
	return resp, nil
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", adapter.ErrRateLimited, err)
	}
	return fmt.Errorf("openai chat completion: %w", err)
}
