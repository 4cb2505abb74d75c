// Package toolhost connects to an MCP server as a client and exposes its
// tools to the model adapters.
//
// Three transports are supported: a stdio subprocess, the legacy SSE
// endpoint and streamable HTTP. A Session is safe for concurrent calls.
package toolhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"kbmcp/internal/config"
	"kbmcp/internal/logging"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const clientName = "kbmcp-client"

var (
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrToolFailed      = errors.New("tool call failed")
	ErrClosed          = errors.New("session closed")
)

// Endpoint describes where the server lives.
type Endpoint struct {
	// Transport is one of config.TransportStdio, TransportSSE or TransportHTTP.
	Transport string
	// Command and Args start the server for stdio.
	Command string
	Args    []string
	// URL is the full endpoint URL for sse and http, e.g.
	// http://localhost:8050/sse or http://localhost:8050/mcp.
	URL        string
	HTTPClient *http.Client
	MaxRetries int
}

func (e Endpoint) transport(ctx context.Context) (mcp.Transport, error) {
	switch e.Transport {
	case config.TransportStdio:
		if strings.TrimSpace(e.Command) == "" {
			return nil, fmt.Errorf("%w: stdio endpoint needs a command", ErrInvalidEndpoint)
		}
		return &mcp.CommandTransport{Command: exec.CommandContext(ctx, e.Command, e.Args...)}, nil
	case config.TransportSSE:
		if strings.TrimSpace(e.URL) == "" {
			return nil, fmt.Errorf("%w: sse endpoint needs a URL", ErrInvalidEndpoint)
		}
		return &mcp.SSEClientTransport{Endpoint: e.URL, HTTPClient: e.HTTPClient}, nil
	case config.TransportHTTP:
		if strings.TrimSpace(e.URL) == "" {
			return nil, fmt.Errorf("%w: http endpoint needs a URL", ErrInvalidEndpoint)
		}
		return &mcp.StreamableClientTransport{
			Endpoint:   e.URL,
			HTTPClient: e.HTTPClient,
			MaxRetries: e.MaxRetries,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown transport %q", ErrInvalidEndpoint, e.Transport)
}

func (e Endpoint) String() string {
	if e.Transport == config.TransportStdio {
		return strings.TrimSpace(e.Transport + " " + e.Command + " " + strings.Join(e.Args, " "))
	}
	return e.Transport + " " + e.URL
}

// Tool is a tool advertised by the server.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON schema of the tool input.
	Parameters map[string]any
}

// Session is an initialized client connection.
type Session struct {
	endpoint string
	session  *mcp.ClientSession
	logger   *logging.AppLogger

	closeOnce sync.Once
	closeErr  error
	mu        sync.RWMutex
	closed    bool
}

// Connect dials the endpoint and performs the MCP handshake.
func Connect(ctx context.Context, ep Endpoint, logger *logging.AppLogger) (*Session, error) {
	transport, err := ep.transport(ctx)
	if err != nil {
		return nil, err
	}
	return connect(ctx, transport, ep.String(), logger)
}

// ConnectTransport performs the handshake over an existing transport.
func ConnectTransport(ctx context.Context, transport mcp.Transport, logger *logging.AppLogger) (*Session, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidEndpoint)
	}
	return connect(ctx, transport, "custom", logger)
}

func connect(ctx context.Context, transport mcp.Transport, name string, logger *logging.AppLogger) (*Session, error) {
	if logger == nil {
		logger = logging.GetDefault()
	}

	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", name, err)
	}

	logger.Debug("Connected to MCP server", "endpoint", name)
	return &Session{endpoint: name, session: session, logger: logger}, nil
}

// ListTools returns every tool the server advertises.
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	res, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	tools := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		if t == nil {
			continue
		}
		params, err := schemaMap(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		tools = append(tools, Tool{Name: t.Name, Description: t.Description, Parameters: params})
	}
	return tools, nil
}

// CallTool invokes a tool and returns the text content joined by newlines.
// A result flagged as an error is returned as ErrToolFailed.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	parts, err := s.CallToolParts(ctx, name, args)
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// CallToolParts is CallTool without the join: one string per text content
// element, in order.
func (s *Session) CallToolParts(ctx context.Context, name string, args map[string]any) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", name, err)
	}

	parts := resultText(result)
	if result.IsError {
		details := strings.Join(parts, "; ")
		if details == "" {
			details = "no details"
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrToolFailed, name, details)
	}

	s.logger.Debug("Tool call finished", "tool", name, "parts", len(parts))
	return parts, nil
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeErr = s.session.Close()
		s.logger.Debug("MCP session closed", "endpoint", s.endpoint)
	})
	return s.closeErr
}

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func resultText(result *mcp.CallToolResult) []string {
	if result == nil {
		return nil
	}
	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return parts
}

func schemaMap(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	return m, nil
}
