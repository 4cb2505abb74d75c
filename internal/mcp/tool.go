package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"kbmcp/internal/knowledge"
	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// ToolName is the name clients call.
	ToolName = "get_knowledge_base"
	// ToolDescription is advertised with the tool.
	ToolDescription = "Retrieve the entire knowledge base as a formatted string"
	// QueryArg optionally asks for matcher diagnostics.
	QueryArg = "query"
)

// KnowledgeTool answers get_knowledge_base calls from a fixed snapshot.
type KnowledgeTool struct {
	kb     matcher.KnowledgeBase
	text   string
	logger *logging.AppLogger
}

func NewKnowledgeTool(kb matcher.KnowledgeBase, logger *logging.AppLogger) *KnowledgeTool {
	return &KnowledgeTool{
		kb:     kb,
		text:   knowledge.Format(kb),
		logger: logger,
	}
}

// Definition returns the tool schema.
func (t *KnowledgeTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription(ToolDescription),
		mcp.WithString(QueryArg,
			mcp.Description("Optional question; when set, matcher diagnostics are appended"),
		),
	)
}

// MatchReport is the JSON diagnostic block appended for queries.
type MatchReport struct {
	Query string `json:"query"`
	// BestMatch is the 1-based ordinal, null when nothing matched.
	BestMatch   *int            `json:"best_match"`
	Question    string          `json:"question,omitempty"`
	Score       int             `json:"score"`
	Diagnostics json.RawMessage `json:"diagnostics"`
}

// Handle returns the formatted knowledge base and, for a non-empty query,
// the match report.
func (t *KnowledgeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString(QueryArg, ""))
	t.logger.Info("Tool called", "tool", ToolName, "records", len(t.kb), "with_query", query != "")

	if query == "" {
		return mcp.NewToolResultText(t.text), nil
	}

	report, err := t.report(query)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to build match report", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(t.text),
			mcp.NewTextContent(report),
		},
	}, nil
}

func (t *KnowledgeTool) report(query string) (string, error) {
	result := matcher.Match(t.kb, query)
	t.logger.Debug("Match computed", "query", query, "best_match", result.Ordinal, "score", result.Score)

	report, err := NewMatchReport(query, result)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode match report: %w", err)
	}
	return string(out), nil
}

// NewMatchReport describes result for query.
func NewMatchReport(query string, result matcher.MatchResult) (MatchReport, error) {
	diagnostics, err := result.DiagnosticsJSON()
	if err != nil {
		return MatchReport{}, err
	}

	report := MatchReport{
		Query:       query,
		Score:       result.Score,
		Diagnostics: diagnostics,
	}
	if result.Found() {
		ordinal := result.Ordinal
		report.BestMatch = &ordinal
		report.Question = result.Record.Question
	}
	return report, nil
}
