package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theimaginaryfoundation/reflect-o-bot/internal/service"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal"
	"github.com/theimaginaryfoundation/reflect-o-bot/journal/provider"
)

// RegisterPingTool registers the liveness tool.
func RegisterPingTool(s *server.MCPServer) {
	pingTool := mcp.NewTool("ping",
		mcp.WithDescription("Responds with 'pong' to check if the journal MCP server is alive."),
	)
	s.AddTool(pingTool, pingHandler)
}

func pingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("pong"), nil
}

func (s *JournalMCPServer) RegisterAddEntryTool() {
	tool := mcp.NewTool("add_entry",
		mcp.WithDescription("Records a journal entry. The text is analyzed by the configured model and saved even when the model is unavailable."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The journal entry text.")),
		mcp.WithString("timestamp", mcp.Description("Optional RFC3339 time to backdate the entry.")),
	)
	s.mcpServer.AddTool(tool, s.addEntryHandler)
}

func (s *JournalMCPServer) addEntryHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := request.Params.Arguments["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' parameter is required and must be a non-empty string."), nil
	}

	var at time.Time
	if ts, ok := request.Params.Arguments["timestamp"].(string); ok && ts != "" {
		t, err := journal.ParseTimestamp(ts)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid 'timestamp': %v", err)), nil
		}
		at = t
	}

	res, err := s.svc.AddEntry(ctx, service.AddEntryInput{Text: text, At: at})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to save entry: %v", err)), nil
	}

	outcome := res.Outcome.String()
	if res.AnalysisErr != nil {
		outcome = provider.OutcomeTransportError
	}
	return jsonResult(map[string]any{
		"entry":    res.Entry,
		"outcome":  outcome,
		"warnings": res.Warnings(),
	})
}

func (s *JournalMCPServer) RegisterListEntriesTool() {
	tool := mcp.NewTool("list_entries",
		mcp.WithDescription("Lists journal entries, oldest first, optionally bounded by time."),
		mcp.WithString("from", mcp.Description("Optional inclusive lower bound (RFC3339 or YYYY-MM-DD).")),
		mcp.WithString("to", mcp.Description("Optional inclusive upper bound (RFC3339, or YYYY-MM-DD for the whole day).")),
		mcp.WithString("limit", mcp.Description("Optional maximum number of most recent entries to return.")),
	)
	s.mcpServer.AddTool(tool, s.listEntriesHandler)
}

func (s *JournalMCPServer) listEntriesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var q service.ListQuery
	for _, bound := range []struct {
		name  string
		dst   *time.Time
		parse func(string) (time.Time, error)
	}{{"from", &q.From, journal.ParseTimestamp}, {"to", &q.To, journal.ParseRangeEnd}} {
		v, _ := request.Params.Arguments[bound.name].(string)
		if v == "" {
			continue
		}
		t, err := bound.parse(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid '%s': %v", bound.name, err)), nil
		}
		*bound.dst = t
	}

	switch v := request.Params.Arguments["limit"].(type) {
	case string:
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return mcp.NewToolResultError("'limit' must be a non-negative integer."), nil
			}
			q.Limit = n
		}
	case float64:
		if v < 0 {
			return mcp.NewToolResultError("'limit' must be a non-negative integer."), nil
		}
		q.Limit = int(v)
	}

	entries, err := s.svc.ListEntries(q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read journal: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("[]"), nil
	}
	return jsonResult(entries)
}

func (s *JournalMCPServer) RegisterAnalyzeEntryTool() {
	tool := mcp.NewTool("analyze_entry",
		mcp.WithDescription("Analyzes text for summary, emotions, patterns and themes without saving it."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to analyze.")),
	)
	s.mcpServer.AddTool(tool, s.analyzeEntryHandler)
}

func (s *JournalMCPServer) analyzeEntryHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := request.Params.Arguments["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' parameter is required and must be a non-empty string."), nil
	}
	res, err := s.svc.Analyze(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(modelFailure(err)), nil
	}
	out := map[string]any{"analysis": res.Analysis, "outcome": res.Outcome.String()}
	if res.Cause != nil {
		out["cause"] = res.Cause.Error()
	}
	return jsonResult(out)
}

func (s *JournalMCPServer) RegisterChatTool() {
	tool := mcp.NewTool("journal_chat",
		mcp.WithDescription("Sends a free-form message to the journaling model and returns its reply."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message for the model.")),
	)
	s.mcpServer.AddTool(tool, s.chatHandler)
}

func (s *JournalMCPServer) chatHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, ok := request.Params.Arguments["message"].(string)
	if !ok || strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("'message' parameter is required and must be a non-empty string."), nil
	}
	reply, err := s.svc.Chat(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(modelFailure(err)), nil
	}
	return mcp.NewToolResultText(reply), nil
}

func modelFailure(err error) string {
	if errors.Is(err, provider.ErrTransport) {
		return fmt.Sprintf("Model unavailable: %v", err)
	}
	return err.Error()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result to JSON: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
