// Package mcp exposes the query pipeline as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

const (
	ServerName = "docqa"
	Version    = "1.0.0"
)

// Pipeline is the part of the query orchestrator the tools call.
type Pipeline interface {
	AnswerQuestion(ctx context.Context, question string, history entities.ConversationHistory) (string, error)
	Search(ctx context.Context, query string) ([]entities.RetrievedChunk, error)
}

// NewServer registers the ask and search tools.
func NewServer(p Pipeline) *server.MCPServer {
	s := server.NewMCPServer(ServerName, Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Answers questions strictly from the indexed documents. "+
			"Use search to inspect retrieved passages and ask for a grounded answer."),
	)

	s.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Answer a question using only the indexed documents. "+
			"Follow-up questions are rewritten using the optional history."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
		mcp.WithArray("history",
			mcp.Description(`Prior turns, oldest first: [{"role":"user"|"model","parts":["..."]}]`),
			mcp.Items(map[string]any{"type": "object"}),
		),
	), HandleAsk(p))

	s.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Return the passages most similar to a standalone query, best first."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Standalone search query")),
	), HandleSearch(p))

	return s
}

// ServeStdio runs s on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// HandleAsk answers the "question" argument, using "history" when given.
func HandleAsk(p Pipeline) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcp.NewToolResultError(`a non-empty "question" string is required`), nil
		}

		history, err := historyArg(req.GetArguments()["history"])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		answer, err := p.AnswerQuestion(ctx, question, history)
		if err != nil {
			slog.Error("mcp ask failed", "kind", usecases.KindOf(err).String(), "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(answer), nil
	}
}

type searchHit struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HandleSearch returns the retrieved chunks for "query" as a JSON array.
func HandleSearch(p Pipeline) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError(`a non-empty "query" string is required`), nil
		}

		chunks, err := p.Search(ctx, query)
		if err != nil {
			slog.Error("mcp search failed", "kind", usecases.KindOf(err).String(), "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		hits := make([]searchHit, len(chunks))
		for i, c := range chunks {
			hits[i] = searchHit{Text: c.Text, Score: c.Score, Metadata: c.Metadata}
		}
		out, err := json.Marshal(hits)
		if err != nil {
			return nil, fmt.Errorf("encoding search results: %w", err)
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// historyArg converts the loosely typed tool argument into a history.
func historyArg(v any) (entities.ConversationHistory, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	var history entities.ConversationHistory
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf(`"history" must be an array of {role, parts} turns`)
	}
	return history, nil
}
