package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

type fakePipeline struct {
	answer  string
	chunks  []entities.RetrievedChunk
	err     error
	history entities.ConversationHistory
	calls   int
}

func (f *fakePipeline) AnswerQuestion(_ context.Context, _ string, history entities.ConversationHistory) (string, error) {
	f.calls++
	f.history = history
	return f.answer, f.err
}

func (f *fakePipeline) Search(context.Context, string) ([]entities.RetrievedChunk, error) {
	f.calls++
	return f.chunks, f.err
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestHandleAsk_PassesHistory(t *testing.T) {
	p := &fakePipeline{answer: "Scheme X launched in 2015."}

	res, err := HandleAsk(p)(context.Background(), callRequest(map[string]any{
		"question": "when was it launched?",
		"history": []any{
			map[string]any{"role": "user", "parts": []any{map[string]any{"text": "Describe scheme X"}}},
		},
	}))
	require.NoError(t, err)

	assert.False(t, res.IsError)
	assert.Equal(t, "Scheme X launched in 2015.", resultText(t, res))
	assert.Equal(t, entities.ConversationHistory{
		{Role: entities.RoleUser, Parts: []string{"Describe scheme X"}},
	}, p.history)
}

func TestHandleAsk_Validation(t *testing.T) {
	p := &fakePipeline{}

	res, err := HandleAsk(p)(context.Background(), callRequest(map[string]any{"question": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = HandleAsk(p)(context.Background(), callRequest(map[string]any{"question": "q", "history": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	assert.Zero(t, p.calls)
}

func TestHandleAsk_PipelineError(t *testing.T) {
	p := &fakePipeline{err: errors.New("failed to get an answer: upstream down")}

	res, err := HandleAsk(p)(context.Background(), callRequest(map[string]any{"question": "What is X?"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "upstream down")
}

func TestHandleSearch_ReturnsHits(t *testing.T) {
	p := &fakePipeline{chunks: []entities.RetrievedChunk{
		{Text: "alpha", Score: 0.9, Metadata: map[string]string{"source": "a.pdf"}},
		{Text: "beta", Score: 0.5},
	}}

	res, err := HandleSearch(p)(context.Background(), callRequest(map[string]any{"query": "alpha"}))
	require.NoError(t, err)

	var hits []searchHit
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, "alpha", hits[0].Text)
	assert.Equal(t, "a.pdf", hits[0].Metadata["source"])
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := NewServer(&fakePipeline{})

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.Contains(t, string(out), `"name":"ask"`)
	assert.Contains(t, string(out), `"name":"search"`)
}
