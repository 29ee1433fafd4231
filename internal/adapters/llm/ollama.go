// Package llm provides chat model adapters implementing ports.ChatModel.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// OllamaChatModel implements ports.ChatModel using Ollama's /api/chat.
type OllamaChatModel struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaChatModel creates a new Ollama chat adapter.
func NewOllamaChatModel(baseURL, model string) *OllamaChatModel {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaChatModel{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// StartSession seeds a session with history.
func (a *OllamaChatModel) StartSession(history entities.ConversationHistory) ports.ChatSession {
	msgs := make([]ollamaMessage, 0, len(history)+1)
	for _, turn := range history {
		msgs = append(msgs, ollamaMessage{Role: ollamaRole(turn.Role), Content: turn.Text()})
	}
	return &ollamaSession{model: a, history: msgs}
}

func ollamaRole(r entities.Role) string {
	if r == entities.RoleModel {
		return "assistant"
	}
	return "user"
}

type ollamaSession struct {
	model   *OllamaChatModel
	history []ollamaMessage
}

// Send posts the history plus message and returns the assistant reply.
// The reply is appended to the session so follow-up sends see it.
func (s *ollamaSession) Send(ctx context.Context, message string) (string, error) {
	msgs := append(append([]ollamaMessage(nil), s.history...), ollamaMessage{Role: "user", Content: message})

	jsonData, err := json.Marshal(ollamaChatRequest{Model: s.model.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.model.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.model.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Ollama returned status %d", resp.StatusCode)
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("Ollama error: %s", chatResp.Error)
	}

	s.history = append(msgs, chatResp.Message)
	return chatResp.Message.Content, nil
}
