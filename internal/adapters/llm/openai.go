package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// GeminiOpenAIBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ErrEmptyCompletion is returned when the API answers with no choices.
var ErrEmptyCompletion = errors.New("chat completion returned no choices")

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
}

// OpenAIChatModel implements ports.ChatModel via chat completions.
type OpenAIChatModel struct {
	client openai.Client
	model  string
}

// NewOpenAIChatModel creates a chat adapter. Empty fields fall back to
// Gemini's gemini-1.5-flash.
func NewOpenAIChatModel(cfg OpenAIConfig) *OpenAIChatModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return &OpenAIChatModel{client: openai.NewClient(opts...), model: cfg.Model}
}

// StartSession seeds a session with history.
func (m *OpenAIChatModel) StartSession(history entities.ConversationHistory) ports.ChatSession {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	for _, turn := range history {
		if turn.Role == entities.RoleModel {
			msgs = append(msgs, openai.AssistantMessage(turn.Text()))
		} else {
			msgs = append(msgs, openai.UserMessage(turn.Text()))
		}
	}
	return &openAISession{model: m, history: msgs}
}

type openAISession struct {
	model *OpenAIChatModel

	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion
}

func (s *openAISession) Send(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	msgs := append(append([]openai.ChatCompletionMessageParamUnion(nil), s.history...), openai.UserMessage(message))
	s.mu.Unlock()

	resp, err := s.model.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.model.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("calling chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	reply := resp.Choices[0].Message.Content
	slog.Debug("chat completion", "model", s.model.model, "messages", len(msgs),
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)

	s.mu.Lock()
	s.history = append(msgs, openai.AssistantMessage(reply))
	s.mu.Unlock()
	return reply, nil
}
