package metrics

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

const tokenEncoding = "cl100k_base"

// TokenCounter estimates prompt sizes with a BPE encoding. When the encoding
// cannot be loaded (it is fetched on first use) it falls back to counting
// whitespace-separated words.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// Count returns the token count of text.
func (c *TokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			slog.Warn("token encoding unavailable, counting words instead", "encoding", tokenEncoding, "error", err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return len(strings.Fields(text))
	}
	return len(c.enc.Encode(text, nil, nil))
}

// InstrumentedChatModel records prompt sizes and call outcomes for a ChatModel.
type InstrumentedChatModel struct {
	inner   ports.ChatModel
	model   string
	counter *TokenCounter
}

// InstrumentChat wraps inner. model labels the recorded series.
func InstrumentChat(inner ports.ChatModel, model string, counter *TokenCounter) *InstrumentedChatModel {
	if counter == nil {
		counter = &TokenCounter{}
	}
	return &InstrumentedChatModel{inner: inner, model: model, counter: counter}
}

func (m *InstrumentedChatModel) StartSession(history entities.ConversationHistory) ports.ChatSession {
	tokens := 0
	for _, turn := range history {
		tokens += m.counter.Count(turn.Text())
	}
	return &instrumentedSession{inner: m.inner.StartSession(history), parent: m, historyTokens: tokens}
}

type instrumentedSession struct {
	inner         ports.ChatSession
	parent        *InstrumentedChatModel
	historyTokens int
}

func (s *instrumentedSession) Send(ctx context.Context, message string) (string, error) {
	PromptTokens.WithLabelValues(s.parent.model).Observe(float64(s.historyTokens + s.parent.counter.Count(message)))

	reply, err := s.inner.Send(ctx, message)
	if err != nil {
		ChatRequestsTotal.WithLabelValues(s.parent.model, "error").Inc()
		return "", err
	}
	ChatRequestsTotal.WithLabelValues(s.parent.model, "ok").Inc()
	s.historyTokens += s.parent.counter.Count(message) + s.parent.counter.Count(reply)
	return reply, nil
}
