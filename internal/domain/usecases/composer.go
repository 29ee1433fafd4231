package usecases

import (
	"context"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// NotFoundAnswer is the exact sentence the model must reply with when the
// context does not contain the answer. Clients match on it byte for byte.
const NotFoundAnswer = "I could not find the answer in the provided document."

// AnswerComposer builds the grounded prompt and asks the chat model for the answer.
type AnswerComposer struct {
	chat ports.ChatModel
}

// NewAnswerComposer creates an AnswerComposer backed by chat.
func NewAnswerComposer(chat ports.ChatModel) *AnswerComposer {
	return &AnswerComposer{chat: chat}
}

// Compose returns the model's raw reply, untrimmed.
func (c *AnswerComposer) Compose(ctx context.Context, question, contextBlob string, history entities.ConversationHistory) (string, error) {
	session := c.chat.StartSession(history)

	answer, err := session.Send(ctx, BuildAnswerPrompt(question, contextBlob))
	if err != nil {
		return "", classify(KindUpstreamModel, "composing answer", err)
	}
	return answer, nil
}

// BuildAnswerPrompt creates the grounded prompt with its three rules.
func BuildAnswerPrompt(question, contextBlob string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert document analysis assistant.\n")
	sb.WriteString("Your rules:\n")
	sb.WriteString("1. Answer the user's question based ONLY on the provided context.\n")
	sb.WriteString("2. If the answer is not found in the context, state exactly: \"" + NotFoundAnswer + "\"\n")
	sb.WriteString("3. Do not add any information that is not from the context.\n")
	sb.WriteString("\nContext:\n")
	sb.WriteString(contextBlob)
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(question)
	return sb.String()
}
