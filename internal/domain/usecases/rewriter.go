package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// QueryRewriter turns a follow-up question into a standalone one.
type QueryRewriter struct {
	chat ports.ChatModel
}

// NewQueryRewriter creates a QueryRewriter backed by chat.
func NewQueryRewriter(chat ports.ChatModel) *QueryRewriter {
	return &QueryRewriter{chat: chat}
}

// Rewrite asks the chat model, seeded with history, to restate question so it
// stands on its own. The trimmed reply is returned without further checks.
func (r *QueryRewriter) Rewrite(ctx context.Context, question string, history entities.ConversationHistory) (string, error) {
	session := r.chat.StartSession(history)

	reply, err := session.Send(ctx, buildRewritePrompt(question))
	if err != nil {
		return "", classify(KindUpstreamModel, "rewriting query", err)
	}
	return strings.TrimSpace(reply), nil
}

func buildRewritePrompt(question string) string {
	return fmt.Sprintf("Based on the chat history, rephrase the following question into a complete, "+
		"standalone question that can be understood without the history. "+
		"Only output the rewritten question. Question: \"%s\"", question)
}
