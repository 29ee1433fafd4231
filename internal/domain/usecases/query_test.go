package usecases

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

func isRewritePrompt(msg string) bool {
	return strings.HasPrefix(msg, "Based on the chat history, rephrase")
}

func newTestOrchestrator(emb *mockEmbedder, store *mockVectorStore, chat *mockChat, opts ...Option) *QueryOrchestrator {
	return NewQueryOrchestrator(emb, store, chat, opts...)
}

// Scenario A
func TestQueryOrchestrator_StandaloneQuestionSkipsRewrite(t *testing.T) {
	emb := &mockEmbedder{}
	store := &mockVectorStore{chunks: []entities.Chunk{{ID: "c1", Content: "Paris is the capital of France."}}}
	chat := &mockChat{replyFn: func(string) (string, error) { return "Paris", nil }}
	o := newTestOrchestrator(emb, store, chat)

	answer, err := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if answer != "Paris" {
		t.Errorf("unexpected answer: %s", answer)
	}

	sent := chat.messages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one chat call (compose), got %d", len(sent))
	}
	if isRewritePrompt(sent[0].message) {
		t.Error("rewrite must not be invoked for a standalone question")
	}
	if len(emb.queries) != 1 || emb.queries[0] != "What is the capital of France?" {
		t.Errorf("retrieval should embed the original question once, got %v", emb.queries)
	}
}

// Scenario B
func TestQueryOrchestrator_FollowUpIsRewritten(t *testing.T) {
	emb := &mockEmbedder{}
	store := &mockVectorStore{chunks: []entities.Chunk{{ID: "c1", Content: "Scheme X covers health."}}}
	chat := &mockChat{replyFn: func(msg string) (string, error) {
		if isRewritePrompt(msg) {
			return "  What are the details of scheme X?\n", nil
		}
		return "Scheme X covers health.", nil
	}}
	o := newTestOrchestrator(emb, store, chat)

	history := entities.ConversationHistory{turn(entities.RoleUser, "Describe scheme X")}
	qc, answer, err := o.Resolve(context.Background(), "tell me more", history)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if answer != "Scheme X covers health." {
		t.Errorf("unexpected answer: %s", answer)
	}
	if !qc.Rewritten || qc.StandaloneQuestion != "What are the details of scheme X?" {
		t.Errorf("expected trimmed rewrite, got %+v", qc)
	}

	sent := chat.messages()
	if len(sent) != 2 {
		t.Fatalf("expected rewrite + compose, got %d chat calls", len(sent))
	}
	if !isRewritePrompt(sent[0].message) || !strings.Contains(sent[0].message, `Question: "tell me more"`) {
		t.Errorf("unexpected rewrite prompt: %s", sent[0].message)
	}
	if len(sent[0].history) != 1 || sent[0].history[0].Text() != "Describe scheme X" {
		t.Errorf("rewriter should receive the normalized history, got %+v", sent[0].history)
	}

	if len(emb.queries) != 1 || emb.queries[0] != "What are the details of scheme X?" {
		t.Errorf("retrieval should use the rewritten question, got %v", emb.queries)
	}

	compose := sent[1].message
	if !strings.HasSuffix(compose, "Question:\ntell me more") {
		t.Errorf("compose prompt should carry the original question, got %q", compose)
	}
	if strings.Contains(compose, "What are the details of scheme X?") {
		t.Error("compose prompt must not contain the rewritten question")
	}
}

// Scenario C through the orchestrator
func TestQueryOrchestrator_NormalizesHistoryBeforeUse(t *testing.T) {
	emb := &mockEmbedder{}
	store := &mockVectorStore{}
	chat := &mockChat{}
	o := newTestOrchestrator(emb, store, chat)

	history := entities.ConversationHistory{
		turn(entities.RoleModel, "Welcome"),
		turn(entities.RoleUser, "Q1"),
		turn(entities.RoleModel, "A1"),
	}
	if _, err := o.AnswerQuestion(context.Background(), "what about it?", history); err != nil {
		t.Fatalf("query failed: %v", err)
	}

	for i, s := range chat.messages() {
		if len(s.history) != 2 || s.history[0].Role != entities.RoleUser {
			t.Errorf("call %d: expected normalized history, got %+v", i, s.history)
		}
	}
}

func TestQueryOrchestrator_FollowUpWithoutHistoryIsNotRewritten(t *testing.T) {
	chat := &mockChat{}
	o := newTestOrchestrator(&mockEmbedder{}, &mockVectorStore{}, chat)

	// Only model turns: normalizes to empty, so no rewrite.
	history := entities.ConversationHistory{turn(entities.RoleModel, "Hi")}
	if _, err := o.AnswerQuestion(context.Background(), "tell me more", history); err != nil {
		t.Fatalf("query failed: %v", err)
	}

	sent := chat.messages()
	if len(sent) != 1 || isRewritePrompt(sent[0].message) {
		t.Fatalf("expected a single compose call, got %d", len(sent))
	}
	if len(sent[0].history) != 0 {
		t.Error("compose should receive the empty normalized history")
	}
}

// Scenario D
func TestQueryOrchestrator_EmbeddingFailureAborts(t *testing.T) {
	emb := &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("connection refused")
	}}
	store := &mockVectorStore{}
	chat := &mockChat{}
	o := newTestOrchestrator(emb, store, chat)

	answer, err := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if answer != "" {
		t.Error("no partial answer may be returned")
	}
	if !errors.Is(err, ErrAnswerFailed) {
		t.Errorf("expected ErrAnswerFailed, got %v", err)
	}
	if !errors.Is(err, ErrEmbedding) || KindOf(err) != KindEmbedding {
		t.Errorf("expected embedding kind, got %v", KindOf(err))
	}
	if len(chat.messages()) != 0 {
		t.Error("composer must not be called after a retrieval failure")
	}
	if store.queries != 0 {
		t.Error("index must not be queried without a vector")
	}
}

func TestQueryOrchestrator_EmptyEmbeddingIsEmbeddingError(t *testing.T) {
	emb := &mockEmbedder{embedFn: func(string) ([]float32, error) { return nil, nil }}
	o := newTestOrchestrator(emb, &mockVectorStore{}, &mockChat{})

	_, err := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if KindOf(err) != KindEmbedding {
		t.Errorf("expected embedding kind, got %v", KindOf(err))
	}
}

func TestQueryOrchestrator_IndexFailureIsRetrievalError(t *testing.T) {
	store := &mockVectorStore{queryErr: errors.New("index unavailable")}
	chat := &mockChat{}
	o := newTestOrchestrator(&mockEmbedder{}, store, chat)

	_, err := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if !errors.Is(err, ErrRetrieval) {
		t.Errorf("expected retrieval error, got %v", err)
	}
	if len(chat.messages()) != 0 {
		t.Error("composer must not be called")
	}
}

func TestQueryOrchestrator_RewriteFailureAborts(t *testing.T) {
	emb := &mockEmbedder{}
	chat := &mockChat{replyFn: func(msg string) (string, error) {
		return "", errors.New("quota exceeded")
	}}
	o := newTestOrchestrator(emb, &mockVectorStore{}, chat)

	history := entities.ConversationHistory{turn(entities.RoleUser, "Describe scheme X")}
	_, err := o.AnswerQuestion(context.Background(), "tell me more", history)
	if !errors.Is(err, ErrUpstreamModel) {
		t.Errorf("expected upstream model error, got %v", err)
	}
	if len(emb.queries) != 0 {
		t.Error("retrieval must not fall back to the original question")
	}
}

func TestQueryOrchestrator_ComposeFailure(t *testing.T) {
	chat := &mockChat{replyFn: func(string) (string, error) { return "", errors.New("500") }}
	o := newTestOrchestrator(&mockEmbedder{}, &mockVectorStore{}, chat)

	_, err := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if KindOf(err) != KindUpstreamModel {
		t.Errorf("expected upstream model kind, got %v", KindOf(err))
	}
}

func TestQueryOrchestrator_EmptyContextStillComposes(t *testing.T) {
	store := &mockVectorStore{}
	chat := &mockChat{replyFn: func(msg string) (string, error) {
		if strings.Contains(msg, "Context:\n\n\nQuestion:") {
			return NotFoundAnswer, nil
		}
		return "made up", nil
	}}
	o := newTestOrchestrator(&mockEmbedder{}, store, chat)

	answer, err := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if err != nil {
		t.Fatalf("empty context must not be an error: %v", err)
	}
	if answer != NotFoundAnswer {
		t.Errorf("expected not-found sentence, got %q", answer)
	}
}

func TestQueryOrchestrator_AnswerIsNotTrimmed(t *testing.T) {
	chat := &mockChat{replyFn: func(string) (string, error) { return "  spaced answer\n", nil }}
	o := newTestOrchestrator(&mockEmbedder{}, &mockVectorStore{}, chat)

	answer, _ := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if answer != "  spaced answer\n" {
		t.Errorf("answer should be returned verbatim, got %q", answer)
	}
}

func TestQueryOrchestrator_InvalidInput(t *testing.T) {
	chat := &mockChat{}
	emb := &mockEmbedder{}
	o := newTestOrchestrator(emb, &mockVectorStore{}, chat)

	_, err := o.AnswerQuestion(context.Background(), "   ", nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank question: expected invalid input, got %v", err)
	}

	bad := entities.ConversationHistory{{Role: "assistant", Parts: []string{"hi"}}}
	_, err = o.AnswerQuestion(context.Background(), "What is the capital of France?", bad)
	if KindOf(err) != KindInvalidInput {
		t.Errorf("unknown role: expected invalid input, got %v", err)
	}

	if len(chat.messages()) != 0 || len(emb.queries) != 0 {
		t.Error("no provider may be called for invalid input")
	}
}

func TestQueryOrchestrator_ContextCancellation(t *testing.T) {
	emb := &mockEmbedder{embedFn: func(string) ([]float32, error) { return []float32{1}, nil }}
	o := newTestOrchestrator(emb, &mockVectorStore{}, &mockChat{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.AnswerQuestion(ctx, "What is the capital of France?", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestQueryOrchestrator_TopKAndStageObserver(t *testing.T) {
	store := &mockVectorStore{}
	var mu sync.Mutex
	var stages []string
	observer := func(stage string, _ time.Duration, _ error) {
		mu.Lock()
		stages = append(stages, stage)
		mu.Unlock()
	}
	o := newTestOrchestrator(&mockEmbedder{}, store, &mockChat{}, WithTopK(3), WithStageObserver(observer))

	history := entities.ConversationHistory{turn(entities.RoleUser, "Describe scheme X")}
	if _, err := o.AnswerQuestion(context.Background(), "tell me more", history); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if store.lastTopK != 3 {
		t.Errorf("expected topK 3, got %d", store.lastTopK)
	}
	want := []string{StageRewrite, StageRetrieve, StageCompose}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected stages: %v", stages)
	}
}

func TestQueryOrchestrator_DimensionCheck(t *testing.T) {
	store := &mockVectorStore{}
	o := newTestOrchestrator(&mockEmbedder{}, store, &mockChat{}, WithExpectedDimension(768))

	_, err := o.AnswerQuestion(context.Background(), "What is the capital of France?", nil)
	if KindOf(err) != KindEmbedding {
		t.Errorf("expected embedding kind on dimension mismatch, got %v", err)
	}
	if store.queries != 0 {
		t.Error("index must not be queried with a mismatched vector")
	}
}

func TestQueryOrchestrator_ConcurrentRequests(t *testing.T) {
	store := &mockVectorStore{chunks: []entities.Chunk{{ID: "c1", Content: "ctx"}}}
	chat := &mockChat{replyFn: func(msg string) (string, error) { return msg[len(msg)-2:], nil }}
	o := newTestOrchestrator(&mockEmbedder{}, store, chat)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := "Which scheme was launched in the year 20" + string(rune('a'+i)) + "?"
			answer, err := o.AnswerQuestion(context.Background(), q, nil)
			if err != nil {
				errs <- err
				return
			}
			if answer != string(rune('a'+i))+"?" {
				errs <- errors.New("answer mixed up between requests: " + answer)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestQueryOrchestrator_Search(t *testing.T) {
	store := &mockVectorStore{chunks: []entities.Chunk{{ID: "c1", Content: "a"}, {ID: "c2", Content: "b"}}}
	o := newTestOrchestrator(&mockEmbedder{}, store, &mockChat{})

	chunks, err := o.Search(context.Background(), "test query")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Text != "a" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestContextBlob(t *testing.T) {
	chunks := []entities.RetrievedChunk{{Text: "one"}, {Text: "two"}, {Text: "three"}}

	if got := ContextBlob(chunks); got != "one\n\n---\n\ntwo\n\n---\n\nthree" {
		t.Errorf("unexpected blob: %q", got)
	}
	if got := ContextBlob(nil); got != "" {
		t.Errorf("expected empty blob, got %q", got)
	}
}

func TestBuildAnswerPrompt(t *testing.T) {
	prompt := BuildAnswerPrompt("Who runs it?", "CTX")

	want := "You are an expert document analysis assistant.\n" +
		"Your rules:\n" +
		"1. Answer the user's question based ONLY on the provided context.\n" +
		"2. If the answer is not found in the context, state exactly: \"I could not find the answer in the provided document.\"\n" +
		"3. Do not add any information that is not from the context.\n" +
		"\nContext:\nCTX\n\nQuestion:\nWho runs it?"
	if prompt != want {
		t.Errorf("unexpected prompt:\n%s", prompt)
	}
}
