// Package usecases - query.go resolves a question into a grounded answer.
package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// Pipeline stage names reported to a StageObserver.
const (
	StageRewrite  = "rewrite"
	StageRetrieve = "retrieve"
	StageCompose  = "compose"
)

// StageObserver is notified after every provider-backed stage.
type StageObserver func(stage string, elapsed time.Duration, err error)

// QueryOrchestrator runs normalize -> classify -> (rewrite) -> retrieve -> compose.
// It holds no per-request state and is safe for concurrent use as long as
// the injected providers are.
type QueryOrchestrator struct {
	classifier FollowUpClassifier
	rewriter   *QueryRewriter
	retriever  *ContextRetriever
	composer   *AnswerComposer
	logger     *slog.Logger
	observe    StageObserver

	topK        int
	expectedDim int
}

// Option configures a QueryOrchestrator.
type Option func(*QueryOrchestrator)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c FollowUpClassifier) Option {
	return func(o *QueryOrchestrator) { o.classifier = c }
}

// WithTopK sets how many chunks are retrieved.
func WithTopK(k int) Option {
	return func(o *QueryOrchestrator) { o.topK = k }
}

// WithExpectedDimension enables the query vector dimension check.
func WithExpectedDimension(dim int) Option {
	return func(o *QueryOrchestrator) { o.expectedDim = dim }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *QueryOrchestrator) { o.logger = l }
}

// WithStageObserver registers a callback for stage timings.
func WithStageObserver(fn StageObserver) Option {
	return func(o *QueryOrchestrator) { o.observe = fn }
}

// NewQueryOrchestrator wires the pipeline stages around the injected providers.
func NewQueryOrchestrator(
	embedder ports.EmbeddingProvider,
	index ports.VectorIndex,
	chat ports.ChatModel,
	opts ...Option,
) *QueryOrchestrator {
	o := &QueryOrchestrator{
		classifier: NewKeywordClassifier(),
		logger:     slog.Default(),
		observe:    func(string, time.Duration, error) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.rewriter = NewQueryRewriter(chat)
	o.retriever = NewContextRetriever(embedder, index, o.topK, o.expectedDim)
	o.composer = NewAnswerComposer(chat)
	return o
}

// AnswerQuestion returns the grounded answer for question.
// On failure the error matches ErrAnswerFailed and carries the originating Kind.
func (o *QueryOrchestrator) AnswerQuestion(ctx context.Context, question string, history entities.ConversationHistory) (string, error) {
	_, answer, err := o.Resolve(ctx, question, history)
	return answer, err
}

// Resolve is AnswerQuestion that also returns the per-request QueryContext.
func (o *QueryOrchestrator) Resolve(ctx context.Context, question string, history entities.ConversationHistory) (*entities.QueryContext, string, error) {
	qc, answer, err := o.resolve(ctx, question, history)
	if err != nil {
		if IsCanceled(err) {
			o.logger.Info("query canceled", "kind", KindOf(err).String(), "error", err)
		} else {
			o.logger.Warn("query failed", "kind", KindOf(err).String(), "error", err)
		}
		return qc, "", fmt.Errorf("%w: %w", ErrAnswerFailed, err)
	}
	return qc, answer, nil
}

func (o *QueryOrchestrator) resolve(ctx context.Context, question string, history entities.ConversationHistory) (*entities.QueryContext, string, error) {
	if strings.TrimSpace(question) == "" {
		return nil, "", invalidInput("validating question", "question must be a non-empty string")
	}
	if err := validateHistory(history); err != nil {
		return nil, "", err
	}

	qc := &entities.QueryContext{
		OriginalQuestion:   question,
		StandaloneQuestion: question,
		History:            NormalizeHistory(history),
	}

	// Classification always looks at the question as typed.
	if len(qc.History) > 0 && o.classifier.IsFollowUp(question) {
		start := time.Now()
		rewritten, err := o.rewriter.Rewrite(ctx, question, qc.History)
		o.observe(StageRewrite, time.Since(start), err)
		if err != nil {
			return qc, "", err
		}
		qc.StandaloneQuestion = rewritten
		qc.Rewritten = true
		o.logger.Debug("rewrote follow-up question", "original", question, "standalone", rewritten)
	}

	start := time.Now()
	chunks, err := o.retriever.Retrieve(ctx, qc.StandaloneQuestion)
	o.observe(StageRetrieve, time.Since(start), err)
	if err != nil {
		return qc, "", err
	}
	qc.RetrievedChunks = chunks

	start = time.Now()
	answer, err := o.composer.Compose(ctx, qc.OriginalQuestion, ContextBlob(chunks), qc.History)
	o.observe(StageCompose, time.Since(start), err)
	if err != nil {
		return qc, "", err
	}

	o.logger.Debug("answered question", "rewritten", qc.Rewritten, "chunks", len(chunks))
	return qc, answer, nil
}

// Search retrieves chunks for a standalone query without generating an answer.
func (o *QueryOrchestrator) Search(ctx context.Context, query string) ([]entities.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidInput("validating query", "query must be a non-empty string")
	}
	return o.retriever.Retrieve(ctx, query)
}
