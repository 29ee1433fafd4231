// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_pipeline_stage_duration_seconds",
			Help:    "Duration of provider-backed query pipeline stages.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	StageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_pipeline_stage_failures_total",
			Help: "Query pipeline stage failures by error kind.",
		},
		[]string{"stage", "kind"},
	)

	PromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docqa_chat_prompt_tokens",
			Help:    "Approximate token count of prompts sent to the chat model.",
			Buckets: prometheus.ExponentialBuckets(16, 2, 10),
		},
		[]string{"model"},
	)

	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docqa_chat_requests_total",
			Help: "Chat model calls by outcome.",
		},
		[]string{"model", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StageDuration,
		StageFailuresTotal,
		PromptTokens,
		ChatRequestsTotal,
	)
}

// canceledKind labels stage failures caused by the caller going away.
const canceledKind = "canceled"

// ObserveStage records one pipeline stage. Its signature matches
// usecases.StageObserver.
func ObserveStage(stage string, elapsed time.Duration, err error) {
	StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	switch {
	case err == nil:
	case usecases.IsCanceled(err):
		StageFailuresTotal.WithLabelValues(stage, canceledKind).Inc()
	default:
		StageFailuresTotal.WithLabelValues(stage, usecases.KindOf(err).String()).Inc()
	}
}
