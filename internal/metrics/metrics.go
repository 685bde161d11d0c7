// Package metrics holds the gateway's Prometheus collectors. They register
// with the default registry and are served by the gateway at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stm"

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Open client connections.",
	})

	Workflows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflows_total",
		Help:      "Dispatched workflows by operation and outcome.",
	}, []string{"operation", "outcome"})

	ExternalCallSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "external_call_seconds",
		Help:      "Latency of calls to the language model, database, recognizer and synthesizer.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"service"})

	AudioFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audio_frames_sent_total",
		Help:      "Binary audio frames written to clients.",
	})

	SpeechSentences = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tts_sentences_total",
		Help:      "Synthesized sentences by outcome.",
	}, []string{"outcome"})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ObserveCall records the time since start against service.
func ObserveCall(service string, start time.Time) {
	ExternalCallSeconds.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

// Workflow counts one finished workflow.
func Workflow(operation string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	Workflows.WithLabelValues(operation, outcome).Inc()
}
