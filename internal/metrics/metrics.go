package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/petems/voiceloop/internal/stage"
)

// Turn outcomes.
const (
	OutcomeCompleted    = "completed"
	OutcomeSpeechFailed = "speech_failed"
	OutcomeExited       = "exited"
	OutcomeFailed       = "failed"
)

// Metrics contains the Prometheus metrics for the conversation loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Turns          *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	StageFailures  *prometheus.CounterVec
	RecordedLength prometheus.Histogram
	HistoryLength  prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceloop_turns_total",
			Help: "Total number of conversation turns by outcome",
		}, []string{"outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceloop_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"stage"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceloop_stage_failures_total",
			Help: "Total number of failed stage invocations",
		}, []string{"stage"}),
		RecordedLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceloop_recorded_seconds",
			Help:    "Length of captured user speech",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
		HistoryLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceloop_history_messages",
			Help: "Current number of messages in the conversation history",
		}),
	}
}

// ObserveStage records how long s took and whether it failed.
func (m *Metrics) ObserveStage(s stage.Stage, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(s.String()).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(s.String()).Inc()
	}
}

func (m *Metrics) TurnFinished(outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRecording(d time.Duration) {
	if m == nil {
		return
	}
	m.RecordedLength.Observe(d.Seconds())
}

func (m *Metrics) SetHistoryLength(n int) {
	if m == nil {
		return
	}
	m.HistoryLength.Set(float64(n))
}

// Serve exposes g on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
