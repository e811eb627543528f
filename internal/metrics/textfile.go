package metrics

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"sqsinspect/internal/types"
)

var _ types.MetricsRecorder = (*TextfileRecorder)(nil)

// TextfileRecorder writes run metrics in the Prometheus text format to a
// file, for the node_exporter textfile collector. Each run replaces the file.
type TextfileRecorder struct {
	path     string
	logger   *slog.Logger
	registry *prometheus.Registry

	depth     *prometheus.GaugeVec
	drained   *prometheus.GaugeVec
	receives  *prometheus.GaugeVec
	malformed *prometheus.GaugeVec
	duration  *prometheus.GaugeVec
	outcome   *prometheus.GaugeVec
	lastRun   *prometheus.GaugeVec
}

// NewTextfileRecorder creates a recorder writing to path. The path should end
// in ".prom" for node_exporter to pick it up.
func NewTextfileRecorder(path string, logger *slog.Logger) *TextfileRecorder {
	if logger == nil {
		logger = slog.Default()
	}

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sqs_inspect",
			Name:      name,
			Help:      help,
		}, labels)
	}

	r := &TextfileRecorder{
		path:      path,
		logger:    logger,
		registry:  prometheus.NewRegistry(),
		depth:     gauge("queue_depth_estimate", "Approximate visible messages when the run started.", "queue"),
		drained:   gauge("messages_drained", "Messages received by the last run.", "queue"),
		receives:  gauge("receive_calls", "Receive calls issued by the last run.", "queue"),
		malformed: gauge("malformed_bodies", "Messages whose body was not valid JSON.", "queue"),
		duration:  gauge("run_duration_seconds", "Wall-clock duration of the last run.", "queue"),
		outcome:   gauge("last_run_outcome", "1 for the outcome of the last run, 0 otherwise.", "queue", "outcome"),
		lastRun:   gauge("last_run_timestamp_seconds", "Unix time the last run finished.", "queue"),
	}
	r.registry.MustRegister(r.depth, r.drained, r.receives, r.malformed, r.duration, r.outcome, r.lastRun)
	return r
}

// RecordRun updates the gauges and rewrites the textfile. Errors are logged
// and swallowed.
func (r *TextfileRecorder) RecordRun(ctx context.Context, m types.RunMetrics) {
	q := m.QueueName()

	r.depth.WithLabelValues(q).Set(float64(m.Estimate))
	r.drained.WithLabelValues(q).Set(float64(m.Drained))
	r.receives.WithLabelValues(q).Set(float64(m.Receives))
	r.malformed.WithLabelValues(q).Set(float64(m.Malformed))
	r.duration.WithLabelValues(q).Set(m.Duration.Seconds())
	for _, o := range []types.RunOutcome{types.OutcomeComplete, types.OutcomeStalled, types.OutcomeFailed} {
		v := 0.0
		if o == m.Outcome {
			v = 1
		}
		r.outcome.WithLabelValues(q, string(o)).Set(v)
	}
	r.lastRun.WithLabelValues(q).SetToCurrentTime()

	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		r.logger.ErrorContext(ctx, "failed to write metrics textfile",
			"error", err.Error(),
			"path", r.path,
			"run_id", m.RunID,
		)
	}
}
