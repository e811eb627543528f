// Package inspect runs the queue inspection pipeline: estimate the queue
// depth, drain that many messages under a visibility hold, then normalize and
// order them for output.
package inspect

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sqsinspect/internal/queue"
	"sqsinspect/internal/types"
)

// CountEstimator reports the approximate depth of a queue.
type CountEstimator interface {
	Stats(ctx context.Context, queueURL string) (types.QueueStats, error)
}

// MessageDrainer receives up to a target number of messages from a queue.
type MessageDrainer interface {
	Drain(ctx context.Context, req queue.DrainRequest) (*queue.DrainResult, error)
}

var (
	_ CountEstimator = (*queue.Estimator)(nil)
	_ MessageDrainer = (*queue.Drainer)(nil)
)

// Settings carries the visibility-hold configuration of a run.
type Settings struct {
	// VisibilityTimeout is an explicit hold. Zero derives it from the estimate.
	VisibilityTimeout time.Duration

	// VisibilityFloor is the minimum derived hold. Zero means
	// queue.DefaultVisibilityFloor.
	VisibilityFloor time.Duration
}

// Report is the outcome of one inspection run.
type Report struct {
	RunID             string
	QueueURL          string
	Stats             types.QueueStats
	VisibilityTimeout time.Duration
	Receives          int
	Stalled           bool
	StallReason       string
	Malformed         int
	Duration          time.Duration

	// Messages are sorted newest first.
	Messages []types.NormalizedMessage
}

// Service wires the pipeline stages together.
type Service struct {
	estimator CountEstimator
	drainer   MessageDrainer
	recorder  types.MetricsRecorder
	settings  Settings
	logger    *slog.Logger
	clock     types.Clock
	newID     func() string
}

// ServiceOption is a functional option for configuring a Service.
type ServiceOption func(*Service)

// WithRecorder sets the recorder that receives run metrics.
func WithRecorder(r types.MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithServiceClock overrides the clock used to time runs.
func WithServiceClock(c types.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

// WithRunIDGenerator overrides how run IDs are generated.
func WithRunIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService creates a Service. Without WithRecorder, run metrics are dropped.
func NewService(estimator CountEstimator, drainer MessageDrainer, settings Settings, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.VisibilityFloor <= 0 {
		settings.VisibilityFloor = queue.DefaultVisibilityFloor
	}
	s := &Service{
		estimator: estimator,
		drainer:   drainer,
		recorder:  nopRecorder{},
		settings:  settings,
		logger:    logger,
		clock:     types.RealClock{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inspect runs the full pipeline against queueURL.
//
// Estimation or receive failures return an ErrCodeQueueUnavailable error; a
// report is still returned when the failure happened during the drain, but it
// must not be written out. When the drain stopped short of the estimate the
// report is complete and is returned together with an ErrCodeDrainStalled
// error so the caller can warn.
func (s *Service) Inspect(ctx context.Context, queueURL string) (*Report, error) {
	start := s.clock.Now()
	runID := s.newID()
	ctx = types.WithRunID(ctx, runID)
	logger := s.logger.With("run_id", runID, "queue_url", queueURL)

	logger.InfoContext(ctx, "inspecting queue")

	stats, err := s.estimator.Stats(ctx, queueURL)
	if err != nil {
		return nil, err
	}

	hold := queue.ResolveVisibilityTimeout(s.settings.VisibilityTimeout, stats.Visible, s.settings.VisibilityFloor)
	logger.InfoContext(ctx, "queue estimated",
		"visible", stats.Visible,
		"in_flight", stats.InFlight,
		"delayed", stats.Delayed,
		"visibility_timeout_s", int(hold/time.Second),
	)

	report := &Report{
		RunID:             runID,
		QueueURL:          queueURL,
		Stats:             stats,
		VisibilityTimeout: hold,
		Messages:          []types.NormalizedMessage{},
	}

	result, err := s.drainer.Drain(ctx, queue.DrainRequest{
		QueueURL:          queueURL,
		Target:            stats.Visible,
		VisibilityTimeout: hold,
	})
	if result != nil {
		report.Receives = result.Receives
		report.Stalled = result.Stalled
		report.StallReason = result.StallReason
	}
	if err != nil {
		drained := 0
		if result != nil {
			drained = len(result.Messages)
		}
		report.Duration = s.clock.Now().Sub(start)
		s.record(ctx, report, drained, types.OutcomeFailed)
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			err = appErr.WithDetails(map[string]any{"run_id": runID, "drained": drained})
		}
		return report, err
	}

	msgs, malformed := NormalizeAll(ctx, result.Messages, logger)
	SortBySentTime(msgs)
	report.Messages = msgs
	report.Malformed = malformed
	report.Duration = s.clock.Now().Sub(start)

	if report.Stalled {
		s.record(ctx, report, len(msgs), types.OutcomeStalled)
		return report, types.NewAppErrorWithDetails(
			types.ErrCodeDrainStalled,
			"drain stopped before reaching the estimate",
			nil,
			map[string]any{
				"reason":   report.StallReason,
				"received": len(msgs),
				"estimate": stats.Visible,
			},
		)
	}

	s.record(ctx, report, len(msgs), types.OutcomeComplete)
	logger.InfoContext(ctx, "inspection complete",
		"messages", len(msgs),
		"receives", report.Receives,
		"malformed", malformed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

func (s *Service) record(ctx context.Context, r *Report, drained int, outcome types.RunOutcome) {
	s.recorder.RecordRun(ctx, types.RunMetrics{
		RunID:     r.RunID,
		QueueURL:  r.QueueURL,
		Estimate:  r.Stats.Visible,
		Drained:   drained,
		Receives:  r.Receives,
		Malformed: r.Malformed,
		Outcome:   outcome,
		Duration:  r.Duration,
	})
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, types.RunMetrics) {}
