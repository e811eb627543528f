package main

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"sqsinspect/internal/config"
	"sqsinspect/internal/inspect"
	"sqsinspect/internal/metrics"
	"sqsinspect/internal/output"
	"sqsinspect/internal/queue"
	"sqsinspect/internal/types"
)

// newLogger builds the run logger. Logs always go to w (stderr) so stdout
// stays free.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildRecorder combines the configured metric sinks. No sink yields a no-op.
func buildRecorder(obs config.ObservabilityConfig, cw metrics.CloudWatchClient, logger *slog.Logger) types.MetricsRecorder {
	var recorders metrics.Multi
	if obs.MetricNamespace != "" && cw != nil {
		recorders = append(recorders, metrics.NewCloudWatchRecorder(cw, obs.MetricNamespace, logger))
	}
	if obs.MetricsTextfile != "" {
		recorders = append(recorders, metrics.NewTextfileRecorder(obs.MetricsTextfile, logger))
	}
	switch len(recorders) {
	case 0:
		return metrics.Nop{}
	case 1:
		return recorders[0]
	default:
		return recorders
	}
}

// drainerConfig maps queue settings onto the drainer's tuning knobs.
func drainerConfig(q config.QueueConfig) queue.DrainerConfig {
	return queue.DrainerConfig{
		BatchSize:          q.MessagesPerReceive,
		MaxStalledReceives: q.MaxStalledReceives,
		MaxReceives:        q.MaxReceives,
		MaxDuration:        q.MaxDuration,
		Concurrency:        q.Concurrency,
	}
}

// execute runs one inspection and writes the result.
//
// A hard failure returns before anything is written. A stalled drain still
// writes its partial result and then returns the ErrCodeDrainStalled error,
// which maps to a successful exit.
func execute(ctx context.Context, cfg *config.Config, clients awsClients, logger *slog.Logger) error {
	if cfg.AWS.VerifyIdentity {
		if err := verifyIdentity(ctx, clients.STS, logger); err != nil {
			return err
		}
	}

	logger.Info("queue endpoint",
		"queue_url", cfg.Queue.URL,
		"endpoint", describeEndpoint(cfg.AWS),
	)

	svc := inspect.NewService(
		queue.NewEstimator(clients.SQS, logger),
		queue.NewDrainer(clients.SQS, drainerConfig(cfg.Queue), logger),
		inspect.Settings{
			VisibilityTimeout: cfg.Queue.VisibilityTimeout(),
			VisibilityFloor:   cfg.Queue.VisibilityFloor(),
		},
		logger,
		inspect.WithRecorder(buildRecorder(cfg.Observability, clients.CloudWatch, logger)),
	)

	report, inspectErr := svc.Inspect(ctx, cfg.Queue.URL)
	if inspectErr != nil && !types.CodeOf(inspectErr).IsDegraded() {
		return inspectErr
	}

	writer := output.NewWriter(clients.S3, logger)
	location, err := writer.Write(ctx, cfg.Output.Destination, report.Messages)
	if err != nil {
		return err
	}

	logger.Info("results stored",
		"location", location,
		"messages", len(report.Messages),
		"run_id", report.RunID,
	)
	return inspectErr
}
