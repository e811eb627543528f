// Package metrics publishes the summary of each inspection run.
package metrics

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"sqsinspect/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Compile-time assertion that CloudWatchRecorder implements MetricsRecorder.
var _ types.MetricsRecorder = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder emits run metrics to AWS CloudWatch in a single
// PutMetricData call per run.
//
// Metrics emitted, all with the QueueName dimension:
//   - QueueDepthEstimate, MessagesDrained, ReceiveCalls, MalformedBodies (Count)
//   - DrainStalled: 1 when the drain stopped short, else 0
//   - DrainDuration (Milliseconds)
//   - Runs: 1, with an additional Outcome dimension
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to namespace. An empty
// namespace selects types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordRun publishes m. Errors are logged and swallowed.
func (r *CloudWatchRecorder) RecordRun(ctx context.Context, m types.RunMetrics) {
	dims := []cwtypes.Dimension{
		{
			Name:  aws.String(types.DimQueueName),
			Value: aws.String(m.QueueName()),
		},
	}

	stalled := 0.0
	if m.Outcome == types.OutcomeStalled {
		stalled = 1
	}

	datum := func(name string, value float64, unit cwtypes.StandardUnit) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(value),
			Unit:       unit,
			Dimensions: dims,
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			datum(types.MetricQueueDepth, float64(m.Estimate), cwtypes.StandardUnitCount),
			datum(types.MetricMessagesDrained, float64(m.Drained), cwtypes.StandardUnitCount),
			datum(types.MetricReceiveCalls, float64(m.Receives), cwtypes.StandardUnitCount),
			datum(types.MetricMalformedBodies, float64(m.Malformed), cwtypes.StandardUnitCount),
			datum(types.MetricDrainStalled, stalled, cwtypes.StandardUnitCount),
			datum(types.MetricDrainDuration, float64(m.Duration.Milliseconds()), cwtypes.StandardUnitMilliseconds),
			{
				MetricName: aws.String(types.MetricRuns),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: append(dims[:len(dims):len(dims)], cwtypes.Dimension{
					Name:  aws.String(types.DimOutcome),
					Value: aws.String(string(m.Outcome)),
				}),
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to record run metrics",
			"error", err.Error(),
			"run_id", m.RunID,
			"namespace", r.namespace,
		)
	}
}
