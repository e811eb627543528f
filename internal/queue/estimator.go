package queue

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"sqsinspect/internal/types"
)

// Estimator reads the approximate message counts SQS reports for a queue.
type Estimator struct {
	client SQSAPI
	logger *slog.Logger
}

// NewEstimator creates an Estimator backed by the given SQS client.
func NewEstimator(client SQSAPI, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{client: client, logger: logger}
}

// Estimate returns the approximate number of visible messages in the queue.
// A missing count attribute yields 0. Failures of the underlying call are
// returned as ErrCodeQueueUnavailable and are not retried.
func (e *Estimator) Estimate(ctx context.Context, queueURL string) (int, error) {
	stats, err := e.Stats(ctx, queueURL)
	if err != nil {
		return 0, err
	}
	return stats.Visible, nil
}

// Stats performs a single GetQueueAttributes call requesting all attributes
// and extracts the visible, in-flight and delayed counts.
func (e *Estimator) Stats(ctx context.Context, queueURL string) (types.QueueStats, error) {
	out, err := e.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{
			sqstypes.QueueAttributeNameAll,
		},
	})
	if err != nil {
		return types.QueueStats{}, types.NewAppErrorWithDetails(
			types.ErrCodeQueueUnavailable,
			"failed to read queue attributes",
			err,
			map[string]any{"queue_url": queueURL},
		)
	}

	var attrs map[string]string
	if out != nil {
		attrs = out.Attributes
	}

	stats := types.QueueStats{
		Visible:  e.countAttribute(ctx, attrs, sqstypes.QueueAttributeNameApproximateNumberOfMessages),
		InFlight: e.countAttribute(ctx, attrs, sqstypes.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
		Delayed:  e.countAttribute(ctx, attrs, sqstypes.QueueAttributeNameApproximateNumberOfMessagesDelayed),
	}

	e.logger.DebugContext(ctx, "queue attributes read",
		"queue_url", queueURL,
		"visible", stats.Visible,
		"in_flight", stats.InFlight,
		"delayed", stats.Delayed,
	)

	return stats, nil
}

// countAttribute parses a non-negative count attribute. Absent, malformed or
// negative values count as 0.
func (e *Estimator) countAttribute(ctx context.Context, attrs map[string]string, name sqstypes.QueueAttributeName) int {
	raw, ok := attrs[string(name)]
	if !ok || raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		e.logger.WarnContext(ctx, "ignoring unparsable queue count attribute",
			"attribute", string(name),
			"value", raw,
		)
		return 0
	}
	return n
}
