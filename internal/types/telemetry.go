package types

import (
	"strings"
	"time"
)

// Telemetry metric names for run metrics.
// All recorders MUST use these constants.
const (
	// Metric Names
	MetricQueueDepth      = "QueueDepthEstimate"
	MetricMessagesDrained = "MessagesDrained"
	MetricReceiveCalls    = "ReceiveCalls"
	MetricMalformedBodies = "MalformedBodies"
	MetricDrainStalled    = "DrainStalled"
	MetricDrainDuration   = "DrainDuration"
	MetricRuns            = "Runs" // 1 per run, dimensioned by Outcome

	// Dimension Keys
	DimQueueName = "QueueName"
	DimOutcome   = "Outcome"

	// Metric Namespace
	MetricNamespace = "SQSInspect"
)

// RunOutcome classifies how an inspection run ended.
type RunOutcome string

const (
	OutcomeComplete RunOutcome = "complete"
	OutcomeStalled  RunOutcome = "stalled"
	OutcomeFailed   RunOutcome = "failed"
)

// RunMetrics is the summary of one inspection run handed to metric recorders.
type RunMetrics struct {
	RunID     string
	QueueURL  string
	Estimate  int
	Drained   int
	Receives  int
	Malformed int
	Outcome   RunOutcome
	Duration  time.Duration
}

// QueueName returns the queue name, the last path segment of the queue URL.
func (m RunMetrics) QueueName() string {
	return QueueNameFromURL(m.QueueURL)
}

// QueueNameFromURL extracts the queue name from an SQS queue URL such as
// https://sqs.eu-north-1.amazonaws.com/123456789012/orders.
func QueueNameFromURL(queueURL string) string {
	trimmed := strings.TrimRight(queueURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
