// Package queue talks to the SQS queue being inspected: it estimates the
// queue's depth and drains visible messages in bounded batches.
package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// MaxBatchSize is the most messages a single ReceiveMessage call may return.
// This is an SQS protocol limit.
const MaxBatchSize = 10

// MaxVisibilityTimeoutSeconds is the longest visibility timeout SQS accepts
// (12 hours).
const MaxVisibilityTimeoutSeconds = 43200

// SQSAPI is the subset of the SQS SDK client used by this package.
// Production code passes the *sqs.Client from aws-sdk-go-v2.
type SQSAPI interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
}

var _ SQSAPI = (*sqs.Client)(nil)
