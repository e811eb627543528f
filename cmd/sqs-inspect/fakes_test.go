package main

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const testQueueURL = "https://sqs.eu-north-1.amazonaws.com/123456789012/orders"

// fakeQueue serves a fixed set of messages. Received messages are hidden
// for the rest of the test, as a long visibility timeout would do.
type fakeQueue struct {
	mu sync.Mutex

	visible    int
	pending    []sqstypes.Message
	receiveErr error
	receives   int
	visibility []int32
}

func newFakeQueue(visible int, msgs ...sqstypes.Message) *fakeQueue {
	return &fakeQueue{visible: visible, pending: msgs}
}

func (f *fakeQueue) GetQueueAttributes(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{
		"ApproximateNumberOfMessages":           strconv.Itoa(f.visible),
		"ApproximateNumberOfMessagesNotVisible": "0",
		"ApproximateNumberOfMessagesDelayed":    "0",
	}}, nil
}

func (f *fakeQueue) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receives++
	f.visibility = append(f.visibility, params.VisibilityTimeout)
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}

	n := min(int(params.MaxNumberOfMessages), len(f.pending))
	out := f.pending[:n]
	f.pending = f.pending[n:]
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func message(id, body string, sentMillis int64) sqstypes.Message {
	return sqstypes.Message{
		MessageId: aws.String(id),
		Body:      aws.String(body),
		Attributes: map[string]string{
			string(sqstypes.MessageSystemAttributeNameSentTimestamp): strconv.FormatInt(sentMillis, 10),
		},
	}
}

type fakeS3 struct {
	puts []*s3.PutObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

type fakeCloudWatch struct {
	mu    sync.Mutex
	calls []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type fakeSTS struct {
	err   error
	calls int
}

func (f *fakeSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/inspector"),
	}, nil
}

var errAccessDenied = errors.New("AccessDenied: not authorized to perform sqs:ReceiveMessage")
