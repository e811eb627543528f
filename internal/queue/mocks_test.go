package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const testQueueURL = "https://sqs.eu-north-1.amazonaws.com/123456789012/orders"

// fakeSQS is a scripted SQSAPI. Each ReceiveMessage call pops the next entry
// of batches (a count of messages to return, capped at the requested max)
// and records the request. When the script runs out it returns nothing.
type fakeSQS struct {
	mu sync.Mutex

	attributes    map[string]string
	attributesErr error
	attrCalls     []*sqs.GetQueueAttributesInput

	batches    []int
	receiveErr error
	// errOnCall fails the Nth receive call (1-based); 0 disables it.
	errOnCall    int
	receiveCalls []*sqs.ReceiveMessageInput
	nextID       int
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, params *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrCalls = append(f.attrCalls, params)
	if f.attributesErr != nil {
		return nil, f.attributesErr
	}
	return &sqs.GetQueueAttributesOutput{Attributes: f.attributes}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiveCalls = append(f.receiveCalls, params)

	if f.receiveErr != nil && (f.errOnCall == 0 || f.errOnCall == len(f.receiveCalls)) {
		return nil, f.receiveErr
	}

	n := 0
	if len(f.batches) > 0 {
		n = f.batches[0]
		f.batches = f.batches[1:]
	}
	if n > int(params.MaxNumberOfMessages) {
		n = int(params.MaxNumberOfMessages)
	}

	msgs := make([]sqstypes.Message, n)
	for i := range msgs {
		f.nextID++
		msgs[i] = sqstypes.Message{
			MessageId: aws.String(fmt.Sprintf("msg-%03d", f.nextID)),
			Body:      aws.String(fmt.Sprintf(`{"seq":%d}`, f.nextID)),
		}
	}
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (f *fakeSQS) requestedSizes() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int32, len(f.receiveCalls))
	for i, c := range f.receiveCalls {
		sizes[i] = c.MaxNumberOfMessages
	}
	return sizes
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
