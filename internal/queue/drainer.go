package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"sqsinspect/internal/types"
)

// DefaultMaxStalledReceives is the number of consecutive receive rounds that
// return nothing before a drain gives up.
const DefaultMaxStalledReceives = 3

// Stall reasons reported in DrainResult.StallReason.
const (
	StallNoProgress     = "no_progress"
	StallReceiveCeiling = "receive_ceiling"
	StallTimeBudget     = "time_budget"
)

// DrainerConfig holds the tuning knobs of a Drainer. Zero values select the
// defaults documented on each field.
type DrainerConfig struct {
	// BatchSize is the requested messages per receive call, clamped to
	// 1..MaxBatchSize. Zero means MaxBatchSize.
	BatchSize int

	// MaxStalledReceives is how many consecutive empty receive rounds end
	// the drain. Zero means DefaultMaxStalledReceives.
	MaxStalledReceives int

	// MaxReceives caps the total number of receive calls. Zero derives the
	// cap from the target: Concurrency * (target + MaxStalledReceives), one
	// message per progressing round being the slowest drain that is still
	// making progress.
	MaxReceives int

	// MaxDuration bounds the wall-clock time of a drain. Zero disables it.
	MaxDuration time.Duration

	// Concurrency is the number of receive calls issued per round.
	// Zero or one keeps the drain strictly sequential.
	Concurrency int
}

// DrainRequest describes one drain run.
type DrainRequest struct {
	QueueURL          string
	Target            int
	VisibilityTimeout time.Duration
}

// DrainResult is what a drain accumulated. Messages are in arrival order.
type DrainResult struct {
	Messages    []sqstypes.Message
	Receives    int
	Stalled     bool
	StallReason string
}

// Drainer repeatedly receives batches from a queue until a target count is
// reached or receives stop making progress.
type Drainer struct {
	client SQSAPI
	cfg    DrainerConfig
	logger *slog.Logger
	now    func() time.Time
}

// DrainerOption is a functional option for configuring a Drainer.
type DrainerOption func(*Drainer)

// WithClock overrides the clock used for the MaxDuration budget.
func WithClock(now func() time.Time) DrainerOption {
	return func(d *Drainer) {
		d.now = now
	}
}

// NewDrainer creates a Drainer backed by the given SQS client.
func NewDrainer(client SQSAPI, cfg DrainerConfig, logger *slog.Logger, opts ...DrainerOption) *Drainer {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Drainer{
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Drainer) batchSize() int {
	switch {
	case d.cfg.BatchSize <= 0, d.cfg.BatchSize > MaxBatchSize:
		return MaxBatchSize
	default:
		return d.cfg.BatchSize
	}
}

func (d *Drainer) maxStalls() int {
	if d.cfg.MaxStalledReceives <= 0 {
		return DefaultMaxStalledReceives
	}
	return d.cfg.MaxStalledReceives
}

func (d *Drainer) concurrency() int {
	if d.cfg.Concurrency <= 1 {
		return 1
	}
	return d.cfg.Concurrency
}

// maxReceives is the receive-call ceiling. The derived default assumes the
// worst progressing round yields a single message, so it only stops a drain
// that has stopped making progress.
func (d *Drainer) maxReceives(target int) int {
	if d.cfg.MaxReceives > 0 {
		return d.cfg.MaxReceives
	}
	return d.concurrency() * (target + d.maxStalls())
}

// Drain receives messages until req.Target messages have been obtained.
//
// Each call asks for min(batch size, remaining). The drain stops early, with
// Stalled set, after MaxStalledReceives consecutive rounds return nothing,
// when the receive ceiling is reached, or when MaxDuration has elapsed.
// A receive error aborts the drain with ErrCodeQueueUnavailable; the
// messages accumulated so far are still returned alongside the error.
func (d *Drainer) Drain(ctx context.Context, req DrainRequest) (*DrainResult, error) {
	result := &DrainResult{Messages: []sqstypes.Message{}}
	if req.Target <= 0 {
		return result, nil
	}

	batch := d.batchSize()
	maxReceives := d.maxReceives(req.Target)
	maxStalls := d.maxStalls()
	visibility := int32(req.VisibilityTimeout / time.Second)

	var deadline time.Time
	if d.cfg.MaxDuration > 0 {
		deadline = d.now().Add(d.cfg.MaxDuration)
	}

	stalls := 0
	for len(result.Messages) < req.Target {
		if err := ctx.Err(); err != nil {
			return result, types.NewAppErrorWithDetails(
				types.ErrCodeQueueUnavailable,
				"drain cancelled",
				err,
				map[string]any{"queue_url": req.QueueURL, "received": len(result.Messages)},
			)
		}
		if result.Receives >= maxReceives {
			d.stop(ctx, req, result, StallReceiveCeiling)
			return result, nil
		}
		if !deadline.IsZero() && !d.now().Before(deadline) {
			d.stop(ctx, req, result, StallTimeBudget)
			return result, nil
		}

		sizes := planRound(req.Target-len(result.Messages), batch, d.concurrency(), maxReceives-result.Receives)
		batches, err := d.receiveRound(ctx, req.QueueURL, visibility, sizes)
		result.Receives += len(sizes)

		received := 0
		for _, msgs := range batches {
			result.Messages = append(result.Messages, msgs...)
			received += len(msgs)
		}

		if err != nil {
			return result, types.NewAppErrorWithDetails(
				types.ErrCodeQueueUnavailable,
				"failed to receive messages",
				err,
				map[string]any{
					"queue_url": req.QueueURL,
					"received":  len(result.Messages),
					"target":    req.Target,
				},
			)
		}

		d.logger.InfoContext(ctx, "messages received",
			"received", received,
			"total", len(result.Messages),
			"target", req.Target,
		)

		if received == 0 {
			stalls++
			if stalls >= maxStalls {
				d.stop(ctx, req, result, StallNoProgress)
				return result, nil
			}
			continue
		}
		stalls = 0
	}

	return result, nil
}

func (d *Drainer) stop(ctx context.Context, req DrainRequest, result *DrainResult, reason string) {
	result.Stalled = true
	result.StallReason = reason
	d.logger.WarnContext(ctx, "drain stopped before reaching target",
		"run_id", types.GetRunID(ctx),
		"reason", reason,
		"received", len(result.Messages),
		"target", req.Target,
		"receives", result.Receives,
	)
}

// planRound splits the remaining target into per-call request sizes for one
// round. The sizes never sum to more than remaining.
func planRound(remaining, batch, concurrency, receivesLeft int) []int {
	calls := (remaining + batch - 1) / batch
	if calls > concurrency {
		calls = concurrency
	}
	if calls > receivesLeft {
		calls = receivesLeft
	}
	sizes := make([]int, 0, calls)
	for i := 0; i < calls && remaining > 0; i++ {
		n := min(batch, remaining)
		sizes = append(sizes, n)
		remaining -= n
	}
	return sizes
}

// receiveRound issues one receive call per entry of sizes and returns the
// batches in slot order. A single call runs inline; more fan out through an
// errgroup.
func (d *Drainer) receiveRound(ctx context.Context, queueURL string, visibility int32, sizes []int) ([][]sqstypes.Message, error) {
	batches := make([][]sqstypes.Message, len(sizes))

	if len(sizes) == 1 {
		msgs, err := d.receive(ctx, queueURL, visibility, sizes[0])
		batches[0] = msgs
		return batches, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(sizes))
	for i, size := range sizes {
		i, size := i, size
		g.Go(func() error {
			msgs, err := d.receive(gctx, queueURL, visibility, size)
			batches[i] = msgs
			return err
		})
	}
	return batches, g.Wait()
}

func (d *Drainer) receive(ctx context.Context, queueURL string, visibility int32, size int) ([]sqstypes.Message, error) {
	out, err := d.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: int32(size),
		VisibilityTimeout:   visibility,
		WaitTimeSeconds:     0,
		AttributeNames: []sqstypes.QueueAttributeName{
			sqstypes.QueueAttributeNameAll,
		},
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameAll,
		},
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: ReceiveMessage (max=%d) on %s: %w", size, queueURL, err)
	}
	if out == nil {
		return nil, nil
	}
	return out.Messages, nil
}
