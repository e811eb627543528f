package metrics

import (
	"context"

	"sqsinspect/internal/types"
)

// Multi fans a run out to several recorders in order.
type Multi []types.MetricsRecorder

// RecordRun forwards m to every recorder.
func (mr Multi) RecordRun(ctx context.Context, m types.RunMetrics) {
	for _, r := range mr {
		r.RecordRun(ctx, m)
	}
}

// Nop discards run metrics.
type Nop struct{}

// RecordRun does nothing.
func (Nop) RecordRun(context.Context, types.RunMetrics) {}
