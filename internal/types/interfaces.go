package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// MetricsRecorder receives the summary of every run that reached the drain.
// Implementations are fire-and-forget: publishing failures are logged, never
// returned to the pipeline.
type MetricsRecorder interface {
	RecordRun(ctx context.Context, m RunMetrics)
}
