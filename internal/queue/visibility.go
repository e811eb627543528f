package queue

import "time"

// DefaultVisibilityFloor is the shortest hold the derived policy will use.
const DefaultVisibilityFloor = 15 * time.Second

// VisibilityTimeoutFor sizes the visibility hold for a drain of roughly
// estimate messages: one second per four messages, never below floor and
// never above the SQS maximum. Whole seconds only, since SQS takes an
// integer number of seconds.
func VisibilityTimeoutFor(estimate int, floor time.Duration) time.Duration {
	if estimate < 0 {
		estimate = 0
	}
	secs := (estimate + 3) / 4
	floorSecs := int((floor + time.Second - 1) / time.Second)
	if secs < floorSecs {
		secs = floorSecs
	}
	if secs > MaxVisibilityTimeoutSeconds {
		secs = MaxVisibilityTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// ResolveVisibilityTimeout returns the explicit hold when one is configured
// (greater than zero) and otherwise derives one from the estimate.
func ResolveVisibilityTimeout(explicit time.Duration, estimate int, floor time.Duration) time.Duration {
	if explicit > 0 {
		if explicit > MaxVisibilityTimeoutSeconds*time.Second {
			return MaxVisibilityTimeoutSeconds * time.Second
		}
		return explicit.Truncate(time.Second)
	}
	return VisibilityTimeoutFor(estimate, floor)
}
