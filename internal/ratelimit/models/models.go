package models

import "time"

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, only set when not allowed
}

// Limit is a number of requests allowed per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether the limit should be enforced at all.
func (l Limit) Enabled() bool {
	return l.Requests > 0 && l.Window > 0
}

// RetryAfterSeconds rounds d up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
