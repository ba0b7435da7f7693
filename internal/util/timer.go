package util

import "time"

// Timer measures elapsed wall time for request logging.
type Timer struct {
	start time.Time
	now   func() time.Time
}

// StartTimer creates a new timer starting at current time.
func StartTimer() Timer {
	return Timer{start: time.Now(), now: time.Now}
}

// Elapsed returns the time since the timer started, or zero for an unstarted timer.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() || t.now == nil {
		return 0
	}
	return t.now().Sub(t.start)
}

// ElapsedMs returns the elapsed milliseconds since start.
func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}
