package scheduler

import "time"

type (
	// Clock provides the current time for deadlines
	Clock func() time.Time

	// Timer wakes the scheduler loop when the earliest deadline arrives
	Timer interface {
		Channel() <-chan time.Time
		Reset(delay time.Duration) bool
		Stop() bool
	}

	// TimerConstructor builds a Timer that fires after delay
	TimerConstructor func(delay time.Duration) Timer

	wallTimer struct {
		t *time.Timer
	}
)

// Deadline returns the instant timeout from now. A non-positive timeout
// falls back to def
func (c Clock) Deadline(timeout, def time.Duration) time.Time {
	if timeout <= 0 {
		timeout = def
	}
	return c().Add(timeout)
}

// NewTimer builds a Timer backed by the runtime's wall clock
func NewTimer(delay time.Duration) Timer {
	return &wallTimer{t: time.NewTimer(delay)}
}

func (w *wallTimer) Channel() <-chan time.Time {
	return w.t.C
}

func (w *wallTimer) Reset(delay time.Duration) bool {
	return w.t.Reset(delay)
}

func (w *wallTimer) Stop() bool {
	return w.t.Stop()
}
