package supervisor

import "time"

// Timer is a pending callback scheduled on a Clock.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// Clock schedules callbacks. The supervisor takes one so tests can drive the
// grace period and restart delay by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
