package clock

import "time"

// Clock abstracts time for poll loops so tests can advance iterations
// without real waits.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// New returns a Clock backed by the system clock.
func New() Clock {
	return realClock{}
}
