// Package clock abstracts wall time so the timer display and the outbox
// retry loop can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the application uses.
type Clock interface {
	Now() time.Time

	// After behaves like time.After.
	After(d time.Duration) <-chan time.Time

	// NewTicker behaves like time.NewTicker and panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C (capacity 1; late ticks are
// dropped).
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Real returns the Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
