// Package timer derives countdowns from absolute deadlines.
//
// Nothing in here keeps an elapsed-time counter: a deadline is stored once and
// every read recomputes the remaining time against the clock, so a slow poll or
// a reconnect can never gain or lose time.
package timer

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Tick is how long past its deadline a countdown is still in time. Expiry is
// honored from deadline+Tick on, and the scheduler fires at that instant, so a
// command landing in the same tick as the deadline is handled before the expiry.
const Tick = 100 * time.Millisecond

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

type Service struct {
	clock Clock
}

func NewService(clock Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{clock: clock}
}

func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Start returns the absolute deadline d from now.
func (s *Service) Start(d time.Duration) time.Time {
	return s.clock.Now().Add(d)
}

// Remaining is max(0, deadline - now).
func (s *Service) Remaining(deadline time.Time) time.Duration {
	left := deadline.Sub(s.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the expiry of deadline is due: now is at least one
// Tick past it.
func (s *Service) Expired(deadline time.Time) bool {
	return !s.clock.Now().Before(deadline.Add(Tick))
}

// Pause converts the time left on deadline into a stored duration.
func (s *Service) Pause(deadline time.Time) time.Duration {
	return s.Remaining(deadline)
}

// Resume turns a stored duration back into a fresh deadline.
func (s *Service) Resume(stored time.Duration) time.Time {
	return s.clock.Now().Add(stored)
}

// DisplaySeconds rounds up so clients never show 0 while time is left.
func DisplaySeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
