// Package clock abstracts wall-clock access so blocking-query deadlines and
// back-off pauses can be driven deterministically in tests.
package clock

import "time"

// Clock is the time source used by the query engine and lock helpers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real implements Clock using the standard library.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// After mirrors time.After.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Remaining reports how long is left until deadline according to c. A zero
// deadline yields zero.
func Remaining(c Clock, deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	left := deadline.Sub(c.Now())
	if left < 0 {
		return 0
	}
	return left
}
