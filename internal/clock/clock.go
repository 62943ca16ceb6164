// Package clock provides the time source used for past-date checks.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type system struct{}

func (system) Now() time.Time { return time.Now() }

// System reads the wall clock.
func System() Clock { return system{} }

// Fixed always returns t.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
