package util

import "time"

// Clock abstracts wall-clock reads so order timestamps stay testable.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
