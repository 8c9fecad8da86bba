package expiry

import "time"

// Clock abstracts "now" so sweep and expiry comparisons are deterministic
// under test.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
