package payments

import "time"

// Clock abstracts time for deterministic runs.
type Clock interface {
	Now() time.Time
}

// SystemClock returns wall-clock UTC time.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
