package clock

import "time"

// SystemClock reads the wall clock, normalized to UTC. Every timestamp the
// application stores or compares goes through it.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
