package clock

import "time"

// Clock supplies the current instant. The session engine and the timing
// calculator take their "now" from here so expiration behavior can be
// tested deterministically.
type Clock interface {
	Now() time.Time
}

// System is the production clock.
type System struct{}

// Now returns the wall-clock time.
func (System) Now() time.Time { return time.Now() }

// Fixed is a clock pinned to a settable instant. Test helper.
type Fixed struct {
	Instant time.Time
}

// Now returns the pinned instant.
func (f *Fixed) Now() time.Time { return f.Instant }

// Advance moves the pinned instant forward.
func (f *Fixed) Advance(d time.Duration) { f.Instant = f.Instant.Add(d) }
