// Package gwtime is the TimeSource of spec.md 2: a single place that hands
// out monotonic instants and durations to the rest of the core. Grounded on
// original_source/libcore/src/task/Time.cpp, which keeps monotonic time
// (for ordering and deadlines) strictly separate from wall-clock time (for
// human-readable logging) so that a clock step never perturbs an in-flight
// deadline.
package gwtime

import "time"

// Instant is a monotonic point in time. Only comparable to other Instants
// produced by the same TimeSource.
type Instant struct {
	t time.Time
}

// Sub returns the duration between two Instants.
func (i Instant) Sub(other Instant) time.Duration {
	return i.t.Sub(other.t)
}

// Add returns the Instant offset by d.
func (i Instant) Add(d time.Duration) Instant {
	return Instant{t: i.t.Add(d)}
}

// Before reports whether i occurs before other.
func (i Instant) Before(other Instant) bool {
	return i.t.Before(other.t)
}

// After reports whether i occurs after other.
func (i Instant) After(other Instant) bool {
	return i.t.After(other.t)
}

// IsZero reports whether i is the zero Instant.
func (i Instant) IsZero() bool {
	return i.t.IsZero()
}

// TimeSource is the single clock the core reads from. A real TimeSource
// wraps time.Now; tests substitute a FakeTimeSource for deterministic
// deadlines (spec.md 8, S-series scenarios rely on controllable pacing).
type TimeSource interface {
	// Now returns the current monotonic Instant.
	Now() Instant
	// Wall returns the current wall-clock time, for logging only; never
	// use it for ordering or deadline comparisons.
	Wall() time.Time
}

// Real is the production TimeSource backed by the runtime clock.
type Real struct{}

// Now implements TimeSource.
func (Real) Now() Instant {
	return Instant{t: time.Now()}
}

// Wall implements TimeSource.
func (Real) Wall() time.Time {
	return time.Now()
}

// Fake is a controllable TimeSource for tests.
type Fake struct {
	now time.Time
}

// NewFake creates a Fake TimeSource starting at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Unix(0, 0).UTC()}
}

// Now implements TimeSource.
func (f *Fake) Now() Instant {
	return Instant{t: f.now}
}

// Wall implements TimeSource.
func (f *Fake) Wall() time.Time {
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}
