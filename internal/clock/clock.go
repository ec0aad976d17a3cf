// Package clock provides explicit timer values advanced by frame deltas.
//
// Nothing here reads the wall clock: every value moves only when the owner
// calls Advance with an elapsed duration.
package clock

import "time"

// Timer counts down a fixed duration once restarted.
type Timer struct {
	duration  time.Duration
	remaining time.Duration
	running   bool
}

// NewTimer returns a stopped timer of the given duration.
func NewTimer(d time.Duration) Timer {
	return Timer{duration: d}
}

// Restart starts the timer from its full duration.
func (t *Timer) Restart() {
	t.remaining = t.duration
	t.running = t.duration > 0
}

// Cancel stops the timer without expiring it.
func (t *Timer) Cancel() {
	t.remaining = 0
	t.running = false
}

// Set restores the timer to an explicit state (used by snapshots).
func (t *Timer) Set(remaining time.Duration, running bool) {
	if remaining <= 0 {
		running = false
		remaining = 0
	}
	t.remaining = remaining
	t.running = running
}

// Advance moves the timer forward by dt and reports whether it expired
// during this call. Negative deltas are ignored.
func (t *Timer) Advance(dt time.Duration) bool {
	if !t.running || dt <= 0 {
		return false
	}
	t.remaining -= dt
	if t.remaining <= 0 {
		t.remaining = 0
		t.running = false
		return true
	}
	return false
}

func (t *Timer) Running() bool { return t.running }

func (t *Timer) Remaining() time.Duration { return t.remaining }

func (t *Timer) Duration() time.Duration { return t.duration }

// Progress returns elapsed/duration in [0, 1]; a stopped timer reports 1.
func (t *Timer) Progress() float64 {
	if !t.running || t.duration <= 0 {
		return 1
	}
	return 1 - float64(t.remaining)/float64(t.duration)
}

// Stopwatch measures elapsed time since the last restart.
type Stopwatch struct {
	elapsed time.Duration
}

func (s *Stopwatch) Restart() { s.elapsed = 0 }

func (s *Stopwatch) Advance(dt time.Duration) {
	if dt > 0 {
		s.elapsed += dt
	}
}

func (s *Stopwatch) Elapsed() time.Duration { return s.elapsed }

// Accumulator splits a stream of variable deltas into whole fixed steps,
// carrying the remainder across calls. After every Advance the remainder
// satisfies 0 <= remainder < step.
type Accumulator struct {
	step time.Duration
	acc  time.Duration
}

// NewAccumulator panics on a non-positive step: it would never drain.
func NewAccumulator(step time.Duration) Accumulator {
	if step <= 0 {
		panic("clock: accumulator step must be positive")
	}
	return Accumulator{step: step}
}

// Advance adds dt and returns how many whole steps became available.
func (a *Accumulator) Advance(dt time.Duration) int {
	if dt > 0 {
		a.acc += dt
	}
	n := int(a.acc / a.step)
	a.acc -= time.Duration(n) * a.step
	return n
}

func (a *Accumulator) Remainder() time.Duration { return a.acc }

func (a *Accumulator) Step() time.Duration { return a.step }

// Set restores the remainder, folding anything beyond one step away.
func (a *Accumulator) Set(rem time.Duration) {
	if rem < 0 {
		rem = 0
	}
	a.acc = rem % a.step
}

func (a *Accumulator) Reset() { a.acc = 0 }
