// Package observer samples the tagger's trail into ghost marks.
package observer

import (
	"time"

	"github.com/annelo/ghosttag/internal/clock"
	"github.com/annelo/ghosttag/internal/geom"
)

const (
	DefaultSampleInterval = 10 * time.Second
	DefaultSearchRadius   = 80.0
)

// Mark is a sampled tagger position. Detected is recomputed every frame.
type Mark struct {
	Pos      geom.Vec2
	Detected bool
}

// Sampler drops a mark at the tagger's position once per interval while a
// round is active.
type Sampler struct {
	acc    clock.Accumulator
	radius float64
	marks  []Mark
}

func New(interval time.Duration, searchRadius float64) *Sampler {
	return &Sampler{
		acc:    clock.NewAccumulator(interval),
		radius: searchRadius,
	}
}

// Advance accumulates dt while active and appends one mark per whole
// interval at taggerPos. It returns the number of marks added.
func (s *Sampler) Advance(dt time.Duration, taggerPos geom.Vec2, active bool) int {
	if !active {
		return 0
	}
	n := s.acc.Advance(dt)
	for i := 0; i < n; i++ {
		s.marks = append(s.marks, Mark{Pos: taggerPos})
	}
	return n
}

// Detect recomputes every mark's Detected flag: true when any player other
// than the tagger stands within the search radius.
func (s *Sampler) Detect(taggerID string, positions map[string]geom.Vec2) {
	r2 := s.radius * s.radius
	for i := range s.marks {
		detected := false
		for id, p := range positions {
			if id == taggerID {
				continue
			}
			if s.marks[i].Pos.DistSq(p) <= r2 {
				detected = true
				break
			}
		}
		s.marks[i].Detected = detected
	}
}

// Reset clears the marks and restarts sampling from zero.
func (s *Sampler) Reset() {
	s.marks = nil
	s.acc.Reset()
}

// Elapsed is the time accumulated towards the next mark.
func (s *Sampler) Elapsed() time.Duration { return s.acc.Remainder() }

func (s *Sampler) Interval() time.Duration { return s.acc.Step() }

// Marks returns a copy of the current marks.
func (s *Sampler) Marks() []Mark {
	out := make([]Mark, len(s.marks))
	copy(out, s.marks)
	return out
}

// Restore replaces the sampler state with one received in a snapshot.
func (s *Sampler) Restore(elapsed time.Duration, marks []Mark) {
	s.acc.Set(elapsed)
	s.marks = append([]Mark(nil), marks...)
}
