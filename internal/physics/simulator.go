package physics

import (
	"time"

	"github.com/annelo/ghosttag/internal/clock"
)

// TickSize is the constant physics step.
const TickSize = time.Second / 200

// Simulator advances a Dynamics world in TickSize steps, independent of
// the frame rate. It never steps with a variable or negative delta.
type Simulator struct {
	dyn   Dynamics
	acc   clock.Accumulator
	ticks uint64
}

func NewSimulator(dyn Dynamics) *Simulator {
	return &Simulator{
		dyn: dyn,
		acc: clock.NewAccumulator(TickSize),
	}
}

// Advance accumulates delta and runs one physics step per whole tick.
// It returns the number of steps run.
func (s *Simulator) Advance(delta time.Duration) int {
	return s.AdvanceFunc(delta, nil)
}

// AdvanceFunc is Advance with afterStep called after every physics step;
// afterStep may be nil.
func (s *Simulator) AdvanceFunc(delta time.Duration, afterStep func()) int {
	if delta < 0 {
		delta = 0
	}
	n := s.acc.Advance(delta)
	for i := 0; i < n; i++ {
		s.dyn.Step(TickSize)
		s.ticks++
		if afterStep != nil {
			afterStep()
		}
	}
	return n
}

// Leftover is the fractional time carried into the next frame.
func (s *Simulator) Leftover() time.Duration { return s.acc.Remainder() }

// Ticks is the total number of steps run so far.
func (s *Simulator) Ticks() uint64 { return s.ticks }
