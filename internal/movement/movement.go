// Package movement turns an input snapshot into the local body's velocity.
//
// There is no rollback and no reconciliation: the host is authoritative over
// the tag state only, never over movement.
package movement

import (
	"github.com/annelo/ghosttag/internal/geom"
)

// Input is the explicit per-frame input snapshot.
type Input struct {
	// Axis is the raw movement direction; it is normalised here.
	Axis             geom.Vec2
	WantsTransparent bool
}

// Moving reports whether the input asks for any movement.
func (in Input) Moving() bool {
	return !in.Axis.Normalized().IsZero()
}

// Params are the movement tuning knobs.
type Params struct {
	BaseSpeed         float64
	TransparentFactor float64
	// TaggerFactor is the multiplicative handicap or bonus for the tagger.
	TaggerFactor float64
}

// DefaultParams: 200 units/s, 120 when transparent.
func DefaultParams() Params {
	return Params{
		BaseSpeed:         200,
		TransparentFactor: 0.6,
		TaggerFactor:      1.1,
	}
}

// Role describes the local player's situation this frame.
type Role struct {
	IsTagger bool
	// CooldownActive is true while the post-tag freeze runs.
	CooldownActive bool
}

// Frozen reports whether the player must stand still.
func (r Role) Frozen() bool { return r.IsTagger && r.CooldownActive }

// Speed returns the commanded speed for the given input and role.
func Speed(in Input, p Params, r Role) float64 {
	if r.Frozen() {
		return 0
	}
	speed := p.BaseSpeed
	if in.WantsTransparent {
		speed *= p.TransparentFactor
	}
	if r.IsTagger {
		speed *= p.TaggerFactor
	}
	return speed
}

// Velocity returns a finite velocity vector. A zero-length or non-finite
// axis yields zero.
func Velocity(in Input, p Params, r Role) geom.Vec2 {
	dir := in.Axis.Normalized()
	if dir.IsZero() {
		return geom.Vec2{}
	}
	v := dir.Scale(Speed(in, p, r))
	if !v.Finite() {
		return geom.Vec2{}
	}
	return v
}
