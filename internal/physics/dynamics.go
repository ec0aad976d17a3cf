// Package physics steps the local rigid-body world at a fixed rate.
//
// Only the local player is a physics body. Remote players are interpolated
// points and never enter the world.
package physics

import (
	"time"

	"github.com/annelo/ghosttag/internal/geom"
)

// Dynamics is the 2-D dynamics engine the simulator drives.
type Dynamics interface {
	// AddWall creates a static rectangular obstacle.
	AddWall(r geom.Rect)
	// AddActor creates a dynamic circular body centred at c.
	AddActor(c geom.Vec2, radius float64) Body
	// Step advances every dynamic body by dt.
	Step(dt time.Duration)
}

// Body is a dynamic actor inside a Dynamics world.
type Body interface {
	Position() geom.Vec2
	SetPosition(p geom.Vec2)
	Velocity() geom.Vec2
	SetVelocity(v geom.Vec2)
}
