package physics

import (
	"math"
	"time"

	"github.com/solarlune/resolv"

	"github.com/annelo/ghosttag/internal/geom"
)

const (
	wallTag  = "wall"
	actorTag = "actor"

	// Размер ячейки пространства resolv (в единицах арены)
	cellSize = 16
	// Запас вокруг арены: стены по краям выходят за её пределы
	spaceMargin = 256
	// Сколько раз делим шаг пополам, прежде чем отказаться от движения
	maxBisect = 6
)

// World is a Dynamics implementation backed by a resolv.Space.
// resolv provides the broadphase; the circle-vs-rectangle test is exact.
type World struct {
	space  *resolv.Space
	actors []*actor
}

// NewWorld creates a world covering an arena of the given size.
func NewWorld(width, height float64) *World {
	w := int(math.Ceil(width)) + 2*spaceMargin
	h := int(math.Ceil(height)) + 2*spaceMargin
	return &World{
		space: resolv.NewSpace(w, h, cellSize, cellSize),
	}
}

// AddWall implements Dynamics.
func (w *World) AddWall(r geom.Rect) {
	obj := resolv.NewObject(r.X+spaceMargin, r.Y+spaceMargin, r.W, r.H, wallTag)
	w.space.Add(obj)
}

// AddActor implements Dynamics.
func (w *World) AddActor(c geom.Vec2, radius float64) Body {
	obj := resolv.NewObject(c.X-radius+spaceMargin, c.Y-radius+spaceMargin, 2*radius, 2*radius, actorTag)
	w.space.Add(obj)
	a := &actor{obj: obj, radius: radius}
	w.actors = append(w.actors, a)
	return a
}

// Step implements Dynamics. Each axis is resolved separately so actors
// slide along walls instead of sticking to them.
func (w *World) Step(dt time.Duration) {
	sec := dt.Seconds()
	for _, a := range w.actors {
		if a.vel.IsZero() {
			continue
		}
		a.moveAxis(a.vel.X*sec, 0)
		a.moveAxis(0, a.vel.Y*sec)
	}
}

type actor struct {
	obj    *resolv.Object
	radius float64
	vel    geom.Vec2
}

func (a *actor) Position() geom.Vec2 {
	return geom.Vec2{
		X: a.obj.X - spaceMargin + a.radius,
		Y: a.obj.Y - spaceMargin + a.radius,
	}
}

func (a *actor) SetPosition(p geom.Vec2) {
	a.obj.X = p.X - a.radius + spaceMargin
	a.obj.Y = p.Y - a.radius + spaceMargin
	a.obj.Update()
}

func (a *actor) Velocity() geom.Vec2 { return a.vel }

func (a *actor) SetVelocity(v geom.Vec2) {
	if !v.Finite() {
		v = geom.Vec2{}
	}
	a.vel = v
}

func (a *actor) moveAxis(dx, dy float64) {
	for i := 0; i < maxBisect; i++ {
		if dx == 0 && dy == 0 {
			return
		}
		if !a.blocked(dx, dy) {
			a.obj.X += dx
			a.obj.Y += dy
			a.obj.Update()
			return
		}
		dx /= 2
		dy /= 2
	}
}

func (a *actor) blocked(dx, dy float64) bool {
	coll := a.obj.Check(dx, dy, wallTag)
	if coll == nil {
		return false
	}
	center := a.Position().Add(geom.Vec2{X: dx, Y: dy})
	for _, o := range coll.Objects {
		r := geom.Rect{X: o.X - spaceMargin, Y: o.Y - spaceMargin, W: o.W, H: o.H}
		if r.CircleOverlaps(center, a.radius) {
			return true
		}
	}
	return false
}
