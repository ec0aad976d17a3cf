// Package interp сглаживает позиции удалённых игроков между сетевыми обновлениями.
//
// Сущности создаются лениво при первом появлении id в хранилище и удаляются,
// когда id исчезает. Локальная сущность всегда берёт позицию из физики.
package interp

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/annelo/ghosttag/internal/clock"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/roomstate"
)

// Минимальная и максимальная непрозрачность при затухании
const (
	OpaqueAlpha      = 1.0
	TransparentAlpha = 0.5
)

// Params настраивают сглаживание.
type Params struct {
	// TimeConstant is the smoothing time of the critically damped filter.
	TimeConstant time.Duration
	// FacingThreshold is the |vel.X| above which the facing flips.
	FacingThreshold float64
	FadeDuration    time.Duration
}

func DefaultParams() Params {
	return Params{
		TimeConstant:    50 * time.Millisecond,
		FacingThreshold: 10,
		FadeDuration:    250 * time.Millisecond,
	}
}

// Entity is the render-side view of one player.
type Entity struct {
	Pos         geom.Vec2
	Vel         geom.Vec2
	FacingRight bool
	// Phase is a random offset in [0, 2π) for idle animation.
	Phase float64

	transparent bool
	fade        clock.Timer
}

// Transparent reports the transparency the entity is fading towards.
func (e *Entity) Transparent() bool { return e.transparent }

// Alpha interpolates between OpaqueAlpha and TransparentAlpha while the
// fade timer runs.
func (e *Entity) Alpha() float64 {
	from, to := OpaqueAlpha, TransparentAlpha
	if !e.transparent {
		from, to = to, from
	}
	p := e.fade.Progress()
	return from + (to-from)*p
}

func (e *Entity) setTransparent(v bool) {
	if v == e.transparent {
		return
	}
	e.transparent = v
	e.fade.Restart()
}

func (e *Entity) updateFacing(threshold float64) {
	switch {
	case e.Vel.X > threshold:
		e.FacingRight = true
	case e.Vel.X < -threshold:
		e.FacingRight = false
	}
}

// Cache holds one Entity per player id currently in the store.
type Cache struct {
	params   Params
	rnd      *rand.Rand
	entities map[string]*Entity
}

// NewCache creates an empty cache. rnd seeds the phase offsets; nil uses a
// fixed seed.
func NewCache(p Params, rnd *rand.Rand) *Cache {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	return &Cache{
		params:   p,
		rnd:      rnd,
		entities: make(map[string]*Entity),
	}
}

// Sync creates entities for new ids (snapped to the networked position) and
// drops entities whose ids left the store.
func (c *Cache) Sync(store *roomstate.Store) {
	for id := range c.entities {
		if !store.Has(id) {
			delete(c.entities, id)
		}
	}
	for _, id := range store.IDs() {
		if _, ok := c.entities[id]; ok {
			continue
		}
		rec, _ := store.Player(id)
		e := &Entity{
			Pos:         rec.Pos,
			FacingRight: true,
			Phase:       c.rnd.Float64() * 2 * math.Pi,
			transparent: rec.Transparent,
			fade:        clock.NewTimer(c.params.FadeDuration),
		}
		c.entities[id] = e
	}
}

// Update advances every entity by the frame delta dt. The local entity is
// pinned to localPos; remote ones are smoothed towards the store position.
func (c *Cache) Update(store *roomstate.Store, localID string, localPos geom.Vec2, dt time.Duration) {
	sec := dt.Seconds()
	if sec < 0 {
		sec = 0
	}
	for id, e := range c.entities {
		rec, ok := store.Player(id)
		if !ok {
			continue
		}
		e.setTransparent(rec.Transparent)
		e.fade.Advance(dt)

		if id == localID {
			if sec > 0 {
				e.Vel = localPos.Sub(e.Pos).Scale(1 / sec)
			}
			e.Pos = localPos
		} else {
			e.Pos, e.Vel = smoothDamp(e.Pos, rec.Pos, e.Vel, c.params.TimeConstant.Seconds(), sec)
		}
		e.updateFacing(c.params.FacingThreshold)
	}
}

// Entity returns the entity for id, if any.
func (c *Cache) Entity(id string) (*Entity, bool) {
	e, ok := c.entities[id]
	return e, ok
}

// IDs returns cached ids in sorted order.
func (c *Cache) IDs() []string {
	ids := make([]string, 0, len(c.entities))
	for id := range c.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Cache) Len() int { return len(c.entities) }

// smoothDamp is a critically damped spring towards target with smoothing
// time T. It never overshoots for a fixed target.
func smoothDamp(cur, target, vel geom.Vec2, T, dt float64) (geom.Vec2, geom.Vec2) {
	if T <= 0 {
		return target, geom.Vec2{}
	}
	if dt <= 0 {
		return cur, vel
	}
	x, vx := smoothDamp1(cur.X, target.X, vel.X, T, dt)
	y, vy := smoothDamp1(cur.Y, target.Y, vel.Y, T, dt)
	return geom.Vec2{X: x, Y: y}, geom.Vec2{X: vx, Y: vy}
}

func smoothDamp1(cur, target, vel, T, dt float64) (float64, float64) {
	omega := 2 / T
	x := omega * dt
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)
	change := cur - target
	temp := (vel + omega*change) * dt
	vel = (vel - omega*temp) * exp
	out := target + (change+temp)*exp

	// не перескакиваем цель
	if (target-cur > 0) == (out > target) {
		out = target
		vel = (out - target) / dt
	}
	return out, vel
}
