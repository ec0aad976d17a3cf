// Package tag decides when the tagger role moves to another player.
package tag

import (
	"time"

	"github.com/annelo/ghosttag/internal/clock"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/roomstate"
)

const (
	DefaultCooldown     = 3 * time.Second
	DefaultPlayerRadius = 15.0
)

// Engine holds the post-tag cooldown and the collision radius.
type Engine struct {
	radius   float64
	cooldown clock.Timer
}

// New creates an engine with the given player radius and cooldown length.
func New(radius float64, cooldown time.Duration) *Engine {
	return &Engine{
		radius:   radius,
		cooldown: clock.NewTimer(cooldown),
	}
}

// Resolve returns the player the local tagger touches, if any.
//
// It only fires when localID holds the tagger role and the cooldown is not
// running. positions maps player ids to the position used for the test; a
// player missing from positions falls back to its networked position.
// Ids are visited in sorted order, so of several overlaps the lowest id wins.
func (e *Engine) Resolve(localID string, store *roomstate.Store, positions map[string]geom.Vec2) (string, bool) {
	if localID == "" || store.TaggerID() != localID || e.cooldown.Running() {
		return "", false
	}
	tp, ok := position(localID, store, positions)
	if !ok {
		return "", false
	}
	for _, id := range store.IDs() {
		if id == localID {
			continue
		}
		p, ok := position(id, store, positions)
		if !ok {
			continue
		}
		if geom.CirclesOverlap(tp, e.radius, p, e.radius) {
			return id, true
		}
	}
	return "", false
}

func position(id string, store *roomstate.Store, positions map[string]geom.Vec2) (geom.Vec2, bool) {
	if p, ok := positions[id]; ok {
		return p, true
	}
	rec, ok := store.Player(id)
	if !ok {
		return geom.Vec2{}, false
	}
	return rec.Pos, true
}

// StartCooldown restarts the fixed cooldown.
func (e *Engine) StartCooldown() { e.cooldown.Restart() }

// Advance moves the cooldown forward; it reports whether it just ended.
func (e *Engine) Advance(dt time.Duration) bool { return e.cooldown.Advance(dt) }

func (e *Engine) CooldownActive() bool { return e.cooldown.Running() }

func (e *Engine) CooldownRemaining() time.Duration { return e.cooldown.Remaining() }

func (e *Engine) Cooldown() time.Duration { return e.cooldown.Duration() }

func (e *Engine) Radius() float64 { return e.radius }

// Restore sets the cooldown from a room snapshot.
func (e *Engine) Restore(remaining time.Duration, running bool) {
	e.cooldown.Set(remaining, running)
}
