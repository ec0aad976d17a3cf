// Package bot управляет безголовыми игроками: шум Перлина задает блуждание,
// поверх него бот догоняет ближайшего игрока или убегает от водящего.
package bot

import (
	"time"

	"github.com/aquilax/go-perlin"

	"github.com/annelo/ghosttag/internal/arena"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/movement"
)

// Params tune a bot.
type Params struct {
	// Wander is how fast the noise is sampled, in noise units per second.
	Wander float64
	// Pursuit is the weight of chasing or fleeing relative to wandering.
	Pursuit float64
	// FleeRadius: a runner ignores a tagger farther away than this.
	FleeRadius float64
	// HideThreshold: the runner turns transparent while the hide noise is
	// above it. Values >= 1 disable hiding.
	HideThreshold float64
}

func DefaultParams() Params {
	return Params{Wander: 0.8, Pursuit: 1.5, FleeRadius: 200, HideThreshold: 0.25}
}

// Bot produces movement input from the arena view.
type Bot struct {
	p     Params
	noise *perlin.Perlin
	t     float64
}

// New creates a bot; equal seeds give equal paths.
func New(seed int64, p Params) *Bot {
	return &Bot{p: p, noise: perlin.NewPerlin(2, 2, 3, seed)}
}

// Steer advances the bot clock by dt and returns the next input.
func (b *Bot) Steer(dt time.Duration, v arena.View) movement.Input {
	b.t += dt.Seconds() * b.p.Wander

	// шум в [-1,1] по каждой оси, разнесенные по второй координате
	dir := geom.V(b.noise.Noise2D(b.t, 0), b.noise.Noise2D(b.t, 100))

	self, ok := player(v, v.LocalID)
	if !ok || !v.HasRoomData {
		return movement.Input{Axis: clampAxis(dir)}
	}

	if v.TaggerID == v.LocalID {
		if target, ok := nearest(v, self.Pos); ok {
			dir = dir.Add(target.Pos.Sub(self.Pos).Normalized().Scale(b.p.Pursuit))
		}
		return movement.Input{Axis: clampAxis(dir)}
	}

	hide := b.noise.Noise2D(b.t, 200) > b.p.HideThreshold
	if tagger, ok := player(v, v.TaggerID); ok {
		away := self.Pos.Sub(tagger.Pos)
		if away.Len() < b.p.FleeRadius {
			dir = dir.Add(away.Normalized().Scale(b.p.Pursuit))
			hide = false
		}
	}
	return movement.Input{Axis: clampAxis(dir), WantsTransparent: hide}
}

func player(v arena.View, id string) (arena.PlayerView, bool) {
	for _, p := range v.Players {
		if p.ID == id {
			return p, true
		}
	}
	return arena.PlayerView{}, false
}

func nearest(v arena.View, from geom.Vec2) (arena.PlayerView, bool) {
	var best arena.PlayerView
	found := false
	for _, p := range v.Players {
		if p.IsLocal {
			continue
		}
		if !found || p.Pos.DistSq(from) < best.Pos.DistSq(from) {
			best, found = p, true
		}
	}
	return best, found
}

// clampAxis keeps the axis inside the unit circle.
func clampAxis(a geom.Vec2) geom.Vec2 {
	if a.LenSq() > 1 {
		return a.Normalized()
	}
	return a
}
