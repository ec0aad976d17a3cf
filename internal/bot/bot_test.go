package bot_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/annelo/ghosttag/internal/arena"
	"github.com/annelo/ghosttag/internal/bot"
	"github.com/annelo/ghosttag/internal/geom"
)

// noise is zero on lattice points, so a bot that does not wander steers only
// by pursuit.
var still = bot.Params{Wander: 0, Pursuit: 1, FleeRadius: 200, HideThreshold: -1}

func view(local, tagger string, players ...arena.PlayerView) arena.View {
	for i := range players {
		players[i].IsLocal = players[i].ID == local
		players[i].IsTagger = players[i].ID == tagger
	}
	return arena.View{LocalID: local, TaggerID: tagger, HasRoomData: true, Players: players}
}

func TestSteer_SameSeedSamePath(t *testing.T) {
	a := bot.New(7, bot.DefaultParams())
	b := bot.New(7, bot.DefaultParams())
	for i := 0; i < 50; i++ {
		in := a.Steer(100*time.Millisecond, arena.View{})
		assert.Equal(t, in, b.Steer(100*time.Millisecond, arena.View{}))
		assert.LessOrEqual(t, in.Axis.Len(), 1.0+1e-9)
	}
}

func TestSteer_TaggerChasesNearest(t *testing.T) {
	b := bot.New(1, still)
	v := view("A", "A",
		arena.PlayerView{ID: "A", Pos: geom.V(100, 100)},
		arena.PlayerView{ID: "B", Pos: geom.V(200, 100)},
		arena.PlayerView{ID: "C", Pos: geom.V(100, 400)},
	)
	in := b.Steer(time.Second/60, v)
	assert.InDelta(t, 1, in.Axis.X, 1e-9)
	assert.InDelta(t, 0, in.Axis.Y, 1e-9)
	assert.False(t, in.WantsTransparent)
}

func TestSteer_RunnerFleesVisibly(t *testing.T) {
	b := bot.New(1, still)

	near := view("B", "A",
		arena.PlayerView{ID: "A", Pos: geom.V(100, 100)},
		arena.PlayerView{ID: "B", Pos: geom.V(100, 150)},
	)
	in := b.Steer(time.Second/60, near)
	assert.InDelta(t, 0, in.Axis.X, 1e-9)
	assert.InDelta(t, 1, in.Axis.Y, 1e-9)
	assert.False(t, in.WantsTransparent)

	far := view("B", "A",
		arena.PlayerView{ID: "A", Pos: geom.V(100, 100)},
		arena.PlayerView{ID: "B", Pos: geom.V(600, 500)},
	)
	in = b.Steer(time.Second/60, far)
	assert.True(t, in.Axis.IsZero())
	assert.True(t, in.WantsTransparent, "hides when the tagger is away")
}
