package arena_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/ghosttag/internal/arena"
	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/movement"
	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/registry"
)

const frame = time.Second / 60

type recordingSender struct {
	codes []protocol.Code
}

func (s *recordingSender) Send(code protocol.Code, payload []byte, targets []string) error {
	s.codes = append(s.codes, code)
	return nil
}

func (s *recordingSender) count(code protocol.Code) int {
	n := 0
	for _, c := range s.codes {
		if c == code {
			n++
		}
	}
	return n
}

func newArena(t *testing.T, id string, spawn geom.Vec2) (*arena.Arena, *recordingSender, *registry.Registry) {
	t.Helper()
	cfg := config.Default()
	cfg.Tuning.MoveSendInterval = 0
	out := &recordingSender{}
	hooks := registry.New()
	a := arena.New(arena.Options{LocalID: id, Config: cfg, Sender: out, Spawn: &spawn, Hooks: hooks})
	return a, out, hooks
}

func apply(t *testing.T, a *arena.Arena, sender string, ev protocol.Event) {
	t.Helper()
	payload, err := protocol.Encode(ev)
	require.NoError(t, err)
	require.NoError(t, a.Replicator().HandleEvent(sender, ev.Code(), payload))
}

func TestLayout_DefaultArena(t *testing.T) {
	walls := arena.Layout(config.Default().Arena)
	require.Len(t, walls, 7)
	assert.Equal(t, geom.Rect{X: 0, Y: -50, W: 800, H: 100}, walls[0])
	assert.Equal(t, geom.Rect{X: 750, Y: 0, W: 100, H: 600}, walls[3])
	assert.Equal(t, geom.Rect{X: 250, Y: 250, W: 100, H: 100}, walls[4])
	assert.True(t, arena.Free(walls, geom.V(400, 300), 15), "default spawn is clear")
	assert.False(t, arena.Free(walls, geom.V(300, 300), 15))
}

func TestUpdate_InputBeforeSyncIsDropped(t *testing.T) {
	a, out, _ := newArena(t, "A", geom.V(400, 200))
	a.Update(frame, movement.Input{Axis: geom.V(1, 0), WantsTransparent: true})
	assert.Equal(t, geom.V(400, 200), a.Position())
	assert.Empty(t, out.codes)
	assert.False(t, a.View().HasRoomData)
}

func TestUpdate_MovesAndPublishes(t *testing.T) {
	a, out, _ := newArena(t, "A", geom.V(400, 200))
	a.Seed()

	for i := 0; i < 6; i++ {
		a.Update(frame, movement.Input{Axis: geom.V(1, 0)})
	}
	assert.InDelta(t, 420, a.Position().X, 1.5)
	rec, _ := a.Store().Player("A")
	assert.Equal(t, a.Position(), rec.Pos)
	assert.Equal(t, 6, out.count(protocol.CodePlayerMove))

	// standing still publishes nothing new
	a.Update(frame, movement.Input{})
	assert.Equal(t, 6, out.count(protocol.CodePlayerMove))
}

func TestUpdate_TransparencyAndWatching(t *testing.T) {
	a, out, _ := newArena(t, "A", geom.V(400, 200))
	a.Seed()

	held := movement.Input{WantsTransparent: true}
	a.Update(frame, held)
	assert.Equal(t, 1, out.count(protocol.CodeSetTransparent))
	rec, _ := a.Store().Player("A")
	assert.True(t, rec.Transparent)
	assert.False(t, rec.Watching)

	for i := 0; i < 61; i++ {
		a.Update(frame, held)
	}
	assert.Equal(t, 1, out.count(protocol.CodeSetTransparent))
	assert.Equal(t, 1, out.count(protocol.CodeSetWatching))
	rec, _ = a.Store().Player("A")
	assert.True(t, rec.Watching, "transparent and idle for a second")

	a.Update(frame, movement.Input{})
	rec, _ = a.Store().Player("A")
	assert.False(t, rec.Transparent)
	assert.False(t, rec.Watching)
}

func TestUpdate_TagTransfersOnceAndStartsCooldown(t *testing.T) {
	a, out, hooks := newArena(t, "A", geom.V(400, 200))
	var tagged []interface{}
	hooks.RegisterHook(registry.HookTagged, func(args ...interface{}) { tagged = args })
	a.Seed()

	apply(t, a, "B", protocol.PlayerAdd{Pos: geom.V(420, 200), Name: "B"})
	apply(t, a, "C", protocol.PlayerAdd{Pos: geom.V(425, 200), Name: "C"})
	a.Update(frame, movement.Input{})

	assert.Equal(t, 1, out.count(protocol.CodeItTransferred), "one target per frame")
	assert.Equal(t, 1, out.count(protocol.CodeTagRoundReset))
	assert.Equal(t, "B", a.Store().TaggerID(), "lowest id wins")
	assert.True(t, a.CooldownActive())
	assert.Equal(t, 3*time.Second, a.CooldownRemaining())
	assert.Equal(t, []interface{}{"B"}, tagged)

	// the old tagger is no longer the tagger, further frames emit nothing
	a.Update(frame, movement.Input{})
	assert.Equal(t, 1, out.count(protocol.CodeItTransferred))
}

func TestUpdate_FrozenTagger(t *testing.T) {
	a, _, _ := newArena(t, "A", geom.V(400, 200))
	a.Seed()
	a.ResetRound()

	for i := 0; i < 30; i++ {
		a.Update(frame, movement.Input{Axis: geom.V(0, -1)})
	}
	assert.Equal(t, geom.V(400, 200), a.Position())

	// after the cooldown the tagger moves again
	for i := 0; i < 160; i++ {
		a.Update(frame, movement.Input{})
	}
	assert.False(t, a.CooldownActive())
	a.Update(frame, movement.Input{Axis: geom.V(0, -1)})
	assert.Less(t, a.Position().Y, 200.0)
}

func TestUpdate_ObserverMarks(t *testing.T) {
	a, _, _ := newArena(t, "A", geom.V(400, 200))
	a.Seed()

	step := 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < 25*time.Second; elapsed += step {
		a.Update(step, movement.Input{})
	}
	require.Len(t, a.Marks(), 2)
	assert.Equal(t, geom.V(400, 200), a.Marks()[0].Pos)

	apply(t, a, "B", protocol.PlayerAdd{Pos: geom.V(150, 150), Name: "B"})
	apply(t, a, "B", protocol.TagRoundReset{})
	assert.Empty(t, a.Marks())
	assert.True(t, a.CooldownActive())

	view := a.View()
	require.Len(t, view.Players, 2)
	assert.True(t, view.Players[0].IsLocal)
	assert.True(t, view.Players[0].IsTagger)
	assert.Equal(t, "A", view.TaggerID)
}

func TestRound_SnapshotRoundTrip(t *testing.T) {
	a, _, _ := newArena(t, "A", geom.V(400, 200))
	a.Seed()
	for i := 0; i < 130; i++ {
		a.Update(100*time.Millisecond, movement.Input{})
	}
	rt := a.Round()
	assert.Len(t, rt.Marks, 1)
	assert.Equal(t, 3*time.Second, rt.ObserverElapsed)

	b, _, _ := newArena(t, "B", geom.V(150, 150))
	b.RestoreRound(rt)
	assert.Equal(t, rt, b.Round())
}

func TestUpdate_LongFrameRunsEveryTick(t *testing.T) {
	a, _, _ := newArena(t, "A", geom.V(400, 200))
	a.Seed()

	// the tagger runs at 220 units/s; one second is 200 physics ticks
	a.Update(time.Second, movement.Input{Axis: geom.V(1, 0)})
	assert.InDelta(t, 620, a.Position().X, 0.5)
}

func TestUpdate_MaxFrameDeltaClampsEveryStage(t *testing.T) {
	cfg := config.Default()
	cfg.Tuning.MaxFrameDelta = 100 * time.Millisecond
	spawn := geom.V(400, 200)
	a := arena.New(arena.Options{LocalID: "A", Config: cfg, Sender: &recordingSender{}, Spawn: &spawn})
	a.Seed()

	a.Update(time.Second, movement.Input{Axis: geom.V(1, 0)})
	assert.InDelta(t, 422, a.Position().X, 0.5)

	a.ResetRound()
	a.Update(time.Second, movement.Input{})
	assert.Equal(t, 2900*time.Millisecond, a.CooldownRemaining(), "the cooldown sees the clamped delta too")
}

func TestUpdate_TagResolvedWithinTheFrame(t *testing.T) {
	a, out, _ := newArena(t, "A", geom.V(400, 200))
	a.Seed()
	apply(t, a, "B", protocol.PlayerAdd{Pos: geom.V(470, 200), Name: "B"})

	// one long frame carries the tagger through B and out the other side
	a.Update(500*time.Millisecond, movement.Input{Axis: geom.V(1, 0)})
	assert.Equal(t, 1, out.count(protocol.CodeItTransferred))
	assert.Equal(t, "B", a.Store().TaggerID())
	assert.True(t, a.CooldownActive())
	// 37 ticks at tagger speed, then 63 at runner speed
	assert.InDelta(t, 503.7, a.Position().X, 0.5)
}
