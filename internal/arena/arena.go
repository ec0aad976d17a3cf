// Package arena is the in-room runtime of one peer: it owns the local
// simulation and runs the per-frame pipeline from input to observer marks.
package arena

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/ghosttag/internal/clock"
	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/interp"
	"github.com/annelo/ghosttag/internal/movement"
	"github.com/annelo/ghosttag/internal/observer"
	"github.com/annelo/ghosttag/internal/physics"
	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/registry"
	"github.com/annelo/ghosttag/internal/replication"
	"github.com/annelo/ghosttag/internal/roomstate"
	"github.com/annelo/ghosttag/internal/tag"
)

// Options configure an Arena.
type Options struct {
	LocalID string
	Config  config.Config
	Sender  replication.Sender
	// Host reports the current room host; nil skips the snapshot sender check.
	Host func() string
	// Spawn overrides the configured spawn point.
	Spawn *geom.Vec2
	// Hooks receives HookTagged and HookRoundReset; may be nil.
	Hooks  *registry.Registry
	Rand   *rand.Rand
	Logger *zap.SugaredLogger
}

// Arena holds everything that lives only while the peer is in a room.
type Arena struct {
	cfg     config.Config
	localID string
	name    string
	color   roomstate.Color

	store  *roomstate.Store
	repl   *replication.Replicator
	walls  []geom.Rect
	sim    *physics.Simulator
	body   physics.Body
	tag    *tag.Engine
	obs    *observer.Sampler
	interp *interp.Cache
	idle   clock.Stopwatch
	move   movement.Params

	transparent   bool
	watching      bool
	lastSent      geom.Vec2
	sinceMoveSend time.Duration
	frames        uint64

	hooks  *registry.Registry
	logger *zap.SugaredLogger
}

// New builds the arena and its physics world. The replicator starts without
// room data; call Seed or wait for a snapshot.
func New(opts Options) *Arena {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	t := cfg.Tuning

	a := &Arena{
		cfg:     cfg,
		localID: opts.LocalID,
		name:    cfg.Player.Name,
		color:   roomstate.Color(cfg.Player.Color),
		store:   roomstate.New(),
		walls:   Layout(cfg.Arena),
		tag:     tag.New(t.PlayerRadius, t.TagCooldown),
		obs:     observer.New(t.SampleInterval, t.SearchRadius),
		interp: interp.NewCache(interp.Params{
			TimeConstant:    t.InterpTime,
			FacingThreshold: t.FacingThreshold,
			FadeDuration:    t.FadeDuration,
		}, opts.Rand),
		move: movement.Params{
			BaseSpeed:         t.BaseSpeed,
			TransparentFactor: t.TransparentFactor,
			TaggerFactor:      t.TaggerFactor,
		},
		hooks:  opts.Hooks,
		logger: logger,
	}
	if a.color == 0 {
		a.color = ColorFor(opts.LocalID)
	}

	world := physics.NewWorld(cfg.Arena.Width, cfg.Arena.Height)
	for _, w := range a.walls {
		world.AddWall(w)
	}
	sx, sy := cfg.Arena.Spawn()
	spawn := geom.V(sx, sy)
	if opts.Spawn != nil {
		spawn = *opts.Spawn
	}
	a.body = world.AddActor(spawn, t.PlayerRadius)
	a.sim = physics.NewSimulator(world)
	a.lastSent = spawn

	a.repl = replication.New(a.store, replication.Options{
		LocalID: opts.LocalID,
		Sender:  opts.Sender,
		Round:   a,
		Self:    a.self,
		Host:    opts.Host,
		Logger:  logger,
	})
	return a
}

// Seed makes the local peer the first member and tagger of the room.
func (a *Arena) Seed() { a.repl.Seed(a.self()) }

func (a *Arena) Replicator() *replication.Replicator { return a.repl }

func (a *Arena) Store() *roomstate.Store { return a.store }

func (a *Arena) LocalID() string { return a.localID }

// Position is the local body's physics position.
func (a *Arena) Position() geom.Vec2 { return a.body.Position() }

// Frames is the number of Update calls so far.
func (a *Arena) Frames() uint64 { return a.frames }

// Marks returns the current observer marks.
func (a *Arena) Marks() []observer.Mark { return a.obs.Marks() }

func (a *Arena) CooldownActive() bool { return a.tag.CooldownActive() }

func (a *Arena) CooldownRemaining() time.Duration { return a.tag.CooldownRemaining() }

// SetName renames the local player and tells the room.
func (a *Arena) SetName(name string) {
	a.name = name
	if err := a.repl.PublishName(name); err != nil {
		a.logger.Warnf("Publish name: %v", err)
	}
}

func (a *Arena) self() protocol.PlayerAdd {
	return protocol.PlayerAdd{Pos: a.body.Position(), Color: a.color, Name: a.name}
}

// Update runs one frame. Every stage sees the same dt, clamped to
// Tuning.MaxFrameDelta when that is set.
func (a *Arena) Update(dt time.Duration, in movement.Input) {
	if dt < 0 {
		dt = 0
	}
	if limit := a.cfg.Tuning.MaxFrameDelta; limit > 0 && dt > limit {
		dt = limit
	}
	a.frames++
	synced := a.repl.HasRoomData()
	if !synced {
		// до снапшота ввод отбрасывается
		in = movement.Input{}
	}

	// 1. cooldown
	a.tag.Advance(dt)
	role := movement.Role{IsTagger: a.repl.IsTagger(), CooldownActive: a.tag.CooldownActive()}

	// 2. idle stopwatch
	if in.Moving() || in.WantsTransparent != a.transparent {
		a.idle.Restart()
	} else {
		a.idle.Advance(dt)
	}

	// 3. movement + physics, tag resolution after every tick
	a.body.SetVelocity(movement.Velocity(in, a.move, role))
	others := a.positions(a.body.Position())
	a.sim.AdvanceFunc(dt, func() { a.resolveTag(others, in) })
	pos := a.body.Position()

	// 4. outbound replication
	if synced {
		a.publish(pos, in, dt)
	}

	// 5. interpolation
	a.interp.Sync(a.store)
	a.interp.Update(a.store, a.localID, pos, dt)
	positions := a.positions(pos)

	// 6. observer
	taggerID := a.store.TaggerID()
	taggerPos, hasTagger := positions[taggerID]
	active := synced && !a.tag.CooldownActive() && hasTagger
	a.obs.Advance(dt, taggerPos, active)
	a.obs.Detect(taggerID, positions)
}

// resolveTag runs the overlap test for the current physics position against
// the other players as they stood at the start of the frame. A transfer
// re-derives the velocity for the rest of the frame.
func (a *Arena) resolveTag(others map[string]geom.Vec2, in movement.Input) {
	if !a.repl.IsTagger() || a.tag.CooldownActive() {
		return
	}
	others[a.localID] = a.body.Position()
	target, ok := a.tag.Resolve(a.localID, a.store, others)
	if !ok {
		return
	}
	a.logger.Infof("%s tagged %s", a.localID, target)
	if err := a.repl.TransferTagger(target); err != nil {
		a.logger.Warnf("Transfer tagger to %s: %v", target, err)
	}
	role := movement.Role{IsTagger: a.repl.IsTagger(), CooldownActive: a.tag.CooldownActive()}
	a.body.SetVelocity(movement.Velocity(in, a.move, role))
}

func (a *Arena) publish(pos geom.Vec2, in movement.Input, dt time.Duration) {
	a.repl.MoveLocal(pos)
	a.sinceMoveSend += dt
	if pos != a.lastSent && a.sinceMoveSend >= a.cfg.Tuning.MoveSendInterval {
		if err := a.repl.PublishMove(pos); err != nil {
			a.logger.Warnf("Publish move: %v", err)
		}
		a.lastSent = pos
		a.sinceMoveSend = 0
	}

	if in.WantsTransparent != a.transparent {
		a.transparent = in.WantsTransparent
		if err := a.repl.PublishTransparent(a.transparent); err != nil {
			a.logger.Warnf("Publish transparency: %v", err)
		}
	}

	watching := a.transparent && a.idle.Elapsed() >= a.cfg.Tuning.WatchDelay
	if watching != a.watching {
		a.watching = watching
		if err := a.repl.PublishWatching(watching); err != nil {
			a.logger.Warnf("Publish watching: %v", err)
		}
	}
}

// positions maps every player to the position used for gameplay checks:
// the physics position for the local player, the smoothed one for others.
func (a *Arena) positions(local geom.Vec2) map[string]geom.Vec2 {
	out := make(map[string]geom.Vec2, a.store.Len())
	for _, id := range a.store.IDs() {
		if id == a.localID {
			out[id] = local
			continue
		}
		if e, ok := a.interp.Entity(id); ok {
			out[id] = e.Pos
		}
	}
	return out
}

// Round implements replication.RoundState.
func (a *Arena) Round() protocol.RoundTimer {
	rt := protocol.RoundTimer{
		ObserverElapsed:   a.obs.Elapsed(),
		CooldownRemaining: a.tag.CooldownRemaining(),
		CooldownRunning:   a.tag.CooldownActive(),
	}
	for _, m := range a.obs.Marks() {
		rt.Marks = append(rt.Marks, protocol.Mark{Pos: m.Pos, Detected: m.Detected})
	}
	return rt
}

// RestoreRound implements replication.RoundState.
func (a *Arena) RestoreRound(rt protocol.RoundTimer) {
	a.tag.Restore(rt.CooldownRemaining, rt.CooldownRunning)
	marks := make([]observer.Mark, len(rt.Marks))
	for i, m := range rt.Marks {
		marks[i] = observer.Mark{Pos: m.Pos, Detected: m.Detected}
	}
	a.obs.Restore(rt.ObserverElapsed, marks)
}

// ResetRound implements replication.RoundState.
func (a *Arena) ResetRound() {
	a.tag.StartCooldown()
	a.obs.Reset()
	if a.hooks != nil {
		a.hooks.Fire(registry.HookRoundReset)
	}
}

// TaggerChanged implements replication.RoundState.
func (a *Arena) TaggerChanged() {
	a.obs.Reset()
	if a.hooks != nil {
		a.hooks.Fire(registry.HookTagged, a.store.TaggerID())
	}
}
