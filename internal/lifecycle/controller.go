// Package lifecycle drives a peer through connect, lobby, room and back.
//
// The Controller is the transport listener: every callback arrives on the
// goroutine that calls Update, so room state is never touched concurrently.
package lifecycle

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/ghosttag/internal/arena"
	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/movement"
	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/registry"
	"github.com/annelo/ghosttag/internal/replication"
	"github.com/annelo/ghosttag/internal/transport"
)

// ErrInvalidState is returned by operations not allowed in the current state.
var ErrInvalidState = errors.New("lifecycle: invalid state")

// State of the peer.
type State int

const (
	Disconnected State = iota
	Connecting
	InLobby
	Joining
	InRoom
	Leaving
	Disconnecting
)

var stateNames = [...]string{
	Disconnected:  "Disconnected",
	Connecting:    "Connecting",
	InLobby:       "InLobby",
	Joining:       "Joining",
	InRoom:        "InRoom",
	Leaving:       "Leaving",
	Disconnecting: "Disconnecting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Options configure a Controller.
type Options struct {
	Config    config.Config
	Transport transport.Transport
	// Hooks receives lifecycle and round hooks; may be nil.
	Hooks *registry.Registry
	// Spawn overrides the arena spawn point.
	Spawn  *geom.Vec2
	Rand   *rand.Rand
	Logger *zap.SugaredLogger
}

// Controller is the per-peer state machine.
type Controller struct {
	cfg    config.Config
	tr     transport.Transport
	hooks  *registry.Registry
	spawn  *geom.Vec2
	rnd    *rand.Rand
	logger *zap.SugaredLogger

	state   State
	rooms   []transport.RoomInfo
	room    string
	arena   *arena.Arena
	lastErr error
}

var _ transport.Listener = (*Controller)(nil)

func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Controller{
		cfg:    opts.Config,
		tr:     opts.Transport,
		hooks:  opts.Hooks,
		spawn:  opts.Spawn,
		rnd:    opts.Rand,
		logger: logger,
	}
}

func (c *Controller) State() State { return c.state }

// Rooms returns the last lobby listing.
func (c *Controller) Rooms() []transport.RoomInfo {
	return append([]transport.RoomInfo(nil), c.rooms...)
}

// Room is the name of the current room, if any.
func (c *Controller) Room() string { return c.room }

// Arena is the in-room runtime; nil outside InRoom.
func (c *Controller) Arena() *arena.Arena { return c.arena }

// LastError is the most recent transport or join failure.
func (c *Controller) LastError() error { return c.lastErr }

func (c *Controller) LocalID() string { return c.tr.LocalID() }

// Connect starts connecting under the given display name.
func (c *Controller) Connect(name string) error {
	if c.state != Disconnected {
		return fmt.Errorf("%w: connect in %s", ErrInvalidState, c.state)
	}
	if name != "" {
		c.cfg.Player.Name = name
	}
	if err := c.tr.Connect(c.cfg.Player.Name, c); err != nil {
		c.fail("connect", err)
		return err
	}
	c.setState(Connecting)
	return nil
}

func (c *Controller) RefreshRooms() error {
	if c.state != InLobby {
		return fmt.Errorf("%w: list rooms in %s", ErrInvalidState, c.state)
	}
	return c.tr.ListRooms()
}

// CreateRoom creates a room and joins it as host.
func (c *Controller) CreateRoom(name string) error {
	if c.state != InLobby {
		return fmt.Errorf("%w: create room in %s", ErrInvalidState, c.state)
	}
	if err := c.tr.CreateRoom(name); err != nil {
		c.fail("create room", err)
		return err
	}
	c.setState(Joining)
	return nil
}

func (c *Controller) JoinRoom(name string) error {
	if c.state != InLobby {
		return fmt.Errorf("%w: join room in %s", ErrInvalidState, c.state)
	}
	if err := c.tr.JoinRoom(name); err != nil {
		c.fail("join room", err)
		return err
	}
	c.setState(Joining)
	return nil
}

// Leave discards the room state right away and waits for the transport to
// confirm.
func (c *Controller) Leave() error {
	if c.state != InRoom {
		return fmt.Errorf("%w: leave in %s", ErrInvalidState, c.state)
	}
	c.arena = nil
	c.setState(Leaving)
	if err := c.tr.LeaveRoom(); err != nil {
		// комнаты уже нет на стороне транспорта
		c.fail("leave room", err)
		c.room = ""
		c.setState(InLobby)
		return err
	}
	return nil
}

func (c *Controller) Disconnect() error {
	if c.state == Disconnected || c.state == Disconnecting {
		return fmt.Errorf("%w: disconnect in %s", ErrInvalidState, c.state)
	}
	c.arena = nil
	c.setState(Disconnecting)
	if err := c.tr.Disconnect(); err != nil {
		c.fail("disconnect", err)
		c.room = ""
		c.setState(Disconnected)
		return err
	}
	return nil
}

// Update pumps transport callbacks and then runs one arena frame.
func (c *Controller) Update(dt time.Duration, in movement.Input) {
	c.tr.Service()
	if c.state == InRoom && c.arena != nil {
		c.arena.Update(dt, in)
	}
}

// OnConnect implements transport.Listener.
func (c *Controller) OnConnect(err error) {
	if c.state != Connecting {
		return
	}
	if err != nil {
		c.fail("connect", err)
		c.setState(Disconnected)
		return
	}
	c.logger.Infof("Connected as %s (%s)", c.cfg.Player.Name, c.tr.LocalID())
	c.setState(InLobby)
	if err := c.tr.ListRooms(); err != nil {
		c.fail("list rooms", err)
	}
}

// OnDisconnect implements transport.Listener.
func (c *Controller) OnDisconnect(err error) {
	if err != nil {
		c.fail("connection lost", err)
	}
	c.arena = nil
	c.room = ""
	c.setState(Disconnected)
}

// OnRoomList implements transport.Listener.
func (c *Controller) OnRoomList(rooms []transport.RoomInfo) {
	c.rooms = rooms
}

// OnJoin implements transport.Listener.
func (c *Controller) OnJoin(room string, members []string, err error) {
	if c.state != Joining {
		return
	}
	if err != nil {
		c.fail("join "+room, err)
		c.setState(InLobby)
		return
	}
	c.room = room
	c.arena = arena.New(arena.Options{
		LocalID: c.tr.LocalID(),
		Config:  c.cfg,
		Sender:  c.tr,
		Host:    c.tr.HostID,
		Spawn:   c.spawn,
		Hooks:   c.hooks,
		Rand:    c.rnd,
		Logger:  c.logger,
	})
	if len(members) == 1 {
		c.arena.Seed()
	}
	c.logger.Infof("Joined room %s with %d members", room, len(members))
	c.setState(InRoom)
}

// OnPeerJoined implements transport.Listener.
func (c *Controller) OnPeerJoined(id string) {
	if c.state != InRoom || c.arena == nil {
		return
	}
	c.logger.Infof("Peer %s joined %s", id, c.room)
	c.handle(c.arena.Replicator().PeerJoined(id, c.tr.IsHost()))
	c.fire(registry.HookPeerJoined, id)
}

// OnPeerLeft implements transport.Listener.
func (c *Controller) OnPeerLeft(id, hostID string) {
	if c.state != InRoom || c.arena == nil {
		return
	}
	c.logger.Infof("Peer %s left %s, host is %s", id, c.room, hostID)
	repl := c.arena.Replicator()
	c.handle(repl.PeerLeft(id, hostID))
	if hostID == c.tr.LocalID() && !repl.HasRoomData() {
		// снапшот уже не придёт: начинаем комнату заново с собой
		c.logger.Warnf("Promoted to host before the snapshot arrived; reseeding %s", c.room)
		c.arena.Seed()
	}
	if hostID == c.tr.LocalID() {
		// старый хост мог уйти, не успев отправить снапшот новичкам
		c.handle(repl.SyncMembers(c.tr.Members()))
	}
	c.fire(registry.HookPeerLeft, id, hostID)
}

// OnLeave implements transport.Listener.
func (c *Controller) OnLeave() {
	if c.state != Leaving {
		return
	}
	c.room = ""
	c.setState(InLobby)
	if err := c.tr.ListRooms(); err != nil {
		c.fail("list rooms", err)
	}
}

// OnEvent implements transport.Listener.
func (c *Controller) OnEvent(sender string, code protocol.Code, payload []byte) {
	if c.state != InRoom || c.arena == nil {
		return
	}
	c.handle(c.arena.Replicator().HandleEvent(sender, code, payload))
}

func (c *Controller) handle(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, replication.ErrInvariantViolation) {
		if c.cfg.Strict {
			panic(err)
		}
		c.logger.Errorf("%v", err)
		c.lastErr = err
		return
	}
	c.fail("event", err)
}

func (c *Controller) fail(op string, err error) {
	c.lastErr = fmt.Errorf("%s: %w", op, err)
	c.logger.Warnf("%s: %v", op, err)
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	c.logger.Infof("State %s -> %s", from, s)
	c.fire(registry.HookStateChanged, from, s)
}

func (c *Controller) fire(hook registry.HookType, args ...interface{}) {
	if c.hooks != nil {
		c.hooks.Fire(hook, args...)
	}
}
