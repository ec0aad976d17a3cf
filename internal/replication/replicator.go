// Package replication keeps a peer's room state converged with the room by
// applying and emitting protocol events.
//
// The host is authoritative over joins (it hands out snapshots), departures
// (it erases records) and tagger fallback. Everything else is last write
// wins per field, so events from different senders may interleave freely.
package replication

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/roomstate"
)

// ErrInvariantViolation marks a state that the protocol guarantees cannot
// happen, such as a second snapshot for a peer that already has room data.
var ErrInvariantViolation = errors.New("replication: invariant violation")

// Sender delivers an encoded event; nil targets means every other member.
type Sender interface {
	Send(code protocol.Code, payload []byte, targets []string) error
}

// RoundState is the in-flight round owned by the tag engine and the
// observer sampler.
type RoundState interface {
	Round() protocol.RoundTimer
	RestoreRound(protocol.RoundTimer)
	// ResetRound restarts the tag cooldown and clears observer marks.
	ResetRound()
	// TaggerChanged clears observer marks.
	TaggerChanged()
}

// Options configure a Replicator.
type Options struct {
	LocalID string
	Sender  Sender
	Round   RoundState
	// Self returns the local player's record, used when registering after a
	// snapshot.
	Self func() protocol.PlayerAdd
	// Host returns the current room host as the transport sees it. When set,
	// snapshots from anyone else are rejected.
	Host   func() string
	Logger *zap.SugaredLogger
}

// Replicator owns the local copy of the room state.
type Replicator struct {
	store       *roomstate.Store
	localID     string
	hasRoomData bool
	// syncedFrom is the peer whose snapshot (or seed) gave us room data.
	syncedFrom string

	sender Sender
	round  RoundState
	self   func() protocol.PlayerAdd
	host   func() string
	logger *zap.SugaredLogger
}

// New creates a replicator over store. The store is owned by the replicator
// from now on.
func New(store *roomstate.Store, opts Options) *Replicator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	self := opts.Self
	if self == nil {
		self = func() protocol.PlayerAdd { return protocol.PlayerAdd{} }
	}
	return &Replicator{
		store:   store,
		localID: opts.LocalID,
		sender:  opts.Sender,
		round:   opts.Round,
		self:    self,
		host:    opts.Host,
		logger:  logger,
	}
}

func (r *Replicator) Store() *roomstate.Store { return r.store }

func (r *Replicator) LocalID() string { return r.localID }

// HasRoomData reports whether the local copy has been seeded or has
// received its snapshot.
func (r *Replicator) HasRoomData() bool { return r.hasRoomData }

// IsTagger reports whether the local peer holds the tagger role.
func (r *Replicator) IsTagger() bool {
	return r.hasRoomData && r.store.TaggerID() == r.localID
}

// Seed initialises the state of a freshly created room: the local player is
// the only member and the tagger.
func (r *Replicator) Seed(self protocol.PlayerAdd) {
	r.store.Reset()
	r.store.AddPlayer(r.localID, self.Pos, self.Color, self.Name)
	r.store.SetTagger(r.localID)
	r.hasRoomData = true
	r.syncedFrom = r.localID
	r.logger.Infof("Room seeded by %s", r.localID)
}

// Reset forgets all room data.
func (r *Replicator) Reset() {
	r.store.Reset()
	r.hasRoomData = false
	r.syncedFrom = ""
}

// HandleEvent decodes and applies one inbound event.
func (r *Replicator) HandleEvent(sender string, code protocol.Code, payload []byte) error {
	ev, err := protocol.Decode(code, payload)
	if err != nil {
		return fmt.Errorf("decode %s from %s: %w", code, sender, err)
	}
	return r.Apply(sender, ev)
}

// Apply applies a decoded event sent by sender.
func (r *Replicator) Apply(sender string, ev protocol.Event) error {
	if snap, ok := ev.(protocol.RoomSnapshot); ok {
		return r.applySnapshot(sender, snap)
	}
	if !r.hasRoomData {
		r.logger.Debugf("Dropping %s from %s: no room data yet", ev.Code(), sender)
		return nil
	}

	var err error
	switch e := ev.(type) {
	case protocol.PlayerAdd:
		r.store.AddPlayer(sender, e.Pos, e.Color, e.Name)
		r.logger.Debugf("Player %s (%s) added", sender, e.Name)
	case protocol.PlayerErase:
		if e.ID == r.localID {
			r.logger.Debugf("Ignoring erase of the local player from %s", sender)
			return nil
		}
		r.store.ErasePlayer(e.ID)
	case protocol.PlayerMove:
		err = r.store.SetPosition(sender, e.Pos)
	case protocol.SetTransparent:
		err = r.store.SetTransparent(sender, e.Value)
	case protocol.SetWatching:
		err = r.store.SetWatching(sender, e.Value)
	case protocol.PlayerRename:
		err = r.store.SetName(sender, e.Name)
	case protocol.ItTransferred:
		r.store.SetTagger(e.TaggerID)
		if r.round != nil {
			r.round.TaggerChanged()
		}
		r.logger.Debugf("Tagger is now %s", e.TaggerID)
	case protocol.TagRoundReset:
		if r.round != nil {
			r.round.ResetRound()
		}
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownCode, ev.Code())
	}

	if errors.Is(err, roomstate.ErrUnknownPlayer) {
		// гонка между входом игрока и его первым событием
		r.logger.Debugf("Dropping %s from %s: %v", ev.Code(), sender, err)
		return nil
	}
	return err
}

func (r *Replicator) applySnapshot(sender string, snap protocol.RoomSnapshot) error {
	var host string
	if r.host != nil {
		host = r.host()
	}
	if host != "" && host != sender {
		return fmt.Errorf("%w: snapshot from %s, host is %s", ErrInvariantViolation, sender, host)
	}
	if r.hasRoomData {
		if host == sender && r.syncedFrom != sender && r.syncedFrom != r.localID {
			// новый хост после миграции досылает снапшот тем, чей PlayerAdd
			// до него ещё не дошёл; наш PlayerAdd уже в пути
			r.logger.Debugf("Ignoring snapshot from new host %s: synced from %s", sender, r.syncedFrom)
			return nil
		}
		return fmt.Errorf("%w: snapshot from %s while room data is present", ErrInvariantViolation, sender)
	}
	r.store.Reset()
	for _, p := range snap.Players {
		rec := p.Record
		r.store.AddPlayer(p.ID, rec.Pos, rec.Color, rec.Name)
		_ = r.store.SetTransparent(p.ID, rec.Transparent)
		_ = r.store.SetWatching(p.ID, rec.Watching)
	}
	r.store.SetTagger(snap.TaggerID)
	if r.round != nil {
		r.round.RestoreRound(snap.Round)
	}

	self := r.self()
	r.store.AddPlayer(r.localID, self.Pos, self.Color, self.Name)
	r.hasRoomData = true
	r.syncedFrom = sender
	r.logger.Infof("Snapshot from %s applied: %d players, tagger %s", sender, len(snap.Players), snap.TaggerID)

	return r.send(self, nil)
}

// PeerJoined sends the joiner a snapshot when the local peer is the host.
// The joiner is not inserted here; its own PlayerAdd does that.
func (r *Replicator) PeerJoined(id string, isHost bool) error {
	if !isHost || !r.hasRoomData {
		return nil
	}
	snap := r.Snapshot()
	r.logger.Debugf("Sending snapshot with %d players to %s", len(snap.Players), id)
	return r.send(snap, []string{id})
}

// SyncMembers sends a snapshot to every member missing from the store. A
// freshly promoted host calls it for joiners the old host never served.
func (r *Replicator) SyncMembers(members []string) error {
	if !r.hasRoomData {
		return nil
	}
	var pending []string
	for _, id := range members {
		if id != r.localID && !r.store.Has(id) {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	r.logger.Infof("Sending snapshot to %d members without room data: %v", len(pending), pending)
	return r.send(r.Snapshot(), pending)
}

// Snapshot captures the local copy and the round state.
func (r *Replicator) Snapshot() protocol.RoomSnapshot {
	snap := protocol.RoomSnapshot{TaggerID: r.store.TaggerID()}
	for _, id := range r.store.IDs() {
		rec, _ := r.store.Player(id)
		snap.Players = append(snap.Players, protocol.SnapshotPlayer{ID: id, Record: rec})
	}
	if r.round != nil {
		snap.Round = r.round.Round()
	}
	return snap
}

// PeerLeft drops the departed player locally. The host, which may have just
// been promoted, also broadcasts the erase and hands the tagger role to
// itself when the departed peer held it.
func (r *Replicator) PeerLeft(id, hostID string) error {
	if !r.hasRoomData {
		return nil
	}
	wasTagger := r.store.TaggerID() == id
	r.store.ErasePlayer(id)
	if hostID != r.localID {
		return nil
	}
	if err := r.send(protocol.PlayerErase{ID: id}, nil); err != nil {
		return err
	}
	if !wasTagger {
		return nil
	}
	r.logger.Infof("Tagger %s left, %s takes over", id, r.localID)
	return r.TransferTagger(r.localID)
}

// TransferTagger hands the tagger role to id and starts a new round on every
// peer: ItTransferred followed by TagRoundReset.
func (r *Replicator) TransferTagger(id string) error {
	if !r.hasRoomData {
		return nil
	}
	r.store.SetTagger(id)
	if r.round != nil {
		r.round.TaggerChanged()
		r.round.ResetRound()
	}
	if err := r.send(protocol.ItTransferred{TaggerID: id}, nil); err != nil {
		return err
	}
	return r.send(protocol.TagRoundReset{}, nil)
}

// MoveLocal updates the local position without publishing it.
func (r *Replicator) MoveLocal(pos geom.Vec2) {
	if !r.hasRoomData {
		return
	}
	_ = r.store.SetPosition(r.localID, pos)
}

// PublishMove applies and broadcasts the local position.
func (r *Replicator) PublishMove(pos geom.Vec2) error {
	if !r.hasRoomData {
		return nil
	}
	_ = r.store.SetPosition(r.localID, pos)
	return r.send(protocol.PlayerMove{Pos: pos}, nil)
}

func (r *Replicator) PublishTransparent(v bool) error {
	if !r.hasRoomData {
		return nil
	}
	_ = r.store.SetTransparent(r.localID, v)
	return r.send(protocol.SetTransparent{Value: v}, nil)
}

func (r *Replicator) PublishWatching(v bool) error {
	if !r.hasRoomData {
		return nil
	}
	_ = r.store.SetWatching(r.localID, v)
	return r.send(protocol.SetWatching{Value: v}, nil)
}

func (r *Replicator) PublishName(name string) error {
	if !r.hasRoomData {
		return nil
	}
	_ = r.store.SetName(r.localID, name)
	return r.send(protocol.PlayerRename{Name: name}, nil)
}

func (r *Replicator) send(ev protocol.Event, targets []string) error {
	if r.sender == nil {
		return nil
	}
	payload, err := protocol.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Code(), err)
	}
	if err := r.sender.Send(ev.Code(), payload, targets); err != nil {
		return fmt.Errorf("send %s: %w", ev.Code(), err)
	}
	return nil
}
