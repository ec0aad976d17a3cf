// Package memory is an in-process transport: every peer of a Hub shares the
// same lobby and events are copied between peer queues.
//
// It is used by scenario tests and by cmd/bclient in offline mode.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/annelo/ghosttag/internal/lobby"
	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/transport"
)

// Hub connects peers living in one process.
type Hub struct {
	mu    sync.Mutex
	lobby *lobby.Lobby
	peers map[string]*Peer
}

// NewHub creates a hub whose rooms hold at most capacity members.
func NewHub(capacity int) *Hub {
	return &Hub{
		lobby: lobby.New(capacity),
		peers: make(map[string]*Peer),
	}
}

// NewPeer returns a disconnected peer attached to the hub.
func (h *Hub) NewPeer() *Peer {
	return &Peer{hub: h}
}

// Rooms returns the current lobby listing.
func (h *Hub) Rooms() []lobby.Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lobby.List()
}

// Peer implements transport.Transport.
type Peer struct {
	hub   *Hub
	queue transport.Queue

	// под hub.mu
	id        string
	connected bool

	// Состояние комнаты, как его видит владелец; меняется только в Service
	listener transport.Listener
	room     string
	members  []string
	host     string
}

var _ transport.Transport = (*Peer)(nil)

func (p *Peer) Connect(name string, l transport.Listener) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if p.connected {
		return transport.ErrAlreadyConnected
	}
	p.id = uuid.NewString()
	p.connected = true
	p.listener = l
	h.peers[p.id] = p
	p.queue.Push(func(l transport.Listener) { l.OnConnect(nil) })
	return nil
}

func (p *Peer) Disconnect() error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !p.connected {
		return transport.ErrNotConnected
	}
	h.leaveLocked(p)
	delete(h.peers, p.id)
	p.connected = false
	p.queue.Push(func(l transport.Listener) {
		p.clearRoom()
		l.OnDisconnect(nil)
	})
	return nil
}

func (p *Peer) ListRooms() error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !p.connected {
		return transport.ErrNotConnected
	}
	rooms := roomInfos(h.lobby.List())
	p.queue.Push(func(l transport.Listener) { l.OnRoomList(rooms) })
	return nil
}

func (p *Peer) CreateRoom(name string) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !p.connected {
		return transport.ErrNotConnected
	}
	if _, ok := h.lobby.RoomOf(p.id); ok {
		return transport.ErrAlreadyInRoom
	}
	room, err := h.lobby.Create(name, p.id)
	if err != nil {
		p.queue.Push(func(l transport.Listener) { l.OnJoin(name, nil, err) })
		return nil
	}
	p.pushJoined(room, []string{p.id})
	return nil
}

func (p *Peer) JoinRoom(name string) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !p.connected {
		return transport.ErrNotConnected
	}
	if _, ok := h.lobby.RoomOf(p.id); ok {
		return transport.ErrAlreadyInRoom
	}
	members, err := h.lobby.Join(name, p.id)
	if err != nil {
		p.queue.Push(func(l transport.Listener) { l.OnJoin(name, nil, err) })
		return nil
	}
	p.pushJoined(name, members)
	joiner := p.id
	for _, id := range members {
		if id == joiner {
			continue
		}
		other := h.peers[id]
		other.queue.Push(func(l transport.Listener) {
			other.members = append(other.members, joiner)
			l.OnPeerJoined(joiner)
		})
	}
	return nil
}

func (p *Peer) LeaveRoom() error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !p.connected {
		return transport.ErrNotConnected
	}
	if !h.leaveLocked(p) {
		return transport.ErrNotInRoom
	}
	p.queue.Push(func(l transport.Listener) {
		p.clearRoom()
		l.OnLeave()
	})
	return nil
}

func (p *Peer) Send(code protocol.Code, payload []byte, targets []string) error {
	h := p.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if !p.connected {
		return transport.ErrNotConnected
	}
	room, ok := h.lobby.RoomOf(p.id)
	if !ok {
		return transport.ErrNotInRoom
	}
	if targets == nil {
		targets = h.lobby.Members(room)
	}
	sender := p.id
	for _, id := range targets {
		if id == sender {
			continue
		}
		if r, ok := h.lobby.RoomOf(id); !ok || r != room {
			continue
		}
		data := append([]byte(nil), payload...)
		h.peers[id].queue.Push(func(l transport.Listener) { l.OnEvent(sender, code, data) })
	}
	return nil
}

func (p *Peer) LocalID() string { return p.id }

func (p *Peer) HostID() string { return p.host }

func (p *Peer) IsHost() bool { return p.host != "" && p.host == p.id }

func (p *Peer) Members() []string { return append([]string(nil), p.members...) }

// Service drains the peer's queue into its listener.
func (p *Peer) Service() int { return p.queue.Drain(p.listener) }

// Pending returns the number of undelivered callbacks.
func (p *Peer) Pending() int { return p.queue.Len() }

func (p *Peer) pushJoined(room string, members []string) {
	p.queue.Push(func(l transport.Listener) {
		p.room = room
		p.members = append([]string(nil), members...)
		p.host = members[0]
		l.OnJoin(room, p.Members(), nil)
	})
}

func (p *Peer) clearRoom() {
	p.room = ""
	p.members = nil
	p.host = ""
}

// leaveLocked removes p from its room and notifies the remaining members.
func (h *Hub) leaveLocked(p *Peer) bool {
	_, host, remaining, err := h.lobby.Leave(p.id)
	if err != nil {
		return false
	}
	gone := p.id
	for _, id := range remaining {
		other := h.peers[id]
		other.queue.Push(func(l transport.Listener) {
			other.removeMember(gone)
			other.host = host
			l.OnPeerLeft(gone, host)
		})
	}
	return true
}

func (p *Peer) removeMember(id string) {
	for i, m := range p.members {
		if m == id {
			p.members = append(p.members[:i], p.members[i+1:]...)
			return
		}
	}
}

func roomInfos(in []lobby.Info) []transport.RoomInfo {
	out := make([]transport.RoomInfo, len(in))
	for i, r := range in {
		out[i] = transport.RoomInfo{Name: r.Name, Members: r.Members, Capacity: r.Capacity}
	}
	return out
}
