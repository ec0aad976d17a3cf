// Package lobby хранит комнаты и порядок входа участников.
//
// Lobby не потокобезопасен: вызывающая сторона держит свой мьютекс.
package lobby

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	ErrRoomExists    = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("peer already in a room")
	ErrNotInRoom     = errors.New("peer not in a room")
)

// DefaultCapacity is the member limit for new rooms.
const DefaultCapacity = 8

// Info is a listing entry.
type Info struct {
	Name     string
	Members  int
	Capacity int
}

type room struct {
	name     string
	capacity int
	// участники в порядке входа; первый - хост
	members []string
}

// Lobby tracks rooms and which peer sits in which room.
type Lobby struct {
	capacity int
	rooms    map[string]*room
	peerRoom map[string]string
}

// New creates an empty lobby; capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Lobby {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Lobby{
		capacity: capacity,
		rooms:    make(map[string]*room),
		peerRoom: make(map[string]string),
	}
}

// Create makes a room and puts peer in it as host. An empty name is replaced
// by a generated one. It returns the final room name.
func (l *Lobby) Create(name, peer string) (string, error) {
	if _, ok := l.peerRoom[peer]; ok {
		return "", ErrAlreadyInRoom
	}
	if name == "" {
		name = "room-" + uuid.NewString()[:8]
	}
	if _, ok := l.rooms[name]; ok {
		return "", fmt.Errorf("%w: %s", ErrRoomExists, name)
	}
	l.rooms[name] = &room{name: name, capacity: l.capacity, members: []string{peer}}
	l.peerRoom[peer] = name
	return name, nil
}

// Join adds peer to an existing room and returns the members in join order.
func (l *Lobby) Join(name, peer string) ([]string, error) {
	if _, ok := l.peerRoom[peer]; ok {
		return nil, ErrAlreadyInRoom
	}
	r, ok := l.rooms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, name)
	}
	if len(r.members) >= r.capacity {
		return nil, fmt.Errorf("%w: %s", ErrRoomFull, name)
	}
	r.members = append(r.members, peer)
	l.peerRoom[peer] = name
	return l.Members(name), nil
}

// Leave removes peer from its room. It returns the room name, the host after
// the departure and the remaining members. Empty rooms are deleted.
func (l *Lobby) Leave(peer string) (name, host string, remaining []string, err error) {
	name, ok := l.peerRoom[peer]
	if !ok {
		return "", "", nil, ErrNotInRoom
	}
	delete(l.peerRoom, peer)
	r := l.rooms[name]
	for i, id := range r.members {
		if id == peer {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	if len(r.members) == 0 {
		delete(l.rooms, name)
		return name, "", nil, nil
	}
	return name, r.members[0], l.Members(name), nil
}

// RoomOf returns the room peer is in.
func (l *Lobby) RoomOf(peer string) (string, bool) {
	name, ok := l.peerRoom[peer]
	return name, ok
}

// Members returns a copy of the room's members in join order.
func (l *Lobby) Members(name string) []string {
	r, ok := l.rooms[name]
	if !ok {
		return nil
	}
	return append([]string(nil), r.members...)
}

// Host returns the earliest-joined member of the room.
func (l *Lobby) Host(name string) string {
	r, ok := l.rooms[name]
	if !ok || len(r.members) == 0 {
		return ""
	}
	return r.members[0]
}

// List returns all rooms sorted by name.
func (l *Lobby) List() []Info {
	out := make([]Info, 0, len(l.rooms))
	for _, r := range l.rooms {
		out = append(out, Info{Name: r.name, Members: len(r.members), Capacity: r.capacity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
