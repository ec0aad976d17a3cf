// Package transport describes the room/lobby messaging boundary.
//
// Implementations run their network I/O in the background but never call the
// Listener from there: callbacks are queued and delivered one by one, in
// arrival order, from Service on the goroutine that owns the room state.
package transport

import (
	"errors"

	"github.com/annelo/ghosttag/internal/protocol"
)

var (
	ErrNotConnected     = errors.New("transport: not connected")
	ErrAlreadyConnected = errors.New("transport: already connected")
	ErrNotInRoom        = errors.New("transport: not in a room")
	ErrAlreadyInRoom    = errors.New("transport: already in a room")
)

// RoomInfo describes one room in the lobby listing.
type RoomInfo struct {
	Name     string
	Members  int
	Capacity int
}

// Listener receives transport callbacks.
type Listener interface {
	OnConnect(err error)
	// OnDisconnect fires once the connection is gone, requested or not.
	OnDisconnect(err error)
	OnRoomList(rooms []RoomInfo)
	// OnJoin reports the outcome of CreateRoom or JoinRoom. members is in
	// join order and includes the local peer; members[0] is the host.
	OnJoin(room string, members []string, err error)
	OnPeerJoined(id string)
	// OnPeerLeft carries the host after the departure, which differs from
	// the previous host when the host itself left.
	OnPeerLeft(id, hostID string)
	OnLeave()
	OnEvent(sender string, code protocol.Code, payload []byte)
}

// Transport is one peer's connection to the lobby.
//
// Request methods return immediately; their outcome arrives through the
// Listener. A returned error means the request was not sent at all.
type Transport interface {
	Connect(name string, l Listener) error
	Disconnect() error
	ListRooms() error
	// CreateRoom creates and joins a room. An empty name asks for a
	// generated one.
	CreateRoom(name string) error
	JoinRoom(name string) error
	LeaveRoom() error
	// Send delivers an event to targets; nil targets means every other
	// member of the room.
	Send(code protocol.Code, payload []byte, targets []string) error

	LocalID() string
	HostID() string
	IsHost() bool
	// Members returns the room members in join order.
	Members() []string

	// Service delivers queued callbacks to the listener and returns how
	// many were delivered.
	Service() int
}
