// Package protocol defines the replicated room events and their wire encoding.
//
// Payloads are opaque byte buffers to the transport. Field order is fixed per
// event kind and there is no version field: changing a layout means adding a
// new Code.
package protocol

import (
	"time"

	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/roomstate"
)

// Code identifies an event kind on the wire.
type Code uint8

const (
	CodeRoomSnapshot Code = iota + 1
	CodePlayerAdd
	CodePlayerErase
	CodePlayerMove
	CodeSetTransparent
	CodeSetWatching
	CodeItTransferred
	CodeTagRoundReset
	CodePlayerRename
)

var codeNames = map[Code]string{
	CodeRoomSnapshot:   "roomSnapshot",
	CodePlayerAdd:      "playerAdd",
	CodePlayerErase:    "playerErase",
	CodePlayerMove:     "playerMove",
	CodeSetTransparent: "setTransparent",
	CodeSetWatching:    "setWatching",
	CodeItTransferred:  "itTransferred",
	CodeTagRoundReset:  "tagRoundReset",
	CodePlayerRename:   "playerRename",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "unknown"
}

// Event is any replicated room event.
type Event interface {
	Code() Code
}

// SnapshotPlayer is one player entry inside a RoomSnapshot.
type SnapshotPlayer struct {
	ID     string
	Record roomstate.PlayerRecord
}

// Mark is an observer mark carried by a snapshot.
type Mark struct {
	Pos      geom.Vec2
	Detected bool
}

// RoundTimer is the in-flight round state handed to a joining peer.
type RoundTimer struct {
	// ObserverElapsed is the observer sampler's carried remainder.
	ObserverElapsed   time.Duration
	CooldownRemaining time.Duration
	CooldownRunning   bool
	Marks             []Mark
}

// RoomSnapshot bootstraps a joining peer's local copy.
type RoomSnapshot struct {
	TaggerID string
	Players  []SnapshotPlayer
	Round    RoundTimer
}

// PlayerAdd inserts the sender's record.
type PlayerAdd struct {
	Pos   geom.Vec2
	Color roomstate.Color
	Name  string
}

// PlayerErase removes a record; sent by the host when a member leaves.
type PlayerErase struct {
	ID string
}

// PlayerMove updates the sender's position.
type PlayerMove struct {
	Pos geom.Vec2
}

type SetTransparent struct {
	Value bool
}

type SetWatching struct {
	Value bool
}

// ItTransferred overwrites the tagger id.
type ItTransferred struct {
	TaggerID string
}

// TagRoundReset restarts the tag cooldown and clears observer marks.
type TagRoundReset struct{}

// PlayerRename updates the sender's display name.
type PlayerRename struct {
	Name string
}

func (RoomSnapshot) Code() Code   { return CodeRoomSnapshot }
func (PlayerAdd) Code() Code      { return CodePlayerAdd }
func (PlayerErase) Code() Code    { return CodePlayerErase }
func (PlayerMove) Code() Code     { return CodePlayerMove }
func (SetTransparent) Code() Code { return CodeSetTransparent }
func (SetWatching) Code() Code    { return CodeSetWatching }
func (ItTransferred) Code() Code  { return CodeItTransferred }
func (TagRoundReset) Code() Code  { return CodeTagRoundReset }
func (PlayerRename) Code() Code   { return CodePlayerRename }
