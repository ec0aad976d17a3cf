package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/ghosttag/internal/lobby"
	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/transport"
	"github.com/annelo/ghosttag/internal/transport/memory"
)

// recorder is a transport.Listener that logs every callback.
type recorder struct {
	log     []string
	joinErr error
	members []string
	events  []string
	rooms   []transport.RoomInfo
	hostIDs []string
}

func (r *recorder) OnConnect(err error)    { r.log = append(r.log, "connect") }
func (r *recorder) OnDisconnect(err error) { r.log = append(r.log, "disconnect") }
func (r *recorder) OnRoomList(rooms []transport.RoomInfo) {
	r.log = append(r.log, "rooms")
	r.rooms = rooms
}
func (r *recorder) OnJoin(room string, members []string, err error) {
	r.log = append(r.log, "join")
	r.joinErr = err
	r.members = members
}
func (r *recorder) OnPeerJoined(id string) { r.log = append(r.log, "peer_joined") }
func (r *recorder) OnPeerLeft(id, hostID string) {
	r.log = append(r.log, "peer_left")
	r.hostIDs = append(r.hostIDs, hostID)
}
func (r *recorder) OnLeave() { r.log = append(r.log, "leave") }
func (r *recorder) OnEvent(sender string, code protocol.Code, payload []byte) {
	r.events = append(r.events, sender+":"+code.String()+":"+string(payload))
}

func connect(t *testing.T, hub *memory.Hub) (*memory.Peer, *recorder) {
	t.Helper()
	p := hub.NewPeer()
	rec := &recorder{}
	require.NoError(t, p.Connect("p", rec))
	p.Service()
	return p, rec
}

func TestHub_RoomFlow(t *testing.T) {
	hub := memory.NewHub(4)
	a, ra := connect(t, hub)
	b, rb := connect(t, hub)

	require.NoError(t, a.CreateRoom("r1"))
	a.Service()
	assert.Equal(t, []string{a.LocalID()}, ra.members)
	assert.True(t, a.IsHost())

	require.NoError(t, b.JoinRoom("r1"))
	b.Service()
	a.Service()
	assert.Equal(t, []string{a.LocalID(), b.LocalID()}, rb.members)
	assert.Equal(t, a.LocalID(), b.HostID())
	assert.Contains(t, ra.log, "peer_joined")
	assert.Equal(t, b.Members(), a.Members())

	// broadcast and targeted sends, in order
	require.NoError(t, a.Send(protocol.CodePlayerMove, []byte("1"), nil))
	require.NoError(t, a.Send(protocol.CodePlayerMove, []byte("2"), []string{b.LocalID()}))
	assert.Equal(t, 2, b.Pending())
	b.Service()
	assert.Equal(t, []string{
		a.LocalID() + ":PlayerMove:1",
		a.LocalID() + ":PlayerMove:2",
	}, rb.events)
	assert.Empty(t, ra.events, "senders do not receive their own broadcast")

	// host leaves, b is promoted
	require.NoError(t, a.LeaveRoom())
	a.Service()
	b.Service()
	assert.Equal(t, "leave", ra.log[len(ra.log)-1])
	assert.Equal(t, []string{b.LocalID()}, rb.hostIDs)
	assert.True(t, b.IsHost())
	assert.Equal(t, []string{b.LocalID()}, b.Members())
	assert.Equal(t, transport.ErrNotInRoom, a.Send(protocol.CodePlayerMove, nil, nil))
}

func TestHub_JoinErrors(t *testing.T) {
	hub := memory.NewHub(1)
	a, _ := connect(t, hub)
	b, rb := connect(t, hub)

	require.NoError(t, b.JoinRoom("missing"))
	b.Service()
	assert.ErrorIs(t, rb.joinErr, lobby.ErrRoomNotFound)

	require.NoError(t, a.CreateRoom("solo"))
	a.Service()
	require.NoError(t, b.JoinRoom("solo"))
	b.Service()
	assert.ErrorIs(t, rb.joinErr, lobby.ErrRoomFull)

	require.NoError(t, b.ListRooms())
	b.Service()
	require.Len(t, rb.rooms, 1)
	assert.Equal(t, "solo", rb.rooms[0].Name)
}

func TestHub_DisconnectNotifiesRoom(t *testing.T) {
	hub := memory.NewHub(4)
	a, ra := connect(t, hub)
	b, rb := connect(t, hub)
	require.NoError(t, a.CreateRoom("r"))
	require.NoError(t, b.JoinRoom("r"))
	a.Service()
	b.Service()

	require.NoError(t, b.Disconnect())
	b.Service()
	a.Service()
	assert.Equal(t, "disconnect", rb.log[len(rb.log)-1])
	assert.Equal(t, []string{a.LocalID()}, ra.hostIDs)
	assert.Equal(t, transport.ErrNotConnected, b.Disconnect())
	assert.Len(t, hub.Rooms(), 1)
}
