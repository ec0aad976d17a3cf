package grpcrelay_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/annelo/ghosttag/internal/config"
	"github.com/annelo/ghosttag/internal/geom"
	"github.com/annelo/ghosttag/internal/lifecycle"
	"github.com/annelo/ghosttag/internal/lobby"
	"github.com/annelo/ghosttag/internal/movement"
	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/relay"
	"github.com/annelo/ghosttag/internal/relay/wire"
	"github.com/annelo/ghosttag/internal/transport"
	"github.com/annelo/ghosttag/internal/transport/grpcrelay"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

func startRelay(t *testing.T) (*relay.Server, func() *grpcrelay.Client) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := relay.NewServer(relay.Options{})
	g := grpc.NewServer(grpc.ForceServerCodec(wire.Codec{}))
	srv.RegisterServer(g)
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(g.Stop)

	newClient := func() *grpcrelay.Client {
		return grpcrelay.New(grpcrelay.Options{
			Addr: "passthrough:///bufnet",
			DialOptions: []grpc.DialOption{
				grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			},
		})
	}
	return srv, newClient
}

type received struct {
	sender  string
	code    protocol.Code
	payload []byte
}

// recorder is a transport.Listener that keeps what it was told.
type recorder struct {
	connected    bool
	disconnected bool
	discErr      error
	rooms        []transport.RoomInfo
	room         string
	members      []string
	joinErr      error
	joined       []string
	left         [][2]string
	events       []received
}

func (r *recorder) OnConnect(err error) { r.connected = err == nil }
func (r *recorder) OnDisconnect(err error) {
	r.disconnected = true
	r.discErr = err
}
func (r *recorder) OnRoomList(rooms []transport.RoomInfo) { r.rooms = rooms }
func (r *recorder) OnJoin(room string, members []string, err error) {
	r.room, r.members, r.joinErr = room, members, err
}
func (r *recorder) OnPeerJoined(id string)       { r.joined = append(r.joined, id) }
func (r *recorder) OnPeerLeft(id, hostID string) { r.left = append(r.left, [2]string{id, hostID}) }
func (r *recorder) OnLeave()                     { r.room = "" }
func (r *recorder) OnEvent(sender string, code protocol.Code, payload []byte) {
	r.events = append(r.events, received{sender: sender, code: code, payload: payload})
}

type endpoint struct {
	c   *grpcrelay.Client
	rec *recorder
}

func dial(t *testing.T, newClient func() *grpcrelay.Client, name string) *endpoint {
	t.Helper()
	e := &endpoint{c: newClient(), rec: &recorder{}}
	require.NoError(t, e.c.Connect(name, e.rec))
	e.wait(t, func() bool { return e.rec.connected })
	t.Cleanup(func() { _ = e.c.Disconnect() })
	return e
}

// wait services the client until cond holds.
func (e *endpoint) wait(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		e.c.Service()
		return cond()
	}, waitFor, tick)
}

func TestClient_RoomFlow(t *testing.T) {
	_, newClient := startRelay(t)
	a := dial(t, newClient, "alice")
	b := dial(t, newClient, "bob")
	assert.NotEqual(t, a.c.LocalID(), b.c.LocalID())

	require.NoError(t, a.c.CreateRoom("r"))
	a.wait(t, func() bool { return a.rec.room == "r" })
	assert.True(t, a.c.IsHost())

	require.NoError(t, b.c.ListRooms())
	b.wait(t, func() bool { return len(b.rec.rooms) == 1 })
	assert.Equal(t, transport.RoomInfo{Name: "r", Members: 1, Capacity: lobby.DefaultCapacity}, b.rec.rooms[0])

	require.NoError(t, b.c.JoinRoom("r"))
	b.wait(t, func() bool { return b.rec.room == "r" })
	assert.Equal(t, []string{a.c.LocalID(), b.c.LocalID()}, b.rec.members)
	assert.Equal(t, a.c.LocalID(), b.c.HostID())
	assert.False(t, b.c.IsHost())
	a.wait(t, func() bool { return len(a.rec.joined) == 1 })
	assert.Equal(t, []string{a.c.LocalID(), b.c.LocalID()}, a.c.Members())

	require.NoError(t, a.c.Send(protocol.CodePlayerMove, []byte{1, 2}, nil))
	b.wait(t, func() bool { return len(b.rec.events) == 1 })
	assert.Equal(t, received{sender: a.c.LocalID(), code: protocol.CodePlayerMove, payload: []byte{1, 2}}, b.rec.events[0])

	require.NoError(t, b.c.Send(protocol.CodePlayerAdd, []byte{3}, []string{a.c.LocalID()}))
	a.wait(t, func() bool { return len(a.rec.events) == 1 })
	assert.Equal(t, b.c.LocalID(), a.rec.events[0].sender)

	// the host leaves; bob is promoted
	aID := a.c.LocalID()
	require.NoError(t, a.c.Disconnect())
	a.wait(t, func() bool { return a.rec.disconnected })
	assert.NoError(t, a.rec.discErr)
	assert.ErrorIs(t, a.c.ListRooms(), transport.ErrNotConnected)

	b.wait(t, func() bool { return len(b.rec.left) == 1 })
	assert.Equal(t, [2]string{aID, b.c.LocalID()}, b.rec.left[0])
	assert.True(t, b.c.IsHost())
	assert.Equal(t, []string{b.c.LocalID()}, b.c.Members())
}

func TestClient_JoinFailure(t *testing.T) {
	_, newClient := startRelay(t)
	e := dial(t, newClient, "alice")

	assert.ErrorIs(t, e.c.Send(protocol.CodePlayerMove, nil, nil), transport.ErrNotInRoom)
	assert.ErrorIs(t, e.c.LeaveRoom(), transport.ErrNotInRoom)

	require.NoError(t, e.c.JoinRoom("missing"))
	e.wait(t, func() bool { return e.rec.joinErr != nil })
	assert.ErrorIs(t, e.rec.joinErr, lobby.ErrRoomNotFound)
	assert.Empty(t, e.c.Members())
}

func TestClient_KickedByRelay(t *testing.T) {
	srv, newClient := startRelay(t)
	e := dial(t, newClient, "alice")

	require.NoError(t, srv.Kick(e.c.LocalID(), "maintenance"))
	e.wait(t, func() bool { return e.rec.disconnected })
	assert.ErrorIs(t, e.rec.discErr, grpcrelay.ErrShutdown)
	assert.Contains(t, e.rec.discErr.Error(), "maintenance")
}

func TestRelay_ControllersConverge(t *testing.T) {
	_, newClient := startRelay(t)

	newCtrl := func(spawn geom.Vec2) *lifecycle.Controller {
		ctrl := lifecycle.New(lifecycle.Options{Config: config.Default(), Transport: newClient(), Spawn: &spawn})
		t.Cleanup(func() { _ = ctrl.Disconnect() })
		return ctrl
	}
	a := newCtrl(geom.V(150, 150))
	b := newCtrl(geom.V(650, 450))
	frame := func() bool {
		a.Update(time.Second/60, movement.Input{})
		b.Update(time.Second/60, movement.Input{})
		return true
	}
	until := func(cond func() bool) {
		t.Helper()
		require.Eventually(t, func() bool { return frame() && cond() }, waitFor, tick)
	}

	require.NoError(t, a.Connect("alice"))
	require.NoError(t, b.Connect("bob"))
	until(func() bool { return a.State() == lifecycle.InLobby && b.State() == lifecycle.InLobby })

	require.NoError(t, a.CreateRoom("r"))
	until(func() bool { return a.State() == lifecycle.InRoom })
	require.NoError(t, b.JoinRoom("r"))
	until(func() bool {
		return b.State() == lifecycle.InRoom && b.Arena().Store().Len() == 2 && a.Arena().Store().Len() == 2
	})

	for _, c := range []*lifecycle.Controller{a, b} {
		store := c.Arena().Store()
		assert.ElementsMatch(t, []string{a.LocalID(), b.LocalID()}, store.IDs())
		assert.Equal(t, a.LocalID(), store.TaggerID())
	}
}
