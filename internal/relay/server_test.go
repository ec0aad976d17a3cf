package relay_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/annelo/ghosttag/internal/lobby"
	"github.com/annelo/ghosttag/internal/relay"
	"github.com/annelo/ghosttag/internal/relay/wire"
)

// startRelay serves a relay over an in-memory listener and returns a client
// connection to it.
func startRelay(t *testing.T, capacity int) (*relay.Server, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := relay.NewServer(relay.Options{RoomCapacity: capacity})
	g := grpc.NewServer(grpc.ForceServerCodec(wire.Codec{}))
	srv.RegisterServer(g)
	go func() { _ = g.Serve(lis) }()
	t.Cleanup(g.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return srv, cc
}

type session struct {
	t      *testing.T
	stream wire.ClientStream
	id     string
}

func open(t *testing.T, cc *grpc.ClientConn) wire.ClientStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	stream, err := wire.OpenSession(ctx, cc)
	require.NoError(t, err)
	return stream
}

func connect(t *testing.T, cc *grpc.ClientConn, name string) *session {
	t.Helper()
	s := &session{t: t, stream: open(t, cc)}
	s.send(&wire.Frame{Op: wire.OpConnect, Name: name})
	s.id = s.expect(wire.OpConnected).Peer
	require.NotEmpty(t, s.id)
	return s
}

func (s *session) send(f *wire.Frame) {
	s.t.Helper()
	require.NoError(s.t, s.stream.Send(f))
}

func (s *session) expect(op wire.Op) *wire.Frame {
	s.t.Helper()
	f, err := s.stream.Recv()
	require.NoError(s.t, err)
	require.Equal(s.t, op, f.Op, "got %+v", f)
	return f
}

func TestSession_FirstFrameMustBeConnect(t *testing.T) {
	_, cc := startRelay(t, 8)
	stream := open(t, cc)
	require.NoError(t, stream.Send(&wire.Frame{Op: wire.OpListRooms}))
	_, err := stream.Recv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSession_CreateJoinForward(t *testing.T) {
	srv, cc := startRelay(t, 2)
	a := connect(t, cc, "alice")
	b := connect(t, cc, "bob")
	c := connect(t, cc, "carol")

	a.send(&wire.Frame{Op: wire.OpCreateRoom, Room: "r"})
	joined := a.expect(wire.OpJoined)
	assert.Equal(t, "r", joined.Room)
	assert.Equal(t, []string{a.id}, joined.Members)

	b.send(&wire.Frame{Op: wire.OpJoinRoom, Room: "r"})
	joined = b.expect(wire.OpJoined)
	assert.Equal(t, []string{a.id, b.id}, joined.Members, "join order, host first")
	assert.Equal(t, b.id, a.expect(wire.OpPeerJoined).Peer)

	// targeted and broadcast events carry the sender
	a.send(&wire.Frame{Op: wire.OpEvent, Code: 1, Payload: []byte("snap"), Targets: []string{b.id}})
	ev := b.expect(wire.OpEvent)
	assert.Equal(t, a.id, ev.Peer)
	assert.Equal(t, uint8(1), ev.Code)
	assert.Equal(t, []byte("snap"), ev.Payload)

	b.send(&wire.Frame{Op: wire.OpEvent, Code: 2, Payload: []byte("add"), Broadcast: true})
	assert.Equal(t, b.id, a.expect(wire.OpEvent).Peer)

	// the room is full now
	c.send(&wire.Frame{Op: wire.OpJoinRoom, Room: "r"})
	failed := c.expect(wire.OpJoinFailed)
	assert.ErrorIs(t, failed.Err(), lobby.ErrRoomFull)

	c.send(&wire.Frame{Op: wire.OpJoinRoom, Room: "missing"})
	assert.ErrorIs(t, c.expect(wire.OpJoinFailed).Err(), lobby.ErrRoomNotFound)

	c.send(&wire.Frame{Op: wire.OpListRooms})
	rooms := c.expect(wire.OpRooms).Rooms
	assert.Equal(t, []wire.RoomInfo{{Name: "r", Members: 2, Capacity: 2}}, rooms)
	assert.Equal(t, []string{a.id, b.id}, srv.RoomMembers("r"))
}

func TestSession_HostMigration(t *testing.T) {
	srv, cc := startRelay(t, 8)
	a := connect(t, cc, "alice")
	b := connect(t, cc, "bob")
	c := connect(t, cc, "carol")

	a.send(&wire.Frame{Op: wire.OpCreateRoom, Room: "r"})
	a.expect(wire.OpJoined)
	for _, p := range []*session{b, c} {
		p.send(&wire.Frame{Op: wire.OpJoinRoom, Room: "r"})
		p.expect(wire.OpJoined)
	}
	a.expect(wire.OpPeerJoined)
	a.expect(wire.OpPeerJoined)
	b.expect(wire.OpPeerJoined)

	// the host hangs up; the next member in join order takes over
	require.NoError(t, a.stream.CloseSend())
	for _, p := range []*session{b, c} {
		left := p.expect(wire.OpPeerLeft)
		assert.Equal(t, a.id, left.Peer)
		assert.Equal(t, b.id, left.Host)
	}
	assert.Equal(t, []string{b.id, c.id}, srv.RoomMembers("r"))

	// an explicit leave is confirmed to the leaver only
	c.send(&wire.Frame{Op: wire.OpLeaveRoom})
	c.expect(wire.OpLeft)
	left := b.expect(wire.OpPeerLeft)
	assert.Equal(t, c.id, left.Peer)
	assert.Equal(t, b.id, left.Host)

	// events from outside a room go nowhere
	c.send(&wire.Frame{Op: wire.OpEvent, Code: 3, Broadcast: true})
	c.send(&wire.Frame{Op: wire.OpListRooms})
	assert.Equal(t, []wire.RoomInfo{{Name: "r", Members: 1, Capacity: 8}}, c.expect(wire.OpRooms).Rooms)
}

func TestServer_Kick(t *testing.T) {
	srv, cc := startRelay(t, 8)
	a := connect(t, cc, "alice")
	b := connect(t, cc, "bob")
	a.send(&wire.Frame{Op: wire.OpCreateRoom, Room: "r"})
	a.expect(wire.OpJoined)
	b.send(&wire.Frame{Op: wire.OpJoinRoom, Room: "r"})
	b.expect(wire.OpJoined)
	a.expect(wire.OpPeerJoined)

	assert.ErrorIs(t, srv.Kick("nobody", ""), relay.ErrUnknownPeer)
	require.NoError(t, srv.Kick(b.id, "bye"))

	assert.Equal(t, "bye", b.expect(wire.OpShutdown).Error)
	_, err := b.stream.Recv()
	assert.Error(t, err)

	left := a.expect(wire.OpPeerLeft)
	assert.Equal(t, b.id, left.Peer)
	assert.Equal(t, a.id, left.Host)
	assert.Equal(t, 1, srv.Sessions())
}

func TestServer_DisconnectAllClients(t *testing.T) {
	srv, cc := startRelay(t, 8)
	a := connect(t, cc, "alice")
	b := connect(t, cc, "bob")

	assert.Equal(t, 2, srv.DisconnectAllClients())
	for _, p := range []*session{a, b} {
		p.expect(wire.OpShutdown)
	}
	assert.Zero(t, srv.Sessions())
	assert.Empty(t, srv.Rooms())
}
