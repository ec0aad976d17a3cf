// Package grpcrelay is the transport.Transport backed by the gRPC relay.
//
// A goroutine per connection reads frames from the session stream and turns
// them into queued callbacks; the room view (members, host) is updated inside
// those callbacks, so it only changes during Service.
package grpcrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/annelo/ghosttag/internal/protocol"
	"github.com/annelo/ghosttag/internal/relay/wire"
	"github.com/annelo/ghosttag/internal/transport"
)

// ErrShutdown reports a session closed by the relay.
var ErrShutdown = errors.New("grpcrelay: closed by relay")

// Options configure a Client.
type Options struct {
	Addr string
	// DialOptions replace the default insecure credentials.
	DialOptions []grpc.DialOption
	Logger      *zap.SugaredLogger
}

// Client implements transport.Transport over one relay session.
type Client struct {
	addr     string
	dialOpts []grpc.DialOption
	logger   *zap.SugaredLogger
	queue    transport.Queue

	// под mu: соединение и запросы
	mu        sync.Mutex
	cc        *grpc.ClientConn
	stream    wire.ClientStream
	cancel    context.CancelFunc
	connected bool
	closing   bool

	// вид со стороны владельца, меняется только в Service
	listener transport.Listener
	id       string
	room     string
	members  []string
	host     string
}

var _ transport.Transport = (*Client)(nil)

func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	dialOpts := opts.DialOptions
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Client{addr: opts.Addr, dialOpts: dialOpts, logger: logger}
}

// Connect opens the session stream; OnConnect fires once the relay assigns
// an id.
func (c *Client) Connect(name string, l transport.Listener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return transport.ErrAlreadyConnected
	}
	cc, err := grpc.NewClient(c.addr, c.dialOpts...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := wire.OpenSession(ctx, cc)
	if err != nil {
		cancel()
		_ = cc.Close()
		return fmt.Errorf("open session: %w", err)
	}
	if err := stream.Send(&wire.Frame{Op: wire.OpConnect, Name: name}); err != nil {
		cancel()
		_ = cc.Close()
		return fmt.Errorf("send connect: %w", err)
	}
	c.cc, c.stream, c.cancel = cc, stream, cancel
	c.connected, c.closing = true, false
	c.listener = l
	go c.receive(stream, cc, cancel)
	return nil
}

// Disconnect closes the session; OnDisconnect(nil) follows.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return transport.ErrNotConnected
	}
	c.closing = true
	_ = c.stream.CloseSend()
	c.cancel()
	return nil
}

func (c *Client) ListRooms() error {
	return c.send(&wire.Frame{Op: wire.OpListRooms})
}

func (c *Client) CreateRoom(name string) error {
	if c.room != "" {
		return transport.ErrAlreadyInRoom
	}
	return c.send(&wire.Frame{Op: wire.OpCreateRoom, Room: name})
}

func (c *Client) JoinRoom(name string) error {
	if c.room != "" {
		return transport.ErrAlreadyInRoom
	}
	return c.send(&wire.Frame{Op: wire.OpJoinRoom, Room: name})
}

func (c *Client) LeaveRoom() error {
	if c.room == "" {
		return transport.ErrNotInRoom
	}
	return c.send(&wire.Frame{Op: wire.OpLeaveRoom})
}

func (c *Client) Send(code protocol.Code, payload []byte, targets []string) error {
	if c.room == "" {
		return transport.ErrNotInRoom
	}
	return c.send(&wire.Frame{
		Op:        wire.OpEvent,
		Code:      uint8(code),
		Payload:   payload,
		Targets:   targets,
		Broadcast: targets == nil,
	})
}

func (c *Client) LocalID() string { return c.id }

func (c *Client) HostID() string { return c.host }

func (c *Client) IsHost() bool { return c.host != "" && c.host == c.id }

func (c *Client) Members() []string { return append([]string(nil), c.members...) }

// Service drains queued callbacks into the listener.
func (c *Client) Service() int { return c.queue.Drain(c.listener) }

func (c *Client) send(f *wire.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.closing {
		return transport.ErrNotConnected
	}
	if err := c.stream.Send(f); err != nil {
		// причину отдаст Recv в receive
		c.logger.Debugf("Send %s failed: %v", f.Op, err)
		return fmt.Errorf("send %s: %w", f.Op, err)
	}
	return nil
}

// receive runs until the stream ends.
func (c *Client) receive(stream wire.ClientStream, cc *grpc.ClientConn, cancel context.CancelFunc) {
	var shutdown string
	for {
		f, err := stream.Recv()
		if err != nil {
			cancel()
			_ = cc.Close()
			c.finish(stream, err, shutdown)
			return
		}
		if f.Op == wire.OpShutdown {
			shutdown = f.Error
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f *wire.Frame) {
	switch f.Op {
	case wire.OpConnected:
		id := f.Peer
		c.queue.Push(func(l transport.Listener) {
			c.id = id
			l.OnConnect(nil)
		})
	case wire.OpRooms:
		rooms := make([]transport.RoomInfo, len(f.Rooms))
		for i, r := range f.Rooms {
			rooms[i] = transport.RoomInfo{Name: r.Name, Members: r.Members, Capacity: r.Capacity}
		}
		c.queue.Push(func(l transport.Listener) { l.OnRoomList(rooms) })
	case wire.OpJoined:
		room, members := f.Room, f.Members
		c.queue.Push(func(l transport.Listener) {
			c.room = room
			c.members = append([]string(nil), members...)
			c.host = members[0]
			l.OnJoin(room, c.Members(), nil)
		})
	case wire.OpJoinFailed:
		room, err := f.Room, f.Err()
		c.queue.Push(func(l transport.Listener) { l.OnJoin(room, nil, err) })
	case wire.OpLeft:
		c.queue.Push(func(l transport.Listener) {
			c.clearRoom()
			l.OnLeave()
		})
	case wire.OpPeerJoined:
		id := f.Peer
		c.queue.Push(func(l transport.Listener) {
			c.members = append(c.members, id)
			l.OnPeerJoined(id)
		})
	case wire.OpPeerLeft:
		id, host := f.Peer, f.Host
		c.queue.Push(func(l transport.Listener) {
			c.removeMember(id)
			c.host = host
			l.OnPeerLeft(id, host)
		})
	case wire.OpEvent:
		sender, code, payload := f.Peer, protocol.Code(f.Code), f.Payload
		c.queue.Push(func(l transport.Listener) { l.OnEvent(sender, code, payload) })
	default:
		c.logger.Warnf("Unexpected %s from relay", f.Op)
	}
}

// finish tears the connection down and queues OnDisconnect.
func (c *Client) finish(stream wire.ClientStream, err error, shutdown string) {
	c.mu.Lock()
	if c.stream != stream {
		c.mu.Unlock()
		return
	}
	requested := c.closing
	c.connected, c.closing = false, false
	c.stream, c.cc, c.cancel = nil, nil, nil
	c.mu.Unlock()

	switch {
	case requested:
		err = nil
	case shutdown != "":
		err = fmt.Errorf("%w: %s", ErrShutdown, shutdown)
	case errors.Is(err, io.EOF):
		err = ErrShutdown
	case status.Code(err) == codes.Canceled:
		err = nil
	}
	if err != nil {
		c.logger.Warnf("Relay session ended: %v", err)
	}
	c.queue.Push(func(l transport.Listener) {
		c.clearRoom()
		l.OnDisconnect(err)
	})
}

func (c *Client) clearRoom() {
	c.room = ""
	c.members = nil
	c.host = ""
}

func (c *Client) removeMember(id string) {
	for i, m := range c.members {
		if m == id {
			c.members = append(c.members[:i], c.members[i+1:]...)
			return
		}
	}
}
