// Package wire describes the relay session stream: one bidirectional gRPC
// stream per peer carrying msgpack-encoded frames.
//
// There is no .proto for the relay. The service descriptor below is what
// protoc-gen-go-grpc would emit for
//
//	service Relay { rpc Session(stream Frame) returns (stream Frame); }
//
// and Codec replaces the protobuf codec on both ends.
package wire

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const (
	ServiceName   = "ghosttag.Relay"
	SessionMethod = "/" + ServiceName + "/Session"
)

// Op is the frame kind.
type Op uint8

const (
	// client -> relay
	OpConnect Op = iota + 1 // Name
	OpListRooms
	OpCreateRoom // Room; empty asks for a generated name
	OpJoinRoom   // Room
	OpLeaveRoom

	// relay -> client
	OpConnected  // Peer is the assigned id
	OpRooms      // Rooms
	OpJoined     // Room, Members in join order
	OpJoinFailed // Room, Status, Error
	OpLeft
	OpPeerJoined // Peer
	OpPeerLeft   // Peer, Host
	OpShutdown   // Error is the reason

	// both ways: Code, Payload; Targets or Broadcast upstream, Peer (sender) downstream
	OpEvent
)

var opNames = map[Op]string{
	OpConnect:    "connect",
	OpListRooms:  "listRooms",
	OpCreateRoom: "createRoom",
	OpJoinRoom:   "joinRoom",
	OpLeaveRoom:  "leaveRoom",
	OpConnected:  "connected",
	OpRooms:      "rooms",
	OpJoined:     "joined",
	OpJoinFailed: "joinFailed",
	OpLeft:       "left",
	OpPeerJoined: "peerJoined",
	OpPeerLeft:   "peerLeft",
	OpShutdown:   "shutdown",
	OpEvent:      "event",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// RoomInfo is a lobby listing entry.
type RoomInfo struct {
	Name     string `msgpack:"name"`
	Members  int    `msgpack:"members"`
	Capacity int    `msgpack:"capacity"`
}

// Frame is the single message type of the session stream.
type Frame struct {
	Op        Op         `msgpack:"op"`
	Name      string     `msgpack:"name,omitempty"`
	Room      string     `msgpack:"room,omitempty"`
	Peer      string     `msgpack:"peer,omitempty"`
	Host      string     `msgpack:"host,omitempty"`
	Members   []string   `msgpack:"members,omitempty"`
	Rooms     []RoomInfo `msgpack:"rooms,omitempty"`
	Code      uint8      `msgpack:"code,omitempty"`
	Payload   []byte     `msgpack:"payload,omitempty"`
	Targets   []string   `msgpack:"targets,omitempty"`
	Broadcast bool       `msgpack:"broadcast,omitempty"`
	Status    uint32     `msgpack:"status,omitempty"`
	Error     string     `msgpack:"error,omitempty"`
}

// RelayServer is implemented by the relay.
type RelayServer interface {
	Session(SessionStream) error
}

// SessionStream is the relay side of one session.
type SessionStream interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ServerStream
}

// ClientStream is the peer side of one session.
type ClientStream interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ClientStream
}

// ServiceDesc registers a RelayServer on a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Session",
			Handler:       sessionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "ghosttag/relay",
}

// Register attaches srv to s. The server must be created with
// grpc.ForceServerCodec(Codec{}).
func Register(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// OpenSession starts a session stream on cc.
func OpenSession(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (ClientStream, error) {
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], SessionMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &sessionClient{stream}, nil
}

func sessionHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(RelayServer).Session(&sessionServer{stream})
}

type sessionServer struct {
	grpc.ServerStream
}

func (x *sessionServer) Send(f *Frame) error { return x.ServerStream.SendMsg(f) }

func (x *sessionServer) Recv() (*Frame, error) {
	f := new(Frame)
	if err := x.ServerStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

type sessionClient struct {
	grpc.ClientStream
}

func (x *sessionClient) Send(f *Frame) error { return x.ClientStream.SendMsg(f) }

func (x *sessionClient) Recv() (*Frame, error) {
	f := new(Frame)
	if err := x.ClientStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}
