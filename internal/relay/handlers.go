package relay

import (
	"errors"
	"io"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/annelo/ghosttag/internal/relay/wire"
)

// Session handles one peer for the lifetime of its stream. The first frame
// must be OpConnect.
func (s *Server) Session(stream wire.SessionStream) error {
	first, err := stream.Recv()
	if err != nil {
		s.logger.Errorf("Error receiving first frame: %v", err)
		return status.Errorf(codes.Internal, "error receiving first frame: %v", err)
	}
	if first.Op != wire.OpConnect {
		return status.Errorf(codes.InvalidArgument, "expected %s, got %s", wire.OpConnect, first.Op)
	}

	conn := &clientConn{
		id:   uuid.NewString(),
		name: first.Name,
		out:  make(chan *wire.Frame, s.sendQueue),
	}
	s.mu.Lock()
	s.clients[conn.id] = conn
	conn.send(&wire.Frame{Op: wire.OpConnected, Peer: conn.id})
	s.mu.Unlock()
	sessionsActive.Add(1)
	s.logger.Infof("Peer %s (%s) connected", first.Name, conn.id)

	go s.receive(stream, conn)

	// Sender: пишем в стрим, пока очередь не закрыта
	for f := range conn.out {
		if err := stream.Send(f); err != nil {
			s.logger.Warnf("Send to peer %s error: %v", conn.id, err)
			s.drop(conn)
			return status.Errorf(codes.Unavailable, "send failed: %v", err)
		}
	}

	s.mu.Lock()
	overflow := conn.overflow
	s.mu.Unlock()
	if overflow {
		s.logger.Warnf("Peer %s disconnected: send queue overflow", conn.id)
		return status.Error(codes.ResourceExhausted, "send queue overflow")
	}
	return nil
}

// receive reads frames until the stream ends, then drops the session.
func (s *Server) receive(stream wire.SessionStream, conn *clientConn) {
	for {
		f, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
				s.logger.Infof("Connection lost for peer %s: %v", conn.id, err)
			}
			s.drop(conn)
			return
		}
		s.handleFrame(conn, f)
	}
}

// handleFrame routes one client frame.
func (s *Server) handleFrame(conn *clientConn, f *wire.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn.dropped {
		return
	}
	switch f.Op {
	case wire.OpListRooms:
		s.sendRoomsLocked(conn)
	case wire.OpCreateRoom:
		s.createLocked(conn, f.Room)
	case wire.OpJoinRoom:
		s.joinLocked(conn, f.Room)
	case wire.OpLeaveRoom:
		if !s.leaveLocked(conn.id) {
			s.logger.Debugf("Peer %s asked to leave outside a room", conn.id)
			return
		}
		conn.send(&wire.Frame{Op: wire.OpLeft})
	case wire.OpEvent:
		s.forwardLocked(conn, f)
	default:
		s.logger.Warnf("Unexpected %s from peer %s", f.Op, conn.id)
	}
}

func (s *Server) sendRoomsLocked(conn *clientConn) {
	list := s.lobby.List()
	rooms := make([]wire.RoomInfo, len(list))
	for i, r := range list {
		rooms[i] = wire.RoomInfo{Name: r.Name, Members: r.Members, Capacity: r.Capacity}
	}
	conn.send(&wire.Frame{Op: wire.OpRooms, Rooms: rooms})
}

func (s *Server) createLocked(conn *clientConn, name string) {
	room, err := s.lobby.Create(name, conn.id)
	if err != nil {
		s.logger.Infof("Peer %s cannot create %q: %v", conn.id, name, err)
		conn.send(wire.JoinFailed(name, err))
		return
	}
	roomsCreated.Add(1)
	s.logger.Infof("Peer %s created room %s", conn.id, room)
	conn.send(&wire.Frame{Op: wire.OpJoined, Room: room, Members: []string{conn.id}})
}

func (s *Server) joinLocked(conn *clientConn, name string) {
	members, err := s.lobby.Join(name, conn.id)
	if err != nil {
		s.logger.Infof("Peer %s cannot join %q: %v", conn.id, name, err)
		conn.send(wire.JoinFailed(name, err))
		return
	}
	s.logger.Infof("Peer %s joined room %s (%d members)", conn.id, name, len(members))
	conn.send(&wire.Frame{Op: wire.OpJoined, Room: name, Members: members})
	for _, id := range members {
		if id == conn.id {
			continue
		}
		if other, ok := s.clients[id]; ok {
			other.send(&wire.Frame{Op: wire.OpPeerJoined, Peer: conn.id})
		}
	}
}

// leaveLocked removes a peer from its room and tells the rest who left and
// who hosts now.
func (s *Server) leaveLocked(id string) bool {
	oldHost := ""
	if room, ok := s.lobby.RoomOf(id); ok {
		oldHost = s.lobby.Host(room)
	}
	room, host, remaining, err := s.lobby.Leave(id)
	if err != nil {
		return false
	}
	if host != "" && host != oldHost {
		hostMigrations.Add(1)
		s.logger.Infof("Room %s: host %s -> %s", room, oldHost, host)
	}
	for _, other := range remaining {
		if c, ok := s.clients[other]; ok {
			c.send(&wire.Frame{Op: wire.OpPeerLeft, Peer: id, Host: host})
		}
	}
	return true
}

// forwardLocked relays an event to the targets sharing the sender's room.
func (s *Server) forwardLocked(conn *clientConn, f *wire.Frame) {
	room, ok := s.lobby.RoomOf(conn.id)
	if !ok {
		s.logger.Debugf("Dropping %d-byte event from peer %s outside a room", len(f.Payload), conn.id)
		return
	}
	targets := f.Targets
	if f.Broadcast {
		targets = s.lobby.Members(room)
	}
	for _, id := range targets {
		if id == conn.id {
			continue
		}
		if r, ok := s.lobby.RoomOf(id); !ok || r != room {
			continue
		}
		c, ok := s.clients[id]
		if !ok {
			continue
		}
		c.send(&wire.Frame{Op: wire.OpEvent, Peer: conn.id, Code: f.Code, Payload: f.Payload})
		framesForwarded.Add(1)
	}
}

// drop ends a session: the peer leaves its room and its queue is closed.
func (s *Server) drop(conn *clientConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(conn, nil)
}

func (s *Server) dropLocked(conn *clientConn, last *wire.Frame) {
	if conn.dropped {
		return
	}
	conn.dropped = true
	if last != nil {
		conn.send(last)
	}
	conn.close()
	s.leaveLocked(conn.id)
	if s.clients[conn.id] == conn {
		delete(s.clients, conn.id)
	}
	sessionsActive.Add(-1)
	s.logger.Infof("Peer %s (%s) disconnected", conn.name, conn.id)
}
