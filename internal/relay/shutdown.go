package relay

import (
	"fmt"

	"github.com/annelo/ghosttag/internal/relay/wire"
)

// Kick disconnects one peer with a shutdown frame.
func (s *Server) Kick(peer, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.clients[peer]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	if reason == "" {
		reason = "kicked"
	}
	s.dropLocked(conn, &wire.Frame{Op: wire.OpShutdown, Error: reason})
	return nil
}

// DisconnectAllClients sends a shutdown frame to every peer and closes their
// sessions. It returns how many were connected.
func (s *Server) DisconnectAllClients() int {
	s.logger.Info("Disconnecting all peers...")
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := make([]*clientConn, 0, len(s.clients))
	for _, c := range s.clients {
		conns = append(conns, c)
	}
	for _, c := range conns {
		s.dropLocked(c, &wire.Frame{Op: wire.OpShutdown, Error: "relay is shutting down"})
	}
	s.logger.Infof("Disconnected %d peers", len(conns))
	return len(conns)
}

// Stop disconnects every peer. The caller stops the grpc.Server afterwards.
func (s *Server) Stop() {
	s.DisconnectAllClients()
}
