// Package relay реализует gRPC-ретранслятор комнат: лобби, порядок входа,
// пересылку событий между участниками и миграцию хоста.
//
// Ретранслятор не знает ничего о состоянии игры: payload событий
// пересылается как есть.
package relay

import (
	"errors"
	"expvar"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/annelo/ghosttag/internal/lobby"
	"github.com/annelo/ghosttag/internal/relay/wire"
)

// ErrUnknownPeer is returned by Kick for ids without a session.
var ErrUnknownPeer = errors.New("relay: unknown peer")

const (
	// DefaultSendQueue is the per-session outbound buffer.
	DefaultSendQueue = 1024
)

var (
	sessionsActive  = counter("relay_sessions")
	framesForwarded = counter("relay_events_forwarded")
	slowDisconnects = counter("relay_slow_disconnects")
	roomsCreated    = counter("relay_rooms_created")
	hostMigrations  = counter("relay_host_migrations")
)

// counter returns the published expvar.Int, creating it on first use.
func counter(name string) *expvar.Int {
	if v, ok := expvar.Get(name).(*expvar.Int); ok {
		return v
	}
	return expvar.NewInt(name)
}

// Options configure a Server.
type Options struct {
	// RoomCapacity limits room size; <= 0 uses lobby.DefaultCapacity.
	RoomCapacity int
	// SendQueue is the per-session outbound buffer; <= 0 uses DefaultSendQueue.
	SendQueue int
	Logger    *zap.SugaredLogger
}

// Server is the relay service.
type Server struct {
	logger    *zap.SugaredLogger
	sendQueue int

	// Мьютекс защищает лобби и все очереди клиентов
	mu      sync.Mutex
	lobby   *lobby.Lobby
	clients map[string]*clientConn
}

var _ wire.RelayServer = (*Server)(nil)

// NewServer создает ретранслятор с пустым лобби.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	queue := opts.SendQueue
	if queue <= 0 {
		queue = DefaultSendQueue
	}
	return &Server{
		logger:    logger,
		sendQueue: queue,
		lobby:     lobby.New(opts.RoomCapacity),
		clients:   make(map[string]*clientConn),
	}
}

// RegisterServer registers the relay on the given gRPC server.
func (s *Server) RegisterServer(grpcServer *grpc.Server) {
	wire.Register(grpcServer, s)
}

// Rooms returns the lobby listing.
func (s *Server) Rooms() []lobby.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.List()
}

// RoomMembers returns the members of a room in join order.
func (s *Server) RoomMembers(room string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.Members(room)
}

// Sessions returns the number of connected peers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
