package relay

import "github.com/annelo/ghosttag/internal/relay/wire"

// clientConn is one peer session. All fields besides id and name are
// guarded by Server.mu.
type clientConn struct {
	id   string
	name string
	out  chan *wire.Frame

	closed   bool
	overflow bool
	dropped  bool
}

// send enqueues a frame without blocking. A full queue closes the session:
// a peer that cannot keep up would otherwise stall its whole room.
func (c *clientConn) send(f *wire.Frame) {
	if c.closed {
		return
	}
	select {
	case c.out <- f:
	default:
		c.overflow = true
		c.close()
		slowDisconnects.Add(1)
	}
}

func (c *clientConn) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}
