package bridge

import (
	"net"
	"sync"
	"time"
)

// conn is one peer session. The receive buffer and the gone flag are owned
// by the dispatcher goroutine; everything else is immutable after accept.
type conn struct {
	sock        net.Conn
	label       string // remote address, for logs and /status
	connectedAt time.Time

	rbuf []byte // bytes received but not yet assembled into a frame
	gone bool   // set by the dispatcher when the conn is dropped
}

func newConn(sock net.Conn) *conn {
	return &conn{
		sock:        sock,
		label:       sock.RemoteAddr().String(),
		connectedAt: time.Now(),
	}
}

// registry is the thread-safe set of live connections. The lock guards pure
// map mutation only and is never held across socket I/O: callers take a
// snapshot and iterate outside the lock.
type registry struct {
	mu    sync.Mutex
	conns map[*conn]struct{}
}

func newRegistry() *registry {
	return &registry{conns: make(map[*conn]struct{})}
}

func (r *registry) register(c *conn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

// unregister reports whether c was present.
func (r *registry) unregister(c *conn) bool {
	r.mu.Lock()
	_, ok := r.conns[c]
	delete(r.conns, c)
	r.mu.Unlock()
	return ok
}

// snapshot returns a point-in-time copy of the live connections, safe to
// iterate while the registry keeps changing.
func (r *registry) snapshot() []*conn {
	r.mu.Lock()
	out := make([]*conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	r.mu.Unlock()
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// drain removes and returns every connection. Used during shutdown.
func (r *registry) drain() []*conn {
	r.mu.Lock()
	out := make([]*conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	r.conns = make(map[*conn]struct{})
	r.mu.Unlock()
	return out
}
