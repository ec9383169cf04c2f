// Package bridge implements the clipbridge broadcast server: a TCP hub that
// relays clipboard text frames between all connected peers and keeps the
// local system clipboard in sync with them.
//
// Concurrency model: a single dispatcher goroutine owns every registry
// mutation, every frame assembly, and every socket write. Per-connection
// reader goroutines and the clipboard watcher communicate with it only
// through channels, so no socket is ever written from two goroutines and
// per-connection receive buffers are never mutated concurrently.
package bridge

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/soheilhy/cmux"

	"go.klb.dev/clipbridge/internal/clip"
)

const (
	// DefaultPort is the default TCP bind port.
	DefaultPort = 28900

	// DefaultPollInterval is the default clipboard poll interval.
	DefaultPollInterval = 300 * time.Millisecond

	// MinPollInterval is the floor applied to configured poll intervals.
	MinPollInterval = 50 * time.Millisecond

	readChunk        = 64 * 1024
	writeDeadline    = 5 * time.Second
	initialReadLimit = 500 * time.Millisecond // clipboard read for the accept-time push
	pollReadLimit    = time.Second            // clipboard read per watcher tick
)

// Config holds the server configuration surface.
type Config struct {
	Host         string        // bind host; empty means all interfaces
	Port         int           // bind port; 0 outside tests means DefaultPort
	PollInterval time.Duration // clipboard poll interval, clamped to MinPollInterval
	Version      string        // reported by /status
}

func (c Config) addr() string {
	host := c.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.Port))
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	if c.PollInterval < MinPollInterval {
		return MinPollInterval
	}
	return c.PollInterval
}

// Server is the broadcast server. Lifecycle: New → Start → Shutdown.
type Server struct {
	cfg       Config
	clipboard clip.Port
	reg       *registry

	ln      net.Listener
	mux     cmux.CMux
	events  chan event
	pending chan []byte // encoded frames from the watcher, drained by the dispatcher
	stop    chan struct{}

	stopOnce sync.Once
	wg       sync.WaitGroup

	// Single-slot clipboard synchronization state (loop prevention).
	// Guarded by syncMu: written by both the watcher and the dispatcher.
	syncMu       sync.Mutex
	lastObserved string // last text seen on the OS clipboard by the watcher
	lastFromPeer string // last text applied to the OS clipboard on a peer's behalf
}

// New creates a server; it does not bind.
func New(cfg Config, clipboard clip.Port) *Server {
	return &Server{
		cfg:       cfg,
		clipboard: clipboard,
		reg:       newRegistry(),
		events:    make(chan event, 256),
		pending:   make(chan []byte, 64),
		stop:      make(chan struct{}),
	}
}

// Start binds the listen address and launches the accept loop, the
// dispatcher, the clipboard watcher, and the HTTP status surface. A bind
// failure is fatal and returned; everything after a successful bind is
// handled internally.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.addr(), err)
	}
	s.ln = ln
	slog.Info("listening", "addr", ln.Addr())

	// One bind port, two protocols: HTTP for /healthz and /status, the
	// binary frame protocol for everything else. A frame's first byte is
	// 0x01, which can never match an HTTP method.
	s.mux = cmux.New(ln)
	// Peers that wait for the initial push never send a byte, so sniffing
	// must be allowed to time out and fall through to the frame listener.
	s.mux.SetReadTimeout(200 * time.Millisecond)
	httpLn := s.mux.Match(cmux.HTTP1Fast())
	frameLn := s.mux.Match(cmux.Any())

	s.wg.Add(2)
	go s.dispatch()
	go s.watchLoop()
	go s.acceptLoop(frameLn)
	go func() {
		_ = http.Serve(httpLn, s.statusHandler())
	}()
	go func() {
		_ = s.mux.Serve()
	}()
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Shutdown stops the server: the dispatcher closes every registered
// connection and clears the registry, the watcher exits, and the listener is
// closed. Safe to call more than once and concurrently with the loops
// winding down.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.ln != nil {
			_ = s.ln.Close()
		}
	})
	s.wg.Wait()
}

// acceptLoop hands accepted connections to the dispatcher, which owns
// registration and the initial clipboard push.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		sock, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stop:
			default:
				slog.Error("accept failed", "err", err)
			}
			return
		}
		select {
		case s.events <- event{kind: evAccept, c: newConn(sock)}:
		case <-s.stop:
			_ = sock.Close()
			return
		}
	}
}
