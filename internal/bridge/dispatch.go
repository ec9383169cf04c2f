package bridge

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"go.klb.dev/clipbridge/internal/frame"
)

type eventKind uint8

const (
	evAccept eventKind = iota // new connection from the accept loop
	evData                    // bytes read from a live connection
	evClosed                  // reader hit EOF or a read error
)

type event struct {
	kind eventKind
	c    *conn
	data []byte
	err  error
}

// dispatch is the event loop. It is the only goroutine that registers or
// drops connections, assembles frames, applies peer text to the clipboard,
// and writes to sockets.
func (s *Server) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			s.closeAll()
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		case payload := <-s.pending:
			s.broadcast(payload, nil)
		}
	}
}

func (s *Server) handleEvent(ev event) {
	// A drop unregisters the conn but its reader may already have queued
	// events; ignore anything from a conn that is gone.
	if ev.kind != evAccept && ev.c.gone {
		return
	}

	switch ev.kind {
	case evAccept:
		s.handleAccept(ev.c)
	case evData:
		s.handleData(ev.c, ev.data)
	case evClosed:
		if errors.Is(ev.err, io.EOF) {
			slog.Info("client closed", "peer", ev.c.label)
		} else {
			slog.Info("recv error", "peer", ev.c.label, "err", ev.err)
		}
		s.drop(ev.c)
	}
}

// handleAccept registers the connection, pushes the current clipboard to it,
// and starts its reader. A brand-new connection that cannot take the initial
// push is unusable and dropped on the spot.
func (s *Server) handleAccept(c *conn) {
	s.reg.register(c)
	slog.Info("client connected", "peer", c.label, "clients", s.reg.len())

	if text, ok := s.clipboard.ReadText(initialReadLimit); ok && text != "" {
		payload, err := frame.Encode(text)
		if err != nil {
			slog.Warn("initial clipboard too large to push", "bytes", len(text))
		} else if err := s.writeFrame(c, payload); err != nil {
			slog.Warn("initial push failed", "peer", c.label, "err", err)
			s.drop(c)
			return
		} else {
			slog.Debug("pushed initial clipboard", "peer", c.label, "bytes", len(text))
		}
	}

	go s.readLoop(c)
}

// handleData appends the chunk to the connection's receive buffer and drains
// every complete frame from it. Peers may coalesce several frames into one
// read or split one frame across many.
func (s *Server) handleData(c *conn, data []byte) {
	c.rbuf = append(c.rbuf, data...)

	for {
		text, n, err := frame.DecodeNext(c.rbuf)
		switch {
		case errors.Is(err, frame.ErrInvalidUTF8):
			// Well-formed frame, bad payload: discard it, keep the conn.
			slog.Warn("utf-8 decode failed", "peer", c.label)
			c.rbuf = c.rbuf[:copy(c.rbuf, c.rbuf[n:])]
			continue
		case err != nil:
			// Bad type or bad length: the stream is corrupt.
			slog.Warn("protocol violation", "peer", c.label, "err", err)
			s.drop(c)
			return
		case n == 0:
			// No complete frame yet.
			return
		}

		raw := make([]byte, n)
		copy(raw, c.rbuf[:n])
		c.rbuf = c.rbuf[:copy(c.rbuf, c.rbuf[n:])]
		s.applyPeerText(c, text, raw)
	}
}

// applyPeerText records the text as peer-applied (so the watcher will not
// re-detect it as a local change), writes it through to the OS clipboard,
// and re-broadcasts the frame to every other peer.
func (s *Server) applyPeerText(origin *conn, text string, raw []byte) {
	s.syncMu.Lock()
	s.lastFromPeer = text
	s.syncMu.Unlock()

	ok := s.clipboard.WriteText(text)
	slog.Info("applied text from client", "peer", origin.label, "bytes", len(text), "ok", ok)

	s.broadcast(raw, origin)
}

// broadcast writes payload to every live connection except exclude. A failed
// write drops that connection only; the iteration continues.
func (s *Server) broadcast(payload []byte, exclude *conn) {
	sent := 0
	for _, c := range s.reg.snapshot() {
		if c == exclude {
			continue
		}
		if err := s.writeFrame(c, payload); err != nil {
			slog.Info("send failed, dropping client", "peer", c.label, "err", err)
			s.drop(c)
			continue
		}
		sent++
	}
	if sent > 0 {
		slog.Debug("broadcast frame", "clients", sent, "bytes", len(payload))
	}
}

// writeFrame performs one full-payload write, bounded by the write deadline
// so a stalled peer cannot wedge the dispatcher.
func (s *Server) writeFrame(c *conn, payload []byte) error {
	_ = c.sock.SetWriteDeadline(time.Now().Add(writeDeadline))
	_, err := c.sock.Write(payload)
	_ = c.sock.SetWriteDeadline(time.Time{})
	return err
}

// drop removes the connection from the registry and closes its socket.
// Idempotent; only ever called from the dispatcher.
func (s *Server) drop(c *conn) {
	if c.gone {
		return
	}
	c.gone = true
	s.reg.unregister(c)
	_ = c.sock.Close()
	slog.Info("client dropped", "peer", c.label, "clients", s.reg.len())
}

// closeAll tears down every live connection on shutdown.
func (s *Server) closeAll() {
	conns := s.reg.drain()
	for _, c := range conns {
		c.gone = true
		_ = c.sock.Close()
	}
	slog.Info("shutdown complete", "closed", len(conns))
}

// readLoop reads bounded chunks from one connection and forwards them to the
// dispatcher. It never touches the receive buffer or the registry itself.
func (s *Server) readLoop(c *conn) {
	buf := make([]byte, readChunk)
	for {
		n, err := c.sock.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.events <- event{kind: evData, c: c, data: data}:
			case <-s.stop:
				return
			}
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return // dropped by the dispatcher
			}
			select {
			case s.events <- event{kind: evClosed, c: c, err: err}:
			case <-s.stop:
			}
			return
		}
	}
}
