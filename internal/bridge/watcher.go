package bridge

import (
	"log/slog"
	"time"

	"go.klb.dev/clipbridge/internal/frame"
)

// watchLoop polls the OS clipboard at the configured interval and queues
// genuine local changes for broadcast. It owns no sockets: it only ever
// enqueues pre-encoded frames.
func (s *Server) watchLoop() {
	defer s.wg.Done()

	interval := s.cfg.pollInterval()
	slog.Info("clipboard watcher started", "poll", interval, "backend", s.clipboard.Name())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.pollOnce()
		}
	}
}

// pollOnce performs one watcher tick.
//
// A read is treated as a genuine local change only when the text differs
// from the last value this loop observed, differs from the last value a
// peer had us write (that is the anti-echo guard: without it a peer's
// update would come back off the clipboard and be re-broadcast as new),
// and is non-empty. lastObserved is updated unconditionally so repeated
// identical reads never re-trigger.
func (s *Server) pollOnce() {
	text, ok := s.clipboard.ReadText(pollReadLimit)
	if !ok {
		slog.Debug("clipboard read returned not-ok")
		return
	}

	s.syncMu.Lock()
	fresh := text != s.lastObserved && text != s.lastFromPeer && text != ""
	if fresh {
		s.lastFromPeer = text
	}
	s.lastObserved = text
	s.syncMu.Unlock()

	if !fresh {
		return
	}

	payload, err := frame.Encode(text)
	if err != nil {
		slog.Warn("clipboard change too large to broadcast", "bytes", len(text))
		return
	}
	select {
	case s.pending <- payload:
		slog.Info("queued clipboard change", "bytes", len(text))
	default:
		slog.Warn("broadcast queue full, dropping clipboard change")
	}
}
