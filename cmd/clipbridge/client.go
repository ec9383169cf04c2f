package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/bridge"
	"go.klb.dev/clipbridge/internal/clip"
	"go.klb.dev/clipbridge/internal/frame"
)

const (
	dialTimeout      = 10 * time.Second
	sendDeadline     = 5 * time.Second
	clipReadTimeout  = time.Second
	reconnectInitial = time.Second
	reconnectMax     = 30 * time.Second
)

func newClientCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a clipbridge server and sync the local clipboard",
		Long: `Connects to a clipbridge server and keeps the local system clipboard in
sync with the server's host and all other connected peers. Reconnects
automatically on disconnect.

Config file search order:
  /etc/clipbridge/clipbridge.toml
  $HOME/.config/clipbridge/clipbridge.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPBRIDGE_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runClient(v) },
	}

	f := cmd.Flags()
	f.String("server", defaultServerAddr(), "clipbridge server address (host:port)")
	f.Int("poll-ms", int(bridge.DefaultPollInterval/time.Millisecond),
		"local clipboard poll interval in milliseconds (floor 50)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runClient(v *viper.Viper) error {
	setupLogging(v)

	serverAddr := v.GetString("server")
	poll := time.Duration(v.GetInt("poll-ms")) * time.Millisecond
	if poll < bridge.MinPollInterval {
		poll = bridge.MinPollInterval
	}

	backend := clip.New()
	slog.Info("clipbridge client starting",
		"version", Version,
		"server", serverAddr,
		"poll", poll,
		"backend", backend.Name(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectLoop(ctx, serverAddr, poll, backend)
	return nil
}

// connectLoop dials the server and runs sessions until ctx is cancelled,
// reconnecting with exponential backoff.
func connectLoop(ctx context.Context, serverAddr string, poll time.Duration, backend clip.Port) {
	delay := reconnectInitial
	for {
		slog.Info("connecting", "addr", serverAddr)
		conn, err := net.DialTimeout("tcp", serverAddr, dialTimeout)
		if err != nil {
			slog.Warn("connection failed", "err", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay < reconnectMax {
				delay *= 2
			}
			continue
		}
		delay = reconnectInitial
		slog.Info("connected")
		runSession(ctx, conn, poll, backend)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// syncGuard is the client-side single-slot loop prevention: the same
// lastObserved / lastApplied pair the server keeps, shared between the
// session reader (applies server frames) and the local clipboard poller.
type syncGuard struct {
	mu           sync.Mutex
	lastObserved string
	lastApplied  string
}

// noteApplied records text the server sent, before it is written to the
// local clipboard, so the poller will not send it back as a local change.
func (g *syncGuard) noteApplied(text string) {
	g.mu.Lock()
	g.lastApplied = text
	g.mu.Unlock()
}

// localChange reports whether text is a genuine local change and updates the
// state. lastObserved is updated unconditionally.
func (g *syncGuard) localChange(text string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	fresh := text != g.lastObserved && text != g.lastApplied && text != ""
	if fresh {
		g.lastApplied = text
	}
	g.lastObserved = text
	return fresh
}

// runSession runs one connected session: a reader goroutine applying server
// frames to the local clipboard, and a poll loop sending local changes.
// Returns when the connection dies or ctx is cancelled.
func runSession(ctx context.Context, conn net.Conn, poll time.Duration, backend clip.Port) {
	defer conn.Close()

	var guard syncGuard

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			text, err := frame.Read(conn)
			if errors.Is(err, frame.ErrInvalidUTF8) {
				// The frame was fully consumed; skip the payload.
				slog.Warn("utf-8 decode failed, skipping frame")
				continue
			}
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					slog.Info("server connection closed", "err", err)
				}
				return
			}
			guard.noteApplied(text)
			ok := backend.WriteText(text)
			slog.Info("applied text from server", "bytes", len(text), "ok", ok)
		}
	}()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			return
		case <-ticker.C:
			text, ok := backend.ReadText(clipReadTimeout)
			if !ok || !guard.localChange(text) {
				continue
			}
			payload, err := frame.Encode(text)
			if err != nil {
				slog.Warn("clipboard change too large to send", "bytes", len(text))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(sendDeadline))
			_, err = conn.Write(payload)
			_ = conn.SetWriteDeadline(time.Time{})
			if err != nil {
				slog.Error("send failed", "err", err)
				return
			}
			slog.Debug("sent local clipboard change", "bytes", len(text))
		}
	}
}
