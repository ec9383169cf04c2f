// Package clip provides best-effort access to the system clipboard.
//
// Backends are tried in a fixed priority order, first available wins:
//
//	wl-paste/wl-copy  — Wayland (wl-clipboard)
//	xclip             — X11
//	xsel              — X11
//	native            — golang.design/x/clipboard, when no tool is installed
//	headless          — no-op stub for containers and CI
//
// The selection happens once, in New. All backends are safe to call from any
// goroutine and never block past their stated timeout; failures degrade to
// ok=false rather than errors, so a missing clipboard never takes the server
// down.
package clip

import (
	"log/slog"
	"time"
)

// Port is the two-method clipboard contract the server core depends on.
type Port interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ReadText returns the current clipboard text. ok=false means no backend
	// was able to produce a value this time; ok=true with text=="" is a
	// valid empty clipboard.
	ReadText(timeout time.Duration) (text string, ok bool)

	// WriteText replaces the clipboard text. Failures are logged here and
	// reported as ok=false, never raised to the caller.
	WriteText(text string) (ok bool)
}

// New selects a clipboard backend. It never fails: with no tool installed
// and no native clipboard available it returns a no-op backend.
func New() Port {
	if p := newToolPort(); p != nil {
		return p
	}
	if p := newNativePort(); p != nil {
		return p
	}
	slog.Warn("no clipboard backend available, running headless")
	return headlessPort{}
}

// headlessPort is the no-op backend for environments without a clipboard
// (headless servers, containers). Reads report no value; writes are
// discarded.
type headlessPort struct{}

func (headlessPort) Name() string                          { return "headless (no-op)" }
func (headlessPort) ReadText(time.Duration) (string, bool) { return "", false }
func (headlessPort) WriteText(string) bool                 { return true }
