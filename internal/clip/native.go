package clip

import (
	"log/slog"
	"time"

	"golang.design/x/clipboard"
)

// nativePort uses golang.design/x/clipboard directly. It is the fallback for
// hosts where none of the external tools are installed but a display server
// is reachable. clipboard.Init is called here rather than in an init func so
// that tool-backed and headless setups never touch the display at all.
type nativePort struct{}

func newNativePort() Port {
	if err := clipboard.Init(); err != nil {
		slog.Debug("native clipboard unavailable", "err", err)
		return nil
	}
	return nativePort{}
}

func (nativePort) Name() string { return "native (golang.design/x/clipboard)" }

// ReadText ignores the timeout: the native read is an in-process call with
// no external process to bound.
func (nativePort) ReadText(time.Duration) (string, bool) {
	return string(clipboard.Read(clipboard.FmtText)), true
}

func (nativePort) WriteText(text string) bool {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return true
}
