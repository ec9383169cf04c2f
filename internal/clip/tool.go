package clip

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const writeTimeout = time.Second

// tool describes one external clipboard utility and its arguments.
type tool struct {
	name string
	args []string
}

// Priority order matters: Wayland first, then the two X11 tools.
var (
	readTools = []tool{
		{"wl-paste", []string{"--type", "text", "--no-newline"}},
		{"xclip", []string{"-selection", "clipboard", "-out"}},
		{"xsel", []string{"--clipboard", "--output"}},
	}
	writeTools = []tool{
		{"wl-copy", []string{"--type", "text"}},
		{"xclip", []string{"-selection", "clipboard", "-in"}},
		{"xsel", []string{"--clipboard", "--input"}},
	}
)

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// toolPort reads and writes the clipboard by shelling out to the first
// available external tool in each direction.
type toolPort struct {
	read  *resolvedTool // nil if no read tool installed
	write *resolvedTool // nil if no write tool installed
}

type resolvedTool struct {
	path string
	args []string
}

// newToolPort resolves the read and write tools once. Returns nil when
// neither direction has a usable tool.
func newToolPort() *toolPort {
	p := &toolPort{
		read:  resolve(readTools),
		write: resolve(writeTools),
	}
	if p.read == nil && p.write == nil {
		return nil
	}
	return p
}

func resolve(candidates []tool) *resolvedTool {
	for _, t := range candidates {
		path, err := lookPath(t.name)
		if err != nil {
			continue
		}
		return &resolvedTool{path: path, args: t.args}
	}
	return nil
}

func (p *toolPort) Name() string {
	var parts []string
	if p.read != nil {
		parts = append(parts, "read="+p.read.path)
	}
	if p.write != nil {
		parts = append(parts, "write="+p.write.path)
	}
	return "tools (" + strings.Join(parts, ", ") + ")"
}

func (p *toolPort) ReadText(timeout time.Duration) (string, bool) {
	if p.read == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, p.read.path, p.read.args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		slog.Debug("clipboard read failed", "tool", p.read.path, "err", err)
		return "", false
	}
	return out.String(), true
}

func (p *toolPort) WriteText(text string) bool {
	if p.write == nil {
		slog.Warn("no clipboard writer available")
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.write.path, p.write.args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		slog.Debug("clipboard write failed", "tool", p.write.path, "err", err)
		return false
	}
	return true
}
