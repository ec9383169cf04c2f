package clip

import (
	"errors"
	"testing"
	"time"
)

// withLookPath installs a fake exec.LookPath for the duration of a test.
func withLookPath(t *testing.T, installed map[string]string) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if path, ok := installed[name]; ok {
			return path, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestResolvePriorityOrder(t *testing.T) {
	withLookPath(t, map[string]string{
		"wl-paste": "/usr/bin/wl-paste",
		"xclip":    "/usr/bin/xclip",
		"xsel":     "/usr/bin/xsel",
	})
	r := resolve(readTools)
	if r == nil || r.path != "/usr/bin/wl-paste" {
		t.Fatalf("resolve = %+v, want wl-paste first", r)
	}
}

func TestResolveFallsBack(t *testing.T) {
	withLookPath(t, map[string]string{"xsel": "/usr/bin/xsel"})
	r := resolve(readTools)
	if r == nil || r.path != "/usr/bin/xsel" {
		t.Fatalf("resolve = %+v, want xsel", r)
	}
	if len(r.args) != 2 || r.args[0] != "--clipboard" || r.args[1] != "--output" {
		t.Errorf("xsel read args = %v", r.args)
	}
}

func TestNewToolPortNoneInstalled(t *testing.T) {
	withLookPath(t, nil)
	if p := newToolPort(); p != nil {
		t.Errorf("newToolPort = %v, want nil with no tools on PATH", p.Name())
	}
}

func TestToolPortDirectionsIndependent(t *testing.T) {
	// Only a writer installed: reads report no value, writes resolve.
	withLookPath(t, map[string]string{"wl-copy": "/usr/bin/wl-copy"})
	p := newToolPort()
	if p == nil {
		t.Fatal("newToolPort = nil, want write-only port")
	}
	if p.read != nil {
		t.Errorf("read tool = %+v, want nil", p.read)
	}
	if p.write == nil || p.write.path != "/usr/bin/wl-copy" {
		t.Errorf("write tool = %+v, want wl-copy", p.write)
	}
	if _, ok := p.ReadText(time.Second); ok {
		t.Error("ReadText ok = true without a read tool")
	}
}

func TestHeadlessPort(t *testing.T) {
	var p Port = headlessPort{}
	if _, ok := p.ReadText(time.Second); ok {
		t.Error("headless ReadText ok = true, want false")
	}
	if !p.WriteText("discarded") {
		t.Error("headless WriteText = false, want true (silent discard)")
	}
}
