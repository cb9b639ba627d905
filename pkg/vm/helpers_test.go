package vm

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zurustar/dimscript/pkg/script"
	"github.com/zurustar/dimscript/pkg/surface"
)

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves the clock forward and runs every timer that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.timers = slices.DeleteFunc(c.timers, func(t *fakeTimer) bool { return t.done })
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// Active returns the number of pending timers.
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// fakeDialog answers prompts from a fixed script.
type fakeDialog struct {
	mu       sync.Mutex
	alerts   []string
	messages []string
	answer   string
	ok       bool
	confirm  bool
}

func (d *fakeDialog) Alert(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, message)
}

func (d *fakeDialog) Prompt(message string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, message)
	return d.answer, d.ok
}

func (d *fakeDialog) Confirm(message string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, message)
	return d.confirm
}

// fakeAudio records played URLs. Play blocks until release is closed, if set.
type fakeAudio struct {
	mu      sync.Mutex
	played  []string
	release chan struct{}
	err     error
}

func (a *fakeAudio) Play(ctx context.Context, url string) error {
	a.mu.Lock()
	a.played = append(a.played, url)
	release := a.release
	a.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return a.err
}

func (a *fakeAudio) Played() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.played)
}

// newTestVM creates a VM over a fresh scene with a fake clock.
func newTestVM(t *testing.T, opts ...Option) (*VM, *surface.Scene, *fakeClock) {
	t.Helper()
	scene := surface.NewScene()
	clock := newFakeClock()
	opts = append([]Option{
		WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	vm := New(scene, scene, opts...)
	t.Cleanup(vm.Close)
	return vm, scene, clock
}

// runScript runs src to completion.
func runScript(t *testing.T, vm *VM, src string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := vm.Run(ctx, script.Parse("test.dms", src)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

// lines joins source lines.
func lines(src ...string) string {
	return strings.Join(src, "\n")
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// diagnostics returns the console lines that are diagnostics.
func diagnostics(scene *surface.Scene) []string {
	var out []string
	for _, l := range scene.Lines() {
		if strings.HasPrefix(l, "! ") {
			out = append(out, l)
		}
	}
	return out
}
