package vm

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/zurustar/dimscript/pkg/script"
	"github.com/zurustar/dimscript/pkg/surface"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"print hi", []string{"> hi"}},
		{"if true", []string{"! 'if' cannot be used in a trigger"}},
		{"end", []string{"! 'end' cannot be used in a trigger"}},
		{"signal2 s", []string{"! 'signal2' cannot be used in a trigger"}},
		{"forever", []string{"! 'forever' cannot be used in a trigger"}},
		{"wait 10", []string{"! 'wait' cannot be used in a trigger"}},
		{"nope", []string{"! unknown command: nope"}},
		{"   ", nil},
		{"// comment", nil},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			vm, scene, _ := newTestVM(t)
			vm.Execute(tt.command)
			if got := scene.Lines(); !slices.Equal(got, tt.want) {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("signal sets the flag only", func(t *testing.T) {
		vm, scene, _ := newTestVM(t)
		vm.Execute("signal go")
		if !vm.Signal("go") {
			t.Error("expected signal go to be set")
		}
		if len(scene.Lines()) != 0 {
			t.Errorf("output = %q", scene.Lines())
		}
	})

	t.Run("shares variables with the run", func(t *testing.T) {
		vm, scene, _ := newTestVM(t)
		runScript(t, vm, "set n = 41")
		vm.Execute("set n = n + 1")
		vm.Execute("print $n")
		if got := scene.Lines(); !slices.Equal(got, []string{"> 42"}) {
			t.Errorf("output = %q", got)
		}
	})
}

func TestTimers(t *testing.T) {
	t.Run("fires after the delay", func(t *testing.T) {
		vm, scene, clock := newTestVM(t)
		runScript(t, vm, lines("set n = 1", "timer tick 100 print $n"))
		vm.Execute("set n = 2")

		clock.Advance(99 * time.Millisecond)
		if len(scene.Lines()) != 0 {
			t.Fatalf("fired early: %q", scene.Lines())
		}
		clock.Advance(time.Millisecond)
		waitFor(t, "timer output", func() bool { return len(scene.Lines()) == 1 })

		// resolved when it fires, not when scheduled
		if got := scene.Lines()[0]; got != "> 2" {
			t.Errorf("output = %q, want > 2", got)
		}
	})

	t.Run("same name replaces", func(t *testing.T) {
		vm, scene, clock := newTestVM(t)
		runScript(t, vm, lines("timer t 100 print old", "timer t 200 print new"))
		if clock.Active() != 1 {
			t.Fatalf("active timers = %d, want 1", clock.Active())
		}
		clock.Advance(200 * time.Millisecond)
		waitFor(t, "timer output", func() bool { return len(scene.Lines()) == 1 })
		if got := scene.Lines(); !slices.Equal(got, []string{"> new"}) {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("stoptimer cancels", func(t *testing.T) {
		vm, _, clock := newTestVM(t)
		runScript(t, vm, lines("timer t 100 print x", "stoptimer t", "stoptimer unknown"))
		if clock.Active() != 0 {
			t.Errorf("active timers = %d, want 0", clock.Active())
		}
	})

	t.Run("timer can start a timer", func(t *testing.T) {
		vm, scene, clock := newTestVM(t)
		runScript(t, vm, lines("timer a 10 timer b 10 print chained"))
		clock.Advance(10 * time.Millisecond)
		waitFor(t, "second timer", func() bool { return clock.Active() == 1 })
		clock.Advance(10 * time.Millisecond)
		waitFor(t, "chained output", func() bool { return len(scene.Lines()) == 1 })
	})

	t.Run("reset cancels pending timers", func(t *testing.T) {
		vm, scene, clock := newTestVM(t)
		runScript(t, vm, lines("timer t 100 print late"))
		vm.Reset()
		if clock.Active() != 0 {
			t.Errorf("active timers = %d, want 0", clock.Active())
		}
		clock.Advance(time.Second)
		if vm.Pending() != 0 || len(scene.Lines()) != 0 {
			t.Error("expected nothing to run after Reset")
		}
	})

	t.Run("outlives the run context", func(t *testing.T) {
		vm, scene, clock := newTestVM(t)
		ctx, cancel := context.WithCancel(context.Background())
		if err := vm.Run(ctx, script.Parse("t", "timer tick 10 print fired")); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		cancel()

		clock.Advance(10 * time.Millisecond)
		waitFor(t, "timer output", func() bool { return len(scene.Lines()) == 1 })
		if got := scene.Lines()[0]; got != "> fired" {
			t.Errorf("output = %q, want > fired", got)
		}
	})
}

func TestCancelStopsOnlyMainLoop(t *testing.T) {
	vm, scene, clock := newTestVM(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- vm.Run(ctx, script.Parse("t", lines("timer tick 10 print fired", "wait 100000", "print after")))
	}()
	waitFor(t, "wait to start", func() bool { return clock.Active() == 2 })
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return on cancel")
	}

	clock.Advance(10 * time.Millisecond)
	waitFor(t, "timer output", func() bool { return len(scene.Lines()) == 1 })
	if got := scene.Lines(); !slices.Equal(got, []string{"> fired"}) {
		t.Errorf("output = %q, want only > fired", got)
	}
}

func TestButtonClick(t *testing.T) {
	vm, scene, _ := newTestVM(t)
	runScript(t, vm, lines("set n = 0", "button 10 20 Go print clicked, set n = n + 1"))

	vm.PushPointer(PointerEvent{Kind: PointerClick, X: 15, Y: 25})
	waitFor(t, "click handler", func() bool {
		return vm.Variables()["n"].Number() == 1
	})
	if got := scene.Lines(); !slices.Equal(got, []string{"> clicked"}) {
		t.Errorf("output = %q", got)
	}

	// a miss does nothing
	vm.PushPointer(PointerEvent{Kind: PointerClick, X: 500, Y: 500})
	if vm.Pending() != 0 {
		t.Error("expected no trigger for a miss")
	}
}

func TestStaleTriggersAreDropped(t *testing.T) {
	vm, scene, _ := newTestVM(t)
	runScript(t, vm, lines("button 0 0 Go print clicked"))
	e := element(t, vm, "Go")
	old := vm.current()

	vm.Reset()
	e.Click()
	if vm.Pending() != 0 {
		t.Error("expected click of a reset run not to be queued")
	}

	// an event already queued for the old generation is dropped by the dispatcher
	vm.handleEvent(NewEvent(EventClick, old.gen, "Go", "print stale"))
	if len(scene.Lines()) != 0 {
		t.Errorf("output = %q, want empty", scene.Lines())
	}
}

func TestTouch(t *testing.T) {
	t.Run("touch2 fires on release over the element", func(t *testing.T) {
		vm, scene, _ := newTestVM(t)
		runScript(t, vm, lines("rect pad 0 0 50 50", "touch2 pad print released"))

		vm.PushPointer(PointerEvent{Kind: TouchMove, X: 10, Y: 10})
		if !vm.current().isTouching("pad") {
			t.Fatal("expected pad to be touched")
		}
		vm.PushPointer(PointerEvent{Kind: TouchEnd})
		waitFor(t, "release handler", func() bool { return len(scene.Lines()) == 1 })
		if got := scene.Lines()[0]; got != "> released" {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("touch2 ignores a release elsewhere", func(t *testing.T) {
		vm, _, _ := newTestVM(t)
		runScript(t, vm, lines("rect pad 0 0 50 50", "touch2 pad print released"))

		vm.PushPointer(PointerEvent{Kind: TouchMove, X: 10, Y: 10})
		vm.PushPointer(PointerEvent{Kind: TouchMove, X: 80, Y: 80})
		vm.PushPointer(PointerEvent{Kind: TouchEnd})
		if vm.Pending() != 0 {
			t.Error("expected no trigger")
		}
	})

	t.Run("touch chains onto the click handler", func(t *testing.T) {
		vm, scene, _ := newTestVM(t)
		runScript(t, vm, lines("button 0 0 Go print button", "touch Go print touch"))

		vm.PushPointer(PointerEvent{Kind: PointerClick, X: 5, Y: 5})
		waitFor(t, "both handlers", func() bool { return len(scene.Lines()) == 2 })
		if got := scene.Lines(); !slices.Equal(got, []string{"> button", "> touch"}) {
			t.Errorf("output = %q", got)
		}
	})

	t.Run("endtouch silences the binding", func(t *testing.T) {
		vm, _, _ := newTestVM(t)
		runScript(t, vm, lines("rect pad 0 0 50 50", "touch pad print touch", "endtouch pad"))

		vm.PushPointer(PointerEvent{Kind: PointerClick, X: 5, Y: 5})
		if vm.Pending() != 0 {
			t.Error("expected no trigger after endtouch")
		}
	})

	t.Run("touch on a missing element", func(t *testing.T) {
		vm, scene, _ := newTestVM(t)
		runScript(t, vm, lines("touch2 ghost print x"))
		if got := diagnostics(scene); !slices.Equal(got, []string{"! element 'ghost' not found"}) {
			t.Errorf("diagnostics = %q", got)
		}
	})
}

func TestGestureTracking(t *testing.T) {
	rc := newRunContext(t.Context(), 1, nil, nil)
	scene := surface.NewScene()
	e, err := scene.CreateElement(surface.KindRect, "ball", surface.Attrs{X: 90, Y: 90, Width: 20, Height: 20})
	if err != nil {
		t.Fatal(err)
	}
	rc.registerElement("ball", e)

	rc.trackPointer(100, 50) // 50 from the centre
	rc.pushGesture("ball", e, 3)

	rc.trackPointer(100, 20)
	if g := rc.gestures.top(); !g.isMoving || g.lastDistance != 80 {
		t.Errorf("moving away: %+v", *g)
	}
	rc.trackPointer(100, 40)
	if g := rc.gestures.top(); g.isMoving {
		t.Errorf("moving closer: %+v", *g)
	}
}

func TestWhileFingerMoving(t *testing.T) {
	vm, scene, _ := newTestVM(t)
	runScript(t, vm, lines(
		"circle ball 100 100 10",
		"while finger moving ball",
		"print inside",
		"end",
		"print done",
	))
	// the pointer has not moved, so the frame pops at its first end
	if got := scene.Lines(); !slices.Equal(got, []string{"> inside", "> done"}) {
		t.Errorf("output = %q", got)
	}

	vm2, scene2, _ := newTestVM(t)
	runScript(t, vm2, lines("while finger moving ghost", "end", "print done"))
	want := []string{"! element 'ghost' not found", "! no open loop or signal for 'end'", "> done"}
	if got := scene2.Lines(); !slices.Equal(got, want) {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestClose(t *testing.T) {
	vm, _, _ := newTestVM(t)
	vm.Close()
	vm.Close()
	if err := vm.Run(t.Context(), nil); err != ErrClosed {
		t.Errorf("Run after Close = %v, want ErrClosed", err)
	}
}
