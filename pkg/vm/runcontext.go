package vm

import (
	"context"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/zurustar/dimscript/pkg/surface"
)

// RunContext holds all mutable state of one run. The control-flow stacks
// and pc belong to the main loop. Everything under mu is also touched by
// pointer events and timer callbacks.
//
// ctx lives until the run is reset or replaced. loop also ends when the
// caller's context passed to Run is done; only the main loop blocks on it.
type RunContext struct {
	gen        uint64
	ctx        context.Context
	cancel     context.CancelFunc
	loop       context.Context
	cancelLoop context.CancelFunc

	env *Env
	pc  int

	conds stack[condFrame]
	loops stack[loopFrame]
	sigs  stack[signalFrame]

	mu       sync.Mutex
	signals  map[string]bool
	gestures stack[gestureFrame]
	elements map[string]*surface.Element
	touches  map[string]*touchBinding
	timers   map[string]Timer
	pointerX float64
	pointerY float64
}

// newRunContext creates a run whose triggers outlive parent. Cancelling
// parent ends only the main loop.
func newRunContext(parent context.Context, gen uint64, env *Env, signals map[string]bool) *RunContext {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	loop, cancelLoop := context.WithCancel(parent)
	context.AfterFunc(ctx, cancelLoop)
	if env == nil {
		env = NewEnv()
	}
	if signals == nil {
		signals = make(map[string]bool)
	}
	return &RunContext{
		gen:        gen,
		ctx:        ctx,
		cancel:     cancel,
		loop:       loop,
		cancelLoop: cancelLoop,
		env:        env,
		signals:    signals,
		elements:   make(map[string]*surface.Element),
		touches:    make(map[string]*touchBinding),
		timers:     make(map[string]Timer),
	}
}

// Generation returns the run's generation number.
func (rc *RunContext) Generation() uint64 { return rc.gen }

// Context is cancelled when the run is reset or replaced.
func (rc *RunContext) Context() context.Context { return rc.ctx }

// Env returns the variable environment.
func (rc *RunContext) Env() *Env { return rc.env }

// stop cancels the run and drops everything triggers could still reach.
func (rc *RunContext) stop() {
	rc.cancel()
	rc.cancelLoop()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	for name, t := range rc.timers {
		t.Stop()
		delete(rc.timers, name)
	}
	clear(rc.elements)
	clear(rc.touches)
	rc.gestures.reset()
}

// resetStacks discards the main loop's frames. Only the goroutine that owns
// the main loop may call it.
func (rc *RunContext) resetStacks() {
	rc.conds.reset()
	rc.loops.reset()
	rc.sigs.reset()

	rc.mu.Lock()
	rc.gestures.reset()
	rc.mu.Unlock()
}

func (rc *RunContext) setSignal(name string) {
	rc.mu.Lock()
	rc.signals[name] = true
	rc.mu.Unlock()
}

func (rc *RunContext) signal(name string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.signals[name]
}

func (rc *RunContext) element(name string) (*surface.Element, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if e, ok := rc.elements[name]; ok {
		return e, nil
	}
	return nil, elementNotFound(name)
}

func (rc *RunContext) registerElement(name string, e *surface.Element) {
	rc.mu.Lock()
	rc.elements[name] = e
	rc.mu.Unlock()
}

func (rc *RunContext) unregisterElement(name string) {
	rc.mu.Lock()
	delete(rc.elements, name)
	rc.mu.Unlock()
}

func (rc *RunContext) clearElements() {
	rc.mu.Lock()
	clear(rc.elements)
	rc.mu.Unlock()
}

// elementNames returns the registered names, sorted.
func (rc *RunContext) elementNames() []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return slices.Sorted(maps.Keys(rc.elements))
}

// pushGesture opens a gesture frame measured from the current pointer
// position to the element's centre.
func (rc *RunContext) pushGesture(target string, e *surface.Element, startIndex int) {
	cx, cy := e.Bounds().Center()

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.gestures.push(gestureFrame{
		target:       target,
		startIndex:   startIndex,
		lastDistance: math.Hypot(rc.pointerX-cx, rc.pointerY-cy),
	})
}

// trackPointer records the pointer position and updates every gesture
// frame: moving means the distance to the target's centre grew.
func (rc *RunContext) trackPointer(x, y float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.pointerX, rc.pointerY = x, y
	for i := range rc.gestures {
		g := &rc.gestures[i]
		e, ok := rc.elements[g.target]
		if !ok {
			continue
		}
		cx, cy := e.Bounds().Center()
		d := math.Hypot(x-cx, y-cy)
		g.isMoving = d > g.lastDistance
		g.lastDistance = d
	}
}

// trackTouch marks each bound element as touched while (x, y) is inside it.
func (rc *RunContext) trackTouch(x, y float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for name, b := range rc.touches {
		e, ok := rc.elements[name]
		if !ok {
			continue
		}
		b.isTouching = e.Bounds().Contains(x, y)
	}
}

type touchFire struct {
	element string
	command string
}

// releaseTouches ends all touches and returns the touch2 bindings that were
// being touched, in element-name order.
func (rc *RunContext) releaseTouches() []touchFire {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	var fire []touchFire
	for _, name := range slices.Sorted(maps.Keys(rc.touches)) {
		b := rc.touches[name]
		if b.isTouching && b.mode == touchRelease {
			fire = append(fire, touchFire{element: name, command: b.command})
		}
		b.isTouching = false
	}
	return fire
}

func (rc *RunContext) bindTouch(name string, b *touchBinding) {
	rc.mu.Lock()
	rc.touches[name] = b
	rc.mu.Unlock()
}

func (rc *RunContext) unbindTouch(name string) {
	rc.mu.Lock()
	delete(rc.touches, name)
	rc.mu.Unlock()
}

// bound reports whether b is still the binding for name.
func (rc *RunContext) bound(name string, b *touchBinding) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.touches[name] == b
}

func (rc *RunContext) isTouching(name string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	b, ok := rc.touches[name]
	return ok && b.isTouching
}

func (rc *RunContext) setTimer(name string, t Timer) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if old, ok := rc.timers[name]; ok {
		old.Stop()
	}
	rc.timers[name] = t
}

func (rc *RunContext) stopTimer(name string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	t, ok := rc.timers[name]
	if ok {
		t.Stop()
		delete(rc.timers, name)
	}
	return ok
}
