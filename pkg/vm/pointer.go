package vm

// PointerKind is the kind of a pointer event.
type PointerKind int

const (
	// PointerMove is a mouse cursor move.
	PointerMove PointerKind = iota
	// PointerClick is a mouse click or tap at a position.
	PointerClick
	// TouchMove is a touch starting or moving.
	TouchMove
	// TouchEnd is the last touch lifting.
	TouchEnd
)

func (k PointerKind) String() string {
	switch k {
	case PointerMove:
		return "move"
	case PointerClick:
		return "click"
	case TouchMove:
		return "touchmove"
	case TouchEnd:
		return "touchend"
	default:
		return "unknown"
	}
}

// PointerEvent is input from the host window.
type PointerEvent struct {
	Kind PointerKind
	X, Y float64
}

// PushPointer feeds one input event to the current run. Moves only update
// gesture and touch state. A click runs the handlers of the topmost element
// under the pointer and a touch end fires touch2 bindings; both queue their
// commands instead of running them here.
func (vm *VM) PushPointer(ev PointerEvent) {
	rc := vm.current()

	switch ev.Kind {
	case PointerMove:
		rc.trackPointer(ev.X, ev.Y)
	case TouchMove:
		rc.trackPointer(ev.X, ev.Y)
		rc.trackTouch(ev.X, ev.Y)
	case PointerClick:
		rc.trackPointer(ev.X, ev.Y)
		if e, ok := vm.surface.ElementAt(ev.X, ev.Y); ok {
			e.Click()
		}
	case TouchEnd:
		for _, f := range rc.releaseTouches() {
			vm.enqueue(rc, EventTouchRelease, f.element, f.command)
		}
	}
}
