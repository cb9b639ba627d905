package vm

// stack is a LIFO of frames. Only the top is ever consulted.
type stack[T any] []T

func (s *stack[T]) push(v T) { *s = append(*s, v) }

// pop removes the top frame. Popping an empty stack is a no-op.
func (s *stack[T]) pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}

// top returns a pointer to the top frame, or nil.
func (s stack[T]) top() *T {
	if len(s) == 0 {
		return nil
	}
	return &s[len(s)-1]
}

func (s *stack[T]) reset() { *s = (*s)[:0] }

// condFrame is an open if block. active is whether lines in the current
// branch execute; it is always ANDed with the enclosing block's state.
type condFrame struct {
	condition    bool
	parentActive bool
	active       bool
	hasElse      bool
}

type loopKind int

const (
	loopFor loopKind = iota
	loopForever
	loopWhile
)

func (k loopKind) String() string {
	switch k {
	case loopFor:
		return "for"
	case loopForever:
		return "forever"
	default:
		return "while"
	}
}

// loopFrame is an open for, forever or while block. startIndex is the
// header line; the body starts at startIndex+1.
type loopFrame struct {
	kind       loopKind
	startIndex int
	counterVar string // for
	endValue   int    // for
	condition  string // while, raw expression text
}

// signalFrame is an open signal2 block. received is taken from the signal
// set when the frame is pushed and only changes afterwards through a signal
// of the same name while the frame is on top.
type signalFrame struct {
	name       string
	received   bool
	startIndex int
}

// gestureFrame is an open "while finger moving" block. Pointer movement
// updates lastDistance and isMoving; the main loop only reads them.
type gestureFrame struct {
	target       string
	startIndex   int
	lastDistance float64
	isMoving     bool
}

// touchMode selects when a touch binding fires.
type touchMode int

const (
	// touchClick fires through the element's click handler.
	touchClick touchMode = iota
	// touchRelease fires when the touch ends while on the element.
	touchRelease
)

type touchBinding struct {
	command    string
	mode       touchMode
	isTouching bool
}
