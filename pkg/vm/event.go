package vm

import (
	"sort"
	"sync"
	"time"
)

// EventType represents the kind of trigger that queued an event.
type EventType string

const (
	// EventTimer is queued when a timer command's delay elapses.
	EventTimer EventType = "TIMER"

	// EventClick is queued by an element's click handler (button actions
	// and touch bindings).
	EventClick EventType = "CLICK"

	// EventTouchRelease is queued when a touch ends on an element bound
	// with touch2.
	EventTouchRelease EventType = "TOUCH_RELEASE"
)

// Event is a queued trigger: one or more command strings to run on the
// re-entry path.
type Event struct {
	// Type is the trigger kind.
	Type EventType

	// Timestamp is when the event was queued.
	Timestamp time.Time

	// Generation is the run the trigger belongs to. Events from an older
	// run are dropped.
	Generation uint64

	// Source names the timer or element that produced the event.
	Source string

	// Commands run in order.
	Commands []string
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, gen uint64, source string, commands ...string) *Event {
	return &Event{
		Type:       eventType,
		Timestamp:  time.Now(),
		Generation: gen,
		Source:     source,
		Commands:   commands,
	}
}

// DefaultQueueSize is the default maximum size of the event queue.
const DefaultQueueSize = 1000

// EventQueue is a thread-safe queue for storing events in chronological
// order. When the queue is full the oldest event is discarded.
type EventQueue struct {
	events  []*Event
	maxSize int
	ready   chan struct{}
	mu      sync.Mutex
}

// NewEventQueue creates a new event queue with the default maximum size.
func NewEventQueue() *EventQueue {
	return NewEventQueueWithSize(DefaultQueueSize)
}

// NewEventQueueWithSize creates a new event queue with a custom maximum size.
func NewEventQueueWithSize(maxSize int) *EventQueue {
	if maxSize <= 0 {
		maxSize = DefaultQueueSize
	}
	return &EventQueue{
		events:  make([]*Event, 0, min(maxSize, 64)),
		maxSize: maxSize,
		ready:   make(chan struct{}, 1),
	}
}

// Push adds an event to the queue and signals Ready.
// If the event has no timestamp, one is assigned.
// The queue is kept sorted by timestamp; events with equal timestamps keep
// their push order.
//
// Returns:
//   - bool: false if an older event had to be discarded to make room
func (eq *EventQueue) Push(event *Event) bool {
	eq.mu.Lock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	kept := true
	if len(eq.events) >= eq.maxSize {
		eq.events = eq.events[1:]
		kept = false
	}

	eq.events = append(eq.events, event)
	sort.SliceStable(eq.events, func(i, j int) bool {
		return eq.events[i].Timestamp.Before(eq.events[j].Timestamp)
	})
	eq.mu.Unlock()

	select {
	case eq.ready <- struct{}{}:
	default:
	}
	return kept
}

// Pop removes and returns the oldest event from the queue.
// Returns nil and false if the queue is empty.
func (eq *EventQueue) Pop() (*Event, bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if len(eq.events) == 0 {
		return nil, false
	}

	event := eq.events[0]
	eq.events[0] = nil
	eq.events = eq.events[1:]
	return event, true
}

// Peek returns the oldest event without removing it.
// Returns nil and false if the queue is empty.
func (eq *EventQueue) Peek() (*Event, bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if len(eq.events) == 0 {
		return nil, false
	}
	return eq.events[0], true
}

// Len returns the number of events in the queue.
func (eq *EventQueue) Len() int {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	return len(eq.events)
}

// Clear removes all events from the queue.
func (eq *EventQueue) Clear() {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	eq.events = eq.events[:0]
}

// Ready receives a value after one or more Pushes.
func (eq *EventQueue) Ready() <-chan struct{} {
	return eq.ready
}
