package vm

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: events are dequeued in chronological order whatever the push order.
func TestPropertyEventQueueChronologicalOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("events are dequeued in chronological order", prop.ForAll(
		func(eventCount int) bool {
			queue := NewEventQueue()
			baseTime := time.Now()

			for i := 0; i < eventCount; i++ {
				event := NewEvent(EventTimer, 1, "t")
				event.Timestamp = baseTime.Add(time.Duration((i*7)%eventCount) * time.Millisecond)
				queue.Push(event)
			}

			var prev time.Time
			for i := 0; i < eventCount; i++ {
				event, ok := queue.Pop()
				if !ok {
					return false
				}
				if i > 0 && event.Timestamp.Before(prev) {
					return false
				}
				prev = event.Timestamp
			}
			_, ok := queue.Pop()
			return !ok
		},
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}

func TestEventQueueSizeLimit(t *testing.T) {
	queue := NewEventQueueWithSize(3)
	base := time.Now()
	for i := 0; i < 3; i++ {
		ev := NewEvent(EventClick, 1, "b", "print x")
		ev.Timestamp = base.Add(time.Duration(i) * time.Millisecond)
		if !queue.Push(ev) {
			t.Fatalf("push %d dropped an event", i)
		}
	}

	ev := NewEvent(EventClick, 1, "newest")
	ev.Timestamp = base.Add(time.Second)
	if queue.Push(ev) {
		t.Error("expected the fourth push to drop the oldest event")
	}
	if queue.Len() != 3 {
		t.Errorf("Len = %d, want 3", queue.Len())
	}

	first, _ := queue.Pop()
	if !first.Timestamp.Equal(base.Add(time.Millisecond)) {
		t.Errorf("oldest remaining = %v, want the second event", first.Timestamp)
	}
}

func TestEventQueueOperations(t *testing.T) {
	t.Run("empty queue", func(t *testing.T) {
		queue := NewEventQueue()
		if _, ok := queue.Pop(); ok {
			t.Error("Pop on empty queue returned an event")
		}
		if _, ok := queue.Peek(); ok {
			t.Error("Peek on empty queue returned an event")
		}
	})

	t.Run("timestamp assigned on push", func(t *testing.T) {
		queue := NewEventQueue()
		queue.Push(&Event{Type: EventTimer})
		ev, _ := queue.Peek()
		if ev.Timestamp.IsZero() {
			t.Error("expected a timestamp")
		}
	})

	t.Run("equal timestamps keep push order", func(t *testing.T) {
		queue := NewEventQueue()
		ts := time.Now()
		for _, src := range []string{"a", "b", "c"} {
			ev := NewEvent(EventClick, 1, src)
			ev.Timestamp = ts
			queue.Push(ev)
		}
		for _, want := range []string{"a", "b", "c"} {
			ev, _ := queue.Pop()
			if ev.Source != want {
				t.Errorf("Source = %q, want %q", ev.Source, want)
			}
		}
	})

	t.Run("ready is signalled", func(t *testing.T) {
		queue := NewEventQueue()
		queue.Push(NewEvent(EventTimer, 1, "t"))
		queue.Push(NewEvent(EventTimer, 1, "t"))
		select {
		case <-queue.Ready():
		default:
			t.Error("expected Ready to be signalled")
		}
	})

	t.Run("clear", func(t *testing.T) {
		queue := NewEventQueue()
		queue.Push(NewEvent(EventTimer, 1, "t"))
		queue.Clear()
		if queue.Len() != 0 {
			t.Errorf("Len = %d after Clear", queue.Len())
		}
	})
}
