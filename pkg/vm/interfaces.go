package vm

import (
	"context"
	"image"
	"time"

	"github.com/zurustar/dimscript/pkg/surface"
)

// Surface is where element commands draw. Implementations must be safe for
// concurrent use; *surface.Scene is the standard one.
type Surface interface {
	CreateElement(kind surface.Kind, name string, attrs surface.Attrs) (*surface.Element, error)
	RemoveElement(e *surface.Element)
	ElementAt(x, y float64) (*surface.Element, bool)
	ClearAll()
}

// Console is the flow output that print, draw and diagnostics write to.
type Console interface {
	Println(line string)
	Swatch(color string)
	Clear()
}

// Clock schedules callbacks. It exists so tests can drive timers by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending Clock callback.
type Timer interface {
	Stop() bool
}

// Audio plays a sound URL and returns once playback has finished or ctx is
// done.
type Audio interface {
	Play(ctx context.Context, url string) error
}

// Dialog implements the modal alert, prompt and confirm commands. Prompt
// returns ok=false when the user cancels.
type Dialog interface {
	Alert(message string)
	Prompt(message string) (string, bool)
	Confirm(message string) bool
}

// ImageStore resolves project image names.
type ImageStore interface {
	Image(name string) (image.Image, bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
