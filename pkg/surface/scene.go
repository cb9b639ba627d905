package surface

import (
	"fmt"
	"image/color"
	"io"
	"slices"
	"sync"
	"unicode/utf8"
)

// Glyph metrics of the fixed-width face the window draws with.
const (
	GlyphWidth  = 7
	GlyphHeight = 13
)

// MaxConsoleEntries bounds the flow console; older entries are dropped.
const MaxConsoleEntries = 1000

var (
	buttonColor = color.RGBA{0xE0, 0xE0, 0xE0, 0xFF}
	nailColor   = color.RGBA{0x33, 0x33, 0x33, 0xFF}
	textColor   = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
)

// EntryKind distinguishes console entries.
type EntryKind int

const (
	EntryLine EntryKind = iota
	EntrySwatch
)

// Entry is one item of the flow console.
type Entry struct {
	Kind  EntryKind
	Text  string
	Color color.RGBA
}

// Scene is a thread-safe rendering surface plus flow console. Elements are
// kept in creation order, which is also the paint order.
type Scene struct {
	mu       sync.RWMutex
	elements []*Element
	entries  []Entry
	mirror   io.Writer
}

// SceneOption configures a Scene.
type SceneOption func(*Scene)

// WithMirror copies every console line to w, one per line.
func WithMirror(w io.Writer) SceneOption {
	return func(s *Scene) {
		s.mirror = w
	}
}

// NewScene creates an empty scene.
func NewScene(opts ...SceneOption) *Scene {
	s := &Scene{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateElement adds a new element on top of the others.
func (s *Scene) CreateElement(kind Kind, name string, attrs Attrs) (*Element, error) {
	if !kind.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}

	e := &Element{
		kind:     kind,
		name:     name,
		x:        attrs.X,
		y:        attrs.Y,
		w:        attrs.Width,
		h:        attrs.Height,
		rotation: attrs.Rotation,
		color:    attrs.Color,
		text:     attrs.Text,
		img:      attrs.Image,
	}
	applyDefaults(e)

	s.mu.Lock()
	s.elements = append(s.elements, e)
	s.mu.Unlock()
	return e, nil
}

func applyDefaults(e *Element) {
	switch e.kind {
	case KindButton:
		if e.w == 0 {
			e.w = float64(utf8.RuneCountInString(e.text)*GlyphWidth + 16)
		}
		if e.h == 0 {
			e.h = 24
		}
		if e.color.A == 0 {
			e.color = buttonColor
		}
	case KindImage:
		if e.img != nil && e.w == 0 && e.h == 0 {
			b := e.img.Bounds()
			e.w, e.h = float64(b.Dx()), float64(b.Dy())
		}
	case KindNail:
		if e.w == 0 {
			e.w = 8
		}
		if e.h == 0 {
			e.h = 8
		}
		if e.color.A == 0 {
			e.color = nailColor
		}
	case KindText:
		if e.w == 0 {
			e.w = float64(utf8.RuneCountInString(e.text) * GlyphWidth)
		}
		if e.h == 0 {
			e.h = GlyphHeight
		}
		if e.color.A == 0 {
			e.color = textColor
		}
	default:
		if e.color.A == 0 {
			e.color = DefaultColor
		}
	}
}

// RemoveElement takes e off the surface. Removing an element twice is a
// no-op.
func (s *Scene) RemoveElement(e *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements = slices.DeleteFunc(s.elements, func(x *Element) bool { return x == e })
}

// ElementAt returns the topmost element whose bounds contain (x, y).
func (s *Scene) ElementAt(x, y float64) (*Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.elements) - 1; i >= 0; i-- {
		if s.elements[i].Bounds().Contains(x, y) {
			return s.elements[i], true
		}
	}
	return nil, false
}

// ClearAll removes every element.
func (s *Scene) ClearAll() {
	s.mu.Lock()
	s.elements = nil
	s.mu.Unlock()
}

// Elements returns the elements in paint order.
func (s *Scene) Elements() []*Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.elements)
}

// Println appends a text line to the console.
func (s *Scene) Println(line string) {
	s.append(Entry{Kind: EntryLine, Text: line}, line)
}

// Swatch appends a colour swatch to the console. Unparseable colours fall
// back to DefaultColor.
func (s *Scene) Swatch(c string) {
	rgba, err := ParseColor(c)
	if err != nil {
		rgba = DefaultColor
	}
	s.append(Entry{Kind: EntrySwatch, Text: c, Color: rgba}, "[swatch "+FormatColor(rgba)+"]")
}

func (s *Scene) append(e Entry, mirrored string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror != nil {
		fmt.Fprintln(s.mirror, mirrored)
	}
	s.entries = append(s.entries, e)
	if n := len(s.entries) - MaxConsoleEntries; n > 0 {
		s.entries = slices.Delete(s.entries, 0, n)
	}
}

// Clear empties the console.
func (s *Scene) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Entries returns a copy of the console entries.
func (s *Scene) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Lines returns the text of the console's line entries.
func (s *Scene) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var lines []string
	for _, e := range s.entries {
		if e.Kind == EntryLine {
			lines = append(lines, e.Text)
		}
	}
	return lines
}
