// Package surface provides the in-memory rendering surface that script
// commands draw on: named visual elements with geometry, colour and click
// handlers, plus the flow console that print and draw write into.
package surface

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
)

var (
	// ErrInvalidKind is returned when an element kind is not known.
	ErrInvalidKind = errors.New("invalid element kind")

	// ErrInvalidColor is returned for colour text that cannot be parsed.
	ErrInvalidColor = errors.New("invalid color")
)

// Kind is the visual type of an element.
type Kind int

const (
	KindButton Kind = iota
	KindImage
	KindNail
	KindText
	KindCircle
	KindRect
	KindLine
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindImage:
		return "image"
	case KindNail:
		return "nail"
	case KindText:
		return "text"
	case KindCircle:
		return "circle"
	case KindRect:
		return "rect"
	case KindLine:
		return "line"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) valid() bool {
	return k >= KindButton && k <= KindLine
}

// Attrs are the initial attributes of a new element. Zero Width/Height
// take a default that depends on the kind.
type Attrs struct {
	X, Y          float64
	Width, Height float64
	Rotation      float64 // degrees, clockwise, about the element centre
	Color         color.RGBA
	Text          string
	Image         image.Image
}

// Rect is an axis-aligned rectangle in surface coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Center returns the centre point of r.
func (r Rect) Center() (x, y float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Element is a named visual primitive. All methods are safe for concurrent
// use.
type Element struct {
	mu       sync.RWMutex
	kind     Kind
	name     string
	x, y     float64
	w, h     float64
	rotation float64
	color    color.RGBA
	text     string
	img      image.Image
	onClick  []func()
}

// State is a copy of an element's drawable attributes.
type State struct {
	Kind     Kind
	Name     string
	X, Y     float64
	W, H     float64
	Rotation float64
	Color    color.RGBA
	Text     string
	Image    image.Image
}

// Kind returns the element kind.
func (e *Element) Kind() Kind { return e.kind }

// Name returns the name the element was created under.
func (e *Element) Name() string { return e.name }

// Position returns the top-left corner before rotation.
func (e *Element) Position() (x, y float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.x, e.y
}

// SetPosition moves the element to (x, y).
func (e *Element) SetPosition(x, y float64) {
	e.mu.Lock()
	e.x, e.y = x, y
	e.mu.Unlock()
}

// Translate moves the element by (dx, dy).
func (e *Element) Translate(dx, dy float64) {
	e.mu.Lock()
	e.x += dx
	e.y += dy
	e.mu.Unlock()
}

// Size returns width and height before rotation.
func (e *Element) Size() (w, h float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.w, e.h
}

// SetSize resizes the element.
func (e *Element) SetSize(w, h float64) {
	e.mu.Lock()
	e.w, e.h = w, h
	e.mu.Unlock()
}

// SetWidth changes only the width.
func (e *Element) SetWidth(w float64) {
	e.mu.Lock()
	e.w = w
	e.mu.Unlock()
}

// SetHeight changes only the height.
func (e *Element) SetHeight(h float64) {
	e.mu.Lock()
	e.h = h
	e.mu.Unlock()
}

// Rotation returns the rotation in degrees.
func (e *Element) Rotation() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rotation
}

// SetRotation sets the absolute rotation in degrees.
func (e *Element) SetRotation(deg float64) {
	e.mu.Lock()
	e.rotation = deg
	e.mu.Unlock()
}

// Color returns the fill colour.
func (e *Element) Color() color.RGBA {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.color
}

// SetColor sets the fill colour.
func (e *Element) SetColor(c color.RGBA) {
	e.mu.Lock()
	e.color = c
	e.mu.Unlock()
}

// Text returns the element's label or text content.
func (e *Element) Text() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.text
}

// Bounds returns the bounding box of the element on the surface. A rotated
// element's box encloses all four rotated corners.
func (e *Element) Bounds() Rect {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return rotatedBounds(e.x, e.y, e.w, e.h, e.rotation)
}

func rotatedBounds(x, y, w, h, deg float64) Rect {
	if math.Mod(deg, 360) == 0 {
		return Rect{X: x, Y: y, W: w, H: h}
	}
	rad := deg * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	bw := w*cos + h*sin
	bh := w*sin + h*cos
	cx, cy := x+w/2, y+h/2
	return Rect{X: cx - bw/2, Y: cy - bh/2, W: bw, H: bh}
}

// OnClick appends a click handler. Handlers run in registration order.
func (e *Element) OnClick(fn func()) {
	e.mu.Lock()
	e.onClick = append(e.onClick, fn)
	e.mu.Unlock()
}

// Click runs the click handlers and reports whether there were any.
func (e *Element) Click() bool {
	e.mu.RLock()
	handlers := make([]func(), len(e.onClick))
	copy(handlers, e.onClick)
	e.mu.RUnlock()

	for _, fn := range handlers {
		fn()
	}
	return len(handlers) > 0
}

// Snapshot returns a copy of the drawable attributes.
func (e *Element) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Kind:     e.kind,
		Name:     e.name,
		X:        e.x,
		Y:        e.y,
		W:        e.w,
		H:        e.h,
		Rotation: e.rotation,
		Color:    e.color,
		Text:     e.text,
		Image:    e.img,
	}
}
