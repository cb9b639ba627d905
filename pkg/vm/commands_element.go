package vm

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/zurustar/dimscript/pkg/expr"
	"github.com/zurustar/dimscript/pkg/surface"
)

// registerElementCommands registers the commands that create, change and
// remove named elements on the surface.
func (vm *VM) registerElementCommands() {
	// Visual primitives
	vm.RegisterCommand(&Command{Name: "button", MinArgs: 4, Usage: "button <x> <y> <label> <command>[, <command>...]", Run: cmdButton})
	vm.RegisterCommand(&Command{Name: "image", MinArgs: 3, Usage: "image <image> <x> <y>", Run: cmdImage})
	vm.RegisterCommand(&Command{Name: "nail", MinArgs: 3, Usage: "nail <name> <x> <y>", Run: cmdNail})
	vm.RegisterCommand(&Command{Name: "text", MinArgs: 4, Usage: `text <name> <x> <y> "text"`, Run: cmdText})
	vm.RegisterCommand(&Command{Name: "circle", MinArgs: 4, Usage: "circle <name> <x> <y> <radius> [color]", Run: cmdCircle})
	vm.RegisterCommand(&Command{Name: "rect", MinArgs: 5, Usage: "rect <name> <x> <y> <width> <height> [color]", Run: cmdRect})
	vm.RegisterCommand(&Command{Name: "line", MinArgs: 5, Usage: "line <name> <x1> <y1> <x2> <y2> [color] [thickness]", Run: cmdLine})

	// Mutation
	vm.RegisterCommand(&Command{Name: "x", MinArgs: 2, Usage: "x <name> <dx>", Run: cmdShiftX})
	vm.RegisterCommand(&Command{Name: "y", MinArgs: 2, Usage: "y <name> <dy>", Run: cmdShiftY})
	vm.RegisterCommand(&Command{Name: "xy", MinArgs: 3, Usage: "xy <name> <dx> <dy>", Run: cmdTranslate})
	vm.RegisterCommand(&Command{Name: "move", MinArgs: 3, Usage: "move <name> <dx> <dy>", Run: cmdTranslate})
	for n := 2; n <= 20; n++ {
		name := fmt.Sprintf("move%d", n)
		vm.RegisterCommand(&Command{Name: name, MinArgs: 3, Usage: name + " <name> <dx> <dy>", Run: cmdTranslate})
	}
	vm.RegisterCommand(&Command{Name: "rotate", MinArgs: 2, Usage: "rotate <name> <degrees>", Run: cmdRotate})
	vm.RegisterCommand(&Command{Name: "color", MinArgs: 2, Usage: "color <name> <#RRGGBB>", Run: cmdColor})
	vm.RegisterCommand(&Command{Name: "size", MinArgs: 3, Usage: "size <name> <width> <height>", Run: cmdSize})
	vm.RegisterCommand(&Command{Name: "width", MinArgs: 2, Usage: "width <name> <width>", Run: cmdWidth})
	vm.RegisterCommand(&Command{Name: "height", MinArgs: 2, Usage: "height <name> <height>", Run: cmdHeight})
	vm.RegisterCommand(&Command{Name: "remove", MinArgs: 1, Usage: "remove <name>", Run: cmdRemove})
	vm.RegisterCommand(&Command{Name: "delete", MinArgs: 1, Usage: "delete <name>", Run: cmdRemove})
}

// create puts a new element on the surface and registers it under name,
// replacing any earlier registration of that name.
func (vm *VM) create(c *Call, kind surface.Kind, name string, attrs surface.Attrs) (*surface.Element, error) {
	e, err := vm.surface.CreateElement(kind, name, attrs)
	if err != nil {
		return nil, err
	}
	c.rc.registerElement(name, e)
	vm.log.Debug("element created", "kind", kind, "name", name, "x", attrs.X, "y", attrs.Y)
	return e, nil
}

// position parses the x and y arguments at i and i+1.
func (c *Call) position(i int) (x, y float64, err error) {
	xi, err := c.intArg(i, "x")
	if err != nil {
		return 0, 0, err
	}
	yi, err := c.intArg(i+1, "y")
	if err != nil {
		return 0, 0, err
	}
	return float64(xi), float64(yi), nil
}

// colorArg parses an optional colour argument.
func (c *Call) colorArg(i int) (color.RGBA, error) {
	text := c.argOr(i, surface.FormatColor(surface.DefaultColor))
	col, err := surface.ParseColor(text)
	if err != nil {
		return color.RGBA{}, NewDiagnostic(DiagSyntax, "invalid color '%s'", text)
	}
	return col, nil
}

// cmdButton creates a button labelled with argument 2. The label is also
// its element name. A click runs each comma-separated action in turn.
func cmdButton(vm *VM, c *Call) error {
	x, y, err := c.position(0)
	if err != nil {
		return err
	}
	label := c.elementName(2)

	var actions []string
	for _, a := range strings.Split(c.rest(3), ",") {
		if a = strings.TrimSpace(a); a != "" {
			actions = append(actions, a)
		}
	}

	e, err := vm.create(c, surface.KindButton, label, surface.Attrs{X: x, Y: y, Text: label})
	if err != nil {
		return err
	}
	rc := c.rc
	e.OnClick(func() {
		vm.enqueue(rc, EventClick, label, actions...)
	})
	return nil
}

func cmdImage(vm *VM, c *Call) error {
	name := c.arg(0)
	x, y, err := c.position(1)
	if err != nil {
		return err
	}
	if vm.images == nil {
		return imageNotFound(name)
	}
	img, ok := vm.images.Image(name)
	if !ok {
		return imageNotFound(name)
	}
	_, err = vm.create(c, surface.KindImage, name, surface.Attrs{X: x, Y: y, Image: img})
	return err
}

func cmdNail(vm *VM, c *Call) error {
	name := c.arg(0)
	x, y, err := c.position(1)
	if err != nil {
		return err
	}
	_, err = vm.create(c, surface.KindNail, name, surface.Attrs{X: x, Y: y})
	return err
}

func cmdText(vm *VM, c *Call) error {
	name := c.arg(0)
	x, y, err := c.position(1)
	if err != nil {
		return err
	}
	text := strings.ReplaceAll(expr.ResolveVars(c.rest(3), c.rc.env), `"`, "")
	_, err = vm.create(c, surface.KindText, name, surface.Attrs{X: x, Y: y, Text: text})
	return err
}

func cmdCircle(vm *VM, c *Call) error {
	name := c.arg(0)
	x, y, err := c.position(1)
	if err != nil {
		return err
	}
	r, err := c.intArg(3, "radius")
	if err != nil {
		return err
	}
	col, err := c.colorArg(4)
	if err != nil {
		return err
	}
	d := float64(2 * r)
	_, err = vm.create(c, surface.KindCircle, name, surface.Attrs{X: x, Y: y, Width: d, Height: d, Color: col})
	return err
}

func cmdRect(vm *VM, c *Call) error {
	name := c.arg(0)
	x, y, err := c.position(1)
	if err != nil {
		return err
	}
	w, err := c.intArg(3, "width")
	if err != nil {
		return err
	}
	h, err := c.intArg(4, "height")
	if err != nil {
		return err
	}
	col, err := c.colorArg(5)
	if err != nil {
		return err
	}
	_, err = vm.create(c, surface.KindRect, name, surface.Attrs{
		X: x, Y: y, Width: float64(w), Height: float64(h), Color: col,
	})
	return err
}

// cmdLine draws a line as a thin rectangle from (x1, y1), as long as the
// segment and rotated to its angle.
func cmdLine(vm *VM, c *Call) error {
	name := c.arg(0)
	x1, y1, err := c.position(1)
	if err != nil {
		return err
	}
	x2, y2, err := c.position(3)
	if err != nil {
		return err
	}
	col, err := c.colorArg(5)
	if err != nil {
		return err
	}
	thickness := 1
	if len(c.Args) > 6 {
		if thickness, err = c.intArg(6, "thickness"); err != nil {
			return err
		}
	}

	_, err = vm.create(c, surface.KindLine, name, surface.Attrs{
		X:        x1,
		Y:        y1,
		Width:    math.Hypot(x2-x1, y2-y1),
		Height:   float64(thickness),
		Rotation: math.Atan2(y2-y1, x2-x1) * 180 / math.Pi,
		Color:    col,
	})
	return err
}

// target looks up the element named by argument i.
func (c *Call) target(i int) (*surface.Element, error) {
	return c.rc.element(c.elementName(i))
}

func cmdShiftX(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	dx, err := c.intArg(1, "delta")
	if err != nil {
		return err
	}
	e.Translate(float64(dx), 0)
	return nil
}

func cmdShiftY(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	dy, err := c.intArg(1, "delta")
	if err != nil {
		return err
	}
	e.Translate(0, float64(dy))
	return nil
}

// cmdTranslate serves xy, move and move2 through move20.
func cmdTranslate(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	dx, err := c.intArg(1, "dx")
	if err != nil {
		return err
	}
	dy, err := c.intArg(2, "dy")
	if err != nil {
		return err
	}
	e.Translate(float64(dx), float64(dy))
	return nil
}

func cmdRotate(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	deg, err := c.intArg(1, "degrees")
	if err != nil {
		return err
	}
	e.SetRotation(float64(deg))
	return nil
}

func cmdColor(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	hex := c.arg(1)
	if !surface.IsHexColor(hex) {
		return NewDiagnostic(DiagSyntax, "invalid color format '%s', use HEX like #FFFFFF", hex)
	}
	col, err := surface.ParseColor(hex)
	if err != nil {
		return err
	}
	e.SetColor(col)
	return nil
}

func cmdSize(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	w, err := c.intArg(1, "width")
	if err != nil {
		return err
	}
	h, err := c.intArg(2, "height")
	if err != nil {
		return err
	}
	e.SetSize(float64(w), float64(h))
	return nil
}

func cmdWidth(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	w, err := c.intArg(1, "width")
	if err != nil {
		return err
	}
	e.SetWidth(float64(w))
	return nil
}

func cmdHeight(vm *VM, c *Call) error {
	e, err := c.target(0)
	if err != nil {
		return err
	}
	h, err := c.intArg(1, "height")
	if err != nil {
		return err
	}
	e.SetHeight(float64(h))
	return nil
}

func cmdRemove(vm *VM, c *Call) error {
	name := c.arg(0)
	e, err := c.rc.element(name)
	if err != nil {
		return err
	}
	vm.surface.RemoveElement(e)
	c.rc.unregisterElement(name)
	return nil
}
