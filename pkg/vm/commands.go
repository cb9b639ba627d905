package vm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/zurustar/dimscript/pkg/expr"
)

// CommandFunc implements one script command. Returning a *Diagnostic
// reports it as is; any other error is reported as a runtime failure of the
// command.
type CommandFunc func(vm *VM, c *Call) error

// Command is an entry in the command table.
type Command struct {
	Name    string
	MinArgs int
	Usage   string
	Run     CommandFunc
}

// Call is one invocation of a command.
type Call struct {
	Name    string
	Args    []string // raw tokens after the command name
	Line    int      // script line, -1 on the re-entry path
	Trigger bool     // running on the re-entry path
	rc      *RunContext
}

// context is done when the call's blocking work must stop. A trigger stops
// with its run; the main loop also stops when Run's context is done.
func (c *Call) context() context.Context {
	if c.Trigger {
		return c.rc.ctx
	}
	return c.rc.loop
}

// diagnostic fills in the call's position on d.
func (c *Call) diagnostic(d *Diagnostic) *Diagnostic {
	if d.Line < 0 && c.Line >= 0 {
		d.Line = c.Line
	}
	if d.Command == "" {
		d.Command = c.Name
	}
	return d
}

// arg returns argument i with variables resolved.
func (c *Call) arg(i int) string {
	return expr.ResolveVars(c.Args[i], c.rc.env)
}

// argOr returns argument i, or def if the call has fewer arguments.
func (c *Call) argOr(i int, def string) string {
	if i < len(c.Args) {
		return c.arg(i)
	}
	return def
}

// rest joins the raw arguments from index from onwards.
func (c *Call) rest(from int) string {
	if from >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[from:], " ")
}

// intArg parses argument i as a leading integer.
func (c *Call) intArg(i int, what string) (int, error) {
	v := c.arg(i)
	n, ok := expr.ParseInt(v)
	if !ok {
		return 0, notANumber(c.Name, what, v)
	}
	return n, nil
}

// elementName resolves argument i as an element name. Underscores stand
// for spaces so that multi-word button labels can be addressed.
func (c *Call) elementName(i int) string {
	return strings.ReplaceAll(c.arg(i), "_", " ")
}

// RegisterCommand adds or replaces a command in the table.
func (vm *VM) RegisterCommand(cmd *Command) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.commands[cmd.Name] = cmd
}

func (vm *VM) lookup(name string) (*Command, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	cmd, ok := vm.commands[name]
	return cmd, ok
}

func (vm *VM) registerDefaultCommands() {
	vm.registerFlowCommands()
	vm.registerElementCommands()
	vm.registerTriggerCommands()
}

// registerFlowCommands registers commands that write to the flow, the
// variables or the user.
func (vm *VM) registerFlowCommands() {
	vm.RegisterCommand(&Command{Name: "print", Usage: "print <text>", Run: cmdPrint})
	vm.RegisterCommand(&Command{Name: "set", MinArgs: 3, Usage: "set <name> = <expression>", Run: cmdSet})
	vm.RegisterCommand(&Command{Name: "math", MinArgs: 3, Usage: "math <name> = <expression>", Run: cmdSet})
	vm.RegisterCommand(&Command{Name: "wait", MinArgs: 1, Usage: "wait <ms>", Run: cmdWait})
	vm.RegisterCommand(&Command{Name: "alert", Usage: "alert <text>", Run: cmdAlert})
	vm.RegisterCommand(&Command{Name: "draw", Usage: "draw [color]", Run: cmdDraw})
	vm.RegisterCommand(&Command{Name: "sound", MinArgs: 1, Usage: "sound <url>", Run: cmdSound})
	vm.RegisterCommand(&Command{Name: "random", MinArgs: 3, Usage: "random <name> <min> <max>", Run: cmdRandom})
	vm.RegisterCommand(&Command{Name: "date", MinArgs: 1, Usage: "date <name>", Run: cmdDate})
	vm.RegisterCommand(&Command{Name: "prompt", MinArgs: 2, Usage: `prompt <name> "message"`, Run: cmdPrompt})
	vm.RegisterCommand(&Command{Name: "confirm", MinArgs: 2, Usage: `confirm <name> "message"`, Run: cmdConfirm})
	vm.RegisterCommand(&Command{Name: "clear", Usage: "clear", Run: cmdClear})
}

func cmdPrint(vm *VM, c *Call) error {
	vm.console.Println("> " + expr.ResolveVars(c.rest(0), c.rc.env))
	return nil
}

// cmdSet serves both set and math. The variable name is taken literally.
func cmdSet(vm *VM, c *Call) error {
	if c.Args[1] != "=" {
		cmd, _ := vm.lookup(c.Name)
		return usageError(c.Name, cmd.Usage)
	}
	c.rc.env.Set(c.Args[0], vm.evaluate(c.rc, c.rest(2)))
	return nil
}

func cmdWait(vm *VM, c *Call) error {
	if c.Trigger {
		return NewDiagnostic(DiagStructure, "'wait' cannot be used in a trigger")
	}
	ms, err := c.intArg(0, "delay")
	if err != nil {
		return err
	}
	if ms <= 0 {
		return nil
	}

	ctx := c.context()
	fired := make(chan struct{})
	t := vm.clock.AfterFunc(time.Duration(ms)*time.Millisecond, func() { close(fired) })
	vm.suspend(func() {
		select {
		case <-fired:
		case <-ctx.Done():
			t.Stop()
		}
	})
	return nil
}

func cmdAlert(vm *VM, c *Call) error {
	if vm.dialog == nil {
		return NewDiagnostic(DiagRuntime, "alert: no dialog available")
	}
	vm.dialog.Alert(expr.ResolveVars(c.rest(0), c.rc.env))
	return nil
}

func cmdDraw(vm *VM, c *Call) error {
	vm.console.Swatch(c.argOr(0, "#00ff88"))
	return nil
}

// cmdSound plays a sound. The main loop waits for playback to finish; a
// trigger starts it and moves on.
func cmdSound(vm *VM, c *Call) error {
	if vm.audio == nil {
		return NewDiagnostic(DiagRuntime, "sound: no audio output")
	}
	ctx := c.context()
	url := c.arg(0)

	if c.Trigger {
		vm.wg.Add(1)
		go func() {
			defer vm.wg.Done()
			if err := vm.audio.Play(ctx, url); err != nil && ctx.Err() == nil {
				vm.log.Warn("sound failed", "url", url, "error", err)
			}
		}()
		return nil
	}

	var err error
	vm.suspend(func() {
		err = vm.audio.Play(ctx, url)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("play %s: %w", url, err)
	}
	return nil
}

func cmdRandom(vm *VM, c *Call) error {
	lo, err := c.intArg(1, "min")
	if err != nil {
		return err
	}
	hi, err := c.intArg(2, "max")
	if err != nil {
		return err
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	c.rc.env.Set(c.arg(0), expr.Int(randomBetween(lo, hi)))
	return nil
}

// randomBetween returns a uniform integer in [lo, hi]. The span is counted
// in uint64 so extreme bounds do not overflow.
func randomBetween(lo, hi int) int {
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		return int(rand.Uint64())
	}
	return lo + int(rand.Uint64N(span))
}

// dateLayout is DD.MM.YYYY, HH:MM:SS.
const dateLayout = "02.01.2006, 15:04:05"

func cmdDate(vm *VM, c *Call) error {
	c.rc.env.Set(c.arg(0), expr.String(vm.clock.Now().Format(dateLayout)))
	return nil
}

// message returns the resolved text from argument 1 on, without quotes.
func (c *Call) message() string {
	return strings.ReplaceAll(expr.ResolveVars(c.rest(1), c.rc.env), `"`, "")
}

// cmdPrompt binds the answer. A cancelled prompt leaves the variable unset.
func cmdPrompt(vm *VM, c *Call) error {
	if vm.dialog == nil {
		return NewDiagnostic(DiagRuntime, "prompt: no dialog available")
	}
	name := c.arg(0)
	answer, ok := vm.dialog.Prompt(c.message())
	if !ok {
		c.rc.env.Delete(name)
		return nil
	}
	c.rc.env.Set(name, expr.String(answer))
	return nil
}

func cmdConfirm(vm *VM, c *Call) error {
	if vm.dialog == nil {
		return NewDiagnostic(DiagRuntime, "confirm: no dialog available")
	}
	name := c.arg(0)
	c.rc.env.Set(name, expr.Bool(vm.dialog.Confirm(c.message())))
	return nil
}

// cmdClear empties the flow and the surface and forgets every element.
func cmdClear(vm *VM, c *Call) error {
	vm.console.Clear()
	vm.surface.ClearAll()
	c.rc.clearElements()
	return nil
}
