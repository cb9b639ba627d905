// Package vm is the DimScript execution engine: a program-counter driven
// dispatch loop over script lines, the control-flow stack machine (if/else,
// for, forever, while, signal2, gesture loops), the command table, and the
// single-command re-entry path that timers, clicks and touches use.
//
// One VM runs one script at a time. The main loop holds the VM's execution
// token while it runs and gives it up only inside wait and sound; queued
// triggers take the same token, so they interleave with the script only at
// those points and after the script ends.
package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zurustar/dimscript/pkg/expr"
	"github.com/zurustar/dimscript/pkg/logger"
	"github.com/zurustar/dimscript/pkg/script"
)

// VM executes DimScript.
type VM struct {
	// Collaborators
	surface Surface
	console Console
	clock   Clock
	audio   Audio
	dialog  Dialog
	images  ImageStore

	commands map[string]*Command

	// exec is the execution token.
	exec sync.Mutex

	// mu guards rc, running and closed.
	mu      sync.Mutex
	rc      *RunContext
	running bool
	closed  bool
	gen     atomic.Uint64

	// Trigger dispatch
	queue     *EventQueue
	queueSize int
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	log *slog.Logger
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// WithClock replaces the wall clock used by wait, timer and date.
func WithClock(c Clock) Option {
	return func(vm *VM) {
		vm.clock = c
	}
}

// WithAudio sets the sound player. Without one, sound is a diagnostic.
func WithAudio(a Audio) Option {
	return func(vm *VM) {
		vm.audio = a
	}
}

// WithDialog sets the alert/prompt/confirm implementation.
func WithDialog(d Dialog) Option {
	return func(vm *VM) {
		vm.dialog = d
	}
}

// WithImages sets where image looks up project images.
func WithImages(s ImageStore) Option {
	return func(vm *VM) {
		vm.images = s
	}
}

// WithQueueSize bounds the trigger queue.
func WithQueueSize(n int) Option {
	return func(vm *VM) {
		vm.queueSize = n
	}
}

// New creates a VM drawing on surface and writing to console, and starts
// its trigger dispatcher. Call Close to stop it.
//
// Parameters:
//   - surface: Where element commands create and modify elements
//   - console: The flow output for print, draw and diagnostics
//   - opts: Optional collaborators (clock, audio, dialog, images, logger)
//
// Returns:
//   - *VM: The initialized VM instance
func New(surface Surface, console Console, opts ...Option) *VM {
	vm := &VM{
		surface:  surface,
		console:  console,
		clock:    realClock{},
		commands: make(map[string]*Command),
		done:     make(chan struct{}),
		log:      logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(vm)
	}

	vm.queue = NewEventQueueWithSize(vm.queueSize)
	vm.rc = newRunContext(context.Background(), vm.gen.Load(), nil, nil)
	vm.registerDefaultCommands()

	vm.wg.Add(1)
	go vm.dispatchLoop()

	return vm
}

func (vm *VM) current() *RunContext {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.rc
}

// Run executes s from its first line until the last line, until ctx is
// done, or until Reset. Variables, signals, elements, timers and the console
// start empty. Timers and element handlers created by the script stay live
// after Run returns, until the next Run, Reset or Close.
//
// Returns:
//   - error: ctx.Err() if ctx ended the run, ErrAlreadyRunning, ErrClosed
func (vm *VM) Run(ctx context.Context, s *script.Script) error {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return ErrClosed
	}
	if vm.running {
		vm.mu.Unlock()
		return ErrAlreadyRunning
	}
	vm.running = true
	vm.mu.Unlock()

	defer func() {
		vm.mu.Lock()
		vm.running = false
		vm.mu.Unlock()
	}()

	vm.exec.Lock()
	defer vm.exec.Unlock()

	rc := vm.startRun(ctx)
	vm.log.Info("run started", "script", s.Name, "lines", s.Len(), "generation", rc.gen)

	for rc.pc < s.Len() {
		if rc.loop.Err() != nil {
			break
		}
		vm.step(rc, s)
	}
	rc.resetStacks()
	rc.cancelLoop()

	if err := ctx.Err(); err != nil {
		vm.log.Info("run cancelled", "generation", rc.gen, "error", err)
		return err
	}
	if rc.ctx.Err() != nil {
		vm.log.Info("run reset", "generation", rc.gen)
		return nil
	}
	vm.log.Info("run finished", "generation", rc.gen)
	return nil
}

// startRun replaces the current run context with a fresh one.
func (vm *VM) startRun(ctx context.Context) *RunContext {
	vm.mu.Lock()
	old := vm.rc
	rc := newRunContext(ctx, vm.gen.Add(1), nil, nil)
	vm.rc = rc
	vm.mu.Unlock()

	old.stop()
	vm.queue.Clear()
	vm.surface.ClearAll()
	vm.console.Clear()
	return rc
}

// Reset stops the current run: pending timers are cancelled, a suspended
// wait or sound returns at once, queued triggers are dropped and the
// element registry, touch bindings and surface are cleared. Variables and
// signals are kept.
func (vm *VM) Reset() {
	vm.mu.Lock()
	old := vm.rc
	vm.rc = newRunContext(context.Background(), vm.gen.Add(1), old.env, old.signals)
	running := vm.running
	vm.mu.Unlock()

	old.stop()
	if !running {
		old.resetStacks()
	}
	vm.queue.Clear()
	vm.surface.ClearAll()
	vm.console.Clear()
	vm.log.Info("vm reset", "generation", vm.gen.Load())
}

// Close resets the VM and stops the trigger dispatcher. It is safe to call
// more than once.
func (vm *VM) Close() {
	vm.closeOnce.Do(func() {
		vm.mu.Lock()
		vm.closed = true
		vm.mu.Unlock()

		vm.Reset()
		close(vm.done)
		vm.wg.Wait()
	})
}

// IsRunning reports whether Run is executing.
func (vm *VM) IsRunning() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.running
}

// Execute runs a single command string on the re-entry path, as a timer or
// click would. It must not be called from inside a command.
func (vm *VM) Execute(command string) {
	vm.exec.Lock()
	defer vm.exec.Unlock()
	vm.runSingle(vm.current(), command)
}

// Variables returns a snapshot of the variable environment.
func (vm *VM) Variables() map[string]expr.Value {
	return vm.current().env.Snapshot()
}

// Signal reports whether the named signal has been raised.
func (vm *VM) Signal(name string) bool {
	return vm.current().signal(name)
}

// Elements returns the names in the element registry, sorted.
func (vm *VM) Elements() []string {
	return vm.current().elementNames()
}

// Pending returns the number of queued triggers.
func (vm *VM) Pending() int {
	return vm.queue.Len()
}

// step executes the line at rc.pc and advances or redirects pc.
func (vm *VM) step(rc *RunContext, s *script.Script) {
	line := s.Line(rc.pc)
	if script.IsSkippable(line) {
		rc.pc++
		return
	}

	tokens := script.Tokenize(line)
	name, args := tokens[0], tokens[1:]

	// inside a false branch only nesting is tracked
	if top := rc.conds.top(); top != nil && !top.active {
		vm.skipInactive(rc, name)
		rc.pc++
		return
	}

	if vm.controlFlow(rc, s, name, args) {
		return
	}

	vm.dispatch(&Call{Name: name, Args: args, Line: rc.pc, rc: rc})
	rc.pc++
}

// dispatch looks up and runs one command, reporting any failure.
func (vm *VM) dispatch(c *Call) {
	cmd, ok := vm.lookup(c.Name)
	if !ok {
		vm.report(c.diagnostic(NewDiagnostic(DiagSyntax, "unknown command: %s", c.Name)))
		return
	}
	if len(c.Args) < cmd.MinArgs {
		vm.report(c.diagnostic(usageError(cmd.Name, cmd.Usage)))
		return
	}

	err := vm.invoke(cmd, c)
	if err == nil {
		return
	}
	var d *Diagnostic
	if !errors.As(err, &d) {
		d = &Diagnostic{
			Kind:    DiagRuntime,
			Message: fmt.Sprintf("command '%s' failed: %v", c.Name, err),
			Err:     err,
		}
	}
	vm.report(c.diagnostic(d))
}

// invoke runs cmd, turning a panic into an error.
func (vm *VM) invoke(cmd *Command, c *Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			vm.log.Error("command panicked", "command", c.Name, "panic", r)
			err = fmt.Errorf("%v", r)
		}
	}()
	return cmd.Run(vm, c)
}

// report prints a diagnostic to the console and logs it.
func (vm *VM) report(d *Diagnostic) {
	vm.console.Println("! " + d.Message)

	attrs := []any{"kind", d.Kind, "message", d.Message}
	if d.Command != "" {
		attrs = append(attrs, "command", d.Command)
	}
	if d.Line >= 0 {
		attrs = append(attrs, "line", d.Line+1)
	} else {
		attrs = append(attrs, "trigger", true)
	}
	vm.log.Warn("script diagnostic", attrs...)
}

func (vm *VM) evaluate(rc *RunContext, text string) expr.Value {
	return expr.EvaluateOrFalse(text, rc.env, vm.log)
}

// suspend releases the execution token while fn blocks. Only the main loop
// may suspend.
func (vm *VM) suspend(fn func()) {
	vm.exec.Unlock()
	defer vm.exec.Lock()
	fn()
}
