package vm

import (
	"strings"

	"github.com/zurustar/dimscript/pkg/script"
)

// controlFlowCommands have no meaning outside the main loop.
var controlFlowCommands = map[string]bool{
	"if":      true,
	"else":    true,
	"endif":   true,
	"for":     true,
	"forever": true,
	"while":   true,
	"end":     true,
	"signal2": true,
}

// runSingle executes one command string outside the main loop. It shares
// the run's variables, elements, signals and timers but never touches the
// control-flow stacks. The caller holds the execution token.
func (vm *VM) runSingle(rc *RunContext, line string) {
	line = strings.TrimSpace(line)
	if script.IsSkippable(line) {
		return
	}

	tokens := script.Tokenize(line)
	c := &Call{Name: tokens[0], Args: tokens[1:], Line: -1, Trigger: true, rc: rc}

	switch {
	case c.Name == "signal":
		// only the global flag; no frame to mark
		if len(c.Args) < 1 {
			vm.report(c.diagnostic(usageError("signal", "signal <name>")))
			return
		}
		rc.setSignal(c.arg(0))
		return
	case controlFlowCommands[c.Name]:
		vm.report(c.diagnostic(NewDiagnostic(DiagStructure, "'%s' cannot be used in a trigger", c.Name)))
		return
	}

	vm.dispatch(c)
}

// enqueue queues a trigger for the dispatcher. Triggers of a finished or
// replaced run are not queued.
func (vm *VM) enqueue(rc *RunContext, typ EventType, source string, commands ...string) {
	if rc.ctx.Err() != nil {
		return
	}
	if !vm.queue.Push(NewEvent(typ, rc.gen, source, commands...)) {
		vm.log.Warn("event queue full, oldest trigger dropped", "type", typ, "source", source)
	}
}

// dispatchLoop runs queued triggers one at a time until Close.
func (vm *VM) dispatchLoop() {
	defer vm.wg.Done()
	for {
		select {
		case <-vm.done:
			return
		case <-vm.queue.Ready():
		}

		for {
			ev, ok := vm.queue.Pop()
			if !ok {
				break
			}
			vm.handleEvent(ev)

			select {
			case <-vm.done:
				return
			default:
			}
		}
	}
}

func (vm *VM) handleEvent(ev *Event) {
	vm.exec.Lock()
	defer vm.exec.Unlock()

	rc := vm.current()
	if ev.Generation != rc.gen || rc.ctx.Err() != nil {
		vm.log.Debug("stale trigger dropped", "type", ev.Type, "source", ev.Source, "generation", ev.Generation)
		return
	}

	vm.log.Debug("trigger", "type", ev.Type, "source", ev.Source, "commands", len(ev.Commands))
	for _, cmd := range ev.Commands {
		vm.runSingle(rc, cmd)
	}
}
