package vm

import (
	"time"
)

// registerTriggerCommands registers the commands that bind script text to
// timers and touches.
func (vm *VM) registerTriggerCommands() {
	vm.RegisterCommand(&Command{Name: "timer", MinArgs: 3, Usage: "timer <name> <ms> <command>", Run: cmdTimer})
	vm.RegisterCommand(&Command{Name: "stoptimer", MinArgs: 1, Usage: "stoptimer <name>", Run: cmdStopTimer})
	vm.RegisterCommand(&Command{Name: "touch", MinArgs: 2, Usage: "touch <name> <command>", Run: cmdTouch})
	vm.RegisterCommand(&Command{Name: "touch2", MinArgs: 2, Usage: "touch2 <name> <command>", Run: cmdTouch2})
	vm.RegisterCommand(&Command{Name: "endtouch", MinArgs: 1, Usage: "endtouch <name>", Run: cmdEndTouch})
}

// cmdTimer schedules the command, replacing a pending timer of the same
// name. The command text is kept raw and resolved when it fires.
func cmdTimer(vm *VM, c *Call) error {
	name := c.arg(0)
	ms, err := c.intArg(1, "delay")
	if err != nil {
		return err
	}
	command := c.rest(2)

	rc := c.rc
	t := vm.clock.AfterFunc(time.Duration(max(ms, 0))*time.Millisecond, func() {
		vm.enqueue(rc, EventTimer, name, command)
	})
	rc.setTimer(name, t)
	vm.log.Debug("timer scheduled", "name", name, "ms", ms)
	return nil
}

// cmdStopTimer cancels a pending timer. Unknown names are ignored.
func cmdStopTimer(vm *VM, c *Call) error {
	name := c.arg(0)
	if c.rc.stopTimer(name) {
		vm.log.Debug("timer stopped", "name", name)
	}
	return nil
}

// cmdTouch binds a command to clicks on the element, after any handler it
// already has. The handler goes quiet once the binding is replaced or ended.
func cmdTouch(vm *VM, c *Call) error {
	name := c.arg(0)
	e, err := c.rc.element(name)
	if err != nil {
		return err
	}

	rc := c.rc
	b := &touchBinding{command: c.rest(1), mode: touchClick}
	rc.bindTouch(name, b)
	e.OnClick(func() {
		if rc.bound(name, b) {
			vm.enqueue(rc, EventClick, name, b.command)
		}
	})
	return nil
}

// cmdTouch2 binds a command to a touch that ends on the element.
func cmdTouch2(vm *VM, c *Call) error {
	name := c.arg(0)
	if _, err := c.rc.element(name); err != nil {
		return err
	}
	c.rc.bindTouch(name, &touchBinding{command: c.rest(1), mode: touchRelease})
	return nil
}

func cmdEndTouch(vm *VM, c *Call) error {
	c.rc.unbindTouch(c.arg(0))
	return nil
}
