package vm

import (
	"strings"

	"github.com/zurustar/dimscript/pkg/expr"
	"github.com/zurustar/dimscript/pkg/script"
)

// controlFlow handles the commands that move pc or touch the frame stacks.
// It reports whether name was one of them; if so pc has been updated.
func (vm *VM) controlFlow(rc *RunContext, s *script.Script, name string, args []string) bool {
	switch name {
	case "if":
		cond := vm.evaluate(rc, strings.Join(args, " ")).Truthy()
		rc.conds.push(condFrame{condition: cond, parentActive: true, active: cond})
		rc.pc++
	case "else":
		vm.execElse(rc)
		rc.pc++
	case "endif":
		vm.execEndif(rc)
		rc.pc++
	case "signal":
		vm.execSignal(rc, args)
		rc.pc++
	case "signal2":
		vm.execSignal2(rc, args)
		rc.pc++
	case "end":
		vm.execEnd(rc)
	case "for":
		vm.execFor(rc, s, args)
	case "forever":
		rc.loops.push(loopFrame{kind: loopForever, startIndex: rc.pc})
		rc.pc++
	case "while":
		if len(args) >= 3 && args[0] == "finger" && args[1] == "moving" {
			vm.execFingerMoving(rc, args[2])
			rc.pc++
			return true
		}
		vm.execWhile(rc, s, strings.Join(args, " "))
	default:
		return false
	}
	return true
}

// skipInactive tracks if/else/endif nesting inside a branch that is not
// executing. Everything else is ignored.
func (vm *VM) skipInactive(rc *RunContext, name string) {
	switch name {
	case "if":
		rc.conds.push(condFrame{})
	case "else":
		vm.execElse(rc)
	case "endif":
		rc.conds.pop()
	}
}

func (vm *VM) execElse(rc *RunContext) {
	top := rc.conds.top()
	if top == nil {
		vm.reportAt(rc, DiagStructure, "else", "'else' without matching 'if'")
		return
	}
	if top.hasElse {
		vm.reportAt(rc, DiagStructure, "else", "duplicate 'else' for the same 'if'")
		return
	}
	top.hasElse = true
	top.active = top.parentActive && !top.condition
}

func (vm *VM) execEndif(rc *RunContext) {
	if rc.conds.top() == nil {
		vm.reportAt(rc, DiagStructure, "endif", "'endif' without matching 'if'")
		return
	}
	rc.conds.pop()
}

func (vm *VM) execSignal(rc *RunContext, args []string) {
	if len(args) < 1 {
		vm.reportAt(rc, DiagSyntax, "signal", "wrong syntax for signal (usage: signal <name>)")
		return
	}
	name := expr.ResolveVars(args[0], rc.env)
	rc.setSignal(name)
	if top := rc.sigs.top(); top != nil && top.name == name {
		top.received = true
	}
}

// execSignal2 opens a signal frame. It never blocks: a frame whose signal
// has not arrived simply stays open and end falls through to the next
// construct.
func (vm *VM) execSignal2(rc *RunContext, args []string) {
	if len(args) < 1 {
		vm.reportAt(rc, DiagSyntax, "signal2", "wrong syntax for signal2 (usage: signal2 <name>)")
		return
	}
	name := expr.ResolveVars(args[0], rc.env)
	rc.sigs.push(signalFrame{name: name, received: rc.signal(name), startIndex: rc.pc})
}

// execEnd closes the innermost construct. Precedence: a received signal
// frame, then a gesture frame, then a loop frame.
func (vm *VM) execEnd(rc *RunContext) {
	if top := rc.sigs.top(); top != nil && top.received {
		rc.sigs.pop()
		rc.pc++
		return
	}

	rc.mu.Lock()
	if g := rc.gestures.top(); g != nil {
		if g.isMoving {
			next := g.startIndex + 1
			rc.mu.Unlock()
			rc.pc = next
			return
		}
		rc.gestures.pop()
		rc.mu.Unlock()
		rc.pc++
		return
	}
	rc.mu.Unlock()

	if l := rc.loops.top(); l != nil {
		if vm.loopAgain(rc, l) {
			rc.pc = l.startIndex + 1
			return
		}
		rc.loops.pop()
		rc.pc++
		return
	}

	vm.reportAt(rc, DiagStructure, "end", "no open loop or signal for 'end'")
	rc.pc++
}

// loopAgain decides at end whether the loop body runs once more.
func (vm *VM) loopAgain(rc *RunContext, l *loopFrame) bool {
	switch l.kind {
	case loopFor:
		v, _ := rc.env.Get(l.counterVar)
		next := v.Number() + 1
		rc.env.Set(l.counterVar, expr.Number(next))
		return next <= float64(l.endValue)
	case loopForever:
		return true
	default:
		return vm.evaluate(rc, l.condition).Truthy()
	}
}

func (vm *VM) execFor(rc *RunContext, s *script.Script, args []string) {
	if len(args) < 3 {
		vm.reportAt(rc, DiagSyntax, "for", "wrong syntax for for (usage: for <name> <from> <to>)")
		rc.pc++
		return
	}

	counter := expr.ResolveVars(args[0], rc.env)
	startText := expr.ResolveVars(args[1], rc.env)
	endText := expr.ResolveVars(args[2], rc.env)

	start, ok := expr.ParseInt(startText)
	if !ok {
		vm.reportDiag(rc, notANumber("for", "start", startText))
		rc.pc = skipBlock(s, rc.pc)
		return
	}
	end, ok := expr.ParseInt(endText)
	if !ok {
		vm.reportDiag(rc, notANumber("for", "end", endText))
		rc.pc = skipBlock(s, rc.pc)
		return
	}

	rc.env.Set(counter, expr.Int(start))
	if start > end {
		rc.pc = skipBlock(s, rc.pc)
		return
	}

	rc.loops.push(loopFrame{
		kind:       loopFor,
		startIndex: rc.pc,
		counterVar: counter,
		endValue:   end,
	})
	rc.pc++
}

func (vm *VM) execWhile(rc *RunContext, s *script.Script, condition string) {
	if !vm.evaluate(rc, condition).Truthy() {
		rc.pc = skipBlock(s, rc.pc)
		return
	}
	rc.loops.push(loopFrame{kind: loopWhile, startIndex: rc.pc, condition: condition})
	rc.pc++
}

func (vm *VM) execFingerMoving(rc *RunContext, rawTarget string) {
	target := expr.ResolveVars(rawTarget, rc.env)
	e, err := rc.element(target)
	if err != nil {
		vm.reportDiag(rc, elementNotFound(target))
		return
	}
	rc.pushGesture(target, e, rc.pc)
}

// skipBlock scans forward from the block header at from to its matching
// end and returns the line after it. Nested while, for, forever and signal2
// headers each need their own end.
func skipBlock(s *script.Script, from int) int {
	depth := 1
	i := from
	for i < s.Len() && depth > 0 {
		i++
		switch script.Command(s.Line(i)) {
		case "while", "for", "forever", "signal2":
			depth++
		case "end":
			depth--
		}
	}
	return i + 1
}

func (vm *VM) reportAt(rc *RunContext, kind DiagnosticKind, command, message string) {
	vm.report(&Diagnostic{Kind: kind, Message: message, Line: rc.pc, Command: command})
}

func (vm *VM) reportDiag(rc *RunContext, d *Diagnostic) {
	d.Line = rc.pc
	vm.report(d)
}
