package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound is wrapped by diagnostics for unknown element names.
	ErrElementNotFound = errors.New("element not found")

	// ErrImageNotFound is wrapped by diagnostics for unknown project images.
	ErrImageNotFound = errors.New("image not found")

	// ErrAlreadyRunning is returned by Run while another run is active.
	ErrAlreadyRunning = errors.New("vm is already running")

	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("vm is closed")
)

// DiagnosticKind classifies a script diagnostic.
type DiagnosticKind string

const (
	// DiagSyntax covers wrong argument counts and malformed arguments.
	DiagSyntax DiagnosticKind = "SYNTAX"
	// DiagExpression covers expressions that failed to evaluate.
	DiagExpression DiagnosticKind = "EXPRESSION"
	// DiagStructure covers unbalanced if/else/endif/end.
	DiagStructure DiagnosticKind = "STRUCTURE"
	// DiagRuntime covers failures while a command runs.
	DiagRuntime DiagnosticKind = "RUNTIME"
)

// Diagnostic is a non-fatal script error. It is printed inline in the flow
// console and execution continues with the next line.
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
	Line    int    // 0-based script line, -1 on the re-entry path
	Command string // command name if known
	Err     error  // underlying error, if any
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.Line >= 0 {
		return fmt.Sprintf("[%s] %s at line %d", d.Kind, d.Message, d.Line+1)
	}
	return fmt.Sprintf("[%s] %s", d.Kind, d.Message)
}

// Unwrap returns the underlying error.
func (d *Diagnostic) Unwrap() error { return d.Err }

// NewDiagnostic creates a Diagnostic without line information.
func NewDiagnostic(kind DiagnosticKind, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Line:    -1,
	}
}

func usageError(name, usage string) *Diagnostic {
	d := NewDiagnostic(DiagSyntax, "wrong syntax for %s (usage: %s)", name, usage)
	d.Command = name
	return d
}

func elementNotFound(name string) *Diagnostic {
	d := NewDiagnostic(DiagRuntime, "element '%s' not found", name)
	d.Err = ErrElementNotFound
	return d
}

func imageNotFound(name string) *Diagnostic {
	d := NewDiagnostic(DiagRuntime, "image '%s' not found", name)
	d.Err = ErrImageNotFound
	return d
}

func notANumber(name, what, value string) *Diagnostic {
	d := NewDiagnostic(DiagSyntax, "%s: %s must be a number, got '%s'", name, what, value)
	d.Command = name
	return d
}
