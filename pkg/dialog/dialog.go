// Package dialog implements the alert, prompt and confirm commands on a
// terminal.
package dialog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/zurustar/dimscript/pkg/logger"
)

// Terminal asks questions on w and reads answers line by line from r.
// Calls are serialized so concurrent triggers do not interleave questions.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
	log *slog.Logger
}

// Option is a functional option for configuring the Terminal.
type Option func(*Terminal)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(t *Terminal) {
		t.log = log
	}
}

// NewTerminal creates a Terminal reading from r and writing to w.
func NewTerminal(r io.Reader, w io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		in:  bufio.NewReader(r),
		out: w,
		log: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Alert shows message and waits for Enter.
func (t *Terminal) Alert(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "[alert] %s\n", message)
	fmt.Fprint(t.out, "(press Enter) ")
	if _, ok := t.readLine(); !ok {
		fmt.Fprintln(t.out)
	}
}

// Prompt shows message and returns the answer. An empty line or end of
// input cancels the prompt.
func (t *Terminal) Prompt(message string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "[prompt] %s\n> ", message)
	line, ok := t.readLine()
	if !ok || line == "" {
		t.log.Debug("prompt cancelled", "message", message)
		return "", false
	}
	return line, true
}

// Confirm shows message and returns true for y/yes (any case). Anything
// else, including end of input, is false.
func (t *Terminal) Confirm(message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "[confirm] %s [y/N] ", message)
	line, _ := t.readLine()
	switch strings.ToLower(line) {
	case "y", "yes", "ok":
		return true
	}
	return false
}

// readLine returns the next line without its line ending. ok is false at
// end of input with nothing read.
func (t *Terminal) readLine() (string, bool) {
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		if err != io.EOF {
			t.log.Warn("failed to read answer", "error", err)
		}
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}
