package vm

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/dimscript/pkg/script"
)

func TestControlFlow(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		want  []string
		diags int
	}{
		{
			name: "if true runs only the if branch",
			src:  lines("if 1 < 2", "print yes", "else", "print no", "endif", "print after"),
			want: []string{"> yes", "> after"},
		},
		{
			name: "if false runs only the else branch",
			src:  lines("if 1 > 2", "print yes", "else", "print no", "endif", "print after"),
			want: []string{"> no", "> after"},
		},
		{
			name: "nested if inside a false branch stays inactive",
			src: lines(
				"if false",
				"if true",
				"print a",
				"else",
				"print b",
				"endif",
				"else",
				"print c",
				"endif",
			),
			want: []string{"> c"},
		},
		{
			name: "string comparison with a variable",
			src:  lines(`set answer = "yes"`, `if answer == "yes"`, "print matched", "endif"),
			want: []string{"> matched"},
		},
		{
			name: "for counts inclusively",
			src:  lines("for i 1 3", "print $i", "end", "print $i"),
			want: []string{"> 1", "> 2", "> 3", "> 4"},
		},
		{
			name: "for with start after end skips the body",
			src:  lines("for i 5 1", "print body", "end", "print $i"),
			want: []string{"> 5"},
		},
		{
			name: "nested for loops",
			src:  lines("for i 1 2", "for j 1 2", "print $i$j", "end", "end"),
			want: []string{"> 11", "> 12", "> 21", "> 22"},
		},
		{
			name: "for body can change the counter",
			src:  lines("for i 1 10", "print $i", "set i = i + 4", "end"),
			want: []string{"> 1", "> 6"},
		},
		{
			name: "while repeats while true",
			src:  lines("set n = 3", "while n > 0", "print $n", "set n = n - 1", "end", "print done"),
			want: []string{"> 3", "> 2", "> 1", "> done"},
		},
		{
			name: "while false skips nested blocks",
			src: lines(
				"set n = 0",
				"while n > 0",
				"for j 1 3",
				"print inner",
				"end",
				"forever",
				"end",
				"signal2 S",
				"end",
				"print body",
				"end",
				"print after",
			),
			want: []string{"> after"},
		},
		{
			name: "while false at the end of the script",
			src:  lines("while false", "print body", "end"),
			want: nil,
		},
		{
			name: "word operators",
			src:  lines("set a = 1", "if a == 1 and not false", "print ok", "endif"),
			want: []string{"> ok"},
		},
		{
			name:  "signal2 without a signal falls through to the diagnostic",
			src:   lines("signal2 S", "end", "print after"),
			want:  []string{"! no open loop or signal for 'end'", "> after"},
			diags: 1,
		},
		{
			name: "signal2 without a signal falls through to the enclosing loop",
			src:  lines("for i 1 2", "signal2 S", "print $i", "end"),
			want: []string{"> 1", "> 2"},
		},
		{
			name: "signal before signal2 pops at end",
			src:  lines("signal S", "signal2 S", "print in", "end", "print after"),
			want: []string{"> in", "> after"},
		},
		{
			name: "signal inside the block marks the frame",
			src:  lines("for i 1 3", "signal2 go", "signal go", "end", "print $i"),
			want: []string{"> 1"},
		},
		{
			name: "blank lines and comments are skipped",
			src:  lines("// heading", "", "print a", "   // indented", "print b"),
			want: []string{"> a", "> b"},
		},
		{
			name:  "else without if",
			src:   lines("else", "print after"),
			want:  []string{"! 'else' without matching 'if'", "> after"},
			diags: 1,
		},
		{
			name:  "endif without if",
			src:   lines("endif", "print after"),
			want:  []string{"! 'endif' without matching 'if'", "> after"},
			diags: 1,
		},
		{
			name:  "second else is ignored",
			src:   lines("if false", "print a", "else", "print b", "else", "print c", "endif"),
			want:  []string{"> b", "! duplicate 'else' for the same 'if'", "> c"},
			diags: 1,
		},
		{
			name:  "for with a non-numeric bound skips the body",
			src:   lines("for i 1 many", "print body", "end", "print after"),
			want:  []string{"! for: end must be a number, got 'many'", "> after"},
			diags: 1,
		},
		{
			name:  "for with too few arguments",
			src:   lines("for i 1", "print body", "end"),
			want:  []string{"! wrong syntax for for (usage: for <name> <from> <to>)", "> body", "! no open loop or signal for 'end'"},
			diags: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, scene, _ := newTestVM(t)
			runScript(t, vm, tt.src)

			got := scene.Lines()
			if !slices.Equal(got, tt.want) {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
			if n := len(diagnostics(scene)); n != tt.diags {
				t.Errorf("got %d diagnostics, want %d", n, tt.diags)
			}
		})
	}
}

func TestSkipBlock(t *testing.T) {
	s := script.Parse("t", lines(
		"while x", // 0
		"for i 1 2",
		"end",
		"signal2 s",
		"end",
		"end", // 5
		"print after",
	))
	if got := skipBlock(s, 0); got != 6 {
		t.Errorf("skipBlock = %d, want 6", got)
	}

	// an unterminated block runs off the end of the script
	s = script.Parse("t", lines("while x", "print a"))
	if got := skipBlock(s, 0); got < s.Len() {
		t.Errorf("skipBlock = %d, want >= %d", got, s.Len())
	}
}

func TestForeverStopsOnCancel(t *testing.T) {
	vm, _, _ := newTestVM(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- vm.Run(ctx, script.Parse("t", lines("set n = 0", "forever", "set n = n + 1", "end")))
	}()

	waitFor(t, "loop iterations", func() bool {
		v, ok := vm.Variables()["n"]
		return ok && v.Number() > 10
	})
	cancel()

	if err := <-done; err == nil {
		t.Error("expected a cancellation error")
	}
	if vm.IsRunning() {
		t.Error("expected VM to stop running")
	}
}

// Property: for v a b runs the body b-a+1 times and leaves v at b+1.
func TestPropertyForLoopCount(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("for runs b-a+1 times", prop.ForAll(
		func(a, n int) bool {
			b := a + n
			vm, scene, _ := newTestVM(t)
			runScript(t, vm, lines(fmt.Sprintf("for v %d %d", a, b), "print x", "end"))

			if len(scene.Lines()) != n+1 {
				return false
			}
			v, ok := vm.Variables()["v"]
			return ok && int(v.Number()) == b+1
		},
		gen.IntRange(-20, 20),
		gen.IntRange(0, 15),
	))

	properties.Property("for with a > b never runs", prop.ForAll(
		func(b, n int) bool {
			a := b + n
			vm, scene, _ := newTestVM(t)
			runScript(t, vm, lines(fmt.Sprintf("for v %d %d", a, b), "print x", "end", "print done"))
			return slices.Equal(scene.Lines(), []string{"> done"})
		},
		gen.IntRange(-20, 20),
		gen.IntRange(1, 15),
	))

	properties.TestingRun(t)
}

// Property: a skipped while lands after its own end however deep the nesting.
func TestPropertyWhileSkipsNesting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	headers := []string{"while true", "for k 1 2", "forever", "signal2 s"}

	properties.Property("while false skips to its matching end", prop.ForAll(
		func(depth, kind int) bool {
			var src []string
			src = append(src, "while false")
			for d := 0; d < depth; d++ {
				src = append(src, headers[(kind+d)%len(headers)], "print inside")
			}
			src = append(src, strings.Repeat("end\n", depth)+"end", "print after")

			vm, scene, _ := newTestVM(t)
			runScript(t, vm, lines(src...))
			return slices.Equal(scene.Lines(), []string{"> after"})
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
