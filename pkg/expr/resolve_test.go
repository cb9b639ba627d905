package expr

import "testing"

func TestResolveVars(t *testing.T) {
	env := MapLookup{
		"x":    Int(1),
		"name": String("Ann"),
		"ok":   Bool(false),
	}

	tests := []struct {
		input string
		want  string
	}{
		{"$x", "1"},
		{"hello $name!", "hello Ann!"},
		{"$x and $missing", "1 and $missing"},
		{"$ok", "false"},
		{"price $5", "price $5"},
		{"no vars", "no vars"},
		{"$x$x", "11"},
	}

	for _, tt := range tests {
		if got := ResolveVars(tt.input, env); got != tt.want {
			t.Errorf("ResolveVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a and b", "a && b"},
		{"a OR b", "a || b"},
		{"Not a", "! a"},
		{"band and brand", "band && brand"},
		{`x == "y"`, `x === "y"`},
		{`x != "y"`, `x !== "y"`},
		{`x == 1`, `x == 1`},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
