package expr

import (
	"fmt"
	"log/slog"
	"math"
)

// Lookup resolves identifiers to values.
type Lookup interface {
	Lookup(name string) (Value, bool)
}

// MapLookup adapts a plain map to Lookup.
type MapLookup map[string]Value

// Lookup implements Lookup.
func (m MapLookup) Lookup(name string) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Eval evaluates a parsed Node against env.
func Eval(n Node, env Lookup) (Value, error) {
	return n.eval(env)
}

// Evaluate runs the full pipeline on raw expression text: variable
// substitution, dialect normalization, parsing and evaluation.
func Evaluate(text string, env Lookup) (Value, error) {
	normalized := Normalize(ResolveVars(text, env))
	n, err := Parse(normalized)
	if err != nil {
		return Value{}, fmt.Errorf("%q: %w", normalized, err)
	}
	v, err := n.eval(env)
	if err != nil {
		return Value{}, fmt.Errorf("%q: %w", normalized, err)
	}
	return v, nil
}

// EvaluateOrFalse is Evaluate with the fail-safe policy: any error is
// logged and the result is boolean false.
func EvaluateOrFalse(text string, env Lookup, log *slog.Logger) Value {
	v, err := Evaluate(text, env)
	if err != nil {
		if log != nil {
			log.Debug("expression evaluation failed", "expr", text, "error", err)
		}
		return Bool(false)
	}
	return v
}

func (n *literal) eval(Lookup) (Value, error) { return n.v, nil }

func (n *identifier) eval(env Lookup) (Value, error) {
	switch n.name {
	case "NaN":
		return Number(math.NaN()), nil
	case "Infinity":
		return Number(math.Inf(1)), nil
	}
	if env != nil {
		if v, ok := env.Lookup(n.name); ok {
			return v, nil
		}
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUndefined, n.name)
}

func (n *unary) eval(env Lookup) (Value, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case NOT:
		return Bool(!v.Truthy()), nil
	case MINUS:
		return Number(-v.Number()), nil
	default:
		return Number(v.Number()), nil
	}
}

func (n *binary) eval(env Lookup) (Value, error) {
	left, err := n.left.eval(env)
	if err != nil {
		return Value{}, err
	}

	// short-circuit: the deciding operand is the result
	switch n.op {
	case AND:
		if !left.Truthy() {
			return left, nil
		}
		return n.right.eval(env)
	case OR:
		if left.Truthy() {
			return left, nil
		}
		return n.right.eval(env)
	}

	right, err := n.right.eval(env)
	if err != nil {
		return Value{}, err
	}

	switch n.op {
	case PLUS:
		if left.kind == KindString || right.kind == KindString {
			return String(left.String() + right.String()), nil
		}
		return Number(left.Number() + right.Number()), nil
	case MINUS:
		return Number(left.Number() - right.Number()), nil
	case MULT:
		return Number(left.Number() * right.Number()), nil
	case DIV:
		return Number(left.Number() / right.Number()), nil
	case MOD:
		return Number(math.Mod(left.Number(), right.Number())), nil
	case EQ:
		return Bool(left.LooseEqual(right)), nil
	case NEQ:
		return Bool(!left.LooseEqual(right)), nil
	case SEQ:
		return Bool(left.StrictEqual(right)), nil
	case SNEQ:
		return Bool(!left.StrictEqual(right)), nil
	case LT, LTE, GT, GTE:
		return Bool(compare(n.op, left, right)), nil
	}
	return Value{}, fmt.Errorf("%w: operator %s", ErrSyntax, n.op)
}

// compare applies a relational operator. Two strings compare
// lexicographically, anything else numerically; NaN compares false.
func compare(op TokenType, a, b Value) bool {
	if a.kind == KindString && b.kind == KindString {
		switch op {
		case LT:
			return a.str < b.str
		case LTE:
			return a.str <= b.str
		case GT:
			return a.str > b.str
		default:
			return a.str >= b.str
		}
	}
	x, y := a.Number(), b.Number()
	switch op {
	case LT:
		return x < y
	case LTE:
		return x <= y
	case GT:
		return x > y
	default:
		return x >= y
	}
}
