package expr

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrSyntax is returned for malformed expression text.
	ErrSyntax = errors.New("syntax error")

	// ErrUndefined is returned when an identifier has no binding.
	ErrUndefined = errors.New("undefined identifier")
)

// Node is a parsed expression.
type Node interface {
	eval(env Lookup) (Value, error)
	String() string
}

type literal struct{ v Value }

type identifier struct{ name string }

type unary struct {
	op      TokenType
	operand Node
}

type binary struct {
	op          TokenType
	left, right Node
}

func (n *literal) String() string {
	if n.v.kind == KindString {
		return strconv.Quote(n.v.str)
	}
	return n.v.String()
}

func (n *identifier) String() string { return n.name }

func (n *unary) String() string {
	return fmt.Sprintf("(%s%s)", n.op, n.operand)
}

func (n *binary) String() string {
	return fmt.Sprintf("(%s %s %s)", n.left, n.op, n.right)
}

// precedence of binary operators, loosest first.
var precedences = map[TokenType]int{
	OR:    1,
	AND:   2,
	EQ:    3,
	NEQ:   3,
	SEQ:   3,
	SNEQ:  3,
	LT:    4,
	LTE:   4,
	GT:    4,
	GTE:   4,
	PLUS:  5,
	MINUS: 5,
	MULT:  6,
	DIV:   6,
	MOD:   6,
}

// Parser is a recursive-descent parser with precedence climbing for
// binary operators.
type Parser struct {
	l    *Lexer
	cur  Token
	peek Token
}

// Parse parses input into a Node.
func Parse(input string) (Node, error) {
	p := &Parser{l: NewLexer(input)}
	p.next()
	p.next()

	if p.cur.Type == EOF {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	n, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if p.cur.Type != EOF {
		return nil, p.unexpected()
	}
	return n, nil
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) unexpected() error {
	if p.cur.Type == EOF {
		return fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
	return fmt.Errorf("%w: unexpected %q at offset %d", ErrSyntax, p.cur.Literal, p.cur.Pos)
}

func (p *Parser) parseBinary(minPrec int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := precedences[p.cur.Type]
		if !ok || prec < minPrec {
			return left, nil
		}
		op := p.cur.Type
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &binary{op: op, left: left, right: right}
	}
}

func (p *Parser) parseUnary() (Node, error) {
	switch p.cur.Type {
	case NOT, MINUS, PLUS:
		op := p.cur.Type
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &unary{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.cur
	switch tok.Type {
	case NUMBER:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrSyntax, tok.Literal)
		}
		p.next()
		return &literal{v: Number(f)}, nil
	case STRING:
		p.next()
		return &literal{v: String(tok.Literal)}, nil
	case IDENT:
		p.next()
		switch tok.Literal {
		case "true":
			return &literal{v: Bool(true)}, nil
		case "false":
			return &literal{v: Bool(false)}, nil
		}
		return &identifier{name: tok.Literal}, nil
	case LPAREN:
		p.next()
		inner, err := p.parseBinary(1)
		if err != nil {
			return nil, err
		}
		if p.cur.Type != RPAREN {
			return nil, p.unexpected()
		}
		p.next()
		return inner, nil
	}
	return nil, p.unexpected()
}
