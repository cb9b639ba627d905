package expr

import (
	"fmt"
	"strings"
)

// TokenType identifies a lexical token of the expression language.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF
	NUMBER
	STRING
	IDENT

	PLUS   // +
	MINUS  // -
	MULT   // *
	DIV    // /
	MOD    // %
	NOT    // !
	LT     // <
	LTE    // <=
	GT     // >
	GTE    // >=
	EQ     // ==
	NEQ    // !=
	SEQ    // ===
	SNEQ   // !==
	AND    // &&
	OR     // ||
	LPAREN // (
	RPAREN // )
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF", NUMBER: "NUMBER", STRING: "STRING", IDENT: "IDENT",
	PLUS: "+", MINUS: "-", MULT: "*", DIV: "/", MOD: "%", NOT: "!",
	LT: "<", LTE: "<=", GT: ">", GTE: ">=", EQ: "==", NEQ: "!=", SEQ: "===", SNEQ: "!==",
	AND: "&&", OR: "||", LPAREN: "(", RPAREN: ")",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a lexical token with its byte offset in the source.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

// Lexer tokenizes expression text.
type Lexer struct {
	input        string
	position     int  // current position in input
	readPosition int  // current reading position (after current char)
	ch           byte // current char
}

// NewLexer creates a Lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// NextToken returns the next token. Past the end it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.position
	switch l.ch {
	case 0:
		return Token{Type: EOF, Pos: pos}
	case '+':
		return l.single(PLUS)
	case '-':
		return l.single(MINUS)
	case '*':
		return l.single(MULT)
	case '/':
		return l.single(DIV)
	case '%':
		return l.single(MOD)
	case '(':
		return l.single(LPAREN)
	case ')':
		return l.single(RPAREN)
	case '<':
		if l.peekChar() == '=' {
			return l.multi(LTE, 2)
		}
		return l.single(LT)
	case '>':
		if l.peekChar() == '=' {
			return l.multi(GTE, 2)
		}
		return l.single(GT)
	case '=':
		if l.peekChar() == '=' {
			if l.peekAt(2) == '=' {
				return l.multi(SEQ, 3)
			}
			return l.multi(EQ, 2)
		}
		return l.single(ILLEGAL)
	case '!':
		if l.peekChar() == '=' {
			if l.peekAt(2) == '=' {
				return l.multi(SNEQ, 3)
			}
			return l.multi(NEQ, 2)
		}
		return l.single(NOT)
	case '&':
		if l.peekChar() == '&' {
			return l.multi(AND, 2)
		}
		return l.single(ILLEGAL)
	case '|':
		if l.peekChar() == '|' {
			return l.multi(OR, 2)
		}
		return l.single(ILLEGAL)
	case '"', '\'':
		lit, ok := l.readString(l.ch)
		if !ok {
			return Token{Type: ILLEGAL, Literal: lit, Pos: pos}
		}
		return Token{Type: STRING, Literal: lit, Pos: pos}
	}

	if isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
		return Token{Type: NUMBER, Literal: l.readNumber(), Pos: pos}
	}
	if isLetter(l.ch) {
		return Token{Type: IDENT, Literal: l.readIdentifier(), Pos: pos}
	}
	return l.single(ILLEGAL)
}

func (l *Lexer) single(t TokenType) Token {
	tok := Token{Type: t, Literal: string(l.ch), Pos: l.position}
	l.readChar()
	return tok
}

func (l *Lexer) multi(t TokenType, n int) Token {
	tok := Token{Type: t, Literal: l.input[l.position : l.position+n], Pos: l.position}
	for range n {
		l.readChar()
	}
	return tok
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	return l.peekAt(1)
}

func (l *Lexer) peekAt(offset int) byte {
	p := l.position + offset
	if p >= len(l.input) {
		return 0
	}
	return l.input[p]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekAt(2))) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[start:l.position]
}

// readString reads a quoted literal. ok is false when the closing quote is
// missing.
func (l *Lexer) readString(quote byte) (string, bool) {
	var sb strings.Builder
	l.readChar() // opening quote
	for {
		switch l.ch {
		case 0:
			return sb.String(), false
		case quote:
			l.readChar()
			return sb.String(), true
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 0:
				return sb.String(), false
			default:
				sb.WriteByte(l.ch)
			}
		default:
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
