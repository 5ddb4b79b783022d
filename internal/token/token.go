// Package token defines chatscript token types.
package token

import "fmt"

// Token represents a chatscript token type.
type Token int

const (
	EOF Token = iota

	COMMAND // /word introducing a statement
	VARREF  // $name
	LISTREF // @name
	STRING  // "double-quoted, may contain $name interpolation spans"
	NUMBER  // 42, 3.14, -7
	WORD    // bare word: function names, in, else, true, false, delete

	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	COMMA    // ,
	ASSIGN   // =
	ARROW    // =>
)

// String returns the string representation of a token.
func (t Token) String() string {
	switch t {
	case EOF:
		return "EOF"
	case COMMAND:
		return "COMMAND"
	case VARREF:
		return "VARREF"
	case LISTREF:
		return "LISTREF"
	case STRING:
		return "STRING"
	case NUMBER:
		return "NUMBER"
	case WORD:
		return "WORD"
	case LBRACE:
		return "LBRACE"
	case RBRACE:
		return "RBRACE"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case LBRACKET:
		return "LBRACKET"
	case RBRACKET:
		return "RBRACKET"
	case COMMA:
		return "COMMA"
	case ASSIGN:
		return "ASSIGN"
	case ARROW:
		return "ARROW"
	}
	return "UNKNOWN"
}

// Position is a line/column location in script source (both 1-based).
type Position struct {
	Line int
	Col  int
}

// String formats a position as "line:col".
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}
