// Package scanner provides a streaming Unicode-aware lexer for chatscript.
package scanner

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/tokenring-ai/chatscript/internal/token"
)

// LexError reports an invalid character sequence in script source.
// Lex errors abort the whole run before any statement executes.
type LexError struct {
	Pos token.Position
	Msg string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Msg)
}

// Item represents a scanned token with its value.
type Item struct {
	Token token.Token
	Value string
	Pos   token.Position // position where this token started
}

// Scanner tokenizes chatscript input rune-by-rune.
type Scanner struct {
	reader *bufio.Reader
	peeked *Item
	line   int // current line number (1-based)
	col    int // current column (1-based, next rune to be read)
}

// New creates a new Scanner from an io.Reader.
func New(r io.Reader) *Scanner {
	return &Scanner{
		reader: bufio.NewReader(r),
		line:   1,
		col:    1,
	}
}

// NewFromString creates a new Scanner from a string.
func NewFromString(s string) *Scanner {
	return New(strings.NewReader(s))
}

// pos returns the current source position.
func (s *Scanner) pos() token.Position {
	return token.Position{Line: s.line, Col: s.col}
}

// read consumes one rune, tracking line and column.
func (s *Scanner) read() (rune, error) {
	r, _, err := s.reader.ReadRune()
	if err != nil {
		return 0, err
	}
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r, nil
}

// unread puts the last rune back. Never call across a newline boundary
// except immediately after reading the newline itself.
func (s *Scanner) unread(r rune) {
	s.reader.UnreadRune()
	if r == '\n' {
		s.line--
	} else if s.col > 1 {
		s.col--
	}
}

// Peek returns the next item without consuming it.
func (s *Scanner) Peek() (*Item, error) {
	if s.peeked != nil {
		return s.peeked, nil
	}
	item, err := s.Next()
	if err != nil {
		return nil, err
	}
	s.peeked = item
	return item, nil
}

// Next returns the next token from the input.
func (s *Scanner) Next() (*Item, error) {
	if s.peeked != nil {
		item := s.peeked
		s.peeked = nil
		return item, nil
	}

	if err := s.skipSpace(); err != nil {
		if err == io.EOF {
			return &Item{Token: token.EOF, Pos: s.pos()}, nil
		}
		return nil, err
	}

	start := s.pos()
	r, err := s.read()
	if err == io.EOF {
		return &Item{Token: token.EOF, Pos: start}, nil
	}
	if err != nil {
		return nil, err
	}

	switch {
	case r == '/':
		word, err := s.scanIdent()
		if err != nil {
			return nil, err
		}
		if word == "" {
			return nil, &LexError{Pos: start, Msg: "expected command word after '/'"}
		}
		return &Item{Token: token.COMMAND, Value: word, Pos: start}, nil

	case r == '$':
		name, err := s.scanIdent()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, &LexError{Pos: start, Msg: "invalid sigil usage: '$' must be followed by an identifier"}
		}
		return &Item{Token: token.VARREF, Value: name, Pos: start}, nil

	case r == '@':
		name, err := s.scanIdent()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, &LexError{Pos: start, Msg: "invalid sigil usage: '@' must be followed by an identifier"}
		}
		return &Item{Token: token.LISTREF, Value: name, Pos: start}, nil

	case r == '"':
		raw, err := s.scanString(start)
		if err != nil {
			return nil, err
		}
		return &Item{Token: token.STRING, Value: raw, Pos: start}, nil

	case r == '{':
		return &Item{Token: token.LBRACE, Value: "{", Pos: start}, nil
	case r == '}':
		return &Item{Token: token.RBRACE, Value: "}", Pos: start}, nil
	case r == '(':
		return &Item{Token: token.LPAREN, Value: "(", Pos: start}, nil
	case r == ')':
		return &Item{Token: token.RPAREN, Value: ")", Pos: start}, nil
	case r == '[':
		return &Item{Token: token.LBRACKET, Value: "[", Pos: start}, nil
	case r == ']':
		return &Item{Token: token.RBRACKET, Value: "]", Pos: start}, nil
	case r == ',':
		return &Item{Token: token.COMMA, Value: ",", Pos: start}, nil

	case r == '=':
		next, err := s.read()
		if err == nil && next == '>' {
			return &Item{Token: token.ARROW, Value: "=>", Pos: start}, nil
		}
		if err == nil {
			s.unread(next)
		}
		return &Item{Token: token.ASSIGN, Value: "=", Pos: start}, nil

	case r == '-' || unicode.IsDigit(r):
		num, err := s.scanNumber(r, start)
		if err != nil {
			return nil, err
		}
		return &Item{Token: token.NUMBER, Value: num, Pos: start}, nil

	case isIdentStart(r):
		s.unread(r)
		word, err := s.scanIdent()
		if err != nil {
			return nil, err
		}
		return &Item{Token: token.WORD, Value: word, Pos: start}, nil

	default:
		return nil, &LexError{Pos: start, Msg: fmt.Sprintf("unexpected character %q", r)}
	}
}

// skipSpace consumes whitespace, including newlines. Whitespace outside
// strings is a token separator and otherwise insignificant.
func (s *Scanner) skipSpace() error {
	for {
		r, err := s.read()
		if err != nil {
			return err
		}
		if !unicode.IsSpace(r) {
			s.unread(r)
			return nil
		}
	}
}

// scanIdent reads a run of identifier characters (letters, digits, underscore).
func (s *Scanner) scanIdent() (string, error) {
	var sb strings.Builder
	for {
		r, err := s.read()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		if !isIdentChar(r) {
			s.unread(r)
			return sb.String(), nil
		}
		sb.WriteRune(r)
	}
}

// scanString reads a double-quoted string body. The opening quote has
// already been consumed; the closing quote is consumed but not included.
// Escape sequences \" \\ \n \t are resolved here. Interpolation spans
// ($name) are left in the raw content for the parser to split.
func (s *Scanner) scanString(start token.Position) (string, error) {
	var sb strings.Builder
	for {
		r, err := s.read()
		if err == io.EOF {
			return "", &LexError{Pos: start, Msg: "unterminated string"}
		}
		if err != nil {
			return "", err
		}
		switch r {
		case '"':
			return sb.String(), nil
		case '\\':
			esc, err := s.read()
			if err != nil {
				return "", &LexError{Pos: start, Msg: "unterminated string"}
			}
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"', '\\':
				sb.WriteRune(esc)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(r)
		}
	}
}

// scanNumber reads a number literal. The first rune has been consumed.
func (s *Scanner) scanNumber(first rune, start token.Position) (string, error) {
	var sb strings.Builder
	sb.WriteRune(first)
	sawDigit := unicode.IsDigit(first)
	for {
		r, err := s.read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if unicode.IsDigit(r) {
			sawDigit = true
			sb.WriteRune(r)
		} else if r == '.' {
			sb.WriteRune(r)
		} else {
			s.unread(r)
			break
		}
	}
	if !sawDigit {
		return "", &LexError{Pos: start, Msg: "expected digits after '-'"}
	}
	return sb.String(), nil
}

// ScanRawBlock reads the raw content of a brace-delimited block. The
// opening brace has already been consumed; the matching closing brace
// is consumed but not included. Nested braces are tracked so opaque
// code bodies survive intact; braces inside double-quoted segments do
// not affect the depth.
func (s *Scanner) ScanRawBlock(start token.Position) (string, error) {
	var sb strings.Builder
	depth := 1
	inString := false
	escaped := false

	for {
		r, err := s.read()
		if err == io.EOF {
			return "", &LexError{Pos: start, Msg: "unterminated block: missing '}'"}
		}
		if err != nil {
			return "", err
		}

		if inString {
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
		} else {
			switch r {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return strings.TrimSpace(sb.String()), nil
				}
			}
		}
		sb.WriteRune(r)
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

// isIdentChar returns true if the rune is valid in an identifier.
func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
