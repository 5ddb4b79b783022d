package scanner

import (
	"errors"
	"testing"

	"github.com/tokenring-ai/chatscript/internal/token"
)

func collect(t *testing.T, src string) []*Item {
	t.Helper()
	s := NewFromString(src)
	var items []*Item
	for {
		item, err := s.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		items = append(items, item)
		if item.Token == token.EOF {
			return items
		}
	}
}

func TestScanVarAssign(t *testing.T) {
	items := collect(t, `/var $x = "hello"`)

	want := []struct {
		tok token.Token
		val string
	}{
		{token.COMMAND, "var"},
		{token.VARREF, "x"},
		{token.ASSIGN, "="},
		{token.STRING, "hello"},
		{token.EOF, ""},
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, w := range want {
		if items[i].Token != w.tok || items[i].Value != w.val {
			t.Errorf("item %d: expected %s %q, got %s %q", i, w.tok, w.val, items[i].Token, items[i].Value)
		}
	}
}

func TestScanFuncDefinition(t *testing.T) {
	items := collect(t, `/func static greet($name) => "Hi $name"`)

	want := []token.Token{
		token.COMMAND, token.WORD, token.WORD, token.LPAREN,
		token.VARREF, token.RPAREN, token.ARROW, token.STRING, token.EOF,
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, w := range want {
		if items[i].Token != w {
			t.Errorf("item %d: expected %s, got %s %q", i, w, items[i].Token, items[i].Value)
		}
	}
	if items[7].Value != "Hi $name" {
		t.Errorf("expected raw template 'Hi $name', got %q", items[7].Value)
	}
}

func TestScanNumbers(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{"-7", "-7"},
		{"3.5", "3.5"},
		{"-0.25", "-0.25"},
	}
	for _, tt := range tests {
		items := collect(t, tt.src)
		if items[0].Token != token.NUMBER {
			t.Errorf("%q: expected NUMBER, got %s", tt.src, items[0].Token)
		}
		if items[0].Value != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.src, tt.want, items[0].Value)
		}
	}
}

func TestScanStringEscapes(t *testing.T) {
	items := collect(t, `"a\nb\t\"c\\"`)
	if items[0].Token != token.STRING {
		t.Fatalf("expected STRING, got %s", items[0].Token)
	}
	want := "a\nb\t\"c\\"
	if items[0].Value != want {
		t.Errorf("expected %q, got %q", want, items[0].Value)
	}
}

func TestUnterminatedString(t *testing.T) {
	s := NewFromString(`/echo "oops`)
	s.Next() // /echo
	_, err := s.Next()
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected LexError, got %v", err)
	}
}

func TestBareSigil(t *testing.T) {
	for _, src := range []string{"$ x", "@ x", "/ x"} {
		s := NewFromString(src)
		_, err := s.Next()
		var lexErr *LexError
		if !errors.As(err, &lexErr) {
			t.Errorf("%q: expected LexError, got %v", src, err)
		}
	}
}

func TestLineTracking(t *testing.T) {
	s := NewFromString("/echo \"a\"\n/echo \"b\"")
	for i := 0; i < 2; i++ {
		s.Next()
	}
	item, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Pos.Line != 2 {
		t.Errorf("expected line 2, got %d", item.Pos.Line)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	s := NewFromString("/echo")
	p1, err := s.Peek()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n1, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1 != n1 {
		t.Errorf("Peek and Next returned different items")
	}
}

func TestScanRawBlock(t *testing.T) {
	// The opening brace is consumed by the caller.
	src := ` var x = { a: "}" }; return x; } /echo "after"`
	s := NewFromString(src)
	body, err := s.ScanRawBlock(token.Position{Line: 1, Col: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `var x = { a: "}" }; return x;`
	if body != want {
		t.Errorf("expected %q, got %q", want, body)
	}

	// The scanner continues cleanly after the block.
	item, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Token != token.COMMAND || item.Value != "echo" {
		t.Errorf("expected /echo after block, got %s %q", item.Token, item.Value)
	}
}

func TestScanRawBlockUnterminated(t *testing.T) {
	s := NewFromString("no closing brace")
	_, err := s.ScanRawBlock(token.Position{Line: 1, Col: 1})
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected LexError, got %v", err)
	}
}
