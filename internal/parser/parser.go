// Package parser turns a chatscript token stream into statement sequences.
//
// Parsing is pure: no side effects and no external calls, so a script's
// AST can be cached and reused across multiple runs with different input.
package parser

import (
	"fmt"
	"strconv"

	"github.com/tokenring-ai/chatscript/internal/ast"
	"github.com/tokenring-ai/chatscript/internal/scanner"
	"github.com/tokenring-ai/chatscript/internal/token"
)

// ErrKind classifies parse failures.
type ErrKind int

const (
	ErrUnexpectedToken ErrKind = iota
	ErrUnknownCommand
	ErrMissingArgument
	ErrUnterminatedBlock
)

// String returns the kind name.
func (k ErrKind) String() string {
	switch k {
	case ErrUnexpectedToken:
		return "unexpected token"
	case ErrUnknownCommand:
		return "unknown command"
	case ErrMissingArgument:
		return "missing argument"
	case ErrUnterminatedBlock:
		return "unterminated block"
	}
	return "parse error"
}

// ParseError reports a malformed statement. Parse errors abort the whole
// run before any statement executes.
type ParseError struct {
	Kind    ErrKind
	Command string // command being parsed, if known
	Pos     token.Position
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("parse error at %s in /%s: %s: %s", e.Pos, e.Command, e.Kind, e.Msg)
	}
	return fmt.Sprintf("parse error at %s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// Parser consumes tokens and emits one Statement per top-level command.
type Parser struct {
	scan *scanner.Scanner
	cmd  string // command currently being parsed, for error reporting
}

// New creates a Parser over a Scanner.
func New(s *scanner.Scanner) *Parser {
	return &Parser{scan: s}
}

// Parse parses an entire script source into a statement sequence.
func Parse(src string) ([]ast.Statement, error) {
	return New(scanner.NewFromString(src)).Program()
}

// Program parses statements until EOF.
func (p *Parser) Program() ([]ast.Statement, error) {
	var stmts []ast.Statement
	for {
		item, err := p.scan.Peek()
		if err != nil {
			return nil, err
		}
		if item.Token == token.EOF {
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	item, err := p.scan.Next()
	if err != nil {
		return nil, err
	}
	if item.Token != token.COMMAND {
		return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: item.Pos,
			Msg: fmt.Sprintf("expected a /command, got %s %q", item.Token, item.Value)}
	}

	p.cmd = item.Value
	base := ast.Base{Position: item.Pos}

	switch item.Value {
	case "var":
		return p.parseVar(base)
	case "vars":
		return &ast.VarsList{Base: base}, nil
	case "list":
		return p.parseList(base)
	case "func":
		return p.parseFunc(base)
	case "funcs":
		return &ast.FuncsList{Base: base}, nil
	case "call":
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		return &ast.CallStmt{Base: base, Call: call}, nil
	case "echo":
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Echo{Base: base, Value: val}, nil
	case "sleep":
		ms, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.Sleep{Base: base, Millis: ms}, nil
	case "prompt":
		name, msg, err := p.parseBindingAndMessage()
		if err != nil {
			return nil, err
		}
		return &ast.Prompt{Base: base, Name: name, Message: msg}, nil
	case "confirm":
		name, msg, err := p.parseBindingAndMessage()
		if err != nil {
			return nil, err
		}
		return &ast.Confirm{Base: base, Name: name, Message: msg}, nil
	case "if":
		return p.parseIf(base)
	case "for":
		return p.parseFor(base)
	case "while":
		return p.parseWhile(base)
	case "break":
		return &ast.Break{Base: base}, nil
	case "continue":
		return &ast.Continue{Base: base}, nil
	case "script":
		return p.parseScriptInvoke(base)
	default:
		return nil, &ParseError{Kind: ErrUnknownCommand, Command: item.Value, Pos: item.Pos,
			Msg: fmt.Sprintf("/%s is not a chatscript command", item.Value)}
	}
}

// parseVar handles /var $name = expr and /var delete $name.
func (p *Parser) parseVar(base ast.Base) (ast.Statement, error) {
	item, err := p.scan.Next()
	if err != nil {
		return nil, err
	}
	if item.Token == token.WORD && item.Value == "delete" {
		name, err := p.expect(token.VARREF, "variable to delete")
		if err != nil {
			return nil, err
		}
		return &ast.VarDelete{Base: base, Name: name.Value}, nil
	}
	if item.Token != token.VARREF {
		return nil, p.unexpected(item, "$variable")
	}
	if _, err := p.expect(token.ASSIGN, "'='"); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.VarAssign{Base: base, Name: item.Value, Value: val}, nil
}

// parseList handles /list @name = [...] and /list @name = producer("...").
func (p *Parser) parseList(base ast.Base) (ast.Statement, error) {
	name, err := p.expect(token.LISTREF, "@list name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN, "'='"); err != nil {
		return nil, err
	}

	item, err := p.scan.Next()
	if err != nil {
		return nil, err
	}
	switch item.Token {
	case token.LBRACKET:
		elems, err := p.parseExprSeq(token.RBRACKET)
		if err != nil {
			return nil, err
		}
		return &ast.ListDefine{Base: base, Name: name.Value, Elems: elems}, nil

	case token.WORD:
		// Producer form: glob("*.md") and friends.
		if _, err := p.expect(token.LPAREN, "'('"); err != nil {
			return nil, err
		}
		args, err := p.parseExprSeq(token.RPAREN)
		if err != nil {
			return nil, err
		}
		return &ast.ListDefine{Base: base, Name: name.Value,
			Producer: &ast.ProducerCall{Name: item.Value, Args: args}}, nil

	default:
		return nil, p.unexpected(item, "'[' or a producer call")
	}
}

// parseFunc handles /func static|llm|js name(params) and /func delete name.
func (p *Parser) parseFunc(base ast.Base) (ast.Statement, error) {
	kind, err := p.expect(token.WORD, "'static', 'llm', 'js' or 'delete'")
	if err != nil {
		return nil, err
	}

	if kind.Value == "delete" {
		name, err := p.expect(token.WORD, "function name")
		if err != nil {
			return nil, err
		}
		return &ast.FuncDelete{Base: base, Name: name.Value}, nil
	}

	var fk ast.FuncKind
	switch kind.Value {
	case "static":
		fk = ast.FuncStatic
	case "llm":
		fk = ast.FuncLLM
	case "js":
		fk = ast.FuncCode
	default:
		return nil, &ParseError{Kind: ErrUnexpectedToken, Command: p.cmd, Pos: kind.Pos,
			Msg: fmt.Sprintf("unknown function kind %q", kind.Value)}
	}

	name, err := p.expect(token.WORD, "function name")
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}

	decl := ast.FunctionDecl{Name: name.Value, Params: params, Kind: fk}

	if fk == ast.FuncCode {
		lbrace, err := p.expect(token.LBRACE, "'{'")
		if err != nil {
			return nil, err
		}
		body, err := p.scan.ScanRawBlock(lbrace.Pos)
		if err != nil {
			return nil, err
		}
		decl.Body = body
		return &ast.FuncDefine{Base: base, Decl: decl}, nil
	}

	if _, err := p.expect(token.ARROW, "'=>'"); err != nil {
		return nil, err
	}
	tpl, err := p.expect(token.STRING, "template string")
	if err != nil {
		return nil, err
	}
	decl.Template = ast.ParseTemplate(tpl.Value)
	return &ast.FuncDefine{Base: base, Decl: decl}, nil
}

// parseParams parses ($a, $b, ...) in a function definition.
func (p *Parser) parseParams() ([]string, error) {
	if _, err := p.expect(token.LPAREN, "'('"); err != nil {
		return nil, err
	}
	var params []string
	for {
		item, err := p.scan.Next()
		if err != nil {
			return nil, err
		}
		switch item.Token {
		case token.RPAREN:
			return params, nil
		case token.VARREF:
			params = append(params, item.Value)
			next, err := p.scan.Peek()
			if err != nil {
				return nil, err
			}
			if next.Token == token.COMMA {
				p.scan.Next()
			}
		default:
			return nil, p.unexpected(item, "$parameter or ')'")
		}
	}
}

// parseCall parses name(args...) after /call or the call keyword.
func (p *Parser) parseCall() (ast.CallExpr, error) {
	name, err := p.expect(token.WORD, "function name")
	if err != nil {
		return ast.CallExpr{}, err
	}
	if _, err := p.expect(token.LPAREN, "'('"); err != nil {
		return ast.CallExpr{}, err
	}
	args, err := p.parseExprSeq(token.RPAREN)
	if err != nil {
		return ast.CallExpr{}, err
	}
	return ast.CallExpr{Name: name.Value, Args: args, Pos: name.Pos}, nil
}

// parseBindingAndMessage parses the $name "message" tail of /prompt and /confirm.
func (p *Parser) parseBindingAndMessage() (string, ast.Expr, error) {
	name, err := p.expect(token.VARREF, "$variable to bind")
	if err != nil {
		return "", nil, err
	}
	msg, err := p.parseExpr()
	if err != nil {
		return "", nil, err
	}
	return name.Value, msg, nil
}

func (p *Parser) parseIf(base ast.Base) (ast.Statement, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	stmt := &ast.If{Base: base, Cond: cond, Then: then}

	next, err := p.scan.Peek()
	if err != nil {
		return nil, err
	}
	if next.Token == token.WORD && next.Value == "else" {
		p.scan.Next()
		elseBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	return stmt, nil
}

func (p *Parser) parseFor(base ast.Base) (ast.Statement, error) {
	item, err := p.expect(token.VARREF, "$loop variable")
	if err != nil {
		return nil, err
	}
	kw, err := p.expect(token.WORD, "'in'")
	if err != nil {
		return nil, err
	}
	if kw.Value != "in" {
		return nil, &ParseError{Kind: ErrUnexpectedToken, Command: p.cmd, Pos: kw.Pos,
			Msg: fmt.Sprintf("expected 'in', got %q", kw.Value)}
	}
	list, err := p.expect(token.LISTREF, "@list")
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.For{Base: base, Var: item.Value, List: list.Value, Body: body}, nil
}

func (p *Parser) parseWhile(base ast.Base) (ast.Statement, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{Base: base, Cond: cond, Body: body}, nil
}

func (p *Parser) parseScriptInvoke(base ast.Base) (ast.Statement, error) {
	verb, err := p.expect(token.WORD, "'run'")
	if err != nil {
		return nil, err
	}
	if verb.Value != "run" {
		return nil, &ParseError{Kind: ErrUnexpectedToken, Command: p.cmd, Pos: verb.Pos,
			Msg: fmt.Sprintf("expected 'run', got %q", verb.Value)}
	}
	name, err := p.expect(token.WORD, "script name")
	if err != nil {
		return nil, err
	}

	stmt := &ast.ScriptInvoke{Base: base, Name: name.Value}

	// The input expression is optional; the next statement's /command
	// marks the end of this one.
	next, err := p.scan.Peek()
	if err != nil {
		return nil, err
	}
	if startsExpr(next) {
		input, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Input = input
	}
	return stmt, nil
}

// parseBlock parses { stmt... } and returns the nested statement sequence.
func (p *Parser) parseBlock() ([]ast.Statement, error) {
	open, err := p.expect(token.LBRACE, "'{'")
	if err != nil {
		return nil, err
	}
	var stmts []ast.Statement
	for {
		item, err := p.scan.Peek()
		if err != nil {
			return nil, err
		}
		switch item.Token {
		case token.RBRACE:
			p.scan.Next()
			return stmts, nil
		case token.EOF:
			return nil, &ParseError{Kind: ErrUnterminatedBlock, Command: p.cmd, Pos: open.Pos,
				Msg: "missing '}'"}
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// parseExprSeq parses comma-separated expressions up to the closing token.
func (p *Parser) parseExprSeq(closing token.Token) ([]ast.Expr, error) {
	var exprs []ast.Expr
	for {
		item, err := p.scan.Peek()
		if err != nil {
			return nil, err
		}
		if item.Token == closing {
			p.scan.Next()
			return exprs, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)

		next, err := p.scan.Peek()
		if err != nil {
			return nil, err
		}
		if next.Token == token.COMMA {
			p.scan.Next()
		}
	}
}

// parseExpr parses a value-position expression: string, number, boolean,
// $var, @list, or call name(args...).
func (p *Parser) parseExpr() (ast.Expr, error) {
	item, err := p.scan.Next()
	if err != nil {
		return nil, err
	}
	switch item.Token {
	case token.STRING:
		return ast.StringLit{Template: ast.ParseTemplate(item.Value)}, nil

	case token.NUMBER:
		n, err := strconv.ParseFloat(item.Value, 64)
		if err != nil {
			return nil, &ParseError{Kind: ErrUnexpectedToken, Command: p.cmd, Pos: item.Pos,
				Msg: fmt.Sprintf("invalid number %q", item.Value)}
		}
		return ast.NumberLit{Value: n}, nil

	case token.VARREF:
		return ast.VarRef{Name: item.Value, Pos: item.Pos}, nil

	case token.LISTREF:
		return ast.ListRef{Name: item.Value, Pos: item.Pos}, nil

	case token.WORD:
		switch item.Value {
		case "true":
			return ast.BoolLit{Value: true}, nil
		case "false":
			return ast.BoolLit{Value: false}, nil
		case "call":
			return p.parseCall()
		}
		return nil, p.unexpected(item, "an expression")

	case token.EOF:
		return nil, &ParseError{Kind: ErrMissingArgument, Command: p.cmd, Pos: item.Pos,
			Msg: "expected an expression"}

	default:
		return nil, p.unexpected(item, "an expression")
	}
}

// startsExpr reports whether the token can begin an expression.
func startsExpr(item *scanner.Item) bool {
	switch item.Token {
	case token.STRING, token.NUMBER, token.VARREF, token.LISTREF:
		return true
	case token.WORD:
		return item.Value == "true" || item.Value == "false" || item.Value == "call"
	}
	return false
}

// expect consumes the next token and fails unless it has the wanted type.
func (p *Parser) expect(want token.Token, desc string) (*scanner.Item, error) {
	item, err := p.scan.Next()
	if err != nil {
		return nil, err
	}
	if item.Token != want {
		return nil, p.unexpected(item, desc)
	}
	return item, nil
}

func (p *Parser) unexpected(item *scanner.Item, want string) error {
	kind := ErrUnexpectedToken
	if item.Token == token.EOF {
		kind = ErrMissingArgument
	}
	return &ParseError{Kind: kind, Command: p.cmd, Pos: item.Pos,
		Msg: fmt.Sprintf("expected %s, got %s %q", want, item.Token, item.Value)}
}
