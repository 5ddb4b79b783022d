// Package ast defines chatscript statement and expression nodes.
//
// Nodes are created once per parse and are immutable thereafter, so a
// script's AST can be cached and reused across runs.
package ast

import (
	"strings"
	"unicode"

	"github.com/tokenring-ai/chatscript/internal/token"
)

// Fragment is one span of an interpolated string: either literal text
// or a $variable reference, never both.
type Fragment struct {
	Lit string
	Var string
}

// InterpolatedString is an ordered sequence of literal and variable
// fragments. It carries no resolved text: substitution happens at
// evaluation time, so re-evaluating after a variable mutation yields
// the new value.
type InterpolatedString struct {
	Fragments []Fragment
}

// HasVars reports whether any fragment references a variable.
func (s InterpolatedString) HasVars() bool {
	for _, f := range s.Fragments {
		if f.Var != "" {
			return true
		}
	}
	return false
}

// Raw reconstructs the source form of the template.
func (s InterpolatedString) Raw() string {
	var sb strings.Builder
	for _, f := range s.Fragments {
		if f.Var != "" {
			sb.WriteByte('$')
			sb.WriteString(f.Var)
		} else {
			sb.WriteString(f.Lit)
		}
	}
	return sb.String()
}

// ParseTemplate splits raw string content into interpolation fragments.
// A '$' followed by an identifier starts a variable reference; a '$'
// not followed by a valid identifier stays a literal character.
func ParseTemplate(raw string) InterpolatedString {
	var frags []Fragment
	var lit strings.Builder

	runes := []rune(raw)
	for i := 0; i < len(runes); {
		r := runes[i]
		if r == '$' && i+1 < len(runes) && isIdentStart(runes[i+1]) {
			if lit.Len() > 0 {
				frags = append(frags, Fragment{Lit: lit.String()})
				lit.Reset()
			}
			j := i + 1
			for j < len(runes) && isIdentChar(runes[j]) {
				j++
			}
			frags = append(frags, Fragment{Var: string(runes[i+1 : j])})
			i = j
			continue
		}
		lit.WriteRune(r)
		i++
	}
	if lit.Len() > 0 {
		frags = append(frags, Fragment{Lit: lit.String()})
	}
	return InterpolatedString{Fragments: frags}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Expr is a value-position expression.
type Expr interface {
	exprNode()
}

// StringLit is an interpolated string literal.
type StringLit struct {
	Template InterpolatedString
}

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
}

// VarRef references a $variable.
type VarRef struct {
	Name string
	Pos  token.Position
}

// ListRef references an @list.
type ListRef struct {
	Name string
	Pos  token.Position
}

// CallExpr invokes a registered function in value position.
type CallExpr struct {
	Name string
	Args []Expr
	Pos  token.Position
}

func (StringLit) exprNode() {}
func (NumberLit) exprNode() {}
func (BoolLit) exprNode()   {}
func (VarRef) exprNode()    {}
func (ListRef) exprNode()   {}
func (CallExpr) exprNode()  {}

// FuncKind selects a function definition's execution strategy.
type FuncKind int

const (
	// FuncStatic evaluates an interpolated template against bound params.
	FuncStatic FuncKind = iota
	// FuncLLM sends an interpolated prompt to the LLM capability.
	FuncLLM
	// FuncCode hands an opaque body to the code-execution capability.
	FuncCode
)

// String returns the source keyword for a function kind.
func (k FuncKind) String() string {
	switch k {
	case FuncStatic:
		return "static"
	case FuncLLM:
		return "llm"
	case FuncCode:
		return "js"
	}
	return "unknown"
}

// FunctionDecl is a parsed /func definition. Exactly one of Template
// (static, llm) or Body (code) is meaningful, selected by Kind.
type FunctionDecl struct {
	Name     string
	Params   []string
	Kind     FuncKind
	Template InterpolatedString
	Body     string
}

// Statement is a single parsed command.
type Statement interface {
	stmtNode()
	Pos() token.Position
}

// Base carries the source position shared by all statements.
type Base struct {
	Position token.Position
}

func (b Base) stmtNode()           {}
func (b Base) Pos() token.Position { return b.Position }

// VarAssign is /var $name = expr. Assignment rebinds at the declaring
// scope, auto-vivifying in the current scope when unbound.
type VarAssign struct {
	Base
	Name  string
	Value Expr
}

// VarDelete is /var delete $name.
type VarDelete struct {
	Base
	Name string
}

// VarsList is /vars.
type VarsList struct {
	Base
}

// ListDefine is /list @name = [...] or /list @name = producer("...").
// Exactly one of Elems or Producer is set.
type ListDefine struct {
	Base
	Name     string
	Elems    []Expr
	Producer *ProducerCall
}

// ProducerCall names an iterable producer and its arguments.
type ProducerCall struct {
	Name string
	Args []Expr
}

// FuncDefine is /func static|llm|js name(params) => "..." or { ... }.
type FuncDefine struct {
	Base
	Decl FunctionDecl
}

// FuncDelete is /func delete name.
type FuncDelete struct {
	Base
	Name string
}

// FuncsList is /funcs.
type FuncsList struct {
	Base
}

// CallStmt is /call name(args...).
type CallStmt struct {
	Base
	Call CallExpr
}

// Echo is /echo expr.
type Echo struct {
	Base
	Value Expr
}

// Sleep is /sleep millis.
type Sleep struct {
	Base
	Millis Expr
}

// Prompt is /prompt $name "message".
type Prompt struct {
	Base
	Name    string
	Message Expr
}

// Confirm is /confirm $name "message".
type Confirm struct {
	Base
	Name    string
	Message Expr
}

// If is /if expr { ... } with an optional else { ... }.
type If struct {
	Base
	Cond Expr
	Then []Statement
	Else []Statement
}

// For is /for $item in @list { ... }.
type For struct {
	Base
	Var  string
	List string
	Body []Statement
}

// While is /while expr { ... }. The condition is re-evaluated in the
// enclosing scope before every iteration.
type While struct {
	Base
	Cond Expr
	Body []Statement
}

// Break is /break.
type Break struct {
	Base
}

// Continue is /continue.
type Continue struct {
	Base
}

// ScriptInvoke is /script run name input.
type ScriptInvoke struct {
	Base
	Name  string
	Input Expr
}
