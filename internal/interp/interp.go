package interp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tokenring-ai/chatscript/internal/ast"
	"github.com/tokenring-ai/chatscript/internal/value"
)

// signal is a loop control signal raised by /break or /continue and
// consumed by the nearest enclosing loop.
type signal int

const (
	sigNone signal = iota
	sigBreak
	sigContinue
)

// Interpreter walks statement sequences and performs side effects
// through injected external capabilities. Execution is single-threaded
// and cooperative: the only suspension points are LLM invocation, code
// execution, human input, and sleep, and each observes the run context.
type Interpreter struct {
	llm       LLM
	code      CodeRunner
	human     HumanInput
	output    OutputWriter
	invoker   ScriptInvoker
	producers map[string]ProducerFactory
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLLM sets the LLM capability.
func WithLLM(llm LLM) Option {
	return func(in *Interpreter) { in.llm = llm }
}

// WithCodeRunner sets the code-execution capability.
func WithCodeRunner(code CodeRunner) Option {
	return func(in *Interpreter) { in.code = code }
}

// WithHumanInput sets the human-input capability.
func WithHumanInput(h HumanInput) Option {
	return func(in *Interpreter) { in.human = h }
}

// WithOutputWriter sets the writer for /echo output.
func WithOutputWriter(w OutputWriter) Option {
	return func(in *Interpreter) { in.output = w }
}

// WithProducer registers an iterable producer factory by name.
func WithProducer(name string, f ProducerFactory) Option {
	return func(in *Interpreter) { in.producers[name] = f }
}

// New creates an Interpreter with the given options. The glob producer
// is registered by default.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		producers: map[string]ProducerFactory{
			"glob": NewGlobProducer,
		},
		output: func(text string) error {
			fmt.Print(text)
			return nil
		},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// SetScriptInvoker wires the /script run capability. The script
// registry calls this when it adopts an interpreter.
func (in *Interpreter) SetScriptInvoker(inv ScriptInvoker) {
	in.invoker = inv
}

// Execute runs a statement sequence against the given environment and
// returns the final value. Runtime errors abort the remainder of the
// run; bindings already committed to outer scopes are not rolled back.
func (in *Interpreter) Execute(ctx context.Context, stmts []ast.Statement, env *Environment) (value.Value, error) {
	v, sig, err := in.execBlock(ctx, stmts, env)
	if err != nil {
		return value.Empty(), err
	}
	if sig != sigNone {
		return value.Empty(), fmt.Errorf("loop control signal outside of a loop")
	}
	return v, nil
}

// execBlock executes statements in order, tracking the last produced
// value. A break/continue signal stops the block and propagates to the
// nearest enclosing loop.
func (in *Interpreter) execBlock(ctx context.Context, stmts []ast.Statement, env *Environment) (value.Value, signal, error) {
	last := value.Empty()
	for _, stmt := range stmts {
		v, produced, sig, err := in.execStmt(ctx, stmt, env)
		if err != nil {
			return value.Empty(), sigNone, wrapRuntime(stmt, err)
		}
		if sig != sigNone {
			return last, sig, nil
		}
		if produced {
			last = v
		}
	}
	return last, sigNone, nil
}

// wrapRuntime attaches the offending statement's position to a runtime
// error. Cancellation and already-positioned errors pass through.
func wrapRuntime(stmt ast.Statement, err error) error {
	var cancel *CancelledError
	var scriptErr *ScriptError
	if errors.As(err, &cancel) || errors.As(err, &scriptErr) {
		return err
	}
	return &ScriptError{Pos: stmt.Pos(), Err: err}
}

func (in *Interpreter) execStmt(ctx context.Context, stmt ast.Statement, env *Environment) (value.Value, bool, signal, error) {
	switch s := stmt.(type) {
	case *ast.VarAssign:
		v, err := in.evalExpr(ctx, s.Value, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		env.Assign(s.Name, v)
		return value.Empty(), false, sigNone, nil

	case *ast.VarDelete:
		if !env.DeleteVar(s.Name) {
			in.writeOutput((&NotFoundError{Kind: "variable", Name: "$" + s.Name}).Error() + "\n")
		}
		return value.Empty(), false, sigNone, nil

	case *ast.VarsList:
		var sb strings.Builder
		for _, name := range env.VisibleVars() {
			v, _ := env.Lookup(name)
			fmt.Fprintf(&sb, "$%s = %s\n", name, v)
		}
		listing := sb.String()
		if err := in.writeOutput(listing); err != nil {
			return value.Empty(), false, sigNone, err
		}
		return value.Str(listing), true, sigNone, nil

	case *ast.ListDefine:
		return in.execListDefine(ctx, s, env)

	case *ast.FuncDefine:
		env.DeclareFunc(&Function{
			Name:     s.Decl.Name,
			Params:   s.Decl.Params,
			Kind:     s.Decl.Kind,
			Template: s.Decl.Template,
			Body:     s.Decl.Body,
		})
		return value.Empty(), false, sigNone, nil

	case *ast.FuncDelete:
		if !env.DeleteFunc(s.Name) {
			in.writeOutput((&NotFoundError{Kind: "function", Name: s.Name}).Error() + "\n")
		}
		return value.Empty(), false, sigNone, nil

	case *ast.FuncsList:
		var sb strings.Builder
		for _, name := range env.VisibleFuncs() {
			fn, _ := env.LookupFunc(name)
			fmt.Fprintf(&sb, "%s %s($%s)\n", fn.Kind, fn.Name, strings.Join(fn.Params, ", $"))
		}
		listing := sb.String()
		if err := in.writeOutput(listing); err != nil {
			return value.Empty(), false, sigNone, err
		}
		return value.Str(listing), true, sigNone, nil

	case *ast.CallStmt:
		v, err := in.callFunction(ctx, s.Call, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		return v, true, sigNone, nil

	case *ast.Echo:
		v, err := in.evalExpr(ctx, s.Value, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		if err := in.writeOutput(v.String() + "\n"); err != nil {
			return value.Empty(), false, sigNone, err
		}
		return v, true, sigNone, nil

	case *ast.Sleep:
		return value.Empty(), false, sigNone, in.execSleep(ctx, s, env)

	case *ast.Prompt:
		v, err := in.execPrompt(ctx, s, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		return v, true, sigNone, nil

	case *ast.Confirm:
		v, err := in.execConfirm(ctx, s, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		return v, true, sigNone, nil

	case *ast.If:
		cond, err := in.evalExpr(ctx, s.Cond, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		body := s.Then
		if !cond.Truthy() {
			body = s.Else
		}
		if len(body) == 0 {
			return value.Empty(), false, sigNone, nil
		}
		child := NewEnvironment(env)
		v, sig, err := in.execBlock(ctx, body, child)
		return v, true, sig, err

	case *ast.For:
		return in.execFor(ctx, s, env)

	case *ast.While:
		return in.execWhile(ctx, s, env)

	case *ast.Break:
		return value.Empty(), false, sigBreak, nil

	case *ast.Continue:
		return value.Empty(), false, sigContinue, nil

	case *ast.ScriptInvoke:
		v, err := in.execScriptInvoke(ctx, s, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		return v, true, sigNone, nil

	default:
		return value.Empty(), false, sigNone, fmt.Errorf("unsupported statement %T", stmt)
	}
}

func (in *Interpreter) execListDefine(ctx context.Context, s *ast.ListDefine, env *Environment) (value.Value, bool, signal, error) {
	if s.Producer != nil {
		factory, ok := in.producers[s.Producer.Name]
		if !ok {
			return value.Empty(), false, sigNone, fmt.Errorf("unknown iterable producer %q", s.Producer.Name)
		}
		args := make([]value.Value, len(s.Producer.Args))
		for i, a := range s.Producer.Args {
			v, err := in.evalExpr(ctx, a, env)
			if err != nil {
				return value.Empty(), false, sigNone, err
			}
			args[i] = v
		}
		producer, err := factory(args)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		env.DeclareList(s.Name, &ListBinding{Producer: producer})
		return value.Empty(), false, sigNone, nil
	}

	elems := make([]value.Value, len(s.Elems))
	for i, e := range s.Elems {
		v, err := in.evalExpr(ctx, e, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		elems[i] = v
	}
	env.DeclareList(s.Name, &ListBinding{Elems: elems})
	return value.Empty(), false, sigNone, nil
}

func (in *Interpreter) execSleep(ctx context.Context, s *ast.Sleep, env *Environment) error {
	v, err := in.evalExpr(ctx, s.Millis, env)
	if err != nil {
		return err
	}
	var ms float64
	switch v.Kind() {
	case value.KindNumber:
		ms = v.Number()
	default:
		ms, err = strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return fmt.Errorf("/sleep: invalid duration %q", v.String())
		}
	}
	if ms < 0 {
		return fmt.Errorf("/sleep: negative duration %v", ms)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (in *Interpreter) execPrompt(ctx context.Context, s *ast.Prompt, env *Environment) (value.Value, error) {
	if in.human == nil {
		return value.Empty(), fmt.Errorf("/prompt: no human-input capability configured")
	}
	msg, err := in.evalExpr(ctx, s.Message, env)
	if err != nil {
		return value.Empty(), err
	}
	answer, err := in.human.RequestInput(ctx, msg.String())
	if err != nil {
		return value.Empty(), cancelled(err)
	}
	v := value.Str(answer)
	env.Declare(s.Name, v)
	return v, nil
}

func (in *Interpreter) execConfirm(ctx context.Context, s *ast.Confirm, env *Environment) (value.Value, error) {
	if in.human == nil {
		return value.Empty(), fmt.Errorf("/confirm: no human-input capability configured")
	}
	msg, err := in.evalExpr(ctx, s.Message, env)
	if err != nil {
		return value.Empty(), err
	}
	ok, err := in.human.RequestConfirmation(ctx, msg.String())
	if err != nil {
		return value.Empty(), cancelled(err)
	}
	v := value.Bool(ok)
	env.Declare(s.Name, v)
	return v, nil
}

// execFor creates one child environment per iteration with the loop
// variable declared in it. Iteration order is the list's defined order,
// or the producer's production order for dynamic iterables.
func (in *Interpreter) execFor(ctx context.Context, s *ast.For, env *Environment) (value.Value, bool, signal, error) {
	binding, ok := env.LookupList(s.List)
	if !ok {
		return value.Empty(), false, sigNone, &UnboundVariableError{Name: "@" + s.List, Pos: s.Pos()}
	}

	var it Iterator
	if binding.Producer != nil {
		produced, err := binding.Producer.Produce(ctx)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		it = produced
	} else {
		it = &valuesIterator{elems: binding.Elems}
	}

	last := value.Empty()
	for {
		item, more, err := it.Next(ctx)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		if !more {
			return last, true, sigNone, nil
		}

		child := NewEnvironment(env)
		child.Declare(s.Var, item)
		v, sig, err := in.execBlock(ctx, s.Body, child)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		last = v
		switch sig {
		case sigBreak:
			return last, true, sigNone, nil
		case sigContinue:
			continue
		}
	}
}

// execWhile re-evaluates the condition in the enclosing scope before
// every iteration, so state mutated inside the body is visible to the
// next check. The body itself runs in a fresh child scope per iteration.
func (in *Interpreter) execWhile(ctx context.Context, s *ast.While, env *Environment) (value.Value, bool, signal, error) {
	last := value.Empty()
	for {
		if err := ctx.Err(); err != nil {
			return value.Empty(), false, sigNone, cancelled(err)
		}
		cond, err := in.evalExpr(ctx, s.Cond, env)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		if !cond.Truthy() {
			return last, true, sigNone, nil
		}

		child := NewEnvironment(env)
		v, sig, err := in.execBlock(ctx, s.Body, child)
		if err != nil {
			return value.Empty(), false, sigNone, err
		}
		last = v
		switch sig {
		case sigBreak:
			return last, true, sigNone, nil
		case sigContinue:
			continue
		}
	}
}

func (in *Interpreter) execScriptInvoke(ctx context.Context, s *ast.ScriptInvoke, env *Environment) (value.Value, error) {
	if in.invoker == nil {
		return value.Empty(), fmt.Errorf("/script run: no script registry attached")
	}
	input := value.Empty()
	if s.Input != nil {
		v, err := in.evalExpr(ctx, s.Input, env)
		if err != nil {
			return value.Empty(), err
		}
		input = v
	}
	return in.invoker.RunScript(ctx, s.Name, input)
}

// evalExpr evaluates a value-position expression against the environment.
func (in *Interpreter) evalExpr(ctx context.Context, e ast.Expr, env *Environment) (value.Value, error) {
	switch x := e.(type) {
	case ast.StringLit:
		return value.Str(in.interpolate(x.Template, env)), nil
	case ast.NumberLit:
		return value.Num(x.Value), nil
	case ast.BoolLit:
		return value.Bool(x.Value), nil
	case ast.VarRef:
		v, ok := env.Lookup(x.Name)
		if !ok {
			return value.Empty(), &UnboundVariableError{Name: "$" + x.Name, Pos: x.Pos}
		}
		return v, nil
	case ast.ListRef:
		binding, ok := env.LookupList(x.Name)
		if !ok {
			return value.Empty(), &UnboundVariableError{Name: "@" + x.Name, Pos: x.Pos}
		}
		if binding.Producer != nil {
			return value.Empty(), fmt.Errorf("@%s is producer-backed and cannot be used as a value", x.Name)
		}
		return value.List(binding.Elems...), nil
	case ast.CallExpr:
		return in.callFunction(ctx, x, env)
	default:
		return value.Empty(), fmt.Errorf("unsupported expression %T", e)
	}
}

// interpolate resolves an InterpolatedString against the environment.
// An unbound variable referenced in interpolation yields an empty
// string rather than aborting: scripts stay resilient to optional
// variables.
func (in *Interpreter) interpolate(tpl ast.InterpolatedString, env *Environment) string {
	var sb strings.Builder
	for _, f := range tpl.Fragments {
		if f.Var != "" {
			if v, ok := env.Lookup(f.Var); ok {
				sb.WriteString(v.String())
			}
			continue
		}
		sb.WriteString(f.Lit)
	}
	return sb.String()
}

// callFunction resolves a function, binds positional arguments to its
// declared parameters, and dispatches on the definition's body kind.
func (in *Interpreter) callFunction(ctx context.Context, call ast.CallExpr, env *Environment) (value.Value, error) {
	fn, ok := env.LookupFunc(call.Name)
	if !ok {
		return value.Empty(), &CallError{Func: call.Name, Pos: call.Pos, Msg: "unknown function"}
	}
	if len(call.Args) != len(fn.Params) {
		return value.Empty(), &CallError{Func: call.Name, Pos: call.Pos,
			Msg: fmt.Sprintf("arity mismatch: want %d arguments, got %d", len(fn.Params), len(call.Args))}
	}

	args := make([]value.Value, len(call.Args))
	for i, a := range call.Args {
		v, err := in.evalExpr(ctx, a, env)
		if err != nil {
			return value.Empty(), err
		}
		args[i] = v
	}

	// Parameters shadow the caller's scope for the duration of the call.
	scope := NewEnvironment(env)
	for i, p := range fn.Params {
		scope.Declare(p, args[i])
	}

	switch fn.Kind {
	case ast.FuncStatic:
		return value.Str(in.interpolate(fn.Template, scope)), nil

	case ast.FuncLLM:
		if in.llm == nil {
			return value.Empty(), &CallError{Func: call.Name, Pos: call.Pos, Msg: "no LLM capability configured"}
		}
		prompt := in.interpolate(fn.Template, scope)
		raw, err := in.llm.Invoke(ctx, prompt)
		if err != nil {
			if mapped := cancelled(err); mapped != err {
				return value.Empty(), mapped
			}
			return value.Empty(), &CallError{Func: call.Name, Pos: call.Pos, Msg: "llm invocation failed", Err: err}
		}
		return value.Detect(raw), nil

	case ast.FuncCode:
		if in.code == nil {
			return value.Empty(), &CallError{Func: call.Name, Pos: call.Pos, Msg: "no code-execution capability configured"}
		}
		bound := make(map[string]value.Value, len(fn.Params))
		for i, p := range fn.Params {
			bound[p] = args[i]
		}
		result, err := in.code.Execute(ctx, fn.Body, bound)
		if err != nil {
			if mapped := cancelled(err); mapped != err {
				return value.Empty(), mapped
			}
			return value.Empty(), &CallError{Func: call.Name, Pos: call.Pos, Msg: "code execution failed", Err: err}
		}
		return result, nil
	}
	return value.Empty(), &CallError{Func: call.Name, Pos: call.Pos, Msg: "unknown function kind"}
}

func (in *Interpreter) writeOutput(text string) error {
	if in.output == nil {
		return nil
	}
	return in.output(text)
}
