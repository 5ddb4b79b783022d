package interp

import (
	"context"
	"errors"
	"fmt"

	"github.com/tokenring-ai/chatscript/internal/token"
)

// UnboundVariableError reports a variable used outside interpolation
// context with no binding in scope. Interpolation tolerates missing
// variables; direct references do not. Name carries its sigil ($x, @xs).
type UnboundVariableError struct {
	Name string
	Pos  token.Position
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("unbound variable %s at %s", e.Name, e.Pos)
}

// CallError reports a failed function call: an unknown function, an
// arity mismatch, or a propagated external-capability failure.
type CallError struct {
	Func string
	Pos  token.Position
	Msg  string
	Err  error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call %s at %s: %s: %v", e.Func, e.Pos, e.Msg, e.Err)
	}
	return fmt.Sprintf("call %s at %s: %s", e.Func, e.Pos, e.Msg)
}

func (e *CallError) Unwrap() error { return e.Err }

// NotFoundError reports a deletion of an absent binding. It is surfaced
// to script output but is non-fatal.
type NotFoundError struct {
	Kind string // "variable", "list" or "function"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Name)
}

// CancelledError reports a run aborted by its cancellation signal while
// suspended. It is distinct from ScriptError: the run was interrupted,
// not faulty.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("script cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// ScriptError wraps a runtime error with the offending statement's
// source position. It aborts the remainder of the current run; bindings
// already committed to outer scopes are left intact.
type ScriptError struct {
	Pos token.Position
	Err error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script error at %s: %v", e.Pos, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// cancelled maps a context error to a CancelledError, or returns the
// original error unchanged.
func cancelled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CancelledError{Err: err}
	}
	return err
}
