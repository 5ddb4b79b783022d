// Package script provides the named-script registry and runner.
package script

import (
	"context"
	"fmt"
	"sync"

	"github.com/tokenring-ai/chatscript/internal/ast"
	"github.com/tokenring-ai/chatscript/internal/interp"
	"github.com/tokenring-ai/chatscript/internal/parser"
	"github.com/tokenring-ai/chatscript/internal/value"
)

// InputVar is the conventional name the runner binds a script's input
// under in the top-level environment.
const InputVar = "input"

// ScriptNotFoundError reports a run of an unregistered script name.
type ScriptNotFoundError struct {
	Name string
}

func (e *ScriptNotFoundError) Error() string {
	return fmt.Sprintf("script %q not found", e.Name)
}

// Script is a named, immutable script source. The parsed form is cached
// by the registry and reused across runs.
type Script struct {
	Name   string
	Source string
}

type entry struct {
	script Script
	parsed []ast.Statement // nil until first run
}

// Registry stores named scripts and runs them. It is a shared,
// read-mostly structure: registration and lookup are guarded by a
// mutex so concurrent suspended runs can be interleaved by the host.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	interp  *interp.Interpreter
}

// NewRegistry creates a Registry bound to an interpreter and wires
// itself in as the interpreter's /script run capability.
func NewRegistry(in *interp.Interpreter) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		interp:  in,
	}
	in.SetScriptInvoker(r)
	return r
}

// Register stores a script under its name, replacing any previous
// registration (and its cached parse).
func (r *Registry) Register(name, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		r.order = append(r.order, name)
	}
	r.entries[name] = &entry{script: Script{Name: name, Source: source}}
}

// Unregister removes a script. Returns false when the name is unknown.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a registered script.
func (r *Registry) Get(name string) (Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Script{}, false
	}
	return e.script, true
}

// List returns registered script names in insertion order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Run looks up a script, parses it (reusing a cached parse), seeds a
// fresh top-level environment with the input bound under $input, and
// executes it. Lex and parse errors abort before any statement runs.
func (r *Registry) Run(ctx context.Context, name string, input value.Value) (value.Value, error) {
	stmts, err := r.parsed(name)
	if err != nil {
		return value.Empty(), err
	}

	env := interp.NewEnvironment(nil)
	env.Declare(InputVar, input)
	return r.interp.Execute(ctx, stmts, env)
}

// RunScript implements interp.ScriptInvoker for nested /script run
// statements. Nested runs get their own top-level environment.
func (r *Registry) RunScript(ctx context.Context, name string, input value.Value) (value.Value, error) {
	return r.Run(ctx, name, input)
}

// Eval parses and runs an anonymous script source with the given input.
func (r *Registry) Eval(ctx context.Context, source string, input value.Value) (value.Value, error) {
	stmts, err := parser.Parse(source)
	if err != nil {
		return value.Empty(), err
	}
	env := interp.NewEnvironment(nil)
	env.Declare(InputVar, input)
	return r.interp.Execute(ctx, stmts, env)
}

// parsed returns the cached statement sequence for a script, parsing on
// first use.
func (r *Registry) parsed(name string) ([]ast.Statement, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	if ok && e.parsed != nil {
		defer r.mu.RUnlock()
		return e.parsed, nil
	}
	r.mu.RUnlock()

	if !ok {
		return nil, &ScriptNotFoundError{Name: name}
	}

	stmts, err := parser.Parse(e.script.Source)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: the script may have been replaced while parsing.
	if cur, ok := r.entries[name]; ok && cur.script.Source == e.script.Source {
		cur.parsed = stmts
	}
	return stmts, nil
}
