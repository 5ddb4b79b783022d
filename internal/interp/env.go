// Package interp implements the chatscript interpreter: the scope-chain
// environment, function dispatch, and the statement execution engine.
package interp

import (
	"sort"

	"github.com/tokenring-ai/chatscript/internal/ast"
	"github.com/tokenring-ai/chatscript/internal/value"
)

// Function is a registered function definition.
type Function struct {
	Name     string
	Params   []string
	Kind     ast.FuncKind
	Template ast.InterpolatedString
	Body     string
}

// ListBinding is an @list binding: either a materialized sequence or a
// lazy producer. Exactly one of Elems or Producer is set. Iterating a
// producer-backed list re-invokes the producer; a produced iterator is
// never rewound.
type ListBinding struct {
	Elems    []value.Value
	Producer Producer
}

// Environment is one scope in an ownership chain. A child scope owns
// its own bindings and holds a non-owning reference to its parent for
// lookup fallback. Variables ($), lists (@) and functions live in
// separate namespaces.
type Environment struct {
	parent *Environment
	vars   map[string]value.Value
	lists  map[string]*ListBinding
	funcs  map[string]*Function
}

// NewEnvironment creates a scope with the given parent (nil for the
// top-level run scope).
func NewEnvironment(parent *Environment) *Environment {
	return &Environment{
		parent: parent,
		vars:   make(map[string]value.Value),
		lists:  make(map[string]*ListBinding),
		funcs:  make(map[string]*Function),
	}
}

// Declare creates a binding in this scope, shadowing any identically
// named parent binding for this scope's lifetime.
func (e *Environment) Declare(name string, v value.Value) {
	e.vars[name] = v
}

// Assign mutates the nearest scope that already declares name, or
// declares it here when no scope does (auto-vivification on first
// /var assignment).
func (e *Environment) Assign(name string, v value.Value) {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = v
			return
		}
	}
	e.vars[name] = v
}

// Lookup walks child to parent and returns the nearest binding.
func (e *Environment) Lookup(name string) (value.Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// DeleteVar removes the binding from the scope that owns it. Returns
// false when no scope declares the name.
func (e *Environment) DeleteVar(name string) bool {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			delete(s.vars, name)
			return true
		}
	}
	return false
}

// DeclareList binds an @list in this scope.
func (e *Environment) DeclareList(name string, b *ListBinding) {
	e.lists[name] = b
}

// LookupList walks child to parent for an @list binding.
func (e *Environment) LookupList(name string) (*ListBinding, bool) {
	for s := e; s != nil; s = s.parent {
		if b, ok := s.lists[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// DeclareFunc registers a function in this scope. Redefinition in the
// same scope overwrites.
func (e *Environment) DeclareFunc(fn *Function) {
	e.funcs[fn.Name] = fn
}

// LookupFunc walks child to parent for a function.
func (e *Environment) LookupFunc(name string) (*Function, bool) {
	for s := e; s != nil; s = s.parent {
		if fn, ok := s.funcs[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// DeleteFunc removes a function from the scope that owns it.
func (e *Environment) DeleteFunc(name string) bool {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.funcs[name]; ok {
			delete(s.funcs, name)
			return true
		}
	}
	return false
}

// VisibleVars returns the names visible from this scope, shadowing
// applied, in sorted order.
func (e *Environment) VisibleVars() []string {
	seen := make(map[string]bool)
	var names []string
	for s := e; s != nil; s = s.parent {
		for name := range s.vars {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// VisibleFuncs returns the function names visible from this scope in
// sorted order.
func (e *Environment) VisibleFuncs() []string {
	seen := make(map[string]bool)
	var names []string
	for s := e; s != nil; s = s.parent {
		for name := range s.funcs {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
