package chatscript

import (
	"context"
	"os"

	"github.com/tokenring-ai/chatscript/internal/interp"
	"github.com/tokenring-ai/chatscript/internal/script"
	"github.com/tokenring-ai/chatscript/internal/store"
	"github.com/tokenring-ai/chatscript/internal/value"
)

// Runtime is the chatscript engine runtime: an interpreter plus a named
// script registry, optionally backed by a persistent script store.
type Runtime struct {
	interp    *interp.Interpreter
	registry  *script.Registry
	store     store.Store
	storePath string

	llm       LLM
	human     HumanInput
	code      CodeRunner
	output    interp.OutputWriter
	producers map[string]ProducerFactory
}

// New creates a new runtime with the given options. Scripts already in
// the configured store are loaded into the registry.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		producers: make(map[string]ProducerFactory),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.store == nil && r.storePath != "" {
		s, err := store.NewSQLite(r.storePath)
		if err != nil {
			return nil, err
		}
		r.store = s
	}

	interpOpts := []interp.Option{}
	if r.llm != nil {
		interpOpts = append(interpOpts, interp.WithLLM(r.llm))
	}
	if r.human != nil {
		interpOpts = append(interpOpts, interp.WithHumanInput(r.human))
	}
	if r.code != nil {
		interpOpts = append(interpOpts, interp.WithCodeRunner(r.code))
	}
	if r.output != nil {
		interpOpts = append(interpOpts, interp.WithOutputWriter(r.output))
	}
	for name, f := range r.producers {
		interpOpts = append(interpOpts, interp.WithProducer(name, f))
	}

	r.interp = interp.New(interpOpts...)
	r.registry = script.NewRegistry(r.interp)

	if r.store != nil {
		entries, err := r.store.List()
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			r.registry.Register(e.Name, e.Source)
		}
	}
	return r, nil
}

// RegisterScript registers a named script for this session only.
func (r *Runtime) RegisterScript(name, source string) {
	r.registry.Register(name, source)
}

// SaveScript registers a named script and persists it to the store,
// when one is configured.
func (r *Runtime) SaveScript(name, source string) error {
	r.registry.Register(name, source)
	if r.store == nil {
		return nil
	}
	return r.store.Put(name, source)
}

// RemoveScript unregisters a script and removes it from the store.
// Returns false when the name was not registered.
func (r *Runtime) RemoveScript(name string) (bool, error) {
	ok := r.registry.Unregister(name)
	if r.store == nil {
		return ok, nil
	}
	return ok, r.store.Delete(name)
}

// Scripts returns registered script names in registration order.
func (r *Runtime) Scripts() []string {
	return r.registry.List()
}

// Script returns a registered script's source.
func (r *Runtime) Script(name string) (string, bool) {
	s, ok := r.registry.Get(name)
	return s.Source, ok
}

// Run executes a registered script with the given input bound as
// $input and returns the final value rendered as a string.
func (r *Runtime) Run(ctx context.Context, name, input string) (string, error) {
	v, err := r.registry.Run(ctx, name, value.Str(input))
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Eval parses and executes an anonymous script source.
func (r *Runtime) Eval(ctx context.Context, source string) (string, error) {
	v, err := r.registry.Eval(ctx, source, value.Empty())
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// EvalFile executes a script file.
func (r *Runtime) EvalFile(ctx context.Context, path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return r.Eval(ctx, string(src))
}

// Close releases resources.
func (r *Runtime) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
