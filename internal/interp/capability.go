package interp

import (
	"context"

	"github.com/tokenring-ai/chatscript/internal/value"
)

// LLM is the external language-model capability. Transport and model
// selection are the provider's concern; the engine only sees prompt in,
// text out. Failures surface to scripts as CallError.
type LLM interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// CodeRunner executes an opaque code function body with the bound
// parameters as its invocation context. The body is never evaluated by
// the engine itself.
type CodeRunner interface {
	Execute(ctx context.Context, body string, params map[string]value.Value) (value.Value, error)
}

// HumanInput supplies /prompt and /confirm responses. Both calls block
// the run until the human answers or the context is cancelled.
type HumanInput interface {
	RequestInput(ctx context.Context, message string) (string, error)
	RequestConfirmation(ctx context.Context, message string) (bool, error)
}

// OutputWriter receives /echo output.
type OutputWriter func(text string) error

// ScriptInvoker runs a named script for /script run statements. The
// script registry implements it; the indirection keeps the interpreter
// decoupled from script storage.
type ScriptInvoker interface {
	RunScript(ctx context.Context, name string, input value.Value) (value.Value, error)
}

// Iterator yields entries of a lazily-produced sequence. A consumed
// iterator cannot be rewound; restart by re-invoking the producer.
type Iterator interface {
	Next(ctx context.Context) (value.Value, bool, error)
}

// Producer creates a fresh Iterator per invocation. Sequences may be
// finite or effectively unbounded.
type Producer interface {
	Produce(ctx context.Context) (Iterator, error)
}

// ProducerFactory builds a Producer from the /list statement's
// argument values (e.g. a glob pattern).
type ProducerFactory func(args []value.Value) (Producer, error)
