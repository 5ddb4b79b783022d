// Package chatscript provides the public API for the chatscript engine.
package chatscript

import (
	"context"
	"io"
	"time"

	"github.com/tokenring-ai/chatscript/internal/interp"
	"github.com/tokenring-ai/chatscript/internal/provider"
	"github.com/tokenring-ai/chatscript/internal/store"
	"github.com/tokenring-ai/chatscript/internal/value"
)

// Option configures a Runtime.
type Option func(*Runtime)

// LLM is the language-model capability interface.
type LLM = interp.LLM

// CodeRunner executes opaque code function bodies.
type CodeRunner = interp.CodeRunner

// HumanInput supplies /prompt and /confirm responses.
type HumanInput = interp.HumanInput

// Value is an engine value.
type Value = value.Value

// Iterator yields entries of a lazily-produced sequence.
type Iterator = interp.Iterator

// Producer creates a fresh Iterator per invocation.
type Producer = interp.Producer

// ProducerFactory builds a Producer from /list arguments.
type ProducerFactory = interp.ProducerFactory

// Store interface for custom script stores.
type Store = store.Store

// WithSQLiteStore configures SQLite script persistence at the given path.
func WithSQLiteStore(path string) Option {
	return func(r *Runtime) {
		r.storePath = path
	}
}

// WithMemoryStore configures an in-memory script store (for testing).
func WithMemoryStore() Option {
	return func(r *Runtime) {
		r.store = store.NewMemory()
	}
}

// WithStore configures a custom script store.
func WithStore(s Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithLLM configures a custom LLM capability.
func WithLLM(l LLM) Option {
	return func(r *Runtime) {
		r.llm = l
	}
}

// WithMockLLM configures a mock LLM with a fixed response (for testing).
func WithMockLLM(response string) Option {
	return func(r *Runtime) {
		r.llm = provider.NewMock(response)
	}
}

// WithMockLLMFunc configures a mock LLM with a custom handler (for
// testing). The handler receives the rendered prompt.
func WithMockLLMFunc(handler func(prompt string) string) Option {
	return func(r *Runtime) {
		r.llm = provider.NewMockHandler(handler)
	}
}

// WithAnthropic configures the Anthropic Claude LLM provider.
func WithAnthropic(model string, timeout time.Duration) Option {
	return func(r *Runtime) {
		opts := []provider.AnthropicOption{}
		if model != "" {
			opts = append(opts, provider.WithAnthropicModel(model))
		}
		if timeout > 0 {
			opts = append(opts, provider.WithAnthropicTimeout(timeout))
		}
		r.llm = provider.NewAnthropic(opts...)
	}
}

// WithOllama configures the Ollama LLM provider.
func WithOllama(url, model string, timeout time.Duration) Option {
	return func(r *Runtime) {
		opts := []provider.OllamaOption{}
		if url != "" {
			opts = append(opts, provider.WithOllamaURL(url))
		}
		if model != "" {
			opts = append(opts, provider.WithOllamaModel(model))
		}
		if timeout > 0 {
			opts = append(opts, provider.WithOllamaTimeout(timeout))
		}
		r.llm = provider.NewOllama(opts...)
	}
}

// WithOpenRouter configures the OpenRouter LLM provider.
func WithOpenRouter(model string, timeout time.Duration) Option {
	return func(r *Runtime) {
		opts := []provider.OpenRouterOption{}
		if model != "" {
			opts = append(opts, provider.WithOpenRouterModel(model))
		}
		if timeout > 0 {
			opts = append(opts, provider.WithOpenRouterTimeout(timeout))
		}
		r.llm = provider.NewOpenRouter(opts...)
	}
}

// WithHumanInput configures the human-input capability for /prompt and
// /confirm.
func WithHumanInput(h HumanInput) Option {
	return func(r *Runtime) {
		r.human = h
	}
}

// funcHumanInput adapts plain functions to the HumanInput interface.
type funcHumanInput struct {
	input   func(ctx context.Context, message string) (string, error)
	confirm func(ctx context.Context, message string) (bool, error)
}

func (f *funcHumanInput) RequestInput(ctx context.Context, message string) (string, error) {
	return f.input(ctx, message)
}

func (f *funcHumanInput) RequestConfirmation(ctx context.Context, message string) (bool, error) {
	return f.confirm(ctx, message)
}

// WithHumanInputFuncs configures the human-input capability from plain
// functions.
func WithHumanInputFuncs(
	input func(ctx context.Context, message string) (string, error),
	confirm func(ctx context.Context, message string) (bool, error),
) Option {
	return func(r *Runtime) {
		r.human = &funcHumanInput{input: input, confirm: confirm}
	}
}

// WithCodeRunner configures the code-execution capability for js
// functions.
func WithCodeRunner(c CodeRunner) Option {
	return func(r *Runtime) {
		r.code = c
	}
}

// WithOutputWriter sets the output writer for /echo output.
func WithOutputWriter(writer func(text string) error) Option {
	return func(r *Runtime) {
		r.output = writer
	}
}

// WithOutput sets the io.Writer for /echo output.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) {
		r.output = func(text string) error {
			_, err := w.Write([]byte(text))
			return err
		}
	}
}

// WithProducer registers an iterable producer factory by name, usable
// in /list definitions alongside the built-in glob producer.
func WithProducer(name string, f ProducerFactory) Option {
	return func(r *Runtime) {
		r.producers[name] = f
	}
}
