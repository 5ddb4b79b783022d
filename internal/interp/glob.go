package interp

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/tokenring-ai/chatscript/internal/value"
)

// GlobProducer yields filesystem paths matching a glob pattern. It is
// the reference iterable producer: each Produce call re-expands the
// pattern, so iteration order reflects the filesystem at that moment.
type GlobProducer struct {
	Pattern string
}

// NewGlobProducer builds a GlobProducer from producer-call arguments.
func NewGlobProducer(args []value.Value) (Producer, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("glob expects exactly one pattern argument, got %d", len(args))
	}
	pattern := args[0].String()
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("glob: invalid pattern %q: %w", pattern, err)
	}
	return &GlobProducer{Pattern: pattern}, nil
}

// Produce expands the pattern and returns a one-shot iterator over the
// matches.
func (g *GlobProducer) Produce(ctx context.Context) (Iterator, error) {
	matches, err := filepath.Glob(g.Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", g.Pattern, err)
	}
	return &sliceIterator{entries: matches}, nil
}

type sliceIterator struct {
	entries []string
	next    int
}

func (it *sliceIterator) Next(ctx context.Context) (value.Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, false, cancelled(err)
	}
	if it.next >= len(it.entries) {
		return value.Value{}, false, nil
	}
	v := value.Str(it.entries[it.next])
	it.next++
	return v, true, nil
}

// valuesIterator iterates a materialized list.
type valuesIterator struct {
	elems []value.Value
	next  int
}

func (it *valuesIterator) Next(ctx context.Context) (value.Value, bool, error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, false, cancelled(err)
	}
	if it.next >= len(it.elems) {
		return value.Value{}, false, nil
	}
	v := it.elems[it.next]
	it.next++
	return v, true, nil
}
