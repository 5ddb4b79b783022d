// Package provider implements LLM capability backends.
package provider

import "context"

// Provider is the LLM capability: one prompt in, one completion out.
// Implementations must honor context cancellation so a suspended script
// run can abort an in-flight request.
type Provider interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}
