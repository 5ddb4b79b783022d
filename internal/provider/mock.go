package provider

import "context"

// Mock is a mock provider for testing.
type Mock struct {
	Response string
	Handler  func(prompt string) string
}

// NewMock creates a new mock provider with a fixed response.
func NewMock(response string) *Mock {
	return &Mock{Response: response}
}

// NewMockHandler creates a mock provider with a custom handler.
func NewMockHandler(handler func(prompt string) string) *Mock {
	return &Mock{Handler: handler}
}

// Invoke returns the mock response or calls the handler.
func (m *Mock) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Handler != nil {
		return m.Handler(prompt), nil
	}
	return m.Response, nil
}
