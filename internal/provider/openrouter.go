package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// OpenRouter is a provider for the OpenRouter API.
type OpenRouter struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenRouterOption configures the OpenRouter provider.
type OpenRouterOption func(*OpenRouter)

// WithOpenRouterAPIKey sets the API key.
func WithOpenRouterAPIKey(key string) OpenRouterOption {
	return func(o *OpenRouter) { o.APIKey = key }
}

// WithOpenRouterModel sets the model name.
func WithOpenRouterModel(model string) OpenRouterOption {
	return func(o *OpenRouter) { o.Model = model }
}

// WithOpenRouterTimeout sets the request timeout.
func WithOpenRouterTimeout(timeout time.Duration) OpenRouterOption {
	return func(o *OpenRouter) { o.Timeout = timeout }
}

// NewOpenRouter creates a new OpenRouter provider.
func NewOpenRouter(opts ...OpenRouterOption) *OpenRouter {
	o := &OpenRouter{
		APIKey:  os.Getenv("OPEN_ROUTER_API_KEY"),
		Model:   "z-ai/glm-4.5-air:free",
		Timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type openRouterRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	Choices []struct {
		Message openRouterMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends a prompt to OpenRouter and returns the completion.
func (o *OpenRouter) Invoke(ctx context.Context, prompt string) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OPEN_ROUTER_API_KEY not set")
	}

	reqBody := openRouterRequest{
		Model: o.Model,
		Messages: []openRouterMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://openrouter.ai/api/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	client := &http.Client{Timeout: o.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openrouter error (%d): %s", resp.StatusCode, string(body))
	}

	var result openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("openrouter error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openrouter: no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}
