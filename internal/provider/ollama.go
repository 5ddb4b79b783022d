package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama is a provider for a local Ollama server.
type Ollama struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// OllamaOption configures the Ollama provider.
type OllamaOption func(*Ollama)

// WithOllamaURL sets the Ollama API URL.
func WithOllamaURL(url string) OllamaOption {
	return func(o *Ollama) { o.URL = url }
}

// WithOllamaModel sets the model name.
func WithOllamaModel(model string) OllamaOption {
	return func(o *Ollama) { o.Model = model }
}

// WithOllamaTimeout sets the request timeout.
func WithOllamaTimeout(timeout time.Duration) OllamaOption {
	return func(o *Ollama) { o.Timeout = timeout }
}

// NewOllama creates a new Ollama provider.
func NewOllama(opts ...OllamaOption) *Ollama {
	o := &Ollama{
		URL:     "http://localhost:11434",
		Model:   "qwen3:30b-a3b-instruct-2507-q4_K_M",
		Timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Invoke sends a prompt to Ollama and returns the completion.
func (o *Ollama) Invoke(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model: o.Model,
		Messages: []ollamaMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.URL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: o.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error: %s", string(body))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Message.Content, nil
}
