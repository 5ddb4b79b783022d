package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockFixedResponse(t *testing.T) {
	m := NewMock("canned")
	got, err := m.Invoke(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "canned" {
		t.Errorf("expected 'canned', got %q", got)
	}
}

func TestMockHandler(t *testing.T) {
	m := NewMockHandler(func(prompt string) string { return "saw:" + prompt })
	got, err := m.Invoke(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "saw:hi" {
		t.Errorf("expected 'saw:hi', got %q", got)
	}
}

func TestMockHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMock("x").Invoke(ctx, "hi"); err == nil {
		t.Fatalf("expected a cancellation error")
	}
}

func TestOllamaInvoke(t *testing.T) {
	var gotReq ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message: ollamaMessage{Role: "assistant", Content: "reply"},
			Done:    true,
		})
	}))
	defer srv.Close()

	o := NewOllama(WithOllamaURL(srv.URL), WithOllamaModel("test-model"))
	got, err := o.Invoke(context.Background(), "the prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "reply" {
		t.Errorf("expected 'reply', got %q", got)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "the prompt" {
		t.Errorf("unexpected messages %v", gotReq.Messages)
	}
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewOllama(WithOllamaURL(srv.URL))
	if _, err := o.Invoke(context.Background(), "x"); err == nil {
		t.Fatalf("expected an error for non-200 response")
	}
}

func TestOllamaCancelledRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOllama(WithOllamaURL(srv.URL))
	if _, err := o.Invoke(ctx, "x"); err == nil {
		t.Fatalf("expected a cancellation error")
	}
}

func TestAnthropicRequiresAPIKey(t *testing.T) {
	a := NewAnthropic(WithAnthropicAPIKey(""))
	if _, err := a.Invoke(context.Background(), "x"); err == nil {
		t.Fatalf("expected an error without an API key")
	}
}

func TestOpenRouterRequiresAPIKey(t *testing.T) {
	o := NewOpenRouter(WithOpenRouterAPIKey(""))
	if _, err := o.Invoke(context.Background(), "x"); err == nil {
		t.Fatalf("expected an error without an API key")
	}
}
