package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestOpenAIProviderInvoke(t *testing.T) {
	var gotModel, gotPrompt string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel = req.Model
		if len(req.Messages) > 0 {
			gotPrompt = req.Messages[len(req.Messages)-1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  merged answer \n"}}],
			"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "openai", Endpoint: srv.URL + "/v1/", APIKey: "sk-test"}, zap.NewNop())
	out, err := p.Invoke(context.Background(), "gpt-test", "why is the sky blue")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "merged answer" {
		t.Errorf("got %q", out)
	}
	if gotModel != "gpt-test" || gotPrompt != "why is the sky blue" {
		t.Errorf("request model=%q prompt=%q", gotModel, gotPrompt)
	}
}

func TestOpenAIProviderDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "openai", Endpoint: srv.URL + "/v1/", APIKey: "sk-test"}, zap.NewNop())
	_, err := p.Invoke(context.Background(), "gpt-test", "hi")
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestAnthropicProviderInvoke(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "ak-test" {
			t.Errorf("x-api-key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}],
			"stop_reason":"end_turn","stop_sequence":null,
			"usage":{"input_tokens":3,"output_tokens":4}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{ID: "claude", Endpoint: srv.URL, APIKey: "ak-test"}, zap.NewNop())
	out, err := p.Invoke(context.Background(), "claude-test", "hello")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "part one, part two" {
		t.Errorf("got %q", out)
	}
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("health: %v", err)
	}
}
