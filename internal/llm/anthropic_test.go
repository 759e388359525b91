package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewAnthropicProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "claude-3-5-sonnet-20241022",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestAnthropicProvider_Generate_Success(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		// Verify request
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Decode request: %v", err)
		}
		if req.System != "system prompt" || req.Stream {
			t.Errorf("Unexpected request: %+v", req)
		}

		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"content": [{"type": "text", "text": "Generated "}, {"type": "text", "text": "text."}],
			"model": "claude-3-5-sonnet-20241022",
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 50, "output_tokens": 50}
		}`))
	})

	resp, err := provider.Generate(context.Background(), Request{Prompt: "Write", System: "system prompt"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != "Generated text." {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if resp.TokensUsed != 100 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("Unexpected finish reason: %s", resp.FinishReason)
	}
}

func TestAnthropicProvider_Generate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"rate limit", http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`, ErrRateLimited},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, ErrTransient},
		{"auth", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`, ErrAuthentication},
		{"plain body", http.StatusBadGateway, `bad gateway`, ErrTransient},
		{"malformed json", http.StatusOK, `{malformed json`, ErrEmptyResponse},
		{"no content", http.StatusOK, `{"content": []}`, ErrEmptyResponse},
		{"refusal", http.StatusOK, `{"content": [], "stop_reason": "refusal"}`, ErrSafetyBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := provider.Generate(context.Background(), Request{Prompt: "x"})
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestAnthropicProvider_Stream(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		for _, chunk := range []string{"One ", "two ", "three"} {
			_, _ = fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", chunk)
		}
		_, _ = fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		_, _ = fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	})

	stream, err := provider.Stream(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer func() { _ = stream.Close() }()

	text, err := drain(stream)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if text != "One two three" {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestAnthropicProvider_Stream_ErrorEventKeepsPartial(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"Partial\"}}\n\n")
		_, _ = fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	})

	stream, err := provider.Stream(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer func() { _ = stream.Close() }()

	text, err := drain(stream)
	if text != "Partial" {
		t.Errorf("Expected partial chunk, got %q", text)
	}
	if !IsRetryable(err) {
		t.Errorf("Expected retryable error, got %v", err)
	}
	if PartialOf(err) != "Partial" {
		t.Errorf("Expected partial on error, got %q", PartialOf(err))
	}
}

func TestAnthropicProvider_Stream_StatusError(t *testing.T) {
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"permission_error","message":"denied"}}`))
	})

	_, err := provider.Stream(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Expected authentication error, got %v", err)
	}
}

func TestAnthropicProvider_IsAvailable(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	provider := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() || r.URL.Path != "/v1/models" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"data": []}`))
	})

	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	healthy.Store(false)
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

// drain reads a stream to the end, returning the text received before any
// error
func drain(stream ChunkStream) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
}
