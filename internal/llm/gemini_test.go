package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewGeminiProvider(context.Background(), Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gemini-2.5-flash",
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func candidateJSON(text, finish string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]},"finishReason":%q}],"usageMetadata":{"totalTokenCount":12}}`, text, finish)
}

func TestGeminiProvider_Generate_Success(t *testing.T) {
	provider := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidateJSON("Generated text.", "STOP")))
	})

	resp, err := provider.Generate(context.Background(), Request{Prompt: "x", Temperature: 0.7, TopK: 40, TopP: 0.95})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != "Generated text." {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if resp.TokensUsed != 12 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
	if resp.FinishReason != "STOP" {
		t.Errorf("Unexpected finish reason: %s", resp.FinishReason)
	}
}

func TestGeminiProvider_Generate_SafetyFinish(t *testing.T) {
	provider := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidateJSON("Partial", "SAFETY")))
	})

	_, err := provider.Generate(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, ErrSafetyBlock) {
		t.Fatalf("Expected safety block, got %v", err)
	}
	if PartialOf(err) != "Partial" {
		t.Errorf("Expected partial text, got %q", PartialOf(err))
	}
}

func TestGeminiProvider_Generate_Unauthenticated(t *testing.T) {
	provider := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`))
	})

	_, err := provider.Generate(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("Expected authentication error, got %v", err)
	}
}

func TestGeminiProvider_Stream(t *testing.T) {
	provider := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "streamGenerateContent") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprintf(w, "data: %s\n\n", candidateJSON("Hello ", ""))
		_, _ = fmt.Fprintf(w, "data: %s\n\n", candidateJSON("world", "STOP"))
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
	if text != "Hello world" {
		t.Errorf("Unexpected text: %q", text)
	}
}

func TestGeminiStatus(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, KindRateLimit},
		{genai.APIError{Code: 503, Status: "UNAVAILABLE"}, KindTransient},
		{genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}, KindAuthentication},
		{fmt.Errorf("wrapped: %w", genai.APIError{Code: 500}), KindTransient},
	}

	p := &GeminiProvider{}
	for _, tt := range tests {
		got := KindOf(p.classify(context.Background(), "gemini-2.5-pro", tt.err))
		if got != tt.kind {
			t.Errorf("classify(%v) = %s, want %s", tt.err, got, tt.kind)
		}
	}
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	if _, err := NewGeminiProvider(context.Background(), Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
