package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/ppiankov/framewise/internal/model"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return &Response{Text: s.name, Model: req.Model}, nil
}

func (s *stubProvider) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) IsAvailable(ctx context.Context) bool { return true }

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		config  Config
		want    string
		wantErr bool
	}{
		{Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{Config{Provider: "Claude", APIKey: "k"}, "anthropic", false},
		{Config{Provider: "ollama"}, "ollama", false},
		{Config{Provider: "google", APIKey: "k"}, "gemini", false},
		{Config{Provider: "openai"}, "", true},
		{Config{Provider: ""}, "", true},
		{Config{Provider: "mystery"}, "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(ctx, tt.config)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%+v: expected error", tt.config)
			}
			continue
		}
		if err != nil {
			t.Errorf("%+v: unexpected error %v", tt.config, err)
			continue
		}
		if p.Name() != tt.want {
			t.Errorf("Expected provider %s, got %s", tt.want, p.Name())
		}
	}
}

func TestInferProvider(t *testing.T) {
	tests := map[string]string{
		"gemini-2.5-pro":  "gemini",
		"gpt-4o":          "openai",
		"o3-mini":         "openai",
		"claude-sonnet-4": "anthropic",
		"llama3.1:8b":     "ollama",
	}
	for modelName, want := range tests {
		if got := InferProvider(modelName); got != want {
			t.Errorf("InferProvider(%s) = %s, want %s", modelName, got, want)
		}
	}
}

func TestRegistry_ProviderFor(t *testing.T) {
	r := NewRegistry([]model.ModelSpec{
		{Name: "gemini-2.5-pro", Provider: "gemini"},
		{Name: "my-local-model", Provider: "ollama"},
		{Name: "gpt-4o-mini"},
	})
	r.Register(&stubProvider{name: "gemini"})
	r.Register(&stubProvider{name: "ollama"})

	if got := r.Chain(); len(got) != 3 || got[0] != "gemini-2.5-pro" || got[2] != "gpt-4o-mini" {
		t.Errorf("Unexpected chain: %v", got)
	}

	for modelName, want := range map[string]string{
		"gemini-2.5-pro":   "gemini",
		"my-local-model":   "ollama",
		"gemini-2.0-flash": "gemini",
	} {
		p, err := r.ProviderFor(modelName)
		if err != nil {
			t.Errorf("ProviderFor(%s): %v", modelName, err)
			continue
		}
		if p.Name() != want {
			t.Errorf("ProviderFor(%s) = %s, want %s", modelName, p.Name(), want)
		}
	}

	if _, err := r.ProviderFor("gpt-4o-mini"); err == nil {
		t.Error("Expected error for unregistered openai provider")
	}
}

func TestBuildRegistry_SkipsUnconfiguredProviders(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Generation.Models = []model.ModelSpec{
		{Name: "gpt-4o", Provider: "openai"},
		{Name: "llama3.1", Provider: "ollama"},
	}

	r, err := BuildRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}
	if _, err := r.ProviderFor("llama3.1"); err != nil {
		t.Errorf("Expected ollama provider, got %v", err)
	}
	if _, err := r.ProviderFor("gpt-4o"); err == nil {
		t.Error("Expected openai provider to be skipped without a key")
	}

	cfg.Generation.Models = []model.ModelSpec{{Name: "gpt-4o", Provider: "openai"}}
	if _, err := BuildRegistry(context.Background(), cfg); err == nil {
		t.Error("Expected error when no provider can be built")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{401, KindAuthentication, false},
		{403, KindAuthentication, false},
		{429, KindRateLimit, true},
		{408, KindTransient, true},
		{500, KindTransient, true},
		{503, KindTransient, true},
		{400, KindInvalidRequest, false},
		{404, KindInvalidRequest, false},
	}

	for _, tt := range tests {
		err := fmt.Errorf("call: %w", statusError("gemini", "m", tt.status, errors.New("boom")))
		if KindOf(err) != tt.kind {
			t.Errorf("status %d: kind %s, want %s", tt.status, KindOf(err), tt.kind)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: retryable %v, want %v", tt.status, IsRetryable(err), tt.retryable)
		}
	}

	err := transportError(context.Background(), "openai", "m", timeoutErr{})
	if !errors.Is(err, ErrTransient) || !IsRetryable(err) {
		t.Errorf("Expected transient error for network timeout, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := transportError(ctx, "openai", "m", timeoutErr{}); !errors.Is(err, context.Canceled) || IsRetryable(err) {
		t.Errorf("Expected caller cancellation to pass through, got %v", err)
	}

	if KindOf(errors.New("plain")) != "" || IsRetryable(nil) {
		t.Error("Expected plain errors to have no kind")
	}
}
