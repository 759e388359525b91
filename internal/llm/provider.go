package llm

import (
	"context"
	"strings"
)

// Provider defines the interface for generation backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces the complete text for a prompt in one call
	Generate(ctx context.Context, req Request) (*Response, error)

	// Stream produces the text incrementally. The caller must Close the
	// returned stream.
	Stream(ctx context.Context, req Request) (ChunkStream, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ChunkStream is a pull-based sequence of text chunks. Recv returns io.EOF
// after the last chunk.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// Request contains the input for one generation call
type Request struct {
	// Prompt is the user prompt
	Prompt string

	// System is an optional system instruction
	System string

	// Model is the specific model to use (provider-specific)
	Model string

	// Sampling parameters; zero values use provider defaults
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

// Response contains the generated output
type Response struct {
	// Text is the generated text
	Text string

	// Model is the model that generated the response
	Model string

	// FinishReason is the provider's stop reason, if reported
	FinishReason string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama"
	Provider string

	// Model is the default model when a request does not name one
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, test servers)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxOutputTokens when a request does not set one
	MaxOutputTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:        "gemini",
		Timeout:         120,
		MaxOutputTokens: 4096,
	}
}

// InferProvider guesses the provider from a model name
func InferProvider(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gemini"), strings.HasPrefix(m, "gemma"):
		return "gemini"
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "openai"
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	default:
		return "ollama"
	}
}

func resolveModel(req Request, config Config, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if config.Model != "" {
		return config.Model
	}
	return fallback
}

func resolveMaxTokens(req Request, config Config) int {
	if req.MaxOutputTokens > 0 {
		return req.MaxOutputTokens
	}
	if config.MaxOutputTokens > 0 {
		return config.MaxOutputTokens
	}
	return 4096
}
