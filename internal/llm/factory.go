package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/framewise/internal/model"
)

// NewProvider creates a new generation provider based on configuration
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, fmt.Errorf("no LLM provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: gemini, openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel builds the provider config for one provider name from the
// application config
func ConfigFromModel(provider string, cfg model.Config) Config {
	c := Config{
		Provider:        provider,
		Timeout:         cfg.Generation.Timeout,
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		HTTPProxy:       cfg.HTTP.HTTPProxy,
		HTTPSProxy:      cfg.HTTP.HTTPSProxy,
		NoProxy:         cfg.HTTP.NoProxy,
	}

	switch strings.ToLower(provider) {
	case "gemini", "google":
		c.APIKey = cfg.Providers.GeminiAPIKey
	case "openai":
		c.APIKey = cfg.Providers.OpenAIAPIKey
		c.BaseURL = cfg.Providers.OpenAIBaseURL
	case "anthropic", "claude":
		c.APIKey = cfg.Providers.AnthropicAPIKey
	case "ollama":
		c.BaseURL = cfg.Providers.OllamaBaseURL
	}

	return c
}

// Registry resolves model names to providers for a fallback chain
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider // by provider name
	models    map[string]string   // model name -> provider name
	chain     []string
}

// NewRegistry creates a registry for the given fallback chain
func NewRegistry(chain []model.ModelSpec) *Registry {
	r := &Registry{
		providers: make(map[string]Provider),
		models:    make(map[string]string),
	}
	for _, spec := range chain {
		provider := spec.Provider
		if provider == "" {
			provider = InferProvider(spec.Name)
		}
		r.models[spec.Name] = normalizeProvider(provider)
		r.chain = append(r.chain, spec.Name)
	}
	return r
}

// BuildRegistry creates one provider per provider name used in the
// configured chain. Providers that cannot be built (missing key) are skipped;
// an error is returned only when none can be built.
func BuildRegistry(ctx context.Context, cfg model.Config) (*Registry, error) {
	r := NewRegistry(cfg.Generation.Models)

	var errs []string
	for _, name := range r.providerNames() {
		p, err := NewProvider(ctx, ConfigFromModel(name, cfg))
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		r.Register(p)
	}

	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no usable LLM provider: %s", strings.Join(errs, "; "))
	}
	return r, nil
}

// Register adds or replaces a provider under its name
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[normalizeProvider(p.Name())] = p
}

// Chain returns the model names in fallback order
func (r *Registry) Chain() []string {
	return append([]string(nil), r.chain...)
}

// ProviderFor returns the provider serving a model. Models outside the
// configured chain are routed by name prefix.
func (r *Registry) ProviderFor(modelName string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.models[modelName]
	if !ok {
		name = InferProvider(modelName)
	}

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("no %s provider configured for model %s", name, modelName)
	}
	return p, nil
}

func (r *Registry) providerNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range r.chain {
		name := r.models[m]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func normalizeProvider(name string) string {
	switch n := strings.ToLower(name); n {
	case "google":
		return "gemini"
	case "claude":
		return "anthropic"
	default:
		return n
	}
}
