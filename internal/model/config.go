package model

// Config holds framewise configuration
type Config struct {
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Providers  ProvidersConfig  `yaml:"providers" mapstructure:"providers"`
	Recovery   RecoveryConfig   `yaml:"recovery" mapstructure:"recovery"`
	References ReferencesConfig `yaml:"references" mapstructure:"references"`
	Citations  CitationsConfig  `yaml:"citations" mapstructure:"citations"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
}

// ModelSpec names one entry of the fallback chain
type ModelSpec struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Provider string `yaml:"provider" mapstructure:"provider"` // "gemini", "openai", "anthropic", "ollama"
}

// GenerationConfig controls model invocation
type GenerationConfig struct {
	// Models is the fallback chain, highest capability first
	Models []ModelSpec `yaml:"models" mapstructure:"models"`

	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	TopK            int     `yaml:"top_k" mapstructure:"top_k"`
	TopP            float64 `yaml:"top_p" mapstructure:"top_p"`
	MaxOutputTokens int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`

	// MaxRetries is the number of extra attempts per model on retryable errors
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	Timeout int `yaml:"timeout" mapstructure:"timeout"` // seconds, per call

	// Per-model request pacing
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// ProvidersConfig holds credentials and endpoints. Keys are normally read from
// the environment rather than the config file.
type ProvidersConfig struct {
	GeminiAPIKey    string `yaml:"gemini_api_key,omitempty" mapstructure:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url,omitempty" mapstructure:"openai_base_url"`
	AnthropicAPIKey string `yaml:"anthropic_api_key,omitempty" mapstructure:"anthropic_api_key"`
	OllamaBaseURL   string `yaml:"ollama_base_url" mapstructure:"ollama_base_url"`
}

// RecoveryConfig controls checkpointing and fallback
type RecoveryConfig struct {
	// ResumeThreshold is the minimum checkpoint length (characters) that is
	// reused instead of calling the model again
	ResumeThreshold int `yaml:"resume_threshold" mapstructure:"resume_threshold"`

	FallbackTemperatureStep  float64 `yaml:"fallback_temperature_step" mapstructure:"fallback_temperature_step"`
	FallbackTemperatureFloor float64 `yaml:"fallback_temperature_floor" mapstructure:"fallback_temperature_floor"`

	// SessionTTL is how long session slots live in the memory tier (hours)
	SessionTTL int `yaml:"session_ttl" mapstructure:"session_ttl"`

	// Dir is where session slots are persisted between CLI runs
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ReferencesConfig controls the local reference store
type ReferencesConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath       string `yaml:"db_path" mapstructure:"db_path"`
	MaxSnippets  int    `yaml:"max_snippets" mapstructure:"max_snippets"`
	SnippetChars int    `yaml:"snippet_chars" mapstructure:"snippet_chars"`
}

// CitationsConfig controls citation validation
type CitationsConfig struct {
	// VerifyOnline issues a HEAD request per citation URL
	VerifyOnline bool `yaml:"verify_online" mapstructure:"verify_online"`
	Timeout      int  `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// HTTPConfig holds outbound HTTP settings for reference fetching and
// citation verification
type HTTPConfig struct {
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool   `yaml:"respect_robots" mapstructure:"respect_robots"`

	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DataConfig points at optional YAML files overriding built-in reference data
type DataConfig struct {
	CatalogFile string `yaml:"catalog_file,omitempty" mapstructure:"catalog_file"`
	RegionsFile string `yaml:"regions_file,omitempty" mapstructure:"regions_file"`
}

// BatchConfig controls batch generation
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Generation: GenerationConfig{
			Models: []ModelSpec{
				{Name: "gemini-2.5-pro", Provider: "gemini"},
				{Name: "gemini-2.5-flash", Provider: "gemini"},
				{Name: "gemini-2.0-flash-lite", Provider: "gemini"},
			},
			Temperature:       0.7,
			TopK:              40,
			TopP:              0.95,
			MaxOutputTokens:   4096,
			MaxRetries:        2,
			Timeout:           120,
			RequestsPerSecond: 1,
			Burst:             2,
		},
		Providers: ProvidersConfig{
			OllamaBaseURL: "http://localhost:11434",
		},
		Recovery: RecoveryConfig{
			ResumeThreshold:          100,
			FallbackTemperatureStep:  0.1,
			FallbackTemperatureFloor: 0.5,
			SessionTTL:               24,
			Dir:                      "", // Resolved to ~/.framewise/sessions
		},
		References: ReferencesConfig{
			Enabled:      false,
			DBPath:       "", // Resolved to ~/.framewise/references.db
			MaxSnippets:  5,
			SnippetChars: 600,
		},
		Citations: CitationsConfig{
			VerifyOnline: false,
			Timeout:      10,
		},
		HTTP: HTTPConfig{
			Timeout:       30,
			UserAgent:     "framewise/0.1",
			MaxBodyBytes:  5 * 1024 * 1024,
			RespectRobots: true,
		},
		Batch: BatchConfig{
			Concurrency: 2,
		},
	}
}
