package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/framewise/internal/util"
)

// OllamaProvider implements the Provider interface for Ollama local models
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
	Error      string `json:"error,omitempty"`

	// Token counts (only present when done=true)
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 300 * time.Second // local models can be slow to load
	}

	return &OllamaProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		config:     config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks if Ollama is running by listing local models
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/api/tags", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Generate produces text with a non-streaming /api/generate call
func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := resolveModel(req, p.config, "")
	if model == "" {
		return nil, &Error{Kind: KindInvalidRequest, Provider: p.Name(),
			Err: errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")}
	}

	httpResp, err := p.makeRequest(ctx, model, p.apiRequest(model, req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	var resp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, emptyResponse(p.Name(), model, fmt.Errorf("unmarshal response: %w", err))
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, emptyResponse(p.Name(), model, nil)
	}

	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		// Rough estimate: 1 token is about 4 characters
		tokensUsed = (len(req.Prompt) + len(resp.Response)) / 4
	}

	return &Response{
		Text:         resp.Response,
		Model:        model,
		FinishReason: resp.DoneReason,
		TokensUsed:   tokensUsed,
	}, nil
}

// Stream produces text from Ollama's newline-delimited JSON stream
func (p *OllamaProvider) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	model := resolveModel(req, p.config, "")
	if model == "" {
		return nil, &Error{Kind: KindInvalidRequest, Provider: p.Name(),
			Err: errors.New("ollama model must be specified (e.g., llama3.1:8b, mistral)")}
	}

	httpResp, err := p.makeRequest(ctx, model, p.apiRequest(model, req, true))
	if err != nil {
		return nil, err
	}

	return &ollamaStream{
		provider: p,
		ctx:      ctx,
		model:    model,
		lines:    newLineReader(httpResp.Body, false),
	}, nil
}

func (p *OllamaProvider) apiRequest(model string, req Request, stream bool) ollamaRequest {
	return ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: stream,
		System: req.System,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			TopK:        req.TopK,
			TopP:        req.TopP,
			NumPredict:  resolveMaxTokens(req, p.config),
		},
	}
}

// makeRequest posts to /api/generate and returns the response with an
// unread body, or a classified error
func (p *OllamaProvider) makeRequest(ctx context.Context, model string, apiReq ollamaRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, p.Name(), model, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))

		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, statusError(p.Name(), model, httpResp.StatusCode, errors.New(apiErr.Error))
		}
		return nil, statusError(p.Name(), model, httpResp.StatusCode, errors.New(strings.TrimSpace(string(respBody))))
	}

	return httpResp, nil
}

type ollamaStream struct {
	provider *OllamaProvider
	ctx      context.Context
	model    string
	lines    *lineReader
	received strings.Builder
	done     bool
}

func (s *ollamaStream) Recv() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}

		line, err := s.lines.next()
		if errors.Is(err, io.EOF) {
			return s.finish()
		}
		if err != nil {
			return "", s.fail(transportError(s.ctx, s.provider.Name(), s.model, err))
		}

		var chunk ollamaResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", s.fail(emptyResponse(s.provider.Name(), s.model, fmt.Errorf("malformed chunk: %w", err)))
		}
		if chunk.Error != "" {
			return "", s.fail(&Error{
				Kind:     KindTransient,
				Provider: s.provider.Name(),
				Model:    s.model,
				Err:      errors.New(chunk.Error),
			})
		}

		if chunk.Response != "" {
			s.received.WriteString(chunk.Response)
			if chunk.Done {
				s.done = true
			}
			return chunk.Response, nil
		}
		if chunk.Done {
			return s.finish()
		}
	}
}

func (s *ollamaStream) finish() (string, error) {
	s.done = true
	if s.received.Len() == 0 {
		return "", emptyResponse(s.provider.Name(), s.model, nil)
	}
	return "", io.EOF
}

func (s *ollamaStream) fail(err error) error {
	s.done = true
	var e *Error
	if errors.As(err, &e) {
		e.Partial = s.received.String()
	}
	return err
}

func (s *ollamaStream) Close() error {
	s.done = true
	return s.lines.close()
}
