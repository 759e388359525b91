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

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicProvider implements the Provider interface for Anthropic Claude models
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Anthropic API structures
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	TopK        int                `json:"top_k,omitempty"`
	TopP        float64            `json:"top_p,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// anthropicEvent is one server-sent event of a streamed message
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &AnthropicProvider{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		config:     config,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable checks if the provider is properly configured
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/v1/models?limit=1", p.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

func (p *AnthropicProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
}

// Generate produces text using the Messages API
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := resolveModel(req, p.config, defaultAnthropicModel)

	httpResp, err := p.makeRequest(ctx, model, p.apiRequest(model, req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, emptyResponse(p.Name(), model, fmt.Errorf("unmarshal response: %w", err))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()

	if resp.StopReason == "refusal" {
		return nil, safetyBlock(p.Name(), model, resp.StopReason, text)
	}
	if strings.TrimSpace(text) == "" {
		return nil, emptyResponse(p.Name(), model, nil)
	}

	if resp.Model != "" {
		model = resp.Model
	}

	return &Response{
		Text:         text,
		Model:        model,
		FinishReason: resp.StopReason,
		TokensUsed:   resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// Stream produces text using server-sent events
func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	model := resolveModel(req, p.config, defaultAnthropicModel)

	httpResp, err := p.makeRequest(ctx, model, p.apiRequest(model, req, true))
	if err != nil {
		return nil, err
	}

	return &anthropicStream{
		provider: p,
		ctx:      ctx,
		model:    model,
		lines:    newLineReader(httpResp.Body, true),
	}, nil
}

func (p *AnthropicProvider) apiRequest(model string, req Request, stream bool) anthropicRequest {
	return anthropicRequest{
		Model:     model,
		MaxTokens: resolveMaxTokens(req, p.config),
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		System:      req.System,
		Temperature: req.Temperature,
		TopK:        req.TopK,
		TopP:        req.TopP,
		Stream:      stream,
	}
}

// makeRequest posts to the Messages API and returns the response with an
// unread body, or a classified error
func (p *AnthropicProvider) makeRequest(ctx context.Context, model string, apiReq anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	p.setHeaders(httpReq)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, p.Name(), model, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))

		var apiErr anthropicError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, statusError(p.Name(), model, httpResp.StatusCode,
				fmt.Errorf("%s: %s", apiErr.Error.Type, apiErr.Error.Message))
		}
		return nil, statusError(p.Name(), model, httpResp.StatusCode, errors.New(strings.TrimSpace(string(respBody))))
	}

	return httpResp, nil
}

type anthropicStream struct {
	provider *AnthropicProvider
	ctx      context.Context
	model    string
	lines    *lineReader
	received strings.Builder
	done     bool
}

func (s *anthropicStream) Recv() (string, error) {
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

		var event anthropicEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return "", s.fail(emptyResponse(s.provider.Name(), s.model, fmt.Errorf("malformed event: %w", err)))
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text == "" {
				continue
			}
			s.received.WriteString(event.Delta.Text)
			return event.Delta.Text, nil

		case "message_delta":
			if event.Delta.StopReason == "refusal" {
				return "", s.fail(safetyBlock(s.provider.Name(), s.model, event.Delta.StopReason, ""))
			}

		case "message_stop":
			return s.finish()

		case "error":
			kind := KindTransient
			switch event.Error.Type {
			case "rate_limit_error":
				kind = KindRateLimit
			case "authentication_error", "permission_error":
				kind = KindAuthentication
			case "invalid_request_error":
				kind = KindInvalidRequest
			}
			return "", s.fail(&Error{
				Kind:     kind,
				Provider: s.provider.Name(),
				Model:    s.model,
				Err:      errors.New(event.Error.Message),
			})
		}
	}
}

func (s *anthropicStream) finish() (string, error) {
	s.done = true
	if s.received.Len() == 0 {
		return "", emptyResponse(s.provider.Name(), s.model, nil)
	}
	return "", io.EOF
}

// fail marks the stream done and attaches the text received so far
func (s *anthropicStream) fail(err error) error {
	s.done = true
	var e *Error
	if errors.As(err, &e) {
		e.Partial = s.received.String()
	}
	return err
}

func (s *anthropicStream) Close() error {
	s.done = true
	return s.lines.close()
}
