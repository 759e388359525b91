package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ppiankov/framewise/internal/util"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider implements the Provider interface for Google Gemini models
type GeminiProvider struct {
	client *genai.Client
	config Config
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// IsAvailable checks if the provider is properly configured
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.Models.Get(ctx, resolveModel(Request{}, p.config, defaultGeminiModel), nil)
	return err == nil
}

// Generate produces text with a single GenerateContent call
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := resolveModel(req, p.config, defaultGeminiModel)

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), p.generateConfig(req))
	if err != nil {
		return nil, p.classify(ctx, model, err)
	}

	text, finish, err := p.inspect(model, resp, "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, emptyResponse(p.Name(), model, nil)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &Response{
		Text:         text,
		Model:        model,
		FinishReason: finish,
		TokensUsed:   tokens,
	}, nil
}

// Stream produces text with GenerateContentStream
func (p *GeminiProvider) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	model := resolveModel(req, p.config, defaultGeminiModel)

	seq := p.client.Models.GenerateContentStream(ctx, model, genai.Text(req.Prompt), p.generateConfig(req))
	next, stop := iter.Pull2(seq)

	return &geminiStream{
		provider: p,
		ctx:      ctx,
		model:    model,
		next:     next,
		stop:     stop,
	}, nil
}

func (p *GeminiProvider) generateConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(resolveMaxTokens(req, p.config)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(req.TopK))
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	return cfg
}

// inspect extracts the text of the first candidate and turns blocked
// prompts or safety finishes into errors carrying the text so far
func (p *GeminiProvider) inspect(model string, resp *genai.GenerateContentResponse, prior string) (string, string, error) {
	if resp == nil {
		return "", "", emptyResponse(p.Name(), model, nil)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", "", safetyBlock(p.Name(), model, string(fb.BlockReason), prior)
	}

	if len(resp.Candidates) == 0 {
		return "", "", nil
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	text := sb.String()

	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return "", "", safetyBlock(p.Name(), model, string(cand.FinishReason), prior+text)
	}

	return text, string(cand.FinishReason), nil
}

func (p *GeminiProvider) classify(ctx context.Context, model string, err error) error {
	if code := geminiStatus(err); code != 0 {
		return statusError(p.Name(), model, code, err)
	}
	return transportError(ctx, p.Name(), model, err)
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}

// geminiStream adapts the SDK's push iterator to ChunkStream
type geminiStream struct {
	provider *GeminiProvider
	ctx      context.Context
	model    string
	next     func() (*genai.GenerateContentResponse, error, bool)
	stop     func()
	received strings.Builder
	done     bool
}

func (s *geminiStream) Recv() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}

		resp, err, ok := s.next()
		if !ok {
			s.done = true
			if s.received.Len() == 0 {
				return "", emptyResponse(s.provider.Name(), s.model, nil)
			}
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			classified := s.provider.classify(s.ctx, s.model, err)
			var e *Error
			if errors.As(classified, &e) {
				e.Partial = s.received.String()
			}
			return "", classified
		}

		text, _, err := s.provider.inspect(s.model, resp, s.received.String())
		if err != nil {
			s.done = true
			return "", err
		}
		if text == "" {
			continue
		}

		s.received.WriteString(text)
		return text, nil
	}
}

func (s *geminiStream) Close() error {
	s.done = true
	s.stop()
	return nil
}
