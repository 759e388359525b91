package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/framewise/internal/util"
)

// OpenAIProvider implements the Provider interface for OpenAI models
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = util.NewHTTPClient(timeout, config.HTTPProxy, config.HTTPSProxy, config.NoProxy)

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Listing models is the lightest authenticated call
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Generate produces text using the Chat Completions API
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := resolveModel(req, p.config, openai.GPT4oMini)

	resp, err := p.client.CreateChatCompletion(ctx, p.chatRequest(model, req))
	if err != nil {
		return nil, p.classify(ctx, model, err)
	}

	if len(resp.Choices) == 0 {
		return nil, emptyResponse(p.Name(), model, nil)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, safetyBlock(p.Name(), model, string(choice.FinishReason), choice.Message.Content)
	}

	text := choice.Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, emptyResponse(p.Name(), model, nil)
	}

	return &Response{
		Text:         text,
		Model:        model,
		FinishReason: string(choice.FinishReason),
		TokensUsed:   resp.Usage.TotalTokens,
	}, nil
}

// Stream produces text using a streamed chat completion
func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (ChunkStream, error) {
	model := resolveModel(req, p.config, openai.GPT4oMini)

	stream, err := p.client.CreateChatCompletionStream(ctx, p.chatRequest(model, req))
	if err != nil {
		return nil, p.classify(ctx, model, err)
	}

	return &openAIStream{
		provider: p,
		ctx:      ctx,
		model:    model,
		stream:   stream,
	}, nil
}

func (p *OpenAIProvider) chatRequest(model string, req Request) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   resolveMaxTokens(req, p.config),
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
	}
}

func (p *OpenAIProvider) classify(ctx context.Context, model string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return statusError(p.Name(), model, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(p.Name(), model, reqErr.HTTPStatusCode, err)
	}
	return transportError(ctx, p.Name(), model, err)
}

type openAIStream struct {
	provider *OpenAIProvider
	ctx      context.Context
	model    string
	stream   *openai.ChatCompletionStream
	received strings.Builder
	done     bool
}

func (s *openAIStream) Recv() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}

		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
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

		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		text := choice.Delta.Content
		s.received.WriteString(text)

		if choice.FinishReason == openai.FinishReasonContentFilter {
			s.done = true
			return "", safetyBlock(s.provider.Name(), s.model, string(choice.FinishReason), s.received.String())
		}
		if text == "" {
			continue
		}
		return text, nil
	}
}

func (s *openAIStream) Close() error {
	s.done = true
	s.stream.Close()
	return nil
}
