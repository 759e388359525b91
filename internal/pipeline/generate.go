package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/llm"
	"github.com/ppiankov/framewise/internal/model"
)

// RetryBaseDelay is the first backoff between retries of one model. It
// doubles on each further retry. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// chunkFunc receives the text accumulated so far in the current attempt,
// with the attempt's model and its number across the whole chain. A new
// attempt number means the text restarted from empty. Returning false
// abandons the stream.
type chunkFunc func(text, modelName string, attempt int) bool

// generation is the outcome of walking the fallback chain. On failure Text
// is empty and Partial holds the longest text any attempt produced.
type generation struct {
	Text     string
	Partial  string
	Model    string
	Attempts int
}

// modelChain returns the models to try in order. A requested model starts
// the walk at its position in the configured chain, or goes first when it
// is not part of it.
func (p *Pipeline) modelChain(requested string) []string {
	chain := p.providers.Chain()
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return chain
	}
	for i, name := range chain {
		if strings.EqualFold(name, requested) {
			return chain[i:]
		}
	}
	return append([]string{requested}, chain...)
}

// fallbackTemperature lowers t by one step without going below the floor.
// A temperature already under the floor is left alone.
func (p *Pipeline) fallbackTemperature(t float64) float64 {
	floor := p.recovery.FallbackTemperatureFloor
	if t <= floor {
		return t
	}
	next := math.Round((t-p.recovery.FallbackTemperatureStep)*100) / 100
	if next < floor {
		next = floor
	}
	return next
}

// generateText runs the prompt through the fallback chain. Retryable
// failures are retried on the same model with exponential backoff, then the
// next model is tried at a lower temperature. Any other failure ends the
// walk, except a model whose provider is not configured, which is skipped.
func (p *Pipeline) generateText(ctx context.Context, log *zap.Logger, req model.ContentRequest, prompt Prompt, onChunk chunkFunc) (generation, error) {
	var gen generation

	chain := p.modelChain(req.Model)
	if len(chain) == 0 {
		return gen, ErrNoModels
	}

	temperature := req.Temperature
	var lastErr error

	for step, name := range chain {
		if step > 0 {
			temperature = p.fallbackTemperature(temperature)
			p.metrics.RecordFallback()
			log.Info("falling back to next model",
				zap.String("model", name),
				zap.Float64("temperature", temperature),
				zap.Error(lastErr))
		}

		provider, err := p.providers.ProviderFor(name)
		if err != nil {
			log.Warn("model skipped", zap.String("model", name), zap.Error(err))
			lastErr = err
			gen.Model = name
			continue
		}

		llmReq := llm.Request{
			Prompt:          prompt.User,
			System:          prompt.System,
			Model:           name,
			Temperature:     temperature,
			TopK:            p.generation.TopK,
			TopP:            p.generation.TopP,
			MaxOutputTokens: req.MaxOutputTokens,
		}

		for try := 0; try <= p.generation.MaxRetries; try++ {
			if try > 0 {
				p.metrics.RecordRetry(name)
				backoff := time.Duration(math.Pow(2, float64(try-1))) * RetryBaseDelay
				log.Debug("retrying model", zap.String("model", name), zap.Int("attempt", try+1), zap.Duration("backoff", backoff))
				select {
				case <-ctx.Done():
					return gen, ctx.Err()
				case <-time.After(backoff):
				}
			}

			if p.limiter != nil {
				if err := p.limiter.Wait(ctx, name); err != nil {
					return gen, err
				}
			}

			gen.Attempts++
			gen.Model = name
			text, partial, err := p.invoke(ctx, provider, llmReq, attemptChunks(onChunk, name, gen.Attempts))
			if len([]rune(partial)) > len([]rune(gen.Partial)) {
				gen.Partial = partial
			}
			if err == nil {
				gen.Text = text
				gen.Partial = ""
				return gen, nil
			}

			lastErr = err
			log.Warn("generation attempt failed",
				zap.String("model", name),
				zap.Int("attempt", gen.Attempts),
				zap.String("kind", string(kindOf(err))),
				zap.Error(err))

			if ctx.Err() != nil || errors.Is(err, ErrStreamAbandoned) {
				return gen, err
			}
			if !llm.IsRetryable(err) {
				return gen, err
			}
		}
	}

	return gen, fmt.Errorf("%w: %w", ErrExhaustedFallback, lastErr)
}

// attemptChunks binds onChunk to one attempt
func attemptChunks(onChunk chunkFunc, modelName string, attempt int) func(string) bool {
	if onChunk == nil {
		return nil
	}
	return func(text string) bool { return onChunk(text, modelName, attempt) }
}

// invoke makes one model call. partial is whatever text the call produced
// before failing.
func (p *Pipeline) invoke(ctx context.Context, provider llm.Provider, req llm.Request, onChunk func(string) bool) (text, partial string, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(req.Model, time.Since(start).Seconds(), err, string(kindOf(err)))
	}()

	callCtx := ctx
	if p.generation.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(p.generation.Timeout)*time.Second)
		defer cancel()
	}

	if onChunk == nil {
		var resp *llm.Response
		resp, err = provider.Generate(callCtx, req)
		if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
			err = &llm.Error{Kind: llm.KindEmptyResponse, Provider: provider.Name(), Model: req.Model, Err: errors.New("no content returned")}
		}
		if err == nil {
			text = resp.Text
		}
	} else {
		text, err = p.stream(callCtx, provider, req, onChunk)
		if err != nil {
			partial, text = text, ""
		}
	}

	if err != nil {
		if carried := llm.PartialOf(err); len(carried) > len(partial) {
			partial = carried
		}
		// The per-call timeout is a transient failure, not the caller's cancellation
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = &llm.Error{Kind: llm.KindTransient, Provider: provider.Name(), Model: req.Model, Partial: partial, Err: err}
		}
	}
	return text, partial, err
}

// stream pulls chunks until the provider signals the end. On failure the
// returned text is everything received so far.
func (p *Pipeline) stream(ctx context.Context, provider llm.Provider, req llm.Request, onChunk func(string) bool) (string, error) {
	s, err := provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer func() { _ = s.Close() }()

	var buf strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return buf.String(), err
		}
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)
		if !onChunk(buf.String()) {
			return buf.String(), ErrStreamAbandoned
		}
	}

	if strings.TrimSpace(buf.String()) == "" {
		return "", &llm.Error{Kind: llm.KindEmptyResponse, Provider: provider.Name(), Model: req.Model, Err: errors.New("stream ended without content")}
	}
	return buf.String(), nil
}
