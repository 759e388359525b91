// Package pipeline generates framed content: it builds a prompt from the
// request and its enrichment sources, walks the model fallback chain,
// rewrites the output toward constructive frames and keeps per-session
// recovery state (partial checkpoints, framing conflicts, rejected
// citations) for follow-up calls.
package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/framing"
	"github.com/ppiankov/framewise/internal/llm"
	"github.com/ppiankov/framewise/internal/metrics"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/recovery"
	"github.com/ppiankov/framewise/internal/references"
	"github.com/ppiankov/framewise/internal/region"
	"github.com/ppiankov/framewise/internal/validate"
	"github.com/ppiankov/framewise/internal/worker"
)

// ProviderSource resolves the fallback chain to providers
type ProviderSource interface {
	Chain() []string
	ProviderFor(modelName string) (llm.Provider, error)
}

// Options wires a pipeline. Only Providers is required.
type Options struct {
	Providers ProviderSource

	// Store holds session state; an in-memory store is used when nil
	Store *recovery.Store

	Catalog    *framing.Catalog
	Regions    region.Provider
	References references.Client
	Fetcher    *Fetcher
	Citations  *validate.CitationValidator
	Limiter    *worker.Limiter
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	Generation model.GenerationConfig
	Recovery   model.RecoveryConfig
}

// Pipeline orchestrates content generation
type Pipeline struct {
	providers  ProviderSource
	store      *recovery.Store
	validator  *validate.RequestValidator
	analyzer   *framing.Analyzer
	resolver   *framing.ConflictResolver
	rewriter   *framing.Rewriter
	regions    region.Provider
	references references.Client
	fetcher    *Fetcher
	citations  *validate.CitationValidator
	limiter    *worker.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
	generation model.GenerationConfig
	recovery   model.RecoveryConfig
	now        func() time.Time
}

// New creates a pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Providers == nil {
		return nil, errors.New("pipeline: no provider source")
	}

	defaults := model.DefaultConfig()

	rec := opts.Recovery
	if rec.ResumeThreshold <= 0 {
		rec.ResumeThreshold = defaults.Recovery.ResumeThreshold
	}
	if rec.FallbackTemperatureStep <= 0 {
		rec.FallbackTemperatureStep = defaults.Recovery.FallbackTemperatureStep
	}
	if rec.FallbackTemperatureFloor <= 0 {
		rec.FallbackTemperatureFloor = defaults.Recovery.FallbackTemperatureFloor
	}
	if rec.SessionTTL <= 0 {
		rec.SessionTTL = defaults.Recovery.SessionTTL
	}

	gen := opts.Generation
	if gen.Temperature <= 0 {
		gen.Temperature = defaults.Generation.Temperature
	}
	if gen.MaxOutputTokens <= 0 {
		gen.MaxOutputTokens = defaults.Generation.MaxOutputTokens
	}
	if gen.MaxRetries < 0 {
		gen.MaxRetries = 0
	}

	store := opts.Store
	if store == nil {
		store = recovery.NewMemoryStore(time.Duration(rec.SessionTTL) * time.Hour)
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = framing.DefaultCatalog()
	}
	analyzer := framing.NewAnalyzer(catalog)

	regions := opts.Regions
	if regions == nil {
		regions = region.NewStaticProvider()
	}

	citations := opts.Citations
	if citations == nil {
		citations = validate.NewCitationValidator(validate.CitationOptions{})
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		providers:  opts.Providers,
		store:      store,
		validator:  validate.NewRequestValidator(),
		analyzer:   analyzer,
		resolver:   framing.NewConflictResolver(catalog),
		rewriter:   framing.NewRewriter(analyzer),
		regions:    regions,
		references: opts.References,
		fetcher:    opts.Fetcher,
		citations:  citations,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		logger:     logger,
		generation: gen,
		recovery:   rec,
		now:        time.Now,
	}, nil
}

// Analyzer returns the analyzer used for generated text
func (p *Pipeline) Analyzer() *framing.Analyzer {
	return p.analyzer
}

// Rewriter returns the rewriter used for generated text
func (p *Pipeline) Rewriter() *framing.Rewriter {
	return p.rewriter
}

// Close releases the reference store, if it holds resources
func (p *Pipeline) Close() error {
	if c, ok := p.references.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Generate produces framed content for req. Errors are *validate.ValidationError
// or *GenerationError.
func (p *Pipeline) Generate(ctx context.Context, session string, req model.ContentRequest) (*model.ContentResult, error) {
	return p.run(ctx, session, req, nil)
}

// GenerateStreaming yields partial results carrying the text received so far,
// then one final result (or error). Framing is applied only to the final
// result. When a retry or fallback starts over, the first increment of the
// new attempt has Restarted set and its text holds only that attempt's
// output. Stopping the iteration early abandons the model call and keeps what
// was received as a checkpoint.
func (p *Pipeline) GenerateStreaming(ctx context.Context, session string, req model.ContentRequest) iter.Seq2[*model.ContentResult, error] {
	return func(yield func(*model.ContentResult, error) bool) {
		stopped := false
		lastAttempt := 0
		onChunk := func(text, modelName string, attempt int) bool {
			if stopped {
				return false
			}
			partial := &model.ContentResult{
				Text:      text,
				WordCount: model.CountWords(text),
				Model:     modelName,
				Partial:   true,
				Attempt:   attempt,
				Restarted: lastAttempt != 0 && attempt != lastAttempt,
			}
			lastAttempt = attempt
			if !yield(partial, nil) {
				stopped = true
			}
			return !stopped
		}

		result, err := p.run(ctx, session, req, onChunk)
		if stopped {
			return
		}
		yield(result, err)
	}
}

// normalize fills unset sampling parameters from configuration
func (p *Pipeline) normalize(req model.ContentRequest) model.ContentRequest {
	req.Region = strings.ToLower(strings.TrimSpace(req.Region))
	req.ContentType = model.ContentType(strings.ToLower(strings.TrimSpace(string(req.ContentType))))
	req.ReferenceURL = strings.TrimSpace(req.ReferenceURL)
	if req.Temperature == 0 {
		req.Temperature = p.generation.Temperature
	}
	if req.MaxOutputTokens == 0 {
		req.MaxOutputTokens = p.generation.MaxOutputTokens
	}
	return req
}

func (p *Pipeline) sessionLogger(session, fingerprint string) *zap.Logger {
	if len(fingerprint) > 12 {
		fingerprint = fingerprint[:12]
	}
	return p.logger.With(zap.String("session", session), zap.String("fingerprint", fingerprint))
}

func (p *Pipeline) run(ctx context.Context, session string, req model.ContentRequest, onChunk chunkFunc) (*model.ContentResult, error) {
	defer p.metrics.GenerationStarted()()
	start := p.now()

	// 1. Validate
	req = p.normalize(req)
	if err := p.validator.Validate(req); err != nil {
		return nil, err
	}

	fingerprint := req.Fingerprint()
	log := p.sessionLogger(session, fingerprint)

	// 2. Resume from a matching checkpoint; a checkpoint for another request
	// is superseded
	prior, ok := p.store.Checkpoint(session)
	if ok && prior.RequestFingerprint != fingerprint {
		log.Debug("discarding checkpoint of a different request")
		if err := p.store.ClearCheckpoint(session); err != nil {
			log.Warn("clearing checkpoint failed", zap.Error(err))
		}
		p.metrics.RecordCheckpoint(metrics.CheckpointCleared)
		prior = nil
	}

	if prior != nil && utf8.RuneCountInString(prior.Text) >= p.recovery.ResumeThreshold {
		log.Info("resuming from checkpoint",
			zap.Int("chars", utf8.RuneCountInString(prior.Text)),
			zap.Int("attempts", prior.AttemptCount))
		return p.resume(ctx, log, session, req, prior, start)
	}

	// 3. Build the prompt
	enr, err := p.enrich(ctx, req)
	if err != nil {
		return nil, newGenerationError(err, "", 0, false)
	}
	prompt := buildPrompt(req, enr.promptInputs)

	// 4. Generate
	gen, err := p.generateText(ctx, log, req, prompt, onChunk)
	if err != nil {
		// 5. Keep what was produced
		saved := p.saveCheckpoint(log, session, req, fingerprint, prior, gen)
		log.Warn("generation failed", zap.String("model", gen.Model), zap.Int("attempts", gen.Attempts), zap.Error(err))
		return nil, newGenerationError(err, gen.Model, gen.Attempts, saved)
	}

	p.clearCheckpoint(log, session, fingerprint)

	// 6. Frame, analyze, cite
	body, conflict := p.applyFraming(log, req, gen.Text)
	result := p.finish(ctx, log, session, outcome{
		Request:   req,
		Body:      body,
		Conflict:  conflict,
		Citations: enr.Citations,
		Model:     gen.Model,
		Start:     start,
	}, true)

	log.Info("content generated",
		zap.String("model", gen.Model),
		zap.Int("attempts", gen.Attempts),
		zap.Int("words", result.WordCount),
		zap.Int("effectiveness", result.FramingAnalysis.Effectiveness))
	return result, nil
}

// resume finishes a request from checkpointed text without calling a model
func (p *Pipeline) resume(ctx context.Context, log *zap.Logger, session string, req model.ContentRequest, cp *model.PartialContentCheckpoint, start time.Time) (*model.ContentResult, error) {
	enr, err := p.enrich(ctx, req)
	if err != nil {
		return nil, newGenerationError(err, cp.Model, 0, true)
	}

	p.metrics.RecordCheckpoint(metrics.CheckpointResumed)
	p.clearCheckpoint(log, session, req.Fingerprint())

	body, conflict := p.applyFraming(log, req, cp.Text)
	result := p.finish(ctx, log, session, outcome{
		Request:   req,
		Body:      body,
		Conflict:  conflict,
		Citations: enr.Citations,
		Model:     cp.Model,
		Start:     start,
	}, true)
	result.Resumed = true
	return result, nil
}

// saveCheckpoint stores the longest text produced for the request. It
// reports whether a resumable checkpoint exists afterwards.
func (p *Pipeline) saveCheckpoint(log *zap.Logger, session string, req model.ContentRequest, fingerprint string, prior *model.PartialContentCheckpoint, gen generation) bool {
	cp := model.PartialContentCheckpoint{
		RequestFingerprint: fingerprint,
		Text:               gen.Partial,
		SavedAt:            p.now(),
		AttemptCount:       gen.Attempts,
		Model:              gen.Model,
		Request:            req,
	}
	if prior != nil {
		cp.AttemptCount += prior.AttemptCount
		if utf8.RuneCountInString(prior.Text) > utf8.RuneCountInString(cp.Text) {
			cp.Text = prior.Text
			cp.Model = prior.Model
		}
	}

	if strings.TrimSpace(cp.Text) == "" {
		return false
	}

	if err := p.store.SaveCheckpoint(session, cp); err != nil {
		log.Warn("saving checkpoint failed", zap.Error(err))
		return prior != nil
	}
	p.metrics.RecordCheckpoint(metrics.CheckpointSaved)
	log.Info("partial output checkpointed",
		zap.Int("chars", utf8.RuneCountInString(cp.Text)),
		zap.Int("attempts", cp.AttemptCount))
	return true
}
