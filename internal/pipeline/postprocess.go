package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/metrics"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/recovery"
)

// outcome is generated (or resumed) text ready to be returned
type outcome struct {
	Request   model.ContentRequest
	Body      string
	Conflict  *model.FramingConflictRecord
	Citations []model.Citation
	Model     string
	Start     time.Time
}

// applyFraming runs the rewriting steps over generated text. Negative
// framing is always removed. A requested target frame then reframes the
// text and no conflict is reported. Otherwise a conflict defers
// reinforcement until the caller picks a frame, and without one the
// detected frames are reinforced.
func (p *Pipeline) applyFraming(log *zap.Logger, req model.ContentRequest, text string) (string, *model.FramingConflictRecord) {
	var conflict *model.FramingConflictRecord
	p.safely(log, "detect_conflicts", func() {
		conflict = p.resolver.DetectConflicts(p.analyzer.DetectFrames(text), text)
	})

	out := p.rewrite(log, "avoid_negative", text, p.rewriter.AvoidNegativeFrames)

	switch {
	case strings.TrimSpace(req.TargetFrame) != "":
		out = p.rewrite(log, "reframe", out, func(s string) string {
			return p.rewriter.ReframeToward(s, req.TargetFrame)
		})
		conflict = nil
	case conflict != nil:
		log.Info("framing conflict detected",
			zap.String("frame1", conflict.Frame1.Name),
			zap.String("frame2", conflict.Frame2.Name))
	default:
		out = p.rewrite(log, "reinforce", out, func(s string) string {
			return p.rewriter.ReinforcePositiveFrames(s, nil)
		})
	}

	return out, conflict
}

// rewrite applies fn and falls back to text when fn panics
func (p *Pipeline) rewrite(log *zap.Logger, step, text string, fn func(string) string) string {
	out := text
	p.safely(log, step, func() { out = fn(text) })
	return out
}

// safely runs a framing step. A defect in it is logged and the step is
// treated as a no-op.
func (p *Pipeline) safely(log *zap.Logger, step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("framing step failed", zap.String("step", step), zap.Any("panic", r))
		}
	}()
	fn()
}

// finish analyzes the final body, settles citations and the conflict slot,
// and assembles the result. With validateCitations false the citations are
// taken as already validated and the stored citation errors are reported.
func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, session string, o outcome, validateCitations bool) *model.ContentResult {
	var analysis model.FramingAnalysis
	p.safely(log, "analyze", func() { analysis = p.analyzer.Analyze(o.Body) })

	citations := o.Citations
	var citationErrs []model.CitationError
	if validateCitations {
		citations, citationErrs = p.validateCitations(ctx, o.Citations)
		if err := p.store.SaveCitationErrors(session, citationErrs); err != nil {
			log.Warn("saving citation errors failed", zap.Error(err))
		}
		for _, ce := range citationErrs {
			p.metrics.RecordCitationError(string(ce.Kind))
			log.Info("citation rejected",
				zap.String("title", ce.Citation.Title),
				zap.String("kind", string(ce.Kind)),
				zap.String("reason", ce.Reason))
		}
	} else {
		citationErrs = p.store.CitationErrors(session)
	}

	if o.Conflict != nil {
		err := p.store.SaveConflict(session, recovery.Conflict{
			Record:    *o.Conflict,
			Request:   o.Request,
			Citations: citations,
			Model:     o.Model,
		})
		if err != nil {
			log.Warn("saving framing conflict failed", zap.Error(err))
		}
		p.metrics.RecordConflict()
	} else if err := p.store.ClearConflict(session); err != nil {
		log.Warn("clearing framing conflict failed", zap.Error(err))
	}

	p.metrics.ObserveEffectiveness(analysis.Effectiveness)

	return &model.ContentResult{
		Text:             appendReferences(o.Body, citations),
		FramingAnalysis:  analysis,
		Citations:        citations,
		WordCount:        model.CountWords(o.Body),
		GenerationTimeMs: p.now().Sub(o.Start).Milliseconds(),
		Model:            o.Model,
		Conflict:         o.Conflict,
		CitationErrors:   citationErrs,
	}
}

func (p *Pipeline) validateCitations(ctx context.Context, citations []model.Citation) ([]model.Citation, []model.CitationError) {
	if len(citations) == 0 {
		return nil, nil
	}
	if p.citations == nil {
		return citations, nil
	}
	return p.citations.Validate(ctx, citations)
}

// clearCheckpoint empties the session's checkpoint if it belongs to the
// fingerprint
func (p *Pipeline) clearCheckpoint(log *zap.Logger, session, fingerprint string) {
	cp, ok := p.store.Checkpoint(session)
	if !ok || cp.RequestFingerprint != fingerprint {
		return
	}
	if err := p.store.ClearCheckpointFor(session, fingerprint); err != nil {
		log.Warn("clearing checkpoint failed", zap.Error(err))
		return
	}
	p.metrics.RecordCheckpoint(metrics.CheckpointCleared)
}

// appendReferences adds a References section listing the accepted citations
func appendReferences(body string, citations []model.Citation) string {
	if len(citations) == 0 {
		return body
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(body, "\n"))
	sb.WriteString("\n\n## References\n\n")
	for i, c := range citations {
		sb.WriteString(fmt.Sprintf("%d. %s. *%s*. %s.", i+1, c.Author, c.Title, c.Source))
		if link := c.URLString(); link != "" {
			sb.WriteString(" <" + link + ">")
		}
		if !c.AccessDate.IsZero() {
			sb.WriteString(" Accessed " + c.AccessDate.Format("2006-01-02") + ".")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
