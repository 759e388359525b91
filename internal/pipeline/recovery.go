package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/metrics"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/recovery"
)

// ResolveConflict finishes the session's conflicted result by reframing its
// source text toward the chosen frame. The choice must be one of the two
// conflicting frames or a suggested alternative.
func (p *Pipeline) ResolveConflict(ctx context.Context, session, chosenFrame string) (*model.ContentResult, error) {
	stored, ok := p.store.Conflict(session)
	if !ok {
		return nil, ErrNoConflict
	}

	frame, ok := chooseFrame(stored.Record, chosenFrame)
	if !ok {
		return nil, fmt.Errorf("%w: %q (choose one of: %s)", ErrUnknownFrame, chosenFrame, strings.Join(stored.Record.Choices(), ", "))
	}

	log := p.sessionLogger(session, stored.Request.Fingerprint())
	start := p.now()

	if err := p.store.ClearConflict(session); err != nil {
		return nil, fmt.Errorf("clear conflict: %w", err)
	}

	body := p.rewrite(log, "avoid_negative", stored.Record.SourceText, p.rewriter.AvoidNegativeFrames)
	body = p.rewrite(log, "reframe", body, func(s string) string {
		return p.rewriter.ReframeContent(s, frame)
	})

	log.Info("framing conflict resolved", zap.String("frame", frame.Name))

	return p.finish(ctx, log, session, outcome{
		Request:   stored.Request,
		Body:      body,
		Citations: stored.Citations,
		Model:     stored.Model,
		Start:     start,
	}, false), nil
}

func chooseFrame(record model.FramingConflictRecord, name string) (model.Frame, bool) {
	name = strings.TrimSpace(name)
	candidates := append([]model.Frame{record.Frame1, record.Frame2}, record.Alternatives...)
	for _, f := range candidates {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return model.Frame{}, false
}

// ResumeFromCheckpoint finishes the session's checkpointed request from its
// partial text, however short, without calling a model
func (p *Pipeline) ResumeFromCheckpoint(ctx context.Context, session string) (*model.ContentResult, error) {
	cp, ok := p.store.Checkpoint(session)
	if !ok {
		return nil, ErrNoCheckpoint
	}

	log := p.sessionLogger(session, cp.RequestFingerprint)
	log.Info("resuming from checkpoint on request", zap.Int("attempts", cp.AttemptCount))

	defer p.metrics.GenerationStarted()()
	return p.resume(ctx, log, session, cp.Request, cp, p.now())
}

// DismissCheckpoint drops the session's checkpoint
func (p *Pipeline) DismissCheckpoint(session string) error {
	if _, ok := p.store.Checkpoint(session); !ok {
		return nil
	}
	if err := p.store.ClearCheckpoint(session); err != nil {
		return fmt.Errorf("dismiss checkpoint: %w", err)
	}
	p.metrics.RecordCheckpoint(metrics.CheckpointCleared)
	return nil
}

// DismissConflict drops the session's unresolved conflict, keeping the
// result as it was returned
func (p *Pipeline) DismissConflict(session string) error {
	if err := p.store.ClearConflict(session); err != nil {
		return fmt.Errorf("dismiss conflict: %w", err)
	}
	return nil
}

// DismissCitationError drops the rejected citations from source. It reports
// whether any were dropped.
func (p *Pipeline) DismissCitationError(session, source string) (bool, error) {
	removed, err := p.store.DismissCitationError(session, source)
	if err != nil {
		return false, fmt.Errorf("dismiss citation error: %w", err)
	}
	return removed, nil
}

// PendingState returns the session's recovery state
func (p *Pipeline) PendingState(session string) recovery.Pending {
	return p.store.Snapshot(session)
}
