package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/framewise/internal/llm"
)

// ErrExhaustedFallback is returned after every model in the chain failed
var ErrExhaustedFallback = errors.New("all models in the fallback chain failed")

// ErrStreamAbandoned is the cause recorded when a streaming consumer stops
// reading before the final result
var ErrStreamAbandoned = errors.New("stream abandoned by consumer")

// Follow-up call errors
var (
	ErrNoCheckpoint = errors.New("no checkpoint for session")
	ErrNoConflict   = errors.New("no unresolved framing conflict for session")
	ErrUnknownFrame = errors.New("frame is not one of the conflict's choices")
	ErrNoModels     = errors.New("no models configured")
)

// Error kinds added on top of the provider kinds
const (
	KindExhaustedFallback llm.ErrorKind = "exhausted_fallback"
	KindCancelled         llm.ErrorKind = "cancelled"
	KindUnavailable       llm.ErrorKind = "unavailable"
)

// Suggested recovery actions
const (
	ActionRetry         = "retry"
	ActionResumePartial = "resume_partial"
	ActionReconfigure   = "reconfigure"
	ActionRephrase      = "rephrase"
	ActionFallback      = "fallback_next_model"
	ActionNone          = "none"
)

// Recovery tells the caller which follow-up calls make sense
type Recovery struct {
	CanRetry         bool   `json:"can_retry"`
	CanResumePartial bool   `json:"can_resume_partial"`
	SuggestedAction  string `json:"suggested_action"`
}

// GenerationError is a failed generation with a recovery hint
type GenerationError struct {
	Kind      llm.ErrorKind
	Retryable bool
	Recovery  Recovery

	// Model is the last model tried
	Model    string
	Attempts int

	Err error
}

func (e *GenerationError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("generation failed on %s after %d attempt(s) (%s): %v", e.Model, e.Attempts, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// newGenerationError classifies err. hasPartial reports whether a
// resumable checkpoint was saved for the request.
func newGenerationError(err error, modelName string, attempts int, hasPartial bool) *GenerationError {
	ge := &GenerationError{
		Kind:     kindOf(err),
		Model:    modelName,
		Attempts: attempts,
		Err:      err,
	}

	switch ge.Kind {
	case llm.KindRateLimit, llm.KindTransient:
		ge.Retryable = true
		ge.Recovery = Recovery{CanRetry: true, SuggestedAction: ActionFallback}
	case llm.KindAuthentication:
		ge.Recovery = Recovery{SuggestedAction: ActionReconfigure}
	case llm.KindSafetyBlock:
		ge.Recovery = Recovery{SuggestedAction: ActionRephrase}
	case KindExhaustedFallback, KindCancelled:
		ge.Retryable = true
		ge.Recovery = Recovery{CanRetry: true, SuggestedAction: ActionRetry}
	case KindUnavailable:
		ge.Recovery = Recovery{SuggestedAction: ActionReconfigure}
	default:
		ge.Recovery = Recovery{SuggestedAction: ActionNone}
	}

	if hasPartial {
		ge.Recovery.CanResumePartial = true
		ge.Recovery.SuggestedAction = ActionResumePartial
	}
	return ge
}

func kindOf(err error) llm.ErrorKind {
	switch {
	case errors.Is(err, ErrExhaustedFallback):
		return KindExhaustedFallback
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrStreamAbandoned):
		return KindCancelled
	}
	if kind := llm.KindOf(err); kind != "" {
		return kind
	}
	return KindUnavailable
}
