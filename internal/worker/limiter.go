package worker

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter paces generation calls per model. Each model name gets its own
// token bucket so a slow fallback model never starves the primary one.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a limiter. A non-positive rate disables pacing.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait blocks until a call to modelName is allowed or ctx is done
func (l *Limiter) Wait(ctx context.Context, modelName string) error {
	return l.getLimiter(modelName).Wait(ctx)
}

// Allow reports whether a call to modelName may happen now, consuming a
// token if so
func (l *Limiter) Allow(modelName string) bool {
	return l.getLimiter(modelName).Allow()
}

func (l *Limiter) getLimiter(modelName string) *rate.Limiter {
	key := normalizeKey(modelName)

	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[key] = limiter

	return limiter
}

// SetModelRate overrides pacing for one model
func (l *Limiter) SetModelRate(modelName string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[normalizeKey(modelName)] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func normalizeKey(modelName string) string {
	return strings.ToLower(strings.TrimSpace(modelName))
}
