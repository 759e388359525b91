package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/model"
)

// Generator produces content for one request within a session
type Generator interface {
	Generate(ctx context.Context, sessionID string, req model.ContentRequest) (*model.ContentResult, error)
}

// BatchResult is the outcome of one batch item
type BatchResult struct {
	Index    int
	Session  string
	Request  model.ContentRequest
	Result   *model.ContentResult
	Error    error
	Duration time.Duration
}

// BatchProcessor generates content for many requests concurrently. Every
// request runs in its own session so recovery slots never collide.
type BatchProcessor struct {
	generator   Generator
	concurrency int
	logger      *zap.Logger
	newSession  func() string
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(generator Generator, concurrency int, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		generator:   generator,
		concurrency: concurrency,
		logger:      logger,
		newSession:  uuid.NewString,
	}
}

// Process runs every request and returns results in input order
func (b *BatchProcessor) Process(ctx context.Context, requests []model.ContentRequest) []*BatchResult {
	if len(requests) == 0 {
		return []*BatchResult{}
	}

	pool := NewPool[*BatchResult](ctx, b.concurrency)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, req := range requests {
			session := b.newSession()
			submitted := pool.Submit(func(ctx context.Context) *BatchResult {
				return b.run(ctx, i, session, req)
			})
			if !submitted {
				return
			}
		}
	}()

	results := pool.Wait()

	// Fill in requests that never ran because the context ended
	done := make(map[int]bool, len(results))
	for _, r := range results {
		done[r.Index] = true
	}
	for i, req := range requests {
		if !done[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results = append(results, &BatchResult{Index: i, Request: req, Error: err})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

func (b *BatchProcessor) run(ctx context.Context, index int, session string, req model.ContentRequest) *BatchResult {
	start := time.Now()
	logger := b.logger.With(zap.Int("index", index), zap.String("session", session))
	logger.Debug("batch item started", zap.String("topic", req.Topic))

	result, err := b.generator.Generate(ctx, session, req)
	out := &BatchResult{
		Index:    index,
		Session:  session,
		Request:  req,
		Result:   result,
		Error:    err,
		Duration: time.Since(start),
	}

	if err != nil {
		logger.Warn("batch item failed", zap.Error(err))
	} else {
		logger.Debug("batch item finished", zap.Duration("duration", out.Duration))
	}
	return out
}

// ProcessFile reads requests from a topics file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, base model.ContentRequest) ([]*BatchResult, error) {
	requests, err := ReadRequestsFromFile(filePath, base)
	if err != nil {
		return nil, fmt.Errorf("read topics: %w", err)
	}

	return b.Process(ctx, requests), nil
}

// Summarize counts successful and failed results
func Summarize(results []*BatchResult) (succeeded, failed int) {
	for _, r := range results {
		if r.Error != nil {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}

// ReadRequestsFromFile reads one request per line. A line is a topic,
// optionally followed by "| region" and "| content_type" overriding the
// base request. Blank lines and # comments are skipped; requests with the
// same fingerprint are kept once.
func ReadRequestsFromFile(filePath string, base model.ContentRequest) ([]model.ContentRequest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var requests []model.ContentRequest
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		req := base
		parts := strings.Split(line, "|")
		req.Topic = strings.TrimSpace(parts[0])
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			req.Region = strings.ToLower(strings.TrimSpace(parts[1]))
		}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
			req.ContentType = model.ContentType(strings.ToLower(strings.TrimSpace(parts[2])))
		}

		fp := req.Fingerprint()
		if !seen[fp] {
			seen[fp] = true
			requests = append(requests, req)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return requests, nil
}
