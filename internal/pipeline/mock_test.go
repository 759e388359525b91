package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/framewise/internal/llm"
	"github.com/ppiankov/framewise/internal/model"
)

// reply is one scripted model response: chunks are streamed (or joined for
// Generate) and err ends the call after them
type reply struct {
	chunks []string
	err    error
}

func replyText(s string) reply { return reply{chunks: []string{s}} }

// mockProvider answers calls from a per-model script. The last reply of a
// script repeats.
type mockProvider struct {
	name string

	mu      sync.Mutex
	scripts map[string][]reply
	calls   []llm.Request
	streams []*mockStream
}

func newMockProvider(scripts map[string][]reply) *mockProvider {
	return &mockProvider{name: "mock", scripts: scripts}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) next(req llm.Request) reply {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.Model == req.Model {
			n++
		}
	}
	m.calls = append(m.calls, req)

	script := m.scripts[req.Model]
	if len(script) == 0 {
		return reply{err: fmt.Errorf("no script for %s", req.Model)}
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n]
}

func (m *mockProvider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	r := m.next(req)
	joined := strings.Join(r.chunks, "")
	if r.err != nil {
		return nil, withPartial(r.err, joined)
	}
	return &llm.Response{Text: joined, Model: req.Model}, nil
}

func (m *mockProvider) Stream(ctx context.Context, req llm.Request) (llm.ChunkStream, error) {
	r := m.next(req)
	s := &mockStream{ctx: ctx, chunks: r.chunks, err: r.err}
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *mockProvider) IsAvailable(ctx context.Context) bool { return true }

func (m *mockProvider) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.calls...)
}

// withPartial attaches text produced before a failure to a provider error
func withPartial(err error, partial string) error {
	if e, ok := err.(*llm.Error); ok && partial != "" {
		cp := *e
		cp.Partial = partial
		return &cp
	}
	return err
}

type mockStream struct {
	ctx    context.Context
	chunks []string
	err    error
	pos    int
	closed bool
}

func (s *mockStream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.pos < len(s.chunks) {
		s.pos++
		return s.chunks[s.pos-1], nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

// mockRegistry is a ProviderSource over one provider. Models listed in
// missing have no provider.
type mockRegistry struct {
	chain    []string
	provider llm.Provider
	missing  map[string]bool
}

func (r *mockRegistry) Chain() []string { return append([]string(nil), r.chain...) }

func (r *mockRegistry) ProviderFor(modelName string) (llm.Provider, error) {
	if r.missing[modelName] {
		return nil, fmt.Errorf("no provider configured for model %s", modelName)
	}
	return r.provider, nil
}

type mockRegions struct {
	rc  *model.RegionalContext
	err error
}

func (m *mockRegions) ContextFor(ctx context.Context, region, topic string) (*model.RegionalContext, error) {
	return m.rc, m.err
}

type mockReferences struct {
	docs      []model.ReferenceDocument
	citations []model.Citation
	err       error

	mu       sync.Mutex
	semantic []bool
}

func (m *mockReferences) Search(ctx context.Context, query string, useSemantic bool) ([]model.ReferenceDocument, error) {
	m.mu.Lock()
	m.semantic = append(m.semantic, useSemantic)
	m.mu.Unlock()
	return m.docs, m.err
}

func (m *mockReferences) CitationsFor(docs []model.ReferenceDocument) []model.Citation {
	return m.citations
}

func rateLimited(name string) *llm.Error {
	return &llm.Error{Kind: llm.KindRateLimit, Provider: "mock", Model: name, StatusCode: 429}
}

func transient(name string) *llm.Error {
	return &llm.Error{Kind: llm.KindTransient, Provider: "mock", Model: name}
}

// noBackoff removes retry sleeps for the duration of a test
func noBackoff(t *testing.T) {
	t.Helper()
	orig := RetryBaseDelay
	RetryBaseDelay = 0
	t.Cleanup(func() { RetryBaseDelay = orig })
}

// fixedClock pins the pipeline clock
func fixedClock(p *Pipeline) time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return now
}
