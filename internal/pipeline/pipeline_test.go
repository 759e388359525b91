package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ppiankov/framewise/internal/framing"
	"github.com/ppiankov/framewise/internal/llm"
	"github.com/ppiankov/framewise/internal/metrics"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/recovery"
	"github.com/ppiankov/framewise/internal/validate"
)

const session = "session-1"

type fixture struct {
	p        *Pipeline
	provider *mockProvider
	store    *recovery.Store
	metrics  *metrics.Metrics
	registry *mockRegistry
}

func newFixture(t *testing.T, chain []string, scripts map[string][]reply, configure ...func(*Options)) *fixture {
	t.Helper()

	provider := newMockProvider(scripts)
	registry := &mockRegistry{chain: chain, provider: provider}
	store := recovery.NewMemoryStore(time.Hour)
	m := metrics.New(prometheus.NewRegistry())

	opts := Options{
		Providers: registry,
		Store:     store,
		Regions: &mockRegions{rc: &model.RegionalContext{
			Region:               "us",
			FrameworkDescription: "Sector-specific oversight by existing agencies.",
			KeyPrinciples:        []string{"Transparency"},
		}},
		Metrics: m,
		Logger:  zaptest.NewLogger(t),
		Generation: model.GenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 2048,
			MaxRetries:      1,
		},
	}
	for _, fn := range configure {
		fn(&opts)
	}

	p, err := New(opts)
	require.NoError(t, err)

	return &fixture{p: p, provider: provider, store: store, metrics: m, registry: registry}
}

func baseRequest() model.ContentRequest {
	return model.ContentRequest{
		Topic:       "AI in schools",
		Region:      "us",
		ContentType: model.ContentArticle,
	}
}

func requireGenerationError(t *testing.T, err error) *GenerationError {
	t.Helper()
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	return ge
}

func TestNew_RequiresProviders(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestGenerate_Success(t *testing.T) {
	noBackoff(t)
	f := newFixture(t, []string{"gemini-2.5-pro"}, map[string][]reply{
		"gemini-2.5-pro": {replyText("# Schools\n\nAI poses an existential risk that must be controlled before it takes jobs. Teachers and families can help their community.")},
	})

	result, err := f.p.Generate(context.Background(), session, baseRequest())
	require.NoError(t, err)

	assert.NotContains(t, result.Text, "existential risk")
	assert.NotContains(t, result.Text, "controlled")
	assert.NotContains(t, result.Text, "takes jobs")
	assert.Equal(t, "gemini-2.5-pro", result.Model)
	assert.False(t, result.Resumed)
	assert.False(t, result.Partial)
	assert.Nil(t, result.Conflict)
	assert.Equal(t, model.CountWords(result.Text), result.WordCount)
	assert.GreaterOrEqual(t, result.FramingAnalysis.Effectiveness, 0)
	assert.LessOrEqual(t, result.FramingAnalysis.Effectiveness, 100)
	assert.True(t, result.FramingAnalysis.HasFrame(framing.FrameNurturantParent))
	assert.True(t, f.p.PendingState(session).Empty())

	calls := f.provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 0.7, calls[0].Temperature, "unset temperature takes the configured default")
	assert.Equal(t, 2048, calls[0].MaxOutputTokens)
	assert.NotEmpty(t, calls[0].System)
	assert.Contains(t, calls[0].Prompt, "AI in schools")
	assert.Contains(t, calls[0].Prompt, "Sector-specific oversight by existing agencies.")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GenerationsTotal.WithLabelValues("gemini-2.5-pro", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveGenerations))
}

func TestGenerate_ValidationReportsEveryViolation(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText("unused")}})

	_, err := f.p.Generate(context.Background(), session, model.ContentRequest{
		Topic:        "",
		Region:       "mars",
		ContentType:  "poem",
		ReferenceURL: "ftp://example.com/file",
	})

	var verr *validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("Topic is required"), "violations: %v", verr.Violations)
	assert.Len(t, verr.Violations, 4)
	assert.Empty(t, f.provider.Calls())
}

func TestGenerate_ResumesFromCheckpoint(t *testing.T) {
	noBackoff(t)

	partial := strings.Repeat("Teachers use new tools. ", 6) + "Good. "
	require.Len(t, partial, 150)

	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {
			{chunks: []string{partial}, err: transient("m1")},
			replyText("This reply must never be requested."),
		},
	}, func(o *Options) { o.Generation.MaxRetries = 0 })

	req := baseRequest()

	_, err := f.p.Generate(context.Background(), session, req)
	ge := requireGenerationError(t, err)
	assert.True(t, errors.Is(err, ErrExhaustedFallback))
	assert.True(t, errors.Is(err, llm.ErrTransient))
	assert.True(t, ge.Recovery.CanResumePartial)
	assert.Equal(t, ActionResumePartial, ge.Recovery.SuggestedAction)

	cp, ok := f.store.Checkpoint(session)
	require.True(t, ok)
	assert.Equal(t, partial, cp.Text)
	assert.Equal(t, req.Fingerprint(), cp.RequestFingerprint)
	assert.Equal(t, 1, cp.AttemptCount)
	assert.Equal(t, "m1", cp.Model)

	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)

	assert.True(t, result.Resumed)
	assert.Contains(t, result.Text, strings.TrimSpace(partial))
	assert.Len(t, f.provider.Calls(), 1, "resuming must skip the model call")

	_, ok = f.store.Checkpoint(session)
	assert.False(t, ok, "checkpoint must be empty after success")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CheckpointsTotal.WithLabelValues(metrics.CheckpointSaved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CheckpointsTotal.WithLabelValues(metrics.CheckpointResumed)))
}

func TestGenerate_ShortCheckpointIsRegenerated(t *testing.T) {
	noBackoff(t)
	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {
			{chunks: []string{"Too short."}, err: transient("m1")},
			{chunks: []string{"Still short."}, err: transient("m1")},
			replyText("# Done\n\nA complete article about community care."),
		},
	}, func(o *Options) { o.Generation.MaxRetries = 0 })

	req := baseRequest()

	_, err := f.p.Generate(context.Background(), session, req)
	require.Error(t, err)

	_, err = f.p.Generate(context.Background(), session, req)
	require.Error(t, err)

	cp, ok := f.store.Checkpoint(session)
	require.True(t, ok)
	assert.Equal(t, "Still short.", cp.Text, "the longest partial is kept")
	assert.Equal(t, 2, cp.AttemptCount, "attempts accumulate across calls for one request")

	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)
	assert.False(t, result.Resumed)
	assert.Contains(t, result.Text, "A complete article")
	assert.Len(t, f.provider.Calls(), 3)

	_, ok = f.store.Checkpoint(session)
	assert.False(t, ok)
}

func TestGenerate_SupersedesCheckpointOfOtherRequest(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {replyText("# Fresh\n\nNew text about the community.")},
	})

	other := baseRequest()
	other.Topic = "AI in hospitals"
	require.NoError(t, f.store.SaveCheckpoint(session, model.PartialContentCheckpoint{
		RequestFingerprint: other.Fingerprint(),
		Text:               strings.Repeat("Hospital text. ", 20),
		Request:            other,
	}))

	result, err := f.p.Generate(context.Background(), session, baseRequest())
	require.NoError(t, err)
	assert.False(t, result.Resumed)
	assert.Len(t, f.provider.Calls(), 1)

	_, ok := f.store.Checkpoint(session)
	assert.False(t, ok)
}

func TestGenerate_FallbackChainLowersTemperature(t *testing.T) {
	noBackoff(t)
	f := newFixture(t, []string{"m1", "m2", "m3"}, map[string][]reply{
		"m1": {{err: rateLimited("m1")}},
		"m2": {{err: transient("m2")}},
		"m3": {replyText("# Third time\n\nIt worked for the community.")},
	})

	req := baseRequest()
	req.Temperature = 0.8

	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)
	assert.Equal(t, "m3", result.Model)

	var models []string
	var temps []float64
	for _, c := range f.provider.Calls() {
		models = append(models, c.Model)
		temps = append(temps, c.Temperature)
	}
	assert.Equal(t, []string{"m1", "m1", "m2", "m2", "m3"}, models)
	assert.Equal(t, []float64{0.8, 0.8, 0.7, 0.7, 0.6}, temps)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.FallbacksTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetriesTotal.WithLabelValues("m1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetriesTotal.WithLabelValues("m2")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.GenerationErrorsTotal.WithLabelValues("rate_limit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.GenerationErrorsTotal.WithLabelValues("transient")))
}

func TestFallbackTemperature(t *testing.T) {
	f := newFixture(t, []string{"m1"}, nil)

	tests := []struct {
		in, want float64
	}{
		{1.0, 0.9},
		{0.7, 0.6},
		{0.55, 0.5},
		{0.5, 0.5},
		{0.3, 0.3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, f.p.fallbackTemperature(tt.in))
		})
	}
}

func TestGenerate_ExhaustedFallback(t *testing.T) {
	noBackoff(t)
	f := newFixture(t, []string{"m1", "m2"}, map[string][]reply{
		"m1": {{err: transient("m1")}},
		"m2": {{err: rateLimited("m2")}},
	})

	_, err := f.p.Generate(context.Background(), session, baseRequest())
	ge := requireGenerationError(t, err)

	assert.True(t, errors.Is(err, ErrExhaustedFallback))
	assert.True(t, errors.Is(err, llm.ErrRateLimited), "the last provider error stays inspectable")
	assert.Equal(t, KindExhaustedFallback, ge.Kind)
	assert.True(t, ge.Retryable)
	assert.Equal(t, Recovery{CanRetry: true, SuggestedAction: ActionRetry}, ge.Recovery)
	assert.Equal(t, 4, ge.Attempts)
	assert.Equal(t, "m2", ge.Model)
	assert.True(t, f.p.PendingState(session).Empty())
}

func TestGenerate_NonRetryableErrorStopsChain(t *testing.T) {
	tests := []struct {
		name     string
		reply    reply
		kind     llm.ErrorKind
		sentinel error
		action   string
	}{
		{
			name:     "authentication",
			reply:    reply{err: &llm.Error{Kind: llm.KindAuthentication, Provider: "mock", Model: "m1", StatusCode: 401}},
			kind:     llm.KindAuthentication,
			sentinel: llm.ErrAuthentication,
			action:   ActionReconfigure,
		},
		{
			name:     "safety block",
			reply:    reply{err: &llm.Error{Kind: llm.KindSafetyBlock, Provider: "mock", Model: "m1"}},
			kind:     llm.KindSafetyBlock,
			sentinel: llm.ErrSafetyBlock,
			action:   ActionRephrase,
		},
		{
			name:     "empty response",
			reply:    replyText("   "),
			kind:     llm.KindEmptyResponse,
			sentinel: llm.ErrEmptyResponse,
			action:   ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, []string{"m1", "m2"}, map[string][]reply{
				"m1": {tt.reply},
				"m2": {replyText("must not be reached")},
			})

			_, err := f.p.Generate(context.Background(), session, baseRequest())
			ge := requireGenerationError(t, err)

			assert.Equal(t, tt.kind, ge.Kind)
			assert.False(t, ge.Retryable)
			assert.Equal(t, tt.action, ge.Recovery.SuggestedAction)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.False(t, errors.Is(err, ErrExhaustedFallback))
			assert.Len(t, f.provider.Calls(), 1)
		})
	}
}

func TestGenerate_SafetyBlockWithPartialOffersResume(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {{chunks: []string{"Some text before the block."}, err: &llm.Error{Kind: llm.KindSafetyBlock, Provider: "mock", Model: "m1"}}},
	})

	_, err := f.p.Generate(context.Background(), session, baseRequest())
	ge := requireGenerationError(t, err)

	assert.True(t, ge.Recovery.CanResumePartial)
	assert.Equal(t, ActionResumePartial, ge.Recovery.SuggestedAction)
	assert.NotNil(t, f.p.PendingState(session).Checkpoint)
}

func TestGenerate_SkipsModelWithoutProvider(t *testing.T) {
	f := newFixture(t, []string{"m1", "m2"}, map[string][]reply{
		"m2": {replyText("# Served\n\nBy the second model.")},
	})
	f.registry.missing = map[string]bool{"m1": true}

	result, err := f.p.Generate(context.Background(), session, baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "m2", result.Model)
	assert.Len(t, f.provider.Calls(), 1)
}

func TestGenerate_RequestedModel(t *testing.T) {
	f := newFixture(t, []string{"m1", "m2", "m3"}, map[string][]reply{
		"m2":     {replyText("# From m2\n\nText.")},
		"custom": {replyText("# From custom\n\nText.")},
	})

	req := baseRequest()
	req.Model = "m2"
	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)
	assert.Equal(t, "m2", result.Model)

	assert.Equal(t, []string{"custom", "m1", "m2", "m3"}, f.p.modelChain("custom"))
	assert.Equal(t, []string{"m2", "m3"}, f.p.modelChain("M2"))
	assert.Equal(t, []string{"m1", "m2", "m3"}, f.p.modelChain(""))
}

func TestGenerate_NoModels(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.p.Generate(context.Background(), session, baseRequest())
	ge := requireGenerationError(t, err)
	assert.ErrorIs(t, err, ErrNoModels)
	assert.Equal(t, KindUnavailable, ge.Kind)
}

func TestGenerate_Cancelled(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText("unused")}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.p.Generate(ctx, session, baseRequest())
	ge := requireGenerationError(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCancelled, ge.Kind)
	assert.Empty(t, f.provider.Calls())
}

const conflictedText = "# Classrooms\n\nStrict rules and discipline are needed, but so are care and compassion for the community."

func TestGenerate_SurfacesConflictAndResolves(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText(conflictedText)}})

	result, err := f.p.Generate(context.Background(), session, baseRequest())
	require.NoError(t, err)

	require.NotNil(t, result.Conflict)
	assert.Equal(t, framing.FrameStrictFather, result.Conflict.Frame1.Name)
	assert.Equal(t, framing.FrameNurturantParent, result.Conflict.Frame2.Name)
	assert.Equal(t, conflictedText, result.Conflict.SourceText)
	assert.NotContains(t, result.Text, "Think of it as", "reinforcement waits for the frame choice")

	pending := f.p.PendingState(session)
	require.NotNil(t, pending.Conflict)
	assert.Equal(t, "m1", pending.Conflict.Model)

	_, err = f.p.ResolveConflict(context.Background(), session, "Progress and Beyond")
	assert.ErrorIs(t, err, ErrUnknownFrame)

	resolved, err := f.p.ResolveConflict(context.Background(), session, "  nurturant parent ")
	require.NoError(t, err)
	assert.Nil(t, resolved.Conflict)
	assert.Equal(t, "m1", resolved.Model)
	assert.Contains(t, resolved.Text, "Think of it as a helping hand.")
	assert.Nil(t, f.p.PendingState(session).Conflict)

	_, err = f.p.ResolveConflict(context.Background(), session, "Nurturant Parent")
	assert.ErrorIs(t, err, ErrNoConflict)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConflictsTotal))
}

func TestGenerate_ResolveConflictWithAlternative(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText(conflictedText)}})

	result, err := f.p.Generate(context.Background(), session, baseRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Conflict)
	require.NotEmpty(t, result.Conflict.Alternatives)

	alt := result.Conflict.Alternatives[0]
	resolved, err := f.p.ResolveConflict(context.Background(), session, alt.Name)
	require.NoError(t, err)
	assert.Nil(t, resolved.Conflict)
	assert.NotEqual(t, result.Text, resolved.Text)
}

func TestGenerate_TargetFrameSkipsConflict(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText(conflictedText)}})

	req := baseRequest()
	req.TargetFrame = framing.FrameFairness

	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)
	assert.Nil(t, result.Conflict)
	assert.Nil(t, f.p.PendingState(session).Conflict)
	assert.True(t, result.FramingAnalysis.HasFrame(framing.FrameFairness))
}

func TestDismissConflict(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText(conflictedText)}})

	_, err := f.p.Generate(context.Background(), session, baseRequest())
	require.NoError(t, err)
	require.NotNil(t, f.p.PendingState(session).Conflict)

	require.NoError(t, f.p.DismissConflict(session))
	assert.Nil(t, f.p.PendingState(session).Conflict)
}

func TestGenerate_CitationsValidated(t *testing.T) {
	good := "https://example.org/guide"
	bad := "not a url"
	refs := &mockReferences{
		docs: []model.ReferenceDocument{{ID: "guide.md", Title: "Classroom Guide", Content: "Tutoring helps pupils."}},
		citations: []model.Citation{
			{Title: "AI in Classrooms", Author: "Jane Doe", Source: "example.org", URL: &good},
			{Title: "Broken Link", Source: "broken.example", URL: &bad},
		},
	}
	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {replyText("# Classrooms\n\nTutoring supports the community.")},
	}, func(o *Options) { o.References = refs })

	req := baseRequest()
	req.UseReferences = true
	req.UseSemantic = true

	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)

	require.Len(t, result.Citations, 1)
	assert.Equal(t, "AI in Classrooms", result.Citations[0].Title)
	require.Len(t, result.CitationErrors, 1)
	assert.Equal(t, model.CitationInvalid, result.CitationErrors[0].Kind)

	assert.Contains(t, result.Text, "## References")
	assert.Contains(t, result.Text, "AI in Classrooms")
	assert.NotContains(t, result.Text, "Broken Link")
	assert.Less(t, result.WordCount, model.CountWords(result.Text), "word count covers the body only")

	assert.Equal(t, []bool{true}, refs.semantic)
	assert.Contains(t, f.provider.Calls()[0].Prompt, "Classroom Guide")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CitationErrorsTotal.WithLabelValues("invalid")))

	require.Len(t, f.p.PendingState(session).CitationErrors, 1)

	removed, err := f.p.DismissCitationError(session, "broken.example")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.p.DismissCitationError(session, "broken.example")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, f.p.PendingState(session).Empty())
}

func TestGenerate_ReferenceURLEnrichesPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<html><head><title>Classroom Study</title><meta name="author" content="R. Lee"></head>
<body><p>Pupils learned faster with tutoring.</p></body></html>`)
	}))
	defer server.Close()

	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {replyText("# Study\n\nTutoring helps the community.")},
	}, func(o *Options) {
		o.Fetcher = NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	})

	now := fixedClock(f.p)

	req := baseRequest()
	req.ReferenceURL = server.URL + "/study"

	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)

	assert.Contains(t, f.provider.Calls()[0].Prompt, "Pupils learned faster with tutoring.")
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "Classroom Study", result.Citations[0].Title)
	assert.Equal(t, "R. Lee", result.Citations[0].Author)
	assert.Equal(t, "127.0.0.1", result.Citations[0].Source)
	assert.Equal(t, now, result.Citations[0].AccessDate)
	assert.Contains(t, result.Text, "Accessed 2026-03-01.")
}

func TestGenerate_EnrichmentFailuresDegrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {replyText("# Still fine\n\nText about the community.")},
	}, func(o *Options) {
		o.Regions = &mockRegions{err: errors.New("region service down")}
		o.References = &mockReferences{err: errors.New("index locked")}
		o.Fetcher = NewFetcher(5*time.Second, "test-agent", 1<<20, false, "", "", "")
	})

	req := baseRequest()
	req.UseReferences = true
	req.ReferenceURL = server.URL

	result, err := f.p.Generate(context.Background(), session, req)
	require.NoError(t, err)
	assert.Empty(t, result.Citations)
	assert.NotContains(t, f.provider.Calls()[0].Prompt, "Regional context")
}

func TestResumeFromCheckpoint(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText("unused")}})

	_, err := f.p.ResumeFromCheckpoint(context.Background(), session)
	assert.ErrorIs(t, err, ErrNoCheckpoint)

	req := f.p.normalize(baseRequest())
	require.NoError(t, f.store.SaveCheckpoint(session, model.PartialContentCheckpoint{
		RequestFingerprint: req.Fingerprint(),
		Text:               "Short partial about community care.",
		AttemptCount:       2,
		Model:              "m1",
		Request:            req,
	}))

	result, err := f.p.ResumeFromCheckpoint(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.Equal(t, "m1", result.Model)
	assert.Contains(t, result.Text, "Short partial about community care.")
	assert.Empty(t, f.provider.Calls())

	_, ok := f.store.Checkpoint(session)
	assert.False(t, ok)
}

func TestDismissCheckpoint(t *testing.T) {
	f := newFixture(t, []string{"m1"}, nil)

	require.NoError(t, f.p.DismissCheckpoint(session), "dismissing an empty slot is a no-op")

	require.NoError(t, f.store.SaveCheckpoint(session, model.PartialContentCheckpoint{
		RequestFingerprint: "abc",
		Text:               "partial",
	}))
	require.NoError(t, f.p.DismissCheckpoint(session))
	assert.Nil(t, f.p.PendingState(session).Checkpoint)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CheckpointsTotal.WithLabelValues(metrics.CheckpointCleared)))
}

func TestSessionsAreIsolated(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText(conflictedText)}})

	_, err := f.p.Generate(context.Background(), "alice", baseRequest())
	require.NoError(t, err)

	assert.NotNil(t, f.p.PendingState("alice").Conflict)
	assert.True(t, f.p.PendingState("bob").Empty())
}

func TestGenerateStreaming(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {{chunks: []string{"# Title\n\n", "Our community ", "deserves care."}}},
	})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var partials []string
	var final *model.ContentResult
	for result, err := range f.p.GenerateStreaming(context.Background(), session, baseRequest()) {
		require.NoError(t, err)
		if result.Partial {
			partials = append(partials, result.Text)
			continue
		}
		final = result
	}

	assert.Equal(t, []string{
		"# Title\n\n",
		"# Title\n\nOur community ",
		"# Title\n\nOur community deserves care.",
	}, partials)
	require.NotNil(t, final)
	assert.Contains(t, final.Text, "Our community deserves care.")
	assert.True(t, final.FramingAnalysis.HasFrame(framing.FrameNurturantParent))
	assert.True(t, f.provider.streams[0].closed)
}

func TestGenerateStreaming_FailureCheckpointsBuffer(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{
		"m1": {{chunks: []string{"First part. ", "Second part."}, err: transient("m1")}},
	}, func(o *Options) { o.Generation.MaxRetries = 0 })

	var partials int
	var finalErr error
	for result, err := range f.p.GenerateStreaming(context.Background(), session, baseRequest()) {
		if err != nil {
			finalErr = err
			assert.Nil(t, result)
			continue
		}
		assert.True(t, result.Partial)
		partials++
	}

	assert.Equal(t, 2, partials)
	ge := requireGenerationError(t, finalErr)
	assert.True(t, ge.Recovery.CanResumePartial)

	cp, ok := f.store.Checkpoint(session)
	require.True(t, ok)
	assert.Equal(t, "First part. Second part.", cp.Text)
	assert.True(t, f.provider.streams[0].closed)
}

func TestGenerateStreaming_FallbackSignalsRestart(t *testing.T) {
	noBackoff(t)
	f := newFixture(t, []string{"m1", "m2"}, map[string][]reply{
		"m1": {{chunks: []string{"Alpha beta gamma. "}, err: transient("m1")}},
		"m2": {{chunks: []string{"Zeta eta theta iota kappa. ", "More."}}},
	}, func(o *Options) { o.Generation.MaxRetries = 0 })

	var partials []*model.ContentResult
	var final *model.ContentResult
	for result, err := range f.p.GenerateStreaming(context.Background(), session, baseRequest()) {
		require.NoError(t, err)
		if result.Partial {
			partials = append(partials, result)
			continue
		}
		final = result
	}

	require.Len(t, partials, 3)
	assert.Equal(t, "Alpha beta gamma. ", partials[0].Text)
	assert.Equal(t, "m1", partials[0].Model)
	assert.Equal(t, 1, partials[0].Attempt)
	assert.False(t, partials[0].Restarted)

	assert.Equal(t, "Zeta eta theta iota kappa. ", partials[1].Text)
	assert.Equal(t, "m2", partials[1].Model)
	assert.Equal(t, 2, partials[1].Attempt)
	assert.True(t, partials[1].Restarted, "the fallback attempt starts a new buffer")

	assert.Equal(t, "Zeta eta theta iota kappa. More.", partials[2].Text)
	assert.False(t, partials[2].Restarted)

	// Within one attempt every increment extends the previous one
	for i := 1; i < len(partials); i++ {
		if !partials[i].Restarted {
			assert.True(t, strings.HasPrefix(partials[i].Text, partials[i-1].Text))
		}
	}

	require.NotNil(t, final)
	assert.Equal(t, "m2", final.Model)
	assert.NotContains(t, final.Text, "Alpha")
}

func TestGenerateStreaming_ConsumerStopsEarly(t *testing.T) {
	f := newFixture(t, []string{"m1", "m2"}, map[string][]reply{
		"m1": {{chunks: []string{"One ", "two ", "three."}}},
	})
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	yields := 0
	for range f.p.GenerateStreaming(context.Background(), session, baseRequest()) {
		yields++
		break
	}

	assert.Equal(t, 1, yields)
	assert.Len(t, f.provider.Calls(), 1, "an abandoned stream is neither retried nor passed down the chain")
	assert.True(t, f.provider.streams[0].closed)

	cp, ok := f.store.Checkpoint(session)
	require.True(t, ok)
	assert.Equal(t, "One ", cp.Text)
}

func TestGenerateStreaming_ResumedRequestYieldsOnlyFinal(t *testing.T) {
	f := newFixture(t, []string{"m1"}, map[string][]reply{"m1": {replyText("unused")}})

	req := f.p.normalize(baseRequest())
	require.NoError(t, f.store.SaveCheckpoint(session, model.PartialContentCheckpoint{
		RequestFingerprint: req.Fingerprint(),
		Text:               strings.Repeat("Saved streaming text. ", 10),
		Request:            req,
	}))

	var results []*model.ContentResult
	for result, err := range f.p.GenerateStreaming(context.Background(), session, req) {
		require.NoError(t, err)
		results = append(results, result)
	}

	require.Len(t, results, 1)
	assert.True(t, results[0].Resumed)
	assert.False(t, results[0].Partial)
	assert.Empty(t, f.provider.Calls())
}

func TestRewriteRecoversFromDefects(t *testing.T) {
	f := newFixture(t, []string{"m1"}, nil)

	out := f.p.rewrite(zap.NewNop(), "broken", "keep me", func(string) string {
		panic("defect")
	})
	assert.Equal(t, "keep me", out)
}

func TestAppendReferences(t *testing.T) {
	link := "https://example.org/a"
	accessed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	out := appendReferences("Body text.\n", []model.Citation{
		{Title: "Guide", Author: "Jane Doe", Source: "example.org", URL: &link, AccessDate: accessed},
		{Title: "Notes", Author: model.UnknownAuthor, Source: "Local reference library"},
	})

	want := "Body text.\n\n## References\n\n" +
		"1. Jane Doe. *Guide*. example.org. <https://example.org/a> Accessed 2026-03-01.\n" +
		"2. Unknown. *Notes*. Local reference library.\n"
	assert.Equal(t, want, out)

	assert.Equal(t, "Body", appendReferences("Body", nil))
}
