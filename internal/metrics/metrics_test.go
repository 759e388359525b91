package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestRecordGeneration(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordGeneration("gemini-2.5-pro", 1.5, nil, "")
	m.RecordGeneration("gemini-2.5-pro", 0.2, errors.New("boom"), "rate_limit")
	m.RecordGeneration("gpt-4o", 0.1, errors.New("boom"), "")

	if v := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("gemini-2.5-pro", "success")); v != 1 {
		t.Errorf("success count = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.GenerationsTotal.WithLabelValues("gemini-2.5-pro", "error")); v != 1 {
		t.Errorf("error count = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.GenerationErrorsTotal.WithLabelValues("rate_limit")); v != 1 {
		t.Errorf("rate_limit count = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.GenerationErrorsTotal.WithLabelValues("unknown")); v != 1 {
		t.Errorf("unknown kind count = %v, want 1", v)
	}
	if n := testutil.CollectAndCount(m.GenerationDuration); n != 2 {
		t.Errorf("expected duration series for 2 models, got %d", n)
	}
}

func TestRecordCountersAndGauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordRetry("gpt-4o")
	m.RecordRetry("gpt-4o")
	m.RecordFallback()
	m.RecordCheckpoint(CheckpointSaved)
	m.RecordCheckpoint(CheckpointResumed)
	m.RecordConflict()
	m.RecordCitationError("invalid")
	m.ObserveEffectiveness(72)

	if v := testutil.ToFloat64(m.RetriesTotal.WithLabelValues("gpt-4o")); v != 2 {
		t.Errorf("retries = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.FallbacksTotal); v != 1 {
		t.Errorf("fallbacks = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.CheckpointsTotal.WithLabelValues(CheckpointSaved)); v != 1 {
		t.Errorf("saved checkpoints = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.ConflictsTotal); v != 1 {
		t.Errorf("conflicts = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.CitationErrorsTotal.WithLabelValues("invalid")); v != 1 {
		t.Errorf("citation errors = %v, want 1", v)
	}

	done := m.GenerationStarted()
	if v := testutil.ToFloat64(m.ActiveGenerations); v != 1 {
		t.Errorf("active = %v, want 1", v)
	}
	done()
	if v := testutil.ToFloat64(m.ActiveGenerations); v != 0 {
		t.Errorf("active = %v, want 0", v)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.RecordGeneration("x", 1, errors.New("boom"), "transient")
	m.RecordRetry("x")
	m.RecordFallback()
	m.RecordCheckpoint(CheckpointCleared)
	m.RecordConflict()
	m.RecordCitationError("invalid")
	m.ObserveEffectiveness(50)
	m.GenerationStarted()()
}

func TestHandler(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordFallback()

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "framewise_fallbacks_total 1") {
		t.Errorf("metrics output missing fallback counter:\n%s", body)
	}
}
