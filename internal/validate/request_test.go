package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/framewise/internal/model"
)

func validRequest() model.ContentRequest {
	return model.ContentRequest{
		Topic:       "AI in healthcare",
		Region:      "us",
		ContentType: model.ContentArticle,
		Temperature: 0.7,
	}
}

func TestRequestValidator_Valid(t *testing.T) {
	v := NewRequestValidator()

	req := validRequest()
	req.ReferenceURL = "https://example.com/report"
	if err := v.Validate(req); err != nil {
		t.Errorf("Expected valid request, got %v", err)
	}
}

func TestRequestValidator_EmptyTopic(t *testing.T) {
	v := NewRequestValidator()

	for _, topic := range []string{"", "   "} {
		req := validRequest()
		req.Topic = topic

		err := v.Validate(req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected ValidationError for %q, got %v", topic, err)
		}
		if !verr.Has("Topic is required") {
			t.Errorf("Expected 'Topic is required' for %q, got %v", topic, verr.Violations)
		}
	}
}

func TestRequestValidator_ShortTopicAfterTrim(t *testing.T) {
	v := NewRequestValidator()

	req := validRequest()
	req.Topic = "  AI  "

	var verr *ValidationError
	if !errors.As(v.Validate(req), &verr) || !verr.Has("Topic must be at least 3 characters") {
		t.Fatalf("Expected minimum length violation, got %v", verr)
	}

	req.Topic = "  AIs "
	if err := v.Validate(req); err != nil {
		t.Errorf("Expected three trimmed characters to pass, got %v", err)
	}
}

func TestRequestValidator_ReportsAllViolations(t *testing.T) {
	v := NewRequestValidator()

	req := model.ContentRequest{
		Topic:        "",
		Region:       "atlantis",
		ContentType:  "haiku",
		Temperature:  3,
		ReferenceURL: "not a url",
	}

	var verr *ValidationError
	if !errors.As(v.Validate(req), &verr) {
		t.Fatal("Expected ValidationError")
	}

	if len(verr.Violations) != 5 {
		t.Fatalf("Expected 5 violations, got %d: %v", len(verr.Violations), verr.Violations)
	}
	for _, prefix := range []string{"Topic is required", "Region must be one of", "Content type must be one of", "Temperature must be at most 2", "Reference URL must be"} {
		found := false
		for _, msg := range verr.Violations {
			if strings.HasPrefix(msg, prefix) {
				found = true
			}
		}
		if !found {
			t.Errorf("Missing violation %q in %v", prefix, verr.Violations)
		}
	}
	if !strings.Contains(verr.Error(), "Topic is required") {
		t.Errorf("Error string should list violations: %s", verr.Error())
	}
}

func TestIsValidHTTPURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com":         true,
		"http://example.com/a?b=c":    true,
		" https://example.com/x ":     true,
		"ftp://example.com":           false,
		"example.com":                 false,
		"https://":                    false,
		"javascript:alert(1)":         false,
		"http://exa mple.com/invalid": false,
	}
	for raw, want := range tests {
		if got := IsValidHTTPURL(raw); got != want {
			t.Errorf("IsValidHTTPURL(%q) = %v, want %v", raw, got, want)
		}
	}
}
