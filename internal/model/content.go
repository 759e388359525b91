package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ContentType selects the document template used for generation
type ContentType string

const (
	ContentArticle     ContentType = "article"
	ContentBlogPost    ContentType = "blog_post"
	ContentPolicyBrief ContentType = "policy_brief"
	ContentOpEd        ContentType = "op_ed"
	ContentNewsletter  ContentType = "newsletter"
	ContentSpeech      ContentType = "speech"
)

// SupportedContentTypes lists every accepted content type in display order
var SupportedContentTypes = []ContentType{
	ContentArticle,
	ContentBlogPost,
	ContentPolicyBrief,
	ContentOpEd,
	ContentNewsletter,
	ContentSpeech,
}

// SupportedRegions lists every accepted audience region
var SupportedRegions = []string{"global", "us", "eu", "uk", "canada", "australia", "singapore"}

// IsSupportedContentType reports whether t is an accepted content type
func IsSupportedContentType(t ContentType) bool {
	for _, ct := range SupportedContentTypes {
		if ct == t {
			return true
		}
	}
	return false
}

// IsSupportedRegion reports whether region is an accepted audience region
func IsSupportedRegion(region string) bool {
	for _, r := range SupportedRegions {
		if r == region {
			return true
		}
	}
	return false
}

// ContentRequest describes one generation request. Requests are transient.
type ContentRequest struct {
	Topic           string      `json:"topic" yaml:"topic" validate:"required,mintrimmed=3"`
	Region          string      `json:"region" yaml:"region" validate:"required,region"`
	ContentType     ContentType `json:"content_type" yaml:"content_type" validate:"required,contenttype"`
	Model           string      `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature     float64     `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int         `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty" validate:"gte=0"`

	// TargetFrame asks the rewriter to reframe toward a named frame
	TargetFrame string `json:"target_frame,omitempty" yaml:"target_frame,omitempty"`

	// ReferenceURL is fetched and used as an extra reference snippet
	ReferenceURL string `json:"reference_url,omitempty" yaml:"reference_url,omitempty" validate:"omitempty,httpurl"`

	// UseReferences enables enrichment from the reference store
	UseReferences bool `json:"use_references" yaml:"use_references"`
	UseSemantic   bool `json:"use_semantic" yaml:"use_semantic"`
}

// Fingerprint identifies requests that produce interchangeable output.
// Only topic, content type and region participate.
func (r ContentRequest) Fingerprint() string {
	topic := strings.ToLower(strings.Join(strings.Fields(r.Topic), " "))
	key := topic + "\x1f" + string(r.ContentType) + "\x1f" + strings.ToLower(r.Region)
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ContentResult is the output of a pipeline run
type ContentResult struct {
	Text             string          `json:"text"`
	FramingAnalysis  FramingAnalysis `json:"framing_analysis"`
	Citations        []Citation      `json:"citations"`
	WordCount        int             `json:"word_count"`
	GenerationTimeMs int64           `json:"generation_time_ms"`

	Model          string                 `json:"model,omitempty"`
	Resumed        bool                   `json:"resumed,omitempty"`        // Started from a checkpoint
	Partial        bool                   `json:"partial,omitempty"`        // Streaming increment, not final
	Attempt        int                    `json:"attempt,omitempty"`        // Model call the increment belongs to
	Restarted      bool                   `json:"restarted,omitempty"`      // Increment discards the previous attempt's text
	Conflict       *FramingConflictRecord `json:"conflict,omitempty"`       // Unresolved framing conflict
	CitationErrors []CitationError        `json:"citation_errors,omitempty"`
}

// CountWords counts whitespace-separated words
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// RegionalContext is policy and cultural background for an audience region
type RegionalContext struct {
	Region               string        `json:"region" yaml:"region"`
	FrameworkDescription string        `json:"framework_description" yaml:"framework_description"`
	KeyPrinciples        []string      `json:"key_principles" yaml:"key_principles"`
	CulturalNotes        []string      `json:"cultural_notes" yaml:"cultural_notes"`
	RecentDevelopments   []Development `json:"recent_developments" yaml:"recent_developments"`
}

// Development is a recent regional policy event
type Development struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// ReferenceDocument is a ranked search hit from the reference store
type ReferenceDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	Source    string    `json:"source,omitempty"`
	URL       string    `json:"url,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
	Score     float64   `json:"score"`
}
