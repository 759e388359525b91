package model

import "time"

// UnknownAuthor is recorded when a citation has no author
const UnknownAuthor = "Unknown"

// Citation is a reference attached to generated content
type Citation struct {
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Source     string    `json:"source"`
	URL        *string   `json:"url,omitempty"`
	AccessDate time.Time `json:"access_date"`
}

// URLString returns the citation URL or "" when absent
func (c Citation) URLString() string {
	if c.URL == nil {
		return ""
	}
	return *c.URL
}

// CitationErrorKind classifies why a citation was rejected
type CitationErrorKind string

const (
	CitationIncomplete   CitationErrorKind = "incomplete"
	CitationInvalid      CitationErrorKind = "invalid"
	CitationUnverifiable CitationErrorKind = "unverifiable"
)

// CitationError records a rejected citation and an optional corrected version
type CitationError struct {
	Citation   Citation          `json:"citation"`
	Kind       CitationErrorKind `json:"kind"`
	Reason     string            `json:"reason,omitempty"`
	Suggestion *Citation         `json:"suggestion,omitempty"`
}

// PartialContentCheckpoint is the saved output of an interrupted generation
type PartialContentCheckpoint struct {
	RequestFingerprint string         `json:"request_fingerprint"`
	Text               string         `json:"text"`
	SavedAt            time.Time      `json:"saved_at"`
	AttemptCount       int            `json:"attempt_count"`
	Model              string         `json:"model,omitempty"`
	Request            ContentRequest `json:"request"`
}
