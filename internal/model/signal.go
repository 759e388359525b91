package model

// Signal represents one transparent term of the effectiveness score
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Points      float64                `json:"points"`         // Contribution to the score (negative for penalties)
	Data        map[string]interface{} `json:"data,omitempty"` // Inputs and formula
}

// SignalType classifies the score term
type SignalType string

const (
	SignalFrameCoverage    SignalType = "frame_coverage"
	SignalMetaphorUse      SignalType = "metaphor_use"
	SignalNegativeFraming  SignalType = "negative_framing"
	SignalValueLanguage    SignalType = "value_language"
	SignalFrameConsistency SignalType = "frame_consistency"
	SignalAnchorTerms      SignalType = "anchor_terms"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
