package model

import "time"

// Frame is a named cluster of values, metaphors and keywords representing a
// rhetorical perspective. Frames are reference data; identity is Name.
type Frame struct {
	Name      string   `json:"name" yaml:"name"`
	Values    []string `json:"values" yaml:"values"`
	Metaphors []string `json:"metaphors" yaml:"metaphors"` // First entry is the primary metaphor
	Keywords  []string `json:"keywords" yaml:"keywords"`
}

// PrimaryMetaphor returns the frame's first metaphor, or "" if it has none
func (f Frame) PrimaryMetaphor() string {
	if len(f.Metaphors) == 0 {
		return ""
	}
	return f.Metaphors[0]
}

// DetectedFrame is a frame found in a text together with the subset of its
// keywords that actually matched.
type DetectedFrame struct {
	Frame
	MatchedKeywords []string `json:"matched_keywords"`
}

// MetaphorCategory classifies a detected figurative phrase
type MetaphorCategory string

const (
	MetaphorAsActor     MetaphorCategory = "as_actor"
	MetaphorAsRace      MetaphorCategory = "as_race"
	MetaphorAsWeapon    MetaphorCategory = "as_weapon"
	MetaphorAsServant   MetaphorCategory = "as_servant"
	MetaphorAsEvolution MetaphorCategory = "as_evolution"
	MetaphorAsJourney   MetaphorCategory = "as_journey"
	MetaphorAsContainer MetaphorCategory = "as_container"
)

// Metaphor is a figurative phrase detected in a text
type Metaphor struct {
	Text     string           `json:"text"`
	Category MetaphorCategory `json:"category"`
	Context  string           `json:"context"` // The sentence containing the phrase
}

// FramingAnalysis is the result of a single analysis pass. It is never
// mutated after creation; a new analysis replaces the old one.
type FramingAnalysis struct {
	DetectedFrames  []DetectedFrame `json:"detected_frames"`
	SuggestedFrames []Frame         `json:"suggested_frames"`
	Metaphors       []Metaphor      `json:"metaphors"`
	Effectiveness   int             `json:"effectiveness"` // 0-100
	Signals         []Signal        `json:"signals,omitempty"`
}

// FrameNames returns the names of the detected frames in detection order
func (a FramingAnalysis) FrameNames() []string {
	names := make([]string, 0, len(a.DetectedFrames))
	for _, f := range a.DetectedFrames {
		names = append(names, f.Name)
	}
	return names
}

// HasFrame reports whether a frame with the given name was detected
func (a FramingAnalysis) HasFrame(name string) bool {
	for _, f := range a.DetectedFrames {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FramingConflictRecord captures two mutually exclusive frames detected in the
// same text, plus frames that could replace both.
type FramingConflictRecord struct {
	SourceText   string    `json:"source_text"`
	Frame1       Frame     `json:"frame1"`
	Frame2       Frame     `json:"frame2"`
	Alternatives []Frame   `json:"alternatives"`
	CreatedAt    time.Time `json:"created_at"`
}

// Choices returns every frame name that resolves the conflict
func (r FramingConflictRecord) Choices() []string {
	choices := []string{r.Frame1.Name, r.Frame2.Name}
	for _, alt := range r.Alternatives {
		choices = append(choices, alt.Name)
	}
	return choices
}
