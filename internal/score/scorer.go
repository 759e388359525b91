package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/framewise/internal/model"
)

// Inputs are the text measurements the effectiveness score is computed from
type Inputs struct {
	DetectedFrames   int
	Metaphors        int
	NegativeMatches  int
	ValueOccurrences int
	ConflictingPairs int

	// AnchorTermsFound lists the anchor terms present in the text; the bonus
	// applies only when every entry of AnchorTerms is found
	AnchorTerms      []string
	AnchorTermsFound []string
}

// Result is the effectiveness score with its per-term breakdown
type Result struct {
	Effectiveness int
	Raw           float64
	Signals       []model.Signal
}

// Scorer calculates the framing effectiveness score and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate calculates the effectiveness score (0-100). The formula is fixed:
//
//	min(10*frames, 30) + min(5*metaphors, 20) - min(5*negative, 20)
//	+ min(4*values, 20) + 10*consistency + (20 if all anchor terms present)
//
// The sum is rounded to the nearest integer and clamped to [0, 100].
func (s *Scorer) Calculate(in Inputs) Result {
	var signals []model.Signal

	// 1. Frame coverage (0-30 points)
	signals = append(signals, s.frameCoverage(in.DetectedFrames))

	// 2. Metaphor use (0-20 points)
	signals = append(signals, s.metaphorUse(in.Metaphors))

	// 3. Negative framing (0-20 point penalty)
	signals = append(signals, s.negativeFraming(in.NegativeMatches))

	// 4. Value language (0-20 points)
	signals = append(signals, s.valueLanguage(in.ValueOccurrences))

	// 5. Frame consistency (0-10 points)
	signals = append(signals, s.frameConsistency(in.DetectedFrames, in.ConflictingPairs))

	// 6. Anchor terms (0 or 20 points)
	signals = append(signals, s.anchorTerms(in.AnchorTerms, in.AnchorTermsFound))

	raw := 0.0
	for _, sig := range signals {
		raw += sig.Points
	}

	return Result{
		Effectiveness: clamp(int(math.Round(raw)), 0, 100),
		Raw:           raw,
		Signals:       signals,
	}
}

// frameCoverage scores how many frames the text activates
func (s *Scorer) frameCoverage(frames int) model.Signal {
	points := math.Min(float64(10*frames), 30)

	severity := model.SeverityInfo
	if frames == 0 {
		severity = model.SeverityCritical
	}

	return model.Signal{
		Type:        model.SignalFrameCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("%d frame(s) detected", frames),
		Points:      points,
		Data: map[string]interface{}{
			"frames":  frames,
			"formula": "min(10 * frames, 30)",
		},
	}
}

// metaphorUse scores figurative language
func (s *Scorer) metaphorUse(metaphors int) model.Signal {
	points := math.Min(float64(5*metaphors), 20)

	severity := model.SeverityInfo
	if metaphors == 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalMetaphorUse,
		Severity:    severity,
		Description: fmt.Sprintf("%d metaphor(s) detected", metaphors),
		Points:      points,
		Data: map[string]interface{}{
			"metaphors": metaphors,
			"formula":   "min(5 * metaphors, 20)",
		},
	}
}

// negativeFraming penalizes threat, control, replacement, surveillance and
// unpredictability phrasing
func (s *Scorer) negativeFraming(matches int) model.Signal {
	penalty := math.Min(float64(5*matches), 20)

	severity := model.SeverityInfo
	if matches >= 4 {
		severity = model.SeverityCritical
	} else if matches > 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalNegativeFraming,
		Severity:    severity,
		Description: fmt.Sprintf("%d negative-frame phrase(s)", matches),
		Points:      -penalty,
		Data: map[string]interface{}{
			"matches": matches,
			"formula": "-min(5 * negative_matches, 20)",
		},
	}
}

// valueLanguage scores occurrences of value terms from detected frames
func (s *Scorer) valueLanguage(occurrences int) model.Signal {
	points := math.Min(float64(4*occurrences), 20)

	severity := model.SeverityInfo
	if occurrences == 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalValueLanguage,
		Severity:    severity,
		Description: fmt.Sprintf("%d value term occurrence(s)", occurrences),
		Points:      points,
		Data: map[string]interface{}{
			"occurrences": occurrences,
			"formula":     "min(4 * value_occurrences, 20)",
		},
	}
}

// frameConsistency rewards texts that do not mix conflicting frames
func (s *Scorer) frameConsistency(frames, conflictingPairs int) model.Signal {
	consistency := 1.0
	if frames > 1 {
		consistency = 1 - float64(conflictingPairs)/float64(frames)
	}

	severity := model.SeverityInfo
	if conflictingPairs > 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalFrameConsistency,
		Severity:    severity,
		Description: fmt.Sprintf("Consistency %.2f (%d conflicting pair(s))", consistency, conflictingPairs),
		Points:      10 * consistency,
		Data: map[string]interface{}{
			"frames":            frames,
			"conflicting_pairs": conflictingPairs,
			"consistency":       consistency,
			"formula":           "10 * (1 - conflicting_pairs / frames), 10 when frames <= 1",
		},
	}
}

// anchorTerms awards the flat bonus when every anchor term is present
func (s *Scorer) anchorTerms(anchors, found []string) model.Signal {
	present := make(map[string]bool, len(found))
	for _, f := range found {
		present[strings.ToLower(f)] = true
	}

	var missing []string
	for _, a := range anchors {
		if !present[strings.ToLower(a)] {
			missing = append(missing, a)
		}
	}

	points := 0.0
	severity := model.SeverityInfo
	description := fmt.Sprintf("All anchor terms present (%s)", strings.Join(anchors, ", "))
	if len(anchors) == 0 || len(missing) > 0 {
		severity = model.SeverityWarning
		description = fmt.Sprintf("Missing anchor terms: %s", strings.Join(missing, ", "))
	} else {
		points = 20
	}

	return model.Signal{
		Type:        model.SignalAnchorTerms,
		Severity:    severity,
		Description: description,
		Points:      points,
		Data: map[string]interface{}{
			"anchors": anchors,
			"found":   found,
			"missing": missing,
			"formula": "20 if every anchor term is present, else 0",
		},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
