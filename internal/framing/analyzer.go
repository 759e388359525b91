package framing

import (
	"sort"

	"github.com/ppiankov/framewise/internal/extract"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/score"
)

// Analyzer detects frames, metaphors and negative framing in text
type Analyzer struct {
	catalog *Catalog
	scorer  *score.Scorer
}

// NewAnalyzer creates a new analyzer over a catalog
func NewAnalyzer(catalog *Catalog) *Analyzer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Analyzer{
		catalog: catalog,
		scorer:  score.NewScorer(),
	}
}

// Catalog returns the catalog the analyzer reads from
func (a *Analyzer) Catalog() *Catalog {
	return a.catalog
}

// Analyze produces a fresh framing analysis of text
func (a *Analyzer) Analyze(text string) model.FramingAnalysis {
	detected := a.DetectFrames(text)
	metaphors := a.ExtractMetaphors(text)

	result := a.scorer.Calculate(score.Inputs{
		DetectedFrames:   len(detected),
		Metaphors:        len(metaphors),
		NegativeMatches:  a.catalog.negative.Count(text),
		ValueOccurrences: a.countValueTerms(text, detected),
		ConflictingPairs: a.countConflictingPairs(detected),
		AnchorTerms:      a.catalog.AnchorTerms(),
		AnchorTermsFound: a.anchorTermsFound(text),
	})

	return model.FramingAnalysis{
		DetectedFrames:  detected,
		SuggestedFrames: a.SuggestFrames(detected),
		Metaphors:       metaphors,
		Effectiveness:   result.Effectiveness,
		Signals:         result.Signals,
	}
}

// DetectFrames returns every catalog frame with at least one keyword in text.
// Each detected frame carries only the keywords that matched, in catalog
// order.
func (a *Analyzer) DetectFrames(text string) []model.DetectedFrame {
	var detected []model.DetectedFrame

	for i, frame := range a.catalog.data.Frames {
		found := a.catalog.keywords[i].Matched(text)
		if len(found) == 0 {
			continue
		}

		var matched []string
		seen := make(map[string]bool)
		for _, kw := range frame.Keywords {
			key := normalizePhrase(kw)
			if found[key] && !seen[key] {
				seen[key] = true
				matched = append(matched, kw)
			}
		}

		detected = append(detected, model.DetectedFrame{
			Frame:           frame,
			MatchedKeywords: matched,
		})
	}

	return detected
}

// ExtractMetaphors finds metaphor phrases in text order, each with its
// containing sentence
func (a *Analyzer) ExtractMetaphors(text string) []model.Metaphor {
	if text == "" {
		return nil
	}

	type located struct {
		metaphor model.Metaphor
		start    int
		rank     int
	}

	var sentences []extract.Sentence
	var found []located
	for rank, category := range a.categories() {
		for _, m := range a.catalog.metaphors[category].FindAll(text) {
			if sentences == nil {
				sentences = extract.SplitSentences(text)
			}
			found = append(found, located{
				metaphor: model.Metaphor{
					Text:     m.Text,
					Category: category,
					Context:  extract.SentenceAt(sentences, m.Start),
				},
				start: m.Start,
				rank:  rank,
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].start != found[j].start {
			return found[i].start < found[j].start
		}
		return found[i].rank < found[j].rank
	})

	metaphors := make([]model.Metaphor, len(found))
	for i, f := range found {
		metaphors[i] = f.metaphor
	}
	return metaphors
}

// SuggestFrames returns complementary frames not already detected, or the
// default suggestions when nothing was detected
func (a *Analyzer) SuggestFrames(detected []model.DetectedFrame) []model.Frame {
	if len(detected) == 0 {
		return a.catalog.DefaultSuggestions()
	}

	present := make(map[string]bool, len(detected))
	for _, d := range detected {
		present[d.Name] = true
	}

	var suggestions []model.Frame
	seen := make(map[string]bool)
	for _, d := range detected {
		for _, comp := range a.catalog.Complements(d.Name) {
			if present[comp.Name] || seen[comp.Name] {
				continue
			}
			seen[comp.Name] = true
			suggestions = append(suggestions, comp)
		}
	}

	return suggestions
}

// NegativeMatches returns every negative-frame phrase in text
func (a *Analyzer) NegativeMatches(text string) []Match {
	return a.catalog.negative.FindAll(text)
}

// DominantFrames returns the detected frames with the highest matched
// keyword count
func DominantFrames(detected []model.DetectedFrame) []model.DetectedFrame {
	most := 0
	for _, d := range detected {
		if len(d.MatchedKeywords) > most {
			most = len(d.MatchedKeywords)
		}
	}

	var dominant []model.DetectedFrame
	for _, d := range detected {
		if most > 0 && len(d.MatchedKeywords) == most {
			dominant = append(dominant, d)
		}
	}
	return dominant
}

// countValueTerms counts occurrences of the value terms of detected frames.
// A term shared by two frames is counted once.
func (a *Analyzer) countValueTerms(text string, detected []model.DetectedFrame) int {
	if len(detected) == 0 {
		return 0
	}

	var terms []string
	for _, d := range detected {
		terms = append(terms, d.Values...)
	}
	return NewPhraseSet(terms).Count(text)
}

// countConflictingPairs counts conflicting-pair entries whose members were
// both detected
func (a *Analyzer) countConflictingPairs(detected []model.DetectedFrame) int {
	present := make(map[string]bool, len(detected))
	for _, d := range detected {
		present[normalizePhrase(d.Name)] = true
	}

	count := 0
	for _, p := range a.catalog.data.ConflictingPairs {
		if present[normalizePhrase(p.First)] && present[normalizePhrase(p.Second)] {
			count++
		}
	}
	return count
}

func (a *Analyzer) anchorTermsFound(text string) []string {
	found := a.catalog.anchors.Matched(text)

	var out []string
	for _, term := range a.catalog.data.AnchorTerms {
		if found[normalizePhrase(term)] {
			out = append(out, term)
		}
	}
	return out
}

// categories returns the metaphor categories in report order, including any
// custom categories from a loaded catalog
func (a *Analyzer) categories() []model.MetaphorCategory {
	out := make([]model.MetaphorCategory, 0, len(a.catalog.metaphors))
	known := make(map[model.MetaphorCategory]bool)
	for _, c := range metaphorCategoryOrder {
		known[c] = true
		if _, ok := a.catalog.metaphors[c]; ok {
			out = append(out, c)
		}
	}

	var extra []model.MetaphorCategory
	for c := range a.catalog.metaphors {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(out, extra...)
}
