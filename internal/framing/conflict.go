package framing

import (
	"strings"
	"time"

	"github.com/ppiankov/framewise/internal/model"
)

// ConflictResolver detects mutually exclusive frames in one text
type ConflictResolver struct {
	catalog *Catalog
	now     func() time.Time
}

// NewConflictResolver creates a resolver over a catalog
func NewConflictResolver(catalog *Catalog) *ConflictResolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &ConflictResolver{
		catalog: catalog,
		now:     time.Now,
	}
}

// DetectConflicts returns a record for the first conflicting pair (in table
// order) whose members were both detected, or nil
func (r *ConflictResolver) DetectConflicts(detected []model.DetectedFrame, sourceText string) *model.FramingConflictRecord {
	if len(detected) < 2 {
		return nil
	}

	byName := make(map[string]model.Frame, len(detected))
	for _, d := range detected {
		byName[strings.ToLower(d.Name)] = d.Frame
	}

	for _, p := range r.catalog.data.ConflictingPairs {
		f1, ok1 := byName[strings.ToLower(p.First)]
		f2, ok2 := byName[strings.ToLower(p.Second)]
		if !ok1 || !ok2 {
			continue
		}

		return &model.FramingConflictRecord{
			SourceText:   sourceText,
			Frame1:       f1,
			Frame2:       f2,
			Alternatives: r.SuggestAlternatives(f1.Name, f2.Name),
			CreatedAt:    r.now(),
		}
	}

	return nil
}

// SuggestAlternatives returns catalog frames outside the pair that conflict
// with neither member
func (r *ConflictResolver) SuggestAlternatives(frame1, frame2 string) []model.Frame {
	var alternatives []model.Frame
	for _, f := range r.catalog.data.Frames {
		if strings.EqualFold(f.Name, frame1) || strings.EqualFold(f.Name, frame2) {
			continue
		}
		if r.catalog.Conflicts(f.Name, frame1) || r.catalog.Conflicts(f.Name, frame2) {
			continue
		}
		alternatives = append(alternatives, f)
	}
	return alternatives
}
