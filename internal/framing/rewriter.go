package framing

import (
	"fmt"
	"strings"

	"github.com/ppiankov/framewise/internal/model"
)

// valueSentences are rotated when reinforcing a frame's values
var valueSentences = []string{
	"At its heart, this is about %s.",
	"It reflects a shared commitment to %s.",
	"%s should guide every decision along the way.",
	"Our approach puts %s at the center.",
}

// Rewriter steers text toward frames. Every method is a pure function of its
// inputs and returns the input unchanged when nothing applies.
type Rewriter struct {
	catalog  *Catalog
	analyzer *Analyzer
}

// NewRewriter creates a rewriter sharing the analyzer's catalog
func NewRewriter(analyzer *Analyzer) *Rewriter {
	if analyzer == nil {
		analyzer = NewAnalyzer(nil)
	}
	return &Rewriter{
		catalog:  analyzer.catalog,
		analyzer: analyzer,
	}
}

// AvoidNegativeFrames replaces threat, control, replacement, surveillance and
// unpredictability phrasing with neutral wording. Applying it twice gives the
// same result as applying it once.
func (r *Rewriter) AvoidNegativeFrames(text string) string {
	return r.catalog.negative.Apply(text)
}

// ReinforcePositiveFrames appends one sentence per value of each frame and a
// sentence naming the frame's primary metaphor. With no frames it uses the
// frames detected in text, or the default suggestions when none are detected.
// The original text is kept verbatim as a prefix.
func (r *Rewriter) ReinforcePositiveFrames(text string, frames []model.Frame) string {
	if frames == nil {
		detected := r.analyzer.DetectFrames(text)
		if len(detected) == 0 {
			frames = r.catalog.DefaultSuggestions()
		} else {
			frames = make([]model.Frame, len(detected))
			for i, d := range detected {
				frames[i] = d.Frame
			}
		}
	}

	var sentences []string
	for _, f := range frames {
		for i, value := range f.Values {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			sentences = append(sentences, upperFirst(fmt.Sprintf(valueSentences[i%len(valueSentences)], value)))
		}
		if metaphor := f.PrimaryMetaphor(); metaphor != "" {
			sentences = append(sentences, fmt.Sprintf("Think of it as %s.", metaphor))
		}
	}

	if len(sentences) == 0 {
		return text
	}
	return appendParagraph(text, strings.Join(sentences, " "))
}

// ReframeContent steers text toward target. When target is already among the
// dominant detected frames this only reinforces it. Otherwise negative framing
// is removed, the frame's introduction and conclusion are added around the
// text, and competing metaphors are retargeted.
func (r *Rewriter) ReframeContent(text string, target model.Frame) string {
	for _, d := range DominantFrames(r.analyzer.DetectFrames(text)) {
		if strings.EqualFold(d.Name, target.Name) {
			return r.ReinforcePositiveFrames(text, []model.Frame{target})
		}
	}

	out := r.AvoidNegativeFrames(text)

	tmpl, _ := r.catalog.TemplateFor(target.Name)
	values := joinValues(target.Values)
	if values == "" {
		values = strings.ToLower(target.Name)
	}

	if intro := renderTemplate(tmpl.Intro, values); intro != "" {
		out = prependParagraph(intro, out)
	}
	if conclusion := renderTemplate(tmpl.Conclusion, values); conclusion != "" {
		out = appendParagraph(out, conclusion)
	}

	if table, ok := r.catalog.replacements[strings.ToLower(strings.TrimSpace(target.Name))]; ok {
		out = table.Apply(out)
	}

	return out
}

// ReframeToward reframes toward a frame by name. Names missing from the
// catalog use the generic template.
func (r *Rewriter) ReframeToward(text, frameName string) string {
	frame, ok := r.catalog.Lookup(frameName)
	if !ok {
		frame = model.Frame{Name: strings.TrimSpace(frameName)}
	}
	return r.ReframeContent(text, frame)
}

func renderTemplate(tmpl, values string) string {
	tmpl = strings.TrimSpace(tmpl)
	if tmpl == "" {
		return ""
	}
	return upperFirst(strings.ReplaceAll(tmpl, "{values}", values))
}

// joinValues renders "a", "a and b" or "a, b and c"
func joinValues(values []string) string {
	var clean []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}

	switch len(clean) {
	case 0:
		return ""
	case 1:
		return clean[0]
	default:
		return strings.Join(clean[:len(clean)-1], ", ") + " and " + clean[len(clean)-1]
	}
}

func appendParagraph(text, paragraph string) string {
	switch {
	case text == "":
		return paragraph
	case strings.HasSuffix(text, "\n\n"):
		return text + paragraph
	case strings.HasSuffix(text, "\n"):
		return text + "\n" + paragraph
	default:
		return text + "\n\n" + paragraph
	}
}

func prependParagraph(paragraph, text string) string {
	if text == "" {
		return paragraph
	}
	return paragraph + "\n\n" + text
}
