package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/ppiankov/framewise/internal/model"
)

// Renderer writes results as JSON, Markdown or HTML
type Renderer struct {
	includeAnalysis bool
}

// NewRenderer creates a renderer. With includeAnalysis the Markdown and HTML
// output end with the framing analysis and any pending recovery state.
func NewRenderer(includeAnalysis bool) *Renderer {
	return &Renderer{includeAnalysis: includeAnalysis}
}

// RenderJSON writes the result as indented JSON to path
func (r *Renderer) RenderJSON(result *model.ContentResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the Markdown rendering to path
func (r *Renderer) RenderMarkdown(result *model.ContentResult, path string) error {
	return writeFile(path, []byte(r.Markdown(result)))
}

// RenderHTML writes a standalone HTML page to path
func (r *Renderer) RenderHTML(result *model.ContentResult, path string) error {
	page, err := r.HTML(result)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(page))
}

// Markdown returns the content followed, if enabled, by the analysis
func (r *Renderer) Markdown(result *model.ContentResult) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(result.Text, "\n"))
	sb.WriteString("\n")

	if !r.includeAnalysis {
		return sb.String()
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(Analysis(result))
	return sb.String()
}

// Analysis renders the framing analysis and pending recovery state of a
// result as Markdown
func Analysis(result *model.ContentResult) string {
	var sb strings.Builder
	a := result.FramingAnalysis
	sb.WriteString("## Framing Analysis\n\n")
	sb.WriteString(fmt.Sprintf("- **Effectiveness:** %d/100\n", a.Effectiveness))
	sb.WriteString(fmt.Sprintf("- **Words:** %d\n", result.WordCount))
	if result.Model != "" {
		sb.WriteString(fmt.Sprintf("- **Model:** %s\n", result.Model))
	}
	if result.Resumed {
		sb.WriteString("- **Resumed from checkpoint:** yes\n")
	}

	if len(a.DetectedFrames) > 0 {
		sb.WriteString("\n### Detected Frames\n\n")
		for _, f := range a.DetectedFrames {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", f.Name, strings.Join(f.MatchedKeywords, ", ")))
		}
	}
	if len(a.SuggestedFrames) > 0 {
		sb.WriteString("\n### Suggested Frames\n\n")
		for _, f := range a.SuggestedFrames {
			sb.WriteString(fmt.Sprintf("- %s\n", f.Name))
		}
	}
	if len(a.Metaphors) > 0 {
		sb.WriteString("\n### Metaphors\n\n")
		for _, m := range a.Metaphors {
			sb.WriteString(fmt.Sprintf("- \"%s\" (%s)\n", m.Text, m.Category))
		}
	}
	if len(a.Signals) > 0 {
		sb.WriteString("\n### Signals\n\n")
		sb.WriteString("| Signal | Severity | Points | Description |\n")
		sb.WriteString("|--------|----------|--------|-------------|\n")
		for _, s := range a.Signals {
			sb.WriteString(fmt.Sprintf("| %s | %s | %+.0f | %s |\n", s.Type, s.Severity, s.Points, s.Description))
		}
	}

	if c := result.Conflict; c != nil {
		sb.WriteString("\n### Unresolved Framing Conflict\n\n")
		sb.WriteString(fmt.Sprintf("The text mixes **%s** and **%s**. Resolve with one of: %s.\n",
			c.Frame1.Name, c.Frame2.Name, strings.Join(c.Choices(), ", ")))
	}

	if len(result.CitationErrors) > 0 {
		sb.WriteString("\n### Rejected Citations\n\n")
		for _, ce := range result.CitationErrors {
			line := fmt.Sprintf("- %s (%s): %s", ce.Citation.Title, ce.Kind, ce.Reason)
			if ce.Suggestion != nil {
				line += fmt.Sprintf("; suggested source: %s", ce.Suggestion.Source)
			}
			sb.WriteString(line + "\n")
		}
	}

	return sb.String()
}

// HTML converts the Markdown rendering to a standalone page
func (r *Renderer) HTML(result *model.ContentResult) (string, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(r.Markdown(result)), &body); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}

	title := documentTitle(result.Text)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	sb.WriteString("</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}

// RenderSummary prints a short result summary
func (r *Renderer) RenderSummary(w io.Writer, result *model.ContentResult) {
	_, _ = fmt.Fprintf(w, "\n%s\n", documentTitle(result.Text))
	_, _ = fmt.Fprintf(w, "Words: %d | Effectiveness: %d/100 | Model: %s | %dms\n",
		result.WordCount, result.FramingAnalysis.Effectiveness, result.Model, result.GenerationTimeMs)
	if names := result.FramingAnalysis.FrameNames(); len(names) > 0 {
		_, _ = fmt.Fprintf(w, "Frames: %s\n", strings.Join(names, ", "))
	}
	if result.Conflict != nil {
		_, _ = fmt.Fprintf(w, "⚠ Framing conflict: %s vs %s (run 'framewise resolve <frame>')\n",
			result.Conflict.Frame1.Name, result.Conflict.Frame2.Name)
	}
	if n := len(result.CitationErrors); n > 0 {
		_, _ = fmt.Fprintf(w, "⚠ %d citation(s) rejected\n", n)
	}
}

// documentTitle returns the first Markdown heading, or a placeholder
func documentTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if title := strings.TrimSpace(strings.TrimLeft(line, "#")); title != "" {
				return title
			}
		}
	}
	return "Untitled"
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
