package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/framewise/internal/model"
)

// contentTemplate holds the structure and length constraints for one
// content type
type contentTemplate struct {
	Label     string
	Audience  string
	Tone      string
	MinWords  int
	MaxWords  int
	Structure []string
}

var contentTemplates = map[model.ContentType]contentTemplate{
	model.ContentArticle: {
		Label:    "article",
		Audience: "informed general readers",
		Tone:     "clear, balanced and evidence-based",
		MinWords: 800,
		MaxWords: 1200,
		Structure: []string{
			"A headline as a level-one Markdown heading",
			"An introduction that states why the topic matters to people",
			"Three to four sections with level-two headings",
			"A conclusion that points to constructive next steps",
		},
	},
	model.ContentBlogPost: {
		Label:    "blog post",
		Audience: "curious non-specialists",
		Tone:     "conversational and approachable",
		MinWords: 600,
		MaxWords: 900,
		Structure: []string{
			"A headline as a level-one Markdown heading",
			"An opening that connects the topic to everyday experience",
			"Two to three short sections with level-two headings",
			"A closing paragraph inviting the reader to take part",
		},
	},
	model.ContentPolicyBrief: {
		Label:    "policy brief",
		Audience: "policymakers and their staff",
		Tone:     "precise, neutral and actionable",
		MinWords: 700,
		MaxWords: 1000,
		Structure: []string{
			"A title as a level-one Markdown heading",
			"An executive summary of no more than three sentences",
			"Background on the current regulatory situation",
			"Policy options with their trade-offs",
			"Numbered recommendations",
		},
	},
	model.ContentOpEd: {
		Label:    "op-ed",
		Audience: "newspaper readers",
		Tone:     "persuasive and grounded in shared values",
		MinWords: 600,
		MaxWords: 800,
		Structure: []string{
			"A headline as a level-one Markdown heading",
			"A strong opening claim",
			"Supporting arguments, each tied to a value readers hold",
			"A rebuttal of the strongest counterargument",
			"A call to action",
		},
	},
	model.ContentNewsletter: {
		Label:    "newsletter",
		Audience: "subscribers following the field",
		Tone:     "friendly and concise",
		MinWords: 400,
		MaxWords: 700,
		Structure: []string{
			"A subject line as a level-one Markdown heading",
			"A short greeting and overview",
			"Three brief items with level-two headings",
			"A sign-off with one suggested action",
		},
	},
	model.ContentSpeech: {
		Label:    "speech",
		Audience: "a live audience",
		Tone:     "warm, rhythmic and inclusive",
		MinWords: 700,
		MaxWords: 1100,
		Structure: []string{
			"A title as a level-one Markdown heading",
			"An opening story or image",
			"Three themes introduced with clear transitions",
			"A closing that returns to the opening image",
		},
	},
}

func templateFor(ct model.ContentType) contentTemplate {
	if t, ok := contentTemplates[ct]; ok {
		return t
	}
	return contentTemplates[model.ContentArticle]
}

// Prompt is the system and user text sent to a model
type Prompt struct {
	System string
	User   string
}

// promptInputs is everything gathered before the model call
type promptInputs struct {
	Regional  *model.RegionalContext
	Documents []model.ReferenceDocument
	Fetched   *FetchResult
}

const maxFetchedChars = 2000

// buildPrompt renders the prompt for a request. Enrichment sections are
// omitted when their source produced nothing.
func buildPrompt(req model.ContentRequest, in promptInputs) Prompt {
	tmpl := templateFor(req.ContentType)

	var sys strings.Builder
	sys.WriteString("You are an experienced writer on technology and society. Output Markdown only, with no commentary before or after the text.\n")
	sys.WriteString("Frame the subject around shared human values such as care, community and fairness. ")
	sys.WriteString("Avoid describing AI as a threat, a weapon, a race or an autonomous actor.\n")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a %s about: %s\n\n", tmpl.Label, strings.TrimSpace(req.Topic)))
	sb.WriteString("Requirements:\n")
	sb.WriteString(fmt.Sprintf("- Length: %d to %d words.\n", tmpl.MinWords, tmpl.MaxWords))
	sb.WriteString(fmt.Sprintf("- Audience: %s.\n", tmpl.Audience))
	sb.WriteString(fmt.Sprintf("- Tone: %s.\n", tmpl.Tone))
	sb.WriteString("- Structure:\n")
	for i, item := range tmpl.Structure {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, item))
	}

	if rc := in.Regional; rc != nil {
		sb.WriteString(fmt.Sprintf("\nRegional context (%s):\n", rc.Region))
		if rc.FrameworkDescription != "" {
			sb.WriteString(rc.FrameworkDescription + "\n")
		}
		writeList(&sb, "Key principles", rc.KeyPrinciples)
		writeList(&sb, "Cultural notes", rc.CulturalNotes)
		if len(rc.RecentDevelopments) > 0 {
			sb.WriteString("Recent developments:\n")
			for _, d := range rc.RecentDevelopments {
				sb.WriteString(fmt.Sprintf("- %s: %s\n", d.Title, d.Description))
			}
		}
	}

	if len(in.Documents) > 0 {
		sb.WriteString("\nReference material (cite by title where used):\n")
		for i, doc := range in.Documents {
			sb.WriteString(fmt.Sprintf("[%d] %s\n%s\n", i+1, doc.Title, doc.Content))
		}
	}

	if f := in.Fetched; f != nil && f.Text != "" {
		title := f.Title
		if title == "" {
			title = f.Subject
		}
		sb.WriteString(fmt.Sprintf("\nReference page \"%s\" (%s):\n%s\n", title, f.FinalURL, truncate(f.Text, maxFetchedChars)))
	}

	return Prompt{
		System: sys.String(),
		User:   sb.String(),
	}
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
}

// truncate cuts s to at most n runes at a word boundary
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n])
	if i := strings.LastIndexAny(cut, " \n\t"); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
