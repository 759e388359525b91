package extract

import "strings"

// Sentence is a sentence together with its byte span in the source text
type Sentence struct {
	Text  string
	Start int
	End   int
}

// SplitSentences splits text into sentences (simple heuristic). A terminator
// only ends a sentence when followed by whitespace; blank lines also end one.
func SplitSentences(text string) []Sentence {
	var sentences []Sentence
	start := 0

	emit := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			offset := start + strings.Index(raw, trimmed)
			sentences = append(sentences, Sentence{Text: trimmed, Start: offset, End: offset + len(trimmed)})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && isSpace(text[i+1]) {
				emit(i + 1)
			}
		case '\n':
			// Blank lines separate paragraphs and headings
			if i+1 < len(text) && text[i+1] == '\n' {
				emit(i)
			}
		}
	}

	if start < len(text) {
		emit(len(text))
	}

	return sentences
}

// SentenceAt returns the sentence containing byte offset pos, or "" if pos is
// outside every sentence
func SentenceAt(sentences []Sentence, pos int) string {
	for _, s := range sentences {
		if pos >= s.Start && pos < s.End {
			return s.Text
		}
	}
	return ""
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
