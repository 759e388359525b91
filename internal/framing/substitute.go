package framing

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule maps a phrase to its replacement
type Rule struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
}

// Match is one phrase occurrence in a text
type Match struct {
	Text   string // As written in the text
	Phrase string // Normalized phrase that matched
	Start  int
	End    int
}

// PhraseSet matches a fixed set of phrases as whole words, case-insensitively.
// Internal whitespace in a phrase matches any run of whitespace.
type PhraseSet struct {
	re      *regexp.Regexp
	phrases map[string]bool
}

// NewPhraseSet compiles phrases into a single matcher. Longer phrases win
// over shorter ones starting at the same position.
func NewPhraseSet(phrases []string) *PhraseSet {
	set := &PhraseSet{phrases: make(map[string]bool)}

	var unique []string
	for _, p := range phrases {
		key := normalizePhrase(p)
		if key == "" || set.phrases[key] {
			continue
		}
		set.phrases[key] = true
		unique = append(unique, key)
	}
	if len(unique) == 0 {
		return set
	}

	// Leftmost-first alternation: order longest first so "out of control"
	// is preferred over "control"
	sort.SliceStable(unique, func(i, j int) bool {
		return len(unique[i]) > len(unique[j])
	})

	alts := make([]string, len(unique))
	for i, p := range unique {
		alts[i] = phraseRegexp(p)
	}
	set.re = regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)

	return set
}

// FindAll returns every non-overlapping occurrence in text order
func (s *PhraseSet) FindAll(text string) []Match {
	if s == nil || s.re == nil || text == "" {
		return nil
	}

	locs := s.re.FindAllStringIndex(text, -1)
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		raw := text[loc[0]:loc[1]]
		matches = append(matches, Match{
			Text:   raw,
			Phrase: normalizePhrase(raw),
			Start:  loc[0],
			End:    loc[1],
		})
	}
	return matches
}

// Count returns the number of occurrences in text
func (s *PhraseSet) Count(text string) int {
	if s == nil || s.re == nil || text == "" {
		return 0
	}
	return len(s.re.FindAllStringIndex(text, -1))
}

// Matched returns the distinct normalized phrases present in text
func (s *PhraseSet) Matched(text string) map[string]bool {
	found := make(map[string]bool)
	for _, m := range s.FindAll(text) {
		found[m.Phrase] = true
	}
	return found
}

// Substituter applies a replacement table with whole-word, case-insensitive
// matching. It is safe for concurrent use.
type Substituter struct {
	set          *PhraseSet
	replacements map[string]string
}

// NewSubstituter compiles a replacement table. When two rules share a
// pattern the first one wins.
func NewSubstituter(rules []Rule) *Substituter {
	replacements := make(map[string]string, len(rules))
	patterns := make([]string, 0, len(rules))
	for _, r := range rules {
		key := normalizePhrase(r.Pattern)
		if key == "" {
			continue
		}
		if _, dup := replacements[key]; dup {
			continue
		}
		replacements[key] = r.Replacement
		patterns = append(patterns, key)
	}

	return &Substituter{
		set:          NewPhraseSet(patterns),
		replacements: replacements,
	}
}

// Apply replaces every pattern occurrence. A capitalized first letter in the
// matched text is carried over to the replacement; an all-caps acronym such
// as "AI" only carries it at the start of a sentence.
func (s *Substituter) Apply(text string) string {
	if s == nil || s.set.re == nil || text == "" {
		return text
	}

	locs := s.set.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		match := text[loc[0]:loc[1]]
		b.WriteString(text[last:loc[0]])

		replacement, ok := s.replacements[normalizePhrase(match)]
		if !ok {
			replacement = match
		} else if keepsCapital(match, sentenceStart(text, loc[0])) {
			replacement = upperFirst(replacement)
		}

		b.WriteString(replacement)
		last = loc[1]
	}
	b.WriteString(text[last:])

	return b.String()
}

// Count returns the number of pattern occurrences in text
func (s *Substituter) Count(text string) int {
	if s == nil {
		return 0
	}
	return s.set.Count(text)
}

// FindAll returns every pattern occurrence in text order
func (s *Substituter) FindAll(text string) []Match {
	if s == nil {
		return nil
	}
	return s.set.FindAll(text)
}

// Replacement returns the replacement for a phrase
func (s *Substituter) Replacement(phrase string) (string, bool) {
	r, ok := s.replacements[normalizePhrase(phrase)]
	return r, ok
}

// phraseRegexp builds the pattern for one normalized phrase. Word boundaries
// are only asserted next to word characters so phrases like "pandora's box"
// still anchor correctly.
func phraseRegexp(phrase string) string {
	words := strings.Fields(phrase)
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	body := strings.Join(quoted, `\s+`)

	first, _ := utf8.DecodeRuneInString(phrase)
	last, _ := utf8.DecodeLastRuneInString(phrase)
	if isWordRune(first) {
		body = `\b` + body
	}
	if isWordRune(last) {
		body += `\b`
	}
	return body
}

// normalizePhrase lowercases and collapses internal whitespace
func normalizePhrase(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// keepsCapital reports whether a replacement for original should start with
// an upper-case letter
func keepsCapital(original string, atSentenceStart bool) bool {
	first, size := utf8.DecodeRuneInString(original)
	if !unicode.IsUpper(first) {
		return false
	}
	second, _ := utf8.DecodeRuneInString(original[size:])
	if unicode.IsUpper(second) {
		return atSentenceStart
	}
	return true
}

// sentenceStart reports whether only whitespace separates pos from the start
// of text or the previous sentence terminator
func sentenceStart(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t', '\r':
			continue
		case '\n', '.', '!', '?', '#', '>', '"':
			return true
		default:
			return false
		}
	}
	return true
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func isWordRune(r rune) bool {
	return r == '_' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}
