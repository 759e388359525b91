package framing

import "testing"

func TestSubstituter_LongestPhraseWins(t *testing.T) {
	s := NewSubstituter([]Rule{
		{Pattern: "control", Replacement: "guidance"},
		{Pattern: "out of control", Replacement: "advancing quickly"},
	})

	got := s.Apply("It is out of control.")
	if got != "It is advancing quickly." {
		t.Errorf("Expected longest phrase replaced, got %q", got)
	}
}

func TestSubstituter_WholeWordsOnly(t *testing.T) {
	s := NewSubstituter([]Rule{
		{Pattern: "control", Replacement: "guidance"},
		{Pattern: "controlled", Replacement: "guided"},
	})

	tests := []struct {
		input string
		want  string
	}{
		{"The controller failed.", "The controller failed."},
		{"An uncontrolled burn.", "An uncontrolled burn."},
		{"Quality control matters.", "Quality guidance matters."},
		{"It was controlled, then released.", "It was guided, then released."},
	}

	for _, tt := range tests {
		if got := s.Apply(tt.input); got != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSubstituter_CaseInsensitiveAndWhitespace(t *testing.T) {
	s := NewSubstituter([]Rule{{Pattern: "existential risk", Replacement: "important challenge"}})

	tests := []struct {
		input string
		want  string
	}{
		{"an EXISTENTIAL RISK", "an important challenge"},
		{"an existential\n  risk", "an important challenge"},
		{"Existential risk is overstated.", "Important challenge is overstated."},
	}

	for _, tt := range tests {
		if got := s.Apply(tt.input); got != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSubstituter_AcronymCapitalization(t *testing.T) {
	s := NewSubstituter([]Rule{{Pattern: "ai arms race", Replacement: "collaborative AI advancement"}})

	if got := s.Apply("We joined the AI arms race."); got != "We joined the collaborative AI advancement." {
		t.Errorf("Mid-sentence acronym should not capitalize, got %q", got)
	}
	if got := s.Apply("Fine. AI arms race talk continues."); got != "Fine. Collaborative AI advancement talk continues." {
		t.Errorf("Sentence-initial acronym should capitalize, got %q", got)
	}
}

func TestSubstituter_PunctuatedPhrase(t *testing.T) {
	set := NewPhraseSet([]string{"pandora's box"})

	matches := set.FindAll("They opened Pandora's box again.")
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].Text != "Pandora's box" || matches[0].Phrase != "pandora's box" {
		t.Errorf("Unexpected match %+v", matches[0])
	}
}

func TestSubstituter_Empty(t *testing.T) {
	s := NewSubstituter(nil)

	if got := s.Apply("anything at all"); got != "anything at all" {
		t.Errorf("Expected unchanged text, got %q", got)
	}
	if s.Count("anything") != 0 {
		t.Error("Expected zero count for an empty table")
	}

	var nilSet *PhraseSet
	if nilSet.Count("text") != 0 || nilSet.FindAll("text") != nil {
		t.Error("Expected nil phrase set to match nothing")
	}
}

func TestPhraseSet_CountAndMatched(t *testing.T) {
	set := NewPhraseSet([]string{"care", "community", "Care"})

	text := "Care for the community. We care."
	if got := set.Count(text); got != 3 {
		t.Errorf("Expected 3 occurrences, got %d", got)
	}

	matched := set.Matched(text)
	if len(matched) != 2 || !matched["care"] || !matched["community"] {
		t.Errorf("Unexpected matched set %v", matched)
	}
}
