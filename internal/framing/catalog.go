package framing

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/framewise/internal/model"
	"gopkg.in/yaml.v3"
)

// Pair is an unordered pair of frame names
type Pair struct {
	First  string `yaml:"first" json:"first"`
	Second string `yaml:"second" json:"second"`
}

// Template is the introduction and conclusion inserted when reframing toward
// a frame. "{values}" is replaced with the frame's value list.
type Template struct {
	Intro      string `yaml:"intro" json:"intro"`
	Conclusion string `yaml:"conclusion" json:"conclusion"`
}

// CatalogData is the declarative framing reference data. Every table the
// analyzer and rewriter use lives here.
type CatalogData struct {
	Frames             []model.Frame `yaml:"frames"`
	ConflictingPairs   []Pair        `yaml:"conflicting_pairs"`
	ComplementaryPairs []Pair        `yaml:"complementary_pairs"`
	DefaultSuggestions []string      `yaml:"default_suggestions"`
	AnchorTerms        []string      `yaml:"anchor_terms"`

	// NegativePatterns is the negative-frame avoidance table
	NegativePatterns []Rule `yaml:"negative_patterns"`

	// MetaphorPatterns are the phrases detected per metaphor category
	MetaphorPatterns map[model.MetaphorCategory][]string `yaml:"metaphor_patterns"`

	// MetaphorReplacements retargets competing metaphors, keyed by frame name
	MetaphorReplacements map[string][]Rule `yaml:"metaphor_replacements"`

	// Templates are keyed by frame name
	Templates       map[string]Template `yaml:"templates"`
	GenericTemplate Template            `yaml:"generic_template"`
}

// Catalog is the compiled, read-only frame registry. It is safe for
// concurrent use.
type Catalog struct {
	data CatalogData

	byName       map[string]int // lowercase name -> index into data.Frames
	keywords     []*PhraseSet   // parallel to data.Frames
	anchors      *PhraseSet
	negative     *Substituter
	metaphors    map[model.MetaphorCategory]*PhraseSet
	replacements map[string]*Substituter // lowercase frame name
	templates    map[string]Template     // lowercase frame name
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtinData())
	if err != nil {
		panic(fmt.Sprintf("framing: invalid built-in catalog: %v", err))
	}
	return c
}

// NewCatalog validates and compiles catalog data
func NewCatalog(data CatalogData) (*Catalog, error) {
	c := &Catalog{
		data:         data,
		byName:       make(map[string]int, len(data.Frames)),
		metaphors:    make(map[model.MetaphorCategory]*PhraseSet, len(data.MetaphorPatterns)),
		replacements: make(map[string]*Substituter, len(data.MetaphorReplacements)),
		templates:    make(map[string]Template, len(data.Templates)),
	}

	for i, f := range data.Frames {
		key := strings.ToLower(strings.TrimSpace(f.Name))
		if key == "" {
			return nil, fmt.Errorf("frame %d has no name", i)
		}
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate frame %q", f.Name)
		}
		if len(f.Keywords) == 0 {
			return nil, fmt.Errorf("frame %q has no keywords", f.Name)
		}
		c.byName[key] = i
		c.keywords = append(c.keywords, NewPhraseSet(f.Keywords))
	}
	c.anchors = NewPhraseSet(data.AnchorTerms)

	for _, pairs := range [][]Pair{data.ConflictingPairs, data.ComplementaryPairs} {
		for _, p := range pairs {
			if _, ok := c.Lookup(p.First); !ok {
				return nil, fmt.Errorf("pair references unknown frame %q", p.First)
			}
			if _, ok := c.Lookup(p.Second); !ok {
				return nil, fmt.Errorf("pair references unknown frame %q", p.Second)
			}
		}
	}
	for _, name := range data.DefaultSuggestions {
		if _, ok := c.Lookup(name); !ok {
			return nil, fmt.Errorf("default suggestion references unknown frame %q", name)
		}
	}

	c.negative = NewSubstituter(data.NegativePatterns)

	for category, phrases := range data.MetaphorPatterns {
		c.metaphors[category] = NewPhraseSet(phrases)
	}
	for name, rules := range data.MetaphorReplacements {
		c.replacements[strings.ToLower(name)] = NewSubstituter(rules)
	}
	for name, tmpl := range data.Templates {
		c.templates[strings.ToLower(name)] = tmpl
	}

	return c, nil
}

// LoadCatalogFile reads a YAML catalog. Sections absent from the file keep
// their built-in values.
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var override CatalogData
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	data := builtinData()
	if len(override.Frames) > 0 {
		data.Frames = override.Frames
	}
	if len(override.ConflictingPairs) > 0 {
		data.ConflictingPairs = override.ConflictingPairs
	}
	if len(override.ComplementaryPairs) > 0 {
		data.ComplementaryPairs = override.ComplementaryPairs
	}
	if len(override.DefaultSuggestions) > 0 {
		data.DefaultSuggestions = override.DefaultSuggestions
	}
	if len(override.AnchorTerms) > 0 {
		data.AnchorTerms = override.AnchorTerms
	}
	if len(override.NegativePatterns) > 0 {
		data.NegativePatterns = override.NegativePatterns
	}
	for category, phrases := range override.MetaphorPatterns {
		data.MetaphorPatterns[category] = phrases
	}
	for name, rules := range override.MetaphorReplacements {
		data.MetaphorReplacements[name] = rules
	}
	for name, tmpl := range override.Templates {
		data.Templates[name] = tmpl
	}
	if override.GenericTemplate.Intro != "" || override.GenericTemplate.Conclusion != "" {
		data.GenericTemplate = override.GenericTemplate
	}

	c, err := NewCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Frames returns every frame in catalog order
func (c *Catalog) Frames() []model.Frame {
	out := make([]model.Frame, len(c.data.Frames))
	copy(out, c.data.Frames)
	return out
}

// Lookup finds a frame by name, case-insensitively
func (c *Catalog) Lookup(name string) (model.Frame, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return model.Frame{}, false
	}
	return c.data.Frames[i], true
}

// ConflictingPairs returns the mutually exclusive frame pairs in table order
func (c *Catalog) ConflictingPairs() []Pair {
	return append([]Pair(nil), c.data.ConflictingPairs...)
}

// Conflicts reports whether two frames form a conflicting pair
func (c *Catalog) Conflicts(a, b string) bool {
	return pairContains(c.data.ConflictingPairs, a, b)
}

// Complements returns the complementary frames of name in table order
func (c *Catalog) Complements(name string) []model.Frame {
	var out []model.Frame
	for _, p := range c.data.ComplementaryPairs {
		var other string
		switch {
		case strings.EqualFold(p.First, name):
			other = p.Second
		case strings.EqualFold(p.Second, name):
			other = p.First
		default:
			continue
		}
		if f, ok := c.Lookup(other); ok {
			out = append(out, f)
		}
	}
	return out
}

// DefaultSuggestions returns the frames suggested when nothing is detected
func (c *Catalog) DefaultSuggestions() []model.Frame {
	out := make([]model.Frame, 0, len(c.data.DefaultSuggestions))
	for _, name := range c.data.DefaultSuggestions {
		if f, ok := c.Lookup(name); ok {
			out = append(out, f)
		}
	}
	return out
}

// AnchorTerms returns the terms that earn the anchor bonus
func (c *Catalog) AnchorTerms() []string {
	return append([]string(nil), c.data.AnchorTerms...)
}

// NegativePatterns returns the negative-frame avoidance table
func (c *Catalog) NegativePatterns() []Rule {
	return append([]Rule(nil), c.data.NegativePatterns...)
}

// TemplateFor returns the reframing template for a frame, falling back to the
// generic template
func (c *Catalog) TemplateFor(name string) (Template, bool) {
	if t, ok := c.templates[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, true
	}
	return c.data.GenericTemplate, false
}

func pairContains(pairs []Pair, a, b string) bool {
	for _, p := range pairs {
		if (strings.EqualFold(p.First, a) && strings.EqualFold(p.Second, b)) ||
			(strings.EqualFold(p.First, b) && strings.EqualFold(p.Second, a)) {
			return true
		}
	}
	return false
}
