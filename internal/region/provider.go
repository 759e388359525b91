package region

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/framewise/internal/model"
)

// Provider returns policy and cultural background for an audience region
type Provider interface {
	ContextFor(ctx context.Context, region, topic string) (*model.RegionalContext, error)
}

// StaticProvider serves regional context from in-memory data
type StaticProvider struct {
	regions map[string]model.RegionalContext
}

// NewStaticProvider creates a provider over the built-in regional data
func NewStaticProvider() *StaticProvider {
	return newStaticProvider(builtinRegions())
}

func newStaticProvider(data []model.RegionalContext) *StaticProvider {
	p := &StaticProvider{regions: make(map[string]model.RegionalContext, len(data))}
	for _, rc := range data {
		p.regions[strings.ToLower(rc.Region)] = rc
	}
	return p
}

// LoadFile creates a provider from the built-in data with regions from a YAML
// file added or replaced
func LoadFile(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}

	var file struct {
		Regions []model.RegionalContext `yaml:"regions"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse regions file: %w", err)
	}

	p := NewStaticProvider()
	for _, rc := range file.Regions {
		if strings.TrimSpace(rc.Region) == "" {
			return nil, fmt.Errorf("regions file: entry without region name")
		}
		p.regions[strings.ToLower(rc.Region)] = rc
	}
	return p, nil
}

// ContextFor returns the region's context. Recent developments that mention
// a topic word are listed first.
func (p *StaticProvider) ContextFor(ctx context.Context, region, topic string) (*model.RegionalContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, ok := p.regions[strings.ToLower(strings.TrimSpace(region))]
	if !ok {
		return nil, fmt.Errorf("no regional context for %q", region)
	}

	out := rc
	out.KeyPrinciples = append([]string(nil), rc.KeyPrinciples...)
	out.CulturalNotes = append([]string(nil), rc.CulturalNotes...)
	out.RecentDevelopments = append([]model.Development(nil), rc.RecentDevelopments...)

	terms := topicTerms(topic)
	if len(terms) > 0 {
		sort.SliceStable(out.RecentDevelopments, func(i, j int) bool {
			return relevance(out.RecentDevelopments[i], terms) > relevance(out.RecentDevelopments[j], terms)
		})
	}

	return &out, nil
}

// Regions returns the names of every region with context data
func (p *StaticProvider) Regions() []string {
	names := make([]string, 0, len(p.regions))
	for name := range p.regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func topicTerms(topic string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(topic)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

func relevance(d model.Development, terms []string) int {
	text := strings.ToLower(d.Title + " " + d.Description)
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}
