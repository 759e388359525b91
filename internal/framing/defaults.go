package framing

import "github.com/ppiankov/framewise/internal/model"

// Frame names of the built-in catalog
const (
	FrameProgress        = "Progress"
	FrameSustainability  = "Sustainability"
	FrameFreedom         = "Freedom"
	FrameSecurity        = "Security"
	FrameFairness        = "Fairness"
	FrameStrictFather    = "Strict Father"
	FrameNurturantParent = "Nurturant Parent"
)

// Negative-frame categories
const (
	NegativeThreat           = "threat"
	NegativeControl          = "control"
	NegativeReplacement      = "replacement"
	NegativeSurveillance     = "surveillance"
	NegativeUnpredictability = "unpredictability"
)

// metaphorCategoryOrder fixes the report order for metaphors that start at
// the same offset
var metaphorCategoryOrder = []model.MetaphorCategory{
	model.MetaphorAsActor,
	model.MetaphorAsRace,
	model.MetaphorAsWeapon,
	model.MetaphorAsServant,
	model.MetaphorAsEvolution,
	model.MetaphorAsJourney,
	model.MetaphorAsContainer,
}

func builtinData() CatalogData {
	return CatalogData{
		Frames: []model.Frame{
			{
				Name:      FrameProgress,
				Values:    []string{"innovation", "advancement", "opportunity", "growth"},
				Metaphors: []string{"a path forward", "building the future", "a ladder of opportunity"},
				Keywords: []string{
					"progress", "innovation", "innovate", "innovative", "advance", "advancement",
					"breakthrough", "future", "growth", "opportunity", "opportunities", "modernize",
				},
			},
			{
				Name:      FrameSustainability,
				Values:    []string{"stewardship", "balance", "resilience", "long-term thinking"},
				Metaphors: []string{"a garden that needs tending", "planting seeds for future generations", "a careful balance"},
				Keywords: []string{
					"sustainable", "sustainability", "long-term", "environment", "environmental",
					"resilience", "resilient", "stewardship", "conserve", "future generations",
				},
			},
			{
				Name:      FrameFreedom,
				Values:    []string{"liberty", "choice", "autonomy", "openness"},
				Metaphors: []string{"an open frontier", "opening doors", "a level playing field for ideas"},
				Keywords: []string{
					"freedom", "free", "liberty", "choice", "choices", "autonomy", "independent",
					"independence", "openness", "self-determination",
				},
			},
			{
				Name:      FrameSecurity,
				Values:    []string{"safety", "protection", "stability", "trust"},
				Metaphors: []string{"a safety net", "guardrails on the road", "a strong foundation"},
				Keywords: []string{
					"security", "secure", "safety", "safe", "protect", "protection", "defend",
					"defense", "stability", "stable", "safeguard", "safeguards", "risk", "risks",
				},
			},
			{
				Name:      FrameFairness,
				Values:    []string{"fairness", "equality", "justice", "inclusion"},
				Metaphors: []string{"a level playing field", "a seat at the table", "a bridge across divides"},
				Keywords: []string{
					"fair", "fairness", "unfair", "equal", "equality", "equity", "equitable",
					"justice", "inclusive", "inclusion", "bias", "discrimination",
				},
			},
			{
				Name:      FrameStrictFather,
				Values:    []string{"discipline", "accountability", "order", "self-reliance"},
				Metaphors: []string{"a firm hand on the wheel", "rules of the road", "a chain of command"},
				Keywords: []string{
					"discipline", "disciplined", "authority", "rules", "strict", "punish",
					"punishment", "penalty", "penalties", "enforce", "enforcement", "obey", "obedience",
					"accountability", "accountable",
				},
			},
			{
				Name:      FrameNurturantParent,
				Values:    []string{"care", "empathy", "community", "support"},
				Metaphors: []string{"a helping hand", "a caring partner", "a shared home"},
				Keywords: []string{
					"care", "caring", "community", "communities", "support", "supportive", "help",
					"helping", "nurture", "nurturing", "empathy", "compassion", "wellbeing", "well-being",
				},
			},
		},

		ConflictingPairs: []Pair{
			{FrameStrictFather, FrameNurturantParent},
			{FrameFreedom, FrameSecurity},
			{FrameProgress, FrameSustainability},
		},

		ComplementaryPairs: []Pair{
			{FrameProgress, FrameSustainability},
			{FrameFreedom, FrameSecurity},
			{FrameFairness, FrameNurturantParent},
			{FrameStrictFather, FrameFairness},
		},

		DefaultSuggestions: []string{FrameProgress, FrameFairness},

		AnchorTerms: []string{"care", "community", "fair"},

		NegativePatterns: []Rule{
			// threat
			{Pattern: "existential risk", Replacement: "important challenge", Category: NegativeThreat},
			{Pattern: "existential threat", Replacement: "significant challenge", Category: NegativeThreat},
			{Pattern: "threat to humanity", Replacement: "challenge for society", Category: NegativeThreat},
			{Pattern: "threatens", Replacement: "challenges", Category: NegativeThreat},
			{Pattern: "threats", Replacement: "challenges", Category: NegativeThreat},
			{Pattern: "threat", Replacement: "challenge", Category: NegativeThreat},
			{Pattern: "dangerous", Replacement: "consequential", Category: NegativeThreat},
			{Pattern: "danger", Replacement: "concern", Category: NegativeThreat},
			{Pattern: "catastrophic", Replacement: "serious", Category: NegativeThreat},
			{Pattern: "catastrophe", Replacement: "serious setback", Category: NegativeThreat},
			{Pattern: "doom", Replacement: "difficulty", Category: NegativeThreat},
			{Pattern: "apocalypse", Replacement: "major disruption", Category: NegativeThreat},
			{Pattern: "killer robots", Replacement: "autonomous systems", Category: NegativeThreat},

			// control
			{Pattern: "out of control", Replacement: "advancing quickly", Category: NegativeControl},
			{Pattern: "under control", Replacement: "well guided", Category: NegativeControl},
			{Pattern: "controlled", Replacement: "guided", Category: NegativeControl},
			{Pattern: "controlling", Replacement: "guiding", Category: NegativeControl},
			{Pattern: "control", Replacement: "guidance", Category: NegativeControl},
			{Pattern: "rein in", Replacement: "steer", Category: NegativeControl},
			{Pattern: "crack down on", Replacement: "set clear standards for", Category: NegativeControl},
			{Pattern: "crackdown", Replacement: "clear standards", Category: NegativeControl},

			// replacement
			{Pattern: "takes jobs", Replacement: "transforms work", Category: NegativeReplacement},
			{Pattern: "take jobs", Replacement: "transform work", Category: NegativeReplacement},
			{Pattern: "taking jobs", Replacement: "transforming work", Category: NegativeReplacement},
			{Pattern: "took jobs", Replacement: "transformed work", Category: NegativeReplacement},
			{Pattern: "steal jobs", Replacement: "reshape work", Category: NegativeReplacement},
			{Pattern: "steals jobs", Replacement: "reshapes work", Category: NegativeReplacement},
			{Pattern: "replace humans", Replacement: "augment human work", Category: NegativeReplacement},
			{Pattern: "replace workers", Replacement: "support workers", Category: NegativeReplacement},
			{Pattern: "replacing workers", Replacement: "supporting workers", Category: NegativeReplacement},
			{Pattern: "job losses", Replacement: "workforce transitions", Category: NegativeReplacement},
			{Pattern: "job loss", Replacement: "workforce transition", Category: NegativeReplacement},
			{Pattern: "mass unemployment", Replacement: "labor market change", Category: NegativeReplacement},
			{Pattern: "obsolete", Replacement: "redefined", Category: NegativeReplacement},

			// surveillance
			{Pattern: "mass surveillance", Replacement: "broad oversight", Category: NegativeSurveillance},
			{Pattern: "surveillance", Replacement: "oversight", Category: NegativeSurveillance},
			{Pattern: "spy on", Replacement: "observe", Category: NegativeSurveillance},
			{Pattern: "spies on", Replacement: "observes", Category: NegativeSurveillance},
			{Pattern: "spying on", Replacement: "observing", Category: NegativeSurveillance},
			{Pattern: "big brother", Replacement: "centralized oversight", Category: NegativeSurveillance},
			{Pattern: "invasive", Replacement: "far-reaching", Category: NegativeSurveillance},

			// unpredictability
			{Pattern: "unpredictable", Replacement: "evolving", Category: NegativeUnpredictability},
			{Pattern: "unpredictability", Replacement: "novelty", Category: NegativeUnpredictability},
			{Pattern: "black box", Replacement: "complex system", Category: NegativeUnpredictability},
			{Pattern: "uncontrollable", Replacement: "difficult to steer", Category: NegativeUnpredictability},
			{Pattern: "chaotic", Replacement: "dynamic", Category: NegativeUnpredictability},
			{Pattern: "chaos", Replacement: "rapid change", Category: NegativeUnpredictability},
			{Pattern: "runaway", Replacement: "accelerating", Category: NegativeUnpredictability},
			{Pattern: "unknowable", Replacement: "still being understood", Category: NegativeUnpredictability},
		},

		MetaphorPatterns: map[model.MetaphorCategory][]string{
			model.MetaphorAsActor: {
				"ai decides", "ai wants", "ai thinks", "ai believes", "ai takes over",
				"ai will take over", "machines decide", "the algorithm decides",
			},
			model.MetaphorAsRace: {
				"arms race", "ai race", "race to", "winning the race", "fall behind",
				"falling behind", "left behind", "lead the world",
			},
			model.MetaphorAsWeapon: {
				"weapon", "weapons", "weaponize", "weaponized", "arsenal", "battlefield",
				"double-edged sword",
			},
			model.MetaphorAsServant: {
				"tool", "tools", "assistant", "assistants", "servant", "helper", "copilot",
			},
			model.MetaphorAsEvolution: {
				"evolution", "evolve", "evolves", "evolving", "next stage", "natural progression",
			},
			model.MetaphorAsJourney: {
				"journey", "path forward", "road ahead", "roadmap", "milestone", "crossroads",
				"step forward",
			},
			model.MetaphorAsContainer: {
				"black box", "pandora's box", "inside the model", "contain", "contained",
			},
		},

		MetaphorReplacements: map[string][]Rule{
			FrameNurturantParent: {
				{Pattern: "ai arms race", Replacement: "collaborative AI advancement"},
				{Pattern: "arms race", Replacement: "shared effort"},
				{Pattern: "ai race", Replacement: "collaborative AI development"},
				{Pattern: "race to dominate", Replacement: "effort to serve"},
				{Pattern: "battlefield", Replacement: "shared space"},
				{Pattern: "weapon", Replacement: "resource"},
				{Pattern: "weaponize", Replacement: "apply"},
			},
			FrameStrictFather: {
				{Pattern: "hand-holding", Replacement: "clear direction"},
				{Pattern: "safe space", Replacement: "clear framework"},
				{Pattern: "anything goes", Replacement: "rules apply"},
				{Pattern: "wild west", Replacement: "lawless frontier"},
			},
			FrameProgress: {
				{Pattern: "pandora's box", Replacement: "new frontier"},
				{Pattern: "slippery slope", Replacement: "learning curve"},
				{Pattern: "moratorium", Replacement: "structured evaluation period"},
				{Pattern: "slow down", Replacement: "move deliberately"},
			},
			FrameSustainability: {
				{Pattern: "ai arms race", Replacement: "long-term AI partnership"},
				{Pattern: "arms race", Replacement: "long-term partnership"},
				{Pattern: "move fast and break things", Replacement: "build carefully and sustainably"},
				{Pattern: "race ahead", Replacement: "build steadily"},
				{Pattern: "disruption", Replacement: "renewal"},
			},
			FrameFreedom: {
				{Pattern: "leash", Replacement: "framework"},
				{Pattern: "cage", Replacement: "open structure"},
				{Pattern: "gatekeepers", Replacement: "facilitators"},
				{Pattern: "gatekeeper", Replacement: "facilitator"},
				{Pattern: "ban", Replacement: "limit"},
			},
			FrameSecurity: {
				{Pattern: "wild west", Replacement: "unguarded frontier"},
				{Pattern: "move fast and break things", Replacement: "build securely"},
				{Pattern: "experiment freely", Replacement: "test responsibly"},
			},
			FrameFairness: {
				{Pattern: "winners and losers", Replacement: "shared outcomes"},
				{Pattern: "survival of the fittest", Replacement: "equal opportunity"},
				{Pattern: "winner-take-all", Replacement: "broadly shared"},
				{Pattern: "ai arms race", Replacement: "shared AI responsibility"},
				{Pattern: "arms race", Replacement: "shared responsibility"},
			},
		},

		Templates: map[string]Template{
			FrameProgress: {
				Intro:      "Progress is built on {values}. Each step forward opens new possibilities for people everywhere.",
				Conclusion: "By holding on to {values}, we can turn today's advances into lasting progress for everyone.",
			},
			FrameSustainability: {
				Intro:      "Lasting change depends on {values}. What we build today should still serve the generations that follow.",
				Conclusion: "With {values} as our guide, we can make decisions that endure well beyond the present moment.",
			},
			FrameFreedom: {
				Intro:      "Open societies thrive on {values}. People should be able to shape how new technology fits into their lives.",
				Conclusion: "Upholding {values} keeps the door open for everyone to take part in what comes next.",
			},
			FrameSecurity: {
				Intro:      "People deserve {values}. A strong foundation lets everyone approach new technology with confidence.",
				Conclusion: "When we invest in {values}, we give every household a stable place to stand.",
			},
			FrameFairness: {
				Intro:      "Every decision should reflect {values}. The benefits of new technology belong to all of us, not a few.",
				Conclusion: "Grounding our choices in {values} makes sure no one is left out of the gains ahead.",
			},
			FrameStrictFather: {
				Intro:      "Clear expectations rest on {values}. Those who build and deploy technology must answer for how it is used.",
				Conclusion: "Upholding {values} gives everyone a dependable set of rules to work within.",
			},
			FrameNurturantParent: {
				Intro:      "We look after one another through {values}. Technology should help us care for the people around us.",
				Conclusion: "Guided by {values}, we can make sure new tools strengthen the bonds that hold us together.",
			},
		},

		GenericTemplate: Template{
			Intro:      "This perspective centers on {values}.",
			Conclusion: "Keeping {values} in view helps us move forward together.",
		},
	}
}
