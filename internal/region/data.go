package region

import "github.com/ppiankov/framewise/internal/model"

func builtinRegions() []model.RegionalContext {
	return []model.RegionalContext{
		{
			Region:               "global",
			FrameworkDescription: "International AI governance is shaped by voluntary principles from multilateral bodies, with binding rules set nationally.",
			KeyPrinciples: []string{
				"Human-centred and trustworthy AI",
				"Transparency and explainability",
				"Robustness, security and safety",
				"Accountability of developers and deployers",
			},
			CulturalNotes: []string{
				"Audiences differ widely in trust toward government and industry",
				"Avoid region-specific legal terminology",
			},
			RecentDevelopments: []model.Development{
				{Title: "OECD AI Principles", Description: "Updated principles covering generative AI, information integrity and safety."},
				{Title: "UNESCO Recommendation on the Ethics of AI", Description: "Adopted by member states as a shared ethics framework."},
				{Title: "International AI safety reports", Description: "Scientific assessments of advanced AI capabilities and risks shared across governments."},
			},
		},
		{
			Region:               "us",
			FrameworkDescription: "The United States relies on sector regulators, executive action and voluntary standards rather than a single AI statute.",
			KeyPrinciples: []string{
				"Innovation and competitiveness",
				"Sector-specific oversight",
				"Voluntary risk management standards",
				"Civil rights and consumer protection enforcement",
			},
			CulturalNotes: []string{
				"Economic opportunity and individual liberty resonate strongly",
				"Skepticism toward broad federal regulation is common",
				"State legislatures are active on AI rules",
			},
			RecentDevelopments: []model.Development{
				{Title: "NIST AI Risk Management Framework", Description: "Voluntary framework for mapping, measuring and managing AI risk, with a generative AI profile."},
				{Title: "State AI legislation", Description: "States including Colorado and California have passed laws on high-risk AI and transparency."},
				{Title: "Federal AI action plans", Description: "Executive direction on AI infrastructure, workforce and government use."},
			},
		},
		{
			Region:               "eu",
			FrameworkDescription: "The European Union regulates AI through the risk-based AI Act alongside data protection law.",
			KeyPrinciples: []string{
				"Risk-based obligations",
				"Fundamental rights protection",
				"Transparency for general-purpose AI",
				"Human oversight of high-risk systems",
			},
			CulturalNotes: []string{
				"Precaution and rights-based arguments carry weight",
				"Data protection is a widely shared value",
				"Audiences expect references to democratic accountability",
			},
			RecentDevelopments: []model.Development{
				{Title: "AI Act obligations phase in", Description: "Prohibitions and general-purpose AI obligations apply ahead of high-risk system rules."},
				{Title: "General-Purpose AI Code of Practice", Description: "Guidance for model providers on transparency, copyright and safety."},
				{Title: "AI Office", Description: "New body coordinating enforcement of the AI Act across member states."},
			},
		},
		{
			Region:               "uk",
			FrameworkDescription: "The United Kingdom follows a pro-innovation, principles-based approach applied by existing regulators.",
			KeyPrinciples: []string{
				"Safety, security and robustness",
				"Appropriate transparency",
				"Fairness",
				"Accountability and governance",
				"Contestability and redress",
			},
			CulturalNotes: []string{
				"Pragmatic, evidence-led arguments are persuasive",
				"Public service framing resonates, especially around the NHS",
			},
			RecentDevelopments: []model.Development{
				{Title: "AI Security Institute", Description: "Government body evaluating advanced AI models for security risks."},
				{Title: "AI Opportunities Action Plan", Description: "Plan to expand compute, skills and AI adoption in public services."},
			},
		},
		{
			Region:               "canada",
			FrameworkDescription: "Canada combines federal directives on automated decision-making with voluntary codes for generative AI.",
			KeyPrinciples: []string{
				"Responsible and inclusive AI",
				"Algorithmic impact assessment",
				"Privacy protection",
			},
			CulturalNotes: []string{
				"Community and inclusion are strong shared values",
				"Bilingual audiences; avoid idioms that do not translate",
			},
			RecentDevelopments: []model.Development{
				{Title: "Voluntary Code of Conduct on generative AI", Description: "Commitments by firms on safety, fairness and transparency."},
				{Title: "Canadian AI Safety Institute", Description: "Research institute studying risks of advanced AI systems."},
			},
		},
		{
			Region:               "australia",
			FrameworkDescription: "Australia applies voluntary AI safety standards and is considering mandatory guardrails for high-risk settings.",
			KeyPrinciples: []string{
				"Accountability",
				"Testing and monitoring",
				"Human control and intervention",
				"Transparency with end users",
			},
			CulturalNotes: []string{
				"Plain-spoken, practical framing works well",
				"Fairness and a fair go are widely shared values",
			},
			RecentDevelopments: []model.Development{
				{Title: "Voluntary AI Safety Standard", Description: "Ten guardrails for organisations developing and deploying AI."},
				{Title: "Mandatory guardrails proposal", Description: "Consultation on binding requirements for high-risk AI."},
			},
		},
		{
			Region:               "singapore",
			FrameworkDescription: "Singapore promotes trusted AI through model governance frameworks and testing toolkits developed with industry.",
			KeyPrinciples: []string{
				"Explainable, transparent and fair AI",
				"Human-centric design",
				"Practical testing and assurance",
			},
			CulturalNotes: []string{
				"Collective progress and national development framing resonates",
				"Government-industry partnership is expected",
			},
			RecentDevelopments: []model.Development{
				{Title: "Model AI Governance Framework for Generative AI", Description: "Nine dimensions for trusted generative AI development."},
				{Title: "AI Verify", Description: "Open-source testing toolkit for AI governance claims."},
			},
		},
	}
}
