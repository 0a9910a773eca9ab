package analyzer

import (
	"fmt"
	"strings"

	"github.com/KathenZK/research-agent/internal/models"
)

// maxDescriptionRunes bounds how much item text is sent to the model
const maxDescriptionRunes = 500

// Prompt is the rendered input for one chat completion
type Prompt struct {
	System string
	User   string
}

type rubricTemplate struct {
	persona string
	intro   string
	schema  string
	scoring string
}

var rubricTemplates = map[models.Rubric]rubricTemplate{
	models.RubricGeneral: {
		persona: "You are a product opportunity analyst and the strategic investment director of a venture fund. " +
			"You analyze technology news and products and assess the business opportunity behind them. " +
			"Respond with strict JSON only, without markdown fences or commentary.",
		intro: "Analyze this product/news opportunity using an investment due-diligence framework:",
		schema: `{
    "score": 75,
    "summary": "one-sentence summary, about 50 words",
    "description": "about 200 words: what it does, which problem it solves, who the target users are",
    "market_size": "about 150 words: TAM / SAM / SOM",
    "business_model": "about 150 words: how it makes money, pricing, LTV/CAC",
    "competitors": "about 150 words: direct and indirect competitors, competitive edge",
    "barriers": "about 100 words: technical, capital, regulatory or network-effect barriers",
    "risks": "about 150 words: market, technology, team and regulatory risk",
    "suggestion": "about 150 words: follow, lead or watch, with reasoning and valuation notes",
    "tags": ["AI", "SaaS", "B2B", "Series A"]
}`,
		scoring: `Scoring guide:
- 90-100: clear pain point + strong willingness to pay + little competition + large market (>$10B) -> follow up now
- 70-89: real demand + real market + room to differentiate -> research further
- 50-69: average opportunity that needs validation -> keep watching
- 0-49: not worth doing -> skip`,
	},
	models.RubricSolo: {
		persona: "You advise one-person companies that run their business with a team of AI agents. " +
			"You judge whether an idea can be built, operated and sold by a single founder with heavy automation. " +
			"Respond with strict JSON only, without markdown fences or commentary.",
		intro: "Evaluate whether a solo founder backed by automation agents could turn this into a business:",
		schema: `{
    "score": 75,
    "summary": "one-sentence summary, about 50 words",
    "description": "about 200 words: what it does, which problem it solves, who pays",
    "solo_feasibility": "about 100 words: can one person build and run it, and why",
    "agent_roles": ["research agent", "content agent", "support agent"],
    "startup_cost": "one of: <$1K, $1K-$10K, $10K-$50K, >$50K",
    "time_to_revenue": "one of: <1 month, 1-3 months, 3-6 months, >6 months",
    "revenue_model": "about 80 words: subscription, usage-based, one-off, ads",
    "monthly_potential": "realistic monthly revenue range after 12 months",
    "automation_rate": "percentage of operations agents can handle, e.g. 80%",
    "customer_acquisition": "about 80 words: channels a solo founder can run",
    "risks": "about 100 words: platform, competition and execution risk",
    "action_plan": "about 100 words: the first concrete step this week",
    "tags": ["AI", "SaaS", "Automation"]
}`,
		scoring: `Scoring guide:
- 90-100: one person can ship in weeks + >80% automatable + low startup cost + clear buyers -> start now
- 70-89: feasible solo with some manual work + reachable customers -> prototype
- 50-69: needs a team or heavy capital at some stage -> keep watching
- 0-49: not suitable for a one-person company -> skip`,
	},
}

// ParseRubric maps a configuration value to a rubric
func ParseRubric(name string) (models.Rubric, error) {
	rubric := models.Rubric(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := rubricTemplates[rubric]; !ok {
		return "", fmt.Errorf("unknown rubric %q (want %q or %q)", name, models.RubricGeneral, models.RubricSolo)
	}
	return rubric, nil
}

// BuildPrompt renders an item and a rubric into the system and user prompt.
// Optional item fields that are missing are left out entirely.
func BuildPrompt(item models.Item, rubric models.Rubric) Prompt {
	tmpl, ok := rubricTemplates[rubric]
	if !ok {
		tmpl = rubricTemplates[models.RubricGeneral]
	}

	source := item.Source
	if source == "" {
		source = "unknown"
	}

	var sb strings.Builder
	sb.WriteString(tmpl.intro)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", item.Title)
	fmt.Fprintf(&sb, "Source: %s\n", strings.ToUpper(source))
	if item.URL != "" {
		fmt.Fprintf(&sb, "Link: %s\n", item.URL)
	}
	if desc := truncateRunes(strings.TrimSpace(item.Description), maxDescriptionRunes); desc != "" {
		fmt.Fprintf(&sb, "Description: %s\n", desc)
	}
	if item.Score != nil && *item.Score != 0 {
		fmt.Fprintf(&sb, "Popularity: %d points\n", *item.Score)
	}
	if item.Descendants != nil {
		fmt.Fprintf(&sb, "Comments: %d\n", *item.Descendants)
	}

	sb.WriteString("\nRespond with strict JSON in exactly this shape:\n")
	sb.WriteString(tmpl.schema)
	sb.WriteString("\n\n")
	sb.WriteString(tmpl.scoring)
	sb.WriteString("\n")

	return Prompt{
		System: tmpl.persona,
		User:   sb.String(),
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
