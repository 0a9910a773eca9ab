package models

import "time"

// Item is a normalized record produced by a source adapter.
// Only ID and Title are guaranteed to be set.
type Item struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Source      string                 `json:"source,omitempty"` // "hn", "ph", "reddit_r/SaaS", "36kr", etc.
	URL         string                 `json:"url,omitempty"`
	Description string                 `json:"description,omitempty"`
	Score       *int                   `json:"score,omitempty"`       // upvotes, stars, votes
	Descendants *int                   `json:"descendants,omitempty"` // comment count
	Author      string                 `json:"author,omitempty"`
	PublishedAt *time.Time             `json:"published_at,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// IntPtr returns a pointer to v, for populating optional Item counters.
func IntPtr(v int) *int {
	return &v
}

// Rubric selects the scoring framework used to analyze an item
type Rubric string

const (
	RubricGeneral Rubric = "general" // market opportunity / due diligence
	RubricSolo    Rubric = "solo"    // solo operator + automation agents
)

// MarketAnalysis holds the fields produced by the general rubric
type MarketAnalysis struct {
	Description   string `json:"description"`
	MarketSize    string `json:"market_size"`
	BusinessModel string `json:"business_model"`
	Competitors   string `json:"competitors"`
	Barriers      string `json:"barriers"`
	Risks         string `json:"risks"`
	Suggestion    string `json:"suggestion"`
}

// SoloAnalysis holds the fields produced by the solo operator rubric
type SoloAnalysis struct {
	Description         string   `json:"description"`
	SoloFeasibility     string   `json:"solo_feasibility"`
	AgentRoles          []string `json:"agent_roles"`
	StartupCost         string   `json:"startup_cost"`
	TimeToRevenue       string   `json:"time_to_revenue"`
	RevenueModel        string   `json:"revenue_model"`
	MonthlyPotential    string   `json:"monthly_potential"`
	AutomationRate      string   `json:"automation_rate"`
	CustomerAcquisition string   `json:"customer_acquisition"`
	Risks               string   `json:"risks"`
	ActionPlan          string   `json:"action_plan"`
}

// Opportunity is the analyzed verdict for one item. Exactly one of
// Market or Solo is set, matching Rubric.
type Opportunity struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Source        string          `json:"source"`
	URL           string          `json:"url"`
	Score         int             `json:"score"` // 0-100
	Summary       string          `json:"summary"`
	Rubric        Rubric          `json:"rubric"`
	Market        *MarketAnalysis `json:"market,omitempty"`
	Solo          *SoloAnalysis   `json:"solo,omitempty"`
	Tags          []string        `json:"tags"`
	ResearchLinks []string        `json:"research_links"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Description returns the long-form description of whichever analysis is set
func (o *Opportunity) Description() string {
	switch {
	case o.Market != nil:
		return o.Market.Description
	case o.Solo != nil:
		return o.Solo.Description
	}
	return ""
}

// Report represents the result of one research run
type Report struct {
	GeneratedAt   time.Time              `json:"generated_at"`
	Rubric        Rubric                 `json:"rubric"`
	TotalItems    int                    `json:"total_items"`
	Opportunities []Opportunity          `json:"opportunities"`
	Summary       map[string]interface{} `json:"summary"`
}

// Alert represents a single high-scoring opportunity that warrants a ticket
type Alert struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	Opportunity *Opportunity `json:"opportunity,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
