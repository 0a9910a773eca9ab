package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
)

const defaultScore = 50

// ExtractJSON parses model output into a JSON object. The text is tried as
// strict JSON first, then the span from the first '{' to the last '}'.
func ExtractJSON(text string) (map[string]interface{}, bool) {
	if obj, ok := decodeObject(text); ok {
		return obj, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	return decodeObject(text[start : end+1])
}

func decodeObject(text string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// unwrapContent finds the model answer in any of the envelope shapes the
// endpoint may return. It returns "" when no known shape matches.
func unwrapContent(body []byte) string {
	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	// OpenAI-compatible: choices[0].message.content
	if text, ok := messageContent(envelope["choices"]); ok {
		return text
	}

	// Anthropic-compatible: content[0].text
	if blocks, ok := envelope["content"].([]interface{}); ok && len(blocks) > 0 {
		if block, ok := blocks[0].(map[string]interface{}); ok {
			if text, ok := block["text"].(string); ok {
				return text
			}
		}
	}

	// DashScope native: output.text or output.choices[0].message.content
	if output, ok := envelope["output"].(map[string]interface{}); ok {
		if text, ok := output["text"].(string); ok {
			return text
		}
		if text, ok := messageContent(output["choices"]); ok {
			return text
		}
	}

	return ""
}

func messageContent(v interface{}) (string, bool) {
	choices, ok := v.([]interface{})
	if !ok || len(choices) == 0 {
		return "", false
	}
	choice, ok := choices[0].(map[string]interface{})
	if !ok {
		return "", false
	}
	message, ok := choice["message"].(map[string]interface{})
	if !ok {
		return "", false
	}
	text, ok := message["content"].(string)
	return text, ok
}

// buildOpportunity maps a parsed analysis onto an Opportunity for the rubric
func buildOpportunity(item models.Item, rubric models.Rubric, analysis map[string]interface{}, createdAt time.Time) *models.Opportunity {
	source := item.Source
	if source == "" {
		source = "unknown"
	}

	opp := &models.Opportunity{
		ID:            item.ID,
		Title:         item.Title,
		Source:        source,
		URL:           item.URL,
		Score:         scoreField(analysis, "score"),
		Summary:       stringField(analysis, "summary"),
		Rubric:        rubric,
		Tags:          listField(analysis, "tags"),
		ResearchLinks: researchLinks(item),
		CreatedAt:     createdAt,
	}

	switch rubric {
	case models.RubricSolo:
		opp.Solo = &models.SoloAnalysis{
			Description:         stringField(analysis, "description"),
			SoloFeasibility:     stringField(analysis, "solo_feasibility"),
			AgentRoles:          listField(analysis, "agent_roles"),
			StartupCost:         stringField(analysis, "startup_cost"),
			TimeToRevenue:       stringField(analysis, "time_to_revenue"),
			RevenueModel:        stringField(analysis, "revenue_model"),
			MonthlyPotential:    stringField(analysis, "monthly_potential"),
			AutomationRate:      stringField(analysis, "automation_rate"),
			CustomerAcquisition: stringField(analysis, "customer_acquisition"),
			Risks:               stringField(analysis, "risks"),
			ActionPlan:          stringField(analysis, "action_plan"),
		}
	default:
		opp.Rubric = models.RubricGeneral
		opp.Market = &models.MarketAnalysis{
			Description:   stringField(analysis, "description"),
			MarketSize:    stringField(analysis, "market_size"),
			BusinessModel: stringField(analysis, "business_model"),
			Competitors:   stringField(analysis, "competitors"),
			Barriers:      stringField(analysis, "barriers"),
			Risks:         stringField(analysis, "risks"),
			Suggestion:    stringField(analysis, "suggestion"),
		}
	}

	return opp
}

// scoreField reads an integer score in [0,100]; a missing or unreadable
// score yields defaultScore.
func scoreField(m map[string]interface{}, key string) int {
	var score float64
	switch v := m[key].(type) {
	case float64:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultScore
		}
		score = parsed
	default:
		return defaultScore
	}

	if math.IsNaN(score) {
		return defaultScore
	}
	rounded := int(math.Round(math.Max(0, math.Min(100, score))))
	return rounded
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		return strings.Join(listField(m, key), ", ")
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

func listField(m map[string]interface{}, key string) []string {
	out := []string{}
	switch v := m[key].(type) {
	case []interface{}:
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			} else if elem != nil {
				out = append(out, fmt.Sprint(elem))
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// researchLinks returns the original link plus search queries for follow-up
func researchLinks(item models.Item) []string {
	links := []string{}
	if item.URL != "" {
		links = append(links, item.URL)
	}
	links = append(links,
		"https://www.google.com/search?q="+url.QueryEscape(item.Title),
		"https://www.google.com/search?q="+url.QueryEscape(item.Title+" competitors alternatives"),
	)
	return links
}
