package analyzer

import (
	"strings"
	"testing"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt_MinimalItem(t *testing.T) {
	item := models.Item{ID: "1", Title: "Show HN: A tiny CRM"}

	for _, rubric := range []models.Rubric{models.RubricGeneral, models.RubricSolo} {
		t.Run(string(rubric), func(t *testing.T) {
			prompt := BuildPrompt(item, rubric)

			assert.Contains(t, prompt.User, "Title: Show HN: A tiny CRM")
			assert.Contains(t, prompt.User, "Source: UNKNOWN")
			assert.NotContains(t, prompt.User, "Link:")
			assert.NotContains(t, prompt.User, "Description:")
			assert.NotContains(t, prompt.User, "Popularity:")
			assert.NotContains(t, prompt.User, "Comments:")

			for _, placeholder := range []string{"<nil>", "None", "null", "%!", "{{"} {
				assert.NotContains(t, prompt.User, placeholder)
				assert.NotContains(t, prompt.System, placeholder)
			}
			assert.Contains(t, prompt.System, "strict JSON")
		})
	}
}

func TestBuildPrompt_FullItem(t *testing.T) {
	item := models.Item{
		ID:          "42",
		Title:       "Invoice automation for freelancers",
		Source:      "hn",
		URL:         "https://example.com/invoice",
		Description: "Automates invoices",
		Score:       models.IntPtr(321),
		Descendants: models.IntPtr(0),
	}

	prompt := BuildPrompt(item, models.RubricGeneral)

	assert.Contains(t, prompt.User, "Source: HN")
	assert.Contains(t, prompt.User, "Link: https://example.com/invoice")
	assert.Contains(t, prompt.User, "Description: Automates invoices")
	assert.Contains(t, prompt.User, "Popularity: 321 points")
	assert.Contains(t, prompt.User, "Comments: 0")
	assert.Contains(t, prompt.User, `"market_size"`)
	assert.NotContains(t, prompt.User, `"agent_roles"`)
}

func TestBuildPrompt_ZeroScoreOmitted(t *testing.T) {
	item := models.Item{ID: "1", Title: "t", Score: models.IntPtr(0)}
	prompt := BuildPrompt(item, models.RubricGeneral)
	assert.NotContains(t, prompt.User, "Popularity:")
}

func TestBuildPrompt_SoloRubricFields(t *testing.T) {
	prompt := BuildPrompt(models.Item{ID: "1", Title: "t"}, models.RubricSolo)

	for _, field := range []string{"solo_feasibility", "agent_roles", "startup_cost", "time_to_revenue", "automation_rate"} {
		assert.Contains(t, prompt.User, field)
	}
	assert.NotContains(t, prompt.User, `"market_size"`)
}

func TestBuildPrompt_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("融", 600)
	prompt := BuildPrompt(models.Item{ID: "1", Title: "t", Description: long}, models.RubricGeneral)

	assert.Contains(t, prompt.User, "Description: "+strings.Repeat("融", 500)+"\n")
	assert.NotContains(t, prompt.User, strings.Repeat("融", 501))
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	item := models.Item{ID: "1", Title: "t", Source: "ph", URL: "https://ph.example"}
	assert.Equal(t, BuildPrompt(item, models.RubricSolo), BuildPrompt(item, models.RubricSolo))
}

func TestParseRubric(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.Rubric
		wantErr  bool
	}{
		{name: "General", input: "general", expected: models.RubricGeneral},
		{name: "Solo with spaces and case", input: " Solo ", expected: models.RubricSolo},
		{name: "Unknown", input: "vc", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rubric, err := ParseRubric(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, rubric)
		})
	}
}
