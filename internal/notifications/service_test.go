package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

var createdAt = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func soloOpportunity() models.Opportunity {
	return models.Opportunity{
		ID:        "hn_42",
		Title:     "AI newsletter for dentists",
		Source:    "hn",
		URL:       "https://example.com/dent",
		Score:     88,
		Summary:   "Niche newsletter",
		Rubric:    models.RubricSolo,
		Tags:      []string{"newsletter", "AI"},
		CreatedAt: createdAt,
		Solo: &models.SoloAnalysis{
			Description:    "Weekly AI digest",
			AgentRoles:     []string{"writer", "editor"},
			StartupCost:    "$200",
			AutomationRate: "90%",
		},
		ResearchLinks: []string{"https://example.com/dent", "https://www.google.com/search?q=x"},
	}
}

func generalOpportunity() models.Opportunity {
	return models.Opportunity{
		ID:        "ph_7",
		Title:     "Invoice chaser",
		Source:    "ph",
		URL:       "https://example.com/inv",
		Score:     72,
		Summary:   "Automated dunning for freelancers",
		Rubric:    models.RubricGeneral,
		CreatedAt: createdAt,
		Market: &models.MarketAnalysis{
			MarketSize: "$2B",
			Suggestion: "Start with Stripe users",
		},
	}
}

func TestFormatOpportunity_Solo(t *testing.T) {
	opp := soloOpportunity()
	message := FormatOpportunity(&opp)

	assert.True(t, strings.HasPrefix(message, "🔥 【一人公司机会 #hn_42】评分：88/100"))
	assert.Contains(t, message, "🔗 来源：HN | https://example.com/dent")
	assert.Contains(t, message, "Weekly AI digest")
	assert.Contains(t, message, "writer, editor")
	assert.Contains(t, message, "💰 启动成本：$200")
	assert.Contains(t, message, "⏱️ 多久见钱：待分析")
	assert.Contains(t, message, "🏷️ 标签：newsletter, AI")
	assert.True(t, strings.HasSuffix(message, "生成时间：2026-10-19 09:30"))
}

func TestFormatOpportunity_General(t *testing.T) {
	opp := generalOpportunity()
	message := FormatOpportunity(&opp)

	assert.True(t, strings.HasPrefix(message, "🚀 【产品机会 #ph_7】评分：72/100"))
	// no description falls back to the summary
	assert.Contains(t, message, "Automated dunning for freelancers")
	assert.Contains(t, message, "📊 市场规模：$2B")
	assert.Contains(t, message, "🏁 竞争对手：待分析")
	assert.Contains(t, message, "Start with Stripe users")
	assert.NotContains(t, message, "标签")
}

func TestEmojiFor(t *testing.T) {
	tests := map[string]string{
		"hn":              "🔥",
		"crunchbase":      "💰",
		"36kr":            "📰",
		"github_trending": "💡",
		"":                "💡",
	}

	for source, expected := range tests {
		t.Run(source, func(t *testing.T) {
			assert.Equal(t, expected, emojiFor(source))
		})
	}
}

type feishuServer struct {
	mu         sync.Mutex
	tokenCalls int
	messages   []string
	failCode   int
}

func (f *feishuServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Path {
		case "/auth/v3/tenant_access_token/internal":
			f.tokenCalls++
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "app", body["app_id"])
			assert.Equal(t, "secret", body["app_secret"])
			fmt.Fprint(w, `{"code": 0, "msg": "ok", "tenant_access_token": "t-123", "expire": 7200}`)
		case "/im/v1/messages":
			assert.Equal(t, "Bearer t-123", r.Header.Get("Authorization"))
			assert.Equal(t, "user_id", r.URL.Query().Get("receive_id_type"))
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ou_user", body["receive_id"])
			assert.Equal(t, "text", body["msg_type"])

			var content map[string]string
			assert.NoError(t, json.Unmarshal([]byte(body["content"]), &content))
			f.messages = append(f.messages, content["text"])

			if f.failCode != 0 {
				fmt.Fprintf(w, `{"code": %d, "msg": "bot not in chat"}`, f.failCode)
				return
			}
			fmt.Fprint(w, `{"code": 0, "msg": "success"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func testReport(n int) *models.Report {
	report := &models.Report{
		GeneratedAt: createdAt,
		Rubric:      models.RubricSolo,
		TotalItems:  50,
	}
	for i := 0; i < n; i++ {
		opp := soloOpportunity()
		opp.ID = fmt.Sprintf("hn_%d", i)
		opp.Score = 90 - i
		report.Opportunities = append(report.Opportunities, opp)
	}
	return report
}

func newFeishuService(serverURL string) *Service {
	service := NewService(&config.Config{
		FeishuAppID:     "app",
		FeishuAppSecret: "secret",
		FeishuUserID:    "ou_user",
	})
	service.feishu.baseURL = serverURL
	return service
}

func TestService_SendReport_Feishu(t *testing.T) {
	fake := &feishuServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	service := newFeishuService(server.URL)

	require.NoError(t, service.SendReport(context.Background(), testReport(5)))
	require.NoError(t, service.SendReport(context.Background(), testReport(1)))

	// headline + top 3, then headline + 1; the token is reused
	assert.Equal(t, 1, fake.tokenCalls)
	require.Len(t, fake.messages, 6)
	assert.Equal(t, "发现 5 个产品机会（共分析 50 条，2026-10-19 09:30）", fake.messages[0])
	assert.Contains(t, fake.messages[1], "#hn_0")
	assert.Contains(t, fake.messages[3], "#hn_2")
}

func TestService_SendReport_FeishuError(t *testing.T) {
	fake := &feishuServer{failCode: 230002}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	service := newFeishuService(server.URL)

	err := service.SendReport(context.Background(), testReport(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Feishu")
	assert.Contains(t, err.Error(), "230002")
}

func TestService_SendReport_NothingConfigured(t *testing.T) {
	service := NewService(&config.Config{})
	assert.NoError(t, service.SendReport(context.Background(), testReport(3)))
}

type fakeMailer struct {
	messages []*gomail.Message
	err      error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	f.messages = append(f.messages, m...)
	return f.err
}

func TestService_SendReport_Email(t *testing.T) {
	mailer := &fakeMailer{}
	service := NewService(&config.Config{
		NotificationEmail: "me@example.com",
		SMTPUsername:      "bot@example.com",
	})
	service.mailer = mailer

	require.NoError(t, service.SendReport(context.Background(), testReport(2)))
	require.Len(t, mailer.messages, 1)

	m := mailer.messages[0]
	assert.Equal(t, []string{"me@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"bot@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"Research Agent Report - 2026-10-19 (2 opportunities)"}, m.GetHeader("Subject"))
}

func TestService_SendReport_AggregatesErrors(t *testing.T) {
	fake := &feishuServer{failCode: 99}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	service := newFeishuService(server.URL)
	service.config.SMTPUsername = "bot@example.com"
	service.config.NotificationEmail = "me@example.com"
	service.mailer = &fakeMailer{err: errors.New("connection refused")}

	err := service.SendReport(context.Background(), testReport(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Feishu:")
	assert.Contains(t, err.Error(), "Email: failed to send email: connection refused")
}

func TestBuildEmailBodies(t *testing.T) {
	report := testReport(12)
	report.Opportunities[0].Summary = strings.Repeat("长", 400)

	html, err := buildEmailHTML(report)
	require.NoError(t, err)
	assert.Contains(t, html, "Research Agent Report")
	assert.Contains(t, html, "https://example.com/dent")
	assert.Contains(t, html, "HN | Score: 90/100")
	assert.Equal(t, 10, strings.Count(html, `class="opportunity-title"`))

	text := buildEmailText(report)
	assert.Contains(t, text, "Items analyzed: 50")
	assert.Contains(t, text, "Opportunities: 12")
	assert.Contains(t, text, "10. [HN]")
	assert.NotContains(t, text, "11. [HN]")
	assert.Contains(t, text, strings.Repeat("长", 300)+"...")
}

func TestService_SendAlert_GitHubIssue(t *testing.T) {
	var got githubIssueRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/radar/issues", r.URL.Path)
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 12, "html_url": "https://github.com/acme/radar/issues/12"}`)
	}))
	defer server.Close()

	service := NewService(&config.Config{GitHubToken: "gh-token", GitHubRepo: "acme/radar"})
	service.github.baseURL = server.URL

	opp := soloOpportunity()
	alert := &models.Alert{
		ID:          "alert_hn_42",
		Title:       "[88] AI newsletter for dentists",
		Message:     "High-scoring opportunity",
		Opportunity: &opp,
		CreatedAt:   createdAt,
	}

	require.NoError(t, service.SendAlert(context.Background(), alert))
	assert.Equal(t, "[88] AI newsletter for dentists", got.Title)
	assert.Equal(t, []string{"opportunity", "solo"}, got.Labels)
	assert.Contains(t, got.Body, "High-scoring opportunity")
	assert.Contains(t, got.Body, "一人公司机会")
	assert.Contains(t, got.Body, "- https://www.google.com/search?q=x")
}

func TestService_SendAlert_GitHubFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "Resource not accessible"}`)
	}))
	defer server.Close()

	service := NewService(&config.Config{GitHubToken: "gh-token", GitHubRepo: "acme/radar"})
	service.github.baseURL = server.URL

	err := service.SendAlert(context.Background(), &models.Alert{ID: "a", Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestService_SendAlert_NotConfigured(t *testing.T) {
	service := NewService(&config.Config{})
	assert.NoError(t, service.SendAlert(context.Background(), &models.Alert{ID: "a", Title: "t"}))
}

func TestNewGitHubIssues(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		repository string
		expected   bool
	}{
		{"Token and repository", "tok", "acme/radar", true},
		{"Missing token", "", "acme/radar", false},
		{"Malformed repository", "tok", "radar", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewGitHubIssues(tt.token, tt.repository).IsConfigured())
		})
	}
}
