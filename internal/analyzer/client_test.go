package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleepRecorder replaces the backoff sleep so tests observe delays without waiting
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *sleepRecorder) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func newTestClient(t *testing.T, endpoint string, rubric models.Rubric) (*Client, *sleepRecorder) {
	t.Helper()

	client, err := NewClient(ClientConfig{
		Endpoint:    endpoint,
		APIKey:      "test-key",
		Model:       "qwen-plus",
		Timeout:     2 * time.Second,
		Temperature: 0.7,
		MaxTokens:   1000,
		Rubric:      rubric,
	})
	require.NoError(t, err)

	recorder := &sleepRecorder{}
	client.sleep = recorder.sleep
	t.Cleanup(client.Close)
	return client, recorder
}

var testItem = models.Item{ID: "hn_1", Title: "Open-source Stripe analytics", Source: "hn", URL: "https://example.com/a"}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
	}{
		{name: "Missing API key", cfg: ClientConfig{Endpoint: "http://x", Model: "m"}},
		{name: "Missing endpoint", cfg: ClientConfig{APIKey: "k", Model: "m"}},
		{name: "Missing model", cfg: ClientConfig{APIKey: "k", Endpoint: "http://x"}},
		{name: "Unknown rubric", cfg: ClientConfig{APIKey: "k", Endpoint: "http://x", Model: "m", Rubric: "vc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestClient_Analyze_RequestShape(t *testing.T) {
	var got chatRequest
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, chatResponse(`{"score": 82, "summary": "good", "tags": ["SaaS"]}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, models.RubricGeneral)
	opp, err := client.Analyze(context.Background(), testItem)
	require.NoError(t, err)
	require.NotNil(t, opp)

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "qwen-plus", got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "Open-source Stripe analytics")

	assert.Equal(t, 82, opp.Score)
	assert.Equal(t, "hn_1", opp.ID)
	assert.Equal(t, []string{"SaaS"}, opp.Tags)
}

func TestClient_Analyze_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, chatResponse(`{"score": 70, "summary": "ok"}`))
	}))
	defer server.Close()

	client, recorder := newTestClient(t, server.URL, models.RubricGeneral)
	opp, err := client.Analyze(context.Background(), testItem)
	require.NoError(t, err)
	require.NotNil(t, opp)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, recorder.delays)
	assert.Equal(t, 6*time.Second, recorder.total())
	assert.Equal(t, 70, opp.Score)
}

func TestClient_Analyze_RateLimitExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, recorder := newTestClient(t, server.URL, models.RubricGeneral)
	opp, err := client.Analyze(context.Background(), testItem)

	assert.Nil(t, opp)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, recorder.delays)
}

func TestClient_Analyze_NonTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid api key"}`)
	}))
	defer server.Close()

	client, recorder := newTestClient(t, server.URL, models.RubricGeneral)
	opp, err := client.Analyze(context.Background(), testItem)

	assert.Nil(t, opp)
	assert.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, recorder.delays)
}

func TestClient_Analyze_TimeoutExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	client, recorder := newTestClient(t, server.URL, models.RubricGeneral)
	client.http.SetTimeout(50 * time.Millisecond)

	opp, err := client.Analyze(context.Background(), testItem)
	assert.Nil(t, opp)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, recorder.delays)

	batch := NewBatchAnalyzer(client, DefaultBatchOptions())
	result, err := batch.Analyze(context.Background(), []models.Item{testItem})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestClient_Analyze_MalformedOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse("I am unable to score this."))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, models.RubricGeneral)
	opp, err := client.Analyze(context.Background(), testItem)

	assert.Nil(t, opp)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Analyze_ProseWrappedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatResponse(`Sure! Here's the result: {"score": 80, "summary": "ok"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, models.RubricGeneral)
	opp, err := client.Analyze(context.Background(), testItem)
	require.NoError(t, err)
	assert.Equal(t, 80, opp.Score)
	assert.Equal(t, "ok", opp.Summary)
}

func TestClient_Analyze_DefaultScoreAndSoloRubric(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output":{"text":"{\"summary\": \"solo friendly\", \"agent_roles\": [\"writer\"], \"automation_rate\": \"85%\"}"}}`)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, models.RubricSolo)
	opp, err := client.Analyze(context.Background(), testItem)
	require.NoError(t, err)

	assert.Equal(t, 50, opp.Score)
	assert.Equal(t, models.RubricSolo, opp.Rubric)
	require.NotNil(t, opp.Solo)
	assert.Equal(t, []string{"writer"}, opp.Solo.AgentRoles)
	assert.Equal(t, "85%", opp.Solo.AutomationRate)
}

func TestClient_Analyze_Idempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[{"type":"text","text":"{\"score\": 66, \"summary\": \"same\", \"risks\": \"low\"}"}]}`)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, models.RubricGeneral)

	first, err := client.Analyze(context.Background(), testItem)
	require.NoError(t, err)
	second, err := client.Analyze(context.Background(), testItem)
	require.NoError(t, err)

	first.CreatedAt, second.CreatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestClient_Analyze_MaxRetryWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, recorder := newTestClient(t, server.URL, models.RubricGeneral)
	client.cfg.MaxRetryWait = 3 * time.Second

	opp, err := client.Analyze(context.Background(), testItem)
	assert.Nil(t, opp)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, []time.Duration{2 * time.Second}, recorder.delays)
}

func TestClient_Analyze_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, models.RubricGeneral)
	client.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hook := logtest.NewGlobal()
	defer hook.Reset()

	opp, err := client.Analyze(ctx, testItem)
	assert.Nil(t, opp)
	assert.ErrorIs(t, err, context.Canceled)

	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, entry.Level, entry.Message)
	}
}
