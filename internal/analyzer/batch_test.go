package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockItemAnalyzer is a mock implementation of ItemAnalyzer
type MockItemAnalyzer struct {
	mock.Mock
}

func (m *MockItemAnalyzer) Analyze(ctx context.Context, item models.Item) (*models.Opportunity, error) {
	args := m.Called(ctx, item)
	opp, _ := args.Get(0).(*models.Opportunity)
	return opp, args.Error(1)
}

func itemsWithScores(analyzer *MockItemAnalyzer, scores ...int) []models.Item {
	items := make([]models.Item, 0, len(scores))
	for i, score := range scores {
		item := models.Item{ID: fmt.Sprintf("item-%d", i), Title: fmt.Sprintf("Item %d", i)}
		items = append(items, item)
		analyzer.On("Analyze", mock.Anything, item).Return(&models.Opportunity{ID: item.ID, Title: item.Title, Score: score}, nil)
	}
	return items
}

func scoresOf(opps []models.Opportunity) []int {
	scores := make([]int, 0, len(opps))
	for _, opp := range opps {
		scores = append(scores, opp.Score)
	}
	return scores
}

func TestBatchAnalyzer_ThresholdAndOrder(t *testing.T) {
	analyzer := &MockItemAnalyzer{}
	items := itemsWithScores(analyzer, 90, 40, 60, 61)
	batch := NewBatchAnalyzer(analyzer, BatchOptions{MinScore: 60, Concurrency: 5})

	result, err := batch.Analyze(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, []int{90, 61, 60}, scoresOf(result))
	analyzer.AssertNumberOfCalls(t, "Analyze", 4)
}

func TestBatchAnalyzer_SequentialMatchesConcurrent(t *testing.T) {
	analyzer := &MockItemAnalyzer{}
	items := itemsWithScores(analyzer, 75, 88, 75, 10, 99, 75)
	batch := NewBatchAnalyzer(analyzer, DefaultBatchOptions())

	concurrent, err := batch.Analyze(context.Background(), items)
	require.NoError(t, err)
	sequential, err := batch.AnalyzeSequential(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, concurrent, sequential)
	assert.Equal(t, []int{99, 88, 75, 75, 75}, scoresOf(sequential))

	// equal scores keep input order
	assert.Equal(t, "item-0", sequential[2].ID)
	assert.Equal(t, "item-2", sequential[3].ID)
	assert.Equal(t, "item-5", sequential[4].ID)
}

func TestBatchAnalyzer_FailuresAreDropped(t *testing.T) {
	analyzer := &MockItemAnalyzer{}
	ok := models.Item{ID: "ok", Title: "ok"}
	failed := models.Item{ID: "failed", Title: "failed"}
	analyzer.On("Analyze", mock.Anything, ok).Return(&models.Opportunity{ID: "ok", Score: 70}, nil)
	analyzer.On("Analyze", mock.Anything, failed).Return(nil, errors.New("boom"))

	batch := NewBatchAnalyzer(analyzer, DefaultBatchOptions())
	result, err := batch.Analyze(context.Background(), []models.Item{failed, ok})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "ok", result[0].ID)
}

func TestBatchAnalyzer_AllFailReturnsEmpty(t *testing.T) {
	analyzer := &MockItemAnalyzer{}
	analyzer.On("Analyze", mock.Anything, mock.Anything).Return(nil, ErrTransport)

	batch := NewBatchAnalyzer(analyzer, DefaultBatchOptions())
	result, err := batch.Analyze(context.Background(), []models.Item{{ID: "1"}, {ID: "2"}})
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestBatchAnalyzer_EmptyInput(t *testing.T) {
	batch := NewBatchAnalyzer(&MockItemAnalyzer{}, DefaultBatchOptions())
	result, err := batch.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestBatchAnalyzer_CancelledContext(t *testing.T) {
	analyzer := &MockItemAnalyzer{}
	analyzer.On("Analyze", mock.Anything, mock.Anything).Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := NewBatchAnalyzer(analyzer, DefaultBatchOptions())
	_, err := batch.Analyze(ctx, []models.Item{{ID: "1"}, {ID: "2"}, {ID: "3"}})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = batch.AnalyzeSequential(ctx, []models.Item{{ID: "1"}})
	assert.ErrorIs(t, err, context.Canceled)

	analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestBatchAnalyzer_CancelMidBatchSkipsQueuedItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := make([]models.Item, 10)
	for i := range items {
		items[i] = models.Item{ID: fmt.Sprintf("item-%d", i)}
	}

	analyzer := &MockItemAnalyzer{}
	analyzer.On("Analyze", mock.Anything, items[0]).Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled)

	batch := NewBatchAnalyzer(analyzer, BatchOptions{MinScore: 60, Concurrency: 1})
	_, err := batch.Analyze(ctx, items)
	assert.ErrorIs(t, err, context.Canceled)
	analyzer.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestBatchAnalyzer_ConcurrencyBound(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			seen := maxInFlight.Load()
			if current <= seen || maxInFlight.CompareAndSwap(seen, current) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		fmt.Fprint(w, chatResponse(`{"score": 75, "summary": "fine"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, models.RubricGeneral)

	items := make([]models.Item, 20)
	for i := range items {
		items[i] = models.Item{ID: fmt.Sprintf("item-%d", i), Title: fmt.Sprintf("Item %d", i)}
	}

	batch := NewBatchAnalyzer(client, BatchOptions{MinScore: 60, Concurrency: 5})
	result, err := batch.Analyze(context.Background(), items)
	require.NoError(t, err)

	assert.Len(t, result, 20)
	assert.LessOrEqual(t, maxInFlight.Load(), int32(5))
	assert.Greater(t, maxInFlight.Load(), int32(1))
}

func TestNewBatchAnalyzer_Defaults(t *testing.T) {
	batch := NewBatchAnalyzer(&MockItemAnalyzer{}, BatchOptions{MinScore: 70})
	assert.Equal(t, 5, batch.opts.Concurrency)
	assert.Equal(t, 70, batch.opts.MinScore)
	assert.Equal(t, BatchOptions{MinScore: 60, Concurrency: 5}, DefaultBatchOptions())
}
