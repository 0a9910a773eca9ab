package analyzer

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ItemAnalyzer scores a single item; *Client is the production implementation
type ItemAnalyzer interface {
	Analyze(ctx context.Context, item models.Item) (*models.Opportunity, error)
}

// BatchOptions controls filtering and fan-out of a batch
type BatchOptions struct {
	MinScore    int
	Concurrency int
}

// DefaultBatchOptions returns a minimum score of 60 and 5 concurrent analyses
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{MinScore: 60, Concurrency: 5}
}

// BatchAnalyzer applies an ItemAnalyzer across a list of items
type BatchAnalyzer struct {
	analyzer ItemAnalyzer
	opts     BatchOptions
}

// NewBatchAnalyzer creates a batch analyzer around a single-item analyzer
func NewBatchAnalyzer(analyzer ItemAnalyzer, opts BatchOptions) *BatchAnalyzer {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultBatchOptions().Concurrency
	}
	return &BatchAnalyzer{analyzer: analyzer, opts: opts}
}

// Analyze runs at most Concurrency analyses at once and returns the
// opportunities scoring at least MinScore, highest score first. Items that
// fail are dropped. The only error is the context's, once every in-flight
// analysis has returned.
func (b *BatchAnalyzer) Analyze(ctx context.Context, items []models.Item) ([]models.Opportunity, error) {
	total := len(items)
	logrus.Infof("Analyzing %d items (min_score=%d, concurrency=%d)", total, b.opts.MinScore, b.opts.Concurrency)

	results := make([]*models.Opportunity, total)
	var completed atomic.Int64

	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)

	for i, item := range items {
		g.Go(func() error {
			// items still queued when the context ends are not sent
			if ctx.Err() != nil {
				return nil
			}
			results[i] = b.analyzeOne(ctx, item)
			logrus.Infof("Progress: %d/%d", completed.Add(1), total)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return b.rank(results), nil
}

// AnalyzeSequential analyzes one item at a time. Its result is identical to
// Analyze for the same responses.
func (b *BatchAnalyzer) AnalyzeSequential(ctx context.Context, items []models.Item) ([]models.Opportunity, error) {
	total := len(items)
	logrus.Infof("Analyzing %d items sequentially (min_score=%d)", total, b.opts.MinScore)

	results := make([]*models.Opportunity, total)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = b.analyzeOne(ctx, item)
		logrus.Infof("Progress: %d/%d", i+1, total)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return b.rank(results), nil
}

func (b *BatchAnalyzer) analyzeOne(ctx context.Context, item models.Item) *models.Opportunity {
	opp, err := b.analyzer.Analyze(ctx, item)
	if err != nil {
		logrus.Debugf("Skipping item %s: %v", item.ID, err)
		return nil
	}
	return opp
}

// rank keeps accepted results in input order, then sorts by score
// descending; equal scores keep their input order.
func (b *BatchAnalyzer) rank(results []*models.Opportunity) []models.Opportunity {
	accepted := make([]models.Opportunity, 0, len(results))
	for _, opp := range results {
		if opp != nil && opp.Score >= b.opts.MinScore {
			accepted = append(accepted, *opp)
		}
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].Score > accepted[j].Score
	})

	logrus.Infof("Found %d opportunities", len(accepted))
	return accepted
}
