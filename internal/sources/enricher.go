package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/go-resty/resty/v2"
	readability "github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Enricher fills empty item descriptions with the readable text of the
// linked page
type Enricher struct {
	client      *resty.Client
	concurrency int
}

// NewEnricher creates an enricher fetching at most concurrency pages at once
func NewEnricher(concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 4
	}

	return &Enricher{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", browserUserAgent),
		concurrency: concurrency,
	}
}

// Enrich returns a copy of items where every item without a description
// carries up to 500 characters of extracted article text. Pages that
// cannot be read leave the item unchanged.
func (e *Enricher) Enrich(ctx context.Context, items []models.Item) []models.Item {
	enriched := make([]models.Item, len(items))
	copy(enriched, items)

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i := range enriched {
		item := &enriched[i]
		if item.Description != "" || item.URL == "" {
			continue
		}

		g.Go(func() error {
			text, err := e.extract(ctx, item.URL)
			if err != nil {
				logrus.Debugf("Failed to enrich %s: %v", item.ID, err)
				return nil
			}
			item.Description = truncate(text, maxDescRunes)
			return nil
		})
	}
	_ = g.Wait()

	return enriched
}

func (e *Enricher) extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	resp, err := e.client.R().
		SetContext(ctx).
		Get(pageURL)

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode())
	}

	article, err := readability.FromReader(bytes.NewReader(resp.Body()), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return "", fmt.Errorf("no content extracted from %s", pageURL)
	}

	return text, nil
}
