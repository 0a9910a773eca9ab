package sources

import (
	"context"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent        = "Research-Agent/1.0"
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	maxTitleRunes    = 200
	maxDescRunes     = 500
)

// DeduplicateItems keeps the first occurrence of every item ID
func DeduplicateItems(items []models.Item) []models.Item {
	seen := make(map[string]bool)
	var unique []models.Item

	for _, item := range items {
		if !seen[item.ID] {
			seen[item.ID] = true
			unique = append(unique, item)
		}
	}

	return unique
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// htmlToText flattens an HTML fragment (feed summaries, post bodies) to text
func htmlToText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	return strings.Join(strings.Fields(doc.Text()), " ")
}

// pause waits for d unless the context ends first
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
