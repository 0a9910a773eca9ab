package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// ChineseMediaSource reads Chinese tech media RSS feeds (36Kr, Huxiu, TMTPost)
// and keeps recent articles that mention one of the keywords
type ChineseMediaSource struct {
	feeds     map[string]string
	keywords  []string
	window    time.Duration
	reader    *feedReader
	feedDelay time.Duration
	now       func() time.Time
}

// NewChineseMediaSource creates a new Chinese media source
func NewChineseMediaSource(feeds map[string]string, keywords []string, hours int) *ChineseMediaSource {
	if hours <= 0 {
		hours = 48
	}

	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", browserUserAgent)

	return &ChineseMediaSource{
		feeds:     feeds,
		keywords:  keywords,
		window:    time.Duration(hours) * time.Hour,
		reader:    newFeedReader(client),
		feedDelay: time.Second,
		now:       time.Now,
	}
}

func (c *ChineseMediaSource) GetName() string {
	return "chinese_media"
}

func (c *ChineseMediaSource) IsEnabled() bool {
	return len(c.feeds) > 0
}

// Fetch returns relevant articles from every feed, newest first
func (c *ChineseMediaSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	if !c.IsEnabled() {
		return nil, nil
	}

	perFeed := limit / len(c.feeds)
	if perFeed < 1 {
		perFeed = 1
	}

	names := make([]string, 0, len(c.feeds))
	for name := range c.feeds {
		names = append(names, name)
	}
	sort.Strings(names)

	cutoff := c.now().Add(-c.window)
	var items []models.Item

	for i, name := range names {
		if i > 0 {
			if err := pause(ctx, c.feedDelay); err != nil {
				return items, err
			}
		}

		feed, err := c.reader.Read(ctx, c.feeds[name])
		if err != nil {
			logrus.Errorf("Error fetching %s: %v", name, err)
			continue
		}

		entries := feed.Items
		if len(entries) > perFeed {
			entries = entries[:perFeed]
		}

		for _, entry := range entries {
			published := c.now()
			if entry.PublishedParsed != nil {
				published = *entry.PublishedParsed
			}

			if published.Before(cutoff) {
				continue
			}

			summary := entrySummary(entry)
			if !c.isRelevant(entry.Title, summary) {
				continue
			}

			tags := entry.Categories
			if len(tags) > 5 {
				tags = tags[:5]
			}

			items = append(items, models.Item{
				ID:          fmt.Sprintf("%s_%s", name, entryID(entry)),
				Title:       entry.Title,
				Source:      name,
				URL:         entry.Link,
				Description: truncate(summary, maxDescRunes),
				Author:      entryAuthor(entry),
				PublishedAt: &published,
				Tags:        tags,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(*items[j].PublishedAt)
	})

	logrus.Infof("Found %d relevant Chinese media articles", len(items))
	return items, nil
}

func (c *ChineseMediaSource) isRelevant(title, summary string) bool {
	text := strings.ToLower(title + " " + summary)
	for _, keyword := range c.keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
