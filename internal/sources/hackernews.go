package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const hackerNewsAPI = "https://hacker-news.firebaseio.com/v0"

// HackerNewsSource implements Hacker News API source
type HackerNewsSource struct {
	client  *resty.Client
	baseURL string
	// pause applied after every batchSize item requests
	batchPause time.Duration
	batchSize  int
}

type hackerNewsItem struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource() *HackerNewsSource {
	return &HackerNewsSource{
		client: resty.New().
			SetTimeout(10*time.Second).
			SetHeader("User-Agent", userAgent),
		baseURL:    hackerNewsAPI,
		batchPause: time.Second,
		batchSize:  10,
	}
}

func (h *HackerNewsSource) GetName() string {
	return "hn"
}

func (h *HackerNewsSource) IsEnabled() bool {
	return true // Hacker News API doesn't require authentication
}

// Fetch returns up to limit top stories that link to an external URL
func (h *HackerNewsSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	itemIDs, err := h.getTopStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get top stories: %w", err)
	}

	if len(itemIDs) > limit {
		itemIDs = itemIDs[:limit]
	}

	var items []models.Item
	for i, itemID := range itemIDs {
		if i > 0 && i%h.batchSize == 0 {
			if err := pause(ctx, h.batchPause); err != nil {
				return items, err
			}
		}

		story, err := h.getItem(ctx, itemID)
		if err != nil {
			logrus.Debugf("Failed to get HN item %d: %v", itemID, err)
			continue
		}

		if story == nil || story.Type != "story" || story.URL == "" {
			continue
		}

		item := models.Item{
			ID:          strconv.Itoa(story.ID),
			Title:       story.Title,
			Source:      "hn",
			URL:         story.URL,
			Score:       models.IntPtr(story.Score),
			Descendants: models.IntPtr(story.Descendants),
			Author:      story.By,
			Metadata: map[string]interface{}{
				"discussion_url": fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID),
			},
		}
		if story.Time > 0 {
			published := time.Unix(story.Time, 0)
			item.PublishedAt = &published
		}

		items = append(items, item)
	}

	return items, nil
}

func (h *HackerNewsSource) getTopStories(ctx context.Context) ([]int, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(h.baseURL + "/topstories.json")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d", resp.StatusCode())
	}

	var itemIDs []int
	if err := json.Unmarshal(resp.Body(), &itemIDs); err != nil {
		return nil, err
	}

	return itemIDs, nil
}

func (h *HackerNewsSource) getItem(ctx context.Context, itemID int) (*hackerNewsItem, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/item/%d.json", h.baseURL, itemID))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d for item %d", resp.StatusCode(), itemID)
	}

	var item *hackerNewsItem
	if err := json.Unmarshal(resp.Body(), &item); err != nil {
		return nil, err
	}

	return item, nil
}
