package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const redditBaseURL = "https://www.reddit.com"

// RedditSource reads the public hot listing of a set of subreddits
type RedditSource struct {
	subreddits []string
	client     *resty.Client
	baseURL    string
}

type redditListingResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Stickied    bool    `json:"stickied"`
	IsVideo     bool    `json:"is_video"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(subreddits []string) *RedditSource {
	return &RedditSource{
		subreddits: subreddits,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
		baseURL: redditBaseURL,
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) IsEnabled() bool {
	return len(r.subreddits) > 0
}

// Fetch splits limit evenly across the configured subreddits
func (r *RedditSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	if !r.IsEnabled() {
		logrus.Debug("Reddit source disabled - no subreddits configured")
		return nil, nil
	}

	perSubreddit := limit / len(r.subreddits)
	if perSubreddit < 1 {
		perSubreddit = 1
	}

	var allItems []models.Item
	for _, subreddit := range r.subreddits {
		items, err := r.fetchSubreddit(ctx, subreddit, perSubreddit)
		if err != nil {
			if ctx.Err() != nil {
				return allItems, ctx.Err()
			}
			logrus.Errorf("Failed to fetch r/%s: %v", subreddit, err)
			continue
		}
		allItems = append(allItems, items...)
	}

	return DeduplicateItems(allItems), nil
}

func (r *RedditSource) fetchSubreddit(ctx context.Context, subreddit string, limit int) ([]models.Item, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		Get(fmt.Sprintf("%s/r/%s/hot.json", r.baseURL, url.PathEscape(subreddit)))

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	var listing redditListingResponse
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("failed to parse Reddit response: %w", err)
	}

	var items []models.Item
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.IsVideo {
			continue
		}

		created := time.Unix(int64(post.Created), 0)
		item := models.Item{
			ID:          fmt.Sprintf("reddit_%s", post.ID),
			Title:       truncate(post.Title, maxTitleRunes),
			Source:      fmt.Sprintf("reddit_r/%s", subreddit),
			URL:         "https://reddit.com" + post.Permalink,
			Description: truncate(post.Selftext, maxDescRunes),
			Score:       models.IntPtr(post.Score),
			Descendants: models.IntPtr(post.NumComments),
			Author:      post.Author,
			PublishedAt: &created,
		}
		if post.URL != "" {
			item.Metadata = map[string]interface{}{"link": post.URL}
		}

		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}

	return items, nil
}
