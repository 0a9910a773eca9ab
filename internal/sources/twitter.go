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

const twitterAPI = "https://api.twitter.com/2"

// TwitterSource implements Twitter/X recent search
type TwitterSource struct {
	bearerToken string
	queries     []string
	client      *resty.Client
	baseURL     string
	queryDelay  time.Duration
}

type twitterSearchResponse struct {
	Data []twitterTweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type twitterTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

// NewTwitterSource creates a new Twitter source
func NewTwitterSource(bearerToken string, queries []string) *TwitterSource {
	return &TwitterSource{
		bearerToken: bearerToken,
		queries:     queries,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
		baseURL:    twitterAPI,
		queryDelay: 3 * time.Second,
	}
}

func (t *TwitterSource) GetName() string {
	return "twitter"
}

func (t *TwitterSource) IsEnabled() bool {
	return t.bearerToken != "" && len(t.queries) > 0
}

// Fetch runs every configured query, sharing limit between them
func (t *TwitterSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	if !t.IsEnabled() {
		logrus.Debug("Twitter source disabled - missing bearer token")
		return nil, nil
	}

	perQuery := limit / len(t.queries)
	if perQuery < 1 {
		perQuery = 1
	}

	var allItems []models.Item
	for i, query := range t.queries {
		// Space out searches to stay under the recent-search rate limit
		if i > 0 {
			if err := pause(ctx, t.queryDelay); err != nil {
				return DeduplicateItems(allItems), err
			}
		}

		items, err := t.search(ctx, query, perQuery)
		if err != nil {
			logrus.Errorf("Failed to search Twitter for '%s': %v", query, err)
			continue
		}

		logrus.Infof("Found %d tweets for '%s'", len(items), query)
		allItems = append(allItems, items...)
	}

	return DeduplicateItems(allItems), nil
}

func (t *TwitterSource) search(ctx context.Context, query string, limit int) ([]models.Item, error) {
	// The API only accepts 10..100 results per page
	maxResults := limit
	if maxResults < 10 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetAuthToken(t.bearerToken).
		SetQueryParams(map[string]string{
			"query":        query + " -is:retweet",
			"max_results":  strconv.Itoa(maxResults),
			"tweet.fields": "created_at,author_id,public_metrics,referenced_tweets",
		}).
		Get(t.baseURL + "/tweets/search/recent")

	if err != nil {
		return nil, err
	}

	// Rate limited: skip this query instead of blocking the other sources
	if resp.StatusCode() == 429 {
		logrus.Warnf("Twitter API rate limit hit for '%s' (reset at %s) - skipping", query, resp.Header().Get("x-rate-limit-reset"))
		return nil, nil
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("twitter API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp twitterSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse Twitter response: %w", err)
	}

	var items []models.Item
	for _, tweet := range searchResp.Data {
		if isRetweet(tweet) {
			continue
		}

		item := models.Item{
			ID:          fmt.Sprintf("twitter_%s", tweet.ID),
			Title:       truncate(tweet.Text, maxTitleRunes),
			Source:      "twitter",
			URL:         fmt.Sprintf("https://twitter.com/i/status/%s", tweet.ID),
			Description: truncate(tweet.Text, maxDescRunes),
			Score:       models.IntPtr(tweet.PublicMetrics.LikeCount),
			Descendants: models.IntPtr(tweet.PublicMetrics.ReplyCount),
			Author:      tweet.AuthorID,
			Tags:        []string{query},
		}
		if createdAt, err := time.Parse(time.RFC3339, tweet.CreatedAt); err == nil {
			item.PublishedAt = &createdAt
		}

		items = append(items, item)
		if len(items) >= limit {
			break
		}
	}

	return items, nil
}

func isRetweet(tweet twitterTweet) bool {
	for _, ref := range tweet.ReferencedTweets {
		if ref.Type == "retweeted" {
			return true
		}
	}
	return false
}
