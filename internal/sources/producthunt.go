package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	productHuntGraphQL = "https://api.producthunt.com/v2/api/graphql"
	productHuntFeed    = "https://www.producthunt.com/feed"
)

const productHuntQuery = `query Posts($first: Int!) {
  posts(first: $first) {
    edges {
      node {
        id
        name
        tagline
        url
        votesCount
        commentsCount
        createdAt
      }
    }
  }
}`

// ProductHuntSource uses the GraphQL API when a token is configured and
// falls back to the public RSS feed otherwise
type ProductHuntSource struct {
	accessToken string
	client      *resty.Client
	feeds       *feedReader
	graphqlURL  string
	feedURL     string
}

type productHuntResponse struct {
	Data struct {
		Posts struct {
			Edges []struct {
				Node productHuntPost `json:"node"`
			} `json:"edges"`
		} `json:"posts"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type productHuntPost struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Tagline       string    `json:"tagline"`
	URL           string    `json:"url"`
	VotesCount    int       `json:"votesCount"`
	CommentsCount int       `json:"commentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewProductHuntSource creates a new Product Hunt source
func NewProductHuntSource(accessToken string) *ProductHuntSource {
	client := resty.New().
		SetTimeout(15*time.Second).
		SetHeader("User-Agent", userAgent)

	return &ProductHuntSource{
		accessToken: accessToken,
		client:      client,
		feeds:       newFeedReader(client),
		graphqlURL:  productHuntGraphQL,
		feedURL:     productHuntFeed,
	}
}

func (p *ProductHuntSource) GetName() string {
	return "ph"
}

func (p *ProductHuntSource) IsEnabled() bool {
	return true // RSS fallback needs no credentials
}

func (p *ProductHuntSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	if p.accessToken != "" {
		items, err := p.fetchAPI(ctx, limit)
		if err == nil && len(items) > 0 {
			return items, nil
		}
		if err != nil {
			logrus.Warnf("Product Hunt API failed, falling back to RSS: %v", err)
		}
	}

	return p.fetchRSS(ctx, limit)
}

func (p *ProductHuntSource) fetchAPI(ctx context.Context, limit int) ([]models.Item, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"query":     productHuntQuery,
			"variables": map[string]int{"first": limit},
		}).
		Post(p.graphqlURL)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("product hunt API returned status %d", resp.StatusCode())
	}

	var phResp productHuntResponse
	if err := json.Unmarshal(resp.Body(), &phResp); err != nil {
		return nil, fmt.Errorf("failed to parse Product Hunt response: %w", err)
	}

	if len(phResp.Errors) > 0 {
		return nil, fmt.Errorf("product hunt API error: %s", phResp.Errors[0].Message)
	}

	var items []models.Item
	for _, edge := range phResp.Data.Posts.Edges {
		post := edge.Node
		item := models.Item{
			ID:          fmt.Sprintf("ph_%s", post.ID),
			Title:       truncate(fmt.Sprintf("%s - %s", post.Name, post.Tagline), maxTitleRunes),
			Source:      "ph",
			URL:         post.URL,
			Description: truncate(post.Tagline, maxDescRunes),
			Score:       models.IntPtr(post.VotesCount),
			Descendants: models.IntPtr(post.CommentsCount),
		}
		if !post.CreatedAt.IsZero() {
			createdAt := post.CreatedAt
			item.PublishedAt = &createdAt
		}
		items = append(items, item)
	}

	return items, nil
}

func (p *ProductHuntSource) fetchRSS(ctx context.Context, limit int) ([]models.Item, error) {
	feed, err := p.feeds.Read(ctx, p.feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Product Hunt feed: %w", err)
	}

	var items []models.Item
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}

		item := models.Item{
			ID:          fmt.Sprintf("ph_%s", entryID(entry)),
			Title:       truncate(entry.Title, maxTitleRunes),
			Source:      "ph",
			URL:         entry.Link,
			Description: truncate(entrySummary(entry), maxDescRunes),
			Author:      entryAuthor(entry),
		}
		if entry.PublishedParsed != nil {
			item.PublishedAt = entry.PublishedParsed
		}
		items = append(items, item)
	}

	return items, nil
}
