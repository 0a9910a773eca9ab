package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const githubTrendingURL = "https://github.com/trending"

// GitHubTrendingSource scrapes the GitHub trending page
type GitHubTrendingSource struct {
	client  *resty.Client
	pageURL string
}

// NewGitHubTrendingSource creates a new GitHub Trending source
func NewGitHubTrendingSource() *GitHubTrendingSource {
	return &GitHubTrendingSource{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", browserUserAgent),
		pageURL: githubTrendingURL,
	}
}

func (g *GitHubTrendingSource) GetName() string {
	return "github_trending"
}

func (g *GitHubTrendingSource) IsEnabled() bool {
	return true
}

func (g *GitHubTrendingSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		Get(g.pageURL)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("github trending returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse GitHub Trending page: %w", err)
	}

	items := parseTrending(doc, limit)
	logrus.Infof("Got %d GitHub Trending items", len(items))
	return items, nil
}

func parseTrending(doc *goquery.Document, limit int) []models.Item {
	now := time.Now()
	var items []models.Item

	doc.Find("article.Box-row").EachWithBreak(func(_ int, article *goquery.Selection) bool {
		if len(items) >= limit {
			return false
		}

		href, _ := article.Find("h2 a").First().Attr("href")
		fullName := strings.Trim(strings.TrimSpace(href), "/")
		parts := strings.Split(fullName, "/")
		if len(parts) != 2 {
			return true
		}
		author, name := parts[0], parts[1]

		description := truncate(strings.TrimSpace(article.Find("p.col-9").Text()), maxDescRunes)
		stars := parseNumber(article.Find(`a[href$="/stargazers"]`).First().Text())
		forks := parseNumber(article.Find(`a[href$="/forks"]`).First().Text())
		language := strings.TrimSpace(article.Find(`span[itemprop="programmingLanguage"]`).First().Text())

		title := name + " - GitHub Trending Project"
		if description != "" {
			title = fmt.Sprintf("%s - %s", name, truncate(description, 100))
		}

		displayLanguage := language
		if displayLanguage == "" {
			displayLanguage = "Unknown"
		}

		items = append(items, models.Item{
			ID:          "github_" + strings.ReplaceAll(fullName, "/", "_"),
			Title:       title,
			Source:      "github_trending",
			URL:         "https://github.com/" + fullName,
			Description: fmt.Sprintf("**%s** by @%s\n\n%s\n\n⭐ %d | 🍴 %d | 💻 %s", name, author, description, stars, forks, displayLanguage),
			Score:       models.IntPtr(stars),
			Author:      author,
			PublishedAt: &now,
			Metadata: map[string]interface{}{
				"full_name": fullName,
				"stars":     stars,
				"forks":     forks,
				"language":  language,
			},
		})
		return true
	})

	return items
}

// parseNumber reads counts such as "1,234", "5.2k" or "1M"; anything else is 0
func parseNumber(text string) int {
	text = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(text, ",", "")))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "k"):
		multiplier = 1000
		text = strings.TrimSuffix(text, "k")
	case strings.HasSuffix(text, "m"):
		multiplier = 1000000
		text = strings.TrimSuffix(text, "m")
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}

	return int(value * multiplier)
}
