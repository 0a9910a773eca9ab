package sources

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const indieHackersURL = "https://www.indiehackers.com"

// IndieHackersSource lists products from the IndieHackers directory and
// falls back to a curated set of known cases when the page yields nothing
type IndieHackersSource struct {
	client  *resty.Client
	baseURL string
}

var indieHackersFallback = []models.Item{
	{
		ID:          "ih_baremetrics",
		Title:       "Baremetrics - $15K MRR from Stripe analytics",
		URL:         "https://www.indiehackers.com/product/baremetrics",
		Description: "Stripe 数据分析 SaaS，从 0 到$15K MRR 的独立开发案例",
		Author:      "levelupjames",
	},
	{
		ID:          "ih_planning",
		Title:       "Planning - $10K MRR project management tool",
		URL:         "https://www.indiehackers.com/product/planning",
		Description: "项目管理工具，独立开发者做到$10K 月经常性收入",
		Author:      "planning",
	},
	{
		ID:          "ih_transmit",
		Title:       "Transmit - FTP client acquired by Panic",
		URL:         "https://www.indiehackers.com/product/transmit",
		Description: "FTP 客户端，被 Panic 收购的独立开发项目",
		Author:      "panic",
	},
	{
		ID:          "ih_blanket",
		Title:       "Blanket - White noise app for focus",
		URL:         "https://www.indiehackers.com/product/blanket",
		Description: "白噪音专注应用，macOS 独立开发案例",
		Author:      "will",
	},
	{
		ID:          "ih_typeshare",
		Title:       "Typeshare - Code generation tool",
		URL:         "https://www.indiehackers.com/product/typeshare",
		Description: "代码生成工具，开源 + 商业化的独立项目",
		Author:      "strangerstudios",
	},
}

// NewIndieHackersSource creates a new IndieHackers source
func NewIndieHackersSource() *IndieHackersSource {
	return &IndieHackersSource{
		client: resty.New().
			SetTimeout(15*time.Second).
			SetHeader("User-Agent", browserUserAgent),
		baseURL: indieHackersURL,
	}
}

func (i *IndieHackersSource) GetName() string {
	return "indiehackers"
}

func (i *IndieHackersSource) IsEnabled() bool {
	return true
}

func (i *IndieHackersSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	items, err := i.fetchProducts(ctx, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logrus.Warnf("IndieHackers product page failed: %v", err)
	}

	if len(items) == 0 {
		logrus.Info("Using curated IndieHackers cases")
		items = fallbackCases(limit)
	}

	return items, nil
}

func (i *IndieHackersSource) fetchProducts(ctx context.Context, limit int) ([]models.Item, error) {
	resp, err := i.client.R().
		SetContext(ctx).
		Get(i.baseURL + "/products")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("indiehackers returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse IndieHackers page: %w", err)
	}

	seen := make(map[string]bool)
	var items []models.Item

	doc.Find(`a[href^="/products/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if len(items) >= limit {
			return false
		}

		href, _ := link.Attr("href")
		slug := path.Base(strings.TrimRight(href, "/"))
		if slug == "" || slug == "products" || seen[slug] {
			return true
		}
		seen[slug] = true

		title := strings.Join(strings.Fields(link.Text()), " ")
		if title == "" {
			title = slug
		}

		items = append(items, models.Item{
			ID:          "ih_" + slug,
			Title:       truncate("IndieHackers Product: "+title, maxTitleRunes),
			Source:      "indiehackers",
			URL:         indieHackersURL + href,
			Description: "Independent developer product from IndieHackers community",
			Author:      "unknown",
		})
		return true
	})

	return items, nil
}

func fallbackCases(limit int) []models.Item {
	if limit > len(indieHackersFallback) {
		limit = len(indieHackersFallback)
	}
	if limit < 0 {
		limit = 0
	}

	items := make([]models.Item, 0, limit)
	for _, item := range indieHackersFallback[:limit] {
		item.Source = "indiehackers"
		items = append(items, item)
	}
	return items
}
