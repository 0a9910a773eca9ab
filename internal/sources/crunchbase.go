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

const crunchbaseAPI = "https://api.crunchbase.com/api/v4"

// CrunchbaseSource looks up recently funded organizations by keyword
type CrunchbaseSource struct {
	apiKey   string
	keywords []string
	client   *resty.Client
	baseURL  string
}

type crunchbaseSearchResponse struct {
	Entities []struct {
		UUID       string               `json:"uuid"`
		Properties crunchbaseProperties `json:"properties"`
	} `json:"entities"`
}

type crunchbaseIdentifier struct {
	Value string `json:"value"`
}

type crunchbaseProperties struct {
	Name                   string                 `json:"name"`
	WebURL                 string                 `json:"web_url"`
	ShortDescription       string                 `json:"short_description"`
	LastFundingType        string                 `json:"last_funding_type"`
	LastFundingAmount      float64                `json:"last_funding_amount"`
	LastFundingCurrency    string                 `json:"last_funding_currency"`
	LastFundingAnnouncedOn string                 `json:"last_funding_announced_on"`
	Investors              []crunchbaseIdentifier `json:"investor_identifiers"`
	Categories             []crunchbaseIdentifier `json:"category_identifiers"`
	Locations              []crunchbaseIdentifier `json:"location_identifiers"`
}

// NewCrunchbaseSource creates a new Crunchbase source
func NewCrunchbaseSource(apiKey string, keywords []string) *CrunchbaseSource {
	return &CrunchbaseSource{
		apiKey:   apiKey,
		keywords: keywords,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
		baseURL: crunchbaseAPI,
	}
}

func (c *CrunchbaseSource) GetName() string {
	return "crunchbase"
}

func (c *CrunchbaseSource) IsEnabled() bool {
	return c.apiKey != "" && len(c.keywords) > 0
}

func (c *CrunchbaseSource) Fetch(ctx context.Context, limit int) ([]models.Item, error) {
	if !c.IsEnabled() {
		logrus.Debug("Crunchbase source disabled - missing API key")
		return nil, nil
	}

	perKeyword := limit / len(c.keywords)
	if perKeyword < 1 {
		perKeyword = 1
	}

	var allItems []models.Item
	for _, keyword := range c.keywords {
		items, err := c.search(ctx, keyword, perKeyword)
		if err != nil {
			if ctx.Err() != nil {
				return DeduplicateItems(allItems), ctx.Err()
			}
			logrus.Errorf("Failed to search Crunchbase for '%s': %v", keyword, err)
			continue
		}
		allItems = append(allItems, items...)
	}

	return DeduplicateItems(allItems), nil
}

func (c *CrunchbaseSource) search(ctx context.Context, keyword string, limit int) ([]models.Item, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-cb-user-key", c.apiKey).
		SetQueryParams(map[string]string{
			"query": keyword,
			"limit": strconv.Itoa(limit),
		}).
		Get(c.baseURL + "/searches/organizations")

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("crunchbase API returned status %d", resp.StatusCode())
	}

	var searchResp crunchbaseSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse Crunchbase response: %w", err)
	}

	var items []models.Item
	for _, entity := range searchResp.Entities {
		props := entity.Properties
		if entity.UUID == "" || props.Name == "" {
			continue
		}

		currency := props.LastFundingCurrency
		if currency == "" {
			currency = "USD"
		}

		items = append(items, models.Item{
			ID:          fmt.Sprintf("crunchbase_%s", entity.UUID),
			Title:       fmt.Sprintf("%s raises funding", props.Name),
			Source:      "crunchbase",
			URL:         props.WebURL,
			Description: truncate(props.ShortDescription, maxDescRunes),
			Tags:        identifierValues(props.Categories),
			Metadata: map[string]interface{}{
				"company_name":   props.Name,
				"funding_round":  props.LastFundingType,
				"funding_amount": props.LastFundingAmount,
				"currency":       currency,
				"announced_date": props.LastFundingAnnouncedOn,
				"investors":      identifierValues(props.Investors),
				"location":       identifierValues(props.Locations),
				"keyword":        keyword,
			},
		})
	}

	return items, nil
}

func identifierValues(ids []crunchbaseIdentifier) []string {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.Value != "" {
			values = append(values, id.Value)
		}
	}
	return values
}
