package sources

import (
	"bytes"
	"cmp"
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
)

// feedReader downloads RSS/Atom documents with resty and parses them with gofeed
type feedReader struct {
	client *resty.Client
	parser *gofeed.Parser
}

func newFeedReader(client *resty.Client) *feedReader {
	return &feedReader{
		client: client,
		parser: gofeed.NewParser(),
	}
}

func (f *feedReader) Read(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(feedURL)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode())
	}

	feed, err := f.parser.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return feed, nil
}

func entryID(entry *gofeed.Item) string {
	return cmp.Or(entry.GUID, entry.Link)
}

func entrySummary(entry *gofeed.Item) string {
	return htmlToText(cmp.Or(entry.Description, entry.Content))
}

func entryAuthor(entry *gofeed.Item) string {
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		return entry.Authors[0].Name
	}
	if entry.Author != nil {
		return entry.Author.Name
	}
	return ""
}
