package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/vilaverde/imovelhub/app/database"
)

var (
	feedPriceRe = regexp.MustCompile(`R\$\s*[\d.]+(?:,\d+)?`)
	feedAreaRe  = regexp.MustCompile(`\d+(?:,\d+)?\s*(?:m²|m2)`)
)

// FeedExtractor maps listing feeds (RSS/Atom published by smaller broker
// sites) into candidates. Price and area are recovered from the item text,
// where these feeds conventionally embed them.
type FeedExtractor struct {
	parser *gofeed.Parser
}

func NewFeedExtractor() *FeedExtractor {
	return &FeedExtractor{
		parser: gofeed.NewParser(),
	}
}

func (e *FeedExtractor) Run(data []byte) ([]Candidate, error) {
	feed, err := e.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing feed: %w", err)
	}

	var candidates []Candidate
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}

		body := item.Title + " " + item.Description

		payload := database.ListingPayload{
			Title:       strings.TrimSpace(item.Title),
			Description: strings.TrimSpace(item.Description),
			Price:       feedPriceRe.FindString(body),
			Area:        feedAreaRe.FindString(body),
		}

		// Brokers tag items with the neighborhood; take the first category.
		if len(item.Categories) > 0 {
			payload.Neighborhood = strings.TrimSpace(item.Categories[0])
		}

		if item.Image != nil && item.Image.URL != "" {
			payload.Images = append(payload.Images, item.Image.URL)
		}

		candidates = append(candidates, Candidate{
			SourceURL: item.Link,
			Payload:   payload,
		})
	}

	return candidates, nil
}
