package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vilaverde/imovelhub/app/database"
	"github.com/vilaverde/imovelhub/app/portals"
)

// Candidate is one listing found on a portal page, not yet captured.
type Candidate struct {
	SourceURL string
	Payload   database.ListingPayload
}

// HTMLExtractor maps a portal's search-result markup into listing
// candidates using the template's selector table.
type HTMLExtractor struct{}

func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (e *HTMLExtractor) Run(data []byte, portal *portals.Config) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	baseURL, err := url.Parse(portal.Portal.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse portal base URL: %w", err)
	}

	sel := portal.Selector
	var candidates []Candidate

	doc.Find(sel.Item).Each(func(i int, item *goquery.Selection) {
		payload := database.ListingPayload{
			Title:        text(item, sel.Title),
			Description:  text(item, sel.Description),
			Price:        text(item, sel.Price),
			Area:         text(item, sel.Area),
			Bedrooms:     text(item, sel.Bedrooms),
			Bathrooms:    text(item, sel.Bathrooms),
			PropertyType: text(item, sel.PropertyType),
		}

		location := text(item, sel.Location)
		payload.Street, payload.Neighborhood, payload.City = splitLocation(location)

		if sel.Image != "" {
			item.Find(sel.Image).Each(func(_ int, img *goquery.Selection) {
				src, ok := img.Attr("src")
				if !ok {
					src, ok = img.Attr("data-src")
				}
				if ok && src != "" {
					payload.Images = append(payload.Images, resolveURL(baseURL, src))
				}
			})
		}

		sourceURL := ""
		if sel.Link != "" {
			if href, ok := item.Find(sel.Link).First().Attr("href"); ok {
				sourceURL = resolveURL(baseURL, href)
			}
		}

		if sourceURL == "" {
			// Without a listing URL there is nothing to capture or dedupe on.
			return
		}

		candidates = append(candidates, Candidate{SourceURL: sourceURL, Payload: payload})
	})

	return candidates, nil
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(item.Find(selector).First().Text())
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// splitLocation breaks a portal's address line into street, neighborhood
// and city. Portals print "Rua X, Jardim Botânico, Brasília" or shorter
// variants; missing parts stay empty.
func splitLocation(location string) (street, neighborhood, city string) {
	parts := strings.Split(location, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 0:
		return "", "", ""
	case 1:
		return "", parts[0], ""
	case 2:
		return "", parts[0], parts[1]
	default:
		return parts[0], parts[1], parts[2]
	}
}
