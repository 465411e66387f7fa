package ingest

import (
	"fmt"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// DescriptionExtractor salvages a plain-text description from a listing's
// own page when the search-result selector yields nothing.
type DescriptionExtractor struct{}

func NewDescriptionExtractor() *DescriptionExtractor {
	return &DescriptionExtractor{}
}

func (e *DescriptionExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract description: %w", err)
	}

	description := strings.TrimSpace(article.TextContent)
	if description == "" {
		return "", fmt.Errorf("no description extracted from HTML data")
	}

	return description, nil
}
