package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceRe = regexp.MustCompile(`R?\$?\s*([\d.]+(?:,\d+)?)`)
	areaRe  = regexp.MustCompile(`([\d.]+(?:,\d+)?)\s*(?:m²|m2)?`)
	intRe   = regexp.MustCompile(`\d+`)
)

// parsePrice parses Brazilian price strings ("R$ 450.000,00", "450000")
// into a numeric amount.
func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("price is empty")
	}

	match := priceRe.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("unrecognized price format: %q", s)
	}

	// Brazilian notation: "." groups thousands, "," starts decimals.
	normalized := strings.ReplaceAll(match[1], ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q: %w", s, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive, got %v", price)
	}

	return price, nil
}

// parseArea parses area strings ("120 m²", "85,5m2") into square meters.
func parseArea(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("area is empty")
	}

	match := areaRe.FindStringSubmatch(s)
	if match == nil || match[1] == "" {
		return 0, fmt.Errorf("unrecognized area format: %q", s)
	}

	normalized := strings.ReplaceAll(match[1], ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	area, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable area %q: %w", s, err)
	}
	if area <= 0 {
		return 0, fmt.Errorf("area must be positive, got %v", area)
	}

	return area, nil
}

// parseCount extracts the leading integer from strings like "3 quartos".
// Returns nil when the field is absent, an error when present but garbled.
func parseCount(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	match := intRe.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("unrecognized count format: %q", s)
	}

	n, err := strconv.Atoi(match)
	if err != nil {
		return nil, fmt.Errorf("unparseable count %q: %w", s, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("count must be non-negative, got %d", n)
	}

	return &n, nil
}
