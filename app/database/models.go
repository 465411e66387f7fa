package database

import (
	"time"
)

// Link is a seed URL in the link registry, pointing at a portal search page.
type Link struct {
	ID                  string
	URL                 string
	Type                string // portal template key
	Description         string
	Processed           bool
	ProcessingStatus    ProcessingStatus
	ProcessingStartedAt *time.Time
	ProcessedAt         *time.Time
	Error               string
	HTMLPagesSaved      *int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RawCapture is an unprocessed scraped listing payload awaiting validation.
type RawCapture struct {
	ID                  string
	SourceURL           string
	Title               string
	RawData             []byte // strict-JSON ListingPayload
	NeedsProcessing     bool
	ProcessingStatus    ProcessingStatus
	ProcessingStartedAt *time.Time
	IgnoreReason        string
	Error               string
	ProcessedAt         *time.Time
	ProcessedPropertyID string
	CreatedAt           time.Time
}

// Property is a canonical, validated listing record. Code is immutable and
// globally unique within the collection (P-NNNNN).
type Property struct {
	ID           string
	Code         string
	Title        string
	Description  string
	Price        float64
	Type         string
	Bedrooms     *int
	Bathrooms    *int
	Area         float64
	Street       string
	Neighborhood string
	City         string
	State        string
	Images       []string
	Features     []string
	ContactName  string
	ContactPhone string
	ContactEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Lead is a contact captured by the lead surface (L-NNNNN code scheme).
type Lead struct {
	ID           string
	Code         string
	Name         string
	Phone        string
	Email        string
	Message      string
	PropertyCode string
	CreatedAt    time.Time
}

// LinkOutcome carries the terminal details recorded by MarkOutcome.
type LinkOutcome struct {
	Error      string
	PagesSaved *int
}

// CaptureUpdate carries the fields set alongside a status transition.
type CaptureUpdate struct {
	IgnoreReason        string
	Error               string
	ProcessedAt         *time.Time
	ProcessedPropertyID string
}

// PropertyFilter is the indexed filter set for listing queries. Numeric
// ranges are inclusive. Query is applied in memory after the indexed
// filters, as a case-insensitive substring match over title, description
// and address fields.
type PropertyFilter struct {
	Type         string
	MinPrice     *float64
	MaxPrice     *float64
	City         string
	Neighborhood string
	Bedrooms     *int
	Bathrooms    *int
	MinArea      *float64
	MaxArea      *float64
	Query        string
}
