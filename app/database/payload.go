package database

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// ListingPayload is the explicit field set allowed in raw_data. Values stay
// as extracted (strings), normalization happens at promotion time. Unknown
// fields found while decoding are logged and dropped, never carried.
type ListingPayload struct {
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Price        string   `json:"price,omitempty"`
	Area         string   `json:"area,omitempty"`
	Bedrooms     string   `json:"bedrooms,omitempty"`
	Bathrooms    string   `json:"bathrooms,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	Street       string   `json:"street,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Images       []string `json:"images,omitempty"`
	Features     []string `json:"features,omitempty"`
	ContactName  string   `json:"contact_name,omitempty"`
	ContactPhone string   `json:"contact_phone,omitempty"`
	ContactEmail string   `json:"contact_email,omitempty"`
}

var knownPayloadFields = map[string]bool{
	"title": true, "description": true, "price": true, "area": true,
	"bedrooms": true, "bathrooms": true, "property_type": true,
	"street": true, "neighborhood": true, "city": true, "state": true,
	"images": true, "features": true,
	"contact_name": true, "contact_phone": true, "contact_email": true,
}

// DecodeListingPayload parses raw_data into the strict field set.
func DecodeListingPayload(data []byte) (*ListingPayload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}

	for field := range fields {
		if !knownPayloadFields[field] {
			slog.Warn("Unknown payload field dropped", "field", field)
			delete(fields, field)
		}
	}

	strict, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode payload: %w", err)
	}

	var payload ListingPayload
	if err := json.Unmarshal(strict, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	return &payload, nil
}

// Encode serializes the payload for storage.
func (p *ListingPayload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}
