package ingest

import "testing"

func TestNeighborhoodMatcher(t *testing.T) {
	matcher := NewNeighborhoodMatcher([]string{"Jardim Botânico", "Centro"})

	tests := []struct {
		location string
		expected bool
	}{
		{"Rua das Flores, Jardim Botânico, Curitiba", true},
		{"rua x, jardim botanico, curitiba", true}, // diacritics ignored
		{"Avenida Central, CENTRO, São Paulo", true},
		{"Rua Y, Boqueirão, Curitiba", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := matcher.Matches(tt.location); got != tt.expected {
			t.Errorf("Matches(%q) = %v, expected %v", tt.location, got, tt.expected)
		}
	}
}

func TestNeighborhoodMatcherEmptyAllowListAdmitsEverything(t *testing.T) {
	matcher := NewNeighborhoodMatcher(nil)

	if !matcher.Matches("Qualquer Lugar, Qualquer Cidade") {
		t.Error("Expected empty allow-list to admit everything")
	}
	if !matcher.Matches("") {
		t.Error("Expected empty allow-list to admit empty locations")
	}
}
