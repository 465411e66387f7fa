package ingest

import (
	"testing"

	"github.com/vilaverde/imovelhub/app/portals"
)

const samplePortalPage = `
<html><body>
<div class="results">
  <div class="listing-card">
    <h2 class="listing-title">Apartamento 2 quartos no Centro</h2>
    <span class="listing-price">R$ 450.000,00</span>
    <span class="listing-area">75 m²</span>
    <span class="listing-bedrooms">2 quartos</span>
    <p class="listing-location">Rua das Flores, Centro, Curitiba</p>
    <a class="listing-link" href="/imovel/ap-centro-123">Ver imóvel</a>
    <img class="listing-photo" src="/fotos/123.jpg">
  </div>
  <div class="listing-card">
    <h2 class="listing-title">Casa sem link</h2>
    <span class="listing-price">R$ 300.000,00</span>
  </div>
  <div class="listing-card">
    <h2 class="listing-title">Kitnet mobiliada</h2>
    <span class="listing-price">R$ 180.000</span>
    <span class="listing-area">30 m²</span>
    <p class="listing-location">Boqueirão</p>
    <a class="listing-link" href="https://outro.example/imovel/kit-9">Ver</a>
    <img class="listing-photo" data-src="/fotos/9.jpg">
  </div>
</div>
</body></html>`

func samplePortal() *portals.Config {
	return &portals.Config{
		Name: "exemplo",
		Portal: portals.Info{
			Title:   "Exemplo Imóveis",
			BaseURL: "https://www.exemploimoveis.com.br",
			Kind:    portals.KindHTML,
		},
		Selector: portals.Selectors{
			Item:     "div.listing-card",
			Title:    "h2.listing-title",
			Price:    "span.listing-price",
			Area:     "span.listing-area",
			Bedrooms: "span.listing-bedrooms",
			Link:     "a.listing-link",
			Image:    "img.listing-photo",
			Location: "p.listing-location",
		},
	}
}

func TestHTMLExtractor(t *testing.T) {
	extractor := NewHTMLExtractor()

	candidates, err := extractor.Run([]byte(samplePortalPage), samplePortal())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// The card without a link is dropped
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 candidates, got %d", len(candidates))
	}

	first := candidates[0]
	if first.SourceURL != "https://www.exemploimoveis.com.br/imovel/ap-centro-123" {
		t.Errorf("Expected relative link resolved against base URL, got %q", first.SourceURL)
	}
	if first.Payload.Title != "Apartamento 2 quartos no Centro" {
		t.Errorf("Unexpected title: %q", first.Payload.Title)
	}
	if first.Payload.Price != "R$ 450.000,00" {
		t.Errorf("Unexpected price: %q", first.Payload.Price)
	}
	if first.Payload.Street != "Rua das Flores" || first.Payload.Neighborhood != "Centro" || first.Payload.City != "Curitiba" {
		t.Errorf("Unexpected location split: %q / %q / %q",
			first.Payload.Street, first.Payload.Neighborhood, first.Payload.City)
	}
	if len(first.Payload.Images) != 1 || first.Payload.Images[0] != "https://www.exemploimoveis.com.br/fotos/123.jpg" {
		t.Errorf("Unexpected images: %v", first.Payload.Images)
	}

	second := candidates[1]
	if second.SourceURL != "https://outro.example/imovel/kit-9" {
		t.Errorf("Expected absolute link kept as-is, got %q", second.SourceURL)
	}
	// Single location part is a neighborhood, not a street
	if second.Payload.Neighborhood != "Boqueirão" || second.Payload.Street != "" {
		t.Errorf("Unexpected location split: %q / %q", second.Payload.Street, second.Payload.Neighborhood)
	}
	// data-src fallback for lazy-loaded images
	if len(second.Payload.Images) != 1 || second.Payload.Images[0] != "https://www.exemploimoveis.com.br/fotos/9.jpg" {
		t.Errorf("Unexpected images: %v", second.Payload.Images)
	}
}

func TestHTMLExtractorNoMatches(t *testing.T) {
	extractor := NewHTMLExtractor()

	candidates, err := extractor.Run([]byte("<html><body><p>Nenhum resultado</p></body></html>"), samplePortal())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates, got %d", len(candidates))
	}
}

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		input        string
		street       string
		neighborhood string
		city         string
	}{
		{"Rua X, Centro, Curitiba", "Rua X", "Centro", "Curitiba"},
		{"Centro, Curitiba", "", "Centro", "Curitiba"},
		{"Centro", "", "Centro", ""},
	}

	for _, tt := range tests {
		street, neighborhood, city := splitLocation(tt.input)
		if street != tt.street || neighborhood != tt.neighborhood || city != tt.city {
			t.Errorf("splitLocation(%q) = %q/%q/%q, expected %q/%q/%q",
				tt.input, street, neighborhood, city, tt.street, tt.neighborhood, tt.city)
		}
	}
}
