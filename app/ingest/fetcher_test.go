package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/vilaverde/imovelhub/app/database"
	"github.com/vilaverde/imovelhub/app/portals"
)

// Mock implementations for testing

type mockLinkRepo struct {
	links map[string]*database.Link
	order []string
}

var _ database.LinkRepository = (*mockLinkRepo)(nil)

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{links: make(map[string]*database.Link)}
}

func (m *mockLinkRepo) ListPending() ([]database.Link, error) {
	var pending []database.Link
	for _, id := range m.order {
		if link := m.links[id]; !link.Processed {
			pending = append(pending, *link)
		}
	}
	return pending, nil
}

func (m *mockLinkRepo) GetByID(id string) (*database.Link, error) {
	link, ok := m.links[id]
	if !ok {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

func (m *mockLinkRepo) Insert(link database.Link) error {
	if _, ok := m.links[link.ID]; !ok {
		m.order = append(m.order, link.ID)
	}
	link.ProcessingStatus = database.StatusPending
	m.links[link.ID] = &link
	return nil
}

func (m *mockLinkRepo) MarkProcessing(id string) error {
	link, ok := m.links[id]
	if !ok {
		return database.ErrLinkNotFound
	}
	link.ProcessingStatus = database.StatusProcessing
	return nil
}

func (m *mockLinkRepo) MarkOutcome(id string, status database.ProcessingStatus, outcome database.LinkOutcome) error {
	link, ok := m.links[id]
	if !ok {
		return database.ErrLinkNotFound
	}
	link.Processed = true
	link.ProcessingStatus = status
	link.Error = outcome.Error
	link.HTMLPagesSaved = outcome.PagesSaved
	return nil
}

func (m *mockLinkRepo) ResetAll() (int, error) {
	for _, link := range m.links {
		link.Processed = false
		link.ProcessingStatus = database.StatusPending
		link.Error = ""
		link.HTMLPagesSaved = nil
	}
	return len(m.links), nil
}

func (m *mockLinkRepo) Count() (int, error) { return len(m.links), nil }

func (m *mockLinkRepo) CountPending() (int, error) {
	count := 0
	for _, link := range m.links {
		if !link.Processed {
			count++
		}
	}
	return count, nil
}

type mockCaptureRepo struct {
	captures map[string]*database.RawCapture
	order    []string
	// afterListPending runs after each ListPending call, for simulating a
	// concurrent worker claiming captures between list and claim
	afterListPending func()
}

var _ database.CaptureRepository = (*mockCaptureRepo)(nil)

func newMockCaptureRepo() *mockCaptureRepo {
	return &mockCaptureRepo{captures: make(map[string]*database.RawCapture)}
}

func (m *mockCaptureRepo) Insert(capture database.RawCapture) error {
	if _, ok := m.captures[capture.ID]; !ok {
		m.order = append(m.order, capture.ID)
	}
	m.captures[capture.ID] = &capture
	return nil
}

func (m *mockCaptureRepo) GetByID(id string) (*database.RawCapture, error) {
	capture, ok := m.captures[id]
	if !ok {
		return nil, nil
	}
	copied := *capture
	return &copied, nil
}

func (m *mockCaptureRepo) ExistsBySourceURL(sourceURL string) (bool, error) {
	for _, capture := range m.captures {
		if capture.SourceURL == sourceURL {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCaptureRepo) ListPending(limit int) ([]database.RawCapture, error) {
	var pending []database.RawCapture
	for _, id := range m.order {
		capture := m.captures[id]
		if capture.ProcessingStatus == database.StatusPending && capture.NeedsProcessing {
			pending = append(pending, *capture)
		}
		if len(pending) == limit {
			break
		}
	}
	if m.afterListPending != nil {
		m.afterListPending()
	}
	return pending, nil
}

func (m *mockCaptureRepo) ListByStatus(status database.ProcessingStatus, limit int) ([]database.RawCapture, error) {
	var matched []database.RawCapture
	for _, id := range m.order {
		if capture := m.captures[id]; capture.ProcessingStatus == status {
			matched = append(matched, *capture)
		}
		if len(matched) == limit {
			break
		}
	}
	return matched, nil
}

func (m *mockCaptureRepo) Transition(id string, from, to database.ProcessingStatus, update database.CaptureUpdate) (bool, error) {
	if err := database.ValidateTransition(from, to); err != nil {
		return false, err
	}
	capture, ok := m.captures[id]
	if !ok || capture.ProcessingStatus != from {
		return false, nil
	}
	capture.ProcessingStatus = to
	capture.IgnoreReason = update.IgnoreReason
	capture.Error = update.Error
	capture.ProcessedAt = update.ProcessedAt
	capture.ProcessedPropertyID = update.ProcessedPropertyID
	return true, nil
}

func (m *mockCaptureRepo) CountByStatus() (map[database.ProcessingStatus]int, error) {
	counts := make(map[database.ProcessingStatus]int)
	for _, capture := range m.captures {
		counts[capture.ProcessingStatus]++
	}
	return counts, nil
}

func (m *mockCaptureRepo) BackfillNeedsProcessing() (int, error)      { return 0, nil }
func (m *mockCaptureRepo) BackfillStatus() (int, error)               { return 0, nil }
func (m *mockCaptureRepo) ListMissingRawData() ([]database.RawCapture, error) { return nil, nil }
func (m *mockCaptureRepo) SetRawDataIfMissing(id string, data []byte) (bool, error) {
	return false, nil
}

func newTestFetcher(linkRepo database.LinkRepository, captureRepo database.CaptureRepository,
	cache *portals.Cache) *Fetcher {
	return &Fetcher{
		linkRepo:      linkRepo,
		captureRepo:   captureRepo,
		portalCache:   cache,
		httpClient:    &http.Client{},
		htmlExtractor: NewHTMLExtractor(),
		feedExtractor: NewFeedExtractor(),
		descExtractor: NewDescriptionExtractor(),
		userAgent:     "test-agent",
		fetchTimeout:  5 * time.Second,
		limiter:       rate.NewLimiter(rate.Inf, 1),
	}
}

func writeTestPortal(t *testing.T, dir, name, baseURL string, neighborhoods []string) *portals.Cache {
	t.Helper()

	var allowList strings.Builder
	for _, n := range neighborhoods {
		fmt.Fprintf(&allowList, "  - %q\n", n)
	}

	content := fmt.Sprintf(`portal:
  title: "Portal de Teste"
  base_url: %q
  kind: html

settings:
  enabled: true
  timeout: 5

selectors:
  item: "div.listing-card"
  title: "h2.listing-title"
  price: "span.listing-price"
  area: "span.listing-area"
  bedrooms: "span.listing-bedrooms"
  link: "a.listing-link"
  image: "img.listing-photo"
  location: "p.listing-location"

neighborhoods:
%s
seeds:
  - url: %q
    description: "Busca de teste"
`, baseURL, allowList.String(), baseURL+"/busca")

	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write portal template: %v", err)
	}

	cache := portals.NewCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatalf("Failed to load portal templates: %v", err)
	}
	return cache
}

func TestFetcherRunSavesMatchingCaptures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/busca" {
			fmt.Fprint(w, samplePortalPage)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	cache := writeTestPortal(t, t.TempDir(), "teste", server.URL, []string{"Centro"})

	linkRepo := newMockLinkRepo()
	captureRepo := newMockCaptureRepo()
	linkRepo.Insert(database.Link{ID: "l1", URL: server.URL + "/busca", Type: "teste"})

	fetcher := newTestFetcher(linkRepo, captureRepo, cache)

	stats, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Three cards on the page: one in Centro (saved), one without a link
	// (dropped by the extractor), one in Boqueirão (outside the allow-list)
	if stats.PagesSaved != 1 {
		t.Errorf("Expected 1 page saved, got %d", stats.PagesSaved)
	}
	if stats.Skipped != 1 {
		t.Errorf("Expected 1 candidate skipped, got %d", stats.Skipped)
	}
	if stats.LinksCompleted != 1 {
		t.Errorf("Expected 1 link completed, got %d", stats.LinksCompleted)
	}

	link, _ := linkRepo.GetByID("l1")
	if !link.Processed || link.ProcessingStatus != database.StatusCompleted {
		t.Errorf("Expected completed link, got processed=%v status=%s", link.Processed, link.ProcessingStatus)
	}
	if link.HTMLPagesSaved == nil || *link.HTMLPagesSaved != 1 {
		t.Errorf("Expected 1 page recorded on the link, got %v", link.HTMLPagesSaved)
	}

	if len(captureRepo.captures) != 1 {
		t.Fatalf("Expected 1 capture, got %d", len(captureRepo.captures))
	}
	for _, capture := range captureRepo.captures {
		if capture.ProcessingStatus != database.StatusPending || !capture.NeedsProcessing {
			t.Errorf("Expected pending capture flagged for processing, got %s", capture.ProcessingStatus)
		}
		if capture.Title != "Apartamento 2 quartos no Centro" {
			t.Errorf("Unexpected capture title: %q", capture.Title)
		}
	}
}

func TestFetcherIsolatesLinkFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quebrado":
			http.Error(w, "internal error", http.StatusInternalServerError)
		case "/busca":
			fmt.Fprint(w, samplePortalPage)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cache := writeTestPortal(t, t.TempDir(), "teste", server.URL, nil)

	linkRepo := newMockLinkRepo()
	captureRepo := newMockCaptureRepo()
	linkRepo.Insert(database.Link{ID: "l1", URL: server.URL + "/quebrado", Type: "teste"})
	linkRepo.Insert(database.Link{ID: "l2", URL: server.URL + "/busca", Type: "teste"})

	fetcher := newTestFetcher(linkRepo, captureRepo, cache)

	stats, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected per-link failure isolation, run failed: %v", err)
	}

	if stats.LinksFailed != 1 || stats.LinksCompleted != 1 {
		t.Errorf("Expected 1 failed and 1 completed link, got failed=%d completed=%d",
			stats.LinksFailed, stats.LinksCompleted)
	}

	failed, _ := linkRepo.GetByID("l1")
	if failed.ProcessingStatus != database.StatusError || failed.Error == "" {
		t.Errorf("Expected errored link with message, got status=%s error=%q",
			failed.ProcessingStatus, failed.Error)
	}

	completed, _ := linkRepo.GetByID("l2")
	if completed.ProcessingStatus != database.StatusCompleted {
		t.Errorf("Expected the second link to complete, got %s", completed.ProcessingStatus)
	}
}

func TestFetcherRunWithNoPendingLinks(t *testing.T) {
	cache := writeTestPortal(t, t.TempDir(), "teste", "https://portal.example", nil)

	fetcher := newTestFetcher(newMockLinkRepo(), newMockCaptureRepo(), cache)

	stats, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected empty registry to be a normal completion, got %v", err)
	}
	if stats.LinksVisited != 0 || stats.PagesSaved != 0 {
		t.Errorf("Expected zero stats, got %+v", stats)
	}
}

func TestFetcherSkipsDuplicateSourceURLs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, samplePortalPage)
	}))
	defer server.Close()

	cache := writeTestPortal(t, t.TempDir(), "teste", server.URL, []string{"Centro"})

	linkRepo := newMockLinkRepo()
	captureRepo := newMockCaptureRepo()
	linkRepo.Insert(database.Link{ID: "l1", URL: server.URL + "/busca", Type: "teste"})

	// The only matching candidate is already captured
	captureRepo.Insert(database.RawCapture{
		ID:               "existing",
		SourceURL:        server.URL + "/imovel/ap-centro-123",
		ProcessingStatus: database.StatusCompleted,
	})

	fetcher := newTestFetcher(linkRepo, captureRepo, cache)

	stats, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stats.Duplicates != 1 {
		t.Errorf("Expected 1 duplicate, got %d", stats.Duplicates)
	}
	if stats.PagesSaved != 0 {
		t.Errorf("Expected no new captures, got %d", stats.PagesSaved)
	}
	if len(captureRepo.captures) != 1 {
		t.Errorf("Expected capture store unchanged, got %d captures", len(captureRepo.captures))
	}
}

func TestFetcherFailsLinkWithoutPortalTemplate(t *testing.T) {
	cache := writeTestPortal(t, t.TempDir(), "teste", "https://portal.example", nil)

	linkRepo := newMockLinkRepo()
	linkRepo.Insert(database.Link{ID: "l1", URL: "https://desconhecido.example/busca", Type: "inexistente"})

	fetcher := newTestFetcher(linkRepo, newMockCaptureRepo(), cache)

	stats, err := fetcher.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.LinksFailed != 1 {
		t.Errorf("Expected 1 failed link, got %d", stats.LinksFailed)
	}

	link, _ := linkRepo.GetByID("l1")
	if link.ProcessingStatus != database.StatusError {
		t.Errorf("Expected errored link, got %s", link.ProcessingStatus)
	}
}
