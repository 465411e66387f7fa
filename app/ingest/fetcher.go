package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vilaverde/imovelhub/app/cfg"
	"github.com/vilaverde/imovelhub/app/database"
	"github.com/vilaverde/imovelhub/app/portals"
)

// Fetcher visits pending links sequentially, extracts listing candidates
// matching each portal's template and neighborhood allow-list, and records
// them as pending raw captures. Failure on one link never aborts the batch.
type Fetcher struct {
	linkRepo      database.LinkRepository
	captureRepo   database.CaptureRepository
	portalCache   *portals.Cache
	httpClient    *http.Client
	htmlExtractor *HTMLExtractor
	feedExtractor *FeedExtractor
	descExtractor *DescriptionExtractor
	userAgent     string
	fetchTimeout  time.Duration
	limiter       *rate.Limiter
}

// FetchStats summarizes one fetcher pass.
type FetchStats struct {
	LinksVisited   int
	LinksCompleted int
	LinksFailed    int
	PagesSaved     int
	Skipped        int
	Duplicates     int
}

func NewFetcher(linkRepo database.LinkRepository, captureRepo database.CaptureRepository,
	portalCache *portals.Cache, httpClient *http.Client) *Fetcher {
	c := cfg.Get()

	return &Fetcher{
		linkRepo:      linkRepo,
		captureRepo:   captureRepo,
		portalCache:   portalCache,
		httpClient:    httpClient,
		htmlExtractor: NewHTMLExtractor(),
		feedExtractor: NewFeedExtractor(),
		descExtractor: NewDescriptionExtractor(),
		userAgent:     c.UserAgent,
		fetchTimeout:  time.Duration(c.FetchTimeout) * time.Second,
		limiter:       rate.NewLimiter(rate.Every(time.Duration(c.WriteDelayMs)*time.Millisecond), 1),
	}
}

// Run performs one sequential pass over all pending links. Links are
// visited one at a time out of politeness to the portals.
func (f *Fetcher) Run(ctx context.Context) (FetchStats, error) {
	var stats FetchStats

	links, err := f.linkRepo.ListPending()
	if err != nil {
		return stats, fmt.Errorf("failed to list pending links: %w", err)
	}

	if len(links) == 0 {
		slog.Info("Fetcher run completed", "pending_links", 0)
		return stats, nil
	}

	for _, link := range links {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		stats.LinksVisited++

		portal, err := f.portalCache.GetConfig(link.Type)
		if err != nil {
			f.failLink(link.ID, fmt.Errorf("no portal template for link type %q", link.Type))
			stats.LinksFailed++
			continue
		}

		if !portal.Settings.Enabled {
			slog.Debug("Portal disabled, leaving link pending", "portal", portal.Name, "link", link.URL)
			stats.LinksVisited--
			continue
		}

		if err := f.linkRepo.MarkProcessing(link.ID); err != nil {
			slog.Warn("Failed to mark link processing, skipping", "link", link.URL, "error", err)
			stats.LinksFailed++
			continue
		}

		saved, skipped, duplicates, err := f.fetchLink(ctx, link, portal)
		if err != nil {
			f.failLink(link.ID, err)
			stats.LinksFailed++
			continue
		}

		pages := saved
		if err := f.linkRepo.MarkOutcome(link.ID, database.StatusCompleted, database.LinkOutcome{PagesSaved: &pages}); err != nil {
			slog.Error("Failed to mark link completed", "link", link.URL, "error", err)
			stats.LinksFailed++
			continue
		}

		stats.LinksCompleted++
		stats.PagesSaved += saved
		stats.Skipped += skipped
		stats.Duplicates += duplicates

		slog.Info("Link processed", "portal", portal.Name, "link", link.URL,
			"saved", saved, "skipped", skipped, "duplicates", duplicates)
	}

	slog.Info("Fetcher run completed", "visited", stats.LinksVisited,
		"completed", stats.LinksCompleted, "failed", stats.LinksFailed,
		"pages_saved", stats.PagesSaved)

	return stats, nil
}

func (f *Fetcher) failLink(id string, cause error) {
	err := f.linkRepo.MarkOutcome(id, database.StatusError, database.LinkOutcome{Error: cause.Error()})
	if err != nil {
		slog.Error("Failed to mark link error", "link_id", id, "cause", cause, "error", err)
	}
}

func (f *Fetcher) fetchLink(ctx context.Context, link database.Link, portal *portals.Config) (saved, skipped, duplicates int, err error) {
	data, err := f.fetchPage(ctx, link.URL, portal)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to fetch search page: %w", err)
	}

	var candidates []Candidate
	switch portal.Portal.Kind {
	case portals.KindFeed:
		candidates, err = f.feedExtractor.Run(data)
	default:
		candidates, err = f.htmlExtractor.Run(data, portal)
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to extract candidates: %w", err)
	}

	matcher := NewNeighborhoodMatcher(portal.Neighborhoods)

	for _, candidate := range candidates {
		location := candidate.Payload.Street + " " + candidate.Payload.Neighborhood + " " + candidate.Payload.City
		if !matcher.Matches(location) {
			skipped++
			continue
		}

		exists, err := f.captureRepo.ExistsBySourceURL(candidate.SourceURL)
		if err != nil {
			return saved, skipped, duplicates, fmt.Errorf("failed to check existing capture: %w", err)
		}
		if exists {
			duplicates++
			continue
		}

		if candidate.Payload.Description == "" && portal.Settings.DetailDescription {
			f.enrichDescription(ctx, &candidate, portal)
		}

		payload, err := candidate.Payload.Encode()
		if err != nil {
			return saved, skipped, duplicates, fmt.Errorf("failed to encode payload: %w", err)
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return saved, skipped, duplicates, err
		}

		capture := database.RawCapture{
			ID:               uuid.NewString(),
			SourceURL:        candidate.SourceURL,
			Title:            candidate.Payload.Title,
			RawData:          payload,
			NeedsProcessing:  true,
			ProcessingStatus: database.StatusPending,
		}
		if err := f.captureRepo.Insert(capture); err != nil {
			return saved, skipped, duplicates, fmt.Errorf("failed to insert raw capture: %w", err)
		}

		saved++
	}

	return saved, skipped, duplicates, nil
}

// enrichDescription is best-effort: a listing without a description is
// still a valid capture, so extraction failures only log.
func (f *Fetcher) enrichDescription(ctx context.Context, candidate *Candidate, portal *portals.Config) {
	data, err := f.fetchPage(ctx, candidate.SourceURL, portal)
	if err != nil {
		slog.Debug("Failed to fetch detail page", "url", candidate.SourceURL, "error", err)
		return
	}

	description, err := f.descExtractor.Run(data)
	if err != nil {
		slog.Debug("Failed to extract description", "url", candidate.SourceURL, "error", err)
		return
	}

	candidate.Payload.Description = description
}

func (f *Fetcher) fetchPage(ctx context.Context, pageURL string, portal *portals.Config) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeout := f.fetchTimeout
	if portal.Settings.Timeout > 0 {
		timeout = time.Duration(portal.Settings.Timeout) * time.Second
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
