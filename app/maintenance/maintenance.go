// Package maintenance holds the idempotent repair and audit utilities run
// against the pipeline stores. The pipeline has no self-healing retry for
// terminal states; these tools exist to surface anomalies and reset state
// for manual triage.
package maintenance

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vilaverde/imovelhub/app/database"
	"github.com/vilaverde/imovelhub/app/portals"
)

type Service struct {
	linkRepo     database.LinkRepository
	captureRepo  database.CaptureRepository
	propertyRepo database.PropertyRepository
	portalCache  *portals.Cache
}

func NewService(linkRepo database.LinkRepository, captureRepo database.CaptureRepository,
	propertyRepo database.PropertyRepository, portalCache *portals.Cache) *Service {
	return &Service{
		linkRepo:     linkRepo,
		captureRepo:  captureRepo,
		propertyRepo: propertyRepo,
		portalCache:  portalCache,
	}
}

// DateAudit classifies property created_at values. Read-only.
type DateAudit struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Missing int `json:"missing"`
}

// storedTimeLayouts covers the formats sqlite rows have accumulated over
// the store's life (driver text format, bare datetimes, date-only).
var storedTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (s *Service) AuditDateFields() (DateAudit, error) {
	var audit DateAudit

	dates, err := s.propertyRepo.ListCreatedAtRaw()
	if err != nil {
		return audit, fmt.Errorf("failed to list property dates: %w", err)
	}

	for _, d := range dates {
		audit.Total++

		if !d.Set {
			audit.Missing++
			continue
		}

		if parseStoredTime(d.Raw) {
			audit.Valid++
		} else {
			audit.Invalid++
			slog.Warn("Property has invalid created_at", "property_id", d.ID, "raw", d.Raw)
		}
	}

	return audit, nil
}

func parseStoredTime(raw string) bool {
	for _, layout := range storedTimeLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return true
		}
	}
	return false
}

// BackfillReport counts the fields set by one backfill pass.
type BackfillReport struct {
	NeedsProcessing int `json:"needs_processing"`
	Status          int `json:"processing_status"`
	RawData         int `json:"raw_data"`
}

// BackfillCaptureFields fills only absent fields on raw captures: missing
// needs_processing defaults to true, missing processing_status to pending,
// and missing raw_data is reconstructed from the row's own non-pipeline
// columns. Present values are never overwritten, so re-running is a no-op.
func (s *Service) BackfillCaptureFields() (BackfillReport, error) {
	var report BackfillReport

	n, err := s.captureRepo.BackfillNeedsProcessing()
	if err != nil {
		return report, err
	}
	report.NeedsProcessing = n

	n, err = s.captureRepo.BackfillStatus()
	if err != nil {
		return report, err
	}
	report.Status = n

	missing, err := s.captureRepo.ListMissingRawData()
	if err != nil {
		return report, err
	}

	for _, capture := range missing {
		payload := database.ListingPayload{Title: capture.Title}
		data, err := payload.Encode()
		if err != nil {
			return report, fmt.Errorf("failed to encode reconstructed payload: %w", err)
		}

		set, err := s.captureRepo.SetRawDataIfMissing(capture.ID, data)
		if err != nil {
			return report, err
		}
		if set {
			report.RawData++
		}
	}

	if report.NeedsProcessing > 0 || report.Status > 0 || report.RawData > 0 {
		slog.Info("Raw capture backfill applied", "needs_processing", report.NeedsProcessing,
			"processing_status", report.Status, "raw_data", report.RawData)
	}

	return report, nil
}

// ResetReport counts the links touched by one registry reset.
type ResetReport struct {
	Reset  int `json:"reset"`
	Seeded int `json:"seeded"`
}

// ResetLinks returns every link to the pending state, clearing transient
// fields. An empty registry is seeded from the portal templates instead of
// failing. Idempotent either way.
func (s *Service) ResetLinks() (ResetReport, error) {
	var report ResetReport

	total, err := s.linkRepo.Count()
	if err != nil {
		return report, err
	}

	if total == 0 {
		seeded, err := s.seedDefaults()
		if err != nil {
			return report, err
		}
		report.Seeded = seeded
		slog.Info("Link registry was empty, seeded portal defaults", "seeded", seeded)
		return report, nil
	}

	reset, err := s.linkRepo.ResetAll()
	if err != nil {
		return report, err
	}
	report.Reset = reset

	slog.Info("Link registry reset", "reset", reset)
	return report, nil
}

func (s *Service) seedDefaults() (int, error) {
	seeded := 0
	for portalName, portal := range s.portalCache.GetConfigs() {
		for _, seed := range portal.Seeds {
			link := database.Link{
				ID:          uuid.NewString(),
				URL:         seed.URL,
				Type:        portalName,
				Description: seed.Description,
			}
			if err := s.linkRepo.Insert(link); err != nil {
				return seeded, fmt.Errorf("failed to seed link %s: %w", seed.URL, err)
			}
			seeded++
		}
	}
	return seeded, nil
}

const defaultInspectLimit = 10

// InspectIgnored samples ignored captures for manual diagnosis of
// extraction quality. Read-only.
func (s *Service) InspectIgnored(limit int) ([]database.RawCapture, error) {
	if limit <= 0 {
		limit = defaultInspectLimit
	}
	return s.captureRepo.ListByStatus(database.StatusIgnored, limit)
}

// InspectCompleted samples completed captures, the other half of the
// side-by-side comparison.
func (s *Service) InspectCompleted(limit int) ([]database.RawCapture, error) {
	if limit <= 0 {
		limit = defaultInspectLimit
	}
	return s.captureRepo.ListByStatus(database.StatusCompleted, limit)
}
