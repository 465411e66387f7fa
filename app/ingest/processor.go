package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vilaverde/imovelhub/app/cfg"
	"github.com/vilaverde/imovelhub/app/codes"
	"github.com/vilaverde/imovelhub/app/database"
)

// Processor promotes pending raw captures into canonical property records.
// Each capture is its own atomic unit: validation failures park it as
// ignored, runtime failures as error, and neither writes a property row.
type Processor struct {
	captureRepo  database.CaptureRepository
	propertyRepo database.PropertyRepository
	codeGen      *codes.Generator
	batchSize    int
	limiter      *rate.Limiter
}

// ProcessStats summarizes one processor pass.
type ProcessStats struct {
	Taken     int
	Completed int
	Ignored   int
	Failed    int
	Skipped   int
}

func NewProcessor(captureRepo database.CaptureRepository, propertyRepo database.PropertyRepository,
	codeGen *codes.Generator) *Processor {
	c := cfg.Get()

	return &Processor{
		captureRepo:  captureRepo,
		propertyRepo: propertyRepo,
		codeGen:      codeGen,
		batchSize:    c.BatchSize,
		limiter:      rate.NewLimiter(rate.Every(time.Duration(c.WriteDelayMs)*time.Millisecond), 1),
	}
}

// Run takes one bounded batch of pending captures through the state
// machine. The pending→processing conditional write is the only
// serialization point; a concurrent run that loses the guard skips the
// record.
func (p *Processor) Run(ctx context.Context) (ProcessStats, error) {
	var stats ProcessStats

	captures, err := p.captureRepo.ListPending(p.batchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to list pending captures: %w", err)
	}

	for _, capture := range captures {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		won, err := p.captureRepo.Transition(capture.ID, database.StatusPending, database.StatusProcessing, database.CaptureUpdate{})
		if err != nil {
			slog.Warn("Failed to claim capture", "capture_id", capture.ID, "error", err)
			stats.Failed++
			continue
		}
		if !won {
			stats.Skipped++
			continue
		}

		stats.Taken++

		if err := p.limiter.Wait(ctx); err != nil {
			return stats, err
		}

		outcome := p.promote(capture)
		switch outcome {
		case database.StatusCompleted:
			stats.Completed++
		case database.StatusIgnored:
			stats.Ignored++
		default:
			stats.Failed++
		}
	}

	slog.Info("Processor run completed", "taken", stats.Taken,
		"completed", stats.Completed, "ignored", stats.Ignored,
		"failed", stats.Failed, "skipped", stats.Skipped)

	return stats, nil
}

// promote runs steps 3-5 for one claimed capture and returns the terminal
// status it reached.
func (p *Processor) promote(capture database.RawCapture) database.ProcessingStatus {
	payload, err := database.DecodeListingPayload(capture.RawData)
	if err != nil {
		return p.ignore(capture, fmt.Sprintf("unreadable payload: %v", err))
	}

	property, reason := buildProperty(payload)
	if reason != "" {
		return p.ignore(capture, reason)
	}

	code, err := p.codeGen.Generate(codes.PropertyPrefix, p.propertyRepo)
	if err != nil {
		return p.fail(capture, fmt.Errorf("failed to generate property code: %w", err))
	}
	property.Code = code

	if err := p.propertyRepo.Insert(*property); err != nil {
		return p.fail(capture, fmt.Errorf("failed to insert property: %w", err))
	}

	now := time.Now().UTC()
	won, err := p.captureRepo.Transition(capture.ID, database.StatusProcessing, database.StatusCompleted, database.CaptureUpdate{
		ProcessedAt:         &now,
		ProcessedPropertyID: property.ID,
	})
	if err != nil || !won {
		slog.Error("Failed to mark capture completed", "capture_id", capture.ID,
			"property_id", property.ID, "error", err)
		return database.StatusError
	}

	slog.Info("Capture promoted", "capture_id", capture.ID, "property_code", property.Code)
	return database.StatusCompleted
}

func (p *Processor) ignore(capture database.RawCapture, reason string) database.ProcessingStatus {
	won, err := p.captureRepo.Transition(capture.ID, database.StatusProcessing, database.StatusIgnored, database.CaptureUpdate{
		IgnoreReason: reason,
	})
	if err != nil || !won {
		slog.Error("Failed to mark capture ignored", "capture_id", capture.ID, "reason", reason, "error", err)
		return database.StatusError
	}

	slog.Debug("Capture ignored", "capture_id", capture.ID, "reason", reason)
	return database.StatusIgnored
}

func (p *Processor) fail(capture database.RawCapture, cause error) database.ProcessingStatus {
	won, err := p.captureRepo.Transition(capture.ID, database.StatusProcessing, database.StatusError, database.CaptureUpdate{
		Error: cause.Error(),
	})
	if err != nil || !won {
		slog.Error("Failed to mark capture errored", "capture_id", capture.ID, "cause", cause, "error", err)
	}
	return database.StatusError
}

// buildProperty validates the payload and normalizes it into the property
// shape. A non-empty reason names the field that failed; the capture is
// parked as ignored and no property is written.
func buildProperty(payload *database.ListingPayload) (*database.Property, string) {
	if payload.Title == "" {
		return nil, "missing required field: title"
	}
	if payload.Price == "" {
		return nil, "missing required field: price"
	}
	if payload.Area == "" {
		return nil, "missing required field: area"
	}

	price, err := parsePrice(payload.Price)
	if err != nil {
		return nil, fmt.Sprintf("invalid price: %v", err)
	}

	area, err := parseArea(payload.Area)
	if err != nil {
		return nil, fmt.Sprintf("invalid area: %v", err)
	}

	bedrooms, err := parseCount(payload.Bedrooms)
	if err != nil {
		return nil, fmt.Sprintf("invalid bedrooms: %v", err)
	}

	bathrooms, err := parseCount(payload.Bathrooms)
	if err != nil {
		return nil, fmt.Sprintf("invalid bathrooms: %v", err)
	}

	return &database.Property{
		ID:           uuid.NewString(),
		Title:        payload.Title,
		Description:  payload.Description,
		Price:        price,
		Type:         payload.PropertyType,
		Bedrooms:     bedrooms,
		Bathrooms:    bathrooms,
		Area:         area,
		Street:       payload.Street,
		Neighborhood: payload.Neighborhood,
		City:         payload.City,
		State:        payload.State,
		Images:       payload.Images,
		Features:     payload.Features,
		ContactName:  payload.ContactName,
		ContactPhone: payload.ContactPhone,
		ContactEmail: payload.ContactEmail,
	}, ""
}
