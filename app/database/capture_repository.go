package database

import (
	"database/sql"
	"fmt"
	"time"
)

type captureRepository struct {
	db *DB
}

func NewCaptureRepository(db *DB) CaptureRepository {
	return &captureRepository{db: db}
}

const captureColumns = `id, source_url, COALESCE(title, ''), COALESCE(raw_data, ''),
	COALESCE(needs_processing, 0), COALESCE(processing_status, ''),
	processing_started_at, COALESCE(ignore_reason, ''), COALESCE(error, ''),
	processed_at, COALESCE(processed_property_id, ''), created_at`

func scanCapture(row interface{ Scan(...any) error }) (*RawCapture, error) {
	var capture RawCapture
	var rawData string
	err := row.Scan(
		&capture.ID, &capture.SourceURL, &capture.Title, &rawData,
		&capture.NeedsProcessing, &capture.ProcessingStatus,
		&capture.ProcessingStartedAt, &capture.IgnoreReason, &capture.Error,
		&capture.ProcessedAt, &capture.ProcessedPropertyID, &capture.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	capture.RawData = []byte(rawData)
	return &capture, nil
}

func (r *captureRepository) Insert(capture RawCapture) error {
	_, err := r.db.Exec(`
		INSERT INTO properties_raw (id, source_url, title, raw_data, needs_processing, processing_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, capture.ID, capture.SourceURL, capture.Title, string(capture.RawData),
		capture.NeedsProcessing, capture.ProcessingStatus, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to insert raw capture: %w", err)
	}

	return nil
}

func (r *captureRepository) GetByID(id string) (*RawCapture, error) {
	capture, err := scanCapture(r.db.QueryRow(`
		SELECT `+captureColumns+`
		FROM properties_raw
		WHERE id = ?
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw capture: %w", err)
	}

	return capture, nil
}

func (r *captureRepository) ExistsBySourceURL(sourceURL string) (bool, error) {
	var id string
	err := r.db.QueryRow(`
		SELECT id FROM properties_raw WHERE source_url = ? LIMIT 1
	`, sourceURL).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check capture by source URL: %w", err)
	}

	return true, nil
}

func (r *captureRepository) ListPending(limit int) ([]RawCapture, error) {
	return r.listWhere("processing_status = ? AND needs_processing = 1", StatusPending, limit)
}

func (r *captureRepository) ListByStatus(status ProcessingStatus, limit int) ([]RawCapture, error) {
	return r.listWhere("processing_status = ?", status, limit)
}

func (r *captureRepository) listWhere(where string, status ProcessingStatus, limit int) ([]RawCapture, error) {
	rows, err := r.db.Query(`
		SELECT `+captureColumns+`
		FROM properties_raw
		WHERE `+where+`
		ORDER BY created_at
		LIMIT ?
	`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw captures: %w", err)
	}
	defer rows.Close()

	var captures []RawCapture
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw capture row: %w", err)
		}
		captures = append(captures, *capture)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw capture rows: %w", err)
	}

	return captures, nil
}

// Transition applies from→to as a conditional write: the update succeeds
// only if the stored status still equals the expected prior status. The
// returned bool reports whether this caller won the transition. Transitions
// outside the table and terminal updates missing their reason/error field
// are rejected outright.
func (r *captureRepository) Transition(id string, from, to ProcessingStatus, update CaptureUpdate) (bool, error) {
	if err := ValidateTransition(from, to); err != nil {
		return false, err
	}

	switch to {
	case StatusIgnored:
		if update.IgnoreReason == "" {
			return false, fmt.Errorf("transition to ignored requires an ignore reason")
		}
	case StatusError:
		if update.Error == "" {
			return false, fmt.Errorf("transition to error requires an error message")
		}
	case StatusCompleted:
		if update.ProcessedPropertyID == "" {
			return false, fmt.Errorf("transition to completed requires a property ID")
		}
	}

	var result sql.Result
	var err error
	now := time.Now().UTC()

	if to == StatusProcessing {
		result, err = r.db.Exec(`
			UPDATE properties_raw
			SET processing_status = ?, processing_started_at = ?
			WHERE id = ? AND processing_status = ?
		`, to, now, id, from)
	} else {
		processedAt := update.ProcessedAt
		if processedAt == nil && to == StatusCompleted {
			processedAt = &now
		}
		result, err = r.db.Exec(`
			UPDATE properties_raw
			SET processing_status = ?,
			    ignore_reason = ?,
			    error = ?,
			    processed_at = ?,
			    processed_property_id = ?
			WHERE id = ? AND processing_status = ?
		`, to, nullString(update.IgnoreReason), nullString(update.Error),
			processedAt, nullString(update.ProcessedPropertyID), id, from)
	}

	if err != nil {
		return false, fmt.Errorf("failed to transition raw capture: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *captureRepository) CountByStatus() (map[ProcessingStatus]int, error) {
	rows, err := r.db.Query(`
		SELECT COALESCE(processing_status, ''), COUNT(*)
		FROM properties_raw
		GROUP BY processing_status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count raw captures: %w", err)
	}
	defer rows.Close()

	counts := make(map[ProcessingStatus]int)
	for rows.Next() {
		var status ProcessingStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}

	return counts, nil
}

// BackfillNeedsProcessing sets needs_processing=true only where the field
// is absent. Present values are never overwritten.
func (r *captureRepository) BackfillNeedsProcessing() (int, error) {
	result, err := r.db.Exec(`
		UPDATE properties_raw SET needs_processing = 1 WHERE needs_processing IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill needs_processing: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return int(affected), nil
}

// BackfillStatus sets processing_status=pending only where the field is
// absent.
func (r *captureRepository) BackfillStatus() (int, error) {
	result, err := r.db.Exec(`
		UPDATE properties_raw SET processing_status = ?
		WHERE processing_status IS NULL OR processing_status = ''
	`, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to backfill processing_status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return int(affected), nil
}

func (r *captureRepository) ListMissingRawData() ([]RawCapture, error) {
	rows, err := r.db.Query(`
		SELECT ` + captureColumns + `
		FROM properties_raw
		WHERE raw_data IS NULL OR raw_data = ''
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures missing raw_data: %w", err)
	}
	defer rows.Close()

	var captures []RawCapture
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw capture row: %w", err)
		}
		captures = append(captures, *capture)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw capture rows: %w", err)
	}

	return captures, nil
}

// SetRawDataIfMissing writes raw_data only when the stored value is still
// absent, so a concurrent write is never clobbered.
func (r *captureRepository) SetRawDataIfMissing(id string, data []byte) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE properties_raw SET raw_data = ?
		WHERE id = ? AND (raw_data IS NULL OR raw_data = '')
	`, string(data), id)
	if err != nil {
		return false, fmt.Errorf("failed to set raw_data: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return affected > 0, nil
}
