package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrLinkNotFound is returned when an outcome is recorded for a link that
// no longer exists in the registry.
var ErrLinkNotFound = errors.New("link not found")

type linkRepository struct {
	db *DB
}

func NewLinkRepository(db *DB) LinkRepository {
	return &linkRepository{db: db}
}

const linkColumns = `id, url, type, COALESCE(description, ''), processed,
	processing_status, processing_started_at, processed_at,
	COALESCE(error, ''), html_pages_saved, created_at, updated_at`

func scanLink(row interface{ Scan(...any) error }) (*Link, error) {
	var link Link
	err := row.Scan(
		&link.ID, &link.URL, &link.Type, &link.Description, &link.Processed,
		&link.ProcessingStatus, &link.ProcessingStartedAt, &link.ProcessedAt,
		&link.Error, &link.HTMLPagesSaved, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListPending() ([]Link, error) {
	rows, err := r.db.Query(`
		SELECT ` + linkColumns + `
		FROM links
		WHERE processed = 0
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		links = append(links, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link rows: %w", err)
	}

	return links, nil
}

func (r *linkRepository) GetByID(id string) (*Link, error) {
	link, err := scanLink(r.db.QueryRow(`
		SELECT `+linkColumns+`
		FROM links
		WHERE id = ?
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// Insert registers a seed link. Links already present (by URL) are left
// untouched, which keeps seeding idempotent.
func (r *linkRepository) Insert(link Link) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO links (id, url, type, description, processed, processing_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
	`, link.ID, link.URL, link.Type, link.Description, StatusPending, now, now)

	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}

	return nil
}

// MarkProcessing records the start of a visit. The link stays unprocessed;
// only a terminal outcome flips the processed flag.
func (r *linkRepository) MarkProcessing(id string) error {
	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE links
		SET processing_status = ?, processing_started_at = ?, updated_at = ?
		WHERE id = ?
	`, StatusProcessing, now, now, id)

	if err != nil {
		return fmt.Errorf("failed to mark link processing: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// MarkOutcome sets processed=true together with a terminal status, in a
// single statement so the invariant cannot be observed half-applied.
func (r *linkRepository) MarkOutcome(id string, status ProcessingStatus, outcome LinkOutcome) error {
	if !status.IsTerminal() {
		return fmt.Errorf("link outcome requires a terminal status, got %q", status)
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE links
		SET processed = 1,
		    processing_status = ?,
		    processed_at = ?,
		    error = ?,
		    html_pages_saved = ?,
		    updated_at = ?
		WHERE id = ?
	`, status, now, nullString(outcome.Error), outcome.PagesSaved, now, id)

	if err != nil {
		return fmt.Errorf("failed to mark link outcome: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// ResetAll clears the processed flag and every transient field on all links.
// Re-running yields the same end-state.
func (r *linkRepository) ResetAll() (int, error) {
	result, err := r.db.Exec(`
		UPDATE links
		SET processed = 0,
		    processing_status = ?,
		    processing_started_at = NULL,
		    processed_at = NULL,
		    error = NULL,
		    html_pages_saved = NULL,
		    updated_at = ?
	`, StatusPending, time.Now().UTC())

	if err != nil {
		return 0, fmt.Errorf("failed to reset links: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}

	return int(affected), nil
}

func (r *linkRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM links").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

func (r *linkRepository) CountPending() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM links WHERE processed = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending links: %w", err)
	}
	return count, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
