package database

import (
	"database/sql"
	"fmt"
	"time"
)

type leadRepository struct {
	db *DB
}

func NewLeadRepository(db *DB) LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) Insert(lead Lead) error {
	_, err := r.db.Exec(`
		INSERT INTO leads (id, code, name, phone, email, message, property_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, lead.ID, lead.Code, lead.Name, lead.Phone, lead.Email, lead.Message,
		nullString(lead.PropertyCode), time.Now().UTC())

	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	return nil
}

func (r *leadRepository) CodeExists(code string) (bool, error) {
	var id string
	err := r.db.QueryRow("SELECT id FROM leads WHERE code = ? LIMIT 1", code).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lead code: %w", err)
	}

	return true, nil
}

func (r *leadRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM leads").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}
