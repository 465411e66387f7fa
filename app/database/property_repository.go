package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type propertyRepository struct {
	db *DB
}

func NewPropertyRepository(db *DB) PropertyRepository {
	return &propertyRepository{db: db}
}

const propertyColumns = `id, code, title, COALESCE(description, ''), price,
	COALESCE(type, ''), bedrooms, bathrooms, area,
	COALESCE(street, ''), COALESCE(neighborhood, ''), COALESCE(city, ''), COALESCE(state, ''),
	COALESCE(images, '[]'), COALESCE(features, '[]'),
	COALESCE(contact_name, ''), COALESCE(contact_phone, ''), COALESCE(contact_email, ''),
	created_at, updated_at`

func scanProperty(row interface{ Scan(...any) error }) (*Property, error) {
	var p Property
	var images, features string
	err := row.Scan(
		&p.ID, &p.Code, &p.Title, &p.Description, &p.Price,
		&p.Type, &p.Bedrooms, &p.Bathrooms, &p.Area,
		&p.Street, &p.Neighborhood, &p.City, &p.State,
		&images, &features,
		&p.ContactName, &p.ContactPhone, &p.ContactEmail,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}

	return &p, nil
}

func (r *propertyRepository) Insert(p Property) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.Exec(`
		INSERT INTO properties (
			id, code, title, description, price, type, bedrooms, bathrooms, area,
			street, neighborhood, city, state, images, features,
			contact_name, contact_phone, contact_email, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Code, p.Title, p.Description, p.Price, p.Type, p.Bedrooms, p.Bathrooms,
		p.Area, p.Street, p.Neighborhood, p.City, p.State, string(images), string(features),
		p.ContactName, p.ContactPhone, p.ContactEmail, now, now)

	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}

	return nil
}

func (r *propertyRepository) GetByID(id string) (*Property, error) {
	p, err := scanProperty(r.db.QueryRow(`
		SELECT `+propertyColumns+` FROM properties WHERE id = ?
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	return p, nil
}

func (r *propertyRepository) GetByCode(code string) (*Property, error) {
	p, err := scanProperty(r.db.QueryRow(`
		SELECT `+propertyColumns+` FROM properties WHERE code = ?
	`, code))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property by code: %w", err)
	}

	return p, nil
}

func (r *propertyRepository) CodeExists(code string) (bool, error) {
	var id string
	err := r.db.QueryRow("SELECT id FROM properties WHERE code = ? LIMIT 1", code).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check property code: %w", err)
	}

	return true, nil
}

// Search applies the indexed filters in SQL; the free-text filter runs in
// memory afterwards, as a case-insensitive substring match over title,
// description and address fields. Numeric ranges are inclusive.
func (r *propertyRepository) Search(filter PropertyFilter) ([]Property, error) {
	query := "SELECT " + propertyColumns + " FROM properties WHERE 1=1"
	var args []any

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.MinPrice != nil {
		query += " AND price >= ?"
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query += " AND price <= ?"
		args = append(args, *filter.MaxPrice)
	}
	if filter.City != "" {
		query += " AND city = ? COLLATE NOCASE"
		args = append(args, filter.City)
	}
	if filter.Neighborhood != "" {
		query += " AND neighborhood = ? COLLATE NOCASE"
		args = append(args, filter.Neighborhood)
	}
	if filter.Bedrooms != nil {
		query += " AND bedrooms = ?"
		args = append(args, *filter.Bedrooms)
	}
	if filter.Bathrooms != nil {
		query += " AND bathrooms = ?"
		args = append(args, *filter.Bathrooms)
	}
	if filter.MinArea != nil {
		query += " AND area >= ?"
		args = append(args, *filter.MinArea)
	}
	if filter.MaxArea != nil {
		query += " AND area <= ?"
		args = append(args, *filter.MaxArea)
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search properties: %w", err)
	}
	defer rows.Close()

	var properties []Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		properties = append(properties, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}

	if filter.Query != "" {
		properties = filterByText(properties, filter.Query)
	}

	return properties, nil
}

func filterByText(properties []Property, query string) []Property {
	needle := strings.ToLower(query)
	matched := make([]Property, 0, len(properties))
	for _, p := range properties {
		haystack := strings.ToLower(strings.Join([]string{
			p.Title, p.Description, p.Street, p.Neighborhood, p.City, p.State,
		}, " "))
		if strings.Contains(haystack, needle) {
			matched = append(matched, p)
		}
	}
	return matched
}

func (r *propertyRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM properties").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count properties: %w", err)
	}
	return count, nil
}

// ListCreatedAtRaw returns created_at values as stored, bypassing the
// driver's time conversion so malformed values can be classified.
func (r *propertyRepository) ListCreatedAtRaw() ([]AuditedDate, error) {
	rows, err := r.db.Query(`SELECT id, CAST(created_at AS TEXT) FROM properties`)
	if err != nil {
		return nil, fmt.Errorf("failed to list property dates: %w", err)
	}
	defer rows.Close()

	var dates []AuditedDate
	for rows.Next() {
		var d AuditedDate
		var raw sql.NullString
		if err := rows.Scan(&d.ID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan date row: %w", err)
		}
		d.Raw = raw.String
		d.Set = raw.Valid && raw.String != ""
		dates = append(dates, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating date rows: %w", err)
	}

	return dates, nil
}
