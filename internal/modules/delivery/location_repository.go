package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

// LocationRepositoryInterface reads the POS settings document and the
// fulfillment locations it points at. Both are host-owned configuration.
type LocationRepositoryInterface interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	FindLocation(ctx context.Context, locationID string) (*models.Location, error)
}

// LocationRepository implements LocationRepositoryInterface on Postgres.
type LocationRepository struct {
	db *pgxpool.Pool
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(db *pgxpool.Pool) LocationRepositoryInterface {
	return &LocationRepository{db: db}
}

// GetSettings loads the single POS settings row.
func (r *LocationRepository) GetSettings(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT default_customer, website_customer, default_location_id
		FROM pos_settings LIMIT 1`

	var s models.Settings
	err := r.db.QueryRow(ctx, query).Scan(&s.DefaultCustomer, &s.WebsiteCustomer, &s.DefaultLocationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: POS settings", models.ErrConfiguration)
		}
		return nil, fmt.Errorf("repository.GetSettings: %w", err)
	}
	return &s, nil
}

// FindLocation loads a fulfillment location with its contact numbers.
func (r *LocationRepository) FindLocation(ctx context.Context, locationID string) (*models.Location, error) {
	query := `
		SELECT id, name, address_line1, city, state, postal_code, country
		FROM locations WHERE id = $1`

	var loc models.Location
	err := r.db.QueryRow(ctx, query, locationID).Scan(
		&loc.ID, &loc.Name, &loc.AddressLine1, &loc.City, &loc.State, &loc.PostalCode, &loc.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindLocation: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT phone, is_primary_phone, is_primary_mobile FROM location_contacts WHERE location_id = $1 ORDER BY idx`,
		locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.FindLocation: contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.ContactNumber
		if err := rows.Scan(&c.Phone, &c.IsPrimaryPhone, &c.IsPrimaryMobile); err != nil {
			return nil, fmt.Errorf("repository.FindLocation: scan contact: %w", err)
		}
		loc.Contacts = append(loc.Contacts, c)
	}
	return &loc, rows.Err()
}
