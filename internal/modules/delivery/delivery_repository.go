package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

// RecordRepositoryInterface defines the contract for the local delivery
// record store. Records are created once from the provider's creation
// response and mutated in place by webhook events; they are never deleted.
type RecordRepositoryInterface interface {
	Create(ctx context.Context, rec *models.DeliveryRecord) error
	FindByOrderID(ctx context.Context, orderID string) (*models.DeliveryRecord, error)
	FindByDeliveryID(ctx context.Context, deliveryID string) (*models.DeliveryRecord, error)
	UpdateStatus(ctx context.Context, deliveryID, status string, eventAt time.Time) error
	UpdateCourier(ctx context.Context, deliveryID string, courier models.Courier) error
}

// RecordRepository implements RecordRepositoryInterface on Postgres.
type RecordRepository struct {
	db *pgxpool.Pool
}

// NewRecordRepository creates a new delivery record repository.
func NewRecordRepository(db *pgxpool.Pool) RecordRepositoryInterface {
	return &RecordRepository{db: db}
}

const recordColumns = `
	id, order_id, delivery_id, external_id, status, fee, tip,
	tracking_url, batch_id, courier_name, courier_rating,
	courier_vehicle_type, courier_phone, courier_image_url,
	courier_location, last_event_at, created_at, updated_at`

// Create inserts a new delivery record.
func (r *RecordRepository) Create(ctx context.Context, rec *models.DeliveryRecord) error {
	query := `
		INSERT INTO delivery_records (
			id, order_id, delivery_id, external_id, status, fee, tip,
			tracking_url, batch_id, courier_name, courier_rating,
			courier_vehicle_type, courier_phone, courier_image_url, courier_location
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.OrderID, rec.DeliveryID, rec.ExternalID, rec.Status,
		rec.Fee, rec.Tip, rec.TrackingURL, rec.BatchID,
		rec.Courier.Name, rec.Courier.Rating, rec.Courier.VehicleType,
		rec.Courier.PhoneNumber, rec.Courier.ImageURL, rec.Courier.Location,
	)
	if err != nil {
		return fmt.Errorf("repository.CreateDeliveryRecord: %w", err)
	}
	return nil
}

// FindByOrderID resolves the delivery record attached to an order.
func (r *RecordRepository) FindByOrderID(ctx context.Context, orderID string) (*models.DeliveryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM delivery_records WHERE order_id = $1`
	return r.scanRecord(r.db.QueryRow(ctx, query, orderID))
}

// FindByDeliveryID resolves a record by the provider's delivery id.
func (r *RecordRepository) FindByDeliveryID(ctx context.Context, deliveryID string) (*models.DeliveryRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM delivery_records WHERE delivery_id = $1`
	return r.scanRecord(r.db.QueryRow(ctx, query, deliveryID))
}

// UpdateStatus applies a status event. Last-write-wins on the status column;
// eventAt is remembered so newer events can be told apart from stale ones.
func (r *RecordRepository) UpdateStatus(ctx context.Context, deliveryID, status string, eventAt time.Time) error {
	query := `
		UPDATE delivery_records
		SET status = $2, last_event_at = $3, updated_at = now()
		WHERE delivery_id = $1`
	tag, err := r.db.Exec(ctx, query, deliveryID, status, eventAt)
	if err != nil {
		return fmt.Errorf("repository.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateCourier overwrites the courier sub-record from a courier event.
func (r *RecordRepository) UpdateCourier(ctx context.Context, deliveryID string, courier models.Courier) error {
	query := `
		UPDATE delivery_records
		SET courier_name = $2, courier_rating = $3, courier_vehicle_type = $4,
		    courier_phone = $5, courier_image_url = $6, courier_location = $7,
		    updated_at = now()
		WHERE delivery_id = $1`
	tag, err := r.db.Exec(ctx, query, deliveryID,
		courier.Name, courier.Rating, courier.VehicleType,
		courier.PhoneNumber, courier.ImageURL, courier.Location,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateCourier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *RecordRepository) scanRecord(row pgx.Row) (*models.DeliveryRecord, error) {
	var rec models.DeliveryRecord
	var lastEventAt *time.Time
	err := row.Scan(
		&rec.ID, &rec.OrderID, &rec.DeliveryID, &rec.ExternalID, &rec.Status,
		&rec.Fee, &rec.Tip, &rec.TrackingURL, &rec.BatchID,
		&rec.Courier.Name, &rec.Courier.Rating, &rec.Courier.VehicleType,
		&rec.Courier.PhoneNumber, &rec.Courier.ImageURL, &rec.Courier.Location,
		&lastEventAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan delivery record: %w", err)
	}
	if lastEventAt != nil {
		rec.LastEventAt = *lastEventAt
	}
	return &rec, nil
}
