package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

// RepositoryInterface defines the contract for reading and updating the
// host-owned order/invoice documents. This integration only reads trigger
// and address fields and writes the delivery status mirrors; it never owns
// the order lifecycle.
type RepositoryInterface interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	UpdateDeliveryStatus(ctx context.Context, orderID, status, partnerStatus string) error
	MarkItemsDelivered(ctx context.Context, orderID string) error
	SetTrackingURL(ctx context.Context, orderID, trackingURL string) error
	GetCustomerPhones(ctx context.Context, customerCode string) ([]models.ContactNumber, error)
}

// Repository implements RepositoryInterface on Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new order repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

// FindByID loads an order with its line items and quotes, newest quote first.
func (r *Repository) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	query := `
		SELECT id, customer, customer_name, guest_name, guest_phone,
		       address_line1, city, state, postal_code, country,
		       service_type, kitchen_status, status, partner_status,
		       tracking_url, total, created_at, updated_at
		FROM orders WHERE id = $1`

	var o models.Order
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.Customer, &o.CustomerName, &o.GuestName, &o.GuestPhone,
		&o.AddressLine1, &o.City, &o.State, &o.PostalCode, &o.Country,
		&o.ServiceType, &o.KitchenStatus, &o.Status, &o.PartnerStatus,
		&o.TrackingURL, &o.Total, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}

	if o.Items, err = r.listItems(ctx, orderID); err != nil {
		return nil, err
	}
	if o.Quotes, err = r.listQuotes(ctx, orderID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) listItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	query := `
		SELECT item_name, qty, uom, rate, delivered
		FROM order_items WHERE order_id = $1 ORDER BY idx`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.listItems: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.Name, &item.Qty, &item.UOM, &item.Rate, &item.Delivered); err != nil {
			return nil, fmt.Errorf("repository.listItems: scan: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) listQuotes(ctx context.Context, orderID string) ([]models.QuoteRef, error) {
	query := `
		SELECT quote_id, COALESCE(expires_at, 'epoch'::timestamptz), created_at
		FROM order_quotes WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository.listQuotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.QuoteRef
	for rows.Next() {
		var q models.QuoteRef
		if err := rows.Scan(&q.QuoteID, &q.ExpiresAt, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.listQuotes: scan: %w", err)
		}
		// The epoch sentinel means the provider reported no expiry.
		if q.ExpiresAt.Unix() == 0 {
			q.ExpiresAt = time.Time{}
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// UpdateDeliveryStatus writes the order-status and partner-status mirrors.
func (r *Repository) UpdateDeliveryStatus(ctx context.Context, orderID, status, partnerStatus string) error {
	query := `UPDATE orders SET status = $2, partner_status = $3, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, orderID, status, partnerStatus)
	if err != nil {
		return fmt.Errorf("repository.UpdateDeliveryStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// MarkItemsDelivered flags every line item of the order as delivered.
func (r *Repository) MarkItemsDelivered(ctx context.Context, orderID string) error {
	query := `UPDATE order_items SET delivered = TRUE WHERE order_id = $1`
	if _, err := r.db.Exec(ctx, query, orderID); err != nil {
		return fmt.Errorf("repository.MarkItemsDelivered: %w", err)
	}
	return nil
}

// SetTrackingURL writes the tracking-URL mirror field onto the order.
func (r *Repository) SetTrackingURL(ctx context.Context, orderID, trackingURL string) error {
	query := `UPDATE orders SET tracking_url = $2, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, orderID, trackingURL)
	if err != nil {
		return fmt.Errorf("repository.SetTrackingURL: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetCustomerPhones returns the contact list for a registered customer.
func (r *Repository) GetCustomerPhones(ctx context.Context, customerCode string) ([]models.ContactNumber, error) {
	query := `
		SELECT phone, is_primary_phone, is_primary_mobile
		FROM customer_contacts WHERE customer = $1 ORDER BY idx`

	rows, err := r.db.Query(ctx, query, customerCode)
	if err != nil {
		return nil, fmt.Errorf("repository.GetCustomerPhones: %w", err)
	}
	defer rows.Close()

	var contacts []models.ContactNumber
	for rows.Next() {
		var c models.ContactNumber
		if err := rows.Scan(&c.Phone, &c.IsPrimaryPhone, &c.IsPrimaryMobile); err != nil {
			return nil, fmt.Errorf("repository.GetCustomerPhones: scan: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
