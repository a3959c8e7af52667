package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Address is the structured address shape the delivery provider expects. It
// is serialized to a JSON string inside the pickup_address/dropoff_address
// fields of quote and delivery requests.
type Address struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	Country       string `json:"country"`
}

// Complete reports whether every address field is filled.
func (a Address) Complete() bool {
	return a.StreetAddress != "" && a.City != "" && a.State != "" && a.ZipCode != "" && a.Country != ""
}

// ContactDetails bundles an address with the name and phone number attached
// to one end of a delivery.
type ContactDetails struct {
	Address     Address
	Name        string
	PhoneNumber string
}

// ManifestItem is one transported line item declared to the provider. Price
// is in integer minor currency units (cents); the provider rejects
// fractional values, so the conversion from the invoice rate is strict.
type ManifestItem struct {
	Name              string `json:"name"`
	Quantity          int    `json:"quantity"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	Price             int    `json:"price"`
}

// QuoteRequest is the provider payload for creating a delivery quote.
// Addresses travel as JSON-encoded strings per the provider contract.
type QuoteRequest struct {
	PickupAddress      string  `json:"pickup_address"`
	DropoffAddress     string  `json:"dropoff_address"`
	PickupReadyDt      string  `json:"pickup_ready_dt,omitempty"`
	PickupDeadlineDt   string  `json:"pickup_deadline_dt,omitempty"`
	DropoffReadyDt     string  `json:"dropoff_ready_dt,omitempty"`
	DropoffDeadlineDt  string  `json:"dropoff_deadline_dt,omitempty"`
	DropoffPhoneNumber string  `json:"dropoff_phone_number,omitempty"`
	ManifestTotalValue float64 `json:"manifest_total_value,omitempty"`
}

// DeliveryRequest is the provider payload for creating a delivery.
type DeliveryRequest struct {
	DropoffAddress     string         `json:"dropoff_address"`
	DropoffName        string         `json:"dropoff_name"`
	DropoffPhoneNumber string         `json:"dropoff_phone_number"`
	PickupAddress      string         `json:"pickup_address"`
	PickupName         string         `json:"pickup_name"`
	PickupPhoneNumber  string         `json:"pickup_phone_number"`
	ManifestItems      []ManifestItem `json:"manifest_items"`
	ManifestReference  string         `json:"manifest_reference"`
	ManifestTotalValue float64        `json:"manifest_total_value,omitempty"`
	QuoteID            string         `json:"quote_id,omitempty"`
	IdempotencyKey     string         `json:"idempotency_key"`
}

// DeliveryResponse is the subset of the provider's delivery body we persist
// locally. Handlers still return the raw provider JSON to callers.
type DeliveryResponse struct {
	ID          string   `json:"id"`
	UUID        string   `json:"uuid"`
	Status      string   `json:"status"`
	Fee         int64    `json:"fee"`
	Tip         int64    `json:"tip"`
	TrackingURL string   `json:"tracking_url"`
	BatchID     string   `json:"batch_id"`
	Courier     *Courier `json:"courier"`
}

// Courier is the provider-assigned courier attached to a delivery, refreshed
// by courier_update webhook events.
type Courier struct {
	Name        string          `json:"name"`
	Rating      float64         `json:"rating,omitempty"`
	VehicleType string          `json:"vehicle_type,omitempty"`
	PhoneNumber string          `json:"phone_number,omitempty"`
	ImageURL    string          `json:"img_href,omitempty"`
	Location    json.RawMessage `json:"location,omitempty"`
}

// DeliveryRecord is the persistent local mirror of a provider delivery, one
// per fulfilled order. Created once from the creation response, mutated in
// place by webhook events, never deleted.
type DeliveryRecord struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	DeliveryID  string    `json:"delivery_id"`
	ExternalID  string    `json:"external_id,omitempty"`
	Status      string    `json:"status"`
	Fee         int64     `json:"fee"`
	Tip         int64     `json:"tip"`
	TrackingURL string    `json:"tracking_url,omitempty"`
	BatchID     string    `json:"batch_id,omitempty"`
	Courier     Courier   `json:"courier"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Provider delivery statuses we act on. The provider vocabulary is wider;
// statuses outside this set update the record but not the order.
const (
	DeliveryStatusCreated        = "created"
	DeliveryStatusPickupComplete = "pickup_complete"
	DeliveryStatusDropoff        = "dropoff"
	DeliveryStatusDelivered      = "delivered"
	DeliveryStatusCanceled       = "canceled"
)

// EventKind is the closed set of webhook event kinds the provider sends.
type EventKind string

const (
	EventDeliveryStatus EventKind = "event.delivery_status"
	EventCourierUpdate  EventKind = "event.courier_update"
	EventRefundRequest  EventKind = "event.refund_request"
)

// ParseEventKind maps a wire kind string onto the EventKind enum.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventDeliveryStatus, EventCourierUpdate, EventRefundRequest:
		return EventKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEventKind, s)
	}
}

// WebhookEventData is the nested data block of a webhook event.
type WebhookEventData struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Courier *Courier `json:"courier"`
}

// WebhookEvent is an inbound provider webhook payload. The provider
// duplicates some fields between the top level and the data block; readers
// should prefer the top level and fall back to data.
type WebhookEvent struct {
	Kind       string           `json:"kind"`
	Created    time.Time        `json:"created"`
	DeliveryID string           `json:"delivery_id"`
	Status     string           `json:"status"`
	Data       WebhookEventData `json:"data"`
}

// ResolveDeliveryID returns the delivery id from the top level or the data
// block, whichever is set.
func (e *WebhookEvent) ResolveDeliveryID() string {
	if e.DeliveryID != "" {
		return e.DeliveryID
	}
	return e.Data.ID
}

// ResolveStatus returns the delivery status from the top level or the data
// block, whichever is set.
func (e *WebhookEvent) ResolveStatus() string {
	if e.Status != "" {
		return e.Status
	}
	return e.Data.Status
}

// CreateQuoteRequest is the HTTP body for the quote endpoint: the dropoff
// address plus the optional readiness/window/value fields forwarded to the
// provider.
type CreateQuoteRequest struct {
	StreetAddress      string  `json:"street_address" validate:"required"`
	City               string  `json:"city" validate:"required"`
	State              string  `json:"state" validate:"required"`
	ZipCode            string  `json:"zip_code" validate:"required"`
	Country            string  `json:"country" validate:"required"`
	PickupReadyDt      string  `json:"pickup_ready_dt,omitempty"`
	PickupDeadlineDt   string  `json:"pickup_deadline_dt,omitempty"`
	DropoffReadyDt     string  `json:"dropoff_ready_dt,omitempty"`
	DropoffDeadlineDt  string  `json:"dropoff_deadline_dt,omitempty"`
	DropoffPhoneNumber string  `json:"dropoff_phone_number,omitempty"`
	ManifestTotalValue float64 `json:"manifest_total_value,omitempty"`
}

// DropoffAddress assembles the address fields of the request.
func (r CreateQuoteRequest) DropoffAddress() Address {
	return Address{
		StreetAddress: r.StreetAddress,
		City:          r.City,
		State:         r.State,
		ZipCode:       r.ZipCode,
		Country:       r.Country,
	}
}

// CreateDeliveryRequest is the HTTP body for the delivery-creation endpoint.
type CreateDeliveryRequest struct {
	InvoiceID string `json:"invoice_id" validate:"required"`
}

// CancelDeliveryRequest is the HTTP body for the cancellation endpoint.
type CancelDeliveryRequest struct {
	OrderID               string `json:"order_id" validate:"required"`
	CancelationReason     string `json:"cancelation_reason" validate:"required"`
	AdditionalDescription string `json:"additional_description,omitempty"`
}

// ListDeliveriesRequest carries the optional provider list filters.
type ListDeliveriesRequest struct {
	Filter  string `json:"filter,omitempty" query:"filter"`
	StartDt string `json:"start_dt,omitempty" query:"start_dt"`
	EndDt   string `json:"end_dt,omitempty" query:"end_dt"`
	Limit   string `json:"limit,omitempty" query:"limit"`
	Offset  string `json:"offset,omitempty" query:"offset"`
}
