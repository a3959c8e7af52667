package models

import "time"

// Service type and kitchen status values that trigger the delivery flow.
const (
	ServiceTypeDelivery    = "Delivery"
	KitchenStatusInKitchen = "In kitchen"
)

// Order statuses mirrored back onto the POS order as courier events arrive.
const (
	OrderStatusDelivered      = "Delivered"
	OrderStatusHandover       = "Handover to Delivery"
	OrderStatusOnTheWay       = "On the Way"
	OrderStatusReadyToDeliver = "Ready to Deliver"
)

// Delivery-partner statuses kept on a separate mirror field so the kitchen
// workflow status and the courier view never fight over one column.
const (
	PartnerStatusDelivered = "Delivered"
	PartnerStatusCancelled = "Cancelled from Marchant"
)

// Order is the POS sales invoice as far as this integration cares about it.
// The host application owns its lifecycle; we read the trigger and address
// fields and write back the delivery status mirrors.
type Order struct {
	ID            string      `json:"id"`
	Customer      string      `json:"customer"`
	CustomerName  string      `json:"customer_name"`
	GuestName     string      `json:"guest_name,omitempty"`
	GuestPhone    string      `json:"guest_phone,omitempty"`
	AddressLine1  string      `json:"address_line1"`
	City          string      `json:"city"`
	State         string      `json:"state"`
	PostalCode    string      `json:"postal_code"`
	Country       string      `json:"country"`
	ServiceType   string      `json:"service_type"`
	KitchenStatus string      `json:"kitchen_status"`
	Status        string      `json:"status"`
	PartnerStatus string      `json:"partner_status,omitempty"`
	TrackingURL   string      `json:"tracking_url,omitempty"`
	Total         float64     `json:"total"`
	Items         []OrderItem `json:"items"`
	Quotes        []QuoteRef  `json:"quotes,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// OrderItem is a single invoice line item.
type OrderItem struct {
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	UOM       string  `json:"uom,omitempty"`
	Rate      float64 `json:"rate"`
	Delivered bool    `json:"delivered"`
}

// QuoteRef links an order to a provider quote. Only the most recent quote is
// consulted when the delivery is created. A zero ExpiresAt means the provider
// did not report an expiry and the quote is treated as always valid.
type QuoteRef struct {
	QuoteID   string    `json:"quote_id"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a pickup outlet: the configured fulfillment location whose
// address and primary contact become the delivery pickup details.
type Location struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	AddressLine1 string          `json:"address_line1"`
	City         string          `json:"city"`
	State        string          `json:"state"`
	PostalCode   string          `json:"postal_code"`
	Country      string          `json:"country"`
	Contacts     []ContactNumber `json:"contacts"`
}

// ContactNumber is one phone entry on a location or customer contact list.
type ContactNumber struct {
	Phone           string `json:"phone"`
	IsPrimaryPhone  bool   `json:"is_primary_phone"`
	IsPrimaryMobile bool   `json:"is_primary_mobile"`
}

// PrimaryPhone returns the first contact flagged primary-phone or
// primary-mobile. There is no fallback to non-primary contacts.
func PrimaryPhone(contacts []ContactNumber) (string, bool) {
	for _, c := range contacts {
		if c.IsPrimaryPhone || c.IsPrimaryMobile {
			return c.Phone, true
		}
	}
	return "", false
}

// Settings holds the POS-level configuration documents this integration
// reads: the walk-in customer codes and the default fulfillment location.
type Settings struct {
	DefaultCustomer   string `json:"default_customer"`
	WebsiteCustomer   string `json:"website_customer,omitempty"`
	DefaultLocationID string `json:"default_location_id"`
}

// InvoiceUpdatedHook is the document-event payload the host application posts
// when a sales invoice changes. The delivery flow starts only when the
// service type is Delivery and the kitchen status has just become
// "In kitchen"; detecting that transition exactly once is the host's job.
type InvoiceUpdatedHook struct {
	OrderID       string `json:"order_id" validate:"required"`
	ServiceType   string `json:"service_type"`
	KitchenStatus string `json:"kitchen_status"`
}
