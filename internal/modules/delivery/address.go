package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

// pickupDetails derives the delivery pickup side from the configured default
// fulfillment location: its address, outlet name, and first primary contact
// number. Anything missing is a configuration error, not a validation one,
// because it is fixed in site settings rather than per request.
func (s *Service) pickupDetails(ctx context.Context) (*models.ContactDetails, error) {
	settings, err := s.locations.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.DefaultLocationID == "" {
		return nil, fmt.Errorf("%w: default fulfillment location is not set", models.ErrConfiguration)
	}

	loc, err := s.locations.FindLocation(ctx, settings.DefaultLocationID)
	if err != nil {
		return nil, fmt.Errorf("default fulfillment location: %w", err)
	}
	if loc.Name == "" {
		return nil, fmt.Errorf("%w: fulfillment location name is not set", models.ErrConfiguration)
	}

	phone, ok := models.PrimaryPhone(loc.Contacts)
	if !ok {
		return nil, fmt.Errorf("%w: primary contact number is not set for location %s", models.ErrConfiguration, loc.ID)
	}

	return &models.ContactDetails{
		Address: models.Address{
			StreetAddress: loc.AddressLine1,
			City:          loc.City,
			State:         loc.State,
			ZipCode:       loc.PostalCode,
			Country:       loc.Country,
		},
		Name:        loc.Name,
		PhoneNumber: phone,
	}, nil
}

// dropoffDetails derives the delivery dropoff side from the order. Address
// fields are copied straight from the order. For walk-in or website orders
// placed against the configured default customer, the guest-entered name and
// phone win; for registered customers the first primary contact number is
// used and the name falls back to the registered customer name.
func (s *Service) dropoffDetails(ctx context.Context, order *models.Order) (*models.ContactDetails, error) {
	details := &models.ContactDetails{
		Address: models.Address{
			StreetAddress: order.AddressLine1,
			City:          order.City,
			State:         order.State,
			ZipCode:       order.PostalCode,
			Country:       order.Country,
		},
	}

	settings, err := s.locations.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.DefaultCustomer == "" {
		return nil, fmt.Errorf("%w: default customer is not set", models.ErrConfiguration)
	}

	if order.Customer == settings.DefaultCustomer || (settings.WebsiteCustomer != "" && order.Customer == settings.WebsiteCustomer) {
		details.Name = order.GuestName
		details.PhoneNumber = order.GuestPhone
		return details, nil
	}

	phones, err := s.orders.GetCustomerPhones(ctx, order.Customer)
	if err != nil {
		return nil, fmt.Errorf("customer contacts for %s: %w", order.Customer, err)
	}
	phone, ok := models.PrimaryPhone(phones)
	if !ok {
		return nil, fmt.Errorf("%w: no primary phone found for customer %s", models.ErrNotFound, order.Customer)
	}

	details.Name = order.CustomerName
	details.PhoneNumber = phone
	return details, nil
}

// buildManifest converts invoice line items into the provider manifest.
// Quantities are truncated to whole units. Unit prices are converted to
// integer minor currency units; a rate that does not land on a whole number
// of cents is rejected rather than silently rounded, because the provider
// treats the price as an exact declared value.
func buildManifest(items []models.OrderItem) ([]models.ManifestItem, error) {
	manifest := make([]models.ManifestItem, 0, len(items))
	for _, item := range items {
		cents := item.Rate * 100
		rounded := math.Round(cents)
		if math.Abs(cents-rounded) > 1e-6 {
			return nil, fmt.Errorf("%w: item %q rate %v is not a whole number of minor currency units",
				models.ErrValidation, item.Name, item.Rate)
		}
		manifest = append(manifest, models.ManifestItem{
			Name:              item.Name,
			Quantity:          int(item.Qty),
			UnitOfMeasurement: item.UOM,
			Price:             int(rounded),
		})
	}
	return manifest, nil
}

// marshalAddress renders an address as the JSON string the provider expects
// inside pickup_address/dropoff_address fields.
func marshalAddress(addr models.Address) (string, error) {
	buf, err := json.Marshal(addr)
	if err != nil {
		return "", fmt.Errorf("marshal address: %w", err)
	}
	return string(buf), nil
}
