package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/tasks"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/uber"
)

// ServiceInterface defines the delivery lifecycle operations exposed to the
// HTTP handler and the background worker.
type ServiceInterface interface {
	CreateQuote(ctx context.Context, req models.CreateQuoteRequest) (json.RawMessage, error)
	CreateDeliveryForOrder(ctx context.Context, orderID string) (json.RawMessage, error)
	CancelDelivery(ctx context.Context, orderID, reason, description string) error
	GetDelivery(ctx context.Context, orderID string) (json.RawMessage, error)
	ListDeliveries(ctx context.Context, req models.ListDeliveriesRequest) (json.RawMessage, error)
	ProofOfDelivery(ctx context.Context, orderID string, payload json.RawMessage) (json.RawMessage, error)
	HandleInvoiceUpdated(ctx context.Context, hook models.InvoiceUpdatedHook) (bool, error)
}

// ProviderClient is the slice of the Uber Direct client this service uses.
type ProviderClient interface {
	CreateQuote(ctx context.Context, payload models.QuoteRequest) (json.RawMessage, error)
	CreateDelivery(ctx context.Context, payload models.DeliveryRequest) (json.RawMessage, error)
	GetDelivery(ctx context.Context, deliveryID string) (json.RawMessage, error)
	ListDeliveries(ctx context.Context, params []uber.Param) (json.RawMessage, error)
	CancelDelivery(ctx context.Context, deliveryID, reason, description string) (json.RawMessage, error)
	ProofOfDelivery(ctx context.Context, deliveryID string, payload json.RawMessage) (json.RawMessage, error)
}

// OrderRepositoryInterface is the slice of the order repository this service
// reads and writes.
type OrderRepositoryInterface interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	SetTrackingURL(ctx context.Context, orderID, trackingURL string) error
	GetCustomerPhones(ctx context.Context, customerCode string) ([]models.ContactNumber, error)
}

// Service implements the delivery lifecycle logic.
type Service struct {
	provider  ProviderClient
	records   RecordRepositoryInterface
	locations LocationRepositoryInterface
	orders    OrderRepositoryInterface
	queue     tasks.Queue
	log       *zap.Logger
}

// NewService creates a new delivery service.
func NewService(
	provider ProviderClient,
	records RecordRepositoryInterface,
	locations LocationRepositoryInterface,
	orders OrderRepositoryInterface,
	queue tasks.Queue,
	log *zap.Logger,
) *Service {
	return &Service{
		provider:  provider,
		records:   records,
		locations: locations,
		orders:    orders,
		queue:     queue,
		log:       log,
	}
}

// CreateQuote validates the dropoff address and the configured pickup
// address, then requests a quote from the provider. The raw provider
// response, including the quote id and its expiry, is returned for the
// caller to attach to the order; this service does not persist quotes.
func (s *Service) CreateQuote(ctx context.Context, req models.CreateQuoteRequest) (json.RawMessage, error) {
	dropoff := req.DropoffAddress()
	if !dropoff.Complete() {
		return nil, fmt.Errorf("%w: all address fields are required", models.ErrValidation)
	}

	pickup, err := s.pickupDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CreateQuote: %w", err)
	}
	if !pickup.Address.Complete() {
		return nil, fmt.Errorf("%w: pickup address is not fully configured", models.ErrConfiguration)
	}

	pickupJSON, err := marshalAddress(pickup.Address)
	if err != nil {
		return nil, fmt.Errorf("service.CreateQuote: %w", err)
	}
	dropoffJSON, err := marshalAddress(dropoff)
	if err != nil {
		return nil, fmt.Errorf("service.CreateQuote: %w", err)
	}

	payload := models.QuoteRequest{
		PickupAddress:      pickupJSON,
		DropoffAddress:     dropoffJSON,
		PickupReadyDt:      req.PickupReadyDt,
		PickupDeadlineDt:   req.PickupDeadlineDt,
		DropoffReadyDt:     req.DropoffReadyDt,
		DropoffDeadlineDt:  req.DropoffDeadlineDt,
		DropoffPhoneNumber: req.DropoffPhoneNumber,
		ManifestTotalValue: req.ManifestTotalValue,
	}
	return s.provider.CreateQuote(ctx, payload)
}

// CreateDeliveryForOrder assembles and sends the delivery request for a
// fulfilled order, persists the resulting delivery record, and mirrors the
// tracking URL back onto the order. The idempotency key is derived from the
// order id, so re-running this for the same order cannot create a duplicate
// delivery at the provider.
func (s *Service) CreateDeliveryForOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: order %s: %w", orderID, err)
	}

	pickup, err := s.pickupDetails(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: %w", err)
	}
	dropoff, err := s.dropoffDetails(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: %w", err)
	}
	manifest, err := buildManifest(order.Items)
	if err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: %w", err)
	}

	pickupJSON, err := marshalAddress(pickup.Address)
	if err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: %w", err)
	}
	dropoffJSON, err := marshalAddress(dropoff.Address)
	if err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: %w", err)
	}

	payload := models.DeliveryRequest{
		DropoffAddress:     dropoffJSON,
		DropoffName:        dropoff.Name,
		DropoffPhoneNumber: dropoff.PhoneNumber,
		PickupAddress:      pickupJSON,
		PickupName:         pickup.Name,
		PickupPhoneNumber:  pickup.PhoneNumber,
		ManifestItems:      manifest,
		ManifestReference:  order.ID,
		ManifestTotalValue: order.Total,
		QuoteID:            s.validQuoteID(order),
		IdempotencyKey:     IdempotencyKey(order.ID),
	}

	raw, err := s.provider.CreateDelivery(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: %w", err)
	}

	var resp models.DeliveryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: decode provider response: %w", err)
	}

	rec := &models.DeliveryRecord{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		DeliveryID:  resp.ID,
		ExternalID:  resp.UUID,
		Status:      resp.Status,
		Fee:         resp.Fee,
		Tip:         resp.Tip,
		TrackingURL: resp.TrackingURL,
		BatchID:     resp.BatchID,
	}
	if resp.Courier != nil {
		rec.Courier = *resp.Courier
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("service.CreateDeliveryForOrder: %w", err)
	}

	// Best effort: the delivery already exists at the provider, so a failed
	// mirror write must not roll it back.
	if resp.TrackingURL != "" {
		if err := s.orders.SetTrackingURL(ctx, order.ID, resp.TrackingURL); err != nil {
			s.log.Warn("failed to mirror tracking URL onto order",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.log.Info("delivery created",
		zap.String("order_id", order.ID),
		zap.String("delivery_id", resp.ID),
		zap.String("status", resp.Status))
	return raw, nil
}

// validQuoteID returns the most recent quote id for the order if it is still
// usable. A quote with no expiry is treated as always valid. An expired
// quote is logged and dropped; the delivery proceeds without a quote
// reference rather than failing.
func (s *Service) validQuoteID(order *models.Order) string {
	if len(order.Quotes) == 0 {
		return ""
	}
	quote := order.Quotes[0]
	if quote.ExpiresAt.IsZero() {
		return quote.QuoteID
	}
	if time.Now().After(quote.ExpiresAt) {
		s.log.Warn("delivery quote expired, proceeding without quote reference",
			zap.String("order_id", order.ID),
			zap.String("quote_id", quote.QuoteID),
			zap.Time("expired_at", quote.ExpiresAt))
		return ""
	}
	return quote.QuoteID
}

// IdempotencyKey derives the provider idempotency key for an order. The
// derivation is deterministic so repeated creation attempts collapse into
// one logical operation at the provider.
func IdempotencyKey(orderID string) string {
	return "delivery_" + orderID
}

// CancelDelivery cancels the delivery attached to an order.
func (s *Service) CancelDelivery(ctx context.Context, orderID, reason, description string) error {
	rec, err := s.records.FindByOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("service.CancelDelivery: delivery for order %s: %w", orderID, err)
	}
	if _, err := s.provider.CancelDelivery(ctx, rec.DeliveryID, reason, description); err != nil {
		return fmt.Errorf("service.CancelDelivery: %w", err)
	}
	s.log.Info("delivery cancelled",
		zap.String("order_id", orderID),
		zap.String("delivery_id", rec.DeliveryID),
		zap.String("reason", reason))
	return nil
}

// GetDelivery fetches the provider's view of the delivery for an order.
func (s *Service) GetDelivery(ctx context.Context, orderID string) (json.RawMessage, error) {
	rec, err := s.records.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.GetDelivery: delivery for order %s: %w", orderID, err)
	}
	return s.provider.GetDelivery(ctx, rec.DeliveryID)
}

// ListDeliveries lists provider deliveries with the supplied filters, sent
// in a fixed insertion order.
func (s *Service) ListDeliveries(ctx context.Context, req models.ListDeliveriesRequest) (json.RawMessage, error) {
	var params []uber.Param
	for _, p := range []uber.Param{
		{Key: "filter", Value: req.Filter},
		{Key: "start_dt", Value: req.StartDt},
		{Key: "end_dt", Value: req.EndDt},
		{Key: "limit", Value: req.Limit},
		{Key: "offset", Value: req.Offset},
	} {
		if p.Value != "" {
			params = append(params, p)
		}
	}
	return s.provider.ListDeliveries(ctx, params)
}

// ProofOfDelivery fetches the proof-of-delivery artifact for an order.
func (s *Service) ProofOfDelivery(ctx context.Context, orderID string, payload json.RawMessage) (json.RawMessage, error) {
	rec, err := s.records.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service.ProofOfDelivery: delivery for order %s: %w", orderID, err)
	}
	return s.provider.ProofOfDelivery(ctx, rec.DeliveryID, payload)
}

// HandleInvoiceUpdated reacts to the host's invoice-updated document event.
// Only delivery orders whose kitchen status just became "In kitchen" start
// the flow; everything else is ignored. The actual creation runs on the
// background queue so the host's hook call returns immediately.
func (s *Service) HandleInvoiceUpdated(ctx context.Context, hook models.InvoiceUpdatedHook) (bool, error) {
	if hook.ServiceType != models.ServiceTypeDelivery {
		return false, nil
	}
	if hook.KitchenStatus != models.KitchenStatusInKitchen {
		return false, nil
	}
	if _, err := s.queue.Enqueue(ctx, tasks.JobCreateDelivery, tasks.CreateDeliveryPayload{OrderID: hook.OrderID}); err != nil {
		return false, fmt.Errorf("service.HandleInvoiceUpdated: %w", err)
	}
	s.log.Info("delivery creation enqueued", zap.String("order_id", hook.OrderID))
	return true, nil
}
