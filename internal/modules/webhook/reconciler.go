package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

// DeliveryStore is the slice of the delivery record repository the
// reconciler mutates.
type DeliveryStore interface {
	FindByDeliveryID(ctx context.Context, deliveryID string) (*models.DeliveryRecord, error)
	UpdateStatus(ctx context.Context, deliveryID, status string, eventAt time.Time) error
	UpdateCourier(ctx context.Context, deliveryID string, courier models.Courier) error
}

// OrderStore is the slice of the order repository the reconciler writes
// status mirrors through.
type OrderStore interface {
	UpdateDeliveryStatus(ctx context.Context, orderID, status, partnerStatus string) error
	MarkItemsDelivered(ctx context.Context, orderID string) error
}

// Notifier forwards refund requests to a human. Refund handling itself is
// deliberately manual.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Reconciler applies verified webhook events onto local delivery and order
// records. Every handler is idempotent under redelivery: field overwrites
// are last-write-wins and nothing is counted or appended.
type Reconciler struct {
	records DeliveryStore
	orders  OrderStore
	notify  Notifier
	log     *zap.Logger
}

// NewReconciler creates a new webhook event reconciler.
func NewReconciler(records DeliveryStore, orders OrderStore, notify Notifier, log *zap.Logger) *Reconciler {
	return &Reconciler{records: records, orders: orders, notify: notify, log: log}
}

// Apply dispatches one raw webhook payload by its event kind.
func (r *Reconciler) Apply(ctx context.Context, payload json.RawMessage) error {
	var event models.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("reconciler: decode event: %w", err)
	}

	kind, err := models.ParseEventKind(event.Kind)
	if err != nil {
		return err
	}

	switch kind {
	case models.EventDeliveryStatus:
		return r.applyDeliveryStatus(ctx, &event)
	case models.EventCourierUpdate:
		return r.applyCourierUpdate(ctx, &event)
	case models.EventRefundRequest:
		return r.applyRefundRequest(ctx, &event)
	default:
		return fmt.Errorf("%w: %q", models.ErrInvalidEventKind, event.Kind)
	}
}

// applyDeliveryStatus updates the delivery record's status and mirrors it
// onto the order. Events carrying a creation time older than the last
// applied event are skipped, so a late-arriving stale status cannot clobber
// a newer one.
func (r *Reconciler) applyDeliveryStatus(ctx context.Context, event *models.WebhookEvent) error {
	deliveryID := event.ResolveDeliveryID()
	if deliveryID == "" {
		return fmt.Errorf("%w: delivery id is required", models.ErrValidation)
	}

	rec, err := r.records.FindByDeliveryID(ctx, deliveryID)
	if err != nil {
		return fmt.Errorf("reconciler: delivery %s: %w", deliveryID, err)
	}

	if !event.Created.IsZero() && !rec.LastEventAt.IsZero() && event.Created.Before(rec.LastEventAt) {
		r.log.Info("skipping stale delivery status event",
			zap.String("delivery_id", deliveryID),
			zap.Time("event_created", event.Created),
			zap.Time("last_applied", rec.LastEventAt))
		return nil
	}

	status := event.ResolveStatus()
	if status == "" {
		return fmt.Errorf("%w: delivery status is required", models.ErrValidation)
	}

	eventAt := event.Created
	if eventAt.IsZero() {
		eventAt = time.Now().UTC()
	}
	if err := r.records.UpdateStatus(ctx, deliveryID, status, eventAt); err != nil {
		return fmt.Errorf("reconciler: update delivery %s: %w", deliveryID, err)
	}

	orderStatus, partnerStatus := mapDeliveryStatus(status)
	if orderStatus != "" {
		if err := r.orders.UpdateDeliveryStatus(ctx, rec.OrderID, orderStatus, partnerStatus); err != nil {
			return fmt.Errorf("reconciler: update order %s: %w", rec.OrderID, err)
		}
	}
	if status == models.DeliveryStatusDelivered {
		if err := r.orders.MarkItemsDelivered(ctx, rec.OrderID); err != nil {
			return fmt.Errorf("reconciler: mark items delivered for order %s: %w", rec.OrderID, err)
		}
	}

	r.log.Info("delivery status applied",
		zap.String("delivery_id", deliveryID),
		zap.String("order_id", rec.OrderID),
		zap.String("status", status))
	return nil
}

// mapDeliveryStatus translates the provider status vocabulary into the
// order-status and partner-status mirrors. Statuses outside the map update
// the delivery record only.
func mapDeliveryStatus(status string) (orderStatus, partnerStatus string) {
	switch status {
	case models.DeliveryStatusDelivered:
		return models.OrderStatusDelivered, models.PartnerStatusDelivered
	case models.DeliveryStatusPickupComplete:
		return models.OrderStatusHandover, models.OrderStatusHandover
	case models.DeliveryStatusDropoff:
		return models.OrderStatusOnTheWay, models.OrderStatusOnTheWay
	case models.DeliveryStatusCanceled:
		return models.OrderStatusReadyToDeliver, models.PartnerStatusCancelled
	default:
		return "", ""
	}
}

// applyCourierUpdate overwrites the courier sub-record from the event. A
// payload without a courier block is logged and ignored; couriers drop off
// assignments routinely and the provider sends empty updates when they do.
func (r *Reconciler) applyCourierUpdate(ctx context.Context, event *models.WebhookEvent) error {
	deliveryID := event.ResolveDeliveryID()
	if deliveryID == "" {
		return fmt.Errorf("%w: delivery id is required", models.ErrValidation)
	}

	if event.Data.Courier == nil {
		r.log.Warn("courier update without courier block", zap.String("delivery_id", deliveryID))
		return nil
	}

	if _, err := r.records.FindByDeliveryID(ctx, deliveryID); err != nil {
		return fmt.Errorf("reconciler: delivery %s: %w", deliveryID, err)
	}
	if err := r.records.UpdateCourier(ctx, deliveryID, *event.Data.Courier); err != nil {
		return fmt.Errorf("reconciler: update courier for delivery %s: %w", deliveryID, err)
	}

	r.log.Info("courier updated",
		zap.String("delivery_id", deliveryID),
		zap.String("courier", event.Data.Courier.Name))
	return nil
}

// applyRefundRequest records the request for manual review. No local state
// changes; an ops notification goes out best effort.
func (r *Reconciler) applyRefundRequest(ctx context.Context, event *models.WebhookEvent) error {
	deliveryID := event.ResolveDeliveryID()
	if deliveryID == "" {
		return fmt.Errorf("%w: delivery id is required", models.ErrValidation)
	}

	r.log.Info("refund request received, deferring to manual review",
		zap.String("delivery_id", deliveryID))

	if r.notify != nil {
		subject := "Uber Direct refund request: " + deliveryID
		body := fmt.Sprintf("A refund was requested for delivery %s. Review it in the Uber Direct dashboard.", deliveryID)
		if err := r.notify.Notify(ctx, subject, body); err != nil {
			r.log.Warn("refund notification failed", zap.String("delivery_id", deliveryID), zap.Error(err))
		}
	}
	return nil
}
