package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
)

// ----------------------------------------------------------------------------
// fakeStore: in-memory delivery records plus order status mirrors.
// ----------------------------------------------------------------------------
type fakeStore struct {
	records        map[string]*models.DeliveryRecord
	orderStatus    map[string]string
	partnerStatus  map[string]string
	itemsDelivered map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:        make(map[string]*models.DeliveryRecord),
		orderStatus:    make(map[string]string),
		partnerStatus:  make(map[string]string),
		itemsDelivered: make(map[string]bool),
	}
}

func (f *fakeStore) FindByDeliveryID(ctx context.Context, deliveryID string) (*models.DeliveryRecord, error) {
	rec, ok := f.records[deliveryID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, deliveryID, status string, eventAt time.Time) error {
	rec, ok := f.records[deliveryID]
	if !ok {
		return models.ErrNotFound
	}
	rec.Status = status
	rec.LastEventAt = eventAt
	return nil
}

func (f *fakeStore) UpdateCourier(ctx context.Context, deliveryID string, courier models.Courier) error {
	rec, ok := f.records[deliveryID]
	if !ok {
		return models.ErrNotFound
	}
	rec.Courier = courier
	return nil
}

func (f *fakeStore) UpdateDeliveryStatus(ctx context.Context, orderID, status, partnerStatus string) error {
	f.orderStatus[orderID] = status
	f.partnerStatus[orderID] = partnerStatus
	return nil
}

func (f *fakeStore) MarkItemsDelivered(ctx context.Context, orderID string) error {
	f.itemsDelivered[orderID] = true
	return nil
}

// fakeNotifier records refund notifications.
type fakeNotifier struct {
	subjects []string
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func newTestReconciler() (*Reconciler, *fakeStore, *fakeNotifier) {
	store := newFakeStore()
	store.records["del_1"] = &models.DeliveryRecord{ID: "r1", OrderID: "ORD-1", DeliveryID: "del_1", Status: "created"}
	notifier := &fakeNotifier{}
	return NewReconciler(store, store, notifier, zap.NewNop()), store, notifier
}

func event(kind, deliveryID, status string, created time.Time) json.RawMessage {
	e := map[string]any{"kind": kind, "delivery_id": deliveryID, "status": status}
	if !created.IsZero() {
		e["created"] = created.Format(time.RFC3339)
	}
	buf, _ := json.Marshal(e)
	return buf
}

func TestApplyDeliveredStatus(t *testing.T) {
	r, store, _ := newTestReconciler()

	err := r.Apply(context.Background(), event("event.delivery_status", "del_1", "delivered", time.Now()))
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if store.records["del_1"].Status != "delivered" {
		t.Errorf("record status = %q; want delivered", store.records["del_1"].Status)
	}
	if store.orderStatus["ORD-1"] != models.OrderStatusDelivered {
		t.Errorf("order status = %q; want Delivered", store.orderStatus["ORD-1"])
	}
	if store.partnerStatus["ORD-1"] != models.PartnerStatusDelivered {
		t.Errorf("partner status = %q; want Delivered", store.partnerStatus["ORD-1"])
	}
	if !store.itemsDelivered["ORD-1"] {
		t.Error("items not marked delivered")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status        string
		wantOrder     string
		wantPartner   string
		wantDelivered bool
	}{
		{"pickup_complete", models.OrderStatusHandover, models.OrderStatusHandover, false},
		{"dropoff", models.OrderStatusOnTheWay, models.OrderStatusOnTheWay, false},
		{"canceled", models.OrderStatusReadyToDeliver, models.PartnerStatusCancelled, false},
		{"delivered", models.OrderStatusDelivered, models.PartnerStatusDelivered, true},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			r, store, _ := newTestReconciler()

			if err := r.Apply(context.Background(), event("event.delivery_status", "del_1", tc.status, time.Now())); err != nil {
				t.Fatalf("Apply error: %v", err)
			}
			if store.orderStatus["ORD-1"] != tc.wantOrder {
				t.Errorf("order status = %q; want %q", store.orderStatus["ORD-1"], tc.wantOrder)
			}
			if store.partnerStatus["ORD-1"] != tc.wantPartner {
				t.Errorf("partner status = %q; want %q", store.partnerStatus["ORD-1"], tc.wantPartner)
			}
			if store.itemsDelivered["ORD-1"] != tc.wantDelivered {
				t.Errorf("items delivered = %v; want %v", store.itemsDelivered["ORD-1"], tc.wantDelivered)
			}
		})
	}
}

func TestUnmappedStatusUpdatesRecordOnly(t *testing.T) {
	r, store, _ := newTestReconciler()

	if err := r.Apply(context.Background(), event("event.delivery_status", "del_1", "courier_imminent", time.Now())); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if store.records["del_1"].Status != "courier_imminent" {
		t.Errorf("record status = %q; want courier_imminent", store.records["del_1"].Status)
	}
	if _, ok := store.orderStatus["ORD-1"]; ok {
		t.Errorf("order status mirrored for an unmapped provider status: %q", store.orderStatus["ORD-1"])
	}
}

func TestStaleEventIsSkipped(t *testing.T) {
	r, store, _ := newTestReconciler()
	now := time.Now().UTC().Truncate(time.Second)

	if err := r.Apply(context.Background(), event("event.delivery_status", "del_1", "dropoff", now)); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	// A pickup_complete created before the dropoff arrives late; it must not
	// roll the record back.
	if err := r.Apply(context.Background(), event("event.delivery_status", "del_1", "pickup_complete", now.Add(-time.Minute))); err != nil {
		t.Fatalf("Apply (stale) error: %v", err)
	}
	if store.records["del_1"].Status != "dropoff" {
		t.Errorf("record status = %q; stale event must not overwrite dropoff", store.records["del_1"].Status)
	}
	if store.orderStatus["ORD-1"] != models.OrderStatusOnTheWay {
		t.Errorf("order status = %q; want On the Way preserved", store.orderStatus["ORD-1"])
	}
}

func TestApplyIsIdempotentUnderRedelivery(t *testing.T) {
	r, store, _ := newTestReconciler()
	payload := event("event.delivery_status", "del_1", "delivered", time.Now())

	for i := 0; i < 3; i++ {
		if err := r.Apply(context.Background(), payload); err != nil {
			t.Fatalf("Apply #%d error: %v", i+1, err)
		}
	}
	if store.records["del_1"].Status != "delivered" {
		t.Errorf("record status = %q; want delivered", store.records["del_1"].Status)
	}
	if store.orderStatus["ORD-1"] != models.OrderStatusDelivered {
		t.Errorf("order status = %q; want Delivered", store.orderStatus["ORD-1"])
	}
}

func TestApplyCourierUpdate(t *testing.T) {
	r, store, _ := newTestReconciler()
	payload := json.RawMessage(`{
		"kind": "event.courier_update",
		"delivery_id": "del_1",
		"data": {"courier": {"name": "Karim", "vehicle_type": "bicycle", "phone_number": "+880170"}}
	}`)

	if err := r.Apply(context.Background(), payload); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	courier := store.records["del_1"].Courier
	if courier.Name != "Karim" || courier.VehicleType != "bicycle" {
		t.Errorf("courier = %+v; want Karim on a bicycle", courier)
	}
}

func TestCourierUpdateWithoutCourierBlockIsIgnored(t *testing.T) {
	r, store, _ := newTestReconciler()
	payload := json.RawMessage(`{"kind": "event.courier_update", "delivery_id": "del_1", "data": {}}`)

	if err := r.Apply(context.Background(), payload); err != nil {
		t.Fatalf("Apply should ignore a missing courier block, got %v", err)
	}
	if store.records["del_1"].Courier.Name != "" {
		t.Errorf("courier = %+v; want untouched", store.records["del_1"].Courier)
	}
}

func TestRefundRequestNotifiesWithoutMutating(t *testing.T) {
	r, store, notifier := newTestReconciler()
	payload := json.RawMessage(`{"kind": "event.refund_request", "delivery_id": "del_1"}`)

	if err := r.Apply(context.Background(), payload); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if store.records["del_1"].Status != "created" {
		t.Errorf("record status = %q; refund requests must not change local state", store.records["del_1"].Status)
	}
	if len(store.orderStatus) != 0 {
		t.Errorf("order statuses touched by a refund request: %v", store.orderStatus)
	}
	if len(notifier.subjects) != 1 {
		t.Fatalf("notifications = %d; want 1", len(notifier.subjects))
	}
}

func TestApplyUnknownKind(t *testing.T) {
	r, _, _ := newTestReconciler()
	err := r.Apply(context.Background(), json.RawMessage(`{"kind": "event.unknown", "delivery_id": "del_1"}`))
	if !errors.Is(err, models.ErrInvalidEventKind) {
		t.Errorf("Apply = %v; want ErrInvalidEventKind", err)
	}
}

func TestApplyDeliveryStatusUnknownDelivery(t *testing.T) {
	r, _, _ := newTestReconciler()
	err := r.Apply(context.Background(), event("event.delivery_status", "del_missing", "delivered", time.Now()))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Apply = %v; want ErrNotFound", err)
	}
}

func TestDeliveryIDFallsBackToDataBlock(t *testing.T) {
	r, store, _ := newTestReconciler()
	payload := json.RawMessage(`{"kind": "event.delivery_status", "data": {"id": "del_1", "status": "dropoff"}}`)

	if err := r.Apply(context.Background(), payload); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if store.records["del_1"].Status != "dropoff" {
		t.Errorf("record status = %q; want dropoff resolved from the data block", store.records["del_1"].Status)
	}
}
