package delivery

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/Excel-Technologies-Ltd/uber-direct/internal/models"
	"github.com/Excel-Technologies-Ltd/uber-direct/internal/tasks"
)

func TestBuildManifest(t *testing.T) {
	items := []models.OrderItem{
		{Name: "Burger", Qty: 3, UOM: "Nos", Rate: 12.5},
		{Name: "Rice", Qty: 2.5, UOM: "Kg", Rate: 4},
	}
	manifest, err := buildManifest(items)
	if err != nil {
		t.Fatalf("buildManifest error: %v", err)
	}
	if len(manifest) != 2 {
		t.Fatalf("manifest length = %d; want 2", len(manifest))
	}
	if manifest[0].Quantity != 3 || manifest[0].Price != 1250 {
		t.Errorf("manifest[0] = %+v; want Quantity 3, Price 1250", manifest[0])
	}
	// Fractional quantities are truncated to whole units.
	if manifest[1].Quantity != 2 || manifest[1].Price != 400 {
		t.Errorf("manifest[1] = %+v; want Quantity 2, Price 400", manifest[1])
	}
	if manifest[0].UnitOfMeasurement != "Nos" {
		t.Errorf("manifest[0].UnitOfMeasurement = %q; want Nos", manifest[0].UnitOfMeasurement)
	}
}

func TestBuildManifestToleratesFloatNoise(t *testing.T) {
	// 19.99 is not exactly representable; 19.99*100 lands a hair off 1999
	// and must still be accepted as whole cents.
	manifest, err := buildManifest([]models.OrderItem{{Name: "Combo", Qty: 1, Rate: 19.99}})
	if err != nil {
		t.Fatalf("buildManifest error: %v", err)
	}
	if manifest[0].Price != 1999 {
		t.Errorf("Price = %d; want 1999", manifest[0].Price)
	}
}

func TestBuildManifestRejectsFractionalCents(t *testing.T) {
	_, err := buildManifest([]models.OrderItem{{Name: "Odd", Qty: 1, Rate: 10.005}})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("buildManifest(10.005) = %v; want ErrValidation", err)
	}
}

func TestPickupDetailsMissingConfiguration(t *testing.T) {
	cases := []struct {
		name  string
		mutate func(*fakeLocations)
	}{
		{"no default location", func(fl *fakeLocations) { fl.settings.DefaultLocationID = "" }},
		{"no location name", func(fl *fakeLocations) { fl.location.Name = "" }},
		{"no primary contact", func(fl *fakeLocations) {
			fl.location.Contacts = []models.ContactNumber{{Phone: "+880100", IsPrimaryPhone: false}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fl := newFakeLocations()
			tc.mutate(fl)
			svc := NewService(&fakeProvider{}, newFakeRecords(), fl, newFakeOrders(), tasks.NewMemoryQueue(), zap.NewNop())

			_, err := svc.pickupDetails(context.Background())
			if !errors.Is(err, models.ErrConfiguration) {
				t.Errorf("pickupDetails = %v; want ErrConfiguration", err)
			}
		})
	}
}

func TestPickupDetails(t *testing.T) {
	svc := NewService(&fakeProvider{}, newFakeRecords(), newFakeLocations(), newFakeOrders(), tasks.NewMemoryQueue(), zap.NewNop())

	pickup, err := svc.pickupDetails(context.Background())
	if err != nil {
		t.Fatalf("pickupDetails error: %v", err)
	}
	if pickup.Name != "Main Outlet" {
		t.Errorf("Name = %q; want Main Outlet", pickup.Name)
	}
	if pickup.PhoneNumber != "+8801999999999" {
		t.Errorf("PhoneNumber = %q; want the location primary phone", pickup.PhoneNumber)
	}
	if !pickup.Address.Complete() {
		t.Errorf("pickup address incomplete: %+v", pickup.Address)
	}
}

func TestDropoffDetailsRegisteredCustomerWithoutPrimaryPhone(t *testing.T) {
	fo := newFakeOrders()
	fo.phones["CUST-42"] = []models.ContactNumber{{Phone: "+880100", IsPrimaryPhone: false}}
	svc := NewService(&fakeProvider{}, newFakeRecords(), newFakeLocations(), fo, tasks.NewMemoryQueue(), zap.NewNop())

	_, err := svc.dropoffDetails(context.Background(), testOrder("ORD-1"))
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("dropoffDetails = %v; want ErrNotFound for missing primary phone", err)
	}
}

func TestDropoffDetailsWebsiteCustomerUsesGuestContact(t *testing.T) {
	fo := newFakeOrders()
	order := testOrder("ORD-1")
	order.Customer = "WEBSITE"
	order.GuestName = "Online Guest"
	order.GuestPhone = "+8801222222222"
	svc := NewService(&fakeProvider{}, newFakeRecords(), newFakeLocations(), fo, tasks.NewMemoryQueue(), zap.NewNop())

	details, err := svc.dropoffDetails(context.Background(), order)
	if err != nil {
		t.Fatalf("dropoffDetails error: %v", err)
	}
	if details.Name != "Online Guest" || details.PhoneNumber != "+8801222222222" {
		t.Errorf("details = %q/%q; want the guest contact", details.Name, details.PhoneNumber)
	}
}

func TestPrimaryPhonePreference(t *testing.T) {
	contacts := []models.ContactNumber{
		{Phone: "+880111", IsPrimaryPhone: false},
		{Phone: "+880222", IsPrimaryMobile: true},
		{Phone: "+880333", IsPrimaryPhone: true},
	}
	phone, ok := models.PrimaryPhone(contacts)
	if !ok || phone != "+880222" {
		t.Errorf("PrimaryPhone = %q,%v; want the first primary entry +880222", phone, ok)
	}

	if _, ok := models.PrimaryPhone([]models.ContactNumber{{Phone: "+880444"}}); ok {
		t.Error("PrimaryPhone returned ok for a list with no primary entries")
	}
}
