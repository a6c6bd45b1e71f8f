package healthpackage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/store/storetest"
	"github.com/ehr/hms/pkg/resource"
)

func TestHealthPackage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pkg     HealthPackage
		wantErr bool
	}{
		{"valid", HealthPackage{Name: "Cardiac", Price: 120}, false},
		{"discount", HealthPackage{Name: "Cardiac", Price: 120, DiscountPrice: 99}, false},
		{"missing name", HealthPackage{Price: 120}, true},
		{"free", HealthPackage{Name: "Cardiac"}, true},
		{"discount above price", HealthPackage{Name: "Cardiac", Price: 100, DiscountPrice: 150}, true},
		{"blank test", HealthPackage{Name: "Cardiac", Price: 100, Tests: []string{"ECG", " "}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.pkg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPayload_MultipartWithIcon(t *testing.T) {
	h := &HealthPackage{ID: "9", Name: "Cardiac", Price: 120, Tests: []string{"ECG"}, Active: true, IconURL: "/old.png"}
	p, err := h.Payload([]gateway.File{{Field: IconPart, Name: "heart.png", ContentType: "image/png", Data: []byte("png")}})
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	mp, ok := p.(gateway.MultipartPayload)
	if !ok {
		t.Fatalf("expected multipart payload, got %T", p)
	}
	if mp.DTOPart != DTOPart {
		t.Errorf("DTOPart = %q, want %q", mp.DTOPart, DTOPart)
	}
	if _, ok := mp.DTO["id"]; ok {
		t.Error("dto must not carry the id")
	}
	if _, ok := mp.DTO["iconUrl"]; ok {
		t.Error("dto must not echo the stored icon url")
	}
	if h.IconURL != "/old.png" {
		t.Error("Payload must not modify the model")
	}

	if _, err := h.Payload([]gateway.File{{Field: "attachment", Name: "x.pdf"}}); !domain.IsValidation(err) {
		t.Errorf("expected validation error for a foreign file part, got %v", err)
	}
}

func TestService_CreateSendsParts(t *testing.T) {
	backend := storetest.NewBackend()
	svc := NewService(backend)

	err := svc.Create(context.Background(),
		&HealthPackage{Name: "Diabetes", Price: 80, Active: true},
		gateway.File{Field: IconPart, Name: "drop.png", ContentType: "image/png", Data: []byte{1, 2}},
	)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(backend.Payloads) != 1 {
		t.Fatalf("expected one payload, got %d", len(backend.Payloads))
	}
	got := backend.Payloads[0]
	if got.Parts[DTOPart]["name"] != "Diabetes" {
		t.Errorf("healthPackage part = %v", got.Parts[DTOPart])
	}
	if got.Files[IconPart] != "drop.png" {
		t.Errorf("icon part = %q", got.Files[IconPart])
	}

	items, err := svc.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Diabetes" || items[0].ID != "1" {
		t.Errorf("unexpected collection %+v", items)
	}
}

func TestService_Catalog(t *testing.T) {
	backend := storetest.NewBackend()
	backend.Seed("health-packages",
		resource.Entity{"id": 1, "name": "Full body", "price": 300, "active": true},
		resource.Entity{"id": 2, "name": "Retired", "price": 10, "active": false},
		resource.Entity{"id": 3, "name": "Cardiac", "price": 200, "discountPrice": 90, "active": true},
	)
	svc := NewService(backend)
	if err := svc.List(context.Background(), nil); err != nil {
		t.Fatalf("List: %v", err)
	}
	catalog, err := svc.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	var names []string
	for _, h := range catalog {
		names = append(names, h.Name)
	}
	if diff := cmp.Diff([]string{"Cardiac", "Full body"}, names); diff != "" {
		t.Errorf("catalog mismatch (-want +got):\n%s", diff)
	}
}
