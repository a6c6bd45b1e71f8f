package asset

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/lifecycle"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/internal/platform/store/storetest"
	"github.com/ehr/hms/pkg/resource"
)

func TestAsset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		asset   Asset
		wantErr bool
	}{
		{"valid", Asset{Name: "Ventilator", Category: "respiratory"}, false},
		{"missing name", Asset{Category: "respiratory"}, true},
		{"missing category", Asset{Name: "Ventilator"}, true},
		{"bad status", Asset{Name: "Ventilator", Category: "respiratory", Status: "lost"}, true},
		{"negative cost", Asset{Name: "Ventilator", Category: "respiratory", Cost: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.asset.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !domain.IsValidation(err) {
				t.Errorf("expected a validation error, got %T", err)
			}
		})
	}
}

func TestService_CreateValidationSendsNothing(t *testing.T) {
	backend := storetest.NewBackend()
	svc := NewService(backend)

	err := svc.Create(context.Background(), &Asset{Category: "imaging"})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(backend.Calls) != 0 {
		t.Errorf("expected no backend calls, got %v", backend.Calls)
	}
	if st := svc.Container().Status(store.OpCreate); st.Status != lifecycle.StatusIdle {
		t.Errorf("create tracker should stay idle, got %s", st.Status)
	}
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	backend := storetest.NewBackend()
	backend.Seed("assets",
		resource.Entity{"id": 1, "name": "Bed", "category": "ward", "status": StatusInUse},
	)
	svc := NewService(backend)

	if err := svc.List(ctx, nil); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := svc.Create(ctx, &Asset{Name: "Monitor", Category: "cardio"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	items, err := svc.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	want := []Asset{
		{ID: "1", Name: "Bed", Category: "ward", Status: StatusInUse},
		{ID: "2", Name: "Monitor", Category: "cardio", Status: StatusAvailable},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	if err := svc.Update(ctx, "2", &Asset{Name: "Monitor", Category: "cardio", Status: StatusMaintenance}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	inMaintenance, err := svc.ByStatus(StatusMaintenance)
	if err != nil {
		t.Fatalf("ByStatus: %v", err)
	}
	if len(inMaintenance) != 1 || inMaintenance[0].ID != "2" {
		t.Errorf("expected asset 2 in maintenance, got %+v", inMaintenance)
	}

	if err := svc.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items, _ = svc.Items()
	if len(items) != 1 || items[0].ID != "2" {
		t.Errorf("expected only asset 2 after delete, got %+v", items)
	}

	wantCalls := []string{"GET assets", "POST assets", "PUT assets/2", "DELETE assets/1"}
	if diff := cmp.Diff(wantCalls, backend.Calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestService_GetSetsCurrent(t *testing.T) {
	ctx := context.Background()
	backend := storetest.NewBackend()
	backend.Seed("assets", resource.Entity{"id": 4, "name": "X-ray", "category": "imaging"})
	svc := NewService(backend)

	cur, err := svc.Current()
	if err != nil || cur != nil {
		t.Fatalf("expected no current asset, got %+v, %v", cur, err)
	}
	if err := svc.Get(ctx, "4"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cur, err = svc.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur == nil || cur.Name != "X-ray" {
		t.Errorf("unexpected current asset %+v", cur)
	}
}

func TestService_BackendFailure(t *testing.T) {
	backend := storetest.NewBackend()
	backend.Fail("assets", storetest.HTTPError(http.StatusConflict, "serial number already registered"))
	svc := NewService(backend)

	err := svc.Create(context.Background(), &Asset{Name: "Pump", Category: "infusion"})
	var re *gateway.RemoteOperationError
	if !errors.As(err, &re) || re.Status != http.StatusConflict {
		t.Fatalf("expected 409 remote error, got %v", err)
	}
	st := svc.Container().Status(store.OpCreate)
	if st.Status != lifecycle.StatusFailed || st.Message != "serial number already registered" {
		t.Errorf("unexpected create state %+v", st)
	}
}

func TestPayload_RejectsFiles(t *testing.T) {
	a := &Asset{Name: "Bed", Category: "ward"}
	if _, err := a.Payload([]gateway.File{{Field: "photo", Name: "bed.png"}}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for unexpected file, got %v", err)
	}
}
