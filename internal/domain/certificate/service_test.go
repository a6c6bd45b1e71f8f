package certificate

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ehr/hms/internal/domain"
	"github.com/ehr/hms/internal/platform/store/storetest"
	"github.com/ehr/hms/pkg/resource"
)

func TestBirth_Validate(t *testing.T) {
	valid := Birth{ChildName: "Baby Rao", Gender: "female", DateOfBirth: "2024-02-10", MotherID: "m-1", TimeOfBirth: "04:35", WeightKg: 3.1}
	tests := []struct {
		name    string
		mutate  func(b *Birth)
		wantErr string
	}{
		{"valid", func(b *Birth) {}, ""},
		{"missing mother", func(b *Birth) { b.MotherID = "" }, "motherId is required"},
		{"bad time", func(b *Birth) { b.TimeOfBirth = "4.35pm" }, "timeOfBirth must be HH:MM"},
		{"future date", func(b *Birth) { b.DateOfBirth = time.Now().AddDate(1, 0, 0).Format(dateLayout) }, "must not be in the future"},
		{"heavy", func(b *Birth) { b.WeightKg = 31 }, "weightKg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDeath_ValidateReportsEveryMissingField(t *testing.T) {
	err := (&Death{}).Validate()
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"patientId", "deceasedName", "dateOfDeath", "causeOfDeath"} {
		if !strings.Contains(err.Error(), field+" is required") {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

func TestServices_UseSeparateCollections(t *testing.T) {
	ctx := context.Background()
	backend := storetest.NewBackend()
	births := NewBirthService(backend)
	deaths := NewDeathService(backend)

	if err := births.Create(ctx, &Birth{ChildName: "Baby Rao", Gender: "male", DateOfBirth: "2024-02-10", MotherID: "m-1"}); err != nil {
		t.Fatalf("create birth: %v", err)
	}
	if err := deaths.Create(ctx, &Death{PatientID: "p-9", DeceasedName: "J. Doe", DateOfDeath: "2024-02-11", CauseOfDeath: "cardiac arrest"}); err != nil {
		t.Fatalf("create death: %v", err)
	}

	if n := len(backend.Items("certificates/birth")); n != 1 {
		t.Errorf("expected one birth certificate on the backend, got %d", n)
	}
	mine, err := births.ForMother("m-1")
	if err != nil || len(mine) != 1 {
		t.Fatalf("ForMother = %v, %v", mine, err)
	}
	if other, _ := births.ForMother("m-2"); len(other) != 0 {
		t.Errorf("unexpected certificates for m-2: %v", other)
	}

	d, err := deaths.ForPatient("p-9")
	if err != nil || d == nil || d.CauseOfDeath != "cardiac arrest" {
		t.Fatalf("ForPatient = %+v, %v", d, err)
	}
	if len(births.Container().Items()) != 1 || len(deaths.Container().Items()) != 1 {
		t.Error("containers must not share state")
	}
}

func TestDeathService_UpdateReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	backend := storetest.NewBackend()
	backend.Seed("certificates/death",
		resource.Entity{"id": 1, "patientId": "p-1", "deceasedName": "A", "dateOfDeath": "2024-01-01", "causeOfDeath": "x"},
		resource.Entity{"id": 2, "patientId": "p-2", "deceasedName": "B", "dateOfDeath": "2024-01-02", "causeOfDeath": "y"},
	)
	svc := NewDeathService(backend)
	if err := svc.List(ctx, nil); err != nil {
		t.Fatalf("List: %v", err)
	}
	if err := svc.Update(ctx, "1", &Death{PatientID: "p-1", DeceasedName: "A", DateOfDeath: "2024-01-01", CauseOfDeath: "sepsis"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	items, _ := svc.Items()
	if len(items) != 2 || items[0].ID != "1" || items[0].CauseOfDeath != "sepsis" || items[1].ID != "2" {
		t.Errorf("unexpected items after update %+v", items)
	}
}
