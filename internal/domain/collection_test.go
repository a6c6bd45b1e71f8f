package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/internal/platform/store/storetest"
	"github.com/ehr/hms/pkg/resource"
)

type ward struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Beds int    `json:"beds"`
}

func (w *ward) Validate() error {
	var c Checker
	c.Required("name", w.Name)
	c.Check(w.Beds > 0, "beds must be positive")
	return c.Err()
}

func (w *ward) Payload(files []gateway.File) (gateway.Payload, error) {
	return JSONBody(w)
}

func newWards(b *storetest.Backend) *Collection[ward, *ward] {
	return NewCollection[ward](store.NewContainer(store.Descriptor{Name: "wards"}, b))
}

func TestChecker(t *testing.T) {
	var c Checker
	if c.Err() != nil {
		t.Fatal("empty checker must not report an error")
	}
	c.Required("name", "  ")
	c.OneOf("kind", "", "a", "b")
	c.OneOf("status", "z", "a", "b")
	c.Check(false, "beds must be at least %d", 1)

	err := c.Err()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	want := []string{"name is required", `status must be one of a, b, got "z"`, "beds must be at least 1"}
	if strings.Join(ve.Problems, "|") != strings.Join(want, "|") {
		t.Errorf("problems = %q", ve.Problems)
	}
}

func TestOnlyFiles(t *testing.T) {
	if err := OnlyFiles(nil); err != nil {
		t.Errorf("no files: %v", err)
	}
	if err := OnlyFiles([]gateway.File{{Field: "icon"}}, "icon"); err != nil {
		t.Errorf("allowed file: %v", err)
	}
	if err := OnlyFiles([]gateway.File{{Field: "icon"}, {Field: "x"}}, "icon"); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCollection_CreateEntityDecodesLoosely(t *testing.T) {
	backend := storetest.NewBackend()
	wards := newWards(backend)

	if err := wards.CreateEntity(context.Background(), resource.Entity{"name": "ICU", "beds": "12"}, nil); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	items, err := wards.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 1 || items[0].Beds != 12 || items[0].ID != "1" {
		t.Errorf("unexpected wards %+v", items)
	}
}

func TestCollection_CreateEntityRejectsMismatchedTypes(t *testing.T) {
	backend := storetest.NewBackend()
	err := newWards(backend).CreateEntity(context.Background(), resource.Entity{"name": "ICU", "beds": "many"}, nil)
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(backend.Calls) != 0 {
		t.Errorf("expected no backend calls, got %v", backend.Calls)
	}
}

func TestCollection_UpdateRequiresID(t *testing.T) {
	err := newWards(storetest.NewBackend()).Update(context.Background(), "", &ward{Name: "ICU", Beds: 2})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCollection_NilModel(t *testing.T) {
	err := newWards(storetest.NewBackend()).Create(context.Background(), nil)
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJSONBody_StripsID(t *testing.T) {
	p, err := JSONBody(&ward{ID: "4", Name: "ICU", Beds: 3})
	if err != nil {
		t.Fatalf("JSONBody: %v", err)
	}
	body := p.(gateway.JSONPayload)
	if _, ok := body["id"]; ok {
		t.Error("id must not be sent")
	}
	if body["name"] != "ICU" {
		t.Errorf("name = %v", body["name"])
	}
}
