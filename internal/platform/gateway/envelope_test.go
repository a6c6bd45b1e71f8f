package gateway

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractList_ChainOrder(t *testing.T) {
	// "data" wins over "items" because it comes first in the chain.
	body := map[string]any{
		"items": []any{map[string]any{"id": "from-items"}},
		"data":  []any{map[string]any{"id": "from-data"}},
	}
	got := ExtractList(Body{Value: body}, nil)
	if len(got) != 1 || got[0]["id"] != "from-data" {
		t.Errorf("ExtractList = %v, want from-data", got)
	}
}

func TestExtractList_DropsNonObjects(t *testing.T) {
	got := ExtractList(Body{Value: []any{map[string]any{"id": 1}, "stray", 3.0}}, nil)
	if len(got) != 1 {
		t.Errorf("expected 1 entity, got %d", len(got))
	}
}

func TestExtractList_CustomChain(t *testing.T) {
	body := map[string]any{"result": map[string]any{"rows": []any{map[string]any{"id": 1}}}}
	if got := ExtractList(Body{Value: body}, []ListExtractor{ArrayAt("data")}); len(got) != 0 {
		t.Errorf("expected empty result from restricted chain, got %v", got)
	}
	if got := ExtractList(Body{Value: body}, []ListExtractor{ArrayAt("result", "rows")}); len(got) != 1 {
		t.Errorf("expected 1 entity from nested path, got %v", got)
	}
}

func TestExtractList_Scalar(t *testing.T) {
	got := ExtractList(Body{Value: "nope"}, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", got)
	}
}

func TestFirstArrayProperty_DocumentOrder(t *testing.T) {
	raw := []byte(`{"total": 2, "zeta": [{"id": "z"}], "meta": {"tags": ["x"]}, "alpha": [{"id": "a"}]}`)
	b, err := ParseBody(raw)
	if err != nil {
		t.Fatalf("ParseBody: %v", err)
	}
	if diff := cmp.Diff([]string{"total", "zeta", "meta", "alpha"}, b.Keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	got := ExtractList(b, nil)
	if len(got) != 1 || got[0]["id"] != "z" {
		t.Errorf("ExtractList = %v, want the zeta array", got)
	}
}

func TestFirstArrayProperty_SortedWithoutKeys(t *testing.T) {
	body := map[string]any{"zeta": []any{map[string]any{"id": "z"}}, "alpha": []any{map[string]any{"id": "a"}}}
	got := ExtractList(Body{Value: body}, []ListExtractor{FirstArrayProperty})
	if len(got) != 1 || got[0]["id"] != "a" {
		t.Errorf("ExtractList = %v, want the alpha array", got)
	}
}

func TestParseBody_NonObjectHasNoKeys(t *testing.T) {
	b, err := ParseBody([]byte(`[{"id": 1}]`))
	if err != nil {
		t.Fatalf("ParseBody: %v", err)
	}
	if b.Keys != nil {
		t.Errorf("keys = %v, want none", b.Keys)
	}
	if _, err := ParseBody([]byte(`{"data":`)); err == nil {
		t.Error("expected truncated body to fail")
	}
}

func TestExtractOne(t *testing.T) {
	if _, ok := ExtractOne([]any{}); ok {
		t.Error("expected arrays to be rejected")
	}
	e, ok := ExtractOne(map[string]any{"data": "not an object", "id": 4})
	if !ok || e["id"] != 4 {
		t.Errorf("expected body fallback when data is not an object, got %v", e)
	}
}

func TestFailureMessage(t *testing.T) {
	if got := failureMessage(400, []byte(`{"message":""}`)); got != `{"message":""}` {
		t.Errorf("empty message field should fall back to raw body, got %q", got)
	}
	if got := failureMessage(599, nil); got != "request failed with status 599" {
		t.Errorf("got %q", got)
	}
}
