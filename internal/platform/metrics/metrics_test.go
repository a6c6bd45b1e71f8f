package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveGatewayCall(t *testing.T) {
	before := testutil.ToFloat64(gatewayRequestsTotal.WithLabelValues("assets", "fetch-all", "ok"))
	ObserveGatewayCall("assets", "fetch-all", "ok", 10*time.Millisecond)
	after := testutil.ToFloat64(gatewayRequestsTotal.WithLabelValues("assets", "fetch-all", "ok"))
	if after != before+1 {
		t.Errorf("requests_total = %v, want %v", after, before+1)
	}
}

func TestSetCollectionSize(t *testing.T) {
	SetCollectionSize("donors", 3)
	if got := testutil.ToFloat64(collectionSize.WithLabelValues("donors")); got != 3 {
		t.Errorf("collection_size = %v, want 3", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	ObserveTransition("notices", "create", "succeeded")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hms_store_operation_transitions_total") {
		t.Error("expected transition counter in exposition")
	}
}
