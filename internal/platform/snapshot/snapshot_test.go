package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/ehr/hms/internal/config"
	"github.com/ehr/hms/internal/platform/lifecycle"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/internal/platform/store/storetest"
	"github.com/ehr/hms/pkg/resource"
)

func sampleSnapshots() []store.Snapshot {
	return []store.Snapshot{
		{
			Name: "assets",
			Items: []resource.Entity{
				{"id": 7, "name": "Widget"},
				{"id": 8, "name": "Bed", "tags": []any{"ward-a"}},
			},
			Current: resource.Entity{"id": 7, "name": "Widget"},
		},
		{Name: "donors", Items: []resource.Entity{}},
	}
}

// names and ids survive the trip; numbers come back as json.Number.
func summarize(snaps []store.Snapshot) map[string][]string {
	out := map[string][]string{}
	for _, s := range snaps {
		ids := []string{}
		for _, e := range s.Items {
			id, _ := e.ID(resource.DefaultIDField)
			ids = append(ids, id+":"+resource.CanonicalID(e["name"]))
		}
		out[s.Name] = ids
	}
	return out
}

func testStoreRoundTrip(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := st.Save(ctx, sampleSnapshots()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string][]string{
		"assets": {"7:Widget", "8:Bed"},
		"donors": {},
	}
	if diff := cmp.Diff(want, summarize(got)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got[0].Current == nil || !got[0].Current.HasID(resource.DefaultIDField, "7") {
		t.Errorf("current entity not preserved: %v", got[0].Current)
	}

	// saving one container leaves the others alone
	if err := st.Save(ctx, []store.Snapshot{{Name: "assets", Items: []resource.Entity{{"id": 9, "name": "Cot"}}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want = map[string][]string{"assets": {"9:Cot"}, "donors": {}}
	if diff := cmp.Diff(want, summarize(got)); diff != "" {
		t.Errorf("partial save mismatch (-want +got):\n%s", diff)
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	testStoreRoundTrip(t, NewMemory())
}

func TestSQLite_RoundTrip(t *testing.T) {
	st, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "snap.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer st.Close()
	testStoreRoundTrip(t, st)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	ctx := context.Background()

	st, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := st.Save(ctx, sampleSnapshots()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st.Close()

	reopened, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || len(got[0].Items) != 2 {
		t.Fatalf("unexpected snapshots after reopen: %+v", got)
	}
}

func TestEncode_SkipsTrackerState(t *testing.T) {
	b, err := encode(sampleSnapshots()[1], time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"name":"donors","items":[],"saved_at":"2024-01-02T03:04:05Z"}`
	if string(b) != want {
		t.Errorf("encode = %s, want %s", b, want)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := decode([]byte(`{"name":`)); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	if _, err := Open(ctx, &config.Config{Snapshot: config.SnapshotNone}, zerolog.Nop()); err != ErrDisabled {
		t.Errorf("expected ErrDisabled, got %v", err)
	}

	st, err := Open(ctx, &config.Config{Snapshot: config.SnapshotMemory}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if _, ok := st.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", st)
	}

	st, err = Open(ctx, &config.Config{Snapshot: config.SnapshotSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*SQLite); !ok {
		t.Errorf("expected *SQLite, got %T", st)
	}

	if _, err := Open(ctx, &config.Config{Snapshot: config.SnapshotRedis, RedisURL: "not a url"}, zerolog.Nop()); err == nil {
		t.Error("expected error for malformed redis url")
	}
}

func TestRestore_HydratesKnownContainers(t *testing.T) {
	ctx := context.Background()
	backend := storetest.NewBackend()
	hub := store.NewHub()
	assets := store.NewContainer(store.Descriptor{Name: "assets"}, backend)
	if err := hub.Register(assets); err != nil {
		t.Fatalf("Register: %v", err)
	}

	st := NewMemory()
	if err := st.Save(ctx, append(sampleSnapshots(), store.Snapshot{Name: "retired", Items: []resource.Entity{}})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored, err := Restore(ctx, st, hub, zerolog.Nop())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if diff := cmp.Diff([]string{"assets"}, restored); diff != "" {
		t.Errorf("restored mismatch (-want +got):\n%s", diff)
	}
	if n := len(assets.Items()); n != 2 {
		t.Errorf("expected 2 hydrated items, got %d", n)
	}
	if cur := assets.Current(); cur == nil || !cur.HasID(resource.DefaultIDField, "7") {
		t.Errorf("expected current entity 7 restored, got %v", cur)
	}
	if s := assets.Status(store.OpFetchAll); s.Status != lifecycle.StatusIdle {
		t.Errorf("hydration must leave trackers idle, got %s", s.Status)
	}
	if len(backend.Calls) != 0 {
		t.Errorf("hydration must not contact the backend, got %v", backend.Calls)
	}
}
