// Package snapshot keeps an offline copy of every container's collection so
// the console can start with data before the backend answers.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ehr/hms/internal/config"
	"github.com/ehr/hms/internal/platform/db"
	"github.com/ehr/hms/internal/platform/store"
	"github.com/ehr/hms/pkg/resource"
)

// ErrDisabled is returned by Open when no backend is configured.
var ErrDisabled = errors.New("snapshot: no backend configured")

// Store persists container snapshots. Save replaces the stored copy of each
// named container and leaves others untouched.
type Store interface {
	Save(ctx context.Context, snaps []store.Snapshot) error
	Load(ctx context.Context) ([]store.Snapshot, error)
	Ping(ctx context.Context) error
	Close() error
}

// record is the stored form: items and current only, trackers always
// restart idle.
type record struct {
	Name    string            `json:"name"`
	Items   []resource.Entity `json:"items"`
	Current resource.Entity   `json:"current,omitempty"`
	SavedAt time.Time         `json:"saved_at,omitempty"`
}

func encode(s store.Snapshot, now time.Time) ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []resource.Entity{}
	}
	b, err := json.Marshal(record{Name: s.Name, Items: items, Current: s.Current, SavedAt: now.UTC()})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.Name, err)
	}
	return b, nil
}

func decode(payload []byte) (store.Snapshot, error) {
	var r record
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if r.Items == nil {
		r.Items = []resource.Entity{}
	}
	return store.Snapshot{Name: r.Name, Items: r.Items, Current: r.Current}, nil
}

func sortByName(snaps []store.Snapshot) {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
}

// Open builds the backend selected by cfg.Snapshot.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Snapshot {
	case config.SnapshotMemory:
		s = NewMemory()
	case config.SnapshotSQLite:
		s, err = NewSQLite(ctx, cfg.SQLitePath)
	case config.SnapshotPostgres:
		pool, perr := db.NewPool(ctx, db.PoolOptions{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if perr != nil {
			return nil, perr
		}
		s, err = NewPostgres(ctx, pool)
	case config.SnapshotRedis:
		s, err = NewRedis(ctx, cfg.RedisURL)
	default:
		return nil, ErrDisabled
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("backend", cfg.Snapshot).Msg("snapshot store ready")
	return s, nil
}

// Restore hydrates hub from st and returns the names it restored.
func Restore(ctx context.Context, st Store, hub *store.Hub, logger zerolog.Logger) ([]string, error) {
	snaps, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	skipped := hub.Hydrate(snaps)
	for _, name := range skipped {
		logger.Warn().Str("container", name).Msg("snapshot for unknown container ignored")
	}
	restored := make([]string, 0, len(snaps))
	skip := make(map[string]bool, len(skipped))
	for _, name := range skipped {
		skip[name] = true
	}
	for _, s := range snaps {
		if !skip[s.Name] {
			restored = append(restored, s.Name)
		}
	}
	return restored, nil
}
