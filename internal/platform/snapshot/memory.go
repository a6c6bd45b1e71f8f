package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/ehr/hms/internal/platform/store"
)

// Memory keeps encoded snapshots in process. Useful for tests and for
// carrying state across a hub rebuild.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]byte), now: time.Now}
}

func (m *Memory) Save(_ context.Context, snaps []store.Snapshot) error {
	encoded := make(map[string][]byte, len(snaps))
	for _, s := range snaps {
		b, err := encode(s, m.now())
		if err != nil {
			return err
		}
		encoded[s.Name] = b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, b := range encoded {
		m.records[name] = b
	}
	return nil
}

func (m *Memory) Load(_ context.Context) ([]store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.Snapshot, 0, len(m.records))
	for _, b := range m.records {
		s, err := decode(b)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sortByName(out)
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
