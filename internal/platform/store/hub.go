package store

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Hub is the composed store: every container, built once at process start
// and passed by reference to whatever renders the state.
type Hub struct {
	mu         sync.RWMutex
	containers map[string]*Container
	order      []string
}

func NewHub() *Hub {
	return &Hub{containers: make(map[string]*Container)}
}

// Register adds c under its name. Names must be unique.
func (h *Hub) Register(c *Container) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.containers[c.Name()]; exists {
		return fmt.Errorf("container %q already registered", c.Name())
	}
	h.containers[c.Name()] = c
	h.order = append(h.order, c.Name())
	return nil
}

// Container looks up a container by name.
func (h *Hub) Container(name string) (*Container, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.containers[name]
	return c, ok
}

// Names lists containers in registration order.
func (h *Hub) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// LoadAll runs fetch-all on the named containers, or on all of them when no
// name is given, concurrently. An unknown name fails before any request is
// sent. A failure in one container does not stop the others; the first
// error is returned after all have settled.
func (h *Hub) LoadAll(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		names = h.Names()
	}
	targets := make([]*Container, 0, len(names))
	for _, name := range names {
		c, ok := h.Container(name)
		if !ok {
			return fmt.Errorf("unknown container %q", name)
		}
		targets = append(targets, c)
	}

	var g errgroup.Group
	for _, c := range targets {
		c := c
		g.Go(func() error {
			_, err := c.FetchAll(ctx, url.Values{})
			return err
		})
	}
	return g.Wait()
}

// Snapshot returns every container's state in registration order.
func (h *Hub) Snapshot() []Snapshot {
	names := h.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		c, _ := h.Container(name)
		out = append(out, c.Snapshot())
	}
	return out
}

// Hydrate restores collections and current entities from snapshots.
// Snapshots for unknown containers are skipped and their names returned.
func (h *Hub) Hydrate(snaps []Snapshot) []string {
	var skipped []string
	for _, s := range snaps {
		c, ok := h.Container(s.Name)
		if !ok {
			skipped = append(skipped, s.Name)
			continue
		}
		c.Restore(s)
	}
	return skipped
}
