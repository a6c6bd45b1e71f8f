// Package store holds the per-entity state containers of the data layer.
//
// A Container owns one collection and one "current entity" slot. Each of
// its operations is tracked by a lifecycle.Tracker; successful results are
// folded into the collection by the pure reducers in reconcile.go, so the
// collection never needs to be re-fetched after a mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tiendc/go-deepcopy"

	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/internal/platform/lifecycle"
	"github.com/ehr/hms/internal/platform/metrics"
	"github.com/ehr/hms/pkg/resource"
)

var (
	// ErrSuperseded is returned when the stale guard discarded a response
	// because a newer attempt of the same operation was started.
	ErrSuperseded = errors.New("response superseded by a newer request")
	ErrUnknownOp  = errors.New("unknown operation")
	ErrBusy       = errors.New("operation in flight")
)

// Gateway is the remote side of a container. *gateway.Client satisfies it.
type Gateway interface {
	FetchAll(ctx context.Context, collection string, filter url.Values) ([]resource.Entity, error)
	FetchOne(ctx context.Context, collection, id string) (resource.Entity, error)
	Create(ctx context.Context, collection string, p gateway.Payload) (resource.Entity, error)
	Update(ctx context.Context, collection, id string, p gateway.Payload) (resource.Entity, error)
	Delete(ctx context.Context, collection, id string) (string, error)
}

// Descriptor parameterizes a container.
type Descriptor struct {
	// Name identifies the container in the hub and in logs.
	Name string
	// Path is the collection endpoint relative to the backend base url.
	Path string
	// IDField is the identifier field, "id" when empty.
	IDField string
}

// Change is published to subscribers after every state change.
type Change struct {
	Container string           `json:"container"`
	Op        Op               `json:"op,omitempty"`
	Status    lifecycle.Status `json:"status,omitempty"`
}

type Option func(*containerOptions)

type containerOptions struct {
	logger     zerolog.Logger
	staleGuard bool
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *containerOptions) { o.logger = l }
}

// WithStaleGuard discards responses that belong to a superseded attempt
// instead of letting the last one to arrive win.
func WithStaleGuard(on bool) Option {
	return func(o *containerOptions) { o.staleGuard = on }
}

type Container struct {
	desc     Descriptor
	gw       Gateway
	logger   zerolog.Logger
	trackers map[Op]*lifecycle.Tracker

	mu    sync.RWMutex
	state State

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

func NewContainer(desc Descriptor, gw Gateway, opts ...Option) *Container {
	o := containerOptions{logger: zerolog.Nop()}
	for _, fn := range opts {
		fn(&o)
	}
	if desc.IDField == "" {
		desc.IDField = resource.DefaultIDField
	}
	if desc.Path == "" {
		desc.Path = desc.Name
	}

	c := &Container{
		desc:     desc,
		gw:       gw,
		logger:   o.logger.With().Str("container", desc.Name).Logger(),
		trackers: make(map[Op]*lifecycle.Tracker, len(Ops)),
		state:    State{Items: []resource.Entity{}},
		subs:     make(map[int]func(Change)),
	}
	for _, op := range Ops {
		topts := []lifecycle.Option{
			lifecycle.WithObserver(func(s lifecycle.Status) {
				metrics.ObserveTransition(desc.Name, string(op), string(s))
			}),
		}
		if o.staleGuard {
			topts = append(topts, lifecycle.WithStaleGuard())
		}
		c.trackers[op] = lifecycle.New(topts...)
	}
	return c
}

func (c *Container) Name() string           { return c.desc.Name }
func (c *Container) Descriptor() Descriptor { return c.desc }

// FetchAll replaces the collection with the backend's list.
func (c *Container) FetchAll(ctx context.Context, filter url.Values) ([]resource.Entity, error) {
	gen := c.begin(OpFetchAll)
	items, err := c.gw.FetchAll(ctx, c.desc.Path, filter)
	if err != nil {
		return nil, c.fail(OpFetchAll, gen, err)
	}
	msg := fmt.Sprintf("loaded %d %s", len(items), c.desc.Name)
	if err := c.commit(OpFetchAll, gen, msg, Action{Op: OpFetchAll, Items: items}); err != nil {
		return nil, err
	}
	return cloneItems(items), nil
}

// FetchOne loads one entity into the current slot.
func (c *Container) FetchOne(ctx context.Context, id string) (resource.Entity, error) {
	gen := c.begin(OpFetchOne)
	e, err := c.gw.FetchOne(ctx, c.desc.Path, id)
	if err != nil {
		return nil, c.fail(OpFetchOne, gen, err)
	}
	if err := c.commit(OpFetchOne, gen, "", Action{Op: OpFetchOne, Entity: e}); err != nil {
		return nil, err
	}
	return cloneEntity(e), nil
}

// Create submits p and appends the server-confirmed entity.
func (c *Container) Create(ctx context.Context, p gateway.Payload) (resource.Entity, error) {
	gen := c.begin(OpCreate)
	e, err := c.gw.Create(ctx, c.desc.Path, p)
	if err != nil {
		return nil, c.fail(OpCreate, gen, err)
	}
	if err := c.commit(OpCreate, gen, c.describe("created", e, ""), Action{Op: OpCreate, Entity: e}); err != nil {
		return nil, err
	}
	return cloneEntity(e), nil
}

// Update submits p for id and replaces the matching entity in place with the
// server's version. An entity absent from the collection is not inserted.
func (c *Container) Update(ctx context.Context, id string, p gateway.Payload) (resource.Entity, error) {
	gen := c.begin(OpUpdate)
	e, err := c.gw.Update(ctx, c.desc.Path, id, p)
	if err != nil {
		return nil, c.fail(OpUpdate, gen, err)
	}
	if err := c.commit(OpUpdate, gen, c.describe("updated", e, id), Action{Op: OpUpdate, Entity: e}); err != nil {
		return nil, err
	}
	return cloneEntity(e), nil
}

// Delete removes id remotely and then from the collection.
func (c *Container) Delete(ctx context.Context, id string) (string, error) {
	gen := c.begin(OpDelete)
	deleted, err := c.gw.Delete(ctx, c.desc.Path, id)
	if err != nil {
		return "", c.fail(OpDelete, gen, err)
	}
	if err := c.commit(OpDelete, gen, c.describe("deleted", nil, deleted), Action{Op: OpDelete, ID: deleted}); err != nil {
		return "", err
	}
	return deleted, nil
}

// Reset returns op's tracker to idle without touching the entities.
func (c *Container) Reset(op Op) error {
	t, ok := c.trackers[op]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	if !t.Reset() {
		return fmt.Errorf("reset %s: %w", op, ErrBusy)
	}
	c.publish(Change{Container: c.desc.Name, Op: op, Status: lifecycle.StatusIdle})
	return nil
}

// ResetCurrent clears the current entity slot.
func (c *Container) ResetCurrent() {
	c.mu.Lock()
	c.state.Current = nil
	c.mu.Unlock()
	c.publish(Change{Container: c.desc.Name})
}

// Hydrate replaces the collection without a remote call, leaving every
// tracker as it is. Used to restore an offline snapshot.
func (c *Container) Hydrate(items []resource.Entity) {
	c.mu.Lock()
	c.state.Items = ReplaceAll(cloneItems(items))
	n := len(c.state.Items)
	c.mu.Unlock()
	metrics.SetCollectionSize(c.desc.Name, n)
	c.publish(Change{Container: c.desc.Name})
}

// Restore applies a saved snapshot: the collection and, when the snapshot
// holds one, the current entity. Trackers are left as they are.
func (c *Container) Restore(s Snapshot) {
	c.mu.Lock()
	c.state.Items = ReplaceAll(cloneItems(s.Items))
	if s.Current != nil {
		c.state.Current = cloneEntity(s.Current)
	}
	n := len(c.state.Items)
	c.mu.Unlock()
	metrics.SetCollectionSize(c.desc.Name, n)
	c.publish(Change{Container: c.desc.Name})
}

// Items returns a deep copy of the collection.
func (c *Container) Items() []resource.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneItems(c.state.Items)
}

// Current returns a deep copy of the current entity, nil when unset.
func (c *Container) Current() resource.Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneEntity(c.state.Current)
}

// Status returns op's tracker state.
func (c *Container) Status(op Op) lifecycle.State {
	t, ok := c.trackers[op]
	if !ok {
		return lifecycle.State{Status: lifecycle.StatusIdle}
	}
	return t.State()
}

// Snapshot returns a consistent deep copy of the whole container.
func (c *Container) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ops := make(map[Op]lifecycle.State, len(c.trackers))
	for op, t := range c.trackers {
		ops[op] = t.State()
	}
	return Snapshot{
		Name:    c.desc.Name,
		Items:   cloneItems(c.state.Items),
		Current: cloneEntity(c.state.Current),
		Ops:     ops,
	}
}

// Subscribe registers fn for every change and returns a function that
// removes it. fn runs on the goroutine that caused the change.
func (c *Container) Subscribe(fn func(Change)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Container) begin(op Op) uint64 {
	gen := c.trackers[op].Begin()
	c.logger.Debug().Str("op", string(op)).Uint64("generation", gen).Msg("operation started")
	c.publish(Change{Container: c.desc.Name, Op: op, Status: lifecycle.StatusLoading})
	return gen
}

func (c *Container) fail(op Op, gen uint64, err error) error {
	if !c.trackers[op].Fail(gen, err) {
		c.logger.Debug().Str("op", string(op)).Uint64("generation", gen).Msg("discarded superseded failure")
		return fmt.Errorf("%s %s: %w", c.desc.Name, op, ErrSuperseded)
	}
	c.logger.Warn().Err(err).Str("op", string(op)).Msg("operation failed")
	c.publish(Change{Container: c.desc.Name, Op: op, Status: lifecycle.StatusFailed})
	return err
}

// commit settles the tracker and applies the action in one critical
// section, so readers never see a succeeded status without its data.
func (c *Container) commit(op Op, gen uint64, msg string, a Action) error {
	c.mu.Lock()
	if !c.trackers[op].Succeed(gen, msg) {
		c.mu.Unlock()
		c.logger.Debug().Str("op", string(op)).Uint64("generation", gen).Msg("discarded superseded response")
		return fmt.Errorf("%s %s: %w", c.desc.Name, op, ErrSuperseded)
	}
	c.state = Reduce(c.state, a, c.desc.IDField)
	n := len(c.state.Items)
	c.mu.Unlock()

	metrics.SetCollectionSize(c.desc.Name, n)
	c.publish(Change{Container: c.desc.Name, Op: op, Status: lifecycle.StatusSucceeded})
	return nil
}

func (c *Container) describe(verb string, e resource.Entity, fallback string) string {
	id, ok := e.ID(c.desc.IDField)
	if !ok {
		id = fallback
	}
	if id == "" {
		return fmt.Sprintf("%s: %s", c.desc.Name, verb)
	}
	return fmt.Sprintf("%s %s: %s", c.desc.Name, id, verb)
}

func (c *Container) publish(ch Change) {
	c.subMu.Lock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}

func cloneItems(items []resource.Entity) []resource.Entity {
	out := make([]resource.Entity, 0, len(items))
	if len(items) == 0 {
		return out
	}
	if err := deepcopy.Copy(&out, items); err != nil {
		// Entities only hold JSON values; fall back to a shallow copy.
		out = append(out[:0], items...)
	}
	return out
}

func cloneEntity(e resource.Entity) resource.Entity {
	if e == nil {
		return nil
	}
	var out resource.Entity
	if err := deepcopy.Copy(&out, e); err != nil {
		out = make(resource.Entity, len(e))
		for k, v := range e {
			out[k] = v
		}
	}
	return out
}
