// Package storetest provides an in-memory stand-in for the backend so
// containers and the services built on them can be tested without HTTP.
package storetest

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-json"

	"github.com/ehr/hms/internal/platform/gateway"
	"github.com/ehr/hms/pkg/resource"
)

// Backend implements store.Gateway over in-memory collections. Created
// entities get sequential numeric ids. Fail makes the next calls for a
// collection return err.
type Backend struct {
	mu       sync.Mutex
	data     map[string][]resource.Entity
	nextID   int
	failures map[string]error
	// Calls records "METHOD collection[/id]" for every request.
	Calls []string
	// Payloads keeps the decoded body of every create and update.
	Payloads []Decoded
}

// Decoded is a create or update body as the backend saw it.
type Decoded struct {
	ContentType string
	JSON        map[string]any
	Fields      map[string]string
	Parts       map[string]map[string]any
	Files       map[string]string
}

func NewBackend() *Backend {
	return &Backend{
		data:     make(map[string][]resource.Entity),
		failures: make(map[string]error),
		nextID:   1,
	}
}

// Seed replaces a collection's contents.
func (b *Backend) Seed(collection string, items ...resource.Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[collection] = append([]resource.Entity(nil), items...)
	for _, e := range items {
		if id, ok := e.ID(resource.DefaultIDField); ok {
			if n, err := strconv.Atoi(id); err == nil && n >= b.nextID {
				b.nextID = n + 1
			}
		}
	}
}

// Fail makes calls against collection return err until Recover is called.
func (b *Backend) Fail(collection string, err error) {
	b.mu.Lock()
	b.failures[collection] = err
	b.mu.Unlock()
}

func (b *Backend) Recover(collection string) {
	b.mu.Lock()
	delete(b.failures, collection)
	b.mu.Unlock()
}

// HTTPError builds the error the gateway reports for a non-2xx response.
func HTTPError(status int, message string) error {
	return &gateway.RemoteOperationError{Kind: gateway.KindHTTP, Status: status, Message: message}
}

func (b *Backend) begin(call, collection string) error {
	b.Calls = append(b.Calls, call)
	return b.failures[collection]
}

func (b *Backend) FetchAll(_ context.Context, collection string, filter url.Values) ([]resource.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("GET "+collection, collection); err != nil {
		return nil, err
	}
	out := []resource.Entity{}
	for _, e := range b.data[collection] {
		if matches(e, filter) {
			out = append(out, copyEntity(e))
		}
	}
	return out, nil
}

func (b *Backend) FetchOne(_ context.Context, collection, id string) (resource.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("GET "+collection+"/"+id, collection); err != nil {
		return nil, err
	}
	for _, e := range b.data[collection] {
		if e.HasID(resource.DefaultIDField, id) {
			return copyEntity(e), nil
		}
	}
	return nil, HTTPError(http.StatusNotFound, "not found")
}

func (b *Backend) Create(_ context.Context, collection string, p gateway.Payload) (resource.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("POST "+collection, collection); err != nil {
		return nil, err
	}
	d, err := decodePayload(p)
	if err != nil {
		return nil, err
	}
	b.Payloads = append(b.Payloads, d)

	e := d.entity()
	e[resource.DefaultIDField] = json.Number(strconv.Itoa(b.nextID))
	b.nextID++
	b.data[collection] = append(b.data[collection], e)
	return copyEntity(e), nil
}

func (b *Backend) Update(_ context.Context, collection, id string, p gateway.Payload) (resource.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("PUT "+collection+"/"+id, collection); err != nil {
		return nil, err
	}
	d, err := decodePayload(p)
	if err != nil {
		return nil, err
	}
	b.Payloads = append(b.Payloads, d)

	items := b.data[collection]
	for i, e := range items {
		if e.HasID(resource.DefaultIDField, id) {
			merged := copyEntity(e)
			for k, v := range d.entity() {
				merged[k] = v
			}
			merged[resource.DefaultIDField] = e[resource.DefaultIDField]
			items[i] = merged
			return copyEntity(merged), nil
		}
	}
	return nil, HTTPError(http.StatusNotFound, "not found")
}

func (b *Backend) Delete(_ context.Context, collection, id string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.begin("DELETE "+collection+"/"+id, collection); err != nil {
		return "", err
	}
	items := b.data[collection]
	for i, e := range items {
		if e.HasID(resource.DefaultIDField, id) {
			b.data[collection] = append(items[:i:i], items[i+1:]...)
			return id, nil
		}
	}
	return "", HTTPError(http.StatusNotFound, "not found")
}

// Items returns the backend's copy of a collection.
func (b *Backend) Items(collection string) []resource.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]resource.Entity, len(b.data[collection]))
	for i, e := range b.data[collection] {
		out[i] = copyEntity(e)
	}
	return out
}

func matches(e resource.Entity, filter url.Values) bool {
	for k, vals := range filter {
		if len(vals) == 0 {
			continue
		}
		if resource.CanonicalID(e[k]) != vals[0] {
			return false
		}
	}
	return true
}

func copyEntity(e resource.Entity) resource.Entity {
	out := make(resource.Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// entity flattens a decoded body: JSON bodies as-is, multipart bodies as
// their fields plus every JSON part merged in, with file names under the
// part name.
func (d Decoded) entity() resource.Entity {
	e := resource.Entity{}
	for k, v := range d.JSON {
		e[k] = v
	}
	for k, v := range d.Fields {
		e[k] = v
	}
	names := make([]string, 0, len(d.Parts))
	for name := range d.Parts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for k, v := range d.Parts[name] {
			e[k] = v
		}
	}
	for field, filename := range d.Files {
		e[field] = filename
	}
	return e
}

func decodePayload(p gateway.Payload) (Decoded, error) {
	if p == nil {
		return Decoded{}, nil
	}
	r, contentType, err := p.Encode()
	if err != nil {
		return Decoded{}, err
	}
	d := Decoded{ContentType: contentType}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return d, err
	}
	if mediaType != "multipart/form-data" {
		dec := json.NewDecoder(r)
		dec.UseNumber()
		err := dec.Decode(&d.JSON)
		if err == io.EOF {
			err = nil
		}
		return d, err
	}

	d.Fields = map[string]string{}
	d.Parts = map[string]map[string]any{}
	d.Files = map[string]string{}
	mr := multipart.NewReader(r, params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return d, nil
		}
		if err != nil {
			return d, err
		}
		body, err := io.ReadAll(part)
		if err != nil {
			return d, err
		}
		switch {
		case part.FileName() != "":
			d.Files[part.FormName()] = part.FileName()
		case part.Header.Get("Content-Type") == "application/json":
			var m map[string]any
			if err := json.Unmarshal(body, &m); err != nil {
				return d, err
			}
			d.Parts[part.FormName()] = m
		default:
			d.Fields[part.FormName()] = string(body)
		}
	}
}
