// Package resource defines the opaque record type exchanged with the hospital
// administration backend and helpers for reading its identifier.
package resource

import (
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
)

// DefaultIDField is the identifier field used when a collection does not
// name its own.
const DefaultIDField = "id"

// Entity is a flat key/value record owned by the backend. Only the
// identifier field is ever inspected by the data layer.
type Entity map[string]any

// ID returns the canonical string form of the entity's identifier.
func (e Entity) ID(idField string) (string, bool) {
	if e == nil {
		return "", false
	}
	if idField == "" {
		idField = DefaultIDField
	}
	v, ok := e[idField]
	if !ok || v == nil {
		return "", false
	}
	id := CanonicalID(v)
	return id, id != ""
}

// HasID reports whether the entity carries the given identifier.
func (e Entity) HasID(idField, id string) bool {
	got, ok := e.ID(idField)
	return ok && got == id
}

// CanonicalID renders an identifier value as a string so that the JSON
// number 7, the float 7.0 and the string "7" compare equal.
func CanonicalID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		if i, err := id.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := id.Float64(); err == nil && integral(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return id.String()
	case float64:
		if integral(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return CanonicalID(float64(id))
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprintf("%v", id)
	}
}

// integral reports whether f is a whole number an int64 holds exactly.
func integral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<53
}

// Decode converts an entity into a typed model using the model's json tags.
// Numbers, booleans and strings are converted loosely since backends are not
// consistent about quoting.
func Decode[T any](e Entity) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           &out,
	})
	if err != nil {
		return out, fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(e)); err != nil {
		return out, fmt.Errorf("decode entity: %w", err)
	}
	return out, nil
}

// DecodeAll decodes every entity, stopping at the first failure.
func DecodeAll[T any](items []Entity) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, e := range items {
		v, err := Decode[T](e)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FromModel converts a typed model into an entity through its JSON form.
func FromModel(v any) (Entity, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("unmarshal model: %w", err)
	}
	return e, nil
}
