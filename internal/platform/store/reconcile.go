package store

import (
	"github.com/ehr/hms/pkg/resource"
)

// The functions in this file are the mutation reconciler. They never modify
// their input slices, so a collection handed out earlier stays valid.

// ReplaceAll returns a copy of items, used as the new collection after a
// successful fetch-all.
func ReplaceAll(items []resource.Entity) []resource.Entity {
	out := make([]resource.Entity, len(items))
	copy(out, items)
	return out
}

// Append returns items with e added at the end. No dedup, no sort.
func Append(items []resource.Entity, e resource.Entity) []resource.Entity {
	out := make([]resource.Entity, len(items), len(items)+1)
	copy(out, items)
	return append(out, e)
}

// ReplaceByID swaps the element sharing e's identifier for e, keeping its
// position. If e has no identifier or none matches, items is returned
// unchanged and the second result is false.
func ReplaceByID(items []resource.Entity, idField string, e resource.Entity) ([]resource.Entity, bool) {
	id, ok := e.ID(idField)
	if !ok {
		return items, false
	}
	for i, existing := range items {
		if existing.HasID(idField, id) {
			out := make([]resource.Entity, len(items))
			copy(out, items)
			out[i] = e
			return out, true
		}
	}
	return items, false
}

// RemoveByID drops every element carrying id. An absent id leaves the
// collection unchanged.
func RemoveByID(items []resource.Entity, idField, id string) ([]resource.Entity, bool) {
	out := make([]resource.Entity, 0, len(items))
	removed := false
	for _, existing := range items {
		if existing.HasID(idField, id) {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	if !removed {
		return items, false
	}
	return out, true
}
