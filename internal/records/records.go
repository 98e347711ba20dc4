// Package records edits ordered collections of identified records without
// touching the caller's slice.
package records

import (
	"errors"
	"slices"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record with this identifier already exists")
)

// Identified is anything stored in a collection under a unique identifier.
type Identified interface {
	RecordID() string
}

// Find returns the record with the given identifier.
func Find[T Identified](items []T, id string) (T, bool) {
	for _, it := range items {
		if it.RecordID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// FindAndReplace returns a copy of items where the record matching id is
// replaced by apply(record). Order is preserved.
func FindAndReplace[T Identified](items []T, id string, apply func(T) T) ([]T, T, error) {
	for i, it := range items {
		if it.RecordID() != id {
			continue
		}
		out := slices.Clone(items)
		out[i] = apply(it)
		return out, out[i], nil
	}
	var zero T
	return nil, zero, ErrNotFound
}

// DeleteByID returns a copy of items without the record matching id.
func DeleteByID[T Identified](items []T, id string) ([]T, error) {
	idx := slices.IndexFunc(items, func(it T) bool { return it.RecordID() == id })
	if idx < 0 {
		return nil, ErrNotFound
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...), nil
}

// Insert returns a copy of items with rec appended.
func Insert[T any](items []T, rec T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, rec)
}

// InsertUnique is Insert that refuses a second record with the same identifier.
func InsertUnique[T Identified](items []T, rec T) ([]T, error) {
	if _, exists := Find(items, rec.RecordID()); exists {
		return nil, ErrDuplicate
	}
	return Insert(items, rec), nil
}
