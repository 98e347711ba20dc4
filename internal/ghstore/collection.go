package ghstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zatyrani/zatyrani-backend/internal/metrics"
)

// Collection is a JSON array of T stored in one file.
type Collection[T any] struct {
	contents Contents
	path     string
}

func NewCollection[T any](contents Contents, path string) *Collection[T] {
	return &Collection[T]{contents: contents, path: path}
}

// List returns the stored records. A missing or empty file is an empty list.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	items, _, err := c.load(ctx)
	return items, err
}

// Mutate reads the collection, applies fn and writes the result back based
// on the SHA that was read. fn must not keep the slice it is given.
func (c *Collection[T]) Mutate(ctx context.Context, message string, fn func([]T) ([]T, error)) error {
	items, sha, err := c.load(ctx)
	if err != nil {
		return err
	}

	next, err := fn(items)
	if err != nil {
		return err
	}

	data, err := encode(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}

	if err := c.contents.Put(ctx, c.path, data, sha, message); err != nil {
		if errors.Is(err, ErrStale) {
			metrics.DataFileConflicts.Inc()
		}
		return err
	}
	return nil
}

func (c *Collection[T]) load(ctx context.Context) ([]T, string, error) {
	raw, sha, err := c.contents.Get(ctx, c.path)
	if err != nil {
		return nil, "", err
	}

	items := []T{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return items, sha, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", c.path, err)
	}
	return items, sha, nil
}

func encode[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
