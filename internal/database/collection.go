package database

import (
	"context"
	"fmt"
)

// Validator is implemented by records that check their own invariants
// before being written.
type Validator interface {
	Validate() error
}

// Collection is a typed repository over one named collection of a Store.
type Collection[T any] struct {
	store Store
	name  string
}

// NewCollection binds a typed repository to store under name.
func NewCollection[T any](store Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

// Name returns the underlying collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

func validate[T any](v *T) error {
	if val, ok := any(v).(Validator); ok {
		return val.Validate()
	}
	return nil
}

func decode[T any](doc Document) (*T, error) {
	var v T
	if err := doc.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Get returns ErrNotFound when id is absent.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	res, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	if !res.Exists {
		return nil, fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	return decode[T](res.Data)
}

// Set validates v and upserts it under id.
func (c *Collection[T]) Set(ctx context.Context, id string, v *T) error {
	if err := validate(v); err != nil {
		return err
	}
	doc, err := ToDocument(v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.name, id, doc)
}

// Update shallow-merges partial into the stored record after checking that
// the merged result is still valid. Missing records are left alone.
func (c *Collection[T]) Update(ctx context.Context, id string, partial Document) error {
	res, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return err
	}
	if !res.Exists {
		return nil
	}
	patch, err := normalizeDocument(partial)
	if err != nil {
		return err
	}
	merged := res.Data
	for k, v := range patch {
		merged[k] = v
	}
	next, err := decode[T](merged)
	if err != nil {
		return err
	}
	if err := validate(next); err != nil {
		return err
	}
	return c.store.Update(ctx, c.name, id, patch)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}

// FindBy returns every record whose field matches value under op.
func (c *Collection[T]) FindBy(ctx context.Context, field string, op Operator, value any) ([]T, error) {
	docs, err := c.store.Query(ctx, c.name, Filter{Field: field, Op: op, Value: value})
	if err != nil {
		return nil, err
	}
	return decodeAll[T](docs)
}

// FindAllSorted applies an optional filter and sorts by order.
func (c *Collection[T]) FindAllSorted(ctx context.Context, filter *Filter, order Sort) ([]T, error) {
	docs, err := c.store.QueryWithSort(ctx, c.name, filter, order)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](docs)
}

func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	docs, err := c.store.All(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](docs)
}
