package indices

import (
	"context"
	"fmt"

	"github.com/ridge/redstone/meta"
)

// Registry holds the bound indexes of one field, in declaration order.
// Filter suffixes resolve to the first index claiming them.
type Registry struct {
	field   meta.Field
	indexes []Index
}

// NewRegistry creates a registry over the given bound indexes.
func NewRegistry(field meta.Field, indexes ...Index) *Registry {
	return &Registry{field: field, indexes: indexes}
}

// Field returns the indexed field.
func (r *Registry) Field() meta.Field {
	return r.field
}

// Indexes returns the bound indexes in declaration order.
func (r *Registry) Indexes() []Index {
	return r.indexes
}

// Resolve returns the first index claiming the given qualified suffix
// ("" for a bare filter).
func (r *Registry) Resolve(suffix string) (Index, bool) {
	for _, ix := range r.indexes {
		if ix.CanHandle(suffix) {
			return ix, true
		}
	}
	return nil, false
}

// Unique returns the first uniqueness-capable index, used to enforce a
// unique constraint on the field.
func (r *Registry) Unique() (Index, bool) {
	for _, ix := range r.indexes {
		if ix.HandlesUniqueness() {
			return ix, true
		}
	}
	return nil, false
}

// Clear empties every index of the field.
func (r *Registry) Clear(ctx context.Context, aggressive bool) error {
	for _, ix := range r.indexes {
		if err := ix.Clear(ctx, aggressive); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild reindexes every index of the field from the current data. The
// indexes are all cleared up front because an aggressive clear sweeps the
// field's whole key namespace, which sibling indexes share.
func (r *Registry) Rebuild(ctx context.Context) error {
	for _, ix := range r.indexes {
		if err := ix.Clear(ctx, true); err != nil {
			return err
		}
	}
	for _, ix := range r.indexes {
		if err := reindexOne(ctx, ix); err != nil {
			return err
		}
	}
	return nil
}

// ScoredSetKey returns the key of the sorted set scored by the field's
// values, if any index of the field maintains one.
func (r *Registry) ScoredSetKey() (string, bool) {
	for _, ix := range r.indexes {
		if ss, ok := ix.(ScoredSet); ok {
			if key, err := ss.ScoredSetKey(); err == nil {
				return key, true
			}
		}
	}
	return "", false
}

// Add writes pk to every index of the field, checking uniqueness on at
// most the first capable one.
func (r *Registry) Add(ctx context.Context, pk string, subPath []string, value any, checkUniqueness bool) error {
	for _, ix := range r.indexes {
		check := checkUniqueness && ix.HandlesUniqueness()
		if err := ix.Add(ctx, pk, subPath, value, check); err != nil {
			return err
		}
		if check {
			checkUniqueness = false
		}
	}
	return nil
}

// Remove erases pk from every index of the field.
func (r *Registry) Remove(ctx context.Context, pk string, subPath []string, value any) error {
	for _, ix := range r.indexes {
		if err := ix.Remove(ctx, pk, subPath, value); err != nil {
			return err
		}
	}
	return nil
}

// Rollback undoes logged writes on every index of the field.
func (r *Registry) Rollback(ctx context.Context) error {
	for _, ix := range r.indexes {
		if err := ix.Rollback(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ResetLog clears the rollback logs of every index of the field.
func (r *Registry) ResetLog() {
	for _, ix := range r.indexes {
		ix.ResetLog()
	}
}

// Bind binds definitions for a field and wraps them in a registry. A
// unique field without any uniqueness-capable index is a configuration
// error.
func Bind(b Binding, defs ...Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: field %s.%s has no index definitions",
			ErrConfiguration, b.Model.Name(), b.Field.Name())
	}
	if !b.Field.Indexable() {
		return nil, fmt.Errorf("%w: field %s.%s is not indexable",
			ErrConfiguration, b.Model.Name(), b.Field.Name())
	}
	indexes := make([]Index, 0, len(defs))
	for _, def := range defs {
		ix, err := def.Bind(b)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, ix)
	}
	r := NewRegistry(b.Field, indexes...)
	if b.Unique {
		if _, ok := r.Unique(); !ok {
			return nil, fmt.Errorf("%w: unique field %s.%s has no uniqueness-capable index",
				ErrConfiguration, b.Model.Name(), b.Field.Name())
		}
	}
	return r, nil
}
