package indices

import (
	"context"
	"fmt"

	"github.com/ridge/redstone/keys"
)

type multiDef struct {
	children []Definition
}

// Compose defines an index routing to several child indexes on the same
// field. Filters go to the first child claiming the suffix; writes fan out
// to every child, with uniqueness checked by at most one. Composites may
// nest; nesting is flattened at construction.
func Compose(children ...Definition) Definition {
	var flat []Definition
	for _, child := range children {
		if m, ok := child.(multiDef); ok {
			flat = append(flat, m.children...)
			continue
		}
		flat = append(flat, child)
	}
	return multiDef{children: flat}
}

func (d multiDef) Bind(b Binding) (Index, error) {
	if len(d.children) == 0 {
		return nil, fmt.Errorf("%w: composite index on %s.%s has no children",
			ErrConfiguration, b.Model.Name(), b.Field.Name())
	}
	children := make([]Index, 0, len(d.children))
	for _, child := range d.children {
		ix, err := child.Bind(b)
		if err != nil {
			return nil, err
		}
		children = append(children, ix)
	}
	return multiIndex{children: children}, nil
}

type multiIndex struct {
	children []Index
}

func (m multiIndex) CanHandle(suffix string) bool {
	for _, child := range m.children {
		if child.CanHandle(suffix) {
			return true
		}
	}
	return false
}

func (m multiIndex) HandlesUniqueness() bool {
	for _, child := range m.children {
		if child.HandlesUniqueness() {
			return true
		}
	}
	return false
}

// Normalize and StorageKey delegate to the first child, like a bare filter
// would.
func (m multiIndex) Normalize(value any, applyTransform bool) (string, error) {
	return m.children[0].Normalize(value, applyTransform)
}

func (m multiIndex) StorageKey(subPath []string, value any) (string, error) {
	return m.children[0].StorageKey(subPath, value)
}

func (m multiIndex) Add(ctx context.Context, pk string, subPath []string, value any, checkUniqueness bool) error {
	for _, child := range m.children {
		check := checkUniqueness && child.HandlesUniqueness()
		if err := child.Add(ctx, pk, subPath, value, check); err != nil {
			return err
		}
		if check {
			// at most one child verifies uniqueness
			checkUniqueness = false
		}
	}
	return nil
}

func (m multiIndex) Remove(ctx context.Context, pk string, subPath []string, value any) error {
	for _, child := range m.children {
		if err := child.Remove(ctx, pk, subPath, value); err != nil {
			return err
		}
	}
	return nil
}

func (m multiIndex) FilteredKeys(ctx context.Context, suffix string, subPath []string, value any, accepted []keys.Type) ([]keys.Storage, error) {
	for _, child := range m.children {
		if child.CanHandle(suffix) {
			return child.FilteredKeys(ctx, suffix, subPath, value, accepted)
		}
	}
	return nil, fmt.Errorf("%w: no child index serves suffix %q", ErrImplementation, suffix)
}

func (m multiIndex) AllStorageKeys(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var all []string
	for _, child := range m.children {
		childKeys, err := child.AllStorageKeys(ctx)
		if err != nil {
			return nil, err
		}
		for _, key := range childKeys {
			if !seen[key] {
				seen[key] = true
				all = append(all, key)
			}
		}
	}
	return all, nil
}

// ScoredSetKey implements ScoredSet when any child does.
func (m multiIndex) ScoredSetKey() (string, error) {
	for _, child := range m.children {
		if ss, ok := child.(ScoredSet); ok {
			return ss.ScoredSetKey()
		}
	}
	return "", fmt.Errorf("%w: no scored set among composed indexes", ErrConfiguration)
}

func (m multiIndex) ResetLog() {
	for _, child := range m.children {
		child.ResetLog()
	}
}

func (m multiIndex) Rollback(ctx context.Context) error {
	for _, child := range m.children {
		if err := child.Rollback(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m multiIndex) Clear(ctx context.Context, aggressive bool) error {
	for _, child := range m.children {
		if err := child.Clear(ctx, aggressive); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild clears every child first and reindexes them afterwards:
// letting each child rebuild on its own would have its aggressive clear
// wipe what the previous child just built.
func (m multiIndex) Rebuild(ctx context.Context) error {
	for _, child := range m.children {
		if err := child.Clear(ctx, true); err != nil {
			return err
		}
	}
	for _, child := range m.children {
		if err := reindexOne(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func (m multiIndex) reindex(ctx context.Context) error {
	for _, child := range m.children {
		if err := reindexOne(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func reindexOne(ctx context.Context, ix Index) error {
	if r, ok := ix.(reindexer); ok {
		return r.reindex(ctx)
	}
	return ix.Rebuild(ctx)
}
