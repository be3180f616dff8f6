package indices

import (
	"context"
	"fmt"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/store"
)

type equalDef struct {
	cfg config
}

// Equal defines an equality index: one set of primary keys per distinct
// indexed value. Claims the bare, eq and in filter suffixes and can enforce
// uniqueness.
func Equal(options ...Option) Definition {
	return equalDef{cfg: newConfig(options)}
}

func (d equalDef) Bind(b Binding) (Index, error) {
	ix := &equalIndex{}
	ix.init(d.cfg, b, ix)
	return ix, nil
}

type equalIndex struct {
	base
}

func (ix *equalIndex) handles(bare string) bool {
	return bare == "" || bare == "eq" || bare == "in"
}

func (ix *equalIndex) StorageKey(subPath []string, value any) (string, error) {
	normalized, err := ix.Normalize(value, true)
	if err != nil {
		return "", err
	}
	return ix.storageKey(subPath, normalized), nil
}

func (ix *equalIndex) storageKey(subPath []string, normalized string) string {
	return keys.Make(append(ix.keyParts(subPath), normalized)...)
}

func (ix *equalIndex) Add(ctx context.Context, pk string, subPath []string, value any, checkUniqueness bool) error {
	key, err := ix.StorageKey(subPath, value)
	if err != nil {
		return err
	}
	if ix.checksUniqueness(checkUniqueness) {
		release, err := ix.lockForUpdate(ctx)
		if err != nil {
			return err
		}
		defer release()
		pks, err := store.Strings(ix.bind.Conn.Execute(ctx, "smembers", key))
		if err != nil {
			return err
		}
		if err := ix.assertUniqueness(ctx, pks, pk, key, value); err != nil {
			return err
		}
	}
	ix.debugWrite(ctx, "adding to index", pk, key)
	if _, err := ix.bind.Conn.Execute(ctx, "sadd", key, pk); err != nil {
		return err
	}
	ix.logIndexed(pk, subPath, value)
	return nil
}

func (ix *equalIndex) Remove(ctx context.Context, pk string, subPath []string, value any) error {
	key, err := ix.StorageKey(subPath, value)
	if err != nil {
		return err
	}
	ix.debugWrite(ctx, "removing from index", pk, key)
	if _, err := ix.bind.Conn.Execute(ctx, "srem", key, pk); err != nil {
		return err
	}
	ix.logDeindexed(pk, subPath, value)
	return nil
}

func (ix *equalIndex) FilteredKeys(ctx context.Context, suffix string, subPath []string, value any, accepted []keys.Type) ([]keys.Storage, error) {
	bare, ok := ix.cfg.bareSuffix(suffix)
	if !ok || !ix.handles(bare) {
		return nil, fmt.Errorf("%w: equal index cannot serve suffix %q", ErrImplementation, suffix)
	}
	if !keys.Accepted(keys.TypeSet, accepted) {
		return nil, fmt.Errorf("%w: equal index can only produce set keys", ErrImplementation)
	}

	if bare == "in" {
		values, err := valueSlice(value)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return ix.emptyTemporary(keys.TypeSet), nil
		}
		sources := make([]any, 0, len(values))
		for _, v := range values {
			// filter values are already in their queryable form
			normalized, err := ix.Normalize(v, false)
			if err != nil {
				return nil, err
			}
			sources = append(sources, ix.storageKey(subPath, normalized))
		}
		tmp := keys.Temporary(ix.bind.Model.Name())
		if _, err := ix.bind.Conn.Execute(ctx, "sunionstore", tmp, sources...); err != nil {
			return nil, err
		}
		return []keys.Storage{{Name: tmp, Type: keys.TypeSet, Temporary: true}}, nil
	}

	normalized, err := ix.Normalize(value, false)
	if err != nil {
		return nil, err
	}
	return []keys.Storage{{Name: ix.storageKey(subPath, normalized), Type: keys.TypeSet}}, nil
}

func (ix *equalIndex) Clear(ctx context.Context, aggressive bool) error {
	return clearIndex(ctx, &ix.base, aggressive)
}

func (ix *equalIndex) Rebuild(ctx context.Context) error {
	return rebuildIndex(ctx, &ix.base)
}
