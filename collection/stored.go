package collection

import (
	"context"
	"time"

	"github.com/ridge/redstone/keys"
)

// Store materializes the collection, in its current order, into a list
// under the given key, overwriting whatever was there. An empty key
// generates one. A positive ttl expires the list.
//
// The returned collection is backed by the list and preserves its
// order. A missing list, expired or never written because the result
// was empty, surfaces as ErrStale when the collection materializes.
func (c *Collection) Store(ctx context.Context, key string, ttl time.Duration) (*Collection, error) {
	if c.err != nil {
		return nil, c.err
	}
	pks, err := c.PrimaryKeys(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = keys.Stored(c.env.Model.Name())
	}
	if _, err := c.env.Conn.Execute(ctx, "del", key); err != nil {
		return nil, err
	}
	if len(pks) > 0 {
		args := make([]any, 0, len(pks))
		for _, pk := range pks {
			args = append(args, pk)
		}
		if _, err := c.env.Conn.Execute(ctx, "rpush", key, args...); err != nil {
			return nil, err
		}
		if ttl > 0 {
			if _, err := c.env.Conn.Execute(ctx, "pexpire", key, ttl.Milliseconds()); err != nil {
				return nil, err
			}
		}
	}
	stored := New(c.env)
	stored.storedKey = key
	stored.sortSpec = &SortSpec{By: preserveOrder}
	return stored, nil
}

// StoredKey returns the list key backing a stored collection, or an
// empty string for a regular one.
func (c *Collection) StoredKey() string {
	return c.storedKey
}

// FromStored returns a collection backed by a list previously written
// with Store.
func FromStored(env *Env, key string) *Collection {
	c := New(env)
	c.storedKey = key
	c.sortSpec = &SortSpec{By: preserveOrder}
	return c
}
