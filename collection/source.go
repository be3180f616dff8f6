package collection

import (
	"context"
	"fmt"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
)

// scripts converting other structures into plain sets, so they can take
// part in an intersection.
var (
	listToSetScript = &store.Script{
		Name: "list-to-set",
		Source: `
			redis.call('del', KEYS[2])
			for i, member in ipairs(redis.call('lrange', KEYS[1], 0, -1)) do
				redis.call('sadd', KEYS[2], member)
			end
			return 1
		`,
	}
	zsetToSetScript = &store.Script{
		Name: "zset-to-set",
		Source: `
			redis.call('del', KEYS[2])
			for i, member in ipairs(redis.call('zrange', KEYS[1], 0, -1)) do
				redis.call('sadd', KEYS[2], member)
			end
			return 1
		`,
	}
)

// Source is an extra intersection operand for Intersect: a raw store key
// holding primary keys, or a literal collection of values.
type Source struct {
	key    string
	typ    keys.Type
	values []any
}

// SetKey names a store set to intersect with.
func SetKey(key string) Source {
	return Source{key: key, typ: keys.TypeSet}
}

// SortedSetKey names a store sorted set to intersect with. Any sorted-set
// operand forces the whole combination through the sorted-set intersection
// primitive.
func SortedSetKey(key string) Source {
	return Source{key: key, typ: keys.TypeSortedSet}
}

// ListKey names a store list to intersect with. A single list combined with
// nothing else is used as the final ordered set; otherwise it is converted
// once into a temporary set.
func ListKey(key string) Source {
	return Source{key: key, typ: keys.TypeList}
}

// Members intersects with a literal collection of values, stored into a
// temporary set at evaluation time.
func Members(values ...any) Source {
	return Source{values: values}
}

func (s Source) isList() bool {
	return s.key != "" && s.typ == keys.TypeList
}

func (s Source) isSortedSet() bool {
	return s.key != "" && s.typ == keys.TypeSortedSet
}

// materialize turns the source into a set-typed storage key, converting
// lists and literal values through a temporary set.
func (s Source) materialize(ctx context.Context, conn store.Connection, model meta.Model) (keys.Storage, error) {
	switch {
	case s.isList():
		tmp := keys.Temporary(model.Name())
		if err := listToSet(ctx, conn, s.key, tmp); err != nil {
			return keys.Storage{}, err
		}
		return keys.Storage{Name: tmp, Type: keys.TypeSet, Temporary: true}, nil
	case s.key != "":
		return keys.Storage{Name: s.key, Type: s.typ}, nil
	default:
		tmp := keys.Temporary(model.Name())
		if len(s.values) > 0 {
			args := make([]any, 0, len(s.values))
			for _, v := range s.values {
				raw, err := meta.ToStorage(v)
				if err != nil {
					return keys.Storage{}, fmt.Errorf("intersect value: %w", err)
				}
				args = append(args, raw)
			}
			if _, err := conn.Execute(ctx, "sadd", tmp, args...); err != nil {
				return keys.Storage{}, err
			}
		}
		return keys.Storage{Name: tmp, Type: keys.TypeSet, Temporary: true}, nil
	}
}

func listToSet(ctx context.Context, conn store.Connection, listKey, setKey string) error {
	if conn.SupportsScripting() {
		_, err := conn.RunScript(ctx, listToSetScript, []string{listKey, setKey}, nil)
		return err
	}
	members, err := store.Strings(conn.Execute(ctx, "lrange", listKey, 0, -1))
	if err != nil || len(members) == 0 {
		return err
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	_, err = conn.Execute(ctx, "sadd", setKey, args...)
	return err
}

func zsetToSet(ctx context.Context, conn store.Connection, zsetKey, setKey string) error {
	if conn.SupportsScripting() {
		_, err := conn.RunScript(ctx, zsetToSetScript, []string{zsetKey, setKey}, nil)
		return err
	}
	members, err := store.Strings(conn.Execute(ctx, "zrange", zsetKey, 0, -1))
	if err != nil || len(members) == 0 {
		return err
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	_, err = conn.Execute(ctx, "sadd", setKey, args...)
	return err
}
