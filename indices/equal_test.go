package indices

import (
	"strings"
	"testing"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/storemem"
	"github.com/ridge/redstone/test"
	"github.com/stretchr/testify/require"
)

func TestEqualStorageKey(t *testing.T) {
	conn := storemem.New()
	b := testBinding(t, conn, false)

	key, err := bindOne(t, b, Equal()).StorageKey(nil, "foo")
	require.NoError(t, err)
	require.Equal(t, "boat:name:foo", key)

	key, err = bindOne(t, b, Equal()).StorageKey([]string{"sub"}, "foo")
	require.NoError(t, err)
	require.Equal(t, "boat:name:sub:foo", key)

	// prefix and discriminator separate the key namespace so derived
	// indexes cannot collide with the plain one
	key, err = bindOne(t, b, Equal(
		Prefix("first_letter"),
		Transform(func(v string) string { return v[:1] }),
	)).StorageKey(nil, "foo")
	require.NoError(t, err)
	require.Equal(t, "boat:name:first_letter:f", key)

	key, err = bindOne(t, b, Equal(Discriminator("lower"), Transform(strings.ToLower))).StorageKey(nil, "Foo")
	require.NoError(t, err)
	require.Equal(t, "boat:name:lower:foo", key)
}

func TestEqualCanHandle(t *testing.T) {
	conn := storemem.New()
	ix := bindOne(t, testBinding(t, conn, false), Equal())

	for _, suffix := range []string{"", "eq", "in"} {
		require.True(t, ix.CanHandle(suffix), suffix)
	}
	for _, suffix := range []string{"gt", "gte", "lt", "lte", "startswith", "year"} {
		require.False(t, ix.CanHandle(suffix), suffix)
	}

	prefixed := bindOne(t, testBinding(t, conn, false), Equal(Prefix("year")))
	require.True(t, prefixed.CanHandle("year"))
	require.True(t, prefixed.CanHandle("year__eq"))
	require.True(t, prefixed.CanHandle("year__in"))
	require.False(t, prefixed.CanHandle(""))
	require.False(t, prefixed.CanHandle("eq"))
}

func TestEqualAddRemoveRollback(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	ix := bindOne(t, testBinding(t, conn, false), Equal())

	require.NoError(t, ix.Add(ctx, "1", nil, "foo", false))
	members, err := store.Strings(conn.Execute(ctx, "smembers", "boat:name:foo"))
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, members)

	// an add followed by a rollback leaves no trace
	require.NoError(t, ix.Rollback(ctx))
	n, err := store.Int(conn.Execute(ctx, "scard", "boat:name:foo"))
	require.NoError(t, err)
	require.Zero(t, n)

	// a removal rolls back to the previous state
	require.NoError(t, ix.Add(ctx, "1", nil, "foo", false))
	ix.ResetLog()
	require.NoError(t, ix.Remove(ctx, "1", nil, "foo"))
	require.NoError(t, ix.Rollback(ctx))
	members, err = store.Strings(conn.Execute(ctx, "smembers", "boat:name:foo"))
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, members)
}

func TestEqualUniqueness(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	ix := bindOne(t, testBinding(t, conn, true), Equal())

	require.NoError(t, ix.Add(ctx, "1", nil, "foo", true))
	require.ErrorIs(t, ix.Add(ctx, "2", nil, "foo", true), ErrUniqueness)
	require.NoError(t, ix.Add(ctx, "1", nil, "foo", true))

	// without the check the conflicting write goes through
	require.NoError(t, ix.Add(ctx, "2", nil, "bar", true))
	require.NoError(t, ix.Add(ctx, "3", nil, "bar", false))
}

func TestEqualUniquenessRepairsCorruption(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	ix := bindOne(t, testBinding(t, conn, true), Equal())

	// two primary keys on one unique value cannot happen through the
	// index; when found, the entry is dropped wholesale
	_, err := conn.Execute(ctx, "sadd", "boat:name:foo", "1", "2")
	require.NoError(t, err)
	require.ErrorIs(t, ix.Add(ctx, "3", nil, "foo", true), ErrUniqueness)
	exists, err := store.Bool(conn.Execute(ctx, "exists", "boat:name:foo"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestEqualFilteredKeys(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	ix := bindOne(t, testBinding(t, conn, false), Equal())
	require.NoError(t, ix.Add(ctx, "1", nil, "foo", false))
	require.NoError(t, ix.Add(ctx, "2", nil, "bar", false))

	accepted := []keys.Type{keys.TypeSet}

	filtered, err := ix.FilteredKeys(ctx, "", nil, "foo", accepted)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, keys.Storage{Name: "boat:name:foo", Type: keys.TypeSet}, filtered[0])

	// in unions the per-value sets into a temporary key
	filtered, err = ix.FilteredKeys(ctx, "in", nil, []string{"foo", "bar"}, accepted)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.True(t, filtered[0].Temporary)
	members, err := store.Strings(conn.Execute(ctx, "smembers", filtered[0].Name))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1", "2"}, members)
	_, err = conn.Execute(ctx, "del", filtered[0].Name)
	require.NoError(t, err)

	// an empty in list matches nothing
	filtered, err = ix.FilteredKeys(ctx, "in", nil, []string{}, accepted)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.True(t, filtered[0].Temporary)
	n, err := store.Int(conn.Execute(ctx, "scard", filtered[0].Name))
	require.NoError(t, err)
	require.Zero(t, n)

	// equality indexes produce plain sets only
	_, err = ix.FilteredKeys(ctx, "", nil, "foo", []keys.Type{keys.TypeSortedSet})
	require.ErrorIs(t, err, ErrImplementation)
}
