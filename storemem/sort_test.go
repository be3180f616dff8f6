package storemem

import (
	"testing"

	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/test"
	"github.com/stretchr/testify/require"
)

// sortFixture seeds a set of primary keys with per-record weight and name
// keys, the layout SORT BY/GET patterns address.
func sortFixture(t *testing.T) *Store {
	ctx := test.Context(t)
	s := New()
	weights := map[string]string{"1": "15.1", "2": "13.6", "3": "17.45", "4": "40"}
	names := map[string]string{"1": "foo", "2": "bar", "3": "baz", "4": "qux"}
	for pk, w := range weights {
		_, err := s.Execute(ctx, "sadd", "boats", pk)
		require.NoError(t, err)
		_, err = s.Execute(ctx, "set", "boat:"+pk+":length", w)
		require.NoError(t, err)
		_, err = s.Execute(ctx, "set", "boat:"+pk+":name", names[pk])
		require.NoError(t, err)
	}
	return s
}

func TestSortNumeric(t *testing.T) {
	ctx := test.Context(t)
	s := sortFixture(t)

	out, err := store.Strings(s.Execute(ctx, "sort", "boats", "by", "boat:*:length"))
	require.NoError(t, err)
	require.Equal(t, []string{"2", "1", "3", "4"}, out)

	out, err = store.Strings(s.Execute(ctx, "sort", "boats", "by", "boat:*:length", "desc"))
	require.NoError(t, err)
	require.Equal(t, []string{"4", "3", "1", "2"}, out)
}

func TestSortAlpha(t *testing.T) {
	ctx := test.Context(t)
	s := sortFixture(t)

	out, err := store.Strings(s.Execute(ctx, "sort", "boats", "by", "boat:*:name", "alpha"))
	require.NoError(t, err)
	require.Equal(t, []string{"2", "3", "1", "4"}, out)

	// elements themselves sort numerically without a pattern
	out, err = store.Strings(s.Execute(ctx, "sort", "boats"))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2", "3", "4"}, out)

	// non-numeric sort values without alpha fail
	_, err = s.Execute(ctx, "sort", "boats", "by", "boat:*:name")
	require.Error(t, err)
}

func TestSortNosort(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	_, err := s.Execute(ctx, "rpush", "l", "c", "a", "b")
	require.NoError(t, err)

	// a BY pattern without "*" disables sorting and keeps list order
	out, err := store.Strings(s.Execute(ctx, "sort", "l", "by", "nosort"))
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, out)

	out, err = store.Strings(s.Execute(ctx, "sort", "l", "by", "nosort", "desc"))
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a", "c"}, out)

	out, err = store.Strings(s.Execute(ctx, "sort", "l", "alpha"))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, out)
}

func TestSortLimit(t *testing.T) {
	ctx := test.Context(t)
	s := sortFixture(t)

	out, err := store.Strings(s.Execute(ctx, "sort", "boats", "by", "boat:*:length", "limit", 1, 2))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "3"}, out)

	out, err = store.Strings(s.Execute(ctx, "sort", "boats", "by", "boat:*:length", "limit", 2, -1))
	require.NoError(t, err)
	require.Equal(t, []string{"3", "4"}, out)

	out, err = store.Strings(s.Execute(ctx, "sort", "boats", "by", "boat:*:length", "limit", 9, 2))
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestSortGet(t *testing.T) {
	ctx := test.Context(t)
	s := sortFixture(t)

	reply, err := s.Execute(ctx, "sort", "boats", "by", "boat:*:length", "get", "#", "get", "boat:*:name")
	require.NoError(t, err)
	require.Equal(t, []any{"2", "bar", "1", "foo", "3", "baz", "4", "qux"}, reply)

	// unresolvable patterns yield nils, one per element
	reply, err = s.Execute(ctx, "sort", "boats", "by", "boat:*:length", "limit", 0, 2, "get", "boat:*:missing")
	require.NoError(t, err)
	require.Equal(t, []any{nil, nil}, reply)
}

func TestSortHashPattern(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	for pk, hull := range map[string]string{"1": "steel", "2": "wood"} {
		_, err := s.Execute(ctx, "sadd", "ships", pk)
		require.NoError(t, err)
		_, err = s.Execute(ctx, "hset", "ship:"+pk+":specs", "hull", hull)
		require.NoError(t, err)
	}

	out, err := store.Strings(s.Execute(ctx, "sort", "ships", "by", "ship:*:specs->hull", "alpha"))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, out)

	reply, err := s.Execute(ctx, "sort", "ships", "by", "nosort", "get", "ship:*:specs->hull")
	require.NoError(t, err)
	require.ElementsMatch(t, []any{"steel", "wood"}, reply)
}

func TestSortZSetInput(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	_, err := s.Execute(ctx, "zadd", "z", 3, "a", 1, "c", 2, "b")
	require.NoError(t, err)

	// nosort over a zset keeps rank order
	out, err := store.Strings(s.Execute(ctx, "sort", "z", "by", "nosort"))
	require.NoError(t, err)
	require.Equal(t, []string{"c", "b", "a"}, out)
}

func TestSortMissingKey(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	out, err := store.Strings(s.Execute(ctx, "sort", "missing"))
	require.NoError(t, err)
	require.Empty(t, out)
}
