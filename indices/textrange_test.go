package indices

import (
	"testing"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/storemem"
	"github.com/ridge/redstone/test"
	"github.com/stretchr/testify/require"
)

func TestLexBoundaries(t *testing.T) {
	sep := TextRangeSeparator
	cases := []struct {
		bare       string
		start, end string
	}{
		{"eq", "[v" + sep, "[v" + sep + "\xff"},
		{"gt", "(v", "+"},
		{"gte", "[v", "+"},
		{"lt", "-", "(v"},
		{"lte", "-", "[v" + sep + "\xff"},
		{"startswith", "[v", "[v\xff"},
	}
	for _, tc := range cases {
		t.Run(tc.bare, func(t *testing.T) {
			start, end := lexBoundaries(tc.bare, "v")
			require.Equal(t, tc.start, start)
			require.Equal(t, tc.end, end)
		})
	}
}

func TestSplitMember(t *testing.T) {
	value, pk, ok := splitMember("some:value" + TextRangeSeparator + "42")
	require.True(t, ok)
	require.Equal(t, "some:value", value)
	require.Equal(t, "42", pk)

	// the split is on the last separator, values may contain it
	value, pk, ok = splitMember("a" + TextRangeSeparator + "b" + TextRangeSeparator + "7")
	require.True(t, ok)
	require.Equal(t, "a"+TextRangeSeparator+"b", value)
	require.Equal(t, "7", pk)

	_, _, ok = splitMember("no separator here")
	require.False(t, ok)
}

func TestTextRangeBindRequiresRangeQueries(t *testing.T) {
	conn := storemem.New(storemem.WithoutRangeQuery())
	_, err := TextRange().Bind(testBinding(t, conn, false))
	require.ErrorIs(t, err, ErrUnsupported)
}

func textRangeFixture(t *testing.T, options ...storemem.Option) (*storemem.Store, Index) {
	ctx := test.Context(t)
	conn := storemem.New(options...)
	ix := bindOne(t, testBinding(t, conn, false), TextRange())
	for pk, name := range map[string]string{"1": "foo", "2": "bar", "3": "baz", "4": "qux"} {
		require.NoError(t, ix.Add(ctx, pk, nil, name, false))
	}
	return conn, ix
}

func filteredPKs(t *testing.T, conn *storemem.Store, ix Index, suffix string, value any) []string {
	ctx := test.Context(t)
	filtered, err := ix.FilteredKeys(ctx, suffix, nil, value, []keys.Type{keys.TypeSet})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.True(t, filtered[0].Temporary)
	pks, err := store.Strings(conn.Execute(ctx, "smembers", filtered[0].Name))
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "del", filtered[0].Name)
	require.NoError(t, err)
	return pks
}

func TestTextRangeFilters(t *testing.T) {
	run := func(t *testing.T, conn *storemem.Store, ix Index) {
		require.ElementsMatch(t, []string{"2"}, filteredPKs(t, conn, ix, "eq", "bar"))
		require.Empty(t, filteredPKs(t, conn, ix, "eq", "ba"))

		// gt and lt exclude the boundary value itself
		require.ElementsMatch(t, []string{"1", "3", "4"}, filteredPKs(t, conn, ix, "gt", "bar"))
		require.ElementsMatch(t, []string{"1", "2", "3", "4"}, filteredPKs(t, conn, ix, "gte", "bar"))
		require.ElementsMatch(t, []string{"2"}, filteredPKs(t, conn, ix, "lt", "baz"))
		require.ElementsMatch(t, []string{"2", "3"}, filteredPKs(t, conn, ix, "lte", "baz"))
		require.ElementsMatch(t, []string{"2", "3"}, filteredPKs(t, conn, ix, "startswith", "ba"))
		require.ElementsMatch(t, []string{"1"}, filteredPKs(t, conn, ix, "startswith", "f"))
		require.ElementsMatch(t, []string{"1", "3"}, filteredPKs(t, conn, ix, "in", []string{"foo", "baz"}))
		require.Empty(t, filteredPKs(t, conn, ix, "gt", "qux"))
	}

	t.Run("scripted", func(t *testing.T) {
		conn, ix := textRangeFixture(t)
		run(t, conn, ix)
	})
	t.Run("fallback", func(t *testing.T) {
		conn, ix := textRangeFixture(t, storemem.WithoutScripting())
		run(t, conn, ix)
	})
}

func TestTextRangeSortedSetResult(t *testing.T) {
	ctx := test.Context(t)
	conn, ix := textRangeFixture(t)

	filtered, err := ix.FilteredKeys(ctx, "gte", nil, "bar", []keys.Type{keys.TypeSortedSet})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, keys.TypeSortedSet, filtered[0].Type)

	// scored by scan position, so the members come out value-ordered
	pks, err := store.Strings(conn.Execute(ctx, "zrange", filtered[0].Name, 0, -1))
	require.NoError(t, err)
	require.Equal(t, []string{"2", "3", "1", "4"}, pks)
}

func TestTextRangeRemoveAndRollback(t *testing.T) {
	ctx := test.Context(t)
	conn, ix := textRangeFixture(t)
	ix.ResetLog()

	require.NoError(t, ix.Remove(ctx, "2", nil, "bar"))
	require.Empty(t, filteredPKs(t, conn, ix, "eq", "bar"))

	require.NoError(t, ix.Rollback(ctx))
	require.ElementsMatch(t, []string{"2"}, filteredPKs(t, conn, ix, "eq", "bar"))
}

func TestTextRangeUniqueness(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	ix := bindOne(t, testBinding(t, conn, true), TextRange())

	require.NoError(t, ix.Add(ctx, "1", nil, "foo", true))
	require.ErrorIs(t, ix.Add(ctx, "2", nil, "foo", true), ErrUniqueness)
	require.NoError(t, ix.Add(ctx, "1", nil, "foo", true))
}
