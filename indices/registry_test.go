package indices

import (
	"testing"

	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/storemem"
	"github.com/ridge/redstone/test"
	"github.com/stretchr/testify/require"
)

func TestBindErrors(t *testing.T) {
	conn := storemem.New()

	_, err := Bind(testBinding(t, conn, false))
	require.ErrorIs(t, err, ErrConfiguration)

	model := meta.NewDescriptor("boat",
		meta.FieldDef{Name: "name", Indexable: true},
		meta.FieldDef{Name: "note"},
	)
	field, ok := model.Field("note")
	require.True(t, ok)
	_, err = Bind(Binding{Conn: conn, Model: model, Field: field}, Equal())
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Bind(testBinding(t, conn, true), Equal(NoUniqueness))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestRegistryResolve(t *testing.T) {
	conn := storemem.New()
	reg, err := Bind(testBinding(t, conn, false), Equal(Prefix("year")), NumberRange())
	require.NoError(t, err)

	ix, ok := reg.Resolve("year")
	require.True(t, ok)
	require.IsType(t, &equalIndex{}, ix)

	ix, ok = reg.Resolve("gte")
	require.True(t, ok)
	require.IsType(t, &numberRangeIndex{}, ix)

	_, ok = reg.Resolve("startswith")
	require.False(t, ok)
}

func TestRegistryUnique(t *testing.T) {
	conn := storemem.New()
	reg, err := Bind(testBinding(t, conn, true), Equal(NoUniqueness), NumberRange())
	require.NoError(t, err)

	ix, ok := reg.Unique()
	require.True(t, ok)
	require.IsType(t, &numberRangeIndex{}, ix)
}

func TestRegistryAddUniqueness(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	reg, err := Bind(testBinding(t, conn, true), Equal(), NumberRange())
	require.NoError(t, err)

	require.NoError(t, reg.Add(ctx, "1", nil, 7, true))
	require.ErrorIs(t, reg.Add(ctx, "2", nil, 7, true), ErrUniqueness)
	require.NoError(t, reg.Add(ctx, "2", nil, 8, true))
}

func TestRegistryRollback(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	reg, err := Bind(testBinding(t, conn, false), Equal(), NumberRange())
	require.NoError(t, err)
	require.NoError(t, reg.Add(ctx, "1", nil, 7, false))
	reg.ResetLog()

	require.NoError(t, reg.Remove(ctx, "1", nil, 7))
	require.NoError(t, reg.Rollback(ctx))

	ok, err := store.Bool(conn.Execute(ctx, "sismember", "boat:name:7", "1"))
	require.NoError(t, err)
	require.True(t, ok)
	score, err := store.String(conn.Execute(ctx, "zscore", "boat:name:number-range", "1"))
	require.NoError(t, err)
	require.Equal(t, "7", score)
}

func TestRegistryScoredSetKey(t *testing.T) {
	conn := storemem.New()

	reg, err := Bind(testBinding(t, conn, false), Equal())
	require.NoError(t, err)
	_, ok := reg.ScoredSetKey()
	require.False(t, ok)

	reg, err = Bind(testBinding(t, conn, false), Equal(), NumberRange())
	require.NoError(t, err)
	key, ok := reg.ScoredSetKey()
	require.True(t, ok)
	require.Equal(t, "boat:name:number-range", key)
}

func TestRegistryRebuild(t *testing.T) {
	ctx := test.Context(t)
	conn := storemem.New()
	reg, err := Bind(testBinding(t, conn, false), Equal(), NumberRange())
	require.NoError(t, err)

	for pk, value := range map[string]string{"1": "15.1", "2": "13.6"} {
		_, err := conn.Execute(ctx, "sadd", "boat:collection", pk)
		require.NoError(t, err)
		_, err = conn.Execute(ctx, "set", "boat:"+pk+":name", value)
		require.NoError(t, err)
		require.NoError(t, reg.Add(ctx, pk, nil, value, false))
	}

	// wreck both indexes, then rebuild from the stored values
	_, err = conn.Execute(ctx, "del", "boat:name:15.1")
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "del", "boat:name:number-range")
	require.NoError(t, err)

	require.NoError(t, reg.Rebuild(ctx))

	ok, err := store.Bool(conn.Execute(ctx, "sismember", "boat:name:15.1", "1"))
	require.NoError(t, err)
	require.True(t, ok)
	rangeIx, ok := reg.Resolve("lt")
	require.True(t, ok)
	require.ElementsMatch(t, []string{"2"}, filteredPKs(t, conn, rangeIx, "lt", 15))
}
