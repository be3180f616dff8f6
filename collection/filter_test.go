package collection

import (
	"testing"

	"github.com/ridge/redstone/indices"
	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/storemem"
	"github.com/stretchr/testify/require"
)

func filterEnv(t *testing.T) *Env {
	model := meta.NewDescriptor("event",
		meta.FieldDef{Name: "date", Indexable: true},
		meta.FieldDef{Name: "details", Indexable: true, Hash: "details"},
		meta.FieldDef{Name: "note", Indexable: false},
	)
	conn := storemem.New()

	bind := func(field string, defs ...indices.Definition) *indices.Registry {
		f, ok := model.Field(field)
		require.True(t, ok)
		reg, err := indices.Bind(indices.Binding{Conn: conn, Model: model, Field: f}, defs...)
		require.NoError(t, err)
		return reg
	}

	return &Env{
		Conn:  conn,
		Model: model,
		Registries: map[string]*indices.Registry{
			"date": bind("date",
				indices.Equal(),
				indices.Equal(indices.Prefix("year"), indices.Transform(func(v string) string {
					if len(v) < 4 {
						return v
					}
					return v[:4]
				})),
			),
			"details": bind("details", indices.Equal()),
		},
	}
}

func TestParseFilter(t *testing.T) {
	env := filterEnv(t)

	parse := func(key string) (parsedFilter, error) {
		return env.parseFilter(key, Literal("x"))
	}

	pf, err := parse("date")
	require.NoError(t, err)
	require.Equal(t, "", pf.suffix)
	require.Empty(t, pf.subPath)

	pf, err = parse("date__eq")
	require.NoError(t, err)
	require.Equal(t, "eq", pf.suffix)

	pf, err = parse("date__in")
	require.NoError(t, err)
	require.Equal(t, "in", pf.suffix)

	// the qualified suffix routes to the prefixed index, not to a
	// sub-path of the plain one
	pf, err = parse("date__year")
	require.NoError(t, err)
	require.Equal(t, "year", pf.suffix)
	require.Empty(t, pf.subPath)

	pf, err = parse("date__year__eq")
	require.NoError(t, err)
	require.Equal(t, "year__eq", pf.suffix)
	require.Empty(t, pf.subPath)

	// unclaimed middle parts become the sub-path
	pf, err = parse("details__venue")
	require.NoError(t, err)
	require.Equal(t, "", pf.suffix)
	require.Equal(t, []string{"venue"}, pf.subPath)

	pf, err = parse("details__venue__eq")
	require.NoError(t, err)
	require.Equal(t, "eq", pf.suffix)
	require.Equal(t, []string{"venue"}, pf.subPath)
}

func TestParseFilterErrors(t *testing.T) {
	env := filterEnv(t)

	// comparison suffixes no index claims must not degrade to sub-paths
	_, err := env.parseFilter("date__gte", Literal("x"))
	require.ErrorIs(t, err, indices.ErrConfiguration)

	_, err = env.parseFilter("nosuch", Literal("x"))
	require.ErrorIs(t, err, indices.ErrConfiguration)

	_, err = env.parseFilter("note", Literal("x"))
	require.ErrorIs(t, err, indices.ErrConfiguration)
}

func TestIsPrimaryKeyFilter(t *testing.T) {
	env := filterEnv(t)
	require.True(t, env.isPrimaryKeyFilter("pk"))
	require.False(t, env.isPrimaryKeyFilter("date"))

	env.Model = meta.NewDescriptor("event").WithPrimaryKeyName("id")
	require.True(t, env.isPrimaryKeyFilter("id"))
	require.True(t, env.isPrimaryKeyFilter("pk"))
}
