package collection

import (
	"testing"

	"github.com/ridge/redstone/meta"
	"github.com/stretchr/testify/require"
)

func TestSortSpecNormalized(t *testing.T) {
	s := SortSpec{By: "-length"}.normalized()
	require.Equal(t, "length", s.By)
	require.True(t, s.Desc)

	s = SortSpec{By: "length", Desc: true}.normalized()
	require.Equal(t, "length", s.By)
	require.True(t, s.Desc)

	s = SortSpec{}.normalized()
	require.Equal(t, "", s.By)
	require.False(t, s.Desc)
}

func TestSortSpecPattern(t *testing.T) {
	model := meta.NewDescriptor("boat",
		meta.FieldDef{Name: "length", Indexable: true},
		meta.FieldDef{Name: "specs", Indexable: true, Hash: "specs"},
	)

	require.Equal(t, "boat:*:length", SortSpec{By: "length"}.pattern(model.FieldPattern))
	require.Equal(t, "boat:*:specs->specs", SortSpec{By: "specs"}.pattern(model.FieldPattern))
	// raw patterns pass through
	require.Equal(t, "weight_*", SortSpec{By: "weight_*"}.pattern(model.FieldPattern))
	require.Equal(t, "nosort", SortSpec{By: preserveOrder}.pattern(model.FieldPattern))
	require.Equal(t, "", SortSpec{}.pattern(model.FieldPattern))
}

func TestSortArgs(t *testing.T) {
	require.Empty(t, sortArgs("", 0, -1, nil, false, false))
	require.Equal(t,
		[]any{"by", "boat:*:length", "limit", 2, 3, "desc", "alpha"},
		sortArgs("boat:*:length", 2, 3, nil, true, true))
	require.Equal(t,
		[]any{"limit", 0, 5},
		sortArgs("", 0, 5, nil, false, false))
	require.Equal(t,
		[]any{"get", "#", "get", "boat:*:name"},
		sortArgs("", 0, -1, []string{"#", "boat:*:name"}, false, false))
}
