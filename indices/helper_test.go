package indices

import (
	"testing"

	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
	"github.com/stretchr/testify/require"
)

func testModel() meta.Model {
	return meta.NewDescriptor("boat",
		meta.FieldDef{Name: "name", Indexable: true},
		meta.FieldDef{Name: "length", Indexable: true},
	)
}

func testBinding(t *testing.T, conn store.Connection, unique bool) Binding {
	model := testModel()
	field, ok := model.Field("name")
	require.True(t, ok)
	return Binding{Conn: conn, Model: model, Field: field, Unique: unique}
}

func bindOne(t *testing.T, b Binding, def Definition) Index {
	ix, err := def.Bind(b)
	require.NoError(t, err)
	return ix
}
