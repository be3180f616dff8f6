package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	require.Equal(t, "boat:name:foo", Make("boat", "name", "foo"))
	require.Equal(t, "boat", Make("boat"))
}

func TestTemporary(t *testing.T) {
	k1 := Temporary("boat")
	k2 := Temporary("boat")
	require.NotEqual(t, k1, k2)
	require.True(t, strings.HasPrefix(k1, TemporaryPrefix+Separator+"boat"+Separator))
	require.True(t, IsTemporary(k1))
	require.False(t, IsTemporary("boat:name:foo"))
	require.False(t, IsTemporary("__tmp__x"))
}

func TestStored(t *testing.T) {
	k1 := Stored("boat")
	k2 := Stored("boat")
	require.NotEqual(t, k1, k2)
	require.True(t, strings.HasPrefix(k1, "boat:stored:"))
	require.False(t, IsTemporary(k1))
}

func TestAccepted(t *testing.T) {
	require.True(t, Accepted(TypeSet, nil))
	require.True(t, Accepted(TypeSet, []Type{TypeSortedSet, TypeSet}))
	require.False(t, Accepted(TypeList, []Type{TypeSet}))
}
