package storemem

import (
	"fmt"
	"testing"

	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/test"
	"github.com/stretchr/testify/require"
)

func TestScriptHandleCaching(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	script := &store.Script{Name: ScriptZSetToSet, Source: "return 1"}

	for i := 0; i < 3; i++ {
		_, err := s.RunScript(ctx, script, []string{"src", "dst"}, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, s.ScriptLoads())

	other := &store.Script{Name: ScriptZSetToSet, Source: "return 2"}
	_, err := s.RunScript(ctx, other, []string{"src", "dst"}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, s.ScriptLoads())
}

func TestScriptingDisabled(t *testing.T) {
	ctx := test.Context(t)
	s := New(WithoutScripting())
	require.False(t, s.SupportsScripting())

	_, err := s.RunScript(ctx, &store.Script{Name: ScriptZSetToSet}, []string{"a", "b"}, nil)
	require.Error(t, err)
}

func TestUnlockScript(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	_, err := s.Execute(ctx, "set", "lock", "token")
	require.NoError(t, err)

	script := &store.Script{Name: ScriptUnlock}

	// wrong token leaves the lock in place
	n, err := store.Int(s.RunScript(ctx, script, []string{"lock"}, []any{"other"}))
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
	exists, err := store.Int(s.Execute(ctx, "exists", "lock"))
	require.NoError(t, err)
	require.EqualValues(t, 1, exists)

	n, err = store.Int(s.RunScript(ctx, script, []string{"lock"}, []any{"token"}))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	exists, err = store.Int(s.Execute(ctx, "exists", "lock"))
	require.NoError(t, err)
	require.EqualValues(t, 0, exists)
}

func TestListToSetScript(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	_, err := s.Execute(ctx, "rpush", "src", "a", "b", "a")
	require.NoError(t, err)
	_, err = s.Execute(ctx, "sadd", "dst", "stale")
	require.NoError(t, err)

	_, err = s.RunScript(ctx, &store.Script{Name: ScriptListToSet}, []string{"src", "dst"}, nil)
	require.NoError(t, err)

	members, err := store.Strings(s.Execute(ctx, "smembers", "dst"))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, members)

	// empty source leaves no destination behind
	_, err = s.RunScript(ctx, &store.Script{Name: ScriptListToSet}, []string{"missing", "dst"}, nil)
	require.NoError(t, err)
	exists, err := store.Int(s.Execute(ctx, "exists", "dst"))
	require.NoError(t, err)
	require.EqualValues(t, 0, exists)
}

func TestZSetToSetScript(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	_, err := s.Execute(ctx, "zadd", "src", 1, "a", 2, "b")
	require.NoError(t, err)

	_, err = s.RunScript(ctx, &store.Script{Name: ScriptZSetToSet}, []string{"src", "dst"}, nil)
	require.NoError(t, err)
	members, err := store.Strings(s.Execute(ctx, "smembers", "dst"))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, members)
}

func TestTextRangeFilterScript(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	const sep = ":S:"
	for pk, value := range map[string]string{"1": "foo", "2": "bar", "3": "baz", "4": "qux"} {
		_, err := s.Execute(ctx, "zadd", "idx", 0, value+sep+pk)
		require.NoError(t, err)
	}

	script := &store.Script{Name: ScriptTextRangeFilter}

	_, err := s.RunScript(ctx, script, []string{"idx", "dst"}, []any{"set", sep, "[bar", "(foo"})
	require.NoError(t, err)
	members, err := store.Strings(s.Execute(ctx, "smembers", "dst"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"2", "3"}, members)
	_, err = s.Execute(ctx, "del", "dst")
	require.NoError(t, err)

	// exclusion drops the boundary value after the lex scan
	_, err = s.RunScript(ctx, script, []string{"idx", "dst"}, []any{"set", sep, "[bar", "+", "bar"})
	require.NoError(t, err)
	members, err = store.Strings(s.Execute(ctx, "smembers", "dst"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1", "3", "4"}, members)
	_, err = s.Execute(ctx, "del", "dst")
	require.NoError(t, err)

	// zset destination is scored by scan position
	_, err = s.RunScript(ctx, script, []string{"idx", "dst"}, []any{"zset", sep, "-", "+", nil})
	require.NoError(t, err)
	ordered, err := store.Strings(s.Execute(ctx, "zrange", "dst", 0, -1))
	require.NoError(t, err)
	require.Equal(t, []string{"2", "3", "1", "4"}, ordered)
}

func TestTextRangeFilterScriptBlocks(t *testing.T) {
	ctx := test.Context(t)
	s := New()
	const sep = ":S:"
	for i := 0; i < 250; i++ {
		member := fmt.Sprintf("v%03d%s%d", i, sep, i)
		_, err := s.Execute(ctx, "zadd", "idx", 0, member)
		require.NoError(t, err)
	}

	_, err := s.RunScript(ctx, &store.Script{Name: ScriptTextRangeFilter},
		[]string{"idx", "dst"}, []any{"set", sep, "-", "+"})
	require.NoError(t, err)
	n, err := store.Int(s.Execute(ctx, "scard", "dst"))
	require.NoError(t, err)
	require.EqualValues(t, 250, n)
}
