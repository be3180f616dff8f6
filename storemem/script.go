package storemem

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ridge/must/v2"
	"github.com/ridge/redstone/store"
	"golang.org/x/sync/singleflight"
)

// Script names the store knows how to execute natively. The sources are
// authored for real stores; this in-memory store keys off the script name
// and runs an equivalent Go implementation.
const (
	ScriptTextRangeFilter = "text-range-filter"
	ScriptListToSet       = "list-to-set"
	ScriptZSetToSet       = "zset-to-set"
	ScriptUnlock          = "unlock"
)

const handleCacheSize = 64

type scriptRuntime struct {
	handles *lru.Cache[string, string] // source hash -> handle
	loading singleflight.Group
	loads   int // registrations performed, for tests
}

func newScriptRuntime() *scriptRuntime {
	return &scriptRuntime{
		handles: must.OK1(lru.New[string, string](handleCacheSize)),
	}
}

// handle returns the cached handle for a script source, registering it once
// on first use. Concurrent first registrations of the same source are
// deduplicated.
func (rt *scriptRuntime) handle(script *store.Script) string {
	sum := strconv.FormatUint(xxhash.Sum64String(script.Source), 16)
	if h, ok := rt.handles.Get(sum); ok {
		return h
	}
	h, _, _ := rt.loading.Do(sum, func() (any, error) {
		rt.loads++
		rt.handles.Add(sum, sum)
		return sum, nil
	})
	return h.(string)
}

// ScriptLoads returns how many distinct script registrations the store has
// performed. Tests use it to verify that handles are cached.
func (s *Store) ScriptLoads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scripts.loads
}

// RunScript implements store.Connection.
func (s *Store) RunScript(ctx context.Context, script *store.Script, keys []string, args []any) (any, error) {
	if !s.scripting {
		return nil, fmt.Errorf("scripting not supported")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.scripts.handle(script)

	switch script.Name {
	case ScriptUnlock:
		return s.runUnlock(keys, args)
	case ScriptListToSet:
		return s.runListToSet(keys)
	case ScriptZSetToSet:
		return s.runZSetToSet(keys)
	case ScriptTextRangeFilter:
		return s.runTextRangeFilter(keys, args)
	default:
		return nil, fmt.Errorf("unknown script %q", script.Name)
	}
}

func (s *Store) runUnlock(keys []string, args []any) (any, error) {
	if len(keys) != 1 || len(args) != 1 {
		return nil, fmt.Errorf("unlock: want one key and one token")
	}
	e, err := s.peek(keys[0], kindString)
	if e == nil || err != nil {
		return int64(0), err
	}
	if e.str != argStr(args[0]) {
		return int64(0), nil
	}
	delete(s.data, keys[0])
	return int64(1), nil
}

func (s *Store) runListToSet(keys []string) (any, error) {
	if len(keys) != 2 {
		return nil, fmt.Errorf("list-to-set: want source and destination keys")
	}
	e, err := s.peek(keys[0], kindList)
	if err != nil {
		return nil, err
	}
	delete(s.data, keys[1])
	if e == nil || len(e.list) == 0 {
		return int64(1), nil
	}
	members := map[string]struct{}{}
	for _, m := range e.list {
		members[m] = struct{}{}
	}
	s.data[keys[1]] = &entry{kind: kindSet, set: members}
	return int64(1), nil
}

func (s *Store) runZSetToSet(keys []string) (any, error) {
	if len(keys) != 2 {
		return nil, fmt.Errorf("zset-to-set: want source and destination keys")
	}
	e, err := s.peek(keys[0], kindZSet)
	if err != nil {
		return nil, err
	}
	delete(s.data, keys[1])
	if e == nil || len(e.zset) == 0 {
		return int64(1), nil
	}
	members := map[string]struct{}{}
	for m := range e.zset {
		members[m] = struct{}{}
	}
	s.data[keys[1]] = &entry{kind: kindSet, set: members}
	return int64(1), nil
}

// runTextRangeFilter walks a lexicographic index sorted set in bounded
// blocks, splits members into value and primary key on the last separator,
// drops members whose value equals the excluded one, and materializes the
// primary keys into the destination set or sorted set.
func (s *Store) runTextRangeFilter(keys []string, args []any) (any, error) {
	if len(keys) != 2 || len(args) < 4 {
		return nil, fmt.Errorf("text-range-filter: want 2 keys and 4-5 args")
	}
	source, dest := keys[0], keys[1]
	destType := argStr(args[0])
	separator := argStr(args[1])
	lexStart, lexEnd := argStr(args[2]), argStr(args[3])
	exclude := ""
	if len(args) > 4 && args[4] != nil {
		exclude = argStr(args[4])
	}

	const blockSize = 100
	position := 0
	for start := 0; ; start += blockSize {
		reply, err := s.zrangebylex(source, []any{lexStart, lexEnd, "limit", start, blockSize})
		if err != nil {
			return nil, err
		}
		members := reply.([]string)
		if len(members) == 0 {
			break
		}
		for _, member := range members {
			i := strings.LastIndex(member, separator)
			if i < 0 {
				continue
			}
			value, pk := member[:i], member[i+len(separator):]
			if exclude != "" && value == exclude {
				continue
			}
			if destType == "set" {
				if _, err := s.sadd(dest, []any{pk}); err != nil {
					return nil, err
				}
			} else {
				if _, err := s.zadd(dest, []any{position, pk}); err != nil {
					return nil, err
				}
			}
			position++
		}
		if len(members) < blockSize {
			break
		}
	}
	return dest, nil
}
