// Package storemem is an in-memory implementation of store.Connection with
// the semantics redstone relies on: strings, sets, sorted sets (including
// lexicographic ranges), lists, SORT, TTLs and the module's server-side
// scripts executed natively.
//
// It is the store used by the redstone test suite and is suitable as a test
// double for code built on redstone. It is not a server: all state lives in
// the process, behind one mutex.
package storemem

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type kind int

const (
	kindNone kind = iota
	kindString
	kindSet
	kindZSet
	kindList
	kindHash
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindSet:
		return "set"
	case kindZSet:
		return "zset"
	case kindList:
		return "list"
	case kindHash:
		return "hash"
	default:
		return "none"
	}
}

type entry struct {
	kind     kind
	str      string
	set      map[string]struct{}
	zset     map[string]float64
	list     []string
	hash     map[string]string
	expireAt time.Time // zero = no expiry
}

// Store is an in-memory store.Connection.
type Store struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time

	scripting  bool
	rangeQuery bool
	scripts    *scriptRuntime
}

// Option configures a Store.
type Option func(*Store)

// WithoutScripting makes the store report no server-side scripting support,
// forcing clients onto their fallback paths.
func WithoutScripting() Option {
	return func(s *Store) { s.scripting = false }
}

// WithoutRangeQuery makes the store report no lexicographic range support.
func WithoutRangeQuery() Option {
	return func(s *Store) { s.rangeQuery = false }
}

// WithClock replaces the wall clock, letting tests control TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(options ...Option) *Store {
	s := &Store{
		data:       map[string]*entry{},
		now:        time.Now,
		scripting:  true,
		rangeQuery: true,
		scripts:    newScriptRuntime(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// SupportsScripting implements store.Connection.
func (s *Store) SupportsScripting() bool {
	return s.scripting
}

// SupportsRangeQuery implements store.Connection.
func (s *Store) SupportsRangeQuery() bool {
	return s.rangeQuery
}

// ScanKeys implements store.Connection.
func (s *Store) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, key := range maps.Keys(s.data) {
		if s.lookup(key) == nil {
			continue
		}
		if matchPattern(pattern, key) {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out, nil
}

// KeyCount returns the number of live keys. Tests use it to verify that
// operations do not leak temporary keys.
func (s *Store) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, key := range maps.Keys(s.data) {
		if s.lookup(key) != nil {
			n++
		}
	}
	return n
}

// lookup returns the live entry for key, expiring it passively.
// Callers must hold s.mu.
func (s *Store) lookup(key string) *entry {
	e, ok := s.data[key]
	if !ok {
		return nil
	}
	if !e.expireAt.IsZero() && !s.now().Before(e.expireAt) {
		delete(s.data, key)
		return nil
	}
	return e
}

// demand returns the live entry for key, creating one of the wanted kind if
// missing. It fails if the key holds a value of another kind.
// Callers must hold s.mu.
func (s *Store) demand(key string, want kind) (*entry, error) {
	e := s.lookup(key)
	if e == nil {
		e = &entry{kind: want}
		switch want {
		case kindSet:
			e.set = map[string]struct{}{}
		case kindZSet:
			e.zset = map[string]float64{}
		case kindHash:
			e.hash = map[string]string{}
		}
		s.data[key] = e
		return e, nil
	}
	if e.kind != want {
		return nil, fmt.Errorf("WRONGTYPE operation against a key holding the wrong kind of value (%s is a %s)", key, e.kind)
	}
	return e, nil
}

// peek is demand without creation: returns nil for missing keys.
// Callers must hold s.mu.
func (s *Store) peek(key string, want kind) (*entry, error) {
	e := s.lookup(key)
	if e == nil {
		return nil, nil
	}
	if e.kind != want {
		return nil, fmt.Errorf("WRONGTYPE operation against a key holding the wrong kind of value (%s is a %s)", key, e.kind)
	}
	return e, nil
}

func argStr(a any) string {
	switch v := a.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func argInt(a any) (int, error) {
	switch v := a.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("value is not an integer: %v", a)
	}
}

func argFloat(a any) (float64, error) {
	switch v := a.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("value is not a number: %v", a)
	}
}

// Execute implements store.Connection.
//
// The command vocabulary is the subset of the Redis command set that
// redstone issues. Variadic-key commands (sinterstore & co.) take the
// destination as the key and the sources as arguments, without the numkeys
// counter of the wire protocol.
func (s *Store) Execute(ctx context.Context, cmd, key string, args ...any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execute(cmd, key, args...)
}

// execute dispatches a single command. Callers must hold s.mu.
func (s *Store) execute(cmd, key string, args ...any) (any, error) {
	switch strings.ToLower(cmd) {
	case "get":
		return s.get(key)
	case "set":
		return s.setCmd(key, args)
	case "mset":
		return s.mset(key, args)
	case "incr":
		return s.incr(key)
	case "del":
		return s.del(key, args)
	case "exists":
		if s.lookup(key) != nil {
			return int64(1), nil
		}
		return int64(0), nil
	case "type":
		e := s.lookup(key)
		if e == nil {
			return "none", nil
		}
		return e.kind.String(), nil
	case "expire":
		return s.expire(key, args, time.Second)
	case "pexpire":
		return s.expire(key, args, time.Millisecond)
	case "ttl":
		return s.ttl(key)

	case "sadd":
		return s.sadd(key, args)
	case "srem":
		return s.srem(key, args)
	case "smembers":
		return s.smembers(key)
	case "scard":
		return s.scard(key)
	case "sismember":
		return s.sismember(key, args)
	case "sinter":
		return s.sinter(key, args)
	case "sinterstore":
		return s.sinterstore(key, args)
	case "sunionstore":
		return s.sunionstore(key, args)

	case "zadd":
		return s.zadd(key, args)
	case "zrem":
		return s.zrem(key, args)
	case "zcard":
		return s.zcard(key)
	case "zscore":
		return s.zscore(key, args)
	case "zrange":
		return s.zrange(key, args)
	case "zrangebyscore":
		return s.zrangebyscore(key, args)
	case "zrangebylex":
		return s.zrangebylex(key, args)
	case "zinterstore":
		return s.zinterstore(key, args)
	case "zunionstore":
		return s.zunionstore(key, args)

	case "rpush":
		return s.push(key, args, false)
	case "lpush":
		return s.push(key, args, true)
	case "llen":
		return s.llen(key)
	case "lrange":
		return s.lrange(key, args)

	case "hset":
		return s.hset(key, args)
	case "hget":
		return s.hget(key, args)
	case "hdel":
		return s.hdel(key, args)

	case "sort":
		return s.sort(key, args)

	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func (s *Store) get(key string) (any, error) {
	e, err := s.peek(key, kindString)
	if e == nil || err != nil {
		return nil, err
	}
	return e.str, nil
}

func (s *Store) setCmd(key string, args []any) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("set: missing value")
	}
	value := argStr(args[0])
	nx := false
	var px time.Duration
	for i := 1; i < len(args); i++ {
		switch strings.ToLower(argStr(args[i])) {
		case "nx":
			nx = true
		case "px":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("set: px without duration")
			}
			ms, err := argInt(args[i])
			if err != nil {
				return nil, err
			}
			px = time.Duration(ms) * time.Millisecond
		default:
			return nil, fmt.Errorf("set: unknown option %v", args[i])
		}
	}
	if nx && s.lookup(key) != nil {
		return nil, nil
	}
	e := &entry{kind: kindString, str: value}
	if px > 0 {
		e.expireAt = s.now().Add(px)
	}
	s.data[key] = e
	return "OK", nil
}

func (s *Store) mset(key string, args []any) (any, error) {
	if len(args)%2 != 1 {
		return nil, fmt.Errorf("mset: key without value")
	}
	s.data[key] = &entry{kind: kindString, str: argStr(args[0])}
	for i := 1; i < len(args); i += 2 {
		s.data[argStr(args[i])] = &entry{kind: kindString, str: argStr(args[i+1])}
	}
	return "OK", nil
}

func (s *Store) incr(key string) (any, error) {
	e, err := s.demand(key, kindString)
	if err != nil {
		return nil, err
	}
	n := int64(0)
	if e.str != "" {
		var err error
		n, err = strconv.ParseInt(e.str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value is not an integer or out of range")
		}
	}
	n++
	e.str = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *Store) del(key string, args []any) (any, error) {
	n := int64(0)
	for _, k := range append([]string{key}, strs(args)...) {
		if s.lookup(k) != nil {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) expire(key string, args []any, unit time.Duration) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expire: want exactly one duration argument")
	}
	n, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	e := s.lookup(key)
	if e == nil {
		return int64(0), nil
	}
	e.expireAt = s.now().Add(time.Duration(n) * unit)
	return int64(1), nil
}

func (s *Store) ttl(key string) (any, error) {
	e := s.lookup(key)
	if e == nil {
		return int64(-2), nil
	}
	if e.expireAt.IsZero() {
		return int64(-1), nil
	}
	return int64(e.expireAt.Sub(s.now()) / time.Second), nil
}

func strs(args []any) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, argStr(a))
	}
	return out
}
