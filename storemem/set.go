package storemem

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func (s *Store) sadd(key string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("sadd: no members")
	}
	e, err := s.demand(key, kindSet)
	if err != nil {
		return nil, err
	}
	n := int64(0)
	for _, m := range strs(args) {
		if _, ok := e.set[m]; !ok {
			e.set[m] = struct{}{}
			n++
		}
	}
	return n, nil
}

func (s *Store) srem(key string, args []any) (any, error) {
	e, err := s.peek(key, kindSet)
	if e == nil || err != nil {
		return int64(0), err
	}
	n := int64(0)
	for _, m := range strs(args) {
		if _, ok := e.set[m]; ok {
			delete(e.set, m)
			n++
		}
	}
	if len(e.set) == 0 {
		delete(s.data, key)
	}
	return n, nil
}

func (s *Store) smembers(key string) (any, error) {
	e, err := s.peek(key, kindSet)
	if e == nil || err != nil {
		return []string{}, err
	}
	members := maps.Keys(e.set)
	slices.Sort(members) // deterministic order for tests; real stores return arbitrary order
	return members, nil
}

func (s *Store) scard(key string) (any, error) {
	e, err := s.peek(key, kindSet)
	if e == nil || err != nil {
		return int64(0), err
	}
	return int64(len(e.set)), nil
}

func (s *Store) sismember(key string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("sismember: want exactly one member")
	}
	e, err := s.peek(key, kindSet)
	if e == nil || err != nil {
		return int64(0), err
	}
	if _, ok := e.set[argStr(args[0])]; ok {
		return int64(1), nil
	}
	return int64(0), nil
}

// membersOf returns the members of a set or sorted set key, nil for missing
// keys. Callers must hold s.mu.
func (s *Store) membersOf(key string) (map[string]struct{}, error) {
	e := s.lookup(key)
	if e == nil {
		return nil, nil
	}
	switch e.kind {
	case kindSet:
		return e.set, nil
	case kindZSet:
		members := map[string]struct{}{}
		for m := range e.zset {
			members[m] = struct{}{}
		}
		return members, nil
	default:
		return nil, fmt.Errorf("WRONGTYPE %s is a %s, not a set", key, e.kind)
	}
}

func (s *Store) intersection(first string, rest []string) (map[string]struct{}, error) {
	acc, err := s.membersOf(first)
	if err != nil {
		return nil, err
	}
	for _, key := range rest {
		if len(acc) == 0 {
			return nil, nil
		}
		members, err := s.membersOf(key)
		if err != nil {
			return nil, err
		}
		next := map[string]struct{}{}
		for m := range acc {
			if _, ok := members[m]; ok {
				next[m] = struct{}{}
			}
		}
		acc = next
	}
	return acc, nil
}

func (s *Store) sinter(key string, args []any) (any, error) {
	acc, err := s.intersection(key, strs(args))
	if err != nil {
		return nil, err
	}
	members := maps.Keys(acc)
	slices.Sort(members)
	return members, nil
}

func (s *Store) sinterstore(dest string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("sinterstore: no source keys")
	}
	sources := strs(args)
	acc, err := s.intersection(sources[0], sources[1:])
	if err != nil {
		return nil, err
	}
	delete(s.data, dest)
	if len(acc) > 0 {
		s.data[dest] = &entry{kind: kindSet, set: acc}
	}
	return int64(len(acc)), nil
}

func (s *Store) sunionstore(dest string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("sunionstore: no source keys")
	}
	union := map[string]struct{}{}
	for _, key := range strs(args) {
		members, err := s.membersOf(key)
		if err != nil {
			return nil, err
		}
		for m := range members {
			union[m] = struct{}{}
		}
	}
	delete(s.data, dest)
	if len(union) > 0 {
		s.data[dest] = &entry{kind: kindSet, set: union}
	}
	return int64(len(union)), nil
}
