package storemem

import (
	"fmt"
)

func (s *Store) push(key string, args []any, front bool) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("push: no values")
	}
	e, err := s.demand(key, kindList)
	if err != nil {
		return nil, err
	}
	for _, v := range strs(args) {
		if front {
			e.list = append([]string{v}, e.list...)
		} else {
			e.list = append(e.list, v)
		}
	}
	return int64(len(e.list)), nil
}

func (s *Store) llen(key string) (any, error) {
	e, err := s.peek(key, kindList)
	if e == nil || err != nil {
		return int64(0), err
	}
	return int64(len(e.list)), nil
}

func (s *Store) lrange(key string, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("lrange: want start and stop")
	}
	e, err := s.peek(key, kindList)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return []string{}, nil
	}
	start, err := argInt(args[0])
	if err != nil {
		return nil, err
	}
	stop, err := argInt(args[1])
	if err != nil {
		return nil, err
	}
	lo, hi := rangeIndexes(start, stop, len(e.list))
	return append([]string{}, e.list[lo:hi]...), nil
}

func (s *Store) hset(key string, args []any) (any, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, fmt.Errorf("hset: want field/value pairs")
	}
	e, err := s.demand(key, kindHash)
	if err != nil {
		return nil, err
	}
	n := int64(0)
	for i := 0; i < len(args); i += 2 {
		field := argStr(args[i])
		if _, ok := e.hash[field]; !ok {
			n++
		}
		e.hash[field] = argStr(args[i+1])
	}
	return n, nil
}

func (s *Store) hget(key string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("hget: want exactly one field")
	}
	e, err := s.peek(key, kindHash)
	if e == nil || err != nil {
		return nil, err
	}
	v, ok := e.hash[argStr(args[0])]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (s *Store) hdel(key string, args []any) (any, error) {
	e, err := s.peek(key, kindHash)
	if e == nil || err != nil {
		return int64(0), err
	}
	n := int64(0)
	for _, f := range strs(args) {
		if _, ok := e.hash[f]; ok {
			delete(e.hash, f)
			n++
		}
	}
	if len(e.hash) == 0 {
		delete(s.data, key)
	}
	return n, nil
}
