package storemem

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func (s *Store) zadd(key string, args []any) (any, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, fmt.Errorf("zadd: want score/member pairs")
	}
	e, err := s.demand(key, kindZSet)
	if err != nil {
		return nil, err
	}
	n := int64(0)
	for i := 0; i < len(args); i += 2 {
		score, err := argFloat(args[i])
		if err != nil {
			return nil, err
		}
		member := argStr(args[i+1])
		if _, ok := e.zset[member]; !ok {
			n++
		}
		e.zset[member] = score
	}
	return n, nil
}

func (s *Store) zrem(key string, args []any) (any, error) {
	e, err := s.peek(key, kindZSet)
	if e == nil || err != nil {
		return int64(0), err
	}
	n := int64(0)
	for _, m := range strs(args) {
		if _, ok := e.zset[m]; ok {
			delete(e.zset, m)
			n++
		}
	}
	if len(e.zset) == 0 {
		delete(s.data, key)
	}
	return n, nil
}

func (s *Store) zcard(key string) (any, error) {
	e, err := s.peek(key, kindZSet)
	if e == nil || err != nil {
		return int64(0), err
	}
	return int64(len(e.zset)), nil
}

func (s *Store) zscore(key string, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("zscore: want exactly one member")
	}
	e, err := s.peek(key, kindZSet)
	if e == nil || err != nil {
		return nil, err
	}
	score, ok := e.zset[argStr(args[0])]
	if !ok {
		return nil, nil
	}
	return strconv.FormatFloat(score, 'g', -1, 64), nil
}

// ranked returns the members of a zset ordered by (score, member).
func ranked(zset map[string]float64) []string {
	members := maps.Keys(zset)
	slices.SortFunc(members, func(a, b string) bool {
		if zset[a] != zset[b] {
			return zset[a] < zset[b]
		}
		return a < b
	})
	return members
}

// rangeIndexes converts Redis start/stop indexes (negative = from the end)
// into Go slice bounds over a sequence of length n.
func rangeIndexes(start, stop, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	stop++ // Redis stop is inclusive
	if stop > n {
		stop = n
	}
	if start >= stop {
		return 0, 0
	}
	return start, stop
}

func (s *Store) zrange(key string, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("zrange: want start and stop")
	}
	withScores := len(args) > 2 && strings.EqualFold(argStr(args[2]), "withscores")
	e, err := s.peek(key, kindZSet)
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
	members := ranked(e.zset)
	lo, hi := rangeIndexes(start, stop, len(members))
	members = members[lo:hi]
	if !withScores {
		return members, nil
	}
	out := make([]string, 0, 2*len(members))
	for _, m := range members {
		out = append(out, m, strconv.FormatFloat(e.zset[m], 'g', -1, 64))
	}
	return out, nil
}

// scoreBound parses a ZRANGEBYSCORE bound: a float, optionally prefixed with
// "(" for exclusive, or -inf/+inf.
func scoreBound(arg string) (value float64, exclusive bool, err error) {
	if strings.HasPrefix(arg, "(") {
		exclusive = true
		arg = arg[1:]
	}
	switch strings.ToLower(arg) {
	case "-inf":
		return math.Inf(-1), exclusive, nil
	case "+inf", "inf":
		return math.Inf(1), exclusive, nil
	}
	value, err = strconv.ParseFloat(arg, 64)
	return value, exclusive, err
}

func (s *Store) zrangebyscore(key string, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("zrangebyscore: want min and max")
	}
	e, err := s.peek(key, kindZSet)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return []string{}, nil
	}
	min, minExcl, err := scoreBound(argStr(args[0]))
	if err != nil {
		return nil, err
	}
	max, maxExcl, err := scoreBound(argStr(args[1]))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range ranked(e.zset) {
		score := e.zset[m]
		if score < min || (minExcl && score == min) {
			continue
		}
		if score > max || (maxExcl && score == max) {
			continue
		}
		out = append(out, m)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// lexBound parses a ZRANGEBYLEX bound: "-", "+", "[value" or "(value".
func lexBound(arg string) (value string, unbounded, exclusive bool, err error) {
	switch {
	case arg == "-" || arg == "+":
		return "", true, false, nil
	case strings.HasPrefix(arg, "["):
		return arg[1:], false, false, nil
	case strings.HasPrefix(arg, "("):
		return arg[1:], false, true, nil
	default:
		return "", false, false, fmt.Errorf("zrangebylex: bad range bound %q", arg)
	}
}

func (s *Store) zrangebylex(key string, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("zrangebylex: want min and max")
	}
	offset, count := 0, -1
	if len(args) > 2 {
		if len(args) != 5 || !strings.EqualFold(argStr(args[2]), "limit") {
			return nil, fmt.Errorf("zrangebylex: bad limit clause")
		}
		var err error
		if offset, err = argInt(args[3]); err != nil {
			return nil, err
		}
		if count, err = argInt(args[4]); err != nil {
			return nil, err
		}
	}
	e, err := s.peek(key, kindZSet)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return []string{}, nil
	}
	minArg, maxArg := argStr(args[0]), argStr(args[1])
	min, minOpen, minExcl, err := lexBound(minArg)
	if err != nil {
		return nil, err
	}
	max, maxOpen, maxExcl, err := lexBound(maxArg)
	if err != nil {
		return nil, err
	}
	if minArg == "+" || maxArg == "-" {
		return []string{}, nil
	}

	var out []string
	for _, m := range ranked(e.zset) {
		if !minOpen {
			if m < min || (minExcl && m == min) {
				continue
			}
		}
		if !maxOpen {
			if m > max || (maxExcl && m == max) {
				continue
			}
		}
		out = append(out, m)
	}
	if offset > 0 {
		if offset >= len(out) {
			return []string{}, nil
		}
		out = out[offset:]
	}
	if count >= 0 && count < len(out) {
		out = out[:count]
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// scoresOf returns member scores of a set (all zeros) or zset key.
// Callers must hold s.mu.
func (s *Store) scoresOf(key string) (map[string]float64, error) {
	e := s.lookup(key)
	if e == nil {
		return nil, nil
	}
	switch e.kind {
	case kindSet:
		scores := map[string]float64{}
		for m := range e.set {
			scores[m] = 0
		}
		return scores, nil
	case kindZSet:
		return e.zset, nil
	default:
		return nil, fmt.Errorf("WRONGTYPE %s is a %s, not a sorted set", key, e.kind)
	}
}

func (s *Store) zinterstore(dest string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("zinterstore: no source keys")
	}
	sources := strs(args)
	acc, err := s.scoresOf(sources[0])
	if err != nil {
		return nil, err
	}
	for _, key := range sources[1:] {
		scores, err := s.scoresOf(key)
		if err != nil {
			return nil, err
		}
		next := map[string]float64{}
		for m, sc := range acc {
			if other, ok := scores[m]; ok {
				next[m] = sc + other // default SUM aggregation
			}
		}
		acc = next
	}
	delete(s.data, dest)
	if len(acc) > 0 {
		s.data[dest] = &entry{kind: kindZSet, zset: acc}
	}
	return int64(len(acc)), nil
}

func (s *Store) zunionstore(dest string, args []any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("zunionstore: no source keys")
	}
	union := map[string]float64{}
	for _, key := range strs(args) {
		scores, err := s.scoresOf(key)
		if err != nil {
			return nil, err
		}
		for m, sc := range scores {
			union[m] += sc
		}
	}
	delete(s.data, dest)
	if len(union) > 0 {
		s.data[dest] = &entry{kind: kindZSet, zset: union}
	}
	return int64(len(union)), nil
}
