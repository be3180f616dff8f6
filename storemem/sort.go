package storemem

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

type sortSpec struct {
	by     string // "" = sort by the element itself, "nosort" pattern = keep order
	limit  bool
	offset int
	count  int
	gets   []string
	desc   bool
	alpha  bool
}

func parseSortArgs(args []any) (sortSpec, error) {
	spec := sortSpec{}
	for i := 0; i < len(args); i++ {
		switch strings.ToLower(argStr(args[i])) {
		case "by":
			i++
			if i >= len(args) {
				return spec, fmt.Errorf("sort: by without pattern")
			}
			spec.by = argStr(args[i])
		case "limit":
			if i+2 >= len(args) {
				return spec, fmt.Errorf("sort: limit without offset and count")
			}
			var err error
			if spec.offset, err = argInt(args[i+1]); err != nil {
				return spec, err
			}
			if spec.count, err = argInt(args[i+2]); err != nil {
				return spec, err
			}
			spec.limit = true
			i += 2
		case "get":
			i++
			if i >= len(args) {
				return spec, fmt.Errorf("sort: get without pattern")
			}
			spec.gets = append(spec.gets, argStr(args[i]))
		case "asc":
		case "desc":
			spec.desc = true
		case "alpha":
			spec.alpha = true
		default:
			return spec, fmt.Errorf("sort: unknown argument %v", args[i])
		}
	}
	return spec, nil
}

// resolvePattern substitutes element into a SORT BY/GET pattern and fetches
// the referenced value. Patterns with "->" address a hash field. Returns
// (value, found). Callers must hold s.mu.
func (s *Store) resolvePattern(pattern, element string) (string, bool) {
	key := pattern
	field := ""
	if i := strings.Index(pattern, "->"); i >= 0 {
		key, field = pattern[:i], pattern[i+2:]
	}
	key = strings.Replace(key, "*", element, 1)
	field = strings.Replace(field, "*", element, 1)
	e := s.lookup(key)
	if e == nil {
		return "", false
	}
	if field != "" {
		if e.kind != kindHash {
			return "", false
		}
		v, ok := e.hash[field]
		return v, ok
	}
	if e.kind != kindString {
		return "", false
	}
	return e.str, true
}

// sort implements the SORT command over sets, sorted sets and lists.
func (s *Store) sort(key string, args []any) (any, error) {
	spec, err := parseSortArgs(args)
	if err != nil {
		return nil, err
	}

	var elements []string
	e := s.lookup(key)
	if e != nil {
		switch e.kind {
		case kindSet:
			for m := range e.set {
				elements = append(elements, m)
			}
			slices.Sort(elements) // stable input order before sorting proper
		case kindZSet:
			elements = ranked(e.zset)
		case kindList:
			elements = append(elements, e.list...)
		default:
			return nil, fmt.Errorf("WRONGTYPE %s is a %s, not sortable", key, e.kind)
		}
	}

	// A BY pattern without "*" disables sorting (the "nosort" idiom);
	// list order is preserved, sets keep their arbitrary order.
	nosort := spec.by != "" && !strings.Contains(spec.by, "*")

	if !nosort {
		sortKey := func(el string) (string, bool) {
			if spec.by == "" {
				return el, true
			}
			return s.resolvePattern(spec.by, el)
		}
		if spec.alpha {
			slices.SortStableFunc(elements, func(a, b string) bool {
				av, _ := sortKey(a)
				bv, _ := sortKey(b)
				if av != bv {
					return av < bv
				}
				return a < b
			})
		} else {
			weights := make(map[string]float64, len(elements))
			for _, el := range elements {
				v, ok := sortKey(el)
				if !ok || v == "" {
					weights[el] = 0
					continue
				}
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, fmt.Errorf("one or more scores can't be converted into double")
				}
				weights[el] = f
			}
			slices.SortStableFunc(elements, func(a, b string) bool {
				if weights[a] != weights[b] {
					return weights[a] < weights[b]
				}
				return a < b
			})
		}
		if spec.desc {
			reverse(elements)
		}
	} else if spec.desc {
		reverse(elements)
	}

	if spec.limit {
		if spec.offset >= len(elements) || spec.offset < 0 {
			elements = nil
		} else {
			elements = elements[spec.offset:]
			if spec.count >= 0 && spec.count < len(elements) {
				elements = elements[:spec.count]
			}
		}
	}

	if len(spec.gets) == 0 {
		if elements == nil {
			elements = []string{}
		}
		return elements, nil
	}

	// With GET patterns the reply is flattened: one entry per pattern per
	// element, nil for unresolvable patterns.
	out := make([]any, 0, len(elements)*len(spec.gets))
	for _, el := range elements {
		for _, pattern := range spec.gets {
			if pattern == "#" {
				out = append(out, el)
				continue
			}
			if v, ok := s.resolvePattern(pattern, el); ok {
				out = append(out, v)
			} else {
				out = append(out, nil)
			}
		}
	}
	return out, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
