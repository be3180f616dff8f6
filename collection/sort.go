package collection

import "strings"

// preserveOrder is the BY pattern that switches off sorting while keeping
// the store-side windowing of the sort primitive. Stored collections use it
// to keep their persisted order.
const preserveOrder = "nosort"

// SortSpec describes the requested ordering of a collection.
type SortSpec struct {
	// By is the field to order by, or a raw wildcard pattern addressing
	// per-record keys. A leading "-" means descending. Empty sorts by the
	// primary keys themselves.
	By string

	// Alpha orders lexicographically instead of numerically.
	Alpha bool

	// Desc reverses the order.
	Desc bool

	// ByScore orders by the scores of the given store sorted set instead
	// of a field. Mutually exclusive with By.
	ByScore string
}

// normalized splits a leading "-" off By into Desc.
func (s SortSpec) normalized() SortSpec {
	if by, ok := strings.CutPrefix(s.By, "-"); ok {
		s.By = by
		s.Desc = true
	}
	return s
}

// pattern resolves By into the SORT BY argument: a declared field name
// becomes the field's wildcard pattern, anything else passes through as a
// raw pattern.
func (s SortSpec) pattern(fieldPattern func(string) string) string {
	if s.By == "" || s.By == preserveOrder {
		return s.By
	}
	if p := fieldPattern(s.By); p != "" {
		return p
	}
	return s.By
}

// sortArgs assembles the argument list of a SORT call.
func sortArgs(by string, offset, count int, gets []string, desc, alpha bool) []any {
	args := []any{}
	if by != "" {
		args = append(args, "by", by)
	}
	if offset != 0 || count != -1 {
		args = append(args, "limit", offset, count)
	}
	for _, get := range gets {
		args = append(args, "get", get)
	}
	if desc {
		args = append(args, "desc")
	}
	if alpha {
		args = append(args, "alpha")
	}
	return args
}
