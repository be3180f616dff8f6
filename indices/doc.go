// Package indices maintains secondary indexes for redstone models.
//
// An index maps a field's values to the primary keys of records holding
// them, using only the primitive structures of the underlying store. To
// declare indexes for a field, first make some index definitions:
//
//	var (
//	    IndexName   = indices.Equal()
//	    IndexLength = indices.NumberRange()
//	    IndexDate   = indices.Compose(
//	        indices.TextRange(),
//	        indices.NumberRange(indices.Prefix("year"), indices.Transform(func(v string) string { return v[:4] }), indices.NoUniqueness),
//	    )
//	)
//
// IndexName is a plain equality index: one set of primary keys per distinct
// value. IndexLength keeps all values of the field in one sorted set keyed
// by numeric score, serving range filters. IndexDate composes two indexes
// on the same field: full-value text ranges plus a year-only numeric range
// reachable through the year__ filter prefix.
//
// Definitions are immutable and may be shared between fields. Binding a
// definition to a field (done by the engine at construction) produces an
// Index that reads and writes the store.
//
// Filter suffixes route to the first bound index of the field that claims
// them. Equal claims "eq" and "in", the range indexes additionally claim
// "gt", "gte", "lt", "lte" and (text only) "startswith". A definition
// configured with a prefix claims only qualified forms such as "year" and
// "year__gte".
package indices
