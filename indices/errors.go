package indices

import "errors"

// ErrConfiguration is returned when indexes or filters are declared
// incorrectly: an unknown filter suffix, a filter on a non-indexable field,
// a uniqueness constraint without a uniqueness-capable index.
var ErrConfiguration = errors.New("index configuration error")

// ErrImplementation is returned when an index is asked for something it
// cannot produce, such as a key type outside the accepted set.
var ErrImplementation = errors.New("index implementation error")

// ErrUniqueness is returned when an indexed write would violate a
// uniqueness constraint.
var ErrUniqueness = errors.New("uniqueness violation")

// ErrUnsupported is returned when the store lacks a primitive an index
// requires, such as lexicographic range queries.
var ErrUnsupported = errors.New("unsupported by store")
