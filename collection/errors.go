package collection

import "errors"

// ErrStale is returned when a stored collection's backing key no longer
// exists, typically because its TTL elapsed. Distinct from a legitimately
// empty result.
var ErrStale = errors.New("stored collection reference is stale")
