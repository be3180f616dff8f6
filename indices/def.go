package indices

import (
	"context"
	"strings"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
)

// Definition is a blueprint for creating a bound index. This intermediate
// step is needed because definitions are created before the field and
// connection they are intended for.
type Definition interface {
	Bind(b Binding) (Index, error)
}

// Binding carries everything a definition needs to produce a working index
// for one field of one model.
type Binding struct {
	Conn   store.Connection
	Locker *store.Locker
	Model  meta.Model
	Field  meta.Field

	// Unique makes uniqueness-capable indexes of this field enforce that
	// no two records share a value.
	Unique bool

	// Load reads the current stored value of the field for a primary key.
	// Used by maintenance (Clear, Rebuild). When nil, a plain read of
	// Field.Key(pk) is used.
	Load func(ctx context.Context, pk string) (string, bool, error)
}

// Index is a definition bound to a field. Add, Remove and FilteredKeys are
// the hot paths; the rest serves uniqueness rollback and maintenance.
type Index interface {
	// CanHandle reports whether the index serves the given filter suffix
	// ("" for a bare filter, "gte", "year__gte" for prefixed indexes).
	CanHandle(suffix string) bool

	// HandlesUniqueness reports whether the index is able to enforce a
	// uniqueness constraint. Of several indexes on one field, only the
	// first capable one does the check.
	HandlesUniqueness() bool

	// Normalize converts a caller value to the string form stored in the
	// index, optionally applying the configured transform.
	Normalize(value any, applyTransform bool) (string, error)

	// StorageKey returns the store key indexing the given value (range
	// indexes keep all values in one key and ignore the value).
	StorageKey(subPath []string, value any) (string, error)

	// Add writes pk into the index entry for value. With checkUniqueness,
	// a uniqueness-capable index on a unique field verifies first that no
	// other primary key owns the value. The write is recorded for
	// Rollback.
	Add(ctx context.Context, pk string, subPath []string, value any, checkUniqueness bool) error

	// Remove erases pk from the index entry for value. The removal is
	// recorded for Rollback.
	Remove(ctx context.Context, pk string, subPath []string, value any) error

	// FilteredKeys resolves a filter into store keys usable for set
	// intersection. Every returned key has a type from accepted (empty
	// accepted list accepts everything). Temporary keys are owned by the
	// caller and must be deleted once consumed.
	FilteredKeys(ctx context.Context, suffix string, subPath []string, value any, accepted []keys.Type) ([]keys.Storage, error)

	// AllStorageKeys returns a pattern-scanned superset of the keys the
	// index may have written. Used only by aggressive Clear.
	AllStorageKeys(ctx context.Context) ([]string, error)

	// ResetLog discards the rollback log.
	ResetLog()

	// Rollback undoes every Add and Remove recorded since the last
	// ResetLog, without uniqueness checks, and clears the log.
	Rollback(ctx context.Context) error

	// Clear empties the index. Aggressive mode deletes every key matching
	// the index's pattern; normal mode deindexes the current value of
	// every record in the collection.
	Clear(ctx context.Context, aggressive bool) error

	// Rebuild clears the index aggressively and reindexes the current
	// value of every record in the collection.
	Rebuild(ctx context.Context) error
}

// ScoredSet is implemented by indexes keeping all values of the field in
// one sorted set scored by the value. Such a set can back by-score
// sorting of query results.
type ScoredSet interface {
	// ScoredSetKey returns that sorted set's key.
	ScoredSetKey() (string, error)
}

type config struct {
	prefix        string
	discriminator string
	transform     func(string) string
	noUniqueness  bool
}

// Option configures an index definition.
type Option interface {
	apply(c *config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// Prefix namespaces the suffixes an index claims: with Prefix("year"), the
// index answers year and year__gte filters instead of bare ones. The prefix
// also becomes part of the storage keys, so same-field indexes do not
// collide.
func Prefix(prefix string) Option {
	return optionFunc(func(c *config) { c.prefix = prefix })
}

// Discriminator inserts an extra component into the index's storage keys,
// to disambiguate two otherwise identical indexes on the same field.
func Discriminator(discriminator string) Option {
	return optionFunc(func(c *config) { c.discriminator = discriminator })
}

// Transform applies f to the normalized value before it is indexed. Filter
// values are expected already transformed and are used as given.
func Transform(f func(string) string) Option {
	return optionFunc(func(c *config) { c.transform = f })
}

// NoUniqueness is an option that makes an index never enforce uniqueness,
// even on a unique field. Useful for lossy indexes (such as a year-only
// index of a date field) composed next to an exact one.
var NoUniqueness noUniqueness

type noUniqueness struct{}

func (noUniqueness) apply(c *config) { c.noUniqueness = true }

func newConfig(options []Option) config {
	var c config
	for _, opt := range options {
		opt.apply(&c)
	}
	return c
}

// bareSuffix strips the configured prefix from a qualified suffix. The
// second result is false when the suffix does not belong to this index's
// namespace.
func (c config) bareSuffix(suffix string) (string, bool) {
	if c.prefix == "" {
		return suffix, true
	}
	if suffix == c.prefix {
		return "", true
	}
	rest, ok := strings.CutPrefix(suffix, c.prefix+"__")
	if !ok {
		return "", false
	}
	return rest, true
}

// qualify is the inverse of bareSuffix, for error messages.
func (c config) qualify(bare string) string {
	if c.prefix == "" {
		return bare
	}
	if bare == "" {
		return c.prefix
	}
	return c.prefix + "__" + bare
}
