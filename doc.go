// Package redstone maintains secondary indexes over a Redis-like
// key-value store and answers queries against them through lazy
// collections.
//
// The store itself only knows how to look an object up by its primary
// key. Redstone layers the missing piece on top: per-field index
// structures kept in ordinary store keys, updated whenever a field
// value changes, and a query planner that combines those structures
// with set operations executed inside the store.
//
// # Models and fields
//
// A model describes the shape of the indexed data: its name, its
// primary key, and the fields that carry values. Models are described
// by the meta package; NewDescriptor builds one from field
// declarations, or any type implementing meta.Model can be used
// directly. Field values are converted to their storage form (strings)
// by the field's own conversion functions.
//
// # Index definitions
//
// Indexes are declared per field when an Engine is built:
//
//	engine, err := redstone.New(conn, model, []redstone.FieldIndexes{
//		redstone.UniqueIndexed("name", redstone.Equal()),
//		redstone.Indexed("length", redstone.NumberRange()),
//		redstone.Indexed("description", redstone.TextRange()),
//	})
//
// Equal supports exact matching, TextRange adds lexicographic ranges
// and prefix matching, NumberRange adds numeric ranges and by-score
// sorting. Compose bundles several definitions into one, and the
// Prefix, Discriminator and Transform options derive specialized
// indexes from a field, such as indexing only the first letter of a
// name:
//
//	redstone.Indexed("name",
//		redstone.Compose(
//			redstone.Equal(),
//			redstone.Equal(
//				redstone.Prefix("first_letter"),
//				redstone.Transform(func(v string) string {
//					if v == "" {
//						return ""
//					}
//					return v[:1]
//				}),
//			),
//		),
//	)
//
// # Keeping indexes current
//
// The engine does not hook into the store; the application tells it
// about changes. AddInstance and RemoveInstance maintain membership of
// the model's collection, IndexAdd and IndexRemove maintain a single
// field, and Apply runs a batch of field updates atomically with
// respect to errors: if any step fails, every step already performed
// is rolled back before the error is returned, so the indexes never
// reflect half of a save.
//
// Fields declared with UniqueIndexed reject values already held by
// another instance with ErrUniqueness. The check-then-write sequence
// can be guarded against concurrent writers with WithLocker.
//
// # Querying
//
// Collections are lazy: building one costs nothing, the store is hit
// only when the collection materializes.
//
//	pks, err := engine.Collection().
//		Filter(map[string]any{"length__gte": 15, "name__startswith": "b"}).
//		Sort(redstone.SortSpec{By: "length"}).
//		PrimaryKeys(ctx)
//
// Filter keys name a field, optionally a sub-path into a composite
// field, and a suffix selecting the comparison: eq (the default), in,
// gt, gte, lt, lte, startswith. All filters are ANDed. Filter values
// may also be deferred with FieldOf and InstanceOf, resolving another
// instance's field or primary key at materialization time.
//
// Materializers: PrimaryKeys, Count, Slice, At, Instances, Values,
// ValuesList, FlatValuesList. Slice and At take store-side shortcuts
// whenever the requested window can be expressed as a SORT LIMIT,
// including windows counted from the end. Values and friends fetch
// field values together with the query result in a single round trip.
//
// Intersect restricts a collection to the members of external keys or
// literal primary key sets. Store persists a materialized result into
// a list, optionally with a TTL, for cheap repeated access; a stored
// collection whose list has expired reports ErrStale.
//
// All intermediate keys a query creates are temporary and removed when
// the materializer returns, whether it succeeds, fails or is canceled.
package redstone
