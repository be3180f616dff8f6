package collection

import (
	"context"
	"fmt"

	"github.com/ridge/redstone/indices"
	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/tcontext"
	"github.com/ridge/redstone/tlog"
	"go.uber.org/zap"
)

// Env is everything a collection needs to run queries against a model.
type Env struct {
	Conn       store.Connection
	Model      meta.Model
	Registries map[string]*indices.Registry

	// Metrics may be nil, in which case no counters are kept
	Metrics *Metrics

	// Instantiate turns a primary key into a live instance for
	// Instances. May be nil if Instances is never used.
	Instantiate func(pk string) meta.Instance
}

// Collection is a lazy query over the instances of a model. Builder
// methods return a new value and never touch the store; the store is
// hit only when one of the materializers runs.
type Collection struct {
	env *Env
	err error

	filters    []parsedFilter
	pkValues   []Value
	intersects []Source
	sortSpec   *SortSpec

	// storedKey is the backing list of a collection previously saved
	// with Store
	storedKey string
}

// New returns an empty collection covering every instance of the
// model.
func New(env *Env) *Collection {
	return &Collection{env: env}
}

func (c *Collection) clone() *Collection {
	cc := *c
	cc.filters = append([]parsedFilter(nil), c.filters...)
	cc.pkValues = append([]Value(nil), c.pkValues...)
	cc.intersects = append([]Source(nil), c.intersects...)
	if c.sortSpec != nil {
		s := *c.sortSpec
		cc.sortSpec = &s
	}
	return &cc
}

func (c *Collection) fail(err error) *Collection {
	cc := c.clone()
	if cc.err == nil {
		cc.err = err
	}
	return cc
}

// Filter narrows the collection. Keys follow the
// field__subpath__suffix convention, values may be plain values or
// deferred ones built with Literal, FieldOf and InstanceOf. Multiple
// filters, within one call or across calls, are ANDed.
func (c *Collection) Filter(filters map[string]any) *Collection {
	cc := c.clone()
	for key, raw := range filters {
		value := asValue(raw)
		if cc.env.isPrimaryKeyFilter(key) {
			cc.pkValues = append(cc.pkValues, value)
			continue
		}
		pf, err := cc.env.parseFilter(key, value)
		if err != nil {
			return c.fail(err)
		}
		cc.filters = append(cc.filters, pf)
	}
	return cc
}

// Sort orders the materialized results. Calling it again replaces the
// previous ordering.
func (c *Collection) Sort(spec SortSpec) *Collection {
	cc := c.clone()
	s := spec
	cc.sortSpec = &s
	return cc
}

// Intersect restricts the collection to members of the given sources.
// When no filters are present the model's whole-collection set joins
// the intersection so that stray members of external sources cannot
// leak in.
func (c *Collection) Intersect(sources ...Source) *Collection {
	cc := c.clone()
	cc.intersects = append(cc.intersects, sources...)
	return cc
}

// evaluation tracks the temporary keys created while materializing a
// collection so they can be removed when it is done.
type evaluation struct {
	c     *Collection
	temps []string
}

func (c *Collection) newEvaluation() *evaluation {
	c.env.Metrics.evaluation()
	return &evaluation{c: c}
}

func (ev *evaluation) addTemp(key string) {
	ev.c.env.Metrics.temporaryKey()
	ev.temps = append(ev.temps, key)
}

// cleanup removes the temporary keys. It runs on a reopened context so
// that cancellation of the query does not leave garbage behind.
func (ev *evaluation) cleanup(ctx context.Context) {
	if len(ev.temps) == 0 {
		return
	}
	ctx = tcontext.Reopen(ctx)
	args := make([]any, 0, len(ev.temps)-1)
	for _, k := range ev.temps[1:] {
		args = append(args, k)
	}
	if _, err := ev.c.env.Conn.Execute(ctx, "del", ev.temps[0], args...); err != nil {
		tlog.Get(ctx).Warn("Failed to clean up temporary keys", zap.Error(err))
	}
	ev.temps = nil
}

// resolveFinal runs the first three evaluation phases and returns
// either the storage key holding the final set or, when the query can
// be answered without touching a final key, the synthesized result.
//
// needKey forces a real key even for queries that could be
// synthesized, for callers that feed the final set to SORT.
func (ev *evaluation) resolveFinal(ctx context.Context, needKey bool) (keys.Storage, []string, bool, error) {
	c := ev.c
	env := c.env
	none := keys.Storage{}

	// Primary key filters resolve without the store. Two different
	// values can never match the same instance.
	pkSeen := map[string]struct{}{}
	pk := ""
	for _, v := range c.pkValues {
		resolved, err := v.resolve(ctx, env.Conn)
		if err != nil {
			return none, nil, false, err
		}
		raw, err := meta.ToStorage(resolved)
		if err != nil {
			return none, nil, false, fmt.Errorf("primary key filter: %w", err)
		}
		pkSeen[raw] = struct{}{}
		pk = raw
	}
	if len(pkSeen) > 1 {
		return none, nil, true, nil
	}

	// A single bare list is trusted as-is, order included.
	if len(c.intersects) == 1 && c.intersects[0].isList() &&
		len(c.filters) == 0 && len(pkSeen) == 0 && c.storedKey == "" {
		return keys.Storage{Name: c.intersects[0].key, Type: keys.TypeList}, nil, false, nil
	}

	accepted := []keys.Type{keys.TypeSet, keys.TypeSortedSet}
	var sources []keys.Storage
	hasSortedSet := false
	for _, f := range c.filters {
		resolved, err := f.value.resolve(ctx, env.Conn)
		if err != nil {
			return none, nil, false, err
		}
		filtered, err := f.index.FilteredKeys(ctx, f.suffix, f.subPath, resolved, accepted)
		if err != nil {
			return none, nil, false, err
		}
		for _, k := range filtered {
			if k.Temporary {
				ev.addTemp(k.Name)
			}
			if k.Type == keys.TypeSortedSet {
				hasSortedSet = true
			}
			sources = append(sources, k)
		}
	}

	if c.storedKey != "" {
		exists, err := store.Bool(env.Conn.Execute(ctx, "exists", c.storedKey))
		if err != nil {
			return none, nil, false, err
		}
		if !exists {
			return none, nil, false, fmt.Errorf("%w: %s", ErrStale, c.storedKey)
		}
		if len(sources) == 0 && len(c.intersects) == 0 && len(pkSeen) == 0 {
			// nothing to combine with, the list is the result
			return keys.Storage{Name: c.storedKey, Type: keys.TypeList}, nil, false, nil
		}
		tmp := keys.Temporary(env.Model.Name())
		ev.addTemp(tmp)
		if err := listToSet(ctx, env.Conn, c.storedKey, tmp); err != nil {
			return none, nil, false, err
		}
		sources = append(sources, keys.Storage{Name: tmp, Type: keys.TypeSet, Temporary: true})
	}

	if len(c.intersects) > 0 {
		for _, s := range c.intersects {
			st, err := s.materialize(ctx, env.Conn, env.Model)
			if err != nil {
				return none, nil, false, err
			}
			if st.Temporary {
				ev.addTemp(st.Name)
			}
			if st.Type == keys.TypeSortedSet {
				hasSortedSet = true
			}
			sources = append(sources, st)
		}
		if len(c.filters) == 0 {
			sources = append(sources, keys.Storage{Name: env.Model.CollectionKey(), Type: keys.TypeSet})
		}
	}

	if len(pkSeen) == 1 {
		member, err := store.Bool(env.Conn.Execute(ctx, "sismember", env.Model.CollectionKey(), pk))
		if err != nil {
			return none, nil, false, err
		}
		if !member {
			return none, nil, true, nil
		}
		if len(sources) == 0 && !needKey {
			return none, []string{pk}, true, nil
		}
		tmp := keys.Temporary(env.Model.Name())
		ev.addTemp(tmp)
		if _, err := env.Conn.Execute(ctx, "sadd", tmp, pk); err != nil {
			return none, nil, false, err
		}
		sources = append(sources, keys.Storage{Name: tmp, Type: keys.TypeSet, Temporary: true})
	}

	switch len(sources) {
	case 0:
		return keys.Storage{Name: env.Model.CollectionKey(), Type: keys.TypeSet}, nil, false, nil
	case 1:
		return sources[0], nil, false, nil
	default:
		dest := keys.Temporary(env.Model.Name())
		ev.addTemp(dest)
		args := make([]any, 0, len(sources))
		for _, s := range sources {
			args = append(args, s.Name)
		}
		cmd := "sinterstore"
		destType := keys.TypeSet
		if hasSortedSet {
			cmd = "zinterstore"
			destType = keys.TypeSortedSet
		}
		if _, err := env.Conn.Execute(ctx, cmd, dest, args...); err != nil {
			return none, nil, false, err
		}
		return keys.Storage{Name: dest, Type: destType, Temporary: true}, nil, false, nil
	}
}

// plainRead returns the members of the final set in store order.
func (ev *evaluation) plainRead(ctx context.Context, final keys.Storage) ([]string, error) {
	conn := ev.c.env.Conn
	switch final.Type {
	case keys.TypeSortedSet:
		return store.Strings(conn.Execute(ctx, "zrange", final.Name, 0, -1))
	case keys.TypeList:
		return store.Strings(conn.Execute(ctx, "lrange", final.Name, 0, -1))
	default:
		return store.Strings(conn.Execute(ctx, "smembers", final.Name))
	}
}

// sortFetch runs SORT over the final set and returns the raw reply.
func (ev *evaluation) sortFetch(ctx context.Context, final keys.Storage, by string, spec SortSpec, plan *fetchPlan, gets []string) (any, error) {
	offset, count := 0, -1
	desc := spec.Desc
	if plan != nil {
		offset, count = plan.offset, plan.count
		if plan.reversed {
			desc = !desc
		}
	}
	args := sortArgs(by, offset, count, gets, desc, spec.Alpha)
	ev.c.env.Metrics.sortCall()
	return ev.c.env.Conn.Execute(ctx, "sort", final.Name, args...)
}

// scoreTable copies the scores of a sorted set into per-member string
// keys under a fresh base key, for use as a SORT BY pattern. The base
// key itself is set so that the pattern stays alive even when the
// sorted set is empty.
func (ev *evaluation) scoreTable(ctx context.Context, zkey string) (string, error) {
	env := ev.c.env
	pairs, err := store.Strings(env.Conn.Execute(ctx, "zrange", zkey, 0, -1, "withscores"))
	if err != nil {
		return "", err
	}
	base := keys.Temporary(env.Model.Name())
	ev.addTemp(base)
	args := make([]any, 0, 2*len(pairs)/2+1)
	args = append(args, "scores")
	for i := 0; i+1 < len(pairs); i += 2 {
		member := base + keys.Separator + pairs[i]
		ev.addTemp(member)
		args = append(args, member, pairs[i+1])
	}
	if _, err := env.Conn.Execute(ctx, "mset", base, args...); err != nil {
		return "", err
	}
	return base, nil
}

// sortPlan resolves the effective sort for a fetch. Slicing needs a
// stable order, so an unsorted sliced fetch falls back to the default
// numeric sort on the values themselves.
func (c *Collection) sortPlan(plan *fetchPlan) *SortSpec {
	if c.sortSpec != nil {
		s := c.sortSpec.normalized()
		return &s
	}
	if plan != nil {
		return &SortSpec{}
	}
	return nil
}

// fetchPKs runs the last evaluation phase: ordering, slicing and
// reading the primary keys of the final set.
func (ev *evaluation) fetchPKs(ctx context.Context, final keys.Storage, plan *fetchPlan) ([]string, error) {
	c := ev.c
	spec := c.sortPlan(plan)
	if spec == nil {
		return ev.plainRead(ctx, final)
	}

	by := spec.pattern(c.env.Model.FieldPattern)
	if spec.ByScore != "" {
		var err error
		final, by, _, err = ev.prepareByScore(ctx, final, spec.ByScore)
		if err != nil {
			return nil, err
		}
	}

	reply, err := ev.sortFetch(ctx, final, by, *spec, plan, nil)
	pks, err := store.Strings(reply, err)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		pks = plan.apply(pks)
	}
	return pks, nil
}

// prepareByScore rewrites a by-score sort into a plain SORT BY: the
// relevant zset scores are copied into per-member string keys and the
// final set is flattened so SORT can take it. Returns the rewritten
// final key, the BY pattern and the score table base key.
func (ev *evaluation) prepareByScore(ctx context.Context, final keys.Storage, field string) (keys.Storage, string, string, error) {
	scored, err := ev.scoredKey(ctx, final, field)
	if err != nil {
		return final, "", "", err
	}
	base, err := ev.scoreTable(ctx, scored.Name)
	if err != nil {
		return final, "", "", err
	}
	flat := keys.Temporary(ev.c.env.Model.Name())
	ev.addTemp(flat)
	if err := zsetToSet(ctx, ev.c.env.Conn, scored.Name, flat); err != nil {
		return final, "", "", err
	}
	final = keys.Storage{Name: flat, Type: keys.TypeSet, Temporary: true}
	return final, base + keys.Separator + "*", base, nil
}

// scoredKey locates the sorted set backing a by-score sort of the final
// set. The field must have an index maintaining one, which today means a
// number range index.
func (ev *evaluation) scoredKey(ctx context.Context, final keys.Storage, field string) (keys.Storage, error) {
	c := ev.c
	reg, ok := c.env.Registries[field]
	if !ok {
		return keys.Storage{}, fmt.Errorf("%w: cannot sort by score of field %q", indices.ErrConfiguration, field)
	}
	zkey, ok := reg.ScoredSetKey()
	if !ok {
		return keys.Storage{}, fmt.Errorf("%w: field %q has no sorted set to sort by", indices.ErrConfiguration, field)
	}
	if final.Name == c.env.Model.CollectionKey() {
		// every instance is in the field's sorted set already
		return keys.Storage{Name: zkey, Type: keys.TypeSortedSet}, nil
	}
	// restrict the field's sorted set to the final set's members
	dest := keys.Temporary(c.env.Model.Name())
	ev.addTemp(dest)
	if _, err := c.env.Conn.Execute(ctx, "zinterstore", dest, zkey, final.Name); err != nil {
		return keys.Storage{}, err
	}
	return keys.Storage{Name: dest, Type: keys.TypeSortedSet, Temporary: true}, nil
}

func (c *Collection) materializePKs(ctx context.Context, r *Range) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	ev := c.newEvaluation()
	defer ev.cleanup(ctx)

	var plan *fetchPlan
	if r != nil {
		p, err := planRange(*r)
		if err != nil {
			return nil, err
		}
		if p.empty {
			return []string{}, nil
		}
		plan = &p
	}

	final, synth, haveSynth, err := ev.resolveFinal(ctx, false)
	if err != nil {
		return nil, err
	}
	if haveSynth {
		if r != nil {
			return cut(synth, *r), nil
		}
		return synth, nil
	}
	return ev.fetchPKs(ctx, final, plan)
}

// PrimaryKeys materializes the collection as primary keys.
func (c *Collection) PrimaryKeys(ctx context.Context) ([]string, error) {
	return c.materializePKs(ctx, nil)
}

// Slice materializes the primary keys covered by the range. Negative
// bounds count from the end, a negative step walks backwards.
func (c *Collection) Slice(ctx context.Context, r Range) ([]string, error) {
	return c.materializePKs(ctx, &r)
}

// At materializes the single primary key at the given position, which
// may be negative to count from the end. store.ErrNilReply is returned
// when the position is out of range.
func (c *Collection) At(ctx context.Context, i int) (string, error) {
	r := Range{Start: Bound(i), Stop: Bound(i + 1)}
	if i == -1 {
		// -1+1 would be an empty range, not "to the end"
		r.Stop = nil
	}
	pks, err := c.materializePKs(ctx, &r)
	if err != nil {
		return "", err
	}
	if len(pks) == 0 {
		return "", store.ErrNilReply
	}
	return pks[0], nil
}

// Count materializes only the size of the collection. Sorting and
// intersection sources still apply, slicing does not.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	ev := c.newEvaluation()
	defer ev.cleanup(ctx)
	final, synth, haveSynth, err := ev.resolveFinal(ctx, false)
	if err != nil {
		return 0, err
	}
	if haveSynth {
		return len(synth), nil
	}
	cmd := "scard"
	switch final.Type {
	case keys.TypeSortedSet:
		cmd = "zcard"
	case keys.TypeList:
		cmd = "llen"
	}
	n, err := store.Int(ev.c.env.Conn.Execute(ctx, cmd, final.Name))
	return int(n), err
}

// Instances materializes the collection as live instances.
func (c *Collection) Instances(ctx context.Context) ([]meta.Instance, error) {
	if c.env.Instantiate == nil {
		return nil, fmt.Errorf("%w: no instantiator configured", indices.ErrConfiguration)
	}
	pks, err := c.PrimaryKeys(ctx)
	if err != nil {
		return nil, err
	}
	instances := make([]meta.Instance, 0, len(pks))
	for _, pk := range pks {
		instances = append(instances, c.env.Instantiate(pk))
	}
	return instances, nil
}
