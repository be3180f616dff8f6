package indices

import (
	"context"
	"fmt"
	"strings"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/store"
)

// TextRangeSeparator joins the indexed value and the primary key into a
// single sorted-set member. The encoding is part of the on-store format:
// members are "value:TEXT-RANGE-SEPARATOR:pk" with score 0, so that equal
// values sort adjacently and the primary key survives a range scan.
const TextRangeSeparator = ":TEXT-RANGE-SEPARATOR:"

const textRangeKind = "text-range"

// textRangeFilterScript walks the matching range of a lexicographic index
// in blocks of 100, splits each member into value and primary key on the
// last separator, drops members whose value equals the excluded one, and
// materializes the primary keys into the destination set or sorted set
// (scored by scan position).
var textRangeFilterScript = &store.Script{
	Name: "text-range-filter",
	Source: `
		local source_key, dest_key = KEYS[1], KEYS[2]
		local dest_type, separator = ARGV[1], ARGV[2]
		local lex_start, lex_end, exclude = ARGV[3], ARGV[4], ARGV[5]
		local start, block_size, position = 0, 100, 0

		while true do
			local members = redis.call('zrangebylex', source_key, lex_start, lex_end, 'limit', start, block_size)
			if members[1] == nil then
				break
			end
			for i, member in ipairs(members) do
				-- search in reverse to split on the last separator only
				local first_pos, last_pos = member:reverse():find(separator:reverse(), 1, true)
				first_pos = member:len() - last_pos
				if not exclude or member:sub(1, first_pos) ~= exclude then
					local pk = member:sub(first_pos + separator:len() + 1)
					if dest_type == 'set' then
						redis.call('sadd', dest_key, pk)
					else
						redis.call('zadd', dest_key, position, pk)
					end
					position = position + 1
				end
			end
			if members[block_size] == nil then
				break
			end
			start = start + block_size
		end
		return dest_key
	`,
}

type textRangeDef struct {
	cfg config
}

// TextRange defines a lexicographic range index: all values of the field
// live in one sorted set, serving equality, ordering and prefix filters.
// Claims the bare, eq, gt, gte, lt, lte, startswith and in suffixes and can
// enforce uniqueness. Requires a store with lexicographic range queries.
func TextRange(options ...Option) Definition {
	return textRangeDef{cfg: newConfig(options)}
}

func (d textRangeDef) Bind(b Binding) (Index, error) {
	if !b.Conn.SupportsRangeQuery() {
		return nil, fmt.Errorf("%w: text range index on %s.%s needs lexicographic range queries",
			ErrUnsupported, b.Model.Name(), b.Field.Name())
	}
	ix := &textRangeIndex{}
	ix.init(d.cfg, b, ix)
	return ix, nil
}

type textRangeIndex struct {
	base
}

func (ix *textRangeIndex) handles(bare string) bool {
	switch bare {
	case "", "eq", "gt", "gte", "lt", "lte", "startswith", "in":
		return true
	}
	return false
}

// StorageKey ignores the value: all values of the field share one sorted
// set.
func (ix *textRangeIndex) StorageKey(subPath []string, _ any) (string, error) {
	return keys.Make(append(ix.keyParts(subPath), textRangeKind)...), nil
}

func (ix *textRangeIndex) member(normalized, pk string) string {
	return normalized + TextRangeSeparator + pk
}

// splitMember recovers the value and primary key from a sorted-set member,
// splitting on the last separator so values containing the separator still
// round-trip.
func splitMember(member string) (value, pk string, ok bool) {
	i := strings.LastIndex(member, TextRangeSeparator)
	if i < 0 {
		return "", "", false
	}
	return member[:i], member[i+len(TextRangeSeparator):], true
}

// lexBoundaries computes the zrangebylex interval for a filter. In the lex
// grammar "[" includes, "(" excludes, and a trailing \xff extends the bound
// past every member sharing the prefix. An eq bound includes the separator
// so a value does not match members it is merely a prefix of. gt and lt
// cannot exclude the exact value here; callers apply a post-scan exclusion.
func lexBoundaries(bare, value string) (start, end string) {
	start, end = "-", "+"
	switch bare {
	case "", "eq":
		start = "[" + value + TextRangeSeparator
		end = start + "\xff"
	case "gt":
		start = "(" + value
	case "gte":
		start = "[" + value
	case "startswith":
		start = "[" + value
		end = start + "\xff"
	}
	switch bare {
	case "lt":
		end = "(" + value
	case "lte":
		end = "[" + value + TextRangeSeparator + "\xff"
	}
	return start, end
}

// excludesExact reports whether the filter needs the exact value dropped
// after the range scan.
func excludesExact(bare string) bool {
	return bare == "gt" || bare == "lt"
}

// pksForFilter extracts matching primary keys from the index sorted set on
// the client side. Serves the uniqueness check and the no-scripting
// fallback.
func (ix *textRangeIndex) pksForFilter(ctx context.Context, key, bare, normalized string) ([]string, error) {
	start, end := lexBoundaries(bare, normalized)
	members, err := store.Strings(ix.bind.Conn.Execute(ctx, "zrangebylex", key, start, end))
	if err != nil {
		return nil, err
	}
	pks := make([]string, 0, len(members))
	for _, m := range members {
		value, pk, ok := splitMember(m)
		if !ok {
			continue
		}
		if excludesExact(bare) && value == normalized {
			continue
		}
		pks = append(pks, pk)
	}
	return pks, nil
}

func (ix *textRangeIndex) Add(ctx context.Context, pk string, subPath []string, value any, checkUniqueness bool) error {
	key, err := ix.StorageKey(subPath, nil)
	if err != nil {
		return err
	}
	normalized, err := ix.Normalize(value, true)
	if err != nil {
		return err
	}
	if ix.checksUniqueness(checkUniqueness) {
		release, err := ix.lockForUpdate(ctx)
		if err != nil {
			return err
		}
		defer release()
		pks, err := ix.pksForFilter(ctx, key, "eq", normalized)
		if err != nil {
			return err
		}
		if err := ix.assertUniqueness(ctx, pks, pk, key, value); err != nil {
			return err
		}
	}
	ix.debugWrite(ctx, "adding to index", pk, key)
	if _, err := ix.bind.Conn.Execute(ctx, "zadd", key, 0, ix.member(normalized, pk)); err != nil {
		return err
	}
	ix.logIndexed(pk, subPath, value)
	return nil
}

func (ix *textRangeIndex) Remove(ctx context.Context, pk string, subPath []string, value any) error {
	key, err := ix.StorageKey(subPath, nil)
	if err != nil {
		return err
	}
	normalized, err := ix.Normalize(value, true)
	if err != nil {
		return err
	}
	ix.debugWrite(ctx, "removing from index", pk, key)
	if _, err := ix.bind.Conn.Execute(ctx, "zrem", key, ix.member(normalized, pk)); err != nil {
		return err
	}
	ix.logDeindexed(pk, subPath, value)
	return nil
}

func (ix *textRangeIndex) FilteredKeys(ctx context.Context, suffix string, subPath []string, value any, accepted []keys.Type) ([]keys.Storage, error) {
	bare, ok := ix.cfg.bareSuffix(suffix)
	if !ok || !ix.handles(bare) {
		return nil, fmt.Errorf("%w: text range index cannot serve suffix %q", ErrImplementation, suffix)
	}
	keyType, err := rangeResultType(accepted)
	if err != nil {
		return nil, err
	}

	if bare == "in" {
		values, err := valueSlice(value)
		if err != nil {
			return nil, err
		}
		return ix.unionFiltered(ctx, subPath, values, keyType)
	}

	normalized, err := ix.Normalize(value, false)
	if err != nil {
		return nil, err
	}
	tmp, err := ix.filterInto(ctx, bare, subPath, normalized, keyType)
	if err != nil {
		return nil, err
	}
	return []keys.Storage{{Name: tmp, Type: keyType, Temporary: true}}, nil
}

// filterInto materializes the primary keys matching one range filter into a
// fresh temporary key, server-side when scripting is available.
func (ix *textRangeIndex) filterInto(ctx context.Context, bare string, subPath []string, normalized string, keyType keys.Type) (string, error) {
	key, err := ix.StorageKey(subPath, nil)
	if err != nil {
		return "", err
	}
	tmp := keys.Temporary(ix.bind.Model.Name())

	if ix.bind.Conn.SupportsScripting() {
		start, end := lexBoundaries(bare, normalized)
		var exclude any
		if excludesExact(bare) {
			exclude = normalized
		}
		_, err := ix.bind.Conn.RunScript(ctx, textRangeFilterScript,
			[]string{key, tmp},
			[]any{string(keyType), TextRangeSeparator, start, end, exclude})
		if err != nil {
			return "", err
		}
		return tmp, nil
	}

	pks, err := ix.pksForFilter(ctx, key, bare, normalized)
	if err != nil {
		return "", err
	}
	if err := storePKs(ctx, ix.bind.Conn, tmp, keyType, pks); err != nil {
		return "", err
	}
	return tmp, nil
}

// unionFiltered serves the in suffix: one temporary key per candidate
// value, unioned into a single result key. The intermediate keys are
// deleted before returning.
func (ix *textRangeIndex) unionFiltered(ctx context.Context, subPath []string, values []any, keyType keys.Type) ([]keys.Storage, error) {
	if len(values) == 0 {
		return ix.emptyTemporary(keyType), nil
	}
	parts := make([]string, 0, len(values))
	defer func() {
		for _, p := range parts {
			_, _ = ix.bind.Conn.Execute(ctx, "del", p)
		}
	}()
	for _, v := range values {
		normalized, err := ix.Normalize(v, false)
		if err != nil {
			return nil, err
		}
		part, err := ix.filterInto(ctx, "eq", subPath, normalized, keyType)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	tmp := keys.Temporary(ix.bind.Model.Name())
	if err := unionPKKeys(ctx, ix.bind.Conn, tmp, keyType, parts); err != nil {
		return nil, err
	}
	return []keys.Storage{{Name: tmp, Type: keyType, Temporary: true}}, nil
}

func (ix *textRangeIndex) Clear(ctx context.Context, aggressive bool) error {
	return clearIndex(ctx, &ix.base, aggressive)
}

func (ix *textRangeIndex) Rebuild(ctx context.Context) error {
	return rebuildIndex(ctx, &ix.base)
}

// rangeResultType picks the result key type for a range filter: a plain
// set when accepted, else a sorted set.
func rangeResultType(accepted []keys.Type) (keys.Type, error) {
	switch {
	case keys.Accepted(keys.TypeSet, accepted):
		return keys.TypeSet, nil
	case keys.Accepted(keys.TypeSortedSet, accepted):
		return keys.TypeSortedSet, nil
	default:
		return "", fmt.Errorf("%w: range index can only produce set or zset keys", ErrImplementation)
	}
}

// storePKs writes primary keys into a fresh result key. Sorted-set results
// are scored by position so scan order survives.
func storePKs(ctx context.Context, conn store.Connection, key string, keyType keys.Type, pks []string) error {
	if len(pks) == 0 {
		return nil
	}
	if keyType == keys.TypeSet {
		args := make([]any, len(pks))
		for i, pk := range pks {
			args[i] = pk
		}
		_, err := conn.Execute(ctx, "sadd", key, args...)
		return err
	}
	args := make([]any, 0, 2*len(pks))
	for i, pk := range pks {
		args = append(args, i, pk)
	}
	_, err := conn.Execute(ctx, "zadd", key, args...)
	return err
}

// unionPKKeys merges several result keys into one.
func unionPKKeys(ctx context.Context, conn store.Connection, dest string, keyType keys.Type, sources []string) error {
	cmd := "sunionstore"
	if keyType == keys.TypeSortedSet {
		cmd = "zunionstore"
	}
	args := make([]any, len(sources))
	for i, s := range sources {
		args[i] = s
	}
	_, err := conn.Execute(ctx, cmd, dest, args...)
	return err
}
