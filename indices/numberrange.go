package indices

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/tlog"
	"go.uber.org/zap"
)

const numberRangeKind = "number-range"

type numberRangeDef struct {
	cfg config
}

// NumberRange defines a numeric range index: all values of the field live
// in one sorted set where the member is the primary key and the score is
// the numeric value. Claims the bare, eq, gt, gte, lt, lte and in suffixes
// and can enforce uniqueness. Non-numeric values are indexed with score 0
// after a logged warning.
func NumberRange(options ...Option) Definition {
	return numberRangeDef{cfg: newConfig(options)}
}

func (d numberRangeDef) Bind(b Binding) (Index, error) {
	ix := &numberRangeIndex{}
	ix.init(d.cfg, b, ix)
	return ix, nil
}

type numberRangeIndex struct {
	base
}

func (ix *numberRangeIndex) handles(bare string) bool {
	switch bare {
	case "", "eq", "gt", "gte", "lt", "lte", "in":
		return true
	}
	return false
}

// StorageKey ignores the value: all values of the field share one sorted
// set.
func (ix *numberRangeIndex) StorageKey(subPath []string, _ any) (string, error) {
	return keys.Make(append(ix.keyParts(subPath), numberRangeKind)...), nil
}

// ScoredSetKey implements ScoredSet.
func (ix *numberRangeIndex) ScoredSetKey() (string, error) {
	return ix.StorageKey(nil, nil)
}

// score converts a value to its index score. Values that do not parse as
// numbers land on score 0 so one malformed record cannot fail writes.
func (ix *numberRangeIndex) score(ctx context.Context, value any, applyTransform bool) (float64, error) {
	normalized, err := ix.Normalize(value, applyTransform)
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		tlog.Get(ctx).Warn("non-numeric value in number range index, indexing as 0",
			zap.String("model", ix.bind.Model.Name()),
			zap.String("field", ix.bind.Field.Name()),
			zap.String("value", normalized))
		return 0, nil
	}
	return score, nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}

// scoreBoundaries computes the zrangebyscore interval for a filter, with
// "(" marking an exclusive bound.
func scoreBoundaries(bare string, score float64) (min, max string) {
	min, max = "-inf", "+inf"
	s := formatScore(score)
	switch bare {
	case "", "eq":
		min, max = s, s
	case "gt":
		min = "(" + s
	case "gte":
		min = s
	case "lt":
		max = "(" + s
	case "lte":
		max = s
	}
	return min, max
}

func (ix *numberRangeIndex) pksForFilter(ctx context.Context, key, bare string, score float64) ([]string, error) {
	min, max := scoreBoundaries(bare, score)
	return store.Strings(ix.bind.Conn.Execute(ctx, "zrangebyscore", key, min, max))
}

func (ix *numberRangeIndex) Add(ctx context.Context, pk string, subPath []string, value any, checkUniqueness bool) error {
	key, err := ix.StorageKey(subPath, nil)
	if err != nil {
		return err
	}
	score, err := ix.score(ctx, value, true)
	if err != nil {
		return err
	}
	if ix.checksUniqueness(checkUniqueness) {
		release, err := ix.lockForUpdate(ctx)
		if err != nil {
			return err
		}
		defer release()
		pks, err := ix.pksForFilter(ctx, key, "eq", score)
		if err != nil {
			return err
		}
		if err := ix.assertUniqueness(ctx, pks, pk, key, value); err != nil {
			return err
		}
	}
	ix.debugWrite(ctx, "adding to index", pk, key)
	if _, err := ix.bind.Conn.Execute(ctx, "zadd", key, score, pk); err != nil {
		return err
	}
	ix.logIndexed(pk, subPath, value)
	return nil
}

func (ix *numberRangeIndex) Remove(ctx context.Context, pk string, subPath []string, value any) error {
	key, err := ix.StorageKey(subPath, nil)
	if err != nil {
		return err
	}
	ix.debugWrite(ctx, "removing from index", pk, key)
	if _, err := ix.bind.Conn.Execute(ctx, "zrem", key, pk); err != nil {
		return err
	}
	ix.logDeindexed(pk, subPath, value)
	return nil
}

func (ix *numberRangeIndex) FilteredKeys(ctx context.Context, suffix string, subPath []string, value any, accepted []keys.Type) ([]keys.Storage, error) {
	bare, ok := ix.cfg.bareSuffix(suffix)
	if !ok || !ix.handles(bare) {
		return nil, fmt.Errorf("%w: number range index cannot serve suffix %q", ErrImplementation, suffix)
	}
	keyType, err := rangeResultType(accepted)
	if err != nil {
		return nil, err
	}

	var values []any
	if bare == "in" {
		values, err = valueSlice(value)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return ix.emptyTemporary(keyType), nil
		}
		bare = "eq"
	} else {
		values = []any{value}
	}

	key, err := ix.StorageKey(subPath, nil)
	if err != nil {
		return nil, err
	}
	var pks []string
	for _, v := range values {
		score, err := ix.score(ctx, v, false)
		if err != nil {
			return nil, err
		}
		part, err := ix.pksForFilter(ctx, key, bare, score)
		if err != nil {
			return nil, err
		}
		pks = append(pks, part...)
	}

	tmp := keys.Temporary(ix.bind.Model.Name())
	if err := storePKs(ctx, ix.bind.Conn, tmp, keyType, pks); err != nil {
		return nil, err
	}
	return []keys.Storage{{Name: tmp, Type: keyType, Temporary: true}}, nil
}

func (ix *numberRangeIndex) Clear(ctx context.Context, aggressive bool) error {
	return clearIndex(ctx, &ix.base, aggressive)
}

func (ix *numberRangeIndex) Rebuild(ctx context.Context) error {
	return rebuildIndex(ctx, &ix.base)
}
