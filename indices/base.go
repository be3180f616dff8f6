package indices

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/ridge/redstone/keys"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/tlog"
	"go.uber.org/zap"
)

type logEntry struct {
	pk      string
	subPath []string
	value   any
}

// base carries the state and plumbing shared by all bound index variants.
// The owner pointer refers back to the concrete index so that rollback and
// maintenance go through its Add/Remove.
type base struct {
	cfg   config
	bind  Binding
	owner Index

	mu        sync.Mutex
	indexed   []logEntry
	deindexed []logEntry
}

func (b *base) init(cfg config, bind Binding, owner Index) {
	b.cfg = cfg
	b.bind = bind
	b.owner = owner
}

func (b *base) CanHandle(suffix string) bool {
	bare, ok := b.cfg.bareSuffix(suffix)
	return ok && b.owner.(suffixSet).handles(bare)
}

// suffixSet is implemented by every concrete index variant.
type suffixSet interface {
	handles(bare string) bool
}

func (b *base) HandlesUniqueness() bool {
	return !b.cfg.noUniqueness
}

// checksUniqueness reports whether a particular Add call must verify
// uniqueness.
func (b *base) checksUniqueness(checkRequested bool) bool {
	return checkRequested && b.bind.Unique && !b.cfg.noUniqueness
}

func (b *base) Normalize(value any, applyTransform bool) (string, error) {
	s, err := b.bind.Field.ToStorage(value)
	if err != nil {
		return "", fmt.Errorf("normalizing %s.%s value: %w", b.bind.Model.Name(), b.bind.Field.Name(), err)
	}
	if applyTransform && b.cfg.transform != nil {
		s = b.cfg.transform(s)
	}
	return s, nil
}

// keyParts assembles the common leading components of a storage key:
// model, field, sub-path, then the configured prefix and discriminator.
func (b *base) keyParts(subPath []string) []string {
	parts := make([]string, 0, len(subPath)+4)
	parts = append(parts, b.bind.Model.Name(), b.bind.Field.Name())
	parts = append(parts, subPath...)
	if b.cfg.prefix != "" {
		parts = append(parts, b.cfg.prefix)
	}
	if b.cfg.discriminator != "" {
		parts = append(parts, b.cfg.discriminator)
	}
	return parts
}

func (b *base) lockKey() string {
	return keys.Make(b.bind.Model.Name(), "lock-for-update", b.bind.Field.Name())
}

// lockForUpdate takes the field's advisory lock around a read-check-write
// uniqueness sequence. Without a locker (single-writer deployments) it is a
// no-op.
func (b *base) lockForUpdate(ctx context.Context) (func(), error) {
	if b.bind.Locker == nil {
		return func() {}, nil
	}
	return b.bind.Locker.Acquire(ctx, b.lockKey())
}

// assertUniqueness fails when pks holds any primary key other than own.
// More than one distinct primary key at a single value is corruption; the
// offending key is deleted as a repair side effect.
func (b *base) assertUniqueness(ctx context.Context, pks []string, own, storageKey string, value any) error {
	distinct := map[string]bool{}
	for _, pk := range pks {
		distinct[pk] = true
	}
	switch {
	case len(distinct) > 1:
		if _, err := b.bind.Conn.Execute(ctx, "del", storageKey); err != nil {
			return err
		}
		return fmt.Errorf("%w: multiple primary keys indexed for unique field %s.%s: %v",
			ErrUniqueness, b.bind.Model.Name(), b.bind.Field.Name(), pks)
	case len(distinct) == 1 && !distinct[own]:
		return fmt.Errorf("%w: value %v already indexed for unique field %s.%s (primary key %s)",
			ErrUniqueness, value, b.bind.Model.Name(), b.bind.Field.Name(), pks[0])
	}
	return nil
}

func (b *base) logIndexed(pk string, subPath []string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexed = append(b.indexed, logEntry{pk: pk, subPath: subPath, value: value})
}

func (b *base) logDeindexed(pk string, subPath []string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deindexed = append(b.deindexed, logEntry{pk: pk, subPath: subPath, value: value})
}

func (b *base) ResetLog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexed = nil
	b.deindexed = nil
}

func (b *base) Rollback(ctx context.Context) error {
	b.mu.Lock()
	indexed := b.indexed
	deindexed := b.deindexed
	b.indexed = nil
	b.deindexed = nil
	b.mu.Unlock()

	for _, e := range indexed {
		if err := b.owner.Remove(ctx, e.pk, e.subPath, e.value); err != nil {
			return err
		}
	}
	for _, e := range deindexed {
		if err := b.owner.Add(ctx, e.pk, e.subPath, e.value, false); err != nil {
			return err
		}
	}
	// Remove/Add above logged themselves; a rollback is not rollbackable.
	b.ResetLog()
	return nil
}

func (b *base) debugWrite(ctx context.Context, op, pk, key string) {
	tlog.Get(ctx).Debug(op,
		zap.String("index", key),
		zap.String("pk", pk))
}

// valueSlice flattens the right-hand side of an "in" filter into single
// values.
func valueSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: in filter needs a slice of values, got %T", ErrConfiguration, value)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// emptyTemporary names a fresh temporary key without touching the store. A
// missing key behaves as an empty set, which is exactly the wanted result.
func (b *base) emptyTemporary(t keys.Type) []keys.Storage {
	return []keys.Storage{{Name: keys.Temporary(b.bind.Model.Name()), Type: t, Temporary: true}}
}

// load reads the current field value for a primary key, for maintenance.
func (b *base) load(ctx context.Context, pk string) (string, bool, error) {
	if b.bind.Load != nil {
		return b.bind.Load(ctx, pk)
	}
	reply, err := b.bind.Conn.Execute(ctx, "get", b.bind.Field.Key(pk))
	if err != nil {
		return "", false, err
	}
	if reply == nil {
		return "", false, nil
	}
	s, err := store.String(reply, nil)
	return s, err == nil, err
}

func (b *base) collectionPKs(ctx context.Context) ([]string, error) {
	return store.Strings(b.bind.Conn.Execute(ctx, "smembers", b.bind.Model.CollectionKey()))
}

func (b *base) AllStorageKeys(ctx context.Context) ([]string, error) {
	pattern := keys.Make(b.bind.Model.Name(), b.bind.Field.Name()) + keys.Separator + "*"
	return b.bind.Conn.ScanKeys(ctx, pattern)
}
