package indices

import (
	"context"
	"fmt"

	"github.com/ridge/parallel"
	"github.com/ridge/redstone/tlog"
	"go.uber.org/zap"
)

const rebuildWorkers = 8

// clearIndex empties an index. Aggressive mode deletes every key matching
// the field's index pattern, which also wipes sibling indexes of the same
// field; normal mode deindexes the current value of every record, touching
// only this index's entries.
func clearIndex(ctx context.Context, b *base, aggressive bool) error {
	if aggressive {
		storageKeys, err := b.owner.AllStorageKeys(ctx)
		if err != nil {
			return err
		}
		for _, key := range storageKeys {
			if _, err := b.bind.Conn.Execute(ctx, "del", key); err != nil {
				return err
			}
		}
		return nil
	}

	pks, err := b.collectionPKs(ctx)
	if err != nil {
		return err
	}
	for _, pk := range pks {
		value, ok, err := b.load(ctx, pk)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := b.owner.Remove(ctx, pk, nil, value); err != nil {
			return err
		}
	}
	b.ResetLog()
	return nil
}

// reindexer re-adds the entries of an index without clearing it first.
// Rebuild coordination clears up front because an aggressive clear
// sweeps the whole field namespace, sibling indexes included.
type reindexer interface {
	reindex(ctx context.Context) error
}

// rebuildIndex clears an index aggressively and reindexes the current
// value of every record in the collection.
func rebuildIndex(ctx context.Context, b *base) error {
	if err := b.owner.Clear(ctx, true); err != nil {
		return err
	}
	return b.reindex(ctx)
}

// reindex re-adds the current value of every record, spreading the work
// over several workers.
func (b *base) reindex(ctx context.Context) error {
	pks, err := b.collectionPKs(ctx)
	if err != nil {
		return err
	}
	tlog.Get(ctx).Debug("rebuilding index",
		zap.String("model", b.bind.Model.Name()),
		zap.String("field", b.bind.Field.Name()),
		zap.Int("records", len(pks)))

	workers := rebuildWorkers
	if workers > len(pks) {
		workers = len(pks)
	}
	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := 0; i < workers; i++ {
			chunk := pks[i*len(pks)/workers : (i+1)*len(pks)/workers]
			spawn(fmt.Sprintf("chunk-%d", i), parallel.Continue, func(ctx context.Context) error {
				for _, pk := range chunk {
					value, ok, err := b.load(ctx, pk)
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
					if err := b.owner.Add(ctx, pk, nil, value, false); err != nil {
						return err
					}
				}
				return nil
			})
		}
		return nil
	})
	b.ResetLog()
	return err
}
