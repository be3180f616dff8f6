package redstone

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ridge/redstone/collection"
	"github.com/ridge/redstone/indices"
	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
	"github.com/ridge/redstone/tcontext"
	"github.com/ridge/redstone/tlog"
	"go.uber.org/zap"
)

// FieldIndexes attaches index definitions to a model field.
type FieldIndexes struct {
	Field  string
	Unique bool
	Defs   []indices.Definition
}

// Indexed declares indexes for a field.
func Indexed(field string, defs ...indices.Definition) FieldIndexes {
	return FieldIndexes{Field: field, Defs: defs}
}

// UniqueIndexed declares indexes for a field whose values must be
// unique across instances. At least one of the definitions must be
// able to verify uniqueness.
func UniqueIndexed(field string, defs ...indices.Definition) FieldIndexes {
	return FieldIndexes{Field: field, Unique: true, Defs: defs}
}

type engineConfig struct {
	locker      *store.Locker
	registerer  prometheus.Registerer
	instantiate func(pk string) meta.Instance
}

// Option configures an Engine.
type Option interface {
	apply(*engineConfig)
}

type optionFunc func(*engineConfig)

func (f optionFunc) apply(cfg *engineConfig) {
	f(cfg)
}

// WithLocker makes uniqueness checks run under advisory locks acquired
// through the given locker.
func WithLocker(locker *store.Locker) Option {
	return optionFunc(func(cfg *engineConfig) {
		cfg.locker = locker
	})
}

// WithMetrics registers query metrics with the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return optionFunc(func(cfg *engineConfig) {
		cfg.registerer = reg
	})
}

// WithInstantiator makes Collection.Instances work by supplying the
// pk-to-instance constructor.
func WithInstantiator(f func(pk string) meta.Instance) Option {
	return optionFunc(func(cfg *engineConfig) {
		cfg.instantiate = f
	})
}

// Engine ties a model's index definitions to a store connection and
// hands out collections to query them.
type Engine struct {
	conn       store.Connection
	model      meta.Model
	registries map[string]*indices.Registry
	env        *collection.Env
}

// New binds the index declarations of a model to a store connection.
// Declaration mistakes, an unknown or non-indexable field, a unique
// field without an index able to verify uniqueness, or a range index
// on a connection without range support, surface here.
func New(conn store.Connection, model meta.Model, fields []FieldIndexes, options ...Option) (*Engine, error) {
	cfg := engineConfig{}
	for _, o := range options {
		o.apply(&cfg)
	}

	registries := make(map[string]*indices.Registry, len(fields))
	for _, fi := range fields {
		if _, dup := registries[fi.Field]; dup {
			return nil, fmt.Errorf("%w: field %q declared twice", ErrConfiguration, fi.Field)
		}
		field, ok := model.Field(fi.Field)
		if !ok {
			return nil, fmt.Errorf("%w: model %s has no field %q", ErrConfiguration, model.Name(), fi.Field)
		}
		reg, err := indices.Bind(indices.Binding{
			Conn:   conn,
			Locker: cfg.locker,
			Model:  model,
			Field:  field,
			Unique: fi.Unique,
		}, fi.Defs...)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fi.Field, err)
		}
		registries[fi.Field] = reg
	}

	var metrics *collection.Metrics
	if cfg.registerer != nil {
		metrics = collection.NewMetrics(cfg.registerer)
	}

	return &Engine{
		conn:       conn,
		model:      model,
		registries: registries,
		env: &collection.Env{
			Conn:        conn,
			Model:       model,
			Registries:  registries,
			Metrics:     metrics,
			Instantiate: cfg.instantiate,
		},
	}, nil
}

// Collection returns an empty collection covering every instance of
// the model.
func (e *Engine) Collection() *Collection {
	return collection.New(e.env)
}

// Stored returns a collection backed by a list previously written with
// Collection.Store.
func (e *Engine) Stored(key string) *Collection {
	return collection.FromStored(e.env, key)
}

// AddInstance registers a primary key as a member of the model's
// collection. Until this is done the instance is invisible to queries.
func (e *Engine) AddInstance(ctx context.Context, pk string) error {
	_, err := e.conn.Execute(ctx, "sadd", e.model.CollectionKey(), pk)
	return err
}

// RemoveInstance unregisters a primary key. Index entries of the
// instance must be removed separately, field by field.
func (e *Engine) RemoveInstance(ctx context.Context, pk string) error {
	_, err := e.conn.Execute(ctx, "srem", e.model.CollectionKey(), pk)
	return err
}

// Members returns the primary keys currently registered.
func (e *Engine) Members(ctx context.Context) ([]string, error) {
	return store.Strings(e.conn.Execute(ctx, "smembers", e.model.CollectionKey()))
}

func (e *Engine) registry(field string) (*indices.Registry, error) {
	reg, ok := e.registries[field]
	if !ok {
		return nil, fmt.Errorf("%w: field %q is not indexed", ErrConfiguration, field)
	}
	return reg, nil
}

// IndexAdd indexes a value of a single field. The sub-path addresses a
// component of a composite field, such as a hash key, and is usually
// empty.
func (e *Engine) IndexAdd(ctx context.Context, pk, field string, subPath []string, value any) error {
	reg, err := e.registry(field)
	if err != nil {
		return err
	}
	if err := reg.Add(ctx, pk, subPath, value, true); err != nil {
		return e.rollbackField(ctx, field, reg, err)
	}
	reg.ResetLog()
	return nil
}

// IndexRemove deindexes a value of a single field.
func (e *Engine) IndexRemove(ctx context.Context, pk, field string, subPath []string, value any) error {
	reg, err := e.registry(field)
	if err != nil {
		return err
	}
	if err := reg.Remove(ctx, pk, subPath, value); err != nil {
		return e.rollbackField(ctx, field, reg, err)
	}
	reg.ResetLog()
	return nil
}

// rollbackField undoes the partial writes of a failed single-field
// update and returns the original error.
func (e *Engine) rollbackField(ctx context.Context, field string, reg *indices.Registry, cause error) error {
	ctx = tcontext.Reopen(ctx)
	if err := reg.Rollback(ctx); err != nil {
		tlog.Get(ctx).Error("Failed to roll back index updates",
			zap.String("model", e.model.Name()), zap.String("field", field), zap.Error(err))
	}
	return cause
}

// IndexOp is one step of an Apply batch.
type IndexOp struct {
	Field   string
	SubPath []string
	Value   any

	// Remove deindexes the value instead of indexing it
	Remove bool
}

// Apply runs a batch of index operations for one instance, typically
// the field updates of a single save. On error every operation already
// performed is rolled back before the error propagates, so indexes
// never reflect half of a save.
func (e *Engine) Apply(ctx context.Context, pk string, ops []IndexOp) error {
	touched := make(map[string]*indices.Registry, len(ops))
	rollback := func(cause error) error {
		ctx := tcontext.Reopen(ctx)
		for field, reg := range touched {
			if err := reg.Rollback(ctx); err != nil {
				tlog.Get(ctx).Error("Failed to roll back index updates",
					zap.String("model", e.model.Name()), zap.String("field", field), zap.Error(err))
			}
		}
		return cause
	}

	for _, op := range ops {
		reg, err := e.registry(op.Field)
		if err != nil {
			return rollback(err)
		}
		touched[op.Field] = reg
		if op.Remove {
			err = reg.Remove(ctx, pk, op.SubPath, op.Value)
		} else {
			err = reg.Add(ctx, pk, op.SubPath, op.Value, true)
		}
		if err != nil {
			return rollback(err)
		}
	}
	for _, reg := range touched {
		reg.ResetLog()
	}
	return nil
}

// Clear empties the indexes of a field, or of every indexed field when
// field is empty. Aggressive clearing deletes every key under the
// field's namespace instead of deindexing value by value.
func (e *Engine) Clear(ctx context.Context, field string, aggressive bool) error {
	regs, err := e.selectRegistries(field)
	if err != nil {
		return err
	}
	for _, reg := range regs {
		if err := reg.Clear(ctx, aggressive); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild clears and re-indexes a field from the current instance
// data, or every indexed field when field is empty.
func (e *Engine) Rebuild(ctx context.Context, field string) error {
	regs, err := e.selectRegistries(field)
	if err != nil {
		return err
	}
	for _, reg := range regs {
		if err := reg.Rebuild(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) selectRegistries(field string) ([]*indices.Registry, error) {
	if field == "" {
		regs := make([]*indices.Registry, 0, len(e.registries))
		for _, reg := range e.registries {
			regs = append(regs, reg)
		}
		return regs, nil
	}
	reg, err := e.registry(field)
	if err != nil {
		return nil, err
	}
	return []*indices.Registry{reg}, nil
}
