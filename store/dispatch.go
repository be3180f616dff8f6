package store

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// Pipeline is a buffered connection: commands queue up and execute together
// on Flush. Pipelines are single-owner; do not share one across goroutines.
type Pipeline interface {
	Connection
	Flush(ctx context.Context) error
	Discard()
}

// PipelineOpener is implemented by connections that can open pipelines.
type PipelineOpener interface {
	Pipeline() Pipeline
}

// Dispatcher routes commands for an operation through whichever pipeline is
// active for that operation, or the direct connection otherwise. Routing is
// keyed by an owner token carried in the context, so several operations may
// pipeline concurrently without observing each other's buffers.
type Dispatcher struct {
	direct Connection
	active *xsync.MapOf[uint64, Pipeline]
	tokens *xsync.Counter
}

// NewDispatcher creates a dispatcher over the given direct connection.
func NewDispatcher(direct Connection) *Dispatcher {
	return &Dispatcher{
		direct: direct,
		active: xsync.NewMapOf[uint64, Pipeline](),
		tokens: xsync.NewCounter(),
	}
}

type ownerKey struct{}

// WithOwner returns a context carrying a fresh owner token. All commands
// issued with the returned context belong to one logical operation for the
// purpose of pipeline routing.
func (d *Dispatcher) WithOwner(ctx context.Context) context.Context {
	d.tokens.Inc()
	return context.WithValue(ctx, ownerKey{}, uint64(d.tokens.Value()))
}

func owner(ctx context.Context) (uint64, bool) {
	tok, ok := ctx.Value(ownerKey{}).(uint64)
	return tok, ok
}

// Pipelined runs fn with a pipeline bound to the context's owner token.
// Commands issued by fn through the dispatcher go to the pipeline; the
// pipeline is flushed when fn returns nil and discarded when it fails.
// If the direct connection cannot open pipelines, fn runs directly.
func (d *Dispatcher) Pipelined(ctx context.Context, fn func(ctx context.Context) error) error {
	opener, ok := d.direct.(PipelineOpener)
	if !ok {
		return fn(ctx)
	}
	tok, ok := owner(ctx)
	if !ok {
		ctx = d.WithOwner(ctx)
		tok, _ = owner(ctx)
	}
	pipe := opener.Pipeline()
	d.active.Store(tok, pipe)
	defer d.active.Delete(tok)
	if err := fn(ctx); err != nil {
		pipe.Discard()
		return err
	}
	return pipe.Flush(ctx)
}

// conn returns the connection to use for the given context.
func (d *Dispatcher) conn(ctx context.Context) Connection {
	if tok, ok := owner(ctx); ok {
		if pipe, ok := d.active.Load(tok); ok {
			return pipe
		}
	}
	return d.direct
}

// Execute implements Connection.
func (d *Dispatcher) Execute(ctx context.Context, cmd, key string, args ...any) (any, error) {
	return d.conn(ctx).Execute(ctx, cmd, key, args...)
}

// RunScript implements Connection.
func (d *Dispatcher) RunScript(ctx context.Context, script *Script, keys []string, args []any) (any, error) {
	return d.conn(ctx).RunScript(ctx, script, keys, args)
}

// SupportsScripting implements Connection.
func (d *Dispatcher) SupportsScripting() bool {
	return d.direct.SupportsScripting()
}

// SupportsRangeQuery implements Connection.
func (d *Dispatcher) SupportsRangeQuery() bool {
	return d.direct.SupportsRangeQuery()
}

// ScanKeys implements Connection.
func (d *Dispatcher) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	return d.conn(ctx).ScanKeys(ctx, pattern)
}
