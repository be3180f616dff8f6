package storemem

import (
	"context"

	"github.com/ridge/redstone/store"
)

type queuedCommand struct {
	cmd  string
	key  string
	args []any
}

// pipeline buffers commands and executes them together under one lock on
// Flush. Queued commands reply (nil, nil) immediately, so pipelines are only
// usable for write sequences whose replies are not inspected.
type pipeline struct {
	parent *Store
	queue  []queuedCommand
}

// Pipeline implements store.PipelineOpener.
func (s *Store) Pipeline() store.Pipeline {
	return &pipeline{parent: s}
}

// Execute implements store.Connection.
func (p *pipeline) Execute(ctx context.Context, cmd, key string, args ...any) (any, error) {
	p.queue = append(p.queue, queuedCommand{cmd: cmd, key: key, args: args})
	return nil, nil
}

// RunScript implements store.Connection. Scripts are not buffered: they run
// immediately against the parent store.
func (p *pipeline) RunScript(ctx context.Context, script *store.Script, keys []string, args []any) (any, error) {
	return p.parent.RunScript(ctx, script, keys, args)
}

// SupportsScripting implements store.Connection.
func (p *pipeline) SupportsScripting() bool {
	return p.parent.SupportsScripting()
}

// SupportsRangeQuery implements store.Connection.
func (p *pipeline) SupportsRangeQuery() bool {
	return p.parent.SupportsRangeQuery()
}

// ScanKeys implements store.Connection.
func (p *pipeline) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	return p.parent.ScanKeys(ctx, pattern)
}

// Flush implements store.Pipeline.
func (p *pipeline) Flush(ctx context.Context) error {
	p.parent.mu.Lock()
	defer p.parent.mu.Unlock()
	for _, q := range p.queue {
		if _, err := p.parent.execute(q.cmd, q.key, q.args...); err != nil {
			p.queue = nil
			return err
		}
	}
	p.queue = nil
	return nil
}

// Discard implements store.Pipeline.
func (p *pipeline) Discard() {
	p.queue = nil
}
