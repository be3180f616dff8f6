package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ridge/redstone/retry"
)

// ErrLockTimeout means an advisory lock could not be acquired within the
// configured attempts.
var ErrLockTimeout = fmt.Errorf("advisory lock acquisition timed out")

var unlockScript = &Script{
	Name: "unlock",
	Source: `
		if redis.call('get', KEYS[1]) == ARGV[1] then
			return redis.call('del', KEYS[1])
		end
		return 0
	`,
}

// lockSet tracks which advisory locks are held by the current logical
// operation. It is carried explicitly in the context instead of ambient
// thread-local state, so a higher-level operation can perform several locked
// writes without self-deadlocking.
type lockSet struct {
	mu   sync.Mutex
	held map[string]bool
}

type lockSetKey struct{}

// WithLockContext returns a context carrying a fresh lock-tracking scope.
// Locks acquired under the returned context are re-entrant within it.
func WithLockContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, lockSetKey{}, &lockSet{held: map[string]bool{}})
}

func locksOf(ctx context.Context) *lockSet {
	ls, _ := ctx.Value(lockSetKey{}).(*lockSet)
	return ls
}

// Locker acquires advisory locks on the store. A lock guards the
// read-check-write sequence of a uniqueness check so that two concurrent
// writers touching the same field's index cannot both pass the check before
// either writes.
type Locker struct {
	conn   Connection
	delays retry.Config
	ttl    time.Duration
}

// NewLocker creates a locker over the given connection. The delays config
// paces acquisition attempts; ttl bounds how long an orphaned lock can block
// other writers.
func NewLocker(conn Connection, delays retry.Config, ttl time.Duration) *Locker {
	return &Locker{conn: conn, delays: delays, ttl: ttl}
}

// Acquire takes the advisory lock for the given key. The returned release
// function must be called once the locked sequence is done; it is safe to
// call on every exit path.
//
// If the lock context of ctx already holds the key, Acquire succeeds
// immediately and the release function is a no-op: the outermost holder
// releases the store-side lock.
func (l *Locker) Acquire(ctx context.Context, key string) (release func(), err error) {
	ls := locksOf(ctx)
	if ls != nil {
		ls.mu.Lock()
		held := ls.held[key]
		if !held {
			ls.held[key] = true
		}
		ls.mu.Unlock()
		if held {
			return func() {}, nil
		}
	}

	token := uuid.NewString()
	delay := l.delays.Delays()
	for {
		d, ok := delay()
		if !ok {
			l.forget(ls, key)
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		if d > 0 {
			select {
			case <-ctx.Done():
				l.forget(ls, key)
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}
		reply, err := l.conn.Execute(ctx, "set", key, token, "nx", "px", l.ttl.Milliseconds())
		if err != nil {
			l.forget(ls, key)
			return nil, err
		}
		if reply != nil { // OK reply = acquired, nil = already held elsewhere
			break
		}
	}

	return func() {
		l.forget(ls, key)
		l.unlock(ctx, key, token)
	}, nil
}

func (l *Locker) forget(ls *lockSet, key string) {
	if ls == nil {
		return
	}
	ls.mu.Lock()
	delete(ls.held, key)
	ls.mu.Unlock()
}

func (l *Locker) unlock(ctx context.Context, key, token string) {
	if l.conn.SupportsScripting() {
		_, _ = l.conn.RunScript(ctx, unlockScript, []string{key}, []any{token})
		return
	}
	current, err := String(l.conn.Execute(ctx, "get", key))
	if err == nil && current == token {
		_, _ = l.conn.Execute(ctx, "del", key)
	}
}
