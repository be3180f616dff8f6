// Package store defines the capability redstone requires from the
// underlying key-value store, plus the shared plumbing built on top of it:
// server-side scripts, per-operation pipeline routing and advisory locks.
//
// The store is treated as a single logical endpoint. Connection management,
// reconnection and retries belong to the implementation of Connection, not
// to this package.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Connection is the capability redstone consumes from the store layer.
//
// Execute runs a single command against the given key. The result is the
// store's reply decoded into ordinary Go values: string, int64, []string,
// []any or nil.
//
// RunScript executes a registered server-side script. Implementations should
// cache the script handle after the first registration.
type Connection interface {
	Execute(ctx context.Context, cmd, key string, args ...any) (any, error)
	RunScript(ctx context.Context, script *Script, keys []string, args []any) (any, error)
	SupportsScripting() bool
	SupportsRangeQuery() bool
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// Script is a server-side script with a stable name for handle caching.
// Define scripts once at package level; the pointer identity is what
// connections key their handle caches on.
type Script struct {
	Name   string
	Source string
}

// ErrNilReply is returned by reply converters when the store returned nil
// where a value was required.
var ErrNilReply = errors.New("nil reply from store")

// Strings converts a command reply to a list of strings.
func Strings(reply any, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case nil:
		return nil, nil
	case []string:
		return r, nil
	case []any:
		out := make([]string, 0, len(r))
		for _, e := range r {
			s, err := String(e, nil)
			if err != nil {
				out = append(out, "")
				continue
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected reply type %T", reply)
	}
}

// String converts a command reply to a string.
func String(reply any, err error) (string, error) {
	if err != nil {
		return "", err
	}
	switch r := reply.(type) {
	case nil:
		return "", ErrNilReply
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case int64:
		return fmt.Sprintf("%d", r), nil
	default:
		return "", fmt.Errorf("unexpected reply type %T", reply)
	}
}

// Int converts a command reply to an int64.
func Int(reply any, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	switch r := reply.(type) {
	case nil:
		return 0, nil
	case int64:
		return r, nil
	case int:
		return int64(r), nil
	default:
		return 0, fmt.Errorf("unexpected reply type %T", reply)
	}
}

// Bool converts a command reply to a boolean (integer replies: 0 is false).
func Bool(reply any, err error) (bool, error) {
	n, err := Int(reply, err)
	return n != 0, err
}
