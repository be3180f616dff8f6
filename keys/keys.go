// Package keys constructs the storage keys used by redstone.
//
// All keys are colon-joined paths rooted at the model name, so that every
// key belonging to one model shares a scannable prefix. Temporary keys live
// in a dedicated namespace and carry a random component; the operation that
// creates a temporary key owns it and must delete it once consumed.
package keys

import (
	"strings"

	"github.com/google/uuid"
)

// Separator joins key parts.
const Separator = ":"

// TemporaryPrefix namespaces keys owned by a single operation.
const TemporaryPrefix = "__tmp__"

// Type is the storage type of the value behind a key.
type Type string

// Storage types usable as collection sources.
const (
	TypeSet       Type = "set"
	TypeSortedSet Type = "zset"
	TypeList      Type = "list"
)

// Accepted reports whether t is among accepted. An empty accepted list
// accepts everything.
func Accepted(t Type, accepted []Type) bool {
	if len(accepted) == 0 {
		return true
	}
	for _, a := range accepted {
		if a == t {
			return true
		}
	}
	return false
}

// Storage is a reference to a store key holding primary keys.
type Storage struct {
	Name      string
	Type      Type
	Temporary bool // owned by the current operation, delete after use
}

// Make joins the given parts into a storage key.
func Make(parts ...string) string {
	return strings.Join(parts, Separator)
}

// Temporary returns a fresh unique key in the temporary namespace.
func Temporary(model string) string {
	return Make(TemporaryPrefix, model, uuid.NewString())
}

// Stored returns a fresh unique key for a persisted collection of the
// model. Unlike Temporary keys, stored keys survive query cleanup.
func Stored(model string) string {
	return Make(model, "stored", uuid.NewString())
}

// IsTemporary reports whether key lives in the temporary namespace.
func IsTemporary(key string) bool {
	return strings.HasPrefix(key, TemporaryPrefix+Separator)
}
