// Package meta defines the capabilities redstone consumes from the record
// layer: model descriptors, field descriptors and live record handles.
//
// Redstone does not own record storage. The record layer (whatever it is)
// describes its models through these interfaces and redstone maintains and
// queries secondary indexes for them.
package meta

import (
	"fmt"
	"strconv"
)

// Field describes one field of a model.
type Field interface {
	// Name is the field name as used in filter keys.
	Name() string

	// Indexable reports whether the field may carry indexes. Filtering on
	// a non-indexable field is a configuration error.
	Indexable() bool

	// Key returns the storage key holding this field's value for the
	// record with the given primary key. For hash-stored fields this is
	// the key of the containing hash.
	Key(pk string) string

	// ToStorage converts a caller-supplied value to its storage form.
	ToStorage(value any) (string, error)

	// FromStorage converts a stored value back to its native form.
	FromStorage(raw string) (any, error)
}

// Instance is a live record handle.
type Instance interface {
	PrimaryKey() string
}

// Model describes a record type.
type Model interface {
	// Name is the model name, the first component of every storage key
	// belonging to the model.
	Name() string

	// PrimaryKeyName is the name under which the primary key may appear
	// in filters.
	PrimaryKeyName() string

	// CollectionKey is the key of the set holding every primary key ever
	// assigned to the model.
	CollectionKey() string

	// Field looks up a field descriptor by name.
	Field(name string) (Field, bool)

	// FieldPattern returns the SORT BY/GET wildcard pattern addressing
	// the given field's value across all records ("*" in place of the
	// primary key, "->" syntax for hash-stored fields).
	FieldPattern(name string) string
}

// ToStorage converts common native values to their canonical storage form.
// Field implementations without custom conversion can delegate to it.
func ToStorage(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case fmt.Stringer:
		return v.String(), nil
	case nil:
		return "", fmt.Errorf("cannot store a nil value")
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
