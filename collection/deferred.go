package collection

import (
	"context"
	"fmt"

	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
)

// Value is the right-hand side of a filter. Besides plain literals it can
// defer to another record's field or primary key; deferred values are
// resolved in a dedicated phase before any store access, never inside
// comparison code.
type Value struct {
	literal  any
	field    meta.Field
	instance meta.Instance
}

// Literal wraps a plain filter value.
func Literal(v any) Value {
	return Value{literal: v}
}

// FieldOf defers to the current stored value of another record's field.
func FieldOf(instance meta.Instance, field meta.Field) Value {
	return Value{instance: instance, field: field}
}

// InstanceOf defers to a record's primary key.
func InstanceOf(instance meta.Instance) Value {
	return Value{instance: instance}
}

// asValue wraps raw filter values, passing prepared Values through.
func asValue(v any) Value {
	if val, ok := v.(Value); ok {
		return val
	}
	return Literal(v)
}

func (v Value) resolve(ctx context.Context, conn store.Connection) (any, error) {
	switch {
	case v.field != nil:
		raw, err := store.String(conn.Execute(ctx, "get", v.field.Key(v.instance.PrimaryKey())))
		if err != nil {
			return nil, fmt.Errorf("resolving deferred field %s: %w", v.field.Name(), err)
		}
		return raw, nil
	case v.instance != nil:
		return v.instance.PrimaryKey(), nil
	default:
		return v.literal, nil
	}
}
