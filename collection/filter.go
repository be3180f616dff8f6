package collection

import (
	"fmt"
	"strings"

	"github.com/ridge/redstone/indices"
)

// parsedFilter is one filter condition resolved against the model's index
// registries: the index that will serve it, the qualified suffix it claimed,
// the sub-path parts in between, and the (possibly deferred) value.
type parsedFilter struct {
	index   indices.Index
	suffix  string
	subPath []string
	value   Value
}

// parseFilter splits a filter key of the form field[__subpath...][__suffix]
// and routes it to an index. The suffix is matched longest-first so a
// qualified suffix like year__gte wins over interpreting year as a
// sub-path.
func (e *Env) parseFilter(key string, value Value) (parsedFilter, error) {
	parts := strings.Split(key, "__")
	fieldName := parts[0]
	rest := parts[1:]

	registry, ok := e.Registries[fieldName]
	if !ok {
		if _, defined := e.Model.Field(fieldName); defined {
			return parsedFilter{}, fmt.Errorf("%w: field %s.%s has no indexes, cannot filter on it",
				indices.ErrConfiguration, e.Model.Name(), fieldName)
		}
		return parsedFilter{}, fmt.Errorf("%w: unknown filter field %q for model %s",
			indices.ErrConfiguration, fieldName, e.Model.Name())
	}

	for take := len(rest); take >= 0; take-- {
		suffix := strings.Join(rest[len(rest)-take:], "__")
		index, ok := registry.Resolve(suffix)
		if !ok {
			continue
		}
		subPath := rest[:len(rest)-take]
		if len(subPath) > 0 {
			// a comparison word swallowed into the sub-path means no
			// index actually claimed it
			if _, reserved := reservedSuffixes[subPath[len(subPath)-1]]; reserved {
				break
			}
		}
		return parsedFilter{
			index:   index,
			suffix:  suffix,
			subPath: subPath,
			value:   value,
		}, nil
	}
	return parsedFilter{}, fmt.Errorf("%w: no index of %s.%s handles filter %q",
		indices.ErrConfiguration, e.Model.Name(), fieldName, key)
}

var reservedSuffixes = map[string]struct{}{
	"eq": {}, "in": {}, "gt": {}, "gte": {}, "lt": {}, "lte": {}, "startswith": {},
}

// isPrimaryKeyFilter reports whether a filter key addresses the primary key
// concept rather than an indexed field.
func (e *Env) isPrimaryKeyFilter(key string) bool {
	return key == "pk" || key == e.Model.PrimaryKeyName()
}
