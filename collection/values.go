package collection

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/ridge/redstone/indices"
)

// SortScore is a pseudo-field usable with Values and ValuesList when
// the collection is sorted by score: it materializes the score each
// result was ordered by.
const SortScore = "sort_score"

// fetchValues materializes the requested fields of every result in a
// single SORT round trip, using GET patterns.
func (c *Collection) fetchValues(ctx context.Context, fields []string) ([][]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields requested", indices.ErrConfiguration)
	}
	ev := c.newEvaluation()
	defer ev.cleanup(ctx)

	final, _, haveSynth, err := ev.resolveFinal(ctx, true)
	if err != nil {
		return nil, err
	}
	if haveSynth {
		// with needKey set a synthesized result is always empty
		return [][]any{}, nil
	}

	var spec SortSpec
	if c.sortSpec != nil {
		spec = c.sortSpec.normalized()
	}
	by := spec.pattern(c.env.Model.FieldPattern)
	scoreBase := ""
	if spec.ByScore != "" {
		final, by, scoreBase, err = ev.prepareByScore(ctx, final, spec.ByScore)
		if err != nil {
			return nil, err
		}
	}

	gets := make([]string, len(fields))
	for i, field := range fields {
		switch {
		case c.env.isPrimaryKeyFilter(field):
			gets[i] = "#"
		case field == SortScore:
			if scoreBase == "" {
				return nil, fmt.Errorf("%w: %s requires a by-score sort", indices.ErrConfiguration, SortScore)
			}
			gets[i] = scoreBase + ":*"
		default:
			pattern := c.env.Model.FieldPattern(field)
			if pattern == "" {
				return nil, fmt.Errorf("%w: unknown field %q", indices.ErrConfiguration, field)
			}
			gets[i] = pattern
		}
	}

	reply, err := ev.sortFetch(ctx, final, by, spec, nil, gets)
	if err != nil {
		return nil, err
	}
	return groupReply(reply, len(fields))
}

// groupReply cuts the flattened SORT GET reply into rows of the given
// width. Missing values stay nil.
func groupReply(reply any, width int) ([][]any, error) {
	if reply == nil {
		return [][]any{}, nil
	}
	flat, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected sort reply type %T", indices.ErrImplementation, reply)
	}
	if len(flat)%width != 0 {
		return nil, fmt.Errorf("%w: sort reply of %d values for %d fields", indices.ErrImplementation, len(flat), width)
	}
	rows := make([][]any, 0, len(flat)/width)
	for i := 0; i < len(flat); i += width {
		rows = append(rows, flat[i:i+width])
	}
	return rows, nil
}

// Values materializes the collection as one map per result, keyed by
// the requested field names. The primary key can be requested under
// the model's primary key name or as "pk".
func (c *Collection) Values(ctx context.Context, fields ...string) ([]map[string]any, error) {
	rows, err := c.fetchValues(ctx, fields)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]any, len(fields))
		for i, field := range fields {
			m[field] = row[i]
		}
		out = append(out, m)
	}
	return out, nil
}

// ValuesList materializes the collection as one row per result, in the
// order the fields were requested.
func (c *Collection) ValuesList(ctx context.Context, fields ...string) ([][]any, error) {
	return c.fetchValues(ctx, fields)
}

// FlatValuesList materializes a single field of every result.
func (c *Collection) FlatValuesList(ctx context.Context, field string) ([]any, error) {
	rows, err := c.fetchValues(ctx, []string{field})
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row[0])
	}
	return out, nil
}

// DecodeValues decodes rows produced by Values into a slice of structs
// or maps, converting the stored strings into the target field types.
func DecodeValues(rows []map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(rows)
}
