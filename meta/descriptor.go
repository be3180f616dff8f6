package meta

import (
	"fmt"

	"github.com/ridge/redstone/keys"
)

// FieldDef declares a field of a Descriptor-based model.
type FieldDef struct {
	Name      string
	Indexable bool

	// Hash, when non-empty, stores the field as a sub-field of the named
	// hash attribute instead of a standalone string key.
	Hash string

	// To and From override the default storage conversion.
	To   func(any) (string, error)
	From func(string) (any, error)
}

// Descriptor is a ready-made Model implementation driven by explicit field
// declarations. Record layers with their own metadata can implement Model
// directly instead.
type Descriptor struct {
	name   string
	pkName string
	fields map[string]FieldDef
}

// NewDescriptor creates a model descriptor. The primary key name defaults
// to "pk".
func NewDescriptor(name string, fields ...FieldDef) *Descriptor {
	d := &Descriptor{
		name:   name,
		pkName: "pk",
		fields: map[string]FieldDef{},
	}
	for _, f := range fields {
		if _, ok := d.fields[f.Name]; ok {
			panic(fmt.Errorf("duplicate field %s.%s", name, f.Name))
		}
		d.fields[f.Name] = f
	}
	return d
}

// WithPrimaryKeyName overrides the name under which the primary key appears
// in filters.
func (d *Descriptor) WithPrimaryKeyName(name string) *Descriptor {
	d.pkName = name
	return d
}

// Name implements Model.
func (d *Descriptor) Name() string {
	return d.name
}

// PrimaryKeyName implements Model.
func (d *Descriptor) PrimaryKeyName() string {
	return d.pkName
}

// CollectionKey implements Model.
func (d *Descriptor) CollectionKey() string {
	return keys.Make(d.name, "collection")
}

// Field implements Model.
func (d *Descriptor) Field(name string) (Field, bool) {
	def, ok := d.fields[name]
	if !ok {
		return nil, false
	}
	return descriptorField{model: d.name, def: def}, true
}

// FieldPattern implements Model.
func (d *Descriptor) FieldPattern(name string) string {
	def, ok := d.fields[name]
	if !ok {
		return ""
	}
	if def.Hash != "" {
		return keys.Make(d.name, "*", def.Hash) + "->" + def.Name
	}
	return keys.Make(d.name, "*", def.Name)
}

type descriptorField struct {
	model string
	def   FieldDef
}

func (f descriptorField) Name() string {
	return f.def.Name
}

func (f descriptorField) Indexable() bool {
	return f.def.Indexable
}

func (f descriptorField) Key(pk string) string {
	if f.def.Hash != "" {
		return keys.Make(f.model, pk, f.def.Hash)
	}
	return keys.Make(f.model, pk, f.def.Name)
}

func (f descriptorField) ToStorage(value any) (string, error) {
	if f.def.To != nil {
		return f.def.To(value)
	}
	return ToStorage(value)
}

func (f descriptorField) FromStorage(raw string) (any, error) {
	if f.def.From != nil {
		return f.def.From(raw)
	}
	return raw, nil
}
