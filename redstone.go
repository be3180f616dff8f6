package redstone

import (
	"github.com/ridge/redstone/collection"
	"github.com/ridge/redstone/indices"
	"github.com/ridge/redstone/meta"
	"github.com/ridge/redstone/store"
)

// Model describes an indexed model.
type Model = meta.Model

// Instance is a live object of a model.
type Instance = meta.Instance

// FieldDef declares a field when building a model descriptor.
type FieldDef = meta.FieldDef

// NewDescriptor builds a model description from field declarations.
var NewDescriptor = meta.NewDescriptor

// Index definitions, attached to fields with Indexed or UniqueIndexed.
// See package documentation for redstone/indices.
var (
	Equal       = indices.Equal
	TextRange   = indices.TextRange
	NumberRange = indices.NumberRange
	Compose     = indices.Compose
)

// Index definition options.
var (
	Prefix        = indices.Prefix
	Discriminator = indices.Discriminator
	Transform     = indices.Transform
	NoUniqueness  = indices.NoUniqueness
)

// Collection is a lazy query over the instances of a model.
type Collection = collection.Collection

// SortSpec describes the requested ordering of a collection.
type SortSpec = collection.SortSpec

// Range selects a sub-sequence of an ordered result.
type Range = collection.Range

// Bound is a convenience for filling Range fields.
var Bound = collection.Bound

// Intersection sources for Collection.Intersect.
var (
	SetKey       = collection.SetKey
	SortedSetKey = collection.SortedSetKey
	ListKey      = collection.ListKey
	Members      = collection.Members
)

// Deferred filter values, resolved when the collection materializes.
var (
	Literal    = collection.Literal
	FieldOf    = collection.FieldOf
	InstanceOf = collection.InstanceOf
)

// DecodeValues decodes rows produced by Collection.Values into a slice
// of structs or maps.
var DecodeValues = collection.DecodeValues

// SortScore is a pseudo-field for Values and ValuesList materializing
// the score results were ordered by.
const SortScore = collection.SortScore

// Sentinel errors.
var (
	ErrConfiguration  = indices.ErrConfiguration
	ErrImplementation = indices.ErrImplementation
	ErrUniqueness     = indices.ErrUniqueness
	ErrUnsupported    = indices.ErrUnsupported
	ErrStale          = collection.ErrStale
	ErrNotFound       = store.ErrNilReply
)
