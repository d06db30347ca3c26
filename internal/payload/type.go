package payload

import (
	"github.com/kartikbazzad/docucore/internal/variant"
)

// Field describes one field of a PayloadType: its wire type, whether it is
// array-valued, its byte offset within the payload, and — for composite
// fields — the names of its (>= 2) sub-fields.
type Field struct {
	Name       string
	Kind       variant.Kind
	IsArray    bool
	Offset     int
	SubFields  []string // populated only when Kind == variant.KindComposite
}

// Type is an immutable description of an item layout: an ordered field
// list. Many PayloadValues share one Type immutably.
type Type struct {
	name   string
	fields []Field
	byName map[string]int
}

// NewType builds an immutable Type from an ordered field list. A composite
// field with fewer than two sub-fields is rejected by the caller
// (validated by Builder.AddComposite before this constructor is reached).
func NewType(name string, fields []Field) *Type {
	t := &Type{name: name, fields: append([]Field(nil), fields...), byName: make(map[string]int, len(fields))}
	for i, f := range t.fields {
		t.byName[f.Name] = i
	}
	return t
}

func (t *Type) Name() string       { return t.name }
func (t *Type) NumFields() int     { return len(t.fields) }
func (t *Type) Field(i int) Field  { return t.fields[i] }

// FieldByName returns the field index for name, or -1 if absent.
func (t *Type) FieldByName(name string) int {
	if idx, ok := t.byName[name]; ok {
		return idx
	}
	return -1
}

// Builder incrementally assembles a Type, validating the composite
// sub-field-count invariant as fields are added.
type Builder struct {
	name   string
	fields []Field
	offset int
}

func NewTypeBuilder(name string) *Builder { return &Builder{name: name} }

// AddScalar appends a scalar or plain-array field, deriving its byte
// offset from the fields already added. width is the per-element storage
// width in bytes used to advance the layout cursor (variable-width types
// such as strings are stored as fixed-width references in the payload
// body; the referenced bytes themselves live in the item's variable
// section, out of scope for this offset bookkeeping).
func (b *Builder) AddScalar(name string, kind variant.Kind, isArray bool, width int) *Builder {
	b.fields = append(b.fields, Field{Name: name, Kind: kind, IsArray: isArray, Offset: b.offset})
	b.offset += width
	return b
}

// AddComposite appends a composite field naming its sub-fields. Panics if
// fewer than two sub-fields are given: a composite field must name at
// least two sub-fields.
func (b *Builder) AddComposite(name string, subFields []string, width int) *Builder {
	if len(subFields) < 2 {
		panic("payload: composite field must name at least two sub-fields")
	}
	b.fields = append(b.fields, Field{Name: name, Kind: variant.KindComposite, SubFields: append([]string(nil), subFields...), Offset: b.offset})
	b.offset += width
	return b
}

func (b *Builder) Build() *Type { return NewType(b.name, b.fields) }
