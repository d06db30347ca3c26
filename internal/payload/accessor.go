package payload

import (
	"encoding/binary"
	"math"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// Accessor reads and writes typed fields of a Value under a Type. Each
// slot in the fixed region is 8 bytes wide: numeric/bool scalars store
// their value directly; string fields store an (offset, length) reference
// into the variable region that follows the fixed region. Composite fields
// have no slot encoding (Get and the setters report KindNotValid for
// them), and an array field is read and written as a single scalar of its
// element kind.
type Accessor struct {
	Type  *Type
	Value *Value
}

const slotWidth = 8

// NewAccessor binds an Accessor to a Type/Value pair.
func NewAccessor(t *Type, v *Value) *Accessor { return &Accessor{Type: t, Value: v} }

func fixedRegionSize(t *Type) int { return t.NumFields() * slotWidth }

// Get reads the field at idx as a Variant.
func (a *Accessor) Get(idx int) (variant.Variant, error) {
	if idx < 0 || idx >= a.Type.NumFields() {
		return variant.Variant{}, coreerrors.New(coreerrors.KindParams, "field index %d out of range", idx)
	}
	f := a.Type.Field(idx)
	buf := a.Value.Bytes()
	slotOff := idx * slotWidth
	if slotOff+slotWidth > len(buf) {
		return variant.Null(), nil
	}
	slot := buf[slotOff : slotOff+slotWidth]

	switch f.Kind {
	case variant.KindInt:
		return variant.Int(int(int64(binary.LittleEndian.Uint64(slot)))), nil
	case variant.KindInt64:
		return variant.Int64(int64(binary.LittleEndian.Uint64(slot))), nil
	case variant.KindDouble:
		return variant.Double(math.Float64frombits(binary.LittleEndian.Uint64(slot))), nil
	case variant.KindBool:
		return variant.Bool(slot[0] != 0), nil
	case variant.KindString:
		off, length := binary.LittleEndian.Uint32(slot[0:4]), binary.LittleEndian.Uint32(slot[4:8])
		if length == 0 && off == 0 {
			return variant.String(""), nil
		}
		region := buf[off : off+length]
		return variant.StringRef(string(region)), nil
	default:
		return variant.Null(), coreerrors.New(coreerrors.KindNotValid, "field %q has unsupported accessor kind %s", f.Name, f.Kind)
	}
}

// GetByName resolves a field by name and reads it.
func (a *Accessor) GetByName(name string) (variant.Variant, error) {
	idx := a.Type.FieldByName(name)
	if idx < 0 {
		return variant.Variant{}, coreerrors.New(coreerrors.KindNotFound, "field %q not found", name)
	}
	return a.Get(idx)
}

// SetNumeric writes a numeric or bool scalar into its fixed slot,
// establishing exclusive ownership first (copy-on-write).
func (a *Accessor) SetNumeric(idx int, v variant.Variant) error {
	f := a.Type.Field(idx)
	need := fixedRegionSize(a.Type)
	if a.Value.Size() < need {
		a.Value.CloneIntoUnique(need)
		a.Value.Resize(need)
	} else {
		a.Value.CloneIntoUnique(a.Value.Size())
	}
	buf := a.Value.Bytes()
	slot := buf[idx*slotWidth : idx*slotWidth+slotWidth]

	switch f.Kind {
	case variant.KindInt, variant.KindInt64:
		binary.LittleEndian.PutUint64(slot, uint64(v.AsInt64()))
	case variant.KindDouble:
		binary.LittleEndian.PutUint64(slot, math.Float64bits(v.AsDouble()))
	case variant.KindBool:
		if v.AsBool() {
			slot[0] = 1
		} else {
			slot[0] = 0
		}
	default:
		return coreerrors.New(coreerrors.KindNotValid, "field %q is not a fixed-width numeric field", f.Name)
	}
	return nil
}

// SetString appends s to the variable region and writes an (offset,
// length) reference into the field's fixed slot.
func (a *Accessor) SetString(idx int, s string) error {
	f := a.Type.Field(idx)
	if f.Kind != variant.KindString {
		return coreerrors.New(coreerrors.KindNotValid, "field %q is not a string field", f.Name)
	}

	need := fixedRegionSize(a.Type)
	cur := a.Value.Size()
	if cur < need {
		cur = need
	}
	newSize := cur + len(s)
	a.Value.CloneIntoUnique(newSize)
	a.Value.Resize(newSize)

	buf := a.Value.Bytes()
	copy(buf[cur:newSize], s)
	slot := buf[idx*slotWidth : idx*slotWidth+slotWidth]
	binary.LittleEndian.PutUint32(slot[0:4], uint32(cur))
	binary.LittleEndian.PutUint32(slot[4:8], uint32(len(s)))
	return nil
}

// GetByJSONPath resolves a dotted path against a composite field's
// sub-field names, e.g. "address.city" where "address" is a composite
// field naming "city" among its SubFields. Since Get does not decode
// composite fields, a path naming an existing sub-field returns Get's
// KindNotValid error rather than a value; an unknown sub-field reports
// KindNotFound. Only one level of nesting is modeled, matching the
// FieldsSet's embedded-path contract.
func (a *Accessor) GetByJSONPath(path []string) (variant.Variant, error) {
	if len(path) == 0 {
		return variant.Variant{}, coreerrors.New(coreerrors.KindParams, "empty json path")
	}
	idx := a.Type.FieldByName(path[0])
	if idx < 0 {
		return variant.Variant{}, coreerrors.New(coreerrors.KindNotFound, "field %q not found", path[0])
	}
	if len(path) == 1 {
		return a.Get(idx)
	}
	f := a.Type.Field(idx)
	if f.Kind != variant.KindComposite {
		return variant.Variant{}, coreerrors.New(coreerrors.KindNotValid, "field %q is not composite", path[0])
	}
	for i, sub := range f.SubFields {
		if sub == path[1] {
			v, err := a.Get(idx)
			if err != nil {
				return variant.Variant{}, err
			}
			if i >= len(v.Array) {
				return variant.Null(), nil
			}
			return v.Array[i], nil
		}
	}
	return variant.Variant{}, coreerrors.New(coreerrors.KindNotFound, "sub-field %q not found in %q", path[1], path[0])
}
