// Package variant implements the tagged Variant/VariantArray value used
// throughout the query model, the expression evaluator and the payload
// accessors.
package variant

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Kind is the Variant's type tag.
type Kind byte

const (
	KindNull Kind = iota
	KindInt
	KindInt64
	KindDouble
	KindString
	KindBool
	KindTuple
	KindComposite
	KindUUID
	KindPoint
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTuple:
		return "tuple"
	case KindComposite:
		return "composite"
	case KindUUID:
		return "uuid"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// UUID is a fixed 16-byte value.
type UUID [16]byte

// Point is a fixed-width 2D point.
type Point struct{ X, Y float64 }

// Variant is a tagged union of scalar or nested-array value. A Variant
// whose Kind is KindTuple or whose IsArray is set carries its elements in
// Array; otherwise the scalar lives in one of the typed fields.
//
// Invariant: Kind and the populated field must agree. A
// Variant referencing bytes owned by a PayloadValue (stringRef != nil)
// must not outlive its source; EnsureHold materializes an owned copy
// before the Variant crosses an ownership boundary (e.g. into a result
// buffer or another query's tree).
type Variant struct {
	Kind    Kind
	IsArray bool

	i    int64
	f    float64
	b    bool
	s    string
	u    UUID
	pt   Point
	Array []Variant // populated when IsArray or Kind == KindTuple/KindComposite

	// stringRef, when non-nil, marks that s aliases bytes owned by a
	// PayloadValue rather than an independently allocated Go string.
	// EnsureHold clears this by copying s into owned storage.
	stringRef *string
}

func Null() Variant { return Variant{Kind: KindNull} }

func Int(v int) Variant { return Variant{Kind: KindInt, i: int64(v)} }

func Int64(v int64) Variant { return Variant{Kind: KindInt64, i: v} }

func Double(v float64) Variant { return Variant{Kind: KindDouble, f: v} }

func String(v string) Variant { return Variant{Kind: KindString, s: v} }

func Bool(v bool) Variant { return Variant{Kind: KindBool, b: v} }

func UUIDValue(v UUID) Variant { return Variant{Kind: KindUUID, u: v} }

// NewUUID generates a fresh random UUID Variant via github.com/google/uuid.
func NewUUID() Variant { return UUIDValue(UUID(uuid.New())) }

// ParseUUID parses s (canonical dashed form) into a UUID Variant via
// github.com/google/uuid, surfacing any parse failure as-is.
func ParseUUID(s string) (Variant, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Variant{}, err
	}
	return UUIDValue(UUID(u)), nil
}

func PointValue(x, y float64) Variant { return Variant{Kind: KindPoint, pt: Point{X: x, Y: y}} }

// StringRef constructs a Variant whose string bytes alias a PayloadValue
// region owned elsewhere. Callers crossing an ownership boundary (e.g.
// handing the Variant to another query or a result buffer) must call
// EnsureHold first.
func StringRef(v string) Variant {
	return Variant{Kind: KindString, s: v, stringRef: &v}
}

// Array builds a VariantArray-flagged Variant from elements.
func Array(elems ...Variant) Variant {
	return Variant{Kind: KindTuple, IsArray: true, Array: elems}
}

// Composite builds a composite Variant (named sub-fields addressed by a
// FieldsSet elsewhere) from ordered sub-values.
func Composite(elems ...Variant) Variant {
	return Variant{Kind: KindComposite, Array: elems}
}

// EnsureHold materializes an owned copy of any aliased bytes, so the
// Variant is safe to outlive its source PayloadValue. Idempotent.
func (v *Variant) EnsureHold() {
	if v.stringRef != nil {
		owned := v.s
		v.s = owned
		v.stringRef = nil
	}
	for i := range v.Array {
		v.Array[i].EnsureHold()
	}
}

// IsRef reports whether this Variant currently aliases external storage.
func (v Variant) IsRef() bool { return v.stringRef != nil }

func (v Variant) AsInt() int        { return int(v.i) }
func (v Variant) AsInt64() int64    { return v.i }
func (v Variant) AsDouble() float64 { return v.f }
func (v Variant) AsString() string  { return v.s }
func (v Variant) AsBool() bool      { return v.b }
func (v Variant) AsUUID() UUID      { return v.u }
func (v Variant) AsPoint() Point    { return v.pt }

// ToDouble coerces a numeric Variant to float64, matching the expression
// evaluator's name-resolution coercion rule. Non-numeric
// kinds return ok=false.
func (v Variant) ToDouble() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.i), true
	case KindInt64:
		return float64(v.i), true
	case KindDouble:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal compares two Variants for value equality. Composite/array
// Variants compare element-wise; this ignores the stringRef aliasing flag,
// which is transient bookkeeping rather than value state.
func (v Variant) Equal(o Variant) bool {
	if v.Kind != o.Kind || v.IsArray != o.IsArray {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt, KindInt64:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	case KindUUID:
		return v.u == o.u
	case KindPoint:
		return v.pt == o.pt
	case KindTuple, KindComposite:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare imposes a total order across Variants, ordering first by Kind
// (mismatched-type comparisons are ordered by Kind rather than rejected;
// see DESIGN.md's Open Question resolution) and then by value.
func Compare(a, b Variant) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case KindNull:
		return 0
	case KindInt, KindInt64:
		return cmpInt64(a.i, b.i)
	case KindDouble:
		return cmpFloat(a.f, b.f)
	case KindString:
		return cmpString(a.s, b.s)
	case KindBool:
		return cmpBool(a.b, b.b)
	case KindUUID:
		for i := range a.u {
			if a.u[i] != b.u[i] {
				if a.u[i] < b.u[i] {
					return -1
				}
				return 1
			}
		}
		return 0
	case KindPoint:
		if d := cmpFloat(a.pt.X, b.pt.X); d != 0 {
			return d
		}
		return cmpFloat(a.pt.Y, b.pt.Y)
	case KindTuple, KindComposite:
		n := len(a.Array)
		if len(b.Array) < n {
			n = len(b.Array)
		}
		for i := 0; i < n; i++ {
			if d := Compare(a.Array[i], b.Array[i]); d != 0 {
				return d
			}
		}
		return cmpInt(len(a.Array), len(b.Array))
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

// String renders a human-readable form, used by query DSL encoding and
// diagnostics/explain text.
func (v Variant) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindInt64:
		return fmt.Sprintf("%d", v.i)
	case KindDouble:
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
			return "nan"
		}
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindUUID:
		return uuid.UUID(v.u).String()
	case KindPoint:
		return fmt.Sprintf("(%g,%g)", v.pt.X, v.pt.Y)
	case KindTuple, KindComposite:
		s := "["
		for i, e := range v.Array {
			if i > 0 {
				s += ","
			}
			s += e.String()
		}
		return s + "]"
	default:
		return "?"
	}
}
