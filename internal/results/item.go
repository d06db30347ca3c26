// Package results implements QueryResults and ResultSerializer: the
// transport container of serialized item records plus sidecar metadata,
// and the per-item wire framing that flags select.
package results

import (
	"github.com/kartikbazzad/docucore/internal/payload"
	"github.com/kartikbazzad/docucore/internal/tags"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// Namespace is the minimal binding an Item needs to interpret its own
// bytes: the layout that names its fields and the matcher that resolves
// CJSON path tags for that layout.
type Namespace struct {
	Name    string
	Type    *payload.Type
	Matcher *tags.Matcher
}

// Item pairs a decoded PayloadValue with the namespace metadata needed to
// address its fields by name or JSON path.
type Item struct {
	ns  *Namespace
	val *payload.Value
	acc *payload.Accessor
}

// NewItem binds val to ns, ready for field access.
func NewItem(ns *Namespace, val *payload.Value) *Item {
	return &Item{ns: ns, val: val, acc: payload.NewAccessor(ns.Type, val)}
}

func (it *Item) Namespace() *Namespace  { return it.ns }
func (it *Item) Value() *payload.Value  { return it.val }
func (it *Item) Matcher() *tags.Matcher { return it.ns.Matcher }

// Get resolves a top-level field by name.
func (it *Item) Get(name string) (variant.Variant, error) {
	return it.acc.GetByName(name)
}

// GetByPath resolves a top-level-or-one-level-nested field, per
// payload.Accessor.GetByJSONPath.
func (it *Item) GetByPath(path []string) (variant.Variant, error) {
	return it.acc.GetByJSONPath(path)
}

// ItemFromFields builds a fresh Item under ns from a decoded field-name ->
// Variant map, the shape DecodeCJSON produces. Used to stage a transaction
// step directly from a packed body without an existing Item to merge into.
func ItemFromFields(ns *Namespace, fields map[string]variant.Variant) *Item {
	return NewItem(ns, payloadFromFields(ns, fields))
}

// ApplyFields overwrites it's fields in place from a decoded field-name ->
// Variant map, leaving any field absent from fields untouched. Used to merge
// a packed body onto a freshly refetched Item during the tags-mismatch retry
// protocol.
func ApplyFields(it *Item, fields map[string]variant.Variant) {
	for i := 0; i < it.ns.Type.NumFields(); i++ {
		f := it.ns.Type.Field(i)
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		if f.Kind == variant.KindString {
			_ = it.acc.SetString(i, v.AsString())
			continue
		}
		_ = it.acc.SetNumeric(i, v)
	}
}

// Fields reads back every addressable field of it as a name -> Variant
// map, the inverse of ItemFromFields/ApplyFields — used where a caller
// holds an already-materialized Item but needs its fields as a plain map
// again (e.g. replaying a staged transaction step against a store keyed by
// field values).
func Fields(it *Item) map[string]variant.Variant {
	out := make(map[string]variant.Variant, it.ns.Type.NumFields())
	for i := 0; i < it.ns.Type.NumFields(); i++ {
		f := it.ns.Type.Field(i)
		if v, err := it.acc.Get(i); err == nil {
			out[f.Name] = v
		}
	}
	return out
}

// payloadFromFields materializes a fresh PayloadValue under ns.Type from a
// decoded field-name -> Variant map (the shape DecodeCJSON produces),
// writing each named field through the same Accessor setters ingest uses.
func payloadFromFields(ns *Namespace, fields map[string]variant.Variant) *payload.Value {
	val := payload.New(0, nil, 0)
	acc := payload.NewAccessor(ns.Type, val)
	for i := 0; i < ns.Type.NumFields(); i++ {
		f := ns.Type.Field(i)
		v, ok := fields[f.Name]
		if !ok {
			continue
		}
		if f.Kind == variant.KindString {
			_ = acc.SetString(i, v.AsString())
			continue
		}
		_ = acc.SetNumeric(i, v)
	}
	return val
}
