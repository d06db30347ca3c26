package results

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/payload"
	"github.com/kartikbazzad/docucore/internal/tags"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// toPlain renders an Item's addressable fields as a plain Go value tree,
// the shared staging step behind both JSON and MsgPack encoding.
func toPlain(it *Item) (map[string]any, error) {
	out := make(map[string]any, it.ns.Type.NumFields())
	for i := 0; i < it.ns.Type.NumFields(); i++ {
		f := it.ns.Type.Field(i)
		v, err := it.acc.Get(i)
		if err != nil {
			return nil, err
		}
		out[f.Name] = variantToPlain(v)
	}
	return out, nil
}

func variantToPlain(v variant.Variant) any {
	switch v.Kind {
	case variant.KindNull:
		return nil
	case variant.KindInt, variant.KindInt64:
		return v.AsInt64()
	case variant.KindDouble:
		return v.AsDouble()
	case variant.KindString:
		return v.AsString()
	case variant.KindBool:
		return v.AsBool()
	case variant.KindUUID:
		return uuid.UUID(v.AsUUID()).String()
	case variant.KindPoint:
		p := v.AsPoint()
		return []float64{p.X, p.Y}
	case variant.KindTuple, variant.KindComposite:
		elems := make([]any, len(v.Array))
		for i, e := range v.Array {
			elems[i] = variantToPlain(e)
		}
		return elems
	default:
		return nil
	}
}

// EncodeJSON renders it as a JSON object body.
func EncodeJSON(it *Item) ([]byte, error) {
	plain, err := toPlain(it)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(plain)
	if err != nil {
		return nil, coreerrors.New(coreerrors.KindParseJSON, "encode item to json: %v", err)
	}
	return b, nil
}

// EncodeMsgPack renders it as a MsgPack-encoded body.
func EncodeMsgPack(it *Item) ([]byte, error) {
	plain, err := toPlain(it)
	if err != nil {
		return nil, err
	}
	b, err := msgpack.Marshal(plain)
	if err != nil {
		return nil, coreerrors.New(coreerrors.KindLogic, "encode item to msgpack: %v", err)
	}
	return b, nil
}

// EncodeCJSON renders it as a tag-prefixed binary body, where each field's
// path is resolved to a small integer tag via the item's TagsMatcher
// (registering the path if not yet known) rather than repeating the field
// name inline — the compact wire form is called CJSON.
// Layout per field: tag (varint), Variant (kind tag + payload; unlike the
// query codec's writeVariant, int64 values are written as fixed 8-byte
// little-endian rather than as a varint). Terminated by tag 0
// (the matcher's reserved/unused tag).
func EncodeCJSON(it *Item) ([]byte, error) {
	var w wbuf
	for i := 0; i < it.ns.Type.NumFields(); i++ {
		f := it.ns.Type.Field(i)
		v, err := it.acc.Get(i)
		if err != nil {
			return nil, err
		}
		t := it.ns.Matcher.NewTag(f.Name)
		w.writeCInt(int(t))
		writeCJSONVariant(&w, v)
	}
	w.writeCInt(0)
	return w.buf, nil
}

// DecodeCJSON parses a body produced by EncodeCJSON, resolving each tag
// back to a field name via matcher. A tag absent from the matcher is the
// tags-mismatch condition: the caller ingested a state token older than
// the matcher's current version.
func DecodeCJSON(body []byte, matcher *tags.Matcher) (map[string]variant.Variant, error) {
	r := rbuf{buf: body}
	out := map[string]variant.Variant{}
	for {
		tag, err := r.readCInt()
		if err != nil {
			return nil, err
		}
		if tag == 0 {
			return out, nil
		}
		path, ok := matcher.PathOf(tags.Tag(tag))
		if !ok {
			return nil, coreerrors.New(coreerrors.KindTagsMissmatch, "cjson tag %d not present in current tags matcher", tag)
		}
		v, err := readCJSONVariant(&r)
		if err != nil {
			return nil, err
		}
		out[path] = v
	}
}

// DecodeJSON parses a plain JSON object body against t's field kinds,
// producing the same field-name -> Variant shape DecodeCJSON does — the
// counterpart binding.ModifyItemPacked needs for format=json bodies.
func DecodeJSON(body []byte, t *payload.Type) (map[string]variant.Variant, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, coreerrors.New(coreerrors.KindParseJSON, "decode item json: %v", err)
	}
	out := make(map[string]variant.Variant, len(raw))
	for i := 0; i < t.NumFields(); i++ {
		f := t.Field(i)
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = plainToVariant(v, f.Kind)
	}
	return out, nil
}

func plainToVariant(v any, kind variant.Kind) variant.Variant {
	switch kind {
	case variant.KindInt:
		if n, ok := v.(float64); ok {
			return variant.Int(int(n))
		}
	case variant.KindInt64:
		if n, ok := v.(float64); ok {
			return variant.Int64(int64(n))
		}
	case variant.KindDouble:
		if n, ok := v.(float64); ok {
			return variant.Double(n)
		}
	case variant.KindString:
		if s, ok := v.(string); ok {
			return variant.String(s)
		}
	case variant.KindBool:
		if b, ok := v.(bool); ok {
			return variant.Bool(b)
		}
	}
	return variant.Null()
}

func readCJSONVariant(r *rbuf) (variant.Variant, error) {
	k, err := r.readCInt()
	if err != nil {
		return variant.Variant{}, err
	}
	switch variant.Kind(k) {
	case variant.KindInt:
		v, err := r.readCInt()
		return variant.Int(v), err
	case variant.KindInt64:
		v, err := r.readInt64()
		return variant.Int64(v), err
	case variant.KindDouble:
		v, err := r.readDouble()
		return variant.Double(v), err
	case variant.KindString:
		n, err := r.readCInt()
		if err != nil {
			return variant.Variant{}, err
		}
		if r.pos+n > len(r.buf) {
			return variant.Variant{}, coreerrors.New(coreerrors.KindParseBin, "truncated cjson string at offset %d", r.pos)
		}
		s := string(r.buf[r.pos : r.pos+n])
		r.pos += n
		return variant.String(s), nil
	case variant.KindBool:
		v, err := r.readCInt()
		return variant.Bool(v != 0), err
	case variant.KindUUID:
		if r.pos+16 > len(r.buf) {
			return variant.Variant{}, coreerrors.New(coreerrors.KindParseBin, "truncated cjson uuid at offset %d", r.pos)
		}
		var u variant.UUID
		copy(u[:], r.buf[r.pos:r.pos+16])
		r.pos += 16
		return variant.UUIDValue(u), nil
	case variant.KindPoint:
		x, err := r.readDouble()
		if err != nil {
			return variant.Variant{}, err
		}
		y, err := r.readDouble()
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.PointValue(x, y), nil
	default:
		return variant.Null(), nil
	}
}

func writeCJSONVariant(w *wbuf, v variant.Variant) {
	w.writeCInt(int(v.Kind))
	switch v.Kind {
	case variant.KindInt:
		w.writeCInt(v.AsInt())
	case variant.KindInt64:
		w.writeInt64(v.AsInt64())
	case variant.KindDouble:
		w.writeDouble(v.AsDouble())
	case variant.KindString:
		s := v.AsString()
		w.writeCInt(len(s))
		w.writeBytes([]byte(s))
	case variant.KindBool:
		if v.AsBool() {
			w.writeCInt(1)
		} else {
			w.writeCInt(0)
		}
	case variant.KindUUID:
		u := v.AsUUID()
		w.writeBytes(u[:])
	case variant.KindPoint:
		p := v.AsPoint()
		w.writeDouble(p.X)
		w.writeDouble(p.Y)
	}
}
