package query

import (
	"encoding/binary"
	"math"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// serializer accumulates the tagged binary record stream. Scalar widths
// are unsigned LEB128 varints; strings are length-prefixed UTF-8, mirroring
// the wire shape a reindexer-style client-side query builder writes
// (writeCInt/writeString/writeValue).
type serializer struct {
	buf []byte
}

func (s *serializer) writeCInt(v int) *serializer {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(v))
	s.buf = append(s.buf, tmp[:n]...)
	return s
}

func (s *serializer) writeString(v string) *serializer {
	s.writeCInt(len(v))
	s.buf = append(s.buf, v...)
	return s
}

func (s *serializer) writeBool(v bool) *serializer {
	if v {
		return s.writeCInt(1)
	}
	return s.writeCInt(0)
}

func (s *serializer) writeDouble(v float64) *serializer {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	s.buf = append(s.buf, tmp[:]...)
	return s
}

// writeVariant writes a type tag followed by the variant's payload.
func (s *serializer) writeVariant(v variant.Variant) *serializer {
	s.writeCInt(int(v.Kind))
	switch v.Kind {
	case variant.KindInt:
		s.writeCInt(v.AsInt())
	case variant.KindInt64:
		s.writeCInt(int(v.AsInt64()))
	case variant.KindDouble:
		s.writeDouble(v.AsDouble())
	case variant.KindString:
		s.writeString(v.AsString())
	case variant.KindBool:
		s.writeBool(v.AsBool())
	case variant.KindUUID:
		u := v.AsUUID()
		s.buf = append(s.buf, u[:]...)
	case variant.KindPoint:
		p := v.AsPoint()
		s.writeDouble(p.X)
		s.writeDouble(p.Y)
	}
	return s
}

func (s *serializer) bytes() []byte { return s.buf }

// deserializer walks the byte stream produced by serializer, supporting
// one-record rewind for the aggregation inner-loop rule.
type deserializer struct {
	buf []byte
	pos int
}

func newDeserializer(buf []byte) *deserializer { return &deserializer{buf: buf} }

func (d *deserializer) eof() bool { return d.pos >= len(d.buf) }

func (d *deserializer) readCInt() (int, error) {
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, coreerrors.New(coreerrors.KindParseBin, "truncated varint at offset %d", d.pos)
	}
	d.pos += n
	return int(v), nil
}

func (d *deserializer) readString() (string, error) {
	n, err := d.readCInt()
	if err != nil {
		return "", err
	}
	if d.pos+n > len(d.buf) {
		return "", coreerrors.New(coreerrors.KindParseBin, "truncated string at offset %d", d.pos)
	}
	s := string(d.buf[d.pos : d.pos+n])
	d.pos += n
	return s, nil
}

func (d *deserializer) readBool() (bool, error) {
	v, err := d.readCInt()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *deserializer) readDouble() (float64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, coreerrors.New(coreerrors.KindParseBin, "truncated double at offset %d", d.pos)
	}
	bits := binary.LittleEndian.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return math.Float64frombits(bits), nil
}

func (d *deserializer) readVariant() (variant.Variant, error) {
	k, err := d.readCInt()
	if err != nil {
		return variant.Variant{}, err
	}
	switch variant.Kind(k) {
	case variant.KindInt:
		v, err := d.readCInt()
		return variant.Int(v), err
	case variant.KindInt64:
		v, err := d.readCInt()
		return variant.Int64(int64(v)), err
	case variant.KindDouble:
		v, err := d.readDouble()
		return variant.Double(v), err
	case variant.KindString:
		v, err := d.readString()
		return variant.String(v), err
	case variant.KindBool:
		v, err := d.readBool()
		return variant.Bool(v), err
	case variant.KindUUID:
		if d.pos+16 > len(d.buf) {
			return variant.Variant{}, coreerrors.New(coreerrors.KindParseBin, "truncated uuid at offset %d", d.pos)
		}
		var u variant.UUID
		copy(u[:], d.buf[d.pos:d.pos+16])
		d.pos += 16
		return variant.UUIDValue(u), nil
	case variant.KindPoint:
		x, err := d.readDouble()
		if err != nil {
			return variant.Variant{}, err
		}
		y, err := d.readDouble()
		if err != nil {
			return variant.Variant{}, err
		}
		return variant.PointValue(x, y), nil
	default:
		return variant.Null(), nil
	}
}

// peekTag reads the next tag, returning a rewind function that restores
// the pre-read position — used by the aggregation inner-loop rule.
func (d *deserializer) peekTag() (int, func(), error) {
	before := d.pos
	tag, err := d.readCInt()
	if err != nil {
		return 0, func() {}, err
	}
	return tag, func() { d.pos = before }, nil
}
