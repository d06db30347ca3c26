package results

import (
	"encoding/binary"
	"math"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
)

// wbuf accumulates a result frame. Scalar widths mirror the query
// package's wire helpers (unsigned LEB128 varints, little-endian fixed
// widths) rather than sharing that package's unexported serializer, since
// each subsystem here owns its own tag stream and framing rules.
type wbuf struct {
	buf []byte
}

func (w *wbuf) writeCInt(v int) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], uint64(v))
	w.buf = append(w.buf, tmp[:n]...)
}

func (w *wbuf) writeInt64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	w.buf = append(w.buf, tmp[:]...)
}

func (w *wbuf) writeDouble(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	w.buf = append(w.buf, tmp[:]...)
}

func (w *wbuf) writeBytes(b []byte) { w.buf = append(w.buf, b...) }

type rbuf struct {
	buf []byte
	pos int
}

func (r *rbuf) readCInt() (int, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, coreerrors.New(coreerrors.KindParseBin, "truncated varint in result frame at offset %d", r.pos)
	}
	r.pos += n
	return int(v), nil
}

func (r *rbuf) readInt64() (int64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, coreerrors.New(coreerrors.KindParseBin, "truncated int64 in result frame at offset %d", r.pos)
	}
	v := int64(binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8]))
	r.pos += 8
	return v, nil
}

func (r *rbuf) readDouble() (float64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, coreerrors.New(coreerrors.KindParseBin, "truncated double in result frame at offset %d", r.pos)
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8]))
	r.pos += 8
	return v, nil
}

// ItemParams is the sidecar metadata one per-item frame carries ahead of
// its body, per the fields flags select.
type ItemParams struct {
	ID   int32
	LSN  int64
	Rank float64
}

// ResultSerializer implements the per-item frame layout: an optional
// length prefix, item id+LSN when withItemID, an optional rank when
// needOutputRank, and a flag-selected body.
type ResultSerializer struct{}

// WriteItem produces one frame for body (already encoded per flags by
// the caller — JSON, CJSON, MsgPack, or a ptrs handle) under the given
// flags and params.
func (ResultSerializer) WriteItem(flags Flags, params ItemParams, body []byte) []byte {
	var w wbuf
	if flags.Has(FlagWithItemID) {
		w.writeCInt(int(params.ID))
		w.writeInt64(params.LSN)
	}
	if flags.Has(FlagNeedOutputRank) {
		w.writeDouble(params.Rank)
	}
	w.writeBytes(body)

	if !flags.Has(FlagWithHeaderLen) {
		return w.buf
	}
	var framed wbuf
	framed.writeCInt(len(w.buf))
	framed.writeBytes(w.buf)
	return framed.buf
}

// ReadItem parses one frame out of buf (which must already have its
// optional length prefix stripped by the caller when FlagWithHeaderLen is
// set — see SplitFrames), returning the parsed params and the
// remaining body bytes.
func (ResultSerializer) ReadItem(buf []byte, flags Flags) (ItemParams, []byte, error) {
	r := rbuf{buf: buf}
	var params ItemParams
	if flags.Has(FlagWithItemID) {
		id, err := r.readCInt()
		if err != nil {
			return params, nil, err
		}
		lsn, err := r.readInt64()
		if err != nil {
			return params, nil, err
		}
		params.ID, params.LSN = int32(id), lsn
	}
	if flags.Has(FlagNeedOutputRank) {
		rank, err := r.readDouble()
		if err != nil {
			return params, nil, err
		}
		params.Rank = rank
	}
	return params, buf[r.pos:], nil
}

// SplitFrames walks buf splitting it into individual length-prefixed
// frames (only meaningful when FlagWithHeaderLen is set; otherwise the
// whole buffer is a single frame boundary that the caller must already
// know from an out-of-band count).
func SplitFrames(buf []byte) ([][]byte, error) {
	var frames [][]byte
	r := rbuf{buf: buf}
	for r.pos < len(buf) {
		n, err := r.readCInt()
		if err != nil {
			return nil, err
		}
		if r.pos+n > len(buf) {
			return nil, coreerrors.New(coreerrors.KindParseBin, "truncated frame body at offset %d", r.pos)
		}
		frames = append(frames, buf[r.pos:r.pos+n])
		r.pos += n
	}
	return frames, nil
}
