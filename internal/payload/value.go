// Package payload implements PayloadValue — the refcounted, copy-on-write
// heap cell shared across queries, results and indexes.
package payload

import (
	"sync/atomic"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
)

// header is the single allocation backing a PayloadValue: a strong
// refcount, a capacity, an LSN and the raw bytes. Many Value handles may
// point at the same header; the last one to release it frees the
// allocation.
type header struct {
	refcount int32
	capacity int
	lsn      int64
	data     []byte
}

// Value is a holder (handle) referencing a shared header. The zero Value
// is the null handle: IsNull reports true, and any other method call on
// it is a fatal bug — dereferencing a free payload is a fatal bug, not
// an error to propagate.
type Value struct {
	h *header
}

// New allocates a fresh PayloadValue of size bytes with at least capacity
// bytes backing storage (capacity is raised to size if smaller). If bytes
// is non-nil its contents seed the allocation. Refcount starts at 1, LSN
// defaults to -1.
func New(size int, bytes []byte, capacity int) *Value {
	if capacity < size {
		capacity = size
	}
	data := make([]byte, size, capacity)
	if bytes != nil {
		copy(data, bytes)
	}
	return &Value{h: &header{refcount: 1, capacity: capacity, lsn: -1, data: data}}
}

// IsNull reports whether this handle is the free/unset payload.
func (v *Value) IsNull() bool { return v == nil || v.h == nil }

func (v *Value) mustHeader() *header {
	if v.IsNull() {
		panic(coreerrors.ErrFreePayload)
	}
	return v.h
}

// Bytes returns the live bytes. Safe for concurrent readers across any
// number of holders: callers must not mutate the returned
// slice without first establishing uniqueness via CloneIntoUnique.
func (v *Value) Bytes() []byte { return v.mustHeader().data }

// Size returns the live byte length.
func (v *Value) Size() int { return len(v.mustHeader().data) }

// GetCapacity returns the backing capacity, always >= live size.
func (v *Value) GetCapacity() int { return v.mustHeader().capacity }

// Refcount returns the current strong refcount. Exposed for tests and
// diagnostics.
func (v *Value) Refcount() int32 { return atomic.LoadInt32(&v.mustHeader().refcount) }

// GetLSN returns the mutable LSN metadata (not part of equality).
func (v *Value) GetLSN() int64 { return atomic.LoadInt64(&v.mustHeader().lsn) }

// SetLSN sets the LSN metadata.
func (v *Value) SetLSN(lsn int64) { atomic.StoreInt64(&v.mustHeader().lsn, lsn) }

// Clone returns a new holder sharing the same header, incrementing the
// refcount.
func (v *Value) Clone() *Value {
	h := v.mustHeader()
	atomic.AddInt32(&h.refcount, 1)
	return &Value{h: h}
}

// Move transfers ownership of v's handle to a new Value and nulls v —
// the handle moves and the source is nulled, with no refcount change.
func (v *Value) Move() *Value {
	h := v.mustHeader()
	v.h = nil
	return &Value{h: h}
}

// Release decrements the refcount and frees the allocation when it drops
// to zero. Releasing an already-null handle is a no-op. A refcount that
// underflows below zero is a fatal bug and aborts the process rather
// than returning an error.
func (v *Value) Release() {
	if v.IsNull() {
		return
	}
	h := v.h
	v.h = nil
	n := atomic.AddInt32(&h.refcount, -1)
	if n < 0 {
		panic(coreerrors.ErrRefcountUnderflow)
	}
	if n == 0 {
		h.data = nil
	}
}

// CloneIntoUnique ensures the holder owns a unique copy of at least size
// bytes. If the header is shared (refcount > 1) or smaller than
// requested, it allocates a fresh cell, copies min(old,new) bytes and
// releases the old reference; otherwise it is a no-op.
func (v *Value) CloneIntoUnique(size int) {
	h := v.mustHeader()
	if atomic.LoadInt32(&h.refcount) == 1 && h.capacity >= size {
		return
	}

	newCap := size
	if h.capacity > newCap {
		newCap = h.capacity
	}
	n := len(h.data)
	if n > size {
		n = size
	}
	newData := make([]byte, size, newCap)
	copy(newData, h.data[:n])

	nh := &header{refcount: 1, capacity: newCap, lsn: h.lsn, data: newData}
	v.h = nh

	if left := atomic.AddInt32(&h.refcount, -1); left < 0 {
		panic(coreerrors.ErrRefcountUnderflow)
	}
}

// Resize ensures capacity >= newSize and preserves the first
// min(len(data), newSize) bytes, zero-initializing the growth. The
// holder must already be uniquely owned (refcount == 1); calling Resize
// on a shared value is an internal bug — mutation requires exclusive
// ownership, so callers must CloneIntoUnique first.
func (v *Value) Resize(newSize int) {
	h := v.mustHeader()
	if atomic.LoadInt32(&h.refcount) != 1 {
		panic("payload: Resize called on a shared value; CloneIntoUnique first")
	}

	old := len(h.data)
	if newSize <= cap(h.data) {
		h.data = h.data[:newSize]
	} else {
		nd := make([]byte, newSize)
		copy(nd, h.data)
		h.data = nd
	}
	for i := old; i < newSize; i++ {
		h.data[i] = 0
	}
	if newSize > h.capacity {
		h.capacity = newSize
	}
}
