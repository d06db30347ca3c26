package respool

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/metrics"
)

// kCtxArrSize bounds the live cancellation-context table.
const kCtxArrSize = 1024

// How identifies the cause a cancellation was raised for. Both causes
// produce the same observable error kind to callers; How is kept only for logging/metrics.
type How int

const (
	HowExplicit How = iota
	HowTimeout
)

func (h How) String() string {
	if h == HowTimeout {
		return "timeout"
	}
	return "explicit"
}

// ctxEntry is one slot of the fixed-size context table: an opaque
// caller/client id, a scoped refcount, and the canceled/how pair a poll
// observes.
type ctxEntry struct {
	mu       sync.Mutex
	id       uuid.UUID
	refcount int32
	canceled bool
	how      How
	inUse    bool
}

// ContextTable is the fixed-size table of active contexts every
// long-running operation polls at its suspension points.
type ContextTable struct {
	mu      sync.Mutex
	entries [kCtxArrSize]*ctxEntry
	free    []int // indices not currently in use

	metrics *metrics.Registry
}

// NewContextTable builds an empty table with every slot free.
func NewContextTable(reg *metrics.Registry) *ContextTable {
	t := &ContextTable{metrics: reg}
	t.free = make([]int, kCtxArrSize)
	for i := range t.entries {
		t.entries[i] = &ctxEntry{}
		t.free[i] = kCtxArrSize - 1 - i
	}
	return t
}

// Acquire allocates a fresh context with a new caller id and returns a
// ScopedContext holding the first reference. Callers bind it to the
// current operation and Release on every exit path.
func (t *ContextTable) Acquire() (*ScopedContext, error) {
	t.mu.Lock()
	if len(t.free) == 0 {
		t.mu.Unlock()
		return nil, coreerrors.New(coreerrors.KindParams, "context table exhausted: %d live contexts", kCtxArrSize)
	}
	slot := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.mu.Unlock()

	e := t.entries[slot]
	e.mu.Lock()
	e.id = uuid.New()
	e.refcount = 1
	e.canceled = false
	e.inUse = true
	e.mu.Unlock()

	return &ScopedContext{table: t, slot: slot, id: e.id}, nil
}

// Cancel marks the context owning id as canceled, recording how for
// metrics. Returns not-found if no live context holds id.
func (t *ContextTable) Cancel(id uuid.UUID, how How) error {
	for i := range t.entries {
		e := t.entries[i]
		e.mu.Lock()
		if e.inUse && e.id == id {
			e.canceled = true
			e.how = how
			e.mu.Unlock()
			if t.metrics != nil {
				t.metrics.CancellationsTotal.WithLabelValues(how.String()).Inc()
			}
			return nil
		}
		e.mu.Unlock()
	}
	return coreerrors.New(coreerrors.KindNotFound, "no active context with id %s", id)
}

func (t *ContextTable) release(slot int) {
	e := t.entries[slot]
	e.mu.Lock()
	e.inUse = false
	e.mu.Unlock()

	t.mu.Lock()
	t.free = append(t.free, slot)
	t.mu.Unlock()
}

// ScopedContext binds a cancellation context to the current operation.
// Acquire() takes an additional reference for a nested entry point;
// Release() drops one, freeing the underlying slot once the count reaches
// zero.
type ScopedContext struct {
	table *ContextTable
	slot  int
	id    uuid.UUID
}

func (s *ScopedContext) ID() uuid.UUID { return s.id }

// Acquire takes an additional scoped reference to the same context,
// matching 's "reference-counted via scoped acquisition tied to
// each entry point."
func (s *ScopedContext) Acquire() *ScopedContext {
	atomic.AddInt32(&s.table.entries[s.slot].refcount, 1)
	return &ScopedContext{table: s.table, slot: s.slot, id: s.id}
}

// Release drops this reference. When the refcount reaches zero the slot
// returns to the free list.
func (s *ScopedContext) Release() {
	if atomic.AddInt32(&s.table.entries[s.slot].refcount, -1) == 0 {
		s.table.release(s.slot)
	}
}

// Poll is the cooperative cancellation check long-running operations call
// at suspension points. It
// returns a canceled error once Cancel has been called for this context;
// partial results from a canceled operation must not be returned to the
// caller.
func (s *ScopedContext) Poll() error {
	e := s.table.entries[s.slot]
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.canceled {
		return coreerrors.New(coreerrors.KindCanceled, "context %s canceled (%s)", s.id, e.how)
	}
	return nil
}
