// Package respool implements the bounded pool of reusable QueryResults
// builders and the fixed-size cancellation context table.
package respool

import (
	"sync"
	"sync/atomic"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/logger"
	"github.com/kartikbazzad/docucore/internal/metrics"
	"github.com/kartikbazzad/docucore/internal/results"
)

// Limits from /§6.
const (
	kQueryResultsPoolSize  = 1024
	kMaxConcurentQueries   = 65534
	kMaxPooledResultsCap   = 65536
	kWarnLargeResultsLimit = 1 << 30
)

// Pool is a bounded, reusable stack of *results.QueryResults builders
// guarded by a single mutex — memory.BufferPool buckets
// []byte allocations behind sync.Pool; a QueryResults builder additionally
// needs a hard cap on concurrently *live* (acquired, not yet released)
// handles, which sync.Pool cannot express, so the free list here is a
// plain mutex-guarded slice instead.
type Pool struct {
	mu   sync.Mutex
	free []*results.QueryResults

	outstanding int64 // atomic: live acquired handles
	produced    int64 // atomic: total ever acquired, for observability

	log     *logger.Logger
	metrics *metrics.Registry
}

// New builds an empty pool. log and reg may be nil (logger.Noop()/no
// metrics registration).
func New(log *logger.Logger, reg *metrics.Registry) *Pool {
	if log == nil {
		log = logger.Noop()
	}
	return &Pool{log: log, metrics: reg}
}

// Acquire returns a builder ready for flags, reusing a pooled one when
// available. It fails with too-many-parallel-queries once the live count
// reaches kMaxConcurentQueries.
func (p *Pool) Acquire(flags results.Flags) (*results.QueryResults, error) {
	if atomic.AddInt64(&p.outstanding, 1) > kMaxConcurentQueries {
		atomic.AddInt64(&p.outstanding, -1)
		if p.metrics != nil {
			p.metrics.ResultPoolExhausted.Inc()
		}
		return nil, coreerrors.New(coreerrors.KindTooManyParallelQueries, "result pool exhausted: %d live handles", kMaxConcurentQueries)
	}

	p.mu.Lock()
	var qr *results.QueryResults
	if n := len(p.free); n > 0 {
		qr = p.free[n-1]
		p.free = p.free[:n-1]
		qr.Clear(flags)
	} else {
		qr = results.New(flags)
	}
	p.mu.Unlock()

	atomic.AddInt64(&p.produced, 1)
	if p.metrics != nil {
		p.metrics.ResultPoolInUse.Set(float64(atomic.LoadInt64(&p.outstanding)))
		p.metrics.ResultPoolOutstanding.Inc()
	}
	return qr, nil
}

// Release returns qr to the pool. A builder whose buffered bytes exceed
// kMaxPooledResultsCap is dropped rather than retained, so one
// unusually large result doesn't permanently bloat the free list. A capacity at or
// above kWarnLargeResultsLimit is logged regardless of whether the
// builder is kept.
func (p *Pool) Release(qr *results.QueryResults) {
	size := qr.BufferCap()
	if size >= kWarnLargeResultsLimit {
		p.log.Warn("respool: releasing a result of %d bytes, at or above the %d byte warn threshold", size, kWarnLargeResultsLimit)
	}

	qr.Clear(0)

	p.mu.Lock()
	if size <= kMaxPooledResultsCap && len(p.free) < kQueryResultsPoolSize {
		p.free = append(p.free, qr)
	}
	p.mu.Unlock()

	atomic.AddInt64(&p.outstanding, -1)
	if p.metrics != nil {
		p.metrics.ResultPoolInUse.Set(float64(atomic.LoadInt64(&p.outstanding)))
	}
}

// Outstanding reports the current count of acquired-but-not-released
// handles.
func (p *Pool) Outstanding() int64 { return atomic.LoadInt64(&p.outstanding) }

// Produced reports the lifetime count of Acquire calls that succeeded.
func (p *Pool) Produced() int64 { return atomic.LoadInt64(&p.produced) }
