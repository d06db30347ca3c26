package respool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/results"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := New(nil, nil)
	qr, err := p.Acquire(results.FlagJSON)
	require.NoError(t, err)
	require.EqualValues(t, 1, p.Outstanding())

	p.Release(qr)
	require.EqualValues(t, 0, p.Outstanding())
}

func TestReleaseReusesBuilderFromFreeList(t *testing.T) {
	p := New(nil, nil)
	qr, err := p.Acquire(results.FlagJSON)
	require.NoError(t, err)
	p.Release(qr)

	qr2, err := p.Acquire(results.FlagCJSON)
	require.NoError(t, err)
	require.Same(t, qr, qr2, "second acquire should reuse the released builder")
}

// TestPoolExhaustion covers acquiring kMaxConcurentQueries results
// without releasing making the next acquire fail with
// too-many-parallel-queries; releasing one lets it succeed.
func TestPoolExhaustion(t *testing.T) {
	p := New(nil, nil)
	held := make([]*results.QueryResults, 0, kMaxConcurentQueries)
	for i := 0; i < kMaxConcurentQueries; i++ {
		qr, err := p.Acquire(results.FlagJSON)
		require.NoError(t, err)
		held = append(held, qr)
	}

	_, err := p.Acquire(results.FlagJSON)
	require.Error(t, err)
	require.Equal(t, coreerrors.KindTooManyParallelQueries, coreerrors.KindOf(err))

	p.Release(held[0])
	_, err = p.Acquire(results.FlagJSON)
	require.NoError(t, err)
}

func TestReleaseDropsOversizedBuilder(t *testing.T) {
	p := New(nil, nil)
	qr, err := p.Acquire(results.FlagJSON)
	require.NoError(t, err)

	// FlagWithHeaderLen is unset, so the whole raw blob is treated as one
	// frame — a convenient way to stand up a single oversized frame
	// without needing a valid length-prefixed stream.
	oversized := make([]byte, kMaxPooledResultsCap+1)
	require.NoError(t, qr.Bind(nil, nil, oversized, 1, 1, 0))
	p.Release(qr)

	p2, err := p.Acquire(results.FlagJSON)
	require.NoError(t, err)
	require.NotSame(t, qr, p2, "oversized builder should have been dropped, not reused")
}

func TestContextCancelExplicit(t *testing.T) {
	table := NewContextTable(nil)
	sc, err := table.Acquire()
	require.NoError(t, err)
	defer sc.Release()

	require.NoError(t, sc.Poll())

	require.NoError(t, table.Cancel(sc.ID(), HowExplicit))
	err = sc.Poll()
	require.Error(t, err)
	require.Equal(t, coreerrors.KindCanceled, coreerrors.KindOf(err))
}

// TestContextCancellationDuringFetch covers a long-running fetch canceled
// from another goroutine, which must return a canceled error with no
// partial buffer.
func TestContextCancellationDuringFetch(t *testing.T) {
	table := NewContextTable(nil)
	sc, err := table.Acquire()
	require.NoError(t, err)
	defer sc.Release()

	blocking := make(chan struct{})
	go func() {
		<-blocking
		_ = table.Cancel(sc.ID(), HowExplicit)
	}()

	var polled error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if err := sc.Poll(); err != nil {
				polled = err
				return
			}
			if i == 10 {
				close(blocking)
			}
			time.Sleep(time.Millisecond)
		}
	}()
	<-done

	require.Error(t, polled)
	require.Equal(t, coreerrors.KindCanceled, coreerrors.KindOf(polled))
}

func TestContextTableExhaustion(t *testing.T) {
	table := NewContextTable(nil)
	var scoped []*ScopedContext
	for i := 0; i < kCtxArrSize; i++ {
		sc, err := table.Acquire()
		require.NoError(t, err)
		scoped = append(scoped, sc)
	}
	_, err := table.Acquire()
	require.Error(t, err)

	scoped[0].Release()
	_, err = table.Acquire()
	require.NoError(t, err)
}

func TestScopedContextNestedAcquireKeepsSlotAliveUntilAllReleased(t *testing.T) {
	table := NewContextTable(nil)
	sc, err := table.Acquire()
	require.NoError(t, err)

	nested := sc.Acquire()
	sc.Release()
	require.NoError(t, nested.Poll(), "slot must stay alive while the nested reference holds it")
	nested.Release()
}
