package results

import (
	"context"
	"time"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
)

// Fetcher is the collaborator QueryResults calls back into for lazy
// batch fetching, mirroring the client's ClientConnection role in
// fetchNextResults.
// A single execution engine implements this once and hands a QueryResults
// its own closure-bound Fetcher at Bind time.
type Fetcher interface {
	FetchMore(ctx context.Context, queryID, offset, amount int) (data []byte, hasMore bool, err error)
}

// PtrResolver materializes bytes for a ptrs-flagged body: a stable
// pointer/handle into the producing engine's arena.
type PtrResolver interface {
	Resolve(handle int64) ([]byte, error)
}

// QueryResults is a transport container of serialized item records plus
// sidecar metadata.
type QueryResults struct {
	flags Flags

	ns          *Namespace
	fetcher     Fetcher
	ptrs        PtrResolver
	queryID     int
	fetchOffset int
	fetchAmount int
	timeout     time.Duration

	buf     []byte // concatenated per-item frame bytes fetched so far
	frames  [][]byte
	qcount  int
	hasMore bool

	totalCount int
	aggResults []AggregationResult
	explain    string
	namespaces []string
	ptVersions []int

	status error
}

// New constructs an empty QueryResults configured with fetchFlags.
func New(flags Flags) *QueryResults {
	return &QueryResults{flags: flags, fetchAmount: 1000, timeout: 30 * time.Second}
}

// Bind attaches rawResult/queryID to qr — the server-side cursor handle a
// subsequent fetch continues from.
func (qr *QueryResults) Bind(ns *Namespace, fetcher Fetcher, rawResult []byte, queryID, fetchAmount int, timeout time.Duration) error {
	qr.ns = ns
	qr.fetcher = fetcher
	qr.queryID = queryID
	if fetchAmount > 0 {
		qr.fetchAmount = fetchAmount
	}
	if timeout > 0 {
		qr.timeout = timeout
	}
	return qr.appendRaw(rawResult)
}

// SetPtrResolver wires the ptrs-flag body materializer.
func (qr *QueryResults) SetPtrResolver(r PtrResolver) { qr.ptrs = r }

// Clear resets qr to an empty state under new flags, ready for reuse from
// a pool. It does not shrink the frame slice's backing array, so a
// builder that has already grown to accommodate a large result set stays
// cheap to refill.
func (qr *QueryResults) Clear(flags Flags) {
	qr.flags = flags
	qr.ns = nil
	qr.fetcher = nil
	qr.ptrs = nil
	qr.queryID = 0
	qr.fetchOffset = 0
	qr.fetchAmount = 1000
	qr.timeout = 30 * time.Second
	qr.buf = qr.buf[:0]
	qr.frames = qr.frames[:0]
	qr.qcount = 0
	qr.hasMore = false
	qr.totalCount = 0
	qr.aggResults = nil
	qr.explain = ""
	qr.namespaces = nil
	qr.ptVersions = nil
	qr.status = nil
}

// BufferCap reports the total bytes currently held across all buffered
// frames, the size respool.Pool checks against kMaxPooledResultsCap and
// kWarnLargeResultsLimit on release.
func (qr *QueryResults) BufferCap() int {
	total := 0
	for _, f := range qr.frames {
		total += len(f)
	}
	return total
}

// SetPtVersions records the payload-type versions the caller wants echoed
// back alongside a result set, independent of the rest of SetMeta — the
// binding layer's select() forwards its own pt_versions argument here
// after an Executor has already populated everything else.
func (qr *QueryResults) SetPtVersions(ptVersions []int) { qr.ptVersions = ptVersions }

// SetMeta populates the sidecar fields a query execution engine computes
// once, ahead of any fetch: total count estimate, aggregation results,
// explain text and namespace list.
func (qr *QueryResults) SetMeta(totalCount int, aggResults []AggregationResult, explain string, namespaces []string, ptVersions []int) {
	qr.totalCount = totalCount
	qr.aggResults = aggResults
	qr.explain = explain
	qr.namespaces = namespaces
	qr.ptVersions = ptVersions
}

func (qr *QueryResults) appendRaw(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	if !qr.flags.Has(FlagWithHeaderLen) {
		qr.frames = append(qr.frames, raw)
		qr.qcount++
		return nil
	}
	frames, err := SplitFrames(raw)
	if err != nil {
		qr.status = err
		return err
	}
	qr.frames = append(qr.frames, frames...)
	qr.qcount += len(frames)
	return nil
}

func (qr *QueryResults) Count() int          { return qr.qcount }
func (qr *QueryResults) TotalCount() int     { return qr.totalCount }
func (qr *QueryResults) HaveRank() bool      { return qr.flags.Has(FlagWithRank) }
func (qr *QueryResults) NeedOutputRank() bool                        { return qr.flags.Has(FlagNeedOutputRank) }
func (qr *QueryResults) GetExplainResults() string                   { return qr.explain }
func (qr *QueryResults) GetAggregationResults() []AggregationResult  { return qr.aggResults }
func (qr *QueryResults) GetNamespaces() []string                     { return qr.namespaces }
func (qr *QueryResults) IsCacheEnabled() bool                        { return qr.flags.Has(FlagWithItemID) }
func (qr *QueryResults) Status() error                               { return qr.status }

// fetchNextResults pulls one more batch from the bound Fetcher, appending
// its frames. Called lazily by the Iterator when it runs past the
// currently buffered frames.
func (qr *QueryResults) fetchNextResults(ctx context.Context) error {
	if qr.fetcher == nil || !qr.hasMoreToFetch() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, qr.timeout)
	defer cancel()

	data, hasMore, err := qr.fetcher.FetchMore(ctx, qr.queryID, qr.fetchOffset, qr.fetchAmount)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = coreerrors.New(coreerrors.KindTimeout, "result fetch exceeded its %s deadline", qr.timeout)
		}
		qr.status = err
		return err
	}
	qr.fetchOffset += qr.fetchAmount
	qr.hasMore = hasMore
	return qr.appendRaw(data)
}

func (qr *QueryResults) hasMoreToFetch() bool { return qr.hasMore }

// Iterator walks QueryResults' buffered frames, fetching more from the
// bound Fetcher transparently when it runs off the end of what has been
// received so far.
type Iterator struct {
	qr     *QueryResults
	idx    int
	params ItemParams
	body   []byte
}

// Begin returns an Iterator positioned before the first record.
func (qr *QueryResults) Begin() *Iterator { return &Iterator{qr: qr, idx: -1} }

// Next advances the iterator, transparently fetching another batch when
// the buffered frames are exhausted but the cursor reports more remain.
// Next is idempotent within the same position: calling Next again
// after reaching the end simply returns false again.
func (it *Iterator) Next(ctx context.Context) (bool, error) {
	it.idx++
	if it.idx >= len(it.qr.frames) {
		if err := it.qr.fetchNextResults(ctx); err != nil {
			return false, err
		}
		if it.idx >= len(it.qr.frames) {
			return false, nil
		}
	}
	frame := it.qr.frames[it.idx]
	params, body, err := ResultSerializer{}.ReadItem(frame, it.qr.flags)
	if err != nil {
		return false, err
	}
	it.params, it.body = params, body
	return true, nil
}

func (it *Iterator) GetLSN() int64 { return it.params.LSN }
func (it *Iterator) GetRank() float64 { return it.params.Rank }
func (it *Iterator) IsRaw() bool      { return it.qr.flags.Has(FlagPtrs) }

// GetRaw returns the current frame's body bytes as-is (before any
// ptrs-handle materialization).
func (it *Iterator) GetRaw() []byte { return it.body }

// GetJSON returns the current item's body decoded/re-rendered as JSON.
// When the frame already carries a JSON body this is a passthrough
// (modulo header-length framing, already stripped); a CJSON body is
// decoded through the namespace's TagsMatcher and re-rendered.
func (it *Iterator) GetJSON() ([]byte, error) {
	switch {
	case it.qr.flags.Has(FlagJSON):
		return it.body, nil
	case it.qr.flags.Has(FlagCJSON):
		item, err := it.GetItem()
		if err != nil {
			return nil, err
		}
		return EncodeJSON(item)
	default:
		return nil, coreerrors.New(coreerrors.KindParams, "result flags do not carry a JSON-renderable body")
	}
}

// GetCJSON returns the current item's body as CJSON bytes.
func (it *Iterator) GetCJSON() ([]byte, error) {
	if !it.qr.flags.Has(FlagCJSON) {
		return nil, coreerrors.New(coreerrors.KindParams, "result flags do not carry a cjson body")
	}
	return it.body, nil
}

// GetMsgPack returns the current item's body as MsgPack bytes.
func (it *Iterator) GetMsgPack() ([]byte, error) {
	if !it.qr.flags.Has(FlagMsgPack) {
		return nil, coreerrors.New(coreerrors.KindParams, "result flags do not carry a msgpack body")
	}
	return it.body, nil
}

// GetItem reconstructs an Item bound to the owning namespace's PayloadType
// and TagsMatcher.
func (it *Iterator) GetItem() (*Item, error) {
	if it.qr.flags.Has(FlagPtrs) {
		if it.qr.ptrs == nil {
			return nil, coreerrors.New(coreerrors.KindLogic, "ptrs body requires a PtrResolver")
		}
		resolved, err := it.qr.ptrs.Resolve(int64(it.params.ID))
		if err != nil {
			return nil, err
		}
		return decodeItemBody(it.qr.ns, resolved, it.qr.flags)
	}
	return decodeItemBody(it.qr.ns, it.body, it.qr.flags)
}

func decodeItemBody(ns *Namespace, body []byte, flags Flags) (*Item, error) {
	switch {
	case flags.Has(FlagCJSON):
		fields, err := DecodeCJSON(body, ns.Matcher)
		if err != nil {
			return nil, err
		}
		val := payloadFromFields(ns, fields)
		return NewItem(ns, val), nil
	default:
		return nil, coreerrors.New(coreerrors.KindNotValid, "GetItem requires a cjson body; got flags %x", flags)
	}
}
