package binding

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/query"
	"github.com/kartikbazzad/docucore/internal/results"
	"github.com/kartikbazzad/docucore/internal/variant"
)

// forgedTagBody hand-encodes a CJSON body whose first (and only) tag is
// one no matcher will ever resolve, to drive decodeBody's tags-missmatch
// path independently of a stale caller-supplied state token.
func forgedTagBody(tag int) []byte {
	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, uint64(tag))
	return tmp[:n]
}

func personFields(id int64, age int, name string) map[string]variant.Variant {
	return map[string]variant.Variant{
		"id":   variant.Int64(id),
		"age":  variant.Int(age),
		"name": variant.String(name),
	}
}

func openPersonNamespace(t *testing.T, handle int64) {
	t.Helper()
	require.NoError(t, OpenNamespace(handle, "person"))
	require.NoError(t, SetSchema(handle, "person", []SchemaField{
		{Name: "id", Kind: "int64"},
		{Name: "age", Kind: "int"},
		{Name: "name", Kind: "string"},
	}))
}

func personCJSONBody(t *testing.T, e *namespaceEntry, id int64, age int, name string) []byte {
	t.Helper()
	item := results.ItemFromFields(e.ns, personFields(id, age, name))
	body, err := results.EncodeCJSON(item)
	require.NoError(t, err)
	return body
}

func TestInitDestroyLifecycle(t *testing.T) {
	handle := Init()
	require.NotZero(t, handle)

	_, err := getInstance(handle)
	require.NoError(t, err)

	require.NoError(t, Destroy(handle))
	_, err = getInstance(handle)
	require.Error(t, err)
	require.Equal(t, coreerrors.KindNotFound, coreerrors.KindOf(err))
}

func TestOpenNamespaceIsIdempotent(t *testing.T) {
	handle := Init()
	defer Destroy(handle)

	require.NoError(t, OpenNamespace(handle, "person"))
	require.NoError(t, OpenNamespace(handle, "person"))

	require.NoError(t, DropNamespace(handle, "person"))
	require.Error(t, DropNamespace(handle, "person"))
}

func TestModifyItemPackedInsertUpdateDelete(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)

	insertBody := personCJSONBody(t, e, 1, 30, "Ada")
	buf := ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, insertBody)
	require.False(t, buf.IsError(), "insert: %s", buf.Data)
	require.NotZero(t, buf.ResultsHandle)
	require.NoError(t, FreeBuffer(handle, buf))

	updateBody := personCJSONBody(t, e, 1, 31, "Ada Lovelace")
	buf = ModifyItemPacked(handle, "person", FormatCJSON, ModeUpdate, e.ns.Matcher.Version(), 1, updateBody)
	require.False(t, buf.IsError(), "update: %s", buf.Data)
	require.NoError(t, FreeBuffer(handle, buf))

	e.mu.Lock()
	stored, ok := e.items[1]
	e.mu.Unlock()
	require.True(t, ok)
	item := results.NewItem(e.ns, stored)
	name, err := item.Get("name")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", name.AsString())

	deleteBody := personCJSONBody(t, e, 1, 0, "")
	buf = ModifyItemPacked(handle, "person", FormatCJSON, ModeDelete, e.ns.Matcher.Version(), 1, deleteBody)
	require.False(t, buf.IsError(), "delete: %s", buf.Data)
	require.Zero(t, buf.ResultsHandle)

	e.mu.Lock()
	_, ok = e.items[1]
	e.mu.Unlock()
	require.False(t, ok)
}

func TestModifyItemPackedStateInvalidatedFailsHard(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)

	staleToken := e.ns.Matcher.Version()
	e.ns.Matcher.NewTag("unrelated_field_bumping_the_version")

	body := personCJSONBody(t, e, 1, 1, "x")
	buf := ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, staleToken, 0, body)
	require.True(t, buf.IsError())
}

func TestFreeBufferExactlyOnce(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)

	body := personCJSONBody(t, e, 1, 1, "x")
	buf := ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, body)
	require.False(t, buf.IsError())

	require.NoError(t, FreeBuffer(handle, buf))
	err = FreeBuffer(handle, buf)
	require.ErrorIs(t, err, coreerrors.ErrHandleFreedTwice)
}

// TestModifyItemPackedRetriesOnceThenSurfacesPersistentTagsMismatch covers
// decodeBody reporting a tags-missmatch for a tag no matcher will ever
// resolve: ModifyItemPacked retries the decode-and-apply step exactly
// once (wiring Classifier.ShouldRetryOnce) and, since the retry can't
// succeed either, surfaces the same KindTagsMissmatch error rather than
// looping or silently swallowing it.
func TestModifyItemPackedRetriesOnceThenSurfacesPersistentTagsMismatch(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)

	seedBody := personCJSONBody(t, e, 1, 30, "Ada")
	buf := ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, seedBody)
	require.False(t, buf.IsError())
	require.NoError(t, FreeBuffer(handle, buf))

	buf = ModifyItemPacked(handle, "person", FormatCJSON, ModeUpdate, e.ns.Matcher.Version(), 1, forgedTagBody(999999))
	require.True(t, buf.IsError())
	require.Equal(t, coreerrors.KindTagsMissmatch, coreerrors.KindOf(buf.Err()))
}

func TestStartTransactionModifyItemPackedTxRetriesOnceOnTagsMismatch(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)

	seedBody := personCJSONBody(t, e, 1, 30, "Ada")
	buf := ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, seedBody)
	require.False(t, buf.IsError())
	require.NoError(t, FreeBuffer(handle, buf))

	staleToken := e.ns.Matcher.Version()
	staleBody := personCJSONBody(t, e, 1, 99, "Stale")
	e.ns.Matcher.NewTag("unrelated_field_bumping_the_version")

	txHandle, err := StartTransaction(handle, "person")
	require.NoError(t, err)

	require.NoError(t, ModifyItemPackedTx(handle, txHandle, FormatCJSON, ModeUpdate, staleToken, 1, staleBody))

	commitBuf := CommitTransaction(handle, txHandle)
	require.False(t, commitBuf.IsError(), "commit: %s", commitBuf.Data)
	require.NoError(t, FreeBuffer(handle, commitBuf))

	e.mu.Lock()
	stored := e.items[1]
	e.mu.Unlock()
	item := results.NewItem(e.ns, stored)
	name, err := item.Get("name")
	require.NoError(t, err)
	require.Equal(t, "Stale", name.AsString(), "the packed body's fields win, merged onto the freshly fetched item")
}

func TestRollbackTransactionDiscardsSteps(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)

	txHandle, err := StartTransaction(handle, "person")
	require.NoError(t, err)

	body := personCJSONBody(t, e, 1, 1, "x")
	require.NoError(t, ModifyItemPackedTx(handle, txHandle, FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, body))

	require.NoError(t, RollbackTransaction(handle, txHandle))
	_, err = in.getTx(txHandle)
	require.Error(t, err)

	e.mu.Lock()
	_, ok := e.items[1]
	e.mu.Unlock()
	require.False(t, ok, "rolled-back steps must never reach the store")
}

func TestAddIndexWiresFulltextForTextType(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	require.NoError(t, AddIndex(handle, "person", IndexDef{Name: "name", Type: "text"}))
	require.Error(t, AddIndex(handle, "person", IndexDef{Name: "name", Type: "text"}))

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)
	e.mu.Lock()
	_, ok := e.fulltextIdx["name"]
	e.mu.Unlock()
	require.True(t, ok)

	require.NoError(t, DropIndex(handle, "person", "name"))
	e.mu.Lock()
	_, ok = e.fulltextIdx["name"]
	e.mu.Unlock()
	require.False(t, ok)
}

func TestPutGetMetaRoundTrip(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	require.NoError(t, PutMeta(handle, "person", "schema-version", "3"))
	got, err := GetMeta(handle, "person", "schema-version")
	require.NoError(t, err)
	require.Equal(t, "3", got)

	_, err = GetMeta(handle, "person", "missing")
	require.Error(t, err)
	require.Equal(t, coreerrors.KindNotFound, coreerrors.KindOf(err))
}

// stubExecutor implements both Executor and MutationExecutor for exercising
// select/select_query/update_query/delete_query without an actual
// predicate-matching engine.
type stubExecutor struct {
	lastQuery []byte
	lastNS    string
	applyN    int
	applyErr  error
}

func (s *stubExecutor) Execute(ns *results.Namespace, q []byte, asJSON bool) (*results.QueryResults, error) {
	s.lastQuery = q
	s.lastNS = ns.Name
	qr := results.New(results.FlagJSON)
	if err := qr.Bind(ns, nil, []byte{}, 0, 0, 0); err != nil {
		return nil, err
	}
	return qr, nil
}

func (s *stubExecutor) Apply(ns *results.Namespace, q *query.Query) (int, error) {
	if s.applyErr != nil {
		return 0, s.applyErr
	}
	return s.applyN, nil
}

func TestSelectDelegatesToWiredExecutor(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)
	exec := &stubExecutor{}
	require.NoError(t, SetExecutor(handle, exec))

	buf := Select(handle, "person", "select * from person", true, []int{1})
	require.False(t, buf.IsError())
	require.Equal(t, "select * from person", string(exec.lastQuery))
	require.NoError(t, FreeBuffer(handle, buf))
}

func TestSelectWithoutWiredExecutorFails(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	buf := Select(handle, "person", "select * from person", true, nil)
	require.True(t, buf.IsError())
}

func TestUpdateQueryAndDeleteQueryUseMutationExecutor(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)
	exec := &stubExecutor{applyN: 4}
	require.NoError(t, SetExecutor(handle, exec))

	q := &query.Query{Namespace: "person", Type: query.TypeSelect}
	data := query.Encode(q)

	buf := UpdateQuery(handle, "person", data)
	require.False(t, buf.IsError(), "update_query: %s", buf.Data)
	require.NoError(t, FreeBuffer(handle, buf))

	buf = DeleteQuery(handle, "person", data)
	require.False(t, buf.IsError(), "delete_query: %s", buf.Data)
	require.NoError(t, FreeBuffer(handle, buf))
}

// TestCancelContext covers canceling a context making a subsequent poll
// against it report canceled.
func TestCancelContext(t *testing.T) {
	handle := Init()
	defer Destroy(handle)

	info, sc, err := AcquireContext(handle)
	require.NoError(t, err)
	require.NoError(t, sc.Poll())

	require.NoError(t, CancelContext(info, HowExplicit))
	err = sc.Poll()
	require.Error(t, err)
}

// TestModifyItemPackedPoolExhaustion drives the pool-exhaustion case
// through the binding surface: acquiring kMaxConcurentQueries results
// without releasing makes the next one fail with too-many-parallel-queries;
// releasing one lets it succeed again.
func TestModifyItemPackedPoolExhaustion(t *testing.T) {
	handle := Init()
	defer Destroy(handle)
	openPersonNamespace(t, handle)

	in, err := getInstance(handle)
	require.NoError(t, err)
	e, err := in.namespace("person")
	require.NoError(t, err)

	const kMaxConcurentQueries = 65534
	held := make([]Buffer, 0, kMaxConcurentQueries)
	for i := int64(1); i <= kMaxConcurentQueries; i++ {
		body := personCJSONBody(t, e, i, 1, "x")
		buf := ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, body)
		require.False(t, buf.IsError(), "acquire %d: %s", i, buf.Data)
		held = append(held, buf)
	}

	body := personCJSONBody(t, e, kMaxConcurentQueries+1, 1, "x")
	buf := ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, body)
	require.True(t, buf.IsError())
	require.Equal(t, int32(coreerrors.KindTooManyParallelQueries)+1, buf.ErrCode)

	require.NoError(t, FreeBuffer(handle, held[0]))
	buf = ModifyItemPacked(handle, "person", FormatCJSON, ModeInsert, e.ns.Matcher.Version(), 0, body)
	require.False(t, buf.IsError())
	require.NoError(t, FreeBuffer(handle, buf))

	for _, b := range held[1:] {
		require.NoError(t, FreeBuffer(handle, b))
	}
}
