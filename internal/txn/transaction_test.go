package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/payload"
	"github.com/kartikbazzad/docucore/internal/query"
	"github.com/kartikbazzad/docucore/internal/results"
	"github.com/kartikbazzad/docucore/internal/tags"
	"github.com/kartikbazzad/docucore/internal/variant"
)

func buildPersonNamespace() *results.Namespace {
	pt := payload.NewTypeBuilder("person").
		AddScalar("id", variant.KindInt64, false, 8).
		AddScalar("age", variant.KindInt, false, 8).
		AddScalar("name", variant.KindString, false, 8).
		Build()
	return &results.Namespace{Name: "person", Type: pt, Matcher: tags.New()}
}

func buildPersonItem(ns *results.Namespace, id int64, age int, name string) *results.Item {
	val := payload.New(0, nil, 0)
	acc := payload.NewAccessor(ns.Type, val)
	_ = acc.SetNumeric(0, variant.Int64(id))
	_ = acc.SetNumeric(1, variant.Int(age))
	_ = acc.SetString(2, name)
	return results.NewItem(ns, val)
}

func TestNewItemIsBoundToTransactionNamespace(t *testing.T) {
	ns := buildPersonNamespace()
	tx := newTransaction(ns)

	item := tx.NewItem()
	require.Same(t, ns, item.Namespace())
}

func TestModifyItemStagesAStep(t *testing.T) {
	ns := buildPersonNamespace()
	tx := newTransaction(ns)
	item := buildPersonItem(ns, 1, 30, "Ada")

	require.NoError(t, tx.ModifyItem(item, ModeUpsert))
	require.Equal(t, 1, tx.StepCount())
}

func TestModifyQueryRejectsSelectType(t *testing.T) {
	ns := buildPersonNamespace()
	tx := newTransaction(ns)

	q := &query.Query{Namespace: ns.Name, Type: query.TypeSelect}
	err := tx.ModifyQuery(q)
	require.Error(t, err)
	require.Equal(t, coreerrors.KindParams, coreerrors.KindOf(err))
}

func TestModifyQueryAcceptsUpdateAndDelete(t *testing.T) {
	ns := buildPersonNamespace()
	tx := newTransaction(ns)

	require.NoError(t, tx.ModifyQuery(&query.Query{Namespace: ns.Name, Type: query.TypeUpdate}))
	require.NoError(t, tx.ModifyQuery(&query.Query{Namespace: ns.Name, Type: query.TypeDelete}))
	require.Equal(t, 2, tx.StepCount())
}

func TestCommitFinalizesAndReturnsBatch(t *testing.T) {
	ns := buildPersonNamespace()
	tx := newTransaction(ns)
	require.NoError(t, tx.ModifyItem(buildPersonItem(ns, 1, 1, "x"), ModeInsert))

	steps, err := tx.Commit()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, StateCommitted, tx.State())

	_, err = tx.Commit()
	require.Error(t, err)
	require.Equal(t, coreerrors.KindConflict, coreerrors.KindOf(err))
}

func TestRollbackDiscardsSteps(t *testing.T) {
	ns := buildPersonNamespace()
	tx := newTransaction(ns)
	require.NoError(t, tx.ModifyItem(buildPersonItem(ns, 1, 1, "x"), ModeInsert))

	require.NoError(t, tx.Rollback())
	require.Equal(t, StateRolledBack, tx.State())
	require.Equal(t, 0, tx.StepCount())

	require.Error(t, tx.ModifyItem(buildPersonItem(ns, 2, 2, "y"), ModeInsert))
}

// stubFresh implements FreshItemFetcher, returning a canned item once per id.
type stubFresh struct {
	items map[int64]*results.Item
}

func (s *stubFresh) FetchFresh(id int64) (*results.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "no item with id %d", id)
	}
	return it, nil
}

// TestModifyItemPackedRetriesOnceOnTagsMismatch covers a packed body
// carrying a stale state token failing once, the transaction refreshing
// the item from the database, and the retry against the transaction's
// current matcher succeeding.
func TestModifyItemPackedRetriesOnceOnTagsMismatch(t *testing.T) {
	ns := buildPersonNamespace()

	// Encode a body against ns.Matcher while it's fresh (token 0), then
	// advance the matcher so that token is now stale, simulating a client
	// that built its packed body against an older tags version.
	staleToken := ns.Matcher.Version()
	producer := buildPersonItem(ns, 1, 99, "Stale")
	body, err := results.EncodeCJSON(producer)
	require.NoError(t, err)

	ns.Matcher.NewTag("unrelated_field_bumping_the_version")
	require.NotEqual(t, staleToken, ns.Matcher.Version())

	tx := newTransaction(ns)
	fresh := &stubFresh{items: map[int64]*results.Item{
		1: buildPersonItem(ns, 1, 30, "Ada"),
	}}

	require.NoError(t, tx.ModifyItemPacked(body, ModeUpdate, staleToken, 1, fresh))
	require.Equal(t, 1, tx.StepCount())

	name, err := tx.steps[0].Item.Get("name")
	require.NoError(t, err)
	require.Equal(t, "Stale", name.AsString(), "the packed body's fields win, merged onto the freshly fetched item")
}

func TestModifyItemPackedSurfacesFetchFreshError(t *testing.T) {
	ns := buildPersonNamespace()

	staleToken := ns.Matcher.Version()
	body, err := results.EncodeCJSON(buildPersonItem(ns, 1, 1, "x"))
	require.NoError(t, err)
	ns.Matcher.NewTag("unrelated_field_bumping_the_version")

	tx := newTransaction(ns)
	fresh := &stubFresh{items: map[int64]*results.Item{}}

	err = tx.ModifyItemPacked(body, ModeUpdate, staleToken, 1, fresh)
	require.Error(t, err)
	require.Equal(t, coreerrors.KindNotFound, coreerrors.KindOf(err))
	require.Equal(t, 0, tx.StepCount())
}

func TestManagerBeginGetCommitForgets(t *testing.T) {
	ns := buildPersonNamespace()
	m := NewManager()

	tx := m.Begin(ns)
	require.Equal(t, 1, m.Live())

	got, err := m.Get(tx.ID)
	require.NoError(t, err)
	require.Same(t, tx, got)

	require.NoError(t, tx.ModifyItem(buildPersonItem(ns, 1, 1, "x"), ModeInsert))
	steps, err := m.Commit(tx.ID)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	require.Equal(t, 0, m.Live())

	_, err = m.Get(tx.ID)
	require.Error(t, err)
}

func TestManagerRollback(t *testing.T) {
	ns := buildPersonNamespace()
	m := NewManager()

	tx := m.Begin(ns)
	require.NoError(t, m.Rollback(tx.ID))
	require.Equal(t, 0, m.Live())
	require.Equal(t, StateRolledBack, tx.State())
}
