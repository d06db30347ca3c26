package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/docucore/internal/binding"
	"github.com/kartikbazzad/docucore/internal/query"
	"github.com/kartikbazzad/docucore/internal/results"
)

func openTestPersonNamespace(t *testing.T) (*Client, *Namespace) {
	t.Helper()
	c, err := Open("memory://test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ns, err := c.Namespace("person")
	require.NoError(t, err)
	require.NoError(t, ns.SetSchema([]binding.SchemaField{
		{Name: "id", Kind: "int64"},
		{Name: "age", Kind: "int"},
		{Name: "name", Kind: "string"},
	}))
	return c, ns
}

func TestNamespaceInsertUpdateDeleteRoundTrip(t *testing.T) {
	_, ns := openTestPersonNamespace(t)

	inserted, err := ns.Insert(map[string]any{"id": float64(1), "age": float64(30), "name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "Ada", inserted["name"])

	updated, err := ns.Update(1, map[string]any{"name": "Ada Lovelace"})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", updated["name"])

	require.NoError(t, ns.Delete(1))
	_, err = ns.Update(1, map[string]any{"name": "gone"})
	require.Error(t, err)
}

func TestNamespaceUpsertInsertsThenMerges(t *testing.T) {
	_, ns := openTestPersonNamespace(t)

	first, err := ns.Upsert(map[string]any{"id": float64(7), "age": float64(1), "name": "x"})
	require.NoError(t, err)
	require.EqualValues(t, 7, first["id"])

	second, err := ns.Upsert(map[string]any{"id": float64(7), "age": float64(2)})
	require.NoError(t, err)
	require.EqualValues(t, 2, second["age"])
	require.Equal(t, "x", second["name"], "upsert-as-update must not clobber fields absent from the new doc")
}

func TestNamespaceAddIndexAndMeta(t *testing.T) {
	_, ns := openTestPersonNamespace(t)

	require.NoError(t, ns.AddIndex(binding.IndexDef{Name: "name", Type: "text"}))
	require.NoError(t, ns.PutMeta("k", "v"))
	got, err := ns.GetMeta("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
}

func TestTransactionCommitAppliesStagedSteps(t *testing.T) {
	_, ns := openTestPersonNamespace(t)

	tx, err := ns.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(map[string]any{"id": float64(1), "age": float64(1), "name": "a"}))
	require.NoError(t, tx.Insert(map[string]any{"id": float64(2), "age": float64(2), "name": "b"}))

	n, err := tx.Commit()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestTransactionRollbackDiscardsStagedSteps(t *testing.T) {
	_, ns := openTestPersonNamespace(t)

	tx, err := ns.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Insert(map[string]any{"id": float64(1), "age": float64(1), "name": "a"}))
	require.NoError(t, tx.Rollback())

	_, err = ns.Update(1, map[string]any{"name": "gone"})
	require.Error(t, err)
}

// stubExecutor satisfies binding.Executor and binding.MutationExecutor for
// exercising Select/UpdateByQuery/DeleteByQuery without a real predicate
// engine wired in.
type stubExecutor struct{ docs []map[string]any }

func (s *stubExecutor) Execute(ns *results.Namespace, q []byte, asJSON bool) (*results.QueryResults, error) {
	qr := results.New(results.FlagJSON)
	if err := qr.Bind(ns, nil, []byte{}, 0, 0, 0); err != nil {
		return nil, err
	}
	return qr, nil
}

func (s *stubExecutor) Apply(ns *results.Namespace, q *query.Query) (int, error) {
	return len(s.docs), nil
}

func TestSelectDelegatesToWiredExecutor(t *testing.T) {
	c, ns := openTestPersonNamespace(t)
	require.NoError(t, c.SetExecutor(&stubExecutor{}))

	docs, err := ns.Select("select * from person")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestSelectWithoutExecutorFails(t *testing.T) {
	_, ns := openTestPersonNamespace(t)
	_, err := ns.Select("select * from person")
	require.Error(t, err)
}
