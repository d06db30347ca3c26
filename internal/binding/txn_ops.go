package binding

import (
	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/query"
	"github.com/kartikbazzad/docucore/internal/results"
	"github.com/kartikbazzad/docucore/internal/txn"
)

// MutationExecutor applies a query-shaped update/delete transaction step
// against stored data. Left external for the same reason Executor is
//; a host
// wires an implementation once it has an actual predicate-matching engine.
type MutationExecutor interface {
	Apply(ns *results.Namespace, q *query.Query) (affected int, err error)
}

func (in *Instance) getTx(txHandle int64) (*txn.Transaction, error) {
	tx, ok := in.txnHandles.get(txHandle)
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "no transaction with handle %d", txHandle)
	}
	return tx, nil
}

// txFreshFetcher adapts a namespaceEntry's item store to
// txn.FreshItemFetcher for the tags-mismatch retry protocol.
type txFreshFetcher struct{ e *namespaceEntry }

func (f txFreshFetcher) FetchFresh(id int64) (*results.Item, error) {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()
	val, ok := f.e.items[id]
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "no item with id %d", id)
	}
	return results.NewItem(f.e.ns, val), nil
}

// ModifyItemPackedTx stages a packed item modification inside an open
// transaction, retrying once against a freshly refetched item on a
// tags-mismatch rather than failing hard the way the non-transactional
// ModifyItemPacked does.
// Mirrors `modify_item_packed_tx(tx, …)`.
func ModifyItemPackedTx(handle, txHandle int64, format Format, mode Mode, stateToken, itemID int64, data []byte) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	tx, err := in.getTx(txHandle)
	if err != nil {
		return err
	}
	e, err := in.namespace(tx.Namespace().Name)
	if err != nil {
		return err
	}

	if format == FormatJSON {
		fields, err := results.DecodeJSON(data, e.ns.Type)
		if err != nil {
			return err
		}
		return tx.ModifyItem(results.ItemFromFields(e.ns, fields), mode)
	}
	return tx.ModifyItemPacked(data, mode, stateToken, itemID, txFreshFetcher{e: e})
}

// UpdateQueryTx stages a query-shaped update inside tx. Mirrors
// `update_query_tx(tx, …)`.
func UpdateQueryTx(handle, txHandle int64, q *query.Query) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	tx, err := in.getTx(txHandle)
	if err != nil {
		return err
	}
	q.Type = query.TypeUpdate
	return tx.ModifyQuery(q)
}

// DeleteQueryTx stages a query-shaped delete inside tx. Mirrors
// `delete_query_tx(tx, …)`.
func DeleteQueryTx(handle, txHandle int64, q *query.Query) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	tx, err := in.getTx(txHandle)
	if err != nil {
		return err
	}
	q.Type = query.TypeDelete
	return tx.ModifyQuery(q)
}

// CommitTransaction applies tx's staged batch atomically and
// returns a result buffer summarizing what changed. Mirrors
// `commit_transaction(tx, ctx_info)`.
func CommitTransaction(handle, txHandle int64) Buffer {
	in, err := getInstance(handle)
	if err != nil {
		return ErrBuffer(err)
	}
	tx, err := in.getTx(txHandle)
	if err != nil {
		return ErrBuffer(err)
	}
	e, err := in.namespace(tx.Namespace().Name)
	if err != nil {
		return ErrBuffer(err)
	}

	steps, err := tx.Commit()
	if err != nil {
		return ErrBuffer(err)
	}
	in.txnHandles.delete(txHandle)

	affected := 0
	for _, step := range steps {
		switch step.Kind {
		case txn.StepModifyItem:
			fields := results.Fields(step.Item)
			requestedID, _ := itemKey(e.ns, fields, 0)
			if _, _, err := applyItemStep(e, fields, step.Mode, requestedID); err != nil {
				return ErrBuffer(err)
			}
			affected++
		case txn.StepModifyQuery:
			me, ok := in.exec.(MutationExecutor)
			if !ok {
				return ErrBuffer(coreerrors.New(coreerrors.KindLogic, "commit: query-shaped transaction step requires a MutationExecutor, none is wired"))
			}
			n, err := me.Apply(e.ns, step.Query)
			if err != nil {
				return ErrBuffer(err)
			}
			affected += n
		}
	}

	return bufferForCount(in, e.ns, affected)
}

// RollbackTransaction discards tx's staged batch. Mirrors
// `rollback_transaction(tx)`.
func RollbackTransaction(handle, txHandle int64) error {
	in, err := getInstance(handle)
	if err != nil {
		return err
	}
	tx, err := in.getTx(txHandle)
	if err != nil {
		return err
	}
	in.txnHandles.delete(txHandle)
	return tx.Rollback()
}
