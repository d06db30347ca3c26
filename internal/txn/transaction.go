// Package txn implements Transaction: a batched sequence of item
// modifications and query-shaped updates/deletes over one namespace,
// applied atomically on Commit.
package txn

import (
	"sync"

	"github.com/google/uuid"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/query"
	"github.com/kartikbazzad/docucore/internal/results"
)

// classifier decides whether a given error kind should be retried once
// rather than surfaced straight to the caller.
var classifier = coreerrors.NewClassifier()

// ItemMode selects how a staged item step is applied at commit, mirroring
// a modify(item, mode) operation.
type ItemMode int

const (
	ModeUpsert ItemMode = iota
	ModeInsert
	ModeUpdate
	ModeDelete
)

// State is the lifecycle of a Transaction, grounded on the TxState enum
// in docdb/internal/docdb/transaction.go.
type State int

const (
	StateOpen State = iota
	StateCommitted
	StateRolledBack
)

// StepKind distinguishes an item-shaped step from a query-shaped one.
type StepKind int

const (
	StepModifyItem StepKind = iota
	StepModifyQuery
)

// Step is one staged operation in a transaction's batch.
type Step struct {
	Kind  StepKind
	Item  *results.Item // set when Kind == StepModifyItem
	Mode  ItemMode      // set when Kind == StepModifyItem
	Query *query.Query  // set when Kind == StepModifyQuery; Query.Type must be TypeUpdate or TypeDelete
}

// FreshItemFetcher refreshes an item from the database by its id, the
// collaborator ModifyItemPacked calls when a stale state token is
// detected.
type FreshItemFetcher interface {
	FetchFresh(id int64) (*results.Item, error)
}

// Transaction batches item and query modifications over one namespace
// for atomic application at Commit.
type Transaction struct {
	mu sync.Mutex

	ID    uuid.UUID
	ns    *results.Namespace
	state State
	steps []Step
}

func newTransaction(ns *results.Namespace) *Transaction {
	return &Transaction{ID: uuid.New(), ns: ns, state: StateOpen}
}

// NewItem returns a fresh Item bound to the transaction's namespace, and
// therefore to its tags matcher.
func (tx *Transaction) NewItem() *results.Item {
	return results.NewItem(tx.ns, nil)
}

// ModifyItem stages an item step. Appending to a transaction that is no
// longer open is a protocol error.
func (tx *Transaction) ModifyItem(item *results.Item, mode ItemMode) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != StateOpen {
		return coreerrors.New(coreerrors.KindConflict, "transaction %s is not open", tx.ID)
	}
	tx.steps = append(tx.steps, Step{Kind: StepModifyItem, Item: item, Mode: mode})
	return nil
}

// ModifyQuery stages a query-shaped update or delete.
func (tx *Transaction) ModifyQuery(q *query.Query) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != StateOpen {
		return coreerrors.New(coreerrors.KindConflict, "transaction %s is not open", tx.ID)
	}
	if q.Type != query.TypeUpdate && q.Type != query.TypeDelete {
		return coreerrors.New(coreerrors.KindParams, "transaction query step must be update or delete, got %v", q.Type)
	}
	tx.steps = append(tx.steps, Step{Kind: StepModifyQuery, Query: q})
	return nil
}

// ModifyItemPacked stages an item built by decoding a packed CJSON body,
// implementing the tags-mismatch retry protocol: a stateToken older than
// the namespace matcher's current version fails once, the caller
// refreshes the named item from the database via fresh, and the retry is
// attempted exactly once more. The transaction's own matcher reference is
// never rewritten by this retry — only the freshly fetched item observes
// the current version; reconciling the transaction's own matcher is out
// of scope here (see DESIGN.md's Open Question resolution).
func (tx *Transaction) ModifyItemPacked(body []byte, mode ItemMode, stateToken int64, id int64, fresh FreshItemFetcher) error {
	err := tx.ns.Matcher.CheckToken(stateToken)
	if err == nil {
		fields, decErr := results.DecodeCJSON(body, tx.ns.Matcher)
		if decErr != nil {
			return decErr
		}
		return tx.ModifyItem(results.ItemFromFields(tx.ns, fields), mode)
	}
	if !classifier.ShouldRetryOnce(coreerrors.KindOf(err)) {
		return err
	}

	freshItem, ferr := fresh.FetchFresh(id)
	if ferr != nil {
		return ferr
	}
	fields, decErr := results.DecodeCJSON(body, tx.ns.Matcher)
	if decErr != nil {
		return decErr
	}
	results.ApplyFields(freshItem, fields)
	return tx.ModifyItem(freshItem, mode)
}

// Commit finalizes the transaction, returning its ordered step batch for
// an external executor to apply atomically. A committed or rolled-back
// transaction cannot be committed again.
func (tx *Transaction) Commit() ([]Step, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != StateOpen {
		return nil, coreerrors.New(coreerrors.KindConflict, "transaction %s already finalized", tx.ID)
	}
	tx.state = StateCommitted
	return tx.steps, nil
}

// Rollback discards the transaction's staged steps.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != StateOpen {
		return coreerrors.New(coreerrors.KindConflict, "transaction %s already finalized", tx.ID)
	}
	tx.state = StateRolledBack
	tx.steps = nil
	return nil
}

func (tx *Transaction) State() State   { return tx.state }
func (tx *Transaction) StepCount() int { return len(tx.steps) }

// Namespace returns the namespace the transaction is bound to.
func (tx *Transaction) Namespace() *results.Namespace { return tx.ns }
