package txn

import (
	"sync"

	"github.com/google/uuid"

	coreerrors "github.com/kartikbazzad/docucore/internal/errors"
	"github.com/kartikbazzad/docucore/internal/results"
)

// Manager tracks every open Transaction by id, grounded on
// TransactionManager (docdb/internal/docdb/transaction.go) but adapted
// from a uint64-counter-keyed map to uuid-keyed transactions, matching
// the id scheme internal/respool's context table already uses.
type Manager struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]*Transaction
}

// NewManager returns an empty transaction manager.
func NewManager() *Manager {
	return &Manager{txs: make(map[uuid.UUID]*Transaction)}
}

// Begin opens a new transaction bound to ns and starts tracking it.
func (m *Manager) Begin(ns *results.Namespace) *Transaction {
	tx := newTransaction(ns)
	m.mu.Lock()
	m.txs[tx.ID] = tx
	m.mu.Unlock()
	return tx
}

// Get looks up a tracked transaction by id.
func (m *Manager) Get(id uuid.UUID) (*Transaction, error) {
	m.mu.RLock()
	tx, ok := m.txs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, coreerrors.New(coreerrors.KindNotFound, "no transaction with id %s", id)
	}
	return tx, nil
}

// Commit finalizes the transaction identified by id and stops tracking it.
func (m *Manager) Commit(id uuid.UUID) ([]Step, error) {
	tx, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	steps, err := tx.Commit()
	m.forget(id)
	return steps, err
}

// Rollback discards the transaction identified by id and stops tracking it.
func (m *Manager) Rollback(id uuid.UUID) error {
	tx, err := m.Get(id)
	if err != nil {
		return err
	}
	err = tx.Rollback()
	m.forget(id)
	return err
}

func (m *Manager) forget(id uuid.UUID) {
	m.mu.Lock()
	delete(m.txs, id)
	m.mu.Unlock()
}

// Live reports the number of transactions currently tracked (open or
// finalized-but-not-yet-forgotten via direct tx.Commit()/tx.Rollback()
// calls bypassing the manager).
func (m *Manager) Live() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
