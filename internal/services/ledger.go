// internal/services/ledger.go
package services

import (
	"sync"

	apperrors "github.com/yusukekikuta0509/projectKAIKA/internal/errors"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
)

// LedgerStore is the per-session mock ledger: balances, ownership and history.
// Ownership only ever goes from false to true.
type LedgerStore interface {
	Balances() models.Balances
	SetBalances(b models.Balances)
	Feeling(id string) (models.Feeling, bool)
	Feelings() []models.Feeling
	MarkOwned(id string) error
	Transactions() []models.Transaction
	Record(tx models.Transaction)
}

// MemoryLedger keeps everything in memory for the life of a session.
type MemoryLedger struct {
	mu           sync.RWMutex
	balances     models.Balances
	feelings     []models.Feeling
	index        map[string]int
	transactions []models.Transaction
}

// NewMemoryLedger copies catalog so sessions never share ownership state.
func NewMemoryLedger(catalog []models.Feeling, balances models.Balances, history []models.Transaction) *MemoryLedger {
	l := &MemoryLedger{
		balances:     balances,
		feelings:     make([]models.Feeling, len(catalog)),
		index:        make(map[string]int, len(catalog)),
		transactions: append([]models.Transaction(nil), history...),
	}
	copy(l.feelings, catalog)
	for i, f := range l.feelings {
		l.index[f.ID] = i
	}
	return l
}

func (l *MemoryLedger) Balances() models.Balances {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances
}

func (l *MemoryLedger) SetBalances(b models.Balances) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = b
}

func (l *MemoryLedger) Feeling(id string) (models.Feeling, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return models.Feeling{}, false
	}
	return l.feelings[i], true
}

func (l *MemoryLedger) Feelings() []models.Feeling {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Feeling(nil), l.feelings...)
}

func (l *MemoryLedger) MarkOwned(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return apperrors.NewNotFoundError("feeling "+id, nil)
	}
	l.feelings[i].Owned = true
	return nil
}

// Transactions returns the history newest first.
func (l *MemoryLedger) Transactions() []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Transaction(nil), l.transactions...)
}

// Record prepends tx to the history.
func (l *MemoryLedger) Record(tx models.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transactions = append([]models.Transaction{tx}, l.transactions...)
}
