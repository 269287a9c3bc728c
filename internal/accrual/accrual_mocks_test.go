package accrual

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/tropicaldog17/navledger/internal/models"
)

// memStore is an in-memory Store.
type memStore struct {
	txs      map[string]models.Transaction
	accruals map[string]models.CashAccrualRow

	upserts  int
	failList error
	atomics  int
}

func newMemStore(seed ...models.Transaction) *memStore {
	s := &memStore{txs: map[string]models.Transaction{}, accruals: map[string]models.CashAccrualRow{}}
	for _, tx := range seed {
		s.txs[tx.ID] = tx
	}
	return s
}

func (s *memStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	tx, ok := s.txs[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

func (s *memStore) ListTransactions(_ context.Context, f *models.TransactionFilter) ([]models.Transaction, error) {
	if s.failList != nil {
		return nil, s.failList
	}
	var out []models.Transaction
	for _, tx := range s.txs {
		if f.PortfolioID != "" && tx.PortfolioID != f.PortfolioID {
			continue
		}
		if f.StartDate != nil && tx.Date.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && tx.Date.After(*f.EndDate) {
			continue
		}
		if f.IDPrefix != "" && !strings.HasPrefix(tx.ID, f.IDPrefix) {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, tx.Type) {
			continue
		}
		if containsID(f.ExcludeIDs, tx.ID) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpsertTransaction(_ context.Context, tx *models.Transaction) error {
	s.upserts++
	s.txs[tx.ID] = *tx
	return nil
}

func (s *memStore) DeleteTransactions(_ context.Context, ids []string) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := s.txs[id]; ok {
			delete(s.txs, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) GetAccrual(_ context.Context, month, portfolioID string) (*models.CashAccrualRow, error) {
	row, ok := s.accruals[month+"/"+portfolioID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *memStore) UpsertAccrual(_ context.Context, row *models.CashAccrualRow) error {
	if row.Month == "" || row.PortfolioID == "" {
		return errors.New("accrual row key is incomplete")
	}
	s.accruals[row.Month+"/"+row.PortfolioID] = *row
	return nil
}

func (s *memStore) Atomic(_ context.Context, fn func(Store) error) error {
	s.atomics++
	return fn(s)
}

func (s *memStore) interest(portfolioID string) []models.Transaction {
	var out []models.Transaction
	for _, tx := range s.txs {
		if tx.PortfolioID == portfolioID && tx.Type == models.TypeInterest {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsType(types []models.TransactionType, t models.TransactionType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
