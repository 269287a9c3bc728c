package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tropicaldog17/navledger/internal/accrual"
	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/models"
)

type accrualRepository struct {
	db *db.DB
}

// NewAccrualRepository creates a new monthly accrual buffer repository
func NewAccrualRepository(database *db.DB) AccrualRepository {
	return &accrualRepository{db: database}
}

// Get returns the buffer row for (month, portfolio), nil when none exists.
func (r *accrualRepository) Get(ctx context.Context, month, portfolioID string) (*models.CashAccrualRow, error) {
	row, err := readOne[models.CashAccrualRow](ctx, r.db.DB, "month = ? AND portfolio_id = ?", month, portfolioID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return row, err
}

func (r *accrualRepository) Upsert(ctx context.Context, row *models.CashAccrualRow) error {
	if row == nil || row.Month == "" || row.PortfolioID == "" {
		return fmt.Errorf("accrual row requires month and portfolio_id")
	}
	return upsertRow(ctx, r.db.DB, []models.CashAccrualRow{*row}, "month", "portfolio_id")
}

func (r *accrualRepository) List(ctx context.Context, portfolioID string) ([]models.CashAccrualRow, error) {
	return readTable[models.CashAccrualRow](ctx, r.db.DB, "month ASC", "portfolio_id = ?", portfolioID)
}

// accrualStore backs accrual.Accruer with the transaction and buffer tables.
type accrualStore struct {
	db           *db.DB
	transactions TransactionRepository
	accruals     AccrualRepository
}

// NewAccrualStore creates the storage used by the interest accruer. Atomic
// runs its callback inside one database transaction.
func NewAccrualStore(database *db.DB) accrual.Store {
	return &accrualStore{
		db:           database,
		transactions: NewTransactionRepository(database),
		accruals:     NewAccrualRepository(database),
	}
}

func (s *accrualStore) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return tx, err
}

func (s *accrualStore) ListTransactions(ctx context.Context, filter *models.TransactionFilter) ([]models.Transaction, error) {
	return s.transactions.List(ctx, filter)
}

func (s *accrualStore) UpsertTransaction(ctx context.Context, tx *models.Transaction) error {
	return s.transactions.Upsert(ctx, tx)
}

func (s *accrualStore) DeleteTransactions(ctx context.Context, ids []string) (int64, error) {
	return s.transactions.DeleteMany(ctx, ids)
}

func (s *accrualStore) GetAccrual(ctx context.Context, month, portfolioID string) (*models.CashAccrualRow, error) {
	return s.accruals.Get(ctx, month, portfolioID)
}

func (s *accrualStore) UpsertAccrual(ctx context.Context, row *models.CashAccrualRow) error {
	return s.accruals.Upsert(ctx, row)
}

func (s *accrualStore) Atomic(ctx context.Context, fn func(accrual.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewAccrualStore(&db.DB{DB: tx}))
	})
}
