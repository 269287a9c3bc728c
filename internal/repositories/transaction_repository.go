package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/models"
)

type transactionRepository struct {
	db *db.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(database *db.DB) TransactionRepository {
	return &transactionRepository{db: database}
}

func (r *transactionRepository) Upsert(ctx context.Context, tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("nil transaction")
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction %s: %w", tx.ID, err)
	}
	return upsertRow(ctx, r.db.DB, []models.Transaction{*tx}, "id")
}

func (r *transactionRepository) UpsertBatch(ctx context.Context, txs []models.Transaction) error {
	for i := range txs {
		if err := txs[i].Validate(); err != nil {
			return fmt.Errorf("invalid transaction %s: %w", txs[i].ID, err)
		}
	}
	return upsertRow(ctx, r.db.DB, txs, "id")
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("transaction not found: %s", id)
	}
	tx, err := readOne[models.Transaction](ctx, r.db.DB, "id = ?", id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("transaction not found: %s: %w", id, err)
		}
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepository) List(ctx context.Context, filter *models.TransactionFilter) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx)

	// Apply filters
	if filter != nil {
		if filter.PortfolioID != "" {
			query = query.Where("portfolio_id = ?", filter.PortfolioID)
		}
		if filter.StartDate != nil {
			query = query.Where("date >= ?", models.Day(*filter.StartDate))
		}
		if filter.EndDate != nil {
			query = query.Where("date <= ?", models.Day(*filter.EndDate))
		}
		if len(filter.Types) > 0 {
			query = query.Where("type IN ?", filter.Types)
		}
		if filter.IDPrefix != "" {
			query = query.Where("id LIKE ? ESCAPE '\\'", escapeLike(filter.IDPrefix)+"%")
		}
		if len(filter.ExcludeIDs) > 0 {
			query = query.Where("id NOT IN ?", filter.ExcludeIDs)
		}
	}

	// Storage order only; replay order is decided by ledger.Sort.
	query = query.Order("date ASC, id ASC")

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// DeleteMany deletes multiple transactions by IDs
func (r *transactionRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return deleteWhere[models.Transaction](ctx, r.db.DB, "id IN ?", ids)
}

func (r *transactionRepository) PortfolioIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Distinct("portfolio_id").Order("portfolio_id").Pluck("portfolio_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	return ids, nil
}

// FirstDate returns the earliest transaction date of a portfolio, nil when
// its log is empty.
func (r *transactionRepository) FirstDate(ctx context.Context, portfolioID string) (*time.Time, error) {
	var first models.Transaction
	result := r.db.WithContext(ctx).Where("portfolio_id = ?", portfolioID).Order("date ASC").Limit(1).Find(&first)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get first transaction date: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	d := models.Day(first.Date)
	return &d, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}
