package repositories

import (
	"context"
	"time"

	"github.com/tropicaldog17/navledger/internal/models"
)

// TransactionRepository defines the interface for transaction log operations
type TransactionRepository interface {
	Upsert(ctx context.Context, tx *models.Transaction) error
	UpsertBatch(ctx context.Context, txs []models.Transaction) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	List(ctx context.Context, filter *models.TransactionFilter) ([]models.Transaction, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	PortfolioIDs(ctx context.Context) ([]string, error)
	FirstDate(ctx context.Context, portfolioID string) (*time.Time, error)
}

// PriceRepository defines the interface for stored daily closes
type PriceRepository interface {
	UpsertBatch(ctx context.Context, points []models.PricePoint) error
	ListRange(ctx context.Context, ticker string, from, to time.Time) ([]models.PricePoint, error)
	ListUpTo(ctx context.Context, tickers []string, to time.Time) ([]models.PricePoint, error)
}

// AccrualRepository defines the interface for monthly interest buffers
type AccrualRepository interface {
	Get(ctx context.Context, month, portfolioID string) (*models.CashAccrualRow, error)
	Upsert(ctx context.Context, row *models.CashAccrualRow) error
	List(ctx context.Context, portfolioID string) ([]models.CashAccrualRow, error)
}

// SnapshotRepository defines the interface for persisted NAV snapshots
type SnapshotRepository interface {
	UpsertBatch(ctx context.Context, snaps []models.NAVSnapshot) error
	List(ctx context.Context, portfolioID string, from, to time.Time) ([]models.NAVSnapshot, error)
	Latest(ctx context.Context, portfolioID string) (*models.NAVSnapshot, error)
}

// ReturnRepository defines the interface for persisted daily returns
type ReturnRepository interface {
	UpsertBatch(ctx context.Context, rows []models.ReturnRow) error
	List(ctx context.Context, portfolioID string, from, to time.Time) ([]models.ReturnRow, error)
}
