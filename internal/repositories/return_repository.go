package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/models"
)

type returnRepository struct {
	db *db.DB
}

// NewReturnRepository creates a new return row repository
func NewReturnRepository(database *db.DB) ReturnRepository {
	return &returnRepository{db: database}
}

func (r *returnRepository) UpsertBatch(ctx context.Context, rows []models.ReturnRow) error {
	for i := range rows {
		if rows[i].PortfolioID == "" {
			return errors.New("return row requires portfolio_id")
		}
	}
	return upsertRow(ctx, r.db.DB, rows, "portfolio_id", "date")
}

func (r *returnRepository) List(ctx context.Context, portfolioID string, from, to time.Time) ([]models.ReturnRow, error) {
	return readTable[models.ReturnRow](ctx, r.db.DB, "date ASC",
		"portfolio_id = ? AND date >= ? AND date <= ?", portfolioID, models.Day(from), models.Day(to))
}
