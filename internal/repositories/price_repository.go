package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/models"
)

type priceRepository struct {
	db *db.DB
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(database *db.DB) PriceRepository {
	return &priceRepository{db: database}
}

func (r *priceRepository) UpsertBatch(ctx context.Context, points []models.PricePoint) error {
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return fmt.Errorf("invalid price %s %s: %w", points[i].Ticker, models.DateKey(points[i].Date), err)
		}
		points[i].Date = models.Day(points[i].Date)
	}
	return upsertRow(ctx, r.db.DB, points, "ticker", "date")
}

func (r *priceRepository) ListRange(ctx context.Context, ticker string, from, to time.Time) ([]models.PricePoint, error) {
	return readTable[models.PricePoint](ctx, r.db.DB, "date ASC",
		"ticker = ? AND date >= ? AND date <= ?", ticker, models.Day(from), models.Day(to))
}

// ListUpTo returns every stored close of tickers dated on or before to, so
// the caller can carry the last one forward.
func (r *priceRepository) ListUpTo(ctx context.Context, tickers []string, to time.Time) ([]models.PricePoint, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	return readTable[models.PricePoint](ctx, r.db.DB, "ticker ASC, date ASC",
		"ticker IN ? AND date <= ?", tickers, models.Day(to))
}
