package repositories

import (
	"context"
	"time"

	"github.com/tropicaldog17/navledger/internal/db"
	"github.com/tropicaldog17/navledger/internal/models"
)

type snapshotRepository struct {
	db *db.DB
}

// NewSnapshotRepository creates a new NAV snapshot repository
func NewSnapshotRepository(database *db.DB) SnapshotRepository {
	return &snapshotRepository{db: database}
}

func (r *snapshotRepository) UpsertBatch(ctx context.Context, snaps []models.NAVSnapshot) error {
	return upsertRow(ctx, r.db.DB, snaps, "portfolio_id", "date")
}

func (r *snapshotRepository) List(ctx context.Context, portfolioID string, from, to time.Time) ([]models.NAVSnapshot, error) {
	return readTable[models.NAVSnapshot](ctx, r.db.DB, "date ASC",
		"portfolio_id = ? AND date >= ? AND date <= ?", portfolioID, models.Day(from), models.Day(to))
}

// Latest returns the most recent snapshot, nil when none exists.
func (r *snapshotRepository) Latest(ctx context.Context, portfolioID string) (*models.NAVSnapshot, error) {
	rows, err := readTable[models.NAVSnapshot](ctx, r.db.Limit(1), "date DESC", "portfolio_id = ?", portfolioID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
