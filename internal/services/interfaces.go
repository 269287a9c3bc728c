package services

import (
	"context"
	"time"

	"github.com/tropicaldog17/navledger/internal/accrual"
	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/returns"
)

// DailyCloseService defines the end-of-day pipeline: accrue interest, replay
// the log, then persist NAV snapshots and return rows.
type DailyCloseService interface {
	CloseDate(ctx context.Context, portfolioID string, day time.Time) (*CloseResult, error)
	Backfill(ctx context.Context, portfolioID string, from, to time.Time) (*CloseResult, error)
	CloseAll(ctx context.Context, day time.Time) ([]*CloseResult, error)

	Accrue(ctx context.Context, portfolioID string, day time.Time) (*accrual.Outcome, error)
	Summary(ctx context.Context, portfolioID string, from, to time.Time) (*returns.Summary, error)
	Import(ctx context.Context, portfolioID string, raw []models.RawTransaction) (*ImportResult, error)
}

// CloseResult reports one portfolio run over [From, To].
type CloseResult struct {
	RunID       string
	PortfolioID string
	From        time.Time
	To          time.Time
	Snapshots   []models.NAVSnapshot
	Returns     []models.ReturnRow
	Accruals    []*accrual.Outcome
	Anomalies   []apperrors.Anomaly
	Err         error
}

// Last returns the snapshot and return row of the final closed day.
func (r *CloseResult) Last() (*models.NAVSnapshot, *models.ReturnRow) {
	var snap *models.NAVSnapshot
	var row *models.ReturnRow
	if n := len(r.Snapshots); n > 0 {
		snap = &r.Snapshots[n-1]
	}
	if n := len(r.Returns); n > 0 {
		row = &r.Returns[n-1]
	}
	return snap, row
}

// ImportResult reports a decoded and stored log import.
type ImportResult struct {
	Stored    int
	Anomalies []apperrors.Anomaly
}
