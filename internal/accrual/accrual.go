// Package accrual posts daily interest on a portfolio's idle cash.
//
// Interest for a day is computed from the cash balance at the end of the
// previous day, so an INTEREST posting never earns interest on the day it is
// booked. Every posting has a deterministic ID and is upserted, which makes
// accruing the same (portfolio, date) twice a no-op.
package accrual

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/ledger"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/money"
)

// Store is the persistence the accruer needs. Implementations must make
// Atomic all-or-nothing when the backing store supports it.
type Store interface {
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter *models.TransactionFilter) ([]models.Transaction, error)
	UpsertTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransactions(ctx context.Context, ids []string) (int64, error)

	GetAccrual(ctx context.Context, month, portfolioID string) (*models.CashAccrualRow, error)
	UpsertAccrual(ctx context.Context, row *models.CashAccrualRow) error

	Atomic(ctx context.Context, fn func(Store) error) error
}

// Status describes what an accrual call did.
type Status string

const (
	StatusPosted         Status = "posted"
	StatusAlreadyAccrued Status = "already_accrued"
	StatusNoPosting      Status = "no_posting"
	StatusBuffered       Status = "buffered"
	StatusFlushed        Status = "flushed"
)

// Request identifies one accrual (or flush) for one portfolio and day.
type Request struct {
	PortfolioID string
	Policy      *models.CashPolicy
	Flags       models.FeatureFlags
	PostingDay  models.PostingDay
	Date        time.Time
}

func (r Request) validate() error {
	if r.PortfolioID == "" {
		return &apperrors.PolicyError{Field: "portfolio_id", Message: "is required"}
	}
	if r.Policy == nil {
		return &apperrors.PolicyError{PortfolioID: r.PortfolioID, Field: "policy", Message: "no cash policy configured"}
	}
	if r.Policy.DayCount <= 0 {
		return &apperrors.PolicyError{PortfolioID: r.PortfolioID, Field: "day_count", Message: fmt.Sprintf("must be positive, got %d", r.Policy.DayCount)}
	}
	if r.Date.IsZero() {
		return &apperrors.PolicyError{PortfolioID: r.PortfolioID, Field: "date", Message: "is required"}
	}
	return nil
}

// Outcome reports the result of an accrual call.
type Outcome struct {
	Status      Status
	Computation *Computation
	// Transaction is the INTEREST posting written or found, if any.
	Transaction *models.Transaction
	// Buffer is the monthly buffer row after the call, in monthly mode.
	Buffer *models.CashAccrualRow
}

// Accruer runs accruals against a Store.
type Accruer struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewAccruer creates an accruer.
func NewAccruer(store Store, logger *zap.Logger) *Accruer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accruer{store: store, logger: logger, now: time.Now}
}

// Accrue computes and posts the interest for req.Date. Policy problems abort
// the call before anything is written.
func (a *Accruer) Accrue(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.Date = models.Day(req.Date)
	if req.Flags.MonthlyCashPosting {
		return a.accrueMonthly(ctx, req)
	}
	return a.accrueDaily(ctx, req)
}

func (a *Accruer) accrueDaily(ctx context.Context, req Request) (*Outcome, error) {
	id := models.InterestTransactionID(req.PortfolioID, req.Date)
	existing, err := a.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", id, err)
	}
	if existing != nil {
		return &Outcome{Status: StatusAlreadyAccrued, Transaction: existing}, nil
	}

	comp, err := a.compute(ctx, a.store, req)
	if err != nil {
		return nil, err
	}
	if comp.AmountMinor <= 0 {
		return &Outcome{Status: StatusNoPosting, Computation: comp}, nil
	}

	tx := interestTransaction(req.PortfolioID, req.Date, comp.Amount(), fmt.Sprintf("daily interest at %s APY", comp.APY))
	if err := a.store.UpsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to post interest %s: %w", id, err)
	}
	a.logger.Info("interest posted",
		zap.String("portfolio_id", req.PortfolioID),
		zap.String("tx_id", id),
		zap.String("amount", tx.Amount.String()))
	return &Outcome{Status: StatusPosted, Computation: comp, Transaction: tx}, nil
}

func (a *Accruer) accrueMonthly(ctx context.Context, req Request) (*Outcome, error) {
	postingDate := req.PostingDay.PostingDateFor(req.Date)
	windowStart := req.PostingDay.WindowStart(postingDate)
	month := models.MonthKey(postingDate)

	var out *Outcome
	err := a.store.Atomic(ctx, func(s Store) error {
		row, err := s.GetAccrual(ctx, month, req.PortfolioID)
		if err != nil {
			return fmt.Errorf("failed to load accrual buffer %s: %w", month, err)
		}
		if row == nil {
			row = &models.CashAccrualRow{Month: month, PortfolioID: req.PortfolioID}
		}

		out = &Outcome{Status: StatusAlreadyAccrued, Buffer: row}
		if !row.Accrued(windowStart, req.Date) {
			comp, err := a.compute(ctx, s, req)
			if err != nil {
				return err
			}
			out.Computation = comp
			out.Status = StatusNoPosting
			if comp.AmountMinor > 0 {
				if row.AccruedMinorUnits, err = money.AddMinor(row.AccruedMinorUnits, comp.AmountMinor); err != nil {
					return err
				}
				if err := row.MarkAccrued(windowStart, req.Date); err != nil {
					return &apperrors.InvariantViolation{Op: "accrue", Message: err.Error()}
				}
				if err := s.UpsertAccrual(ctx, row); err != nil {
					return fmt.Errorf("failed to buffer interest for %s: %w", month, err)
				}
				out.Status = StatusBuffered
			}
		}

		// A day accrued after its window was already posted is folded into
		// that posting straight away.
		late := row.PostedAt != nil && out.Status == StatusBuffered
		if !req.Date.Equal(postingDate) && !late {
			return nil
		}
		flushed, err := a.flush(ctx, s, req, postingDate, row)
		if err != nil {
			return err
		}
		if flushed.Status == StatusFlushed {
			out.Status = StatusFlushed
		}
		out.Transaction = flushed.Transaction
		out.Buffer = flushed.Buffer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Flush consolidates the monthly buffer whose posting date is req.Date into
// a single INTEREST transaction. req.Date must be a posting date under
// req.PostingDay. Flushing an empty buffer does nothing, and flushing twice
// leaves the same single transaction.
func (a *Accruer) Flush(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	postingDate := models.Day(req.Date)
	if want := req.PostingDay.PostingDateFor(postingDate); !want.Equal(postingDate) {
		return nil, &apperrors.PolicyError{
			PortfolioID: req.PortfolioID,
			Field:       "date",
			Message: fmt.Sprintf("%s is not a posting date for posting day %s; the buffer posts on %s",
				models.DateKey(postingDate), req.PostingDay, models.DateKey(want)),
		}
	}
	month := models.MonthKey(postingDate)

	var out *Outcome
	err := a.store.Atomic(ctx, func(s Store) error {
		row, err := s.GetAccrual(ctx, month, req.PortfolioID)
		if err != nil {
			return fmt.Errorf("failed to load accrual buffer %s: %w", month, err)
		}
		if row == nil {
			row = &models.CashAccrualRow{Month: month, PortfolioID: req.PortfolioID}
		}
		out, err = a.flush(ctx, s, req, postingDate, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// flush folds the buffer, plus any daily INTEREST rows already booked in the
// window, into the consolidated posting and zeroes the buffer.
func (a *Accruer) flush(ctx context.Context, s Store, req Request, postingDate time.Time, row *models.CashAccrualRow) (*Outcome, error) {
	places := money.CurrencyDecimals(req.Policy.Currency)
	id := models.InterestTransactionID(req.PortfolioID, postingDate)
	from := req.PostingDay.WindowStart(postingDate)

	interim, err := s.ListTransactions(ctx, &models.TransactionFilter{
		PortfolioID: req.PortfolioID,
		StartDate:   &from,
		EndDate:     &postingDate,
		Types:       []models.TransactionType{models.TypeInterest},
		IDPrefix:    models.InterestIDPrefix(req.PortfolioID),
		ExcludeIDs:  []string{id},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list interim interest: %w", err)
	}

	total := row.AccruedMinorUnits
	interimIDs := make([]string, 0, len(interim))
	for _, tx := range interim {
		minor, err := money.ToMinorUnits(tx.Amount.Abs(), places)
		if err != nil {
			return nil, err
		}
		if total, err = money.AddMinor(total, minor); err != nil {
			return nil, err
		}
		interimIDs = append(interimIDs, tx.ID)
	}

	existing, err := s.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", id, err)
	}
	if total == 0 {
		return &Outcome{Status: StatusNoPosting, Transaction: existing, Buffer: row}, nil
	}

	posted := total
	if existing != nil {
		prior, err := money.ToMinorUnits(existing.Amount.Abs(), places)
		if err != nil {
			return nil, err
		}
		if posted, err = money.AddMinor(posted, prior); err != nil {
			return nil, err
		}
	}

	tx := interestTransaction(req.PortfolioID, postingDate, money.FromMinorUnits(posted, places),
		fmt.Sprintf("monthly interest %s", row.Month))
	if err := s.UpsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to post interest %s: %w", id, err)
	}
	if len(interimIDs) > 0 {
		if _, err := s.DeleteTransactions(ctx, interimIDs); err != nil {
			return nil, fmt.Errorf("failed to delete interim interest: %w", err)
		}
	}

	now := a.now().UTC()
	row.AccruedMinorUnits = 0
	row.PostedAt = &now
	row.PostedAmountMinorUnits = posted
	row.PostedTransactionID = id
	if err := s.UpsertAccrual(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to reset accrual buffer %s: %w", row.Month, err)
	}

	a.logger.Info("monthly interest flushed",
		zap.String("portfolio_id", req.PortfolioID),
		zap.String("tx_id", id),
		zap.String("month", row.Month),
		zap.Int("interim_deleted", len(interimIDs)),
		zap.String("amount", tx.Amount.String()))
	return &Outcome{Status: StatusFlushed, Transaction: tx, Buffer: row}, nil
}

func (a *Accruer) compute(ctx context.Context, s Store, req Request) (*Computation, error) {
	end := req.Date.AddDate(0, 0, -1)
	txs, err := s.ListTransactions(ctx, &models.TransactionFilter{PortfolioID: req.PortfolioID, EndDate: &end})
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger for %s: %w", req.PortfolioID, err)
	}
	comp, err := Preview(txs, req.Policy, req.Date)
	if err != nil {
		return nil, err
	}
	for _, an := range comp.Anomalies {
		a.logger.Warn("ledger anomaly during accrual",
			zap.String("portfolio_id", req.PortfolioID),
			zap.String("kind", string(an.Kind)),
			zap.String("tx_id", an.TransactionID),
			zap.String("field", an.Field))
	}
	return comp, nil
}

func interestTransaction(portfolioID string, day time.Time, amount decimal.Decimal, note string) *models.Transaction {
	return &models.Transaction{
		ID:          models.InterestTransactionID(portfolioID, day),
		UID:         models.InterestTransactionID(portfolioID, day),
		PortfolioID: portfolioID,
		Date:        day,
		Type:        models.TypeInterest,
		Ticker:      models.CashTicker,
		Amount:      amount,
		Note:        &note,
	}
}

// Computation is the pure result of an interest calculation.
type Computation struct {
	Date         time.Time
	Currency     string
	Places       int
	BalanceMinor int64
	APY          decimal.Decimal
	DailyRate    decimal.Decimal
	AmountMinor  int64
	Anomalies    []apperrors.Anomaly
}

// Amount is the rounded interest in major units.
func (c *Computation) Amount() decimal.Decimal {
	return money.FromMinorUnits(c.AmountMinor, c.Places)
}

// Preview computes the interest due on day without touching storage. Only
// transactions dated before day count towards the balance; the log does not
// need to be sorted. A non-positive balance or rate accrues nothing.
func Preview(txs []models.Transaction, policy *models.CashPolicy, day time.Time) (*Computation, error) {
	if policy == nil {
		return nil, &apperrors.PolicyError{Field: "policy", Message: "no cash policy configured"}
	}
	if policy.DayCount <= 0 {
		return nil, &apperrors.PolicyError{PortfolioID: policy.PortfolioID, Field: "day_count", Message: fmt.Sprintf("must be positive, got %d", policy.DayCount)}
	}
	day = models.Day(day)
	places := money.CurrencyDecimals(policy.Currency)

	balance, anomalies, err := ledger.CashBefore(ledger.Sort(txs), day, policy.Currency)
	if err != nil {
		return nil, err
	}
	apy, _ := policy.EffectiveAPY(day)
	comp := &Computation{
		Date:         day,
		Currency:     policy.Currency,
		Places:       places,
		BalanceMinor: balance,
		APY:          apy,
		DailyRate:    policy.DailyRate(day),
		Anomalies:    anomalies,
	}
	if balance <= 0 || !comp.DailyRate.IsPositive() {
		return comp, nil
	}

	interest := money.FromMinorUnits(balance, places).Mul(comp.DailyRate)
	if comp.AmountMinor, err = money.ToMinorUnits(interest, places); err != nil {
		return nil, err
	}
	return comp, nil
}
