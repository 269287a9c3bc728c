package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
)

// CashTicker marks a transaction that only moves cash.
const CashTicker = "CASH"

// Transaction is one immutable entry of a portfolio's append-only log. Once
// accepted it is never mutated; corrections are written as a new row or as an
// upsert of the same ID by reconciling tooling.
type Transaction struct {
	ID          string          `json:"id" gorm:"primaryKey;column:id;type:varchar(255)"`
	UID         string          `json:"uid,omitempty" gorm:"column:uid;type:varchar(255);index"`
	PortfolioID string          `json:"portfolio_id" gorm:"column:portfolio_id;type:varchar(100);not null;index:idx_tx_portfolio_date,priority:1"`
	Date        time.Time       `json:"date" gorm:"column:date;type:date;not null;index:idx_tx_portfolio_date,priority:2"`
	Type        TransactionType `json:"type" gorm:"column:type;type:varchar(20);not null;index"`
	Ticker      string          `json:"ticker,omitempty" gorm:"column:ticker;type:varchar(50)"`

	// Amount is in major units. For BUY, WITHDRAWAL and FEE the direction is
	// implied by the type and only the magnitude is used.
	Amount decimal.Decimal `json:"amount" gorm:"column:amount;type:decimal(30,10);not null"`
	// Quantity is the signed share delta; null for pure cash movements.
	Quantity decimal.NullDecimal `json:"quantity" gorm:"column:quantity;type:decimal(30,10)"`

	// Tie-breakers for same-day, same-type entries.
	CreatedAt *time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime:false"`
	Seq       *int64     `json:"seq,omitempty" gorm:"column:seq"`

	Note *string `json:"note,omitempty" gorm:"column:note;type:text"`
}

// TableName returns the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionFilter represents filters for querying a portfolio's log
type TransactionFilter struct {
	PortfolioID string
	StartDate   *time.Time
	EndDate     *time.Time
	Types       []TransactionType
	IDPrefix    string
	ExcludeIDs  []string
}

// Validate validates the transaction data
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return &apperrors.ErrValidation{Field: "id", Message: "is required"}
	}
	if t.PortfolioID == "" {
		return &apperrors.ErrValidation{Field: "portfolio_id", Message: "is required"}
	}
	if t.Date.IsZero() {
		return &apperrors.ErrValidation{Field: "date", Message: "is required"}
	}
	if t.Type == "" {
		return &apperrors.ErrValidation{Field: "type", Message: "is required"}
	}
	if t.Type.IsTrade() && (t.Ticker == "" || t.Ticker == CashTicker) {
		return &apperrors.ErrValidation{Field: "ticker", Message: fmt.Sprintf("%s requires a security ticker", t.Type)}
	}
	if t.Type.IsTrade() && (!t.Quantity.Valid || t.Quantity.Decimal.IsZero()) {
		return &apperrors.ErrValidation{Field: "quantity", Message: fmt.Sprintf("%s requires a non-zero quantity", t.Type)}
	}
	return nil
}

// DateKey returns the fixed-width ISO date used as the primary sort key.
func (t *Transaction) DateKey() string {
	return DateKey(t.Date)
}

// SecurityDelta reports the ticker and signed quantity this transaction moves,
// if any. Cash-only rows and zero quantities report ok=false.
func (t *Transaction) SecurityDelta() (ticker string, qty decimal.Decimal, ok bool) {
	if t.Ticker == "" || t.Ticker == CashTicker {
		return "", decimal.Zero, false
	}
	if !t.Quantity.Valid || t.Quantity.Decimal.IsZero() {
		return "", decimal.Zero, false
	}
	return t.Ticker, t.Quantity.Decimal, true
}

// ExternalFlow is the signed external cash movement: deposits positive,
// withdrawals negative, everything else zero.
func (t *Transaction) ExternalFlow() decimal.Decimal {
	switch t.Type {
	case TypeDeposit:
		return t.Amount.Abs()
	case TypeWithdrawal:
		return t.Amount.Abs().Neg()
	default:
		return decimal.Zero
	}
}

// InterestTransactionID is the deterministic ID of the INTEREST posting for
// a portfolio on a day. Replays are deduplicated by upserting on it.
func InterestTransactionID(portfolioID string, on time.Time) string {
	return "interest-" + portfolioID + "-" + DateKey(on)
}

// InterestIDPrefix is the ID prefix shared by every INTEREST posting of a portfolio.
func InterestIDPrefix(portfolioID string) string {
	return "interest-" + portfolioID + "-"
}
