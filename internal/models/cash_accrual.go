package models

import (
	"fmt"
	"time"
)

// CashAccrualRow buffers daily interest between monthly postings. It only
// exists when monthly cash posting is enabled. Keyed by (month, portfolio).
type CashAccrualRow struct {
	Month       string `json:"month" gorm:"primaryKey;column:month;type:varchar(7)"`
	PortfolioID string `json:"portfolio_id" gorm:"primaryKey;column:portfolio_id;type:varchar(100)"`

	AccruedMinorUnits int64 `json:"accrued_minor_units" gorm:"column:accrued_minor_units;not null;default:0"`
	// AccruedDays has bit n set once day n of the posting window (0 is the
	// window start) has been added to the buffer.
	AccruedDays     int64      `json:"accrued_days" gorm:"column:accrued_days;not null;default:0"`
	LastAccrualDate *time.Time `json:"last_accrual_date,omitempty" gorm:"column:last_accrual_date;type:date"`

	PostedAt               *time.Time `json:"posted_at,omitempty" gorm:"column:posted_at"`
	PostedAmountMinorUnits int64      `json:"posted_amount_minor_units" gorm:"column:posted_amount_minor_units;not null;default:0"`
	PostedTransactionID    string     `json:"posted_transaction_id,omitempty" gorm:"column:posted_transaction_id;type:varchar(255)"`
}

// TableName returns the table name for the CashAccrualRow model
func (CashAccrualRow) TableName() string {
	return "cash_accruals"
}

// windowBit maps day to its bit in AccruedDays. A posting window never
// spans more than 31 days.
func windowBit(windowStart, day time.Time) (int64, bool) {
	n := int(Day(day).Sub(Day(windowStart)) / (24 * time.Hour))
	if n < 0 || n >= 62 {
		return 0, false
	}
	return int64(1) << n, true
}

// Accrued reports whether day itself has already been added to the buffer
// whose window starts at windowStart.
func (r *CashAccrualRow) Accrued(windowStart, day time.Time) bool {
	bit, ok := windowBit(windowStart, day)
	return ok && r.AccruedDays&bit != 0
}

// MarkAccrued records day as added to the buffer.
func (r *CashAccrualRow) MarkAccrued(windowStart, day time.Time) error {
	bit, ok := windowBit(windowStart, day)
	if !ok {
		return fmt.Errorf("%s is outside the posting window starting %s", DateKey(day), DateKey(windowStart))
	}
	r.AccruedDays |= bit
	if r.LastAccrualDate == nil || r.LastAccrualDate.Before(Day(day)) {
		d := Day(day)
		r.LastAccrualDate = &d
	}
	return nil
}
