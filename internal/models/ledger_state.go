package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerState is the portfolio as of the end of one day.
type LedgerState struct {
	Date      time.Time
	Currency  string
	Places    int
	CashMinor int64
	// Holdings maps ticker to micro-shares. Zero positions are dropped.
	Holdings map[string]int64

	Cash      decimal.Decimal
	RiskValue decimal.Decimal
	NAV       decimal.Decimal

	// StaleTickers were valued at a carried-forward price, or at zero when
	// no price was ever seen.
	StaleTickers []string
}

// Tickers returns the held tickers in sorted order.
func (s *LedgerState) Tickers() []string {
	out := make([]string, 0, len(s.Holdings))
	for t := range s.Holdings {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Stale reports whether any held position was valued without a same-day price.
func (s *LedgerState) Stale() bool { return len(s.StaleTickers) > 0 }

// NAVSnapshot is the persisted form of a LedgerState.
type NAVSnapshot struct {
	PortfolioID  string          `json:"portfolio_id" gorm:"primaryKey;column:portfolio_id;type:varchar(100)"`
	Date         time.Time       `json:"date" gorm:"primaryKey;column:date;type:date"`
	Currency     string          `json:"currency" gorm:"column:currency;type:varchar(3)"`
	Cash         decimal.Decimal `json:"cash" gorm:"column:cash;type:decimal(30,10);not null"`
	RiskValue    decimal.Decimal `json:"risk_value" gorm:"column:risk_value;type:decimal(30,10);not null"`
	NAV          decimal.Decimal `json:"nav" gorm:"column:nav;type:decimal(30,10);not null"`
	Stale        bool            `json:"stale" gorm:"column:stale;not null;default:false"`
	StaleTickers string          `json:"stale_tickers,omitempty" gorm:"column:stale_tickers;type:text"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for the NAVSnapshot model
func (NAVSnapshot) TableName() string {
	return "nav_snapshots"
}
