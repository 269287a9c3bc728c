package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnRow holds the one-day returns of a portfolio and its benchmarks.
// Values are full precision until Rounded is called at the output boundary.
type ReturnRow struct {
	PortfolioID   string          `json:"portfolio_id" gorm:"primaryKey;column:portfolio_id;type:varchar(100)"`
	Date          time.Time       `json:"date" gorm:"primaryKey;column:date;type:date"`
	RPort         decimal.Decimal `json:"r_port" gorm:"column:r_port;type:decimal(30,12);not null"`
	RExCash       decimal.Decimal `json:"r_ex_cash" gorm:"column:r_ex_cash;type:decimal(30,12);not null"`
	RBenchBlended decimal.Decimal `json:"r_bench_blended" gorm:"column:r_bench_blended;type:decimal(30,12);not null"`
	RSpy100       decimal.Decimal `json:"r_spy_100" gorm:"column:r_spy_100;type:decimal(30,12);not null"`
	RCash         decimal.Decimal `json:"r_cash" gorm:"column:r_cash;type:decimal(30,12);not null"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for the ReturnRow model
func (ReturnRow) TableName() string {
	return "return_rows"
}

// Rounded returns a copy with every return rounded half away from zero.
func (r ReturnRow) Rounded(places int32) ReturnRow {
	r.RPort = r.RPort.Round(places)
	r.RExCash = r.RExCash.Round(places)
	r.RBenchBlended = r.RBenchBlended.Round(places)
	r.RSpy100 = r.RSpy100.Round(places)
	r.RCash = r.RCash.Round(places)
	return r
}
