package models

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
)

// PricePoint is an already-fetched daily adjusted close for a ticker.
type PricePoint struct {
	Ticker   string          `json:"ticker" gorm:"primaryKey;column:ticker;type:varchar(50)"`
	Date     time.Time       `json:"date" gorm:"primaryKey;column:date;type:date"`
	AdjClose decimal.Decimal `json:"adj_close" gorm:"column:adj_close;type:decimal(30,10);not null"`
	Source   string          `json:"source,omitempty" gorm:"column:source;type:varchar(50)"`
}

// TableName returns the table name for the PricePoint model
func (PricePoint) TableName() string {
	return "prices"
}

func (p *PricePoint) Validate() error {
	if p.Ticker == "" {
		return &apperrors.ErrValidation{Field: "ticker", Message: "is required"}
	}
	if p.AdjClose.IsZero() || p.AdjClose.IsNegative() {
		return &apperrors.ErrValidation{Field: "adj_close", Message: "must be positive"}
	}
	if p.Date.IsZero() {
		return &apperrors.ErrValidation{Field: "date", Message: "is required"}
	}
	return nil
}
