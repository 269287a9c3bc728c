package ledger

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/navledger/internal/models"
)

// Quote is the price used for a ticker on a day.
type Quote struct {
	Price decimal.Decimal
	// AsOf is the day the price was observed on.
	AsOf time.Time
	// Stale is true when AsOf is earlier than the requested day.
	Stale bool
}

type series struct {
	days   []string
	prices []decimal.Decimal
}

// PriceBook is the single staleness policy of the engine: a missing day uses
// the last known price, carried forward and flagged stale. Both the replay
// engine and the index benchmark read prices through it.
type PriceBook struct {
	byTicker map[string]*series
}

// NewPriceBook indexes price points by ticker. Later points for the same
// ticker and day replace earlier ones; non-positive prices are ignored.
func NewPriceBook(points []models.PricePoint) *PriceBook {
	pb := &PriceBook{byTicker: make(map[string]*series)}
	for _, p := range points {
		pb.Add(p.Ticker, p.Date, p.AdjClose)
	}
	return pb
}

// NewPriceBookFromMap builds a book from date → ticker → price.
func NewPriceBookFromMap(m map[string]map[string]decimal.Decimal) (*PriceBook, error) {
	pb := &PriceBook{byTicker: make(map[string]*series)}
	for day, quotes := range m {
		d, err := models.ParseDate(day)
		if err != nil {
			return nil, err
		}
		for ticker, price := range quotes {
			pb.Add(ticker, d, price)
		}
	}
	return pb, nil
}

// Add records a price. Existing values at that day are overwritten.
func (pb *PriceBook) Add(ticker string, day time.Time, price decimal.Decimal) {
	if ticker == "" || !price.IsPositive() {
		return
	}
	s, ok := pb.byTicker[ticker]
	if !ok {
		s = &series{}
		pb.byTicker[ticker] = s
	}
	key := models.DateKey(day)
	i, found := slices.BinarySearch(s.days, key)
	if found {
		s.prices[i] = price
		return
	}
	s.days = slices.Insert(s.days, i, key)
	s.prices = slices.Insert(s.prices, i, price)
}

// Quote returns the price of ticker on day, or the most recent one before it.
func (pb *PriceBook) Quote(ticker string, day time.Time) (Quote, bool) {
	if pb == nil {
		return Quote{}, false
	}
	s, ok := pb.byTicker[ticker]
	if !ok {
		return Quote{}, false
	}
	key := models.DateKey(day)
	i, found := slices.BinarySearch(s.days, key)
	if found {
		return Quote{Price: s.prices[i], AsOf: models.Day(day)}, true
	}
	if i == 0 {
		return Quote{}, false
	}
	asOf, _ := models.ParseDate(s.days[i-1])
	return Quote{Price: s.prices[i-1], AsOf: asOf, Stale: true}, true
}

// Tickers returns the priced tickers in sorted order.
func (pb *PriceBook) Tickers() []string {
	out := make([]string, 0, len(pb.byTicker))
	for t := range pb.byTicker {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of price points for ticker.
func (pb *PriceBook) Len(ticker string) int {
	if s, ok := pb.byTicker[ticker]; ok {
		return len(s.days)
	}
	return 0
}
