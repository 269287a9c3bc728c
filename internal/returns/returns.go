// Package returns derives daily time-weighted returns from replayed ledger
// states and compounds them into period summaries.
package returns

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/ledger"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/money"
)

// OutputPlaces is the default rounding applied to returns when they leave
// the engine. Computation itself is full precision.
const OutputPlaces = 10

var one = decimal.NewFromInt(1)

// Input is everything Compute needs for one portfolio.
type Input struct {
	PortfolioID string
	// States must be in ascending date order, one per reporting day.
	States []models.LedgerState
	// Transactions supply the external flows. Order does not matter.
	Transactions []models.Transaction
	Policy       *models.CashPolicy
	// Benchmark is the index ticker read from Prices.
	Benchmark string
	Prices    *ledger.PriceBook
}

// Compute produces one full-precision ReturnRow per state.
//
// A day's flow is the net of DEPOSIT and WITHDRAWAL dated after the previous
// state and up to and including the day; the first state takes every flow
// up to its date.
func Compute(in Input) ([]models.ReturnRow, error) {
	if len(in.States) == 0 {
		return nil, nil
	}
	if in.Policy == nil {
		return nil, &apperrors.PolicyError{PortfolioID: in.PortfolioID, Field: "policy", Message: "no cash policy configured"}
	}
	for i := 1; i < len(in.States); i++ {
		if !in.States[i].Date.After(in.States[i-1].Date) {
			return nil, &apperrors.InvariantViolation{
				Op:      "returns",
				Message: fmt.Sprintf("states out of order at %s", models.DateKey(in.States[i].Date)),
			}
		}
	}

	flows := periodFlows(in.States, in.Transactions)
	index := newIndexSim(in.Benchmark, in.Prices)

	first := in.States[0]
	inceptionWeight := one
	if flows[0].IsPositive() {
		inceptionWeight = money.Clamp(money.Div(first.Cash, flows[0]), decimal.Zero, one)
	}

	rows := make([]models.ReturnRow, len(in.States))
	for i, st := range in.States {
		row := models.ReturnRow{
			PortfolioID: in.PortfolioID,
			Date:        st.Date,
			RCash:       in.Policy.DailyRate(st.Date),
		}
		flow := flows[i]
		weight := inceptionWeight

		if i == 0 {
			row.RPort = inception(st.NAV, flow)
			row.RSpy100 = index.start(st.Date, st.NAV)
		} else {
			prev := in.States[i-1]
			row.RPort = step(st.NAV, flow, prev.NAV)
			if prev.RiskValue.IsPositive() {
				row.RExCash = money.Div(st.RiskValue, prev.RiskValue).Sub(one)
			}
			row.RSpy100 = index.advance(st.Date, flow)
			if prev.NAV.IsPositive() {
				weight = money.Clamp(money.Div(prev.Cash, prev.NAV), decimal.Zero, one)
			}
		}
		row.RBenchBlended = weight.Mul(row.RCash).Add(one.Sub(weight).Mul(row.RSpy100))
		rows[i] = row
	}
	return rows, nil
}

// step is the TWR day return. A non-positive prior value restarts the series
// as if the day were an inception.
func step(value, flow, prev decimal.Decimal) decimal.Decimal {
	if !prev.IsPositive() {
		return inception(value, flow)
	}
	return money.Div(value.Sub(flow), prev).Sub(one)
}

func inception(value, flow decimal.Decimal) decimal.Decimal {
	if !flow.IsPositive() {
		return decimal.Zero
	}
	return money.Div(value.Sub(flow), flow)
}

func periodFlows(states []models.LedgerState, txs []models.Transaction) []decimal.Decimal {
	flows := make([]decimal.Decimal, len(states))
	for i := range flows {
		flows[i] = decimal.Zero
	}
	for i := range txs {
		tx := &txs[i]
		if !tx.Type.IsExternal() {
			continue
		}
		key := tx.DateKey()
		// First state whose date is on or after the flow.
		lo, hi := 0, len(states)
		for lo < hi {
			mid := (lo + hi) / 2
			if models.DateKey(states[mid].Date) < key {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo == len(states) {
			continue
		}
		flows[lo] = flows[lo].Add(tx.ExternalFlow())
	}
	return flows
}

// indexSim is a hypothetical portfolio fully invested in the benchmark that
// receives the real portfolio's external flows on the same days.
type indexSim struct {
	ticker string
	prices *ledger.PriceBook

	value     decimal.Decimal
	lastPrice decimal.Decimal
	priced    bool
}

func newIndexSim(ticker string, prices *ledger.PriceBook) *indexSim {
	return &indexSim{ticker: ticker, prices: prices}
}

func (s *indexSim) start(day time.Time, value decimal.Decimal) decimal.Decimal {
	s.value = value
	s.observe(day)
	return decimal.Zero
}

func (s *indexSim) advance(day time.Time, flow decimal.Decimal) decimal.Decimal {
	prevPrice, hadPrice := s.lastPrice, s.priced
	s.observe(day)

	ratio := one
	if hadPrice && s.priced {
		ratio = money.Div(s.lastPrice, prevPrice)
	}
	prev := s.value
	s.value = prev.Mul(ratio).Add(flow).Round(money.DivisionPrecision)
	return step(s.value, flow, prev)
}

func (s *indexSim) observe(day time.Time) {
	if q, ok := s.prices.Quote(s.ticker, day); ok {
		s.lastPrice = q.Price
		s.priced = true
	}
}
