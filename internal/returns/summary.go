package returns

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/money"
)

// DaysPerYear is the annualisation basis.
const DaysPerYear = 365

// Summary is the compounded return of every column over a run of rows.
type Summary struct {
	PortfolioID   string
	From          time.Time
	To            time.Time
	Days          int
	RPort         decimal.Decimal
	RExCash       decimal.Decimal
	RBenchBlended decimal.Decimal
	RSpy100       decimal.Decimal
	RCash         decimal.Decimal
}

// Rounded returns a copy with every return rounded half away from zero.
func (s Summary) Rounded(places int32) Summary {
	s.RPort = s.RPort.Round(places)
	s.RExCash = s.RExCash.Round(places)
	s.RBenchBlended = s.RBenchBlended.Round(places)
	s.RSpy100 = s.RSpy100.Round(places)
	s.RCash = s.RCash.Round(places)
	return s
}

// Summarize compounds rows as Π(1+r) − 1 per column. Returns are never
// summed.
func Summarize(rows []models.ReturnRow) Summary {
	growth := [5]decimal.Decimal{one, one, one, one, one}
	s := Summary{Days: len(rows)}
	for i, r := range rows {
		if i == 0 {
			s.PortfolioID = r.PortfolioID
			s.From = r.Date
		}
		s.To = r.Date
		for col, v := range [5]decimal.Decimal{r.RPort, r.RExCash, r.RBenchBlended, r.RSpy100, r.RCash} {
			growth[col] = growth[col].Mul(one.Add(v)).Round(money.DivisionPrecision)
		}
	}
	s.RPort = growth[0].Sub(one)
	s.RExCash = growth[1].Sub(one)
	s.RBenchBlended = growth[2].Sub(one)
	s.RSpy100 = growth[3].Sub(one)
	s.RCash = growth[4].Sub(one)
	return s
}

// Annualize converts a compounded return over days into a yearly rate. Runs
// shorter than a year are not extrapolated and report ok=false.
func Annualize(total decimal.Decimal, days int) (decimal.Decimal, bool) {
	if days < DaysPerYear {
		return total, false
	}
	g := one.Add(total)
	if !g.IsPositive() {
		return decimal.NewFromInt(-1), true
	}
	const precision = 20
	ln, err := g.Ln(precision)
	if err != nil {
		return total, false
	}
	exp, err := money.Div(ln.Mul(decimal.NewFromInt(DaysPerYear)), decimal.NewFromInt(int64(days))).Round(precision).ExpTaylor(precision)
	if err != nil {
		return total, false
	}
	return exp.Sub(one), true
}
