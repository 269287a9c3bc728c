package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/tropicaldog17/navledger/internal/calendar"
	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/money"
)

// Options tunes a replay.
type Options struct {
	// Currency selects the minor-unit precision. Defaults to USD.
	Currency string
	// StrictCash turns a negative cash balance at a snapshot into an
	// InvariantViolation instead of an anomaly.
	StrictCash bool
	// Calendar, when set, only flags a carried-forward price as stale if a
	// trading day passed since it was observed.
	Calendar *calendar.Calendar
}

func (o Options) currency() string {
	if o.Currency == "" {
		return "USD"
	}
	return o.Currency
}

// Result is the outcome of a full replay.
type Result struct {
	States    []models.LedgerState
	Anomalies []apperrors.Anomaly
}

// Replayer folds a sorted log into daily states. It owns a single running
// accumulator and a cursor into the log that only ever moves forward, so
// snapshotting m ascending dates over n transactions costs O(n+m).
type Replayer struct {
	txs    []models.Transaction
	prices *PriceBook
	opts   Options
	places int

	cursor   int
	cash     int64
	holdings map[string]int64
	last     time.Time

	anomalies []apperrors.Anomaly
}

// NewReplayer prepares a replay over txs, which must already be in Sort order.
func NewReplayer(sorted []models.Transaction, prices *PriceBook, opts Options) (*Replayer, error) {
	if !IsSorted(sorted) {
		return nil, &apperrors.InvariantViolation{Op: "replay", Message: "transactions are not in replay order"}
	}
	return &Replayer{
		txs:      sorted,
		prices:   prices,
		opts:     opts,
		places:   money.CurrencyDecimals(opts.currency()),
		holdings: make(map[string]int64),
	}, nil
}

// Replay snapshots the portfolio at every date in dates, which must be
// ascending.
func Replay(sorted []models.Transaction, prices *PriceBook, dates []time.Time, opts Options) (Result, error) {
	r, err := NewReplayer(sorted, prices, opts)
	if err != nil {
		return Result{}, err
	}
	states := make([]models.LedgerState, 0, len(dates))
	for _, d := range dates {
		st, err := r.AdvanceTo(d)
		if err != nil {
			return Result{Anomalies: r.Anomalies()}, err
		}
		states = append(states, st)
	}
	return Result{States: states, Anomalies: r.Anomalies()}, nil
}

// CashBefore returns the cash balance in minor units from every transaction
// dated strictly before day. Same-day postings, including INTEREST, are
// excluded.
func CashBefore(sorted []models.Transaction, day time.Time, currency string) (int64, []apperrors.Anomaly, error) {
	r, err := NewReplayer(sorted, nil, Options{Currency: currency})
	if err != nil {
		return 0, nil, err
	}
	if err := r.apply(models.DateKey(models.Day(day).AddDate(0, 0, -1))); err != nil {
		return 0, r.Anomalies(), err
	}
	return r.cash, r.Anomalies(), nil
}

// Anomalies returns the non-fatal problems seen so far.
func (r *Replayer) Anomalies() []apperrors.Anomaly {
	out := make([]apperrors.Anomaly, len(r.anomalies))
	copy(out, r.anomalies)
	return out
}

// Places is the number of minor-unit decimals in use.
func (r *Replayer) Places() int { return r.places }

// AdvanceTo applies every not yet applied transaction dated on or before day
// and returns the state at the end of that day.
func (r *Replayer) AdvanceTo(day time.Time) (models.LedgerState, error) {
	day = models.Day(day)
	if !r.last.IsZero() && day.Before(r.last) {
		return models.LedgerState{}, &apperrors.InvariantViolation{
			Op:      "replay",
			Message: fmt.Sprintf("target date %s is before %s", models.DateKey(day), models.DateKey(r.last)),
		}
	}
	r.last = day
	key := models.DateKey(day)
	if err := r.apply(key); err != nil {
		return models.LedgerState{}, err
	}
	return r.snapshot(day, key)
}

func (r *Replayer) apply(throughKey string) error {
	for ; r.cursor < len(r.txs); r.cursor++ {
		tx := &r.txs[r.cursor]
		if tx.DateKey() > throughKey {
			return nil
		}
		if err := r.applyOne(tx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) applyOne(tx *models.Transaction) error {
	switch {
	case tx.Type.IsInflow(), tx.Type.IsOutflow():
		amount, err := money.ToMinorUnits(tx.Amount.Abs(), r.places)
		if err != nil {
			return withTx(err, tx.ID)
		}
		if tx.Type.IsOutflow() {
			amount = -amount
		}
		if r.cash, err = money.AddMinor(r.cash, amount); err != nil {
			return withTx(err, tx.ID)
		}
	default:
		r.anomalies = append(r.anomalies, apperrors.Anomaly{
			Kind:          apperrors.AnomalyUnknownType,
			TransactionID: tx.ID,
			Field:         "type",
			Date:          tx.DateKey(),
			Message:       fmt.Sprintf("type %q is cash-neutral", tx.Type),
		})
	}

	ticker, qty, ok := tx.SecurityDelta()
	if !ok {
		return nil
	}
	delta, err := money.ToMicroShares(qty)
	if err != nil {
		return withTx(err, tx.ID)
	}
	pos, err := money.AddMinor(r.holdings[ticker], delta)
	if err != nil {
		return withTx(err, tx.ID)
	}
	if pos == 0 {
		delete(r.holdings, ticker)
	} else {
		r.holdings[ticker] = pos
	}
	return nil
}

func (r *Replayer) snapshot(day time.Time, key string) (models.LedgerState, error) {
	st := models.LedgerState{
		Date:      day,
		Currency:  r.opts.currency(),
		Places:    r.places,
		CashMinor: r.cash,
		Holdings:  make(map[string]int64, len(r.holdings)),
	}

	tickers := make([]string, 0, len(r.holdings))
	for t, q := range r.holdings {
		st.Holdings[t] = q
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	var risk int64
	for _, t := range tickers {
		q, ok := r.prices.Quote(t, day)
		if !ok {
			st.StaleTickers = append(st.StaleTickers, t)
			r.anomalies = append(r.anomalies, apperrors.Anomaly{
				Kind:    apperrors.AnomalyMissingPrice,
				Ticker:  t,
				Date:    key,
				Message: "no price on or before this date, valued at zero",
			})
			continue
		}
		if q.Stale && r.stale(q.AsOf, day) {
			st.StaleTickers = append(st.StaleTickers, t)
		}
		value, err := money.MulMinor(r.holdings[t], q.Price, r.places)
		if err != nil {
			return models.LedgerState{}, err
		}
		if risk, err = money.AddMinor(risk, value); err != nil {
			return models.LedgerState{}, err
		}
	}

	nav, err := money.AddMinor(r.cash, risk)
	if err != nil {
		return models.LedgerState{}, err
	}

	if r.cash < 0 {
		msg := fmt.Sprintf("cash balance %s after replay", money.FromMinorUnits(r.cash, r.places))
		if r.opts.StrictCash {
			return models.LedgerState{}, &apperrors.InvariantViolation{Op: "replay", Message: msg + " on " + key}
		}
		r.anomalies = append(r.anomalies, apperrors.Anomaly{
			Kind:    apperrors.AnomalyNegativeCash,
			Date:    key,
			Message: msg,
		})
	}

	st.Cash = money.FromMinorUnits(r.cash, r.places)
	st.RiskValue = money.FromMinorUnits(risk, r.places)
	st.NAV = money.FromMinorUnits(nav, r.places)
	return st, nil
}

// stale reports whether a price observed on asOf is out of date on day.
func (r *Replayer) stale(asOf, day time.Time) bool {
	if r.opts.Calendar == nil {
		return true
	}
	for d := asOf.AddDate(0, 0, 1); !d.After(day); d = d.AddDate(0, 0, 1) {
		if r.opts.Calendar.IsTradingDay(d) {
			return true
		}
	}
	return false
}

func withTx(err error, id string) error {
	if iv, ok := err.(*apperrors.InvariantViolation); ok {
		cp := *iv
		cp.TransactionID = id
		return &cp
	}
	return err
}
