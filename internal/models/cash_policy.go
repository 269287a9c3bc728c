package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
	"github.com/tropicaldog17/navledger/internal/money"
)

// DefaultDayCount is the day-count divisor used when a policy omits one.
const DefaultDayCount = 365

// APYIntervalDocument is the loosely typed shape of one timeline entry as it
// arrives from configuration.
type APYIntervalDocument struct {
	From string `json:"from" mapstructure:"from" yaml:"from"`
	To   string `json:"to" mapstructure:"to" yaml:"to"`
	APY  string `json:"apy" mapstructure:"apy" yaml:"apy"`
}

// CashPolicyDocument is the per-portfolio policy document before validation.
type CashPolicyDocument struct {
	Currency    string                `json:"currency" mapstructure:"currency" yaml:"currency"`
	DayCount    *int                  `json:"day_count,omitempty" mapstructure:"day_count" yaml:"day_count"`
	APYTimeline []APYIntervalDocument `json:"apy_timeline" mapstructure:"apy_timeline" yaml:"apy_timeline"`
}

// APYInterval is a validated timeline entry. A nil To is open-ended.
type APYInterval struct {
	From time.Time
	To   *time.Time
	APY  decimal.Decimal
}

// Contains reports whether day falls within the interval, bounds included.
func (i APYInterval) Contains(day time.Time) bool {
	if day.Before(i.From) {
		return false
	}
	return i.To == nil || !day.After(*i.To)
}

// CashPolicy is the validated cash-rate policy of one portfolio. It can only
// be built through NewCashPolicy.
type CashPolicy struct {
	PortfolioID string
	Currency    string
	DayCount    int
	timeline    []APYInterval
}

// NewCashPolicy validates a policy document. Every problem is reported as a
// PolicyError so malformed timelines are rejected at the boundary instead of
// deep inside accrual.
func NewCashPolicy(portfolioID string, doc CashPolicyDocument) (*CashPolicy, error) {
	fail := func(field, format string, args ...any) error {
		return &apperrors.PolicyError{PortfolioID: portfolioID, Field: field, Message: fmt.Sprintf(format, args...)}
	}

	currency := strings.ToUpper(strings.TrimSpace(doc.Currency))
	if len(currency) != 3 {
		return nil, fail("currency", "expected an ISO-4217 code, got %q", doc.Currency)
	}

	dayCount := DefaultDayCount
	if doc.DayCount != nil {
		if *doc.DayCount <= 0 {
			return nil, fail("day_count", "must be positive, got %d", *doc.DayCount)
		}
		dayCount = *doc.DayCount
	}

	timeline := make([]APYInterval, 0, len(doc.APYTimeline))
	for i, entry := range doc.APYTimeline {
		field := fmt.Sprintf("apy_timeline[%d]", i)
		from, err := ParseDate(strings.TrimSpace(entry.From))
		if err != nil {
			return nil, fail(field+".from", "%v", err)
		}
		var to *time.Time
		if s := strings.TrimSpace(entry.To); s != "" && !strings.EqualFold(s, "null") {
			t, err := ParseDate(s)
			if err != nil {
				return nil, fail(field+".to", "%v", err)
			}
			if t.Before(from) {
				return nil, fail(field+".to", "%s is before from %s", s, entry.From)
			}
			to = &t
		}
		apy, err := decimal.NewFromString(strings.TrimSpace(entry.APY))
		if err != nil {
			return nil, fail(field+".apy", "not a decimal: %q", entry.APY)
		}
		if apy.LessThanOrEqual(decimal.NewFromInt(-1)) {
			return nil, fail(field+".apy", "must be greater than -1, got %s", apy)
		}
		timeline = append(timeline, APYInterval{From: from, To: to, APY: apy})
	}

	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].From.Before(timeline[j].From) })
	for i := 1; i < len(timeline); i++ {
		prev := timeline[i-1]
		if prev.To == nil {
			return nil, fail("apy_timeline", "interval starting %s is open-ended but is followed by one starting %s",
				DateKey(prev.From), DateKey(timeline[i].From))
		}
		if !prev.To.Before(timeline[i].From) {
			return nil, fail("apy_timeline", "interval starting %s overlaps the one starting %s: bounds are inclusive, so it must start after %s",
				DateKey(timeline[i].From), DateKey(prev.From), DateKey(*prev.To))
		}
	}

	return &CashPolicy{
		PortfolioID: portfolioID,
		Currency:    currency,
		DayCount:    dayCount,
		timeline:    timeline,
	}, nil
}

// Timeline returns a copy of the validated intervals in chronological order.
func (p *CashPolicy) Timeline() []APYInterval {
	out := make([]APYInterval, len(p.timeline))
	copy(out, p.timeline)
	return out
}

// EffectiveAPY returns the APY of the latest interval containing day.
func (p *CashPolicy) EffectiveAPY(day time.Time) (decimal.Decimal, bool) {
	day = Day(day)
	for i := len(p.timeline) - 1; i >= 0; i-- {
		if p.timeline[i].Contains(day) {
			return p.timeline[i].APY, true
		}
	}
	return decimal.Zero, false
}

// DailyRate returns apy / dayCount for day, zero when no interval applies.
func (p *CashPolicy) DailyRate(day time.Time) decimal.Decimal {
	apy, ok := p.EffectiveAPY(day)
	if !ok || apy.IsZero() {
		return decimal.Zero
	}
	return money.Div(apy, decimal.NewFromInt(int64(p.DayCount)))
}

// FeatureFlags toggles optional engine behaviour per deployment.
type FeatureFlags struct {
	MonthlyCashPosting bool `json:"monthly_cash_posting" mapstructure:"monthly_cash_posting"`
}

// PostingDay is the day of month monthly interest is posted on: a fixed day
// or the last day of the month. Fixed days are clamped to the month's length.
type PostingDay struct {
	day  int
	last bool
}

// LastDayPosting posts on the last calendar day of each month.
var LastDayPosting = PostingDay{last: true}

// FixedDayPosting posts on day of each month, clamped to the month's length.
func FixedDayPosting(day int) (PostingDay, error) {
	if day < 1 || day > 31 {
		return PostingDay{}, &apperrors.PolicyError{Field: "posting_day", Message: fmt.Sprintf("day %d out of range 1..31", day)}
	}
	return PostingDay{day: day}, nil
}

// ParsePostingDay accepts "last" or a day number.
func ParsePostingDay(s string) (PostingDay, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "last") {
		return LastDayPosting, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return PostingDay{}, &apperrors.PolicyError{Field: "posting_day", Message: fmt.Sprintf("expected \"last\" or a day number, got %q", s)}
	}
	return FixedDayPosting(n)
}

func (p PostingDay) String() string {
	if p.last || p.day == 0 {
		return "last"
	}
	return strconv.Itoa(p.day)
}

// In returns the posting date within the given month.
func (p PostingDay) In(year int, month time.Month) time.Time {
	last := LastDayOfMonth(NewDate(year, month, 1))
	if p.last || p.day == 0 || p.day >= last.Day() {
		return last
	}
	return NewDate(year, month, p.day)
}

// PostingDateFor returns the first posting date on or after an accrual day;
// the accrual is buffered under that posting date's month.
func (p PostingDay) PostingDateFor(day time.Time) time.Time {
	day = Day(day)
	candidate := p.In(day.Year(), day.Month())
	if !day.After(candidate) {
		return candidate
	}
	next := NewDate(day.Year(), day.Month()+1, 1)
	return p.In(next.Year(), next.Month())
}

// WindowStart returns the first accrual day buffered into postingDate.
func (p PostingDay) WindowStart(postingDate time.Time) time.Time {
	prevMonth := NewDate(postingDate.Year(), postingDate.Month()-1, 1)
	return p.In(prevMonth.Year(), prevMonth.Month()).AddDate(0, 0, 1)
}
