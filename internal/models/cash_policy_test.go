package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tropicaldog17/navledger/internal/errors"
)

func intPtr(i int) *int { return &i }

func TestNewCashPolicy_Defaults(t *testing.T) {
	p, err := NewCashPolicy("p1", CashPolicyDocument{
		Currency:    "usd",
		APYTimeline: []APYIntervalDocument{{From: "2023-12-01", APY: "0.0365"}},
	})
	require.NoError(t, err)
	require.Equal(t, "USD", p.Currency)
	require.Equal(t, DefaultDayCount, p.DayCount)

	apy, ok := p.EffectiveAPY(NewDate(2024, 1, 2))
	require.True(t, ok)
	require.True(t, apy.Equal(decimal.RequireFromString("0.0365")))
	require.True(t, p.DailyRate(NewDate(2024, 1, 2)).Equal(decimal.RequireFromString("0.0001")))

	_, ok = p.EffectiveAPY(NewDate(2023, 11, 30))
	require.False(t, ok)
	require.True(t, p.DailyRate(NewDate(2023, 11, 30)).IsZero())
}

func TestNewCashPolicy_TimelineLookup(t *testing.T) {
	p, err := NewCashPolicy("p1", CashPolicyDocument{
		Currency: "USD",
		DayCount: intPtr(360),
		APYTimeline: []APYIntervalDocument{
			{From: "2024-02-01", To: "null", APY: "0.05"},
			{From: "2024-01-01", To: "2024-01-31", APY: "0.04"},
		},
	})
	require.NoError(t, err)
	require.Len(t, p.Timeline(), 2)

	apy, _ := p.EffectiveAPY(NewDate(2024, 1, 31))
	require.True(t, apy.Equal(decimal.RequireFromString("0.04")))
	apy, _ = p.EffectiveAPY(NewDate(2024, 2, 1))
	require.True(t, apy.Equal(decimal.RequireFromString("0.05")))
	apy, _ = p.EffectiveAPY(NewDate(2030, 6, 1))
	require.True(t, apy.Equal(decimal.RequireFromString("0.05")))
}

func TestNewCashPolicy_Rejects(t *testing.T) {
	cases := map[string]CashPolicyDocument{
		"zero day count":     {Currency: "USD", DayCount: intPtr(0)},
		"negative day count": {Currency: "USD", DayCount: intPtr(-365)},
		"bad currency":       {Currency: "DOLLARS"},
		"bad apy":            {Currency: "USD", APYTimeline: []APYIntervalDocument{{From: "2024-01-01", APY: "four percent"}}},
		"bad from":           {Currency: "USD", APYTimeline: []APYIntervalDocument{{From: "01/01/2024", APY: "0.04"}}},
		"to before from":     {Currency: "USD", APYTimeline: []APYIntervalDocument{{From: "2024-02-01", To: "2024-01-01", APY: "0.04"}}},
		"apy below -100%":    {Currency: "USD", APYTimeline: []APYIntervalDocument{{From: "2024-01-01", APY: "-1"}}},
		"overlap": {Currency: "USD", APYTimeline: []APYIntervalDocument{
			{From: "2024-01-01", To: "2024-02-15", APY: "0.04"},
			{From: "2024-02-01", APY: "0.05"},
		}},
		"open interval before another": {Currency: "USD", APYTimeline: []APYIntervalDocument{
			{From: "2024-01-01", APY: "0.04"},
			{From: "2024-06-01", APY: "0.05"},
		}},
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCashPolicy("p1", doc)
			require.Error(t, err)
			require.True(t, errors.Is(err, apperrors.ErrPolicy), "got %v", err)
		})
	}
}

func TestNewCashPolicy_SharedBoundaryDayIsInclusive(t *testing.T) {
	_, err := NewCashPolicy("p1", CashPolicyDocument{Currency: "USD", APYTimeline: []APYIntervalDocument{
		{From: "2024-01-01", To: "2024-06-30", APY: "0.04"},
		{From: "2024-06-30", APY: "0.05"},
	}})
	require.ErrorIs(t, err, apperrors.ErrPolicy)
	require.Contains(t, err.Error(), "bounds are inclusive")
	require.Contains(t, err.Error(), "must start after 2024-06-30")

	_, err = NewCashPolicy("p1", CashPolicyDocument{Currency: "USD", APYTimeline: []APYIntervalDocument{
		{From: "2024-01-01", To: "2024-06-30", APY: "0.04"},
		{From: "2024-07-01", APY: "0.05"},
	}})
	require.NoError(t, err)
}

func TestPostingDay(t *testing.T) {
	last, err := ParsePostingDay("last")
	require.NoError(t, err)
	require.Equal(t, "2024-02-29", DateKey(last.In(2024, 2)))
	require.Equal(t, "last", last.String())

	fifteenth, err := ParsePostingDay("15")
	require.NoError(t, err)
	require.Equal(t, "2024-02-15", DateKey(fifteenth.PostingDateFor(NewDate(2024, 2, 15))))
	require.Equal(t, "2024-03-15", DateKey(fifteenth.PostingDateFor(NewDate(2024, 2, 16))))
	require.Equal(t, "2024-01-16", DateKey(fifteenth.WindowStart(NewDate(2024, 2, 15))))

	thirtyFirst, err := FixedDayPosting(31)
	require.NoError(t, err)
	require.Equal(t, "2023-02-28", DateKey(thirtyFirst.In(2023, 2)))
	require.Equal(t, "2024-03-01", DateKey(thirtyFirst.WindowStart(NewDate(2024, 3, 31))))
	require.Equal(t, "2024-12-31", DateKey(last.PostingDateFor(NewDate(2024, 12, 5))))
	require.Equal(t, "2025-01-31", DateKey(thirtyFirst.PostingDateFor(NewDate(2025, 1, 1))))

	_, err = ParsePostingDay("32")
	require.ErrorIs(t, err, apperrors.ErrPolicy)
	_, err = ParsePostingDay("soon")
	require.ErrorIs(t, err, apperrors.ErrPolicy)
}
