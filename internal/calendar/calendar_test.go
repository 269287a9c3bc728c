package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tropicaldog17/navledger/internal/models"
)

func TestHolidays2024(t *testing.T) {
	cal := New()
	expected := map[string]string{
		"2024-01-01": "New Year's Day",
		"2024-01-15": "Martin Luther King Jr. Day",
		"2024-02-19": "Washington's Birthday",
		"2024-03-29": "Good Friday",
		"2024-05-27": "Memorial Day",
		"2024-06-19": "Juneteenth",
		"2024-07-04": "Independence Day",
		"2024-09-02": "Labor Day",
		"2024-11-28": "Thanksgiving Day",
		"2024-12-25": "Christmas Day",
	}
	for day, name := range expected {
		got, ok := cal.Holiday(models.MustParseDate(day))
		require.True(t, ok, day)
		require.Equal(t, name, got, day)
		require.False(t, cal.IsTradingDay(models.MustParseDate(day)), day)
	}
}

func TestObservedHolidays(t *testing.T) {
	cal := New()
	// July 4th 2026 is a Saturday, observed Friday July 3rd.
	_, ok := cal.Holiday(models.NewDate(2026, time.July, 3))
	require.True(t, ok)
	// Christmas 2022 is a Sunday, observed Monday the 26th.
	_, ok = cal.Holiday(models.NewDate(2022, time.December, 26))
	require.True(t, ok)
	// New Year 2022 fell on a Saturday and was not observed.
	_, ok = cal.Holiday(models.NewDate(2021, time.December, 31))
	require.False(t, ok)
	// No Juneteenth before 2022.
	_, ok = cal.Holiday(models.NewDate(2021, time.June, 18))
	require.False(t, ok)
}

func TestTradingDays(t *testing.T) {
	cal := New()
	days := cal.TradingDays(models.NewDate(2024, 3, 25), models.NewDate(2024, 4, 2))
	keys := make([]string, 0, len(days))
	for _, d := range days {
		keys = append(keys, models.DateKey(d))
	}
	require.Equal(t, []string{"2024-03-25", "2024-03-26", "2024-03-27", "2024-03-28", "2024-04-01", "2024-04-02"}, keys)
	require.Equal(t, "2024-03-28", models.DateKey(cal.PreviousTradingDay(models.NewDate(2024, 4, 1))))
}

func TestMemoTableIsPerCalendar(t *testing.T) {
	a, b := New(), New()
	a.IsTradingDay(models.NewDate(2024, 1, 2))
	a.IsTradingDay(models.NewDate(2025, 1, 2))
	a.IsTradingDay(models.NewDate(2024, 6, 2))
	require.Equal(t, 2, a.CachedYears())
	require.Equal(t, 0, b.CachedYears())
}
