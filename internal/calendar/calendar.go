// Package calendar decides which days are exchange trading days. It is used
// to tell an expected carry-forward (weekend, holiday) from a stale price.
package calendar

import (
	"sync"
	"time"

	"github.com/tropicaldog17/navledger/internal/models"
)

// Calendar is a US equity exchange calendar. Holidays are computed per year
// on first use and memoised in the calendar's own table; construct one and
// pass it by reference.
type Calendar struct {
	mu       sync.Mutex
	holidays map[int]map[string]string
}

// New returns an empty calendar.
func New() *Calendar {
	return &Calendar{holidays: make(map[int]map[string]string)}
}

// IsTradingDay reports whether markets are open on day.
func (c *Calendar) IsTradingDay(day time.Time) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.Holiday(day)
	return !holiday
}

// Holiday returns the holiday name when day is an exchange holiday.
func (c *Calendar) Holiday(day time.Time) (string, bool) {
	day = models.Day(day)
	name, ok := c.year(day.Year())[models.DateKey(day)]
	return name, ok
}

// TradingDays lists the trading days in [from, to].
func (c *Calendar) TradingDays(from, to time.Time) []time.Time {
	var out []time.Time
	for _, d := range models.DaysBetween(from, to) {
		if c.IsTradingDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// PreviousTradingDay returns the last trading day strictly before day.
func (c *Calendar) PreviousTradingDay(day time.Time) time.Time {
	d := models.Day(day).AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// CachedYears reports how many years have been memoised.
func (c *Calendar) CachedYears() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.holidays)
}

func (c *Calendar) year(y int) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.holidays[y]; ok {
		return h
	}
	h := holidaysFor(y)
	c.holidays[y] = h
	return h
}

func holidaysFor(y int) map[string]string {
	h := make(map[string]string)
	add := func(name string, d time.Time) { h[models.DateKey(d)] = name }

	// New Year's Day is not moved back into the previous year when it falls
	// on a Saturday.
	if ny := models.NewDate(y, time.January, 1); ny.Weekday() != time.Saturday {
		add("New Year's Day", observed(ny))
	}
	add("Martin Luther King Jr. Day", nthWeekday(y, time.January, time.Monday, 3))
	add("Washington's Birthday", nthWeekday(y, time.February, time.Monday, 3))
	add("Good Friday", easter(y).AddDate(0, 0, -2))
	add("Memorial Day", lastWeekday(y, time.May, time.Monday))
	if y >= 2022 {
		add("Juneteenth", observed(models.NewDate(y, time.June, 19)))
	}
	add("Independence Day", observed(models.NewDate(y, time.July, 4)))
	add("Labor Day", nthWeekday(y, time.September, time.Monday, 1))
	add("Thanksgiving Day", nthWeekday(y, time.November, time.Thursday, 4))
	add("Christmas Day", observed(models.NewDate(y, time.December, 25)))
	return h
}

// observed moves a Saturday holiday to Friday and a Sunday one to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(y int, m time.Month, wd time.Weekday, n int) time.Time {
	d := models.NewDate(y, m, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+7*(n-1))
}

func lastWeekday(y int, m time.Month, wd time.Weekday) time.Time {
	d := models.LastDayOfMonth(models.NewDate(y, m, 1))
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easter computes Western Easter Sunday (anonymous Gregorian algorithm).
func easter(y int) time.Time {
	a := y % 19
	b := y / 100
	c := y % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return models.NewDate(y, time.Month(month), day)
}
