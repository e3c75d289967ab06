// Package calendar answers business-day and bank-holiday questions.
package calendar

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/irfndi/redzone-go/internal/models"
)

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// observed moves a Sunday holiday to Monday. Saturday holidays are not
// shifted; banks stay open the Friday before.
func observed(d time.Time) time.Time {
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	return d
}

// FederalHolidays returns the bank holidays observed in year.
func FederalHolidays(year int) []models.Holiday {
	fixed := func(m time.Month, day int) time.Time {
		return observed(time.Date(year, m, day, 0, 0, 0, 0, time.UTC))
	}
	out := []models.Holiday{
		{Date: fixed(time.January, 1), Name: "New Year's Day"},
		{Date: nthWeekday(year, time.January, time.Monday, 3), Name: "Martin Luther King Jr. Day"},
		{Date: nthWeekday(year, time.February, time.Monday, 3), Name: "Presidents' Day"},
		{Date: lastWeekday(year, time.May, time.Monday), Name: "Memorial Day"},
		{Date: fixed(time.July, 4), Name: "Independence Day"},
		{Date: nthWeekday(year, time.September, time.Monday, 1), Name: "Labor Day"},
		{Date: nthWeekday(year, time.October, time.Monday, 2), Name: "Columbus Day"},
		{Date: fixed(time.November, 11), Name: "Veterans Day"},
		{Date: nthWeekday(year, time.November, time.Thursday, 4), Name: "Thanksgiving Day"},
		{Date: fixed(time.December, 25), Name: "Christmas Day"},
	}
	if year >= 2021 {
		out = append(out, models.Holiday{Date: fixed(time.June, 19), Name: "Juneteenth"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Calendar combines federal holidays with an optional loaded table.
type Calendar struct {
	extra map[time.Time]string
}

// New creates a calendar; extra holidays add to the federal ones.
func New(extra []models.Holiday) *Calendar {
	c := &Calendar{extra: make(map[time.Time]string, len(extra))}
	for _, h := range extra {
		c.extra[Day(h.Date)] = h.Name
	}
	return c
}

// Holiday returns the holiday observed on d, if any.
func (c *Calendar) Holiday(d time.Time) (models.Holiday, bool) {
	d = Day(d)
	if name, ok := c.extra[d]; ok {
		return models.Holiday{Date: d, Name: name}, true
	}
	for _, h := range FederalHolidays(d.Year()) {
		if h.Date.Equal(d) {
			return h, true
		}
	}
	return models.Holiday{}, false
}

// IsBusinessDay reports whether d is a weekday that is not a holiday.
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := c.Holiday(d)
	return !holiday
}

// NextBusinessDay returns the first business day strictly after d.
func (c *Calendar) NextBusinessDay(d time.Time) time.Time {
	d = Day(d).AddDate(0, 0, 1)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PreviousBusinessDay returns the last business day strictly before d.
func (c *Calendar) PreviousBusinessDay(d time.Time) time.Time {
	d = Day(d).AddDate(0, 0, -1)
	for !c.IsBusinessDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NearestBusinessDay returns d when it is a business day, otherwise the
// closest business day; ties resolve to the earlier date.
func (c *Calendar) NearestBusinessDay(d time.Time) time.Time {
	d = Day(d)
	if c.IsBusinessDay(d) {
		return d
	}
	prev, next := c.PreviousBusinessDay(d), c.NextBusinessDay(d)
	if d.Sub(prev) <= next.Sub(d) {
		return prev
	}
	return next
}

// Proximity describes where a date sits relative to a holiday.
type Proximity int

const (
	ProximityNone Proximity = iota
	ProximityOn
	ProximityBefore
	ProximityAfter
)

// NearHoliday reports a holiday falling on d or on the business-day
// boundary adjacent to d: d is the last business day before it or the first
// business day after it.
func (c *Calendar) NearHoliday(d time.Time) (models.Holiday, Proximity) {
	d = Day(d)
	if h, ok := c.Holiday(d); ok {
		return h, ProximityOn
	}
	if !c.IsBusinessDay(d) {
		return models.Holiday{}, ProximityNone
	}
	for x := d.AddDate(0, 0, 1); !c.IsBusinessDay(x); x = x.AddDate(0, 0, 1) {
		if h, ok := c.Holiday(x); ok {
			return h, ProximityBefore
		}
	}
	for x := d.AddDate(0, 0, -1); !c.IsBusinessDay(x); x = x.AddDate(0, 0, -1) {
		if h, ok := c.Holiday(x); ok {
			return h, ProximityAfter
		}
	}
	return models.Holiday{}, ProximityNone
}

// Store holds the active calendar and swaps it atomically on refresh.
type Store struct {
	current atomic.Pointer[Calendar]
}

// NewStore creates a store holding c, or a federal-only calendar when nil.
func NewStore(c *Calendar) *Store {
	if c == nil {
		c = New(nil)
	}
	s := &Store{}
	s.current.Store(c)
	return s
}

// Load returns the active calendar.
func (s *Store) Load() *Calendar {
	return s.current.Load()
}

// Replace swaps in a calendar built from the given holidays.
func (s *Store) Replace(holidays []models.Holiday) {
	s.current.Store(New(holidays))
}
