package calendar

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/redzone-go/internal/models"
)

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFederalHolidays(t *testing.T) {
	got := make(map[string]string)
	for _, h := range FederalHolidays(2024) {
		got[h.Date.Format(models.DateLayout)] = h.Name
	}
	assert.Len(t, got, 11)
	assert.Equal(t, "Martin Luther King Jr. Day", got["2024-01-15"])
	assert.Equal(t, "Presidents' Day", got["2024-02-19"])
	assert.Equal(t, "Memorial Day", got["2024-05-27"])
	assert.Equal(t, "Juneteenth", got["2024-06-19"])
	assert.Equal(t, "Labor Day", got["2024-09-02"])
	assert.Equal(t, "Columbus Day", got["2024-10-14"])
	assert.Equal(t, "Thanksgiving Day", got["2024-11-28"])

	assert.Len(t, FederalHolidays(2019), 10)
}

func TestCalendar_SundayObserved(t *testing.T) {
	c := New(nil)
	h, ok := c.Holiday(date("2022-12-26"))
	require.True(t, ok)
	assert.Equal(t, "Christmas Day", h.Name)

	_, ok = c.Holiday(date("2022-12-25"))
	assert.False(t, ok)

	_, ok = c.Holiday(date("2021-12-25"))
	assert.True(t, ok)
	assert.True(t, c.IsBusinessDay(date("2021-12-24")))
}

func TestCalendar_NearestBusinessDay(t *testing.T) {
	c := New([]models.Holiday{{Date: date("2024-03-13"), Name: "Local Holiday"}})

	tests := []struct {
		in, want string
	}{
		{"2024-03-12", "2024-03-12"},
		{"2024-03-09", "2024-03-08"},
		{"2024-03-10", "2024-03-11"},
		{"2024-07-04", "2024-07-03"},
		{"2024-09-02", "2024-09-03"},
		{"2024-03-13", "2024-03-12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.NearestBusinessDay(date(tt.in)).Format(models.DateLayout), tt.in)
	}
	assert.Equal(t, "2024-09-03", c.NextBusinessDay(date("2024-08-30")).Format(models.DateLayout))
	assert.Equal(t, "2024-08-30", c.PreviousBusinessDay(date("2024-09-03")).Format(models.DateLayout))
}

func TestCalendar_NearHoliday(t *testing.T) {
	c := New(nil)
	tests := []struct {
		in   string
		want Proximity
		name string
	}{
		{"2024-07-04", ProximityOn, "Independence Day"},
		{"2024-07-03", ProximityBefore, "Independence Day"},
		{"2024-07-05", ProximityAfter, "Independence Day"},
		{"2024-08-30", ProximityBefore, "Labor Day"},
		{"2024-09-03", ProximityAfter, "Labor Day"},
		{"2024-07-10", ProximityNone, ""},
		{"2024-07-06", ProximityNone, ""},
	}
	for _, tt := range tests {
		h, p := c.NearHoliday(date(tt.in))
		assert.Equal(t, tt.want, p, tt.in)
		assert.Equal(t, tt.name, h.Name, tt.in)
	}
}

func TestStore_Replace(t *testing.T) {
	s := NewStore(nil)
	d := date("2024-03-13")
	assert.True(t, s.Load().IsBusinessDay(d))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Load().IsBusinessDay(d)
		}()
	}
	s.Replace([]models.Holiday{{Date: d, Name: "Local Holiday"}})
	wg.Wait()

	assert.False(t, s.Load().IsBusinessDay(d))
}
