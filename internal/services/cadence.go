package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/models"
)

// endOfMonth marks a day-of-month anchor that tracks the last day.
const endOfMonth = 31

// Gap thresholds, synthesis tolerances and recency grace per cadence.
var (
	missingGapDays = map[models.Frequency]int{
		models.FrequencyWeekly:   9,
		models.FrequencyBiweekly: 18,
		models.FrequencyMonthly:  35,
	}
	missingToleranceDays = map[models.Frequency]int{
		models.FrequencyWeekly:   1,
		models.FrequencyBiweekly: 2,
		models.FrequencyMonthly:  5,
	}
	recencyGraceDays = map[models.Frequency]int{
		models.FrequencyWeekly:      3,
		models.FrequencyBiweekly:    4,
		models.FrequencySemiMonthly: 4,
		models.FrequencyMonthly:     7,
		models.FrequencyIrregular:   31,
	}
)

// maxIntervalCV bounds the spread of intervals still read as a cadence.
const maxIntervalCV = 0.6

// cadence is the inferred rhythm of a payment series.
type cadence struct {
	Frequency models.Frequency
	Anchors   []int
}

// inferCadence classifies sorted, distinct payment dates by their median
// interval. Semi-monthly is told apart from bi-weekly by two day-of-month
// anchors.
func inferCadence(dates []time.Time) cadence {
	intervals := features.Intervals(dates)
	if len(intervals) == 0 {
		return cadence{Frequency: models.FrequencyIrregular}
	}
	values := intsToFloats(intervals)
	if len(values) >= 3 && features.CoefficientOfVariation(values) > maxIntervalCV {
		return cadence{Frequency: models.FrequencyIrregular}
	}

	median := features.Median(values)
	switch {
	case median >= 5 && median <= 9:
		return cadence{Frequency: models.FrequencyWeekly}
	case median >= 13 && median <= 17:
		if allEqual(intervals, 14) {
			return cadence{Frequency: models.FrequencyBiweekly}
		}
		if anchors := domAnchors(dates); len(anchors) == 2 && anchors[1]-anchors[0] >= 10 {
			return cadence{Frequency: models.FrequencySemiMonthly, Anchors: anchors}
		}
		return cadence{Frequency: models.FrequencyBiweekly}
	case median >= 26 && median <= 35:
		return cadence{Frequency: models.FrequencyMonthly, Anchors: primaryAnchor(dates)}
	}
	return cadence{Frequency: models.FrequencyIrregular}
}

// domKey folds month-end paydays together.
func domKey(d time.Time) int {
	if d.Day() >= 28 && d.AddDate(0, 0, 1).Month() != d.Month() {
		return endOfMonth
	}
	return d.Day()
}

type anchorGroup struct {
	mode  int
	count int
	total int
}

// domGroups clusters day-of-month keys lying within three days of each other,
// ascending, each represented by its most frequent key.
func domGroups(dates []time.Time) []anchorGroup {
	counts := map[int]int{}
	for _, d := range dates {
		counts[domKey(d)]++
	}
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var groups []anchorGroup
	for i, k := range keys {
		if i == 0 || k-keys[i-1] > 3 {
			groups = append(groups, anchorGroup{})
		}
		g := &groups[len(groups)-1]
		g.total += counts[k]
		if counts[k] > g.count {
			g.mode, g.count = k, counts[k]
		}
	}
	return groups
}

// domAnchors returns the anchors of a two-anchor series, or nil.
func domAnchors(dates []time.Time) []int {
	groups := domGroups(dates)
	if len(groups) != 2 {
		return nil
	}
	return []int{groups[0].mode, groups[1].mode}
}

// primaryAnchor returns the mode of the most populated group.
func primaryAnchor(dates []time.Time) []int {
	groups := domGroups(dates)
	if len(groups) == 0 {
		return nil
	}
	best := groups[0]
	for _, g := range groups[1:] {
		if g.total > best.total {
			best = g
		}
	}
	return []int{best.mode}
}

// dateInMonth places day in the given month, clamping to its last day.
func dateInMonth(year int, month time.Month, day int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// projectNext returns the first payment date after asOf following last.
func projectNext(c cadence, last, asOf time.Time) (time.Time, bool) {
	switch c.Frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly:
		step := c.Frequency.NominalDays()
		next := last.AddDate(0, 0, step)
		for !next.After(asOf) {
			next = next.AddDate(0, 0, step)
		}
		return next, true
	case models.FrequencyMonthly, models.FrequencySemiMonthly:
		if len(c.Anchors) == 0 {
			return time.Time{}, false
		}
		for m := 0; m < 120; m++ {
			month := time.Date(last.Year(), last.Month()+time.Month(m), 1, 0, 0, 0, 0, time.UTC)
			for _, a := range c.Anchors {
				d := dateInMonth(month.Year(), month.Month(), a)
				if d.After(last) && d.After(asOf) {
					return d, true
				}
			}
		}
	}
	return time.Time{}, false
}

// missingPaydays synthesizes dates for gaps that exceed the cadence's
// threshold. Irregular and semi-monthly series never report gaps.
func missingPaydays(freq models.Frequency, dates []time.Time) []time.Time {
	threshold, ok := missingGapDays[freq]
	if !ok || len(dates) < 2 {
		return nil
	}
	interval := freq.NominalDays()
	tol := missingToleranceDays[freq]

	var out []time.Time
	for i := 1; i < len(dates); i++ {
		gap := features.DaysBetween(dates[i-1], dates[i])
		if gap < threshold {
			continue
		}
		count := int(math.Round(float64(gap)/float64(interval))) - 1
		if count < 1 {
			count = 1
		}
		for k := 1; k <= count; k++ {
			offset := k * interval
			if offset > gap-tol {
				break
			}
			out = append(out, dates[i-1].AddDate(0, 0, offset))
		}
	}
	return out
}

// activeScore awards one point each for a recent payment, a consistent
// payday and a stable amount.
func activeScore(c cadence, dates []time.Time, amounts []float64, asOf time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	score := 0
	last := dates[len(dates)-1]
	if features.DaysBetween(last, asOf) <= c.Frequency.NominalDays()+recencyGraceDays[c.Frequency] {
		score++
	}

	switch c.Frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly:
		if _, share := modeWeekday(dates); share >= 0.75 {
			score++
		}
	case models.FrequencyMonthly, models.FrequencySemiMonthly:
		if meanAnchorDistance(dates, c.Anchors) <= 3 {
			score++
		}
	}

	if len(amounts) >= 2 {
		if cv := features.CoefficientOfVariation(amounts); !math.IsNaN(cv) && cv < 0.25 {
			score++
		}
	}
	return score
}

func modeWeekday(dates []time.Time) (time.Weekday, float64) {
	var counts [7]int
	for _, d := range dates {
		counts[d.Weekday()]++
	}
	best := time.Sunday
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if counts[wd] > counts[best] {
			best = wd
		}
	}
	return best, float64(counts[best]) / float64(len(dates))
}

func meanAnchorDistance(dates []time.Time, anchors []int) float64 {
	if len(anchors) == 0 {
		return math.Inf(1)
	}
	total := 0.0
	for _, d := range dates {
		key := domKey(d)
		best := math.MaxInt
		for _, a := range anchors {
			if dist := abs(key - a); dist < best {
				best = dist
			}
		}
		total += float64(best)
	}
	return total / float64(len(dates))
}

// regularPayDay renders the payday a cadence settles on.
func regularPayDay(c cadence, dates []time.Time) string {
	switch c.Frequency {
	case models.FrequencyWeekly, models.FrequencyBiweekly:
		wd, _ := modeWeekday(dates)
		return wd.String()
	case models.FrequencyMonthly, models.FrequencySemiMonthly:
		parts := make([]string, len(c.Anchors))
		for i, a := range c.Anchors {
			parts[i] = ordinalDay(a)
		}
		if len(parts) == 2 {
			return parts[0] + " and " + parts[1]
		}
		if len(parts) == 1 {
			return parts[0]
		}
	}
	return models.FrequencyIrregular.Label()
}

func ordinalDay(day int) string {
	if day == endOfMonth {
		return "last day"
	}
	suffix := "th"
	switch {
	case day%100 >= 11 && day%100 <= 13:
	case day%10 == 1:
		suffix = "st"
	case day%10 == 2:
		suffix = "nd"
	case day%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", day, suffix)
}

func allEqual(values []int, want int) bool {
	for _, v := range values {
		if v != want {
			return false
		}
	}
	return len(values) > 0
}

func intsToFloats(ints []int) []float64 {
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
