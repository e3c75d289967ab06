package services

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/irfndi/redzone-go/internal/models"
)

// ATPParams tunes the ability-to-pay analysis.
type ATPParams struct {
	DebitAmount  float64
	Prominence   float64
	PeakDistance int
	MinimumDays  int
}

// ATPDay is one day of the balance series annotated for debit timing.
type ATPDay struct {
	DailyBalance
	Peak          bool
	EnoughBalance bool
	GoodToDebit   bool
}

// FindPeaks returns the indices of local maxima of x. Flat tops report
// their middle sample (rounded down). Peaks closer than distance samples to
// a higher peak are dropped, then peaks less prominent than prominence.
func FindPeaks(x []float64, distance int, prominence float64) []int {
	peaks := localMaxima(x)
	if distance > 1 {
		peaks = selectByDistance(x, peaks, distance)
	}
	if prominence > 0 {
		proms := Prominences(x, peaks)
		kept := peaks[:0:0]
		for i, p := range peaks {
			if proms[i] >= prominence {
				kept = append(kept, p)
			}
		}
		peaks = kept
	}
	return peaks
}

func localMaxima(x []float64) []int {
	var peaks []int
	i, last := 1, len(x)-1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
			}
		}
		i++
	}
	return peaks
}

// selectByDistance keeps the highest peaks first; among equal heights the
// later peak is considered first.
func selectByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[peaks[order[a]]] < x[peaks[order[b]]] })

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	var out []int
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// Prominences measures how far each peak stands above the higher of its two
// bases, each base being the minimum reached before the series climbs above
// the peak or ends.
func Prominences(x []float64, peaks []int) []float64 {
	out := make([]float64, len(peaks))
	for n, p := range peaks {
		leftMin := x[p]
		for i := p; i >= 0 && x[i] <= x[p]; i-- {
			leftMin = math.Min(leftMin, x[i])
		}
		rightMin := x[p]
		for i := p; i < len(x) && x[i] <= x[p]; i++ {
			rightMin = math.Min(rightMin, x[i])
		}
		out[n] = x[p] - math.Max(leftMin, rightMin)
	}
	return out
}

// AnalyzeATP marks, after each balance peak, the days where the peak's
// prominence less the drop since the peak still covers the debit, and flags
// runs of at least MinimumDays such days as good to debit.
func AnalyzeATP(series []DailyBalance, params ATPParams) ([]ATPDay, models.ATPSummary) {
	days := make([]ATPDay, len(series))
	balances := make([]float64, len(series))
	for i, p := range series {
		days[i].DailyBalance = p
		balances[i] = p.Balance
	}

	peaks := FindPeaks(balances, params.PeakDistance, params.Prominence)
	proms := Prominences(balances, peaks)
	for n, p := range peaks {
		days[p].Peak = true
		end := len(days)
		if n+1 < len(peaks) {
			end = peaks[n+1]
		}
		for d := p; d < end; d++ {
			drop := balances[p] - balances[d]
			if drop >= proms[n] {
				break
			}
			if proms[n]-drop > params.DebitAmount {
				days[d].EnoughBalance = true
			}
		}
	}

	minDays := params.MinimumDays
	if minDays < 1 {
		minDays = 1
	}
	for start := 0; start < len(days); {
		if !days[start].EnoughBalance {
			start++
			continue
		}
		end := start
		for end < len(days) && days[end].EnoughBalance {
			end++
		}
		if end-start >= minDays {
			for d := start; d < end; d++ {
				days[d].GoodToDebit = true
			}
		}
		start = end
	}

	summary := models.ATPSummary{
		DebitAmount:            decimal.NewFromFloat(params.DebitAmount).Round(2),
		MinimumDays:            minDays,
		PeakCount:              len(peaks),
		GoodToDebitDates:       []string{},
		GoodToDebitDaysOfMonth: []int{},
	}
	seen := map[int]bool{}
	for _, d := range days {
		if !d.GoodToDebit {
			continue
		}
		summary.GoodToDebitDates = append(summary.GoodToDebitDates, d.Date.Format(models.DateLayout))
		if dom := d.Date.Day(); !seen[dom] {
			seen[dom] = true
			summary.GoodToDebitDaysOfMonth = append(summary.GoodToDebitDaysOfMonth, dom)
		}
	}
	sort.Ints(summary.GoodToDebitDaysOfMonth)
	return days, summary
}
