package features

import (
	"math"
	"sort"
	"time"
)

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation, or NaN for an empty
// slice.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)))
}

// CoefficientOfVariation returns StdDev/Mean; a zero mean yields NaN.
func CoefficientOfVariation(values []float64) float64 {
	m := Mean(values)
	if m == 0 || math.IsNaN(m) {
		return math.NaN()
	}
	return StdDev(values) / math.Abs(m)
}

// Median returns the middle value, averaging the two middle values for an
// even count. The input is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// Intervals returns elapsed days between consecutive dates, which must
// already be sorted ascending.
func Intervals(dates []time.Time) []int {
	if len(dates) < 2 {
		return nil
	}
	out := make([]int, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		out[i-1] = DaysBetween(dates[i-1], dates[i])
	}
	return out
}

func toFloats(ints []int) []float64 {
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}
