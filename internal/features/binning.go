package features

// Interval bin labels in ascending order of elapsed days.
const (
	Bin1       = "1"
	Bin2To5    = "2-5"
	Bin6To8    = "6-8"
	Bin9To12   = "9-12"
	Bin13To17  = "13-17"
	Bin18To24  = "18-24"
	Bin24To35  = "24-35"
	Bin36AndUp = "36+"
)

// IntervalBins lists every bin label in vector order.
var IntervalBins = []string{Bin1, Bin2To5, Bin6To8, Bin9To12, Bin13To17, Bin18To24, Bin24To35, Bin36AndUp}

// BinInterval maps elapsed days between two transactions to a bin label.
// Negative intervals are treated as undefined and land in the last bin; a
// same-day interval counts as "1".
func BinInterval(days int) string {
	switch {
	case days < 0:
		return Bin36AndUp
	case days <= 1:
		return Bin1
	case days <= 5:
		return Bin2To5
	case days <= 8:
		return Bin6To8
	case days <= 12:
		return Bin9To12
	case days <= 17:
		return Bin13To17
	case days <= 24:
		return Bin18To24
	case days <= 35:
		return Bin24To35
	}
	return Bin36AndUp
}

func binIndex(label string) int {
	for i, b := range IntervalBins {
		if b == label {
			return i
		}
	}
	return len(IntervalBins) - 1
}
