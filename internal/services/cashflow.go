package services

import (
	"regexp"
	"sort"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"

	"github.com/irfndi/redzone-go/internal/calendar"
	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/models"
)

var nsfPattern = regexp.MustCompile(`(?i)\b(nsf|insufficient funds?|returned item|overdraft (fee|charge)|od fee)\b`)

// DailyBalance is one day of the reconstructed balance series.
type DailyBalance struct {
	Date    time.Time
	Net     float64
	Balance float64
}

// rollingBalanceDays is the trailing window of the rolling average balance.
const rollingBalanceDays = 30

// CashflowAnalysis is the cash-flow view of one account.
type CashflowAnalysis struct {
	Summary   models.CashFlow
	Incidents []models.OverdraftIncident
	Series    []DailyBalance
	// LowBalanceShare3M is the share of days in the last three months whose
	// 30-day rolling average balance sat below the low-balance threshold.
	LowBalanceShare3M float64
}

// CashflowRow is the compact per-account cash-flow summary.
type CashflowRow struct {
	AccountGUID  string          `json:"accountGuid"`
	TotalCredits decimal.Decimal `json:"totalCredits"`
	TotalDebits  decimal.Decimal `json:"totalDebits"`
	NetCashFlow  decimal.Decimal `json:"netCashFlow"`
	Spending     decimal.Decimal `json:"spending"`
}

// window is a trailing period ending at the as-of date; zero months means
// the full history.
type window struct {
	months int
}

func (w window) contains(d, asOf time.Time) bool {
	if d.After(asOf) {
		return false
	}
	return w.months == 0 || d.After(asOf.AddDate(0, -w.months, 0))
}

var (
	windowAll   = window{}
	window3M    = window{months: 3}
	window6M    = window{months: 6}
	cashWindows = []window{windowAll, window3M, window6M}
)

// CashflowAnalyzer reconstructs daily balances and detects overdrafts.
type CashflowAnalyzer struct{}

// NewCashflowAnalyzer creates an analyzer.
func NewCashflowAnalyzer() *CashflowAnalyzer {
	return &CashflowAnalyzer{}
}

// Analyze summarizes one account's transactions. snapshot may be nil.
func (a *CashflowAnalyzer) Analyze(accountGUID string, txns []*models.Transaction, snapshot *models.BalanceSnapshot, asOf time.Time) *CashflowAnalysis {
	out := &CashflowAnalysis{
		Summary:   models.CashFlow{AccountGUID: accountGUID},
		Incidents: []models.OverdraftIncident{},
	}
	if len(txns) == 0 {
		return out
	}

	credits, debits, spending := decimal.Zero, decimal.Zero, decimal.Zero
	first, last := txns[0].Date, txns[0].Date
	for _, t := range txns {
		if t.IsCredit() {
			credits = credits.Add(t.Amount)
		} else {
			debits = debits.Add(t.Amount)
			if t.Category != models.CategoryTransfer && t.Category != models.CategoryLoan {
				spending = spending.Add(t.Amount)
			}
		}
		if t.Date.Before(first) {
			first = t.Date
		}
		if t.Date.After(last) {
			last = t.Date
		}
	}

	days := features.DaysBetween(first, last) + 1
	months := float64(days) / daysPerMonth
	if months < 1 {
		months = 1
	}
	monthsDec := decimal.NewFromFloat(months)

	out.Series = BalanceSeries(txns, snapshot)
	out.Incidents = detectIncidents(accountGUID, txns, out.Series)

	s := &out.Summary
	s.TotalCredits = credits.Round(2)
	s.TotalDebits = debits.Round(2)
	s.NetCashFlow = credits.Sub(debits).Round(2)
	s.Spending = spending.Round(2)
	s.MonthlyAverageCredit = credits.Div(monthsDec).Round(2)
	s.MonthlyAverageDebit = debits.Div(monthsDec).Round(2)
	s.DaysOfHistory = days

	avg := make([]decimal.Decimal, len(cashWindows))
	overdrafts := make([]int, len(cashWindows))
	nsf := make([]int, len(cashWindows))
	for i, w := range cashWindows {
		var balances []float64
		for _, p := range out.Series {
			if w.contains(p.Date, asOf) {
				balances = append(balances, p.Balance)
			}
		}
		if len(balances) > 0 {
			avg[i] = decimal.NewFromFloat(features.Mean(balances)).Round(2)
		}
		for _, inc := range out.Incidents {
			d, err := time.Parse(models.DateLayout, inc.Date)
			if err != nil || !w.contains(d, asOf) {
				continue
			}
			if inc.Type == models.IncidentNSF {
				nsf[i]++
			} else {
				overdrafts[i]++
			}
		}
	}
	s.AverageBalance = models.WindowValues{All: avg[0], ThreeMonth: avg[1], SixMonth: avg[2]}
	s.OverdraftCount = models.WindowCounts{All: overdrafts[0], ThreeMonth: overdrafts[1], SixMonth: overdrafts[2]}
	s.NSFCount = models.WindowCounts{All: nsf[0], ThreeMonth: nsf[1], SixMonth: nsf[2]}
	out.LowBalanceShare3M = lowBalanceShareIn(out.Series, window3M, asOf)
	return out
}

// lowBalanceShareIn rates the rolling averages that end inside w.
func lowBalanceShareIn(series []DailyBalance, w window, asOf time.Time) float64 {
	rolling := RollingBalance(series, rollingBalanceDays)
	if len(rolling) == 0 {
		return 0
	}
	offset := len(series) - len(rolling)
	total, low := 0, 0
	for i, v := range rolling {
		if !w.contains(series[i+offset].Date, asOf) {
			continue
		}
		total++
		if v < lowBalanceThreshold {
			low++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(low) / float64(total)
}

// Row returns the compact summary.
func (c *CashflowAnalysis) Row() CashflowRow {
	return CashflowRow{
		AccountGUID:  c.Summary.AccountGUID,
		TotalCredits: c.Summary.TotalCredits,
		TotalDebits:  c.Summary.TotalDebits,
		NetCashFlow:  c.Summary.NetCashFlow,
		Spending:     c.Summary.Spending,
	}
}

// CashflowSummary returns one row per analysed account.
func CashflowSummary(analyses []*CashflowAnalysis) []CashflowRow {
	rows := make([]CashflowRow, 0, len(analyses))
	for _, a := range analyses {
		rows = append(rows, a.Row())
	}
	return rows
}

// BalanceSeries builds the daily series from the day before the first
// transaction to the day after the last. The leading day carries no flow;
// the trailing day repeats the last balance. With a snapshot the series is
// shifted so that it reads CurrentBalance on CurrentBalanceDate.
func BalanceSeries(txns []*models.Transaction, snapshot *models.BalanceSnapshot) []DailyBalance {
	if len(txns) == 0 {
		return nil
	}
	net := map[time.Time]float64{}
	first, last := calendar.Day(txns[0].Date), calendar.Day(txns[0].Date)
	for _, t := range txns {
		d := calendar.Day(t.Date)
		net[d] += t.Signed().InexactFloat64()
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}

	start, end := first.AddDate(0, 0, -1), last.AddDate(0, 0, 1)
	var series []DailyBalance
	running := 0.0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		flow := 0.0
		if !d.Equal(start) && !d.Equal(end) {
			flow = net[d]
		}
		running += flow
		series = append(series, DailyBalance{Date: d, Net: flow, Balance: running})
	}

	if snapshot != nil && snapshot.HasBalance {
		offset := snapshot.CurrentBalance.InexactFloat64() - balanceOn(series, calendar.Day(snapshot.CurrentBalanceDate))
		for i := range series {
			series[i].Balance += offset
		}
	}
	return series
}

// balanceOn reads the series at d, holding the edge values outside it.
func balanceOn(series []DailyBalance, d time.Time) float64 {
	if d.Before(series[0].Date) {
		return series[0].Balance
	}
	i := sort.Search(len(series), func(i int) bool { return series[i].Date.After(d) })
	return series[i-1].Balance
}

// RollingBalance returns the trailing simple moving average of the daily
// balance. Element i averages series[i : i+period]; a series shorter than
// period yields its overall mean.
func RollingBalance(series []DailyBalance, period int) []float64 {
	if len(series) == 0 {
		return nil
	}
	if period <= 0 || period > len(series) {
		period = len(series)
	}
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Balance
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
}

// IsNSF reports whether the transaction is a returned-item or NSF fee.
func IsNSF(t *models.Transaction) bool {
	return t.Category == models.CategoryNSF || nsfPattern.MatchString(t.RawDescription)
}

// detectIncidents reports each day the balance crossed below zero and every
// NSF transaction.
func detectIncidents(accountGUID string, txns []*models.Transaction, series []DailyBalance) []models.OverdraftIncident {
	byDay := map[time.Time][]*models.Transaction{}
	for _, t := range txns {
		d := calendar.Day(t.Date)
		byDay[d] = append(byDay[d], t)
	}

	incidents := []models.OverdraftIncident{}
	for i := 1; i < len(series); i++ {
		if series[i].Balance >= 0 || series[i-1].Balance < 0 {
			continue
		}
		inc := models.OverdraftIncident{
			AccountGUID: accountGUID,
			Date:        series[i].Date.Format(models.DateLayout),
			Type:        models.IncidentOverdraft,
			Balance:     decimal.NewFromFloat(series[i].Balance).Round(2),
			Amount:      decimal.Zero,
		}
		if t := largestDebit(byDay[series[i].Date]); t != nil {
			inc.Amount = t.Amount
			inc.Description = t.RawDescription
			inc.TransGUID = t.TransGUID
		}
		incidents = append(incidents, inc)
	}

	for _, t := range txns {
		if !IsNSF(t) {
			continue
		}
		d := calendar.Day(t.Date)
		incidents = append(incidents, models.OverdraftIncident{
			AccountGUID: accountGUID,
			Date:        d.Format(models.DateLayout),
			Type:        models.IncidentNSF,
			Balance:     decimal.NewFromFloat(balanceOn(series, d)).Round(2),
			Amount:      t.Amount,
			Description: t.RawDescription,
			TransGUID:   t.TransGUID,
		})
	}

	sort.SliceStable(incidents, func(i, j int) bool { return incidents[i].Date < incidents[j].Date })
	return incidents
}

func largestDebit(txns []*models.Transaction) *models.Transaction {
	var best *models.Transaction
	for _, t := range txns {
		if t.IsCredit() {
			continue
		}
		if best == nil || t.Amount.GreaterThan(best.Amount) {
			best = t
		}
	}
	return best
}
