package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/redzone-go/internal/models"
)

// Customer-level alerts.
const (
	AlertNoIncome        = "Increased Default Risk: No Active Income Detected"
	AlertLowBalance      = "Customer tends to keep a low balance over time"
	AlertOverdrafts      = "Frequent overdrafts in the last 3 months"
	AlertNSF             = "NSF activity detected in the last 3 months"
	AlertMultipleLenders = "Multiple active lenders detected"
	AlertDecliningIncome = "Income has declined over the last 3 months"
	AlertNegativeFlow    = "Spending exceeds income"
	AlertMissedPaydays   = "Expected income deposits were missed"
)

// Alert thresholds.
const (
	lowBalanceThreshold  = 100.0
	lowBalanceShare      = 0.5
	overdraftAlertCount  = 3
	lenderAlertCount     = 2
	incomeDeclineRatio   = 0.75
	incomeTrendMonths    = 3
	missedPaydayLookback = 60
)

// AlertInput is what the alert rules read for one customer.
type AlertInput struct {
	Features     ScoringInput
	Accounts     []*AccountSources
	Transactions []*models.Transaction
	AsOf         time.Time
}

// BuildAlerts evaluates every rule and returns the deduplicated alerts.
func BuildAlerts(in AlertInput) []string {
	f := in.Features.Features
	var alerts []string
	if f.ActiveIncomeSources == 0 {
		alerts = append(alerts, AlertNoIncome)
	}
	if f.AvgBalance3M < lowBalanceThreshold || in.Features.LowBalanceShare3M >= lowBalanceShare {
		alerts = append(alerts, AlertLowBalance)
	}
	if f.OverdraftCount3M >= overdraftAlertCount {
		alerts = append(alerts, AlertOverdrafts)
	}
	if f.NSFCount3M > 0 {
		alerts = append(alerts, AlertNSF)
	}
	if f.LoanSourceCount >= lenderAlertCount {
		alerts = append(alerts, AlertMultipleLenders)
	}
	if incomeDeclining(in.Transactions, in.AsOf) {
		alerts = append(alerts, AlertDecliningIncome)
	}
	if f.TotalMonthlyIncome > 0 && in.Features.MonthlySpending > f.TotalMonthlyIncome {
		alerts = append(alerts, AlertNegativeFlow)
	}
	if recentMissedPaydays(in.Accounts, in.AsOf) {
		alerts = append(alerts, AlertMissedPaydays)
	}
	if len(alerts) == 0 {
		alerts = append(alerts, models.NoneValue)
	}
	return DedupeAlerts(alerts)
}

// DedupeAlerts drops repeats and the "None" placeholder. When the no-income
// alert is present the low-balance alert is suppressed.
func DedupeAlerts(alerts []string) []string {
	seen := map[string]bool{}
	noIncome := false
	for _, a := range alerts {
		if a == AlertNoIncome {
			noIncome = true
		}
	}
	out := []string{}
	for _, a := range alerts {
		if a == models.NoneValue || seen[a] || (noIncome && a == AlertLowBalance) {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// incomeDeclining compares income credits of the latest three months with
// the three months before them.
func incomeDeclining(txns []*models.Transaction, asOf time.Time) bool {
	recentStart := asOf.AddDate(0, -incomeTrendMonths, 0)
	priorStart := recentStart.AddDate(0, -incomeTrendMonths, 0)
	recent, prior := decimal.Zero, decimal.Zero
	for _, t := range txns {
		if !t.IsCredit() || !t.Category.IsIncome() || t.Date.After(asOf) {
			continue
		}
		switch {
		case t.Date.After(recentStart):
			recent = recent.Add(t.Amount)
		case t.Date.After(priorStart):
			prior = prior.Add(t.Amount)
		}
	}
	if !prior.IsPositive() {
		return false
	}
	return recent.LessThan(prior.Mul(decimal.NewFromFloat(incomeDeclineRatio)))
}

func recentMissedPaydays(accounts []*AccountSources, asOf time.Time) bool {
	cutoff := asOf.AddDate(0, 0, -missedPaydayLookback).Format(models.DateLayout)
	for _, a := range accounts {
		for _, s := range a.ValidIncome() {
			for _, d := range s.MissingPaydays {
				if d > cutoff {
					return true
				}
			}
		}
	}
	return false
}
