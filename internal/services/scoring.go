package services

import (
	"fmt"
	"math"

	"github.com/irfndi/redzone-go/internal/classifier"
	"github.com/irfndi/redzone-go/internal/config"
	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/models"
)

// maxReasons caps the explanatory factors per score.
const maxReasons = 4

var reasonText = map[string]string{
	"total_monthly_income":  "Insufficient monthly income",
	"active_income_sources": "Few active income sources",
	"income_active_score":   "Income deposits are not consistently active",
	"regular_income":        "No regular income schedule",
	"monthly_loan_payments": "High monthly loan payments",
	"loan_source_count":     "Multiple active lenders",
	"avg_balance_all":       "Low average balance",
	"avg_balance_3m":        "Low average balance in the last 3 months",
	"overdraft_count_all":   "History of overdrafts",
	"overdraft_count_3m":    "Recent overdrafts",
	"nsf_count_3m":          "Recent NSF activity",
	"net_cash_flow_monthly": "Negative net cash flow",
	"days_of_history":       "Limited transaction history",
	"spending_to_income":    "High spending relative to income",
}

// ReasonText renders a scorer feature as a model reason.
func ReasonText(feature string) string {
	if text, ok := reasonText[feature]; ok {
		return text
	}
	return feature
}

// ScoringInput is the scorer feature set plus the monthly spending needed to
// recombine accounts and the rolling low-balance share read by the alerts.
type ScoringInput struct {
	Features          features.AccountFeatures
	MonthlySpending   float64
	LowBalanceShare3M float64
}

// BuildScoringInput derives the scorer inputs of one account.
func BuildScoringInput(src *AccountSources, cf *CashflowAnalysis) ScoringInput {
	var f features.AccountFeatures
	valid := src.ValidIncome()
	f.TotalMonthlyIncome = src.TotalMonthlyIncome().InexactFloat64()
	f.ActiveIncomeSources = len(valid)
	activeTotal := 0
	for _, s := range valid {
		activeTotal += s.ActiveScore
		if s.Frequency.IsRegular() {
			f.RegularIncome = true
		}
	}
	if len(valid) > 0 {
		f.IncomeActiveScore = float64(activeTotal) / float64(len(valid))
	}
	f.MonthlyLoanPayments = src.MonthlyLoanPayments.InexactFloat64()
	f.LoanSourceCount = src.ActiveLoans()

	s := cf.Summary
	f.AvgBalanceAll = s.AverageBalance.All.InexactFloat64()
	f.AvgBalance3M = s.AverageBalance.ThreeMonth.InexactFloat64()
	f.OverdraftCountAll = s.OverdraftCount.All
	f.OverdraftCount3M = s.OverdraftCount.ThreeMonth
	f.NSFCount3M = s.NSFCount.ThreeMonth
	f.DaysOfHistory = s.DaysOfHistory

	months := math.Max(1, float64(s.DaysOfHistory)/daysPerMonth)
	f.NetCashFlowMonthly = s.NetCashFlow.InexactFloat64() / months
	spending := s.Spending.InexactFloat64() / months
	if f.TotalMonthlyIncome > 0 {
		f.SpendingToIncome = spending / f.TotalMonthlyIncome
	}
	return ScoringInput{Features: f, MonthlySpending: spending, LowBalanceShare3M: cf.LowBalanceShare3M}
}

// CombineScoringInputs aggregates accounts into the customer's inputs:
// flows and counts add up, history is the longest account's. The low-balance
// share is the smallest across accounts.
func CombineScoringInputs(inputs []ScoringInput) ScoringInput {
	var out ScoringInput
	f := &out.Features
	activeWeighted := 0.0
	for i, in := range inputs {
		if i == 0 || in.LowBalanceShare3M < out.LowBalanceShare3M {
			out.LowBalanceShare3M = in.LowBalanceShare3M
		}
		a := in.Features
		f.TotalMonthlyIncome += a.TotalMonthlyIncome
		f.ActiveIncomeSources += a.ActiveIncomeSources
		activeWeighted += a.IncomeActiveScore * float64(a.ActiveIncomeSources)
		f.RegularIncome = f.RegularIncome || a.RegularIncome
		f.MonthlyLoanPayments += a.MonthlyLoanPayments
		f.LoanSourceCount += a.LoanSourceCount
		f.AvgBalanceAll += a.AvgBalanceAll
		f.AvgBalance3M += a.AvgBalance3M
		f.OverdraftCountAll += a.OverdraftCountAll
		f.OverdraftCount3M += a.OverdraftCount3M
		f.NSFCount3M += a.NSFCount3M
		f.NetCashFlowMonthly += a.NetCashFlowMonthly
		if a.DaysOfHistory > f.DaysOfHistory {
			f.DaysOfHistory = a.DaysOfHistory
		}
		out.MonthlySpending += in.MonthlySpending
	}
	if f.ActiveIncomeSources > 0 {
		f.IncomeActiveScore = activeWeighted / float64(f.ActiveIncomeSources)
	}
	if f.TotalMonthlyIncome > 0 {
		f.SpendingToIncome = out.MonthlySpending / f.TotalMonthlyIncome
	}
	return out
}

// ScaleProbability maps a favorable-outcome probability onto the points
// scale: base score at base odds, PointsToDoubleOdds per doubling.
func ScaleProbability(cfg config.ScoringConfig, p float64) int {
	p = math.Min(math.Max(p, 1e-6), 1-1e-6)
	factor := cfg.PointsToDoubleOdds / math.Ln2
	offset := cfg.BaseScore - factor*math.Log(cfg.BaseOdds)
	score := int(math.Round(offset + factor*math.Log(p/(1-p))))
	if score < cfg.MinScore {
		return cfg.MinScore
	}
	if score > cfg.MaxScore {
		return cfg.MaxScore
	}
	return score
}

// RepeatOpportunity buckets a repeat score.
func RepeatOpportunity(cfg config.ScoringConfig, score int) string {
	switch {
	case score >= cfg.RepeatHighCutoff:
		return models.RepeatHigh
	case score >= cfg.RepeatMediumCutoff:
		return models.RepeatMedium
	}
	return models.RepeatLow
}

// ScoreAggregator applies every pretrained scorer to a feature set.
type ScoreAggregator struct {
	scorers map[models.ScoreType]classifier.Scorer
	cfg     config.ScoringConfig
}

// NewScoreAggregator requires a scorer for every score type.
func NewScoreAggregator(scorers map[models.ScoreType]classifier.Scorer, cfg config.ScoringConfig) (*ScoreAggregator, error) {
	for _, st := range models.AllScoreTypes {
		if scorers[st] == nil {
			return nil, fmt.Errorf("no scorer loaded for %s", st)
		}
	}
	return &ScoreAggregator{scorers: scorers, cfg: cfg}, nil
}

// Score computes all scores with their adverse reasons.
func (a *ScoreAggregator) Score(f *features.AccountFeatures) *models.Scores {
	x := f.Vector()
	scores := &models.Scores{}
	for _, st := range models.AllScoreTypes {
		p, contrib := a.scorers[st].Probability(x)
		reasons := []string{}
		for _, c := range classifier.Adverse(contrib, maxReasons) {
			reasons = append(reasons, ReasonText(c.Feature))
		}
		scores.Set(st, models.Score{Score: ScaleProbability(a.cfg, p), ModelReasons: reasons})
	}
	scores.RepeatOpportunity = RepeatOpportunity(a.cfg, scores.Repeat.Score)
	return scores
}
