package features

import "math"

// ScoreFeatureNames is the column order of AccountFeatures.Vector, shared by
// every account-level scorer.
var ScoreFeatureNames = []string{
	"total_monthly_income",
	"active_income_sources",
	"income_active_score",
	"regular_income",
	"monthly_loan_payments",
	"loan_source_count",
	"avg_balance_all",
	"avg_balance_3m",
	"overdraft_count_all",
	"overdraft_count_3m",
	"nsf_count_3m",
	"net_cash_flow_monthly",
	"days_of_history",
	"spending_to_income",
}

// AccountFeatures is the scorer input for one account or, summed, for the
// customer.
type AccountFeatures struct {
	TotalMonthlyIncome  float64 `json:"totalMonthlyIncome"`
	ActiveIncomeSources int     `json:"activeIncomeSources"`
	IncomeActiveScore   float64 `json:"incomeActiveScore"`
	RegularIncome       bool    `json:"regularIncome"`
	MonthlyLoanPayments float64 `json:"monthlyLoanPayments"`
	LoanSourceCount     int     `json:"loanSourceCount"`
	AvgBalanceAll       float64 `json:"avgBalanceAll"`
	AvgBalance3M        float64 `json:"avgBalance3m"`
	OverdraftCountAll   int     `json:"overdraftCountAll"`
	OverdraftCount3M    int     `json:"overdraftCount3m"`
	NSFCount3M          int     `json:"nsfCount3m"`
	NetCashFlowMonthly  float64 `json:"netCashFlowMonthly"`
	DaysOfHistory       int     `json:"daysOfHistory"`
	SpendingToIncome    float64 `json:"spendingToIncome"`
}

// Vector returns the features in ScoreFeatureNames order. A zero income
// leaves SpendingToIncome undefined (NaN).
func (a *AccountFeatures) Vector() []float64 {
	ratio := a.SpendingToIncome
	if a.TotalMonthlyIncome == 0 {
		ratio = math.NaN()
	}
	return []float64{
		a.TotalMonthlyIncome,
		float64(a.ActiveIncomeSources),
		a.IncomeActiveScore,
		boolFloat(a.RegularIncome),
		a.MonthlyLoanPayments,
		float64(a.LoanSourceCount),
		a.AvgBalanceAll,
		a.AvgBalance3M,
		float64(a.OverdraftCountAll),
		float64(a.OverdraftCount3M),
		float64(a.NSFCount3M),
		a.NetCashFlowMonthly,
		float64(a.DaysOfHistory),
		ratio,
	}
}
