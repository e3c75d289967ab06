package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Overdraft incident types.
const (
	IncidentOverdraft = "OVERDRAFT"
	IncidentNSF       = "NSF"
)

// WindowValues holds a monetary figure over the All/3-month/6-month windows.
type WindowValues struct {
	All        decimal.Decimal `json:"all"`
	ThreeMonth decimal.Decimal `json:"threeMonth"`
	SixMonth   decimal.Decimal `json:"sixMonth"`
}

// WindowCounts holds an incident count over the All/3-month/6-month windows.
type WindowCounts struct {
	All        int `json:"all"`
	ThreeMonth int `json:"threeMonth"`
	SixMonth   int `json:"sixMonth"`
}

// CashFlow is the per-account cash-flow summary row plus windowed balances.
type CashFlow struct {
	AccountGUID          string          `json:"accountGuid"`
	TotalCredits         decimal.Decimal `json:"totalCredits"`
	TotalDebits          decimal.Decimal `json:"totalDebits"`
	NetCashFlow          decimal.Decimal `json:"netCashFlow"`
	Spending             decimal.Decimal `json:"spending"`
	MonthlyAverageCredit decimal.Decimal `json:"monthlyAverageCredit"`
	MonthlyAverageDebit  decimal.Decimal `json:"monthlyAverageDebit"`
	AverageBalance       WindowValues    `json:"averageBalance"`
	OverdraftCount       WindowCounts    `json:"overdraftCount"`
	NSFCount             WindowCounts    `json:"nsfCount"`
	DaysOfHistory        int             `json:"daysOfHistory"`
}

// OverdraftIncident is a day the balance crossed below zero or an NSF event.
type OverdraftIncident struct {
	AccountGUID string          `json:"accountGuid"`
	Date        string          `json:"date"`
	Type        string          `json:"type"`
	Balance     decimal.Decimal `json:"balance"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	TransGUID   string          `json:"transGuid,omitempty"`
}

// ATPSummary reports the days on which a debit of DebitAmount looked safe.
type ATPSummary struct {
	DebitAmount            decimal.Decimal `json:"debitAmount"`
	MinimumDays            int             `json:"minimumDays"`
	PeakCount              int             `json:"peakCount"`
	GoodToDebitDates       []string        `json:"goodToDebitDates"`
	GoodToDebitDaysOfMonth []int           `json:"goodToDebitDaysOfMonth"`
}

// LendingGuide is the loan and debit recommendation.
type LendingGuide struct {
	LoanAmountMin   decimal.Decimal `json:"loanAmountMin"`
	LoanAmountMax   decimal.Decimal `json:"loanAmountMax"`
	DebitAmountMin  decimal.Decimal `json:"debitAmountMin"`
	DebitAmountMax  decimal.Decimal `json:"debitAmountMax"`
	DebitDate       string          `json:"debitDate"`
	DebitFrequency  string          `json:"debitFrequency"`
	IncomeType      string          `json:"incomeType"`
	GoodToDebitDays []int           `json:"goodToDebitDays"`
}

// AccountResult is the assessment of a single account.
type AccountResult struct {
	AccountGUID        string              `json:"accountGuid"`
	AccountType        string              `json:"accountType"`
	IncomeSources      []IncomeSource      `json:"incomeSources"`
	LoanSources        []LoanSource        `json:"loanSources"`
	OverdraftIncidents []OverdraftIncident `json:"overdraftIncidents"`
	CashFlow           *CashFlow           `json:"cashFlow"`
	MajorIncomeSource  *IncomeSource       `json:"majorIncomeSource"`
	Scores             *Scores             `json:"scores"`
	LendingGuide       *LendingGuide       `json:"lendingGuide"`
	ATP                *ATPSummary         `json:"atp,omitempty"`
	CreditTrans        []*Transaction      `json:"creditTrans"`
	DebitTrans         []*Transaction      `json:"debitTrans"`
}

// RedZoneBehavior aggregates customer-level behaviour behind the RedZone score.
type RedZoneBehavior struct {
	RiskLevel                string          `json:"riskLevel"`
	TotalMonthlyIncome       decimal.Decimal `json:"totalMonthlyIncome"`
	TotalMonthlyLoanPayments decimal.Decimal `json:"totalMonthlyLoanPayments"`
	ActiveIncomeSources      int             `json:"activeIncomeSources"`
	AverageBalance3M         decimal.Decimal `json:"averageBalance3M"`
	OverdraftCount3M         int             `json:"overdraftCount3M"`
	NetCashFlow              decimal.Decimal `json:"netCashFlow"`
}

// CustomerInfo is the aggregate across all accounts.
type CustomerInfo struct {
	RedZoneBehavior        *RedZoneBehavior `json:"redZoneBehavior,omitempty"`
	AlertsAndInsights      []string         `json:"alertsAndInsights"`
	RecommendedBankAccount string           `json:"recommendedBankAccount,omitempty"`
	Scores                 *Scores          `json:"scores,omitempty"`
	LendingGuide           *LendingGuide    `json:"lendingGuide,omitempty"`
}

// AssessmentResult is the full pipeline output.
type AssessmentResult struct {
	Accounts     []AccountResult `json:"accounts"`
	CustomerInfo CustomerInfo    `json:"customerInfo"`
	ModelVersion string          `json:"modelVersion"`
	RunError     int             `json:"runError,omitempty"`
	RunMsg       string          `json:"runMsg,omitempty"`
}

// NewErrorResult builds the error-shaped output: empty lists, run fields set.
func NewErrorResult(code int, msg, modelVersion string) *AssessmentResult {
	return &AssessmentResult{
		Accounts:     []AccountResult{},
		CustomerInfo: CustomerInfo{AlertsAndInsights: []string{}},
		ModelVersion: modelVersion,
		RunError:     code,
		RunMsg:       msg,
	}
}

// MarshalJSON renders the transaction with its calendar date.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		*alias
		Date string `json:"date"`
	}{
		alias: (*alias)(t),
		Date:  t.DateString(),
	})
}
