package models

import (
	"github.com/shopspring/decimal"
)

// Frequency is the inferred payment cadence of a source.
type Frequency string

const (
	FrequencyMonthly     Frequency = "M"
	FrequencyBiweekly    Frequency = "B"
	FrequencySemiMonthly Frequency = "S"
	FrequencyWeekly      Frequency = "W"
	FrequencyIrregular   Frequency = "I"
)

// NominalDays is the nominal number of days between payments.
func (f Frequency) NominalDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencySemiMonthly:
		return 15
	case FrequencyMonthly:
		return 30
	}
	return 0
}

// MonthlyMultiplier converts one payment into a monthly equivalent.
func (f Frequency) MonthlyMultiplier() decimal.Decimal {
	switch f {
	case FrequencyWeekly:
		return decimal.NewFromInt(52).Div(decimal.NewFromInt(12))
	case FrequencyBiweekly:
		return decimal.NewFromInt(26).Div(decimal.NewFromInt(12))
	case FrequencySemiMonthly:
		return decimal.NewFromInt(2)
	case FrequencyMonthly:
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

// Label is the human-readable cadence.
func (f Frequency) Label() string {
	switch f {
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyBiweekly:
		return "Bi-Weekly"
	case FrequencySemiMonthly:
		return "Semi-Monthly"
	case FrequencyMonthly:
		return "Monthly"
	}
	return "Irregular"
}

// IsRegular reports whether the cadence is one of the periodic frequencies.
func (f Frequency) IsRegular() bool {
	return f != FrequencyIrregular && f != ""
}

// Source error codes. Non-zero sources are emitted but excluded from valid
// aggregations.
const (
	SourceErrorNone                 = 0
	SourceErrorInsufficientHistory  = 1
	SourceErrorStale                = 2
	SourceErrorInconsistentCategory = 3
	SourceErrorFailedValidation     = 4
)

// Source is a recurring payer or payee relationship at one account.
type Source struct {
	SourceID            string          `json:"sourceId"`
	AccountGUID         string          `json:"accountGuid"`
	Counterparty        string          `json:"counterparty"`
	Category            Category        `json:"category"`
	SubCategory         string          `json:"subCategory,omitempty"`
	IncomeType          int             `json:"incomeType"`
	ClusterLabels       []string        `json:"clusterLabels"`
	Frequency           Frequency       `json:"frequency"`
	AverageAmount       decimal.Decimal `json:"averageAmount"`
	TransactionCount    int             `json:"transactionCount"`
	ActiveScore         int             `json:"activeScore"`
	ErrorCode           int             `json:"errorCode"`
	RegularPayDay       string          `json:"regularPayDay"`
	HistoricalPayDay    []string        `json:"historicalPayDay"`
	NextPayDay          string          `json:"nextPayDay"`
	MissingPaydays      []string        `json:"missingPaydays"`
	PaymentNearHoliday  string          `json:"paymentNearHoliday"`
	NextPayDayOnHoliday bool            `json:"nextPayDayOnHoliday"`
}

// IsValid reports whether the source contributes to valid aggregations.
func (s *Source) IsValid() bool {
	return s.ErrorCode == SourceErrorNone
}

// IncomeSource is a recurring payer depositing into the account.
type IncomeSource struct {
	Source
	MonthlyIncome decimal.Decimal `json:"monthlyIncome"`
	IsDominant    bool            `json:"isDominant"`
}

// LoanSource is a lender the account pays or receives funds from.
type LoanSource struct {
	Source
	PaymentAmount      decimal.Decimal `json:"paymentAmount"`
	LoanAmountReceived decimal.Decimal `json:"loanAmountReceived"`
}
