package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/redzone-go/internal/models"
)

func TestInferCadence(t *testing.T) {
	tests := []struct {
		name    string
		dates   []string
		want    models.Frequency
		anchors []int
	}{
		{"single", []string{"2024-05-03"}, models.FrequencyIrregular, nil},
		{"weekly", []string{"2024-05-03", "2024-05-10", "2024-05-17", "2024-05-24"}, models.FrequencyWeekly, nil},
		{"bi-weekly", []string{"2024-04-05", "2024-04-19", "2024-05-03", "2024-05-17"}, models.FrequencyBiweekly, nil},
		{"semi-monthly", []string{"2024-04-01", "2024-04-15", "2024-05-01", "2024-05-15"}, models.FrequencySemiMonthly, []int{1, 15}},
		{"monthly", []string{"2024-01-15", "2024-02-15", "2024-03-15", "2024-04-15"}, models.FrequencyMonthly, []int{15}},
		{"month end", []string{"2024-01-31", "2024-02-29", "2024-03-31", "2024-04-30"}, models.FrequencyMonthly, []int{31}},
		{"irregular", []string{"2024-01-02", "2024-01-05", "2024-03-20", "2024-03-22"}, models.FrequencyIrregular, nil},
		{"long gaps", []string{"2024-01-02", "2024-03-02", "2024-05-02"}, models.FrequencyIrregular, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferCadence(dates(tt.dates...))
			assert.Equal(t, tt.want, got.Frequency)
			assert.Equal(t, tt.anchors, got.Anchors)
		})
	}
}

func TestMissingPaydays(t *testing.T) {
	tests := []struct {
		name  string
		freq  models.Frequency
		dates []string
		want  []string
	}{
		{"weekly nine day gap", models.FrequencyWeekly, []string{"2024-05-03", "2024-05-12"}, []string{"2024-05-10"}},
		{"weekly three week gap", models.FrequencyWeekly, []string{"2024-05-03", "2024-05-24"}, []string{"2024-05-10", "2024-05-17"}},
		{"weekly on time", models.FrequencyWeekly, []string{"2024-05-03", "2024-05-10"}, nil},
		{"bi-weekly", models.FrequencyBiweekly, []string{"2024-05-03", "2024-05-31"}, []string{"2024-05-17"}},
		{"monthly", models.FrequencyMonthly, []string{"2024-01-15", "2024-03-15"}, []string{"2024-02-14"}},
		{"irregular never", models.FrequencyIrregular, []string{"2024-01-15", "2024-06-15"}, nil},
		{"semi-monthly never", models.FrequencySemiMonthly, []string{"2024-01-15", "2024-03-15"}, nil},
		{"single observation", models.FrequencyWeekly, []string{"2024-01-15"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := missingPaydays(tt.freq, dates(tt.dates...))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, dateStrings(got))
		})
	}
}

func TestProjectNext(t *testing.T) {
	tests := []struct {
		name string
		c    cadence
		last string
		asOf string
		want string
	}{
		{"weekly", cadence{Frequency: models.FrequencyWeekly}, "2024-06-07", "2024-06-10", "2024-06-14"},
		{"weekly skips past as-of", cadence{Frequency: models.FrequencyWeekly}, "2024-05-10", "2024-06-10", "2024-06-14"},
		{"monthly", cadence{Frequency: models.FrequencyMonthly, Anchors: []int{15}}, "2024-04-15", "2024-04-20", "2024-05-15"},
		{"month end", cadence{Frequency: models.FrequencyMonthly, Anchors: []int{31}}, "2024-01-31", "2024-02-01", "2024-02-29"},
		{"semi-monthly", cadence{Frequency: models.FrequencySemiMonthly, Anchors: []int{1, 15}}, "2024-05-01", "2024-05-03", "2024-05-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := projectNext(tt.c, mustDate(tt.last), mustDate(tt.asOf))
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Format(models.DateLayout))
		})
	}

	_, ok := projectNext(cadence{Frequency: models.FrequencyIrregular}, mustDate("2024-05-01"), mustDate("2024-05-03"))
	assert.False(t, ok)
}

func TestOrdinalDay(t *testing.T) {
	assert.Equal(t, "1st", ordinalDay(1))
	assert.Equal(t, "2nd", ordinalDay(2))
	assert.Equal(t, "3rd", ordinalDay(3))
	assert.Equal(t, "11th", ordinalDay(11))
	assert.Equal(t, "22nd", ordinalDay(22))
	assert.Equal(t, "last day", ordinalDay(31))
}

func TestSourceBuilder_WeeklyPayroll(t *testing.T) {
	txns := []*models.Transaction{
		credit("ACME", "2024-05-03", 1000, models.CategoryPayroll),
		credit("ACME", "2024-05-10", 1000, models.CategoryPayroll),
		credit("ACME", "2024-05-17", 1000, models.CategoryPayroll),
		credit("ACME", "2024-05-31", 1000, models.CategoryPayroll),
		credit("ACME", "2024-06-07", 1000, models.CategoryPayroll),
		debit("SHELL", "2024-06-01", 40, models.CategoryOther),
	}

	got := NewSourceBuilder(0, nil).Build("acct-1", txns, mustDate("2024-06-10"))
	require.Len(t, got.Income, 1)
	assert.Empty(t, got.Loans)

	src := got.Income[0]
	assert.Equal(t, "ACME", src.Counterparty)
	assert.Equal(t, models.FrequencyWeekly, src.Frequency)
	assert.Equal(t, models.SourceErrorNone, src.ErrorCode)
	assert.Equal(t, 3, src.ActiveScore)
	assert.Equal(t, "Friday", src.RegularPayDay)
	assert.Equal(t, []string{"2024-05-24"}, src.MissingPaydays)
	assert.Equal(t, "2024-06-14", src.NextPayDay)
	assert.Equal(t, models.NoneValue, src.PaymentNearHoliday)
	assert.False(t, src.NextPayDayOnHoliday)
	assert.True(t, src.IsDominant)
	assert.Equal(t, models.IncomeTypePayroll, src.IncomeType)
	assert.True(t, decimal.NewFromFloat(4333.33).Equal(src.MonthlyIncome), src.MonthlyIncome.String())
	assert.Len(t, src.HistoricalPayDay, 5)

	for _, tx := range txns[:5] {
		assert.Equal(t, src.SourceID, tx.SourceID)
	}
	assert.Empty(t, txns[5].SourceID)
	assert.Equal(t, src.SourceID, sourceID("acct-1", "income", "ACME"))
	assert.True(t, decimal.NewFromFloat(4333.33).Equal(got.TotalMonthlyIncome()))
	assert.Same(t, &got.Income[0], got.Dominant())
}

func TestSourceBuilder_HolidayProjection(t *testing.T) {
	txns := []*models.Transaction{
		credit("ACME", "2024-05-29", 800, models.CategoryPayroll),
		credit("ACME", "2024-06-05", 800, models.CategoryPayroll),
		credit("ACME", "2024-06-12", 800, models.CategoryPayroll),
	}

	got := NewSourceBuilder(0, nil).Build("acct-1", txns, mustDate("2024-06-14"))
	require.Len(t, got.Income, 1)
	src := got.Income[0]
	assert.Equal(t, "2024-06-18", src.NextPayDay)
	assert.True(t, src.NextPayDayOnHoliday)
	assert.Equal(t, "Next pay day falls on Juneteenth; expected 2024-06-18", src.PaymentNearHoliday)
}

func TestSourceBuilder_SemiMonthlyWeekendProjection(t *testing.T) {
	txns := []*models.Transaction{
		credit("SSA", "2024-04-01", 600, models.CategoryBenefit),
		credit("SSA", "2024-04-15", 600, models.CategoryBenefit),
		credit("SSA", "2024-05-01", 600, models.CategoryBenefit),
		credit("SSA", "2024-05-15", 600, models.CategoryBenefit),
	}

	got := NewSourceBuilder(0, nil).Build("acct-1", txns, mustDate("2024-05-20"))
	src := got.Income[0]
	assert.Equal(t, models.FrequencySemiMonthly, src.Frequency)
	assert.Equal(t, "1st and 15th", src.RegularPayDay)
	assert.Equal(t, "2024-05-31", src.NextPayDay)
	assert.Empty(t, src.MissingPaydays)
	assert.True(t, decimal.NewFromInt(1200).Equal(src.MonthlyIncome))
}

func TestSourceBuilder_ErrorCodes(t *testing.T) {
	asOf := mustDate("2024-06-10")
	tests := []struct {
		name string
		txns []*models.Transaction
		code int
	}{
		{
			name: "single observation",
			txns: []*models.Transaction{credit("ACME", "2024-06-07", 1000, models.CategoryPayroll)},
			code: models.SourceErrorInsufficientHistory,
		},
		{
			name: "stale",
			txns: []*models.Transaction{
				credit("ACME", "2024-02-15", 1000, models.CategoryPayroll),
				credit("ACME", "2024-03-15", 1000, models.CategoryPayroll),
			},
			code: models.SourceErrorStale,
		},
		{
			name: "inconsistent category",
			txns: []*models.Transaction{
				credit("ACME", "2024-05-24", 500, models.CategoryPayroll),
				credit("ACME", "2024-05-31", 500, models.CategoryBenefit),
				credit("ACME", "2024-06-07", 500, models.CategoryPayroll),
			},
			code: models.SourceErrorInconsistentCategory,
		},
		{
			name: "non-positive amount",
			txns: []*models.Transaction{
				credit("ACME", "2024-05-31", 0, models.CategoryPayroll),
				credit("ACME", "2024-06-07", 0, models.CategoryPayroll),
			},
			code: models.SourceErrorFailedValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSourceBuilder(45, nil).Build("acct-1", tt.txns, asOf)
			require.Len(t, got.Income, 1)
			assert.Equal(t, tt.code, got.Income[0].ErrorCode)
			assert.False(t, got.Income[0].IsDominant)
			assert.Nil(t, got.Dominant())
			assert.True(t, got.TotalMonthlyIncome().IsZero())
		})
	}
}

func TestSourceBuilder_InconsistentKeepsMajority(t *testing.T) {
	txns := []*models.Transaction{
		credit("ACME", "2024-05-24", 500, models.CategoryPayroll),
		credit("ACME", "2024-05-31", 500, models.CategoryBenefit),
		credit("ACME", "2024-06-07", 500, models.CategoryPayroll),
	}
	got := NewSourceBuilder(0, nil).Build("acct-1", txns, mustDate("2024-06-10"))
	assert.Equal(t, models.CategoryPayroll, got.Income[0].Category)
}

func TestSourceBuilder_DominantSource(t *testing.T) {
	txns := []*models.Transaction{
		credit("GIGCO", "2024-05-20", 100, models.CategoryGig),
		credit("ACME", "2024-05-15", 2000, models.CategoryPayroll),
		credit("GIGCO", "2024-05-27", 100, models.CategoryGig),
		credit("GIGCO", "2024-06-03", 100, models.CategoryGig),
		credit("ACME", "2024-06-14", 2000, models.CategoryPayroll),
		credit("SOLO", "2024-06-01", 50, models.CategoryTransfer),
	}

	got := NewSourceBuilder(0, nil).Build("acct-1", txns, mustDate("2024-06-15"))
	require.Len(t, got.Income, 3)
	assert.Equal(t, "ACME", got.Income[0].Counterparty)
	assert.True(t, got.Income[0].IsDominant)
	assert.Equal(t, "GIGCO", got.Income[1].Counterparty)
	assert.False(t, got.Income[1].IsDominant)
	assert.Equal(t, "SOLO", got.Income[2].Counterparty)
	assert.Equal(t, models.SourceErrorInsufficientHistory, got.Income[2].ErrorCode)
	assert.Len(t, got.ValidIncome(), 2)
}

func TestSourceBuilder_LoanSources(t *testing.T) {
	txns := []*models.Transaction{
		credit("OPPLOANS", "2024-04-01", 500, models.CategoryLoan),
		debit("OPPLOANS", "2024-04-12", 100, models.CategoryLoan),
		debit("OPPLOANS", "2024-04-26", 100, models.CategoryLoan),
		debit("OPPLOANS", "2024-05-10", 100, models.CategoryLoan),
		debit("OPPLOANS", "2024-05-24", 100, models.CategoryLoan),
	}

	got := NewSourceBuilder(0, nil).Build("acct-1", txns, mustDate("2024-05-28"))
	assert.Empty(t, got.Income)
	require.Len(t, got.Loans, 1)
	loan := got.Loans[0]
	assert.Equal(t, models.FrequencyBiweekly, loan.Frequency)
	assert.Equal(t, models.IncomeTypeLoan, loan.IncomeType)
	assert.True(t, decimal.NewFromInt(100).Equal(loan.PaymentAmount))
	assert.True(t, decimal.NewFromInt(500).Equal(loan.LoanAmountReceived))
	assert.Equal(t, "2024-06-07", loan.NextPayDay)
	assert.Equal(t, 1, got.ActiveLoans())
	assert.True(t, decimal.NewFromFloat(216.67).Equal(got.MonthlyLoanPayments), got.MonthlyLoanPayments.String())
}
