package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/models"
)

func TestDedupeAlerts(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"none only", []string{models.NoneValue}, []string{}},
		{"repeats", []string{AlertNSF, AlertOverdrafts, AlertNSF}, []string{AlertNSF, AlertOverdrafts}},
		{"no income hides low balance", []string{AlertLowBalance, AlertNoIncome, models.NoneValue}, []string{AlertNoIncome}},
		{"low balance alone", []string{AlertLowBalance}, []string{AlertLowBalance}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAlerts(tt.in))
		})
	}
}

func TestBuildAlerts(t *testing.T) {
	asOf := mustDate("2024-06-30")

	healthy := AlertInput{
		Features: ScoringInput{Features: features.AccountFeatures{TotalMonthlyIncome: 3000, ActiveIncomeSources: 1, AvgBalance3M: 900}, MonthlySpending: 2000},
		AsOf:     asOf,
	}
	assert.Empty(t, BuildAlerts(healthy))

	usuallyLow := healthy
	usuallyLow.Features.LowBalanceShare3M = 0.6
	assert.Equal(t, []string{AlertLowBalance}, BuildAlerts(usuallyLow), "rolling balance mostly under threshold")

	stressed := AlertInput{
		Features: ScoringInput{Features: features.AccountFeatures{
			TotalMonthlyIncome:  1000,
			ActiveIncomeSources: 1,
			AvgBalance3M:        20,
			OverdraftCount3M:    4,
			NSFCount3M:          1,
			LoanSourceCount:     2,
		}, MonthlySpending: 1500},
		Accounts: []*AccountSources{{Income: []models.IncomeSource{{Source: models.Source{MissingPaydays: []string{"2024-06-07"}}}}}},
		Transactions: []*models.Transaction{
			credit("ACME", "2024-02-01", 3000, models.CategoryPayroll),
			credit("ACME", "2024-05-01", 1000, models.CategoryPayroll),
		},
		AsOf: asOf,
	}
	assert.Equal(t, []string{
		AlertLowBalance,
		AlertOverdrafts,
		AlertNSF,
		AlertMultipleLenders,
		AlertDecliningIncome,
		AlertNegativeFlow,
		AlertMissedPaydays,
	}, BuildAlerts(stressed))

	noIncome := AlertInput{AsOf: asOf}
	assert.Equal(t, []string{AlertNoIncome}, BuildAlerts(noIncome))
}
