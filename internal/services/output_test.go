package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/redzone-go/internal/models"
)

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"accountGuid":            "account_guid",
		"averageBalance3M":       "average_balance_3m",
		"redZone":                "red_zone",
		"IBVAuth":                "ibvauth",
		"nextPayDayOnHoliday":    "next_pay_day_on_holiday",
		"runError":               "run_error",
		"already_snake":          "already_snake",
		"goodToDebitDaysOfMonth": "good_to_debit_days_of_month",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestOutputOptions_SelectedFields(t *testing.T) {
	assert.Equal(t, models.OutputFields, OutputOptions{}.SelectedFields())
	assert.Equal(t, []string{"scores"}, OutputOptions{Verbosity: models.Verbosity{Mode: models.VerbosityScore}}.SelectedFields())
	assert.Equal(t, models.SummaryFields, OutputOptions{Verbosity: models.Verbosity{Mode: models.VerbositySummary}}.SelectedFields())
	assert.Equal(t, []string{"cashFlow"}, OutputOptions{Verbosity: models.Verbosity{Mode: models.VerbosityFields, Fields: []string{"cashFlow"}}}.SelectedFields())
}

func TestShapeResult_ErrorKeepsShape(t *testing.T) {
	result := models.NewErrorResult(405, "No credit transactions found", "v")
	for _, schema := range []string{models.SchemaV1, models.SchemaV2} {
		out, err := ShapeResult(result, OutputOptions{SchemaVersion: schema, Verbosity: models.Verbosity{Mode: models.VerbosityScore}})
		require.NoError(t, err)
		if schema == models.SchemaV1 {
			assert.Equal(t, json.Number("405"), out["run_error"])
			assert.Contains(t, out, "customer_info")
			continue
		}
		assert.Equal(t, json.Number("405"), out["runError"])
		assert.Equal(t, []any{}, out["accounts"])
	}
}

func TestShapeResult_ScoreOnlyTrimsCustomerInfo(t *testing.T) {
	result := &models.AssessmentResult{
		Accounts: []models.AccountResult{{}},
		CustomerInfo: models.CustomerInfo{
			RedZoneBehavior:        &models.RedZoneBehavior{RiskLevel: RiskHigh},
			AlertsAndInsights:      []string{AlertNSF},
			RecommendedBankAccount: "chk",
			Scores:                 &models.Scores{},
			LendingGuide:           &models.LendingGuide{},
		},
		ModelVersion: "v",
	}
	score := models.Verbosity{Mode: models.VerbosityScore}

	tests := []struct {
		schema  string
		infoKey string
	}{
		{models.SchemaV2, "customerInfo"},
		{models.SchemaV1, "customer_info"},
	}
	for _, tt := range tests {
		t.Run(tt.schema, func(t *testing.T) {
			out, err := ShapeResult(result, OutputOptions{SchemaVersion: tt.schema, Verbosity: score})
			require.NoError(t, err)
			info, ok := out[tt.infoKey].(map[string]any)
			require.True(t, ok)
			assert.Len(t, info, 1)
			assert.Contains(t, info, "scores")
		})
	}

	full, err := ShapeResult(result, OutputOptions{SchemaVersion: models.SchemaV2, Verbosity: models.Verbosity{Mode: models.VerbosityFull}})
	require.NoError(t, err)
	info := full["customerInfo"].(map[string]any)
	assert.Contains(t, info, "alertsAndInsights")
	assert.Contains(t, info, "lendingGuide")
	assert.Contains(t, info, "redZoneBehavior")
}
