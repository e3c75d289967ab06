package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/utils"
)

func strPtr(s string) *string {
	return &s
}

func txIn(acct, date string, amount float64, typ, desc string) models.TransactionInput {
	return models.TransactionInput{
		GUID:        acct + "-" + date + "-" + desc,
		AccountGUID: acct,
		Description: strPtr(desc),
		Amount:      decimal.NewFromFloat(amount),
		Date:        date,
		Type:        typ,
	}
}

func TestIngest_InputShapeCodes(t *testing.T) {
	c := func(date string) models.TransactionInput { return txIn("a", date, 100, "CREDIT", "PAYROLL") }
	d := func(date string) models.TransactionInput { return txIn("a", date, 40, "DEBIT", "STORE") }

	tests := []struct {
		name      string
		asOf      string
		timeframe models.Timeframe
		txns      []models.TransactionInput
		code      int
	}{
		{"empty", "2024-06-30", models.TimeframeAll, nil, utils.CodeNoTransactions},
		{"missing as of", "", models.TimeframeAll, []models.TransactionInput{c("2024-06-01")}, utils.CodeMissingAsOfDate},
		{"malformed as of", "2024-13-45", models.TimeframeAll, []models.TransactionInput{c("2024-06-01")}, utils.CodeMalformedDate},
		{"malformed transaction date", "2024-06-30", models.TimeframeAll, []models.TransactionInput{c("2024-06-01"), d("yesterday")}, utils.CodeMalformedDate},
		{"single record", "2024-06-30", models.TimeframeAll, []models.TransactionInput{c("2024-06-01")}, utils.CodeSingleRecord},
		{"no credits", "2024-06-30", models.TimeframeAll, []models.TransactionInput{d("2024-06-01"), d("2024-06-02")}, utils.CodeNoCreditTransactions},
		{"one credit", "2024-06-30", models.TimeframeAll, []models.TransactionInput{c("2024-06-01"), d("2024-06-02"), d("2024-06-03")}, utils.CodeSingleCreditOrDebit},
		{"one debit", "2024-06-30", models.TimeframeAll, []models.TransactionInput{c("2024-06-01"), c("2024-06-15"), d("2024-06-03")}, utils.CodeSingleCreditOrDebit},
		{"timeframe leaves nothing", "2024-06-30", models.TimeframeOneMonth, []models.TransactionInput{c("2023-01-01"), d("2023-01-02")}, utils.CodeNoTransactions},
		{"valid", "2024-06-30", models.TimeframeAll, []models.TransactionInput{c("2024-06-01"), c("2024-06-15"), d("2024-06-03"), d("2024-06-04")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &models.AssessmentRequest{AsOfDate: tt.asOf, Transactions: tt.txns}
			in, err := Ingest(req, tt.timeframe)
			if tt.code == 0 {
				require.NoError(t, err)
				assert.Len(t, in.Transactions, len(tt.txns))
				return
			}
			var pe *utils.PipelineError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.code, pe.Code)
			assert.Equal(t, utils.MessageForCode(tt.code), pe.Message)
		})
	}
}

func TestIngest_Timeframe(t *testing.T) {
	txns := []models.TransactionInput{
		txIn("a", "2024-01-15", 100, "CREDIT", "PAYROLL"),
		txIn("a", "2024-03-29", 100, "CREDIT", "PAYROLL"),
		txIn("a", "2024-03-30", 100, "CREDIT", "PAYROLL"),
		txIn("a", "2024-04-15", 100, "CREDIT", "PAYROLL"),
		txIn("a", "2024-05-02", 20, "DEBIT", "STORE"),
		txIn("a", "2024-06-30", 20, "DEBIT", "STORE"),
		txIn("a", "2024-07-02", 20, "DEBIT", "STORE"),
	}
	req := &models.AssessmentRequest{AsOfDate: "2024-06-30", Transactions: txns}

	all, err := Ingest(req, models.TimeframeAll)
	require.NoError(t, err)
	assert.Len(t, all.Transactions, 6, "future transactions are dropped")

	three, err := Ingest(req, models.TimeframeThreeMonth)
	require.NoError(t, err)
	require.Len(t, three.Transactions, 4)
	assert.Equal(t, "2024-03-30", three.Transactions[0].DateString())
}

func TestIngest_Records(t *testing.T) {
	balance := decimal.NewFromInt(250)
	req := &models.AssessmentRequest{
		AsOfDate: "2024-06-30T10:00:00Z",
		Accounts: []models.AccountInput{
			{AccountGUID: "chk", AccountType: "checking", CurrentBalance: &balance},
		},
		Transactions: []models.TransactionInput{
			{GUID: "t1", AccountGUID: "sav", Description: strPtr("short"), OriginalDescription: strPtr("ORIGINAL PAYROLL"), Amount: decimal.NewFromInt(500), Date: "2024-06-01", Type: "credit"},
			{GUID: "t2", AccountGUID: "chk", Description: strPtr("STORE"), Amount: decimal.NewFromInt(-35), Date: "2024-06-02"},
			{GUID: "t3", AccountGUID: "chk", Description: strPtr("LOAN CO"), Amount: decimal.NewFromInt(90), Date: "2024-06-03", Type: "DEBIT", Label: "Loan"},
			{AccountGUID: "chk", Amount: decimal.NewFromInt(60), Date: "2024-06-04", Type: "CREDIT"},
		},
	}

	in, err := Ingest(req, models.TimeframeAll)
	require.NoError(t, err)

	assert.Equal(t, "2024-06-30", in.AsOf.Format(models.DateLayout))
	require.Len(t, in.Accounts, 2)
	assert.Equal(t, "chk", in.Accounts[0].AccountGUID)
	assert.True(t, in.Accounts[0].HasBalance)
	assert.Equal(t, in.AsOf, in.Accounts[0].CurrentBalanceDate)
	assert.Equal(t, "sav", in.Accounts[1].AccountGUID)
	assert.False(t, in.Accounts[1].HasBalance)

	txns := in.Transactions
	assert.Equal(t, "ORIGINAL PAYROLL", txns[0].RawDescription)
	assert.Equal(t, models.Credit, txns[0].Type)

	assert.Equal(t, models.Debit, txns[1].Type)
	assert.True(t, decimal.NewFromInt(35).Equal(txns[1].Amount))

	assert.Equal(t, models.CategoryLoan, txns[2].Category)
	assert.Equal(t, models.LabelSourceInput, txns[2].LabelSource)
	assert.Equal(t, models.IncomeTypeLoan, txns[2].IncomeType)

	assert.Equal(t, "chk-3", txns[3].TransGUID)
	assert.Equal(t, "", txns[3].RawDescription)
}

func TestIngest_MalformedBalanceDate(t *testing.T) {
	req := &models.AssessmentRequest{
		AsOfDate:     "2024-06-30",
		Accounts:     []models.AccountInput{{AccountGUID: "a", CurrentBalanceDate: "June"}},
		Transactions: []models.TransactionInput{txIn("a", "2024-06-01", 1, "CREDIT", "x")},
	}
	_, err := Ingest(req, models.TimeframeAll)
	assert.Equal(t, utils.CodeMalformedDate, utils.AsPipelineError(err).Code)
}

func TestValidateRequest(t *testing.T) {
	summary := models.Verbosity{Mode: models.VerbositySummary}
	unknown := models.Verbosity{Mode: models.VerbosityFields, Fields: []string{"scores", "balances"}}

	tests := []struct {
		name    string
		req     *models.AssessmentRequest
		wantErr bool
	}{
		{"nil", nil, true},
		{"defaults", &models.AssessmentRequest{}, false},
		{"bad timeframe", &models.AssessmentRequest{Timeframe: "TEN_YEARS"}, true},
		{"lowercase timeframe", &models.AssessmentRequest{Timeframe: "six_month"}, false},
		{"bad schema", &models.AssessmentRequest{SchemaVersion: "V3"}, true},
		{"summary", &models.AssessmentRequest{Verbosity: &summary}, false},
		{"unknown field", &models.AssessmentRequest{Verbosity: &unknown}, true},
		{"bad label", &models.AssessmentRequest{Transactions: []models.TransactionInput{{AccountGUID: "a", Type: "DEBIT", Label: "rent"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateRequest(tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, utils.IsValidationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	opts, err := ValidateRequest(&models.AssessmentRequest{SchemaVersion: "v1", Timeframe: "THREE_MONTH"})
	require.NoError(t, err)
	assert.Equal(t, models.SchemaV1, opts.Output.SchemaVersion)
	assert.Equal(t, models.TimeframeThreeMonth, opts.Timeframe)
	assert.Equal(t, models.VerbosityFull, opts.Output.Verbosity.Mode)
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-06-05", "2024-06-05T23:59:59Z", "2024-06-05 08:00:00", "06/05/2024"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, "2024-06-05", d.Format(models.DateLayout))
	}
	_, err := ParseDate("5th June")
	assert.Error(t, err)
}
