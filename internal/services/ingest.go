package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/redzone-go/internal/calendar"
	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/utils"
)

// dateLayouts are the accepted wire date forms; only the calendar day is kept.
var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// RunOptions are the request-scoped toggles passed down the pipeline.
type RunOptions struct {
	Timeframe models.Timeframe
	Output    OutputOptions
	EnableATP bool
}

// Ingested is a request converted to internal records. Accounts lists the
// request accounts first, then accounts seen only on transactions.
type Ingested struct {
	AsOf         time.Time
	Transactions []*models.Transaction
	Accounts     []*models.BalanceSnapshot
}

// Snapshot returns the balance snapshot of an account, or nil.
func (in *Ingested) Snapshot(accountGUID string) *models.BalanceSnapshot {
	for _, a := range in.Accounts {
		if a.AccountGUID == accountGUID {
			return a
		}
	}
	return nil
}

// ValidateRequest checks the request options and labels before the pipeline
// runs. Record fields (account ids, transaction type) are checked by the
// binding tags on the request models. Input-shape problems (empty set, dates)
// are left to Ingest, which reports them as run errors.
func ValidateRequest(req *models.AssessmentRequest) (RunOptions, error) {
	var opts RunOptions
	if req == nil {
		return opts, utils.NewValidationError("request body is required")
	}

	tf, err := models.ParseTimeframe(req.Timeframe)
	if err != nil {
		return opts, utils.NewFieldValidationError("timeframe", "unsupported value %q", req.Timeframe)
	}
	opts.Timeframe = tf

	switch schema := strings.ToUpper(strings.TrimSpace(req.SchemaVersion)); schema {
	case "":
		opts.Output.SchemaVersion = models.SchemaV2
	case models.SchemaV1, models.SchemaV2:
		opts.Output.SchemaVersion = schema
	default:
		return opts, utils.NewFieldValidationError("schemaVersion", "unsupported value %q", req.SchemaVersion)
	}

	opts.Output.Verbosity = models.Verbosity{Mode: models.VerbosityFull}
	if req.Verbosity != nil {
		if unknown := req.Verbosity.UnknownFields(); len(unknown) > 0 {
			return opts, utils.NewFieldValidationError("verbosity", "unknown fields %s", strings.Join(unknown, ", "))
		}
		opts.Output.Verbosity = *req.Verbosity
	}

	for i, t := range req.Transactions {
		if t.Label == "" {
			continue
		}
		if _, ok := models.ParseCategory(t.Label); !ok {
			return opts, utils.NewFieldValidationError(fmt.Sprintf("transactions[%d].label", i), "unknown category %q", t.Label)
		}
	}
	return opts, nil
}

// Ingest converts the request into transactions and balance snapshots and
// applies the timeframe. Input-shape failures return a *utils.PipelineError.
func Ingest(req *models.AssessmentRequest, tf models.Timeframe) (*Ingested, error) {
	if len(req.Transactions) == 0 {
		return nil, utils.NewPipelineError(utils.CodeNoTransactions)
	}
	if strings.TrimSpace(req.AsOfDate) == "" {
		return nil, utils.NewPipelineError(utils.CodeMissingAsOfDate)
	}
	asOf, err := ParseDate(req.AsOfDate)
	if err != nil {
		return nil, utils.WrapPipelineError(utils.CodeMalformedDate, fmt.Errorf("asOfDate: %w", err))
	}

	out := &Ingested{AsOf: asOf}
	for _, a := range req.Accounts {
		snap := &models.BalanceSnapshot{AccountGUID: a.AccountGUID, AccountType: a.AccountType}
		if a.CurrentBalance != nil {
			snap.CurrentBalance = *a.CurrentBalance
			snap.HasBalance = true
		}
		if a.AvailableBalance != nil {
			snap.AvailableBalance = *a.AvailableBalance
		}
		if a.CurrentBalanceDate != "" {
			d, err := ParseDate(a.CurrentBalanceDate)
			if err != nil {
				return nil, utils.WrapPipelineError(utils.CodeMalformedDate, fmt.Errorf("account %s currentBalanceDate: %w", a.AccountGUID, err))
			}
			snap.CurrentBalanceDate = d
		} else if snap.HasBalance {
			snap.CurrentBalanceDate = asOf
		}
		if out.Snapshot(a.AccountGUID) == nil {
			out.Accounts = append(out.Accounts, snap)
		}
	}

	from := time.Time{}
	if months := tf.Months(); months > 0 {
		from = asOf.AddDate(0, -months, 0)
	}
	for i, in := range req.Transactions {
		t, err := toTransaction(in, i)
		if err != nil {
			return nil, err
		}
		if out.Snapshot(t.AccountGUID) == nil {
			out.Accounts = append(out.Accounts, &models.BalanceSnapshot{AccountGUID: t.AccountGUID})
		}
		if t.Date.After(asOf) || (!from.IsZero() && t.Date.Before(from)) {
			continue
		}
		out.Transactions = append(out.Transactions, t)
	}

	if err := checkShape(out.Transactions); err != nil {
		return nil, err
	}
	return out, nil
}

// checkShape applies the input-shape rules to the analysed transactions.
func checkShape(txns []*models.Transaction) error {
	if len(txns) == 0 {
		return utils.NewPipelineError(utils.CodeNoTransactions)
	}
	if len(txns) == 1 {
		return utils.NewPipelineError(utils.CodeSingleRecord)
	}
	credits, debits := 0, 0
	for _, t := range txns {
		if t.IsCredit() {
			credits++
		} else {
			debits++
		}
	}
	if credits == 0 {
		return utils.NewPipelineError(utils.CodeNoCreditTransactions)
	}
	if credits == 1 || debits == 1 {
		return utils.NewPipelineError(utils.CodeSingleCreditOrDebit)
	}
	return nil
}

func toTransaction(in models.TransactionInput, index int) (*models.Transaction, error) {
	d, err := ParseDate(in.Date)
	if err != nil {
		return nil, utils.WrapPipelineError(utils.CodeMalformedDate, fmt.Errorf("transactions[%d].date: %w", index, err))
	}
	typ, err := parseType(in.Type, in)
	if err != nil {
		return nil, utils.WrapPipelineError(utils.CodeProcessingError, err)
	}
	guid := in.GUID
	if guid == "" {
		guid = fmt.Sprintf("%s-%d", in.AccountGUID, index)
	}
	t := &models.Transaction{
		AccountGUID:    in.AccountGUID,
		TransGUID:      guid,
		RawDescription: description(in),
		Date:           d,
		Amount:         in.Amount.Abs(),
		Type:           typ,
	}
	if in.Label != "" {
		if c, ok := models.ParseCategory(in.Label); ok {
			t.SetCategory(c, models.LabelSourceInput)
		}
	}
	return t, nil
}

// description prefers originalDescription over description.
func description(in models.TransactionInput) string {
	if in.OriginalDescription != nil && strings.TrimSpace(*in.OriginalDescription) != "" {
		return *in.OriginalDescription
	}
	if in.Description != nil {
		return *in.Description
	}
	return ""
}

// parseType normalizes the direction; an empty type follows the amount sign.
func parseType(s string, in models.TransactionInput) (models.TransactionType, error) {
	switch models.TransactionType(strings.ToUpper(strings.TrimSpace(s))) {
	case models.Credit:
		return models.Credit, nil
	case models.Debit:
		return models.Debit, nil
	case "":
		if in.Amount.IsNegative() {
			return models.Debit, nil
		}
		return models.Credit, nil
	}
	return "", fmt.Errorf("type must be CREDIT or DEBIT, got %q", s)
}

// ParseDate parses a wire date and truncates it to the calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return calendar.Day(d), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
