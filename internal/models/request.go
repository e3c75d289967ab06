package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Timeframe restricts the analysed transaction window.
type Timeframe string

const (
	TimeframeAll        Timeframe = "ALL"
	TimeframeOneMonth   Timeframe = "ONE_MONTH"
	TimeframeTwoMonth   Timeframe = "TWO_MONTH"
	TimeframeThreeMonth Timeframe = "THREE_MONTH"
	TimeframeFourMonth  Timeframe = "FOUR_MONTH"
	TimeframeFiveMonth  Timeframe = "FIVE_MONTH"
	TimeframeSixMonth   Timeframe = "SIX_MONTH"
)

var timeframeMonths = map[Timeframe]int{
	TimeframeAll:        0,
	TimeframeOneMonth:   1,
	TimeframeTwoMonth:   2,
	TimeframeThreeMonth: 3,
	TimeframeFourMonth:  4,
	TimeframeFiveMonth:  5,
	TimeframeSixMonth:   6,
}

// Months returns the trailing window length; 0 means unbounded.
func (t Timeframe) Months() int {
	return timeframeMonths[t]
}

// ParseTimeframe validates a timeframe selector. Empty means ALL.
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "" {
		return TimeframeAll, nil
	}
	t := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := timeframeMonths[t]; !ok {
		return "", fmt.Errorf("invalid timeframe %q", s)
	}
	return t, nil
}

// Schema versions of the output contract.
const (
	SchemaV1 = "V1"
	SchemaV2 = "V2"
)

// Verbosity modes.
const (
	VerbosityFull    = "full"
	VerbosityScore   = "score"
	VerbositySummary = "summary"
	VerbosityFields  = "fields"
)

// OutputFields is the enum of selectable account sections.
var OutputFields = []string{
	"incomeSources",
	"loanSources",
	"overdraftIncidents",
	"cashFlow",
	"majorIncomeSource",
	"scores",
	"lendingGuide",
	"creditTrans",
	"debitTrans",
	"atp",
}

// SummaryFields is the subset returned for verbosity "summary".
var SummaryFields = []string{"incomeSources", "loanSources", "cashFlow", "majorIncomeSource", "scores", "lendingGuide"}

// Verbosity selects which account sections are returned. On the wire it is a
// boolean, the string "summary", a comma separated field list, or a JSON array.
type Verbosity struct {
	Mode   string
	Fields []string
}

// UnmarshalJSON accepts every wire shape of the verbosity control.
func (v *Verbosity) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*v = Verbosity{Mode: VerbosityFull}
		} else {
			*v = Verbosity{Mode: VerbosityScore}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = Verbosity{Mode: VerbosityFields, Fields: list}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("verbosity must be a boolean, string or list")
	}
	parsed, err := ParseVerbosity(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVerbosity interprets the string form of the verbosity control.
func ParseVerbosity(s string) (Verbosity, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "true":
		return Verbosity{Mode: VerbosityFull}, nil
	case "false":
		return Verbosity{Mode: VerbosityScore}, nil
	case VerbositySummary:
		return Verbosity{Mode: VerbositySummary}, nil
	}
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return Verbosity{}, fmt.Errorf("verbosity field list is empty")
	}
	return Verbosity{Mode: VerbosityFields, Fields: fields}, nil
}

// UnknownFields returns requested fields that are not in OutputFields.
func (v Verbosity) UnknownFields() []string {
	known := make(map[string]bool, len(OutputFields))
	for _, f := range OutputFields {
		known[f] = true
	}
	var unknown []string
	for _, f := range v.Fields {
		if !known[f] {
			unknown = append(unknown, f)
		}
	}
	return unknown
}

// AccountInput is an account record on the request.
type AccountInput struct {
	AccountGUID        string           `json:"accountGuid" binding:"required"`
	AccountType        string           `json:"accountType"`
	CurrentBalance     *decimal.Decimal `json:"currentBalance"`
	AvailableBalance   *decimal.Decimal `json:"availableBalance"`
	CurrentBalanceDate string           `json:"currentBalanceDate"`
}

// TransactionInput is a transaction record on the request.
type TransactionInput struct {
	GUID                string          `json:"guid"`
	AccountGUID         string          `json:"accountGuid" binding:"required"`
	Description         *string         `json:"description"`
	OriginalDescription *string         `json:"originalDescription"`
	Amount              decimal.Decimal `json:"amount"`
	Date                string          `json:"date"`
	Type                string          `json:"type" binding:"omitempty,oneof=CREDIT DEBIT credit debit"`
	Label               string          `json:"label,omitempty"`
}

// AssessmentRequest is the scoring request body.
type AssessmentRequest struct {
	Accounts               []AccountInput     `json:"accounts" binding:"dive"`
	Transactions           []TransactionInput `json:"transactions" binding:"dive"`
	AsOfDate               string             `json:"asOfDate"`
	Timeframe              string             `json:"timeframe"`
	Verbosity              *Verbosity         `json:"verbosity"`
	SchemaVersion          string             `json:"schemaVersion"`
	ApplicationInformation map[string]any     `json:"applicationInformation,omitempty"`
	IBVAuth                map[string]any     `json:"IBVAuth,omitempty"`
}
