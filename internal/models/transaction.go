package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day layout used on the wire.
const DateLayout = "2006-01-02"

// NoneValue is the sentinel used for NER-derived fields without an entity.
const NoneValue = "None"

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	Credit TransactionType = "CREDIT"
	Debit  TransactionType = "DEBIT"
)

// Category is the label assigned to a transaction or cluster.
type Category string

const (
	CategoryPayroll  Category = "payroll"
	CategoryBenefit  Category = "benefit"
	CategoryTransfer Category = "transfer"
	CategoryGig      Category = "gig"
	CategoryLoan     Category = "loan"
	CategoryOther    Category = "other"
	CategoryNSF      Category = "nsf"
)

// Income type codes carried on transactions and sources.
const (
	IncomeTypeOther    = 0
	IncomeTypePayroll  = 1
	IncomeTypeBenefit  = 2
	IncomeTypeTransfer = 3
	IncomeTypeGig      = 4
	IncomeTypeLoan     = 5
)

// Label provenance.
const (
	LabelSourceKnowledgeBase = "knowledge_base"
	LabelSourceInput         = "input"
	LabelSourceClassifier    = "classifier"
)

var incomeTypeCodes = map[Category]int{
	CategoryPayroll:  IncomeTypePayroll,
	CategoryBenefit:  IncomeTypeBenefit,
	CategoryTransfer: IncomeTypeTransfer,
	CategoryGig:      IncomeTypeGig,
	CategoryLoan:     IncomeTypeLoan,
}

// IncomeType returns the integer code for the category.
func (c Category) IncomeType() int {
	return incomeTypeCodes[c]
}

// IsIncome reports whether the category is one of the income categories.
func (c Category) IsIncome() bool {
	switch c {
	case CategoryPayroll, CategoryBenefit, CategoryTransfer, CategoryGig:
		return true
	}
	return false
}

// ParseCategory maps free text to a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryPayroll, CategoryBenefit, CategoryTransfer, CategoryGig, CategoryLoan, CategoryOther, CategoryNSF:
		return c, true
	}
	return CategoryOther, false
}

// IncomeTypeName is the display name of an income type code.
func IncomeTypeName(code int) string {
	switch code {
	case IncomeTypePayroll:
		return "Payroll"
	case IncomeTypeBenefit:
		return "Benefit"
	case IncomeTypeTransfer:
		return "Transfer"
	case IncomeTypeGig:
		return "Gig"
	case IncomeTypeLoan:
		return "Loan"
	}
	return "Other"
}

// Transaction is a single bank transaction enriched in place by each stage.
// Amount is always a magnitude; Type carries the direction.
type Transaction struct {
	AccountGUID           string          `json:"accountGuid"`
	TransGUID             string          `json:"transGuid"`
	RawDescription        string          `json:"description"`
	NormalizedDescription string          `json:"normalizedDescription"`
	Date                  time.Time       `json:"-"`
	Amount                decimal.Decimal `json:"amount"`
	Type                  TransactionType `json:"type"`
	ClusterLabel          string          `json:"clusterLabel"`
	Who                   string          `json:"who"`
	How                   string          `json:"how"`
	What                  string          `json:"what"`
	WhoCat                string          `json:"whoCat"`
	Category              Category        `json:"category"`
	SubCategory           string          `json:"subCategory,omitempty"`
	IncomeType            int             `json:"incomeType"`
	SourceID              string          `json:"sourceId,omitempty"`
	LabelSource           string          `json:"labelSource,omitempty"`
}

// IsCredit reports whether money flowed into the account.
func (t *Transaction) IsCredit() bool {
	return t.Type == Credit
}

// Signed returns the amount with debits negated.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// AmountFloat returns the magnitude as float64 for statistics.
func (t *Transaction) AmountFloat() float64 {
	return t.Amount.InexactFloat64()
}

// DateString renders the transaction date on the wire layout.
func (t *Transaction) DateString() string {
	return t.Date.Format(DateLayout)
}

// IsLabeled reports whether a category has already been assigned.
func (t *Transaction) IsLabeled() bool {
	return t.Category != ""
}

// SetCategory assigns the category and the matching income type code.
func (t *Transaction) SetCategory(c Category, labelSource string) {
	t.Category = c
	t.IncomeType = c.IncomeType()
	t.LabelSource = labelSource
}

// BalanceSnapshot is the externally supplied balance of one account.
type BalanceSnapshot struct {
	AccountGUID        string          `json:"accountGuid"`
	AccountType        string          `json:"accountType"`
	CurrentBalance     decimal.Decimal `json:"currentBalance"`
	AvailableBalance   decimal.Decimal `json:"availableBalance"`
	CurrentBalanceDate time.Time       `json:"-"`
	HasBalance         bool            `json:"-"`
}
