package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/irfndi/redzone-go/internal/calendar"
	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/models"
)

// DefaultStaleDays is how long a source may go quiet before it is stale.
const DefaultStaleDays = 45

const daysPerMonth = 30.4375

var sourceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("redzone/sources"))

// AccountSources is the income and loan picture of one account.
type AccountSources struct {
	Income              []models.IncomeSource
	Loans               []models.LoanSource
	MonthlyLoanPayments decimal.Decimal
}

// Dominant returns the dominant income source, or nil.
func (a *AccountSources) Dominant() *models.IncomeSource {
	for i := range a.Income {
		if a.Income[i].IsDominant {
			return &a.Income[i]
		}
	}
	return nil
}

// ValidIncome returns the sources without an error code.
func (a *AccountSources) ValidIncome() []models.IncomeSource {
	var out []models.IncomeSource
	for _, s := range a.Income {
		if s.IsValid() {
			out = append(out, s)
		}
	}
	return out
}

// TotalMonthlyIncome sums valid sources.
func (a *AccountSources) TotalMonthlyIncome() decimal.Decimal {
	total := decimal.Zero
	for _, s := range a.ValidIncome() {
		total = total.Add(s.MonthlyIncome)
	}
	return total
}

// ActiveLoans counts valid loan sources.
func (a *AccountSources) ActiveLoans() int {
	n := 0
	for _, l := range a.Loans {
		if l.IsValid() {
			n++
		}
	}
	return n
}

// SourceBuilder derives recurring income and loan relationships from
// labeled transactions.
type SourceBuilder struct {
	staleDays int
	calendar  *calendar.Store
}

// NewSourceBuilder creates a builder. staleDays <= 0 uses DefaultStaleDays;
// a nil store uses the federal calendar.
func NewSourceBuilder(staleDays int, cal *calendar.Store) *SourceBuilder {
	if staleDays <= 0 {
		staleDays = DefaultStaleDays
	}
	if cal == nil {
		cal = calendar.NewStore(nil)
	}
	return &SourceBuilder{staleDays: staleDays, calendar: cal}
}

type payment struct {
	date   time.Time
	amount decimal.Decimal
}

// sourceGroup is the transactions of one counterparty at one account.
type sourceGroup struct {
	counterparty string
	txns         []*models.Transaction
}

// Build derives the sources of one account and stamps each member
// transaction with its source id.
func (b *SourceBuilder) Build(accountGUID string, txns []*models.Transaction, asOf time.Time) AccountSources {
	sorted := append([]*models.Transaction(nil), txns...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var incomeTxns, loanTxns []*models.Transaction
	for _, t := range sorted {
		switch {
		case t.Category == models.CategoryLoan:
			loanTxns = append(loanTxns, t)
		case t.Category.IsIncome() && t.IsCredit():
			incomeTxns = append(incomeTxns, t)
		}
	}

	out := AccountSources{MonthlyLoanPayments: decimal.Zero}
	for _, g := range groupByCounterparty(incomeTxns) {
		out.Income = append(out.Income, b.incomeSource(accountGUID, g, asOf))
	}
	for _, g := range groupByCounterparty(loanTxns) {
		loan, monthly := b.loanSource(accountGUID, g, asOf)
		out.Loans = append(out.Loans, loan)
		if loan.IsValid() {
			out.MonthlyLoanPayments = out.MonthlyLoanPayments.Add(monthly)
		}
	}
	markDominant(out.Income)
	if out.Income == nil {
		out.Income = []models.IncomeSource{}
	}
	if out.Loans == nil {
		out.Loans = []models.LoanSource{}
	}
	return out
}

func counterpartyOf(t *models.Transaction) string {
	if t.Who != "" && t.Who != models.NoneValue {
		return t.Who
	}
	if t.ClusterLabel != "" {
		return t.ClusterLabel
	}
	return t.NormalizedDescription
}

func groupByCounterparty(txns []*models.Transaction) []sourceGroup {
	index := map[string]int{}
	var groups []sourceGroup
	for _, t := range txns {
		key := counterpartyOf(t)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, sourceGroup{counterparty: key})
		}
		groups[i].txns = append(groups[i].txns, t)
	}
	return groups
}

// collapse sums same-day transactions into one payment, ascending by date.
func collapse(txns []*models.Transaction) []payment {
	var out []payment
	for _, t := range txns {
		d := calendar.Day(t.Date)
		if n := len(out); n > 0 && out[n-1].date.Equal(d) {
			out[n-1].amount = out[n-1].amount.Add(t.Amount)
			continue
		}
		out = append(out, payment{date: d, amount: t.Amount})
	}
	return out
}

func paymentSeries(payments []payment) ([]time.Time, []float64, decimal.Decimal) {
	dates := make([]time.Time, len(payments))
	amounts := make([]float64, len(payments))
	total := decimal.Zero
	for i, p := range payments {
		dates[i] = p.date
		amounts[i] = p.amount.InexactFloat64()
		total = total.Add(p.amount)
	}
	return dates, amounts, total
}

// majorityCategory returns the most frequent category, first seen winning
// ties, and whether members disagree.
func majorityCategory(txns []*models.Transaction) (models.Category, string, bool) {
	counts := map[models.Category]int{}
	subCounts := map[string]int{}
	var order []models.Category
	var best models.Category
	bestSub := ""
	for _, t := range txns {
		if counts[t.Category] == 0 {
			order = append(order, t.Category)
		}
		counts[t.Category]++
		if t.SubCategory != "" {
			subCounts[t.SubCategory]++
			if subCounts[t.SubCategory] > subCounts[bestSub] {
				bestSub = t.SubCategory
			}
		}
	}
	for _, c := range order {
		if best == "" || counts[c] > counts[best] {
			best = c
		}
	}
	return best, bestSub, len(order) > 1
}

func clusterLabels(txns []*models.Transaction) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range txns {
		if t.ClusterLabel != "" && !seen[t.ClusterLabel] {
			seen[t.ClusterLabel] = true
			out = append(out, t.ClusterLabel)
		}
	}
	return out
}

func sourceID(accountGUID, kind, counterparty string) string {
	return uuid.NewSHA1(sourceNamespace, []byte(accountGUID+"|"+kind+"|"+counterparty)).String()
}

func dateStrings(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(models.DateLayout)
	}
	return out
}

// describeSchedule fills the cadence-derived fields shared by income and
// loan sources.
func (b *SourceBuilder) describeSchedule(src *models.Source, c cadence, dates []time.Time, amounts []float64, asOf time.Time) {
	src.Frequency = c.Frequency
	src.ActiveScore = activeScore(c, dates, amounts, asOf)
	src.RegularPayDay = regularPayDay(c, dates)
	src.HistoricalPayDay = dateStrings(dates)
	src.MissingPaydays = dateStrings(missingPaydays(c.Frequency, dates))
	src.PaymentNearHoliday = models.NoneValue

	if len(dates) == 0 {
		return
	}
	next, ok := projectNext(c, dates[len(dates)-1], asOf)
	if !ok {
		return
	}
	next, note, onHoliday := b.adjustForHoliday(next)
	src.NextPayDay = next.Format(models.DateLayout)
	src.PaymentNearHoliday = note
	src.NextPayDayOnHoliday = onHoliday
}

// adjustForHoliday flags projections on or beside a holiday and moves
// projections off non-business days.
func (b *SourceBuilder) adjustForHoliday(next time.Time) (time.Time, string, bool) {
	cal := b.calendar.Load()
	h, prox := cal.NearHoliday(next)
	switch prox {
	case calendar.ProximityOn:
		adjusted := cal.NearestBusinessDay(next)
		return adjusted, fmt.Sprintf("Next pay day falls on %s; expected %s", h.Name, adjusted.Format(models.DateLayout)), true
	case calendar.ProximityBefore:
		return next, fmt.Sprintf("Next pay day is the business day before %s", h.Name), true
	case calendar.ProximityAfter:
		return next, fmt.Sprintf("Next pay day is the business day after %s", h.Name), true
	}
	if !cal.IsBusinessDay(next) {
		next = cal.NearestBusinessDay(next)
	}
	return next, models.NoneValue, false
}

func (b *SourceBuilder) errorCode(observations int, average decimal.Decimal, inconsistent bool, last, asOf time.Time) int {
	switch {
	case observations <= 1:
		return models.SourceErrorInsufficientHistory
	case !average.IsPositive():
		return models.SourceErrorFailedValidation
	case inconsistent:
		return models.SourceErrorInconsistentCategory
	case features.DaysBetween(last, asOf) > b.staleDays:
		return models.SourceErrorStale
	}
	return models.SourceErrorNone
}

func (b *SourceBuilder) incomeSource(accountGUID string, g sourceGroup, asOf time.Time) models.IncomeSource {
	payments := collapse(g.txns)
	dates, amounts, total := paymentSeries(payments)
	category, sub, inconsistent := majorityCategory(g.txns)
	average := total.Div(decimal.NewFromInt(int64(len(payments)))).Round(2)

	c := inferCadence(dates)
	src := models.Source{
		SourceID:         sourceID(accountGUID, "income", g.counterparty),
		AccountGUID:      accountGUID,
		Counterparty:     g.counterparty,
		Category:         category,
		SubCategory:      sub,
		IncomeType:       category.IncomeType(),
		ClusterLabels:    clusterLabels(g.txns),
		AverageAmount:    average,
		TransactionCount: len(g.txns),
		ErrorCode:        b.errorCode(len(payments), average, inconsistent, dates[len(dates)-1], asOf),
	}
	b.describeSchedule(&src, c, dates, amounts, asOf)
	for _, t := range g.txns {
		t.SourceID = src.SourceID
	}

	return models.IncomeSource{
		Source:        src,
		MonthlyIncome: monthlyAmount(c.Frequency, average, total, dates[0], asOf),
	}
}

// monthlyAmount converts payments to a monthly figure. Irregular series use
// the average over the observed window.
func monthlyAmount(freq models.Frequency, average, total decimal.Decimal, first, asOf time.Time) decimal.Decimal {
	if freq.IsRegular() {
		return average.Mul(freq.MonthlyMultiplier()).Round(2)
	}
	months := float64(features.DaysBetween(first, asOf)) / daysPerMonth
	if months < 1 {
		months = 1
	}
	return total.Div(decimal.NewFromFloat(months)).Round(2)
}

func (b *SourceBuilder) loanSource(accountGUID string, g sourceGroup, asOf time.Time) (models.LoanSource, decimal.Decimal) {
	var debits, credits []*models.Transaction
	for _, t := range g.txns {
		if t.IsCredit() {
			credits = append(credits, t)
		} else {
			debits = append(debits, t)
		}
	}
	received := decimal.Zero
	for _, t := range credits {
		received = received.Add(t.Amount)
	}

	series := debits
	if len(series) == 0 {
		series = credits
	}
	payments := collapse(series)
	dates, amounts, total := paymentSeries(payments)
	category, sub, _ := majorityCategory(g.txns)

	paymentAmount := decimal.Zero
	if len(debits) > 0 {
		paymentAmount = total.Div(decimal.NewFromInt(int64(len(payments)))).Round(2)
	}
	observed := total.Div(decimal.NewFromInt(int64(len(payments))))

	c := inferCadence(dates)
	src := models.Source{
		SourceID:         sourceID(accountGUID, "loan", g.counterparty),
		AccountGUID:      accountGUID,
		Counterparty:     g.counterparty,
		Category:         category,
		SubCategory:      sub,
		IncomeType:       models.IncomeTypeLoan,
		ClusterLabels:    clusterLabels(g.txns),
		AverageAmount:    observed.Round(2),
		TransactionCount: len(g.txns),
		ErrorCode:        b.errorCode(len(payments), observed, false, dates[len(dates)-1], asOf),
	}
	b.describeSchedule(&src, c, dates, amounts, asOf)
	for _, t := range g.txns {
		t.SourceID = src.SourceID
	}

	monthly := decimal.Zero
	if len(debits) > 0 {
		monthly = monthlyAmount(c.Frequency, paymentAmount, total, dates[0], asOf)
	}
	return models.LoanSource{
		Source:             src,
		PaymentAmount:      paymentAmount,
		LoanAmountReceived: received.Round(2),
	}, monthly
}

// markDominant orders sources by monthly income, valid ones first, and flags
// the highest valid one. Ties keep first-seen order.
func markDominant(sources []models.IncomeSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].IsValid() != sources[j].IsValid() {
			return sources[i].IsValid()
		}
		return sources[i].MonthlyIncome.GreaterThan(sources[j].MonthlyIncome)
	})
	for i := range sources {
		sources[i].IsDominant = false
	}
	if len(sources) > 0 && sources[0].IsValid() {
		sources[0].IsDominant = true
	}
}
