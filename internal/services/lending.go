package services

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/redzone-go/internal/calendar"
	"github.com/irfndi/redzone-go/internal/config"
	"github.com/irfndi/redzone-go/internal/models"
)

// NoIncome fills the debit fields when no income source exists.
const NoIncome = "No Income"

// AmountRange maps a score onto a bounded amount range.
type AmountRange struct {
	RatioMin float64
	RatioMax float64
	Floor    float64
	Ceiling  float64
}

// Recommend returns [floor10(clamp(RatioMin·score)), ceil10(clamp(RatioMax·score))],
// the maximum never below the minimum.
func (r AmountRange) Recommend(score int) (decimal.Decimal, decimal.Decimal) {
	s := float64(score)
	lo := math.Floor(r.clamp(r.RatioMin*s)/10) * 10
	hi := math.Ceil(r.clamp(r.RatioMax*s)/10) * 10
	if hi < lo {
		hi = lo
	}
	return decimal.NewFromFloat(lo), decimal.NewFromFloat(hi)
}

func (r AmountRange) clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Floor), r.Ceiling)
}

// LendingGuideBuilder turns a score and income picture into loan and debit
// recommendations.
type LendingGuideBuilder struct {
	loan          AmountRange
	debit         AmountRange
	advisoryDays  int
	calendarStore *calendar.Store
}

// NewLendingGuideBuilder creates a builder from the lending settings.
func NewLendingGuideBuilder(cfg config.LendingConfig, cal *calendar.Store) *LendingGuideBuilder {
	if cal == nil {
		cal = calendar.NewStore(nil)
	}
	advisory := cfg.IrregularAdvisoryDays
	if advisory <= 0 {
		advisory = 14
	}
	return &LendingGuideBuilder{
		loan:          AmountRange{RatioMin: cfg.LoanRatioMin, RatioMax: cfg.LoanRatioMax, Floor: cfg.LoanFloor, Ceiling: cfg.LoanCeiling},
		debit:         AmountRange{RatioMin: cfg.DebitRatioMin, RatioMax: cfg.DebitRatioMax, Floor: cfg.DebitFloor, Ceiling: cfg.DebitCeiling},
		advisoryDays:  advisory,
		calendarStore: cal,
	}
}

// DebitFloor is the smallest debit the guide can recommend.
func (b *LendingGuideBuilder) DebitFloor() float64 {
	return b.debit.Floor
}

// Build assembles the guide. income is every income source considered, in
// any order; atp may be nil.
func (b *LendingGuideBuilder) Build(score int, income []models.IncomeSource, atp *models.ATPSummary, asOf time.Time) *models.LendingGuide {
	g := &models.LendingGuide{GoodToDebitDays: []int{}}
	g.LoanAmountMin, g.LoanAmountMax = b.loan.Recommend(score)
	g.DebitAmountMin, g.DebitAmountMax = b.debit.Recommend(score)
	if atp != nil {
		g.GoodToDebitDays = append(g.GoodToDebitDays, atp.GoodToDebitDaysOfMonth...)
	}

	if src := bestSource(income, true); src != nil {
		g.DebitDate = src.NextPayDay
		g.DebitFrequency = src.Frequency.Label()
		g.IncomeType = models.IncomeTypeName(src.IncomeType)
		return g
	}
	if src := bestSource(income, false); src != nil {
		cal := b.calendarStore.Load()
		date := calendar.Day(asOf).AddDate(0, 0, b.advisoryDays)
		if !cal.IsBusinessDay(date) {
			date = cal.NextBusinessDay(date)
		}
		g.DebitDate = date.Format(models.DateLayout)
		g.DebitFrequency = models.FrequencyBiweekly.Label()
		g.IncomeType = models.IncomeTypeName(src.IncomeType)
		return g
	}
	g.DebitDate, g.DebitFrequency, g.IncomeType = NoIncome, NoIncome, NoIncome
	return g
}

// bestSource picks the highest-income source: valid with a regular cadence
// and a projected payday when regular is set, otherwise any source.
func bestSource(income []models.IncomeSource, regular bool) *models.IncomeSource {
	var best *models.IncomeSource
	for i := range income {
		s := &income[i]
		if regular && (!s.IsValid() || !s.Frequency.IsRegular() || s.NextPayDay == "") {
			continue
		}
		if best == nil || s.MonthlyIncome.GreaterThan(best.MonthlyIncome) {
			best = s
		}
	}
	return best
}
