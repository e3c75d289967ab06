// Package features turns a cluster of transactions into the numeric and
// textual features consumed by the classifier.
package features

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/textnorm"
)

// Indicators holds the phrase lists behind the boolean text signals.
type Indicators struct {
	StrongLoan   []string `json:"strongLoan"`
	SemiLoan     []string `json:"semiLoan"`
	WeakLoan     []string `json:"weakLoan"`
	Payroll      []string `json:"payroll"`
	Benefit      []string `json:"benefit"`
	Gig          []string `json:"gig"`
	Transfer     []string `json:"transfer"`
	BankTransfer []string `json:"bankTransfer"`
}

// DefaultIndicators returns the built-in indicator phrases.
func DefaultIndicators() *Indicators {
	return &Indicators{
		StrongLoan:   []string{"loan", "loans", "lending", "lender", "installment", "payday loan", "cash advance"},
		SemiLoan:     []string{"advance", "finance", "financial", "funding", "credit", "capital"},
		WeakLoan:     []string{"pmt", "payment", "repay", "repayment", "autopay", "debit"},
		Payroll:      []string{"payroll", "salary", "wage", "wages", "paycheck", "direct dep", "dir dep", "direct deposit", "reg salary"},
		Benefit:      []string{"ssa", "treas", "social security", "unemployment", "benefit", "benefits", "ssi", "dfas", "va benefit", "child support"},
		Gig:          []string{"uber", "lyft", "doordash", "dasher", "instacart", "grubhub", "postmates", "shipt", "rover"},
		Transfer:     []string{"transfer", "xfer", "trnsfr", "zelle", "venmo", "cash app", "cashapp", "paypal", "apple cash"},
		BankTransfer: []string{"online transfer", "internal transfer", "from checking", "from savings", "to checking", "to savings", "acct transfer"},
	}
}

// LoadIndicators reads indicator phrases from a JSON file.
func LoadIndicators(path string) (*Indicators, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read indicators: %w", err)
	}
	var ind Indicators
	if err := json.Unmarshal(data, &ind); err != nil {
		return nil, fmt.Errorf("failed to parse indicators: %w", err)
	}
	return &ind, nil
}

// FeatureNames is the column order of ClusterFeatures.Vector.
var FeatureNames = []string{
	"member_count",
	"credit_ratio",
	"amount_mean",
	"amount_std",
	"amount_cv",
	"amount_min",
	"amount_max",
	"amount_median",
	"round_amount_ratio",
	"dow_consistency",
	"dom_std",
	"interval_median",
	"interval_std",
	"span_days",
	"bin_1",
	"bin_2_5",
	"bin_6_8",
	"bin_9_12",
	"bin_13_17",
	"bin_18_24",
	"bin_24_35",
	"bin_36_plus",
	"who_present",
	"who_org",
	"who_person",
	"ind_strong_loan",
	"ind_semi_loan",
	"ind_weak_loan",
	"ind_payroll",
	"ind_benefit",
	"ind_gig",
	"ind_transfer",
	"ind_bank_transfer",
}

// FeatureIndex returns the vector position of a named feature, or -1.
func FeatureIndex(name string) int {
	for i, n := range FeatureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Flags are the boolean textual signals of a cluster.
type Flags struct {
	WhoPresent   bool `json:"whoPresent"`
	WhoOrg       bool `json:"whoOrg"`
	WhoPerson    bool `json:"whoPerson"`
	StrongLoan   bool `json:"strongLoan"`
	SemiLoan     bool `json:"semiLoan"`
	WeakLoan     bool `json:"weakLoan"`
	Payroll      bool `json:"payroll"`
	Benefit      bool `json:"benefit"`
	Gig          bool `json:"gig"`
	Transfer     bool `json:"transfer"`
	BankTransfer bool `json:"bankTransfer"`
}

// ClusterFeatures is the feature set of one cluster. Interval statistics are
// NaN for single-member clusters.
type ClusterFeatures struct {
	Label            string    `json:"label"`
	AccountGUID      string    `json:"accountGuid"`
	MemberCount      int       `json:"memberCount"`
	CreditRatio      float64   `json:"creditRatio"`
	AmountMean       float64   `json:"amountMean"`
	AmountStd        float64   `json:"amountStd"`
	AmountCV         float64   `json:"amountCv"`
	AmountMin        float64   `json:"amountMin"`
	AmountMax        float64   `json:"amountMax"`
	AmountMedian     float64   `json:"amountMedian"`
	RoundAmountRatio float64   `json:"roundAmountRatio"`
	DOWConsistency   float64   `json:"dowConsistency"`
	DOMStd           float64   `json:"domStd"`
	IntervalMedian   float64   `json:"intervalMedian"`
	IntervalStd      float64   `json:"intervalStd"`
	SpanDays         int       `json:"spanDays"`
	IntervalBins     []float64 `json:"intervalBins"`
	WhoTokens        []string  `json:"whoTokens"`
	HowTokens        []string  `json:"howTokens"`
	WhatTokens       []string  `json:"whatTokens"`
	DescTokens       []string  `json:"descTokens"`
	WhoCat           string    `json:"whoCat"`
	Flags            Flags     `json:"flags"`
}

// Vector returns the numeric features in FeatureNames order.
func (f *ClusterFeatures) Vector() []float64 {
	v := []float64{
		float64(f.MemberCount),
		f.CreditRatio,
		f.AmountMean,
		f.AmountStd,
		f.AmountCV,
		f.AmountMin,
		f.AmountMax,
		f.AmountMedian,
		f.RoundAmountRatio,
		f.DOWConsistency,
		f.DOMStd,
		f.IntervalMedian,
		f.IntervalStd,
		float64(f.SpanDays),
	}
	v = append(v, f.IntervalBins...)
	return append(v,
		boolFloat(f.Flags.WhoPresent),
		boolFloat(f.Flags.WhoOrg),
		boolFloat(f.Flags.WhoPerson),
		boolFloat(f.Flags.StrongLoan),
		boolFloat(f.Flags.SemiLoan),
		boolFloat(f.Flags.WeakLoan),
		boolFloat(f.Flags.Payroll),
		boolFloat(f.Flags.Benefit),
		boolFloat(f.Flags.Gig),
		boolFloat(f.Flags.Transfer),
		boolFloat(f.Flags.BankTransfer),
	)
}

// Terms returns the bag of words used by text models: description tokens
// followed by prefixed NER tokens.
func (f *ClusterFeatures) Terms() []string {
	terms := append([]string(nil), f.DescTokens...)
	for _, t := range f.WhoTokens {
		terms = append(terms, "who:"+t)
	}
	for _, t := range f.HowTokens {
		terms = append(terms, "how:"+t)
	}
	for _, t := range f.WhatTokens {
		terms = append(terms, "what:"+t)
	}
	if f.WhoCat != "" {
		terms = append(terms, "whocat:"+strings.ToLower(f.WhoCat))
	}
	return terms
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Builder computes cluster features.
type Builder struct {
	strongLoan   [][]string
	semiLoan     [][]string
	weakLoan     [][]string
	payroll      [][]string
	benefit      [][]string
	gig          [][]string
	transfer     [][]string
	bankTransfer [][]string
}

// NewBuilder creates a builder; nil indicators use DefaultIndicators.
func NewBuilder(ind *Indicators) *Builder {
	if ind == nil {
		ind = DefaultIndicators()
	}
	return &Builder{
		strongLoan:   splitPhrases(ind.StrongLoan),
		semiLoan:     splitPhrases(ind.SemiLoan),
		weakLoan:     splitPhrases(ind.WeakLoan),
		payroll:      splitPhrases(ind.Payroll),
		benefit:      splitPhrases(ind.Benefit),
		gig:          splitPhrases(ind.Gig),
		transfer:     splitPhrases(ind.Transfer),
		bankTransfer: splitPhrases(ind.BankTransfer),
	}
}

func splitPhrases(phrases []string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		if fields := strings.Fields(strings.ToLower(p)); len(fields) > 0 {
			out = append(out, fields)
		}
	}
	return out
}

// BuildAll computes features for each cluster in order.
func (b *Builder) BuildAll(clusters []*models.Cluster) []*ClusterFeatures {
	out := make([]*ClusterFeatures, len(clusters))
	for i, c := range clusters {
		out[i] = b.Build(c)
	}
	return out
}

// Build computes the features of one cluster.
func (b *Builder) Build(c *models.Cluster) *ClusterFeatures {
	f := &ClusterFeatures{
		Label:        c.Label,
		AccountGUID:  c.AccountGUID,
		MemberCount:  len(c.Members),
		IntervalBins: make([]float64, len(IntervalBins)),
	}
	if len(c.Members) == 0 {
		f.IntervalMedian, f.IntervalStd = math.NaN(), math.NaN()
		return f
	}

	members := append([]*models.Transaction(nil), c.Members...)
	sort.SliceStable(members, func(i, j int) bool { return members[i].Date.Before(members[j].Date) })

	b.amountFeatures(f, members)
	b.timingFeatures(f, members)
	b.textFeatures(f, members)
	return f
}

func (b *Builder) amountFeatures(f *ClusterFeatures, members []*models.Transaction) {
	amounts := make([]float64, len(members))
	credits, round := 0, 0
	for i, t := range members {
		amounts[i] = t.AmountFloat()
		if t.IsCredit() {
			credits++
		}
		if t.Amount.Equal(t.Amount.Truncate(0)) {
			round++
		}
	}
	n := float64(len(members))
	f.CreditRatio = float64(credits) / n
	f.RoundAmountRatio = float64(round) / n
	f.AmountMean = Mean(amounts)
	f.AmountStd = StdDev(amounts)
	f.AmountCV = CoefficientOfVariation(amounts)
	f.AmountMedian = Median(amounts)
	f.AmountMin, f.AmountMax = amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		f.AmountMin = math.Min(f.AmountMin, a)
		f.AmountMax = math.Max(f.AmountMax, a)
	}
}

func (b *Builder) timingFeatures(f *ClusterFeatures, members []*models.Transaction) {
	dates := make([]time.Time, len(members))
	var doms []float64
	dow := make(map[time.Weekday]int)
	for i, t := range members {
		dates[i] = t.Date
		doms = append(doms, float64(t.Date.Day()))
		dow[t.Date.Weekday()]++
	}
	top := 0
	for _, n := range dow {
		if n > top {
			top = n
		}
	}
	f.DOWConsistency = float64(top) / float64(len(members))
	f.DOMStd = StdDev(doms)
	f.SpanDays = DaysBetween(dates[0], dates[len(dates)-1])

	intervals := Intervals(dates)
	if len(intervals) == 0 {
		f.IntervalMedian, f.IntervalStd = math.NaN(), math.NaN()
		return
	}
	fl := toFloats(intervals)
	f.IntervalMedian = Median(fl)
	f.IntervalStd = StdDev(fl)
	for _, d := range intervals {
		f.IntervalBins[binIndex(BinInterval(d))]++
	}
	for i := range f.IntervalBins {
		f.IntervalBins[i] /= float64(len(intervals))
	}
}

func (b *Builder) textFeatures(f *ClusterFeatures, members []*models.Transaction) {
	who, how, what, desc := newTokenSet(), newTokenSet(), newTokenSet(), newTokenSet()
	whoCats := make(map[string]int)
	var catOrder []string
	var tokens [][]string

	for _, t := range members {
		who.addField(t.Who)
		how.addField(t.How)
		what.addField(t.What)
		content := textnorm.ContentTokens(t.NormalizedDescription)
		for _, tok := range content {
			desc.add(tok)
		}
		tokens = append(tokens, strings.Fields(t.NormalizedDescription))
		if t.WhoCat != "" && t.WhoCat != models.NoneValue {
			if whoCats[t.WhoCat] == 0 {
				catOrder = append(catOrder, t.WhoCat)
			}
			whoCats[t.WhoCat]++
		}
	}

	f.WhoTokens, f.HowTokens, f.WhatTokens, f.DescTokens = who.sorted(), how.sorted(), what.sorted(), desc.sorted()
	for _, cat := range catOrder {
		if whoCats[cat] > whoCats[f.WhoCat] {
			f.WhoCat = cat
		}
	}

	f.Flags.WhoPresent = f.WhoCat != ""
	f.Flags.WhoOrg = whoCats["ORG"] > 0
	f.Flags.WhoPerson = whoCats["PERSON"] > 0
	f.Flags.StrongLoan = anyPhrase(tokens, b.strongLoan)
	f.Flags.SemiLoan = anyPhrase(tokens, b.semiLoan)
	f.Flags.WeakLoan = anyPhrase(tokens, b.weakLoan)
	f.Flags.Payroll = anyPhrase(tokens, b.payroll)
	f.Flags.Benefit = anyPhrase(tokens, b.benefit)
	f.Flags.Gig = anyPhrase(tokens, b.gig)
	f.Flags.Transfer = anyPhrase(tokens, b.transfer)
	f.Flags.BankTransfer = anyPhrase(tokens, b.bankTransfer)
}

type tokenSet map[string]struct{}

func newTokenSet() tokenSet {
	return make(tokenSet)
}

func (s tokenSet) add(tok string) {
	s[tok] = struct{}{}
}

func (s tokenSet) addField(v string) {
	if v == "" || v == models.NoneValue {
		return
	}
	for _, tok := range strings.Fields(strings.ToLower(v)) {
		s.add(tok)
	}
}

func (s tokenSet) sorted() []string {
	out := make([]string, 0, len(s))
	for tok := range s {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func anyPhrase(docs [][]string, phrases [][]string) bool {
	for _, doc := range docs {
		for _, p := range phrases {
			if containsSeq(doc, p) {
				return true
			}
		}
	}
	return false
}

func containsSeq(tokens, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(tokens); i++ {
		for j := range seq {
			if tokens[i+j] != seq[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
