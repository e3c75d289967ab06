package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/redzone-go/internal/calendar"
	"github.com/irfndi/redzone-go/internal/classifier"
	"github.com/irfndi/redzone-go/internal/clustering"
	"github.com/irfndi/redzone-go/internal/config"
	"github.com/irfndi/redzone-go/internal/features"
	"github.com/irfndi/redzone-go/internal/knowledge"
	"github.com/irfndi/redzone-go/internal/models"
	"github.com/irfndi/redzone-go/internal/ner"
	"github.com/irfndi/redzone-go/internal/telemetry"
	"github.com/irfndi/redzone-go/internal/textnorm"
	"github.com/irfndi/redzone-go/internal/utils"
	"github.com/irfndi/redzone-go/pkg/interfaces"
)

// Risk levels reported in redZoneBehavior.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"

	lowRiskScore    = 700
	mediumRiskScore = 550
)

// Stage names used for spans and logs.
const (
	StageIngest    = "ingest"
	StageNormalize = "normalize"
	StageKnowledge = "knowledge_base"
	StageNER       = "ner"
	StageCluster   = "cluster"
	StageClassify  = "classify"
	StageAccounts  = "accounts"
	StageCustomer  = "customer"
	StageAssemble  = "assemble"
)

// PipelineDeps are the read-only collaborators loaded once at startup. Nil
// entries fall back to built-in defaults.
type PipelineDeps struct {
	Tagger          *ner.BatchTagger
	KnowledgeBase   knowledge.KnowledgeBase
	Clusterer       interfaces.TransactionGrouper
	Indicators      *features.Indicators
	Models          *classifier.Models
	Calendar        *calendar.Store
	Instrumentation telemetry.Instrumentation
	Logger          *logrus.Logger
}

// Pipeline turns an assessment request into an assessment result.
type Pipeline struct {
	cfg       *config.Config
	tagger    *ner.BatchTagger
	kb        knowledge.KnowledgeBase
	clusterer interfaces.TransactionGrouper
	builder   *features.Builder
	models    *classifier.Models
	sources   *SourceBuilder
	cashflow  *CashflowAnalyzer
	lending   *LendingGuideBuilder
	scores    *ScoreAggregator
	instr     telemetry.Instrumentation
	logger    *logrus.Logger
	version   string
}

// NewPipeline wires the stages.
//
// Parameters:
//
//	cfg: loaded configuration
//	deps: shared reference data and capabilities
//
// Returns:
//
//	*Pipeline: ready to serve concurrent requests
//	error: when a default model or knowledge base cannot be built
func NewPipeline(cfg *config.Config, deps PipelineDeps) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline requires a configuration")
	}
	p := &Pipeline{
		cfg:       cfg,
		tagger:    deps.Tagger,
		kb:        deps.KnowledgeBase,
		clusterer: deps.Clusterer,
		models:    deps.Models,
		instr:     deps.Instrumentation,
		logger:    deps.Logger,
	}
	if p.logger == nil {
		p.logger = logrus.StandardLogger()
	}
	if p.instr == nil {
		p.instr = telemetry.NoopInstrumentation{}
	}
	if p.tagger == nil {
		p.tagger = ner.NewBatchTagger(ner.NewLexiconTagger(ner.DefaultLexicon()), cfg.Pipeline.NERWorkers, cfg.Pipeline.NERBatchSize)
	}
	if p.kb == nil {
		kb, err := knowledge.New(knowledge.Config{Strategy: knowledge.StrategyRegex}, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build knowledge base: %w", err)
		}
		p.kb = kb
	}
	if p.clusterer == nil {
		p.clusterer = clustering.NewSimilarityClusterer(cfg.Pipeline.MaxDistance, cfg.Pipeline.ScopeByWho)
	}
	if p.models == nil {
		m, err := classifier.LoadModels(classifier.ModelPaths{})
		if err != nil {
			return nil, fmt.Errorf("failed to load bundled models: %w", err)
		}
		p.models = m
	}
	scores, err := NewScoreAggregator(p.models.Scorers, cfg.Scoring)
	if err != nil {
		return nil, err
	}
	p.scores = scores
	p.builder = features.NewBuilder(deps.Indicators)
	p.sources = NewSourceBuilder(cfg.Pipeline.StaleDays, deps.Calendar)
	p.cashflow = NewCashflowAnalyzer()
	p.lending = NewLendingGuideBuilder(cfg.Lending, deps.Calendar)

	p.version = cfg.Pipeline.ModelVersion
	if p.models.Version != "" {
		p.version = fmt.Sprintf("%s/%s", p.version, p.models.Version)
	}
	return p, nil
}

// ModelVersion is reported on every result.
func (p *Pipeline) ModelVersion() string {
	return p.version
}

// KnowledgeBase returns the knowledge base the pipeline labels with.
func (p *Pipeline) KnowledgeBase() knowledge.KnowledgeBase {
	return p.kb
}

// Prepare validates a request and fills in the server-side toggles.
func (p *Pipeline) Prepare(req *models.AssessmentRequest) (RunOptions, error) {
	opts, err := ValidateRequest(req)
	if err != nil {
		return opts, err
	}
	opts.EnableATP = p.cfg.Pipeline.EnableATP
	return opts, nil
}

// Run assesses one customer. It never fails: input-shape problems and
// processing errors come back as an error-shaped result.
func (p *Pipeline) Run(ctx context.Context, req *models.AssessmentRequest, opts RunOptions) (result *models.AssessmentResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Assessment pipeline panicked")
			result = models.NewErrorResult(utils.CodeProcessingError, utils.MessageForCode(utils.CodeProcessingError), p.version)
		}
	}()

	start := time.Now()
	result, err := p.assess(ctx, req, opts)
	if err != nil {
		pe := utils.AsPipelineError(err)
		entry := p.logger.WithFields(logrus.Fields{"run_error": pe.Code, "run_msg": pe.Message})
		if pe.Code == utils.CodeProcessingError {
			entry.WithError(err).Error("Assessment failed")
		} else {
			entry.Info("Assessment rejected input")
		}
		return models.NewErrorResult(pe.Code, pe.Message, p.version)
	}
	p.logger.WithFields(logrus.Fields{
		"accounts":    len(result.Accounts),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Assessment completed")
	return result
}

// stage runs fn inside an instrumentation span.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, end := p.instr.StartStage(ctx, name)
	err := fn(ctx)
	end(err)
	return err
}

func (p *Pipeline) assess(ctx context.Context, req *models.AssessmentRequest, opts RunOptions) (*models.AssessmentResult, error) {
	if req == nil {
		return nil, utils.NewPipelineError(utils.CodeNoTransactions)
	}

	var in *Ingested
	err := p.stage(ctx, StageIngest, func(context.Context) error {
		var err error
		in, err = Ingest(req, opts.Timeframe)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := p.label(ctx, in.Transactions); err != nil {
		return nil, err
	}

	var accounts []*accountAssessment
	_ = p.stage(ctx, StageAccounts, func(context.Context) error {
		accounts = p.assessAccounts(in, opts)
		return nil
	})

	result := &models.AssessmentResult{Accounts: []models.AccountResult{}, ModelVersion: p.version}
	_ = p.stage(ctx, StageCustomer, func(context.Context) error {
		result.CustomerInfo = p.customerInfo(accounts, in)
		return nil
	})
	for _, a := range accounts {
		result.Accounts = append(result.Accounts, a.result)
	}
	return result, nil
}

// label runs the labeling stages: normalization, knowledge base, NER,
// clustering and classification.
func (p *Pipeline) label(ctx context.Context, txns []*models.Transaction) error {
	_ = p.stage(ctx, StageNormalize, func(context.Context) error {
		for _, t := range txns {
			t.NormalizedDescription = textnorm.Normalize(t.RawDescription)
		}
		return nil
	})

	var pending []*models.Transaction
	for _, t := range txns {
		if !t.IsLabeled() {
			pending = append(pending, t)
		}
	}

	var unlabeled []*models.Transaction
	err := p.stage(ctx, StageKnowledge, func(ctx context.Context) error {
		var err error
		_, unlabeled, err = p.kb.Group(ctx, pending)
		return err
	})
	if err != nil {
		return utils.WrapPipelineError(utils.CodeProcessingError, fmt.Errorf("knowledge base: %w", err))
	}

	// Knowledge base hits already carry their counterparty.
	var untagged []*models.Transaction
	for _, t := range txns {
		if t.LabelSource != models.LabelSourceKnowledgeBase {
			untagged = append(untagged, t)
		}
	}
	err = p.stage(ctx, StageNER, func(ctx context.Context) error {
		return p.tagger.TagTransactions(ctx, untagged)
	})
	if err != nil {
		return utils.WrapPipelineError(utils.CodeProcessingError, fmt.Errorf("ner: %w", err))
	}

	err = p.stage(ctx, StageCluster, func(ctx context.Context) error {
		_, _, err := p.clusterer.Group(ctx, unlabeled)
		return err
	})
	if err != nil {
		return utils.WrapPipelineError(utils.CodeProcessingError, fmt.Errorf("cluster: %w", err))
	}

	err = p.stage(ctx, StageClassify, func(context.Context) error {
		return classifier.ClassifyClusters(p.models.Cluster, p.builder, models.GroupClusters(unlabeled))
	})
	if err != nil {
		return utils.WrapPipelineError(utils.CodeProcessingError, err)
	}
	return nil
}

// accountAssessment keeps the intermediate results of one account for the
// customer-level aggregation.
type accountAssessment struct {
	result   models.AccountResult
	sources  AccountSources
	cashflow *CashflowAnalysis
	input    ScoringInput
	txns     []*models.Transaction
}

func (p *Pipeline) atpParams() ATPParams {
	amount := p.cfg.ATP.DebitAmount
	if amount <= 0 {
		amount = p.lending.DebitFloor()
	}
	return ATPParams{
		DebitAmount:  amount,
		Prominence:   p.cfg.ATP.Prominence,
		PeakDistance: p.cfg.ATP.PeakDistance,
		MinimumDays:  p.cfg.ATP.MinimumDays,
	}
}

func (p *Pipeline) assessAccounts(in *Ingested, opts RunOptions) []*accountAssessment {
	byAccount := make(map[string][]*models.Transaction)
	for _, t := range in.Transactions {
		byAccount[t.AccountGUID] = append(byAccount[t.AccountGUID], t)
	}

	var out []*accountAssessment
	for _, snap := range in.Accounts {
		txns := byAccount[snap.AccountGUID]
		if len(txns) == 0 {
			continue
		}
		a := &accountAssessment{txns: txns}
		a.sources = p.sources.Build(snap.AccountGUID, txns, in.AsOf)
		var balance *models.BalanceSnapshot
		if snap.HasBalance {
			balance = snap
		}
		a.cashflow = p.cashflow.Analyze(snap.AccountGUID, txns, balance, in.AsOf)

		var atp *models.ATPSummary
		if opts.EnableATP {
			_, summary := AnalyzeATP(a.cashflow.Series, p.atpParams())
			atp = &summary
		}

		a.input = BuildScoringInput(&a.sources, a.cashflow)
		scores := p.scores.Score(&a.input.Features)

		a.result = models.AccountResult{
			AccountGUID:        snap.AccountGUID,
			AccountType:        snap.AccountType,
			IncomeSources:      nonNilIncome(a.sources.Income),
			LoanSources:        nonNilLoans(a.sources.Loans),
			OverdraftIncidents: a.cashflow.Incidents,
			CashFlow:           &a.cashflow.Summary,
			MajorIncomeSource:  a.sources.Dominant(),
			Scores:             scores,
			LendingGuide:       p.lending.Build(scores.RedZone.Score, a.sources.Income, atp, in.AsOf),
			ATP:                atp,
			CreditTrans:        []*models.Transaction{},
			DebitTrans:         []*models.Transaction{},
		}
		for _, t := range txns {
			if t.IsCredit() {
				a.result.CreditTrans = append(a.result.CreditTrans, t)
			} else {
				a.result.DebitTrans = append(a.result.DebitTrans, t)
			}
		}
		out = append(out, a)
	}
	return out
}

func (p *Pipeline) customerInfo(accounts []*accountAssessment, in *Ingested) models.CustomerInfo {
	inputs := make([]ScoringInput, 0, len(accounts))
	sources := make([]*AccountSources, 0, len(accounts))
	var income []models.IncomeSource
	loanPayments := decimal.Zero
	netFlow := decimal.Zero
	for _, a := range accounts {
		inputs = append(inputs, a.input)
		sources = append(sources, &a.sources)
		income = append(income, a.sources.Income...)
		loanPayments = loanPayments.Add(a.sources.MonthlyLoanPayments)
		netFlow = netFlow.Add(a.cashflow.Summary.NetCashFlow)
	}
	combined := CombineScoringInputs(inputs)
	scores := p.scores.Score(&combined.Features)

	recommended := recommendAccount(accounts)
	var atp *models.ATPSummary
	if recommended != nil {
		atp = recommended.result.ATP
	}

	info := models.CustomerInfo{
		AlertsAndInsights: BuildAlerts(AlertInput{
			Features:     combined,
			Accounts:     sources,
			Transactions: in.Transactions,
			AsOf:         in.AsOf,
		}),
		Scores:       scores,
		LendingGuide: p.lending.Build(scores.RedZone.Score, income, atp, in.AsOf),
		RedZoneBehavior: &models.RedZoneBehavior{
			RiskLevel:                RiskLevel(scores.RedZone.Score),
			TotalMonthlyIncome:       decimal.NewFromFloat(combined.Features.TotalMonthlyIncome).Round(2),
			TotalMonthlyLoanPayments: loanPayments.Round(2),
			ActiveIncomeSources:      combined.Features.ActiveIncomeSources,
			AverageBalance3M:         decimal.NewFromFloat(combined.Features.AvgBalance3M).Round(2),
			OverdraftCount3M:         combined.Features.OverdraftCount3M,
			NetCashFlow:              netFlow.Round(2),
		},
	}
	if recommended != nil {
		info.RecommendedBankAccount = recommended.result.AccountGUID
	}
	return info
}

// RiskLevel buckets a RedZone score; higher scores are safer.
func RiskLevel(score int) string {
	switch {
	case score >= lowRiskScore:
		return RiskLow
	case score >= mediumRiskScore:
		return RiskMedium
	}
	return RiskHigh
}

// recommendAccount picks the account hosting the highest dominant income,
// falling back to the highest three-month average balance.
func recommendAccount(accounts []*accountAssessment) *accountAssessment {
	var best *accountAssessment
	bestIncome := decimal.Zero
	for _, a := range accounts {
		d := a.sources.Dominant()
		if d == nil {
			continue
		}
		if best == nil || d.MonthlyIncome.GreaterThan(bestIncome) {
			best, bestIncome = a, d.MonthlyIncome
		}
	}
	if best != nil {
		return best
	}
	for _, a := range accounts {
		if best == nil || a.cashflow.Summary.AverageBalance.ThreeMonth.GreaterThan(best.cashflow.Summary.AverageBalance.ThreeMonth) {
			best = a
		}
	}
	return best
}

// Assess validates, runs and shapes a request in one call.
func (p *Pipeline) Assess(ctx context.Context, req *models.AssessmentRequest) (map[string]any, *models.AssessmentResult, error) {
	opts, err := p.Prepare(req)
	if err != nil {
		return nil, nil, err
	}
	result := p.Run(ctx, req, opts)
	var shaped map[string]any
	err = p.stage(ctx, StageAssemble, func(context.Context) error {
		var err error
		shaped, err = ShapeResult(result, opts.Output)
		return err
	})
	if err != nil {
		return nil, result, err
	}
	return shaped, result, nil
}

func nonNilIncome(s []models.IncomeSource) []models.IncomeSource {
	if s == nil {
		return []models.IncomeSource{}
	}
	return s
}

func nonNilLoans(s []models.LoanSource) []models.LoanSource {
	if s == nil {
		return []models.LoanSource{}
	}
	return s
}
