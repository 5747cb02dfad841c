// Package evaluator runs one loan risk evaluation end to end: ticker
// resolution, ratio fetch, population load, scoring and the best-effort
// audit, persistence and event side effects.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RiskScore/internal/audit"
	"github.com/MikeSquared-Agency/RiskScore/internal/hermes"
	"github.com/MikeSquared-Agency/RiskScore/internal/metrics"
	"github.com/MikeSquared-Agency/RiskScore/internal/ratios"
	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
	"github.com/MikeSquared-Agency/RiskScore/internal/store"
	"github.com/MikeSquared-Agency/RiskScore/internal/ticker"
)

// ErrInvalidRequest wraps every request validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// RatioSourceRequest marks ratios supplied inline by the caller.
const RatioSourceRequest = "request"

// Request describes one loan application. When Ratios is nil they are
// fetched; Ticker is resolved from CompanyName when empty.
type Request struct {
	CompanyName     string
	Ticker          string
	Ratios          scoring.Record
	LoanValue       float64
	CollateralValue float64
	CreditScore     float64
}

// Validate checks the loan terms. Collateral may be zero, which yields a
// null LtC.
func (r Request) Validate() error {
	if strings.TrimSpace(r.CompanyName) == "" {
		return fmt.Errorf("%w: company_name is required", ErrInvalidRequest)
	}
	if err := ValidateTerms(&r.LoanValue, &r.CollateralValue, &r.CreditScore); err != nil {
		return err
	}
	return ValidateFields(r.Ratios)
}

// ValidateTerms checks the loan terms that are present. A nil value is a
// missing cell and passes.
func ValidateTerms(loan, collateral, creditScore *float64) error {
	if loan != nil && (math.IsInf(*loan, 0) || !(*loan > 0)) {
		return fmt.Errorf("%w: loan_value must be a positive finite amount", ErrInvalidRequest)
	}
	if collateral != nil && (math.IsInf(*collateral, 0) || !(*collateral >= 0)) {
		return fmt.Errorf("%w: collateral_value must be a finite amount, not negative", ErrInvalidRequest)
	}
	if cs := creditScore; cs != nil && !(*cs >= scoring.MinCreditScore && *cs <= scoring.MaxCreditScore) {
		return fmt.Errorf("%w: credit_score must be between %.0f and %.0f",
			ErrInvalidRequest, scoring.MinCreditScore, scoring.MaxCreditScore)
	}
	return nil
}

// ValidateFields rejects keys outside the record contract.
func ValidateFields(rec scoring.Record) error {
	for k := range rec {
		if !scoring.IsKnownField(k) {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidRequest, k)
		}
	}
	return nil
}

// PopulationLoader supplies the reference population.
type PopulationLoader interface {
	Load(ctx context.Context) (scoring.Population, error)
}

// Invalidator drops a cached population.
type Invalidator interface {
	Invalidate()
}

// EvaluationSaver is the slice of the store the evaluator writes to.
type EvaluationSaver interface {
	CreateEvaluation(ctx context.Context, e *store.Evaluation) error
}

// Deps are the evaluator's collaborators. Only Scorer and Population are
// required; a nil side-effect collaborator is skipped.
type Deps struct {
	Scorer     *scoring.Scorer
	Population PopulationLoader
	Fetcher    ratios.Fetcher
	Resolver   ticker.Resolver
	Store      EvaluationSaver
	Audit      audit.Sink
	Hermes     hermes.Client
	Metrics    *metrics.Metrics
}

type Evaluator struct {
	scorer     *scoring.Scorer
	population PopulationLoader
	fetcher    ratios.Fetcher
	resolver   ticker.Resolver
	store      EvaluationSaver
	audit      audit.Sink
	hermes     hermes.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(d Deps, logger *slog.Logger) (*Evaluator, error) {
	if d.Scorer == nil {
		return nil, errors.New("evaluator: scorer is required")
	}
	if d.Population == nil {
		return nil, errors.New("evaluator: population loader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		scorer:     d.Scorer,
		population: d.Population,
		fetcher:    d.Fetcher,
		resolver:   d.Resolver,
		store:      d.Store,
		audit:      d.Audit,
		hermes:     d.Hermes,
		metrics:    d.Metrics,
		logger:     logger,
	}, nil
}

// Weights returns the active weight table.
func (e *Evaluator) Weights() scoring.WeightTable {
	return e.scorer.Weights()
}

// Evaluate scores one loan application. Scoring failures are returned and
// no partial score is produced. Audit, persistence and publish failures are
// logged and never fail the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*store.Evaluation, error) {
	started := time.Now()
	id := uuid.New()

	eval, result, err := e.evaluate(ctx, id, req)
	if err != nil {
		e.observe(Outcome(err), started)
		e.logger.Warn("evaluation failed", "evaluation_id", id, "company", req.CompanyName, "error", err)
		if !errors.Is(err, ErrInvalidRequest) {
			e.publish(hermes.SubjectEvaluationFailed(id.String()), hermes.EvaluationFailedEvent{
				EvaluationID: id.String(),
				CompanyName:  req.CompanyName,
				Ticker:       req.Ticker,
				Reason:       Outcome(err),
				Error:        err.Error(),
			})
		}
		return nil, err
	}

	if e.audit != nil {
		if err := e.audit.Write(ctx, id, result.Table); err != nil {
			e.sinkFailed("audit")
			e.logger.Warn("audit write failed", "evaluation_id", id, "error", err)
		}
	}
	if e.store != nil {
		if err := e.store.CreateEvaluation(ctx, eval); err != nil {
			e.sinkFailed("store")
			e.logger.Warn("failed to persist evaluation", "evaluation_id", id, "error", err)
		}
	}
	e.publish(hermes.SubjectEvaluationCompleted(id.String()), hermes.EvaluationCompletedEvent{
		EvaluationID:       id.String(),
		CompanyName:        eval.CompanyName,
		Ticker:             eval.Ticker,
		FinalRiskScore:     eval.FinalRiskScore,
		FinancialRiskScore: eval.FinancialRiskScore,
		RepaymentRiskScore: eval.RepaymentRiskScore,
		LtCRatio:           eval.LtCRatio,
		PopulationSize:     eval.PopulationSize,
	})

	e.observe(metrics.OutcomeScored, started)
	if e.metrics != nil {
		e.metrics.FinalScore.Observe(eval.FinalRiskScore)
	}
	e.logger.Info("evaluation scored",
		"evaluation_id", id,
		"company", eval.CompanyName,
		"ticker", eval.Ticker,
		"final", eval.FinalRiskScore,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return eval, nil
}

func (e *Evaluator) evaluate(ctx context.Context, id uuid.UUID, req Request) (*store.Evaluation, *scoring.ScoringResult, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	fetched, source, symbol, err := e.subjectRatios(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	pop, err := e.population.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	if e.metrics != nil {
		e.metrics.PopulationSize.Set(float64(pop.Len()))
	}

	loan, collateral, credit := req.LoanValue, req.CollateralValue, req.CreditScore
	subject := scoring.NewSubject(fetched, &loan, &collateral, &credit)
	result, err := e.scorer.Score(pop, subject)
	if err != nil {
		return nil, nil, err
	}

	eval := &store.Evaluation{
		ID:                 id,
		CompanyName:        strings.TrimSpace(req.CompanyName),
		Ticker:             symbol,
		RatioSource:        source,
		LoanValue:          req.LoanValue,
		CollateralValue:    req.CollateralValue,
		CreditScore:        req.CreditScore,
		Ratios:             fetched,
		FinalRiskScore:     result.FinalRiskScore,
		FinancialRiskScore: result.FinancialRiskScore,
		RepaymentRiskScore: result.RepaymentRiskScore,
		LtCRatio:           result.LtCRatio,
		PopulationSize:     result.PopulationSize,
		Factors:            result.Factors,
		CreatedAt:          time.Now().UTC(),
	}
	return eval, result, nil
}

// subjectRatios returns the ratios to score, their source name and the
// ticker they belong to.
func (e *Evaluator) subjectRatios(ctx context.Context, req Request) (scoring.Record, string, string, error) {
	symbol := strings.TrimSpace(req.Ticker)
	if req.Ratios != nil {
		return req.Ratios.Clone(), RatioSourceRequest, symbol, nil
	}
	if e.fetcher == nil {
		return nil, "", "", fmt.Errorf("%w: ratios are required when no ratio source is configured", ErrInvalidRequest)
	}

	if symbol == "" && e.resolver != nil {
		resolved, err := e.resolver.Resolve(ctx, req.CompanyName)
		if err != nil {
			return nil, "", "", fmt.Errorf("resolve ticker: %w", err)
		}
		symbol = resolved
		e.logger.Debug("ticker resolved", "company", req.CompanyName, "ticker", symbol)
	}

	rec, err := e.fetcher.FetchRatios(ctx, ratios.Company{Name: req.CompanyName, Ticker: symbol})
	if err != nil {
		return nil, "", "", fmt.Errorf("fetch ratios (%s): %w", e.fetcher.Name(), err)
	}
	return rec, e.fetcher.Name(), symbol, nil
}

// Score scores an explicit subject record against the current population
// without fetching, persisting or publishing anything. Loan terms present in
// the record get the same checks as Evaluate.
func (e *Evaluator) Score(ctx context.Context, subject scoring.Record) (*scoring.ScoringResult, error) {
	if err := ValidateFields(subject); err != nil {
		return nil, err
	}
	if err := ValidateTerms(subject[scoring.FieldLoanValue], subject[scoring.FieldCollateralValue], subject[scoring.FieldCreditScore]); err != nil {
		return nil, err
	}
	pop, err := e.population.Load(ctx)
	if err != nil {
		return nil, err
	}
	return e.scorer.Score(pop, subject)
}

func (e *Evaluator) publish(subject string, event interface{}) {
	if e.hermes == nil {
		return
	}
	if err := e.hermes.Publish(subject, event); err != nil {
		e.sinkFailed("hermes")
		e.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (e *Evaluator) observe(outcome string, started time.Time) {
	if e.metrics != nil {
		e.metrics.Observe(outcome, started)
	}
}

func (e *Evaluator) sinkFailed(sink string) {
	if e.metrics != nil {
		e.metrics.SinkFailures.WithLabelValues(sink).Inc()
	}
}

// Outcome classifies an evaluation error for metrics and events.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeScored
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeInvalid
	case errors.Is(err, scoring.ErrDataUnavailable):
		return metrics.OutcomeDataUnavailable
	case errors.Is(err, scoring.ErrSchemaMismatch):
		return metrics.OutcomeSchemaMismatch
	case errors.Is(err, ratios.ErrCompanyNotFound), errors.Is(err, ticker.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ratios.ErrSourceUnavailable), errors.Is(err, ticker.ErrUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}

// ReloadPopulation drops the cached population, reloads it and tells other
// instances to do the same.
func (e *Evaluator) ReloadPopulation(ctx context.Context, cache Invalidator, origin string) (int, error) {
	if cache != nil {
		cache.Invalidate()
	}
	pop, err := e.population.Load(ctx)
	if err != nil {
		return 0, err
	}
	if pop.Len() == 0 {
		return 0, fmt.Errorf("%w: %s has no records", scoring.ErrDataUnavailable, pop.Source)
	}
	if e.metrics != nil {
		e.metrics.PopulationSize.Set(float64(pop.Len()))
	}
	now := time.Now().UTC()
	e.publish(hermes.SubjectPopulationInvalidate, hermes.PopulationInvalidateEvent{Origin: origin, Timestamp: now})
	e.publish(hermes.SubjectPopulationReloaded, hermes.PopulationReloadedEvent{
		Source:    pop.Source,
		Records:   pop.Len(),
		Timestamp: now,
	})
	return pop.Len(), nil
}

// WatchInvalidation invalidates cache whenever another instance broadcasts
// a population change. Broadcasts from origin itself are ignored.
func WatchInvalidation(h hermes.Client, cache Invalidator, origin string, logger *slog.Logger) error {
	return h.Subscribe(hermes.SubjectPopulationInvalidate, func(_ string, data []byte) {
		var ev hermes.PopulationInvalidateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			logger.Warn("bad invalidation event", "error", err)
			return
		}
		if origin != "" && ev.Origin == origin {
			return
		}
		cache.Invalidate()
	})
}
