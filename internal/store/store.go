package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// Evaluation is one persisted scoring of a company's loan application.
type Evaluation struct {
	ID          uuid.UUID `json:"evaluation_id"`
	CompanyName string    `json:"company_name"`
	Ticker      string    `json:"ticker,omitempty"`
	RatioSource string    `json:"ratio_source"`

	// Loan terms
	LoanValue       float64 `json:"loan_value"`
	CollateralValue float64 `json:"collateral_value"`
	CreditScore     float64 `json:"credit_score"`

	// Inputs as fetched, before imputation
	Ratios scoring.Record `json:"ratios"`

	// Scores
	FinalRiskScore     float64                `json:"final_risk_score"`
	FinancialRiskScore float64                `json:"financial_risk_score"`
	RepaymentRiskScore float64                `json:"repayment_risk_score"`
	LtCRatio           *float64               `json:"ltc_ratio"`
	PopulationSize     int                    `json:"population_size"`
	Factors            []scoring.FactorResult `json:"factors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EvaluationFilter struct {
	Company string
	Ticker  string
	Limit   int
	Offset  int
}

// PopulationRow is one stored reference company.
type PopulationRow struct {
	Company string         `json:"company"`
	Fields  scoring.Record `json:"fields"`
}

// AuditTable is the transformed working table captured for an evaluation.
type AuditTable struct {
	EvaluationID uuid.UUID      `json:"evaluation_id"`
	Table        *scoring.Table `json:"table"`
	CreatedAt    time.Time      `json:"created_at"`
}

type Store interface {
	// Reference population
	ListPopulation(ctx context.Context) ([]scoring.Record, error)
	ReplacePopulation(ctx context.Context, rows []PopulationRow) error
	CountPopulation(ctx context.Context) (int, error)

	// Evaluations
	CreateEvaluation(ctx context.Context, e *Evaluation) error
	GetEvaluation(ctx context.Context, id uuid.UUID) (*Evaluation, error)
	ListEvaluations(ctx context.Context, filter EvaluationFilter) ([]*Evaluation, error)

	// Audit
	SaveAuditTable(ctx context.Context, evaluationID uuid.UUID, t *scoring.Table) error
	GetAuditTable(ctx context.Context, evaluationID uuid.UUID) (*AuditTable, error)

	Close() error
}

// Result rebuilds the scoring result recorded for the evaluation. The
// working table is not persisted with the evaluation and is left nil.
func (e *Evaluation) Result() *scoring.ScoringResult {
	return &scoring.ScoringResult{
		FinalRiskScore:     e.FinalRiskScore,
		FinancialRiskScore: e.FinancialRiskScore,
		RepaymentRiskScore: e.RepaymentRiskScore,
		LtCRatio:           e.LtCRatio,
		PopulationSize:     e.PopulationSize,
		Factors:            e.Factors,
	}
}
