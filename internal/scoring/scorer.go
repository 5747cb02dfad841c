package scoring

import (
	"fmt"
	"log/slog"
)

// Factor groups.
const (
	GroupFinancial = "financial"
	GroupRepayment = "repayment"
)

// FactorResult captures one weighted column's contribution for the subject.
type FactorResult struct {
	Name       string  `json:"name"`
	Group      string  `json:"group"`
	Value      float64 `json:"value"`
	Imputed    bool    `json:"imputed"`
	Normalized float64 `json:"normalized"`
	Weight     float64 `json:"weight"`
	Weighted   float64 `json:"weighted"`
}

// ScoringResult is the scoring output for a single subject.
type ScoringResult struct {
	FinalRiskScore     float64        `json:"final_risk_score"`
	FinancialRiskScore float64        `json:"financial_risk_score"`
	RepaymentRiskScore float64        `json:"repayment_risk_score"`
	LtCRatio           *float64       `json:"ltc_ratio"`
	PopulationSize     int            `json:"population_size"`
	Factors            []FactorResult `json:"factors"`

	// Table is the full transformed working table, kept for audit.
	Table *Table `json:"-"`
}

// Scorer blends a subject into a reference population and derives the
// financial, repayment and final risk scores.
type Scorer struct {
	weights WeightTable
	logger  *slog.Logger
}

// NewScorer creates a Scorer with the given weight table.
func NewScorer(weights WeightTable, logger *slog.Logger) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{weights: weights.clone(), logger: logger}, nil
}

// Weights returns a copy of the active weight table.
func (s *Scorer) Weights() WeightTable {
	return s.weights.clone()
}

// Score computes the subject's risk scores relative to the population. The
// working table is rebuilt on every call; neither argument is modified.
func (s *Scorer) Score(pop Population, subject Record) (*ScoringResult, error) {
	if pop.Len() == 0 {
		return nil, fmt.Errorf("%w: %s has no records", ErrDataUnavailable, sourceName(pop))
	}

	rawLtC := subjectLtC(subject)

	cols, err := s.assemble(pop, subject, rawLtC)
	if err != nil {
		return nil, err
	}

	rows := pop.Len() + 1
	last := rows - 1

	table := &Table{
		Columns: append(s.weights.Columns(), ColumnFinancialScore, ColumnRepaymentScore, ColumnFinalScore),
		Rows:    make([][]float64, rows),
	}
	for i := range table.Rows {
		table.Rows[i] = make([]float64, len(table.Columns))
	}

	weights := make([]Weight, 0, len(cols))
	weights = append(weights, s.weights.Financial...)
	weights = append(weights, s.weights.Repayment...)
	nFin := len(s.weights.Financial)

	financialSum := make([]float64, rows)
	repaymentSum := make([]float64, rows)
	factors := make([]FactorResult, len(cols))

	for j, c := range cols {
		c.impute()
		normalized := c.normalize()
		w := weights[j]
		for i := 0; i < rows; i++ {
			weighted := normalized[i] * w.Value
			table.Rows[i][j] = weighted
			if j < nFin {
				financialSum[i] += weighted
			} else {
				repaymentSum[i] += weighted
			}
		}

		group := GroupRepayment
		if j < nFin {
			group = GroupFinancial
		}
		factors[j] = FactorResult{
			Name:       c.name,
			Group:      group,
			Value:      c.filled[last],
			Imputed:    c.imputed[last],
			Normalized: normalized[last],
			Weight:     w.Value,
			Weighted:   table.Rows[last][j],
		}
	}

	scoreCol := len(cols)
	for i := 0; i < rows; i++ {
		financial := 100 - financialSum[i]
		repayment := 100 - repaymentSum[i]
		table.Rows[i][scoreCol] = financial
		table.Rows[i][scoreCol+1] = repayment
		table.Rows[i][scoreCol+2] = s.weights.FinancialShare*financial + s.weights.RepaymentShare*repayment
	}

	subjectRow := table.Last()
	result := &ScoringResult{
		FinancialRiskScore: subjectRow[scoreCol],
		RepaymentRiskScore: subjectRow[scoreCol+1],
		FinalRiskScore:     subjectRow[scoreCol+2],
		LtCRatio:           rawLtC,
		PopulationSize:     pop.Len(),
		Factors:            factors,
		Table:              table,
	}

	s.logger.Debug("subject scored",
		"population", pop.Len(),
		"source", sourceName(pop),
		"final", result.FinalRiskScore,
	)
	return result, nil
}

// ScoreBatch scores each subject independently against the same population.
// No subject ever sees another subject's values.
func (s *Scorer) ScoreBatch(pop Population, subjects []Record) ([]*ScoringResult, error) {
	results := make([]*ScoringResult, 0, len(subjects))
	for i, subj := range subjects {
		r, err := s.Score(pop, subj)
		if err != nil {
			return nil, fmt.Errorf("subject %d: %w", i, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// assemble projects population + subject onto the weighted columns, the
// subject always being the last row. Loan and collateral values are never
// projected; only the derived LtC is. Non-finite cells become nulls.
func (s *Scorer) assemble(pop Population, subject Record, subjectLtC *float64) ([]*column, error) {
	names := s.weights.Columns()
	rows := pop.Len() + 1
	cols := make([]*column, len(names))

	for j, name := range names {
		c := &column{name: name, values: make([]*float64, rows)}
		present := false
		for i, rec := range pop.Records {
			var v *float64
			var ok bool
			if name == FieldLtC {
				v, ok = ltcOf(rec)
			} else {
				v, ok = rec[name]
			}
			if ok {
				present = true
			}
			c.values[i] = finite(v)
		}
		if !present {
			return nil, fmt.Errorf("%w: column %q missing from %s", ErrSchemaMismatch, name, sourceName(pop))
		}

		if name == FieldLtC {
			c.values[rows-1] = finite(subjectLtC)
		} else {
			c.values[rows-1] = finite(subject[name])
		}
		cols[j] = c
	}
	return cols, nil
}

// subjectLtC derives the loan-to-collateral ratio from the subject's loan
// terms, falling back to a supplied LtC when no loan terms are present.
func subjectLtC(subject Record) *float64 {
	if subject.Has(FieldLoanValue) || subject.Has(FieldCollateralValue) {
		return LoanToCollateral(subject[FieldLoanValue], subject[FieldCollateralValue])
	}
	return finite(subject[FieldLtC])
}

func sourceName(pop Population) string {
	if pop.Source == "" {
		return "reference population"
	}
	return pop.Source
}
