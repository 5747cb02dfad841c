package scoring

import (
	"fmt"
	"math"
)

// Weight attaches a signed multiplier to one normalized column.
type Weight struct {
	Field string  `json:"field" yaml:"field"`
	Value float64 `json:"value" yaml:"value"`
}

// WeightTable holds the financial and repayment weight sets and how the two
// sub-scores blend into the final score. The two sets must be disjoint.
type WeightTable struct {
	Financial      []Weight `json:"financial" yaml:"financial"`
	Repayment      []Weight `json:"repayment" yaml:"repayment"`
	FinancialShare float64  `json:"financial_share" yaml:"financial_share"`
	RepaymentShare float64  `json:"repayment_share" yaml:"repayment_share"`
}

// DefaultWeights returns the standard weight distribution.
func DefaultWeights() WeightTable {
	return WeightTable{
		Financial: []Weight{
			{Field: FieldNetProfitMargin, Value: 0.25},
			{Field: FieldReturnOnEquity, Value: 0.25},
			{Field: FieldReturnOnAssets, Value: 0.25},
			{Field: FieldCurrentRatio, Value: 0.25},
			{Field: FieldAssetTurnover, Value: 0.10},
			{Field: FieldDebtEquity, Value: 0.10},
			{Field: FieldDebtToAsset, Value: -0.20},
		},
		Repayment: []Weight{
			{Field: FieldInterestCoverage, Value: 0.20},
			{Field: FieldCreditScore, Value: 0.65},
			{Field: FieldLtC, Value: 0.15},
		},
		FinancialShare: 0.3,
		RepaymentShare: 0.7,
	}
}

// Columns returns every weighted column, financial first, in table order.
func (w WeightTable) Columns() []string {
	cols := make([]string, 0, len(w.Financial)+len(w.Repayment))
	for _, x := range w.Financial {
		cols = append(cols, x.Field)
	}
	for _, x := range w.Repayment {
		cols = append(cols, x.Field)
	}
	return cols
}

// Validate checks that both sets are present and disjoint and that the
// blend shares sum to 1.0.
func (w WeightTable) Validate() error {
	if len(w.Financial) == 0 {
		return fmt.Errorf("financial weights are empty")
	}
	if len(w.Repayment) == 0 {
		return fmt.Errorf("repayment weights are empty")
	}
	seen := make(map[string]string)
	check := func(set string, ws []Weight) error {
		for _, x := range ws {
			if x.Field == "" {
				return fmt.Errorf("%s weight with empty field", set)
			}
			if math.IsNaN(x.Value) || math.IsInf(x.Value, 0) {
				return fmt.Errorf("%s weight for %q is not finite", set, x.Field)
			}
			if prev, ok := seen[x.Field]; ok {
				if prev == set {
					return fmt.Errorf("duplicate %s weight for %q", set, x.Field)
				}
				return fmt.Errorf("field %q weighted in both %s and %s", x.Field, prev, set)
			}
			seen[x.Field] = set
		}
		return nil
	}
	if err := check("financial", w.Financial); err != nil {
		return err
	}
	if err := check("repayment", w.Repayment); err != nil {
		return err
	}
	if w.FinancialShare < 0 || w.RepaymentShare < 0 {
		return fmt.Errorf("negative blend share: financial=%f repayment=%f", w.FinancialShare, w.RepaymentShare)
	}
	if sum := w.FinancialShare + w.RepaymentShare; math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("blend shares sum to %.4f, must sum to 1.0", sum)
	}
	return nil
}

// clone copies the slices so a scorer never observes caller edits.
func (w WeightTable) clone() WeightTable {
	out := w
	out.Financial = append([]Weight(nil), w.Financial...)
	out.Repayment = append([]Weight(nil), w.Repayment...)
	return out
}
