package scoring

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// FormatValue renders v with two decimals, rounding half away from zero,
// or "n/a" for a null or non-finite value.
func FormatValue(v *float64) string {
	if v == nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
		return "n/a"
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

// String renders the result for human display.
func (r *ScoringResult) String() string {
	return fmt.Sprintf("Final Risk Score: %s, Financial Risk Score: %s, Repayment Risk Score: %s, Loan-to-Collateral Ratio: %s",
		FormatValue(&r.FinalRiskScore),
		FormatValue(&r.FinancialRiskScore),
		FormatValue(&r.RepaymentRiskScore),
		FormatValue(r.LtCRatio),
	)
}
