package scoring

// Field names are contract strings shared with every upstream source.
// They are case- and punctuation-sensitive.
const (
	FieldNetProfitMargin  = "Net Profit Margin %"
	FieldReturnOnEquity   = "Return on Equity %"
	FieldReturnOnAssets   = "Return on Assets %"
	FieldCurrentRatio     = "Current Ratio"
	FieldAssetTurnover    = "Asset Turnover Ratio"
	FieldDebtEquity       = "Debt Equity Ratio"
	FieldDebtToAsset      = "Debt To Asset Ratio"
	FieldInterestCoverage = "Interest Coverage Ratio"
	FieldCreditScore      = "Credit Score"
	FieldLoanValue        = "Loan Value"
	FieldCollateralValue  = "Collateral Value"
	FieldLtC              = "LtC"
)

// Credit scores outside this range are a caller precondition violation.
// The scorer itself does not reject them.
const (
	MinCreditScore = 300.0
	MaxCreditScore = 900.0
)

// RatioFields lists the company ratios a fetcher is expected to supply.
var RatioFields = []string{
	FieldNetProfitMargin,
	FieldReturnOnEquity,
	FieldReturnOnAssets,
	FieldCurrentRatio,
	FieldAssetTurnover,
	FieldDebtEquity,
	FieldDebtToAsset,
	FieldInterestCoverage,
}

// KnownFields is every field of the record contract, in display order.
var KnownFields = append(append([]string{}, RatioFields...),
	FieldCreditScore,
	FieldLoanValue,
	FieldCollateralValue,
	FieldLtC,
)

// IsKnownField reports whether name is part of the record contract.
func IsKnownField(name string) bool {
	for _, f := range KnownFields {
		if f == name {
			return true
		}
	}
	return false
}
