// Package ratios fetches a subject company's financial ratios from one of
// several upstream sources and maps them onto the scoring field names.
package ratios

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

var (
	// ErrCompanyNotFound means the source has no entry for the company.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrSourceUnavailable means the upstream source could not be read.
	ErrSourceUnavailable = errors.New("ratio source unavailable")
)

// Company identifies the subject to fetch ratios for. Ticker may be empty
// for sources keyed by name.
type Company struct {
	Name   string
	Ticker string
}

// Fetcher returns the subject's ratios keyed by scoring field name. Ratios
// the source does not publish are absent or null.
type Fetcher interface {
	FetchRatios(ctx context.Context, c Company) (scoring.Record, error)
	Name() string
}

var labelAliases = map[string]string{
	"net profit margin":       scoring.FieldNetProfitMargin,
	"net profit margin %":     scoring.FieldNetProfitMargin,
	"net margin":              scoring.FieldNetProfitMargin,
	"return on equity":        scoring.FieldReturnOnEquity,
	"return on equity %":      scoring.FieldReturnOnEquity,
	"roe":                     scoring.FieldReturnOnEquity,
	"return on assets":        scoring.FieldReturnOnAssets,
	"return on assets %":      scoring.FieldReturnOnAssets,
	"roa":                     scoring.FieldReturnOnAssets,
	"current ratio":           scoring.FieldCurrentRatio,
	"asset turnover":          scoring.FieldAssetTurnover,
	"asset turnover ratio":    scoring.FieldAssetTurnover,
	"debt equity ratio":       scoring.FieldDebtEquity,
	"debt to equity":          scoring.FieldDebtEquity,
	"debt/equity":             scoring.FieldDebtEquity,
	"debt / equity":           scoring.FieldDebtEquity,
	"total debt to equity":    scoring.FieldDebtEquity,
	"debt to asset ratio":     scoring.FieldDebtToAsset,
	"debt to assets":          scoring.FieldDebtToAsset,
	"total debt to assets":    scoring.FieldDebtToAsset,
	"interest coverage ratio": scoring.FieldInterestCoverage,
	"interest coverage":       scoring.FieldInterestCoverage,
	"times interest earned":   scoring.FieldInterestCoverage,
}

var (
	trailingPeriod = regexp.MustCompile(`\s*\((ttm|mrq|5ya|annual)\)$`)
	spaces         = regexp.MustCompile(`\s+`)
)

// NormalizeLabel maps an upstream ratio label onto a scoring field name.
// The second return is false when the label is not a scored ratio.
func NormalizeLabel(label string) (string, bool) {
	if scoring.IsKnownField(label) {
		return label, true
	}
	l := strings.ToLower(strings.TrimSpace(label))
	l = spaces.ReplaceAllString(l, " ")
	l = trailingPeriod.ReplaceAllString(l, "")
	field, ok := labelAliases[l]
	return field, ok
}

// IsRatioField reports whether field is one a fetcher supplies. Loan terms
// and the credit score come from the request, never from a ratio source.
func IsRatioField(field string) bool {
	for _, f := range scoring.RatioFields {
		if f == field {
			return true
		}
	}
	return false
}

// collector keeps the first value seen for each ratio field.
type collector struct {
	rec scoring.Record
}

func newCollector() *collector {
	return &collector{rec: scoring.Record{}}
}

// add records a labelled cell. Unknown labels are ignored. When strict is
// false an unparseable cell is kept as null instead of failing.
func (c *collector) add(label, raw string, strict bool) error {
	field, ok := NormalizeLabel(label)
	if !ok || !IsRatioField(field) || c.rec.Has(field) {
		return nil
	}
	v, err := scoring.ParseValue(raw)
	if err != nil {
		if strict {
			return fmt.Errorf("%s: %w", label, err)
		}
		c.rec.SetNull(field)
		return nil
	}
	c.rec[field] = v
	return nil
}

// Slug renders a company name as a lower-case hyphenated URL segment.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
