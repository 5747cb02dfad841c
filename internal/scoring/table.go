package scoring

import (
	"math"
	"sort"
)

// Score column names appended to the transformed table.
const (
	ColumnFinancialScore = "Financial Risk Score"
	ColumnRepaymentScore = "Repayment Risk Score"
	ColumnFinalScore     = "Final Risk Score"
)

// Table is the fully transformed working table: one row per population
// record followed by the subject, one column per weighted field (holding
// the weighted value) followed by the three score columns.
type Table struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// Last returns the final row, which is always the subject.
func (t *Table) Last() []float64 {
	if t == nil || len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[len(t.Rows)-1]
}

// column is one field of the working table during transformation.
type column struct {
	name    string
	values  []*float64
	filled  []float64
	imputed []bool
}

// impute replaces nulls with the median of the column's non-null values.
// A column with no observed values is filled with zero.
func (c *column) impute() {
	observed := make([]float64, 0, len(c.values))
	for _, v := range c.values {
		if v != nil {
			observed = append(observed, *v)
		}
	}
	fill := median(observed)

	c.filled = make([]float64, len(c.values))
	c.imputed = make([]bool, len(c.values))
	for i, v := range c.values {
		if v == nil {
			c.filled[i] = fill
			c.imputed[i] = true
			continue
		}
		c.filled[i] = *v
	}
}

// normalize rescales the filled values onto [1, 101]. A zero-range column
// maps every value to 1.
func (c *column) normalize() []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range c.filled {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo

	out := make([]float64, len(c.filled))
	for i, v := range c.filled {
		scaled := 0.0
		switch {
		case hi == lo:
		case math.IsInf(span, 1):
			// The range of two finite values can overflow; halves cannot.
			scaled = (v/2 - lo/2) / (hi/2 - lo/2)
		default:
			scaled = (v - lo) / span
		}
		out[i] = 1 + 100*math.Min(math.Max(scaled, 0), 1)
	}
	return out
}

// finite drops infinite and NaN values, which are treated as missing.
func finite(v *float64) *float64 {
	if v == nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
		return nil
	}
	return Float(*v)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
