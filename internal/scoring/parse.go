package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var nullTokens = map[string]bool{
	"":     true,
	"-":    true,
	"--":   true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

// ParseValue parses a spreadsheet or scraped cell into a nullable number.
// Thousands separators, a trailing percent sign and a trailing "x"
// multiple suffix are accepted; null tokens such as "-" or "N/A" yield nil.
// Values beyond the float64 range are an error.
func ParseValue(s string) (*float64, error) {
	v := strings.TrimSpace(s)
	if nullTokens[strings.ToLower(v)] {
		return nil, nil
	}
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimSuffix(v, "%")
	v = strings.TrimSuffix(strings.TrimSuffix(v, "x"), "X")
	v = strings.TrimSpace(v)

	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("parse value %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("parse value %q: out of float64 range", s)
	}
	return Float(f), nil
}
