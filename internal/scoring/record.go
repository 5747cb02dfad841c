package scoring

// Record maps field names to nullable values. A key present with a nil
// value is a missing cell; an absent key is structurally missing.
type Record map[string]*float64

// Value returns the field value and whether it is non-null.
func (r Record) Value(field string) (float64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Has reports whether the field is structurally present, null or not.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Set stores a non-null value.
func (r Record) Set(field string, v float64) {
	r[field] = Float(v)
}

// SetNull marks the field present but missing.
func (r Record) SetNull(field string) {
	r[field] = nil
}

// Clone returns a deep copy so callers can never see later edits.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if v == nil {
			out[k] = nil
			continue
		}
		out[k] = Float(*v)
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// LoanToCollateral divides loan by collateral. The result is nil when
// collateral is missing or zero, when the loan is missing, or when the
// ratio overflows.
func LoanToCollateral(loan, collateral *float64) *float64 {
	if loan == nil || collateral == nil || *collateral == 0 {
		return nil
	}
	return finite(Float(*loan / *collateral))
}

// NewSubject builds the record for the company being scored from its
// ratios and loan terms. LtC is derived here; ratios are copied, not shared.
func NewSubject(ratios Record, loanValue, collateralValue, creditScore *float64) Record {
	subject := Record{}
	for k, v := range ratios {
		if v == nil {
			subject[k] = nil
			continue
		}
		subject[k] = Float(*v)
	}
	subject[FieldLoanValue] = copyFloat(loanValue)
	subject[FieldCollateralValue] = copyFloat(collateralValue)
	subject[FieldCreditScore] = copyFloat(creditScore)
	subject[FieldLtC] = LoanToCollateral(loanValue, collateralValue)
	return subject
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

// ltcOf returns the row's LtC, deriving it from loan and collateral when
// the row has no LtC column. The second result is false when neither is
// structurally available.
func ltcOf(r Record) (*float64, bool) {
	if v, ok := r[FieldLtC]; ok {
		return v, true
	}
	if r.Has(FieldLoanValue) || r.Has(FieldCollateralValue) {
		return LoanToCollateral(r[FieldLoanValue], r[FieldCollateralValue]), true
	}
	return nil, false
}

// Population is the reference set of comparable companies. It is treated
// as read-only by everything in this package.
type Population struct {
	Records []Record
	Source  string
}

// Len returns the number of reference rows.
func (p Population) Len() int { return len(p.Records) }
