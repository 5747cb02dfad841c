package scoring

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), discardLogger())
	require.NoError(t, err)
	return s
}

// flatRecord has every ratio at 1 and a loan/collateral pair giving LtC 0.5.
func flatRecord(credit float64) Record {
	r := Record{}
	for _, f := range RatioFields {
		r.Set(f, 1)
	}
	r.Set(FieldCreditScore, credit)
	r.Set(FieldLoanValue, 100)
	r.Set(FieldCollateralValue, 200)
	return r
}

func flatRatios() Record {
	r := Record{}
	for _, f := range RatioFields {
		r.Set(f, 1)
	}
	return r
}

func factor(t *testing.T, res *ScoringResult, name string) FactorResult {
	t.Helper()
	for _, f := range res.Factors {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %q not found", name)
	return FactorResult{}
}

func randomPopulation(seed int64, n int) Population {
	rng := rand.New(rand.NewSource(seed))
	pop := Population{Source: "random"}
	for i := 0; i < n; i++ {
		r := Record{}
		for _, f := range RatioFields {
			if rng.Intn(10) == 0 {
				r.SetNull(f)
				continue
			}
			r.Set(f, rng.NormFloat64()*20)
		}
		r.Set(FieldCreditScore, 300+rng.Float64()*600)
		r.Set(FieldLoanValue, 1000+rng.Float64()*1e6)
		r.Set(FieldCollateralValue, rng.Float64()*2e6)
		pop.Records = append(pop.Records, r)
	}
	return pop
}

func TestCreditScoreScenario(t *testing.T) {
	s := newTestScorer(t)
	pop := Population{Records: []Record{flatRecord(700), flatRecord(750), flatRecord(800)}}

	subject := NewSubject(flatRatios(), Float(100), Float(200), Float(750))
	res, err := s.Score(pop, subject)
	require.NoError(t, err)

	credit := factor(t, res, FieldCreditScore)
	assert.Equal(t, 51.0, credit.Normalized)
	assert.InDelta(t, 51*0.65, credit.Weighted, 1e-9)

	// Every other column is constant so normalizes to 1.
	for _, f := range res.Factors {
		if f.Name == FieldCreditScore {
			continue
		}
		assert.Equal(t, 1.0, f.Normalized, f.Name)
	}

	// Financial weights sum to 1.0, so 100 - 1.
	assert.InDelta(t, 99.0, res.FinancialRiskScore, 1e-9)
	assert.InDelta(t, 100-(0.20+51*0.65+0.15), res.RepaymentRiskScore, 1e-9)
	assert.InDelta(t, 76.25, res.FinalRiskScore, 1e-9)
	require.NotNil(t, res.LtCRatio)
	assert.Equal(t, 0.5, *res.LtCRatio)
	assert.Equal(t, 3, res.PopulationSize)
}

func TestFinalIsBlendOfSubScores(t *testing.T) {
	s := newTestScorer(t)
	pop := randomPopulation(7, 50)

	for i := 0; i < 10; i++ {
		subject := NewSubject(pop.Records[i].Clone(), Float(float64(1000*(i+1))), Float(5000), Float(600))
		res, err := s.Score(pop, subject)
		require.NoError(t, err)
		assert.Equal(t, 0.3*res.FinancialRiskScore+0.7*res.RepaymentRiskScore, res.FinalRiskScore)
	}
}

func TestMedianImputation(t *testing.T) {
	s := newTestScorer(t)

	t.Run("population null uses shared median", func(t *testing.T) {
		a, b, c := flatRecord(700), flatRecord(750), flatRecord(800)
		a.Set(FieldNetProfitMargin, 10)
		b.Set(FieldNetProfitMargin, 20)
		c.SetNull(FieldNetProfitMargin)
		pop := Population{Records: []Record{a, b, c}}

		ratios := flatRatios()
		ratios.Set(FieldNetProfitMargin, 40)
		res, err := s.Score(pop, NewSubject(ratios, Float(100), Float(200), Float(750)))
		require.NoError(t, err)

		// [10, 20, null, 40] -> null becomes median(10, 20, 40) = 20.
		rows := res.Table.Rows
		assert.Equal(t, rows[1][0], rows[2][0])
		assert.InDelta(t, (1+100*(10.0/30.0))*0.25, rows[2][0], 1e-9)
	})

	t.Run("subject null is imputed after append", func(t *testing.T) {
		a, b, c := flatRecord(700), flatRecord(750), flatRecord(800)
		a.Set(FieldNetProfitMargin, 10)
		b.Set(FieldNetProfitMargin, 20)
		c.Set(FieldNetProfitMargin, 40)
		pop := Population{Records: []Record{a, b, c}}

		ratios := flatRatios()
		ratios.SetNull(FieldNetProfitMargin)
		res, err := s.Score(pop, NewSubject(ratios, Float(100), Float(200), Float(750)))
		require.NoError(t, err)

		npm := factor(t, res, FieldNetProfitMargin)
		assert.True(t, npm.Imputed)
		assert.Equal(t, 20.0, npm.Value)
	})

	t.Run("absent subject field is treated as null", func(t *testing.T) {
		pop := Population{Records: []Record{flatRecord(700), flatRecord(800)}}
		ratios := flatRatios()
		delete(ratios, FieldInterestCoverage)
		res, err := s.Score(pop, NewSubject(ratios, Float(100), Float(200), Float(750)))
		require.NoError(t, err)
		assert.True(t, factor(t, res, FieldInterestCoverage).Imputed)
	})
}

func TestZeroCollateral(t *testing.T) {
	s := newTestScorer(t)
	pop := Population{Records: []Record{flatRecord(700), flatRecord(800)}}

	subject := NewSubject(flatRatios(), Float(100000), Float(0), Float(750))
	res, err := s.Score(pop, subject)
	require.NoError(t, err)
	assert.Nil(t, res.LtCRatio)
	assert.True(t, factor(t, res, FieldLtC).Imputed)
	assert.Contains(t, res.String(), "Loan-to-Collateral Ratio: n/a")
}

func TestLoanToCollateral(t *testing.T) {
	tests := []struct {
		name       string
		loan       *float64
		collateral *float64
		want       *float64
	}{
		{"ratio", Float(100), Float(400), Float(0.25)},
		{"zero collateral", Float(100), Float(0), nil},
		{"missing collateral", Float(100), nil, nil},
		{"missing loan", nil, Float(100), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LoanToCollateral(tt.loan, tt.collateral)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestNormalizedRange(t *testing.T) {
	s := newTestScorer(t)
	pop := randomPopulation(42, 100)

	subject := NewSubject(pop.Records[3].Clone(), Float(250000), Float(100000), Float(820))
	res, err := s.Score(pop, subject)
	require.NoError(t, err)
	for _, f := range res.Factors {
		assert.GreaterOrEqual(t, f.Normalized, 1.0, f.Name)
		assert.LessOrEqual(t, f.Normalized, 101.0, f.Name)
	}

	c := &column{values: []*float64{Float(3), nil, Float(-2), Float(8)}}
	c.impute()
	for _, v := range c.normalize() {
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 101.0)
	}
}

func TestConstantColumnMapsToOne(t *testing.T) {
	c := &column{values: []*float64{Float(5), Float(5), nil, Float(5)}}
	c.impute()
	assert.Equal(t, []float64{1, 1, 1, 1}, c.normalize())

	empty := &column{values: []*float64{nil, nil}}
	empty.impute()
	assert.Equal(t, []float64{0, 0}, empty.filled)
	assert.Equal(t, []float64{1, 1}, empty.normalize())
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 20.0, median([]float64{40, 10, 20}))
	assert.Equal(t, 15.0, median([]float64{10, 20}))
	assert.Equal(t, 0.0, median(nil))
}

func TestNoCrossContamination(t *testing.T) {
	s := newTestScorer(t)
	pop := randomPopulation(11, 40)

	a := NewSubject(pop.Records[0].Clone(), Float(5e5), Float(1e6), Float(710))
	b := NewSubject(pop.Records[1].Clone(), Float(9e6), Float(1e5), Float(420))

	a1, err := s.Score(pop, a)
	require.NoError(t, err)
	b1, err := s.Score(pop, b)
	require.NoError(t, err)

	b2, err := s.Score(pop, b)
	require.NoError(t, err)
	a2, err := s.Score(pop, a)
	require.NoError(t, err)

	assert.Equal(t, a1.FinalRiskScore, a2.FinalRiskScore)
	assert.Equal(t, b1.FinalRiskScore, b2.FinalRiskScore)
	assert.Equal(t, a1.Factors, a2.Factors)

	batch, err := s.ScoreBatch(pop, []Record{b, a})
	require.NoError(t, err)
	assert.Equal(t, b1.FinalRiskScore, batch[0].FinalRiskScore)
	assert.Equal(t, a1.FinalRiskScore, batch[1].FinalRiskScore)
}

func TestScoreDoesNotMutateInputs(t *testing.T) {
	s := newTestScorer(t)
	pop := randomPopulation(3, 20)
	before := make([]Record, len(pop.Records))
	for i, r := range pop.Records {
		before[i] = r.Clone()
	}
	ratios := flatRatios()
	ratios.SetNull(FieldCurrentRatio)
	subject := NewSubject(ratios, Float(100), Float(0), Float(700))
	subjectBefore := subject.Clone()

	_, err := s.Score(pop, subject)
	require.NoError(t, err)

	assert.Equal(t, before, pop.Records)
	assert.Equal(t, subjectBefore, subject)
	assert.Len(t, pop.Records, 20)
}

func TestSubjectIsLastRow(t *testing.T) {
	s := newTestScorer(t)
	pop := randomPopulation(5, 10)
	res, err := s.Score(pop, NewSubject(flatRatios(), Float(1), Float(2), Float(650)))
	require.NoError(t, err)

	require.Len(t, res.Table.Rows, 11)
	last := res.Table.Last()
	assert.Equal(t, res.FinalRiskScore, last[len(last)-1])
	assert.Equal(t, ColumnFinalScore, res.Table.Columns[len(res.Table.Columns)-1])
	assert.NotContains(t, res.Table.Columns, FieldLoanValue)
	assert.NotContains(t, res.Table.Columns, FieldCollateralValue)
}

func TestPopulationLtCDerivation(t *testing.T) {
	s := newTestScorer(t)

	t.Run("explicit LtC column is used", func(t *testing.T) {
		a := Record{FieldLtC: Float(0.2)}
		b := Record{FieldLtC: Float(0.6)}
		for _, r := range []Record{a, b} {
			for _, f := range RatioFields {
				r.Set(f, 1)
			}
			r.Set(FieldCreditScore, 700)
		}
		res, err := s.Score(Population{Records: []Record{a, b}}, NewSubject(flatRatios(), Float(40), Float(100), Float(700)))
		require.NoError(t, err)
		// subject 0.4 sits half way between 0.2 and 0.6.
		assert.InDelta(t, 51.0, factor(t, res, FieldLtC).Normalized, 1e-9)
	})

	t.Run("no loan terms and no LtC is a schema mismatch", func(t *testing.T) {
		r := Record{}
		for _, f := range RatioFields {
			r.Set(f, 1)
		}
		r.Set(FieldCreditScore, 700)
		_, err := s.Score(Population{Records: []Record{r}}, NewSubject(flatRatios(), Float(1), Float(1), Float(700)))
		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})
}

func TestScoreErrors(t *testing.T) {
	s := newTestScorer(t)

	t.Run("empty population", func(t *testing.T) {
		res, err := s.Score(Population{Source: "synthetic.csv"}, flatRecord(700))
		assert.ErrorIs(t, err, ErrDataUnavailable)
		assert.Contains(t, err.Error(), "synthetic.csv")
		assert.Nil(t, res)
	})

	t.Run("column absent from every record", func(t *testing.T) {
		a, b := flatRecord(700), flatRecord(800)
		delete(a, FieldInterestCoverage)
		delete(b, FieldInterestCoverage)
		res, err := s.Score(Population{Records: []Record{a, b}, Source: "synthetic.csv"}, flatRecord(750))
		assert.ErrorIs(t, err, ErrSchemaMismatch)
		assert.Contains(t, err.Error(), FieldInterestCoverage)
		assert.Nil(t, res)
	})

	t.Run("column null everywhere is tolerated", func(t *testing.T) {
		a, b := flatRecord(700), flatRecord(800)
		a.SetNull(FieldInterestCoverage)
		b.SetNull(FieldInterestCoverage)
		_, err := s.Score(Population{Records: []Record{a, b}}, flatRecord(750))
		assert.NoError(t, err)
	})
}

func TestScoreDeterministic(t *testing.T) {
	s := newTestScorer(t)
	pop := randomPopulation(9, 30)
	subject := NewSubject(pop.Records[2].Clone(), Float(10), Float(30), Float(800))

	first, err := s.Score(pop, subject)
	require.NoError(t, err)
	second, err := s.Score(pop, subject)
	require.NoError(t, err)
	assert.Equal(t, first.Table, second.Table)
}

func TestResultString(t *testing.T) {
	r := &ScoringResult{
		FinalRiskScore:     57.1234,
		FinancialRiskScore: 88.005,
		RepaymentRiskScore: 43.9,
		LtCRatio:           Float(0.6667),
	}
	assert.Equal(t,
		"Final Risk Score: 57.12, Financial Risk Score: 88.01, Repayment Risk Score: 43.90, Loan-to-Collateral Ratio: 0.67",
		r.String())

	r.LtCRatio = nil
	r.FinalRiskScore = math.NaN()
	r.RepaymentRiskScore = math.Inf(1)
	assert.Equal(t,
		"Final Risk Score: n/a, Financial Risk Score: 88.01, Repayment Risk Score: n/a, Loan-to-Collateral Ratio: n/a",
		r.String())
}

func TestScoreExtremeFiniteRange(t *testing.T) {
	s := newTestScorer(t)
	low := flatRecord(700)
	low.Set(FieldCurrentRatio, -1e308)
	pop := Population{Records: []Record{low, flatRecord(750)}}

	subject := NewSubject(flatRatios(), Float(100), Float(200), Float(750))
	subject.Set(FieldCurrentRatio, 1e308)

	res, err := s.Score(pop, subject)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(res.FinalRiskScore))
	assert.False(t, math.IsNaN(res.FinancialRiskScore))
	assert.Equal(t, 101.0, factor(t, res, FieldCurrentRatio).Normalized)
	lowCell := res.Table.Rows[0][indexOf(t, res.Table.Columns, FieldCurrentRatio)]
	assert.InDelta(t, 1.0, lowCell/weightOf(t, s, FieldCurrentRatio), 1e-9)
	for _, row := range res.Table.Rows {
		for _, v := range row {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		}
	}
	assert.NotPanics(t, func() { _ = res.String() })
}

func TestScoreTreatsNonFiniteCellsAsMissing(t *testing.T) {
	s := newTestScorer(t)
	a, b, c := flatRecord(700), flatRecord(750), flatRecord(800)
	a.Set(FieldCurrentRatio, 1)
	b.Set(FieldCurrentRatio, 3)
	c.Set(FieldCurrentRatio, math.Inf(-1))
	pop := Population{Records: []Record{a, b, c}}

	subject := NewSubject(flatRatios(), Float(100), Float(200), Float(750))
	subject.Set(FieldCurrentRatio, math.Inf(1))

	res, err := s.Score(pop, subject)
	require.NoError(t, err)
	f := factor(t, res, FieldCurrentRatio)
	assert.True(t, f.Imputed)
	assert.Equal(t, 2.0, f.Value)
	assert.Equal(t, 51.0, f.Normalized)
	assert.NotPanics(t, func() { _ = res.String() })
}

func TestLoanToCollateralOverflowIsNull(t *testing.T) {
	assert.Nil(t, LoanToCollateral(Float(1e308), Float(1e-10)))
	assert.Nil(t, NewSubject(nil, Float(1e308), Float(1e-10), Float(700))[FieldLtC])
	assert.Equal(t, 0.5, *LoanToCollateral(Float(100), Float(200)))
}

func indexOf(t *testing.T, cols []string, name string) int {
	t.Helper()
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %q not found", name)
	return -1
}

func weightOf(t *testing.T, s *Scorer, name string) float64 {
	t.Helper()
	w := s.Weights()
	for _, x := range append(w.Financial, w.Repayment...) {
		if x.Field == name {
			return x.Value
		}
	}
	t.Fatalf("weight %q not found", name)
	return 0
}
