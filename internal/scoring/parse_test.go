package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"12.5", Float(12.5)},
		{" 18.2% ", Float(18.2)},
		{"1,234.5", Float(1234.5)},
		{"3.4x", Float(3.4)},
		{"(2.5)", Float(-2.5)},
		{"-0.75", Float(-0.75)},
		{"", nil},
		{"-", nil},
		{"N/A", nil},
		{"NaN", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseValue(tt.in)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}

	_, err := ParseValue("twelve")
	assert.Error(t, err)
}

func TestParseValueRejectsOverflow(t *testing.T) {
	for _, in := range []string{"1e400", "-1e400", "(1e999)"} {
		got, err := ParseValue(in)
		assert.ErrorContains(t, err, "out of float64 range", in)
		assert.Nil(t, got, in)
	}

	got, err := ParseValue("1e308")
	require.NoError(t, err)
	assert.Equal(t, 1e308, *got)
}

func TestWeightValidation(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	overlap := DefaultWeights()
	overlap.Repayment = append(overlap.Repayment, Weight{Field: FieldCurrentRatio, Value: 0.1})
	assert.ErrorContains(t, overlap.Validate(), "both")

	dup := DefaultWeights()
	dup.Financial = append(dup.Financial, Weight{Field: FieldReturnOnAssets, Value: 0.1})
	assert.ErrorContains(t, dup.Validate(), "duplicate")

	shares := DefaultWeights()
	shares.FinancialShare = 0.5
	assert.ErrorContains(t, shares.Validate(), "sum")

	empty := DefaultWeights()
	empty.Repayment = nil
	assert.Error(t, empty.Validate())

	_, err := NewScorer(overlap, nil)
	assert.Error(t, err)
}

func TestWeightColumnsOrder(t *testing.T) {
	cols := DefaultWeights().Columns()
	require.Len(t, cols, 10)
	assert.Equal(t, FieldNetProfitMargin, cols[0])
	assert.Equal(t, FieldDebtToAsset, cols[6])
	assert.Equal(t, FieldLtC, cols[9])
}

func TestScorerWeightsAreCopied(t *testing.T) {
	w := DefaultWeights()
	s, err := NewScorer(w, nil)
	require.NoError(t, err)
	w.Financial[0].Value = 99
	assert.Equal(t, 0.25, s.Weights().Financial[0].Value)
}

func TestNewSubject(t *testing.T) {
	ratios := Record{FieldCurrentRatio: Float(1.5), FieldDebtEquity: nil}
	subj := NewSubject(ratios, Float(300), Float(600), Float(710))

	v, ok := subj.Value(FieldLtC)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
	assert.True(t, subj.Has(FieldDebtEquity))

	*subj[FieldCurrentRatio] = 9
	assert.Equal(t, 1.5, *ratios[FieldCurrentRatio])
}
