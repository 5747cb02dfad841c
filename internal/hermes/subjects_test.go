package hermes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, "risk.evaluation.abc.completed", SubjectEvaluationCompleted("abc"))
	assert.Equal(t, "risk.evaluation.abc.failed", SubjectEvaluationFailed("abc"))
}

func TestStreamRetainsEvaluationEvents(t *testing.T) {
	assert.True(t, Retained(SubjectEvaluationCompleted("x")))
	assert.True(t, Retained(SubjectEvaluationFailed("x")))
	assert.True(t, Retained(SubjectPopulationReloaded))
	assert.False(t, Retained(SubjectPopulationInvalidate))
	assert.False(t, Retained("risk.evaluation"))
}

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern, subject string
		want             bool
	}{
		{"a.b", "a.b", true},
		{"a.b", "a.b.c", false},
		{"a.*", "a.b", true},
		{"a.*", "a.b.c", false},
		{"a.>", "a.b.c", true},
		{"a.>", "a", false},
		{"a.*.c", "a.x.c", true},
		{"a.*.c", "a.x.d", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchSubject(tt.pattern, tt.subject), tt.pattern+" "+tt.subject)
	}
}
