package hermes

import "strings"

const (
	SubjectPopulationReloaded   = "risk.population.reloaded"
	SubjectPopulationInvalidate = "risk.population.invalidate"

	StreamName   = "RISK_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// StreamSubjects are retained by the RISK_EVENTS stream. Invalidation is
// a live broadcast and is not retained.
var StreamSubjects = []string{"risk.evaluation.>", SubjectPopulationReloaded}

func SubjectEvaluationCompleted(evaluationID string) string {
	return "risk.evaluation." + evaluationID + ".completed"
}

func SubjectEvaluationFailed(evaluationID string) string {
	return "risk.evaluation." + evaluationID + ".failed"
}

// Retained reports whether subject is captured by the stream.
func Retained(subject string) bool {
	for _, pattern := range StreamSubjects {
		if matchSubject(pattern, subject) {
			return true
		}
	}
	return false
}

// matchSubject applies NATS wildcard rules: "*" matches one token and a
// trailing ">" matches one or more.
func matchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return i == len(pt)-1 && len(st) > i
		}
		if i >= len(st) || (p != "*" && p != st[i]) {
			return false
		}
	}
	return len(pt) == len(st)
}
