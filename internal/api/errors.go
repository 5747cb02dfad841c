package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/RiskScore/internal/evaluator"
	"github.com/MikeSquared-Agency/RiskScore/internal/ratios"
	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
	"github.com/MikeSquared-Agency/RiskScore/internal/ticker"
)

// StatusFor maps an evaluation error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, evaluator.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, scoring.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, scoring.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ratios.ErrCompanyNotFound), errors.Is(err, ticker.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ratios.ErrSourceUnavailable), errors.Is(err, ticker.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), map[string]string{
		"error": err.Error(),
		"kind":  evaluator.Outcome(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
