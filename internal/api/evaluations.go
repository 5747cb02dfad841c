package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/RiskScore/internal/evaluator"
	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
	"github.com/MikeSquared-Agency/RiskScore/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type EvaluationsHandler struct {
	evaluator *evaluator.Evaluator
	store     store.Store
	logger    *slog.Logger
}

func NewEvaluationsHandler(ev *evaluator.Evaluator, s store.Store, logger *slog.Logger) *EvaluationsHandler {
	return &EvaluationsHandler{evaluator: ev, store: s, logger: logger}
}

// EvaluationRequest carries money amounts as decimals so that string and
// numeric JSON forms are both accepted without float parsing surprises.
type EvaluationRequest struct {
	CompanyName     string          `json:"company_name"`
	Ticker          string          `json:"ticker,omitempty"`
	Ratios          scoring.Record  `json:"ratios,omitempty"`
	LoanValue       decimal.Decimal `json:"loan_value"`
	CollateralValue decimal.Decimal `json:"collateral_value"`
	CreditScore     float64         `json:"credit_score"`
}

type EvaluationResponse struct {
	*store.Evaluation
	Display string `json:"display"`
}

func newEvaluationResponse(e *store.Evaluation) EvaluationResponse {
	return EvaluationResponse{Evaluation: e, Display: e.Result().String()}
}

func (h *EvaluationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	eval, err := h.evaluator.Evaluate(r.Context(), evaluator.Request{
		CompanyName:     req.CompanyName,
		Ticker:          req.Ticker,
		Ratios:          req.Ratios,
		LoanValue:       req.LoanValue.InexactFloat64(),
		CollateralValue: req.CollateralValue.InexactFloat64(),
		CreditScore:     req.CreditScore,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEvaluationResponse(eval))
}

// ScoreRequest is an explicit subject. Null or omitted values are imputed
// from the population. Amounts accept the same forms as EvaluationRequest.
type ScoreRequest struct {
	Ratios          scoring.Record      `json:"ratios"`
	LoanValue       decimal.NullDecimal `json:"loan_value"`
	CollateralValue decimal.NullDecimal `json:"collateral_value"`
	CreditScore     *float64            `json:"credit_score"`
}

func nullableFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	return scoring.Float(d.Decimal.InexactFloat64())
}

type ScoreResponse struct {
	*scoring.ScoringResult
	Display string `json:"display"`
}

func (h *EvaluationsHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	subject := scoring.NewSubject(req.Ratios, nullableFloat(req.LoanValue), nullableFloat(req.CollateralValue), req.CreditScore)
	result, err := h.evaluator.Score(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{ScoringResult: result, Display: result.String()})
}

func (h *EvaluationsHandler) Weights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.evaluator.Weights())
}

func (h *EvaluationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "evaluation history requires a database"})
		return
	}
	q := r.URL.Query()
	filter := store.EvaluationFilter{
		Company: q.Get("company"),
		Ticker:  q.Get("ticker"),
		Limit:   defaultListLimit,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		filter.Offset = n
	}

	evals, err := h.store.ListEvaluations(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]EvaluationResponse, 0, len(evals))
	for _, e := range evals {
		out = append(out, newEvaluationResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EvaluationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "evaluation history requires a database"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid evaluation id"})
		return
	}

	eval, err := h.store.GetEvaluation(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if eval == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "evaluation not found"})
		return
	}
	writeJSON(w, http.StatusOK, newEvaluationResponse(eval))
}

func (h *EvaluationsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "audit tables require a database"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid evaluation id"})
		return
	}

	table, err := h.store.GetAuditTable(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if table == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "audit table not found"})
		return
	}
	writeJSON(w, http.StatusOK, table)
}
