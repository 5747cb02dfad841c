package api

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/RiskScore/internal/evaluator"
	"github.com/MikeSquared-Agency/RiskScore/internal/population"
	"github.com/MikeSquared-Agency/RiskScore/internal/ratios"
	"github.com/MikeSquared-Agency/RiskScore/internal/store"
)

// maxPopulationBytes caps an uploaded population.
const maxPopulationBytes = 32 << 20

type PopulationHandler struct {
	evaluator  *evaluator.Evaluator
	store      store.Store
	cache      evaluator.Invalidator
	instanceID string
	logger     *slog.Logger
}

func NewPopulationHandler(ev *evaluator.Evaluator, s store.Store, cache evaluator.Invalidator, instanceID string, logger *slog.Logger) *PopulationHandler {
	return &PopulationHandler{evaluator: ev, store: s, cache: cache, instanceID: instanceID, logger: logger}
}

// Replace swaps the stored reference population. The body is either a CSV
// export (text/csv) or a JSON array of rows.
func (h *PopulationHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "population upload requires a database"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPopulationBytes)

	var rows []store.PopulationRow
	var err error
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		rows, err = rowsFromCSV(r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&rows)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid population: " + err.Error()})
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "population is empty"})
		return
	}
	for _, row := range rows {
		if err := evaluator.ValidateFields(row.Fields); err != nil {
			writeError(w, err)
			return
		}
	}

	if err := h.store.ReplacePopulation(r.Context(), rows); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Info("reference population replaced", "records", len(rows))

	n, err := h.evaluator.ReloadPopulation(r.Context(), h.cache, h.instanceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"records": n})
}

func (h *PopulationHandler) Reload(w http.ResponseWriter, r *http.Request) {
	n, err := h.evaluator.ReloadPopulation(r.Context(), h.cache, h.instanceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"records": n})
}

func rowsFromCSV(r *http.Request) ([]store.PopulationRow, error) {
	sheet, err := population.ReadSheet(r.Body)
	if err != nil {
		return nil, err
	}
	records, err := sheet.Records()
	if err != nil {
		return nil, err
	}
	company := sheet.Column(ratios.CompanyColumn)
	rows := make([]store.PopulationRow, len(records))
	for i, rec := range records {
		rows[i].Fields = rec
		if company >= 0 && company < len(sheet.Rows[i]) {
			rows[i].Company = strings.TrimSpace(sheet.Rows[i][company])
		}
	}
	return rows, nil
}
