// Package httpapi exposes the forensics shadow pipeline's Service as
// JSON endpoints over gorilla/mux.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/forensics-shadow/internal/forensics/api"
	"github.com/sawpanic/forensics-shadow/internal/forensics/domain"
)

// NewRouter builds the HTTP surface for the forensics shadow pipeline.
func NewRouter(svc *api.Service) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/forensics/v1/runs", handleRunShadow(svc)).Methods(http.MethodPost)
	r.HandleFunc("/forensics/v1/runs", handleListRuns(svc)).Methods(http.MethodGet)
	r.HandleFunc("/forensics/v1/runs/{run_id}", handleGetRun(svc)).Methods(http.MethodGet)
	r.HandleFunc("/forensics/v1/runs/{run_id}/trace", handleGetTrace(svc)).Methods(http.MethodGet)
	r.HandleFunc("/forensics/v1/runs/{run_id}/fused-signals", handleListFused(svc)).Methods(http.MethodGet)
	r.HandleFunc("/forensics/v1/runs/{run_id}/anomalies", handleListAnomalies(svc)).Methods(http.MethodGet)
	r.HandleFunc("/forensics/v1/policy", handleGetPolicy(svc)).Methods(http.MethodGet)
	r.HandleFunc("/forensics/v1/topology-summary", handleTopologySummary(svc)).Methods(http.MethodGet)
	r.HandleFunc("/forensics/v1/feedback", handleFeedback(svc)).Methods(http.MethodPost)
	r.HandleFunc("/forensics/v1/feedback", handleListFeedback(svc)).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode http response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrEmptyBatch):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// signalPayload is the weakly-typed wire shape of one incoming signal;
// pointer fields distinguish absent from zero so the Ingestor can
// reject or default them per its own rules.
type signalPayload struct {
	SourceID    string   `json:"source_id"`
	Region      string   `json:"region"`
	Domain      string   `json:"domain"`
	SignalType  string   `json:"signal_type"`
	Value       *float64 `json:"value"`
	Confidence  *float64 `json:"confidence"`
	ObservedAt  int64    `json:"observed_at"`
	EvidenceIDs []string `json:"evidence_ids"`
}

func (sp signalPayload) toRawSignal() domain.RawSignal {
	raw := domain.RawSignal{
		SourceID:    sp.SourceID,
		Region:      sp.Region,
		Domain:      sp.Domain,
		SignalType:  sp.SignalType,
		ObservedAt:  sp.ObservedAt,
		EvidenceIDs: sp.EvidenceIDs,
	}
	if sp.Value != nil {
		raw.Value = *sp.Value
		raw.HasValue = true
	}
	if sp.Confidence != nil {
		raw.Confidence = *sp.Confidence
		raw.HasConf = true
	}
	return raw
}

type runShadowPayload struct {
	Domain      string          `json:"domain"`
	Signals     []signalPayload `json:"signals"`
	Alpha       float64         `json:"alpha"`
	Persist     *bool           `json:"persist"`
	EvidenceIDs []string        `json:"evidence_ids"`
}

func handleRunShadow(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload runShadowPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, err)
			return
		}
		persist := true
		if payload.Persist != nil {
			persist = *payload.Persist
		}
		raw := make([]domain.RawSignal, 0, len(payload.Signals))
		for _, sp := range payload.Signals {
			raw = append(raw, sp.toRawSignal())
		}
		result, err := svc.RunForensicsShadow(r.Context(), api.RunForensicsShadowRequest{
			Domain:      payload.Domain,
			Signals:     raw,
			Alpha:       payload.Alpha,
			Persist:     persist,
			EvidenceIDs: payload.EvidenceIDs,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleGetRun(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := mux.Vars(r)["run_id"]
		run, fusedCount, anomalyCount, err := svc.GetForensicsRun(r.Context(), runID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"run": run, "fused_count": fusedCount, "anomaly_count": anomalyCount,
		})
	}
}

func handleGetTrace(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := mux.Vars(r)["run_id"]
		run, trace, err := svc.GetForensicsTrace(r.Context(), runID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "trace": trace})
	}
}

func handleListFused(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		run, signals, err := svc.ListFusedSignals(r.Context(), api.ListFusedSignalsRequest{
			RunID:          mux.Vars(r)["run_id"],
			Domain:         q.Get("domain"),
			Region:         q.Get("region"),
			MinScore:       parseFloat(q.Get("min_score")),
			MinProbability: parseFloat(q.Get("min_probability")),
			Limit:          parseInt(q.Get("limit")),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "signals": signals})
	}
}

func handleListAnomalies(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		run, anomalies, err := svc.ListCalibratedAnomalies(r.Context(), api.ListCalibratedAnomaliesRequest{
			RunID:         mux.Vars(r)["run_id"],
			Domain:        q.Get("domain"),
			SignalType:    q.Get("signal_type"),
			Region:        q.Get("region"),
			AnomaliesOnly: q.Get("anomalies_only") == "true",
			MaxPValue:     parseFloat(q.Get("max_p_value")),
			MinAbsLegacyZ: parseFloat(q.Get("min_abs_legacy_z")),
			Limit:         parseInt(q.Get("limit")),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"run": run, "anomalies": anomalies})
	}
}

func handleListRuns(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		runs, err := svc.ListForensicsRuns(r.Context(), api.ListForensicsRunsRequest{
			Domain: q.Get("domain"),
			Status: q.Get("status"),
			Limit:  parseInt(q.Get("limit")),
			Offset: parseInt(q.Get("offset")),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
	}
}

func handleGetPolicy(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		entries, err := svc.GetForensicsPolicy(r.Context(), q.Get("domain"), q.Get("state_hash"), parseInt(q.Get("limit")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
	}
}

func handleTopologySummary(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		summary, err := svc.GetForensicsTopologySummary(r.Context(), api.GetForensicsTopologySummaryRequest{
			RunID:         q.Get("run_id"),
			Domain:        q.Get("domain"),
			AlertLimit:    parseInt(q.Get("alert_limit")),
			HistoryLimit:  parseInt(q.Get("history_limit")),
			BaselineLimit: parseInt(q.Get("baseline_limit")),
			AnomaliesOnly: q.Get("anomalies_only") == "true",
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

type feedbackPayload struct {
	SourceID       string `json:"source_id"`
	SignalType     string `json:"signal_type"`
	IsTruePositive bool   `json:"is_true_positive"`
}

func handleFeedback(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload feedbackPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, err)
			return
		}
		ok, err := svc.SubmitForensicsFeedback(r.Context(), payload.SourceID, payload.SignalType, payload.IsTruePositive)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
	}
}

func handleListFeedback(svc *api.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.ListForensicsFeedback(r.Context(), parseInt(r.URL.Query().Get("limit")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"feedback": records})
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
