package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/forensics-shadow/internal/forensics/api"
	"github.com/sawpanic/forensics-shadow/internal/forensics/blackboard"
	"github.com/sawpanic/forensics-shadow/internal/forensics/orchestrator"
	"github.com/sawpanic/forensics-shadow/internal/forensics/policy"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	bb := blackboard.New(blackboard.NewMapBackingStore(), "")
	selector := policy.NewSelector(bb, true, true, 0.15, 0.2)
	orch := orchestrator.New(bb, selector, nil)
	return NewRouter(api.New(orch, bb))
}

func postRun(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/forensics/v1/runs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRunEndpointThenGetRun(t *testing.T) {
	router := newTestRouter(t)

	var signals []map[string]interface{}
	for i := 0; i < 6; i++ {
		signals = append(signals, map[string]interface{}{
			"source_id":   fmt.Sprintf("src-%d", i),
			"signal_type": "latency_ms",
			"value":       float64(10 * (i + 1)),
			"observed_at": int64(1000 + i),
		})
	}
	payload, err := json.Marshal(map[string]interface{}{
		"domain":  "infrastructure",
		"signals": signals,
		"alpha":   0.05,
	})
	require.NoError(t, err)

	rec := postRun(t, router, string(payload))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Run struct {
			RunID  string `json:"run_id"`
			Status string `json:"status"`
		} `json:"Run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.Run.RunID)
	assert.Equal(t, "completed", result.Run.Status)

	getReq := httptest.NewRequest(http.MethodGet, "/forensics/v1/runs/"+result.Run.RunID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestRunEndpointRejectsEmptyBatch(t *testing.T) {
	router := newTestRouter(t)
	rec := postRun(t, router, `{"domain":"infrastructure","signals":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunMissingReturns404(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/forensics/v1/runs/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedbackEndpoint(t *testing.T) {
	router := newTestRouter(t)
	body := `{"source_id":"src-a","signal_type":"latency_ms","is_true_positive":true}`
	req := httptest.NewRequest(http.MethodPost, "/forensics/v1/feedback", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	listReq := httptest.NewRequest(http.MethodGet, "/forensics/v1/feedback?limit=10", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var listed struct {
		Feedback []struct {
			SourceID string `json:"source_id"`
		} `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	require.Len(t, listed.Feedback, 1)
	assert.Equal(t, "src-a", listed.Feedback[0].SourceID)
}
