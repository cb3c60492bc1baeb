package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-ml/predict-cli/internal/config"
	"github.com/verity-ml/predict-cli/internal/corrections"
	"github.com/verity-ml/predict-cli/internal/events"
	"github.com/verity-ml/predict-cli/internal/ingest"
	"github.com/verity-ml/predict-cli/internal/model"
	"github.com/verity-ml/predict-cli/internal/registry"
	"github.com/verity-ml/predict-cli/internal/store"
)

// newTestEnv builds an appEnv over a throwaway sqlite store. The global
// config is set so handlers that read pipeline settings work.
func newTestEnv(t *testing.T) *appEnv {
	t.Helper()

	cfg = &config.Config{}
	cfg.Pipeline.PageSize = 100
	cfg.Pipeline.ScoreBatchSize = 10
	cfg.Pipeline.Concurrency = 2
	cfg.Pipeline.ConfidenceThreshold = 0.8
	cfg.Pipeline.Retry.MaxAttempts = 1

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	bus := events.NewBus(true)
	return &appEnv{
		Store:       st,
		Bus:         bus,
		Registry:    registry.New(st),
		Ingest:      ingest.NewService(st, bus, ingest.Options{}),
		Corrections: corrections.NewIngestor(st),
	}
}

func seedTestDocument(t *testing.T, env *appEnv) *model.Document {
	t.Helper()
	doc, err := env.Store.InsertDocument(context.Background(), model.DocumentInput{
		Name:         "accounts.csv",
		PredictField: "industry",
	})
	require.NoError(t, err)
	return doc
}

func TestRouter_Health(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_GetDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := seedTestDocument(t, env)
	r := newRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var got model.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "accounts.csv", got.Name)
}

func TestRouter_GetDocument_NotFound(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/documents/no-such-id", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_ListDocuments(t *testing.T) {
	env := newTestEnv(t)
	seedTestDocument(t, env)
	seedTestDocument(t, env)
	r := newRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Documents []model.Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Documents, 2)
}

func TestRouter_DeleteDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := seedTestDocument(t, env)
	r := newRouter(env)

	req := httptest.NewRequest(http.MethodDelete, "/documents/"+doc.ID, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Deleted documents are hidden from reads.
	req = httptest.NewRequest(http.MethodGet, "/documents/"+doc.ID, nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_IngestDocument_MissingSource(t *testing.T) {
	r := newRouter(newTestEnv(t))

	body, _ := json.Marshal(map[string]string{"predict_field": "industry"})
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "source is required")
}

func TestRouter_IngestDocument_MissingPredictField(t *testing.T) {
	r := newRouter(newTestEnv(t))

	body, _ := json.Marshal(map[string]string{"source": "data.csv"})
	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "predict_field is required")
}

func TestRouter_IngestDocument_InvalidJSON(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRouter_PredictDocument_NoBackend(t *testing.T) {
	env := newTestEnv(t)
	doc := seedTestDocument(t, env)
	r := newRouter(env)

	req := httptest.NewRequest(http.MethodPost, "/documents/"+doc.ID+"/predict", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "no scoring backend configured")
}

func TestRouter_GetPrediction_NotFound(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/predictions/no-such-id", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_PredictionSummary(t *testing.T) {
	env := newTestEnv(t)
	doc := seedTestDocument(t, env)

	p, err := env.Store.InsertPrediction(context.Background(), &model.Prediction{
		DocumentID: doc.ID,
		Model:      "industry-classifier",
	}, []model.PredictionResult{
		{DocumentID: doc.ID, RowID: "r-1", ProvidedValue: "Tech", PredictionValue: "Tech", Confidence: 0.95, Agree: true},
		{DocumentID: doc.ID, RowID: "r-2", ProvidedValue: "Retail", PredictionValue: "Energy", Confidence: 0.4, Agree: false},
	})
	require.NoError(t, err)

	r := newRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/predictions/"+p.ID+"/summary", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var s model.PerformanceSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	assert.Equal(t, 2, s.TotalCount)
	assert.Equal(t, 1, s.AgreeAboveThreshold)
	assert.Equal(t, 1, s.DisagreeBelowThreshold)
	assert.InDelta(t, 0.8, s.ConfidenceThreshold, 0.001)
}

func TestRouter_PredictionResults_Filter(t *testing.T) {
	env := newTestEnv(t)
	doc := seedTestDocument(t, env)

	p, err := env.Store.InsertPrediction(context.Background(), &model.Prediction{
		DocumentID: doc.ID,
		Model:      "industry-classifier",
	}, []model.PredictionResult{
		{DocumentID: doc.ID, RowID: "r-1", ProvidedValue: "Tech", PredictionValue: "Tech", Confidence: 0.95, Agree: true},
		{DocumentID: doc.ID, RowID: "r-2", ProvidedValue: "Retail", PredictionValue: "Energy", Confidence: 0.4, Agree: false},
	})
	require.NoError(t, err)

	r := newRouter(env)

	req := httptest.NewRequest(http.MethodGet, "/predictions/"+p.ID+"/results?filter=AllDisagree", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var rp model.ResultPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rp))
	require.Len(t, rp.Results, 1)
	assert.Equal(t, "Energy", rp.Results[0].PredictionValue)
}

func TestRouter_ApplyCorrections(t *testing.T) {
	env := newTestEnv(t)
	doc := seedTestDocument(t, env)

	p, err := env.Store.InsertPrediction(context.Background(), &model.Prediction{
		DocumentID: doc.ID,
		Model:      "industry-classifier",
	}, []model.PredictionResult{
		{DocumentID: doc.ID, RowID: "r-1", ProvidedValue: "Tech", PredictionValue: "Retail", Confidence: 0.7, Agree: false},
	})
	require.NoError(t, err)

	rp, err := env.Store.ListPredictionResults(context.Background(), p.ID, model.Page{}, store.ResultListOptions{})
	require.NoError(t, err)
	require.Len(t, rp.Results, 1)

	body, _ := json.Marshal(map[string]any{
		"corrections": []map[string]string{
			{"prediction_record_id": rp.Results[0].ID, "corrected_value": "Tech"},
		},
	})

	r := newRouter(env)

	req := httptest.NewRequest(http.MethodPost, "/predictions/"+p.ID+"/corrections", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res corrections.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Applied)

	// Corrections are readable back through the API.
	req = httptest.NewRequest(http.MethodGet, "/predictions/"+p.ID+"/corrections", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var listBody struct {
		Corrections []model.PredictionCorrection `json:"corrections"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listBody))
	require.Len(t, listBody.Corrections, 1)
	assert.Equal(t, "Tech", listBody.Corrections[0].PredictionValue)
	assert.True(t, listBody.Corrections[0].Agree)
}

func TestRouter_ExportResults(t *testing.T) {
	env := newTestEnv(t)
	doc := seedTestDocument(t, env)

	p, err := env.Store.InsertPrediction(context.Background(), &model.Prediction{
		DocumentID: doc.ID,
		Model:      "industry-classifier",
	}, []model.PredictionResult{
		{DocumentID: doc.ID, RowID: "r-1", ProvidedValue: "Tech", PredictionValue: "Tech", Confidence: 0.95, Agree: true},
	})
	require.NoError(t, err)

	r := newRouter(env)

	// Both the short route and the recorded prediction_url resolve.
	for _, path := range []string{"/predictions/" + p.ID + "/export", p.PredictionURL} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
		assert.Contains(t, rr.Body.String(), "corrected_value")
		assert.Contains(t, rr.Body.String(), "Tech")
	}
}

func TestRouter_ExportResults_NotFound(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/predictions/no-such-id/export", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
