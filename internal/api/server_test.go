package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lfarias/rodovia/internal/models"
	"github.com/lfarias/rodovia/internal/predictor"
	"github.com/lfarias/rodovia/internal/store"
)

func testServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var records []models.IncidentRecord
	start := time.Date(2022, time.March, 1, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 90; d++ {
		date := start.AddDate(0, 0, d)
		n := 3
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			n = 6
		}
		for i := 0; i < n; i++ {
			records = append(records, models.IncidentRecord{
				Date:         date.Format(models.DateLayout),
				Time:         "14:30:00",
				UF:           "PE",
				Municipality: "RECIFE",
				AccidentType: "Colisão traseira",
				Weather:      "Céu Claro",
			})
		}
	}
	if _, err := st.InsertIncidents(records); err != nil {
		t.Fatalf("insert incidents: %v", err)
	}

	pred := predictor.New()
	if _, _, err := pred.Train(records); err != nil {
		t.Fatalf("train: %v", err)
	}

	return NewServer(st, pred, "0"), st
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["trained"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestPredict(t *testing.T) {
	srv, st := testServer(t)

	inputs := []models.PredictionInput{
		{Date: "01/07/2022", UF: "PE", Municipality: "RECIFE", Weather: "Chuva", MeanHour: 14},
	}
	body, _ := json.Marshal(inputs)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var results []PredictionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len = %d, want 1", len(results))
	}
	res := results[0]
	if res.Predicted < 0 {
		t.Fatalf("predicted = %d, want >= 0", res.Predicted)
	}
	if res.WeatherClass != "Rain" {
		t.Fatalf("weather class = %q, want Rain", res.WeatherClass)
	}
	if res.GlobalMean <= 0 || res.DeviationGlobalPct == nil {
		t.Fatalf("global mean fields missing: %+v", res)
	}
	if res.MunicipalityMean == nil || res.DeviationMunicipalityPct == nil {
		t.Fatalf("municipality mean fields missing for known municipality: %+v", res)
	}
	if res.AccidentType != "Colisão traseira" {
		t.Fatalf("accident type = %q, want trained default", res.AccidentType)
	}

	// Served prediction is logged.
	logs, err := st.GetRecentPredictions(10)
	if err != nil {
		t.Fatalf("GetRecentPredictions: %v", err)
	}
	if len(logs) != 1 || logs[0].Predicted != res.Predicted {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestPredictRejectsBadRequests(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predict", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader([]byte("{bad"))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewReader([]byte("[]"))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d, want 400", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?days=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var rows []models.DailyRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("len = %d, want 7", len(rows))
	}
	if !rows[0].Date.Before(rows[6].Date) {
		t.Fatal("rows not in ascending date order")
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?days=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad param status = %d, want 400", rec.Code)
	}
}

func TestStats(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Trained {
		t.Fatal("trained = false")
	}
	if resp.SeriesDays != 90 {
		t.Fatalf("series days = %d, want 90", resp.SeriesDays)
	}
	if resp.TotalIncidents == 0 || resp.GlobalMean <= 0 {
		t.Fatalf("stats missing totals: %+v", resp)
	}
	if len(resp.TopMunicipalities) != 1 || resp.TopMunicipalities[0].Municipality != "RECIFE" {
		t.Fatalf("top municipalities = %+v", resp.TopMunicipalities)
	}
	if resp.NextPredictionDate == "" {
		t.Fatal("next prediction date missing")
	}
}

func TestHeatmapEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/heatmap", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("points status = %d", rec.Code)
	}
	var points []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &points); err != nil {
		t.Fatalf("decode points: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("points len = %d, want 1", len(points))
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/heatmap.png?width=200&height=200", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("image status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/heatmap.png?width=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad width status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
