package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lfarias/rodovia/internal/heatmap"
	"github.com/lfarias/rodovia/internal/metrics"
	"github.com/lfarias/rodovia/internal/models"
	"github.com/lfarias/rodovia/internal/weather"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"trained": s.pred.Trained(),
	})
}

// PredictionResult pairs a served count with its deviation from the
// historical means, the numbers the dashboard highlights.
type PredictionResult struct {
	Date                     string   `json:"date"`
	UF                       string   `json:"uf"`
	Municipality             string   `json:"municipality"`
	AccidentType             string   `json:"accident_type"`
	WeatherClass             string   `json:"weather_class"`
	Predicted                int      `json:"predicted"`
	GlobalMean               float64  `json:"global_mean"`
	DeviationGlobalPct       *float64 `json:"deviation_global_pct,omitempty"`
	MunicipalityMean         *float64 `json:"municipality_mean,omitempty"`
	DeviationMunicipalityPct *float64 `json:"deviation_municipality_pct,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.pred.Trained() {
		http.Error(w, "model not trained", http.StatusServiceUnavailable)
		return
	}

	var inputs []models.PredictionInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(inputs) == 0 {
		http.Error(w, "empty prediction request", http.StatusBadRequest)
		return
	}

	preds, err := s.pred.Predict(inputs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	globalMean := s.pred.GlobalMean()
	now := time.Now().UTC()
	results := make([]PredictionResult, len(inputs))
	for i, in := range inputs {
		accidentType := in.AccidentType
		if accidentType == "" {
			accidentType = s.pred.DefaultAccidentType()
		}
		res := PredictionResult{
			Date:         in.Date,
			UF:           in.UF,
			Municipality: in.Municipality,
			AccidentType: accidentType,
			WeatherClass: string(weather.Normalize(in.Weather)),
			Predicted:    preds[i],
			GlobalMean:   globalMean,
		}
		if globalMean > 0 {
			pct := (float64(preds[i]) - globalMean) / globalMean * 100
			res.DeviationGlobalPct = &pct
		}
		if mean, ok := s.pred.MunicipalityMean(in.Municipality); ok && mean > 0 {
			pct := (float64(preds[i]) - mean) / mean * 100
			res.MunicipalityMean = &mean
			res.DeviationMunicipalityPct = &pct
		}
		results[i] = res

		target, _ := time.Parse(models.DateLayout, in.Date)
		if err := s.store.InsertPredictionLog(models.PredictionLog{
			RequestedAt:  now,
			TargetDate:   target,
			UF:           in.UF,
			Municipality: in.Municipality,
			AccidentType: accidentType,
			WeatherClass: res.WeatherClass,
			Predicted:    preds[i],
		}); err != nil {
			log.Printf("api: log prediction: %v", err)
		}
	}
	metrics.PredictionsServed.Add(float64(len(results)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if param := r.URL.Query().Get("days"); param != "" {
		n, err := strconv.Atoi(param)
		if err != nil || n <= 0 {
			http.Error(w, "invalid days parameter", http.StatusBadRequest)
			return
		}
		days = n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.pred.LastDays(days))
}

type statsResponse struct {
	Trained            bool                       `json:"trained"`
	Metrics            any                        `json:"metrics,omitempty"`
	SeriesDays         int                        `json:"series_days"`
	GlobalMean         float64                    `json:"global_mean"`
	TotalIncidents     int                        `json:"total_incidents"`
	TopMunicipalities  []models.MunicipalityCount `json:"top_municipalities"`
	NextPredictionDate string                     `json:"next_prediction_date,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.CountIncidents()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	top, err := s.store.MunicipalityCounts(15)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := statsResponse{
		Trained:           s.pred.Trained(),
		SeriesDays:        len(s.pred.History()),
		GlobalMean:        s.pred.GlobalMean(),
		TotalIncidents:    total,
		TopMunicipalities: top,
	}
	if s.pred.Trained() {
		m := s.pred.Metrics()
		resp.Metrics = m
		resp.NextPredictionDate = s.pred.NextDate().Format(models.DateLayout)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHeatmapPoints(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.MunicipalityCounts(0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(heatmap.BuildPoints(counts))
}

func (s *Server) handleHeatmapImage(w http.ResponseWriter, r *http.Request) {
	width, height := 800, 800
	if param := r.URL.Query().Get("width"); param != "" {
		n, err := strconv.Atoi(param)
		if err != nil || n <= 0 || n > 4096 {
			http.Error(w, "invalid width parameter", http.StatusBadRequest)
			return
		}
		width = n
	}
	if param := r.URL.Query().Get("height"); param != "" {
		n, err := strconv.Atoi(param)
		if err != nil || n <= 0 || n > 4096 {
			http.Error(w, "invalid height parameter", http.StatusBadRequest)
			return
		}
		height = n
	}

	counts, err := s.store.MunicipalityCounts(0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := heatmap.RenderPNG(w, heatmap.BuildPoints(counts), width, height); err != nil {
		log.Printf("api: render heatmap: %v", err)
	}
}
