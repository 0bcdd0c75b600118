package models

import "time"

// DateLayout is the day/month/year format used by DATATRAN exports.
const DateLayout = "02/01/2006"

// TimeLayout is the time-of-day format used by DATATRAN exports.
const TimeLayout = "15:04:05"

// IncidentRecord is one raw accident report as published in the consolidated
// DATATRAN JSON. Field names follow the upstream dataset.
type IncidentRecord struct {
	Date         string  `json:"data_inversa"`
	Time         string  `json:"horario"`
	UF           string  `json:"uf"`
	Municipality string  `json:"municipio"`
	AccidentType string  `json:"tipo_acidente"`
	Weather      string  `json:"condicao_metereologica"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}

// DailyRow is one calendar day of the aggregated series: the incident count
// plus the most-frequent categorical values observed that day. The ordered
// sequence of these rows is the historical series the model trains on.
type DailyRow struct {
	Date         time.Time `json:"date"`
	Count        int       `json:"count"`
	UF           string    `json:"uf"`
	Municipality string    `json:"municipality"`
	AccidentType string    `json:"accident_type"`
	WeatherClass string    `json:"weather_class"`
	MeanHour     float64   `json:"mean_hour"`
}

// PredictionInput is one row of a prediction request. AccidentType is
// optional; callers that omit it get the trained default. MeanHour, when
// zero, is derived from the Time field.
type PredictionInput struct {
	Date         string  `json:"data_inversa"`
	Time         string  `json:"horario"`
	UF           string  `json:"uf"`
	Municipality string  `json:"municipio"`
	AccidentType string  `json:"tipo_acidente,omitempty"`
	Weather      string  `json:"condicao_metereologica"`
	MeanHour     float64 `json:"hora_media,omitempty"`
}

// MunicipalityCount is an incident total for one (UF, municipality) pair,
// used by the heatmap and dashboard summaries.
type MunicipalityCount struct {
	UF           string `json:"uf"`
	Municipality string `json:"municipality"`
	Count        int    `json:"count"`
}

// PredictionLog records a served prediction for later inspection.
type PredictionLog struct {
	ID           int64
	RequestedAt  time.Time
	TargetDate   time.Time
	UF           string
	Municipality string
	AccidentType string
	WeatherClass string
	Predicted    int
}
