// Package features turns the aggregated daily series into the model's
// feature matrix. Training and inference must produce identical column sets
// in identical order, or predictions are silently meaningless; the frozen
// feature-name list is the contract between the two.
package features

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/lfarias/rodovia/internal/calendar"
	"github.com/lfarias/rodovia/internal/encode"
	"github.com/lfarias/rodovia/internal/models"
)

// Categorical field names, used as encoder registry keys.
const (
	FieldUF           = "uf"
	FieldMunicipality = "municipality"
	FieldAccidentType = "accident_type"
	FieldWeatherClass = "weather_class"
)

// CategoricalFields lists the encoded fields in column order.
var CategoricalFields = []string{FieldUF, FieldMunicipality, FieldAccidentType, FieldWeatherClass}

var (
	lagOffsets     = []int{1, 2, 7, 14}
	rollingWindows = []int{7, 14, 28}
)

// Names returns the canonical ordered feature-name list. Training fixes this
// list into the artifact; inference reproduces it column for column.
func Names() []string {
	names := []string{
		"year", "month", "weekday", "day_of_year", "iso_week", "is_weekend",
		"weekday_sin", "weekday_cos", "yday_sin", "yday_cos",
		"mean_hour", "is_holiday", "is_holiday_weekend",
	}
	for _, k := range lagOffsets {
		names = append(names, fmt.Sprintf("lag_%d", k))
	}
	for _, w := range rollingWindows {
		names = append(names, fmt.Sprintf("rolling_mean_%d", w))
	}
	for _, w := range rollingWindows {
		names = append(names, fmt.Sprintf("rolling_std_%d", w))
	}
	for _, f := range CategoricalFields {
		names = append(names, f+"_enc")
	}
	return names
}

// SchemaError reports a feature name the builder cannot produce and that is
// not in the expected-absent set (lag, rolling, encoded categoricals). It
// signals a genuine train/inference schema mismatch rather than missing
// history, and must surface rather than be zero-filled.
type SchemaError struct {
	Name string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("features: cannot produce required feature %q", e.Name)
}

// TrainingSet is the output of BuildTraining.
type TrainingSet struct {
	X        *mat.Dense
	Y        []float64
	Names    []string
	Registry encode.Registry
}

// BuildTraining builds the feature matrix and label vector from the daily
// series. Encoders are fitted on the first fitRows rows only, so that
// vocabulary from the held-out slice of a chronological split cannot leak
// into encoding identity; fitRows <= 0 or beyond the series fits on all rows.
func BuildTraining(series []models.DailyRow, fitRows int) (*TrainingSet, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("features: empty series")
	}
	if fitRows <= 0 || fitRows > len(series) {
		fitRows = len(series)
	}

	registry := fitEncoders(series[:fitRows])
	names := Names()

	counts := make([]float64, len(series))
	for i, row := range series {
		counts[i] = float64(row.Count)
	}

	x := mat.NewDense(len(series), len(names), nil)
	y := make([]float64, len(series))

	for i, row := range series {
		produced := calendarColumns(row.Date, row.MeanHour)
		addHistoryColumns(produced, counts, i)
		addEncodedColumns(produced, registry, row.UF, row.Municipality, row.AccidentType, row.WeatherClass)

		if err := fillRow(x, i, names, produced); err != nil {
			return nil, err
		}
		y[i] = counts[i]
	}

	return &TrainingSet{X: x, Y: y, Names: names, Registry: registry}, nil
}

// InferenceRow is one already-normalized prediction input. Lag and rolling
// features are not computable without history and are zero-filled, so
// predictions for days outside the trained series rest on calendar and
// categorical signal alone.
type InferenceRow struct {
	Date         time.Time
	MeanHour     float64
	UF           string
	Municipality string
	AccidentType string
	WeatherClass string
}

// BuildInference builds a feature matrix whose columns exactly match the
// frozen names list, encoding categoricals against the already-fitted
// registry only. Unknown names that are not lag/rolling/encoded features
// raise a SchemaError.
func BuildInference(rows []InferenceRow, names []string, registry encode.Registry) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("features: no inference rows")
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("features: empty feature-name list")
	}

	x := mat.NewDense(len(rows), len(names), nil)
	for i, row := range rows {
		produced := calendarColumns(row.Date, row.MeanHour)
		addEncodedColumns(produced, registry, row.UF, row.Municipality, row.AccidentType, row.WeatherClass)

		if err := fillRow(x, i, names, produced); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func fitEncoders(rows []models.DailyRow) encode.Registry {
	values := map[string][]string{}
	for _, row := range rows {
		values[FieldUF] = append(values[FieldUF], row.UF)
		values[FieldMunicipality] = append(values[FieldMunicipality], row.Municipality)
		values[FieldAccidentType] = append(values[FieldAccidentType], row.AccidentType)
		values[FieldWeatherClass] = append(values[FieldWeatherClass], row.WeatherClass)
	}
	registry := encode.Registry{}
	for _, field := range CategoricalFields {
		registry[field] = encode.Fit(values[field])
	}
	return registry
}

func calendarColumns(date time.Time, meanHour float64) map[string]float64 {
	cal := calendar.Derive(date)
	return map[string]float64{
		"year":               float64(cal.Year),
		"month":              float64(cal.Month),
		"weekday":            float64(cal.Weekday),
		"day_of_year":        float64(cal.DayOfYear),
		"iso_week":           float64(cal.ISOWeek),
		"is_weekend":         boolToFloat(cal.IsWeekend),
		"weekday_sin":        cal.WeekdaySin,
		"weekday_cos":        cal.WeekdayCos,
		"yday_sin":           cal.YdaySin,
		"yday_cos":           cal.YdayCos,
		"mean_hour":          meanHour,
		"is_holiday":         boolToFloat(cal.IsHoliday),
		"is_holiday_weekend": boolToFloat(cal.IsHolidayWeekend),
	}
}

// addHistoryColumns derives lag and rolling features for row i using only
// counts from rows strictly before i. The current day's own count never
// feeds its own features.
func addHistoryColumns(produced map[string]float64, counts []float64, i int) {
	for _, k := range lagOffsets {
		v := 0.0
		if i-k >= 0 {
			v = counts[i-k]
		}
		produced[fmt.Sprintf("lag_%d", k)] = v
	}
	for _, w := range rollingWindows {
		lo := i - w
		if lo < 0 {
			lo = 0
		}
		window := counts[lo:i]
		meanName := fmt.Sprintf("rolling_mean_%d", w)
		stdName := fmt.Sprintf("rolling_std_%d", w)
		if len(window) == 0 {
			produced[meanName] = 0
			produced[stdName] = 0
			continue
		}
		produced[meanName] = stat.Mean(window, nil)
		if len(window) < 2 {
			produced[stdName] = 0
		} else {
			produced[stdName] = stat.StdDev(window, nil)
		}
	}
}

func addEncodedColumns(produced map[string]float64, registry encode.Registry, uf, municipality, accidentType, weatherClass string) {
	values := map[string]string{
		FieldUF:           uf,
		FieldMunicipality: municipality,
		FieldAccidentType: accidentType,
		FieldWeatherClass: weatherClass,
	}
	for _, field := range CategoricalFields {
		enc, ok := registry[field]
		if !ok {
			continue // expected-absent: zero-filled by fillRow
		}
		produced[field+"_enc"] = float64(enc.Encode(values[field]))
	}
}

// fillRow writes one matrix row in the exact order of names. Produced values
// are used directly; recognized history/encoded features without a value are
// zero-filled; anything else is a schema mismatch.
func fillRow(x *mat.Dense, i int, names []string, produced map[string]float64) error {
	for j, name := range names {
		v, ok := produced[name]
		switch {
		case ok:
			// fillna(0): undefined numerics must not reach the regressor.
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
		case expectedAbsent(name):
			v = 0
		default:
			return &SchemaError{Name: name}
		}
		x.Set(i, j, v)
	}
	return nil
}

func expectedAbsent(name string) bool {
	return strings.HasPrefix(name, "lag_") ||
		strings.HasPrefix(name, "rolling_mean_") ||
		strings.HasPrefix(name, "rolling_std_") ||
		strings.HasSuffix(name, "_enc")
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
