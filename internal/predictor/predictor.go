// Package predictor orchestrates the full pipeline: aggregation, feature
// construction, model training, artifact persistence and prediction. It is
// the one entry point dashboard-facing code talks to.
package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lfarias/rodovia/internal/aggregate"
	"github.com/lfarias/rodovia/internal/encode"
	"github.com/lfarias/rodovia/internal/features"
	"github.com/lfarias/rodovia/internal/model"
	"github.com/lfarias/rodovia/internal/models"
	"github.com/lfarias/rodovia/internal/regress"
	"github.com/lfarias/rodovia/internal/weather"
)

// ArtifactVersion is the schema version of the persisted artifact. Loads
// reject other versions instead of silently misaligning feature sets.
const ArtifactVersion = 1

// UnknownAccidentType is the accident-type fallback when a prediction input
// omits the field and no encoder vocabulary exists.
const UnknownAccidentType = "DESCONHECIDO"

// minTrainDays is the smallest series that can be split and fitted sensibly.
const minTrainDays = 10

// ErrNotTrained is returned by operations that require a trained or loaded
// model.
var ErrNotTrained = errors.New("predictor: model not trained")

// ArtifactError reports a persisted artifact missing required components.
// A partial artifact must never be served from.
type ArtifactError struct {
	Missing []string
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("predictor: artifact missing components: %s", strings.Join(e.Missing, ", "))
}

// Predictor holds the complete trained state. It has no global counterpart:
// callers construct one, train or load it, and pass it around explicitly.
type Predictor struct {
	gbt          *regress.GBT
	model        *model.Model
	registry     encode.Registry
	featureNames []string
	metrics      model.Metrics
	history      []models.DailyRow
	minYear      int
	trained      bool
}

// New returns an untrained predictor with the default data-quality floor.
func New() *Predictor {
	return &Predictor{minYear: aggregate.DefaultMinYear}
}

// Train aggregates the raw records into the daily series, builds features,
// fits the model on the chronological training slice and evaluates the
// held-out slice. The aggregated series is retained as historical context.
func (p *Predictor) Train(records []models.IncidentRecord) (model.Metrics, aggregate.DropStats, error) {
	series, drops := aggregate.Aggregate(records, p.minYear)
	if len(series) < minTrainDays {
		return model.Metrics{}, drops, fmt.Errorf("predictor: %d usable days, need at least %d", len(series), minTrainDays)
	}

	// Encoders are fitted on the training slice only so held-out vocabulary
	// cannot leak into encoding identity.
	split := model.SplitIndex(len(series))
	ts, err := features.BuildTraining(series, split)
	if err != nil {
		return model.Metrics{}, drops, err
	}

	p.gbt = regress.NewGBT(regress.DefaultParams())
	p.model = model.New(p.gbt)
	metrics, err := p.model.TrainEvaluate(ts.X, ts.Y)
	if err != nil {
		return model.Metrics{}, drops, err
	}

	p.registry = ts.Registry
	p.featureNames = ts.Names
	p.metrics = metrics
	p.history = series
	p.trained = true
	return metrics, drops, nil
}

// TrainFile trains from a consolidated DATATRAN JSON file.
func (p *Predictor) TrainFile(path string) (model.Metrics, aggregate.DropStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Metrics{}, aggregate.DropStats{}, fmt.Errorf("predictor: read %s: %w", path, err)
	}
	var records []models.IncidentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return model.Metrics{}, aggregate.DropStats{}, fmt.Errorf("predictor: parse %s: %w", path, err)
	}
	return p.Train(records)
}

// Predict returns one non-negative integer count per input row, re-running
// feature construction in inference mode against the frozen encoders.
func (p *Predictor) Predict(inputs []models.PredictionInput) ([]int, error) {
	if !p.trained {
		return nil, ErrNotTrained
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("predictor: no prediction inputs")
	}

	rows := make([]features.InferenceRow, len(inputs))
	for i, in := range inputs {
		date, err := time.Parse(models.DateLayout, in.Date)
		if err != nil {
			return nil, fmt.Errorf("predictor: input %d: parse date %q: %w", i, in.Date, err)
		}

		meanHour := in.MeanHour
		if meanHour == 0 && in.Time != "" {
			if hour, err := aggregate.ParseTimeOfDay(in.Time); err == nil {
				meanHour = float64(hour)
			}
		}

		accidentType := in.AccidentType
		if accidentType == "" {
			accidentType = p.DefaultAccidentType()
		}

		rows[i] = features.InferenceRow{
			Date:         date,
			MeanHour:     meanHour,
			UF:           in.UF,
			Municipality: in.Municipality,
			AccidentType: accidentType,
			WeatherClass: string(weather.Normalize(in.Weather)),
		}
	}

	x, err := features.BuildInference(rows, p.featureNames, p.registry)
	if err != nil {
		return nil, err
	}
	return p.model.Predict(x)
}

// DefaultAccidentType returns the first fitted accident-type class, matching
// what interactive callers get when they leave the field blank.
func (p *Predictor) DefaultAccidentType() string {
	if enc, ok := p.registry[features.FieldAccidentType]; ok && enc.Len() > 0 {
		return enc.Classes()[0]
	}
	return UnknownAccidentType
}

// Trained reports whether the predictor holds a usable model.
func (p *Predictor) Trained() bool { return p.trained }

// Metrics returns the evaluation metrics recorded at training time.
func (p *Predictor) Metrics() model.Metrics { return p.metrics }

// History returns the retained aggregated series, oldest first.
func (p *Predictor) History() []models.DailyRow { return p.history }

// LastDays returns the most recent n rows of the series, oldest first.
func (p *Predictor) LastDays(n int) []models.DailyRow {
	if n >= len(p.history) {
		return p.history
	}
	return p.history[len(p.history)-n:]
}

// NextDate returns the day after the last historical date, the default
// target for a new prediction.
func (p *Predictor) NextDate() time.Time {
	if len(p.history) == 0 {
		return time.Now().UTC().Truncate(24 * time.Hour)
	}
	return p.history[len(p.history)-1].Date.AddDate(0, 0, 1)
}

// GlobalMean returns the mean daily count over the whole series.
func (p *Predictor) GlobalMean() float64 {
	if len(p.history) == 0 {
		return 0
	}
	sum := 0
	for _, row := range p.history {
		sum += row.Count
	}
	return float64(sum) / float64(len(p.history))
}

// MunicipalityMean returns the mean daily count over days whose modal
// municipality matches, and whether any such day exists.
func (p *Predictor) MunicipalityMean(municipality string) (float64, bool) {
	sum, n := 0, 0
	for _, row := range p.history {
		if row.Municipality == municipality {
			sum += row.Count
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

type artifact struct {
	Version      int               `json:"version"`
	SavedAt      time.Time         `json:"saved_at"`
	Model        *regress.GBT      `json:"model"`
	Encoders     encode.Registry   `json:"encoders"`
	FeatureNames []string          `json:"feature_names"`
	Metrics      *model.Metrics    `json:"metrics"`
	History      []models.DailyRow `json:"history"`
}

// Save persists the complete trained state as one JSON blob, written to a
// temp file and renamed so readers never observe a partial artifact.
func (p *Predictor) Save(path string) error {
	if !p.trained {
		return ErrNotTrained
	}

	metrics := p.metrics
	art := artifact{
		Version:      ArtifactVersion,
		SavedAt:      time.Now().UTC(),
		Model:        p.gbt,
		Encoders:     p.registry,
		FeatureNames: p.featureNames,
		Metrics:      &metrics,
		History:      p.history,
	}
	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("predictor: marshal artifact: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("predictor: create artifact dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("predictor: write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("predictor: swap artifact: %w", err)
	}
	return nil
}

// Load restores a predictor from a persisted artifact. Any missing required
// component is fatal; a partially-restored model must not serve.
func Load(path string) (*Predictor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("predictor: read artifact %s: %w", path, err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("predictor: parse artifact %s: %w", path, err)
	}
	if art.Version != ArtifactVersion {
		return nil, fmt.Errorf("predictor: unsupported artifact version %d (want %d)", art.Version, ArtifactVersion)
	}

	var missing []string
	if art.Model == nil || len(art.Model.Trees) == 0 {
		missing = append(missing, "model")
	}
	if len(art.Encoders) == 0 {
		missing = append(missing, "encoders")
	}
	if len(art.FeatureNames) == 0 {
		missing = append(missing, "feature_names")
	}
	if art.Metrics == nil {
		missing = append(missing, "metrics")
	}
	if len(art.History) == 0 {
		missing = append(missing, "history")
	}
	if len(missing) > 0 {
		return nil, &ArtifactError{Missing: missing}
	}

	p := New()
	p.gbt = art.Model
	p.model = model.New(art.Model)
	p.registry = art.Encoders
	p.featureNames = art.FeatureNames
	p.metrics = *art.Metrics
	p.history = art.History
	p.trained = true
	return p, nil
}
