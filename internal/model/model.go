// Package model wraps a regressor with the forecasting contract: a
// chronological train/test split, R²/RMSE evaluation, and non-negative
// integer outputs.
package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/lfarias/rodovia/internal/regress"
)

// TrainFraction is the chronological split: the first 70% of the series
// trains, the rest evaluates. The series is temporal; shuffling would leak
// future information into training.
const TrainFraction = 0.7

// Metrics holds held-out and in-sample evaluation results.
type Metrics struct {
	R2Train   float64 `json:"r2_train"`
	RMSETrain float64 `json:"rmse_train"`
	R2Test    float64 `json:"r2_test"`
	RMSETest  float64 `json:"rmse_test"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
}

// Model is a fitted forecast model.
type Model struct {
	reg regress.Regressor
}

// New wraps a regressor. The regressor is fitted by TrainEvaluate.
func New(reg regress.Regressor) *Model {
	return &Model{reg: reg}
}

// SplitIndex returns the first held-out row for a series of n rows.
func SplitIndex(n int) int {
	return int(float64(n) * TrainFraction)
}

// TrainEvaluate fits the regressor on the chronological training slice and
// evaluates both slices on rounded, clipped predictions.
func (m *Model) TrainEvaluate(x *mat.Dense, y []float64) (Metrics, error) {
	n, cols := x.Dims()
	if n != len(y) {
		return Metrics{}, fmt.Errorf("model: %d rows but %d targets", n, len(y))
	}
	split := SplitIndex(n)
	if split < 1 || split >= n {
		return Metrics{}, fmt.Errorf("model: series too short to split: %d rows", n)
	}

	xTrain := x.Slice(0, split, 0, cols).(*mat.Dense)
	xTest := x.Slice(split, n, 0, cols).(*mat.Dense)
	yTrain, yTest := y[:split], y[split:]

	if err := m.reg.Fit(xTrain, yTrain); err != nil {
		return Metrics{}, fmt.Errorf("model: fit: %w", err)
	}

	r2Train, rmseTrain, err := m.Evaluate(xTrain, yTrain)
	if err != nil {
		return Metrics{}, err
	}
	r2Test, rmseTest, err := m.Evaluate(xTest, yTest)
	if err != nil {
		return Metrics{}, err
	}

	return Metrics{
		R2Train:   r2Train,
		RMSETrain: rmseTrain,
		R2Test:    r2Test,
		RMSETest:  rmseTest,
		TrainRows: split,
		TestRows:  n - split,
	}, nil
}

// Evaluate computes R² and RMSE of rounded, clipped predictions against the
// true counts. Evaluating on the postprocessed values keeps the metrics
// honest about what callers actually receive.
func (m *Model) Evaluate(x *mat.Dense, y []float64) (r2, rmse float64, err error) {
	raw, err := m.reg.Predict(x)
	if err != nil {
		return 0, 0, fmt.Errorf("model: evaluate: %w", err)
	}

	pred := make([]float64, len(raw))
	var sse float64
	for i, v := range raw {
		pred[i] = float64(clipCount(v))
		diff := pred[i] - y[i]
		sse += diff * diff
	}

	r2 = stat.RSquaredFrom(pred, y, nil)
	rmse = math.Sqrt(sse / float64(len(y)))
	return r2, rmse, nil
}

// Predict returns one non-negative integer count per input row. Counts
// cannot be negative or fractional, so raw regressor output is rounded to
// the nearest integer and clipped at zero.
func (m *Model) Predict(x *mat.Dense) ([]int, error) {
	raw, err := m.reg.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("model: predict: %w", err)
	}
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = clipCount(v)
	}
	return out, nil
}

func clipCount(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	return n
}
