package model

import (
	"fmt"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/lfarias/rodovia/internal/regress"
)

// recordingRegressor captures the rows it was fitted on and predicts a fixed
// value.
type recordingRegressor struct {
	fitRows int
	output  float64
}

func (r *recordingRegressor) Fit(x *mat.Dense, y []float64) error {
	r.fitRows, _ = x.Dims()
	return nil
}

func (r *recordingRegressor) Predict(x *mat.Dense) ([]float64, error) {
	n, _ := x.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = r.output
	}
	return out, nil
}

func makeSeries(n int) (*mat.Dense, []float64) {
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		y[i] = float64(i % 5)
	}
	return x, y
}

func TestTrainEvaluateChronologicalSplit(t *testing.T) {
	x, y := makeSeries(10)
	reg := &recordingRegressor{output: 2}
	m := New(reg)

	metrics, err := m.TrainEvaluate(x, y)
	if err != nil {
		t.Fatalf("TrainEvaluate: %v", err)
	}
	if reg.fitRows != 7 {
		t.Errorf("fitted on %d rows, want 7 (70%% of 10)", reg.fitRows)
	}
	if metrics.TrainRows != 7 || metrics.TestRows != 3 {
		t.Errorf("split = %d/%d, want 7/3", metrics.TrainRows, metrics.TestRows)
	}
}

func TestTrainEvaluateTooShort(t *testing.T) {
	x, y := makeSeries(1)
	if _, err := New(&recordingRegressor{}).TrainEvaluate(x, y); err == nil {
		t.Error("TrainEvaluate accepted a 1-row series")
	}
}

func TestPredictNonNegativeIntegers(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{3.4, 3},
		{3.6, 4},
		{-2.7, 0},
		{-0.4, 0},
		{0, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("raw=%v", tt.raw), func(t *testing.T) {
			m := New(&recordingRegressor{output: tt.raw})
			x := mat.NewDense(1, 1, []float64{1})
			got, err := m.Predict(x)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if got[0] != tt.want {
				t.Errorf("Predict(%f) = %d, want %d", tt.raw, got[0], tt.want)
			}
			if got[0] < 0 {
				t.Errorf("negative count %d", got[0])
			}
		})
	}
}

func TestEvaluatePerfectPredictions(t *testing.T) {
	// A GBT trained to convergence on a learnable pattern should evaluate
	// near-perfectly on its training slice.
	n := 40
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		if i < 15 {
			y[i] = 4
		} else {
			y[i] = 8
		}
	}

	m := New(regress.NewGBT(regress.Params{Trees: 60, LearningRate: 0.3, MaxDepth: 3, MinLeaf: 1}))
	metrics, err := m.TrainEvaluate(x, y)
	if err != nil {
		t.Fatalf("TrainEvaluate: %v", err)
	}
	if metrics.R2Train < 0.95 {
		t.Errorf("R2Train = %f, want >= 0.95", metrics.R2Train)
	}
	if metrics.RMSETrain > 1 {
		t.Errorf("RMSETrain = %f, want <= 1", metrics.RMSETrain)
	}
}
