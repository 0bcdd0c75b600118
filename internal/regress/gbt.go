// Package regress provides the point-in-time regression capability behind
// the forecast model. The algorithm is replaceable; anything satisfying
// Regressor can be plugged in.
package regress

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Regressor fits a feature matrix against a target vector and predicts
// point values for new rows.
type Regressor interface {
	Fit(x *mat.Dense, y []float64) error
	Predict(x *mat.Dense) ([]float64, error)
}

// Params configures the gradient-boosted tree ensemble.
type Params struct {
	Trees        int     `json:"trees"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`
	MinLeaf      int     `json:"min_leaf"`
}

// DefaultParams returns the ensemble configuration used in production.
func DefaultParams() Params {
	return Params{Trees: 200, LearningRate: 0.1, MaxDepth: 4, MinLeaf: 3}
}

// GBT is a least-squares gradient-boosted ensemble of depth-limited
// regression trees. Fitting is deterministic: same input, same model.
type GBT struct {
	Params Params  `json:"params"`
	Base   float64 `json:"base"`
	Trees  []*node `json:"trees"`
}

type node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *node   `json:"left,omitempty"`
	Right     *node   `json:"right,omitempty"`
}

// NewGBT returns an unfitted ensemble with the given parameters.
func NewGBT(p Params) *GBT {
	if p.Trees <= 0 {
		p = DefaultParams()
	}
	return &GBT{Params: p}
}

// Fit trains the ensemble: the base prediction is the target mean, and each
// tree fits the residuals of the ensemble so far, scaled by the learning
// rate.
func (g *GBT) Fit(x *mat.Dense, y []float64) error {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return fmt.Errorf("regress: empty training matrix")
	}
	if n != len(y) {
		return fmt.Errorf("regress: %d rows but %d targets", n, len(y))
	}

	// Column-major copy: split search scans one feature at a time.
	cols := make([][]float64, d)
	for j := 0; j < d; j++ {
		cols[j] = mat.Col(nil, j, x)
	}

	g.Base = floats.Sum(y) / float64(n)
	g.Trees = g.Trees[:0]

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = g.Base
	}

	residual := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	for t := 0; t < g.Params.Trees; t++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		root := g.buildTree(cols, residual, idx, 0)
		g.Trees = append(g.Trees, root)
		for _, i := range idx {
			pred[i] += g.Params.LearningRate * evalNode(root, cols, i)
		}
	}
	return nil
}

// Predict returns one point estimate per row of x.
func (g *GBT) Predict(x *mat.Dense) ([]float64, error) {
	if len(g.Trees) == 0 {
		return nil, fmt.Errorf("regress: model not fitted")
	}
	n, d := x.Dims()
	out := make([]float64, n)
	row := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		v := g.Base
		for _, tree := range g.Trees {
			v += g.Params.LearningRate * evalRow(tree, row)
		}
		out[i] = v
	}
	return out, nil
}

func (g *GBT) buildTree(cols [][]float64, target []float64, idx []int, depth int) *node {
	value := meanAt(target, idx)
	if depth >= g.Params.MaxDepth || len(idx) < 2*g.Params.MinLeaf {
		return &node{Leaf: true, Value: value}
	}

	feature, threshold, gain := g.bestSplit(cols, target, idx)
	if gain <= 0 {
		return &node{Leaf: true, Value: value}
	}

	var left, right []int
	for _, i := range idx {
		if cols[feature][i] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < g.Params.MinLeaf || len(right) < g.Params.MinLeaf {
		return &node{Leaf: true, Value: value}
	}

	return &node{
		Value:     value,
		Feature:   feature,
		Threshold: threshold,
		Left:      g.buildTree(cols, target, left, depth+1),
		Right:     g.buildTree(cols, target, right, depth+1),
	}
}

// bestSplit finds the (feature, threshold) pair maximizing the reduction in
// squared error, by exact scan over sorted feature values.
func (g *GBT) bestSplit(cols [][]float64, target []float64, idx []int) (int, float64, float64) {
	n := len(idx)
	total := 0.0
	for _, i := range idx {
		total += target[i]
	}
	parentScore := total * total / float64(n)

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	order := make([]int, n)

	for f := range cols {
		copy(order, idx)
		col := cols[f]
		sort.Slice(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })

		leftSum := 0.0
		for s := 0; s < n-1; s++ {
			leftSum += target[order[s]]
			// No split between equal feature values.
			if col[order[s]] == col[order[s+1]] {
				continue
			}
			nl := s + 1
			nr := n - nl
			if nl < g.Params.MinLeaf || nr < g.Params.MinLeaf {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (col[order[s]] + col[order[s+1]]) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func evalNode(nd *node, cols [][]float64, i int) float64 {
	for !nd.Leaf && nd.Left != nil {
		if cols[nd.Feature][i] <= nd.Threshold {
			nd = nd.Left
		} else {
			nd = nd.Right
		}
	}
	return nd.Value
}

func evalRow(nd *node, row []float64) float64 {
	for !nd.Leaf && nd.Left != nil {
		if row[nd.Feature] <= nd.Threshold {
			nd = nd.Left
		} else {
			nd = nd.Right
		}
	}
	return nd.Value
}

func meanAt(values []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}
