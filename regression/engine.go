// Package regression implements exact Gaussian Process regression over a
// kernel.Kernel.
//
// The Engine keeps the training set, the covariance matrix C over it and
// the inverse of C. Train rebuilds all three from scratch; Evaluate conditions
// on them:
//
//	mean     = kᵀ · C⁻¹ · y
//	variance = c − kᵀ · C⁻¹ · k
//
// where k is the train × query cross covariance and c the query × query
// covariance. Every Train costs O(n³) in the number of training points.
package regression

import (
	"fmt"
	"math"

	"github.com/on-the-ground/effect_ive_gpcache/kernel"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNumerical reports a singular or ill-conditioned covariance matrix,
	// or a non-finite result.
	ErrNumerical = fmt.Errorf("numerical error")

	// ErrDimensionMismatch reports vectors whose dimension differs from the
	// engine's, or data and labels of different lengths.
	ErrDimensionMismatch = fmt.Errorf("dimension mismatch")

	// ErrNotTrained is returned by operations that need a fitted model.
	ErrNotTrained = fmt.Errorf("engine is not trained")
)

// Prediction is the posterior at a single query point.
type Prediction struct {
	Mean     float64
	Variance float64
}

// Engine is not safe for concurrent use.
type Engine struct {
	kernel *kernel.Kernel

	data   [][]float64
	labels []float64
	dim    int

	cov    *mat.SymDense
	covInv *mat.Dense
	alpha  *mat.VecDense // C⁻¹ · y
}

func New(k *kernel.Kernel) *Engine {
	return &Engine{kernel: k}
}

func (e *Engine) Kernel() *kernel.Kernel { return e.kernel }

// Len returns the number of training points.
func (e *Engine) Len() int { return len(e.data) }

// Dim returns the argument dimension, or 0 before the first Train.
func (e *Engine) Dim() int { return e.dim }

func (e *Engine) Trained() bool { return len(e.data) > 0 }

// Train replaces the training set and refits C and C⁻¹.
//
// On error the previous fit is left untouched.
func (e *Engine) Train(data [][]float64, labels []float64) error {
	if len(data) != len(labels) {
		return fmt.Errorf("%w: %d arguments, %d labels", ErrDimensionMismatch, len(data), len(labels))
	}
	if len(data) == 0 {
		e.data, e.labels, e.dim = nil, nil, 0
		e.cov, e.covInv, e.alpha = nil, nil, nil
		return nil
	}
	dim := len(data[0])
	for i, x := range data {
		if len(x) != dim {
			return fmt.Errorf("%w: argument %d has dimension %d, want %d", ErrDimensionMismatch, i, len(x), dim)
		}
	}

	owned := make([][]float64, len(data))
	for i, x := range data {
		owned[i] = append([]float64(nil), x...)
	}
	ys := append([]float64(nil), labels...)

	cov, covInv, alpha, err := fit(e.kernel, owned, ys)
	if err != nil {
		return err
	}

	e.data, e.labels, e.dim = owned, ys, dim
	e.cov, e.covInv, e.alpha = cov, covInv, alpha
	return nil
}

func fit(k *kernel.Kernel, data [][]float64, labels []float64) (*mat.SymDense, *mat.Dense, *mat.VecDense, error) {
	cov := k.SymMatrix(data)
	covInv, err := invert(cov)
	if err != nil {
		return nil, nil, nil, err
	}
	alpha := mat.NewVecDense(len(labels), nil)
	alpha.MulVec(covInv, mat.NewVecDense(len(labels), labels))
	if !finiteVec(alpha) {
		return nil, nil, nil, fmt.Errorf("%w: non-finite weights", ErrNumerical)
	}
	return cov, covInv, alpha, nil
}

func invert(a mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, fmt.Errorf("%w: covariance inverse: %v", ErrNumerical, err)
	}
	r, c := inv.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := inv.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite covariance inverse", ErrNumerical)
			}
		}
	}
	return &inv, nil
}

func finiteVec(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Evaluate returns the posterior mean and variance at each query point.
//
// The variance of a prediction is the diagonal entry of the posterior
// covariance; callers are expected to pass one query at a time. An untrained
// engine returns the prior: mean 0 and variance k(x, x).
func (e *Engine) Evaluate(queries [][]float64) ([]Prediction, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	dim := len(queries[0])
	if e.Trained() {
		dim = e.dim
	}
	for i, q := range queries {
		if len(q) != dim {
			return nil, fmt.Errorf("%w: query %d has dimension %d, want %d", ErrDimensionMismatch, i, len(q), dim)
		}
	}

	c := e.kernel.Matrix(queries, queries)
	preds := make([]Prediction, len(queries))
	if !e.Trained() {
		for i := range preds {
			preds[i] = Prediction{Mean: 0, Variance: c.At(i, i)}
		}
		return preds, nil
	}

	k := e.kernel.Matrix(e.data, queries)

	var mean mat.VecDense
	mean.MulVec(k.T(), e.alpha)

	var covInvK, explained, sigma mat.Dense
	covInvK.Mul(e.covInv, k)
	explained.Mul(k.T(), &covInvK)
	sigma.Sub(c, &explained)

	for i := range preds {
		preds[i] = Prediction{Mean: mean.AtVec(i), Variance: math.Max(sigma.At(i, i), 0)}
		if math.IsNaN(preds[i].Mean) || math.IsNaN(preds[i].Variance) {
			return nil, fmt.Errorf("%w: non-finite prediction for query %d", ErrNumerical, i)
		}
	}
	return preds, nil
}

// LogLikelihood is the log marginal likelihood of the training labels:
// −½ yᵀC⁻¹y − ½ log|C| − n/2 log 2π.
func (e *Engine) LogLikelihood() (float64, error) {
	if !e.Trained() {
		return 0, ErrNotTrained
	}
	logDet, sign := mat.LogDet(e.cov)
	if sign <= 0 || math.IsNaN(logDet) {
		return 0, fmt.Errorf("%w: covariance is not positive definite", ErrNumerical)
	}
	n := float64(len(e.labels))
	fit := mat.Dot(mat.NewVecDense(len(e.labels), e.labels), e.alpha)
	return -0.5*fit - 0.5*logDet - 0.5*n*math.Log(2*math.Pi), nil
}
