package regression

import (
	"fmt"
	"math"

	"github.com/on-the-ground/effect_ive_gpcache/kernel"
	"gonum.org/v1/gonum/mat"
)

// DLikelihood returns the partial derivative of the marginal likelihood
// w.r.t. parameter p of the kernel at the current fit:
//
//	0.5 * (yᵀ C⁻¹ dK C⁻¹ y − tr(C⁻¹ dK))
func (e *Engine) DLikelihood(p kernel.ParamIndex) (float64, error) {
	if !e.Trained() {
		return 0, ErrNotTrained
	}
	return dLikelihood(e.kernel, e.data, e.covInv, e.alpha, p)
}

func dLikelihood(k *kernel.Kernel, data [][]float64, covInv *mat.Dense, alpha *mat.VecDense, p kernel.ParamIndex) (float64, error) {
	dK, err := k.GradientMatrix(data, data, p.Component, p.Param)
	if err != nil {
		return 0, err
	}
	var dKAlpha mat.VecDense
	dKAlpha.MulVec(dK, alpha)
	quad := mat.Dot(alpha, &dKAlpha)

	var covInvDK mat.Dense
	covInvDK.Mul(covInv, dK)
	return 0.5 * (quad - mat.Trace(&covInvDK)), nil
}

// GradientDescent adjusts every differentiable kernel parameter by
// θ -= δ·gamma, δ being DLikelihood, until max|δ| < cutoff or maxIterations
// is reached, then refits. It returns the number of iterations run.
//
// All deltas of one iteration are computed against the same kernel state.
// If any refit fails the parameters are restored and the error returned.
func (e *Engine) GradientDescent(cutoff, gamma float64, maxIterations int) (int, error) {
	if !e.Trained() {
		return 0, ErrNotTrained
	}
	params := e.kernel.Differentiable()
	saved := make([]float64, len(params))
	for i, p := range params {
		saved[i], _ = e.kernel.Param(p)
	}
	restore := func() {
		for i, p := range params {
			_ = e.kernel.SetParam(p, saved[i])
		}
	}

	maxDelta := math.Inf(1)
	iterations := 0
	for maxDelta > cutoff && iterations < maxIterations {
		iterations++
		maxDelta = 0

		_, covInv, alpha, err := fit(e.kernel, e.data, e.labels)
		if err != nil {
			restore()
			return iterations, err
		}
		next := make([]float64, len(params))
		for i, p := range params {
			delta, err := dLikelihood(e.kernel, e.data, covInv, alpha, p)
			if err != nil {
				restore()
				return iterations, err
			}
			maxDelta = math.Max(maxDelta, math.Abs(delta))
			cur, _ := e.kernel.Param(p)
			next[i] = cur - delta*gamma
		}
		for i, p := range params {
			_ = e.kernel.SetParam(p, next[i])
		}
	}

	if err := e.Train(e.data, e.labels); err != nil {
		restore()
		return iterations, fmt.Errorf("refit after gradient descent: %w", err)
	}
	return iterations, nil
}
