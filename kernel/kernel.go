// Package kernel provides composable covariance functions over real vectors.
//
// A Kernel is an ordered sum of Components. Each Component owns a parameter
// vector and, for the differentiable parameters, a partial derivative used by
// the likelihood gradient in package regression.
package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidParameter is returned when a gradient is requested for a
// component or parameter that has none.
var ErrInvalidParameter = fmt.Errorf("invalid kernel parameter")

// ParamIndex addresses parameter Param of component Component.
type ParamIndex struct {
	Component int
	Param     int
}

type Kernel struct {
	components []*Component
}

// New composes the given components in order.
func New(components ...*Component) *Kernel {
	return &Kernel{components: append([]*Component(nil), components...)}
}

// Default is the composition used by the cache:
// constant(1) + linear(1) + gaussianNoise(1) + squaredExponential(1, -1).
//
// The lengthscale of -1 is kept as is; it only appears squared.
func Default() *Kernel {
	return New(
		Constant(1),
		Linear(1),
		GaussianNoise(1),
		SquaredExponential(1, -1),
	)
}

// Add returns the sum of the given kernels, flattening their components.
// The components are shared with the operands; Clone first for independence.
func Add(kernels ...*Kernel) *Kernel {
	parts := make([]*Component, 0, len(kernels))
	for _, k := range kernels {
		parts = append(parts, k.components...)
	}
	return &Kernel{components: parts}
}

// Clone deep-copies the kernel and its parameters.
func (k *Kernel) Clone() *Kernel {
	parts := make([]*Component, len(k.components))
	for i, c := range k.components {
		parts[i] = c.clone()
	}
	return &Kernel{components: parts}
}

func (k *Kernel) Components() []*Component {
	return k.components
}

// Value sums the components at (x, y).
func (k *Kernel) Value(x, y []float64) float64 {
	result := 0.0
	for _, c := range k.components {
		result += c.Value(x, y)
	}
	return result
}

// Gradient returns the partial derivative of component i w.r.t. its j-th
// parameter at (x, y).
func (k *Kernel) Gradient(x, y []float64, i, j int) (float64, error) {
	if i < 0 || i >= len(k.components) {
		return 0, fmt.Errorf("%w: component %d of %d", ErrInvalidParameter, i, len(k.components))
	}
	c := k.components[i]
	if j < 0 || j >= len(c.gradients) {
		return 0, fmt.Errorf("%w: %s has no gradient for parameter %d", ErrInvalidParameter, c.Name, j)
	}
	return c.gradients[j](c.Params, x, y), nil
}

// Differentiable lists every (component, parameter) pair with a gradient, in
// component order.
func (k *Kernel) Differentiable() []ParamIndex {
	var idx []ParamIndex
	for i, c := range k.components {
		for j := range c.gradients {
			idx = append(idx, ParamIndex{Component: i, Param: j})
		}
	}
	return idx
}

func (k *Kernel) Param(p ParamIndex) (float64, error) {
	if err := k.checkParam(p); err != nil {
		return 0, err
	}
	return k.components[p.Component].Params[p.Param], nil
}

func (k *Kernel) SetParam(p ParamIndex, v float64) error {
	if err := k.checkParam(p); err != nil {
		return err
	}
	k.components[p.Component].Params[p.Param] = v
	return nil
}

func (k *Kernel) checkParam(p ParamIndex) error {
	if p.Component < 0 || p.Component >= len(k.components) {
		return fmt.Errorf("%w: component %d of %d", ErrInvalidParameter, p.Component, len(k.components))
	}
	if p.Param < 0 || p.Param >= len(k.components[p.Component].Params) {
		return fmt.Errorf("%w: parameter %d of %s", ErrInvalidParameter, p.Param, k.components[p.Component].Name)
	}
	return nil
}

// Matrix returns K with K[i][j] = Value(xs[i], ys[j]). xs and ys must be
// non-empty.
func (k *Kernel) Matrix(xs, ys [][]float64) *mat.Dense {
	m := mat.NewDense(len(xs), len(ys), nil)
	for i, x := range xs {
		for j, y := range ys {
			m.Set(i, j, k.Value(x, y))
		}
	}
	return m
}

// SymMatrix returns the symmetric kernel matrix of xs against itself. xs
// must be non-empty.
func (k *Kernel) SymMatrix(xs [][]float64) *mat.SymDense {
	n := len(xs)
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, k.Value(xs[i], xs[j]))
		}
	}
	return m
}

// GradientMatrix returns dK/dθ for component i parameter j over xs × ys.
func (k *Kernel) GradientMatrix(xs, ys [][]float64, i, j int) (*mat.Dense, error) {
	m := mat.NewDense(len(xs), len(ys), nil)
	for r, x := range xs {
		for c, y := range ys {
			v, err := k.Gradient(x, y, i, j)
			if err != nil {
				return nil, err
			}
			m.Set(r, c, v)
		}
	}
	return m, nil
}
