package kernel

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ValueFunc evaluates a component (or one of its partial derivatives)
// at (x, y) given the component's current parameters.
type ValueFunc func(params, x, y []float64) float64

// Component is one named term of a Kernel.
//
// Params is mutable; Value and the gradients always read the current values.
// Gradients may be shorter than Params: a parameter without a registered
// derivative (e.g. the noise weight) is not differentiable.
type Component struct {
	Name      string
	Params    []float64
	value     ValueFunc
	gradients []ValueFunc
}

// NewComponent builds a custom component.
func NewComponent(name string, params []float64, value ValueFunc, gradients ...ValueFunc) *Component {
	return &Component{
		Name:      name,
		Params:    append([]float64(nil), params...),
		value:     value,
		gradients: gradients,
	}
}

// Value returns the component's contribution at (x, y).
func (c *Component) Value(x, y []float64) float64 {
	return c.value(c.Params, x, y)
}

// NumGradients returns how many leading parameters are differentiable.
func (c *Component) NumGradients() int {
	return len(c.gradients)
}

func (c *Component) clone() *Component {
	return &Component{
		Name:      c.Name,
		Params:    append([]float64(nil), c.Params...),
		value:     c.value,
		gradients: c.gradients,
	}
}

func constant(_, _ []float64) float64 { return 1 }

func linear(x, y []float64) float64 { return floats.Dot(x, y) }

func gaussianNoise(x, y []float64) float64 {
	if floats.Equal(x, y) {
		return 1
	}
	return 0
}

func squaredDistance(x, y []float64) float64 {
	d := floats.Distance(x, y, 2)
	return d * d
}

func squaredExponential(x, y []float64, l float64) float64 {
	return math.Exp(-squaredDistance(x, y) / (l * l))
}

// matern32 is the Matérn kernel with nu = 3/2.
func matern32(x, y []float64, l float64) float64 {
	d := floats.Distance(x, y, 2)
	a := math.Sqrt(3) * d / l
	return (1 + a) * math.Exp(-a)
}

// Constant returns w * 1.
func Constant(w float64) *Component {
	return NewComponent("constant", []float64{w},
		func(p, x, y []float64) float64 { return p[0] * constant(x, y) },
		func(_, x, y []float64) float64 { return constant(x, y) },
	)
}

// Linear returns w * <x, y>.
func Linear(w float64) *Component {
	return NewComponent("linear", []float64{w},
		func(p, x, y []float64) float64 { return p[0] * linear(x, y) },
		func(_, x, y []float64) float64 { return linear(x, y) },
	)
}

// GaussianNoise returns w when x == y and 0 otherwise. Its weight has no
// derivative.
func GaussianNoise(w float64) *Component {
	return NewComponent("gaussian_noise", []float64{w},
		func(p, x, y []float64) float64 { return p[0] * gaussianNoise(x, y) },
	)
}

// SquaredExponential returns w * exp(-|x-y|^2 / l^2).
func SquaredExponential(w, l float64) *Component {
	return NewComponent("squared_exponential", []float64{w, l},
		func(p, x, y []float64) float64 { return p[0] * squaredExponential(x, y, p[1]) },
		func(p, x, y []float64) float64 { return squaredExponential(x, y, p[1]) },
		func(p, x, y []float64) float64 {
			return 2 * squaredDistance(x, y) * p[0] * squaredExponential(x, y, p[1]) / math.Pow(p[1], 3)
		},
	)
}

// Matern32 returns w * (1 + sqrt(3)d/l) * exp(-sqrt(3)d/l) with d = |x-y|.
func Matern32(w, l float64) *Component {
	return NewComponent("matern32", []float64{w, l},
		func(p, x, y []float64) float64 { return p[0] * matern32(x, y, p[1]) },
		func(p, x, y []float64) float64 { return matern32(x, y, p[1]) },
		func(p, x, y []float64) float64 {
			d := floats.Distance(x, y, 2)
			return 3 * p[0] * d * d * math.Exp(-math.Sqrt(3)*d/p[1]) / math.Pow(p[1], 3)
		},
	)
}
