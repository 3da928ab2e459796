package layer

import (
	"math"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// Activation is an elementwise activation layer. It caches its inputs on
// forward and multiplies the incoming gradient by the derivative at those
// inputs on backward.
type Activation struct {
	base
	fn     func(float64) float64
	deriv  func(float64) float64
	inputs *tensor.Tensor
}

func newActivation(name string, fn, deriv func(float64) float64) *Activation {
	return &Activation{base: newBase(name), fn: fn, deriv: deriv}
}

// Forward applies the activation elementwise.
func (a *Activation) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	a.inputs = x
	return x.Apply(a.fn), nil
}

// Backward multiplies grad by the derivative at the cached inputs.
func (a *Activation) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if a.inputs == nil {
		return nil, errors.Wrapf(ErrState, "%s: backward before forward", a.name)
	}
	if !grad.SameShape(a.inputs) {
		return nil, errors.Wrapf(ErrState, "%s: gradient shape %v, cached input shape %v", a.name, grad.Shape(), a.inputs.Shape())
	}
	return a.inputs.Apply(a.deriv).Mul(grad), nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// NewSigmoid creates a logistic sigmoid activation layer.
func NewSigmoid() *Activation {
	return newActivation("Sigmoid", sigmoid, func(x float64) float64 {
		s := sigmoid(x)
		return s * (1.0 - s)
	})
}

// NewTanh creates a hyperbolic tangent activation layer.
func NewTanh() *Activation {
	return newActivation("Tanh", math.Tanh, func(x float64) float64 {
		t := math.Tanh(x)
		return 1.0 - t*t
	})
}

// NewReLU creates a rectified linear activation layer.
func NewReLU() *Activation {
	return newActivation("ReLU",
		func(x float64) float64 { return math.Max(x, 0) },
		func(x float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

// NewLeakyReLU creates a leaky rectifier with the given negative slope.
func NewLeakyReLU(slope float64) *Activation {
	return newActivation("LeakyReLU",
		func(x float64) float64 {
			if x < 0 {
				return slope * x
			}
			return x
		},
		func(x float64) float64 {
			if x < 0 {
				return slope
			}
			return 1
		})
}

// NewSoftplus creates a softplus activation layer. The forward form
// log(1+exp(-|x|)) + max(x, 0) avoids overflow for large inputs.
func NewSoftplus() *Activation {
	return newActivation("Softplus",
		func(x float64) float64 {
			return math.Log1p(math.Exp(-math.Abs(x))) + math.Max(x, 0)
		},
		sigmoid)
}
