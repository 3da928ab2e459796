// Package initializer provides parameter initialization capabilities.
//
// An Initializer is a function from a shape to a freshly allocated tensor.
// Layers accept initializers at construction and never touch global
// randomness themselves; callers control reproducibility by supplying a
// seeded rand.Source. A nil source falls back to the generator's package
// default.
package initializer

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/convkit/convkit/internal/tensor"
)

// Initializer creates a parameter tensor of the given shape.
type Initializer func(shape ...int) *tensor.Tensor

// fans computes fan-in and fan-out for a parameter shape.
// Rank-2 (in, out) is a dense weight; rank-4 (kH, kW, inC, outC) is a
// convolution kernel where the receptive field multiplies both fans.
func fans(shape []int) (fanIn, fanOut int) {
	switch len(shape) {
	case 2:
		return shape[0], shape[1]
	case 4:
		field := shape[0] * shape[1]
		return field * shape[2], field * shape[3]
	default:
		n := 1
		for _, d := range shape {
			n *= d
		}
		return n, n
	}
}

// XavierUniform returns a Glorot uniform initializer,
// U(-sqrt(6/(fanIn+fanOut)), +sqrt(6/(fanIn+fanOut))).
func XavierUniform(src rand.Source) Initializer {
	return func(shape ...int) *tensor.Tensor {
		fanIn, fanOut := fans(shape)
		bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
		dist := distuv.Uniform{Min: -bound, Max: bound, Src: src}
		return fill(dist.Rand, shape)
	}
}

// HeNormal returns a He (Kaiming) normal initializer,
// N(0, sqrt(2/fanIn)). Suited to ReLU-family activations.
func HeNormal(src rand.Source) Initializer {
	return func(shape ...int) *tensor.Tensor {
		fanIn, _ := fans(shape)
		dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2.0 / float64(fanIn)), Src: src}
		return fill(dist.Rand, shape)
	}
}

// Zeros returns an all-zero initializer, the conventional bias default.
func Zeros() Initializer {
	return func(shape ...int) *tensor.Tensor {
		return tensor.Zeros(shape...)
	}
}

// Ones returns an all-one initializer.
func Ones() Initializer {
	return Constant(1)
}

// Constant returns an initializer filling every element with v.
func Constant(v float64) Initializer {
	return func(shape ...int) *tensor.Tensor {
		return tensor.Full(v, shape...)
	}
}

func fill(next func() float64, shape []int) *tensor.Tensor {
	t := tensor.Zeros(shape...)
	data := t.Data()
	for i := range data {
		data[i] = next()
	}
	return t
}
