// Package opt provides optimization algorithms.
package opt

import (
	"math"

	"github.com/convkit/convkit/internal/tensor"
)

// Optimizer updates a layer's parameters in place from its gradient map.
// Stateful optimizers key their per-parameter state by the parameter tensor
// itself, so the same optimizer instance serves every layer of a network.
type Optimizer interface {
	// Step applies one update. Keys present in grads but not in params are
	// ignored; parameters without a gradient are left untouched.
	Step(params, grads map[string]*tensor.Tensor)

	// LR returns the current learning rate.
	LR() float64

	// SetLR replaces the learning rate; schedulers drive this.
	SetLR(lr float64)
}

// SGD is stochastic gradient descent with optional momentum and weight decay.
type SGD struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64

	velocity map[*tensor.Tensor][]float64
}

// NewSGD creates a plain SGD optimizer.
func NewSGD(lr float64) *SGD {
	return &SGD{LearningRate: lr}
}

// Step applies params -= lr * (grad + weightDecay*param), with a momentum
// buffer when Momentum is non-zero.
func (s *SGD) Step(params, grads map[string]*tensor.Tensor) {
	for name, p := range params {
		g := grads[name]
		if g == nil {
			continue
		}
		pData, gData := p.Data(), g.Data()
		if s.Momentum == 0 {
			for i := range pData {
				pData[i] -= s.LearningRate * (gData[i] + s.WeightDecay*pData[i])
			}
			continue
		}
		if s.velocity == nil {
			s.velocity = make(map[*tensor.Tensor][]float64)
		}
		v := s.velocity[p]
		if v == nil {
			v = make([]float64, len(pData))
			s.velocity[p] = v
		}
		for i := range pData {
			v[i] = s.Momentum*v[i] + gData[i] + s.WeightDecay*pData[i]
			pData[i] -= s.LearningRate * v[i]
		}
	}
}

// LR returns the current learning rate.
func (s *SGD) LR() float64 { return s.LearningRate }

// SetLR replaces the learning rate.
func (s *SGD) SetLR(lr float64) { s.LearningRate = lr }

// Adam is the adaptive moment estimation optimizer (Kingma & Ba, 2014),
// keeping bias-corrected running means of gradients and squared gradients
// per parameter.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	t int
	m map[*tensor.Tensor][]float64
	v map[*tensor.Tensor][]float64
}

// NewAdam creates an Adam optimizer with the conventional defaults
// beta1=0.9, beta2=0.999, epsilon=1e-8.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make(map[*tensor.Tensor][]float64),
		v:            make(map[*tensor.Tensor][]float64),
	}
}

// Step applies one Adam update. The timestep advances once per call, which
// assumes one Step per layer per batch in a fixed order; the bias correction
// only needs the count to grow monotonically.
func (a *Adam) Step(params, grads map[string]*tensor.Tensor) {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for name, p := range params {
		g := grads[name]
		if g == nil {
			continue
		}
		pData, gData := p.Data(), g.Data()
		m := a.m[p]
		if m == nil {
			m = make([]float64, len(pData))
			a.m[p] = m
		}
		v := a.v[p]
		if v == nil {
			v = make([]float64, len(pData))
			a.v[p] = v
		}
		for i := range pData {
			m[i] = a.Beta1*m[i] + (1-a.Beta1)*gData[i]
			v[i] = a.Beta2*v[i] + (1-a.Beta2)*gData[i]*gData[i]
			mHat := m[i] / c1
			vHat := v[i] / c2
			pData[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 { return a.LearningRate }

// SetLR replaces the learning rate.
func (a *Adam) SetLR(lr float64) { a.LearningRate = lr }
