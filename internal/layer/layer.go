// Package layer provides neural network layer implementations.
package layer

import (
	"github.com/convkit/convkit/internal/tensor"
)

// Phase selects between training and evaluation behavior.
// Only Dropout-family layers change behavior with the phase; every layer
// accepts the switch for interface uniformity.
type Phase int

const (
	// PhaseTrain enables training-time behavior (dropout masks active).
	PhaseTrain Phase = iota
	// PhaseEval enables inference-time behavior.
	PhaseEval
)

// Layer is a neural network layer.
//
// Forward produces an output tensor from an input tensor and caches whatever
// backward needs. Backward consumes that cache, stores fresh parameter
// gradients retrievable via Grads, and returns the gradient with respect to
// the layer's input. Backward must follow a matching Forward call.
//
// Layers are not safe for concurrent use: the training loop drives one batch
// at a time through the network, sequentially.
type Layer interface {
	Name() string
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
	Backward(grad *tensor.Tensor) (*tensor.Tensor, error)

	// Params returns the live parameter map ("w", "b") or nil for
	// parameterless layers. The optimizer mutates these tensors in place.
	Params() map[string]*tensor.Tensor

	// Grads returns the gradient map produced by the latest Backward call,
	// keyed like Params. Each Backward replaces the previous map.
	Grads() map[string]*tensor.Tensor

	SetPhase(p Phase)
}

// Restorer is implemented by layers whose parameters can be restored from a
// snapshot, installing them if the layer is still uninitialized or assigning
// by shape match otherwise.
type Restorer interface {
	Restore(params map[string]*tensor.Tensor) error
}

// base carries the state shared by every layer implementation.
type base struct {
	name     string
	training bool
}

func newBase(name string) base {
	return base{name: name, training: true}
}

// Name returns the layer's display name.
func (b *base) Name() string { return b.name }

// SetPhase toggles the training flag.
func (b *base) SetPhase(p Phase) { b.training = p == PhaseTrain }

// Params returns nil; layers with parameters override this.
func (b *base) Params() map[string]*tensor.Tensor { return nil }

// Grads returns nil; layers with parameters override this.
func (b *base) Grads() map[string]*tensor.Tensor { return nil }
