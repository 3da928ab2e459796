// Package net provides sequential network composition and the training model.
package net

import (
	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/layer"
	"github.com/convkit/convkit/internal/tensor"
)

// Network is a fixed linear sequence of layers. There is no computation
// graph: forward runs the layers in order, backward in reverse.
type Network struct {
	layers []layer.Layer
}

// New creates a network from the given layers.
func New(layers ...layer.Layer) *Network {
	return &Network{layers: layers}
}

// Forward runs x through every layer in order.
func (n *Network) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	curr := x
	for i, l := range n.layers {
		out, err := l.Forward(curr)
		if err != nil {
			return nil, errors.Wrapf(err, "forward through layer %d (%s)", i, l.Name())
		}
		curr = out
	}
	return curr, nil
}

// Backward runs grad through every layer in reverse order, leaving each
// layer's parameter gradients behind for the optimizer.
func (n *Network) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	curr := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		out, err := n.layers[i].Backward(curr)
		if err != nil {
			return nil, errors.Wrapf(err, "backward through layer %d (%s)", i, n.layers[i].Name())
		}
		curr = out
	}
	return curr, nil
}

// SetPhase fans the phase switch out to every layer.
func (n *Network) SetPhase(p layer.Phase) {
	for _, l := range n.layers {
		l.SetPhase(p)
	}
}

// Layers returns the network's ordered layer slice.
func (n *Network) Layers() []layer.Layer {
	return n.layers
}
