package net

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/layer"
	"github.com/convkit/convkit/internal/loss"
	"github.com/convkit/convkit/internal/opt"
	"github.com/convkit/convkit/internal/tensor"
)

// Model couples a network with a loss function and an optimizer, mirroring
// the train step: forward, backward, apply gradients.
type Model struct {
	Net  *Network
	Loss loss.Loss
	Opt  opt.Optimizer
}

// NewModel creates a model.
func NewModel(net *Network, l loss.Loss, optimizer opt.Optimizer) *Model {
	return &Model{Net: net, Loss: l, Opt: optimizer}
}

// Forward runs the input through the network.
func (m *Model) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return m.Net.Forward(x)
}

// Backward scores pred against target, pushes the loss gradient back through
// the network, and returns the scalar loss. Layer gradients are left in
// place for ApplyGrads.
func (m *Model) Backward(pred, target *tensor.Tensor) (float64, error) {
	l := m.Loss.Forward(pred, target)
	if _, err := m.Net.Backward(m.Loss.Backward(pred, target)); err != nil {
		return 0, err
	}
	return l, nil
}

// ApplyGrads lets the optimizer update every parameterized layer in place
// from the gradients the last Backward produced.
func (m *Model) ApplyGrads() {
	for _, l := range m.Net.Layers() {
		params := l.Params()
		if params == nil {
			continue
		}
		m.Opt.Step(params, l.Grads())
	}
}

// SetPhase fans the phase switch out to the network.
func (m *Model) SetPhase(p layer.Phase) {
	m.Net.SetPhase(p)
}

// savedTensor and savedLayer are the gob snapshot schema. Only parameter
// values travel; architecture is reconstructed by the caller and parameters
// are re-attached by position, name and shape.
type savedTensor struct {
	Shape []int
	Data  []float64
}

type savedLayer struct {
	Name   string
	Params map[string]savedTensor
}

type snapshot struct {
	Loss   string
	Layers []savedLayer
}

// Save writes the model's parameters to path using gob encoding.
func (m *Model) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create snapshot file")
	}
	defer file.Close()

	snap := snapshot{Loss: m.Loss.Name()}
	for _, l := range m.Net.Layers() {
		sl := savedLayer{Name: l.Name()}
		if params := l.Params(); params != nil {
			sl.Params = make(map[string]savedTensor, len(params))
			for name, t := range params {
				sl.Params[name] = savedTensor{Shape: t.Shape(), Data: append([]float64(nil), t.Data()...)}
			}
		}
		snap.Layers = append(snap.Layers, sl)
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	return nil
}

// Load restores parameters from a snapshot written by Save into the model's
// current layer stack. The stack must match the snapshot layer for layer;
// parameters are restored by shape-matching assignment.
func (m *Model) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open snapshot file")
	}
	defer file.Close()

	var snap snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return errors.Wrap(err, "decode snapshot")
	}

	layers := m.Net.Layers()
	if len(snap.Layers) != len(layers) {
		return errors.Errorf("snapshot has %d layers, network has %d", len(snap.Layers), len(layers))
	}
	for i, sl := range snap.Layers {
		l := layers[i]
		if sl.Name != l.Name() {
			return errors.Errorf("snapshot layer %d is %q, network layer is %q", i, sl.Name, l.Name())
		}
		if len(sl.Params) == 0 {
			continue
		}
		restorer, ok := l.(layer.Restorer)
		if !ok {
			return errors.Errorf("layer %d (%s) carries parameters but cannot restore them", i, l.Name())
		}
		params := make(map[string]*tensor.Tensor, len(sl.Params))
		for name, st := range sl.Params {
			params[name] = tensor.New(st.Data, st.Shape...)
		}
		if err := restorer.Restore(params); err != nil {
			return errors.Wrapf(err, "restore layer %d (%s)", i, l.Name())
		}
	}
	return nil
}
