package layer

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/convkit/convkit/internal/initializer"
	"github.com/convkit/convkit/internal/tensor"
)

// Dense is a fully connected layer over rank-2 (batch, features) tensors.
// The input size may be left at 0 and is then taken from the first input.
type Dense struct {
	base

	numIn  int // 0 until known
	numOut int

	wInit initializer.Initializer
	bInit initializer.Initializer

	state  paramState
	params map[string]*tensor.Tensor
	grads  map[string]*tensor.Tensor

	inputs *tensor.Tensor
}

// DenseOption configures a Dense layer at construction.
type DenseOption func(*Dense)

// WithDenseWeightInit overrides the default Xavier-uniform weight initializer.
func WithDenseWeightInit(init initializer.Initializer) DenseOption {
	return func(d *Dense) { d.wInit = init }
}

// WithDenseBiasInit overrides the default all-zero bias initializer.
func WithDenseBiasInit(init initializer.Initializer) DenseOption {
	return func(d *Dense) { d.bInit = init }
}

// NewDense creates a fully connected layer with numOut output features.
// A numIn of 0 defers weight creation to the first forward call.
func NewDense(numOut, numIn int, opts ...DenseOption) (*Dense, error) {
	if numOut <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "dense: output size %d", numOut)
	}
	if numIn < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "dense: input size %d", numIn)
	}
	d := &Dense{
		base:   newBase("Linear"),
		numIn:  numIn,
		numOut: numOut,
		wInit:  initializer.XavierUniform(nil),
		bInit:  initializer.Zeros(),
		state:  paramsPending,
	}
	for _, opt := range opts {
		opt(d)
	}
	if numIn > 0 {
		d.initParams(numIn)
	}
	return d, nil
}

func (d *Dense) initParams(numIn int) {
	d.numIn = numIn
	d.params = map[string]*tensor.Tensor{
		"w": d.wInit(numIn, d.numOut),
		"b": d.bInit(1, d.numOut),
	}
	d.state = paramsReady
}

// Forward computes x·W + b for a rank-2 (batch, features) input.
func (d *Dense) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() != 2 {
		return nil, errors.Wrapf(ErrInvalidArgument, "dense: rank-%d input, want rank 2 (batch, features)", x.Rank())
	}
	if d.state == paramsPending {
		d.initParams(x.Dim(1))
	}
	if x.Dim(1) != d.numIn {
		return nil, errors.Wrapf(ErrInvalidArgument, "dense: input features %d, weights expect %d", x.Dim(1), d.numIn)
	}

	var out mat.Dense
	out.Mul(x.Matrix(), d.params["w"].Matrix())
	result := tensor.FromMatrix(&out)

	bias := d.params["b"].Data()
	data := result.Data()
	for i := 0; i < len(data); i += d.numOut {
		for o := 0; o < d.numOut; o++ {
			data[i+o] += bias[o]
		}
	}

	d.inputs = x
	return result, nil
}

// Backward computes weight and bias gradients from grad and returns the
// gradient with respect to the input.
func (d *Dense) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if d.inputs == nil {
		return nil, errors.Wrap(ErrState, "dense: backward before forward")
	}
	if grad.Rank() != 2 || grad.Dim(0) != d.inputs.Dim(0) || grad.Dim(1) != d.numOut {
		return nil, errors.Wrapf(ErrState, "dense: gradient shape %v, cached output shape [%d %d]",
			grad.Shape(), d.inputs.Dim(0), d.numOut)
	}

	var dw mat.Dense
	dw.Mul(d.inputs.Matrix().T(), grad.Matrix())

	db := tensor.Zeros(1, d.numOut)
	dbData := db.Data()
	gradData := grad.Data()
	for i := 0; i < len(gradData); i += d.numOut {
		for o := 0; o < d.numOut; o++ {
			dbData[o] += gradData[i+o]
		}
	}

	d.grads = map[string]*tensor.Tensor{
		"w": tensor.FromMatrix(&dw),
		"b": db,
	}

	var dx mat.Dense
	dx.Mul(grad.Matrix(), d.params["w"].Matrix().T())
	return tensor.FromMatrix(&dx), nil
}

// Params returns the live parameter map, or nil before lazy initialization.
func (d *Dense) Params() map[string]*tensor.Tensor { return d.params }

// Grads returns the gradient map from the latest Backward call.
func (d *Dense) Grads() map[string]*tensor.Tensor { return d.grads }

// Restore installs snapshot parameters, adopting them if the layer is still
// uninitialized and assigning by shape match otherwise.
func (d *Dense) Restore(params map[string]*tensor.Tensor) error {
	w, b := params["w"], params["b"]
	if w == nil || b == nil {
		return errors.Wrap(ErrInvalidArgument, "dense: snapshot missing \"w\" or \"b\"")
	}
	if w.Rank() != 2 || w.Dim(1) != d.numOut {
		return errors.Wrapf(ErrInvalidArgument, "dense: snapshot weight shape %v, layer output size %d", w.Shape(), d.numOut)
	}
	if d.state == paramsPending {
		d.numIn = w.Dim(0)
		d.params = map[string]*tensor.Tensor{"w": w.Clone(), "b": b.Clone()}
		d.state = paramsReady
		return nil
	}
	if !d.params["w"].SameShape(w) || !d.params["b"].SameShape(b) {
		return errors.Wrapf(ErrInvalidArgument, "dense: snapshot shapes w=%v b=%v do not match layer", w.Shape(), b.Shape())
	}
	copy(d.params["w"].Data(), w.Data())
	copy(d.params["b"].Data(), b.Data())
	return nil
}
