package layer

import (
	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// Flatten reshapes inputs to rank 2 (batch, features), the bridge between
// convolutional and dense layers. It owns no parameters.
type Flatten struct {
	base
	inputShape []int
}

// NewFlatten creates a flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{base: newBase("Flatten")}
}

// Forward flattens everything after the batch axis.
func (f *Flatten) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() < 2 {
		return nil, errors.Wrapf(ErrInvalidArgument, "flatten: rank-%d input, want rank >= 2", x.Rank())
	}
	f.inputShape = x.Shape()
	features := x.Size() / x.Dim(0)
	return x.Reshape(x.Dim(0), features), nil
}

// Backward restores the gradient to the cached input shape.
func (f *Flatten) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if f.inputShape == nil {
		return nil, errors.Wrap(ErrState, "flatten: backward before forward")
	}
	n := 1
	for _, d := range f.inputShape {
		n *= d
	}
	if grad.Size() != n {
		return nil, errors.Wrapf(ErrState, "flatten: gradient size %d, cached input shape %v", grad.Size(), f.inputShape)
	}
	return grad.Reshape(f.inputShape...), nil
}
