package layer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// Dropout randomly zeroes inputs during training with probability
// 1-keepProb, scaling the survivors by 1/keepProb so the expected activation
// is unchanged. During evaluation it is the identity.
type Dropout struct {
	base
	keepProb float64
	rng      *rand.Rand
	mask     *tensor.Tensor
}

// DropoutOption configures a Dropout layer at construction.
type DropoutOption func(*Dropout)

// WithDropoutSource seeds the mask generator, for reproducible training.
func WithDropoutSource(src rand.Source) DropoutOption {
	return func(d *Dropout) { d.rng = rand.New(src) }
}

// NewDropout creates a dropout layer keeping each input with probability
// keepProb, which must lie in (0, 1].
func NewDropout(keepProb float64, opts ...DropoutOption) (*Dropout, error) {
	if keepProb <= 0 || keepProb > 1 {
		return nil, errors.Wrapf(ErrInvalidArgument, "dropout: keep probability %v, want (0, 1]", keepProb)
	}
	d := &Dropout{
		base:     newBase("Dropout"),
		keepProb: keepProb,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return d, nil
}

// Forward applies a fresh dropout mask during training and passes the input
// through unchanged during evaluation.
func (d *Dropout) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if !d.training {
		return x, nil
	}
	mask := tensor.Zeros(x.Shape()...)
	maskData := mask.Data()
	scale := 1.0 / d.keepProb
	for i := range maskData {
		if d.rng.Float64() < d.keepProb {
			maskData[i] = scale
		}
	}
	d.mask = mask
	return x.Mul(mask), nil
}

// Backward applies the cached mask to the gradient. Calling it during
// evaluation is a state error: no mask exists to invert.
func (d *Dropout) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	if !d.training {
		return nil, errors.Wrap(ErrState, "dropout: backward in evaluation phase")
	}
	if d.mask == nil {
		return nil, errors.Wrap(ErrState, "dropout: backward before forward")
	}
	if !grad.SameShape(d.mask) {
		return nil, errors.Wrapf(ErrState, "dropout: gradient shape %v, cached mask shape %v", grad.Shape(), d.mask.Shape())
	}
	return grad.Mul(d.mask), nil
}
