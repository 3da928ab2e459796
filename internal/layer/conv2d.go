package layer

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/convkit/convkit/internal/initializer"
	"github.com/convkit/convkit/internal/tensor"
)

// paramState tags whether a lazily initialized layer has created its
// parameters yet. Exactly one initialization ever occurs.
type paramState int

const (
	paramsPending paramState = iota
	paramsReady
)

// Conv2D implements a 2D convolutional layer over rank-4 (N,H,W,C) tensors.
//
// Forward pads the input by edge replication, extracts every kernel-sized
// patch into a flat matrix (the im2col transform), multiplies it by the
// flattened kernel and adds the bias. Backward rebuilds the parameter
// gradients from the cached patch matrix and scatter-accumulates the input
// gradient back through the overlapping receptive fields.
type Conv2D struct {
	base

	// kernel is (kernelH, kernelW, inChannels, outChannels).
	// inChannels may be 0 at construction; it is then taken from the first
	// input, and the parameters are created on that first forward call.
	kernel [4]int
	stride [2]int
	mode   PaddingMode

	wInit initializer.Initializer
	bInit initializer.Initializer

	state  paramState
	params map[string]*tensor.Tensor
	grads  map[string]*tensor.Tensor

	cache *convCache
}

// convCache is the transient forward state backward consumes.
type convCache struct {
	batch            int
	inH, inW, inC    int
	padH, padW       int
	outH, outW, outC int
	kH, kW           int
	sH, sW           int
	pad              [4]int
	patches          *mat.Dense // (batch*outH*outW, kH*kW*inC)
	kernelMat        *mat.Dense // (kH*kW*inC, outC)
}

// ConvOption configures a Conv2D at construction.
type ConvOption func(*Conv2D)

// WithKernelInit overrides the default Xavier-uniform kernel initializer.
func WithKernelInit(init initializer.Initializer) ConvOption {
	return func(c *Conv2D) { c.wInit = init }
}

// WithBiasInit overrides the default all-zero bias initializer.
func WithBiasInit(init initializer.Initializer) ConvOption {
	return func(c *Conv2D) { c.bInit = init }
}

// NewConv2D creates a 2D convolutional layer.
//
// kernel is (kernelH, kernelW, inChannels, outChannels); an inChannels of 0
// defers parameter creation to the first forward call. stride is
// (strideH, strideW). mode is one of PadFull, PadSame, PadValid.
func NewConv2D(kernel [4]int, stride [2]int, mode PaddingMode, opts ...ConvOption) (*Conv2D, error) {
	if kernel[0] <= 0 || kernel[1] <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "conv2d: kernel size %dx%d", kernel[0], kernel[1])
	}
	if kernel[2] < 0 || kernel[3] <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "conv2d: channels in=%d out=%d", kernel[2], kernel[3])
	}
	if stride[0] <= 0 || stride[1] <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "conv2d: stride %dx%d", stride[0], stride[1])
	}
	if mode != PadFull && mode != PadSame && mode != PadValid {
		return nil, errors.Wrapf(ErrInvalidPaddingMode, "conv2d: padding mode %q", mode)
	}

	c := &Conv2D{
		base:   newBase("Conv2D"),
		kernel: kernel,
		stride: stride,
		mode:   mode,
		wInit:  initializer.XavierUniform(nil),
		bInit:  initializer.Zeros(),
		state:  paramsPending,
	}
	for _, opt := range opts {
		opt(c)
	}
	if kernel[2] > 0 {
		c.initParams(kernel[2])
	}
	return c, nil
}

// initParams creates the kernel and bias tensors exactly once. Later forward
// calls reuse them regardless of channel-count mismatch; that lazy-once
// behavior is a documented limitation, not a bug to fix.
func (c *Conv2D) initParams(inC int) {
	c.kernel[2] = inC
	c.params = map[string]*tensor.Tensor{
		"w": c.wInit(c.kernel[0], c.kernel[1], c.kernel[2], c.kernel[3]),
		"b": c.bInit(c.kernel[3]),
	}
	c.state = paramsReady
}

// Forward computes the convolution of a rank-4 (N,H,W,C) input, producing a
// rank-4 (N,outH,outW,outChannels) output.
func (c *Conv2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() != 4 {
		return nil, errors.Wrapf(ErrInvalidArgument, "conv2d: rank-%d input, want rank 4 (N,H,W,C)", x.Rank())
	}
	if c.state == paramsPending {
		c.initParams(x.Dim(3))
	}

	kH, kW := c.kernel[0], c.kernel[1]
	sH, sW := c.stride[0], c.stride[1]
	pad, err := convPadding(kH, kW, c.mode)
	if err != nil {
		return nil, err
	}
	padded := padEdge(x, pad)

	n, inH, inW, inC := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	padH, padW := padded.Dim(1), padded.Dim(2)
	outH := (padH-kH)/sH + 1
	outW := (padW-kW)/sW + 1
	outC := c.kernel[3]

	kerLen := kH * kW * inC
	patches := extractPatches(padded, kH, kW, sH, sW, outH, outW)
	kernelMat := mat.NewDense(kerLen, outC, c.params["w"].Data())

	var prod mat.Dense
	prod.Mul(patches, kernelMat)
	out := tensor.FromMatrix(&prod).Reshape(n, outH, outW, outC)

	// Broadcast the per-channel bias over N, outH and outW.
	bias := c.params["b"].Data()
	data := out.Data()
	for i := 0; i < len(data); i += outC {
		for oc := 0; oc < outC; oc++ {
			data[i+oc] += bias[oc]
		}
	}

	c.cache = &convCache{
		batch: n,
		inH:   inH, inW: inW, inC: inC,
		padH: padH, padW: padW,
		outH: outH, outW: outW, outC: outC,
		kH: kH, kW: kW,
		sH: sH, sW: sW,
		pad:       pad,
		patches:   patches,
		kernelMat: kernelMat,
	}
	return out, nil
}

// Backward computes the parameter gradients and the gradient with respect to
// the forward input from grad, the (N,outH,outW,outChannels) gradient of the
// loss with respect to the forward output.
func (c *Conv2D) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	cc := c.cache
	if cc == nil {
		return nil, errors.Wrap(ErrState, "conv2d: backward before forward")
	}
	if grad.Rank() != 4 || grad.Dim(0) != cc.batch || grad.Dim(1) != cc.outH ||
		grad.Dim(2) != cc.outW || grad.Dim(3) != cc.outC {
		return nil, errors.Wrapf(ErrState, "conv2d: gradient shape %v, cached output shape [%d %d %d %d]",
			grad.Shape(), cc.batch, cc.outH, cc.outW, cc.outC)
	}

	rows := cc.batch * cc.outH * cc.outW
	gradMat := mat.NewDense(rows, cc.outC, grad.Data())

	// Weight gradient: patchesᵀ · grad, reshaped to the kernel shape.
	var dw mat.Dense
	dw.Mul(cc.patches.T(), gradMat)

	// Bias gradient: grad summed over batch and spatial axes.
	db := tensor.Zeros(cc.outC)
	dbData := db.Data()
	gradData := grad.Data()
	for i := 0; i < len(gradData); i += cc.outC {
		for oc := 0; oc < cc.outC; oc++ {
			dbData[oc] += gradData[i+oc]
		}
	}

	c.grads = map[string]*tensor.Tensor{
		"w": tensor.FromMatrix(&dw).Reshape(cc.kH, cc.kW, cc.inC, cc.outC),
		"b": db,
	}

	// Propagate through the flattened kernel, then scatter-accumulate each
	// patch gradient back into its receptive field. Overlapping strides and
	// kernels contribute to the same input pixel from multiple output
	// positions, so this must add, never assign: it is the adjoint of the
	// forward gather.
	var dPatches mat.Dense
	dPatches.Mul(gradMat, cc.kernelMat.T())

	buf := tensor.Zeros(cc.batch, cc.padH, cc.padW, cc.inC)
	bufData := buf.Data()
	for b := 0; b < cc.batch; b++ {
		for i := 0; i < cc.outH; i++ {
			for j := 0; j < cc.outW; j++ {
				row := (b*cc.outH+i)*cc.outW + j
				col := 0
				for kh := 0; kh < cc.kH; kh++ {
					dstOff := ((b*cc.padH+i*cc.sH+kh)*cc.padW + j*cc.sW) * cc.inC
					for kw := 0; kw < cc.kW; kw++ {
						for ch := 0; ch < cc.inC; ch++ {
							bufData[dstOff+kw*cc.inC+ch] += dPatches.At(row, col)
							col++
						}
					}
				}
			}
		}
	}

	return cropPad(buf, cc.pad), nil
}

// Params returns the live parameter map, or nil before lazy initialization.
func (c *Conv2D) Params() map[string]*tensor.Tensor { return c.params }

// Grads returns the gradient map from the latest Backward call.
func (c *Conv2D) Grads() map[string]*tensor.Tensor { return c.grads }

// Restore installs snapshot parameters. An uninitialized layer adopts them
// outright (fixing the input channel count); an initialized layer requires
// matching shapes and copies the values in place.
func (c *Conv2D) Restore(params map[string]*tensor.Tensor) error {
	w, b := params["w"], params["b"]
	if w == nil || b == nil {
		return errors.Wrap(ErrInvalidArgument, "conv2d: snapshot missing \"w\" or \"b\"")
	}
	if w.Rank() != 4 || w.Dim(0) != c.kernel[0] || w.Dim(1) != c.kernel[1] || w.Dim(3) != c.kernel[3] {
		return errors.Wrapf(ErrInvalidArgument, "conv2d: snapshot kernel shape %v, layer kernel %v", w.Shape(), c.kernel)
	}
	if c.state == paramsPending {
		c.kernel[2] = w.Dim(2)
		c.params = map[string]*tensor.Tensor{"w": w.Clone(), "b": b.Clone()}
		c.state = paramsReady
		return nil
	}
	if !c.params["w"].SameShape(w) || !c.params["b"].SameShape(b) {
		return errors.Wrapf(ErrInvalidArgument, "conv2d: snapshot shapes w=%v b=%v do not match layer", w.Shape(), b.Shape())
	}
	copy(c.params["w"].Data(), w.Data())
	copy(c.params["b"].Data(), b.Data())
	return nil
}

// OutputSize reports the spatial output size for an input of inH x inW under
// the layer's padding mode and stride.
func (c *Conv2D) OutputSize(inH, inW int) (int, int, error) {
	pad, err := convPadding(c.kernel[0], c.kernel[1], c.mode)
	if err != nil {
		return 0, 0, err
	}
	outH := (inH+pad[0]+pad[1]-c.kernel[0])/c.stride[0] + 1
	outW := (inW+pad[2]+pad[3]-c.kernel[1])/c.stride[1] + 1
	return outH, outW, nil
}
