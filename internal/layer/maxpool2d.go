package layer

import (
	"math"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// MaxPool2D implements 2D max pooling over rank-4 (N,H,W,C) tensors.
//
// The layer owns no parameters. Forward records, for every output cell, the
// flat index of the first maximum within its pooling window; backward routes
// the whole incoming gradient of each cell to exactly that position.
type MaxPool2D struct {
	base

	pool   [2]int
	stride [2]int
	mode   PaddingMode

	cache *poolCache
}

// poolCache is the transient forward state backward consumes.
type poolCache struct {
	batch            int
	inH, inW, inC    int
	padH, padW       int
	outH, outW       int
	pad              [4]int
	// argmax holds, per (n,i,j,c) output cell, the flat index
	// (localRow*poolW + localCol) of the first maximum in that window.
	argmax []int
}

// NewMaxPool2D creates a 2D max-pooling layer. pool is (poolH, poolW),
// stride is (strideH, strideW), mode is PadSame or PadValid.
func NewMaxPool2D(pool [2]int, stride [2]int, mode PaddingMode) (*MaxPool2D, error) {
	if pool[0] <= 0 || pool[1] <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "maxpool2d: pool size %dx%d", pool[0], pool[1])
	}
	if stride[0] <= 0 || stride[1] <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "maxpool2d: stride %dx%d", stride[0], stride[1])
	}
	if mode != PadSame && mode != PadValid {
		return nil, errors.Wrapf(ErrInvalidPaddingMode, "maxpool2d: padding mode %q", mode)
	}
	return &MaxPool2D{
		base:   newBase("MaxPooling2D"),
		pool:   pool,
		stride: stride,
		mode:   mode,
	}, nil
}

// Forward pools a rank-4 (N,H,W,C) input down to (N,outH,outW,C), taking the
// per-channel maximum of every window.
func (m *MaxPool2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() != 4 {
		return nil, errors.Wrapf(ErrInvalidArgument, "maxpool2d: rank-%d input, want rank 4 (N,H,W,C)", x.Rank())
	}
	n, inH, inW, inC := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	pad, err := poolPadding(inH, inW, m.pool[0], m.pool[1], m.stride[0], m.stride[1], m.mode)
	if err != nil {
		return nil, err
	}
	padded := padZero(x, pad)
	padH, padW := padded.Dim(1), padded.Dim(2)

	sH, sW := m.stride[0], m.stride[1]
	poolH, poolW := m.pool[0], m.pool[1]
	outH, outW := padH/sH, padW/sW

	out := tensor.Zeros(n, outH, outW, inC)
	argmax := make([]int, n*outH*outW*inC)
	src := padded.Data()
	dst := out.Data()

	for b := 0; b < n; b++ {
		for i := 0; i < outH; i++ {
			hEnd := i*sH + poolH
			if hEnd > padH {
				hEnd = padH
			}
			for j := 0; j < outW; j++ {
				wEnd := j*sW + poolW
				if wEnd > padW {
					wEnd = padW
				}
				outOff := ((b*outH+i)*outW + j) * inC
				for c := 0; c < inC; c++ {
					maxVal := math.Inf(-1)
					maxIdx := -1
					// Scan in window order so ties resolve to the first
					// (lowest flat index) occurrence.
					for h := i * sH; h < hEnd; h++ {
						for w := j * sW; w < wEnd; w++ {
							v := src[((b*padH+h)*padW+w)*inC+c]
							if v > maxVal {
								maxVal = v
								maxIdx = (h-i*sH)*poolW + (w - j*sW)
							}
						}
					}
					dst[outOff+c] = maxVal
					argmax[outOff+c] = maxIdx
				}
			}
		}
	}

	m.cache = &poolCache{
		batch: n,
		inH:   inH, inW: inW, inC: inC,
		padH: padH, padW: padW,
		outH: outH, outW: outW,
		pad:    pad,
		argmax: argmax,
	}
	return out, nil
}

// Backward routes every output cell's gradient to the single input position
// its argmax identified, leaving the rest of each window at zero.
//
// Window destination regions are written by overwrite, not accumulation:
// with stride >= pool size the regions are disjoint and the distinction is
// moot, and with overlapping windows the later window wins, matching the
// documented source behavior.
func (m *MaxPool2D) Backward(grad *tensor.Tensor) (*tensor.Tensor, error) {
	pc := m.cache
	if pc == nil {
		return nil, errors.Wrap(ErrState, "maxpool2d: backward before forward")
	}
	if grad.Rank() != 4 || grad.Dim(0) != pc.batch || grad.Dim(1) != pc.outH ||
		grad.Dim(2) != pc.outW || grad.Dim(3) != pc.inC {
		return nil, errors.Wrapf(ErrState, "maxpool2d: gradient shape %v, cached output shape [%d %d %d %d]",
			grad.Shape(), pc.batch, pc.outH, pc.outW, pc.inC)
	}

	sH, sW := m.stride[0], m.stride[1]
	poolH, poolW := m.pool[0], m.pool[1]
	buf := tensor.Zeros(pc.batch, pc.padH, pc.padW, pc.inC)
	bufData := buf.Data()
	gradData := grad.Data()

	for b := 0; b < pc.batch; b++ {
		for i := 0; i < pc.outH; i++ {
			hEnd := i*sH + poolH
			if hEnd > pc.padH {
				hEnd = pc.padH
			}
			for j := 0; j < pc.outW; j++ {
				wEnd := j*sW + poolW
				if wEnd > pc.padW {
					wEnd = pc.padW
				}
				// Overwrite the whole destination block first, then place
				// the gradient at the recorded maximum.
				for h := i * sH; h < hEnd; h++ {
					off := ((b*pc.padH+h)*pc.padW + j*sW) * pc.inC
					for k := 0; k < (wEnd-j*sW)*pc.inC; k++ {
						bufData[off+k] = 0
					}
				}
				outOff := ((b*pc.outH+i)*pc.outW + j) * pc.inC
				for c := 0; c < pc.inC; c++ {
					idx := pc.argmax[outOff+c]
					if idx < 0 {
						continue
					}
					h := i*sH + idx/poolW
					w := j*sW + idx%poolW
					bufData[((b*pc.padH+h)*pc.padW+w)*pc.inC+c] = gradData[outOff+c]
				}
			}
		}
	}

	return cropPad(buf, pc.pad), nil
}
