package layer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/convkit/convkit/internal/tensor"
)

// padEdge pads the H and W axes of a rank-4 (N,H,W,C) tensor by replicating
// edge values, the fill policy convolution uses. pad is (top, bottom, left,
// right). A zero pad returns a copy, never the input.
func padEdge(x *tensor.Tensor, pad [4]int) *tensor.Tensor {
	n, h, w, c := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	ph, pw := h+pad[0]+pad[1], w+pad[2]+pad[3]
	out := tensor.Zeros(n, ph, pw, c)
	src, dst := x.Data(), out.Data()
	for b := 0; b < n; b++ {
		for i := 0; i < ph; i++ {
			si := clamp(i-pad[0], 0, h-1)
			for j := 0; j < pw; j++ {
				sj := clamp(j-pad[2], 0, w-1)
				srcOff := ((b*h+si)*w + sj) * c
				dstOff := ((b*ph+i)*pw + j) * c
				copy(dst[dstOff:dstOff+c], src[srcOff:srcOff+c])
			}
		}
	}
	return out
}

// padZero pads the H and W axes of a rank-4 (N,H,W,C) tensor with zeros, the
// fill policy pooling uses. Zero-padding ahead of a max can bias results at
// borders when all window values are negative; that is the documented
// behavior, kept as is.
func padZero(x *tensor.Tensor, pad [4]int) *tensor.Tensor {
	n, h, w, c := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	ph, pw := h+pad[0]+pad[1], w+pad[2]+pad[3]
	out := tensor.Zeros(n, ph, pw, c)
	src, dst := x.Data(), out.Data()
	for b := 0; b < n; b++ {
		for i := 0; i < h; i++ {
			srcOff := (b*h + i) * w * c
			dstOff := ((b*ph+i+pad[0])*pw + pad[2]) * c
			copy(dst[dstOff:dstOff+w*c], src[srcOff:srcOff+w*c])
		}
	}
	return out
}

// cropPad removes padding from a rank-4 (N,PH,PW,C) tensor, returning the
// (N,H,W,C) interior given the pad amounts it was built with.
func cropPad(x *tensor.Tensor, pad [4]int) *tensor.Tensor {
	n, ph, pw, c := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	h, w := ph-pad[0]-pad[1], pw-pad[2]-pad[3]
	out := tensor.Zeros(n, h, w, c)
	src, dst := x.Data(), out.Data()
	for b := 0; b < n; b++ {
		for i := 0; i < h; i++ {
			srcOff := ((b*ph+i+pad[0])*pw + pad[2]) * c
			dstOff := (b*h + i) * w * c
			copy(dst[dstOff:dstOff+w*c], src[srcOff:srcOff+w*c])
		}
	}
	return out
}

// extractPatches slides a kH x kW window over a padded (N,PH,PW,C) tensor on
// strides (sH, sW) and lays every patch out flat, producing the
// (N*outH*outW, kH*kW*C) matrix the convolution multiplies against the
// flattened kernel.
//
// Row ordering is batch-leading: row = (n*outH + i)*outW + j for output
// position (i, j) of sample n. Backward reuses this exact ordering when it
// scatters patch gradients back, so the two must never drift apart.
func extractPatches(padded *tensor.Tensor, kH, kW, sH, sW, outH, outW int) *mat.Dense {
	n, ph, pw, c := padded.Dim(0), padded.Dim(1), padded.Dim(2), padded.Dim(3)
	kerLen := kH * kW * c
	out := mat.NewDense(n*outH*outW, kerLen, nil)
	src := padded.Data()
	for b := 0; b < n; b++ {
		for i := 0; i < outH; i++ {
			for j := 0; j < outW; j++ {
				row := (b*outH+i)*outW + j
				col := 0
				for kh := 0; kh < kH; kh++ {
					srcOff := ((b*ph+i*sH+kh)*pw + j*sW) * c
					for kw := 0; kw < kW; kw++ {
						for ch := 0; ch < c; ch++ {
							out.Set(row, col, src[srcOff+kw*c+ch])
							col++
						}
					}
				}
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
