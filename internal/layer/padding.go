package layer

import "github.com/pkg/errors"

// PaddingMode names a per-layer padding policy.
type PaddingMode string

const (
	// PadFull pads by kernel_dim-1 on every side, so the feature map is
	// maximal and a single valid pixel at the extreme corner suffices.
	PadFull PaddingMode = "FULL"
	// PadSame keeps the output spatial size (approximately) equal to the
	// input under stride 1.
	PadSame PaddingMode = "SAME"
	// PadValid applies no padding; every kernel unit maps to real input.
	PadValid PaddingMode = "VALID"
)

// convPadding computes the convolution pad amounts (top, bottom, left, right)
// for a kH x kW kernel under the given mode.
//
// SAME pads (kernel_dim-1)/2 on both sides of an axis; an even kernel gets
// one extra pixel on the bottom/right of that axis so the total deficit is
// covered.
func convPadding(kH, kW int, mode PaddingMode) ([4]int, error) {
	switch mode {
	case PadFull:
		return [4]int{kH - 1, kH - 1, kW - 1, kW - 1}, nil
	case PadValid:
		return [4]int{0, 0, 0, 0}, nil
	case PadSame:
		pad := [4]int{(kH - 1) / 2, (kH - 1) / 2, (kW - 1) / 2, (kW - 1) / 2}
		if kH%2 == 0 {
			pad[1]++
		}
		if kW%2 == 0 {
			pad[3]++
		}
		return pad, nil
	default:
		return [4]int{}, errors.Wrapf(ErrInvalidPaddingMode, "convolution padding mode %q", mode)
	}
}

// poolPadding computes pooling pad amounts (top, bottom, left, right), each
// axis independently, for SAME or VALID pooling.
func poolPadding(inH, inW, poolH, poolW, sH, sW int, mode PaddingMode) ([4]int, error) {
	if mode != PadSame && mode != PadValid {
		return [4]int{}, errors.Wrapf(ErrInvalidPaddingMode, "pooling padding mode %q", mode)
	}
	h := poolPadding1D(inH, poolH, sH, mode)
	w := poolPadding1D(inW, poolW, sW, mode)
	return [4]int{h[0], h[1], w[0], w[1]}, nil
}

// poolPadding1D computes the (leading, trailing) pad for one axis.
//
// SAME adds just enough for every stride step to see a full window:
// with remainder r = n mod s, the total is max(p-s, 0) when r is zero and
// max(p, s) - r otherwise. An odd total puts the extra pixel on the
// trailing side.
func poolPadding1D(n, pool, stride int, mode PaddingMode) [2]int {
	total := 0
	if mode == PadSame {
		if r := n % stride; r == 0 {
			total = max(pool-stride, 0)
		} else {
			total = max(pool, stride) - r
		}
	}
	half := total / 2
	if total%2 == 0 {
		return [2]int{half, half}
	}
	return [2]int{half, half + 1}
}
