package layer

import (
	"math"
	"testing"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

func TestMaxPool2DForwardKnown(t *testing.T) {
	pool, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadValid)
	if err != nil {
		t.Fatalf("NewMaxPool2D: %v", err)
	}

	// 4x4 grid of increasing values; every 2x2 window's maximum sits at its
	// bottom-right corner.
	x := tensor.New([]float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 1, 4, 4, 1)

	out, err := pool.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	expected := tensor.New([]float64{6, 8, 14, 16}, 1, 2, 2, 1)
	if !out.EqualApprox(expected, 0) {
		t.Errorf("output = %v, expected %v", out.Data(), expected.Data())
	}
}

func TestMaxPool2DBackwardRouting(t *testing.T) {
	pool, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadValid)
	if err != nil {
		t.Fatalf("NewMaxPool2D: %v", err)
	}
	x := tensor.New([]float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 1, 4, 4, 1)
	if _, err := pool.Forward(x); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	dx, err := pool.Backward(tensor.Full(1, 1, 2, 2, 1))
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}

	// Each window's gradient lands on its bottom-right cell only.
	expected := tensor.New([]float64{
		0, 0, 0, 0,
		0, 1, 0, 1,
		0, 0, 0, 0,
		0, 1, 0, 1,
	}, 1, 4, 4, 1)
	if !dx.EqualApprox(expected, 0) {
		t.Errorf("input gradient = %v, expected %v", dx.Data(), expected.Data())
	}
}

func TestMaxPool2DFirstMaxTie(t *testing.T) {
	pool, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadValid)
	if err != nil {
		t.Fatalf("NewMaxPool2D: %v", err)
	}
	// Both window values tie at 5; the first occurrence in scan order wins.
	x := tensor.New([]float64{
		5, 5,
		5, 5,
	}, 1, 2, 2, 1)
	if _, err := pool.Forward(x); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	dx, err := pool.Backward(tensor.Full(3, 1, 1, 1, 1))
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	expected := tensor.New([]float64{
		3, 0,
		0, 0,
	}, 1, 2, 2, 1)
	if !dx.EqualApprox(expected, 0) {
		t.Errorf("input gradient = %v, expected gradient at first maximum only", dx.Data())
	}
}

func TestMaxPool2DSameOddInput(t *testing.T) {
	pool, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadSame)
	if err != nil {
		t.Fatalf("NewMaxPool2D: %v", err)
	}
	// A 5x5 input under SAME 2x2/2 pooling pads one trailing row and column.
	x := tensor.Zeros(1, 5, 5, 1)
	for i, d := 0, x.Data(); i < len(d); i++ {
		d[i] = float64(i + 1)
	}
	out, err := pool.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	wantShape := []int{1, 3, 3, 1}
	for i, d := range wantShape {
		if out.Dim(i) != d {
			t.Fatalf("output shape %v, expected %v", out.Shape(), wantShape)
		}
	}
	// The bottom-right window holds only the real corner value 25: the padded
	// zeros never beat it.
	if got := out.At(0, 2, 2, 0); got != 25 {
		t.Errorf("bottom-right output = %v, expected 25", got)
	}

	dx, err := pool.Backward(tensor.Full(1, 1, 3, 3, 1))
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if !dx.SameShape(x) {
		t.Errorf("input gradient shape %v, expected %v", dx.Shape(), x.Shape())
	}
}

func TestMaxPool2DPerChannel(t *testing.T) {
	pool, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadValid)
	if err != nil {
		t.Fatalf("NewMaxPool2D: %v", err)
	}
	// Channel 0 peaks at the top-left, channel 1 at the bottom-right.
	x := tensor.New([]float64{
		9, 0, 1, 0,
		1, 1, 1, 9,
	}, 1, 2, 2, 2)
	out, err := pool.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	expected := tensor.New([]float64{9, 9}, 1, 1, 1, 2)
	if !out.EqualApprox(expected, 0) {
		t.Errorf("output = %v, expected %v", out.Data(), expected.Data())
	}

	dx, err := pool.Backward(tensor.New([]float64{2, 7}, 1, 1, 1, 2))
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	expectedGrad := tensor.New([]float64{
		2, 0, 0, 0,
		0, 0, 0, 7,
	}, 1, 2, 2, 2)
	if !dx.EqualApprox(expectedGrad, 0) {
		t.Errorf("input gradient = %v, expected %v", dx.Data(), expectedGrad.Data())
	}
}

// TestMaxPool2DGradientCheck compares the routed gradient against central
// finite differences of the summed output. Values are spaced well apart so a
// small perturbation never flips a window's maximum.
func TestMaxPool2DGradientCheck(t *testing.T) {
	pool, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadValid)
	if err != nil {
		t.Fatalf("NewMaxPool2D: %v", err)
	}

	x := tensor.Zeros(2, 4, 4, 2)
	xData := x.Data()
	for i := range xData {
		xData[i] = float64((i*7)%64) * 0.3
	}

	loss := func() float64 {
		out, err := pool.Forward(x)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		return sumAll(out)
	}

	out, err := pool.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	dx, err := pool.Backward(tensor.Full(1, out.Shape()...))
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}

	for i := range xData {
		want := numericGrad(loss, xData, i)
		if got := dx.Data()[i]; math.Abs(got-want) > 1e-6 {
			t.Fatalf("input gradient [%d] = %v, finite difference %v", i, got, want)
		}
	}
}

func TestMaxPool2DStateErrors(t *testing.T) {
	pool, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadValid)
	if err != nil {
		t.Fatalf("NewMaxPool2D: %v", err)
	}
	if _, err := pool.Backward(tensor.Zeros(1, 1, 1, 1)); !errors.Is(err, ErrState) {
		t.Errorf("backward before forward returned %v, expected ErrState", err)
	}

	if _, err := pool.Forward(tensor.Zeros(1, 4, 4, 1)); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if _, err := pool.Backward(tensor.Zeros(1, 4, 4, 1)); !errors.Is(err, ErrState) {
		t.Errorf("backward with mismatched gradient shape returned %v, expected ErrState", err)
	}
}

func TestMaxPool2DInvalidConstruction(t *testing.T) {
	if _, err := NewMaxPool2D([2]int{0, 2}, [2]int{2, 2}, PadValid); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero pool height returned %v, expected ErrInvalidArgument", err)
	}
	if _, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 0}, PadValid); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero stride returned %v, expected ErrInvalidArgument", err)
	}
	if _, err := NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, PadFull); !errors.Is(err, ErrInvalidPaddingMode) {
		t.Errorf("FULL pooling returned %v, expected ErrInvalidPaddingMode", err)
	}
}
