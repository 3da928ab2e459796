package layer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

func TestDropoutEvalIdentity(t *testing.T) {
	d, err := NewDropout(0.5)
	if err != nil {
		t.Fatalf("NewDropout: %v", err)
	}
	d.SetPhase(PhaseEval)

	x := tensor.New([]float64{1, 2, 3, 4}, 2, 2)
	out, err := d.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if out != x {
		t.Error("evaluation forward did not pass the input through unchanged")
	}
}

func TestDropoutTrainMasksAndScales(t *testing.T) {
	const keep = 0.7
	d, err := NewDropout(keep, WithDropoutSource(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("NewDropout: %v", err)
	}

	x := tensor.Full(1, 100, 10)
	out, err := d.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	kept := 0
	for _, v := range out.Data() {
		switch {
		case v == 0:
		case math.Abs(v-1/keep) < 1e-12:
			kept++
		default:
			t.Fatalf("output value %v, expected 0 or %v", v, 1/keep)
		}
	}
	// With 1000 elements the kept fraction concentrates tightly around keep.
	frac := float64(kept) / float64(out.Size())
	if math.Abs(frac-keep) > 0.05 {
		t.Errorf("kept fraction %v, expected about %v", frac, keep)
	}
}

func TestDropoutBackwardReusesMask(t *testing.T) {
	d, err := NewDropout(0.5, WithDropoutSource(rand.NewSource(9)))
	if err != nil {
		t.Fatalf("NewDropout: %v", err)
	}
	x := tensor.Full(1, 4, 8)
	out, err := d.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	dx, err := d.Backward(tensor.Full(1, 4, 8))
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	// The gradient passes exactly where the forward pass did.
	if !dx.EqualApprox(out, 0) {
		t.Error("backward mask differs from the forward mask")
	}
}

func TestDropoutKeepAll(t *testing.T) {
	d, err := NewDropout(1)
	if err != nil {
		t.Fatalf("NewDropout: %v", err)
	}
	x := tensor.New([]float64{1, -2, 3}, 1, 3)
	out, err := d.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if !out.EqualApprox(x, 0) {
		t.Errorf("keepProb 1 output = %v, expected input unchanged", out.Data())
	}
}

func TestDropoutErrors(t *testing.T) {
	if _, err := NewDropout(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("keepProb 0 returned %v, expected ErrInvalidArgument", err)
	}
	if _, err := NewDropout(1.5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("keepProb 1.5 returned %v, expected ErrInvalidArgument", err)
	}

	d, err := NewDropout(0.5)
	if err != nil {
		t.Fatalf("NewDropout: %v", err)
	}
	if _, err := d.Backward(tensor.Zeros(1, 2)); !errors.Is(err, ErrState) {
		t.Errorf("backward before forward returned %v, expected ErrState", err)
	}
	if _, err := d.Forward(tensor.Zeros(1, 2)); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if _, err := d.Backward(tensor.Zeros(2, 2)); !errors.Is(err, ErrState) {
		t.Errorf("backward with mismatched shape returned %v, expected ErrState", err)
	}

	d.SetPhase(PhaseEval)
	if _, err := d.Backward(tensor.Zeros(1, 2)); !errors.Is(err, ErrState) {
		t.Errorf("backward in evaluation phase returned %v, expected ErrState", err)
	}
}
