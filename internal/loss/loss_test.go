package loss

import (
	"math"
	"testing"

	"github.com/convkit/convkit/internal/tensor"
)

func TestSoftmaxCrossEntropyUniformLogits(t *testing.T) {
	// Equal logits give a uniform softmax, so the loss is log(classes).
	pred := tensor.Zeros(2, 4)
	target := tensor.New([]float64{
		1, 0, 0, 0,
		0, 0, 1, 0,
	}, 2, 4)

	got := SoftmaxCrossEntropy{}.Forward(pred, target)
	want := math.Log(4)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("loss = %v, expected log(4) = %v", got, want)
	}
}

func TestSoftmaxCrossEntropyShiftInvariant(t *testing.T) {
	// Adding a constant to every logit of a row must not change the loss.
	pred := tensor.New([]float64{1, 2, 3}, 1, 3)
	shifted := tensor.New([]float64{1001, 1002, 1003}, 1, 3)
	target := tensor.New([]float64{0, 1, 0}, 1, 3)

	a := SoftmaxCrossEntropy{}.Forward(pred, target)
	b := SoftmaxCrossEntropy{}.Forward(shifted, target)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("loss changed under logit shift: %v vs %v", a, b)
	}
	if math.IsInf(b, 0) || math.IsNaN(b) {
		t.Errorf("large logits overflowed: %v", b)
	}
}

func TestSoftmaxCrossEntropyGradient(t *testing.T) {
	pred := tensor.New([]float64{
		0.2, -1.3, 0.8,
		2.0, 0.0, -0.5,
	}, 2, 3)
	target := tensor.New([]float64{
		0, 0, 1,
		1, 0, 0,
	}, 2, 3)

	grad := SoftmaxCrossEntropy{}.Backward(pred, target)
	gradData := grad.Data()

	// Check against central finite differences of Forward.
	predData := pred.Data()
	const eps = 1e-6
	for i := range predData {
		orig := predData[i]
		predData[i] = orig + eps
		lp := SoftmaxCrossEntropy{}.Forward(pred, target)
		predData[i] = orig - eps
		lm := SoftmaxCrossEntropy{}.Forward(pred, target)
		predData[i] = orig
		want := (lp - lm) / (2 * eps)
		if math.Abs(gradData[i]-want) > 1e-6 {
			t.Fatalf("gradient[%d] = %v, finite difference %v", i, gradData[i], want)
		}
	}

	// Each row of softmax-minus-onehot sums to zero, scaled rows included.
	for i := 0; i < 2; i++ {
		sum := gradData[i*3] + gradData[i*3+1] + gradData[i*3+2]
		if math.Abs(sum) > 1e-12 {
			t.Errorf("gradient row %d sums to %v, expected 0", i, sum)
		}
	}
}

func TestMSEForward(t *testing.T) {
	pred := tensor.New([]float64{1, 2, 3, 4}, 2, 2)
	target := tensor.New([]float64{1, 0, 3, 6}, 2, 2)

	// 0.5 * ((2-0)^2 + (4-6)^2) / 2 = 2
	got := MSE{}.Forward(pred, target)
	if math.Abs(got-2) > 1e-12 {
		t.Errorf("loss = %v, expected 2", got)
	}
	if (MSE{}).Forward(pred, pred) != 0 {
		t.Error("loss of a perfect prediction is not zero")
	}
}

func TestMSEGradient(t *testing.T) {
	pred := tensor.New([]float64{1, 2, 3, 4}, 2, 2)
	target := tensor.New([]float64{0, 2, 4, 4}, 2, 2)

	grad := MSE{}.Backward(pred, target)
	expected := tensor.New([]float64{0.5, 0, -0.5, 0}, 2, 2)
	if !grad.EqualApprox(expected, 1e-12) {
		t.Errorf("gradient = %v, expected %v", grad.Data(), expected.Data())
	}
}

func TestLossPanicsOnShapeMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("mismatched shapes did not panic")
		}
	}()
	MSE{}.Forward(tensor.Zeros(2, 3), tensor.Zeros(3, 2))
}
