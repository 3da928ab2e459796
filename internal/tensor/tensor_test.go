package tensor

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewAndIndexing(t *testing.T) {
	x := New([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	if x.Rank() != 2 || x.Dim(0) != 2 || x.Dim(1) != 3 || x.Size() != 6 {
		t.Fatalf("shape accessors inconsistent: %v, size %d", x.Shape(), x.Size())
	}
	if got := x.At(1, 2); got != 6 {
		t.Errorf("At(1,2) = %v, expected 6", got)
	}
	x.Set(-1, 0, 1)
	if got := x.At(0, 1); got != -1 {
		t.Errorf("Set did not store: At(0,1) = %v", got)
	}
}

func TestNewPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New with mismatched data length did not panic")
		}
	}()
	New([]float64{1, 2, 3}, 2, 2)
}

func TestRank4RowMajorLayout(t *testing.T) {
	// (N,H,W,C) layout: channels vary fastest, then width, height, batch.
	x := Zeros(2, 2, 2, 3)
	x.Set(7, 1, 0, 1, 2)
	flat := ((1*2+0)*2+1)*3 + 2
	if x.Data()[flat] != 7 {
		t.Errorf("element (1,0,1,2) not at flat offset %d", flat)
	}
}

func TestReshapeSharesStorage(t *testing.T) {
	x := Zeros(2, 3, 4)
	y := x.Reshape(6, 4)
	y.Set(5, 0, 0)
	if x.At(0, 0, 0) != 5 {
		t.Error("reshape did not share storage")
	}

	defer func() {
		if recover() == nil {
			t.Error("reshape to a different volume did not panic")
		}
	}()
	x.Reshape(5, 5)
}

func TestCloneIsDeep(t *testing.T) {
	x := New([]float64{1, 2}, 1, 2)
	y := x.Clone()
	y.Set(9, 0, 0)
	if x.At(0, 0) != 1 {
		t.Error("clone shares storage with the original")
	}
}

func TestApplyAndMul(t *testing.T) {
	x := New([]float64{1, -2, 3}, 1, 3)
	doubled := x.Apply(func(v float64) float64 { return 2 * v })
	if !doubled.EqualApprox(New([]float64{2, -4, 6}, 1, 3), 0) {
		t.Errorf("Apply = %v", doubled.Data())
	}

	prod := x.Mul(New([]float64{2, 2, 0}, 1, 3))
	if !prod.EqualApprox(New([]float64{2, -4, 0}, 1, 3), 0) {
		t.Errorf("Mul = %v", prod.Data())
	}
	if x.Data()[0] != 1 {
		t.Error("Apply or Mul mutated the receiver")
	}
}

func TestMatrixViewSharesStorage(t *testing.T) {
	x := New([]float64{1, 2, 3, 4}, 2, 2)
	m := x.Matrix()
	m.Set(0, 0, 42)
	if x.At(0, 0) != 42 {
		t.Error("matrix view did not share storage")
	}
}

func TestFromMatrix(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	x := FromMatrix(m)
	if x.Rank() != 2 || x.Dim(0) != 2 || x.Dim(1) != 3 {
		t.Fatalf("FromMatrix shape %v, expected [2 3]", x.Shape())
	}
	if x.At(1, 2) != 6 {
		t.Errorf("FromMatrix At(1,2) = %v, expected 6", x.At(1, 2))
	}

	// A column slice has a stride wider than its width; the copy path must
	// still produce contiguous row-major data.
	sub := m.Slice(0, 2, 0, 2).(*mat.Dense)
	y := FromMatrix(sub)
	expected := New([]float64{1, 2, 4, 5}, 2, 2)
	if !y.EqualApprox(expected, 0) {
		t.Errorf("FromMatrix of strided view = %v, expected %v", y.Data(), expected.Data())
	}
}

func TestEqualApprox(t *testing.T) {
	a := New([]float64{1, 2}, 1, 2)
	b := New([]float64{1, 2 + 1e-9}, 1, 2)
	if !a.EqualApprox(b, 1e-8) {
		t.Error("values within tolerance reported unequal")
	}
	if a.EqualApprox(b, 1e-10) {
		t.Error("values beyond tolerance reported equal")
	}
	if a.EqualApprox(New([]float64{1, 2}, 2, 1), math.Inf(1)) {
		t.Error("shape mismatch reported equal")
	}
}
