package data

import (
	"math/rand"
	"testing"

	"github.com/convkit/convkit/internal/tensor"
)

func sequentialDataset(t *testing.T, n int) *Dataset {
	t.Helper()
	inputs := tensor.Zeros(n, 2)
	targets := tensor.Zeros(n, 1)
	for i := 0; i < n; i++ {
		inputs.Set(float64(i), i, 0)
		inputs.Set(float64(i)+0.5, i, 1)
		targets.Set(float64(i), i, 0)
	}
	d, err := NewDataset(inputs, targets)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return d
}

func TestNewDatasetRejectsMismatch(t *testing.T) {
	if _, err := NewDataset(tensor.Zeros(3, 2), tensor.Zeros(4, 1)); err == nil {
		t.Error("mismatched sample counts did not error")
	}
}

func TestBatchesPartition(t *testing.T) {
	d := sequentialDataset(t, 10)
	it, err := NewBatchIterator(4, false, nil)
	if err != nil {
		t.Fatalf("NewBatchIterator: %v", err)
	}

	batches := it.Batches(d)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, expected 3", len(batches))
	}
	sizes := []int{4, 4, 2}
	for i, b := range batches {
		if b.Inputs.Dim(0) != sizes[i] || b.Targets.Dim(0) != sizes[i] {
			t.Errorf("batch %d has %d samples, expected %d", i, b.Inputs.Dim(0), sizes[i])
		}
	}

	// Without shuffling, samples stay in dataset order and inputs stay paired
	// with their targets.
	next := 0.0
	for _, b := range batches {
		for i := 0; i < b.Inputs.Dim(0); i++ {
			if b.Inputs.At(i, 0) != next || b.Targets.At(i, 0) != next {
				t.Fatalf("sample order broken at %v: input %v, target %v",
					next, b.Inputs.At(i, 0), b.Targets.At(i, 0))
			}
			next++
		}
	}
}

func TestBatchesShuffleKeepsPairs(t *testing.T) {
	d := sequentialDataset(t, 32)
	it, err := NewBatchIterator(8, true, rand.NewSource(99))
	if err != nil {
		t.Fatalf("NewBatchIterator: %v", err)
	}

	seen := make(map[float64]bool)
	for _, b := range it.Batches(d) {
		for i := 0; i < b.Inputs.Dim(0); i++ {
			in, target := b.Inputs.At(i, 0), b.Targets.At(i, 0)
			if in != target {
				t.Fatalf("shuffle separated input %v from target %v", in, target)
			}
			if seen[in] {
				t.Fatalf("sample %v appeared twice in one pass", in)
			}
			seen[in] = true
		}
	}
	if len(seen) != 32 {
		t.Errorf("one pass covered %d samples, expected 32", len(seen))
	}
}

func TestBatchesShuffleDeterministicPerSeed(t *testing.T) {
	d := sequentialDataset(t, 16)

	firstOrder := func(seed int64) []float64 {
		it, err := NewBatchIterator(16, true, rand.NewSource(seed))
		if err != nil {
			t.Fatalf("NewBatchIterator: %v", err)
		}
		return it.Batches(d)[0].Inputs.Data()
	}

	a, b := firstOrder(7), firstOrder(7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical seeds produced different orders")
		}
	}
}

func TestBatchesAreCopies(t *testing.T) {
	d := sequentialDataset(t, 4)
	it, err := NewBatchIterator(2, false, nil)
	if err != nil {
		t.Fatalf("NewBatchIterator: %v", err)
	}
	b := it.Batches(d)[0]
	b.Inputs.Set(-1, 0, 0)
	if d.Inputs.At(0, 0) == -1 {
		t.Error("mutating a batch modified the dataset")
	}
}

func TestNewBatchIteratorRejectsBadSize(t *testing.T) {
	if _, err := NewBatchIterator(0, false, nil); err == nil {
		t.Error("zero batch size did not error")
	}
}
