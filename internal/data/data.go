// Package data provides datasets and batch iteration for training loops.
package data

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/convkit/convkit/internal/tensor"
)

// Dataset pairs inputs with targets along a shared leading sample axis.
type Dataset struct {
	Inputs  *tensor.Tensor
	Targets *tensor.Tensor
}

// NewDataset creates a dataset, checking that inputs and targets agree on
// the number of samples.
func NewDataset(inputs, targets *tensor.Tensor) (*Dataset, error) {
	if inputs.Dim(0) != targets.Dim(0) {
		return nil, errors.Errorf("data: %d input samples but %d targets", inputs.Dim(0), targets.Dim(0))
	}
	return &Dataset{Inputs: inputs, Targets: targets}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return d.Inputs.Dim(0)
}

// Batch is one training batch.
type Batch struct {
	Inputs  *tensor.Tensor
	Targets *tensor.Tensor
}

// BatchIterator splits a dataset into batches, optionally shuffling the
// sample order each pass. A final short batch is emitted rather than
// dropped.
type BatchIterator struct {
	BatchSize int
	Shuffle   bool

	rng *rand.Rand
}

// NewBatchIterator creates an iterator with shuffling driven by src.
// A nil src leaves batches in dataset order even when Shuffle is set.
func NewBatchIterator(batchSize int, shuffle bool, src rand.Source) (*BatchIterator, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("data: batch size %d", batchSize)
	}
	it := &BatchIterator{BatchSize: batchSize, Shuffle: shuffle}
	if src != nil {
		it.rng = rand.New(src)
	}
	return it, nil
}

// Batches returns one pass over the dataset, materializing each batch as a
// copy so layers can treat batch tensors as caller-owned.
func (it *BatchIterator) Batches(d *Dataset) []Batch {
	n := d.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if it.Shuffle && it.rng != nil {
		it.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	inRow := d.Inputs.Size() / n
	targetRow := d.Targets.Size() / n
	inShape := d.Inputs.Shape()
	targetShape := d.Targets.Shape()

	var batches []Batch
	for start := 0; start < n; start += it.BatchSize {
		end := start + it.BatchSize
		if end > n {
			end = n
		}
		size := end - start
		inputs := make([]float64, size*inRow)
		targets := make([]float64, size*targetRow)
		for bi, si := range order[start:end] {
			copy(inputs[bi*inRow:(bi+1)*inRow], d.Inputs.Data()[si*inRow:(si+1)*inRow])
			copy(targets[bi*targetRow:(bi+1)*targetRow], d.Targets.Data()[si*targetRow:(si+1)*targetRow])
		}
		inShape[0], targetShape[0] = size, size
		batches = append(batches, Batch{
			Inputs:  tensor.New(inputs, inShape...),
			Targets: tensor.New(targets, targetShape...),
		})
	}
	return batches
}
