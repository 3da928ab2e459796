// Package loss provides loss functions for training.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/convkit/convkit/internal/tensor"
)

// Loss scores a rank-2 (batch, outputs) prediction against a target of the
// same shape and produces the gradient of that score with respect to the
// prediction. Both are averaged over the batch.
type Loss interface {
	Name() string
	Forward(pred, target *tensor.Tensor) float64
	Backward(pred, target *tensor.Tensor) *tensor.Tensor
}

func checkShapes(name string, pred, target *tensor.Tensor) {
	if pred.Rank() != 2 || !pred.SameShape(target) {
		panic(fmt.Sprintf("%s: prediction %v and target %v must be matching rank-2 tensors", name, pred.Shape(), target.Shape()))
	}
}

// SoftmaxCrossEntropy combines a softmax over logits with cross entropy
// against one-hot (or soft) targets, the standard classification loss.
type SoftmaxCrossEntropy struct{}

// Name returns the loss identifier used in model snapshots.
func (SoftmaxCrossEntropy) Name() string { return "SoftmaxCrossEntropy" }

// Forward computes the mean negative log-likelihood over the batch.
func (SoftmaxCrossEntropy) Forward(pred, target *tensor.Tensor) float64 {
	checkShapes("softmax cross entropy", pred, target)
	batch, classes := pred.Dim(0), pred.Dim(1)
	predData, targetData := pred.Data(), target.Data()

	var nll float64
	for i := 0; i < batch; i++ {
		row := predData[i*classes : (i+1)*classes]
		lse := floats.LogSumExp(row)
		for j, t := range targetData[i*classes : (i+1)*classes] {
			if t != 0 {
				nll -= t * (row[j] - lse)
			}
		}
	}
	return nll / float64(batch)
}

// Backward computes (softmax(pred) - target) / batch.
func (SoftmaxCrossEntropy) Backward(pred, target *tensor.Tensor) *tensor.Tensor {
	checkShapes("softmax cross entropy", pred, target)
	batch, classes := pred.Dim(0), pred.Dim(1)
	predData, targetData := pred.Data(), target.Data()

	grad := tensor.Zeros(batch, classes)
	gradData := grad.Data()
	inv := 1.0 / float64(batch)
	for i := 0; i < batch; i++ {
		row := predData[i*classes : (i+1)*classes]
		lse := floats.LogSumExp(row)
		for j := 0; j < classes; j++ {
			p := math.Exp(row[j] - lse)
			gradData[i*classes+j] = (p - targetData[i*classes+j]) * inv
		}
	}
	return grad
}

// MSE is the half mean squared error, 0.5*sum((pred-target)^2)/batch, whose
// gradient is simply (pred-target)/batch.
type MSE struct{}

// Name returns the loss identifier used in model snapshots.
func (MSE) Name() string { return "MSE" }

// Forward computes the half mean squared error over the batch.
func (MSE) Forward(pred, target *tensor.Tensor) float64 {
	checkShapes("mse", pred, target)
	predData, targetData := pred.Data(), target.Data()
	var sum float64
	for i := range predData {
		diff := predData[i] - targetData[i]
		sum += diff * diff
	}
	return 0.5 * sum / float64(pred.Dim(0))
}

// Backward computes (pred - target) / batch.
func (MSE) Backward(pred, target *tensor.Tensor) *tensor.Tensor {
	checkShapes("mse", pred, target)
	grad := tensor.Zeros(pred.Dim(0), pred.Dim(1))
	gradData, predData, targetData := grad.Data(), pred.Data(), target.Data()
	inv := 1.0 / float64(pred.Dim(0))
	for i := range gradData {
		gradData[i] = (predData[i] - targetData[i]) * inv
	}
	return grad
}
