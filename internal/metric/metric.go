// Package metric provides evaluation metrics.
package metric

import (
	"gonum.org/v1/gonum/floats"

	"github.com/convkit/convkit/internal/tensor"
)

// Accuracy compares the argmax of each prediction row against the argmax of
// the corresponding target row and returns the fraction that match along
// with the raw correct count.
func Accuracy(pred, target *tensor.Tensor) (accuracy float64, correct int) {
	batch, classes := pred.Dim(0), pred.Dim(1)
	predData, targetData := pred.Data(), target.Data()
	for i := 0; i < batch; i++ {
		p := floats.MaxIdx(predData[i*classes : (i+1)*classes])
		t := floats.MaxIdx(targetData[i*classes : (i+1)*classes])
		if p == t {
			correct++
		}
	}
	return float64(correct) / float64(batch), correct
}
