// Command xor trains a tiny dense network on the XOR truth table, the
// smallest end-to-end exercise of the toolkit.
package main

import (
	"fmt"
	"log"

	xrand "golang.org/x/exp/rand"

	"github.com/convkit/convkit/internal/initializer"
	"github.com/convkit/convkit/internal/layer"
	"github.com/convkit/convkit/internal/loss"
	"github.com/convkit/convkit/internal/net"
	"github.com/convkit/convkit/internal/opt"
	"github.com/convkit/convkit/internal/tensor"
)

func main() {
	inputs := tensor.New([]float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	}, 4, 2)
	targets := tensor.New([]float64{0, 1, 1, 0}, 4, 1)

	wInit := initializer.XavierUniform(xrand.NewSource(42))
	hidden, err := layer.NewDense(8, 2, layer.WithDenseWeightInit(wInit))
	if err != nil {
		log.Fatal(err)
	}
	out, err := layer.NewDense(1, 8, layer.WithDenseWeightInit(wInit))
	if err != nil {
		log.Fatal(err)
	}

	model := net.NewModel(
		net.New(hidden, layer.NewTanh(), out, layer.NewSigmoid()),
		loss.MSE{},
		opt.NewAdam(0.1),
	)

	for epoch := 0; epoch < 2000; epoch++ {
		pred, err := model.Forward(inputs)
		if err != nil {
			log.Fatalf("forward: %v", err)
		}
		l, err := model.Backward(pred, targets)
		if err != nil {
			log.Fatalf("backward: %v", err)
		}
		model.ApplyGrads()
		if epoch%500 == 0 {
			fmt.Printf("epoch %d: loss=%.6f\n", epoch, l)
		}
	}

	pred, err := model.Forward(inputs)
	if err != nil {
		log.Fatalf("forward: %v", err)
	}
	for i := 0; i < 4; i++ {
		fmt.Printf("%v xor %v -> %.3f (want %v)\n",
			inputs.At(i, 0), inputs.At(i, 1), pred.At(i, 0), targets.At(i, 0))
	}
}
