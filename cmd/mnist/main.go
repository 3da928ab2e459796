// Command mnist trains an MNIST classifier, either a small MLP or a
// LeNet-style CNN, and reports test accuracy each epoch.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/schollz/progressbar/v3"
	xrand "golang.org/x/exp/rand"

	"github.com/convkit/convkit/internal/data"
	"github.com/convkit/convkit/internal/initializer"
	"github.com/convkit/convkit/internal/layer"
	"github.com/convkit/convkit/internal/loss"
	"github.com/convkit/convkit/internal/metric"
	"github.com/convkit/convkit/internal/net"
	"github.com/convkit/convkit/internal/opt"
	"github.com/convkit/convkit/internal/tensor"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "directory containing the MNIST IDX files")
	modelType := flag.String("model-type", "cnn", "model architecture: mlp or cnn")
	modelPath := flag.String("model", "", "load a snapshot and evaluate instead of training")
	savePath := flag.String("save", "mnist.gob", "where to save the trained snapshot")
	epochs := flag.Int("epochs", 10, "number of training epochs")
	lr := flag.Float64("lr", 1e-3, "learning rate")
	batchSize := flag.Int("batch-size", 128, "training batch size")
	seed := flag.Int64("seed", -1, "random seed, negative for time-based")
	flag.Parse()

	if *seed < 0 {
		*seed = time.Now().UnixNano()
	}

	train, test, err := data.LoadMNIST(*dataDir)
	if err != nil {
		log.Fatalf("load MNIST: %v", err)
	}
	fmt.Printf("MNIST: %d train samples, %d test samples\n", train.Len(), test.Len())

	network, inputShaper, err := buildNetwork(*modelType, *seed)
	if err != nil {
		log.Fatalf("build network: %v", err)
	}
	model := net.NewModel(network, loss.SoftmaxCrossEntropy{}, opt.NewAdam(*lr))

	if *modelPath != "" {
		if err := model.Load(*modelPath); err != nil {
			log.Fatalf("load model: %v", err)
		}
		acc, correct := evaluate(model, test, inputShaper)
		fmt.Printf("accuracy: %.4f (%d/%d)\n", acc, correct, test.Len())
		return
	}

	iterator, err := data.NewBatchIterator(*batchSize, true, rand.NewSource(*seed))
	if err != nil {
		log.Fatalf("batch iterator: %v", err)
	}

	for epoch := 0; epoch < *epochs; epoch++ {
		start := time.Now()
		model.SetPhase(layer.PhaseTrain)

		batches := iterator.Batches(train)
		bar := progressbar.Default(int64(len(batches)), fmt.Sprintf("epoch %d", epoch))
		var epochLoss float64
		for _, batch := range batches {
			pred, err := model.Forward(inputShaper(batch.Inputs))
			if err != nil {
				log.Fatalf("forward: %v", err)
			}
			// Losses consume rank-2 predictions regardless of architecture.
			l, err := model.Backward(pred.Reshape(batch.Inputs.Dim(0), 10), batch.Targets)
			if err != nil {
				log.Fatalf("backward: %v", err)
			}
			model.ApplyGrads()
			epochLoss += l
			_ = bar.Add(1)
		}

		acc, correct := evaluate(model, test, inputShaper)
		fmt.Printf("epoch %d: loss=%.4f accuracy=%.4f (%d/%d) in %s\n",
			epoch, epochLoss/float64(len(batches)), acc, correct, test.Len(), time.Since(start).Round(time.Millisecond))
	}

	if err := model.Save(*savePath); err != nil {
		log.Fatalf("save model: %v", err)
	}
	fmt.Printf("model saved to %s\n", *savePath)
}

// buildNetwork assembles the requested architecture. The returned shaper
// adapts a flat (N, 784) batch to the network's expected input rank.
func buildNetwork(modelType string, seed int64) (*net.Network, func(*tensor.Tensor) *tensor.Tensor, error) {
	wInit := initializer.XavierUniform(xrand.NewSource(uint64(seed)))
	flat := func(x *tensor.Tensor) *tensor.Tensor { return x }
	image := func(x *tensor.Tensor) *tensor.Tensor { return x.Reshape(x.Dim(0), 28, 28, 1) }

	switch modelType {
	case "mlp":
		d1, err := layer.NewDense(16, 0, layer.WithDenseWeightInit(wInit))
		if err != nil {
			return nil, nil, err
		}
		d2, err := layer.NewDense(10, 0, layer.WithDenseWeightInit(wInit))
		if err != nil {
			return nil, nil, err
		}
		return net.New(layer.NewFlatten(), d1, layer.NewReLU(), d2), flat, nil

	case "cnn":
		// LeNet-5 with activations swapped for ReLU.
		conv1, err := layer.NewConv2D([4]int{5, 5, 1, 6}, [2]int{1, 1}, layer.PadSame, layer.WithKernelInit(wInit))
		if err != nil {
			return nil, nil, err
		}
		pool1, err := layer.NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, layer.PadValid)
		if err != nil {
			return nil, nil, err
		}
		conv2, err := layer.NewConv2D([4]int{5, 5, 6, 16}, [2]int{1, 1}, layer.PadSame, layer.WithKernelInit(wInit))
		if err != nil {
			return nil, nil, err
		}
		pool2, err := layer.NewMaxPool2D([2]int{2, 2}, [2]int{2, 2}, layer.PadValid)
		if err != nil {
			return nil, nil, err
		}
		d1, err := layer.NewDense(120, 0, layer.WithDenseWeightInit(wInit))
		if err != nil {
			return nil, nil, err
		}
		d2, err := layer.NewDense(84, 0, layer.WithDenseWeightInit(wInit))
		if err != nil {
			return nil, nil, err
		}
		d3, err := layer.NewDense(10, 0, layer.WithDenseWeightInit(wInit))
		if err != nil {
			return nil, nil, err
		}
		return net.New(
			conv1, layer.NewReLU(), pool1,
			conv2, layer.NewReLU(), pool2,
			layer.NewFlatten(),
			d1, layer.NewReLU(),
			d2, layer.NewReLU(),
			d3,
		), image, nil

	default:
		return nil, nil, fmt.Errorf("unknown model type %q (want mlp or cnn)", modelType)
	}
}

// evaluate computes test accuracy in evaluation phase, chunked to bound
// memory.
func evaluate(model *net.Model, test *data.Dataset, shape func(*tensor.Tensor) *tensor.Tensor) (float64, int) {
	model.SetPhase(layer.PhaseEval)
	defer model.SetPhase(layer.PhaseTrain)

	iterator, err := data.NewBatchIterator(256, false, nil)
	if err != nil {
		log.Fatalf("batch iterator: %v", err)
	}
	correct := 0
	for _, batch := range iterator.Batches(test) {
		pred, err := model.Forward(shape(batch.Inputs))
		if err != nil {
			log.Fatalf("evaluate: %v", err)
		}
		_, c := metric.Accuracy(pred.Reshape(batch.Inputs.Dim(0), 10), batch.Targets)
		correct += c
	}
	return float64(correct) / float64(test.Len()), correct
}
