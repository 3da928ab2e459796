// Package convkit re-exports the toolkit's public surface so applications
// can build and train networks from a single import.
package convkit

import (
	"github.com/convkit/convkit/internal/data"
	"github.com/convkit/convkit/internal/initializer"
	"github.com/convkit/convkit/internal/layer"
	"github.com/convkit/convkit/internal/loss"
	"github.com/convkit/convkit/internal/metric"
	"github.com/convkit/convkit/internal/net"
	"github.com/convkit/convkit/internal/opt"
	"github.com/convkit/convkit/internal/tensor"
)

// Re-export common types for easier access.
type (
	Tensor      = tensor.Tensor
	Layer       = layer.Layer
	Phase       = layer.Phase
	PaddingMode = layer.PaddingMode
	Initializer = initializer.Initializer
	Loss        = loss.Loss
	Optimizer   = opt.Optimizer
	Network     = net.Network
	Model       = net.Model
	Dataset     = data.Dataset
	Batch       = data.Batch
)

// Phases and padding modes.
const (
	PhaseTrain = layer.PhaseTrain
	PhaseEval  = layer.PhaseEval

	PadFull  = layer.PadFull
	PadSame  = layer.PadSame
	PadValid = layer.PadValid
)

// Errors.
var (
	ErrInvalidArgument    = layer.ErrInvalidArgument
	ErrInvalidPaddingMode = layer.ErrInvalidPaddingMode
	ErrState              = layer.ErrState
)

// Tensors.
var (
	NewTensor = tensor.New
	Zeros     = tensor.Zeros
	Full      = tensor.Full
)

// Layers.
var (
	NewConv2D    = layer.NewConv2D
	NewMaxPool2D = layer.NewMaxPool2D
	NewDense     = layer.NewDense
	NewFlatten   = layer.NewFlatten
	NewDropout   = layer.NewDropout
	NewSigmoid   = layer.NewSigmoid
	NewTanh      = layer.NewTanh
	NewReLU      = layer.NewReLU
	NewLeakyReLU = layer.NewLeakyReLU
	NewSoftplus  = layer.NewSoftplus
)

// Initializers.
var (
	XavierUniform = initializer.XavierUniform
	HeNormal      = initializer.HeNormal
	ZerosInit     = initializer.Zeros
	OnesInit      = initializer.Ones
	ConstantInit  = initializer.Constant
)

// Network and model construction.
var (
	NewNetwork = net.New
	NewModel   = net.NewModel
)

// Optimizers and schedulers.
var (
	NewSGD    = opt.NewSGD
	NewAdam   = opt.NewAdam
	NewStepLR = opt.NewStepLR
)

// Data pipeline.
var (
	NewDataset       = data.NewDataset
	NewBatchIterator = data.NewBatchIterator
	LoadMNIST        = data.LoadMNIST
)

// Metrics.
var Accuracy = metric.Accuracy

// Losses.
type (
	SoftmaxCrossEntropy = loss.SoftmaxCrossEntropy
	MSE                 = loss.MSE
)
