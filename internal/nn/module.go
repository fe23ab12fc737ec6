// Package nn implements the deterministic building blocks the variational
// layers wrap.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Affine interface: Layers whose output is an affine map of the input
//   - Parameter: Trainable parameters with gradient storage
//   - Linear, Conv2D: The affine layers
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/bnn/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter
}

// Affine is a layer whose output is an affine function of its input,
// parameterized by a weight and an optional bias.
//
// ApplyAffine is the pure entry point: it computes the layer's transform
// with the supplied weight and bias instead of the layer's own, without
// touching any layer state. A nil bias means no bias term. Implementations
// must accept any weight of the layer's weight shape and any bias of the
// layer's bias shape, so callers can substitute means, variances or
// samples for the stored parameters.
//
// Weight returns the layer's weight parameter, dimension 0 being the
// output dimension. Bias returns nil when the layer has no bias.
type Affine interface {
	Module

	ApplyAffine(input, weight, bias *tensor.Tensor) *tensor.Tensor
	Weight() *Parameter
	Bias() *Parameter
}
