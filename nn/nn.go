// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the deterministic layers that variational layers wrap.
//
// Linear and Conv2D implement Affine: besides Forward, they evaluate
// their arithmetic with substituted weight and bias tensors through
// ApplyAffine, which never mutates the layer.
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, true, backend)
//	y := layer.Forward(x)
package nn

import (
	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/tensor"
)

// Module is the common interface of all layers.
type Module = nn.Module

// Affine is a layer computing an affine function of its input in a
// weight tensor and an optional bias.
type Affine = nn.Affine

// Parameter represents a trainable tensor and its accumulated gradient.
type Parameter = nn.Parameter

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Linear represents a fully connected layer, y = x @ W.T + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a new linear layer with Xavier initialization.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, useBias, backend)
}

// Conv2D represents a 2D convolutional layer over NCHW inputs.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer.
//
// Example:
//
//	conv := nn.NewConv2D(1, 32, 3, 3, 1, 1, true, backend) // in=1, out=32, 3x3, stride=1, padding=1
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, backend)
}
