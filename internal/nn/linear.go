package nn

import (
	"fmt"

	"github.com/born-ml/bnn/internal/tensor"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(784, 128, true, backend)
//	output := layer.Forward(input) // [batch, 128]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features] or nil
	backend     B
}

// NewLinear creates a new Linear layer.
//
// Parameters:
//   - inFeatures: Number of input features
//   - outFeatures: Number of output features
//   - useBias: Whether to include a bias term
//   - backend: Backend to use for tensor operations
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weightShape := tensor.Shape{outFeatures, inFeatures}
	weight := NewParameter("weight", Xavier(inFeatures, outFeatures, weightShape))

	var bias *Parameter
	if useBias {
		bias = NewParameter("bias", Zeros(tensor.Shape{outFeatures}))
	}

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      weight,
		bias:        bias,
		backend:     backend,
	}
}

// Forward computes the output of the linear layer with its own parameters.
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, out_features]
func (l *Linear[B]) Forward(input *tensor.Tensor) *tensor.Tensor {
	var b *tensor.Tensor
	if l.bias != nil {
		b = l.bias.Tensor()
	}
	return l.ApplyAffine(input, l.weight.Tensor(), b)
}

// ApplyAffine computes input @ weight.T + bias without reading or writing
// the layer's parameters. A nil bias skips the bias term.
func (l *Linear[B]) ApplyAffine(input, weight, bias *tensor.Tensor) *tensor.Tensor {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}
	if !weight.Shape().Equal(tensor.Shape{l.outFeatures, l.inFeatures}) {
		panic(fmt.Sprintf("Linear.Forward: weight shape %v, want [%d %d]", weight.Shape(), l.outFeatures, l.inFeatures))
	}

	// [batch, in] @ [in, out] = [batch, out]
	output := l.backend.MatMul(input, weight.Transpose())

	if bias != nil {
		output = output.AddAlong(1, bias)
	}

	return output
}

// Parameters returns the trainable parameters of this layer.
//
// Returns [weight, bias] if bias is present, otherwise [weight].
func (l *Linear[B]) Parameters() []*Parameter {
	if l.bias != nil {
		return []*Parameter{l.weight, l.bias}
	}
	return []*Parameter{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter, or nil if the layer has none.
func (l *Linear[B]) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// String returns a string representation of the layer.
func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, bias=%v)", l.inFeatures, l.outFeatures, l.bias != nil)
}

// StateDict returns a map of parameter names to tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.Tensor {
	return stateDict(l.weight, l.bias)
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear[B]) LoadStateDict(sd map[string]*tensor.Tensor) error {
	return loadStateDict(sd, l.weight, l.bias)
}

func stateDict(weight, bias *Parameter) map[string]*tensor.Tensor {
	sd := map[string]*tensor.Tensor{"weight": weight.Tensor()}
	if bias != nil {
		sd["bias"] = bias.Tensor()
	}
	return sd
}

func loadStateDict(sd map[string]*tensor.Tensor, weight, bias *Parameter) error {
	w, ok := sd["weight"]
	if !ok {
		return fmt.Errorf("missing weight in state dict")
	}
	if err := weight.Tensor().CopyFrom(w); err != nil {
		return fmt.Errorf("weight: %w", err)
	}

	if bias != nil {
		b, ok := sd["bias"]
		if !ok {
			return fmt.Errorf("missing bias in state dict")
		}
		if err := bias.Tensor().CopyFrom(b); err != nil {
			return fmt.Errorf("bias: %w", err)
		}
	}

	return nil
}
