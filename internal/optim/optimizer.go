// Package optim implements optimization algorithms for variational layers.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers read the gradients accumulated on each nn.Parameter (for
// example by Layer.KLBackward) and update the parameter tensors in place.
//
// Example usage:
//
//	optimizer := optim.NewAdam(layer.Parameters(), optim.AdamConfig{
//	    LR: 0.001,
//	})
//
//	for step := range steps {
//	    optimizer.ZeroGrad()
//	    layer.KLBackward(1 / float64(n))
//	    optimizer.Step()
//	}
package optim

import (
	"github.com/born-ml/bnn/internal/nn"
)

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - Step: Apply gradient updates to parameters
//   - ZeroGrad: Clear gradients before next iteration
//   - GetLR: Get current learning rate (for monitoring/scheduling)
type Optimizer interface {
	// Step applies the accumulated gradient of every parameter.
	// Parameters without a gradient are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	//
	// Gradients accumulate, so this should be called before each
	// backward pass.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// getGradient returns the gradient data of param, or nil if it has none.
func getGradient(param *nn.Parameter) []float64 {
	if param == nil || param.Grad() == nil {
		return nil
	}
	return param.Grad().Data()
}

func zeroGrad(params []*nn.Parameter) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
