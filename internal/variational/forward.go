package variational

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/bnn/internal/tensor"
)

// Mode selects how Forward draws its sample.
type Mode int

const (
	// ModeLocal samples the output from N(x@μ, x²@σ²) (local
	// reparameterization). Lower-variance gradients; typical for training.
	ModeLocal Mode = iota

	// ModeDirect samples weight and bias, then applies the wrapped layer.
	// Typical for evaluation.
	ModeDirect
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeDirect:
		return "direct"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// DefaultMode returns the mode Forward uses, chosen by
// Config.LocalReparameterization.
func (l *Layer[A]) DefaultMode() Mode {
	if l.cfg.LocalReparameterization {
		return ModeLocal
	}
	return ModeDirect
}

// Forward draws one sample of the layer output for input x.
//
// Each call uses fresh noise. Shape errors from the wrapped layer panic,
// as they do for the wrapped layer's own Forward.
func (l *Layer[A]) Forward(x *tensor.Tensor) *tensor.Tensor {
	return l.ForwardMode(x, l.DefaultMode())
}

// ForwardMode is Forward with an explicit sampling mode.
func (l *Layer[A]) ForwardMode(x *tensor.Tensor, mode Mode) *tensor.Tensor {
	switch mode {
	case ModeLocal:
		return l.forwardLocal(x)
	case ModeDirect:
		return l.forwardDirect(x)
	default:
		panic(fmt.Sprintf("variational: unknown mode %v", mode))
	}
}

// forwardDirect samples W ~ N(μ_W, σ_W²), b ~ N(μ_b, σ_b²) and computes
// the wrapped layer's output with them.
func (l *Layer[A]) forwardDirect(x *tensor.Tensor) *tensor.Tensor {
	weight := l.weight.sample(l.noise)
	bias := l.bias.sample(l.noise)
	return l.base.ApplyAffine(x, weight, bias)
}

// forwardLocal samples a ~ N(x@μ_W + μ_b, x²@σ_W² + σ_b²).
func (l *Layer[A]) forwardLocal(x *tensor.Tensor) *tensor.Tensor {
	mean, variance := l.Moments(x)
	eps := l.noise.normal(mean.Shape())
	return mean.Add(eps.Mul(variance.Sqrt()))
}

// Moments returns the mean and the stabilized variance of the output
// distribution for input x, as used by ModeLocal.
//
// The variance is obtained by running the wrapped layer on x² with the
// posterior variances as parameters, then passed through
// StabilizeVariance.
func (l *Layer[A]) Moments(x *tensor.Tensor) (mean, variance *tensor.Tensor) {
	mean = l.base.ApplyAffine(x, l.weight.mean(), l.bias.mean())
	variance = l.base.ApplyAffine(x.Square(), l.weight.variance(), l.bias.variance())

	if negative := StabilizeVariance(variance.Data()); negative > 0 {
		l.logger.Debug("corrected negative output variance",
			zap.Int("entries", negative),
			zap.Int("total", variance.NumElements()),
		)
	}

	return mean, variance
}
