// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package variational provides mean-field Gaussian variational layers.
//
// A variational layer wraps a deterministic affine layer (nn.Linear or
// nn.Conv2D) and replaces its point-estimate weight and bias with
// independent Gaussian posteriors. Each Forward call draws a fresh sample
// of the output, and KLDivergence measures the posterior against a fixed
// Gaussian prior.
//
// Example:
//
//	backend := cpu.New()
//	layer, err := variational.New(nn.NewLinear(4, 3, true, backend), variational.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	y := layer.Forward(x)
//	kl := layer.KLDivergence()
package variational

import (
	"go.uber.org/zap"

	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/tensor"
	"github.com/born-ml/bnn/internal/variational"
)

// Layer is a mean-field Gaussian variational wrapper around an affine layer.
type Layer[A nn.Affine] = variational.Layer[A]

// Config holds the prior and posterior initialization settings.
type Config = variational.Config

// Mode selects how Forward draws its sample.
type Mode = variational.Mode

// Sampling modes.
const (
	ModeLocal  = variational.ModeLocal
	ModeDirect = variational.ModeDirect
)

// Normal is an elementwise diagonal Gaussian.
type Normal = variational.Normal

// Prediction holds the Monte Carlo summary returned by Layer.Predict.
type Prediction = variational.Prediction

// Option configures optional collaborators of a Layer.
type Option = variational.Option

// ConfigurationError reports a malformed configuration or parameter set.
type ConfigurationError = variational.ConfigurationError

// Numerical floors.
const (
	MinSD           = variational.MinSD
	VarianceEpsilon = variational.VarianceEpsilon
)

// State dict keys.
const (
	KeyWeightMean      = variational.KeyWeightMean
	KeyWeightRawScale  = variational.KeyWeightRawScale
	KeyPriorWeightMean = variational.KeyPriorWeightMean
	KeyPriorWeightSD   = variational.KeyPriorWeightSD
	KeyBiasMean        = variational.KeyBiasMean
	KeyBiasRawScale    = variational.KeyBiasRawScale
	KeyPriorBiasMean   = variational.KeyPriorBiasMean
	KeyPriorBiasSD     = variational.KeyPriorBiasSD
)

// Common errors.
var (
	ErrInvalidConfig = variational.ErrInvalidConfig
	ErrShapeMismatch = variational.ErrShapeMismatch
	ErrBiasMismatch  = variational.ErrBiasMismatch
	ErrPriorMismatch = variational.ErrPriorMismatch
)

// New wraps base in a variational layer. See variational.Layer.
func New[A nn.Affine](base A, cfg Config, opts ...Option) (*Layer[A], error) {
	return variational.New(base, cfg, opts...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return variational.DefaultConfig()
}

// WithSeed draws the layer's noise from a deterministic source.
func WithSeed(seed int64) Option {
	return variational.WithSeed(seed)
}

// WithNoise sets the standard-normal sampler the layer draws from.
func WithNoise(s tensor.Sampler) Option {
	return variational.WithNoise(s)
}

// WithLogger sets the layer's logger.
func WithLogger(l *zap.Logger) Option {
	return variational.WithLogger(l)
}

// Softplus returns log(1 + e^x).
func Softplus(x float64) float64 {
	return variational.Softplus(x)
}

// RawScaleFor returns the unconstrained scale whose softplus is sd.
func RawScaleFor(sd float64) float64 {
	return variational.RawScaleFor(sd)
}

// EffectiveSDFrom maps a raw scale to clamp(softplus(raw), MinSD, maxSD).
// A nil maxSD leaves the sd unbounded above.
func EffectiveSDFrom(raw float64, maxSD *float64) float64 {
	return variational.EffectiveSDFrom(raw, maxSD)
}
