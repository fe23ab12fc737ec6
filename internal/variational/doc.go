// Package variational turns deterministic affine layers into mean-field
// Bayesian layers.
//
// A Layer wraps any nn.Affine (Linear, Conv2D) and places an independent
// Gaussian over every weight and bias element. Each element has a learnable
// mean and a learnable raw scale; the standard deviation is
// clamp(softplus(raw), MinSD, MaxSD). A fixed Gaussian prior of the same
// shape is built at construction and only feeds KLDivergence.
//
// Forward draws one sample of the layer output in one of two modes:
//
//   - ModeLocal (local reparameterization): the output mean x@μ and
//     variance x²@σ² are computed with the wrapped layer's affine map and
//     the output is sampled as mean + ε·sqrt(variance).
//   - ModeDirect: weight and bias are sampled as μ + ε·σ and the wrapped
//     layer is applied to the sample.
//
// Both modes produce draws from the same predictive distribution; the
// local mode gives lower-variance gradient estimates.
//
// The wrapped layer is only ever called through ApplyAffine with
// explicitly passed parameters, so a Layer holds no per-call scratch state
// and concurrent Forward calls on one Layer are safe.
//
// Example:
//
//	base := nn.NewLinear(784, 128, true, cpu.New())
//	layer, err := variational.New(base, variational.DefaultConfig(), variational.WithSeed(1))
//	if err != nil {
//	    return err
//	}
//	out := layer.Forward(x)
//	loss := nll(out, y) + layer.KLDivergence()/float64(datasetSize)
package variational
