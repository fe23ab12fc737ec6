package variational

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/tensor"
)

// Layer is a mean-field Gaussian variational wrapper around an affine layer.
//
// The wrapped layer's arithmetic is reused through ApplyAffine; its own
// weight and bias parameters are superseded by the posterior means (New
// repoints them at the mean tensors) and are not reported by Parameters.
type Layer[A nn.Affine] struct {
	base   A
	cfg    Config
	fanIn  int
	weight *gaussianTerm
	bias   affineTerm
	noise  *noiseSource
	logger *zap.Logger
}

// New wraps base in a variational layer.
//
// The posterior mean starts at a copy of base's current weight and bias,
// the posterior sd at cfg.InitSD everywhere. Prior buffers are filled from
// cfg after width and nonlinearity scaling.
//
// Returns a *ConfigurationError if cfg is invalid or base's parameters do
// not have usable shapes.
func New[A nn.Affine](base A, cfg Config, opts ...Option) (*Layer[A], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSD != nil {
		maxSD := *cfg.MaxSD
		cfg.MaxSD = &maxSD
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	weightParam := base.Weight()
	if weightParam == nil || weightParam.Tensor() == nil {
		return nil, configError(ErrShapeMismatch, "weight", "wrapped layer has no weight")
	}
	weightShape := weightParam.Tensor().Shape()
	if len(weightShape) < 2 {
		return nil, configError(ErrShapeMismatch, "weight", "expected [out, in, ...], got %v", weightShape)
	}

	biasParam := base.Bias()
	hasBias := biasParam != nil && biasParam.Tensor() != nil
	if hasBias {
		biasShape := biasParam.Tensor().Shape()
		if !biasShape.Equal(tensor.Shape{weightShape[0]}) {
			return nil, configError(ErrShapeMismatch, "bias", "expected [%d] for weight %v, got %v",
				weightShape[0], weightShape, biasShape)
		}
	}

	fanIn := weightShape.FanIn()
	if hasBias {
		fanIn++
	}

	priorWeightSD, priorBiasSD := cfg.PriorWeightSD, cfg.PriorBiasSD
	if cfg.SqrtWidthScaling {
		width := math.Sqrt(float64(fanIn))
		priorWeightSD /= width
		priorBiasSD /= width
	}
	priorWeightSD *= cfg.NonlinearityScale

	raw := RawScaleFor(cfg.InitSD)

	l := &Layer[A]{
		base:   base,
		cfg:    cfg,
		fanIn:  fanIn,
		weight: newGaussianTerm("weight", weightParam.Tensor(), raw, cfg.PriorMean, priorWeightSD, cfg.MaxSD),
		bias:   noBias{},
		noise:  newNoiseSource(o.sampler),
		logger: o.logger,
	}
	weightParam.SetTensor(l.weight.mean())

	if hasBias {
		bias := newGaussianTerm("bias", biasParam.Tensor(), raw, cfg.PriorMean, priorBiasSD, cfg.MaxSD)
		biasParam.SetTensor(bias.mean())
		l.bias = bias
	}

	l.logger.Debug("variational layer created",
		zap.Stringer("base", stringer{base}),
		zap.Stringer("weight_shape", weightShape),
		zap.Bool("bias", hasBias),
		zap.Int("fan_in", fanIn),
		zap.Float64("prior_weight_sd", priorWeightSD),
		zap.Float64("prior_bias_sd", priorBiasSD),
		zap.Stringer("mode", l.DefaultMode()),
	)

	return l, nil
}

// Base returns the wrapped deterministic layer.
func (l *Layer[A]) Base() A {
	return l.base
}

// Config returns the configuration the layer was built with.
func (l *Layer[A]) Config() Config {
	cfg := l.cfg
	if cfg.MaxSD != nil {
		maxSD := *cfg.MaxSD
		cfg.MaxSD = &maxSD
	}
	return cfg
}

// FanIn returns the input width used for sqrt width scaling: the product
// of the weight dimensions after the first, plus one with a bias.
func (l *Layer[A]) FanIn() int {
	return l.fanIn
}

// HasBias reports whether the layer carries a bias.
func (l *Layer[A]) HasBias() bool {
	_, ok := l.bias.gaussian()
	return ok
}

// Weight returns the posterior weight mean, the layer's effective weight
// outside of a forward pass.
func (l *Layer[A]) Weight() *tensor.Tensor {
	return l.weight.mean()
}

// Bias returns the posterior bias mean, or nil without a bias.
func (l *Layer[A]) Bias() *tensor.Tensor {
	return l.bias.mean()
}

// WeightMean returns the learnable posterior weight mean.
func (l *Layer[A]) WeightMean() *nn.Parameter {
	return l.weight.meanParam
}

// WeightRawScale returns the learnable unconstrained weight scale.
func (l *Layer[A]) WeightRawScale() *nn.Parameter {
	return l.weight.rawScale
}

// BiasMean returns the learnable posterior bias mean, or nil without a bias.
func (l *Layer[A]) BiasMean() *nn.Parameter {
	if b, ok := l.bias.gaussian(); ok {
		return b.meanParam
	}
	return nil
}

// BiasRawScale returns the learnable unconstrained bias scale, or nil
// without a bias.
func (l *Layer[A]) BiasRawScale() *nn.Parameter {
	if b, ok := l.bias.gaussian(); ok {
		return b.rawScale
	}
	return nil
}

// WeightSD returns the effective posterior weight sd,
// clamp(softplus(raw), MinSD, MaxSD).
func (l *Layer[A]) WeightSD() *tensor.Tensor {
	return l.weight.sd()
}

// BiasSD returns the effective posterior bias sd. ok is false without a bias.
func (l *Layer[A]) BiasSD() (sd *tensor.Tensor, ok bool) {
	if b, ok := l.bias.gaussian(); ok {
		return b.sd(), true
	}
	return nil, false
}

// WeightDist returns the posterior over the weight.
func (l *Layer[A]) WeightDist() Normal {
	return l.weight.posterior()
}

// BiasDist returns the posterior over the bias. ok is false without a bias.
func (l *Layer[A]) BiasDist() (dist Normal, ok bool) {
	if b, ok := l.bias.gaussian(); ok {
		return b.posterior(), true
	}
	return Normal{}, false
}

// PriorWeightDist returns the prior over the weight.
func (l *Layer[A]) PriorWeightDist() Normal {
	return l.weight.prior()
}

// PriorBiasDist returns the prior over the bias. ok is false without a bias.
func (l *Layer[A]) PriorBiasDist() (dist Normal, ok bool) {
	if b, ok := l.bias.gaussian(); ok {
		return b.prior(), true
	}
	return Normal{}, false
}

// Parameters returns the trainable parameters: weight mean and raw scale,
// followed by bias mean and raw scale when present.
func (l *Layer[A]) Parameters() []*nn.Parameter {
	return append(l.weight.parameters(), l.bias.parameters()...)
}

// String renders the wrapped layer followed by the prior mean and sd when
// each is the same across all weight and bias elements.
func (l *Layer[A]) String() string {
	s := fmt.Sprintf("Variational(%v", stringer{l.base})

	bias, hasBias := l.bias.gaussian()
	homogeneous := func(w, b *tensor.Tensor) (float64, bool) {
		v := w.Data()[0]
		if !w.AllCloseTo(v, 1e-5, 1e-8) {
			return 0, false
		}
		if hasBias && !b.AllCloseTo(v, 1e-5, 1e-8) {
			return 0, false
		}
		return v, true
	}

	var biasMean, biasSD *tensor.Tensor
	if hasBias {
		biasMean, biasSD = bias.priorMean, bias.priorSD
	}
	if m, ok := homogeneous(l.weight.priorMean, biasMean); ok {
		s += fmt.Sprintf(", prior mean=%.2f", m)
	}
	if sd, ok := homogeneous(l.weight.priorSD, biasSD); ok {
		s += fmt.Sprintf(", prior sd=%.2f", sd)
	}
	return s + ")"
}

// stringer renders values that do not implement fmt.Stringer by type.
type stringer struct{ v any }

func (s stringer) String() string {
	if st, ok := s.v.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", s.v)
}
