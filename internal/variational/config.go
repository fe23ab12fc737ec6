package variational

import (
	"math"
)

// Config holds the construction-time settings of a Layer. It is copied
// into the layer by New and never changes afterwards.
type Config struct {
	// PriorMean is the mean of the Gaussian prior over weights and biases.
	PriorMean float64 `yaml:"prior_mean"`

	// PriorWeightSD and PriorBiasSD are the prior standard deviations
	// before width and nonlinearity scaling.
	PriorWeightSD float64 `yaml:"prior_weight_sd"`
	PriorBiasSD   float64 `yaml:"prior_bias_sd"`

	// InitSD is the posterior standard deviation every element starts at.
	InitSD float64 `yaml:"init_sd"`

	// MaxSD caps the posterior standard deviation. Nil means no cap.
	MaxSD *float64 `yaml:"max_sd,omitempty"`

	// LocalReparameterization selects ModeLocal for Forward; otherwise
	// Forward samples the weights directly.
	LocalReparameterization bool `yaml:"local_reparameterization"`

	// NonlinearityScale multiplies the prior weight sd, compensating for
	// the variance a downstream nonlinearity removes (e.g. sqrt(2) for ReLU).
	NonlinearityScale float64 `yaml:"nonlinearity_scale"`

	// SqrtWidthScaling divides both prior sds by sqrt(fan-in), where
	// fan-in counts the bias as one extra input.
	SqrtWidthScaling bool `yaml:"sqrt_width_scaling"`
}

// DefaultConfig returns the default configuration: a standard normal
// prior, initial sd 1e-4, no sd cap and local reparameterization.
func DefaultConfig() Config {
	return Config{
		PriorMean:               0,
		PriorWeightSD:           1,
		PriorBiasSD:             1,
		InitSD:                  1e-4,
		LocalReparameterization: true,
		NonlinearityScale:       1,
	}
}

// WithMaxSD returns a copy of c with the sd cap set to sd.
func (c Config) WithMaxSD(sd float64) Config {
	c.MaxSD = &sd
	return c
}

// Validate checks every field. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if !isFinite(c.PriorMean) {
		return configError(ErrInvalidConfig, "prior_mean", "must be finite, got %v", c.PriorMean)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"prior_weight_sd", c.PriorWeightSD},
		{"prior_bias_sd", c.PriorBiasSD},
		{"init_sd", c.InitSD},
		{"nonlinearity_scale", c.NonlinearityScale},
	} {
		if !(f.value > 0) || !isFinite(f.value) {
			return configError(ErrInvalidConfig, f.name, "must be positive and finite, got %v", f.value)
		}
	}
	if c.MaxSD != nil && (!isFinite(*c.MaxSD) || *c.MaxSD < MinSD) {
		return configError(ErrInvalidConfig, "max_sd", "must be finite and at least %g, got %v", MinSD, *c.MaxSD)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
