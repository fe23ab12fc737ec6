package variational

import (
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/born-ml/bnn/internal/tensor"
)

// Option configures optional collaborators of a Layer.
type Option func(*options)

type options struct {
	sampler tensor.Sampler
	logger  *zap.Logger
}

func defaultOptions() options {
	return options{
		sampler: standardNormal(nil),
		logger:  zap.NewNop(),
	}
}

// WithSeed draws the layer's noise from a deterministic source seeded
// with seed.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.sampler = standardNormal(rand.NewSource(uint64(seed)))
	}
}

// WithNoise sets the standard-normal sampler the layer draws ε from.
// The sampler must produce N(0, 1) variates; calls to it are serialized.
// A nil sampler is ignored.
func WithNoise(s tensor.Sampler) Option {
	return func(o *options) {
		if s != nil {
			o.sampler = s
		}
	}
}

// WithLogger sets the logger. Layers log at debug level only.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
