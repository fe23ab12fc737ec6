package variational

import (
	"go.uber.org/zap"

	"github.com/born-ml/bnn/internal/tensor"
)

// InitFromDeterministicParams overwrites the posterior means with the
// "weight" and "bias" entries of params, e.g. the StateDict of a
// pretrained deterministic layer. Raw scales and priors are untouched.
//
// A missing or misshaped "weight" returns ErrShapeMismatch. A missing
// "bias" leaves the bias mean alone; a "bias" given to a layer without
// one returns ErrBiasMismatch. Nothing is written unless every check
// passes.
func (l *Layer[A]) InitFromDeterministicParams(params map[string]*tensor.Tensor) error {
	weight, ok := params["weight"]
	if !ok || weight == nil {
		return configError(ErrShapeMismatch, "weight", "missing from deterministic parameters")
	}
	if want := l.weight.mean().Shape(); !weight.Shape().Equal(want) {
		return configError(ErrShapeMismatch, "weight", "expected %v, got %v", want, weight.Shape())
	}

	bias := params["bias"]
	if bias != nil {
		b, ok := l.bias.gaussian()
		if !ok {
			return configError(ErrBiasMismatch, "bias", "layer has no bias")
		}
		if want := b.mean().Shape(); !bias.Shape().Equal(want) {
			return configError(ErrShapeMismatch, "bias", "expected %v, got %v", want, bias.Shape())
		}
	}

	// Shapes were checked above, CopyFrom cannot fail.
	_ = l.weight.mean().CopyFrom(weight)
	if b, ok := l.bias.gaussian(); ok && bias != nil {
		_ = b.mean().CopyFrom(bias)
	}

	l.logger.Debug("initialized posterior means from deterministic parameters",
		zap.Bool("bias", bias != nil))

	return nil
}
