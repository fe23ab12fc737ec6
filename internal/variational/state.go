package variational

import (
	"fmt"

	"github.com/born-ml/bnn/internal/tensor"
)

// State dict keys.
const (
	KeyWeightMean      = "weight_mean"
	KeyWeightRawScale  = "weight_raw_scale"
	KeyPriorWeightMean = "prior_weight_mean"
	KeyPriorWeightSD   = "prior_weight_sd"
	KeyBiasMean        = "bias_mean"
	KeyBiasRawScale    = "bias_raw_scale"
	KeyPriorBiasMean   = "prior_bias_mean"
	KeyPriorBiasSD     = "prior_bias_sd"
)

// StateDict returns the posterior parameters and prior buffers keyed by
// name. Posterior entries are the layer's own storage; prior entries are
// copies, since priors never change after construction.
func (l *Layer[A]) StateDict() map[string]*tensor.Tensor {
	sd := map[string]*tensor.Tensor{
		KeyWeightMean:      l.weight.mean(),
		KeyWeightRawScale:  l.weight.rawScale.Tensor(),
		KeyPriorWeightMean: l.weight.priorMean.Clone(),
		KeyPriorWeightSD:   l.weight.priorSD.Clone(),
	}
	if b, ok := l.bias.gaussian(); ok {
		sd[KeyBiasMean] = b.mean()
		sd[KeyBiasRawScale] = b.rawScale.Tensor()
		sd[KeyPriorBiasMean] = b.priorMean.Clone()
		sd[KeyPriorBiasSD] = b.priorSD.Clone()
	}
	return sd
}

// LoadStateDict restores the posterior means and raw scales from sd.
//
// Prior buffers are fixed at construction: prior entries present in sd
// must match the layer's priors or ErrPriorMismatch is returned. Bias
// entries given to a layer without a bias return ErrBiasMismatch. Nothing
// is written unless every check passes. Nil entries count as absent.
func (l *Layer[A]) LoadStateDict(sd map[string]*tensor.Tensor) error {
	type load struct {
		key string
		dst *tensor.Tensor
	}
	loads := []load{
		{KeyWeightMean, l.weight.mean()},
		{KeyWeightRawScale, l.weight.rawScale.Tensor()},
	}
	priors := []load{
		{KeyPriorWeightMean, l.weight.priorMean},
		{KeyPriorWeightSD, l.weight.priorSD},
	}

	if b, ok := l.bias.gaussian(); ok {
		loads = append(loads, load{KeyBiasMean, b.mean()}, load{KeyBiasRawScale, b.rawScale.Tensor()})
		priors = append(priors, load{KeyPriorBiasMean, b.priorMean}, load{KeyPriorBiasSD, b.priorSD})
	} else {
		for _, key := range []string{KeyBiasMean, KeyBiasRawScale, KeyPriorBiasMean, KeyPriorBiasSD} {
			if sd[key] != nil {
				return configError(ErrBiasMismatch, key, "layer has no bias")
			}
		}
	}

	for _, ld := range loads {
		src := sd[ld.key]
		if src == nil {
			return fmt.Errorf("missing %s in state dict", ld.key)
		}
		if !src.Shape().Equal(ld.dst.Shape()) {
			return configError(ErrShapeMismatch, ld.key, "expected %v, got %v", ld.dst.Shape(), src.Shape())
		}
	}
	for _, p := range priors {
		src := sd[p.key]
		if src == nil {
			continue
		}
		if !src.AllClose(p.dst, 1e-5, 1e-8) {
			return configError(ErrPriorMismatch, p.key, "state dict prior differs from the layer's")
		}
	}

	for _, ld := range loads {
		_ = ld.dst.CopyFrom(sd[ld.key])
	}
	return nil
}
