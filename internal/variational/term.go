package variational

import (
	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/tensor"
)

// affineTerm is the posterior and prior of one parameter tensor of the
// wrapped layer. The bias is either a *gaussianTerm or noBias, decided
// once in New; methods of noBias return nil tensors, which ApplyAffine
// treats as "no bias", so call sites never test for presence.
type affineTerm interface {
	mean() *tensor.Tensor
	variance() *tensor.Tensor
	sample(noise *noiseSource) *tensor.Tensor
	kl() float64
	klBackward(scale float64)
	parameters() []*nn.Parameter
	gaussian() (*gaussianTerm, bool)
}

// gaussianTerm holds a learnable mean/raw-scale pair and its prior buffers.
type gaussianTerm struct {
	meanParam *nn.Parameter
	rawScale  *nn.Parameter
	priorMean *tensor.Tensor
	priorSD   *tensor.Tensor
	maxSD     *float64
}

// newGaussianTerm clones init as the posterior mean and fills the raw
// scale and prior buffers with scalars.
func newGaussianTerm(name string, init *tensor.Tensor, raw, priorMean, priorSD float64, maxSD *float64) *gaussianTerm {
	return &gaussianTerm{
		meanParam: nn.NewParameter(name+"_mean", init.Clone()),
		rawScale:  nn.NewParameter(name+"_raw_scale", tensor.FullLike(init, raw)),
		priorMean: tensor.FullLike(init, priorMean),
		priorSD:   tensor.FullLike(init, priorSD),
		maxSD:     maxSD,
	}
}

func (g *gaussianTerm) mean() *tensor.Tensor {
	return g.meanParam.Tensor()
}

func (g *gaussianTerm) sd() *tensor.Tensor {
	return g.rawScale.Tensor().Map(func(raw float64) float64 {
		return EffectiveSDFrom(raw, g.maxSD)
	})
}

func (g *gaussianTerm) variance() *tensor.Tensor {
	return g.sd().Square()
}

func (g *gaussianTerm) sample(noise *noiseSource) *tensor.Tensor {
	eps := noise.normal(g.mean().Shape())
	return g.mean().Add(eps.Mul(g.sd()))
}

func (g *gaussianTerm) posterior() Normal {
	return Normal{Mean: g.mean(), SD: g.sd()}
}

func (g *gaussianTerm) prior() Normal {
	return Normal{Mean: g.priorMean, SD: g.priorSD}
}

func (g *gaussianTerm) kl() float64 {
	return g.posterior().KL(g.prior()).Sum()
}

// klBackward accumulates scale·∂KL/∂θ into the mean and raw-scale grads.
//
//	∂KL/∂μ = (μ - μp) / σp²
//	∂KL/∂σ = σ / σp² - 1/σ
//	∂σ/∂raw = sigmoid(raw) inside the clamp range, 0 outside
func (g *gaussianTerm) klBackward(scale float64) {
	mu, raw := g.mean().Data(), g.rawScale.Tensor().Data()
	pm, ps := g.priorMean.Data(), g.priorSD.Data()

	shape := g.mean().Shape()
	gradMean := tensor.Zeros(shape)
	gradRaw := tensor.Zeros(shape)
	gm, gr := gradMean.Data(), gradRaw.Data()

	for i := range mu {
		pv := ps[i] * ps[i]
		sd := EffectiveSDFrom(raw[i], g.maxSD)
		gm[i] = scale * (mu[i] - pm[i]) / pv
		gr[i] = scale * (sd/pv - 1/sd) * effectiveSDGrad(raw[i], g.maxSD)
	}

	g.meanParam.AccumulateGrad(gradMean)
	g.rawScale.AccumulateGrad(gradRaw)
}

func (g *gaussianTerm) parameters() []*nn.Parameter {
	return []*nn.Parameter{g.meanParam, g.rawScale}
}

func (g *gaussianTerm) gaussian() (*gaussianTerm, bool) {
	return g, true
}

// noBias is the bias term of a layer built without a bias.
type noBias struct{}

func (noBias) mean() *tensor.Tensor { return nil }
func (noBias) variance() *tensor.Tensor { return nil }
func (noBias) sample(*noiseSource) *tensor.Tensor { return nil }
func (noBias) kl() float64 { return 0 }
func (noBias) klBackward(float64) {}
func (noBias) parameters() []*nn.Parameter { return nil }
func (noBias) gaussian() (*gaussianTerm, bool) { return nil, false }
