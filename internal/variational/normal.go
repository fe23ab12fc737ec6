package variational

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/bnn/internal/tensor"
)

// Normal is a diagonal Gaussian: element i is N(Mean[i], SD[i]²).
type Normal struct {
	Mean *tensor.Tensor
	SD   *tensor.Tensor
}

// Shape returns the event shape.
func (n Normal) Shape() tensor.Shape {
	return n.Mean.Shape()
}

// Variance returns SD².
func (n Normal) Variance() *tensor.Tensor {
	return n.SD.Square()
}

// Sample draws Mean + ε·SD with ε taken from s, which must produce
// standard-normal variates.
func (n Normal) Sample(s tensor.Sampler) *tensor.Tensor {
	return n.Mean.Add(tensor.Sample(n.Mean.Shape(), s).Mul(n.SD))
}

// LogProb returns the element-wise log density of x.
func (n Normal) LogProb(x *tensor.Tensor) *tensor.Tensor {
	if !x.Shape().Equal(n.Mean.Shape()) {
		panic(fmt.Sprintf("normal: log prob of shape %v under shape %v", x.Shape(), n.Mean.Shape()))
	}
	out := tensor.Zeros(x.Shape())
	mean, sd, data := n.Mean.Data(), n.SD.Data(), out.Data()
	for i, v := range x.Data() {
		data[i] = distuv.Normal{Mu: mean[i], Sigma: sd[i]}.LogProb(v)
	}
	return out
}

// KL returns the element-wise KL(n || p).
func (n Normal) KL(p Normal) *tensor.Tensor {
	if !n.Mean.Shape().Equal(p.Mean.Shape()) {
		panic(fmt.Sprintf("normal: kl between shapes %v and %v", n.Mean.Shape(), p.Mean.Shape()))
	}
	out := tensor.Zeros(n.Mean.Shape())
	qm, qs := n.Mean.Data(), n.SD.Data()
	pm, ps := p.Mean.Data(), p.SD.Data()
	data := out.Data()
	for i := range data {
		data[i] = klNormal(qm[i], qs[i], pm[i], ps[i])
	}
	return out
}

// klNormal is KL(N(muQ, sdQ²) || N(muP, sdP²)):
//
//	ln(sdP/sdQ) + (sdQ² + (muQ-muP)²) / (2 sdP²) - 1/2
func klNormal(muQ, sdQ, muP, sdP float64) float64 {
	d := muQ - muP
	return math.Log(sdP/sdQ) + (sdQ*sdQ+d*d)/(2*sdP*sdP) - 0.5
}
