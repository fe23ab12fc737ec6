package variational

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/bnn/internal/backend/cpu"
	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/tensor"
)

type linear = nn.Linear[*cpu.CPUBackend]

// newLinear builds a Linear [out, in] with the given weight and bias
// values. A nil bias builds a layer without bias.
func newLinear(t *testing.T, out, in int, weight, bias []float64) *linear {
	t.Helper()

	l := nn.NewLinear(in, out, bias != nil, cpu.New())
	sd := map[string]*tensor.Tensor{
		"weight": tensor.MustFromSlice(weight, tensor.Shape{out, in}),
	}
	if bias != nil {
		sd["bias"] = tensor.MustFromSlice(bias, tensor.Shape{out})
	}
	require.NoError(t, l.LoadStateDict(sd))
	return l
}

// setSD sets every raw scale of the layer so the effective sd is sd.
func setSD[A nn.Affine](l *Layer[A], weightSD, biasSD float64) {
	l.WeightRawScale().Tensor().Fill(RawScaleFor(weightSD))
	if p := l.BiasRawScale(); p != nil {
		p.Tensor().Fill(RawScaleFor(biasSD))
	}
}

// sampleMoments runs draw n times and returns per-element sample mean
// and variance.
func sampleMoments(n int, draw func() *tensor.Tensor) (mean, variance []float64) {
	draws := make([][]float64, n)
	for i := range draws {
		draws[i] = draw().Data()
	}

	size := len(draws[0])
	mean = make([]float64, size)
	variance = make([]float64, size)
	column := make([]float64, n)
	for j := 0; j < size; j++ {
		for i := range draws {
			column[i] = draws[i][j]
		}
		mean[j], variance[j] = stat.MeanVariance(column, nil)
	}
	return mean, variance
}

// fakeAffine is an nn.Affine whose arithmetic is supplied by the test.
type fakeAffine struct {
	weight *nn.Parameter
	bias   *nn.Parameter
	apply  func(x, w, b *tensor.Tensor) *tensor.Tensor
}

func (f *fakeAffine) Forward(x *tensor.Tensor) *tensor.Tensor {
	var b *tensor.Tensor
	if f.bias != nil {
		b = f.bias.Tensor()
	}
	return f.ApplyAffine(x, f.weight.Tensor(), b)
}

func (f *fakeAffine) Parameters() []*nn.Parameter {
	if f.bias != nil {
		return []*nn.Parameter{f.weight, f.bias}
	}
	return []*nn.Parameter{f.weight}
}

func (f *fakeAffine) ApplyAffine(x, w, b *tensor.Tensor) *tensor.Tensor {
	return f.apply(x, w, b)
}

func (f *fakeAffine) Weight() *nn.Parameter { return f.weight }

func (f *fakeAffine) Bias() *nn.Parameter { return f.bias }
