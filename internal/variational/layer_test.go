package variational

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bnn/internal/backend/cpu"
	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/tensor"
)

// TestNew_ZeroInitialized wraps a zeroed [4,3] linear layer with a
// standard normal prior and init sd 1e-4.
func TestNew_ZeroInitialized(t *testing.T) {
	base := newLinear(t, 4, 3, make([]float64, 12), make([]float64, 4))

	layer, err := New(base, DefaultConfig(), WithSeed(1))
	require.NoError(t, err)

	assert.True(t, layer.HasBias())
	assert.Equal(t, 4, layer.FanIn())
	assert.True(t, layer.Weight().Shape().Equal(tensor.Shape{4, 3}))
	assert.True(t, layer.Weight().AllCloseTo(0, 0, 0))
	assert.True(t, layer.Bias().AllCloseTo(0, 0, 0))
	assert.True(t, layer.WeightSD().AllCloseTo(1e-4, 1e-9, 0))

	biasSD, ok := layer.BiasSD()
	require.True(t, ok)
	assert.True(t, biasSD.AllCloseTo(1e-4, 1e-9, 0))

	// Each of the 16 elements contributes ln(1/1e-4) + 1e-8/2 - 1/2.
	want := 16 * (math.Log(1e4) + 0.5e-8 - 0.5)
	assert.InEpsilon(t, want, layer.KLDivergence(), 1e-9)

	x := tensor.Ones(tensor.Shape{2, 3})
	y := layer.ForwardMode(x, ModeDirect)
	assert.True(t, y.Shape().Equal(tensor.Shape{2, 4}))
	for _, v := range y.Data() {
		assert.Less(t, math.Abs(v), 1e-2)
	}

	// Output sd is sqrt(3·1e-8 + 1e-8) = 2e-4 per element.
	_, variance := sampleMoments(5000, func() *tensor.Tensor { return layer.ForwardMode(x, ModeDirect) })
	for _, v := range variance {
		assert.InEpsilon(t, 4e-8, v, 0.1)
	}
}

func TestNew_SqrtWidthScaling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriorWeightSD = 4
	cfg.PriorBiasSD = 4
	cfg.SqrtWidthScaling = true

	t.Run("linear with bias", func(t *testing.T) {
		layer, err := New(nn.NewLinear(15, 2, true, cpu.New()), cfg)
		require.NoError(t, err)

		assert.Equal(t, 16, layer.FanIn())
		assert.True(t, layer.PriorWeightDist().SD.AllCloseTo(1, 1e-12, 0))
		prior, ok := layer.PriorBiasDist()
		require.True(t, ok)
		assert.True(t, prior.SD.AllCloseTo(1, 1e-12, 0))
	})

	t.Run("conv without bias", func(t *testing.T) {
		layer, err := New(nn.NewConv2D(1, 2, 4, 4, 1, 0, false, cpu.New()), cfg)
		require.NoError(t, err)

		assert.Equal(t, 16, layer.FanIn())
		assert.True(t, layer.PriorWeightDist().SD.AllCloseTo(1, 1e-12, 0))
		_, ok := layer.PriorBiasDist()
		assert.False(t, ok)
	})
}

func TestNew_NonlinearityScale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NonlinearityScale = 2

	layer, err := New(nn.NewLinear(3, 2, true, cpu.New()), cfg)
	require.NoError(t, err)

	assert.True(t, layer.PriorWeightDist().SD.AllCloseTo(2, 0, 0))
	prior, ok := layer.PriorBiasDist()
	require.True(t, ok)
	assert.True(t, prior.SD.AllCloseTo(1, 0, 0), "bias prior is not scaled by the nonlinearity")
}

func TestNew_NoBias(t *testing.T) {
	base := newLinear(t, 2, 3, []float64{1, 2, 3, 4, 5, 6}, nil)
	layer, err := New(base, DefaultConfig())
	require.NoError(t, err)

	assert.False(t, layer.HasBias())
	assert.Nil(t, layer.Bias())
	assert.Nil(t, layer.BiasMean())
	assert.Nil(t, layer.BiasRawScale())
	_, ok := layer.BiasSD()
	assert.False(t, ok)
	_, ok = layer.BiasDist()
	assert.False(t, ok)
	assert.Len(t, layer.Parameters(), 2)
	assert.Equal(t, 3, layer.FanIn())

	// Unit prior, sd 1e-4: each element adds ln(1e4) + (1e-8 + μ²)/2 - 1/2.
	want := 0.0
	for _, w := range []float64{1, 2, 3, 4, 5, 6} {
		want += math.Log(1e4) + (1e-8+w*w)/2 - 0.5
	}
	assert.InEpsilon(t, want, layer.KLDivergence(), 1e-9)

	x := tensor.Ones(tensor.Shape{1, 3})
	assert.True(t, layer.ForwardMode(x, ModeLocal).Shape().Equal(tensor.Shape{1, 2}))
	assert.True(t, layer.ForwardMode(x, ModeDirect).Shape().Equal(tensor.Shape{1, 2}))

	_, ok = layer.StateDict()[KeyBiasMean]
	assert.False(t, ok)
}

func TestNew_InitSDAcrossShapes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitSD = 0.05

	for _, base := range []nn.Affine{
		nn.NewLinear(1, 1, true, cpu.New()),
		nn.NewLinear(7, 3, false, cpu.New()),
		nn.NewConv2D(2, 4, 3, 3, 1, 1, true, cpu.New()),
	} {
		layer, err := New(base, cfg)
		require.NoError(t, err)
		assert.True(t, layer.WeightSD().AllCloseTo(0.05, 1e-9, 0), "weight sd of %v", base)
		if sd, ok := layer.BiasSD(); ok {
			assert.True(t, sd.AllCloseTo(0.05, 1e-9, 0), "bias sd of %v", base)
		}
	}
}

// TestNew_CopiesBaseParameters checks the posterior mean starts at the
// wrapped layer's values and the wrapped layer then sees the mean.
func TestNew_CopiesBaseParameters(t *testing.T) {
	w := []float64{1, -1, 2, -2, 3, -3}
	base := newLinear(t, 2, 3, w, []float64{0.5, -0.5})

	layer, err := New(base, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, w, layer.Weight().Data())
	assert.Equal(t, []float64{0.5, -0.5}, layer.Bias().Data())
	assert.Same(t, layer.Weight(), base.Weight().Tensor())
	assert.Same(t, layer.Bias(), base.Bias().Tensor())

	for _, p := range layer.Parameters() {
		assert.NotSame(t, base.Weight(), p)
		assert.NotSame(t, base.Bias(), p)
	}
	assert.Equal(t, []string{"weight_mean", "weight_raw_scale", "bias_mean", "bias_raw_scale"},
		[]string{
			layer.Parameters()[0].Name(),
			layer.Parameters()[1].Name(),
			layer.Parameters()[2].Name(),
			layer.Parameters()[3].Name(),
		})
}

func TestNew_InvalidConfig(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative weight prior", func(c *Config) { c.PriorWeightSD = -1 }, "prior_weight_sd"},
		{"zero bias prior", func(c *Config) { c.PriorBiasSD = 0 }, "prior_bias_sd"},
		{"zero init sd", func(c *Config) { c.InitSD = 0 }, "init_sd"},
		{"nan prior mean", func(c *Config) { c.PriorMean = nan }, "prior_mean"},
		{"infinite init sd", func(c *Config) { c.InitSD = math.Inf(1) }, "init_sd"},
		{"zero nonlinearity scale", func(c *Config) { c.NonlinearityScale = 0 }, "nonlinearity_scale"},
		{"max sd below floor", func(c *Config) { *c = c.WithMaxSD(1e-7) }, "max_sd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := New(nn.NewLinear(2, 2, true, cpu.New()), cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestNew_UnusableParameters(t *testing.T) {
	apply := func(x, w, b *tensor.Tensor) *tensor.Tensor { panic("unused") }

	_, err := New(&fakeAffine{apply: apply}, DefaultConfig())
	assert.ErrorIs(t, err, ErrShapeMismatch)

	vector := nn.NewParameter("weight", tensor.Zeros(tensor.Shape{3}))
	_, err = New(&fakeAffine{weight: vector, apply: apply}, DefaultConfig())
	assert.ErrorIs(t, err, ErrShapeMismatch)

	weight := nn.NewParameter("weight", tensor.Zeros(tensor.Shape{2, 3}))
	bias := nn.NewParameter("bias", tensor.Zeros(tensor.Shape{3}))
	_, err = New(&fakeAffine{weight: weight, bias: bias, apply: apply}, DefaultConfig())
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "bias", cerr.Field)
}

func TestConfig_Isolation(t *testing.T) {
	cfg := DefaultConfig().WithMaxSD(0.5)
	layer, err := New(nn.NewLinear(2, 2, true, cpu.New()), cfg)
	require.NoError(t, err)

	*cfg.MaxSD = 100
	got := layer.Config()
	require.NotNil(t, got.MaxSD)
	assert.Equal(t, 0.5, *got.MaxSD)

	*got.MaxSD = 100
	assert.Equal(t, 0.5, *layer.Config().MaxSD)

	// The cap still applies to the raw scale.
	layer.WeightRawScale().Tensor().Fill(RawScaleFor(3))
	assert.True(t, layer.WeightSD().AllCloseTo(0.5, 0, 0))
}

func TestLayer_String(t *testing.T) {
	layer, err := New(nn.NewLinear(3, 4, true, cpu.New()), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t,
		"Variational(Linear(in_features=3, out_features=4, bias=true), prior mean=0.00, prior sd=1.00)",
		layer.String())

	cfg := DefaultConfig()
	cfg.NonlinearityScale = 2
	layer, err = New(nn.NewLinear(3, 4, true, cpu.New()), cfg)
	require.NoError(t, err)
	assert.Equal(t,
		"Variational(Linear(in_features=3, out_features=4, bias=true), prior mean=0.00)",
		layer.String())

	cfg = DefaultConfig()
	cfg.PriorMean = 0.5
	cfg.PriorWeightSD = 2
	layer, err = New(nn.NewLinear(3, 4, false, cpu.New()), cfg)
	require.NoError(t, err)
	assert.Equal(t,
		"Variational(Linear(in_features=3, out_features=4, bias=false), prior mean=0.50, prior sd=2.00)",
		layer.String())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "local", ModeLocal.String())
	assert.Equal(t, "direct", ModeDirect.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
