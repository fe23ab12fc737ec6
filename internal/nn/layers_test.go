package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bnn/internal/backend/cpu"
	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/tensor"
)

// Compile-time checks that the layers expose the affine capability.
var (
	_ nn.Affine = (*nn.Linear[*cpu.CPUBackend])(nil)
	_ nn.Affine = (*nn.Conv2D[*cpu.CPUBackend])(nil)
)

// TestParameter tests Parameter creation and gradient handling.
func TestParameter(t *testing.T) {
	data := tensor.MustFromSlice([]float64{1, 2, 3}, tensor.Shape{3})
	param := nn.NewParameter("test_param", data)

	if param.Name() != "test_param" {
		t.Errorf("Name() = %s, want test_param", param.Name())
	}
	if param.Tensor() != data {
		t.Error("Tensor() should return the original tensor")
	}
	if param.Grad() != nil {
		t.Error("Grad() should initially be nil")
	}

	g := tensor.MustFromSlice([]float64{0.1, 0.2, 0.3}, tensor.Shape{3})
	param.AccumulateGrad(g)
	param.AccumulateGrad(g)
	assert.InDeltaSlice(t, []float64{0.2, 0.4, 0.6}, param.Grad().Data(), 1e-12)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, g.Data(), "AccumulateGrad must not alias its input")

	param.ZeroGrad()
	if param.Grad() != nil {
		t.Error("ZeroGrad() should clear the gradient")
	}

	other := tensor.Zeros(tensor.Shape{3})
	param.SetTensor(other)
	assert.Same(t, other, param.Tensor())
}

// TestLinear_Creation tests Linear layer initialization.
func TestLinear_Creation(t *testing.T) {
	backend := cpu.New()

	layer := nn.NewLinear(10, 5, true, backend)

	if layer.InFeatures() != 10 {
		t.Errorf("InFeatures() = %d, want 10", layer.InFeatures())
	}
	if layer.OutFeatures() != 5 {
		t.Errorf("OutFeatures() = %d, want 5", layer.OutFeatures())
	}
	assert.True(t, layer.Weight().Tensor().Shape().Equal(tensor.Shape{5, 10}))
	assert.True(t, layer.Bias().Tensor().Shape().Equal(tensor.Shape{5}))
	assert.Len(t, layer.Parameters(), 2)
	assert.Equal(t, "Linear(in_features=10, out_features=5, bias=true)", layer.String())

	noBias := nn.NewLinear(10, 5, false, backend)
	assert.Nil(t, noBias.Bias())
	assert.Len(t, noBias.Parameters(), 1)

	assert.Panics(t, func() { nn.NewLinear(0, 5, true, backend) })
}

// TestLinear_Forward tests y = x @ W.T + b with known values.
func TestLinear_Forward(t *testing.T) {
	layer := nn.NewLinear(3, 2, true, cpu.New())
	require.NoError(t, layer.LoadStateDict(map[string]*tensor.Tensor{
		"weight": tensor.MustFromSlice([]float64{1, 0, -1, 2, 1, 0}, tensor.Shape{2, 3}),
		"bias":   tensor.MustFromSlice([]float64{0.5, -0.5}, tensor.Shape{2}),
	}))

	x := tensor.MustFromSlice([]float64{1, 2, 3, -1, 0, 1}, tensor.Shape{2, 3})
	y := layer.Forward(x)

	// row 0: [1-3+0.5, 2+2-0.5] = [-1.5, 3.5]
	// row 1: [-1-1+0.5, -2+0-0.5] = [-1.5, -2.5]
	assert.True(t, y.Shape().Equal(tensor.Shape{2, 2}))
	assert.InDeltaSlice(t, []float64{-1.5, 3.5, -1.5, -2.5}, y.Data(), 1e-12)

	assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{2, 4})) })
	assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{3})) })
}

// TestLinear_ApplyAffineIsPure checks substituted parameters leave the layer untouched.
func TestLinear_ApplyAffineIsPure(t *testing.T) {
	layer := nn.NewLinear(2, 2, true, cpu.New())
	before := layer.Weight().Tensor().Clone()

	w := tensor.Ones(tensor.Shape{2, 2})
	x := tensor.MustFromSlice([]float64{1, 2}, tensor.Shape{1, 2})

	y := layer.ApplyAffine(x, w, nil)
	assert.Equal(t, []float64{3, 3}, y.Data())
	assert.Equal(t, before.Data(), layer.Weight().Tensor().Data())

	assert.Panics(t, func() { layer.ApplyAffine(x, tensor.Ones(tensor.Shape{3, 2}), nil) })
}

// TestLinear_StateDict tests state dict round-trips and validation.
func TestLinear_StateDict(t *testing.T) {
	src := nn.NewLinear(4, 3, true, cpu.New())
	dst := nn.NewLinear(4, 3, true, cpu.New())

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())

	assert.Error(t, dst.LoadStateDict(map[string]*tensor.Tensor{}))
	assert.Error(t, dst.LoadStateDict(map[string]*tensor.Tensor{"weight": tensor.Zeros(tensor.Shape{3, 4})}))
	assert.Error(t, dst.LoadStateDict(map[string]*tensor.Tensor{"weight": tensor.Zeros(tensor.Shape{4, 3})}))
}

// TestConv2D_Forward tests convolution plus per-channel bias.
func TestConv2D_Forward(t *testing.T) {
	conv := nn.NewConv2D(1, 2, 2, 2, 1, 0, true, cpu.New())

	conv.Weight().Tensor().Fill(1)
	conv.Bias().Tensor().Data()[0] = 10
	conv.Bias().Tensor().Data()[1] = 20

	out := conv.Forward(tensor.Ones(tensor.Shape{1, 1, 2, 2}))

	assert.True(t, out.Shape().Equal(tensor.Shape{1, 2, 1, 1}))
	assert.Equal(t, []float64{14, 24}, out.Data())
	assert.Equal(t, [2]int{3, 3}, conv.ComputeOutputSize(4, 4))
	assert.Equal(t, [2]int{2, 2}, conv.KernelSize())
	assert.Equal(t, 1, conv.InChannels())
	assert.Equal(t, 2, conv.OutChannels())
	assert.Contains(t, conv.String(), "Conv2D(in_channels=1, out_channels=2")
}

func TestConv2D_InvalidConstruction(t *testing.T) {
	backend := cpu.New()
	assert.Panics(t, func() { nn.NewConv2D(0, 1, 3, 3, 1, 0, true, backend) })
	assert.Panics(t, func() { nn.NewConv2D(1, 1, 0, 3, 1, 0, true, backend) })
	assert.Panics(t, func() { nn.NewConv2D(1, 1, 3, 3, 0, 0, true, backend) })
	assert.Panics(t, func() { nn.NewConv2D(1, 1, 3, 3, 1, -1, true, backend) })
}
