package variational

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/born-ml/bnn/internal/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPredict_MatchesMoments(t *testing.T) {
	layer := newStatLayer(t, WithSeed(99))
	x := tensor.MustFromSlice([]float64{1, 2, 3, -1, 0, 1}, tensor.Shape{2, 3})

	pred, err := layer.Predict(context.Background(), x, 8000)
	require.NoError(t, err)
	assert.Equal(t, 8000, pred.Samples)

	mean, variance := layer.Moments(x)
	require.True(t, pred.Mean.Shape().Equal(mean.Shape()))

	// Moments: mean [2.5, 4, -1.5, 1], variance [3.59, 3.59, 0.59, 0.59] (+ε).
	for i, m := range mean.Data() {
		assert.InDelta(t, m, pred.Mean.Data()[i], 0.1, "mean[%d]", i)
		assert.InEpsilon(t, variance.Data()[i], pred.Variance.Data()[i], 0.1, "variance[%d]", i)
	}
}

func TestPredict_Errors(t *testing.T) {
	layer := newStatLayer(t)
	x := tensor.Ones(tensor.Shape{1, 3})

	_, err := layer.Predict(context.Background(), x, 1)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = layer.Predict(ctx, x, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
