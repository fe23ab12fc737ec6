package variational

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/bnn/internal/tensor"
)

// Prediction is a Monte Carlo summary of the predictive distribution.
type Prediction struct {
	Mean     *tensor.Tensor // Per-element sample mean
	Variance *tensor.Tensor // Per-element unbiased sample variance
	Samples  int            // Number of forward draws
}

// Predict draws samples forward passes of x concurrently and summarizes
// them per output element.
//
// Draws run on up to GOMAXPROCS goroutines. Cancelling ctx stops
// scheduling new draws and returns ctx's error.
func (l *Layer[A]) Predict(ctx context.Context, x *tensor.Tensor, samples int) (*Prediction, error) {
	if samples < 2 {
		return nil, fmt.Errorf("predict: need at least 2 samples, got %d", samples)
	}

	draws := make([]*tensor.Tensor, samples)

	// The first draw runs on the caller's goroutine so shape panics from
	// the wrapped layer surface here.
	draws[0] = l.Forward(x)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 1; i < samples; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			draws[i] = l.Forward(x)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	shape := draws[0].Shape()
	mean := tensor.Zeros(shape)
	variance := tensor.Zeros(shape)
	md, vd := mean.Data(), variance.Data()

	column := make([]float64, samples)
	for j := range md {
		for i, d := range draws {
			column[i] = d.Data()[j]
		}
		md[j], vd[j] = stat.MeanVariance(column, nil)
	}

	return &Prediction{Mean: mean, Variance: variance, Samples: samples}, nil
}
