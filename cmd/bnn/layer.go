package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/born-ml/bnn/internal/backend/cpu"
	"github.com/born-ml/bnn/internal/config"
	"github.com/born-ml/bnn/internal/nn"
	"github.com/born-ml/bnn/internal/serialization"
	"github.com/born-ml/bnn/internal/variational"
)

// affine is the wrapped layer type of every CLI layer.
type affine = nn.Affine

// buildLayer constructs the configured deterministic layer, wraps it and,
// with a checkpoint configured, warm-starts the posterior means from it.
func (a *app) buildLayer() (*variational.Layer[affine], error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	base := newBase(a.cfg.Layer)

	opts := []variational.Option{variational.WithLogger(a.logger)}
	if a.cfg.Seed != 0 {
		opts = append(opts, variational.WithSeed(a.cfg.Seed))
	}

	layer, err := variational.New(base, a.cfg.Variational, opts...)
	if err != nil {
		return nil, err
	}

	if path := a.cfg.Checkpoint; path != "" {
		f, err := serialization.ReadSafeTensors(path)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: %w", err)
		}
		if err := layer.InitFromDeterministicParams(f.Tensors); err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", path, err)
		}
		a.logger.Info("warm-started posterior means", zap.String("checkpoint", path))
	}

	return layer, nil
}

func newBase(l config.LayerConfig) affine {
	backend := cpu.New()
	if l.Kind == config.KindConv2D {
		return nn.NewConv2D(l.InChannels, l.OutChannels, l.KernelSize, l.KernelSize, l.Stride, l.Padding, l.Bias, backend)
	}
	return nn.NewLinear(l.InFeatures, l.OutFeatures, l.Bias, backend)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
