// Package config loads the YAML run configuration of the bnn command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/bnn/internal/tensor"
	"github.com/born-ml/bnn/internal/variational"
)

// Layer kinds.
const (
	KindLinear = "linear"
	KindConv2D = "conv2d"
)

// Optimizer names.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Config is the run configuration: which deterministic layer to wrap,
// how to wrap it, and how the commands sample and fit it.
type Config struct {
	Layer       LayerConfig        `yaml:"layer"`
	Variational variational.Config `yaml:"variational"`
	Train       TrainConfig        `yaml:"train"`

	// Seed seeds the layer noise. Zero draws from the global source.
	Seed int64 `yaml:"seed"`

	// Samples is the number of Monte Carlo draws for predictions.
	Samples int `yaml:"samples"`

	// Checkpoint is an optional SafeTensors file with deterministic
	// "weight"/"bias" tensors to warm-start the posterior means from.
	Checkpoint string `yaml:"checkpoint,omitempty"`
}

// LayerConfig describes the wrapped deterministic layer.
type LayerConfig struct {
	Kind string `yaml:"kind"` // "linear" or "conv2d"
	Bias bool   `yaml:"bias"`

	// Linear
	InFeatures  int `yaml:"in_features,omitempty"`
	OutFeatures int `yaml:"out_features,omitempty"`

	// Conv2D
	InChannels  int `yaml:"in_channels,omitempty"`
	OutChannels int `yaml:"out_channels,omitempty"`
	KernelSize  int `yaml:"kernel_size,omitempty"`
	Stride      int `yaml:"stride,omitempty"`
	Padding     int `yaml:"padding,omitempty"`
	InputSize   int `yaml:"input_size,omitempty"` // Square input height/width
}

// TrainConfig configures fit-prior.
type TrainConfig struct {
	Optimizer string  `yaml:"optimizer"` // "sgd" or "adam"
	Steps     int     `yaml:"steps"`
	LR        float64 `yaml:"lr"`
	Momentum  float64 `yaml:"momentum"` // SGD only
}

// DefaultConfig returns a linear 4→3 layer with bias under the default
// variational configuration.
func DefaultConfig() *Config {
	return &Config{
		Layer: LayerConfig{
			Kind:        KindLinear,
			Bias:        true,
			InFeatures:  4,
			OutFeatures: 3,
			Stride:      1,
		},
		Variational: variational.DefaultConfig(),
		Train: TrainConfig{
			Optimizer: OptimizerSGD,
			Steps:     200,
			LR:        0.05,
			Momentum:  0.5,
		},
		Samples: 1000,
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		//nolint:gosec // G304: config path is supplied by the user
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := decode(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode unmarshals data over cfg. A layer section replaces the default
// layer as a whole, so geometry fields it omits stay zero instead of
// inheriting the default linear shape.
func decode(data []byte, cfg *Config) error {
	var sections struct {
		Layer *yaml.Node `yaml:"layer"`
	}
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if sections.Layer == nil {
		return nil
	}

	cfg.Layer = LayerConfig{Stride: 1}
	return sections.Layer.Decode(&cfg.Layer)
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies BNN_SEED and BNN_CHECKPOINT.
func (c *Config) applyEnvOverrides() error {
	if s := os.Getenv("BNN_SEED"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BNN_SEED %q: %w", s, err)
		}
		c.Seed = seed
	}
	if path := os.Getenv("BNN_CHECKPOINT"); path != "" {
		c.Checkpoint = path
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Layer.Validate(); err != nil {
		return err
	}
	if err := c.Variational.Validate(); err != nil {
		return err
	}
	if c.Samples < 2 {
		return fmt.Errorf("samples must be at least 2, got %d", c.Samples)
	}
	switch c.Train.Optimizer {
	case OptimizerSGD, OptimizerAdam:
	default:
		return fmt.Errorf("invalid optimizer: %s (valid: %s, %s)", c.Train.Optimizer, OptimizerSGD, OptimizerAdam)
	}
	if c.Train.Steps < 0 || !(c.Train.LR > 0) {
		return fmt.Errorf("train: steps must be non-negative and lr positive, got steps=%d lr=%v", c.Train.Steps, c.Train.LR)
	}
	return nil
}

// Validate checks the layer dimensions for its kind.
func (l LayerConfig) Validate() error {
	switch l.Kind {
	case KindLinear:
		if l.InFeatures <= 0 || l.OutFeatures <= 0 {
			return fmt.Errorf("linear: in_features and out_features must be positive, got %d and %d",
				l.InFeatures, l.OutFeatures)
		}
	case KindConv2D:
		if l.InChannels <= 0 || l.OutChannels <= 0 || l.KernelSize <= 0 || l.Stride <= 0 || l.Padding < 0 {
			return fmt.Errorf("conv2d: invalid geometry %+v", l)
		}
		if l.InputSize+2*l.Padding < l.KernelSize {
			return fmt.Errorf("conv2d: input_size %d with padding %d is smaller than kernel_size %d",
				l.InputSize, l.Padding, l.KernelSize)
		}
	default:
		return fmt.Errorf("invalid layer kind: %q (valid: %s, %s)", l.Kind, KindLinear, KindConv2D)
	}
	return nil
}

// InputShape returns the shape of a batch of inputs for the layer.
func (l LayerConfig) InputShape(batch int) tensor.Shape {
	if l.Kind == KindConv2D {
		return tensor.Shape{batch, l.InChannels, l.InputSize, l.InputSize}
	}
	return tensor.Shape{batch, l.InFeatures}
}
