package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/bnn/internal/config"
	"github.com/born-ml/bnn/internal/optim"
	"github.com/born-ml/bnn/internal/serialization"
	"github.com/born-ml/bnn/internal/tensor"
	"github.com/born-ml/bnn/internal/variational"
)

// app carries state shared by every command of one CLI instance.
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "bnn",
		Short: "Mean-field variational Gaussian layers",
		Long: `bnn wraps a deterministic linear or conv2d layer in a mean-field
Gaussian posterior with a Gaussian prior, and samples, fits and exports it.

The layer is described by a YAML run file (see "bnn init").`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "bnn.yaml", "Run configuration file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		a.versionCmd(),
		a.initCmd(),
		a.inspectCmd(),
		a.sampleCmd(),
		a.fitPriorCmd(),
		a.exportCmd(),
	)

	return rootCmd
}

// setup builds the logger and loads the run configuration.
func (a *app) setup() error {
	zcfg := zap.NewProductionConfig()
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bnn %s\n", version)
		},
	}
}

func (a *app) initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default run configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if !force && fileExists(path) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			a.logger.Info("wrote default configuration", zap.String("path", path))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show the posterior and prior of the configured layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layer, err := a.buildLayer()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, layer.String())
			fmt.Fprintf(out, "fan-in: %d  mode: %v  kl: %.6g\n\n", layer.FanIn(), layer.DefaultMode(), layer.KLDivergence())

			rows := [][]string{
				distRow("weight posterior", layer.WeightDist()),
				distRow("weight prior", layer.PriorWeightDist()),
			}
			if d, ok := layer.BiasDist(); ok {
				rows = append(rows, distRow("bias posterior", d))
			}
			if d, ok := layer.PriorBiasDist(); ok {
				rows = append(rows, distRow("bias prior", d))
			}

			table := newTable(cmd, "TENSOR", "SHAPE", "MEAN", "SD MIN", "SD MAX")
			table.AppendBulk(rows)
			table.Render()
			return nil
		},
	}
}

func (a *app) sampleCmd() *cobra.Command {
	var (
		input []float64
		mode  string
	)

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Compare Monte Carlo predictions with the analytic output moments",
		Long: `sample draws the configured number of forward passes for one input and
prints the per-element Monte Carlo mean and variance next to the analytic
local-reparameterization moments. Without --input the input is all ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "" {
				m, err := parseMode(mode)
				if err != nil {
					return err
				}
				a.cfg.Variational.LocalReparameterization = m == variational.ModeLocal
			}

			layer, err := a.buildLayer()
			if err != nil {
				return err
			}

			x, err := a.input(input)
			if err != nil {
				return err
			}

			pred, err := layer.Predict(cmd.Context(), x, a.cfg.Samples)
			if err != nil {
				return err
			}
			mean, variance := layer.Moments(x)

			rows := make([][]string, 0, mean.NumElements())
			for i := range mean.Data() {
				rows = append(rows, []string{
					strconv.Itoa(i),
					formatFloat(mean.Data()[i]),
					formatFloat(pred.Mean.Data()[i]),
					formatFloat(variance.Data()[i]),
					formatFloat(pred.Variance.Data()[i]),
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d samples, mode %v\n\n", pred.Samples, layer.DefaultMode())
			table := newTable(cmd, "OUTPUT", "MEAN", "MC MEAN", "VARIANCE", "MC VARIANCE")
			table.AppendBulk(rows)
			table.Render()
			return nil
		},
	}
	cmd.Flags().Float64SliceVar(&input, "input", nil, "Input values, flattened (default: ones)")
	cmd.Flags().StringVar(&mode, "mode", "", `Sampling mode, "local" or "direct" (default: from config)`)
	return cmd
}

func (a *app) fitPriorCmd() *cobra.Command {
	var (
		out   string
		every int
	)

	cmd := &cobra.Command{
		Use:   "fit-prior",
		Short: "Minimize the KL divergence to the prior",
		Long: `fit-prior runs the configured optimizer on KL(posterior || prior) alone,
pulling the posterior toward the prior, and optionally exports the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if every <= 0 {
				return fmt.Errorf("--every must be positive, got %d", every)
			}
			layer, err := a.buildLayer()
			if err != nil {
				return err
			}

			var optimizer optim.Optimizer
			switch a.cfg.Train.Optimizer {
			case config.OptimizerAdam:
				optimizer = optim.NewAdam(layer.Parameters(), optim.AdamConfig{LR: a.cfg.Train.LR})
			default:
				optimizer = optim.NewSGD(layer.Parameters(), optim.SGDConfig{
					LR:       a.cfg.Train.LR,
					Momentum: a.cfg.Train.Momentum,
				})
			}

			rows := [][]string{{"0", formatFloat(layer.KLDivergence())}}
			for step := 1; step <= a.cfg.Train.Steps; step++ {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				optimizer.ZeroGrad()
				layer.KLBackward(1)
				optimizer.Step()

				if step%every == 0 || step == a.cfg.Train.Steps {
					kl := layer.KLDivergence()
					rows = append(rows, []string{strconv.Itoa(step), formatFloat(kl)})
					a.logger.Debug("fit-prior step", zap.Int("step", step), zap.Float64("kl", kl))
				}
			}

			table := newTable(cmd, "STEP", "KL")
			table.AppendBulk(rows)
			table.Render()

			if out != "" {
				return a.export(layer, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the fitted layer to a SafeTensors file")
	cmd.Flags().IntVar(&every, "every", 50, "Report the KL every n steps")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the layer state dict to a SafeTensors file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required")
			}
			layer, err := a.buildLayer()
			if err != nil {
				return err
			}
			return a.export(layer, out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output SafeTensors file")
	return cmd
}

// export writes the layer's state dict with the run settings as metadata.
func (a *app) export(layer *variational.Layer[affine], path string) error {
	cfg := layer.Config()
	metadata := map[string]string{
		"format":     "bnn-variational",
		"kind":       a.cfg.Layer.Kind,
		"prior_mean": formatFloat(cfg.PriorMean),
		"init_sd":    formatFloat(cfg.InitSD),
		"local":      strconv.FormatBool(cfg.LocalReparameterization),
	}
	if err := serialization.WriteSafeTensors(path, layer.StateDict(), metadata); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	a.logger.Info("exported layer", zap.String("path", path), zap.Float64("kl", layer.KLDivergence()))
	return nil
}

// input builds a batch of one from flattened values, or ones.
func (a *app) input(values []float64) (*tensor.Tensor, error) {
	shape := a.cfg.Layer.InputShape(1)
	if len(values) == 0 {
		return tensor.Ones(shape), nil
	}
	x, err := tensor.FromSlice(values, shape)
	if err != nil {
		return nil, fmt.Errorf("--input: %w", err)
	}
	return x, nil
}

func parseMode(s string) (variational.Mode, error) {
	for _, m := range []variational.Mode{variational.ModeLocal, variational.ModeDirect} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (valid: local, direct)", s)
}

// distRow summarizes a distribution as one table row.
func distRow(name string, d variational.Normal) []string {
	return []string{
		name,
		d.Shape().String(),
		formatFloat(stat.Mean(d.Mean.Data(), nil)),
		formatFloat(d.SD.Min()),
		formatFloat(d.SD.Max()),
	}
}

func newTable(cmd *cobra.Command, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
