package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/hobbycircuits/regsim/pkg/config"
	"github.com/hobbycircuits/regsim/pkg/regulation"
	"github.com/hobbycircuits/regsim/pkg/report"
	"github.com/hobbycircuits/regsim/pkg/search"
	"github.com/hobbycircuits/regsim/pkg/sim"
	"github.com/hobbycircuits/regsim/pkg/topology"
)

var (
	flagConfig  string
	flagPlotDir string
	flagLinear  bool
	flagVerbose bool

	params = config.Default()
)

func main() {
	root := &cobra.Command{
		Use:   "regsim",
		Short: "Characterize a TL431 shunt regulator before powering the breadboard",
		Long: `regsim models the shunt-regulator breadboard as a circuit, searches for
the divider setting that hits the target output voltage, and reports line
regulation, load regulation, ripple and quiescent current across the
battery and load range.`,
		SilenceUsage: true,
		RunE:         run,
	}

	f := root.Flags()
	f.StringVar(&flagConfig, "config", "", "YAML file overriding the default parameters")
	f.StringVar(&flagPlotDir, "plot-dir", "", "write line-sweep and transient plots (PNG) into this directory")
	f.BoolVar(&flagLinear, "linear", false, "use the closed-form linear model instead of the nonlinear solver")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "log every search iteration")

	f.Float64Var(&params.Circuit.SourceVoltage, "source", params.Circuit.SourceVoltage, "battery voltage (V)")
	f.Float64Var(&params.Circuit.FuseResistance, "fuse", params.Circuit.FuseResistance, "fuse series resistance (Ohm)")
	f.Float64Var(&params.Circuit.SeriesResistance, "series", params.Circuit.SeriesResistance, "series resistance (Ohm)")
	f.Float64Var(&params.Circuit.DividerResistance, "divider", params.Circuit.DividerResistance, "divider (pot) resistance (Ohm)")
	f.Float64Var(&params.Circuit.ReferenceVoltage, "reference", params.Circuit.ReferenceVoltage, "reference threshold voltage (V)")
	f.Float64Var(&params.Circuit.OutputCap, "output-cap", params.Circuit.OutputCap, "output capacitance (F)")
	f.Float64Var(&params.Circuit.CompensationCap, "comp-cap", params.Circuit.CompensationCap, "compensation capacitance (F)")
	f.Float64Var(&params.TargetOutputVoltage, "target", params.TargetOutputVoltage, "target output voltage (V)")
	f.Float64Var(&params.Tolerance, "tolerance", params.Tolerance, "search tolerance (V)")
	f.IntVar(&params.MaxIterations, "max-iterations", params.MaxIterations, "bisection iteration budget")
	f.Float64Var(&params.TransientWindow, "tran-window", params.TransientWindow, "transient window (s)")
	f.Float64Var(&params.TransientStep, "tran-step", params.TransientStep, "transient step (s)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	))

	if flagConfig != "" {
		fileParams, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, &fileParams)
		params = fileParams
	}

	template, err := topology.Build(params.Circuit)
	if err != nil {
		return err
	}

	var solver sim.Solver = sim.NewSpiceSolver()
	if flagLinear {
		solver = sim.NewLinearSolver()
	}

	slog.Info("searching divider setting",
		"target_v", params.TargetOutputVoltage, "tolerance_v", params.Tolerance)

	setting, op, err := search.FindSetting(solver, template,
		params.TargetOutputVoltage, params.Tolerance, params.MaxIterations)
	if err != nil {
		return err
	}

	converged, err := template.WithSetting(setting)
	if err != nil {
		return err
	}

	slog.Info("converged", "setting", setting, "vout", op.Output())

	metrics := regulation.Analyze(solver, converged, op, regulation.Spec{
		Target:          params.TargetOutputVoltage,
		InputVoltages:   params.InputVoltageRange.Points(),
		LoadResistances: params.LoadResistances,
		TranWindow:      sim.TranSpec{Stop: params.TransientWindow, Step: params.TransientStep},
	})

	fmt.Print(report.Text(params, setting, metrics))

	if flagPlotDir != "" {
		if err := report.WritePlots(flagPlotDir, metrics); err != nil {
			return err
		}
		slog.Info("plots written", "dir", flagPlotDir)
	}

	return nil
}

// applyFlagOverrides re-applies explicitly set flags on top of file-loaded
// parameters, so the precedence is defaults < file < flags.
func applyFlagOverrides(cmd *cobra.Command, p *config.Params) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}

	set("source", func() { p.Circuit.SourceVoltage = params.Circuit.SourceVoltage })
	set("fuse", func() { p.Circuit.FuseResistance = params.Circuit.FuseResistance })
	set("series", func() { p.Circuit.SeriesResistance = params.Circuit.SeriesResistance })
	set("divider", func() { p.Circuit.DividerResistance = params.Circuit.DividerResistance })
	set("reference", func() { p.Circuit.ReferenceVoltage = params.Circuit.ReferenceVoltage })
	set("output-cap", func() { p.Circuit.OutputCap = params.Circuit.OutputCap })
	set("comp-cap", func() { p.Circuit.CompensationCap = params.Circuit.CompensationCap })
	set("target", func() { p.TargetOutputVoltage = params.TargetOutputVoltage })
	set("tolerance", func() { p.Tolerance = params.Tolerance })
	set("max-iterations", func() { p.MaxIterations = params.MaxIterations })
	set("tran-window", func() { p.TransientWindow = params.TransientWindow })
	set("tran-step", func() { p.TransientStep = params.TransientStep })
}
