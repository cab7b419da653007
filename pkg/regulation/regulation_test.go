package regulation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hobbycircuits/regsim/pkg/search"
	"github.com/hobbycircuits/regsim/pkg/sim"
	"github.com/hobbycircuits/regsim/pkg/topology"
)

func boardParams() topology.Params {
	return topology.Params{
		SourceVoltage:     11.1,
		FuseResistance:    0.01,
		SeriesResistance:  4700,
		DividerResistance: 10000,
		ReferenceVoltage:  2.495,
		OutputCap:         680e-6,
		CompensationCap:   22e-9,
	}
}

func defaultSpec() Spec {
	return Spec{
		Target:          3.30,
		InputVoltages:   []float64{10.5, 10.8, 11.1, 11.4, 11.7, 12.0, 12.3, 12.6},
		LoadResistances: []float64{1000, 2200, 4700, 10000, 22000, 47000},
		TranWindow:      sim.TranSpec{Stop: 50e-3, Step: 50e-6},
	}
}

// converge finds the wiper setting for the documented 3.30 V target and
// returns the topology frozen at it.
func converge(t *testing.T, solver sim.Solver) (topology.CircuitTopology, sim.OperatingPoint) {
	t.Helper()

	template, err := topology.Build(boardParams())
	require.NoError(t, err)

	setting, op, err := search.FindSetting(solver, template, 3.30, 0.05, 40)
	require.NoError(t, err)

	topo, err := template.WithSetting(setting)
	require.NoError(t, err)
	return topo, op
}

// TestAnalyze_LineRegulation: sweeping 10.5-12.6 V at the converged setting
// stays within the documented 0.05 V line-regulation bound.
func TestAnalyze_LineRegulation(t *testing.T) {
	solver := sim.NewLinearSolver()
	topo, op := converge(t, solver)

	m := Analyze(solver, topo, op, defaultSpec())

	require.True(t, m.Line.Available(), "line metric: %v", m.Line.Err)
	assert.LessOrEqual(t, m.Line.Value, 0.05)
	assert.Len(t, m.LineOutputs, 8)
}

// TestAnalyze_Ripple: with the 680 uF bulk cap and no load, ripple stays
// under 0.05 V peak-to-peak.
func TestAnalyze_Ripple(t *testing.T) {
	solver := sim.NewLinearSolver()
	topo, op := converge(t, solver)

	m := Analyze(solver, topo, op, defaultSpec())

	require.True(t, m.Ripple.Available(), "ripple metric: %v", m.Ripple.Err)
	assert.Less(t, m.Ripple.Value, 0.05)
	assert.NotEmpty(t, m.TranTimes, "waveform kept for plotting")

	// Nothing inside the settling window may leak into the measurement
	for _, ts := range m.TranTimes {
		assert.GreaterOrEqual(t, ts, 0.1*50e-3)
	}
}

// TestAnalyze_LoadExclusion: a 1k load wants 3.3 mA, more than the series
// resistor can carry at the weakest battery; it is reported out of spec
// while lighter loads are swept.
func TestAnalyze_LoadExclusion(t *testing.T) {
	solver := sim.NewLinearSolver()
	topo, op := converge(t, solver)

	m := Analyze(solver, topo, op, defaultSpec())

	require.True(t, m.Load.Available(), "load metric: %v", m.Load.Err)
	assert.Contains(t, m.ExcludedLoads, 1000.0)

	swept := make(map[float64]bool)
	for _, lp := range m.LoadPoints {
		swept[lp.Resistance] = true
		assert.GreaterOrEqual(t, lp.Deviation, 0.0)
	}
	assert.True(t, swept[10000.0], "10k load is within the current budget")
	assert.False(t, swept[1000.0], "1k load must not be solved")
}

func TestAnalyze_QuiescentCurrent(t *testing.T) {
	solver := sim.NewLinearSolver()
	topo, op := converge(t, solver)

	m := Analyze(solver, topo, op, defaultSpec())

	require.True(t, m.Quiescent.Available(), "quiescent metric: %v", m.Quiescent.Err)
	assert.Greater(t, m.Quiescent.Value, 0.0)
	assert.Less(t, m.Quiescent.Value, 2e-3, "series budget caps the sink current")
}

func TestAnalyze_TargetError(t *testing.T) {
	solver := sim.NewLinearSolver()
	topo, op := converge(t, solver)

	m := Analyze(solver, topo, op, defaultSpec())

	assert.InDelta(t, 3.30, m.Output, 0.05)
	assert.InDelta(t, 0.0, m.TargetError, 0.05)
}

// failingKindSolver fails exactly one analysis kind and delegates the rest.
type failingKindSolver struct {
	inner sim.Solver
	kind  sim.AnalysisKind
}

func (f failingKindSolver) Solve(topo topology.CircuitTopology, req sim.Request) (sim.Result, error) {
	if req.Kind == f.kind {
		return sim.Result{}, &sim.DivergenceError{Kind: req.Kind, Detail: "injected failure"}
	}
	return f.inner.Solve(topo, req)
}

// TestAnalyze_PartialResults: one diverging sub-analysis yields an
// unavailable metric without dragging the others down.
func TestAnalyze_PartialResults(t *testing.T) {
	linear := sim.NewLinearSolver()
	topo, op := converge(t, linear)

	cases := []struct {
		name string
		kind sim.AnalysisKind
		get  func(Metrics) Metric
		rest []func(Metrics) Metric
	}{
		{
			name: "line sweep diverges",
			kind: sim.Sweep,
			get:  func(m Metrics) Metric { return m.Line },
			rest: []func(Metrics) Metric{
				func(m Metrics) Metric { return m.Load },
				func(m Metrics) Metric { return m.Ripple },
				func(m Metrics) Metric { return m.Quiescent },
			},
		},
		{
			name: "transient diverges",
			kind: sim.Tran,
			get:  func(m Metrics) Metric { return m.Ripple },
			rest: []func(Metrics) Metric{
				func(m Metrics) Metric { return m.Line },
				func(m Metrics) Metric { return m.Load },
				func(m Metrics) Metric { return m.Quiescent },
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			solver := failingKindSolver{inner: linear, kind: tc.kind}
			m := Analyze(solver, topo, op, defaultSpec())

			failed := tc.get(m)
			require.False(t, failed.Available())

			var unavailable *UnavailableError
			require.True(t, errors.As(failed.Err, &unavailable))
			var div *sim.DivergenceError
			assert.True(t, errors.As(failed.Err, &div), "reason carries the solver error")

			for i, get := range tc.rest {
				assert.True(t, get(m).Available(), "metric %d must survive", i)
			}
		})
	}
}

func TestAnalyze_EmptyRanges(t *testing.T) {
	solver := sim.NewLinearSolver()
	topo, op := converge(t, solver)

	m := Analyze(solver, topo, op, Spec{
		Target:     3.30,
		TranWindow: sim.TranSpec{Stop: 50e-3, Step: 50e-6},
	})

	assert.False(t, m.Line.Available())
	assert.False(t, m.Load.Available())
	assert.True(t, m.Ripple.Available())
	assert.True(t, m.Quiescent.Available())
}
