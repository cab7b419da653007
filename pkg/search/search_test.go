package search

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func boardTemplate(t *testing.T) topology.CircuitTopology {
	t.Helper()
	topo, err := topology.Build(boardParams())
	require.NoError(t, err)
	return topo
}

// TestFindSetting_Converges: the documented scenario — 3.30 V target,
// 0.05 V tolerance — converges within 40 bisection steps.
func TestFindSetting_Converges(t *testing.T) {
	setting, op, err := FindSetting(sim.NewLinearSolver(), boardTemplate(t), 3.30, 0.05, 40)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, setting, 0.0)
	assert.LessOrEqual(t, setting, 1.0)
	assert.InDelta(t, 3.30, op.Output(), 0.05)

	// Ideal wiper position is Vref/Vout
	assert.InDelta(t, 2.495/3.3, setting, 0.05)
}

func TestFindSetting_UnreachableHigh(t *testing.T) {
	_, _, err := FindSetting(sim.NewLinearSolver(), boardTemplate(t), 20.0, 0.05, 40)
	require.Error(t, err)

	var unreachable *UnreachableTargetError
	require.True(t, errors.As(err, &unreachable), "want UnreachableTarget, got %v", err)
	assert.InDelta(t, 20.0, unreachable.Target, 1e-12)
	assert.Less(t, unreachable.Max, 20.0)

	var conv *ConvergenceError
	assert.False(t, errors.As(err, &conv), "must not be reported as exhaustion")
}

func TestFindSetting_UnreachableLow(t *testing.T) {
	// Below the reference voltage the clamp can never sit
	_, _, err := FindSetting(sim.NewLinearSolver(), boardTemplate(t), 1.0, 0.05, 40)
	require.Error(t, err)

	var unreachable *UnreachableTargetError
	require.True(t, errors.As(err, &unreachable))
	assert.Greater(t, unreachable.Min, 1.0)
}

// invertedSolver reports an output that rises with the wiper setting,
// contradicting the direction the divider wiring implies.
type invertedSolver struct{}

func (invertedSolver) Solve(topo topology.CircuitTopology, req sim.Request) (sim.Result, error) {
	v := 2.0 + 3.0*topo.Setting()
	return sim.Result{
		Points: []sim.OperatingPoint{{
			Voltages: map[string]float64{topology.NodeOutput: v},
			Currents: map[string]float64{},
		}},
		Times: []float64{0},
	}, nil
}

func TestFindSetting_NonMonotonic(t *testing.T) {
	_, _, err := FindSetting(invertedSolver{}, boardTemplate(t), 3.3, 0.05, 40)
	require.Error(t, err)

	var nonMono *NonMonotonicResponseError
	require.True(t, errors.As(err, &nonMono), "want NonMonotonicResponse, got %v", err)
	assert.Less(t, nonMono.LowVoltage, nonMono.HighVoltage)
}

func TestFindSetting_Exhaustion(t *testing.T) {
	// An absurd tolerance forces the budget to run out
	_, _, err := FindSetting(sim.NewLinearSolver(), boardTemplate(t), 3.30, 1e-15, 5)
	require.Error(t, err)

	var conv *ConvergenceError
	require.True(t, errors.As(err, &conv), "want ConvergenceError, got %v", err)
	assert.Equal(t, 5, conv.Iterations)
	assert.GreaterOrEqual(t, conv.LastSetting, 0.0)
	assert.LessOrEqual(t, conv.LastSetting, 1.0)
}

// failAfterSolver succeeds for n calls, then diverges.
type failAfterSolver struct {
	inner sim.Solver
	calls int
	limit int
}

func (f *failAfterSolver) Solve(topo topology.CircuitTopology, req sim.Request) (sim.Result, error) {
	f.calls++
	if f.calls > f.limit {
		return sim.Result{}, &sim.DivergenceError{Kind: req.Kind, Detail: "injected failure"}
	}
	return f.inner.Solve(topo, req)
}

func TestFindSetting_DivergenceMidSearchIsFatal(t *testing.T) {
	solver := &failAfterSolver{inner: sim.NewLinearSolver(), limit: 4}

	_, _, err := FindSetting(solver, boardTemplate(t), 3.30, 1e-6, 40)
	require.Error(t, err)

	var div *sim.DivergenceError
	require.True(t, errors.As(err, &div), "divergence must surface, got %v", err)
	// The message carries the last successful bracket for diagnosis
	assert.Contains(t, err.Error(), "bracket")
}

// TestFindSetting_MonotonicProperty: randomized valid configurations keep the
// output non-increasing in the wiper setting under the linear model.
func TestFindSetting_MonotonicProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	solver := sim.NewLinearSolver()

	for trial := range 50 {
		p := topology.Params{
			SourceVoltage:     5 + 15*rng.Float64(),
			FuseResistance:    0.01 * rng.Float64(),
			SeriesResistance:  1000 + 9000*rng.Float64(),
			DividerResistance: 5000 + 45000*rng.Float64(),
			ReferenceVoltage:  1.0 + 2.0*rng.Float64(),
			OutputCap:         680e-6,
			CompensationCap:   22e-9,
		}
		topo, err := topology.Build(p)
		require.NoError(t, err, "trial %d", trial)

		prev := probeOutput(t, solver, topo, 0)
		for i := 1; i <= 20; i++ {
			s := float64(i) / 20
			v := probeOutput(t, solver, topo, s)
			assert.LessOrEqual(t, v, prev+1e-9,
				fmt.Sprintf("trial %d: output rose from %.6g to %.6g at setting %.2f", trial, prev, v, s))
			prev = v
		}
	}
}

func TestProbe_Deterministic(t *testing.T) {
	solver := sim.NewLinearSolver()
	topo := boardTemplate(t)

	a := probeOutput(t, solver, topo, 0.613)
	b := probeOutput(t, solver, topo, 0.613)
	assert.Equal(t, a, b)
}

func probeOutput(t *testing.T, solver sim.Solver, template topology.CircuitTopology, setting float64) float64 {
	t.Helper()
	v, _, err := probe(solver, template, setting)
	require.NoError(t, err)
	return v
}
