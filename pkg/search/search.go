// Package search finds the divider setting that puts the regulator output at
// a target voltage.
//
// The wiper setting is the fraction of the divider below the wiper, so the
// steady-state output voltage is non-increasing in the setting (see
// topology.Build). Bisection relies on that direction; both bracket endpoints
// are probed first and the search refuses to run if they contradict it.
package search

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/hobbycircuits/regsim/pkg/sim"
	"github.com/hobbycircuits/regsim/pkg/topology"
)

// UnreachableTargetError: the target lies outside the output range the
// source and series resistor can produce across the whole wiper travel.
type UnreachableTargetError struct {
	Target float64
	Min    float64 // output at setting 1
	Max    float64 // output at setting 0
}

func (e *UnreachableTargetError) Error() string {
	return fmt.Sprintf("target %.4g V unreachable: achievable output range [%.4g, %.4g] V",
		e.Target, e.Min, e.Max)
}

// NonMonotonicResponseError: the two probe points contradict the assumed
// monotonic direction. Treated as a modeling error, never retried.
type NonMonotonicResponseError struct {
	LowSetting, HighSetting float64
	LowVoltage, HighVoltage float64
}

func (e *NonMonotonicResponseError) Error() string {
	return fmt.Sprintf("non-monotonic response: V(setting=%g)=%.4g V, V(setting=%g)=%.4g V",
		e.LowSetting, e.LowVoltage, e.HighSetting, e.HighVoltage)
}

// ConvergenceError: the bisection exhausted its iteration budget without
// meeting the tolerance.
type ConvergenceError struct {
	LastSetting float64
	LastVoltage float64
	Iterations  int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("search did not converge in %d iterations: last setting %g gave %.4g V",
		e.Iterations, e.LastSetting, e.LastVoltage)
}

// FindSetting bisects the wiper setting over [0,1] until the solved output
// voltage is within tolerance of target. It returns the setting and the
// operating point solved at it.
func FindSetting(solver sim.Solver, template topology.CircuitTopology, target, tolerance float64, maxIterations int) (float64, sim.OperatingPoint, error) {
	if tolerance <= 0 {
		return 0, sim.OperatingPoint{}, fmt.Errorf("tolerance must be positive, got %g", tolerance)
	}
	if maxIterations <= 0 {
		return 0, sim.OperatingPoint{}, fmt.Errorf("maxIterations must be positive, got %d", maxIterations)
	}

	lo, hi := 0.0, 1.0

	vMax, opMax, err := probe(solver, template, lo)
	if err != nil {
		return 0, sim.OperatingPoint{}, fmt.Errorf("probing setting %g: %w", lo, err)
	}
	vMin, opMin, err := probe(solver, template, hi)
	if err != nil {
		return 0, sim.OperatingPoint{}, fmt.Errorf("probing setting %g: %w", hi, err)
	}

	if vMax < vMin {
		return 0, sim.OperatingPoint{}, &NonMonotonicResponseError{
			LowSetting: lo, HighSetting: hi,
			LowVoltage: vMax, HighVoltage: vMin,
		}
	}
	if target > vMax+tolerance || target < vMin-tolerance {
		return 0, sim.OperatingPoint{}, &UnreachableTargetError{Target: target, Min: vMin, Max: vMax}
	}

	if math.Abs(vMax-target) <= tolerance {
		return lo, opMax, nil
	}
	if math.Abs(vMin-target) <= tolerance {
		return hi, opMin, nil
	}

	var mid, vMid float64
	for iter := 1; iter <= maxIterations; iter++ {
		mid = (lo + hi) / 2

		var op sim.OperatingPoint
		vMid, op, err = probe(solver, template, mid)
		if err != nil {
			return 0, sim.OperatingPoint{}, fmt.Errorf(
				"solver failed at setting %g, bracket [%g, %g]: %w", mid, lo, hi, err)
		}

		slog.Debug("bisection step",
			"iteration", iter, "setting", mid, "vout", vMid, "target", target)

		if math.Abs(vMid-target) <= tolerance {
			return mid, op, nil
		}

		// Output decreases with setting: overshoot means the wiper is too low.
		if vMid > target {
			lo = mid
		} else {
			hi = mid
		}
	}

	return 0, sim.OperatingPoint{}, &ConvergenceError{
		LastSetting: mid,
		LastVoltage: vMid,
		Iterations:  maxIterations,
	}
}

func probe(solver sim.Solver, template topology.CircuitTopology, setting float64) (float64, sim.OperatingPoint, error) {
	topo, err := template.WithSetting(setting)
	if err != nil {
		return 0, sim.OperatingPoint{}, err
	}

	res, err := solver.Solve(topo, sim.Request{Kind: sim.OP})
	if err != nil {
		return 0, sim.OperatingPoint{}, err
	}
	if len(res.Points) == 0 {
		return 0, sim.OperatingPoint{}, fmt.Errorf("empty operating-point result")
	}

	op := res.Points[0]
	return op.Output(), op, nil
}
