// Package sim defines the simulation port: a synchronous, side-effect-free
// solver contract the search and regulation analyses are written against.
// Two implementations exist: the full nonlinear adapter (SpiceSolver) and a
// closed-form linear approximation (LinearSolver) for tests.
package sim

import (
	"fmt"

	"github.com/hobbycircuits/regsim/pkg/topology"
)

type AnalysisKind int

const (
	OP AnalysisKind = iota // steady-state operating point
	Sweep                  // operating point per source voltage
	Tran                   // transient waveform
)

func (k AnalysisKind) String() string {
	switch k {
	case OP:
		return "op"
	case Sweep:
		return "sweep"
	case Tran:
		return "tran"
	default:
		return "unknown"
	}
}

type TranSpec struct {
	Stop float64 // window length, s
	Step float64 // nominal time step, s
}

type Request struct {
	Kind        AnalysisKind
	SweepValues []float64 // source voltages, Kind == Sweep
	Tran        TranSpec  // Kind == Tran
}

// OperatingPoint maps node names to voltages and branch names to currents
// at one solved instant.
type OperatingPoint struct {
	Voltages map[string]float64
	Currents map[string]float64
}

// Output is the solved output-node voltage.
func (op OperatingPoint) Output() float64 {
	return op.Voltages[topology.NodeOutput]
}

// Result is an ordered sequence of operating points: one for OP, one per
// sweep value for Sweep (Times holds the swept source voltages), one per
// accepted time step for Tran (Times holds the time axis).
type Result struct {
	Points []OperatingPoint
	Times  []float64
}

type Solver interface {
	Solve(topo topology.CircuitTopology, req Request) (Result, error)
}

// DivergenceError reports that the underlying solver failed to converge on
// one request.
type DivergenceError struct {
	Kind   AnalysisKind
	Detail string
	Err    error
}

func (e *DivergenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simulation divergence (%s): %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("simulation divergence (%s): %s", e.Kind, e.Detail)
}

func (e *DivergenceError) Unwrap() error { return e.Err }
