package sim

import (
	"fmt"

	"github.com/hobbycircuits/regsim/pkg/analysis"
	"github.com/hobbycircuits/regsim/pkg/circuit"
	"github.com/hobbycircuits/regsim/pkg/topology"
)

// SpiceSolver is the full nonlinear adapter: each request builds a fresh
// circuit from the topology, runs one analysis and tears the matrix down.
// Statelessness across calls is what makes concurrent sweep evaluation safe.
type SpiceSolver struct{}

func NewSpiceSolver() *SpiceSolver {
	return &SpiceSolver{}
}

var _ Solver = (*SpiceSolver)(nil)

func (s *SpiceSolver) Solve(topo topology.CircuitTopology, req Request) (Result, error) {
	ckt, err := circuit.FromTopology("shunt-regulator", topo)
	if err != nil {
		return Result{}, fmt.Errorf("building circuit: %w", err)
	}
	defer ckt.Destroy()

	var an analysis.Analysis
	switch req.Kind {
	case OP:
		an = analysis.NewOP()
	case Sweep:
		if len(req.SweepValues) == 0 {
			return Result{}, fmt.Errorf("sweep request without sweep values")
		}
		an = analysis.NewSourceSweep(topo.SourceName(), req.SweepValues)
	case Tran:
		if req.Tran.Stop <= 0 || req.Tran.Step <= 0 {
			return Result{}, fmt.Errorf("transient request with window %g step %g", req.Tran.Stop, req.Tran.Step)
		}
		an = analysis.NewTransient(req.Tran.Stop, req.Tran.Step)
	default:
		return Result{}, fmt.Errorf("unknown analysis kind %d", req.Kind)
	}

	if err := an.Setup(ckt); err != nil {
		return Result{}, &DivergenceError{Kind: req.Kind, Detail: "analysis setup", Err: err}
	}
	if err := an.Execute(); err != nil {
		return Result{}, &DivergenceError{Kind: req.Kind, Detail: "analysis execution", Err: err}
	}

	snapshots := an.Results()
	res := Result{
		Points: make([]OperatingPoint, 0, len(snapshots)),
		Times:  make([]float64, 0, len(snapshots)),
	}
	for _, snap := range snapshots {
		res.Points = append(res.Points, OperatingPoint{
			Voltages: snap.Voltages,
			Currents: snap.Currents,
		})
		res.Times = append(res.Times, snap.Time)
	}

	return res, nil
}
