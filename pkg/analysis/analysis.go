// Package analysis runs DC operating-point, swept operating-point and
// transient analyses on an assembled circuit.
package analysis

import (
	"fmt"
	"math"

	"github.com/hobbycircuits/regsim/internal/consts"
	"github.com/hobbycircuits/regsim/pkg/circuit"
	"github.com/hobbycircuits/regsim/pkg/device"
)

// Snapshot is one solved instant: node voltages and branch currents.
type Snapshot struct {
	Time     float64
	Voltages map[string]float64
	Currents map[string]float64
}

type Analysis interface {
	Setup(ckt *circuit.Circuit) error
	Execute() error
	Results() []Snapshot
}

type BaseAnalysis struct {
	Circuit     *circuit.Circuit
	snapshots   []Snapshot
	convergence struct {
		maxIter int
		abstol  float64
		reltol  float64
		gmin    float64
	}
}

func NewBaseAnalysis() *BaseAnalysis {
	ba := &BaseAnalysis{snapshots: make([]Snapshot, 0)}

	ba.convergence.maxIter = 100
	ba.convergence.abstol = 1e-12
	ba.convergence.reltol = 1e-6
	ba.convergence.gmin = 1e-12

	return ba
}

func (a *BaseAnalysis) Results() []Snapshot {
	return a.snapshots
}

func (a *BaseAnalysis) snapshot(time float64) {
	a.snapshots = append(a.snapshots, Snapshot{
		Time:     time,
		Voltages: a.Circuit.NodeVoltages(),
		Currents: a.Circuit.BranchCurrents(),
	})
}

// nrSolve runs Newton-Raphson iterations at the given circuit status until
// the solution vector stops moving or the iteration budget runs out.
func (a *BaseAnalysis) nrSolve(status *device.CircuitStatus, gmin float64, maxIter int) error {
	ckt := a.Circuit
	mat := ckt.GetMatrix()
	var oldSolution []float64

	status.Gmin = gmin
	if status.Temp == 0 {
		status.Temp = consts.ROOMTEMP
	}

	for iter := range maxIter {
		mat.Clear()

		// First iteration has no previous solution, so skip
		if iter > 0 {
			if err := ckt.UpdateNonlinearVoltages(oldSolution); err != nil {
				return fmt.Errorf("updating nonlinear voltages: %v", err)
			}
		}

		if err := ckt.Stamp(status); err != nil {
			return fmt.Errorf("stamping error: %v", err)
		}
		mat.LoadGmin(gmin)

		if err := mat.Solve(); err != nil {
			return fmt.Errorf("matrix solve error: %v", err)
		}

		solution := mat.Solution()

		if iter > 0 {
			allConverged := true
			for i := 1; i < len(solution); i++ {
				diff := math.Abs(solution[i] - oldSolution[i])
				reltol := a.convergence.reltol*math.Max(math.Abs(solution[i]), math.Abs(oldSolution[i])) + a.convergence.abstol

				if diff > reltol {
					allConverged = false
					break
				}
			}

			if allConverged {
				return nil
			}
		}

		if oldSolution == nil {
			oldSolution = make([]float64, len(solution))
		}
		copy(oldSolution, solution)
	}

	return fmt.Errorf("failed to converge in %d iterations", maxIter)
}
