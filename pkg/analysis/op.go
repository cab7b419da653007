package analysis

import (
	"fmt"
	"math"

	"github.com/hobbycircuits/regsim/pkg/circuit"
	"github.com/hobbycircuits/regsim/pkg/device"
)

type OperatingPoint struct{ BaseAnalysis }

func NewOP() *OperatingPoint {
	return &OperatingPoint{
		BaseAnalysis: *NewBaseAnalysis(),
	}
}

func (op *OperatingPoint) Setup(ckt *circuit.Circuit) error {
	op.Circuit = ckt
	return nil
}

func (op *OperatingPoint) solveOnce(gmin float64) error {
	status := &device.CircuitStatus{
		Time: 0,
		Mode: device.OperatingPointAnalysis,
	}
	return op.nrSolve(status, gmin, op.convergence.maxIter)
}

// Execute tries a direct Newton solve first and falls back to gmin stepping
// when the sharp reference nonlinearity refuses to converge cold.
func (op *OperatingPoint) Execute() error {
	err := op.solveOnce(0)
	if err == nil {
		op.snapshot(0)
		return nil
	}

	numGminSteps := 10
	startGmin := float64(op.Circuit.GetMatrix().Size) * 0.001
	gmin := startGmin * math.Pow(10, float64(numGminSteps))

	for i := 0; i <= numGminSteps; i++ {
		if err := op.solveOnce(gmin); err != nil {
			return fmt.Errorf("gmin stepping failed at %g: %v", gmin, err)
		}
		gmin /= 10
	}

	if err := op.solveOnce(0); err != nil {
		return fmt.Errorf("final solution failed with zero gmin: %v", err)
	}

	op.snapshot(0)
	return nil
}
