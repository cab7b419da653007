package analysis

import (
	"fmt"

	"github.com/hobbycircuits/regsim/pkg/circuit"
	"github.com/hobbycircuits/regsim/pkg/device"
)

// Transient integrates the circuit with backward Euler over a fixed window.
// The run starts from a solved operating point, so the waveform reflects
// steady-state behavior rather than a cold power-up.
type Transient struct {
	BaseAnalysis
	op       *OperatingPoint
	time     float64
	stopTime float64
	timeStep float64
	maxStep  float64
	minStep  float64
}

func NewTransient(tStop, tStep float64) *Transient {
	return &Transient{
		BaseAnalysis: *NewBaseAnalysis(),
		op:           NewOP(),
		stopTime:     tStop,
		timeStep:     tStep,
		maxStep:      tStep,
		minStep:      tStep / 50.0,
	}
}

func (tr *Transient) Setup(ckt *circuit.Circuit) error {
	tr.Circuit = ckt

	if err := tr.op.Setup(ckt); err != nil {
		return fmt.Errorf("operating point setup error: %v", err)
	}
	if err := tr.op.Execute(); err != nil {
		return fmt.Errorf("operating point analysis error: %v", err)
	}
	ckt.SeedCapacitors()

	tr.Circuit.SetTimeStep(tr.timeStep)
	return nil
}

func (tr *Transient) Execute() error {
	if tr.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	tr.snapshot(0)

	for tr.time < tr.stopTime {
		step := tr.timeStep
		if tr.time+step > tr.stopTime {
			// Clamp the final step to the exact remainder so the last
			// snapshot never lands past the requested window. Rounding can
			// leave a vanishing sliver of the window; integrating it would
			// only blow up the companion conductances.
			step = tr.stopTime - tr.time
			if step < tr.minStep*1e-6 {
				break
			}
		}

		for {
			status := &device.CircuitStatus{
				Time:     tr.time + step,
				TimeStep: step,
				Mode:     device.TransientAnalysis,
			}
			tr.Circuit.SetTimeStep(step)

			err := tr.nrSolve(status, 0, tr.convergence.maxIter)
			if err == nil {
				tr.Circuit.UpdateState(status)
				break
			}

			// Halve the step and retry until the floor
			if step > tr.minStep {
				step /= 2
				if step < tr.minStep {
					step = tr.minStep
				}
				continue
			}
			return fmt.Errorf("failed to converge at t=%g", tr.time)
		}

		tr.time += step
		tr.snapshot(tr.time)

		// Grow back toward the nominal step after a reduction
		if step < tr.maxStep {
			tr.timeStep = step * 1.2
			if tr.timeStep > tr.maxStep {
				tr.timeStep = tr.maxStep
			}
		}
	}

	return nil
}
