package analysis

import (
	"fmt"

	"github.com/hobbycircuits/regsim/pkg/circuit"
	"github.com/hobbycircuits/regsim/pkg/device"
)

// SourceSweep re-solves the operating point for each value of one voltage
// source, holding everything else fixed.
type SourceSweep struct {
	BaseAnalysis
	sourceName string
	values     []float64
	origValue  float64
	source     *device.VoltageSource
}

func NewSourceSweep(source string, values []float64) *SourceSweep {
	return &SourceSweep{
		BaseAnalysis: *NewBaseAnalysis(),
		sourceName:   source,
		values:       values,
	}
}

func (sw *SourceSweep) Setup(ckt *circuit.Circuit) error {
	sw.Circuit = ckt

	src, ok := ckt.FindSource(sw.sourceName)
	if !ok {
		return fmt.Errorf("source %s not found", sw.sourceName)
	}
	sw.source = src
	sw.origValue = src.GetValue()

	return nil
}

func (sw *SourceSweep) Execute() error {
	if sw.Circuit == nil {
		return fmt.Errorf("circuit not set")
	}

	for _, val := range sw.values {
		sw.source.SetValue(val)

		status := &device.CircuitStatus{
			Mode: device.OperatingPointAnalysis,
		}
		if err := sw.nrSolve(status, 0, sw.convergence.maxIter); err != nil {
			sw.source.SetValue(sw.origValue)
			return fmt.Errorf("convergence error at %s=%g: %v", sw.sourceName, val, err)
		}

		sw.snapshot(val)
	}

	sw.source.SetValue(sw.origValue)
	return nil
}

// Values returns the sweep points in execution order.
func (sw *SourceSweep) Values() []float64 {
	return sw.values
}
