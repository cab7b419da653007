// Package regulation derives regulation and ripple figures from a converged
// operating point by re-solving the circuit across input-voltage and load
// ranges and over a transient window.
package regulation

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/hobbycircuits/regsim/pkg/sim"
	"github.com/hobbycircuits/regsim/pkg/topology"
)

// Spec bounds the sub-analyses.
type Spec struct {
	Target          float64   // target output voltage, V
	InputVoltages   []float64 // line sweep points, V; first-to-last order is kept
	LoadResistances []float64 // load sweep points, ohm
	TranWindow      sim.TranSpec
}

// UnavailableError marks a single metric that could not be computed. The
// other metrics are unaffected.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("metric unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("metric unavailable: %s", e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Metric is one figure that may individually be unavailable.
type Metric struct {
	Value float64
	Err   error
}

func (m Metric) Available() bool { return m.Err == nil }

// LoadPoint is one solved load-sweep entry.
type LoadPoint struct {
	Resistance float64
	Output     float64
	Deviation  float64
}

// Metrics is the full regulation report. Sweep and waveform data are kept
// alongside the scalar figures for the reporter to plot.
type Metrics struct {
	Output      float64 // achieved output voltage at the converged setting
	TargetError float64 // achieved minus target

	Line      Metric // max |deviation| across the input sweep, V
	Load      Metric // max |deviation| across the load sweep, V
	Ripple    Metric // peak-to-peak output variation, V
	Quiescent Metric // reference branch current at no load, A

	LineInputs  []float64
	LineOutputs []float64

	LoadPoints    []LoadPoint
	ExcludedLoads []float64 // loads the series resistor cannot carry (out of spec)

	TranTimes   []float64
	TranOutputs []float64
}

// Analyze computes line regulation, load regulation, ripple and quiescent
// current for a converged topology. The three solver-driven sub-analyses are
// independent and run concurrently; a failure in one is reported in its
// metric and does not abort the others.
func Analyze(solver sim.Solver, topo topology.CircuitTopology, op sim.OperatingPoint, spec Spec) Metrics {
	m := Metrics{
		Output:      op.Output(),
		TargetError: op.Output() - spec.Target,
	}

	m.Quiescent = quiescent(topo, op)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		lineRegulation(solver, topo, op.Output(), spec, &m)
	}()
	go func() {
		defer wg.Done()
		loadRegulation(solver, topo, op.Output(), spec, &m)
	}()
	go func() {
		defer wg.Done()
		ripple(solver, topo, spec, &m)
	}()

	wg.Wait()
	return m
}

func quiescent(topo topology.CircuitTopology, op sim.OperatingPoint) Metric {
	iq, ok := op.Currents[topo.RefName()]
	if !ok {
		return Metric{Err: &UnavailableError{
			Reason: fmt.Sprintf("no %s branch current in operating point", topo.RefName()),
		}}
	}
	return Metric{Value: iq}
}

func lineRegulation(solver sim.Solver, topo topology.CircuitTopology, nominal float64, spec Spec, m *Metrics) {
	if len(spec.InputVoltages) == 0 {
		m.Line = Metric{Err: &UnavailableError{Reason: "empty input-voltage range"}}
		return
	}

	res, err := solver.Solve(topo, sim.Request{Kind: sim.Sweep, SweepValues: spec.InputVoltages})
	if err != nil {
		m.Line = Metric{Err: &UnavailableError{Reason: "line sweep failed", Err: err}}
		return
	}

	maxDev := 0.0
	m.LineInputs = res.Times
	m.LineOutputs = make([]float64, 0, len(res.Points))
	for _, pt := range res.Points {
		v := pt.Output()
		m.LineOutputs = append(m.LineOutputs, v)
		if dev := math.Abs(v - nominal); dev > maxDev {
			maxDev = dev
		}
	}

	m.Line = Metric{Value: maxDev}
}

func loadRegulation(solver sim.Solver, topo topology.CircuitTopology, nominal float64, spec Spec, m *Metrics) {
	if len(spec.LoadResistances) == 0 {
		m.Load = Metric{Err: &UnavailableError{Reason: "empty load-resistance range"}}
		return
	}

	// Current budget at the weakest battery: the series resistor caps what
	// any load may draw at the target voltage.
	vMin := topo.Params().SourceVoltage
	for _, v := range spec.InputVoltages {
		if v < vMin {
			vMin = v
		}
	}
	available := (vMin - spec.Target) / topo.Params().SeriesResistance

	maxDev := 0.0
	solvedAny := false
	for _, r := range spec.LoadResistances {
		demand := spec.Target / r
		if demand > available {
			slog.Warn("load out of spec, excluded from sweep",
				"resistance", r, "demand_a", demand, "available_a", available)
			m.ExcludedLoads = append(m.ExcludedLoads, r)
			continue
		}

		loaded, err := topo.WithLoad(r)
		if err != nil {
			m.Load = Metric{Err: &UnavailableError{Reason: fmt.Sprintf("attaching %g ohm load", r), Err: err}}
			return
		}

		res, err := solver.Solve(loaded, sim.Request{Kind: sim.OP})
		if err != nil {
			m.Load = Metric{Err: &UnavailableError{Reason: fmt.Sprintf("load point %g ohm failed", r), Err: err}}
			return
		}
		if len(res.Points) == 0 {
			m.Load = Metric{Err: &UnavailableError{Reason: fmt.Sprintf("empty result at %g ohm", r)}}
			return
		}

		v := res.Points[0].Output()
		dev := math.Abs(v - nominal)
		m.LoadPoints = append(m.LoadPoints, LoadPoint{Resistance: r, Output: v, Deviation: dev})
		if dev > maxDev {
			maxDev = dev
		}
		solvedAny = true
	}

	if !solvedAny {
		m.Load = Metric{Err: &UnavailableError{Reason: "every load in range is out of spec"}}
		return
	}
	m.Load = Metric{Value: maxDev}
}

func ripple(solver sim.Solver, topo topology.CircuitTopology, spec Spec, m *Metrics) {
	res, err := solver.Solve(topo, sim.Request{Kind: sim.Tran, Tran: spec.TranWindow})
	if err != nil {
		m.Ripple = Metric{Err: &UnavailableError{Reason: "transient run failed", Err: err}}
		return
	}
	if len(res.Points) == 0 {
		m.Ripple = Metric{Err: &UnavailableError{Reason: "empty transient result"}}
		return
	}

	// Skip the first 10% of the window so startup artifacts never count as
	// ripple.
	settle := 0.1 * spec.TranWindow.Stop
	vMin, vMax := math.Inf(1), math.Inf(-1)
	counted := 0
	for i, t := range res.Times {
		if t < settle {
			continue
		}
		v := res.Points[i].Output()
		vMin = math.Min(vMin, v)
		vMax = math.Max(vMax, v)
		counted++

		m.TranTimes = append(m.TranTimes, t)
		m.TranOutputs = append(m.TranOutputs, v)
	}

	if counted == 0 {
		m.Ripple = Metric{Err: &UnavailableError{Reason: "no transient points past the settling window"}}
		return
	}
	m.Ripple = Metric{Value: vMax - vMin}
}
