package sim

import (
	"fmt"
	"math"

	"github.com/hobbycircuits/regsim/pkg/topology"
)

// LinearSolver is the closed-form small-signal approximation of the shunt
// regulator, used wherever the full Newton solver would be overkill: the
// reference is an ideal clamp, so the output sits at the lower of the
// unregulated divider voltage and the clamped value Vth/f, where f is the
// feedback fraction of the divider.
//
// It honors the same request contract as SpiceSolver. Transient output is a
// flat line at the operating point because the ideal model has no dynamics;
// the capacitors only matter for the startup the real solver integrates.
type LinearSolver struct{}

func NewLinearSolver() *LinearSolver {
	return &LinearSolver{}
}

var _ Solver = (*LinearSolver)(nil)

func (l *LinearSolver) Solve(topo topology.CircuitTopology, req Request) (Result, error) {
	switch req.Kind {
	case OP:
		pt := solvePoint(topo, topo.Params().SourceVoltage)
		return Result{Points: []OperatingPoint{pt}, Times: []float64{0}}, nil

	case Sweep:
		if len(req.SweepValues) == 0 {
			return Result{}, fmt.Errorf("sweep request without sweep values")
		}
		res := Result{
			Points: make([]OperatingPoint, 0, len(req.SweepValues)),
			Times:  make([]float64, 0, len(req.SweepValues)),
		}
		for _, vs := range req.SweepValues {
			res.Points = append(res.Points, solvePoint(topo, vs))
			res.Times = append(res.Times, vs)
		}
		return res, nil

	case Tran:
		if req.Tran.Stop <= 0 || req.Tran.Step <= 0 {
			return Result{}, fmt.Errorf("transient request with window %g step %g", req.Tran.Stop, req.Tran.Step)
		}
		pt := solvePoint(topo, topo.Params().SourceVoltage)
		n := int(req.Tran.Stop/req.Tran.Step) + 1
		res := Result{
			Points: make([]OperatingPoint, 0, n),
			Times:  make([]float64, 0, n),
		}
		for i := range n {
			res.Points = append(res.Points, pt)
			res.Times = append(res.Times, float64(i)*req.Tran.Step)
		}
		return res, nil

	default:
		return Result{}, fmt.Errorf("unknown analysis kind %d", req.Kind)
	}
}

// solvePoint evaluates the ideal-clamp operating point at source voltage vs.
func solvePoint(topo topology.CircuitTopology, vs float64) OperatingPoint {
	p := topo.Params()

	const minLeg = 1e-3
	rBot := math.Max(p.DividerSetting*p.DividerResistance, minLeg)
	rTop := math.Max(p.DividerResistance-rBot, minLeg)

	const refIn = 1e6
	rBotEff := parallel(rBot, refIn)
	rDiv := rTop + rBotEff
	feedback := rBotEff / rDiv // vref = feedback * vout

	rSeries := p.SeriesResistance + p.FuseResistance

	rShunt := rDiv
	if topo.Load() > 0 {
		rShunt = parallel(rDiv, topo.Load())
	}

	vOpen := vs * rShunt / (rSeries + rShunt)
	vClamp := p.ReferenceVoltage / feedback
	vOut := math.Min(vOpen, vClamp)

	iSeries := (vs - vOut) / rSeries
	iDiv := vOut / rDiv
	iLoad := 0.0
	if topo.Load() > 0 {
		iLoad = vOut / topo.Load()
	}
	iSink := iSeries - iDiv - iLoad
	if iSink < 0 {
		iSink = 0
	}

	vRef := vOut * feedback
	vIn := vs - iSeries*p.FuseResistance

	voltages := map[string]float64{
		topology.NodeInput:  vIn,
		topology.NodeOutput: vOut,
		topology.NodeRef:    vRef,
	}
	if p.FuseResistance > 0 {
		voltages[topology.NodeBattery] = vs
	}

	currents := map[string]float64{
		"VBAT":    iSeries,
		"RSER":    iSeries,
		"RPOTTOP": iDiv,
		"RPOTBOT": vRef / rBot,
		"RREFIN":  vRef / refIn,
		"UREF":    iSink,
	}
	if p.FuseResistance > 0 {
		currents["RFUSE"] = iSeries
	}
	if topo.Load() > 0 {
		currents["RLOAD"] = iLoad
	}

	return OperatingPoint{Voltages: voltages, Currents: currents}
}

func parallel(a, b float64) float64 {
	return a * b / (a + b)
}
