package device

import (
	"fmt"
	"math"

	"github.com/hobbycircuits/regsim/pkg/matrix"
)

// ShuntRef is the behavioral reference device: a voltage-controlled current
// sink from cathode to anode that turns on once the ref pin passes the
// threshold voltage. The transfer curve is a logistic ramp
//
//	i(vref) = MaxSink * sigma(k*(vref - Threshold))
//
// with k chosen so the slope at the threshold equals Slope. Nodes are
// cathode, anode, ref.
type ShuntRef struct {
	BaseDevice
	Threshold float64
	Slope     float64
	MaxSink   float64

	steep float64 // logistic steepness k

	// Newton state
	vref float64 // controlling voltage from the previous iterate
	id   float64 // sink current at vref
	gm   float64 // transconductance at vref
}

var _ NonLinear = (*ShuntRef)(nil)

func NewShuntRef(name string, nodeNames []string, threshold, slope, maxSink float64) *ShuntRef {
	if len(nodeNames) != 3 {
		panic(fmt.Sprintf("shunt reference %s: requires exactly 3 nodes", name))
	}

	return &ShuntRef{
		BaseDevice: BaseDevice{
			Name:      name,
			Nodes:     make([]int, len(nodeNames)),
			NodeNames: nodeNames,
			Value:     threshold,
		},
		Threshold: threshold,
		Slope:     slope,
		MaxSink:   maxSink,
		steep:     4.0 * slope / maxSink, // logistic slope at midpoint is MaxSink*k/4

		// Seed Newton at the knee. Cold-starting at zero leaves the ramp in
		// its flat tail where gm vanishes: the step limiter then walks vref
		// without the node solution moving, and the iteration looks converged
		// before the sink has turned on.
		vref: threshold,
	}
}

func (s *ShuntRef) GetType() string { return "U" }

func sigmoid(x float64) float64 {
	// Stable for large |x|
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}

func (s *ShuntRef) sink(vref float64) (i, gm float64) {
	sig := sigmoid(s.steep * (vref - s.Threshold))
	i = s.MaxSink * sig
	gm = s.MaxSink * s.steep * sig * (1.0 - sig)
	return i, gm
}

// Stamp loads the linearized sink around the previous Newton solution. The
// controlled current leaves the cathode and enters the anode; the
// transconductance couples both rows to the ref column.
func (s *ShuntRef) Stamp(matrix matrix.DeviceMatrix, status *CircuitStatus) error {
	if len(s.Nodes) != 3 {
		return fmt.Errorf("shunt reference %s: requires exactly 3 nodes", s.Name)
	}

	nc, na, nr := s.Nodes[0], s.Nodes[1], s.Nodes[2]

	s.id, s.gm = s.sink(s.vref)
	ieq := s.id - s.gm*s.vref // constant part of i ~= ieq + gm*vref

	if nc != 0 {
		if nr != 0 {
			matrix.AddElement(nc, nr, s.gm)
		}
		matrix.AddRHS(nc, -ieq)
	}
	if na != 0 {
		if nr != 0 {
			matrix.AddElement(na, nr, -s.gm)
		}
		matrix.AddRHS(na, ieq)
	}

	return nil
}

func (s *ShuntRef) UpdateVoltages(voltages []float64) error {
	if len(s.Nodes) != 3 {
		return fmt.Errorf("shunt reference %s: requires exactly 3 nodes", s.Name)
	}

	vr := 0.0
	if s.Nodes[2] != 0 {
		vr = voltages[s.Nodes[2]]
	}

	// Limit the per-iteration movement of the controlling voltage; the ramp
	// is steep enough that a raw Newton step overshoots and oscillates.
	const maxStep = 0.5
	if vr > s.vref+maxStep {
		vr = s.vref + maxStep
	} else if vr < s.vref-maxStep {
		vr = s.vref - maxStep
	}

	s.vref = vr
	return nil
}

// Current evaluates the sink current at a solved node-voltage vector.
func (s *ShuntRef) Current(solution []float64) float64 {
	vr := 0.0
	if s.Nodes[2] != 0 && s.Nodes[2] < len(solution) {
		vr = solution[s.Nodes[2]]
	}
	i, _ := s.sink(vr)
	return i
}
