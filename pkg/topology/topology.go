// Package topology models the shunt-regulator circuit as an immutable set of
// components. A changed parameter always produces a new CircuitTopology.
package topology

type Kind int

const (
	Resistor Kind = iota
	Capacitor
	Source         // fixed DC voltage source
	ShuntReference // reference-threshold current sink
)

func (k Kind) String() string {
	switch k {
	case Resistor:
		return "R"
	case Capacitor:
		return "C"
	case Source:
		return "V"
	case ShuntReference:
		return "U"
	default:
		return "?"
	}
}

// Node names used throughout the module. Ground is "0" as in any netlist.
const (
	NodeGround  = "0"
	NodeBattery = "vbat"
	NodeInput   = "vin"
	NodeOutput  = "vout"
	NodeRef     = "ref"
)

// RefModel carries the behavioral parameters of the reference device: it
// sinks up to MaxSink amperes from cathode to anode once the ref pin rises
// past Threshold, with small-signal slope Slope around the threshold.
type RefModel struct {
	Threshold float64 // V
	Slope     float64 // A/V
	MaxSink   float64 // A
	InputRes  float64 // ref pin input resistance, ohm
}

// Component is one circuit element. For ShuntReference the node order is
// cathode, anode, ref and Ref holds the device parameters. Polarized marks
// electrolytic capacitors; their positive terminal is Nodes[0].
type Component struct {
	Kind      Kind
	Name      string
	Value     float64
	Nodes     []string
	Polarized bool
	Ref       *RefModel
}

// CircuitTopology is the immutable circuit graph. The zero value is not
// usable; construct via Build.
type CircuitTopology struct {
	components []Component
	params     Params
	load       float64 // added load resistance, 0 = no load
}

func (t CircuitTopology) Components() []Component {
	out := make([]Component, len(t.components))
	copy(out, t.components)
	return out
}

func (t CircuitTopology) Ground() string { return NodeGround }
func (t CircuitTopology) Output() string { return NodeOutput }

// SourceName is the component whose value the line sweep varies.
func (t CircuitTopology) SourceName() string { return "VBAT" }

// RefName is the branch whose current is the quiescent current.
func (t CircuitTopology) RefName() string { return "UREF" }

func (t CircuitTopology) Params() Params   { return t.params }
func (t CircuitTopology) Setting() float64 { return t.params.DividerSetting }
func (t CircuitTopology) Load() float64    { return t.load }

// WithSetting returns a new topology with the divider wiper moved to s.
func (t CircuitTopology) WithSetting(s float64) (CircuitTopology, error) {
	p := t.params
	p.DividerSetting = s
	nt, err := Build(p)
	if err != nil {
		return CircuitTopology{}, err
	}
	nt.load = t.load
	if t.load > 0 {
		nt.components = appendLoad(nt.components, t.load)
	}
	return nt, nil
}

// WithSourceVoltage returns a new topology with the battery at v volts.
func (t CircuitTopology) WithSourceVoltage(v float64) (CircuitTopology, error) {
	p := t.params
	p.SourceVoltage = v
	nt, err := Build(p)
	if err != nil {
		return CircuitTopology{}, err
	}
	nt.load = t.load
	if t.load > 0 {
		nt.components = appendLoad(nt.components, t.load)
	}
	return nt, nil
}

// WithLoad returns a new topology with a resistive load across the output.
func (t CircuitTopology) WithLoad(r float64) (CircuitTopology, error) {
	if r <= 0 {
		return CircuitTopology{}, &InvalidComponentValueError{Field: "loadResistance", Value: r}
	}
	nt, err := Build(t.params)
	if err != nil {
		return CircuitTopology{}, err
	}
	nt.load = r
	nt.components = appendLoad(nt.components, r)
	return nt, nil
}

func appendLoad(comps []Component, r float64) []Component {
	return append(comps, Component{
		Kind:  Resistor,
		Name:  "RLOAD",
		Value: r,
		Nodes: []string{NodeOutput, NodeGround},
	})
}
