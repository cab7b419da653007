package topology

import "fmt"

// Params are the component values of the regulator template. All voltages in
// volts, resistances in ohms, capacitances in farads.
type Params struct {
	SourceVoltage     float64 `yaml:"sourceVoltage"`
	FuseResistance    float64 `yaml:"fuseResistance"`
	SeriesResistance  float64 `yaml:"seriesResistance"`
	DividerResistance float64 `yaml:"dividerResistance"`
	DividerSetting    float64 `yaml:"dividerSetting"`
	ReferenceVoltage  float64 `yaml:"referenceVoltage"`
	OutputCap         float64 `yaml:"outputCapacitance"`
	CompensationCap   float64 `yaml:"compensationCapacitance"`
}

// Behavioral reference model, matching the TL431 macromodel the board uses:
// the sink ramps at 10 A/V past the threshold and saturates at 100 mA, and
// the ref pin looks like 1 Mohm to ground.
const (
	refSlope    = 10.0
	refMaxSink  = 0.1
	refInputRes = 1e6

	// A wiper setting of exactly 0 or 1 collapses one divider leg; the leg is
	// floored here so its conductance stays finite.
	minLegResistance = 1e-3
)

type InvalidComponentValueError struct {
	Field string
	Value float64
}

func (e *InvalidComponentValueError) Error() string {
	return fmt.Sprintf("invalid component value: %s = %g", e.Field, e.Value)
}

// Build constructs the regulator topology: battery, fuse, series resistor,
// split divider with the wiper at DividerSetting, compensation and output
// capacitors, and the reference sink between output and ground.
//
// DividerSetting is the fraction of the divider resistance below the wiper
// (Rbot = s*Rp). Raising it raises the feedback voltage for a fixed output,
// so the regulator clamps the output lower: steady-state output voltage is
// non-increasing in the setting.
func Build(p Params) (CircuitTopology, error) {
	if err := validate(p); err != nil {
		return CircuitTopology{}, err
	}

	rBot := p.DividerSetting * p.DividerResistance
	rTop := p.DividerResistance - rBot
	if rBot < minLegResistance {
		rBot = minLegResistance
	}
	if rTop < minLegResistance {
		rTop = minLegResistance
	}

	inputNode := NodeInput
	comps := make([]Component, 0, 9)

	if p.FuseResistance > 0 {
		comps = append(comps,
			Component{Kind: Source, Name: "VBAT", Value: p.SourceVoltage, Nodes: []string{NodeBattery, NodeGround}},
			Component{Kind: Resistor, Name: "RFUSE", Value: p.FuseResistance, Nodes: []string{NodeBattery, inputNode}},
		)
	} else {
		comps = append(comps,
			Component{Kind: Source, Name: "VBAT", Value: p.SourceVoltage, Nodes: []string{inputNode, NodeGround}},
		)
	}

	comps = append(comps,
		Component{Kind: Resistor, Name: "RSER", Value: p.SeriesResistance, Nodes: []string{inputNode, NodeOutput}},
		Component{Kind: Resistor, Name: "RPOTTOP", Value: rTop, Nodes: []string{NodeOutput, NodeRef}},
		Component{Kind: Resistor, Name: "RPOTBOT", Value: rBot, Nodes: []string{NodeRef, NodeGround}},
		Component{Kind: Resistor, Name: "RREFIN", Value: refInputRes, Nodes: []string{NodeRef, NodeGround}},
		Component{
			Kind:  ShuntReference,
			Name:  "UREF",
			Value: p.ReferenceVoltage,
			Nodes: []string{NodeOutput, NodeGround, NodeRef},
			Ref: &RefModel{
				Threshold: p.ReferenceVoltage,
				Slope:     refSlope,
				MaxSink:   refMaxSink,
				InputRes:  refInputRes,
			},
		},
	)

	if p.CompensationCap > 0 {
		comps = append(comps, Component{
			Kind: Capacitor, Name: "CCOMP", Value: p.CompensationCap,
			Nodes: []string{NodeOutput, NodeRef},
		})
	}
	if p.OutputCap > 0 {
		comps = append(comps, Component{
			Kind: Capacitor, Name: "COUT", Value: p.OutputCap,
			Nodes: []string{NodeOutput, NodeGround}, Polarized: true,
		})
	}

	return CircuitTopology{components: comps, params: p}, nil
}

func validate(p Params) error {
	switch {
	case p.SourceVoltage <= 0:
		return &InvalidComponentValueError{Field: "sourceVoltage", Value: p.SourceVoltage}
	case p.FuseResistance < 0:
		return &InvalidComponentValueError{Field: "fuseResistance", Value: p.FuseResistance}
	case p.SeriesResistance <= 0:
		return &InvalidComponentValueError{Field: "seriesResistance", Value: p.SeriesResistance}
	case p.DividerResistance <= 0:
		return &InvalidComponentValueError{Field: "dividerResistance", Value: p.DividerResistance}
	case p.DividerSetting < 0 || p.DividerSetting > 1:
		return &InvalidComponentValueError{Field: "dividerSetting", Value: p.DividerSetting}
	case p.ReferenceVoltage <= 0:
		return &InvalidComponentValueError{Field: "referenceVoltage", Value: p.ReferenceVoltage}
	case p.OutputCap < 0:
		return &InvalidComponentValueError{Field: "outputCapacitance", Value: p.OutputCap}
	case p.CompensationCap < 0:
		return &InvalidComponentValueError{Field: "compensationCapacitance", Value: p.CompensationCap}
	}
	return nil
}
