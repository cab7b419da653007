// Package report formats regulation metrics as text and optional plots.
package report

import (
	"fmt"
	"strings"

	"github.com/hobbycircuits/regsim/pkg/config"
	"github.com/hobbycircuits/regsim/pkg/regulation"
	"github.com/hobbycircuits/regsim/pkg/util"
)

// Text renders the full characterization report.
func Text(params config.Params, setting float64, m regulation.Metrics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Shunt Regulator Characterization\n")
	fmt.Fprintf(&b, "================================\n\n")

	fmt.Fprintf(&b, "Source %s, series %s, divider %s, reference %s\n",
		util.FormatValueFactor(params.Circuit.SourceVoltage, "V"),
		util.FormatValueFactor(params.Circuit.SeriesResistance, "Ohm"),
		util.FormatValueFactor(params.Circuit.DividerResistance, "Ohm"),
		util.FormatValueFactor(params.Circuit.ReferenceVoltage, "V"))
	fmt.Fprintf(&b, "Divider setting: %.4f (wiper fraction below the tap)\n\n", setting)

	fmt.Fprintf(&b, "Output voltage:   %s (target %s, error %+.1f mV)\n",
		util.FormatValueFactor(m.Output, "V"),
		util.FormatValueFactor(params.TargetOutputVoltage, "V"),
		m.TargetError*1e3)
	writeMetric(&b, "Line regulation: ", m.Line, "V")
	writeMetric(&b, "Load regulation: ", m.Load, "V")
	writeMetric(&b, "Ripple (p-p):    ", m.Ripple, "V")
	writeMetric(&b, "Quiescent:       ", m.Quiescent, "A")

	if len(m.LineInputs) > 0 {
		fmt.Fprintf(&b, "\nLine sweep (no load):\n")
		for i, vin := range m.LineInputs {
			fmt.Fprintf(&b, "  VIN=%-10s VOUT=%s\n",
				util.FormatValueFactor(vin, "V"),
				util.FormatValueFactor(m.LineOutputs[i], "V"))
		}
	}

	if len(m.LoadPoints) > 0 {
		fmt.Fprintf(&b, "\nLoad sweep:\n")
		for _, lp := range m.LoadPoints {
			fmt.Fprintf(&b, "  RLOAD=%-10s VOUT=%-10s dev=%s\n",
				util.FormatValueFactor(lp.Resistance, "Ohm"),
				util.FormatValueFactor(lp.Output, "V"),
				util.FormatValueFactor(lp.Deviation, "V"))
		}
	}

	for _, r := range m.ExcludedLoads {
		fmt.Fprintf(&b, "  RLOAD=%-10s out of spec: exceeds series-resistor current budget\n",
			util.FormatValueFactor(r, "Ohm"))
	}

	return b.String()
}

func writeMetric(b *strings.Builder, label string, m regulation.Metric, unit string) {
	if !m.Available() {
		fmt.Fprintf(b, "%s unavailable (%v)\n", label, m.Err)
		return
	}
	fmt.Fprintf(b, "%s %s\n", label, util.FormatValueFactor(m.Value, unit))
}
