// Package config holds the characterization parameters with named defaults
// matching the documented bill of materials. Tests override any subset by
// copying Default(); there is no module-level mutable state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hobbycircuits/regsim/pkg/topology"
)

type Params struct {
	Circuit topology.Params `yaml:"circuit"`

	TargetOutputVoltage float64 `yaml:"targetOutputVoltage"`
	Tolerance           float64 `yaml:"tolerance"`
	MaxIterations       int     `yaml:"maxIterations"`

	InputVoltageRange SweepRange `yaml:"inputVoltageRange"`
	LoadResistances   []float64  `yaml:"loadResistanceRange"`

	TransientWindow float64 `yaml:"transientWindow"` // s
	TransientStep   float64 `yaml:"transientStep"`   // s
}

// SweepRange generates evenly stepped sweep points, endpoints included.
type SweepRange struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

func (r SweepRange) Points() []float64 {
	if r.Step <= 0 || r.Max < r.Min {
		return nil
	}
	pts := make([]float64, 0)
	for v := r.Min; v <= r.Max+r.Step/2; v += r.Step {
		pts = append(pts, v)
	}
	return pts
}

// Default is the documented bill of materials: 3S LiPo feeding a TL431 shunt
// regulator through a 4.7k series resistor, 10k pot, 3.30 V target.
func Default() Params {
	return Params{
		Circuit: topology.Params{
			SourceVoltage:     11.1,
			FuseResistance:    0.01,
			SeriesResistance:  4700,
			DividerResistance: 10000,
			ReferenceVoltage:  2.495,
			OutputCap:         680e-6,
			CompensationCap:   22e-9,
		},
		TargetOutputVoltage: 3.30,
		Tolerance:           0.05,
		MaxIterations:       60,
		InputVoltageRange:   SweepRange{Min: 10.5, Max: 12.6, Step: 0.3},
		LoadResistances:     []float64{1000, 2200, 4700, 10000, 22000, 47000},
		TransientWindow:     50e-3,
		TransientStep:       50e-6,
	}
}

// Load reads a YAML override file on top of the defaults. Absent keys keep
// their default values.
func Load(path string) (Params, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return p, nil
}
