package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, 11.1, p.Circuit.SourceVoltage)
	assert.Equal(t, 4700.0, p.Circuit.SeriesResistance)
	assert.Equal(t, 2.495, p.Circuit.ReferenceVoltage)
	assert.Equal(t, 3.30, p.TargetOutputVoltage)
	assert.Equal(t, 60, p.MaxIterations)
	assert.Len(t, p.LoadResistances, 6)
}

func TestSweepRange_Points(t *testing.T) {
	pts := SweepRange{Min: 10.5, Max: 12.6, Step: 0.3}.Points()

	require.Len(t, pts, 8)
	assert.InDelta(t, 10.5, pts[0], 1e-12)
	assert.InDelta(t, 12.6, pts[len(pts)-1], 1e-9)
	for i := 1; i < len(pts); i++ {
		assert.InDelta(t, 0.3, pts[i]-pts[i-1], 1e-9)
	}
}

func TestSweepRange_Degenerate(t *testing.T) {
	assert.Nil(t, SweepRange{Min: 10, Max: 12, Step: 0}.Points())
	assert.Nil(t, SweepRange{Min: 12, Max: 10, Step: 0.3}.Points())

	single := SweepRange{Min: 11.1, Max: 11.1, Step: 0.3}.Points()
	require.Len(t, single, 1)
	assert.Equal(t, 11.1, single[0])
}

func TestLoad_OverridesSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	body := `
circuit:
  sourceVoltage: 12.0
  seriesResistance: 2200
targetOutputVoltage: 5.0
loadResistanceRange: [4700, 10000]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	// overridden keys
	assert.Equal(t, 12.0, p.Circuit.SourceVoltage)
	assert.Equal(t, 2200.0, p.Circuit.SeriesResistance)
	assert.Equal(t, 5.0, p.TargetOutputVoltage)
	assert.Equal(t, []float64{4700, 10000}, p.LoadResistances)

	// untouched keys keep their defaults
	assert.Equal(t, 2.495, p.Circuit.ReferenceVoltage)
	assert.Equal(t, 10000.0, p.Circuit.DividerResistance)
	assert.Equal(t, 0.05, p.Tolerance)
	assert.Equal(t, SweepRange{Min: 10.5, Max: 12.6, Step: 0.3}, p.InputVoltageRange)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("circuit: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
