package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hobbycircuits/regsim/pkg/topology"
)

func testTopology(t *testing.T) topology.CircuitTopology {
	t.Helper()
	topo, err := topology.Build(topology.Params{
		SourceVoltage:     11.1,
		FuseResistance:    0.01,
		SeriesResistance:  4700,
		DividerResistance: 10000,
		DividerSetting:    0.756,
		ReferenceVoltage:  2.495,
		OutputCap:         680e-6,
		CompensationCap:   22e-9,
	})
	require.NoError(t, err)
	return topo
}

func TestFromTopology_NodeAssignment(t *testing.T) {
	ckt, err := FromTopology("board", testTopology(t))
	require.NoError(t, err)
	defer ckt.Destroy()

	nodes := ckt.GetNodeMap()
	for _, name := range []string{topology.NodeBattery, topology.NodeInput, topology.NodeOutput, topology.NodeRef} {
		idx, ok := nodes[name]
		require.True(t, ok, "node %s must be mapped", name)
		assert.Greater(t, idx, 0, "ground owns index 0")
		assert.LessOrEqual(t, idx, ckt.NumNodes())
	}
	assert.Equal(t, len(nodes), ckt.NumNodes())

	// One source, one branch row past the node rows
	assert.Equal(t, ckt.NumNodes()+1, ckt.GetMatrix().Size)
}

func TestFromTopology_DeviceRoster(t *testing.T) {
	ckt, err := FromTopology("board", testTopology(t))
	require.NoError(t, err)
	defer ckt.Destroy()

	byName := make(map[string]string)
	for _, dev := range ckt.GetDevices() {
		byName[dev.GetName()] = dev.GetType()
	}

	assert.Equal(t, "V", byName["VBAT"])
	assert.Equal(t, "R", byName["RSER"])
	assert.Equal(t, "R", byName["RPOTTOP"])
	assert.Equal(t, "R", byName["RPOTBOT"])
	assert.Equal(t, "U", byName["UREF"])
	assert.Equal(t, "C", byName["COUT"])
	assert.Equal(t, "C", byName["CCOMP"])
}

func TestFindSource(t *testing.T) {
	ckt, err := FromTopology("board", testTopology(t))
	require.NoError(t, err)
	defer ckt.Destroy()

	src, ok := ckt.FindSource("VBAT")
	require.True(t, ok)
	assert.Equal(t, 11.1, src.GetValue())
	assert.Greater(t, src.BranchIndex(), ckt.NumNodes())

	_, ok = ckt.FindSource("RSER")
	assert.False(t, ok)
}
