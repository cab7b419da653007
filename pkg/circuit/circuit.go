// Package circuit turns an immutable topology into a solvable MNA system.
package circuit

import (
	"fmt"

	"github.com/hobbycircuits/regsim/pkg/device"
	"github.com/hobbycircuits/regsim/pkg/matrix"
	"github.com/hobbycircuits/regsim/pkg/topology"
)

type Circuit struct {
	name             string
	nodeMap          map[string]int
	branchMap        map[string]int
	devices          []device.Device
	numNodes         int
	matrix           *matrix.CircuitMatrix
	nonlinearDevices []device.NonLinear
}

// FromTopology assigns node and branch indices, instantiates devices and
// prepares the matrix. The topology is not referenced afterwards.
func FromTopology(name string, topo topology.CircuitTopology) (*Circuit, error) {
	c := &Circuit{
		name:      name,
		nodeMap:   make(map[string]int),
		branchMap: make(map[string]int),
		devices:   make([]device.Device, 0),
	}

	comps := topo.Components()

	for _, comp := range comps {
		for _, nodeName := range comp.Nodes {
			if nodeName == topology.NodeGround {
				continue
			}
			if _, exists := c.nodeMap[nodeName]; !exists {
				c.nodeMap[nodeName] = len(c.nodeMap) + 1
			}
		}
	}
	c.numNodes = len(c.nodeMap)

	branchStart := c.numNodes + 1
	for _, comp := range comps {
		if comp.Kind == topology.Source {
			c.branchMap[comp.Name] = branchStart
			branchStart++
		}
	}

	mat, err := matrix.NewMatrix(c.numNodes + len(c.branchMap))
	if err != nil {
		return nil, err
	}
	c.matrix = mat

	for _, comp := range comps {
		dev, err := createDevice(comp)
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("creating device %s: %v", comp.Name, err)
		}

		nodeIndices := make([]int, len(comp.Nodes))
		for i, nodeName := range comp.Nodes {
			if nodeName == topology.NodeGround {
				nodeIndices[i] = 0
				continue
			}
			nodeIndices[i] = c.nodeMap[nodeName]
		}
		dev.SetNodes(nodeIndices)

		if v, ok := dev.(*device.VoltageSource); ok {
			v.SetBranchIndex(c.branchMap[comp.Name])
		}
		if nl, ok := dev.(device.NonLinear); ok {
			c.nonlinearDevices = append(c.nonlinearDevices, nl)
		}

		c.devices = append(c.devices, dev)
	}

	// Initial stamp so the sparse structure is known before factoring
	if err := c.Stamp(&device.CircuitStatus{Time: 0}); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("initial stamping failed: %v", err)
	}
	c.matrix.SetupElements()

	return c, nil
}

func createDevice(comp topology.Component) (device.Device, error) {
	switch comp.Kind {
	case topology.Resistor:
		return device.NewResistor(comp.Name, comp.Nodes, comp.Value), nil
	case topology.Capacitor:
		return device.NewCapacitor(comp.Name, comp.Nodes, comp.Value), nil
	case topology.Source:
		return device.NewDCVoltageSource(comp.Name, comp.Nodes, comp.Value), nil
	case topology.ShuntReference:
		if comp.Ref == nil {
			return nil, fmt.Errorf("shunt reference %s: missing device parameters", comp.Name)
		}
		return device.NewShuntRef(comp.Name, comp.Nodes, comp.Ref.Threshold, comp.Ref.Slope, comp.Ref.MaxSink), nil
	default:
		return nil, fmt.Errorf("unknown component kind %v", comp.Kind)
	}
}

func (c *Circuit) Stamp(status *device.CircuitStatus) error {
	for _, dev := range c.devices {
		if err := dev.Stamp(c.matrix, status); err != nil {
			return fmt.Errorf("stamping device %s: %v", dev.GetName(), err)
		}
	}
	return nil
}

func (c *Circuit) UpdateNonlinearVoltages(solution []float64) error {
	for _, dev := range c.nonlinearDevices {
		if err := dev.UpdateVoltages(solution); err != nil {
			return fmt.Errorf("updating voltages: %v", err)
		}
	}
	return nil
}

func (c *Circuit) SetTimeStep(dt float64) {
	for _, dev := range c.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.SetTimeStep(dt)
		}
	}
}

// UpdateState advances time-dependent device state after an accepted step.
func (c *Circuit) UpdateState(status *device.CircuitStatus) {
	solution := c.matrix.Solution()
	for _, dev := range c.devices {
		if td, ok := dev.(device.TimeDependent); ok {
			td.UpdateState(solution, status)
		}
	}
}

// SeedCapacitors initializes capacitor voltages from a solved operating
// point so a transient run starts settled.
func (c *Circuit) SeedCapacitors() {
	solution := c.matrix.Solution()
	for _, dev := range c.devices {
		cap, ok := dev.(*device.Capacitor)
		if !ok {
			continue
		}
		nodes := cap.GetNodes()
		v1, v2 := 0.0, 0.0
		if nodes[0] > 0 {
			v1 = solution[nodes[0]]
		}
		if nodes[1] > 0 {
			v2 = solution[nodes[1]]
		}
		cap.SetInitialVoltage(v1 - v2)
	}
}

// FindSource locates a voltage source by name, for sweep analyses.
func (c *Circuit) FindSource(name string) (*device.VoltageSource, bool) {
	for _, dev := range c.devices {
		if dev.GetName() != name {
			continue
		}
		if v, ok := dev.(*device.VoltageSource); ok {
			return v, true
		}
	}
	return nil, false
}

func (c *Circuit) GetMatrix() *matrix.CircuitMatrix {
	return c.matrix
}

func (c *Circuit) GetNodeMap() map[string]int {
	return c.nodeMap
}

func (c *Circuit) GetDevices() []device.Device {
	return c.devices
}

// NodeVoltages extracts the node-voltage map from the current solution.
func (c *Circuit) NodeVoltages() map[string]float64 {
	solution := c.matrix.Solution()
	out := make(map[string]float64, len(c.nodeMap))
	for name, idx := range c.nodeMap {
		out[name] = solution[idx]
	}
	return out
}

// BranchCurrents extracts per-device currents: voltage-source branch
// currents from the solution vector, resistor and reference-sink currents
// recomputed from node voltages.
func (c *Circuit) BranchCurrents() map[string]float64 {
	solution := c.matrix.Solution()
	out := make(map[string]float64)

	for name, idx := range c.branchMap {
		out[name] = -solution[idx]
	}

	for _, dev := range c.devices {
		switch d := dev.(type) {
		case *device.Resistor:
			out[d.GetName()] = d.Current(solution)
		case *device.ShuntRef:
			out[d.GetName()] = d.Current(solution)
		}
	}

	return out
}

func (c *Circuit) Name() string {
	return c.name
}

func (c *Circuit) NumNodes() int {
	return c.numNodes
}

func (c *Circuit) Destroy() {
	if c.matrix != nil {
		c.matrix.Destroy()
	}
}
