package matrix

// DeviceMatrix is the stamping surface devices see. Indices are 1-based,
// ground is row/column 0 and is silently skipped by callers.
type DeviceMatrix interface {
	AddElement(i, j int, value float64)
	AddRHS(i int, value float64)
}
