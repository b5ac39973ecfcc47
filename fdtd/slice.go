package fdtd

import (
	"fmt"
)

// Plane selects the orientation of an extracted 2D field slice.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
)

var planeNames = []string{"XY", "XZ", "YZ"}

func (p Plane) String() string {
	if p < PlaneXY || p > PlaneYZ {
		return "invalid"
	}
	return planeNames[p]
}

// ParsePlane maps a plane name ("XY", "XZ", "YZ") to its Plane.
func ParsePlane(name string) (Plane, bool) {
	for i, n := range planeNames {
		if n == name {
			return Plane(i), true
		}
	}
	return 0, false
}

// FieldSlice is a snapshot of one field component over a full grid plane,
// stored row-major as Data[u + v*Nu].
type FieldSlice struct {
	Comp  Component
	Plane Plane
	// Index is the cell index along the axis orthogonal to the plane.
	Index  int
	Nu, Nv int
	// Time is the simulation time of the snapshot (s).
	Time float64
	Data []float64
}

// Slice copies one component over the plane at the given orthogonal index.
// It must not be called while a run is in flight.
func (s *Simulation) Slice(plane Plane, index int, comp Component) (*FieldSlice, error) {
	var nu, nv, limit int
	switch plane {
	case PlaneXY:
		nu, nv, limit = s.nx, s.ny, s.nz
	case PlaneXZ:
		nu, nv, limit = s.nx, s.nz, s.ny
	case PlaneYZ:
		nu, nv, limit = s.ny, s.nz, s.nx
	default:
		return nil, fmt.Errorf("invalid slice plane %d", plane)
	}
	if index < 0 || index >= limit {
		return nil, fmt.Errorf("%s slice index %d outside [0, %d)",
			plane, index, limit)
	}

	fs := &FieldSlice{
		Comp: comp, Plane: plane, Index: index,
		Nu: nu, Nv: nv,
		Time: s.Time(),
		Data: make([]float64, nu*nv),
	}
	for v := 0; v < nv; v++ {
		for u := 0; u < nu; u++ {
			var val float64
			switch plane {
			case PlaneXY:
				val = s.FieldAt(comp, u, v, index)
			case PlaneXZ:
				val = s.FieldAt(comp, u, index, v)
			case PlaneYZ:
				val = s.FieldAt(comp, index, u, v)
			}
			fs.Data[u+v*nu] = val
		}
	}
	return fs, nil
}
