package fieldsim

import (
	"fmt"
)

// ConfigError rejects a study before any field memory is allocated:
// missing or non-physical parameters, or sources and probes placed outside
// the simulation domain.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid study configuration (%s): %s", e.Field, e.Reason)
}

// ResourceError rejects a run whose field arrays would exceed the memory
// budget. It names the grid dimensions so the user can see which axis to
// coarsen.
type ResourceError struct {
	Nx, Ny, Nz int
	RequiredGB float64
	BudgetGB   float64
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf(
		"a %dx%dx%d grid needs %.2f GB of field memory, over the %.2f GB budget; "+
			"increase CellSize or MemoryBudgetGB",
		e.Nx, e.Ny, e.Nz, e.RequiredGB, e.BudgetGB)
}

// MeshWarning records a degraded voxelization: columns whose ray
// classification stayed ambiguous after perturbation, usually from
// non-manifold or self-intersecting input. The study continues with the
// fallback classification, so this is reported, never fatal.
type MeshWarning struct {
	Mesh             string
	AmbiguousColumns int
	PerturbedColumns int
}

func (w *MeshWarning) Error() string {
	return fmt.Sprintf(
		"mesh '%s' voxelized with %d ambiguous columns (%d resolved by "+
			"ray perturbation); the result may misclassify cells near those columns",
		w.Mesh, w.AmbiguousColumns, w.PerturbedColumns)
}
