/*package voxel converts closed triangle meshes into regular 3D grids of
material-tagged cells for the FDTD solver.
*/
package voxel

// Material holds the electromagnetic properties of one grid material.
type Material struct {
	Name string
	// Relative permittivity and permeability.
	EpsRel, MuRel float64
	// Electric conductivity (S/m).
	Conductivity float64
	// PEC marks a perfect electric conductor. PEC cells are special-cased
	// by the solver (fields forced to zero) rather than modeled with a
	// large finite conductivity.
	PEC bool
}

// Air returns the default background material.
func Air() Material {
	return Material{Name: "air", EpsRel: 1, MuRel: 1}
}

// PEC returns a perfect electric conductor.
func PEC() Material {
	return Material{Name: "pec", EpsRel: 1, MuRel: 1, PEC: true}
}

// Copper returns copper, modeled by its bulk conductivity.
func Copper() Material {
	return Material{Name: "copper", EpsRel: 1, MuRel: 1, Conductivity: 5.8e7}
}

// Dielectric returns a lossless dielectric with the given relative
// permittivity.
func Dielectric(name string, epsRel float64) Material {
	return Material{Name: name, EpsRel: epsRel, MuRel: 1}
}
